package identity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		region  string
		want    string
		wantErr bool
	}{
		{"national kz format", "8 701 234 56 78", "KZ", "+77012345678", false},
		{"international ru", "+7 916 123-45-67", "", "+79161234567", false},
		{"empty", "  ", "KZ", "", true},
		{"garbage", "abc", "KZ", "", true},
		{"too short", "12345", "KZ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, tt.region)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewCustomer(t *testing.T) {
	t.Run("requires a contact", func(t *testing.T) {
		_, err := NewCustomer("Aigerim", "", "")
		require.Error(t, err)
	})

	t.Run("lower-cases email", func(t *testing.T) {
		c, err := NewCustomer("Aigerim", "", " Shop@Example.COM ")
		require.NoError(t, err)
		require.NotNil(t, c.Email)
		assert.Equal(t, "shop@example.com", *c.Email)
		assert.Equal(t, "shop@example.com", c.Contact())
		assert.False(t, c.CanLogin())
	})

	t.Run("rejects bad email", func(t *testing.T) {
		_, err := NewCustomer("Aigerim", "", "not-an-email")
		require.Error(t, err)
	})
}

func TestCustomer_Password(t *testing.T) {
	c, err := NewCustomer("Aigerim", "+77012345678", "")
	require.NoError(t, err)

	require.Error(t, c.SetPassword("short1"))
	require.Error(t, c.SetPassword("onlyletters"))
	require.NoError(t, c.SetPassword("роза12345"))

	assert.True(t, c.VerifyPassword("роза12345"))
	assert.False(t, c.VerifyPassword("wrong12345"))
	assert.True(t, c.CanLogin())

	c.Block()
	assert.False(t, c.CanLogin())
	c.Unblock()
	assert.True(t, c.CanLogin())
}

func TestCustomer_Counters(t *testing.T) {
	c, err := NewCustomer("Aigerim", "+77012345678", "")
	require.NoError(t, err)

	c.RecordSale(decimal.NewFromInt(1000), false)
	c.RecordSale(decimal.NewFromInt(500), true)
	assert.Equal(t, 2, c.OrdersCount)
	assert.True(t, decimal.NewFromInt(1500).Equal(c.TotalSpent))
	assert.True(t, decimal.NewFromInt(500).Equal(c.Debt))

	c.RecordReturn(decimal.NewFromInt(200), true)
	assert.True(t, decimal.NewFromInt(1300).Equal(c.TotalSpent))
	assert.True(t, decimal.NewFromInt(300).Equal(c.Debt))

	c.RecordPayment(decimal.NewFromInt(1000))
	assert.True(t, c.Debt.IsZero())
}

func TestNewAdminUser(t *testing.T) {
	a, err := NewAdminUser("Owner@Flora.kz", "", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "owner@flora.kz", a.Email)
	assert.Equal(t, "owner@flora.kz", a.Name)
	assert.True(t, a.Active)
	assert.True(t, a.VerifyPassword("secret123"))

	_, err = NewAdminUser("bad", "x", "secret123")
	require.Error(t, err)
}
