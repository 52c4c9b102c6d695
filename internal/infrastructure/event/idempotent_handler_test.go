package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Forget(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

var _ shared.IdempotencyStore = (*MockIdempotencyStore)(nil)

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := newTestHandler("SaleCompleted")
	h := NewIdempotentHandler(inner, store, time.Minute, nil)
	ev := newTestEvent("SaleCompleted")

	require.NoError(t, h.Handle(context.Background(), ev))
	require.NoError(t, h.Handle(context.Background(), ev))

	assert.Equal(t, 1, inner.count())
	assert.Equal(t, IdempotencyStats{Processed: 1, Duplicate: 1}, h.Stats())
	assert.Equal(t, []string{"SaleCompleted"}, h.EventTypes())
}

func TestIdempotentHandler_FailureAllowsRetry(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := newTestHandler("SaleCompleted")
	inner.err = errors.New("temporary")
	h := NewIdempotentHandler(inner, store, 0, nil)
	ev := newTestEvent("SaleCompleted")

	assert.Error(t, h.Handle(context.Background(), ev))
	inner.err = nil
	require.NoError(t, h.Handle(context.Background(), ev))

	assert.Equal(t, 2, inner.count())
	assert.Equal(t, int64(1), h.Stats().Failed)
	assert.Equal(t, int64(1), h.Stats().Processed)
}

func TestIdempotentHandler_StoreErrorStillProcesses(t *testing.T) {
	store := new(MockIdempotencyStore)
	ev := newTestEvent("ShiftClosed")
	store.On("MarkProcessed", mock.Anything, "event:"+ev.EventID().String(), DefaultIdempotencyTTL).
		Return(false, errors.New("redis down"))

	inner := newTestHandler("ShiftClosed")
	h := NewIdempotentHandler(inner, store, 0, nil)

	require.NoError(t, h.Handle(context.Background(), ev))
	assert.Equal(t, 1, inner.count())
	store.AssertExpectations(t)
}
