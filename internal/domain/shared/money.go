package shared

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of fraction digits kept for monetary amounts
const MoneyPlaces = 2

// RoundMoney rounds an amount half away from zero to MoneyPlaces
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
