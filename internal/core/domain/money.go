package domain

import "github.com/shopspring/decimal"

type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

func ZeroMoney(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// LineAmount multiplies a nullable unit price by quantity; a missing price counts as zero.
func LineAmount(price decimal.NullDecimal, quantity int) decimal.Decimal {
	if !price.Valid {
		return decimal.Zero
	}
	return price.Decimal.Mul(decimal.NewFromInt(int64(quantity)))
}
