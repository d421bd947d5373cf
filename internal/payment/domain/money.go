package domain

import "fmt"

// Money is an amount of CNY expressed in integer fen (minor units).
// Amounts are never stored or compared as floating point.
type Money struct {
	AmountCents int64 `json:"amount_cents"`
}

// FromYuan builds a Money from whole yuan.
func FromYuan(yuan int64) Money {
	return Money{AmountCents: yuan * 100}
}

// FromCents builds a Money from fen.
func FromCents(cents int64) Money {
	return Money{AmountCents: cents}
}

// ToCents returns the amount in fen.
func (m Money) ToCents() int64 {
	return m.AmountCents
}

// ToYuan returns the amount in yuan, for display only.
func (m Money) ToYuan() float64 {
	return float64(m.AmountCents) / 100.0
}

func (m Money) String() string {
	return fmt.Sprintf("¥%.2f", m.ToYuan())
}
