package domain

import "github.com/shopspring/decimal"

// Quantity is the arbitrary-precision fixed-point type used throughout pool
// math. Floating point is permitted only for log-space edge weights in the
// cycle engine; every Quantity stays decimal end to end.
type Quantity = decimal.Decimal

// ZeroQuantity is the canonical zero value, exported so callers don't need
// to import shopspring/decimal just to compare against zero.
var ZeroQuantity = decimal.Zero

// ParseQuantity parses a decimal string into a Quantity.
func ParseQuantity(s string) (Quantity, error) {
	return decimal.NewFromString(s)
}
