package types

import "github.com/shopspring/decimal"

// OptionalDecimal tags a computed value as present or "unavailable" rather
// than defaulting missing data to zero (§9 re-architecture note).
type OptionalDecimal struct {
	Value decimal.Decimal
	Valid bool
}

// Avail wraps a present value.
func Avail(d decimal.Decimal) OptionalDecimal {
	return OptionalDecimal{Value: d, Valid: true}
}

// Unavailable returns the tagged-missing variant.
func Unavailable() OptionalDecimal {
	return OptionalDecimal{}
}

// Get returns the value and whether it is valid, mirroring the comma-ok
// idiom used elsewhere in the codebase.
func (o OptionalDecimal) Get() (decimal.Decimal, bool) {
	return o.Value, o.Valid
}

// OrZero returns the value, or zero if unavailable. Callers that must treat
// missing data as a hard stop (rather than silently substituting zero)
// should use Get instead.
func (o OptionalDecimal) OrZero() decimal.Decimal {
	if !o.Valid {
		return decimal.Zero
	}
	return o.Value
}

func (o OptionalDecimal) String() string {
	if !o.Valid {
		return "unavailable"
	}
	return o.Value.String()
}
