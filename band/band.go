// Copyright (c) 2025 BVK Chaitanya

package band

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

var (
	quarter = decimal.New(25, -2) // 0.25
	lower   = decimal.New(98, -2) // 0.98
	upper   = decimal.New(102, -2)
	one     = decimal.New(1, 0)
)

// Band holds the derived target level and the tolerance interval around it
// for a user-supplied low/high price range. All values are exact decimals;
// rounding happens only on display.
type Band struct {
	Low  decimal.Decimal
	High decimal.Decimal

	Level decimal.Decimal
	Min   decimal.Decimal
	Max   decimal.Decimal
}

// Compute derives the band for the given range. The target level sits 25%
// above the low (the 75% fib retracement measured from the high), and the
// band spans 2% on either side of it.
func Compute(low, high decimal.Decimal) Band {
	level := low.Add(quarter.Mul(high.Sub(low)))
	return Band{
		Low:   low,
		High:  high,
		Level: level,
		Min:   level.Mul(lower),
		Max:   level.Mul(upper),
	}
}

func (b *Band) Check() error {
	if b.Low.IsNegative() {
		return fmt.Errorf("low cannot be negative")
	}
	if b.Low.GreaterThanOrEqual(b.High) {
		return fmt.Errorf("low must be less than high")
	}
	return nil
}

// InRange returns true if the input price falls inside the band, bounds
// included.
func (b *Band) InRange(price decimal.Decimal) bool {
	return price.GreaterThanOrEqual(b.Min) && price.LessThanOrEqual(b.Max)
}

func (b Band) String() string {
	return fmt.Sprintf("fib75:%s[%s-%s]", Format(b.Level), Format(b.Min), Format(b.Max))
}

func (b *Band) LogValue() slog.Value {
	return slog.StringValue(b.String())
}

// Format renders a price for display with round-half-up at a fixed number of
// fraction digits picked by magnitude. Sub-dollar prices keep more digits.
func Format(v decimal.Decimal) string {
	if v.Abs().LessThan(one) {
		return v.StringFixed(6)
	}
	return v.StringFixed(4)
}
