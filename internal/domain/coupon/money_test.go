package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func dp(v string) *decimal.Decimal {
	x := d(v)
	return &x
}

func intPtr(v int) *int {
	return &v
}

func assertDecimal(t *testing.T, want, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	if !want.Equal(got) {
		assert.Fail(t, "decimals differ: want "+want.String()+", got "+got.String(), msgAndArgs...)
	}
}

func TestPercentageDiscount(t *testing.T) {
	tests := []struct {
		name   string
		amount decimal.Decimal
		pct    decimal.Decimal
		want   decimal.Decimal
	}{
		{name: "ten percent", amount: d("100"), pct: d("10"), want: d("10")},
		{name: "rounds to cents", amount: d("10.005"), pct: d("10"), want: d("1.00")},
		{name: "half rounds up", amount: d("0.05"), pct: d("50"), want: d("0.03")},
		{name: "full amount", amount: d("42.42"), pct: d("100"), want: d("42.42")},
		{name: "zero amount", amount: d("0"), pct: d("10"), want: d("0")},
		{name: "negative amount", amount: d("-5"), pct: d("10"), want: d("0")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentageDiscount(tt.amount, tt.pct)
			assertDecimal(t, tt.want, got)
			assert.LessOrEqual(t, -got.Exponent(), int32(2))
		})
	}
}

func TestFixedDiscount(t *testing.T) {
	tests := []struct {
		name   string
		amount decimal.Decimal
		fixed  decimal.Decimal
		want   decimal.Decimal
	}{
		{name: "fixed below amount", amount: d("50"), fixed: d("20"), want: d("20")},
		{name: "fixed above amount is capped", amount: d("5"), fixed: d("20"), want: d("5")},
		{name: "equal", amount: d("20"), fixed: d("20"), want: d("20")},
		{name: "zero amount", amount: d("0"), fixed: d("20"), want: d("0")},
		{name: "negative amount", amount: d("-1"), fixed: d("20"), want: d("0")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, tt.want, FixedDiscount(tt.amount, tt.fixed))
		})
	}
}

func TestCapDiscount(t *testing.T) {
	assertDecimal(t, d("25"), CapDiscount(d("30"), dp("25")))
	assertDecimal(t, d("10"), CapDiscount(d("10"), dp("25")))
	assertDecimal(t, d("30"), CapDiscount(d("30"), nil))
}

func TestClampNonNegative(t *testing.T) {
	assertDecimal(t, d("74.5"), ClampNonNegative(d("100"), d("25.5")))
	assertDecimal(t, d("0"), ClampNonNegative(d("10"), d("15")))
	assertDecimal(t, d("0"), ClampNonNegative(d("10"), d("10")))
}

func TestRound(t *testing.T) {
	assertDecimal(t, d("2.35"), Round(d("2.345")))
	assertDecimal(t, d("2.34"), Round(d("2.3449")))
	assertDecimal(t, d("3.33"), Round(d("3.333333")))
	assertDecimal(t, d("7"), Round(d("7")))
}
