package coupon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductWise(t *testing.T) {
	tests := []struct {
		name         string
		rule         *ProductWiseRule
		discountType DiscountType
		value        string
		lines        []Line
		wantApplies  bool
		wantDiscount string
		wantLines    []wantLine
		wantProducts map[int64]string
	}{
		{
			name:         "only listed products are discounted",
			rule:         &ProductWiseRule{ProductIDs: NewProductSet(1)},
			discountType: DiscountPercentage,
			value:        "10",
			lines: []Line{
				{ProductID: 1, Quantity: 2, UnitPrice: d("50")},
				{ProductID: 2, Quantity: 1, UnitPrice: d("30")},
			},
			wantApplies:  true,
			wantDiscount: "10",
			wantLines: []wantLine{
				{original: "100", discount: "10", discounted: "90"},
				{original: "30", discount: "0", discounted: "30"},
			},
			wantProducts: map[int64]string{1: "10"},
		},
		{
			name:         "max quantity caps discounted units",
			rule:         &ProductWiseRule{ProductIDs: NewProductSet(1), MaxQuantity: intPtr(2)},
			discountType: DiscountPercentage,
			value:        "20",
			lines: []Line{
				{ProductID: 1, Quantity: 5, UnitPrice: d("10")},
			},
			wantApplies:  true,
			wantDiscount: "4",
			wantLines: []wantLine{
				{original: "50", discount: "4", discounted: "46"},
			},
			wantProducts: map[int64]string{1: "4"},
		},
		{
			name:         "fixed amount per line capped at line subset",
			rule:         &ProductWiseRule{ProductIDs: NewProductSet(1, 2)},
			discountType: DiscountFixedAmount,
			value:        "15",
			lines: []Line{
				{ProductID: 1, Quantity: 1, UnitPrice: d("10")},
				{ProductID: 2, Quantity: 2, UnitPrice: d("40")},
			},
			wantApplies:  true,
			wantDiscount: "25",
			wantLines: []wantLine{
				{original: "10", discount: "10", discounted: "0"},
				{original: "80", discount: "15", discounted: "65"},
			},
			wantProducts: map[int64]string{1: "10", 2: "15"},
		},
		{
			name:         "lines below minimum quantity are skipped",
			rule:         &ProductWiseRule{ProductIDs: NewProductSet(1, 2), MinQuantity: intPtr(3)},
			discountType: DiscountPercentage,
			value:        "10",
			lines: []Line{
				{ProductID: 1, Quantity: 3, UnitPrice: d("10")},
				{ProductID: 2, Quantity: 1, UnitPrice: d("10")},
			},
			wantApplies:  true,
			wantDiscount: "3",
			wantLines: []wantLine{
				{original: "30", discount: "3", discounted: "27"},
				{original: "10", discount: "0", discounted: "10"},
			},
			wantProducts: map[int64]string{1: "3"},
		},
		{
			name:         "split lines meet summed minimum but no single line does",
			rule:         &ProductWiseRule{ProductIDs: NewProductSet(1), MinQuantity: intPtr(3)},
			discountType: DiscountPercentage,
			value:        "10",
			lines: []Line{
				{ProductID: 1, Quantity: 2, UnitPrice: d("10")},
				{ProductID: 1, Quantity: 2, UnitPrice: d("10")},
			},
			wantApplies:  true,
			wantDiscount: "0",
			wantLines: []wantLine{
				{original: "20", discount: "0", discounted: "20"},
				{original: "20", discount: "0", discounted: "20"},
			},
			wantProducts: map[int64]string{},
		},
		{
			name:         "minimum quantity not met",
			rule:         &ProductWiseRule{ProductIDs: NewProductSet(1), MinQuantity: intPtr(3)},
			discountType: DiscountPercentage,
			value:        "10",
			lines: []Line{
				{ProductID: 1, Quantity: 2, UnitPrice: d("10")},
			},
		},
		{
			name:         "no listed product in cart",
			rule:         &ProductWiseRule{ProductIDs: NewProductSet(5)},
			discountType: DiscountPercentage,
			value:        "10",
			lines: []Line{
				{ProductID: 1, Quantity: 2, UnitPrice: d("10")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCoupon(tt.rule, tt.discountType, tt.value)
			e := testEngine()

			list, err := e.ListApplicable(tt.lines, []Coupon{*c}, nil)
			require.NoError(t, err)
			app, applyErr := e.Apply(tt.lines, c, nil)

			if !tt.wantApplies {
				assert.Empty(t, list.Coupons)
				var notApplicable *CouponNotApplicableError
				require.ErrorAs(t, applyErr, &notApplicable)
				assert.Contains(t, notApplicable.Error(),
					"No applicable products found in cart or minimum quantity requirement not met")
				return
			}

			require.Len(t, list.Coupons, 1)
			ev := list.Coupons[0]
			assert.Equal(t, "Coupon applicable to eligible products", ev.Message)
			assertDecimal(t, d(tt.wantDiscount), ev.TotalDiscount)
			require.NotNil(t, ev.Breakdown)
			require.Len(t, ev.Breakdown.ProductDiscounts, len(tt.wantProducts))
			for id, want := range tt.wantProducts {
				assertDecimal(t, d(want), ev.Breakdown.ProductDiscounts[id], "product %d", id)
			}

			require.NoError(t, applyErr)
			assertDecimal(t, d(tt.wantDiscount), app.DiscountApplied)
			assertLines(t, tt.wantLines, app.Lines)
			assertAllocationInvariants(t, app)
		})
	}
}

func TestProductWise_UnlistedProductNeverDiscounted(t *testing.T) {
	rules := []*ProductWiseRule{
		{ProductIDs: NewProductSet(1)},
		{ProductIDs: NewProductSet(1), MinQuantity: intPtr(1)},
		{ProductIDs: NewProductSet(1), MaxQuantity: intPtr(1)},
	}
	lines := []Line{
		{ProductID: 2, Quantity: 4, UnitPrice: d("9.99")},
		{ProductID: 1, Quantity: 4, UnitPrice: d("9.99")},
		{ProductID: 3, Quantity: 1, UnitPrice: d("100")},
	}

	for _, rule := range rules {
		app, err := testEngine().Apply(lines, testCoupon(rule, DiscountPercentage, "50"), nil)
		require.NoError(t, err)
		assert.True(t, app.Lines[0].DiscountApplied.IsZero())
		assert.True(t, app.Lines[2].DiscountApplied.IsZero())
		assert.True(t, app.Lines[1].DiscountApplied.IsPositive())
	}
}
