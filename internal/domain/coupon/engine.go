package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

// Evaluation is the result of evaluating one coupon against a cart.
type Evaluation struct {
	CouponID      int64
	Code          string
	Name          string
	Type          Type
	Applicable    bool
	TotalDiscount decimal.Decimal
	Breakdown     *Breakdown
	Message       string
}

// Skip records a candidate left out of a listing and why.
type Skip struct {
	CouponID int64
	Code     string
	Reason   error
}

// ListResult holds the applicable coupons for a cart.
type ListResult struct {
	Coupons      []Evaluation
	CartTotal    decimal.Decimal
	BestDiscount decimal.Decimal
	Skipped      []Skip
}

// LineAllocation is the share of a discount carried by one cart line.
// DiscountedAmount always equals OriginalAmount - DiscountApplied.
type LineAllocation struct {
	ProductID        int64
	ProductName      string
	Quantity         int
	UnitPrice        decimal.Decimal
	OriginalAmount   decimal.Decimal
	DiscountedAmount decimal.Decimal
	DiscountApplied  decimal.Decimal
}

// AppliedCoupon identifies the coupon of an Application.
type AppliedCoupon struct {
	ID   int64
	Code string
	Type Type
}

// Application is the result of applying a coupon to a cart.
type Application struct {
	Coupon          AppliedCoupon
	OriginalTotal   decimal.Decimal
	DiscountApplied decimal.Decimal
	FinalTotal      decimal.Decimal
	Lines           []LineAllocation
}

// Engine evaluates and applies coupons. It holds no state besides its clock
// and is safe for concurrent use.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an Engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// candidate is the outcome of evaluating a single coupon during a listing:
// either an evaluation or the reason it was left out.
type candidate struct {
	eval *Evaluation
	skip error
}

// ListApplicable evaluates every candidate against the cart and returns the
// applicable ones along with the largest discount among them. Candidates that
// cannot be redeemed or fail to evaluate are reported in Skipped; they never
// fail the listing. Only an invalid cart is an error.
func (e *Engine) ListApplicable(lines []Line, candidates []Coupon, usage *UserUsage) (*ListResult, error) {
	cart, err := NormalizeCart(lines)
	if err != nil {
		return nil, err
	}

	now := e.now()
	res := &ListResult{
		Coupons:      []Evaluation{},
		CartTotal:    Round(cart.Total),
		BestDiscount: zero,
	}
	for i := range candidates {
		c := &candidates[i]
		r := evaluateCandidate(c, cart, usage, now)
		switch {
		case r.skip != nil:
			res.Skipped = append(res.Skipped, Skip{CouponID: c.ID, Code: c.Code, Reason: r.skip})
		case r.eval.Applicable:
			res.Coupons = append(res.Coupons, *r.eval)
			if r.eval.TotalDiscount.GreaterThan(res.BestDiscount) {
				res.BestDiscount = r.eval.TotalDiscount
			}
		}
	}
	return res, nil
}

func evaluateCandidate(c *Coupon, cart *Cart, usage *UserUsage, now time.Time) candidate {
	if err := checkEligible(c, usage, now); err != nil {
		return candidate{skip: err}
	}
	s, err := strategyFor(c)
	if err != nil {
		return candidate{skip: err}
	}
	out := s.evaluate(c, cart)
	return candidate{eval: evaluation(c, out)}
}

// Apply applies c to the cart. Any eligibility failure is returned as
// *InvalidCouponError, a cart the coupon's rule rejects as
// *CouponNotApplicableError. Apply does not record usage.
func (e *Engine) Apply(lines []Line, c *Coupon, usage *UserUsage) (*Application, error) {
	cart, err := NormalizeCart(lines)
	if err != nil {
		return nil, err
	}
	if err := checkEligible(c, usage, e.now()); err != nil {
		return nil, err
	}
	s, err := strategyFor(c)
	if err != nil {
		return nil, err
	}

	out := s.evaluate(c, cart)
	if !out.applicable {
		return nil, &CouponNotApplicableError{
			CouponID: c.ID,
			Reason:   "coupon is not applicable to this cart: " + out.message,
		}
	}

	discount := Round(out.total)
	return &Application{
		Coupon:          AppliedCoupon{ID: c.ID, Code: c.Code, Type: c.Type()},
		OriginalTotal:   Round(cart.Total),
		DiscountApplied: discount,
		FinalTotal:      Round(ClampNonNegative(cart.Total, out.total)),
		Lines:           allocations(cart, out.lines),
	}, nil
}

// evaluation rounds a raw outcome into an Evaluation.
func evaluation(c *Coupon, out outcome) *Evaluation {
	ev := &Evaluation{
		CouponID:      c.ID,
		Code:          c.Code,
		Name:          c.Name,
		Type:          c.Type(),
		Applicable:    out.applicable,
		TotalDiscount: zero,
		Message:       out.message,
	}
	if !out.applicable {
		return ev
	}

	ev.TotalDiscount = Round(out.total)
	b := out.breakdown
	b.CartTotal = Round(b.CartTotal)
	b.DiscountAmount = Round(b.DiscountAmount)
	if b.ProductDiscounts != nil {
		rounded := make(map[int64]decimal.Decimal, len(b.ProductDiscounts))
		for id, d := range b.ProductDiscounts {
			rounded[id] = Round(d)
		}
		b.ProductDiscounts = rounded
	}
	ev.Breakdown = &b
	return ev
}

// allocations rounds raw per-line discounts. The discounted amount is derived
// from the rounded figures so the two always reconcile.
func allocations(cart *Cart, discounts []decimal.Decimal) []LineAllocation {
	out := make([]LineAllocation, len(cart.Lines))
	for i, l := range cart.Lines {
		original := Round(l.Amount())
		applied := zero
		if i < len(discounts) {
			applied = decimal.Min(Round(discounts[i]), original)
		}
		out[i] = LineAllocation{
			ProductID:        l.ProductID,
			ProductName:      l.ProductName,
			Quantity:         l.Quantity,
			UnitPrice:        l.UnitPrice,
			OriginalAmount:   original,
			DiscountedAmount: ClampNonNegative(original, applied),
			DiscountApplied:  applied,
		}
	}
	return out
}
