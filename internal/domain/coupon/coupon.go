package coupon

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Type is the discriminator of a coupon definition.
type Type string

const (
	// TypeCartWise gates the discount on the total cart value.
	TypeCartWise Type = "CART_WISE"
	// TypeProductWise discounts specific product lines.
	TypeProductWise Type = "PRODUCT_WISE"
	// TypeBxGy grants discounted "get" units for purchased "buy" units.
	TypeBxGy Type = "BXGY"
)

// ParseType returns the Type named by s.
func ParseType(s string) (Type, bool) {
	switch t := Type(s); t {
	case TypeCartWise, TypeProductWise, TypeBxGy:
		return t, true
	}
	return "", false
}

// DiscountType enumerates how a coupon's discount value is interpreted.
type DiscountType string

const (
	// DiscountPercentage treats the value as a percentage in (0, 100].
	DiscountPercentage DiscountType = "PERCENTAGE"
	// DiscountFixedAmount treats the value as a monetary amount.
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

// BxGyDiscountType enumerates how the "get" units of a BxGy deal are discounted.
type BxGyDiscountType string

const (
	// BxGyFree makes the get units free.
	BxGyFree BxGyDiscountType = "FREE"
	// BxGyPercentage takes a percentage off the get units.
	BxGyPercentage BxGyDiscountType = "PERCENTAGE"
	// BxGyFixedAmountPerUnit takes a fixed amount off every get unit.
	BxGyFixedAmountPerUnit BxGyDiscountType = "FIXED_AMOUNT"
)

// Coupon is a coupon definition: common fields shared by every variant plus
// the variant specific Rule.
type Coupon struct {
	ID              int64
	Code            string
	Name            string
	DiscountType    DiscountType
	DiscountValue   decimal.Decimal
	Active          bool
	StartDate       time.Time
	EndDate         time.Time
	MaxUsage        *int // nil means unlimited
	CurrentUsage    int
	MaxUsagePerUser *int // nil means unlimited
	Rule            Rule
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Type returns the coupon type derived from its rule.
func (c *Coupon) Type() Type {
	if c.Rule == nil {
		return ""
	}
	return c.Rule.Type()
}

// Rule is the variant specific part of a coupon. The set of implementations is
// closed: CartWiseRule, ProductWiseRule and BxGyRule.
type Rule interface {
	Type() Type
	validate() error
	strategy() strategy
}

// CartWiseRule discounts the whole cart once its total reaches MinCartAmount.
type CartWiseRule struct {
	MinCartAmount     decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
}

// ProductWiseRule discounts lines of the listed products.
type ProductWiseRule struct {
	ProductIDs  ProductSet
	MinQuantity *int
	MaxQuantity *int // cap on the discounted quantity per line
}

// BxGyRule grants discounted GetProductIDs units for every BuyQuantity units
// of BuyProductIDs, up to RepetitionLimit times.
type BxGyRule struct {
	BuyProductIDs   ProductSet
	BuyQuantity     int
	GetProductIDs   ProductSet
	GetQuantity     int
	RepetitionLimit int
	DiscountType    BxGyDiscountType
}

func (*CartWiseRule) Type() Type    { return TypeCartWise }
func (*ProductWiseRule) Type() Type { return TypeProductWise }
func (*BxGyRule) Type() Type        { return TypeBxGy }

// ProductSet is a set of product identifiers.
type ProductSet []int64

// NewProductSet returns a sorted set without duplicates.
func NewProductSet(ids ...int64) ProductSet {
	s := slices.Clone(ids)
	slices.Sort(s)
	return slices.Compact(s)
}

// Contains reports whether id is in the set.
func (s ProductSet) Contains(id int64) bool {
	return slices.Contains(s, id)
}

// Intersect returns the products present in both sets.
func (s ProductSet) Intersect(other ProductSet) ProductSet {
	var out ProductSet
	for _, id := range s {
		if other.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// Line is a single cart line.
type Line struct {
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Amount returns UnitPrice * Quantity without rounding.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// UserUsage is a snapshot of how many times a user has redeemed each coupon.
type UserUsage struct {
	UserID int64
	Counts map[int64]int // coupon id -> redemptions
}

// Count returns the number of redemptions of couponID.
func (u *UserUsage) Count(couponID int64) int {
	if u == nil {
		return 0
	}
	return u.Counts[couponID]
}

// Usage is a single redemption record.
type Usage struct {
	CouponID       int64
	UserID         *int64
	CartID         string
	DiscountAmount decimal.Decimal
	UsedAt         time.Time
}

// ListFilter narrows and paginates coupon listings.
type ListFilter struct {
	Active *bool
	Type   *Type
	Page   int // 0-based
	Size   int
}

// Page is a single page of coupons.
type Page struct {
	Items []Coupon
	Page  int
	Size  int
	Total int
}

// TotalPages returns the number of pages for Total items.
func (p *Page) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

// AppliedEvent describes a successful application.
type AppliedEvent struct {
	CouponID       int64
	CouponCode     string
	CouponType     Type
	UserID         *int64
	CartID         string
	DiscountAmount decimal.Decimal
	FinalTotal     decimal.Decimal
	AppliedAt      time.Time
}

// Repository provides storage of coupon definitions.
type Repository interface {
	// FindActiveCandidates returns active coupons whose date window contains
	// now. Usage caps are not considered.
	FindActiveCandidates(ctx context.Context, now time.Time) ([]Coupon, error)
	FindByID(ctx context.Context, id int64) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f ListFilter) (*Page, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	// UpsertByCode inserts c or replaces the definition stored under c.Code.
	UpsertByCode(ctx context.Context, c *Coupon) error
}

// UsageRepository provides usage counting and recording.
type UsageRepository interface {
	// CountByUser returns redemption counts of userID per coupon id.
	CountByUser(ctx context.Context, userID int64, couponIDs []int64) (map[int64]int, error)
	// Record atomically rechecks the coupon's caps, increments its usage
	// counter and stores u.
	Record(ctx context.Context, u Usage) error
}

// Publisher announces successful applications.
type Publisher interface {
	PublishApplied(ctx context.Context, e AppliedEvent) error
}
