package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const (
	couponColumns = `id, code, name, type, discount_type, discount_value, is_active, start_date, end_date,
		max_usage, current_usage, max_usage_per_user,
		min_cart_amount, max_discount_amount,
		product_ids, min_quantity, max_quantity,
		buy_product_ids, buy_quantity, get_product_ids, get_quantity, repetition_limit, bxgy_discount_type,
		created_at, updated_at`

	findActiveCandidatesSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE is_active AND start_date <= $1 AND end_date >= $1 ORDER BY id`

	findCouponByIDSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE ($1::boolean IS NULL OR is_active = $1) AND ($2::text IS NULL OR type = $2)
		ORDER BY id LIMIT $3 OFFSET $4`

	countCouponsSQL = `SELECT COUNT(*) FROM coupons
		WHERE ($1::boolean IS NULL OR is_active = $1) AND ($2::text IS NULL OR type = $2)`

	couponExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE code = $1)`

	insertCouponSQL = `INSERT INTO coupons (code, name, type, discount_type, discount_value, is_active,
		start_date, end_date, max_usage, max_usage_per_user,
		min_cart_amount, max_discount_amount, product_ids, min_quantity, max_quantity,
		buy_product_ids, buy_quantity, get_product_ids, get_quantity, repetition_limit, bxgy_discount_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	createCouponSQL = insertCouponSQL + ` RETURNING id, current_usage, created_at, updated_at`

	upsertCouponSQL = insertCouponSQL + ` ON CONFLICT (code) DO UPDATE SET
		name = EXCLUDED.name, type = EXCLUDED.type, discount_type = EXCLUDED.discount_type,
		discount_value = EXCLUDED.discount_value, is_active = EXCLUDED.is_active,
		start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date,
		max_usage = EXCLUDED.max_usage, max_usage_per_user = EXCLUDED.max_usage_per_user,
		min_cart_amount = EXCLUDED.min_cart_amount, max_discount_amount = EXCLUDED.max_discount_amount,
		product_ids = EXCLUDED.product_ids, min_quantity = EXCLUDED.min_quantity, max_quantity = EXCLUDED.max_quantity,
		buy_product_ids = EXCLUDED.buy_product_ids, buy_quantity = EXCLUDED.buy_quantity,
		get_product_ids = EXCLUDED.get_product_ids, get_quantity = EXCLUDED.get_quantity,
		repetition_limit = EXCLUDED.repetition_limit, bxgy_discount_type = EXCLUDED.bxgy_discount_type,
		updated_at = NOW()
		RETURNING id, current_usage, created_at, updated_at`

	updateCouponSQL = `UPDATE coupons SET code = $2, name = $3, type = $4, discount_type = $5,
		discount_value = $6, is_active = $7, start_date = $8, end_date = $9,
		max_usage = $10, max_usage_per_user = $11,
		min_cart_amount = $12, max_discount_amount = $13, product_ids = $14, min_quantity = $15, max_quantity = $16,
		buy_product_ids = $17, buy_quantity = $18, get_product_ids = $19, get_quantity = $20,
		repetition_limit = $21, bxgy_discount_type = $22, updated_at = NOW()
		WHERE id = $1
		RETURNING current_usage, updated_at`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL. All
// variants share the coupons table; the type column selects the rule.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindActiveCandidates returns active coupons whose window contains now,
// ordered by id.
func (r *CouponRepository) FindActiveCandidates(ctx context.Context, now time.Time) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findActiveCandidatesSQL, now)
	if err != nil {
		return nil, errors.Wrap(err, "query active coupons")
	}
	out, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, errors.Wrap(err, "scan active coupons")
	}
	return out, nil
}

// FindByID returns the coupon with the given id or *coupon.CouponNotFoundError.
func (r *CouponRepository) FindByID(ctx context.Context, id int64) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get coupon %d", id)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &coupon.CouponNotFoundError{ID: id}
		}
		return nil, errors.Wrapf(err, "get coupon %d", id)
	}
	return &c, nil
}

// Create inserts c and fills in its generated fields.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	err := r.pool.QueryRow(ctx, createCouponSQL, couponArgs(c)...).
		Scan(&c.ID, &c.CurrentUsage, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &coupon.DuplicateCouponCodeError{Code: c.Code}
		}
		return errors.Wrapf(err, "create coupon %q", c.Code)
	}
	return nil
}

// Update replaces the definition stored under c.ID. The usage counter is
// owned by UsageRepository and never written here.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	args := append([]any{c.ID}, couponArgs(c)...)
	err := r.pool.QueryRow(ctx, updateCouponSQL, args...).Scan(&c.CurrentUsage, &c.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return &coupon.CouponNotFoundError{ID: c.ID}
	case isUniqueViolation(err):
		return &coupon.DuplicateCouponCodeError{Code: c.Code}
	default:
		return errors.Wrapf(err, "update coupon %d", c.ID)
	}
}

// Delete removes the coupon. Its usage rows are removed by cascade.
func (r *CouponRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete coupon %d", id)
	}
	if tag.RowsAffected() == 0 {
		return &coupon.CouponNotFoundError{ID: id}
	}
	return nil
}

// List returns one page of coupons ordered by id.
func (r *CouponRepository) List(ctx context.Context, f coupon.ListFilter) (*coupon.Page, error) {
	var typ *string
	if f.Type != nil {
		s := string(*f.Type)
		typ = &s
	}

	var total int
	if err := r.pool.QueryRow(ctx, countCouponsSQL, f.Active, typ).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count coupons")
	}

	rows, err := r.pool.Query(ctx, listCouponsSQL, f.Active, typ, f.Size, f.Page*f.Size)
	if err != nil {
		return nil, errors.Wrap(err, "query coupons")
	}
	items, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, errors.Wrap(err, "scan coupons")
	}

	return &coupon.Page{Items: items, Page: f.Page, Size: f.Size, Total: total}, nil
}

// ExistsByCode reports whether a coupon uses code.
func (r *CouponRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, couponExistsSQL, code).Scan(&exists); err != nil {
		return false, errors.Wrapf(err, "check code %q", code)
	}
	return exists, nil
}

// UpsertByCode inserts c or replaces the definition stored under c.Code,
// keeping the stored usage counter.
func (r *CouponRepository) UpsertByCode(ctx context.Context, c *coupon.Coupon) error {
	err := r.pool.QueryRow(ctx, upsertCouponSQL, couponArgs(c)...).
		Scan(&c.ID, &c.CurrentUsage, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "upsert coupon %q", c.Code)
	}
	return nil
}

// couponArgs returns the insert parameters $1..$21 of c.
func couponArgs(c *coupon.Coupon) []any {
	var (
		minCart, maxDiscount       *decimal.Decimal
		productIDs, buyIDs, getIDs []int64
		minQty, maxQty             *int
		buyQty, getQty, repetition *int
		bxgyDiscountType           *string
	)
	switch r := c.Rule.(type) {
	case *coupon.CartWiseRule:
		minCart = &r.MinCartAmount
		maxDiscount = r.MaxDiscountAmount
	case *coupon.ProductWiseRule:
		productIDs = []int64(r.ProductIDs)
		minQty = r.MinQuantity
		maxQty = r.MaxQuantity
	case *coupon.BxGyRule:
		buyIDs = []int64(r.BuyProductIDs)
		getIDs = []int64(r.GetProductIDs)
		buyQty = &r.BuyQuantity
		getQty = &r.GetQuantity
		repetition = &r.RepetitionLimit
		dt := string(r.DiscountType)
		bxgyDiscountType = &dt
	}

	return []any{
		c.Code, c.Name, string(c.Type()), string(c.DiscountType), c.DiscountValue, c.Active,
		c.StartDate, c.EndDate, c.MaxUsage, c.MaxUsagePerUser,
		minCart, maxDiscount, productIDs, minQty, maxQty,
		buyIDs, buyQty, getIDs, getQty, repetition, bxgyDiscountType,
	}
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c                          coupon.Coupon
		typ, discountType          string
		minCart, maxDiscount       *decimal.Decimal
		productIDs, buyIDs, getIDs []int64
		minQty, maxQty             *int
		buyQty, getQty, repetition *int
		bxgyDiscountType           *string
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Name, &typ, &discountType, &c.DiscountValue, &c.Active, &c.StartDate, &c.EndDate,
		&c.MaxUsage, &c.CurrentUsage, &c.MaxUsagePerUser,
		&minCart, &maxDiscount,
		&productIDs, &minQty, &maxQty,
		&buyIDs, &buyQty, &getIDs, &getQty, &repetition, &bxgyDiscountType,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	c.DiscountType = coupon.DiscountType(discountType)

	switch coupon.Type(typ) {
	case coupon.TypeCartWise:
		r := &coupon.CartWiseRule{MaxDiscountAmount: maxDiscount}
		if minCart != nil {
			r.MinCartAmount = *minCart
		}
		c.Rule = r
	case coupon.TypeProductWise:
		c.Rule = &coupon.ProductWiseRule{
			ProductIDs:  coupon.NewProductSet(productIDs...),
			MinQuantity: minQty,
			MaxQuantity: maxQty,
		}
	case coupon.TypeBxGy:
		r := &coupon.BxGyRule{
			BuyProductIDs:   coupon.NewProductSet(buyIDs...),
			BuyQuantity:     valueOr(buyQty),
			GetProductIDs:   coupon.NewProductSet(getIDs...),
			GetQuantity:     valueOr(getQty),
			RepetitionLimit: valueOr(repetition),
		}
		if bxgyDiscountType != nil {
			r.DiscountType = coupon.BxGyDiscountType(*bxgyDiscountType)
		}
		c.Rule = r
	default:
		return c, errors.Errorf("coupon %d: unknown type %q", c.ID, typ)
	}
	return c, nil
}

func valueOr(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
