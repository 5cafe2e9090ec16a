package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const (
	countUsageByUserSQL = `SELECT coupon_id, COUNT(*) FROM coupon_usages
		WHERE user_id = $1 AND coupon_id = ANY($2)
		GROUP BY coupon_id`

	lockCouponCapsSQL = `SELECT max_usage, current_usage, max_usage_per_user
		FROM coupons WHERE id = $1 FOR UPDATE`

	countUserCouponUsageSQL = `SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`

	incrementUsageSQL = `UPDATE coupons SET current_usage = current_usage + 1 WHERE id = $1`

	insertUsageSQL = `INSERT INTO coupon_usages (coupon_id, user_id, cart_id, discount_amount, used_at)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ coupon.UsageRepository = (*UsageRepository)(nil)

// UsageRepository implements coupon.UsageRepository backed by PostgreSQL.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// CountByUser returns the redemption counts of userID for couponIDs. Coupons
// the user never redeemed are absent from the map.
func (r *UsageRepository) CountByUser(ctx context.Context, userID int64, couponIDs []int64) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, countUsageByUserSQL, userID, couponIDs)
	if err != nil {
		return nil, errors.Wrap(err, "query usage counts")
	}
	defer rows.Close()

	counts := make(map[int64]int, len(couponIDs))
	for rows.Next() {
		var (
			id    int64
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, errors.Wrap(err, "scan usage count")
		}
		counts[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate usage counts")
	}
	return counts, nil
}

// Record stores u and increments the coupon's usage counter in a single
// transaction. The coupon row is locked while its caps are rechecked, so
// concurrent redemptions cannot exceed them.
func (r *UsageRepository) Record(ctx context.Context, u coupon.Usage) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			maxUsage, maxPerUser *int
			current              int
		)
		err := tx.QueryRow(ctx, lockCouponCapsSQL, u.CouponID).Scan(&maxUsage, &current, &maxPerUser)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &coupon.CouponNotFoundError{ID: u.CouponID}
			}
			return errors.Wrap(err, "lock coupon")
		}

		if maxUsage != nil && current >= *maxUsage {
			return &coupon.InvalidCouponError{Reason: "coupon usage limit exceeded"}
		}
		if u.UserID != nil && maxPerUser != nil {
			var used int
			if err := tx.QueryRow(ctx, countUserCouponUsageSQL, u.CouponID, *u.UserID).Scan(&used); err != nil {
				return errors.Wrap(err, "count user usage")
			}
			if used >= *maxPerUser {
				return &coupon.InvalidCouponError{Reason: "user has exceeded the usage limit for this coupon"}
			}
		}

		if _, err := tx.Exec(ctx, incrementUsageSQL, u.CouponID); err != nil {
			return errors.Wrap(err, "increment usage")
		}
		if _, err := tx.Exec(ctx, insertUsageSQL, u.CouponID, u.UserID, u.CartID, u.DiscountAmount, u.UsedAt); err != nil {
			return errors.Wrap(err, "insert usage")
		}
		return nil
	})
}
