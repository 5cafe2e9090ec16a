package coupon

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Create validates and stores a new coupon. The usage counter of a new
// coupon always starts at zero.
func (s *Service) Create(ctx context.Context, c *Coupon) (*Coupon, error) {
	if err := ValidateDefinition(c); err != nil {
		return nil, err
	}
	if err := s.ensureCodeFree(ctx, c.Code); err != nil {
		return nil, err
	}

	c.CurrentUsage = 0
	if err := s.coupons.Create(ctx, c); err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Coupon created", zap.Int64("coupon_id", c.ID), zap.String("code", c.Code))
	return c, nil
}

// Get returns the coupon with the given id.
func (s *Service) Get(ctx context.Context, id int64) (*Coupon, error) {
	return s.coupons.FindByID(ctx, id)
}

// List returns a page of coupons matching f.
func (s *Service) List(ctx context.Context, f ListFilter) (*Page, error) {
	if f.Page < 0 {
		f.Page = 0
	}
	switch {
	case f.Size <= 0:
		f.Size = defaultPageSize
	case f.Size > maxPageSize:
		f.Size = maxPageSize
	}

	p, err := s.coupons.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return p, nil
}

// Update replaces the definition of coupon id with c. The coupon type cannot
// change and the usage counter is kept.
func (s *Service) Update(ctx context.Context, id int64, c *Coupon) (*Coupon, error) {
	existing, err := s.coupons.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Rule != nil && c.Type() != existing.Type() {
		return nil, invalidCoupon("coupon type cannot be changed")
	}
	if err := ValidateDefinition(c); err != nil {
		return nil, err
	}
	if c.Code != existing.Code {
		if err := s.ensureCodeFree(ctx, c.Code); err != nil {
			return nil, err
		}
	}

	c.ID = existing.ID
	c.CurrentUsage = existing.CurrentUsage
	c.CreatedAt = existing.CreatedAt
	if err := s.coupons.Update(ctx, c); err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Coupon updated", zap.Int64("coupon_id", c.ID))
	return c, nil
}

// Delete removes the coupon with the given id together with its usage history.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.coupons.Delete(ctx, id); err != nil {
		return err
	}
	zctx.From(ctx).Info("Coupon deleted", zap.Int64("coupon_id", id))
	return nil
}

// Import validates c and stores it under its code, replacing any existing
// definition with that code.
func (s *Service) Import(ctx context.Context, c *Coupon) error {
	if err := ValidateDefinition(c); err != nil {
		return err
	}
	return s.coupons.UpsertByCode(ctx, c)
}

func (s *Service) ensureCodeFree(ctx context.Context, code string) error {
	exists, err := s.coupons.ExistsByCode(ctx, code)
	if err != nil {
		return errors.Wrap(err, "check code")
	}
	if exists {
		return &DuplicateCouponCodeError{Code: code}
	}
	return nil
}
