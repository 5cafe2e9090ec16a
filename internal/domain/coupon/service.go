package coupon

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/xenking/coupon-engine/internal/domain/coupon"

// CartRequest is a cart submitted for evaluation, optionally on behalf of a user.
type CartRequest struct {
	UserID *int64
	Lines  []Line
}

// ApplyResult is a recorded application.
type ApplyResult struct {
	CartID string
	*Application
}

// Service runs the engine against stored coupons and records usage.
type Service struct {
	coupons   Repository
	usage     UsageRepository
	publisher Publisher
	engine    *Engine

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	tracer  trace.Tracer
	applied metric.Int64Counter
	skipped metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithTelemetry sets the tracer and meter providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.tracerProvider = tp
		s.meterProvider = mp
	}
}

// NewService creates a Service.
func NewService(coupons Repository, usage UsageRepository, publisher Publisher, opts ...Option) (*Service, error) {
	s := &Service{
		coupons:        coupons,
		usage:          usage,
		publisher:      publisher,
		engine:         NewEngine(),
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	if s.applied, err = meter.Int64Counter("coupon.applications",
		metric.WithDescription("Coupons applied to carts"),
	); err != nil {
		return nil, errors.Wrap(err, "applications counter")
	}
	if s.skipped, err = meter.Int64Counter("coupon.evaluations.skipped",
		metric.WithDescription("Candidate coupons left out of applicable listings"),
	); err != nil {
		return nil, errors.Wrap(err, "skipped counter")
	}
	return s, nil
}

// ListApplicable returns the stored coupons applicable to the cart.
func (s *Service) ListApplicable(ctx context.Context, req CartRequest) (*ListResult, error) {
	ctx, span := s.tracer.Start(ctx, "coupon.ListApplicable")
	defer span.End()

	if _, err := NormalizeCart(req.Lines); err != nil {
		return nil, err
	}

	candidates, err := s.coupons.FindActiveCandidates(ctx, s.engine.now())
	if err != nil {
		return nil, errors.Wrap(err, "find candidates")
	}

	usage, err := s.userUsage(ctx, req.UserID, candidates)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.ListApplicable(req.Lines, candidates, usage)
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx)
	for _, sk := range res.Skipped {
		lg.Debug("Coupon skipped",
			zap.Int64("coupon_id", sk.CouponID),
			zap.String("code", sk.Code),
			zap.Error(sk.Reason),
		)
	}
	s.skipped.Add(ctx, int64(len(res.Skipped)))
	span.SetAttributes(
		attribute.Int("coupon.candidates", len(candidates)),
		attribute.Int("coupon.applicable", len(res.Coupons)),
	)

	return res, nil
}

// Apply applies the coupon to the cart and records the usage. Usage caps are
// enforced again by UsageRepository.Record, so a cap exhausted by a
// concurrent application surfaces as *InvalidCouponError.
func (s *Service) Apply(ctx context.Context, couponID int64, req CartRequest) (*ApplyResult, error) {
	ctx, span := s.tracer.Start(ctx, "coupon.Apply",
		trace.WithAttributes(attribute.Int64("coupon.id", couponID)),
	)
	defer span.End()

	if _, err := NormalizeCart(req.Lines); err != nil {
		return nil, err
	}

	c, err := s.coupons.FindByID(ctx, couponID)
	if err != nil {
		return nil, err
	}

	usage, err := s.userUsage(ctx, req.UserID, []Coupon{*c})
	if err != nil {
		return nil, err
	}

	app, err := s.engine.Apply(req.Lines, c, usage)
	if err != nil {
		return nil, err
	}

	res := &ApplyResult{
		CartID:      newCartID(),
		Application: app,
	}
	now := s.engine.now()
	if err := s.usage.Record(ctx, Usage{
		CouponID:       c.ID,
		UserID:         req.UserID,
		CartID:         res.CartID,
		DiscountAmount: app.DiscountApplied,
		UsedAt:         now,
	}); err != nil {
		var invalid *InvalidCouponError
		if errors.As(err, &invalid) {
			return nil, err
		}
		return nil, errors.Wrap(err, "record usage")
	}

	s.applied.Add(ctx, 1, metric.WithAttributes(attribute.String("coupon.type", string(c.Type()))))

	lg := zctx.From(ctx).With(
		zap.Int64("coupon_id", c.ID),
		zap.String("cart_id", res.CartID),
	)
	if err := s.publisher.PublishApplied(ctx, AppliedEvent{
		CouponID:       c.ID,
		CouponCode:     c.Code,
		CouponType:     c.Type(),
		UserID:         req.UserID,
		CartID:         res.CartID,
		DiscountAmount: app.DiscountApplied,
		FinalTotal:     app.FinalTotal,
		AppliedAt:      now,
	}); err != nil {
		lg.Warn("Publish applied event", zap.Error(err))
	}

	lg.Info("Coupon applied",
		zap.Stringer("discount", app.DiscountApplied),
		zap.Stringer("final_total", app.FinalTotal),
	)
	return res, nil
}

// userUsage loads the redemption counts of the user for the coupons that cap
// usage per user. It returns nil for anonymous carts.
func (s *Service) userUsage(ctx context.Context, userID *int64, coupons []Coupon) (*UserUsage, error) {
	if userID == nil {
		return nil, nil
	}

	ids := make([]int64, 0, len(coupons))
	for _, c := range coupons {
		if c.MaxUsagePerUser != nil {
			ids = append(ids, c.ID)
		}
	}

	usage := &UserUsage{UserID: *userID, Counts: map[int64]int{}}
	if len(ids) == 0 {
		return usage, nil
	}

	counts, err := s.usage.CountByUser(ctx, *userID, ids)
	if err != nil {
		return nil, errors.Wrap(err, "count usage")
	}
	usage.Counts = counts
	return usage, nil
}

func newCartID() string {
	return "cart-" + uuid.NewString()
}
