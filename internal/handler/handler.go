// Package handler exposes the coupon service over HTTP.
package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/coupon-engine/internal/codec"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Service is the subset of *coupon.Service used by the handlers.
type Service interface {
	ListApplicable(ctx context.Context, req coupon.CartRequest) (*coupon.ListResult, error)
	Apply(ctx context.Context, couponID int64, req coupon.CartRequest) (*coupon.ApplyResult, error)

	Create(ctx context.Context, c *coupon.Coupon) (*coupon.Coupon, error)
	Get(ctx context.Context, id int64) (*coupon.Coupon, error)
	List(ctx context.Context, f coupon.ListFilter) (*coupon.Page, error)
	Update(ctx context.Context, id int64, c *coupon.Coupon) (*coupon.Coupon, error)
	Delete(ctx context.Context, id int64) error
}

var _ Service = (*coupon.Service)(nil)

// Handler serves the /api/coupons routes.
type Handler struct {
	svc Service
}

// New creates a Handler backed by svc.
func New(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the coupon routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/coupons", func(r chi.Router) {
		r.Post("/", h.CreateCoupon)
		r.Get("/", h.ListCoupons)
		r.Post("/applicable-coupons", h.ApplicableCoupons)
		r.Post("/apply-coupon/{couponId}", h.ApplyCoupon)
		r.Get("/{id}", h.GetCoupon)
		r.Put("/{id}", h.UpdateCoupon)
		r.Delete("/{id}", h.DeleteCoupon)
	})
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &codec.DecodeError{Err: errors.Wrap(err, "read body")}
	}
	return data, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &codec.DecodeError{Field: name, Err: errors.Errorf("invalid id %q", raw)}
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
