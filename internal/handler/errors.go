package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/codec"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// writeError maps err to a status and the {"error","message"} body.
// Unexpected errors are logged and reported without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, title, msg := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, codec.EncodeError(title, msg))
}

func classify(err error) (status int, title, msg string) {
	var (
		notFound      *coupon.CouponNotFoundError
		invalidCoupon *coupon.InvalidCouponError
		invalidCart   *coupon.InvalidCartError
		duplicate     *coupon.DuplicateCouponCodeError
		notApplicable *coupon.CouponNotApplicableError
		decode        *codec.DecodeError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, "Coupon not found", notFound.Error()
	case errors.As(err, &invalidCoupon):
		return http.StatusBadRequest, "Invalid coupon", invalidCoupon.Error()
	case errors.As(err, &invalidCart):
		return http.StatusBadRequest, "Invalid coupon", invalidCart.Error()
	case errors.As(err, &duplicate):
		return http.StatusConflict, "Duplicate coupon code", duplicate.Error()
	case errors.As(err, &notApplicable):
		return http.StatusBadRequest, "Coupon not applicable", notApplicable.Error()
	case errors.As(err, &decode):
		return http.StatusBadRequest, "Validation failed", decode.Error()
	default:
		return http.StatusInternalServerError, "Internal server error", "An unexpected error occurred"
	}
}
