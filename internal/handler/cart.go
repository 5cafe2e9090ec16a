package handler

import (
	"net/http"

	"github.com/xenking/coupon-engine/internal/codec"
)

// ApplicableCoupons handles POST /api/coupons/applicable-coupons.
func (h *Handler) ApplicableCoupons(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := codec.DecodeCart(data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.ListApplicable(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.EncodeApplicable(res))
}

// ApplyCoupon handles POST /api/coupons/apply-coupon/{couponId}.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "couponId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := codec.DecodeCart(data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Apply(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.EncodeApplied(res))
}
