package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/coupon-engine/internal/codec"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// CreateCoupon handles POST /api/coupons.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCouponBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.svc.Create(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, codec.EncodeCoupon(created))
}

// ListCoupons handles GET /api/coupons.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	f, err := parseListFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.EncodePage(page))
}

// GetCoupon handles GET /api/coupons/{id}.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.EncodeCoupon(c))
}

// UpdateCoupon handles PUT /api/coupons/{id}.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := decodeCouponBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.svc.Update(r.Context(), id, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.EncodeCoupon(updated))
}

// DeleteCoupon handles DELETE /api/coupons/{id}.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeCouponBody(r *http.Request) (*coupon.Coupon, error) {
	data, err := readBody(r)
	if err != nil {
		return nil, err
	}
	return codec.DecodeCoupon(data)
}

func parseListFilter(r *http.Request) (coupon.ListFilter, error) {
	q := r.URL.Query()
	var f coupon.ListFilter

	if v := q.Get("isActive"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return f, &codec.DecodeError{Field: "isActive", Err: err}
		}
		f.Active = &active
	}
	if v := q.Get("type"); v != "" {
		t, ok := coupon.ParseType(v)
		if !ok {
			return f, &codec.DecodeError{Field: "type", Err: errors.Errorf("unknown coupon type %q", v)}
		}
		f.Type = &t
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"page", &f.Page},
		{"size", &f.Size},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, &codec.DecodeError{Field: p.name, Err: err}
		}
		*p.dst = n
	}
	return f, nil
}
