package codec

import (
	"github.com/go-faster/jx"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// EncodeAppliedEvent encodes the payload of a coupon-applied event.
func EncodeAppliedEvent(ev coupon.AppliedEvent) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("couponId")
	e.Int64(ev.CouponID)
	e.FieldStart("couponCode")
	e.Str(ev.CouponCode)
	e.FieldStart("couponType")
	e.Str(string(ev.CouponType))
	if ev.UserID != nil {
		e.FieldStart("userId")
		e.Int64(*ev.UserID)
	}
	e.FieldStart("cartId")
	e.Str(ev.CartID)
	e.FieldStart("discountAmount")
	encodeMoney(e, ev.DiscountAmount)
	e.FieldStart("finalTotal")
	encodeMoney(e, ev.FinalTotal)
	e.FieldStart("appliedAt")
	e.Str(ev.AppliedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	e.ObjEnd()
	return clone(e)
}
