package codec

import (
	"maps"
	"slices"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// DecodeCart decodes a cart request:
//
//	{"userId": 1, "cartItems": [{"productId": 1, "productName": "", "quantity": 2, "unitPrice": 9.99}]}
//
// Missing numeric fields decode as zero and are rejected by cart validation.
func DecodeCart(data []byte) (coupon.CartRequest, error) {
	var req coupon.CartRequest
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "userId":
			v, err := decodeOptInt64(d)
			if err != nil {
				return fieldError("userId", err)
			}
			req.UserID = v
		case "cartItems":
			lines, err := decodeLines(d)
			if err != nil {
				return err
			}
			req.Lines = lines
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return coupon.CartRequest{}, fieldError("", err)
	}
	return req, nil
}

func decodeLines(d *jx.Decoder) ([]coupon.Line, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var lines []coupon.Line
	err := d.Arr(func(d *jx.Decoder) error {
		field := "cartItems[" + strconv.Itoa(len(lines)) + "]"
		var l coupon.Line
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "productId":
				l.ProductID, err = d.Int64()
			case "productName":
				if d.Next() == jx.Null {
					return d.Null()
				}
				l.ProductName, err = d.Str()
			case "quantity":
				l.Quantity, err = d.Int()
			case "unitPrice":
				l.UnitPrice, err = decodeDecimal(d)
			default:
				return d.Skip()
			}
			if err != nil {
				return fieldError(field+"."+key, err)
			}
			return nil
		}); err != nil {
			return err
		}
		lines = append(lines, l)
		return nil
	})
	return lines, err
}

// EncodeApplicable encodes the applicable coupons of a cart.
func EncodeApplicable(res *coupon.ListResult) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("applicableCoupons")
	e.ArrStart()
	for i := range res.Coupons {
		encodeEvaluation(e, &res.Coupons[i])
	}
	e.ArrEnd()
	e.FieldStart("cartTotal")
	encodeMoney(e, res.CartTotal)
	e.FieldStart("bestDiscount")
	encodeMoney(e, res.BestDiscount)
	e.ObjEnd()
	return clone(e)
}

func encodeEvaluation(e *jx.Encoder, ev *coupon.Evaluation) {
	e.ObjStart()
	e.FieldStart("couponId")
	e.Int64(ev.CouponID)
	e.FieldStart("couponCode")
	e.Str(ev.Code)
	e.FieldStart("couponName")
	e.Str(ev.Name)
	e.FieldStart("couponType")
	e.Str(string(ev.Type))
	e.FieldStart("totalDiscount")
	encodeMoney(e, ev.TotalDiscount)
	if ev.Breakdown != nil {
		e.FieldStart("discountBreakdown")
		encodeBreakdown(e, ev.Breakdown)
	}
	e.FieldStart("isApplicable")
	e.Bool(ev.Applicable)
	e.FieldStart("applicabilityMessage")
	e.Str(ev.Message)
	e.ObjEnd()
}

func encodeBreakdown(e *jx.Encoder, b *coupon.Breakdown) {
	e.ObjStart()
	e.FieldStart("cartTotal")
	encodeMoney(e, b.CartTotal)
	if b.DiscountPercentage != nil {
		e.FieldStart("discountPercentage")
		encodeDecimal(e, *b.DiscountPercentage)
	}
	e.FieldStart("discountAmount")
	encodeMoney(e, b.DiscountAmount)
	if b.ProductDiscounts != nil {
		e.FieldStart("productDiscounts")
		e.ObjStart()
		for _, id := range slices.Sorted(maps.Keys(b.ProductDiscounts)) {
			e.FieldStart(strconv.FormatInt(id, 10))
			encodeMoney(e, b.ProductDiscounts[id])
		}
		e.ObjEnd()
	}
	if b.BxGy != nil {
		e.FieldStart("buyQuantity")
		e.Int(b.BxGy.BuyQuantity)
		e.FieldStart("getQuantity")
		e.Int(b.BxGy.GetQuantity)
		e.FieldStart("applications")
		e.Int(b.BxGy.Applications)
	}
	e.ObjEnd()
}

// EncodeApplied encodes the cart after a coupon was applied.
func EncodeApplied(res *coupon.ApplyResult) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("cartId")
	e.Str(res.CartID)
	e.FieldStart("originalTotal")
	encodeMoney(e, res.OriginalTotal)
	e.FieldStart("discountApplied")
	encodeMoney(e, res.DiscountApplied)
	e.FieldStart("finalTotal")
	encodeMoney(e, res.FinalTotal)

	e.FieldStart("appliedCoupon")
	e.ObjStart()
	e.FieldStart("couponId")
	e.Int64(res.Coupon.ID)
	e.FieldStart("couponCode")
	e.Str(res.Coupon.Code)
	e.FieldStart("couponType")
	e.Str(string(res.Coupon.Type))
	e.ObjEnd()

	e.FieldStart("cartItems")
	e.ArrStart()
	for _, l := range res.Lines {
		e.ObjStart()
		e.FieldStart("productId")
		e.Int64(l.ProductID)
		e.FieldStart("productName")
		e.Str(l.ProductName)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unitPrice")
		encodeMoney(e, l.UnitPrice)
		e.FieldStart("originalPrice")
		encodeMoney(e, l.OriginalAmount)
		e.FieldStart("discountedPrice")
		encodeMoney(e, l.DiscountedAmount)
		e.FieldStart("discountApplied")
		encodeMoney(e, l.DiscountApplied)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	return clone(e)
}
