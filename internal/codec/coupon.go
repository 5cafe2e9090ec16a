package codec

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// variantFields holds the variant specific fields of a coupon definition
// until the type is known.
type variantFields struct {
	minCartAmount     *decimal.Decimal
	maxDiscountAmount *decimal.Decimal

	productIDs  []int64
	minQuantity *int
	maxQuantity *int

	buyProductIDs    []int64
	buyQuantity      *int
	getProductIDs    []int64
	getQuantity      *int
	repetitionLimit  *int
	bxgyDiscountType string
}

// DecodeCoupon decodes a coupon definition. The rule is built from the
// fields matching "type"; fields of other variants are ignored. Only the
// shape is checked here, see coupon.ValidateDefinition for the rest.
func DecodeCoupon(data []byte) (*coupon.Coupon, error) {
	c := &coupon.Coupon{Active: true}
	var (
		typ string
		v   variantFields
	)

	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			c.Code, err = d.Str()
		case "name":
			c.Name, err = d.Str()
		case "type":
			typ, err = d.Str()
		case "discountType":
			var s string
			s, err = d.Str()
			c.DiscountType = coupon.DiscountType(s)
		case "discountValue":
			c.DiscountValue, err = decodeDecimal(d)
		case "isActive":
			if d.Next() == jx.Null {
				return d.Null()
			}
			c.Active, err = d.Bool()
		case "startDate":
			c.StartDate, err = decodeTime(d)
		case "endDate":
			c.EndDate, err = decodeTime(d)
		case "maxUsage":
			c.MaxUsage, err = decodeOptInt(d)
		case "maxUsagePerUser":
			c.MaxUsagePerUser, err = decodeOptInt(d)
		case "minCartAmount":
			v.minCartAmount, err = decodeOptDecimal(d)
		case "maxDiscountAmount":
			v.maxDiscountAmount, err = decodeOptDecimal(d)
		case "applicableProductIds":
			v.productIDs, err = decodeIDs(d)
		case "minQuantity":
			v.minQuantity, err = decodeOptInt(d)
		case "maxQuantity":
			v.maxQuantity, err = decodeOptInt(d)
		case "buyProductIds":
			v.buyProductIDs, err = decodeIDs(d)
		case "buyQuantity":
			v.buyQuantity, err = decodeOptInt(d)
		case "getProductIds":
			v.getProductIDs, err = decodeIDs(d)
		case "getQuantity":
			v.getQuantity, err = decodeOptInt(d)
		case "repetitionLimit":
			v.repetitionLimit, err = decodeOptInt(d)
		case "bxGyDiscountType":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v.bxgyDiscountType, err = d.Str()
		default:
			return d.Skip()
		}
		if err != nil {
			return fieldError(key, err)
		}
		return nil
	})
	if err != nil {
		return nil, fieldError("", err)
	}

	if typ != "" {
		t, ok := coupon.ParseType(typ)
		if !ok {
			return nil, &DecodeError{Field: "type", Err: errors.Errorf("unknown coupon type %q", typ)}
		}
		c.Rule = v.rule(t)
	}
	return c, nil
}

func (v *variantFields) rule(t coupon.Type) coupon.Rule {
	switch t {
	case coupon.TypeCartWise:
		r := &coupon.CartWiseRule{MaxDiscountAmount: v.maxDiscountAmount}
		if v.minCartAmount != nil {
			r.MinCartAmount = *v.minCartAmount
		}
		return r
	case coupon.TypeProductWise:
		return &coupon.ProductWiseRule{
			ProductIDs:  coupon.NewProductSet(v.productIDs...),
			MinQuantity: v.minQuantity,
			MaxQuantity: v.maxQuantity,
		}
	default:
		return &coupon.BxGyRule{
			BuyProductIDs:   coupon.NewProductSet(v.buyProductIDs...),
			BuyQuantity:     deref(v.buyQuantity),
			GetProductIDs:   coupon.NewProductSet(v.getProductIDs...),
			GetQuantity:     deref(v.getQuantity),
			RepetitionLimit: deref(v.repetitionLimit),
			DiscountType:    coupon.BxGyDiscountType(v.bxgyDiscountType),
		}
	}
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// EncodeCoupon encodes a stored coupon.
func EncodeCoupon(c *coupon.Coupon) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	encodeCoupon(e, c)
	return clone(e)
}

// EncodePage encodes a page of coupons.
func EncodePage(p *coupon.Page) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("content")
	e.ArrStart()
	for i := range p.Items {
		encodeCoupon(e, &p.Items[i])
	}
	e.ArrEnd()
	e.FieldStart("page")
	e.Int(p.Page)
	e.FieldStart("size")
	e.Int(p.Size)
	e.FieldStart("totalElements")
	e.Int(p.Total)
	e.FieldStart("totalPages")
	e.Int(p.TotalPages())
	e.ObjEnd()
	return clone(e)
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(c.ID)
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("name")
	e.Str(c.Name)
	e.FieldStart("type")
	e.Str(string(c.Type()))
	e.FieldStart("discountType")
	e.Str(string(c.DiscountType))
	e.FieldStart("discountValue")
	encodeMoney(e, c.DiscountValue)
	e.FieldStart("isActive")
	e.Bool(c.Active)
	e.FieldStart("startDate")
	encodeTime(e, c.StartDate)
	e.FieldStart("endDate")
	encodeTime(e, c.EndDate)
	encodeOptInt(e, "maxUsage", c.MaxUsage)
	e.FieldStart("currentUsage")
	e.Int(c.CurrentUsage)
	encodeOptInt(e, "maxUsagePerUser", c.MaxUsagePerUser)
	if !c.CreatedAt.IsZero() {
		e.FieldStart("createdAt")
		encodeTime(e, c.CreatedAt)
	}
	if !c.UpdatedAt.IsZero() {
		e.FieldStart("updatedAt")
		encodeTime(e, c.UpdatedAt)
	}

	switch r := c.Rule.(type) {
	case *coupon.CartWiseRule:
		e.FieldStart("minCartAmount")
		encodeMoney(e, r.MinCartAmount)
		if r.MaxDiscountAmount != nil {
			e.FieldStart("maxDiscountAmount")
			encodeMoney(e, *r.MaxDiscountAmount)
		}
	case *coupon.ProductWiseRule:
		e.FieldStart("applicableProductIds")
		encodeIDs(e, r.ProductIDs)
		encodeOptInt(e, "minQuantity", r.MinQuantity)
		encodeOptInt(e, "maxQuantity", r.MaxQuantity)
	case *coupon.BxGyRule:
		e.FieldStart("buyProductIds")
		encodeIDs(e, r.BuyProductIDs)
		e.FieldStart("buyQuantity")
		e.Int(r.BuyQuantity)
		e.FieldStart("getProductIds")
		encodeIDs(e, r.GetProductIDs)
		e.FieldStart("getQuantity")
		e.Int(r.GetQuantity)
		e.FieldStart("repetitionLimit")
		e.Int(r.RepetitionLimit)
		e.FieldStart("bxGyDiscountType")
		e.Str(string(r.DiscountType))
	}
	e.ObjEnd()
}
