// Package codec implements the JSON wire format of the coupon API, the
// applied-coupon events and the bulk import files.
//
// Monetary amounts are written as JSON numbers with exactly two fractional
// digits and read from either numbers or numeric strings.
package codec

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// localLayout is accepted for timestamps without a zone, read as UTC.
const localLayout = "2006-01-02T15:04:05"

// DecodeError reports malformed input: invalid JSON or a field of the wrong
// type.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed JSON: %v", e.Err)
	}
	return fmt.Sprintf("invalid value for %q: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func fieldError(field string, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Field: field, Err: err}
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.Errorf("expected number, got %s", d.Next())
	}
}

func decodeOptDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptInt(d *jx.Decoder) (*int, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptInt64(d *jx.Decoder) (*int64, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeIDs(d *jx.Decoder) ([]int64, error) {
	var ids []int64
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	err := d.Arr(func(d *jx.Decoder) error {
		id, err := d.Int64()
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

// ParseTime accepts RFC 3339 timestamps and zone-less local timestamps, which
// are read as UTC.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(localLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, errors.Errorf("unsupported time format %q", s)
	}
	return t, nil
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	if d.Next() == jx.Null {
		return time.Time{}, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return ParseTime(s)
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.StringFixed(2)))
}

// encodeDecimal writes v without forcing a scale, for values that are not
// amounts of money such as percentages.
func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.String()))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeOptInt(e *jx.Encoder, name string, v *int) {
	e.FieldStart(name)
	if v == nil {
		e.Null()
		return
	}
	e.Int(*v)
}

func encodeIDs(e *jx.Encoder, ids []int64) {
	e.ArrStart()
	for _, id := range ids {
		e.Int64(id)
	}
	e.ArrEnd()
}

// EncodeError encodes the body of an error response.
func EncodeError(title, message string) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("error")
	e.Str(title)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	return clone(e)
}

// clone copies the encoder buffer so the encoder can be returned to the pool.
func clone(e *jx.Encoder) []byte {
	return append([]byte(nil), e.Bytes()...)
}
