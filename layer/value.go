package layer

import (
	"fmt"
	"math"
	"strconv"
)

// ValueKind is the dynamic type of a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindNumber
	KindText
)

// Value is a typed attribute value: a number, a text or null.
// The zero Value is null.
type Value struct {
	kind ValueKind
	num  float64
	text string
}

// Null returns the null value.
func Null() Value { return Value{} }

// Number returns a numeric value. NaN is stored as null.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// FromAny converts a decoded property (JSON, BSON or SQL) into a Value.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case string:
		return Text(t)
	case []byte:
		return Text(string(t))
	case bool:
		return Text(strconv.FormatBool(t))
	case Value:
		return t
	default:
		return Text(fmt.Sprintf("%v", t))
	}
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric value and whether v is a number.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Interface returns v as a plain Go value (nil, float64 or string),
// suitable for JSON and BSON encoders.
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindText:
		return v.text
	default:
		return nil
	}
}

// Equal reports whether two values are identical. Null equals null.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	}
	return true
}

// Key returns a string usable as a grouping key, unique per distinct value.
func (v Value) Key() string {
	switch v.kind {
	case KindNumber:
		return "n:" + strconv.FormatUint(math.Float64bits(v.num+0), 16)
	case KindText:
		return "s:" + v.text
	}
	return "null"
}

// String renders v for display; null renders as "NULL".
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	}
	return "NULL"
}
