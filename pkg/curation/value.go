package curation

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Value comparison semantics shared by the filter primitives and the
// data-quality checks. Batches are schemaless, so cells of one column may
// carry values decoded from different sources (JSON numbers arrive as
// float64, CSV cells as strings); comparisons coerce via cast where a
// coercion is unambiguous.

// EqualValues reports whether a cell value and a filter value are equal.
// Rules: nil equals only nil; two numeric values compare as float64; two
// bools compare directly; a time.Time on either side coerces the other
// side to a time; everything else compares by string form, which also
// bridges the string-vs-number case ("3" equals 3 but "03" does not).
func EqualValues(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumeric(a) && isNumeric(b) {
		return cast.ToFloat64(a) == cast.ToFloat64(b)
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
	}
	if at, ok := a.(time.Time); ok {
		bt, err := cast.ToTimeE(b)
		return err == nil && at.Equal(bt)
	}
	if bt, ok := b.(time.Time); ok {
		at, err := cast.ToTimeE(a)
		return err == nil && bt.Equal(at)
	}
	as, aerr := cast.ToStringE(a)
	bs, berr := cast.ToStringE(b)
	if aerr != nil || berr != nil {
		return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
	}
	return as == bs
}

// CompareValues orders a cell value against a filter value, returning a
// negative, zero, or positive result. Both sides are first tried as
// numbers (numeric strings participate, so "10" orders after 9), then as
// times when either side is a time.Time, then by string form. A value
// with no string form (e.g. a list cell) is not orderable.
func CompareValues(a, b interface{}) (int, error) {
	af, aerr := cast.ToFloat64E(a)
	bf, berr := cast.ToFloat64E(b)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}

	if at, ok := a.(time.Time); ok {
		bt, err := cast.ToTimeE(b)
		if err != nil {
			return 0, fmt.Errorf("cannot order %v against time %v", b, at)
		}
		return at.Compare(bt), nil
	}
	if bt, ok := b.(time.Time); ok {
		at, err := cast.ToTimeE(a)
		if err != nil {
			return 0, fmt.Errorf("cannot order %v against time %v", a, bt)
		}
		return at.Compare(bt), nil
	}

	as, aerr := cast.ToStringE(a)
	bs, berr := cast.ToStringE(b)
	if aerr != nil {
		return 0, fmt.Errorf("value of type %T is not orderable", a)
	}
	if berr != nil {
		return 0, fmt.Errorf("value of type %T is not orderable", b)
	}
	return strings.Compare(as, bs), nil
}

// AsList returns the value as a list when it is one ([]interface{} or
// []string), and reports whether the conversion applied.
func AsList(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// AsTime coerces a cell or filter value to a time.Time via cast, which
// accepts time.Time, RFC 3339 strings, and common date layouts.
func AsTime(v interface{}) (time.Time, error) {
	return cast.ToTimeE(v)
}

func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
