package entity

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Field describes one domain field of entity type T: its name and how to
// read and assign it. Fields are built with Value, Time, NullTime and Decimal.
type Field[T any] struct {
	name string
	date bool
	get  func(T) any
	set  func(T, any) error
}

// Name returns the field name.
func (f Field[T]) Name() string {
	return f.name
}

// Scalar lists the kinds a Value field can hold.
type Scalar interface {
	~string | ~bool |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Value declares a scalar field. Incoming values are converted to V when the
// conversion is lossless: numbers between numeric kinds, numeric or boolean
// text into numbers and booleans. A nil value resets the field.
func Value[T any, V Scalar](name string, ref func(T) *V) Field[T] {
	return Field[T]{
		name: name,
		get:  func(rec T) any { return *ref(rec) },
		set: func(rec T, raw any) error {
			v, err := convert[V](raw)
			if err != nil {
				return err
			}
			*ref(rec) = v
			return nil
		},
	}
}

// Time declares a timestamp field. It accepts time.Time, *time.Time or text
// in DateLayout; the stored value is always UTC. A nil value resets the
// field to the zero time.
func Time[T any](name string, ref func(T) *time.Time) Field[T] {
	return Field[T]{
		name: name,
		date: true,
		get:  func(rec T) any { return *ref(rec) },
		set: func(rec T, raw any) error {
			t, ok, err := parseTime(raw)
			if err != nil {
				return err
			}
			if !ok {
				t = time.Time{}
			}
			*ref(rec) = t
			return nil
		},
	}
}

// NullTime declares an optional timestamp field. A nil value clears it.
func NullTime[T any](name string, ref func(T) **time.Time) Field[T] {
	return Field[T]{
		name: name,
		date: true,
		get:  func(rec T) any { return *ref(rec) },
		set: func(rec T, raw any) error {
			t, ok, err := parseTime(raw)
			if err != nil {
				return err
			}
			if !ok {
				*ref(rec) = nil
				return nil
			}
			*ref(rec) = &t
			return nil
		},
	}
}

// Decimal declares a fixed-point field. It accepts decimals, numbers and
// numeric text. Transport and store views render it as text.
func Decimal[T any](name string, ref func(T) *decimal.Decimal) Field[T] {
	return Field[T]{
		name: name,
		get:  func(rec T) any { return *ref(rec) },
		set: func(rec T, raw any) error {
			d, err := parseDecimal(raw)
			if err != nil {
				return err
			}
			*ref(rec) = d
			return nil
		},
	}
}

// parseTime normalizes raw into a UTC timestamp. ok is false for nil input.
func parseTime(raw any) (t time.Time, ok bool, err error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return v.UTC(), true, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, false, nil
		}
		return v.UTC(), true, nil
	case string:
		return parseDateText(v)
	case []byte:
		return parseDateText(string(v))
	default:
		return time.Time{}, false, fmt.Errorf("%w: cannot use %T as a timestamp", ErrFieldType, raw)
	}
}

func parseDateText(s string) (time.Time, bool, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %q does not match %q", ErrMalformedDate, s, DateLayout)
	}
	return t, true, nil
}

func parseDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, nil
		}
		return *v, nil
	case json.Number:
		return parseDecimalText(v.String())
	case string:
		return parseDecimalText(v)
	case []byte:
		return parseDecimalText(string(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: cannot use %T as a decimal", ErrFieldType, raw)
	}
}

func parseDecimalText(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a decimal", ErrFieldType, s)
	}
	return d, nil
}

// convert assigns raw to a scalar of type V without losing information.
func convert[V Scalar](raw any) (V, error) {
	var zero V
	switch v := raw.(type) {
	case nil:
		return zero, nil
	case V:
		return v, nil
	case json.Number:
		raw = v.String()
	case []byte:
		raw = string(v)
	}

	target := reflect.TypeOf((*V)(nil)).Elem()
	out := reflect.New(target).Elem()
	src := reflect.ValueOf(raw)
	srcClass, dstClass := classOf(src.Kind()), classOf(target.Kind())

	var err error
	switch {
	case srcClass == classString && dstClass != classString:
		err = parseScalar(out, src.String())
	case srcClass == dstClass && (srcClass == classString || srcClass == classBool):
		out.Set(src.Convert(target))
	case srcClass.numeric() && dstClass.numeric():
		err = convertNumber(out, src)
	default:
		err = errIncompatible(raw, target)
	}
	if err != nil {
		return zero, err
	}
	return out.Interface().(V), nil
}

type kindClass int

const (
	classOther kindClass = iota
	classString
	classBool
	classInt
	classUint
	classFloat
)

func (c kindClass) numeric() bool {
	return c == classInt || c == classUint || c == classFloat
}

func classOf(k reflect.Kind) kindClass {
	switch k {
	case reflect.String:
		return classString
	case reflect.Bool:
		return classBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return classInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return classUint
	case reflect.Float32, reflect.Float64:
		return classFloat
	default:
		return classOther
	}
}

func errIncompatible(raw any, target reflect.Type) error {
	return fmt.Errorf("%w: cannot use %T as %s", ErrFieldType, raw, target)
}

func parseScalar(out reflect.Value, s string) error {
	switch classOf(out.Kind()) {
	case classBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return errIncompatible(s, out.Type())
		}
		out.SetBool(b)
	case classInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil || out.OverflowInt(i) {
			return errIncompatible(s, out.Type())
		}
		out.SetInt(i)
	case classUint:
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil || out.OverflowUint(u) {
			return errIncompatible(s, out.Type())
		}
		out.SetUint(u)
	case classFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || out.OverflowFloat(f) {
			return errIncompatible(s, out.Type())
		}
		out.SetFloat(f)
	default:
		return errIncompatible(s, out.Type())
	}
	return nil
}

// convertNumber moves a number across numeric kinds, rejecting overflow,
// negative unsigned values and fractional integers.
func convertNumber(out reflect.Value, src reflect.Value) error {
	fail := errIncompatible(src.Interface(), out.Type())

	switch classOf(out.Kind()) {
	case classInt:
		var i int64
		switch classOf(src.Kind()) {
		case classInt:
			i = src.Int()
		case classUint:
			if src.Uint() > math.MaxInt64 {
				return fail
			}
			i = int64(src.Uint())
		case classFloat:
			f := src.Float()
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return fail
			}
			i = int64(f)
		}
		if out.OverflowInt(i) {
			return fail
		}
		out.SetInt(i)
	case classUint:
		var u uint64
		switch classOf(src.Kind()) {
		case classInt:
			if src.Int() < 0 {
				return fail
			}
			u = uint64(src.Int())
		case classUint:
			u = src.Uint()
		case classFloat:
			f := src.Float()
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
				return fail
			}
			u = uint64(f)
		}
		if out.OverflowUint(u) {
			return fail
		}
		out.SetUint(u)
	case classFloat:
		var f float64
		switch classOf(src.Kind()) {
		case classInt:
			f = float64(src.Int())
		case classUint:
			f = float64(src.Uint())
		case classFloat:
			f = src.Float()
		}
		if out.OverflowFloat(f) {
			return fail
		}
		out.SetFloat(f)
	}
	return nil
}
