package resolver

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"time"
)

// DateLayout is the wire format of the Date scalar.
const DateLayout = "2006-01-02"

// ScalarFunc serializes a Go value into its JSON-safe wire form.
type ScalarFunc func(value any) (any, error)

// Scalar registers a serializer for a custom scalar, replacing any existing one.
func (r *Registry) Scalar(name string, fn ScalarFunc) *Registry {
	r.scalars[name] = fn
	return r
}

func builtinScalars() map[string]ScalarFunc {
	return map[string]ScalarFunc{
		"String":  serializeString,
		"ID":      serializeString,
		"Int":     serializeInt,
		"Float":   serializeFloat,
		"Boolean": serializeBoolean,
		"Date":    SerializeDate,
	}
}

// SerializeLeafValue applies the scalar's serializer. Enums and scalars
// without one pass through, with byte slices base64 encoded.
func (r *Registry) SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if fn, ok := r.scalars[scalarOrEnumTypeName]; ok {
		return fn(value)
	}
	switch v := value.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return v, nil
	}
}

// SerializeDate renders a time.Time as YYYY-MM-DD. The zero time is null.
func SerializeDate(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return nil, nil
		}
		return v.Format(DateLayout), nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil, nil
		}
		return v.Format(DateLayout), nil
	case string:
		if _, err := time.Parse(DateLayout, v); err != nil {
			return nil, fmt.Errorf("invalid Date %q: %w", v, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("cannot serialize %T as Date", value)
	}
}

func serializeString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case []byte:
		return string(v), nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprint(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprint(rv.Uint()), nil
	case reflect.Bool:
		return fmt.Sprint(rv.Bool()), nil
	}
	return nil, fmt.Errorf("cannot serialize %T as String", value)
}

func serializeInt(value any) (any, error) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("Int cannot represent %d", n)
		}
		return int(n), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := rv.Uint()
		if n > math.MaxInt32 {
			return nil, fmt.Errorf("Int cannot represent %d", n)
		}
		return int(n), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
			return nil, fmt.Errorf("Int cannot represent %v", f)
		}
		return int(f), nil
	}
	return nil, fmt.Errorf("cannot serialize %T as Int", value)
}

func serializeFloat(value any) (any, error) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	return nil, fmt.Errorf("cannot serialize %T as Float", value)
}

func serializeBoolean(value any) (any, error) {
	if b, ok := value.(bool); ok {
		return b, nil
	}
	return nil, fmt.Errorf("cannot serialize %T as Boolean", value)
}
