package resolver

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// fieldIndexCache maps (struct type, GraphQL field) to a struct field index.
var fieldIndexCache sync.Map

type indexKey struct {
	t     reflect.Type
	field string
}

// Property is the default resolver. It reads field from a map[string]any, or
// from a struct field tagged `graphql:"field"` or named like field
// (case-insensitive). A nil source or a missing map key resolves to nil.
func Property(source any, field string) (any, error) {
	if source == nil {
		return nil, nil
	}
	if m, ok := source.(map[string]any); ok {
		return m[field], nil
	}

	rv := reflect.ValueOf(source)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot read field %q from %T", field, source)
	}

	idx, ok := structFieldIndex(rv.Type(), field)
	if !ok {
		return nil, fmt.Errorf("%s has no field for %q", rv.Type(), field)
	}
	return rv.FieldByIndex(idx).Interface(), nil
}

func structFieldIndex(t reflect.Type, field string) ([]int, bool) {
	k := indexKey{t, field}
	if v, ok := fieldIndexCache.Load(k); ok {
		idx := v.([]int)
		return idx, idx != nil
	}

	var idx []int
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() {
			continue
		}
		if tag, ok := sf.Tag.Lookup("graphql"); ok {
			name, _, _ := strings.Cut(tag, ",")
			if name == field {
				idx = sf.Index
				break
			}
			continue
		}
		if idx == nil && strings.EqualFold(sf.Name, field) {
			idx = sf.Index
		}
	}
	fieldIndexCache.Store(k, idx)
	return idx, idx != nil
}
