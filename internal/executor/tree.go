package executor

import (
	"reflect"
	"strconv"
	"strings"
)

// Path locates a value in the response: field names and list indexes.
type Path []PathElement

// PathElement is a string response name or an int list index.
type PathElement any

// String renders the path as "books.[1].title".
func (p Path) String() string {
	var b strings.Builder
	for i, elem := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		switch v := elem.(type) {
		case string:
			b.WriteString(v)
		case int:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(v))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// with returns a copy of p extended by elem; p is never aliased.
func (p Path) with(elem PathElement) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = elem
	return out
}

// topLevel is the root field p starts at.
func (p Path) topLevel() Path {
	for _, elem := range p {
		if name, ok := elem.(string); ok {
			return Path{name}
		}
	}
	return Path{}
}

func (s *executionState) prune(p Path) {
	if len(p) > 0 {
		s.pruned[p.String()] = struct{}{}
	}
}

// isPruned reports whether p or any of its ancestors was pruned.
func (s *executionState) isPruned(p Path) bool {
	if len(s.pruned) == 0 {
		return false
	}
	for i := 1; i <= len(p); i++ {
		if _, ok := s.pruned[p[:i].String()]; ok {
			return true
		}
	}
	return false
}

// writeAt stores value at p inside data. Containers along the way were built
// when the ancestors settled; a missing one means the write has nowhere to go
// and is dropped.
func writeAt(data map[string]any, p Path, value any) {
	if len(p) == 0 {
		return
	}
	var cur any = data
	for _, elem := range p[:len(p)-1] {
		switch e := elem.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return
			}
			cur = m[e]
		case int:
			l, ok := cur.([]any)
			if !ok || e >= len(l) {
				return
			}
			cur = l[e]
		}
	}
	switch e := p[len(p)-1].(type) {
	case string:
		if m, ok := cur.(map[string]any); ok {
			m[e] = value
		}
	case int:
		if l, ok := cur.([]any); ok && e < len(l) {
			l[e] = value
		}
	}
}

// isNullish reports nil and typed nils (pointer, map, slice, interface).
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
