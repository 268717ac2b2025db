package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render prints the schema as SDL. Built-in scalars and directives are left
// out; types and then directives follow in name order, so the output is
// stable across runs.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	w := &sdlWriter{schema: s}
	for _, name := range sortedKeys(s.Types) {
		if IsBuiltinType(name) {
			continue
		}
		w.typeDef(s.Types[name])
	}
	for _, name := range sortedKeys(s.Directives) {
		if IsBuiltinDirective(name) {
			continue
		}
		w.directiveDef(s.Directives[name])
	}
	return strings.TrimRight(w.String(), "\n") + "\n"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type sdlWriter struct {
	strings.Builder
	schema *Schema
}

func (w *sdlWriter) typeDef(t *Type) {
	w.description("", t.Description)
	switch t.Kind {
	case TypeKindScalar:
		w.WriteString("scalar " + t.Name)
		if t.SpecifiedByURL != nil {
			w.WriteString(" @specifiedBy(url: " + strconv.Quote(*t.SpecifiedByURL) + ")")
		}
		w.WriteString("\n")
	case TypeKindUnion:
		w.WriteString("union " + t.Name + " = " + strings.Join(t.PossibleTypes, " | ") + "\n")
	case TypeKindEnum:
		w.WriteString("enum " + t.Name + " {\n")
		for _, v := range t.EnumValues {
			w.description("  ", v.Description)
			w.WriteString("  " + v.Name)
			w.deprecated(v.IsDeprecated, v.DeprecationReason)
			w.WriteString("\n")
		}
		w.WriteString("}\n")
	case TypeKindInputObject:
		w.WriteString("input " + t.Name)
		if t.OneOf {
			w.WriteString(" @oneOf")
		}
		w.WriteString(" {\n")
		for _, f := range t.InputFields {
			w.description("  ", f.Description)
			w.WriteString("  ")
			w.inputValue(f)
			w.WriteString("\n")
		}
		w.WriteString("}\n")
	case TypeKindObject, TypeKindInterface:
		keyword := "type "
		if t.Kind == TypeKindInterface {
			keyword = "interface "
		}
		w.WriteString(keyword + t.Name)
		if len(t.Interfaces) > 0 {
			w.WriteString(" implements " + strings.Join(t.Interfaces, " & "))
		}
		w.WriteString(" {\n")
		for _, f := range t.Fields {
			w.description("  ", f.Description)
			w.WriteString("  " + f.Name)
			w.arguments(f.Arguments)
			w.WriteString(": " + f.Type.String())
			w.deprecated(f.IsDeprecated, f.DeprecationReason)
			w.WriteString("\n")
		}
		w.WriteString("}\n")
	}
	w.WriteString("\n")
}

func (w *sdlWriter) directiveDef(d *Directive) {
	w.description("", d.Description)
	w.WriteString("directive @" + d.Name)
	w.arguments(d.Arguments)
	if d.IsRepeatable {
		w.WriteString(" repeatable")
	}
	w.WriteString(" on " + strings.Join(d.Locations, " | ") + "\n\n")
}

func (w *sdlWriter) arguments(args []*InputValue) {
	if len(args) == 0 {
		return
	}
	w.WriteString("(")
	for i, a := range args {
		if i > 0 {
			w.WriteString(", ")
		}
		w.inputValue(a)
	}
	w.WriteString(")")
}

func (w *sdlWriter) inputValue(v *InputValue) {
	w.WriteString(v.Name + ": " + v.Type.String())
	if v.DefaultValue != nil {
		t := w.schema.Types[v.Type.GetNamedType()]
		w.WriteString(" = " + renderValue(v.DefaultValue, t != nil && t.Kind == TypeKindEnum))
	}
	w.deprecated(v.IsDeprecated, v.DeprecationReason)
}

// description writes a block string. Only a literal """ needs escaping.
func (w *sdlWriter) description(indent, desc string) {
	if desc == "" {
		return
	}
	desc = strings.ReplaceAll(desc, `"""`, `\"""`)
	w.WriteString(indent + `"""` + "\n")
	for _, line := range strings.Split(desc, "\n") {
		w.WriteString(indent + line + "\n")
	}
	w.WriteString(indent + `"""` + "\n")
}

func (w *sdlWriter) deprecated(is bool, reason string) {
	if !is {
		return
	}
	w.WriteString(" @deprecated")
	if reason != "" {
		w.WriteString("(reason: " + strconv.Quote(reason) + ")")
	}
}

// renderValue prints a default value as a GraphQL literal. Enum values arrive
// as plain strings; enum leaves them unquoted.
func renderValue(value any, enum bool) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		if enum {
			return v
		}
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = renderValue(item, enum)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := sortedKeys(v)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + renderValue(v[k], false)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}
