package schema

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/bookgraph/internal/language"
)

// BuildFromSDL parses and validates SDL and returns the corresponding Schema.
// A schema definition is optional; a type named Query becomes the root.
func BuildFromSDL(sdl string) (*Schema, error) {
	src, err := language.LoadSchema("schema.graphql", sdl)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return BuildFromAST(src)
}

// BuildFromAST converts a validated gqlparser schema into an executable Schema.
// Prelude definitions are replaced by the package builtins.
func BuildFromAST(src *ast.Schema) (*Schema, error) {
	s := NewSchema(src.Description)
	s.Source = src
	if src.Query != nil {
		s.SetQueryType(src.Query.Name)
	}
	if src.Mutation != nil {
		s.SetMutationType(src.Mutation.Name)
	}
	if src.Subscription != nil {
		s.SetSubscriptionType(src.Subscription.Name)
	}
	s.addBuiltins()

	for _, def := range sortedDefinitions(src) {
		if def.BuiltIn {
			continue
		}
		switch def.Kind {
		case ast.Object:
			s.AddType(buildObject(def))
		case ast.Interface:
			s.AddType(buildInterface(src, def))
		case ast.Union:
			s.AddType(buildUnion(def))
		case ast.Enum:
			s.AddType(buildEnum(def))
		case ast.InputObject:
			s.AddType(buildInput(def))
		case ast.Scalar:
			s.AddType(buildScalar(def))
		default:
			return nil, fmt.Errorf("unsupported definition kind %s for %s", def.Kind, def.Name)
		}
	}
	for _, dir := range src.Directives {
		if dir.Position != nil && dir.Position.Src != nil && dir.Position.Src.BuiltIn {
			continue
		}
		s.AddDirective(buildDirective(dir))
	}
	return s, nil
}

func sortedDefinitions(src *ast.Schema) []*ast.Definition {
	names := make([]string, 0, len(src.Types))
	for name := range src.Types {
		names = append(names, name)
	}
	sortStrings(names)
	out := make([]*ast.Definition, 0, len(names))
	for _, name := range names {
		out = append(out, src.Types[name])
	}
	return out
}

func buildObject(def *ast.Definition) *Type {
	t := NewType(def.Name, TypeKindObject, def.Description)
	for _, name := range def.Interfaces {
		t.AddInterface(name)
	}
	for _, fd := range def.Fields {
		if isIntrospectionField(fd.Name) {
			continue
		}
		t.AddField(buildField(fd))
	}
	return t
}

func buildInterface(src *ast.Schema, def *ast.Definition) *Type {
	t := NewType(def.Name, TypeKindInterface, def.Description)
	for _, name := range def.Interfaces {
		t.AddInterface(name)
	}
	for _, fd := range def.Fields {
		t.AddField(buildField(fd))
	}
	for _, impl := range src.GetPossibleTypes(def) {
		t.AddPossibleType(impl.Name)
	}
	return t
}

func buildUnion(def *ast.Definition) *Type {
	t := NewType(def.Name, TypeKindUnion, def.Description)
	for _, name := range def.Types {
		t.AddPossibleType(name)
	}
	return t
}

func buildEnum(def *ast.Definition) *Type {
	t := NewType(def.Name, TypeKindEnum, def.Description)
	for _, v := range def.EnumValues {
		e := NewEnumValue(v.Name, v.Description)
		if reason, ok := deprecation(v.Directives); ok {
			e.Deprecate(reason)
		}
		t.AddEnumValue(e)
	}
	return t
}

func buildInput(def *ast.Definition) *Type {
	t := NewType(def.Name, TypeKindInputObject, def.Description).
		SetOneOf(def.Directives.ForName("oneOf") != nil)
	for _, fd := range def.Fields {
		in := NewInputValue(fd.Name, fd.Description, buildTypeRef(fd.Type)).SetDefault(defaultValue(fd.DefaultValue))
		if reason, ok := deprecation(fd.Directives); ok {
			in.Deprecate(reason)
		}
		t.AddInputField(in)
	}
	return t
}

func buildScalar(def *ast.Definition) *Type {
	t := NewType(def.Name, TypeKindScalar, def.Description)
	if d := def.Directives.ForName("specifiedBy"); d != nil {
		if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
			url := arg.Value.Raw
			t.SpecifiedByURL = &url
		}
	}
	return t
}

func buildField(fd *ast.FieldDefinition) *Field {
	f := NewField(fd.Name, fd.Description, buildTypeRef(fd.Type))
	if reason, ok := deprecation(fd.Directives); ok {
		f.Deprecate(reason)
	}
	for _, arg := range fd.Arguments {
		in := NewInputValue(arg.Name, arg.Description, buildTypeRef(arg.Type)).SetDefault(defaultValue(arg.DefaultValue))
		if reason, ok := deprecation(arg.Directives); ok {
			in.Deprecate(reason)
		}
		f.AddArgument(in)
	}
	return f
}

func buildDirective(dir *ast.DirectiveDefinition) *Directive {
	d := NewDirective(dir.Name, dir.Description).SetRepeatable(dir.IsRepeatable)
	for _, loc := range dir.Locations {
		d.Locations = append(d.Locations, string(loc))
	}
	for _, arg := range dir.Arguments {
		d.AddArgument(NewInputValue(arg.Name, arg.Description, buildTypeRef(arg.Type)).SetDefault(defaultValue(arg.DefaultValue)))
	}
	return d
}

func buildTypeRef(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		return NonNullType(ref)
	}
	return ref
}

func defaultValue(v *ast.Value) any {
	if v == nil {
		return nil
	}
	out, err := v.Value(nil)
	if err != nil {
		return nil
	}
	return out
}

func deprecation(dirs ast.DirectiveList) (string, bool) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return "", false
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw, true
	}
	return "No longer supported", true
}

func isIntrospectionField(name string) bool {
	return name == "__schema" || name == "__type" || name == "__typename"
}
