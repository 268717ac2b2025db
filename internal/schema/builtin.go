package schema

// Built-in scalars every schema carries, with their standard descriptions.
var builtinScalars = []struct{ name, desc string }{
	{"String", "The `String` scalar type represents textual data, represented as UTF-8 character sequences."},
	{"Int", "The `Int` scalar type represents non-fractional signed whole numeric values."},
	{"Float", "The `Float` scalar type represents signed double-precision fractional values."},
	{"Boolean", "The `Boolean` scalar type represents `true` or `false`."},
	{"ID", "The `ID` scalar type represents a unique identifier, often used to refetch an object or as a key for caching."},
}

// IsBuiltinType reports whether name is one of the built-in scalars.
func IsBuiltinType(name string) bool {
	for _, s := range builtinScalars {
		if s.name == name {
			return true
		}
	}
	return false
}

// IsBuiltinDirective reports whether name is @include or @skip.
func IsBuiltinDirective(name string) bool { return name == "include" || name == "skip" }

// addBuiltins installs fresh copies of the built-in scalars and the
// @include and @skip directives.
func (s *Schema) addBuiltins() {
	for _, b := range builtinScalars {
		s.AddType(NewType(b.name, TypeKindScalar, b.desc))
	}
	s.AddDirective(conditionDirective("include", "Directs the executor to include this field or fragment only when the `if` argument is true.", "Included when true."))
	s.AddDirective(conditionDirective("skip", "Directs the executor to skip this field or fragment when the `if` argument is true.", "Skipped when true."))
}

func conditionDirective(name, desc, ifDesc string) *Directive {
	d := NewDirective(name, desc)
	d.Arguments = []*InputValue{NewInputValue("if", ifDesc, NonNullType(NamedType("Boolean")))}
	d.Locations = []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"}
	return d
}
