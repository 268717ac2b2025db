package executor

import (
	language "github.com/hanpama/bookgraph/internal/language"
	schema "github.com/hanpama/bookgraph/internal/schema"
)

// collectedField is every field node answering under one response name.
type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

// groupedFields keeps response names in first-seen order.
type groupedFields struct {
	fields []collectedField
	index  map[string]int
}

func (g *groupedFields) add(field *language.Field) {
	name := field.Alias
	if name == "" {
		name = field.Name
	}
	if i, ok := g.index[name]; ok {
		g.fields[i].Fields = append(g.fields[i].Fields, field)
		return
	}
	g.index[name] = len(g.fields)
	g.fields = append(g.fields, collectedField{ResponseName: name, Fields: []*language.Field{field}})
}

func (g *groupedFields) orderedFields() []collectedField { return g.fields }

// fieldCollector flattens fragments and applies @skip/@include for one
// object type. Each named fragment is expanded at most once.
type fieldCollector struct {
	state      *executionState
	objectType *schema.Type
	visited    map[string]bool
	out        *groupedFields
}

func collectFields(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet) *groupedFields {
	c := &fieldCollector{
		state:      state,
		objectType: objectType,
		visited:    make(map[string]bool),
		out:        &groupedFields{index: make(map[string]int)},
	}
	c.collect(selectionSet)
	return c.out
}

func (c *fieldCollector) collect(selectionSet language.SelectionSet) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if c.included(sel.Directives) {
				c.out.add(sel)
			}
		case *language.InlineFragment:
			if c.included(sel.Directives) && c.applies(sel.TypeCondition) {
				c.collect(sel.SelectionSet)
			}
		case *language.FragmentSpread:
			if !c.included(sel.Directives) || c.visited[sel.Name] {
				continue
			}
			c.visited[sel.Name] = true
			def := c.state.document.Fragments.ForName(sel.Name)
			if def != nil && c.applies(def.TypeCondition) && c.included(def.Directives) {
				c.collect(def.SelectionSet)
			}
		}
	}
}

// applies reports whether a fragment typed on condition selects fields of the
// collector's object type: the type itself, an interface it implements, or a
// union containing it.
func (c *fieldCollector) applies(condition string) bool {
	if condition == "" || condition == c.objectType.Name {
		return true
	}
	for _, iface := range c.objectType.Interfaces {
		if iface == condition {
			return true
		}
	}
	if c.state.schema == nil {
		return false
	}
	if abstract := c.state.schema.Types[condition]; abstract != nil {
		for _, possible := range abstract.PossibleTypes {
			if possible == c.objectType.Name {
				return true
			}
		}
	}
	return false
}

// included evaluates @skip(if:) and @include(if:). A condition that is not a
// boolean, such as an unset variable, leaves the node in.
func (c *fieldCollector) included(directives language.DirectiveList) bool {
	if skip, ok := c.condition(directives, "skip"); ok && skip {
		return false
	}
	if include, ok := c.condition(directives, "include"); ok && !include {
		return false
	}
	return true
}

func (c *fieldCollector) condition(directives language.DirectiveList, name string) (bool, bool) {
	d := directives.ForName(name)
	if d == nil {
		return false, false
	}
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false, false
	}
	b, ok := valueFromAST(arg.Value, c.state.variableValues).(bool)
	return b, ok
}

func getFieldDefinition(objectType *schema.Type, fieldName string) *schema.Field {
	for _, field := range objectType.Fields {
		if field.Name == fieldName {
			return field
		}
	}
	return nil
}
