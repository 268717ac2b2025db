package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/bookgraph/internal/language"
	schema "github.com/hanpama/bookgraph/internal/schema"
)

func filterSchema() *schema.Schema {
	sch := schema.NewSchema("")

	format := schema.NewType("Format", schema.TypeKindEnum, "")
	format.EnumValues = []*schema.EnumValue{{Name: "HARDCOVER"}, {Name: "PAPERBACK"}}
	sch.AddType(format)

	filter := schema.NewType("BookFilter", schema.TypeKindInputObject, "")
	filter.AddInputField(schema.NewInputValue("author", "", schema.NonNullType(schema.NamedType("String"))))
	filter.AddInputField(schema.NewInputValue("format", "", schema.NamedType("Format")))
	limit := schema.NewInputValue("limit", "", schema.NamedType("Int"))
	limit.DefaultValue = 10
	filter.AddInputField(limit)
	sch.AddType(filter)

	return sch
}

func variableOp(name string, typ *ast.Type) *language.OperationDefinition {
	return &language.OperationDefinition{
		Operation: language.Query,
		VariableDefinitions: ast.VariableDefinitionList{
			&ast.VariableDefinition{Variable: name, Type: typ},
		},
	}
}

func TestCoerceVariableValues(t *testing.T) {
	sch := filterSchema()
	filterType := &ast.Type{NamedType: "BookFilter", NonNull: true}

	tests := []struct {
		name    string
		typ     *ast.Type
		value   any
		want    any
		wantErr string
	}{
		{
			name:  "input object gets defaults",
			typ:   filterType,
			value: map[string]any{"author": "Orwell", "format": "PAPERBACK"},
			want:  map[string]any{"author": "Orwell", "format": "PAPERBACK", "limit": 10},
		},
		{
			name:    "missing required input field",
			typ:     filterType,
			value:   map[string]any{"limit": 3.0},
			wantErr: "required field 'author'",
		},
		{
			name:    "unknown input field",
			typ:     filterType,
			value:   map[string]any{"author": "Orwell", "isbn": "x"},
			wantErr: "field 'isbn' is not defined by BookFilter",
		},
		{
			name:    "nested error is located",
			typ:     filterType,
			value:   map[string]any{"author": "Orwell", "format": "EBOOK"},
			wantErr: "at format: cannot coerce EBOOK to enum Format",
		},
		{
			name:  "JSON number as Int",
			typ:   &ast.Type{NamedType: "Int", NonNull: true},
			value: 42.0,
			want:  42,
		},
		{
			name:    "string is not an Int",
			typ:     &ast.Type{NamedType: "Int", NonNull: true},
			value:   "42",
			wantErr: "cannot coerce",
		},
		{
			name:    "fractional Int",
			typ:     &ast.Type{NamedType: "Int"},
			value:   1.5,
			wantErr: "cannot coerce 1.5 to Int",
		},
		{
			name:  "integral ID",
			typ:   &ast.Type{NamedType: "ID"},
			value: 7.0,
			want:  "7",
		},
		{
			name:  "single value becomes a list",
			typ:   &ast.Type{Elem: &ast.Type{NamedType: "String"}},
			value: "Golding",
			want:  []any{"Golding"},
		},
		{
			name:    "list element error is located",
			typ:     &ast.Type{Elem: &ast.Type{NamedType: "String", NonNull: true}},
			value:   []any{"a", nil},
			wantErr: "at 1: null given for non-null type String!",
		},
		{
			name:  "custom scalar passes through",
			typ:   &ast.Type{NamedType: "Date"},
			value: "1954-09-17",
			want:  "1954-09-17",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceVariableValues(sch, variableOp("v", tt.typ), map[string]any{"v": tt.value})
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got["v"])
		})
	}
}

func TestCoerceVariableValuesAbsent(t *testing.T) {
	sch := filterSchema()

	op := variableOp("name", &ast.Type{NamedType: "String"})
	got, err := coerceVariableValues(sch, op, nil)
	require.NoError(t, err)
	assert.NotContains(t, got, "name")

	op.VariableDefinitions[0].DefaultValue = &ast.Value{Kind: ast.StringValue, Raw: "Lord of the Flies"}
	got, err = coerceVariableValues(sch, op, nil)
	require.NoError(t, err)
	assert.Equal(t, "Lord of the Flies", got["name"])

	_, err = coerceVariableValues(sch, variableOp("name", &ast.Type{NamedType: "String", NonNull: true}), map[string]any{"name": nil})
	assert.ErrorContains(t, err, "cannot be null")
}

func TestValueFromASTSubstitutesNestedVariables(t *testing.T) {
	v := &ast.Value{Kind: ast.ObjectValue, Children: ast.ChildValueList{
		{Name: "author", Value: &ast.Value{Kind: ast.Variable, Raw: "who"}},
		{Name: "tags", Value: &ast.Value{Kind: ast.ListValue, Children: ast.ChildValueList{
			{Value: &ast.Value{Kind: ast.StringValue, Raw: "classic"}},
			{Value: &ast.Value{Kind: ast.Variable, Raw: "missing"}},
		}}},
	}}
	got := valueFromAST(v, map[string]any{"who": "Orwell"})
	assert.Equal(t, map[string]any{"author": "Orwell", "tags": []any{"classic", nil}}, got)
}
