package executor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	language "github.com/hanpama/bookgraph/internal/language"
	schema "github.com/hanpama/bookgraph/internal/schema"
)

// inputError is a value that does not fit its declared input type. path
// locates the offending element inside lists and input objects.
type inputError struct {
	path []string
	msg  string
}

func (e *inputError) Error() string {
	if len(e.path) == 0 {
		return e.msg
	}
	return "at " + strings.Join(e.path, ".") + ": " + e.msg
}

func inputErrorf(format string, args ...any) *inputError {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}

// within prefixes the error location with one path segment.
func within(err error, segment string) error {
	if ie, ok := err.(*inputError); ok {
		return &inputError{path: append([]string{segment}, ie.path...), msg: ie.msg}
	}
	return err
}

// inputCoercer converts request-supplied values into the Go shapes resolvers
// receive: int for Int, float64 for Float, string for String, ID and enums,
// bool for Boolean, []any for lists and map[string]any for input objects.
type inputCoercer struct {
	schema *schema.Schema
}

// coerceVariableValues coerces the request variables against the operation's
// variable definitions. Variables that are absent and have no default are left
// out so arguments referring to them fall back to their own defaults.
func coerceVariableValues(
	sch *schema.Schema,
	operation *language.OperationDefinition,
	variableValues map[string]any,
) (map[string]any, error) {
	c := inputCoercer{schema: sch}
	coerced := make(map[string]any, len(operation.VariableDefinitions))
	for _, def := range operation.VariableDefinitions {
		ref := typeRefFromAST(def.Type)
		val, ok := variableValues[def.Variable]
		switch {
		case !ok && def.DefaultValue != nil:
			val = valueFromAST(def.DefaultValue, nil)
		case !ok && def.Type.NonNull:
			return nil, fmt.Errorf("variable $%s of required type %s was not provided", def.Variable, def.Type.String())
		case !ok:
			continue
		}
		if val == nil && def.Type.NonNull {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", def.Variable, def.Type.String())
		}
		cv, err := c.coerce(val, ref)
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %w", def.Variable, def.Type.String(), err)
		}
		coerced[def.Variable] = cv
	}
	return coerced, nil
}

// coerceArgumentValues builds the argument map for one field instance.
// Problems are recorded as located errors on state; the offending argument is
// left out of the map.
func coerceArgumentValues(
	fieldDef *schema.Field,
	arguments language.ArgumentList,
	variableValues map[string]any,
	state *executionState,
	path Path,
) map[string]any {
	c := inputCoercer{schema: state.schema}
	coerced := make(map[string]any, len(fieldDef.Arguments))
	for _, def := range fieldDef.Arguments {
		arg := arguments.ForName(def.Name)
		provided := arg != nil
		if provided && arg.Value.Kind == language.Variable {
			_, provided = variableValues[arg.Value.Raw]
		}
		if !provided {
			switch {
			case def.DefaultValue != nil:
				coerced[def.Name] = def.DefaultValue
			case schema.IsNonNull(def.Type):
				state.addError(fmt.Sprintf("argument '%s' of required type %s was not provided", def.Name, def.Type), path)
			}
			continue
		}
		cv, err := c.coerce(valueFromAST(arg.Value, variableValues), def.Type)
		if err != nil {
			state.addError(fmt.Sprintf("argument '%s' cannot be coerced: %v", def.Name, err), path)
			continue
		}
		coerced[def.Name] = cv
	}
	return coerced
}

func (c inputCoercer) coerce(value any, ref *schema.TypeRef) (any, error) {
	if schema.IsNonNull(ref) {
		if value == nil {
			return nil, inputErrorf("null given for non-null type %s", ref)
		}
		return c.coerce(value, schema.Unwrap(ref))
	}
	if value == nil {
		return nil, nil
	}
	if schema.IsList(ref) {
		item := schema.Unwrap(ref)
		items, ok := value.([]any)
		if !ok {
			// A single value stands for a list of one.
			v, err := c.coerce(value, item)
			if err != nil {
				return nil, err
			}
			return []any{v}, nil
		}
		out := make([]any, len(items))
		for i, it := range items {
			v, err := c.coerce(it, item)
			if err != nil {
				return nil, within(err, strconv.Itoa(i))
			}
			out[i] = v
		}
		return out, nil
	}

	name := schema.GetNamedType(ref)
	switch name {
	case "Int":
		return coerceInt(value)
	case "Float":
		return coerceFloat(value)
	case "String":
		return coerceString(value)
	case "Boolean":
		return coerceBoolean(value)
	case "ID":
		return coerceID(value)
	}

	var t *schema.Type
	if c.schema != nil {
		t = c.schema.Types[name]
	}
	switch {
	case t == nil, t.Kind == schema.TypeKindScalar:
		// Custom scalars are handed to resolvers unchanged.
		return value, nil
	case t.Kind == schema.TypeKindEnum:
		return coerceEnum(value, t)
	case t.Kind == schema.TypeKindInputObject:
		return c.coerceInputObject(value, t)
	default:
		return nil, inputErrorf("%s is not an input type", name)
	}
}

func (c inputCoercer) coerceInputObject(value any, t *schema.Type) (any, error) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, inputErrorf("cannot coerce %v (%T) to input object %s", value, value, t.Name)
	}
	out := make(map[string]any, len(t.InputFields))
	for _, def := range t.InputFields {
		v, ok := fields[def.Name]
		if !ok {
			switch {
			case def.DefaultValue != nil:
				out[def.Name] = def.DefaultValue
			case schema.IsNonNull(def.Type):
				return nil, inputErrorf("required field '%s' of %s was not provided", def.Name, t.Name)
			}
			continue
		}
		cv, err := c.coerce(v, def.Type)
		if err != nil {
			return nil, within(err, def.Name)
		}
		out[def.Name] = cv
	}
	for k := range fields {
		if !hasInputField(t, k) {
			return nil, inputErrorf("field '%s' is not defined by %s", k, t.Name)
		}
	}
	if t.OneOf {
		if len(out) != 1 {
			return nil, inputErrorf("exactly one field of %s must be given", t.Name)
		}
		for k, v := range out {
			if v == nil {
				return nil, inputErrorf("field '%s' of %s must not be null", k, t.Name)
			}
		}
	}
	return out, nil
}

func hasInputField(t *schema.Type, name string) bool {
	for _, f := range t.InputFields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func coerceEnum(value any, t *schema.Type) (any, error) {
	s, ok := value.(string)
	if ok {
		for _, ev := range t.EnumValues {
			if ev.Name == s {
				return s, nil
			}
		}
	}
	return nil, inputErrorf("cannot coerce %v to enum %s", value, t.Name)
}

// Scalar input coercion is strict: strings never become numbers or booleans.
// JSON numbers arrive as float64 and are accepted for Int when integral.

func coerceInt(value any) (any, error) {
	var f float64
	switch v := value.(type) {
	case int:
		f = float64(v)
	case int32:
		return int(v), nil
	case int64:
		f = float64(v)
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return nil, inputErrorf("cannot coerce %v (%T) to Int", value, value)
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return nil, inputErrorf("cannot coerce %v to Int", value)
	}
	return int(f), nil
}

func coerceFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, inputErrorf("cannot coerce %v (%T) to Float", value, value)
}

func coerceString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return nil, inputErrorf("cannot coerce %v (%T) to String", value, value)
}

func coerceBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, inputErrorf("cannot coerce %v (%T) to Boolean", value, value)
}

func coerceID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
	}
	return nil, inputErrorf("cannot coerce %v (%T) to ID", value, value)
}

// valueFromAST converts a literal to its Go form, substituting variables at
// any depth. An unset variable reads as null.
func valueFromAST(value *language.Value, variableValues map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.Variable:
		return variableValues[value.Raw]
	case language.IntValue:
		if n, err := strconv.Atoi(value.Raw); err == nil {
			return n
		}
		f, _ := strconv.ParseFloat(value.Raw, 64)
		return f
	case language.FloatValue:
		f, _ := strconv.ParseFloat(value.Raw, 64)
		return f
	case language.StringValue, language.BlockValue, language.EnumValue:
		return value.Raw
	case language.BooleanValue:
		return value.Raw == "true"
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = valueFromAST(c.Value, variableValues)
		}
		return out
	case language.ObjectValue:
		out := make(map[string]any, len(value.Children))
		for _, c := range value.Children {
			out[c.Name] = valueFromAST(c.Value, variableValues)
		}
		return out
	default:
		return nil
	}
}
