package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/hanpama/bookgraph/internal/gqlerr"
	language "github.com/hanpama/bookgraph/internal/language"
	schema "github.com/hanpama/bookgraph/internal/schema"
)

// executionState is owned by one ExecuteRequest call.
type executionState struct {
	context        context.Context
	runtime        Runtime
	schema         *schema.Schema
	document       *language.QueryDocument
	variableValues map[string]any
	errors         []GraphQLError

	// queue holds the async fields of the next depth in discovery order.
	queue []asyncTask
	// pruned holds response paths nulled after work beneath them was queued.
	pruned map[string]struct{}

	phase   State
	onState func(State)
}

// asyncTask is a queued async field together with what is needed to complete
// its value once the depth settles.
type asyncTask struct {
	AsyncResolveTask
	path   Path
	typ    *schema.TypeRef
	fields []*language.Field
}

// pending marks an async field in the response tree until its depth settles.
type pending struct{}

func (s *executionState) enter(next State) {
	if s.phase == next {
		return
	}
	s.phase = next
	if s.onState != nil {
		s.onState(next)
	}
}

func (s *executionState) addError(message string, path Path) {
	s.errors = append(s.errors, GraphQLError{Message: message, Path: path})
}

func (s *executionState) hasErrorAt(path Path) bool {
	for _, err := range s.errors {
		if reflect.DeepEqual(err.Path, path) {
			return true
		}
	}
	return false
}

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
	onState func(State)
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// OnStateChange registers fn to observe every state transition of every
// execution. fn runs on the executing goroutine and must not block.
func (e *Executor) OnStateChange(fn func(State)) *Executor {
	e.onState = fn
	return e
}

// ExecuteRequest runs one operation of document. The result is final: every
// async field reachable from the root has settled, or the request was aborted.
// If ctx ends before the result is final, even with no async field queued,
// the partial tree is dropped and the result carries a single TIMEOUT error.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	operation := getOperation(document, operationName)
	if operation == nil {
		return failedResult(GraphQLError{Message: "operation not found"})
	}
	rootType, err := e.rootType(operation.Operation)
	if err != nil {
		return failedResult(GraphQLError{Message: err.Error()})
	}
	variables, err := coerceVariableValues(e.schema, operation, variableValues)
	if err != nil {
		return failedResult(GraphQLError{Message: err.Error()})
	}

	state := &executionState{
		context:        ctx,
		runtime:        e.runtime,
		schema:         e.schema,
		document:       document,
		variableValues: variables,
		errors:         []GraphQLError{},
		pruned:         make(map[string]struct{}),
		phase:          StatePending,
		onState:        e.onState,
	}

	state.enter(StateAssembling)
	data := executeSelectionSet(state, rootType, operation.SelectionSet, initialValue, Path{})
	if data == nil {
		data = map[string]any{}
	}

	// Children are queued only while completing their parent's settled value,
	// so every depth sees fully settled ancestors.
	for len(state.queue) > 0 {
		if ctx.Err() != nil {
			state.enter(StateFailed)
			return timeoutResult()
		}
		state.enter(StateResolving)
		tasks, results := state.resolveDepth()
		if ctx.Err() != nil {
			state.enter(StateFailed)
			return timeoutResult()
		}
		state.enter(StateAssembling)
		for i := range tasks {
			state.settle(data, tasks[i], results[i])
		}
	}

	// A sync-only request never enters the loop.
	if ctx.Err() != nil {
		state.enter(StateFailed)
		return timeoutResult()
	}
	state.enter(StateComplete)
	return &ExecutionResult{Data: data, Errors: state.errors, State: StateComplete}
}

func (e *Executor) rootType(op language.Operation) (*schema.Type, error) {
	var t *schema.Type
	switch op {
	case language.Query:
		t = e.schema.GetQueryType()
	case language.Mutation:
		t = e.schema.GetMutationType()
	case language.Subscription:
		t = e.schema.GetSubscriptionType()
	default:
		return nil, fmt.Errorf("unsupported operation type: %s", op)
	}
	if t == nil {
		return nil, fmt.Errorf("root type not found for %s operation", op)
	}
	return t, nil
}

// resolveDepth hands the queued depth to the runtime in one call. Tasks under
// a pruned path are dropped first. A runtime answering with the wrong number
// of results fails every task of the depth.
func (s *executionState) resolveDepth() ([]asyncTask, []AsyncResolveResult) {
	queued := s.queue
	s.queue = nil

	tasks := queued[:0:0]
	for _, t := range queued {
		if !s.isPruned(t.path) {
			tasks = append(tasks, t)
		}
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	batch := make([]AsyncResolveTask, len(tasks))
	for i, t := range tasks {
		batch[i] = t.AsyncResolveTask
	}
	results := s.runtime.BatchResolveAsync(s.context, batch)
	if len(results) != len(batch) {
		err := fmt.Errorf("runtime returned %d results for %d async fields", len(results), len(batch))
		results = make([]AsyncResolveResult, len(batch))
		for i := range results {
			results[i].Error = err
		}
	}
	return tasks, results
}

// settle completes one async result and writes it into data. A Non-Null
// violation nulls the top-level field instead.
func (s *executionState) settle(data map[string]any, t asyncTask, res AsyncResolveResult) {
	if s.isPruned(t.path) {
		return
	}
	var value any
	switch {
	case res.Error == nil:
		value = completeValue(s, t.typ, t.fields, res.Value, t.path)
	case errors.Is(res.Error, gqlerr.ErrNotFound):
		// absent entity: plain null
	default:
		s.errors = append(s.errors, fieldError(res.Error, t.path))
	}

	if isNullish(value) && schema.IsNonNull(t.typ) {
		top := t.path.topLevel()
		writeAt(data, top, nil)
		s.prune(top)
		return
	}
	if isNullish(value) {
		value = nil
	}
	writeAt(data, t.path, value)
}

// executeSelectionSet resolves the sync fields of one object and queues its
// async fields. It returns nil when a Non-Null field below the root came back
// null, nulling the object itself.
func executeSelectionSet(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path) map[string]any {
	out := make(map[string]any)
	for _, cf := range collectFields(state, objectType, selectionSet).orderedFields() {
		fieldPath := path.with(cf.ResponseName)
		name := cf.Fields[0].Name
		if name == "__typename" {
			out[cf.ResponseName] = objectType.Name
			continue
		}

		def := getFieldDefinition(objectType, name)
		if def == nil {
			state.addError(fmt.Sprintf("Cannot query field '%s' on type '%s'", name, objectType.Name), fieldPath)
			continue
		}

		value := executeField(state, objectType, def, cf.Fields, objectValue, fieldPath)
		if !isNullish(value) {
			out[cf.ResponseName] = value
			continue
		}
		if schema.IsNonNull(def.Type) && len(path) > 0 {
			// Async siblings already queued under this object must not resolve.
			state.prune(path)
			return nil
		}
		out[cf.ResponseName] = nil
	}
	return out
}

// executeField resolves and completes a sync field, or queues an async one
// and returns a pending placeholder.
func executeField(state *executionState, objectType *schema.Type, def *schema.Field, fields []*language.Field, source any, path Path) any {
	args := coerceArgumentValues(def, fields[0].Arguments, state.variableValues, state, path)
	if def.Async {
		state.queue = append(state.queue, asyncTask{
			AsyncResolveTask: AsyncResolveTask{
				ObjectType: objectType.Name,
				Field:      def.Name,
				Source:     source,
				Args:       args,
			},
			path:   path,
			typ:    def.Type,
			fields: fields,
		})
		return pending{}
	}

	value, err := state.runtime.ResolveSync(state.context, objectType.Name, def.Name, source, args)
	switch {
	case errors.Is(err, gqlerr.ErrNotFound):
		value = nil
	case err != nil:
		state.errors = append(state.errors, fieldError(err, path))
		value = nil
	}
	return completeValue(state, def.Type, fields, value, path)
}

// completeValue shapes a raw resolver value according to its field type.
func completeValue(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !state.hasErrorAt(path) {
				state.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", path), path)
			}
			return nil
		}
		// A null from inner completion already recorded its error.
		return completeValue(state, schema.Unwrap(fieldType), fields, result, path)
	}
	if isNullish(result) {
		return nil
	}
	if schema.IsList(fieldType) {
		return completeListValue(state, schema.Unwrap(fieldType), fields, result, path)
	}

	name := schema.GetNamedType(fieldType)
	t := state.schema.Types[name]
	if t == nil {
		state.addError(fmt.Sprintf("Unknown type: %s", name), path)
		return nil
	}
	switch t.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		v, err := state.runtime.SerializeLeafValue(state.context, name, result)
		if err != nil {
			state.addError(err.Error(), path)
			return nil
		}
		return v
	case schema.TypeKindObject:
		return executeSelectionSet(state, t, mergeSelectionSets(fields), result, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return completeAbstractValue(state, t, fields, result, path)
	default:
		state.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", t.Kind), path)
		return nil
	}
}

// completeListValue accepts []any or any other slice kind.
func completeListValue(state *executionState, itemType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	items, ok := result.([]any)
	if !ok {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			state.addError(fmt.Sprintf("Expected list value, got %T", result), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	out := make([]any, len(items))
	for i, item := range items {
		v := completeValue(state, itemType, fields, item, path.with(i))
		if isNullish(v) {
			if schema.IsNonNull(itemType) {
				return nil
			}
			v = nil
		}
		out[i] = v
	}
	return out
}

// completeAbstractValue picks the concrete object type of an interface or
// union value, unwrapping it through the runtime first.
func completeAbstractValue(state *executionState, abstractType *schema.Type, fields []*language.Field, result any, path Path) any {
	typeName, err := state.runtime.ResolveType(state.context, abstractType.Name, result)
	if err != nil {
		state.addError(err.Error(), path)
		return nil
	}
	objectType := state.schema.Types[typeName]
	if objectType == nil || objectType.Kind != schema.TypeKindObject {
		state.addError(fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", abstractType.Name, typeName), path)
		return nil
	}

	if abstractType.Kind == schema.TypeKindUnion {
		result, err = state.runtime.ResolveUnionConcreteValue(state.context, abstractType.Name, result)
	} else {
		result, err = state.runtime.ResolveInterfaceConcreteValue(state.context, abstractType.Name, result)
	}
	if err != nil {
		state.errors = append(state.errors, fieldError(err, path))
		return nil
	}
	return executeSelectionSet(state, objectType, mergeSelectionSets(fields), result, path)
}

// getOperation picks the named operation, or the only one when name is empty.
func getOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" {
		if len(document.Operations) == 1 {
			return document.Operations[0]
		}
		return nil
	}
	return document.Operations.ForName(operationName)
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	var ref *schema.TypeRef
	if t.Elem != nil {
		ref = schema.ListType(typeRefFromAST(t.Elem))
	} else {
		ref = schema.NamedType(t.NamedType)
	}
	if t.NonNull {
		return schema.NonNullType(ref)
	}
	return ref
}

func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}
