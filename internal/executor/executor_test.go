package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hanpama/bookgraph/internal/gqlerr"
	schema "github.com/hanpama/bookgraph/internal/schema"
)

// librarySchema mirrors the book API:
//
//	type Query  { books: [Book!]! @async  book(name: String!): Book @async  version: String }
//	type Book   { title: String!  buyLink: String @async  authors: [Author]! @async }
//	type Author { name: String! }
func librarySchema() *schema.Schema {
	return newSchemaWithQueryType(
		newObjectType("Query",
			schema.NewField("books", "", schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("Book"))))).SetAsync(true),
			schema.NewField("book", "", schema.NamedType("Book")).
				AddArgument(schema.NewInputValue("name", "", schema.NonNullType(schema.NamedType("String")))).
				SetAsync(true),
			schema.NewField("version", "", schema.NamedType("String")),
		),
		newObjectType("Book",
			schema.NewField("title", "", schema.NonNullType(schema.NamedType("String"))),
			schema.NewField("buyLink", "", schema.NamedType("String")).SetAsync(true),
			schema.NewField("authors", "", schema.NonNullType(schema.ListType(schema.NamedType("Author")))).SetAsync(true),
		),
		newObjectType("Author",
			schema.NewField("name", "", schema.NonNullType(schema.NamedType("String"))),
		),
		newScalarType("String"),
	)
}

func book(title string) map[string]any { return map[string]any{"title": title} }

func field(key string) MockResolver {
	return func(ctx context.Context, src any, args map[string]any) (any, error) {
		return src.(map[string]any)[key], nil
	}
}

func libraryRuntime() *MockRuntime {
	return NewMockRuntime(map[string]MockResolver{
		"Query.books": NewMockValueResolver([]any{book("Lord of the Flies"), book("Animal Farm")}),
		"Book.title":  field("title"),
		"Book.buyLink": func(ctx context.Context, src any, args map[string]any) (any, error) {
			return "buy:" + src.(map[string]any)["title"].(string), nil
		},
		"Book.authors": func(ctx context.Context, src any, args map[string]any) (any, error) {
			return []any{map[string]any{"name": "author of " + src.(map[string]any)["title"].(string)}}, nil
		},
		"Author.name": field("name"),
	})
}

func TestExecute_OperationSelection(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		operation string
		want      *ExecutionResult
	}{
		{
			name:  "anonymous",
			query: "{ version }",
			want:  &ExecutionResult{Data: map[string]any{"version": "1"}, Errors: []GraphQLError{}, State: StateComplete},
		},
		{
			name:  "single named without name",
			query: "query V { version }",
			want:  &ExecutionResult{Data: map[string]any{"version": "1"}, Errors: []GraphQLError{}, State: StateComplete},
		},
		{
			name:      "named among many",
			query:     "query A { books { title } } query V { version }",
			operation: "V",
			want:      &ExecutionResult{Data: map[string]any{"version": "1"}, Errors: []GraphQLError{}, State: StateComplete},
		},
		{
			name:  "ambiguous",
			query: "query A { version } query B { version }",
			want:  &ExecutionResult{Errors: []GraphQLError{{Message: "operation not found"}}, State: StateFailed},
		},
		{
			name:      "unknown name",
			query:     "query A { version }",
			operation: "Z",
			want:      &ExecutionResult{Errors: []GraphQLError{{Message: "operation not found"}}, State: StateFailed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := NewMockRuntime(map[string]MockResolver{"Query.version": NewMockValueResolver("1")})
			got := NewExecutor(rt, librarySchema()).ExecuteRequest(context.Background(), mustParseQuery(t, tt.query), tt.operation, nil, nil)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecute_ArgumentsFromVariables(t *testing.T) {
	rt := libraryRuntime()
	rt.SetResolver("Query", "book", func(ctx context.Context, src any, args map[string]any) (any, error) {
		return book(args["name"].(string)), nil
	})
	exec := NewExecutor(rt, librarySchema())

	t.Run("provided", func(t *testing.T) {
		got := exec.ExecuteRequest(context.Background(), mustParseQuery(t, `query($n: String!) { book(name: $n) { title } }`), "", map[string]any{"n": "Animal Farm"}, nil)
		want := &ExecutionResult{Data: map[string]any{"book": map[string]any{"title": "Animal Farm"}}, Errors: []GraphQLError{}, State: StateComplete}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("default", func(t *testing.T) {
		got := exec.ExecuteRequest(context.Background(), mustParseQuery(t, `query($n: String = "Dune") { book(name: $n) { title } }`), "", nil, nil)
		want := &ExecutionResult{Data: map[string]any{"book": map[string]any{"title": "Dune"}}, Errors: []GraphQLError{}, State: StateComplete}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing required", func(t *testing.T) {
		got := exec.ExecuteRequest(context.Background(), mustParseQuery(t, `query($n: String!) { book(name: $n) { title } }`), "", nil, nil)
		want := &ExecutionResult{Errors: []GraphQLError{{Message: "variable $n of required type String! was not provided"}}, State: StateFailed}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestExecute_OneBatchPerAsyncDepth(t *testing.T) {
	rt := libraryRuntime()
	exec := NewExecutor(rt, librarySchema())

	got := exec.ExecuteRequest(context.Background(), mustParseQuery(t, "{ books { title buyLink authors { name } } }"), "", nil, nil)

	want := &ExecutionResult{
		Data: map[string]any{"books": []any{
			map[string]any{
				"title":   "Lord of the Flies",
				"buyLink": "buy:Lord of the Flies",
				"authors": []any{map[string]any{"name": "author of Lord of the Flies"}},
			},
			map[string]any{
				"title":   "Animal Farm",
				"buyLink": "buy:Animal Farm",
				"authors": []any{map[string]any{"name": "author of Animal Farm"}},
			},
		}},
		Errors: []GraphQLError{},
		State:  StateComplete,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}

	lotf, af := book("Lord of the Flies"), book("Animal Farm")
	wantCalls := []Call{
		{Kind: CallKindAsync, ObjectType: "Query", Field: "books", Args: map[string]any{}, BatchID: 1},
		{Kind: CallKindSync, ObjectType: "Book", Field: "title", Source: lotf, Args: map[string]any{}},
		{Kind: CallKindSync, ObjectType: "Book", Field: "title", Source: af, Args: map[string]any{}},
		{Kind: CallKindAsync, ObjectType: "Book", Field: "buyLink", Source: lotf, Args: map[string]any{}, BatchID: 2},
		{Kind: CallKindAsync, ObjectType: "Book", Field: "buyLink", Source: af, Args: map[string]any{}, BatchID: 2},
		{Kind: CallKindAsync, ObjectType: "Book", Field: "authors", Source: lotf, Args: map[string]any{}, BatchID: 2},
		{Kind: CallKindAsync, ObjectType: "Book", Field: "authors", Source: af, Args: map[string]any{}, BatchID: 2},
		{Kind: CallKindSync, ObjectType: "Author", Field: "name", Source: map[string]any{"name": "author of Lord of the Flies"}, Args: map[string]any{}},
		{Kind: CallKindSync, ObjectType: "Author", Field: "name", Source: map[string]any{"name": "author of Animal Farm"}, Args: map[string]any{}},
	}
	if diff := cmp.Diff(wantCalls, rt.GetCalls()); diff != "" {
		t.Fatalf("Runtime calls mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_EmptyParentListSkipsChildResolvers(t *testing.T) {
	rt := libraryRuntime()
	rt.SetResolver("Query", "books", NewMockValueResolver([]any{}))
	exec := NewExecutor(rt, librarySchema())

	got := exec.ExecuteRequest(context.Background(), mustParseQuery(t, "{ books { title authors { name } } }"), "", nil, nil)

	want := &ExecutionResult{Data: map[string]any{"books": []any{}}, Errors: []GraphQLError{}, State: StateComplete}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	if rt.Batches() != 1 {
		t.Fatalf("expected only the root batch, got %d", rt.Batches())
	}
}

func TestExecute_FieldErrorsCarryCodes(t *testing.T) {
	rt := libraryRuntime()
	rt.SetResolver("Query", "version", NewMockErrorResolver(fmt.Errorf("boom")))
	rt.SetResolver("Book", "buyLink", func(ctx context.Context, src any, args map[string]any) (any, error) {
		if src.(map[string]any)["title"] == "Animal Farm" {
			return nil, &gqlerr.BatchShapeError{ObjectType: "Book", Field: "buyLink", Want: 2, Got: 1}
		}
		return "buy", nil
	})
	exec := NewExecutor(rt, librarySchema())

	got := exec.ExecuteRequest(context.Background(), mustParseQuery(t, "{ version books { buyLink } }"), "", nil, nil)

	want := &ExecutionResult{
		Data: map[string]any{
			"version": nil,
			"books":   []any{map[string]any{"buyLink": "buy"}, map[string]any{"buyLink": nil}},
		},
		Errors: []GraphQLError{
			{Message: "boom", Path: Path{"version"}, Extensions: map[string]any{"code": gqlerr.CodeResolution}},
			{Message: "batch resolver Book.buyLink returned 1 results for 2 parents", Path: Path{"books", 1, "buyLink"}, Extensions: map[string]any{"code": gqlerr.CodeBatchShape}},
		},
		State: StateComplete,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_NotFoundResolvesToNull(t *testing.T) {
	rt := libraryRuntime()
	rt.SetResolver("Query", "book", NewMockErrorResolver(gqlerr.NotFound("book", "Dune")))
	rt.SetResolver("Query", "version", NewMockErrorResolver(gqlerr.ErrNotFound))
	exec := NewExecutor(rt, librarySchema())

	got := exec.ExecuteRequest(context.Background(), mustParseQuery(t, `{ book(name: "Dune") { title } version }`), "", nil, nil)

	want := &ExecutionResult{Data: map[string]any{"book": nil, "version": nil}, Errors: []GraphQLError{}, State: StateComplete}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_NonNullViolationDropsQueuedWork(t *testing.T) {
	rt := libraryRuntime()
	rt.SetResolver("Book", "title", func(ctx context.Context, src any, args map[string]any) (any, error) {
		if src.(map[string]any)["title"] == "Animal Farm" {
			return nil, nil
		}
		return src.(map[string]any)["title"], nil
	})
	exec := NewExecutor(rt, librarySchema())

	got := exec.ExecuteRequest(context.Background(), mustParseQuery(t, "{ books { title buyLink } version }"), "", nil, nil)

	want := &ExecutionResult{
		Data: map[string]any{"books": nil, "version": nil},
		Errors: []GraphQLError{
			{Message: "Cannot return null for non-nullable field books.[1].title", Path: Path{"books", 1, "title"}},
		},
		State: StateComplete,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	if rt.Batches() != 1 {
		t.Fatalf("buyLink under the nulled field must not be resolved, got %d batches", rt.Batches())
	}
}

func TestExecute_TimeoutAbortsWithoutData(t *testing.T) {
	rt := libraryRuntime()
	rt.SetResolver("Book", "buyLink", func(ctx context.Context, src any, args map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	var states []State
	exec := NewExecutor(rt, librarySchema()).OnStateChange(func(s State) { states = append(states, s) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	got := exec.ExecuteRequest(ctx, mustParseQuery(t, "{ books { title buyLink } }"), "", nil, nil)

	want := &ExecutionResult{
		Errors: []GraphQLError{{Message: gqlerr.ErrTimeout.Error(), Extensions: map[string]any{"code": gqlerr.CodeTimeout}}},
		State:  StateFailed,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	if last := states[len(states)-1]; last != StateFailed {
		t.Fatalf("final state = %s, want failed", last)
	}
}

func TestExecute_ExpiredContextAbortsSyncOnlyQuery(t *testing.T) {
	var states []State
	exec := NewExecutor(libraryRuntime(), librarySchema()).OnStateChange(func(s State) { states = append(states, s) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := exec.ExecuteRequest(ctx, mustParseQuery(t, "{ version }"), "", nil, nil)

	if diff := cmp.Diff(timeoutResult(), got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	if last := states[len(states)-1]; last != StateFailed {
		t.Fatalf("final state = %s, want failed", last)
	}
}

func TestExecute_StateTransitions(t *testing.T) {
	var states []State
	exec := NewExecutor(libraryRuntime(), librarySchema()).OnStateChange(func(s State) { states = append(states, s) })

	res := exec.ExecuteRequest(context.Background(), mustParseQuery(t, "{ books { buyLink } }"), "", nil, nil)
	if res.State != StateComplete {
		t.Fatalf("State = %s, want complete", res.State)
	}

	want := []State{StateAssembling, StateResolving, StateAssembling, StateResolving, StateAssembling, StateComplete}
	if diff := cmp.Diff(want, states); diff != "" {
		t.Fatalf("state transitions mismatch (-want +got):\n%s", diff)
	}
}

// reverseRuntime resolves each batch back to front while still answering in
// task order.
type reverseRuntime struct{ *MockRuntime }

func (r reverseRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	out := make([]AsyncResolveResult, len(tasks))
	for i := len(tasks) - 1; i >= 0; i-- {
		out[i] = r.MockRuntime.BatchResolveAsync(ctx, tasks[i:i+1])[0]
	}
	return out
}

func TestExecute_SiblingOrderDoesNotChangeResult(t *testing.T) {
	doc := mustParseQuery(t, "{ books { title buyLink authors { name } } version }")

	forward := NewExecutor(libraryRuntime(), librarySchema()).ExecuteRequest(context.Background(), doc, "", nil, nil)
	backward := NewExecutor(reverseRuntime{libraryRuntime()}, librarySchema()).ExecuteRequest(context.Background(), doc, "", nil, nil)

	if diff := cmp.Diff(forward, backward); diff != "" {
		t.Fatalf("results differ by resolution order (-forward +backward):\n%s", diff)
	}
}

func TestExecute_Idempotent(t *testing.T) {
	exec := NewExecutor(libraryRuntime(), librarySchema())
	doc := mustParseQuery(t, "{ books { title buyLink } }")

	first := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	second := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated execution differs (-first +second):\n%s", diff)
	}
}

func TestExecute_RuntimeShortResultsFailEveryTask(t *testing.T) {
	exec := NewExecutor(shortRuntime{libraryRuntime()}, librarySchema())

	got := exec.ExecuteRequest(context.Background(), mustParseQuery(t, "{ book(name: \"x\") { title } }"), "", nil, nil)

	want := &ExecutionResult{
		Data: map[string]any{"book": nil},
		Errors: []GraphQLError{{
			Message:    "runtime returned 0 results for 1 async fields",
			Path:       Path{"book"},
			Extensions: map[string]any{"code": gqlerr.CodeResolution},
		}},
		State: StateComplete,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

type shortRuntime struct{ *MockRuntime }

func (shortRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	return nil
}

func TestExecute_NulledObjectDropsQueuedChildren(t *testing.T) {
	rt := libraryRuntime()
	rt.SetResolver("Query", "book", NewMockValueResolver(map[string]any{}))
	exec := NewExecutor(rt, librarySchema())

	got := exec.ExecuteRequest(context.Background(), mustParseQuery(t, `{ book(name: "Dune") { buyLink title } }`), "", nil, nil)

	want := &ExecutionResult{
		Data: map[string]any{"book": nil},
		Errors: []GraphQLError{
			{Message: "Cannot return null for non-nullable field book.title", Path: Path{"book", "title"}},
		},
		State: StateComplete,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	if rt.Batches() != 1 {
		t.Fatalf("buyLink of the nulled book must not be resolved, got %d batches", rt.Batches())
	}
}

func TestPathString(t *testing.T) {
	if got := (Path{"books", 1, "authors", 0, "name"}).String(); got != "books.[1].authors.[0].name" {
		t.Fatalf("Path.String() = %q", got)
	}
	if got := (Path{}).String(); got != "" {
		t.Fatalf("empty Path.String() = %q", got)
	}
}
