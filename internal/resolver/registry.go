// Package resolver maps (object type, field) pairs to resolver functions and
// runs them for the executor.
//
// Three kinds of resolvers can be registered:
//   - FieldFunc returns its value immediately; the field stays sync.
//   - AsyncFieldFunc returns a pending computation per parent.
//   - BatchFunc receives every parent of an execution depth at once and
//     returns one computation holding one slot per parent.
//
// Registering an AsyncFieldFunc or BatchFunc marks the field async once the
// registry is applied to a schema with Annotate. Fields without a resolver
// read the like-named property of their parent.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hanpama/bookgraph/internal/eventbus"
	"github.com/hanpama/bookgraph/internal/events"
	"github.com/hanpama/bookgraph/internal/executor"
	"github.com/hanpama/bookgraph/internal/gqlerr"
	"github.com/hanpama/bookgraph/internal/pending"
	"github.com/hanpama/bookgraph/internal/schema"
)

// DefaultMaxConcurrency bounds how many resolver groups of one depth run at
// the same time.
const DefaultMaxConcurrency = 16

type (
	FieldFunc      func(ctx context.Context, source any, args map[string]any) (any, error)
	AsyncFieldFunc func(ctx context.Context, source any, args map[string]any) *pending.Computation[any]
	// BatchFunc resolves a relation for many parents at once. The settled
	// slice must have exactly one result per source, in source order.
	BatchFunc func(ctx context.Context, sources []any, args map[string]any) *pending.Computation[[]executor.AsyncResolveResult]
	// TypeFunc names the concrete object type of an interface or union value.
	TypeFunc func(value any) (string, error)
)

type fieldKey struct {
	objectType string
	field      string
}

func (k fieldKey) String() string { return k.objectType + "." + k.field }

// Registry is an executor.Runtime backed by registered resolver functions.
// It must be fully configured before it is shared between executions.
type Registry struct {
	fields  map[fieldKey]FieldFunc
	async   map[fieldKey]AsyncFieldFunc
	batch   map[fieldKey]BatchFunc
	types   map[string]TypeFunc
	scalars map[string]ScalarFunc

	maxConcurrency int
}

var _ executor.Runtime = (*Registry)(nil)

type Option func(*Registry)

// WithMaxConcurrency bounds the resolver groups run in parallel per depth.
// Values below one fall back to DefaultMaxConcurrency.
func WithMaxConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxConcurrency = n
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		fields:         make(map[fieldKey]FieldFunc),
		async:          make(map[fieldKey]AsyncFieldFunc),
		batch:          make(map[fieldKey]BatchFunc),
		types:          make(map[string]TypeFunc),
		scalars:        builtinScalars(),
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Field registers a sync resolver.
func (r *Registry) Field(objectType, field string, fn FieldFunc) *Registry {
	k := fieldKey{objectType, field}
	r.clear(k)
	r.fields[k] = fn
	return r
}

// AsyncField registers a resolver whose value arrives later.
func (r *Registry) AsyncField(objectType, field string, fn AsyncFieldFunc) *Registry {
	k := fieldKey{objectType, field}
	r.clear(k)
	r.async[k] = fn
	return r
}

// Batch registers a resolver called once per depth with all parents.
func (r *Registry) Batch(objectType, field string, fn BatchFunc) *Registry {
	k := fieldKey{objectType, field}
	r.clear(k)
	r.batch[k] = fn
	return r
}

// TypeResolver registers how values of an interface or union are typed.
func (r *Registry) TypeResolver(abstractType string, fn TypeFunc) *Registry {
	r.types[abstractType] = fn
	return r
}

func (r *Registry) clear(k fieldKey) {
	delete(r.fields, k)
	delete(r.async, k)
	delete(r.batch, k)
}

// Annotate marks every async and batch field as async in s. It fails when a
// resolver was registered for a field s does not define.
func (r *Registry) Annotate(s *schema.Schema) error {
	var unknown []string
	for k := range r.fields {
		if s.FieldDef(k.objectType, k.field) == nil {
			unknown = append(unknown, k.String())
		}
	}
	for _, m := range []map[fieldKey]struct{}{keys(r.async), keys(r.batch)} {
		for k := range m {
			if !s.MarkAsync(k.objectType, k.field) {
				unknown = append(unknown, k.String())
			}
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("resolvers registered for undefined fields: %v", unknown)
	}
	return nil
}

func keys[V any](m map[fieldKey]V) map[fieldKey]struct{} {
	out := make(map[fieldKey]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// ResolveSync runs a registered FieldFunc or reads the property from source.
func (r *Registry) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	k := fieldKey{objectType, field}
	if fn, ok := r.fields[k]; ok {
		v, err := fn(ctx, source, args)
		if err != nil {
			return nil, wrapResolution(k, err)
		}
		return v, nil
	}
	if _, ok := r.async[k]; ok {
		return nil, fmt.Errorf("field %s is async but was resolved synchronously", k)
	}
	if _, ok := r.batch[k]; ok {
		return nil, fmt.Errorf("field %s is batched but was resolved synchronously", k)
	}
	return Property(source, field)
}

type taskGroup struct {
	key  fieldKey
	args map[string]any
	idxs []int
}

// BatchResolveAsync groups tasks by field and, for batch resolvers, by
// argument set. Groups run concurrently up to the configured limit; every
// result is written to its task's slot.
func (r *Registry) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var groups []*taskGroup
	index := make(map[string]*taskGroup)
	for i, t := range tasks {
		k := fieldKey{t.ObjectType, t.Field}
		id := k.String()
		if _, ok := r.batch[k]; ok {
			id += "(" + argsFingerprint(t.Args) + ")"
		}
		g, ok := index[id]
		if !ok {
			g = &taskGroup{key: k, args: t.Args}
			index[id] = g
			groups = append(groups, g)
		}
		g.idxs = append(g.idxs, i)
	}

	var eg errgroup.Group
	eg.SetLimit(r.maxConcurrency)
	for _, g := range groups {
		eg.Go(func() error {
			r.runGroup(ctx, g, tasks, results)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func (r *Registry) runGroup(ctx context.Context, g *taskGroup, tasks []executor.AsyncResolveTask, results []executor.AsyncResolveResult) {
	start := time.Now()
	var (
		kind string
		err  error
	)
	switch {
	case r.batch[g.key] != nil:
		kind = "batch"
		err = r.runBatch(ctx, g, tasks, results)
	case r.async[g.key] != nil:
		kind = "async"
		r.runAsync(ctx, g, tasks, results)
	default:
		kind = "property"
		for _, i := range g.idxs {
			v, err := Property(tasks[i].Source, g.key.field)
			results[i] = executor.AsyncResolveResult{Value: v, Error: err}
		}
	}

	failed := 0
	for _, i := range g.idxs {
		if results[i].Error != nil {
			failed++
		}
	}
	eventbus.Publish(ctx, events.BatchFinish{
		ObjectType: g.key.objectType,
		Field:      g.key.field,
		Kind:       kind,
		Parents:    len(g.idxs),
		Failed:     failed,
		Err:        err,
		Start:      start,
		Duration:   time.Since(start),
	})
}

// runBatch calls the batch resolver once for the whole group. Any group-level
// failure, including a result of the wrong length, fails every slot.
func (r *Registry) runBatch(ctx context.Context, g *taskGroup, tasks []executor.AsyncResolveTask, results []executor.AsyncResolveResult) error {
	sources := make([]any, len(g.idxs))
	for j, i := range g.idxs {
		sources[j] = tasks[i].Source
	}

	fn := r.batch[g.key]
	c := call(func() *pending.Computation[[]executor.AsyncResolveResult] { return fn(ctx, sources, g.args) })
	out, err := c.Await(ctx)
	if err == nil && len(out) != len(sources) {
		err = &gqlerr.BatchShapeError{ObjectType: g.key.objectType, Field: g.key.field, Want: len(sources), Got: len(out)}
	}
	if err != nil {
		err = wrapResolution(g.key, err)
		for _, i := range g.idxs {
			results[i] = executor.AsyncResolveResult{Error: err}
		}
		return err
	}
	for j, i := range g.idxs {
		res := out[j]
		if res.Error != nil {
			res = executor.AsyncResolveResult{Error: wrapResolution(g.key, res.Error)}
		}
		results[i] = res
	}
	return nil
}

// runAsync starts every computation of the group before awaiting any.
func (r *Registry) runAsync(ctx context.Context, g *taskGroup, tasks []executor.AsyncResolveTask, results []executor.AsyncResolveResult) {
	fn := r.async[g.key]
	cs := make([]*pending.Computation[any], len(g.idxs))
	for j, i := range g.idxs {
		t := tasks[i]
		cs[j] = call(func() *pending.Computation[any] { return fn(ctx, t.Source, t.Args) })
	}
	for j, res := range pending.AwaitAll(ctx, cs) {
		i := g.idxs[j]
		if res.Err != nil {
			results[i] = executor.AsyncResolveResult{Error: wrapResolution(g.key, res.Err)}
			continue
		}
		results[i] = executor.AsyncResolveResult{Value: res.Value}
	}
}

// call invokes a resolver, turning a panic or a nil computation into a failed
// one.
func call[T any](fn func() *pending.Computation[T]) (c *pending.Computation[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			c = pending.Failed[T](&pending.PanicError{Value: rec, Stack: debug.Stack()})
		}
	}()
	if c = fn(); c == nil {
		c = pending.Failed[T](errors.New("resolver returned no computation"))
	}
	return c
}

// wrapResolution tags err with the field it came from. Not-found and timeout
// errors pass through so the executor can recognise them.
func wrapResolution(k fieldKey, err error) error {
	var shape *gqlerr.BatchShapeError
	var res *gqlerr.ResolutionError
	switch {
	case errors.Is(err, gqlerr.ErrNotFound), gqlerr.IsTimeout(err), errors.As(err, &shape), errors.As(err, &res):
		return err
	}
	return &gqlerr.ResolutionError{ObjectType: k.objectType, Field: k.field, Err: err}
}

// argsFingerprint is a stable key for an argument set. encoding/json sorts
// map keys, so equal argument maps encode identically.
func argsFingerprint(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(b)
}

// ResolveType uses the registered TypeFunc or a "__typename" map entry.
func (r *Registry) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	if fn, ok := r.types[abstractType]; ok {
		return fn(value)
	}
	if m, ok := value.(map[string]any); ok {
		if name, ok := m["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot resolve concrete type of %s from %T", abstractType, value)
}

func (r *Registry) ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error) {
	return value, nil
}

func (r *Registry) ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error) {
	return value, nil
}
