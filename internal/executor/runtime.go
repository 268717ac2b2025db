package executor

import (
	"context"
)

// Runtime is everything the Executor needs from the host: field resolution,
// depth-wise batching, abstract-type resolution and leaf serialization.
//
// The Executor works breadth-first. At each depth it expands every sync field
// through ResolveSync, then hands all async fields of that depth to a single
// BatchResolveAsync call. The next depth starts only after that call returns
// and its values are completed, so a child field never sees an unsettled
// parent.
//
// Errors returned from any method become located GraphQL errors. An error
// wrapping gqlerr.ErrNotFound resolves the field to null without an error.
// Non-Null violations propagate to the top-level field.
//
// Implementations must be safe for concurrent use by different executions and
// must not mutate source or args.
type Runtime interface {
	// ResolveSync resolves a field whose schema.Field.Async is false. The
	// returned raw value is completed by the Executor, including nested
	// selections. Return (nil, nil) for null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves one depth of async fields. It must return
	// exactly one result per task, in task order. An error in one element does
	// not affect the others.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType returns the concrete object type name for a value of an
	// interface or union type.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// ResolveUnionConcreteValue unwraps a union envelope before completion.
	ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error)

	// ResolveInterfaceConcreteValue unwraps an interface envelope before completion.
	ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error)

	// SerializeLeafValue turns a scalar or enum value into a JSON-safe Go value.
	// Enums serialize to their name.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

// AsyncResolveTask is one async field instance queued at the current depth.
type AsyncResolveTask struct {
	ObjectType string
	Field      string
	// Source is the parent object value (nil for root fields).
	Source any
	// Args are the coerced field arguments.
	Args map[string]any
}

type AsyncResolveResult struct {
	// Value is the raw value prior to completion, or nil on error.
	Value any
	// Error fails this element only.
	Error error
}
