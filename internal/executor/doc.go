// Package executor runs GraphQL operations breadth-first, one async depth at a
// time, and assembles a single response once every pending field has settled.
//
// # Execution model
//
// A field is sync or async according to schema.Field.Async. Sync fields are
// resolved through Runtime.ResolveSync and completed on the spot, so purely
// sync descents never add depth. Async fields are queued with their response
// path; once the current depth has been fully expanded the queue is handed to
// Runtime.BatchResolveAsync in one call. The runtime is free to run the
// queued resolvers concurrently; the executor only continues once every
// result of the depth is back. Completing those results may queue the next
// depth.
//
// For a query whose async nesting is d, BatchResolveAsync is called exactly d
// times. The runtime returns results in task order, so sibling resolution
// order never changes the shape or content of the response.
//
// # Lifecycle
//
// Each execution moves through StatePending, then alternates between
// StateResolving (a depth is in flight) and StateAssembling (settled values
// are written into the result tree), and ends in StateComplete or
// StateFailed. Observers can follow transitions with Executor.OnStateChange.
//
// # Errors
//
// Errors are collected as located GraphQLErrors and the rest of the tree is
// still produced:
//   - a failed field resolves to null and records its error with an
//     extensions.code taken from gqlerr.Code;
//   - a field failing with gqlerr.ErrNotFound resolves to null silently;
//   - a Non-Null violation inside a sync descent nulls the nearest nullable
//     parent; one found while completing an async result nulls the enclosing
//     top-level field. Either way async work queued beneath the nulled value
//     is dropped.
//
// Malformed requests (unknown operation, bad variables) and executions whose
// context ends between depths produce no data and StateFailed. A context that
// ends mid-depth yields a single TIMEOUT error; whatever had already resolved
// is discarded.
package executor
