package executor

import (
	"errors"

	"github.com/hanpama/bookgraph/internal/gqlerr"
)

// GraphQLError represents an error that occurred during execution
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// State is the lifecycle position of one execution.
type State int

const (
	// StatePending: the request is accepted but no field has been resolved.
	StatePending State = iota
	// StateResolving: a depth of async fields is in flight.
	StateResolving
	// StateAssembling: settled values are being completed into the result tree.
	StateAssembling
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolving:
		return "resolving"
	case StateAssembling:
		return "assembling"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ExecutionResult represents the result of executing a GraphQL query
type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
	// State is StateComplete when data was produced (possibly with field
	// errors) and StateFailed when the request was rejected or aborted.
	State State `json:"-"`
}

// failedResult reports a request that produced no data.
func failedResult(errs ...GraphQLError) *ExecutionResult {
	return &ExecutionResult{Errors: errs, State: StateFailed}
}

// timeoutResult discards everything resolved so far.
func timeoutResult() *ExecutionResult {
	return failedResult(GraphQLError{
		Message:    gqlerr.ErrTimeout.Error(),
		Extensions: map[string]any{"code": gqlerr.CodeTimeout},
	})
}

// fieldError locates a resolver error at path and tags it with its code.
func fieldError(err error, path Path) GraphQLError {
	var gerr GraphQLError
	if errors.As(err, &gerr) {
		if gerr.Path == nil {
			gerr.Path = path
		}
		return gerr
	}
	return GraphQLError{
		Message:    err.Error(),
		Path:       path,
		Extensions: map[string]any{"code": gqlerr.Code(err)},
	}
}
