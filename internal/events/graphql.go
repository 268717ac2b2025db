package events

import "time"

// GraphQLStart is emitted before executing a GraphQL operation.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is emitted after an operation's result is final. State is
// the executor's terminal state ("complete" or "failed").
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	State         string
	Errors        []error
	Duration      time.Duration
}
