package events

import "time"

// BatchFinish is emitted after one resolver group of an execution depth has
// settled. Parents is the number of parent objects the group covered and
// Failed the number of slots that ended in an error.
type BatchFinish struct {
	ObjectType string
	Field      string
	// Kind is "batch" for batch resolvers and "async" for per-parent async
	// resolvers.
	Kind     string
	Parents  int
	Failed   int
	Err      error
	Start    time.Time
	Duration time.Duration
}
