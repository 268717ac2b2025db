// Package events declares the values published on the event bus.
package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when an HTTP request is received. The publishing
// context carries the request id.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is emitted after the handler completes.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Bytes    int64
	Duration time.Duration
}
