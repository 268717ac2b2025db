package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hanpama/bookgraph/internal/eventbus"
	"github.com/hanpama/bookgraph/internal/events"
	"github.com/hanpama/bookgraph/internal/reqid"
)

func TestSpansFollowRequestNesting(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	unsubscribe := Register(tp.Tracer("test"))
	t.Cleanup(unsubscribe)

	ctx, _ := reqid.NewContext(context.Background())
	req := httptest.NewRequest("POST", "/graphql", nil)
	start := time.Now().Add(-time.Second)

	eventbus.Publish(ctx, events.HTTPStart{Request: req})
	eventbus.Publish(ctx, events.GraphQLStart{OperationType: "query"})
	eventbus.Publish(ctx, events.BatchFinish{
		ObjectType: "Book", Field: "authors", Kind: "batch", Parents: 2,
		Err: errors.New("store offline"), Start: start, Duration: 5 * time.Millisecond,
	})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query", State: "complete"})
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, Status: 200})

	spans := rec.Ended()
	require.Len(t, spans, 3)
	resolve, op, httpSpan := spans[0], spans[1], spans[2]

	assert.Equal(t, "graphql.resolve", resolve.Name())
	assert.Equal(t, "graphql.operation", op.Name())
	assert.Equal(t, "http.request", httpSpan.Name())

	assert.Equal(t, op.SpanContext().SpanID(), resolve.Parent().SpanID())
	assert.Equal(t, httpSpan.SpanContext().SpanID(), op.Parent().SpanID())
	assert.True(t, start.Equal(resolve.StartTime()))
	assert.True(t, start.Add(5*time.Millisecond).Equal(resolve.EndTime()))
	assert.Len(t, resolve.Events(), 1, "error recorded on the resolver span")
}

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "", "bookgraph")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
