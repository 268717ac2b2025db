package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/rs/cors"

	"github.com/hanpama/bookgraph/internal/eventbus"
	"github.com/hanpama/bookgraph/internal/events"
	"github.com/hanpama/bookgraph/internal/reqid"
	"github.com/hanpama/bookgraph/internal/schema"
)

// Routes describes the HTTP surfaces to mount.
type Routes struct {
	GraphQLPath string
	// Execution serves GraphQLPath. Nil means the execution service failed
	// to start; every GraphQL route then answers with NoEndpointHandler.
	Execution       http.Handler
	Schema          *schema.Schema
	SchemaAvailable bool

	UIEnable bool
	UIPath   string

	// Metrics is mounted at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string

	CORSOrigins []string
}

// SchemaPath is where the SDL is served.
func (rt Routes) SchemaPath() string {
	return strings.TrimSuffix(rt.GraphQLPath, "/") + "/schema.graphql"
}

// Handler builds the mux, wrapped with CORS when origins are configured and
// with request instrumentation.
func (rt Routes) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	initialized := rt.Execution != nil
	if initialized {
		mux.Handle(rt.GraphQLPath, rt.Execution)
	} else {
		mux.Handle(rt.GraphQLPath, NoEndpointHandler())
	}

	if initialized && rt.SchemaAvailable && rt.Schema != nil {
		mux.Handle(rt.SchemaPath(), SchemaHandler(rt.Schema))
	} else {
		mux.Handle(rt.SchemaPath(), NoEndpointHandler())
	}

	if rt.UIPath != "" {
		if rt.UIEnable {
			ui, err := UIHandler(rt.GraphQLPath)
			if err != nil {
				return nil, fmt.Errorf("ui handler: %w", err)
			}
			mux.Handle(rt.UIPath, ui)
		} else {
			mux.Handle(rt.UIPath, http.NotFoundHandler())
		}
	}

	if rt.Metrics != nil {
		mux.Handle(rt.MetricsPath, rt.Metrics)
	}

	var h http.Handler = mux
	if len(rt.CORSOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: rt.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{reqid.Header},
		}).Handler(h)
	}
	return Instrument(h), nil
}

// Instrument assigns the request id, echoes it in X-Request-Id and publishes
// HTTPStart and HTTPFinish around next.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, rid := reqid.FromRequest(r)
		w.Header().Set(reqid.Header, rid)
		r = r.WithContext(ctx)

		eventbus.Publish(ctx, events.HTTPStart{Request: r})
		m := httpsnoop.CaptureMetrics(next, w, r)
		eventbus.Publish(ctx, events.HTTPFinish{
			Request:  r,
			Status:   m.Code,
			Bytes:    m.Written,
			Duration: m.Duration,
		})
	})
}
