// Package server exposes the executor over HTTP: the GraphQL execution
// endpoint, the SDL schema, the GraphiQL page and the fallback used when the
// execution service could not start.
package server

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/metadata"

	"github.com/hanpama/bookgraph/internal/eventbus"
	"github.com/hanpama/bookgraph/internal/events"
	"github.com/hanpama/bookgraph/internal/executor"
	"github.com/hanpama/bookgraph/internal/language"
	"github.com/hanpama/bookgraph/internal/reqid"
	"github.com/hanpama/bookgraph/internal/schema"
)

// Handler is an http.Handler that serves a GraphQL endpoint.
// It parses requests, runs the executor, and formats responses per GraphQL spec.
type Handler struct {
	exec   *executor.Executor
	schema *schema.Schema
	opt    atomic.Pointer[Options]
}

type Options struct {
	// Timeout bounds each operation when the request context has no
	// deadline. 0 means no bound.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// MetadataHeaders lists HTTP headers that resolvers can read as incoming
	// metadata. Header names are case-insensitive. Default is none.
	MetadataHeaders []string

	AllowGet                     bool
	AllowPostWithQueryParameters bool
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithAllowGet(allow bool) Option { return func(o *Options) { o.AllowGet = allow } }
func WithAllowPostWithQueryParameters(allow bool) Option {
	return func(o *Options) { o.AllowPostWithQueryParameters = allow }
}

func newOptions(opts []Option) *Options {
	op := &Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(op)
	}
	return op
}

// New creates a GraphQL handler executing against runtime and sch.
func New(runtime executor.Runtime, sch *schema.Schema, opts ...Option) *Handler {
	h := &Handler{exec: executor.NewExecutor(runtime, sch), schema: sch}
	h.opt.Store(newOptions(opts))
	return h
}

// Configure replaces the handler options. Requests already in flight keep
// the options they started with.
func (h *Handler) Configure(opts ...Option) {
	h.opt.Store(newOptions(opts))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opt := h.opt.Load()
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opt.Timeout)
		defer cancel()
	}

	switch {
	case r.Method == http.MethodPost:
	case r.Method == http.MethodGet && opt.AllowGet:
	default:
		allow := "POST"
		if opt.AllowGet {
			allow = "GET, POST"
		}
		w.Header().Set("Allow", allow)
		EncodeResult(w, http.StatusMethodNotAllowed, messageResponse("method not allowed"), opt.Pretty)
		return
	}

	ctx = metadata.NewIncomingContext(ctx, forwardedMetadata(ctx, r, opt.MetadataHeaders))

	reqs, batch, rerr := parseRequest(r, opt)
	if rerr != nil {
		EncodeResult(w, rerr.status, messageResponse(rerr.message), opt.Pretty)
		return
	}

	if batch {
		out := make([]Response, len(reqs))
		for i := range reqs {
			out[i] = h.executeOne(ctx, reqs[i], r.Method)
		}
		EncodeResult(w, http.StatusOK, out, opt.Pretty)
		return
	}
	EncodeResult(w, http.StatusOK, h.executeOne(ctx, reqs[0], r.Method), opt.Pretty)
}

// forwardedMetadata maps the allowed headers and the request id into gRPC
// style metadata, with lower-cased keys.
func forwardedMetadata(ctx context.Context, r *http.Request, headers []string) metadata.MD {
	md := metadata.MD{}
	if len(headers) > 0 {
		allowed := make(map[string]struct{}, len(headers))
		for _, hdr := range headers {
			allowed[strings.ToLower(hdr)] = struct{}{}
		}
		for k, v := range r.Header {
			if _, ok := allowed[strings.ToLower(k)]; ok {
				md[strings.ToLower(k)] = v
			}
		}
	}
	if rid, ok := reqid.FromContext(ctx); ok {
		md.Set(strings.ToLower(reqid.Header), rid)
	}
	return md
}

func (h *Handler) executeOne(ctx context.Context, req Request, method string) Response {
	var (
		doc  *language.QueryDocument
		errs language.ErrorList
	)
	if h.schema.Source != nil {
		doc, errs = language.LoadQuery(h.schema.Source, req.Query)
	} else {
		var err error
		if doc, err = language.ParseQuery(req.Query); err != nil {
			errs = language.ErrorList{toLanguageError(err)}
		}
	}
	if len(errs) > 0 {
		return documentResponse(errs)
	}

	opDef := doc.Operations.ForName(req.OperationName)
	if opDef == nil && req.OperationName == "" && len(doc.Operations) == 1 {
		opDef = doc.Operations[0]
	}
	opName, opType := req.OperationName, ""
	if opDef != nil {
		opName, opType = opDef.Name, string(opDef.Operation)
	}
	if method == http.MethodGet && opType == string(language.Mutation) {
		return messageResponse("mutations are not allowed over GET")
	}

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: opName, OperationType: opType})
	result := h.exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	errList := make([]error, len(result.Errors))
	for i := range result.Errors {
		errList[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: opName,
		OperationType: opType,
		State:         result.State.String(),
		Errors:        errList,
		Duration:      time.Since(start),
	})
	return resultResponse(result)
}

func toLanguageError(err error) *language.Error {
	if ge, ok := err.(*language.Error); ok {
		return ge
	}
	return &language.Error{Message: err.Error()}
}
