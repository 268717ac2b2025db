package server

import (
	"encoding/json"
	"net/http"

	"github.com/hanpama/bookgraph/internal/executor"
	"github.com/hanpama/bookgraph/internal/gqlerr"
	"github.com/hanpama/bookgraph/internal/language"
)

type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type Error struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Response is the JSON body of one operation.
type Response struct {
	Data   any     `json:"data"`
	Errors []Error `json:"errors,omitempty"`
}

func messageResponse(message string) Response {
	return Response{Errors: []Error{{Message: message}}}
}

// documentResponse reports syntax or validation errors; nothing was executed.
func documentResponse(errs language.ErrorList) Response {
	out := Response{Errors: make([]Error, len(errs))}
	for i, e := range errs {
		ge := Error{Message: e.Message, Extensions: map[string]any{"code": gqlerr.CodeBadRequest}}
		for _, l := range e.Locations {
			ge.Locations = append(ge.Locations, Location{Line: l.Line, Column: l.Column})
		}
		out.Errors[i] = ge
	}
	return out
}

func resultResponse(res *executor.ExecutionResult) Response {
	out := Response{Data: res.Data}
	if len(res.Errors) == 0 {
		return out
	}
	out.Errors = make([]Error, len(res.Errors))
	for i, e := range res.Errors {
		ge := Error{Message: e.Message, Extensions: e.Extensions}
		if len(e.Path) > 0 {
			ge.Path = make([]any, len(e.Path))
			for j, pe := range e.Path {
				ge.Path[j] = pe
			}
		}
		out.Errors[i] = ge
	}
	return out
}

// EncodeResult writes v as JSON with the given status.
func EncodeResult(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}
