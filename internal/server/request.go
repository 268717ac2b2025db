package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// Request is one GraphQL operation request.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// requestError is a malformed HTTP request; it carries its status code.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) *requestError {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

var errBodyTooLarge = &requestError{status: http.StatusRequestEntityTooLarge, message: "body too large"}

// DecodeRequests decodes a JSON request body: a single request object or a
// non-empty array of them. batch reports which form was used.
func DecodeRequests(body []byte) (reqs []Request, batch bool, err error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false, errors.New("empty body")
	}
	if body[0] == '[' {
		if err := json.Unmarshal(body, &reqs); err != nil {
			return nil, true, fmt.Errorf("invalid JSON: %w", err)
		}
		if len(reqs) == 0 {
			return nil, true, errors.New("empty batch")
		}
		for i := range reqs {
			if reqs[i].Query == "" {
				return nil, true, fmt.Errorf("missing 'query' in batch entry %d", i)
			}
		}
		return reqs, true, nil
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, false, fmt.Errorf("invalid JSON: %w", err)
	}
	return []Request{req}, false, nil
}

// fromQueryString reads query, operationName and variables from q. Missing
// keys leave req untouched.
func fromQueryString(q url.Values, req *Request) error {
	if v := q.Get("query"); v != "" {
		req.Query = v
	}
	if v := q.Get("operationName"); v != "" {
		req.OperationName = v
	}
	if v := q.Get("variables"); v != "" {
		vars := map[string]any{}
		if err := json.Unmarshal([]byte(v), &vars); err != nil {
			return errors.New("invalid 'variables' JSON")
		}
		req.Variables = vars
	}
	if v := q.Get("extensions"); v != "" {
		ext := map[string]any{}
		if err := json.Unmarshal([]byte(v), &ext); err != nil {
			return errors.New("invalid 'extensions' JSON")
		}
		req.Extensions = ext
	}
	return nil
}

// parseRequest extracts the operations of an HTTP request. GET reads the
// query string. POST reads a JSON body or an application/graphql body and,
// when allowed, query-string parameters that override the body.
func parseRequest(r *http.Request, opt *Options) ([]Request, bool, *requestError) {
	if r.Method == http.MethodGet {
		var req Request
		if err := fromQueryString(r.URL.Query(), &req); err != nil {
			return nil, false, badRequest("%s", err)
		}
		if req.Query == "" {
			return nil, false, badRequest("missing 'query'")
		}
		return []Request{req}, false, nil
	}

	reader := io.Reader(r.Body)
	if opt.MaxBodyBytes > 0 {
		reader = io.LimitReader(r.Body, opt.MaxBodyBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, badRequest("failed to read body")
	}
	if opt.MaxBodyBytes > 0 && int64(len(body)) > opt.MaxBodyBytes {
		return nil, false, errBodyTooLarge
	}

	var (
		reqs  []Request
		batch bool
	)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case ct == "application/graphql":
		reqs = []Request{{Query: string(body)}}
	case ct == "" || ct == "application/json":
		if len(bytes.TrimSpace(body)) == 0 && opt.AllowPostWithQueryParameters {
			reqs = []Request{{}}
			break
		}
		reqs, batch, err = DecodeRequests(body)
		if err != nil {
			return nil, batch, badRequest("%s", err)
		}
	default:
		return nil, false, &requestError{status: http.StatusUnsupportedMediaType, message: "unsupported Content-Type"}
	}

	if opt.AllowPostWithQueryParameters && !batch {
		if err := fromQueryString(r.URL.Query(), &reqs[0]); err != nil {
			return nil, false, badRequest("%s", err)
		}
	}
	if !batch && reqs[0].Query == "" {
		return nil, false, badRequest("missing 'query'")
	}
	return reqs, batch, nil
}
