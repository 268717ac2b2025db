// Package reqid carries a per-request identifier through contexts and the
// X-Request-Id header.
package reqid

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofrs/uuid"
)

// Header is the HTTP header that carries the request id in and out.
const Header = "X-Request-Id"

type key struct{}

// NewContext returns a copy of parent carrying a fresh UUID v4 request id.
func NewContext(parent context.Context) (context.Context, string) {
	id := uuid.Must(uuid.NewV4()).String()
	return context.WithValue(parent, key{}, id), id
}

// WithID stores id in ctx as-is.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, key{}, id)
}

// FromContext extracts the request id from ctx.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}

// FromRequest reuses a client-supplied X-Request-Id, normalising it when it
// parses as a UUID, or generates a new one.
func FromRequest(r *http.Request) (context.Context, string) {
	id := strings.TrimSpace(r.Header.Get(Header))
	if id == "" {
		return NewContext(r.Context())
	}
	if u, err := uuid.FromString(id); err == nil {
		id = u.String()
	}
	return WithID(r.Context(), id), id
}
