// Package correlation carries the id that ties one client interaction to
// every log line and audit entry it produces.
package correlation

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	HeaderName = "X-Correlation-Id"

	maxIDLength = 128
)

type key struct{}

func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(key{}).(string)
	return id
}

// WithID stores id when it is usable as a log field. Ids that are too long
// or contain characters outside [A-Za-z0-9._:-] are ignored.
func WithID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if !valid(id) {
		return ctx
	}
	return context.WithValue(ctx, key{}, id)
}

// Ensure returns ctx with a correlation id, minting a ULID when none is set.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return context.WithValue(ctx, key{}, id), id
}

func valid(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == ':', r == '-':
		default:
			return false
		}
	}
	return true
}
