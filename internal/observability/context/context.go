// Package context carries request-scoped observability fields.
package context

import (
	stdcontext "context"
	"strings"
)

type requestIDKey struct{}
type actorKey struct{}
type clientKey struct{}

type actor struct {
	Role string
	ID   string
}

type client struct {
	IPAddress string
	UserAgent string
}

func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithActor records the authenticated role and user id for logs and audit.
func WithActor(ctx stdcontext.Context, role, id string) stdcontext.Context {
	return stdcontext.WithValue(ctx, actorKey{}, actor{
		Role: strings.TrimSpace(role),
		ID:   strings.TrimSpace(id),
	})
}

func ActorFromContext(ctx stdcontext.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.Role, value.ID
}

func WithClient(ctx stdcontext.Context, ipAddress, userAgent string) stdcontext.Context {
	return stdcontext.WithValue(ctx, clientKey{}, client{
		IPAddress: strings.TrimSpace(ipAddress),
		UserAgent: strings.TrimSpace(userAgent),
	})
}

func ClientFromContext(ctx stdcontext.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(clientKey{}).(client)
	if !ok {
		return "", ""
	}
	return value.IPAddress, value.UserAgent
}
