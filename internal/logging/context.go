// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// requestIDKey is the context key for per-request ids.
const requestIDKey contextKey = "request_id"

// NewRequestID creates a new unique request id. The first 8 characters of a
// UUID are enough to correlate one request's REQUEST/RESPONSE lines.
func NewRequestID() string {
	return uuid.New().String()[:8]
}

// ContextWithRequestID returns a new context carrying the given request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext retrieves the request id, or "" if not present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
