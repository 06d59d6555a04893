package proxy

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// requestIDContextKey is the context key type for the per-connection
// request ID. Grounded on the teacher's RequestIDMiddleware: every
// connection is stamped with an ID used to correlate its audit record,
// generated fresh since the proxy core has no inbound X-Request-ID to
// honor (the agent talking to it is untrusted).
type requestIDContextKey struct{}

var requestIDKey = requestIDContextKey{}

// withRequestID attaches a freshly generated request ID to req's context.
func withRequestID(req *http.Request) *http.Request {
	id := uuid.New().String()
	return req.WithContext(context.WithValue(req.Context(), requestIDKey, id))
}

// requestIDFrom returns the request ID stashed by withRequestID, or "" if
// none was attached.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
