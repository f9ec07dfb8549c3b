package cid

import "context"

type contextKey struct{}

// HeaderName is the HTTP header used to propagate the correlation id.
// Incoming requests that already carry it keep their value; otherwise the
// control-plane middleware generates a fresh KSUID.
const HeaderName = "X-SH-CID"

// AttributeName is the span attribute key used to attach the correlation id
// to traces.
const AttributeName = "sh.cid"

// WithCID returns a context carrying the given correlation id.
func WithCID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, contextKey{}, cid)
}

// FromContext extracts the correlation id, or "" when absent.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(contextKey{}).(string); ok {
		return v
	}
	return ""
}

// AddHeaderFromContext copies the correlation id, when present, into an
// outgoing header map.
func AddHeaderFromContext(headers map[string][]string, ctx context.Context) {
	if headers == nil {
		return
	}
	if cid := FromContext(ctx); cid != "" {
		headers[HeaderName] = []string{cid}
	}
}
