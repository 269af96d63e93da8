package middleware

import "context"

// ContextKey is a private type for request context keys.
type ContextKey string

const (
	// SubjectCtxKey holds the "sub" claim of an authenticated writer.
	SubjectCtxKey = ContextKey("subject")
)

// SubjectFromContext returns the authenticated subject, or "" when the
// request did not pass through JWTAuth.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(SubjectCtxKey).(string)
	return sub
}
