// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Values are set by the auth middleware and consumed by services. Keeping this
// package free of net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	orgID, ok := requestcontext.OrgID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithOrgID(ctx, orgID)
package requestcontext

import (
	"context"
	"time"

	id "kyc-service/pkg/domain"
)

type (
	subjectKey     struct{}
	orgIDKey       struct{}
	scopesKey      struct{}
	roleKey        struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Subject retrieves the authenticated caller identity (token subject).
func Subject(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey{}).(string); ok {
		return s
	}
	return ""
}

// WithSubject injects the caller identity into the context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// OrgID retrieves the caller's organization claim. The second return is false
// when the token carried no organization (platform-level callers).
func OrgID(ctx context.Context) (id.OrgID, bool) {
	if o, ok := ctx.Value(orgIDKey{}).(id.OrgID); ok {
		return o, true
	}
	return id.OrgID{}, false
}

// WithOrgID injects an organization claim into the context.
func WithOrgID(ctx context.Context, orgID id.OrgID) context.Context {
	return context.WithValue(ctx, orgIDKey{}, orgID)
}

// Scopes retrieves the granted scopes, nil when unauthenticated.
func Scopes(ctx context.Context) []string {
	if s, ok := ctx.Value(scopesKey{}).([]string); ok {
		return s
	}
	return nil
}

// WithScopes injects granted scopes into the context.
func WithScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, scopesKey{}, scopes)
}

// HasScope reports whether the caller holds the required scope or the
// module wildcard "kyc.*".
func HasScope(ctx context.Context, required string) bool {
	for _, s := range Scopes(ctx) {
		if s == required || s == "kyc.*" {
			return true
		}
	}
	return false
}

// Role retrieves the caller's role claim.
func Role(ctx context.Context) string {
	if r, ok := ctx.Value(roleKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRole injects a role claim into the context.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RequestID retrieves the request ID set by middleware.
func RequestID(ctx context.Context) string {
	if r, ok := ctx.Value(requestIDKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, tests that don't care).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Used by middleware to pin
// a single timestamp per request and by tests to control the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
