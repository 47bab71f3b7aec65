package testutil

import (
	"net/http"
	"time"

	id "kyc-service/pkg/domain"
	"kyc-service/pkg/requestcontext"
)

// WithOrg adds an organization claim to the request context, simulating what
// the auth middleware does for authenticated requests.
func WithOrg(req *http.Request, orgID id.OrgID) *http.Request {
	return req.WithContext(requestcontext.WithOrgID(req.Context(), orgID))
}

// WithAuth populates the full authenticated context: organization, scopes and
// role.
func WithAuth(req *http.Request, orgID id.OrgID, scopes []string, role string) *http.Request {
	ctx := requestcontext.WithOrgID(req.Context(), orgID)
	ctx = requestcontext.WithScopes(ctx, scopes)
	ctx = requestcontext.WithRole(ctx, role)
	return req.WithContext(ctx)
}

// WithTime pins the request-scoped clock, matching the RequestTime middleware.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
