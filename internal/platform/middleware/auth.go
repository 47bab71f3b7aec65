package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "kyc-service/pkg/domain"
	"kyc-service/pkg/requestcontext"
)

// Claims carried by the platform access token. The auth service issues these;
// this middleware only validates and unpacks them.
type Claims struct {
	OrgID  string   `json:"org_id,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
	Role   string   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// RequireAuth validates the bearer token and populates the request context
// with subject, organization, scopes and role.
func RequireAuth(signingKey []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims := &Claims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return signingKey, nil
			})
			if err != nil || !parsed.Valid {
				logger.WarnContext(r.Context(), "unauthorized - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			ctx := requestcontext.WithSubject(r.Context(), claims.Subject)
			ctx = requestcontext.WithScopes(ctx, claims.Scopes)
			ctx = requestcontext.WithRole(ctx, claims.Role)
			if claims.OrgID != "" {
				orgID, err := id.ParseOrgID(claims.OrgID)
				if err != nil {
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid org claim")
					return
				}
				ctx = requestcontext.WithOrgID(ctx, orgID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Role ranks, most privileged first. Unknown roles rank below everything.
var roleRank = map[string]int{
	"OWNER":    0,
	"ADMIN":    1,
	"DEV":      2,
	"READONLY": 3,
}

// RoleAtLeast reports whether the held role meets the required rank.
func RoleAtLeast(have, required string) bool {
	haveRank, ok := roleRank[strings.ToUpper(have)]
	if !ok {
		return false
	}
	requiredRank, ok := roleRank[strings.ToUpper(required)]
	if !ok {
		return false
	}
	return haveRank <= requiredRank
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":%q,"error_description":%q}`, errCode, errDesc))
}
