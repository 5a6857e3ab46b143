package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"csi_locks/internal/common"
	"csi_locks/internal/common/security"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const (
	AdminSubjectCtxKey contextKey = "adminSubject"

	SessionTokenHeader = "X-Session-Token"
	AdminSecretHeader  = "X-Admin-Secret"
)

// AdminSecretChecker validates the shared admin secret.
type AdminSecretChecker interface {
	CheckSecret(secret string) bool
}

// AdminAuthenticator admits a request carrying the shared admin secret (header
// or ?secret=) or an admin bearer token verified by jwtauth.Verifier.
func AdminAuthenticator(checker AdminSecretChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := r.Header.Get(AdminSecretHeader)
			if secret == "" {
				secret = r.URL.Query().Get("secret")
			}
			if secret != "" {
				if !checker.CheckSecret(secret) {
					common.RespondWithError(w, http.StatusForbidden, "Unauthorized: Invalid admin secret")
					return
				}
				ctx := context.WithValue(r.Context(), AdminSubjectCtxKey, "shared-secret")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				if errors.Is(err, jwtauth.ErrNoTokenFound) {
					common.RespondWithError(w, http.StatusUnauthorized, "Admin secret or token required")
				} else {
					common.RespondWithError(w, http.StatusUnauthorized, "Invalid token: "+err.Error())
				}
				return
			}
			if token == nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			role, err := security.GetRoleFromClaims(claims)
			if err != nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
				return
			}
			if role != security.RoleAdmin {
				common.RespondWithError(w, http.StatusForbidden, "Admin access required")
				return
			}
			subject, _ := security.GetSubjectFromClaims(claims)

			ctx := context.WithValue(r.Context(), AdminSubjectCtxKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionToken requires a token bound to the {sessionID} URL parameter. With
// required == false tokens are still checked when present.
func SessionToken(guard *security.TokenGuard, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionTokenFromRequest(r)
			if token == "" && !required {
				next.ServeHTTP(w, r)
				return
			}

			sessionID, ok := guard.Verify(token)
			if !ok {
				common.RespondWithError(w, http.StatusUnauthorized, "Valid session token required")
				return
			}
			if sessionID != chi.URLParam(r, "sessionID") {
				common.RespondWithError(w, http.StatusForbidden, "Session token does not match session")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionTokenFromRequest(r *http.Request) string {
	if token := r.Header.Get(SessionTokenHeader); token != "" {
		return token
	}
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return auth[7:]
	}
	return ""
}

func GetAdminSubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(AdminSubjectCtxKey).(string)
	return subject, ok
}
