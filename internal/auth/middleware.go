package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/safar/go-storefront/internal/models"
)

// Authenticate resolves an optional bearer token into an Identity. Requests without an
// Authorization header pass through anonymously so guest carts keep working; a header that
// is present but invalid is rejected with 401.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		tokenStr, ok := extractBearerToken(header)
		if !ok {
			respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
			return
		}

		identity, err := a.Verify(tokenStr)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				respondAuthError(w, http.StatusUnauthorized, "token_expired", "bearer token expired")
				return
			}
			respondAuthError(w, http.StatusUnauthorized, "invalid_token", "bearer token invalid")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireRoles rejects anonymous requests with 401 and requests whose role is not listed with
// 403. With no roles listed any signed-in user is accepted.
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
				return
			}
			if len(roles) > 0 && !identity.HasRole(roles...) {
				respondAuthError(w, http.StatusForbidden, "forbidden", "role not permitted for this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
