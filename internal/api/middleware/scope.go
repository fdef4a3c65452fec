package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ScopeCookieName identifies the learner across requests. The cookie
// is opaque and carries no identity, it only partitions hint budgets.
const ScopeCookieName = "looplab_scope"

// Scope ensures every request carries a learner scope. A missing or
// empty cookie gets a fresh one minted and set on the response.
func Scope(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := ""
			if cookie, err := r.Cookie(ScopeCookieName); err == nil {
				scope = cookie.Value
			}

			if scope == "" {
				scope = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     ScopeCookieName,
					Value:    scope,
					Path:     "/",
					MaxAge:   30 * 24 * 3600, // 30 days
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), ScopeKey, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetScope retrieves the learner scope from context
func GetScope(ctx context.Context) string {
	if scope, ok := ctx.Value(ScopeKey).(string); ok {
		return scope
	}
	return ""
}
