package middleware

import (
	"net/http"

	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
)

// RequireTenant rejects requests that carry no tenant context with 403.
// Mount it on tenant-scoped routes behind [Gate].
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := tenant.Require(r.Context()); err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission is RequireTenant that also demands perm.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, err := tenant.Require(r.Context())
			if err != nil || !tc.Can(perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
