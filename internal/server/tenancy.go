package server

import (
	"net/http"
	"strings"

	"github.com/jacksonlee411/patchgate/internal/routing"
)

// defaultTenantID is assumed when the request carries no X-Tenant header.
const defaultTenantID = "default"

const tenantHeader = "X-Tenant"

// withTenancy resolves the tenant from the X-Tenant header and stores it in
// the request context. Tenancy is declarative here; upstream infrastructure
// is expected to have authenticated the caller and pinned the header.
func withTenancy(classifier *routing.Classifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassUI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		switch path {
		case "/health", "/healthz", "/readyz":
			next.ServeHTTP(w, r)
			return
		default:
			if pathHasPrefixSegment(path, "/assets") || pathHasPrefixSegment(path, "/static") {
				next.ServeHTTP(w, r)
				return
			}
		}

		tenantID := normalizeTenantID(r.Header.Get(tenantHeader))
		if tenantID == "" {
			tenantID = defaultTenantID
		}
		if !isValidTenantID(tenantID) {
			routing.WriteError(w, r, rc, http.StatusBadRequest, "tenant_invalid", "tenant invalid")
			return
		}

		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), tenantID)))
	})
}

func normalizeTenantID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func isValidTenantID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for i, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case (c == '-' || c == '_') && i > 0:
		default:
			return false
		}
	}
	return true
}

func pathHasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return len(path) > len(prefix) && path[:len(prefix)+1] == prefix+"/"
}
