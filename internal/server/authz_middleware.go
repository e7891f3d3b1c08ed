package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jacksonlee411/patchgate/internal/routing"
	"github.com/jacksonlee411/patchgate/pkg/authz"
)

const roleHeader = "X-Role"

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := defaultAuthzModelPath()
		if err != nil {
			return nil, err
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := defaultAuthzPolicyPath()
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

func defaultAuthzModelPath() (string, error) {
	path := "config/access/model.conf"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz model not found")
}

func defaultAuthzPolicyPath() (string, error) {
	path := "config/access/policy.csv"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz policy not found")
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

func withAuthz(classifier *routing.Classifier, a authorizer, next http.Handler) http.Handler {
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

		tenantID, ok := currentTenant(r.Context())
		if !ok {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "tenant_missing", "tenant missing")
			return
		}

		subject := authz.SubjectFromRoleSlug(r.Header.Get(roleHeader))
		domain := authz.DomainFromTenantID(tenantID)

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		allowed, enforced, err := a.Authorize(subject, domain, object, action)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func authzRequirementForRoute(method string, path string) (object string, action string, ok bool) {
	// Literal paths first: the {id} template would otherwise swallow
	// /profile/api/profiles/field-definitions.
	switch path {
	case "/profile/api/profiles":
		if method == http.MethodGet {
			return authz.ObjectProfileProfiles, authz.ActionRead, true
		}
		if method == http.MethodPost {
			return authz.ObjectProfileProfiles, authz.ActionWrite, true
		}
		return "", "", false
	case "/profile/api/profiles/field-definitions":
		if method == http.MethodGet {
			return authz.ObjectProfilePolicy, authz.ActionRead, true
		}
		return "", "", false
	case "/profile/api/policy":
		if method == http.MethodGet {
			return authz.ObjectProfilePolicy, authz.ActionRead, true
		}
		return "", "", false
	}

	if pathMatchRouteTemplate(path, "/profile/api/profiles/{id}/audit") {
		if method == http.MethodGet {
			return authz.ObjectProfileAudit, authz.ActionRead, true
		}
		return "", "", false
	}
	if pathMatchRouteTemplate(path, "/profile/api/profiles/{id}") {
		if method == http.MethodGet {
			return authz.ObjectProfileProfiles, authz.ActionRead, true
		}
		if method == http.MethodPatch {
			return authz.ObjectProfileProfiles, authz.ActionWrite, true
		}
		return "", "", false
	}

	return "", "", false
}

func pathMatchRouteTemplate(path string, template string) bool {
	in := splitRouteSegments(path)
	want := splitRouteSegments(template)
	if len(in) != len(want) {
		return false
	}
	for i := range want {
		w := want[i]
		g := in[i]
		if g == "" {
			return false
		}
		if routeTemplateIsParamSegment(w) {
			continue
		}
		if g != w {
			return false
		}
	}
	return true
}

func splitRouteSegments(path string) []string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func routeTemplateIsParamSegment(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2
}
