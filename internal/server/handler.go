package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jacksonlee411/patchgate/internal/routing"
	"github.com/jacksonlee411/patchgate/modules/profile/domain/ports"
	"github.com/jacksonlee411/patchgate/modules/profile/infrastructure/persistence"
	"github.com/jacksonlee411/patchgate/modules/profile/presentation/controllers"
	"github.com/jacksonlee411/patchgate/modules/profile/services"
	dictpkg "github.com/jacksonlee411/patchgate/pkg/dict"
)

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

type HandlerOptions struct {
	Store        ports.ProfileStore
	DictResolver dictpkg.Resolver
	Authorizer   authorizer
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	allowlistPath := os.Getenv("ALLOWLIST_PATH")
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}

	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		s, err := newProfileStoreFromEnv()
		if err != nil {
			return nil, err
		}
		store = s
	}

	resolver := opts.DictResolver
	if resolver == nil {
		resolver = dictpkg.NewStaticResolver(builtinDicts)
	}
	if err := dictpkg.RegisterResolver(resolver); err != nil {
		return nil, err
	}

	policyPath := os.Getenv("POLICY_PATH")
	if policyPath == "" {
		p, err := defaultPolicyPath()
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	policyCfg, err := services.LoadPolicyConfig(policyPath)
	if err != nil {
		return nil, err
	}
	policy, err := services.BuildProfilePolicy(policyCfg)
	if err != nil {
		return nil, err
	}

	auth := opts.Authorizer
	if auth == nil {
		loaded, err := loadAuthorizer()
		if err != nil {
			return nil, err
		}
		auth = loaded
	}

	controller := controllers.ProfilesController{
		TenantID: currentTenant,
		Service:  services.NewProfileUpdateService(store, policy),
	}

	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/profile/api/profiles", http.HandlerFunc(controller.HandleProfilesAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/profile/api/profiles", http.HandlerFunc(controller.HandleProfilesAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/profile/api/profiles/field-definitions", http.HandlerFunc(controller.HandleFieldDefinitionsAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/profile/api/profiles/{id}", http.HandlerFunc(controller.HandleProfileByIDAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPatch, "/profile/api/profiles/{id}", http.HandlerFunc(controller.HandleProfileByIDAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/profile/api/profiles/{id}/audit", http.HandlerFunc(controller.HandleProfileAuditAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/profile/api/policy", http.HandlerFunc(controller.HandlePolicyAPI))

	return withTenancy(classifier, withAuthz(classifier, auth, router)), nil
}

func MustNewHandler() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(errors.New("server: failed to build handler: " + err.Error()))
	}
	return h
}

// builtinDicts backs dict-typed catalog fields when no resolver is injected.
// Locale codes ship with the binary; a deployment that manages dictionaries
// elsewhere injects its own resolver through HandlerOptions.
var builtinDicts = map[string]map[string]string{
	"locale": {
		"de": "German",
		"en": "English",
		"es": "Spanish",
		"fr": "French",
		"ja": "Japanese",
		"pt": "Portuguese",
		"zh": "Chinese",
	},
}

func newProfileStoreFromEnv() (ports.ProfileStore, error) {
	backend := strings.TrimSpace(strings.ToLower(os.Getenv("PROFILE_STORE")))
	switch backend {
	case "", "memory":
		return persistence.NewProfileMemoryStore(), nil
	case "sqlite":
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "patchgate.db"
		}
		return persistence.NewProfileSQLiteStore(path)
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return nil, errors.New("server: DATABASE_URL required when PROFILE_STORE=postgres")
		}
		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			return nil, err
		}
		return persistence.NewProfilePGStore(pool), nil
	default:
		return nil, errors.New("server: unknown PROFILE_STORE (expected memory|sqlite|postgres)")
	}
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}

func defaultPolicyPath() (string, error) {
	path := "config/policy/profile.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: field policy not found")
}
