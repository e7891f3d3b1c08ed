package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jacksonlee411/patchgate/internal/routing"
	"github.com/jacksonlee411/patchgate/modules/profile/services"
	"github.com/jacksonlee411/patchgate/pkg/authz"
)

// policylint validates the deployable configuration set without booting the
// server: field policy, route allowlist, and the casbin access pair. The
// first broken file fails the run.
func main() {
	fs := flag.NewFlagSet("policylint", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		policyPath       string
		allowlistPath    string
		modelPath        string
		accessPolicyPath string
	)
	fs.StringVar(&policyPath, "policy", "config/policy/profile.yaml", "field policy file")
	fs.StringVar(&allowlistPath, "allowlist", "config/routing/allowlist.yaml", "route allowlist file")
	fs.StringVar(&modelPath, "model", "config/access/model.conf", "casbin model file")
	fs.StringVar(&accessPolicyPath, "access-policy", "config/access/policy.csv", "casbin policy file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fatal(err)
	}

	cfg, err := services.LoadPolicyConfig(policyPath)
	if err != nil {
		fatal(err)
	}
	policy, err := services.BuildProfilePolicy(cfg)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("policy: record=%s mutable_keys=%s\n", cfg.Record, strings.Join(policy.Keys(), ","))

	allowlist, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		fatal(err)
	}
	if _, err := routing.NewClassifier(allowlist, "server"); err != nil {
		fatal(err)
	}
	routes := 0
	for _, ep := range allowlist.Entrypoints {
		routes += len(ep.Routes)
	}
	fmt.Printf("allowlist: entrypoints=%d routes=%d\n", len(allowlist.Entrypoints), routes)

	if _, err := authz.NewAuthorizer(modelPath, accessPolicyPath, authz.ModeEnforce); err != nil {
		fatal(err)
	}
	fmt.Println("authz: model and policy load OK")

	fmt.Println("[policylint] OK")
}

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
	os.Exit(1)
}
