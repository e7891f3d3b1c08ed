package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jacksonlee411/patchgate/modules/profile/domain/ports"
	"github.com/jacksonlee411/patchgate/modules/profile/infrastructure/persistence"
	"github.com/jacksonlee411/patchgate/modules/profile/services"
	dictpkg "github.com/jacksonlee411/patchgate/pkg/dict"
	"github.com/jacksonlee411/patchgate/pkg/uuidv7"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: dbtool <schema|patch-smoke> [args]")
	}

	switch os.Args[1] {
	case "schema":
		schema(os.Args[2:])
	case "patch-smoke":
		patchSmoke(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

// schema creates the profile tables. Every statement is idempotent, so the
// subcommand can run on each deploy.
func schema(args []string) {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS profile;`,
		`CREATE TABLE IF NOT EXISTS profile.profiles (
  id            text PRIMARY KEY,
  first_name    text NOT NULL,
  last_name     text NOT NULL,
  email         text NOT NULL,
  locale        text NOT NULL,
  birth_year    integer NOT NULL DEFAULT 0,
  active        boolean NOT NULL DEFAULT false,
  password_hash text NOT NULL,
  revision      bigint NOT NULL,
  created_at    text NOT NULL,
  updated_at    text NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS profile.profile_audit (
  event_id     uuid PRIMARY KEY,
  profile_id   text NOT NULL REFERENCES profile.profiles (id),
  revision     bigint NOT NULL,
  changed_keys jsonb NOT NULL,
  occurred_at  text NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS profile_audit_profile_idx ON profile.profile_audit (profile_id, revision);`,
	}
	for _, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			fatal(err)
		}
	}

	fmt.Println("[schema] OK")
}

// patchSmoke drives the whole update path against a live database: create,
// apply, all-or-nothing reject, revision CAS, audit. Rows created by earlier
// runs are cleared first.
func patchSmoke(args []string) {
	fs := flag.NewFlagSet("patch-smoke", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, `DELETE FROM profile.profile_audit WHERE profile_id LIKE 'patch-smoke-%';`); err != nil {
		fatal(err)
	}
	if _, err := conn.Exec(ctx, `DELETE FROM profile.profiles WHERE id LIKE 'patch-smoke-%';`); err != nil {
		fatal(err)
	}

	if err := dictpkg.RegisterResolver(dictpkg.NewStaticResolver(map[string]map[string]string{
		"locale": {"en": "English", "fr": "French"},
	})); err != nil {
		fatal(err)
	}

	policy, err := services.BuildProfilePolicy(services.PolicyConfig{
		Version: 1,
		Record:  "profile",
		Fields: []services.PolicyField{
			{Key: "first_name"},
			{Key: "last_name"},
			{Key: "email", Rule: `value.matches("^[^@\\s]+@[^@\\s]+\\.[^@\\s]+$")`},
			{Key: "locale"},
			{Key: "birth_year", Rule: "value >= 1800 && value <= 2100"},
			{Key: "active"},
		},
	})
	if err != nil {
		fatal(err)
	}

	store := persistence.NewProfilePGStore(conn)
	svc := services.NewProfileUpdateService(store, policy)

	suffix, err := uuidv7.NewString()
	if err != nil {
		fatal(err)
	}
	id := "patch-smoke-" + suffix
	created, err := svc.Create(ctx, services.CreateProfileInput{
		ID:        id,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Password:  "s3cret",
	})
	if err != nil {
		fatal(err)
	}
	if created.Revision != 1 {
		fatalf("expected revision 1 after create, got %d", created.Revision)
	}

	res, err := svc.Update(ctx, id, map[string]any{"first_name": "Grace", "birth_year": float64(1900)})
	if err != nil {
		fatal(err)
	}
	if res.Outcome != services.UpdateOutcomeUpdated || res.Profile.Revision != 2 {
		fatalf("expected updated revision 2, got outcome=%s revision=%d", res.Outcome, res.Profile.Revision)
	}

	res, err = svc.Update(ctx, id, map[string]any{"birth_year": float64(1600), "nickname": "g"})
	if err != nil {
		fatal(err)
	}
	if res.Outcome != services.UpdateOutcomeRejected || len(res.Violations) != 2 {
		fatalf("expected rejection with 2 violations, got outcome=%s violations=%v", res.Outcome, res.Violations)
	}
	after, err := svc.Get(ctx, id)
	if err != nil {
		fatal(err)
	}
	if after.Revision != 2 || after.FirstName != "Grace" {
		fatalf("rejected update must not write, got revision=%d first_name=%q", after.Revision, after.FirstName)
	}

	_, err = store.SaveProfile(ctx, after, 1, []string{"first_name"})
	if !errors.Is(err, ports.ErrRevisionConflict) {
		fatalf("expected revision conflict on stale save, got %v", err)
	}

	entries, err := svc.Audit(ctx, id)
	if err != nil {
		fatal(err)
	}
	if len(entries) != 1 || entries[0].Revision != 2 {
		fatalf("expected one audit entry at revision 2, got %v", entries)
	}

	fmt.Println("[patch-smoke] OK")
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
