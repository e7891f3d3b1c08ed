package routing

import "testing"

func TestClassifier_SegmentBoundary(t *testing.T) {
	t.Parallel()

	a := Allowlist{
		Version: 1,
		Entrypoints: map[string]Entrypoint{
			"server": {Routes: []Route{{Path: "/healthz", Methods: []string{"GET"}, RouteClass: "ops"}}},
		},
	}
	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatal(err)
	}

	if got := c.Classify("/profile/api"); got != RouteClassInternalAPI {
		t.Fatalf("got=%q", got)
	}
	if got := c.Classify("/profile/api/profiles"); got != RouteClassInternalAPI {
		t.Fatalf("got=%q", got)
	}
	if got := c.Classify("/profile/apix"); got == RouteClassInternalAPI {
		t.Fatalf("unexpected internal api: %q", got)
	}

	if got := c.Classify("profile/api"); got != RouteClassUI {
		t.Fatalf("got=%q", got)
	}
	if got := c.Classify("/"); got != RouteClassUI {
		t.Fatalf("got=%q", got)
	}
}

func TestNewClassifier_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewClassifier(Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{}}, "server")
	if err == nil {
		t.Fatal("expected missing entrypoint error")
	}

	_, err = NewClassifier(Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{"server": {Routes: nil}}}, "server")
	if err == nil {
		t.Fatal("expected empty routes error")
	}

	_, err = NewClassifier(Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{"server": {Routes: []Route{{}}}}}, "server")
	if err == nil {
		t.Fatal("expected invalid route error")
	}

	_, err = NewClassifier(Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{
		"server": {Routes: []Route{{Path: "/x", Methods: []string{"GET"}, RouteClass: "webhook"}}},
	}}, "server")
	if err == nil {
		t.Fatal("expected unknown route class error")
	}

	_, err = NewClassifier(Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{
		"server": {Routes: []Route{{Path: "/x", RouteClass: "ops"}}},
	}}, "server")
	if err == nil {
		t.Fatal("expected empty methods error")
	}
}

func TestClassifier_AllClasses(t *testing.T) {
	t.Parallel()

	a := Allowlist{
		Version: 1,
		Entrypoints: map[string]Entrypoint{
			"server": {Routes: []Route{
				{Path: "/healthz", Methods: []string{"GET"}, RouteClass: "ops"},
			}},
		},
	}
	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]RouteClass{
		"/healthz":              RouteClassOps,
		"/profile/api/policy":   RouteClassInternalAPI,
		"/assets/x":             RouteClassStatic,
		"/static/x":             RouteClassStatic,
		"/anything-else":        RouteClassUI,
		"/profile/not-api-path": RouteClassUI,
	}
	for path, want := range cases {
		if got := c.Classify(path); got != want {
			t.Fatalf("path=%s got=%q want=%q", path, got, want)
		}
	}
}

func TestClassifier_PathPattern(t *testing.T) {
	t.Parallel()

	a := Allowlist{
		Version: 1,
		Entrypoints: map[string]Entrypoint{
			"server": {Routes: []Route{
				{Path: "/healthz", Methods: []string{"GET"}, RouteClass: "ops"},
				{Path: "/profile/api/profiles/{id}", Methods: []string{"GET", "PATCH"}, RouteClass: "internal_api"},
			}},
		},
	}
	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatal(err)
	}

	if got := c.Classify("/profile/api/profiles/u1"); got != RouteClassInternalAPI {
		t.Fatalf("got=%q", got)
	}
}
