package routing

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Allowlist is the declarative route table. Every path the service serves
// must appear under its entrypoint with its methods and route class; requests
// outside the allowlist only ever see 404.
type Allowlist struct {
	Version     int                   `yaml:"version"`
	Entrypoints map[string]Entrypoint `yaml:"entrypoints"`
}

type Entrypoint struct {
	Routes []Route `yaml:"routes"`
}

type Route struct {
	Path       string   `yaml:"path"`
	Methods    []string `yaml:"methods"`
	RouteClass string   `yaml:"route_class"`
}

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// ParseAllowlistYAML validates eagerly: bad version, absent entrypoints,
// unknown methods and duplicate method+path pairs are startup errors, never
// discovered at request time. Methods are normalized to upper case.
func ParseAllowlistYAML(b []byte) (Allowlist, error) {
	var a Allowlist
	if err := yaml.Unmarshal(b, &a); err != nil {
		return Allowlist{}, err
	}
	if a.Version != 1 {
		return Allowlist{}, errors.New("allowlist: unsupported version")
	}
	if len(a.Entrypoints) == 0 {
		return Allowlist{}, errors.New("allowlist: missing entrypoints")
	}
	for name, ep := range a.Entrypoints {
		seen := make(map[string]bool)
		for i, route := range ep.Routes {
			for j, method := range route.Methods {
				canon := strings.ToUpper(strings.TrimSpace(method))
				if !allowedMethods[canon] {
					return Allowlist{}, fmt.Errorf("allowlist: entrypoint %q route %q: unknown method %q", name, route.Path, method)
				}
				ep.Routes[i].Methods[j] = canon
				key := canon + " " + route.Path
				if seen[key] {
					return Allowlist{}, fmt.Errorf("allowlist: entrypoint %q duplicates %s %s", name, canon, route.Path)
				}
				seen[key] = true
			}
		}
	}
	return a, nil
}

func LoadAllowlist(path string) (Allowlist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Allowlist{}, err
	}
	return ParseAllowlistYAML(b)
}
