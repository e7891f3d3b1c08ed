package routing

import "strings"

type PathPattern struct {
	raw      string
	segments []string
}

func parsePathPattern(raw string) (PathPattern, bool) {
	if !strings.Contains(raw, "{") {
		return PathPattern{}, false
	}
	if raw == "" || raw[0] != '/' {
		return PathPattern{}, false
	}

	parts := splitPathSegments(raw)
	for _, s := range parts {
		if s == "" {
			return PathPattern{}, false
		}
		if strings.Contains(s, "{") || strings.Contains(s, "}") {
			if !isParamSegment(s) {
				return PathPattern{}, false
			}
		}
	}
	return PathPattern{raw: raw, segments: parts}, true
}

func (p PathPattern) Match(path string) bool {
	if p.raw == "" {
		return false
	}
	in := splitPathSegments(path)
	if len(in) != len(p.segments) {
		return false
	}
	for i := range p.segments {
		want := p.segments[i]
		got := in[i]
		if got == "" {
			return false
		}
		if isParamSegment(want) {
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

// Param returns the value of the named placeholder when path matches the
// pattern.
func (p PathPattern) Param(path string, name string) (string, bool) {
	if !p.Match(path) {
		return "", false
	}
	in := splitPathSegments(path)
	for i, seg := range p.segments {
		if isParamSegment(seg) && seg == "{"+name+"}" {
			return in[i], true
		}
	}
	return "", false
}

// PathParam extracts one placeholder value from path using a template such
// as /profile/api/profiles/{id}. It returns "" when the path does not match.
func PathParam(path string, template string, name string) string {
	p, ok := parsePathPattern(template)
	if !ok {
		return ""
	}
	v, _ := p.Param(path, name)
	return v
}

func splitPathSegments(path string) []string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isParamSegment(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2
}
