package dict

import (
	"context"
	"sort"
)

// StaticResolver serves dictionaries from an in-process table. Suitable for
// value domains that ship with the binary (locales, statuses).
type StaticResolver struct {
	dicts map[string]map[string]string
}

// NewStaticResolver copies values into an immutable resolver. values maps
// dict code to code-to-label pairs.
func NewStaticResolver(values map[string]map[string]string) *StaticResolver {
	dicts := make(map[string]map[string]string, len(values))
	for dictCode, entries := range values {
		m := make(map[string]string, len(entries))
		for code, label := range entries {
			m[code] = label
		}
		dicts[dictCode] = m
	}
	return &StaticResolver{dicts: dicts}
}

func (s *StaticResolver) ResolveValueLabel(_ context.Context, dictCode string, code string) (string, bool, error) {
	entries, ok := s.dicts[dictCode]
	if !ok {
		return "", false, nil
	}
	label, ok := entries[code]
	return label, ok, nil
}

func (s *StaticResolver) ListOptions(_ context.Context, dictCode string) ([]Option, error) {
	entries, ok := s.dicts[dictCode]
	if !ok {
		return nil, nil
	}
	out := make([]Option, 0, len(entries))
	for code, label := range entries {
		out = append(out, Option{Code: code, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
