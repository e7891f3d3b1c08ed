package fieldpolicy

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownField reports a key outside a policy's mutable set.
var ErrUnknownField = errors.New("fieldpolicy: unknown field")

// Binding declares one mutable field of R: the payload key it accepts, the
// setter that writes a validated value onto the record, and an optional value
// rule applied after the type check. Assign receives the coerced value for
// the field's declared type (string, int, float64 or bool).
type Binding[R any] struct {
	Key    string
	Assign func(r *R, v any)
	Check  func(v any) error
}

// Policy is the immutable mutable-field allow-list for one record type.
// Constructed once at startup against the record's schema; construction
// failures are configuration errors and must abort initialization, never
// surface per-request. Safe for concurrent use.
type Policy[R any] struct {
	schema   Schema
	bindings map[string]Binding[R]
	keys     []string
}

// New validates bindings against schema: every bound key must exist in the
// schema, must not be protected, and must not repeat.
func New[R any](schema Schema, bindings []Binding[R]) (*Policy[R], error) {
	if len(schema.fields) == 0 {
		return nil, fmt.Errorf("fieldpolicy: policy requires a schema")
	}
	if len(bindings) == 0 {
		return nil, fmt.Errorf("fieldpolicy: policy requires at least one mutable field")
	}

	byKey := make(map[string]Binding[R], len(bindings))
	keys := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if b.Key == "" {
			return nil, fmt.Errorf("fieldpolicy: empty field key in policy")
		}
		if b.Assign == nil {
			return nil, fmt.Errorf("fieldpolicy: field %q has no assign func", b.Key)
		}
		if _, ok := byKey[b.Key]; ok {
			return nil, fmt.Errorf("fieldpolicy: duplicate field %q in policy", b.Key)
		}
		spec, ok := schema.Lookup(b.Key)
		if !ok {
			return nil, fmt.Errorf("fieldpolicy: field %q not in record schema", b.Key)
		}
		if spec.Protected {
			return nil, fmt.Errorf("fieldpolicy: field %q is protected", b.Key)
		}
		byKey[b.Key] = b
		keys = append(keys, b.Key)
	}
	sort.Strings(keys)

	return &Policy[R]{schema: schema, bindings: byKey, keys: keys}, nil
}

// Keys returns the mutable field keys, sorted.
func (p *Policy[R]) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// TypeOf reports the expected value type for a mutable field key.
func (p *Policy[R]) TypeOf(key string) (ValueType, error) {
	if _, ok := p.bindings[key]; !ok {
		return "", ErrUnknownField
	}
	spec, _ := p.schema.Lookup(key)
	return spec.Type, nil
}

// HasRule reports whether a mutable field carries a value rule.
func (p *Policy[R]) HasRule(key string) bool {
	b, ok := p.bindings[key]
	return ok && b.Check != nil
}
