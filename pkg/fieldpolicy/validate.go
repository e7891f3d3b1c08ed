package fieldpolicy

import (
	"math"
	"sort"
)

// Reason classifies why a payload key was rejected.
type Reason string

const (
	// ReasonNotAllowed marks a key outside the policy's mutable set.
	ReasonNotAllowed Reason = "not_allowed"
	// ReasonTypeMismatch marks a value whose type does not match the field's
	// declared value type. An explicit null is a type mismatch, not absence.
	ReasonTypeMismatch Reason = "type_mismatch"
	// ReasonInvalidValue marks a well-typed value rejected by the field's rule.
	ReasonInvalidValue Reason = "invalid_value"
)

// Violation is one rejected payload key.
type Violation struct {
	Key    string `json:"key"`
	Reason Reason `json:"reason"`
}

type change[R any] struct {
	key    string
	value  any
	assign func(*R, any)
}

// Outcome is the result of validating one payload against a policy. Exactly
// one variant is populated: an accepted change set, or a non-empty violation
// list. An empty payload yields an accepted, empty outcome.
type Outcome[R any] struct {
	changes    []change[R]
	violations []Violation
}

// Validate classifies every payload key in one pass. Any key outside the
// mutable set, any wrong-typed value, and any rule failure rejects the whole
// payload; the violation list is complete, never truncated to the first
// offender. Keys are processed in sorted order so rejection lists and change
// sets are deterministic. Only key absence means "field not supplied": empty
// strings, zero and false are real values to apply.
func (p *Policy[R]) Validate(payload map[string]any) Outcome[R] {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out Outcome[R]
	for _, k := range keys {
		b, ok := p.bindings[k]
		if !ok {
			out.violations = append(out.violations, Violation{Key: k, Reason: ReasonNotAllowed})
			continue
		}
		spec, _ := p.schema.Lookup(k)
		v, ok := coerceValue(spec.Type, payload[k])
		if !ok {
			out.violations = append(out.violations, Violation{Key: k, Reason: ReasonTypeMismatch})
			continue
		}
		if b.Check != nil {
			if err := b.Check(v); err != nil {
				out.violations = append(out.violations, Violation{Key: k, Reason: ReasonInvalidValue})
				continue
			}
		}
		out.changes = append(out.changes, change[R]{key: k, value: v, assign: b.Assign})
	}
	if len(out.violations) > 0 {
		out.changes = nil
	}
	return out
}

// OK reports whether the payload was accepted.
func (o Outcome[R]) OK() bool { return len(o.violations) == 0 }

// Violations returns the rejected keys with reasons, sorted by key.
func (o Outcome[R]) Violations() []Violation {
	out := make([]Violation, len(o.violations))
	copy(out, o.violations)
	return out
}

// ViolationKeys returns just the rejected key names, sorted.
func (o Outcome[R]) ViolationKeys() []string {
	out := make([]string, 0, len(o.violations))
	for _, v := range o.violations {
		out = append(out, v.Key)
	}
	return out
}

// ChangedKeys returns the accepted field keys, sorted.
func (o Outcome[R]) ChangedKeys() []string {
	out := make([]string, 0, len(o.changes))
	for _, c := range o.changes {
		out = append(out, c.key)
	}
	return out
}

// Values returns the accepted key-to-coerced-value mapping.
func (o Outcome[R]) Values() map[string]any {
	out := make(map[string]any, len(o.changes))
	for _, c := range o.changes {
		out[c.key] = c.value
	}
	return out
}

// coerceValue checks v against the declared type and normalizes it to the Go
// representation assign funcs receive. JSON numbers decode as float64, so
// integer fields accept integral float64 alongside int and int64.
func coerceValue(t ValueType, v any) (any, bool) {
	switch t {
	case TypeString:
		s, ok := v.(string)
		return s, ok
	case TypeBoolean:
		b, ok := v.(bool)
		return b, ok
	case TypeNumber:
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		default:
			return nil, false
		}
	case TypeInteger:
		switch n := v.(type) {
		case float64:
			if math.IsNaN(n) || math.IsInf(n, 0) || math.Trunc(n) != n {
				return nil, false
			}
			return int(n), true
		case int:
			return n, true
		case int64:
			return int(n), true
		default:
			return nil, false
		}
	default:
		return nil, false
	}
}
