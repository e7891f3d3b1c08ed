// Package fieldpolicy implements allow-list driven validation and merging of
// partial record updates. A Schema enumerates every field a record type
// carries, a Policy picks the mutable subset, Validate classifies an untrusted
// payload against the policy, and Apply overwrites exactly the validated
// fields on a copy of the existing record.
package fieldpolicy

import (
	"fmt"
	"sort"
)

// ValueType identifies the JSON shape a field accepts.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeInteger ValueType = "integer"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
)

func validValueType(t ValueType) bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean:
		return true
	default:
		return false
	}
}

// FieldSpec declares one field of a record's full shape. Protected fields are
// unreachable through any update path: no policy may list them as mutable.
type FieldSpec struct {
	Key       string
	Type      ValueType
	Protected bool
}

// Schema is the complete field universe of one record type. Built once at
// startup, immutable afterwards.
type Schema struct {
	fields map[string]FieldSpec
	keys   []string
}

func NewSchema(specs ...FieldSpec) (Schema, error) {
	if len(specs) == 0 {
		return Schema{}, fmt.Errorf("fieldpolicy: schema requires at least one field")
	}

	fields := make(map[string]FieldSpec, len(specs))
	keys := make([]string, 0, len(specs))
	for _, spec := range specs {
		if spec.Key == "" {
			return Schema{}, fmt.Errorf("fieldpolicy: empty field key in schema")
		}
		if !validValueType(spec.Type) {
			return Schema{}, fmt.Errorf("fieldpolicy: field %q has unknown value type %q", spec.Key, spec.Type)
		}
		if _, ok := fields[spec.Key]; ok {
			return Schema{}, fmt.Errorf("fieldpolicy: duplicate field %q in schema", spec.Key)
		}
		fields[spec.Key] = spec
		keys = append(keys, spec.Key)
	}
	sort.Strings(keys)

	return Schema{fields: fields, keys: keys}, nil
}

// Keys returns every schema field key, sorted.
func (s Schema) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s Schema) Lookup(key string) (FieldSpec, bool) {
	spec, ok := s.fields[key]
	return spec, ok
}
