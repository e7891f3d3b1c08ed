package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jacksonlee411/patchgate/modules/profile/domain/fieldmeta"
	"github.com/jacksonlee411/patchgate/modules/profile/domain/types"
	dictpkg "github.com/jacksonlee411/patchgate/pkg/dict"
	"github.com/jacksonlee411/patchgate/pkg/fieldpolicy"
	"github.com/jacksonlee411/patchgate/pkg/fieldrule"
)

const policyRecordProfile = "profile"

var resolveDictMembership = func(dictCode string, code string) (bool, error) {
	_, ok, err := dictpkg.ResolveValueLabel(context.Background(), dictCode, code)
	return ok, err
}

// PolicyConfig is the on-disk description of which profile fields accept
// partial updates. Everything not listed here is rejected at request time;
// everything listed here is checked against the field catalog at load time.
type PolicyConfig struct {
	Version int           `yaml:"version"`
	Record  string        `yaml:"record"`
	Fields  []PolicyField `yaml:"fields"`
}

type PolicyField struct {
	Key  string `yaml:"key"`
	Rule string `yaml:"rule"`
}

func ParsePolicyYAML(b []byte) (PolicyConfig, error) {
	var cfg PolicyConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return PolicyConfig{}, err
	}
	if cfg.Version != 1 {
		return PolicyConfig{}, errors.New("policy: unsupported version")
	}
	if strings.TrimSpace(cfg.Record) != policyRecordProfile {
		return PolicyConfig{}, fmt.Errorf("policy: unsupported record %q", cfg.Record)
	}
	if len(cfg.Fields) == 0 {
		return PolicyConfig{}, errors.New("policy: no fields")
	}
	return cfg, nil
}

func LoadPolicyConfig(path string) (PolicyConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return PolicyConfig{}, err
	}
	return ParsePolicyYAML(b)
}

// BuildProfilePolicy compiles the config into the immutable update policy.
// Unknown, protected, or duplicated keys and broken rule expressions are
// startup errors naming the offending key.
func BuildProfilePolicy(cfg PolicyConfig) (*fieldpolicy.Policy[types.Profile], error) {
	schema, err := fieldmeta.Schema()
	if err != nil {
		return nil, err
	}

	bindings := make([]fieldpolicy.Binding[types.Profile], 0, len(cfg.Fields))
	for _, field := range cfg.Fields {
		key := strings.TrimSpace(field.Key)
		def, ok := fieldmeta.LookupFieldDefinition(key)
		if !ok {
			return nil, fmt.Errorf("policy: field %q is not in the catalog", key)
		}
		if def.Protected {
			return nil, fmt.Errorf("policy: field %q is protected", key)
		}
		assign, ok := assignProfileField(key)
		if !ok {
			return nil, fmt.Errorf("policy: field %q has no assignment", key)
		}
		check, err := buildFieldCheck(def, field.Rule)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, fieldpolicy.Binding[types.Profile]{
			Key:    key,
			Assign: assign,
			Check:  check,
		})
	}

	return fieldpolicy.New(schema, bindings)
}

func assignProfileField(key string) (func(p *types.Profile, v any), bool) {
	switch key {
	case "first_name":
		return func(p *types.Profile, v any) { p.FirstName, _ = v.(string) }, true
	case "last_name":
		return func(p *types.Profile, v any) { p.LastName, _ = v.(string) }, true
	case "email":
		return func(p *types.Profile, v any) { p.Email, _ = v.(string) }, true
	case "locale":
		return func(p *types.Profile, v any) { p.Locale, _ = v.(string) }, true
	case "birth_year":
		return func(p *types.Profile, v any) { p.BirthYear, _ = v.(int) }, true
	case "active":
		return func(p *types.Profile, v any) { p.Active, _ = v.(bool) }, true
	default:
		return nil, false
	}
}

// buildFieldCheck chains the implicit dict membership check, when the catalog
// backs the field with a dict, before any explicit rule from the config.
func buildFieldCheck(def fieldmeta.FieldDefinition, ruleExpr string) (func(v any) error, error) {
	var checks []func(v any) error

	if def.DataSourceType == fieldmeta.DataSourceTypeDict {
		dictCode, ok := fieldmeta.DictCodeFromDataSourceConfig(fieldmeta.DataSourceConfigJSON(def))
		if !ok {
			return nil, fmt.Errorf("policy: field %q has no dict_code", def.FieldKey)
		}
		checks = append(checks, func(v any) error {
			code, ok := v.(string)
			if !ok {
				return fieldrule.ErrValueRejected
			}
			found, err := resolveDictMembership(dictCode, code)
			if err != nil {
				return err
			}
			if !found {
				return fieldrule.ErrValueRejected
			}
			return nil
		})
	}

	if strings.TrimSpace(ruleExpr) != "" {
		rule, err := fieldrule.Compile(ruleExpr)
		if err != nil {
			return nil, fmt.Errorf("policy: field %q: %w", def.FieldKey, err)
		}
		checks = append(checks, rule.Check)
	}

	switch len(checks) {
	case 0:
		return nil, nil
	case 1:
		return checks[0], nil
	default:
		return func(v any) error {
			for _, check := range checks {
				if err := check(v); err != nil {
					return err
				}
			}
			return nil
		}, nil
	}
}
