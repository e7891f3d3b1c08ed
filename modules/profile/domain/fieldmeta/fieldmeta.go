// Package fieldmeta is the static catalog of profile fields. It is the single
// source of truth for field keys, value types, protection flags, and data
// sources; the update policy and the field-definition API are both derived
// from it.
package fieldmeta

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/jacksonlee411/patchgate/pkg/fieldpolicy"
)

const (
	DataSourceTypePlain = "PLAIN"
	DataSourceTypeDict  = "DICT"
)

// FieldDefinition describes one profile field. Protected fields exist on the
// record but may never be bound into an update policy.
type FieldDefinition struct {
	FieldKey         string
	ValueType        fieldpolicy.ValueType
	Protected        bool
	DataSourceType   string
	DataSourceConfig map[string]any
	LabelI18nKey     string
}

var fieldDefinitions = []FieldDefinition{
	{
		FieldKey:       "id",
		ValueType:      fieldpolicy.TypeString,
		Protected:      true,
		DataSourceType: DataSourceTypePlain,
		LabelI18nKey:   "profile.fields.id",
	},
	{
		FieldKey:       "first_name",
		ValueType:      fieldpolicy.TypeString,
		DataSourceType: DataSourceTypePlain,
		LabelI18nKey:   "profile.fields.first_name",
	},
	{
		FieldKey:       "last_name",
		ValueType:      fieldpolicy.TypeString,
		DataSourceType: DataSourceTypePlain,
		LabelI18nKey:   "profile.fields.last_name",
	},
	{
		FieldKey:       "email",
		ValueType:      fieldpolicy.TypeString,
		DataSourceType: DataSourceTypePlain,
		LabelI18nKey:   "profile.fields.email",
	},
	{
		FieldKey:         "locale",
		ValueType:        fieldpolicy.TypeString,
		DataSourceType:   DataSourceTypeDict,
		DataSourceConfig: map[string]any{"dict_code": "locale"},
		LabelI18nKey:     "profile.fields.locale",
	},
	{
		FieldKey:       "birth_year",
		ValueType:      fieldpolicy.TypeInteger,
		DataSourceType: DataSourceTypePlain,
		LabelI18nKey:   "profile.fields.birth_year",
	},
	{
		FieldKey:       "active",
		ValueType:      fieldpolicy.TypeBoolean,
		DataSourceType: DataSourceTypePlain,
		LabelI18nKey:   "profile.fields.active",
	},
	{
		FieldKey:       "password_hash",
		ValueType:      fieldpolicy.TypeString,
		Protected:      true,
		DataSourceType: DataSourceTypePlain,
		LabelI18nKey:   "profile.fields.password_hash",
	},
	{
		FieldKey:       "revision",
		ValueType:      fieldpolicy.TypeInteger,
		Protected:      true,
		DataSourceType: DataSourceTypePlain,
		LabelI18nKey:   "profile.fields.revision",
	},
	{
		FieldKey:       "created_at",
		ValueType:      fieldpolicy.TypeString,
		Protected:      true,
		DataSourceType: DataSourceTypePlain,
		LabelI18nKey:   "profile.fields.created_at",
	},
	{
		FieldKey:       "updated_at",
		ValueType:      fieldpolicy.TypeString,
		Protected:      true,
		DataSourceType: DataSourceTypePlain,
		LabelI18nKey:   "profile.fields.updated_at",
	},
}

var fieldDefinitionByKey = func() map[string]FieldDefinition {
	m := make(map[string]FieldDefinition, len(fieldDefinitions))
	for _, def := range fieldDefinitions {
		m[def.FieldKey] = def
	}
	return m
}()

// ListFieldDefinitions returns the full catalog sorted by field key. The
// returned slice and its nested maps are copies.
func ListFieldDefinitions() []FieldDefinition {
	out := make([]FieldDefinition, 0, len(fieldDefinitions))
	for _, def := range fieldDefinitions {
		out = append(out, cloneFieldDefinition(def))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FieldKey < out[j].FieldKey })
	return out
}

// LookupFieldDefinition returns the catalog entry for key.
func LookupFieldDefinition(key string) (FieldDefinition, bool) {
	def, ok := fieldDefinitionByKey[key]
	if !ok {
		return FieldDefinition{}, false
	}
	return cloneFieldDefinition(def), true
}

// Schema builds the record schema consumed by policy construction. It covers
// every catalog field, protected ones included, so the policy layer can tell
// "protected" apart from "unknown".
func Schema() (fieldpolicy.Schema, error) {
	specs := make([]fieldpolicy.FieldSpec, 0, len(fieldDefinitions))
	for _, def := range fieldDefinitions {
		specs = append(specs, fieldpolicy.FieldSpec{
			Key:       def.FieldKey,
			Type:      def.ValueType,
			Protected: def.Protected,
		})
	}
	return fieldpolicy.NewSchema(specs...)
}

// DictCodeFromDataSourceConfig extracts dict_code from a serialized
// DataSourceConfig payload, as stored by the persistence layers.
func DictCodeFromDataSourceConfig(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var cfg struct {
		DictCode string `json:"dict_code"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return "", false
	}
	value := strings.TrimSpace(cfg.DictCode)
	if value == "" {
		return "", false
	}
	return value, true
}

// DataSourceConfigJSON serializes a definition's DataSourceConfig for
// storage. PLAIN fields serialize to nil.
func DataSourceConfigJSON(def FieldDefinition) json.RawMessage {
	if len(def.DataSourceConfig) == 0 {
		return nil
	}
	raw, err := json.Marshal(def.DataSourceConfig)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

func cloneFieldDefinition(def FieldDefinition) FieldDefinition {
	out := def
	if def.DataSourceConfig != nil {
		cfg := make(map[string]any, len(def.DataSourceConfig))
		for k, v := range def.DataSourceConfig {
			cfg[k] = v
		}
		out.DataSourceConfig = cfg
	}
	return out
}
