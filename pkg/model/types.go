package model

import (
	"context"
	"strings"
)

// FieldType is the closed set of field kinds a form definition may declare.
type FieldType string

const (
	FieldTypeInput         FieldType = "input"
	FieldTypeText          FieldType = "text"
	FieldTypeTextarea      FieldType = "textarea"
	FieldTypePassword      FieldType = "password"
	FieldTypeSelect        FieldType = "select"
	FieldTypeDate          FieldType = "date"
	FieldTypeDateRange     FieldType = "dateRange"
	FieldTypeUpload        FieldType = "upload"
	FieldTypeSwitch        FieldType = "switch"
	FieldTypeTransfer      FieldType = "transfer"
	FieldTypeStructureList FieldType = "structureList"
	FieldTypeNumberStepper FieldType = "numberStepper"
	FieldTypeInputGroup    FieldType = "inputGroup"
	FieldTypeDisplayImage  FieldType = "displayImage"
	FieldTypeDisplayText   FieldType = "displayText"

	// FieldTypeUnknown is assigned to tags outside the closed set. It renders
	// as a plain input and is reported by definition linting.
	FieldTypeUnknown FieldType = "unknown"
)

var knownFieldTypes = map[FieldType]struct{}{
	FieldTypeInput:         {},
	FieldTypeText:          {},
	FieldTypeTextarea:      {},
	FieldTypePassword:      {},
	FieldTypeSelect:        {},
	FieldTypeDate:          {},
	FieldTypeDateRange:     {},
	FieldTypeUpload:        {},
	FieldTypeSwitch:        {},
	FieldTypeTransfer:      {},
	FieldTypeStructureList: {},
	FieldTypeNumberStepper: {},
	FieldTypeInputGroup:    {},
	FieldTypeDisplayImage:  {},
	FieldTypeDisplayText:   {},
}

// ParseFieldType maps a raw type tag onto the closed set. Empty tags default
// to input; unrecognised tags yield FieldTypeUnknown.
func ParseFieldType(raw string) FieldType {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return FieldTypeInput
	}
	candidate := FieldType(trimmed)
	if _, ok := knownFieldTypes[candidate]; ok {
		return candidate
	}
	return FieldTypeUnknown
}

// Known reports whether the type belongs to the closed set.
func (t FieldType) Known() bool {
	_, ok := knownFieldTypes[t]
	return ok
}

// Select modes.
const (
	ModeSingle   = "single"
	ModeMultiple = "multiple"
)

// Common record statuses used by status gating and the save pipeline.
const (
	StatusDraft    = "DRAFT"
	StatusEnabled  = "ENABLED"
	StatusDisabled = "DISABLED"
)

// PasswordMask is the placeholder a password field holds until the user
// types a new password. Masked values are dropped from save payloads.
const PasswordMask = "******"

// Values maps field names to their current value. Keys not described by any
// field pass through untouched.
type Values map[string]any

// Clone returns a deep copy of the value map.
func (v Values) Clone() Values {
	if v == nil {
		return Values{}
	}
	out := make(Values, len(v))
	for key, value := range v {
		out[key] = DeepCopy(value)
	}
	return out
}

// DeepCopy clones maps and slices produced by JSON/YAML decoding. Other values
// are returned as-is.
func DeepCopy(value any) any {
	switch typed := value.(type) {
	case Values:
		return typed.Clone()
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = DeepCopy(v)
		}
		return clone
	case []map[string]any:
		clone := make([]map[string]any, len(typed))
		for i, v := range typed {
			clone[i], _ = DeepCopy(v).(map[string]any)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = DeepCopy(v)
		}
		return clone
	case []string:
		return append([]string(nil), typed...)
	default:
		return typed
	}
}

// ValidatorFunc is a caller supplied predicate. A non-nil error fails the
// rule; the rule message wins over the error text when set.
type ValidatorFunc func(ctx context.Context, value any, values Values) error

// Rule is a single declarative validation constraint.
type Rule struct {
	Required   bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Message    string   `json:"message,omitempty" yaml:"message,omitempty"`
	Pattern    string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Type       string   `json:"type,omitempty" yaml:"type,omitempty"`
	Min        *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max        *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Len        *int     `json:"len,omitempty" yaml:"len,omitempty"`
	Whitespace bool     `json:"whitespace,omitempty" yaml:"whitespace,omitempty"`
	// Validator names a validator registered with the validation package.
	Validator string `json:"validator,omitempty" yaml:"validator,omitempty"`

	Func ValidatorFunc `json:"-" yaml:"-"`
}

// Option is a single choice offered by select, transfer and filter controls.
type Option struct {
	Label    string `json:"label" yaml:"label"`
	Value    any    `json:"value" yaml:"value"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Preview configures what a switch shows for each checked state.
type Preview struct {
	Type      string `json:"type" yaml:"type"`
	Checked   string `json:"checked,omitempty" yaml:"checked,omitempty"`
	Unchecked string `json:"unchecked,omitempty" yaml:"unchecked,omitempty"`
}

// EmptyNotice is the notification shown when a required list is empty.
type EmptyNotice struct {
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// UploadedFile describes the file handed to an upload field.
type UploadedFile struct {
	Name        string
	ContentType string
	Size        int64
}

// FormHandle is the narrow view of the form runtime that change hooks receive.
type FormHandle interface {
	Value(name string) (any, bool)
	SetValues(partial Values)
}

// ChangeHook runs after an upload or value change with the new value.
type ChangeHook func(value any, file *UploadedFile, form FormHandle)

// GroupField maps one nested group field onto the backend record.
type GroupField struct {
	Name string `json:"name" yaml:"name"`
	// RecordKey is the key used inside the backend group record; defaults to Name.
	RecordKey string `json:"recordKey,omitempty" yaml:"recordKey,omitempty"`
	// Refs marks a list of entity ids stored in the form as [{id: ...}].
	Refs bool `json:"refs,omitempty" yaml:"refs,omitempty"`
}

// Field models one form control.
type Field struct {
	Name            string       `json:"name" yaml:"name"`
	Type            FieldType    `json:"type" yaml:"type"`
	Label           string       `json:"label,omitempty" yaml:"label,omitempty"`
	Placeholder     string       `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Required        bool         `json:"required,omitempty" yaml:"required,omitempty"`
	RequiredMessage string       `json:"requiredMessage,omitempty" yaml:"requiredMessage,omitempty"`
	Rules           []Rule       `json:"rules,omitempty" yaml:"rules,omitempty"`
	Options         OptionSource `json:"options,omitempty" yaml:"options,omitempty"`
	Mode            string       `json:"mode,omitempty" yaml:"mode,omitempty"`
	Dependencies    []string     `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Default         any          `json:"default,omitempty" yaml:"default,omitempty"`
	Disabled        bool         `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Hidden          bool         `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	VisibleWhen     string       `json:"visibleWhen,omitempty" yaml:"visibleWhen,omitempty"`
	Content         string       `json:"content,omitempty" yaml:"content,omitempty"`

	MaxLength int  `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	ShowCount bool `json:"showCount,omitempty" yaml:"showCount,omitempty"`

	// Format is a moment-style date layout (YYYY-MM-DD by default).
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	// Keys splits a dateRange value into two named output fields at save.
	Keys []string `json:"keys,omitempty" yaml:"keys,omitempty"`

	Preview *Preview `json:"preview,omitempty" yaml:"preview,omitempty"`
	Accept  string   `json:"accept,omitempty" yaml:"accept,omitempty"`

	// Password handling: HashPassword bcrypt-hashes changed values.
	HashPassword bool `json:"hashPassword,omitempty" yaml:"hashPassword,omitempty"`

	// IsGroup marks a repeatable group whose nested Fields are suffixed per
	// instance (name, name1, name2...). GroupFields maps them to the record.
	IsGroup     bool         `json:"isGroup,omitempty" yaml:"isGroup,omitempty"`
	Fields      []Field      `json:"fields,omitempty" yaml:"fields,omitempty"`
	GroupFields []GroupField `json:"groupFields,omitempty" yaml:"groupFields,omitempty"`

	// Structured list configuration.
	ItemTemplate map[string]any `json:"itemTemplate,omitempty" yaml:"itemTemplate,omitempty"`
	Formatter    string         `json:"formatter,omitempty" yaml:"formatter,omitempty"`
	Empty        *EmptyNotice   `json:"empty,omitempty" yaml:"empty,omitempty"`

	OnChange ChangeHook `json:"-" yaml:"-"`
}

// IsStructureList reports whether the field holds a repeating list of records.
func (f Field) IsStructureList() bool {
	return f.Type == FieldTypeStructureList
}

// DisplayLabel returns the label, falling back to the field name.
func (f Field) DisplayLabel() string {
	if label := strings.TrimSpace(f.Label); label != "" {
		return label
	}
	return f.Name
}

// Form groups the fields edited by one editor instance.
type Form struct {
	ID     string  `json:"id" yaml:"id"`
	Title  string  `json:"title,omitempty" yaml:"title,omitempty"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Flatten returns the fields of the form in declaration order with group
// containers expanded into their nested fields.
func Flatten(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	for _, field := range fields {
		if field.IsGroup {
			out = append(out, Flatten(field.Fields)...)
			continue
		}
		out = append(out, field)
	}
	return out
}

// Find looks up a field by name across nested groups.
func Find(fields []Field, name string) (Field, bool) {
	for _, field := range Flatten(fields) {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}
