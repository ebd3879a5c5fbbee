package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formdesk/pkg/definition"
	"github.com/goliatone/go-formdesk/pkg/model"
)

const (
	// ExtensionKey holds per-property overrides.
	ExtensionKey = "x-formdesk"
	// OrderExtensionKey lists property names in display order on an object schema.
	OrderExtensionKey = "x-formdesk-order"

	// TextareaThreshold is the maxLength above which strings become textareas.
	TextareaThreshold = 200

	dateTimeFormat = "YYYY-MM-DD HH:mm:ss"
)

var bodyMediaTypes = []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"}

// Operation is one request-bearing operation of the document.
type Operation struct {
	ID      string
	Method  string
	Path    string
	Summary string
	Fields  []model.Field
}

// Form converts the operation into an editor definition posting to Path.
func (o Operation) Form() definition.Form {
	form := definition.Form{
		ID:     o.ID,
		Title:  o.Summary,
		Fields: o.Fields,
	}
	form.Header.Path = o.Path
	return form
}

// Options configures Parse.
type Options struct {
	AllowExternalRefs bool
	Validate          bool
}

// Option mutates Options.
type Option func(*Options)

// WithExternalRefs lets the document reference other files.
func WithExternalRefs(enabled bool) Option {
	return func(opts *Options) { opts.AllowExternalRefs = enabled }
}

// WithValidation validates the document before import.
func WithValidation(enabled bool) Option {
	return func(opts *Options) { opts.Validate = enabled }
}

// Parse reads every operation with a request body from raw, keyed by
// operation id. Operations without an id are keyed "method:path".
func Parse(ctx context.Context, raw []byte, options ...Option) (map[string]Operation, error) {
	doc, err := loadDocument(ctx, raw, options)
	if err != nil {
		return nil, err
	}

	operations := make(map[string]Operation)
	if doc.Paths == nil {
		return operations, nil
	}
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil || op.RequestBody == nil {
				continue
			}
			schema := requestSchema(op.RequestBody)
			if schema == nil {
				continue
			}
			id := strings.TrimSpace(op.OperationID)
			if id == "" {
				id = strings.ToLower(method) + ":" + path
			}
			if _, exists := operations[id]; exists {
				return nil, fmt.Errorf("openapi: duplicate operation id %q", id)
			}
			operations[id] = Operation{
				ID:      id,
				Method:  strings.ToUpper(method),
				Path:    path,
				Summary: op.Summary,
				Fields:  objectFields(schema),
			}
		}
	}
	return operations, nil
}

func loadDocument(ctx context.Context, raw []byte, options []Option) (*openapi3.T, error) {
	if len(raw) == 0 {
		return nil, errors.New("openapi: document is empty")
	}
	var opts Options
	for _, opt := range options {
		if opt != nil {
			opt(&opts)
		}
	}

	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: opts.AllowExternalRefs}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if opts.Validate {
		if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi: validate document: %w", err)
		}
	}
	return doc, nil
}

// Import parses raw and returns the operation converted to a form.
func Import(ctx context.Context, raw []byte, operationID string, options ...Option) (definition.Form, error) {
	operations, err := Parse(ctx, raw, options...)
	if err != nil {
		return definition.Form{}, err
	}
	op, ok := operations[operationID]
	if !ok {
		return definition.Form{}, fmt.Errorf("openapi: operation %q not found", operationID)
	}
	return op.Form(), nil
}

// OperationIDs returns the sorted keys of operations.
func OperationIDs(operations map[string]Operation) []string {
	ids := make([]string, 0, len(operations))
	for id := range operations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func requestSchema(body *openapi3.RequestBodyRef) *openapi3.Schema {
	if body.Value == nil {
		return nil
	}
	content := body.Value.Content
	for _, mediaType := range bodyMediaTypes {
		if mt, ok := content[mediaType]; ok && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	for _, mt := range content {
		if mt != nil && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

func objectFields(schema *openapi3.Schema) []model.Field {
	if schema == nil {
		return nil
	}
	properties := mergedProperties(schema)
	required := make(map[string]bool)
	for _, name := range mergedRequired(schema) {
		required[name] = true
	}

	fields := make([]model.Field, 0, len(properties))
	for _, name := range propertyOrder(schema, properties) {
		ref := properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		field, ok := convertProperty(name, ref.Value, required[name])
		if !ok {
			continue
		}
		fields = append(fields, field)
	}
	return fields
}

// mergedProperties flattens allOf members into one property set.
func mergedProperties(schema *openapi3.Schema) openapi3.Schemas {
	out := openapi3.Schemas{}
	for _, ref := range schema.AllOf {
		if ref == nil || ref.Value == nil {
			continue
		}
		for name, prop := range mergedProperties(ref.Value) {
			out[name] = prop
		}
	}
	for name, prop := range schema.Properties {
		out[name] = prop
	}
	return out
}

func mergedRequired(schema *openapi3.Schema) []string {
	required := append([]string(nil), schema.Required...)
	for _, ref := range schema.AllOf {
		if ref != nil && ref.Value != nil {
			required = append(required, mergedRequired(ref.Value)...)
		}
	}
	return required
}

func propertyOrder(schema *openapi3.Schema, properties openapi3.Schemas) []string {
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	ordered, _ := schema.Extensions[OrderExtensionKey].([]any)
	if len(ordered) == 0 {
		return names
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, raw := range ordered {
		name, ok := raw.(string)
		if !ok || seen[name] {
			continue
		}
		if _, exists := properties[name]; !exists {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, name := range names {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out
}

func convertProperty(name string, schema *openapi3.Schema, required bool) (model.Field, bool) {
	field := model.Field{
		Name:     name,
		Label:    schema.Title,
		Required: required,
		Default:  schema.Default,
	}
	if field.Label == "" {
		field.Label = humanize(name)
	}
	if schema.ReadOnly {
		field.Disabled = true
	}

	switch schemaType(schema) {
	case openapi3.TypeString:
		convertString(&field, schema)
	case openapi3.TypeInteger, openapi3.TypeNumber:
		field.Type = model.FieldTypeNumberStepper
		if rule, ok := numericRule(schema); ok {
			field.Rules = append(field.Rules, rule)
		}
	case openapi3.TypeBoolean:
		field.Type = model.FieldTypeSwitch
	case openapi3.TypeArray:
		if !convertArray(&field, schema) {
			return model.Field{}, false
		}
	default:
		if len(schema.Enum) > 0 {
			field.Type = model.FieldTypeSelect
			field.Options = enumOptions(schema.Enum)
			break
		}
		return model.Field{}, false
	}

	if !applyOverrides(&field, schema.Extensions[ExtensionKey]) {
		return model.Field{}, false
	}
	return field, true
}

func convertString(field *model.Field, schema *openapi3.Schema) {
	field.Type = model.FieldTypeInput
	switch {
	case len(schema.Enum) > 0:
		field.Type = model.FieldTypeSelect
		field.Options = enumOptions(schema.Enum)
		return
	case schema.Format == "date":
		field.Type = model.FieldTypeDate
		return
	case schema.Format == "date-time":
		field.Type = model.FieldTypeDate
		field.Format = dateTimeFormat
		return
	case schema.Format == "password":
		field.Type = model.FieldTypePassword
	case schema.Format == "binary":
		field.Type = model.FieldTypeUpload
		return
	case schema.MaxLength != nil && *schema.MaxLength > TextareaThreshold:
		field.Type = model.FieldTypeTextarea
	}

	if schema.MaxLength != nil {
		field.MaxLength = int(*schema.MaxLength)
		field.ShowCount = field.Type == model.FieldTypeTextarea
	}
	switch schema.Format {
	case "email", "url":
		field.Rules = append(field.Rules, model.Rule{Type: schema.Format})
	case "uri":
		field.Rules = append(field.Rules, model.Rule{Type: "url"})
	}
	if schema.Pattern != "" {
		field.Rules = append(field.Rules, model.Rule{Pattern: schema.Pattern})
	}
	if schema.MinLength > 0 {
		minLength := float64(schema.MinLength)
		field.Rules = append(field.Rules, model.Rule{Min: &minLength})
	}
}

func numericRule(schema *openapi3.Schema) (model.Rule, bool) {
	rule := model.Rule{Type: "number"}
	if schemaType(schema) == openapi3.TypeInteger {
		rule.Type = "integer"
	}
	if schema.Min != nil {
		lower := *schema.Min
		rule.Min = &lower
	}
	if schema.Max != nil {
		upper := *schema.Max
		rule.Max = &upper
	}
	return rule, rule.Min != nil || rule.Max != nil
}

func convertArray(field *model.Field, schema *openapi3.Schema) bool {
	if schema.Items == nil || schema.Items.Value == nil {
		return false
	}
	items := schema.Items.Value
	switch {
	case len(items.Enum) > 0:
		field.Type = model.FieldTypeSelect
		field.Mode = model.ModeMultiple
		field.Options = enumOptions(items.Enum)
	case schemaType(items) == openapi3.TypeObject || len(items.Properties) > 0:
		field.Type = model.FieldTypeStructureList
		template := make(map[string]any)
		for _, nested := range objectFields(items) {
			template[nested.Name] = nested.Default
		}
		if len(template) > 0 {
			field.ItemTemplate = template
		}
		if field.Required {
			field.Empty = &model.EmptyNotice{Title: fmt.Sprintf("Please add %s", field.Label)}
		}
	default:
		field.Type = model.FieldTypeTransfer
	}
	return true
}

func applyOverrides(field *model.Field, raw any) bool {
	ext, ok := raw.(map[string]any)
	if !ok {
		return true
	}
	if skip, _ := ext["skip"].(bool); skip {
		return false
	}
	if value, ok := ext["type"].(string); ok && value != "" {
		field.Type = model.ParseFieldType(value)
	}
	if value, ok := ext["label"].(string); ok && value != "" {
		field.Label = value
	}
	if value, ok := ext["placeholder"].(string); ok {
		field.Placeholder = value
	}
	if value, ok := ext["options"].(string); ok && value != "" {
		field.Options = model.OptionsKey(value)
	}
	if value, ok := ext["mode"].(string); ok && value != "" {
		field.Mode = value
	}
	if value, ok := ext["hidden"].(bool); ok {
		field.Hidden = value
	}
	if value, ok := ext["visibleWhen"].(string); ok {
		field.VisibleWhen = value
	}
	return true
}

func enumOptions(values []any) model.OptionSource {
	options := make([]model.Option, 0, len(values))
	for _, value := range values {
		if value == nil {
			continue
		}
		options = append(options, model.Option{Label: humanize(fmt.Sprint(value)), Value: value})
	}
	return model.InlineOptions(options...)
}

func schemaType(schema *openapi3.Schema) string {
	if schema.Type == nil {
		if len(schema.Properties) > 0 {
			return openapi3.TypeObject
		}
		return ""
	}
	values := schema.Type.Slice()
	for _, value := range values {
		if value != openapi3.TypeNull {
			return value
		}
	}
	return ""
}

// humanize turns camelCase, snake_case and SCREAMING values into title words.
func humanize(name string) string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
			continue
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
		}
		current = append(current, unicode.ToLower(r))
	}
	flush()
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
