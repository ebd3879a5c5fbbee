package widgets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-formdesk/pkg/client"
	"github.com/goliatone/go-formdesk/pkg/expr"
	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/options"
	"github.com/goliatone/go-formdesk/pkg/render"
)

// Context carries the runtime state an adapter renders against.
type Context struct {
	Values model.Values
	Errors map[string][]string
	// Visible filters fields out of the tree. Nil shows every non hidden field.
	Visible func(field model.Field) bool
	// Expanded reports the open state of structured list panels.
	Expanded func(panel string) bool
}

// PropsFunc computes the type specific props of a node.
type PropsFunc func(r *Registry, field model.Field, value any, rc Context) (map[string]any, error)

// Adapter describes how one field type renders and what value shape it holds.
type Adapter struct {
	Component string
	Default   func(field model.Field) any
	Props     PropsFunc
	// Normalize converts the UI value into the runtime value (switch 0/1).
	Normalize func(field model.Field, value any) any
}

// Option configures a Registry.
type Option func(*Registry)

// WithOptions injects the options dictionary used by select, transfer and
// filter controls.
func WithOptions(dict *options.Dictionary) Option {
	return func(r *Registry) {
		if dict != nil {
			r.options = dict
		}
	}
}

// WithEvaluator sets the evaluator for displayText/displayImage content.
func WithEvaluator(eval *expr.Evaluator) Option {
	return func(r *Registry) {
		if eval != nil {
			r.eval = eval
		}
	}
}

// WithUploader sets the upload boundary used by upload fields.
func WithUploader(uploader client.Uploader) Option {
	return func(r *Registry) {
		r.uploader = uploader
	}
}

type contentEntry struct {
	snapshot string
	value    string
}

// Registry maps field types to adapters. Every type of the closed set has a
// built-in adapter; FieldTypeUnknown falls back to the plain input adapter.
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.FieldType]Adapter

	options  *options.Dictionary
	eval     *expr.Evaluator
	uploader client.Uploader

	cacheMu     sync.Mutex
	content     map[string]contentEntry
	evaluations int
}

// NewRegistry constructs a registry with the built-in adapters registered.
func NewRegistry(opts ...Option) *Registry {
	reg := &Registry{
		adapters: make(map[model.FieldType]Adapter),
		options:  options.Empty(),
		eval:     expr.New(),
		content:  make(map[string]contentEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(reg)
		}
	}
	reg.registerBuiltins()
	return reg
}

// Register installs or replaces the adapter of a field type.
func (r *Registry) Register(fieldType model.FieldType, adapter Adapter) error {
	if strings.TrimSpace(string(fieldType)) == "" {
		return fmt.Errorf("widgets: field type is required")
	}
	if strings.TrimSpace(adapter.Component) == "" {
		return fmt.Errorf("widgets: adapter for %q needs a component", fieldType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[fieldType] = adapter
	return nil
}

// Adapter returns the adapter for a field type. Types outside the registry
// resolve to the input adapter and report false.
func (r *Registry) Adapter(fieldType model.FieldType) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if adapter, ok := r.adapters[fieldType]; ok && fieldType != model.FieldTypeUnknown {
		return adapter, true
	}
	return r.adapters[model.FieldTypeInput], false
}

// Options returns the injected dictionary.
func (r *Registry) Options() *options.Dictionary {
	return r.options
}

// Default returns the initial value of a field: its declared default, else
// the type's default shape.
func (r *Registry) Default(field model.Field) any {
	if field.Default != nil {
		return model.DeepCopy(field.Default)
	}
	adapter, _ := r.Adapter(field.Type)
	if adapter.Default == nil {
		return nil
	}
	return adapter.Default(field)
}

// Normalize converts a UI value to its runtime shape.
func (r *Registry) Normalize(field model.Field, value any) any {
	adapter, _ := r.Adapter(field.Type)
	if adapter.Normalize == nil {
		return value
	}
	return adapter.Normalize(field, value)
}

// RenderAll renders fields in declaration order, skipping hidden ones.
func (r *Registry) RenderAll(fields []model.Field, rc Context) ([]render.Node, error) {
	nodes := make([]render.Node, 0, len(fields))
	for _, field := range fields {
		if !r.shown(field, rc) {
			continue
		}
		node, err := r.Render(field, rc)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Render dispatches a field to its adapter and returns the UI node.
func (r *Registry) Render(field model.Field, rc Context) (render.Node, error) {
	if field.IsGroup {
		return r.renderGroup(field, rc)
	}

	adapter, known := r.Adapter(field.Type)
	value, ok := rc.Values[field.Name]
	if !ok {
		value = r.Default(field)
	}

	props := map[string]any{
		"name":     field.Name,
		"required": field.Required,
		"disabled": field.Disabled,
		"value":    value,
	}
	if field.Placeholder != "" {
		props["placeholder"] = field.Placeholder
	}
	if errs := rc.Errors[field.Name]; len(errs) > 0 {
		props["errors"] = append([]string(nil), errs...)
	}
	if !known {
		props["unknownType"] = string(field.Type)
	}

	node := render.Node{
		Component: adapter.Component,
		Field:     field.Name,
		Label:     field.DisplayLabel(),
		Props:     props,
	}
	if adapter.Props != nil {
		extra, err := adapter.Props(r, field, value, rc)
		if err != nil {
			return render.Node{}, fmt.Errorf("widgets: render %q: %w", field.Name, err)
		}
		for key, v := range extra {
			props[key] = v
		}
	}

	if field.Type == model.FieldTypeInputGroup && len(field.Fields) > 0 {
		children, err := r.RenderAll(field.Fields, rc)
		if err != nil {
			return render.Node{}, err
		}
		node.Children = children
	}
	return node, nil
}

// Uploaded hands a file to the upload boundary, stores the returned URL as
// the field value and fires the field's change hook.
func (r *Registry) Uploaded(ctx context.Context, field model.Field, file client.File, form model.FormHandle) (string, error) {
	if r.uploader == nil {
		return "", fmt.Errorf("widgets: no uploader configured for %q", field.Name)
	}
	url, err := r.uploader.Upload(ctx, file)
	if err != nil {
		return "", fmt.Errorf("widgets: upload %q: %w", field.Name, err)
	}
	if form != nil {
		form.SetValues(model.Values{field.Name: url})
	}
	if field.OnChange != nil {
		field.OnChange(url, &model.UploadedFile{Name: file.Name, ContentType: file.ContentType, Size: file.Size}, form)
	}
	return url, nil
}

// Content evaluates the content expression of a display field. The result is
// cached per field and recomputed only when one of the declared dependency
// values changes.
func (r *Registry) Content(field model.Field, values model.Values) (string, error) {
	if strings.TrimSpace(field.Content) == "" {
		return "", nil
	}
	snapshot, err := dependencySnapshot(field, values)
	if err != nil {
		return "", fmt.Errorf("widgets: snapshot %q: %w", field.Name, err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if entry, ok := r.content[field.Name]; ok && entry.snapshot == snapshot {
		return entry.value, nil
	}
	value, err := r.eval.String(field.Content, values)
	if err != nil {
		return "", fmt.Errorf("widgets: content %q: %w", field.Name, err)
	}
	r.evaluations++
	r.content[field.Name] = contentEntry{snapshot: snapshot, value: value}
	return value, nil
}

func (r *Registry) shown(field model.Field, rc Context) bool {
	if field.Hidden {
		return false
	}
	if rc.Visible != nil {
		return rc.Visible(field)
	}
	return true
}

func dependencySnapshot(field model.Field, values model.Values) (string, error) {
	if len(field.Dependencies) == 0 {
		return "", nil
	}
	deps := make([]any, len(field.Dependencies))
	for i, name := range field.Dependencies {
		deps[i] = values[name]
	}
	raw, err := json.Marshal(deps)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
