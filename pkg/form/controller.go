package form

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-formdesk/pkg/expr"
	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/structure"
	"github.com/goliatone/go-formdesk/pkg/validation"
)

// Defaulter supplies the initial value of a field that has none.
type Defaulter interface {
	Default(field model.Field) any
}

// Change is delivered to subscribers after values change.
type Change struct {
	Names  []string
	Values model.Values
	Dirty  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithEvaluator sets the expression evaluator used for visibleWhen.
func WithEvaluator(eval *expr.Evaluator) Option {
	return func(c *Controller) {
		if eval != nil {
			c.eval = eval
		}
	}
}

// WithValidator sets the rule evaluator.
func WithValidator(v *validation.Evaluator) Option {
	return func(c *Controller) {
		if v != nil {
			c.validator = v
		}
	}
}

// WithDefaults sets the default value provider, usually the field registry.
func WithDefaults(d Defaulter) Option {
	return func(c *Controller) {
		c.defaults = d
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller holds the state of one editor form: current values, the values
// it was seeded with, the dirty flag and per-field errors.
type Controller struct {
	mu sync.Mutex

	fields    []model.Field
	eval      *expr.Evaluator
	validator *validation.Evaluator
	defaults  Defaulter
	logger    *zap.Logger

	connected  bool
	dirty      bool
	values     model.Values
	initial    model.Values
	pending    model.Values
	hasPending bool
	applied    model.Values
	hasApplied bool
	errors     map[string][]string

	subscribers map[int]func(Change)
	nextSub     int
}

// New creates a controller for fields. The controller starts unconnected;
// initial values set before Connect are kept pending.
func New(fields []model.Field, options ...Option) *Controller {
	c := &Controller{
		fields:      fields,
		eval:        expr.New(),
		validator:   validation.NewEvaluator(nil),
		logger:      zap.NewNop(),
		values:      model.Values{},
		initial:     model.Values{},
		errors:      map[string][]string{},
		subscribers: map[int]func(Change){},
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Fields returns the field descriptors.
func (c *Controller) Fields() []model.Field {
	return c.fields
}

// Connect marks the form as mounted and applies pending initial values.
func (c *Controller) Connect() {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = true
	seed := c.pending
	hasSeed := c.hasPending
	c.pending, c.hasPending = nil, false
	c.mu.Unlock()

	if !hasSeed {
		seed = model.Values{}
	}
	c.SetInitialValues(seed)
}

// Connected reports whether Connect ran.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SetInitialValues seeds the form. Before Connect the values are stored as
// pending. Afterwards the form is reset and reseeded, but only when the
// content differs from the last applied seed; repeated identical seeds are
// ignored. Reports whether the seed was applied.
func (c *Controller) SetInitialValues(values model.Values) bool {
	c.mu.Lock()
	if !c.connected {
		c.pending = values.Clone()
		c.hasPending = true
		c.mu.Unlock()
		return false
	}
	if c.hasApplied && reflect.DeepEqual(c.applied, normalizeSeed(values)) {
		c.mu.Unlock()
		c.logger.Debug("initial values unchanged, skipping reseed")
		return false
	}

	c.applied = normalizeSeed(values)
	c.hasApplied = true

	seeded := values.Clone()
	for _, field := range model.Flatten(c.fields) {
		if _, ok := seeded[field.Name]; ok {
			continue
		}
		if def := c.defaultFor(field); def != nil {
			seeded[field.Name] = def
		}
	}
	c.values = seeded
	c.initial = seeded.Clone()
	c.dirty = false
	c.errors = map[string][]string{}
	change := c.changeLocked(sortedKeys(seeded))
	c.mu.Unlock()

	c.notify(change)
	return true
}

// Value returns the current value at name, which may be a dotted path.
func (c *Controller) Value(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := getPath(c.values, name)
	if !ok {
		return nil, false
	}
	return model.DeepCopy(value), true
}

// SetValues merges partial into the current values. Keys may be dotted
// paths. Changed fields lose their errors and the form becomes dirty.
func (c *Controller) SetValues(partial model.Values) {
	if len(partial) == 0 {
		return
	}
	c.mu.Lock()
	var changed []string
	for _, name := range sortedKeys(partial) {
		next := model.DeepCopy(partial[name])
		if prev, ok := getPath(c.values, name); ok && reflect.DeepEqual(prev, next) {
			continue
		}
		if err := setPath(c.values, name, next); err != nil {
			c.logger.Warn("set form value", zap.String("field", name), zap.Error(err))
			continue
		}
		delete(c.errors, name)
		changed = append(changed, name)
	}
	if len(changed) == 0 {
		c.mu.Unlock()
		return
	}
	c.dirty = true
	change := c.changeLocked(changed)
	c.mu.Unlock()

	c.notify(change)
}

// GetValues returns a copy of the current values. Hidden fields are omitted
// unless includeHidden is set; keys no field describes pass through.
func (c *Controller) GetValues(includeHidden bool) model.Values {
	c.mu.Lock()
	values := c.values.Clone()
	c.mu.Unlock()

	if includeHidden {
		return values
	}
	for _, target := range c.targets(values) {
		if !c.visible(target.field, values) {
			delete(values, target.name)
		}
	}
	return values
}

// Visible reports whether a field is currently shown.
func (c *Controller) Visible(field model.Field) bool {
	return c.visible(field, c.GetValues(true))
}

// ResetFields restores the seeded values and clears dirty state and errors.
func (c *Controller) ResetFields() {
	c.mu.Lock()
	c.values = c.initial.Clone()
	c.dirty = false
	c.errors = map[string][]string{}
	change := c.changeLocked(sortedKeys(c.values))
	c.mu.Unlock()

	c.notify(change)
}

// MarkClean records the current values as the new baseline, typically after
// a successful save.
func (c *Controller) MarkClean() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = false
	c.initial = c.values.Clone()
}

// Dirty reports whether values changed since the last seed, reset or save.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Errors returns a copy of the per-field errors.
func (c *Controller) Errors() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]string, len(c.errors))
	for name, messages := range c.errors {
		out[name] = append([]string(nil), messages...)
	}
	return out
}

// SetErrors attaches externally produced errors, for example mapped backend
// validation messages.
func (c *Controller) SetErrors(errs map[string][]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, messages := range errs {
		if len(messages) == 0 {
			delete(c.errors, name)
			continue
		}
		c.errors[name] = append([]string(nil), messages...)
	}
}

// ValidateFields runs the rule chain of the named fields, or of every visible
// field when names is empty. Group fields match every instance of the base
// name. Hidden, read-only and structured list fields are skipped; structured
// list emptiness is checked by the structure controller. It returns the
// visible values and a *validation.FieldErrors when any rule fails.
func (c *Controller) ValidateFields(ctx context.Context, names ...string) (model.Values, error) {
	all := c.GetValues(true)
	filter := make(map[string]struct{}, len(names))
	for _, name := range names {
		filter[strings.TrimSpace(name)] = struct{}{}
	}

	var failures []validation.FieldError
	validated := make([]string, 0)
	for _, target := range c.targets(all) {
		if len(filter) > 0 {
			_, byName := filter[target.name]
			_, byBase := filter[target.field.Name]
			if !byName && !byBase {
				continue
			}
		}
		if !validatable(target.field) || !c.visible(target.field, all) {
			continue
		}
		validated = append(validated, target.name)
		field := target.field
		field.Name = target.name
		messages := c.validator.Field(ctx, field, all[target.name], all)
		if len(messages) > 0 {
			failures = append(failures, validation.FieldError{Name: target.name, Errors: messages})
		}
	}

	c.mu.Lock()
	for _, name := range validated {
		delete(c.errors, name)
	}
	for _, failure := range failures {
		c.errors[failure.Name] = append([]string(nil), failure.Errors...)
	}
	c.mu.Unlock()

	values := c.GetValues(false)
	if len(failures) > 0 {
		return values, &validation.FieldErrors{ErrorFields: failures}
	}
	return values, nil
}

// Subscribe registers fn for change notifications. The returned func
// unsubscribes.
func (c *Controller) Subscribe(fn func(Change)) func() {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

type target struct {
	name  string
	field model.Field
}

// targets lists the concrete value slots of the form, expanding repeatable
// groups into one slot per instance. A group always exposes at least one
// instance.
func (c *Controller) targets(values model.Values) []target {
	out := make([]target, 0, len(c.fields))
	var walk func(fields []model.Field)
	walk = func(fields []model.Field) {
		for _, field := range fields {
			if !field.IsGroup {
				out = append(out, target{name: field.Name, field: field})
				continue
			}
			count := structure.InstanceCount(field, values)
			if count == 0 {
				count = 1
			}
			for idx := 0; idx < count; idx++ {
				for _, nested := range model.Flatten(field.Fields) {
					hidden := nested
					if field.Hidden {
						hidden.Hidden = true
					}
					if hidden.VisibleWhen == "" {
						hidden.VisibleWhen = field.VisibleWhen
					}
					out = append(out, target{name: structure.SuffixedName(nested.Name, idx), field: hidden})
				}
			}
		}
	}
	walk(c.fields)
	return out
}

func (c *Controller) visible(field model.Field, values model.Values) bool {
	if field.Hidden {
		return false
	}
	if strings.TrimSpace(field.VisibleWhen) == "" {
		return true
	}
	ok, err := c.eval.Bool(field.VisibleWhen, values)
	if err != nil {
		c.logger.Warn("evaluate visibleWhen", zap.String("field", field.Name), zap.Error(err))
		return true
	}
	return ok
}

func (c *Controller) defaultFor(field model.Field) any {
	if field.Default != nil {
		return model.DeepCopy(field.Default)
	}
	if c.defaults != nil {
		return c.defaults.Default(field)
	}
	return nil
}

func (c *Controller) changeLocked(names []string) Change {
	return Change{Names: names, Values: c.values.Clone(), Dirty: c.dirty}
}

func (c *Controller) notify(change Change) {
	c.mu.Lock()
	ids := make([]int, 0, len(c.subscribers))
	for id := range c.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, c.subscribers[id])
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(change)
	}
}

func validatable(field model.Field) bool {
	switch field.Type {
	case model.FieldTypeStructureList, model.FieldTypeDisplayText, model.FieldTypeDisplayImage:
		return false
	default:
		return true
	}
}

func normalizeSeed(values model.Values) model.Values {
	if values == nil {
		return model.Values{}
	}
	return values.Clone()
}

func sortedKeys(values model.Values) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
