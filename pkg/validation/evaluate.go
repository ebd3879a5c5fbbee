package validation

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/goliatone/go-formdesk/pkg/model"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Registry stores named validators that declarative rules reference through
// their `validator` attribute.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]model.ValidatorFunc
}

// NewRegistry creates an empty validator registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]model.ValidatorFunc)}
}

// Register adds a validator. Duplicate names return an error.
func (r *Registry) Register(name string, fn model.ValidatorFunc) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || fn == nil {
		return fmt.Errorf("validation: validator name and func are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.validators[trimmed]; exists {
		return fmt.Errorf("validation: validator %q already registered", trimmed)
	}
	r.validators[trimmed] = fn
	return nil
}

// MustRegister panics on registration failure.
func (r *Registry) MustRegister(name string, fn model.ValidatorFunc) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Get returns the validator registered under name.
func (r *Registry) Get(name string) (model.ValidatorFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.validators[strings.TrimSpace(name)]
	return fn, ok
}

// Evaluator runs composed rule chains against field values.
type Evaluator struct {
	validators *Registry
}

// NewEvaluator builds an evaluator resolving named validators from registry.
// A nil registry resolves from the process wide Validators.
func NewEvaluator(registry *Registry) *Evaluator {
	if registry == nil {
		registry = Validators
	}
	return &Evaluator{validators: registry}
}

// Field evaluates the composed rules of field against value.
func (e *Evaluator) Field(ctx context.Context, field model.Field, value any, values model.Values) []string {
	return e.Rules(ctx, field.DisplayLabel(), RulesFor(field), value, values)
}

// Rules evaluates rules in declaration order and returns the messages of the
// failing ones. Only the required rule runs against empty values.
func (e *Evaluator) Rules(ctx context.Context, label string, rules []model.Rule, value any, values model.Values) []string {
	var messages []string
	for _, rule := range rules {
		if msg, failed := e.check(ctx, label, rule, value, values); failed {
			messages = append(messages, msg)
		}
	}
	return messages
}

func (e *Evaluator) check(ctx context.Context, label string, rule model.Rule, value any, values model.Values) (string, bool) {
	empty := IsEmpty(value)
	if rule.Whitespace {
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			empty = true
		}
	}

	if rule.Required && empty {
		return messageOr(rule, fmt.Sprintf("%s is required", label)), true
	}
	if empty {
		return "", false
	}

	if rule.Pattern != "" {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Sprintf("%s has an invalid pattern", label), true
		}
		if !re.MatchString(fmt.Sprint(value)) {
			return messageOr(rule, fmt.Sprintf("%s does not match the expected format", label)), true
		}
	}
	if rule.Type != "" && !matchesType(rule.Type, value) {
		return messageOr(rule, fmt.Sprintf("%s is not a valid %s", label, rule.Type)), true
	}
	if rule.Len != nil || rule.Min != nil || rule.Max != nil {
		size, numeric := measure(rule.Type, value)
		if rule.Len != nil && size != float64(*rule.Len) {
			return messageOr(rule, fmt.Sprintf("%s must be exactly %d characters", label, *rule.Len)), true
		}
		if rule.Min != nil && size < *rule.Min {
			if numeric {
				return messageOr(rule, fmt.Sprintf("%s cannot be less than %s", label, formatBound(*rule.Min))), true
			}
			return messageOr(rule, fmt.Sprintf("%s must be at least %s characters", label, formatBound(*rule.Min))), true
		}
		if rule.Max != nil && size > *rule.Max {
			if numeric {
				return messageOr(rule, fmt.Sprintf("%s cannot be greater than %s", label, formatBound(*rule.Max))), true
			}
			return messageOr(rule, fmt.Sprintf("%s cannot be longer than %s characters", label, formatBound(*rule.Max))), true
		}
	}
	if rule.Validator != "" {
		fn, ok := e.validators.Get(rule.Validator)
		if !ok {
			return fmt.Sprintf("%s uses unknown validator %q", label, rule.Validator), true
		}
		if err := fn(ctx, value, values); err != nil {
			return messageOr(rule, err.Error()), true
		}
	}
	if rule.Func != nil {
		if err := rule.Func(ctx, value, values); err != nil {
			return messageOr(rule, err.Error()), true
		}
	}
	return "", false
}

func messageOr(rule model.Rule, fallback string) string {
	if msg := strings.TrimSpace(rule.Message); msg != "" {
		return msg
	}
	return fallback
}

// IsEmpty reports whether value counts as "not provided": nil, blank strings,
// empty collections, and ranges whose bounds are all empty.
func IsEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []any:
		for _, item := range typed {
			if !IsEmpty(item) {
				return false
			}
		}
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func matchesType(kind string, value any) bool {
	switch kind {
	case "email":
		return emailPattern.MatchString(fmt.Sprint(value))
	case "url":
		u, err := url.Parse(fmt.Sprint(value))
		return err == nil && u.Scheme != "" && u.Host != ""
	case "number":
		_, ok := toFloat(value)
		return ok
	case "integer":
		f, ok := toFloat(value)
		return ok && f == float64(int64(f))
	default:
		return true
	}
}

func measure(kind string, value any) (float64, bool) {
	if kind == "number" || kind == "integer" {
		f, _ := toFloat(value)
		return f, true
	}
	switch typed := value.(type) {
	case string:
		return float64(utf8.RuneCountInString(typed)), false
	case int, int32, int64, float32, float64:
		f, _ := toFloat(typed)
		return f, true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return float64(rv.Len()), false
	}
	return float64(utf8.RuneCountInString(fmt.Sprint(value))), false
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Validators is the process wide registry consulted by Evaluate.
var Validators = NewRegistry()

// Evaluate runs rules against value using the shared Validators registry.
func Evaluate(ctx context.Context, rules []model.Rule, value any, values model.Values) []string {
	return NewEvaluator(Validators).Rules(ctx, "value", rules, value, values)
}
