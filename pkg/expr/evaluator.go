// Package expr evaluates the small JavaScript expressions form definitions
// use for derived display content and conditional visibility. Expressions see
// the current form values as `values` and caller extras as `extras`.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/goliatone/go-formdesk/pkg/model"
)

// DefaultTimeout bounds a single evaluation.
const DefaultTimeout = 100 * time.Millisecond

// ErrTimeout is wrapped by evaluations interrupted after their timeout.
var ErrTimeout = errors.New("expr: evaluation timed out")

// Evaluator compiles expressions once and runs each evaluation on a fresh
// goja runtime, so a single Evaluator is safe for concurrent use.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]*goja.Program
	extras   map[string]any
	timeout  time.Duration
}

// Option customises an Evaluator.
type Option func(*Evaluator)

// WithExtras exposes additional read-only data as `extras`.
func WithExtras(extras map[string]any) Option {
	return func(e *Evaluator) {
		e.extras = extras
	}
}

// WithTimeout overrides DefaultTimeout. Non positive values are ignored.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Evaluator) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// New constructs an Evaluator.
func New(options ...Option) *Evaluator {
	e := &Evaluator{programs: make(map[string]*goja.Program), timeout: DefaultTimeout}
	for _, opt := range options {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Eval runs expression against values and returns the exported result.
// undefined and null both map to nil.
func (e *Evaluator) Eval(expression string, values model.Values) (any, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, errors.New("expr: expression is empty")
	}
	program, err := e.compile(trimmed)
	if err != nil {
		return nil, err
	}

	vm := goja.New()
	if values == nil {
		values = model.Values{}
	}
	if err := vm.Set("values", map[string]any(values)); err != nil {
		return nil, fmt.Errorf("expr: bind values: %w", err)
	}
	extras := e.extras
	if extras == nil {
		extras = map[string]any{}
	}
	if err := vm.Set("extras", extras); err != nil {
		return nil, fmt.Errorf("expr: bind extras: %w", err)
	}

	timer := time.AfterFunc(e.timeout, func() { vm.Interrupt(ErrTimeout) })
	result, err := vm.RunProgram(program)
	timer.Stop()
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("expr: evaluate %q: %w", trimmed, ErrTimeout)
		}
		return nil, fmt.Errorf("expr: evaluate %q: %w", trimmed, err)
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}
	return result.Export(), nil
}

// Bool evaluates expression and coerces the result with JavaScript truthiness.
// An empty expression is true.
func (e *Evaluator) Bool(expression string, values model.Values) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}
	result, err := e.Eval(expression, values)
	if err != nil {
		return false, err
	}
	return truthy(result), nil
}

// String evaluates expression and formats the result for display.
func (e *Evaluator) String(expression string, values model.Values) (string, error) {
	result, err := e.Eval(expression, values)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	if s, ok := result.(string); ok {
		return s, nil
	}
	return fmt.Sprint(result), nil
}

// Check compiles expression without running it.
func (e *Evaluator) Check(expression string) error {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return errors.New("expr: expression is empty")
	}
	_, err := e.compile(trimmed)
	return err
}

func (e *Evaluator) compile(source string) (*goja.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[source]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	compiled, err := goja.Compile("expr", source, true)
	if err != nil {
		return nil, fmt.Errorf("expr: compile %q: %w", source, err)
	}

	e.mu.Lock()
	e.programs[source] = compiled
	e.mu.Unlock()
	return compiled, nil
}

func truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return typed != ""
	case int64:
		return typed != 0
	case int:
		return typed != 0
	case float64:
		return typed != 0 && !math.IsNaN(typed)
	default:
		return true
	}
}
