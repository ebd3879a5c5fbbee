package options

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-formdesk/pkg/model"
)

// Dictionary is the process-wide key -> option list lookup used when a field
// or column declares options by key. It is populated once and never mutated
// afterwards, so concurrent readers need no locking.
type Dictionary struct {
	entries map[string][]model.Option
}

// New copies the supplied entries into an immutable dictionary.
func New(entries map[string][]model.Option) *Dictionary {
	dict := &Dictionary{entries: make(map[string][]model.Option, len(entries))}
	for key, list := range entries {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		dict.entries[trimmed] = append([]model.Option(nil), list...)
	}
	return dict
}

// Empty returns a dictionary without entries.
func Empty() *Dictionary {
	return New(nil)
}

// Lookup returns a copy of the options stored under key.
func (d *Dictionary) Lookup(key string) ([]model.Option, bool) {
	if d == nil {
		return nil, false
	}
	list, ok := d.entries[strings.TrimSpace(key)]
	if !ok {
		return nil, false
	}
	return append([]model.Option(nil), list...), true
}

// Has reports whether key is registered.
func (d *Dictionary) Has(key string) bool {
	if d == nil {
		return false
	}
	_, ok := d.entries[strings.TrimSpace(key)]
	return ok
}

// Keys returns the registered keys in sorted order.
func (d *Dictionary) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.entries))
	for key := range d.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Resolve turns an option source into concrete options. Inline lists win over
// keys; an unknown key is an error so misconfigured screens surface early.
func (d *Dictionary) Resolve(src model.OptionSource) ([]model.Option, error) {
	if len(src.Inline) > 0 {
		return append([]model.Option(nil), src.Inline...), nil
	}
	if src.Key == "" {
		return nil, nil
	}
	list, ok := d.Lookup(src.Key)
	if !ok {
		return nil, fmt.Errorf("options: key %q not found", src.Key)
	}
	return list, nil
}

// Label resolves the display label for value. Values that match no option are
// returned formatted as-is; slices resolve element-wise joined by ", ".
func (d *Dictionary) Label(src model.OptionSource, value any) string {
	list, err := d.Resolve(src)
	if err != nil || len(list) == 0 {
		return formatValue(value)
	}
	switch typed := value.(type) {
	case []any:
		labels := make([]string, 0, len(typed))
		for _, item := range typed {
			labels = append(labels, labelFor(list, item))
		}
		return strings.Join(labels, ", ")
	case []string:
		labels := make([]string, 0, len(typed))
		for _, item := range typed {
			labels = append(labels, labelFor(list, item))
		}
		return strings.Join(labels, ", ")
	default:
		return labelFor(list, value)
	}
}

func labelFor(list []model.Option, value any) string {
	for _, option := range list {
		if Equal(option.Value, value) {
			return option.Label
		}
	}
	return formatValue(value)
}

// Equal compares option values loosely so numbers decoded as float64 match
// ints and numeric strings coming from query parameters.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return formatValue(a) == formatValue(b)
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		if typed == float64(int64(typed)) {
			return fmt.Sprintf("%d", int64(typed))
		}
		return fmt.Sprint(typed)
	case float32:
		return formatValue(float64(typed))
	default:
		return fmt.Sprint(typed)
	}
}
