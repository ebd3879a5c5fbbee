package structure

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-formdesk/pkg/model"
)

// GetDataAfter converts a backend record into form values. Each group's
// `<group>List` array is expanded into suffixed fields and id lists marked as
// refs are wrapped into [{id: ...}] so list controls can bind them.
func GetDataAfter(record map[string]any, groups []model.Field) model.Values {
	values := model.Values(record).Clone()
	for _, group := range groups {
		if !group.IsGroup {
			continue
		}
		key := ListKey(group)
		raw, ok := values[key]
		if !ok {
			continue
		}
		delete(values, key)
		for idx, entry := range ItemList(raw) {
			for _, mapping := range groupMappings(group) {
				value, ok := entry[recordKey(mapping)]
				if !ok {
					continue
				}
				if mapping.Refs {
					value = wrapRefs(value)
				}
				values[SuffixedName(mapping.Name, idx)] = model.DeepCopy(value)
			}
		}
	}
	return values
}

// ReassembleGroups is the inverse of GetDataAfter: suffixed group fields are
// collected into `<group>List` and removed from the payload.
func ReassembleGroups(values model.Values, groups []model.Field) model.Values {
	out := values.Clone()
	for _, group := range groups {
		if !group.IsGroup {
			continue
		}
		set := ExpandGroups(group, out)
		mappings := groupMappings(group)
		list := make([]any, 0, set.Len())
		for idx := 0; idx < set.Len(); idx++ {
			entry := make(map[string]any, len(mappings))
			for _, mapping := range mappings {
				value, ok := set.Get(idx, mapping.Name)
				if !ok {
					continue
				}
				if mapping.Refs {
					value = unwrapRefs(value)
				}
				entry[recordKey(mapping)] = value
			}
			list = append(list, entry)
		}
		for _, name := range set.Names() {
			delete(out, name)
		}
		out[ListKey(group)] = list
	}
	return out
}

// Formatter converts a structured list into the payload shape the backend
// expects for that field.
type Formatter func(ctx context.Context, list []map[string]any, values model.Values) (any, error)

// Formatters is a name -> Formatter registry referenced by a field's
// `formatter` attribute.
type Formatters struct {
	mu    sync.RWMutex
	funcs map[string]Formatter
}

// NewFormatters creates an empty registry.
func NewFormatters() *Formatters {
	return &Formatters{funcs: make(map[string]Formatter)}
}

// Register adds a formatter. Duplicates return an error.
func (f *Formatters) Register(name string, fn Formatter) error {
	if name == "" || fn == nil {
		return fmt.Errorf("structure: formatter name and func are required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.funcs[name]; exists {
		return fmt.Errorf("structure: formatter %q already registered", name)
	}
	f.funcs[name] = fn
	return nil
}

// Get returns the formatter registered under name.
func (f *Formatters) Get(name string) (Formatter, bool) {
	if f == nil {
		return nil, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	fn, ok := f.funcs[name]
	return fn, ok
}

// FlattenStructureLists replaces each structured list value by its item ids,
// or by the output of the field's registered formatter.
func FlattenStructureLists(ctx context.Context, values model.Values, fields []model.Field, formatters *Formatters) (model.Values, error) {
	out := values.Clone()
	for _, field := range model.Flatten(fields) {
		if !field.IsStructureList() {
			continue
		}
		raw, ok := out[field.Name]
		if !ok {
			continue
		}
		list := ItemList(raw)
		if field.Formatter != "" {
			fn, ok := formatters.Get(field.Formatter)
			if !ok {
				return nil, fmt.Errorf("structure: field %q uses unknown formatter %q", field.Name, field.Formatter)
			}
			formatted, err := fn(ctx, list, out)
			if err != nil {
				return nil, fmt.Errorf("structure: format %q: %w", field.Name, err)
			}
			out[field.Name] = formatted
			continue
		}
		ids := make([]any, 0, len(list))
		for _, item := range list {
			if id, ok := item[IDKey]; ok && id != nil {
				ids = append(ids, id)
			}
		}
		out[field.Name] = ids
	}
	return out, nil
}

func groupMappings(group model.Field) []model.GroupField {
	if len(group.GroupFields) > 0 {
		return group.GroupFields
	}
	names := groupFieldNames(group)
	out := make([]model.GroupField, len(names))
	for i, name := range names {
		out[i] = model.GroupField{Name: name}
	}
	return out
}

func recordKey(mapping model.GroupField) string {
	if mapping.RecordKey != "" {
		return mapping.RecordKey
	}
	return mapping.Name
}

func wrapRefs(value any) any {
	list, ok := value.([]any)
	if !ok {
		return value
	}
	out := make([]any, 0, len(list))
	for _, id := range list {
		if _, isMap := id.(map[string]any); isMap {
			out = append(out, id)
			continue
		}
		out = append(out, map[string]any{IDKey: id})
	}
	return out
}

func unwrapRefs(value any) any {
	switch typed := value.(type) {
	case []any:
		out := make([]any, 0, len(typed))
		for _, entry := range typed {
			if item, ok := entry.(map[string]any); ok {
				if id, ok := item[IDKey]; ok {
					out = append(out, id)
				}
				continue
			}
			out = append(out, entry)
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			if id, ok := item[IDKey]; ok {
				out = append(out, id)
			}
		}
		return out
	default:
		return value
	}
}
