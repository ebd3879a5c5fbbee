package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-formdesk/pkg/datefmt"
	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/structure"
	"github.com/goliatone/go-formdesk/pkg/widgets"
)

// Transformer rewrites the save payload. Transformers run strictly in
// sequence, each on the output of the previous one.
type Transformer interface {
	Transform(ctx context.Context, data model.Values) (model.Values, error)
}

// TransformerFunc adapts plain functions to the Transformer interface.
type TransformerFunc func(ctx context.Context, data model.Values) (model.Values, error)

// Transform executes the wrapped function when non-nil.
func (fn TransformerFunc) Transform(ctx context.Context, data model.Values) (model.Values, error) {
	if fn == nil {
		return data, nil
	}
	return fn(ctx, data)
}

// DateTransformer formats date fields with their declared format. dateRange
// fields with two keys are split into those keys and removed; others become
// a two element array of formatted strings.
func DateTransformer(fields []model.Field, loc *time.Location) Transformer {
	return TransformerFunc(func(_ context.Context, data model.Values) (model.Values, error) {
		for name, field := range slots(fields, data) {
			raw, present := data[name]
			if !present {
				continue
			}
			switch field.Type {
			case model.FieldTypeDate:
				formatted, err := datefmt.Format(raw, field.Format, loc)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				data[name] = formatted
			case model.FieldTypeDateRange:
				bounds := rangeBounds(raw)
				formatted := make([]any, 2)
				for i, bound := range bounds {
					value, err := datefmt.Format(bound, field.Format, loc)
					if err != nil {
						return nil, fmt.Errorf("%s: %w", name, err)
					}
					formatted[i] = value
				}
				if len(field.Keys) == 2 {
					delete(data, name)
					for i, key := range field.Keys {
						if formatted[i] != nil {
							data[key] = formatted[i]
						}
					}
					continue
				}
				data[name] = formatted
			}
		}
		return data, nil
	})
}

// PasswordTransformer drops untouched password fields (empty or still the
// mask) and bcrypt-hashes changed ones when the field asks for it.
func PasswordTransformer(fields []model.Field, cost int) Transformer {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return TransformerFunc(func(_ context.Context, data model.Values) (model.Values, error) {
		for name, field := range slots(fields, data) {
			if field.Type != model.FieldTypePassword {
				continue
			}
			raw, present := data[name]
			if !present {
				continue
			}
			secret, _ := raw.(string)
			if secret == "" || secret == model.PasswordMask {
				delete(data, name)
				continue
			}
			if !field.HashPassword {
				continue
			}
			hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
			if err != nil {
				return nil, fmt.Errorf("%s: hash password: %w", name, err)
			}
			data[name] = string(hashed)
		}
		return data, nil
	})
}

// SwitchTransformer coerces switch values to 0/1.
func SwitchTransformer(fields []model.Field) Transformer {
	return TransformerFunc(func(_ context.Context, data model.Values) (model.Values, error) {
		for name, field := range slots(fields, data) {
			if field.Type != model.FieldTypeSwitch {
				continue
			}
			if raw, present := data[name]; present {
				data[name] = widgets.SwitchValue(raw)
			}
		}
		return data, nil
	})
}

// StructureTransformer reassembles repeatable groups into their record lists
// and flattens structured lists into ids or formatter output.
func StructureTransformer(fields []model.Field, formatters *structure.Formatters) Transformer {
	groups := structure.Groups(fields)
	return TransformerFunc(func(ctx context.Context, data model.Values) (model.Values, error) {
		reassembled := structure.ReassembleGroups(data, groups)
		return structure.FlattenStructureLists(ctx, reassembled, fields, formatters)
	})
}

// DefaultStatus sets status to ENABLED when the payload carries none.
func DefaultStatus() Transformer {
	return TransformerFunc(func(_ context.Context, data model.Values) (model.Values, error) {
		if status, ok := data["status"]; !ok || status == nil || status == "" {
			data["status"] = model.StatusEnabled
		}
		return data, nil
	})
}

// slots maps every concrete payload key to its field, expanding group
// instances into their suffixed names.
func slots(fields []model.Field, data model.Values) map[string]model.Field {
	out := make(map[string]model.Field)
	for _, field := range fields {
		if !field.IsGroup {
			out[field.Name] = field
			continue
		}
		count := structure.InstanceCount(field, data)
		for idx := 0; idx < count; idx++ {
			for _, nested := range model.Flatten(field.Fields) {
				out[structure.SuffixedName(nested.Name, idx)] = nested
			}
		}
	}
	return out
}

func rangeBounds(raw any) []any {
	out := []any{nil, nil}
	switch typed := raw.(type) {
	case []any:
		copy(out, typed)
	case []string:
		for i := 0; i < len(typed) && i < 2; i++ {
			out[i] = typed[i]
		}
	}
	return out
}
