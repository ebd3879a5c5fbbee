package widgets

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-formdesk/pkg/datefmt"
	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/options"
	"github.com/goliatone/go-formdesk/pkg/render"
	"github.com/goliatone/go-formdesk/pkg/structure"
)

// Component names emitted by the built-in adapters.
const (
	ComponentInput         = "input"
	ComponentTextarea      = "textarea"
	ComponentPassword      = "password"
	ComponentSelect        = "select"
	ComponentDate          = "date"
	ComponentDateRange     = "dateRange"
	ComponentUpload        = "upload"
	ComponentSwitch        = "switch"
	ComponentTransfer      = "transfer"
	ComponentStructureList = "structureList"
	ComponentPanelItem     = "panelItem"
	ComponentNumberStepper = "numberStepper"
	ComponentInputGroup    = "inputGroup"
	ComponentDisplayImage  = "displayImage"
	ComponentDisplayText   = "displayText"
	ComponentGroup         = "group"
	ComponentGroupInstance = "groupInstance"
)

func (r *Registry) registerBuiltins() {
	text := Adapter{Component: ComponentInput, Default: emptyString, Props: textProps}
	r.adapters[model.FieldTypeInput] = text
	r.adapters[model.FieldTypeText] = text
	r.adapters[model.FieldTypeTextarea] = Adapter{Component: ComponentTextarea, Default: emptyString, Props: textProps}
	r.adapters[model.FieldTypePassword] = Adapter{Component: ComponentPassword, Default: emptyString, Props: textProps}

	r.adapters[model.FieldTypeSelect] = Adapter{
		Component: ComponentSelect,
		Default: func(field model.Field) any {
			if field.Mode == model.ModeMultiple {
				return []any{}
			}
			return nil
		},
		Props: selectProps,
	}
	r.adapters[model.FieldTypeDate] = Adapter{Component: ComponentDate, Props: dateProps}
	r.adapters[model.FieldTypeDateRange] = Adapter{
		Component: ComponentDateRange,
		Default:   func(model.Field) any { return []any{nil, nil} },
		Props:     dateRangeProps,
		Normalize: func(_ model.Field, value any) any { return rangeValue(value) },
	}
	r.adapters[model.FieldTypeUpload] = Adapter{Component: ComponentUpload, Default: emptyString, Props: uploadProps}
	r.adapters[model.FieldTypeSwitch] = Adapter{
		Component: ComponentSwitch,
		Default:   func(model.Field) any { return 0 },
		Props:     switchProps,
		Normalize: func(_ model.Field, value any) any { return SwitchValue(value) },
	}
	r.adapters[model.FieldTypeTransfer] = Adapter{
		Component: ComponentTransfer,
		Default:   func(model.Field) any { return []any{} },
		Props:     transferProps,
	}
	r.adapters[model.FieldTypeStructureList] = Adapter{
		Component: ComponentStructureList,
		Default:   func(model.Field) any { return []any{} },
		Props:     structureListProps,
	}
	r.adapters[model.FieldTypeNumberStepper] = Adapter{
		Component: ComponentNumberStepper,
		Default:   func(model.Field) any { return 0 },
		Normalize: func(_ model.Field, value any) any { return numberValue(value) },
	}
	r.adapters[model.FieldTypeInputGroup] = Adapter{Component: ComponentInputGroup}
	r.adapters[model.FieldTypeDisplayText] = Adapter{Component: ComponentDisplayText, Props: displayProps("content")}
	r.adapters[model.FieldTypeDisplayImage] = Adapter{Component: ComponentDisplayImage, Props: displayProps("src")}
}

func emptyString(model.Field) any { return "" }

func textProps(_ *Registry, field model.Field, _ any, _ Context) (map[string]any, error) {
	props := map[string]any{}
	if field.MaxLength > 0 {
		props["maxLength"] = field.MaxLength
	}
	if field.ShowCount {
		props["showCount"] = true
	}
	return props, nil
}

func selectProps(r *Registry, field model.Field, _ any, _ Context) (map[string]any, error) {
	list, err := r.options.Resolve(field.Options)
	if err != nil {
		return nil, err
	}
	mode := field.Mode
	if mode == "" {
		mode = model.ModeSingle
	}
	return map[string]any{
		"options": optionProps(list),
		"mode":    mode,
	}, nil
}

func dateProps(_ *Registry, field model.Field, _ any, _ Context) (map[string]any, error) {
	return map[string]any{"format": dateFormat(field)}, nil
}

func dateRangeProps(_ *Registry, field model.Field, value any, _ Context) (map[string]any, error) {
	props := map[string]any{
		"format": dateFormat(field),
		"value":  rangeValue(value),
	}
	if len(field.Keys) == 2 {
		props["keys"] = append([]string(nil), field.Keys...)
	}
	return props, nil
}

func uploadProps(_ *Registry, field model.Field, value any, _ Context) (map[string]any, error) {
	props := map[string]any{}
	if field.Accept != "" {
		props["accept"] = field.Accept
	}
	if url, ok := value.(string); ok && url != "" {
		props["url"] = url
	}
	return props, nil
}

func switchProps(_ *Registry, field model.Field, value any, _ Context) (map[string]any, error) {
	checked := SwitchValue(value) == 1
	props := map[string]any{
		"checked": checked,
		"value":   SwitchValue(value),
	}
	if field.Preview != nil {
		content := field.Preview.Unchecked
		if checked {
			content = field.Preview.Checked
		}
		props["preview"] = map[string]any{"type": field.Preview.Type, "content": content}
	}
	return props, nil
}

func transferProps(r *Registry, field model.Field, value any, _ Context) (map[string]any, error) {
	list, err := r.options.Resolve(field.Options)
	if err != nil {
		return nil, err
	}
	selected := listValue(value)
	var source, target []model.Option
	for _, opt := range list {
		if containsValue(selected, opt.Value) {
			target = append(target, opt)
			continue
		}
		source = append(source, opt)
	}
	return map[string]any{
		"targetKeys": selected,
		"source":     optionProps(source),
		"target":     optionProps(target),
	}, nil
}

func structureListProps(_ *Registry, field model.Field, value any, rc Context) (map[string]any, error) {
	items := structure.ItemList(value)
	panels := make([]map[string]any, 0, len(items))
	for idx, item := range items {
		title, _ := item["title"].(string)
		panels = append(panels, map[string]any{
			"id":    structure.Item(item).ID(),
			"index": idx,
			"title": title,
		})
	}
	expanded := false
	if rc.Expanded != nil {
		expanded = rc.Expanded(field.Name)
	}
	props := map[string]any{
		"items":    panels,
		"count":    len(items),
		"expanded": expanded,
	}
	if field.Empty != nil {
		props["empty"] = map[string]any{"title": field.Empty.Title, "description": field.Empty.Description}
	}
	return props, nil
}

func displayProps(key string) PropsFunc {
	return func(r *Registry, field model.Field, _ any, rc Context) (map[string]any, error) {
		content, err := r.Content(field, rc.Values)
		if err != nil {
			return nil, err
		}
		return map[string]any{key: content, "readOnly": true}, nil
	}
}

// renderGroup emits one groupInstance child per instance, naming the nested
// fields with the instance suffix. A group always shows one instance.
func (r *Registry) renderGroup(field model.Field, rc Context) (render.Node, error) {
	count := structure.InstanceCount(field, rc.Values)
	if count == 0 {
		count = 1
	}
	node := render.Node{
		Component: ComponentGroup,
		Field:     field.Name,
		Label:     field.DisplayLabel(),
		Props:     map[string]any{"name": field.Name, "count": count},
	}
	for idx := 0; idx < count; idx++ {
		nested := make([]model.Field, 0, len(field.Fields))
		for _, child := range model.Flatten(field.Fields) {
			child.Name = structure.SuffixedName(child.Name, idx)
			nested = append(nested, child)
		}
		children, err := r.RenderAll(nested, rc)
		if err != nil {
			return render.Node{}, err
		}
		node.Children = append(node.Children, render.Node{
			Component: ComponentGroupInstance,
			Field:     field.Name,
			Props:     map[string]any{"index": idx},
			Children:  children,
		})
	}
	return node, nil
}

func optionProps(list []model.Option) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, opt := range list {
		out = append(out, map[string]any{
			"label":    opt.Label,
			"value":    opt.Value,
			"disabled": opt.Disabled,
		})
	}
	return out
}

func dateFormat(field model.Field) string {
	if f := strings.TrimSpace(field.Format); f != "" {
		return f
	}
	return datefmt.Default
}

// SwitchValue coerces a switch UI value into the runtime 0/1 shape.
func SwitchValue(value any) int {
	switch typed := value.(type) {
	case bool:
		if typed {
			return 1
		}
	case int:
		if typed != 0 {
			return 1
		}
	case int64:
		if typed != 0 {
			return 1
		}
	case float64:
		if typed != 0 {
			return 1
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "1", "true", "on", "yes":
			return 1
		}
	}
	return 0
}

func rangeValue(value any) []any {
	switch typed := value.(type) {
	case []any:
		out := []any{nil, nil}
		copy(out, typed)
		return out
	case []string:
		out := []any{nil, nil}
		for i := 0; i < len(typed) && i < 2; i++ {
			out[i] = typed[i]
		}
		return out
	default:
		return []any{nil, nil}
	}
}

func listValue(value any) []any {
	switch typed := value.(type) {
	case []any:
		return append([]any(nil), typed...)
	case []string:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out
	case nil:
		return []any{}
	default:
		return []any{typed}
	}
}

func containsValue(list []any, value any) bool {
	for _, candidate := range list {
		if options.Equal(candidate, value) {
			return true
		}
	}
	return false
}

func numberValue(value any) any {
	switch typed := value.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return nil
		}
		if i, err := strconv.Atoi(trimmed); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
		return typed
	default:
		return value
	}
}
