package components

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formdesk/pkg/render"
	"github.com/goliatone/go-formdesk/pkg/widgets"
)

const templatePrefix = "templates/components/"

// Stylesheet is the default stylesheet path every component depends on.
const Stylesheet = "/assets/formdesk.css"

// NewDefaultRegistry constructs a registry covering every component the
// widget registry emits.
func NewDefaultRegistry() *Registry {
	registry := New()
	base := []string{Stylesheet}

	for component, inputType := range map[string]string{
		widgets.ComponentInput:         "text",
		widgets.ComponentPassword:      "password",
		widgets.ComponentDate:          "date",
		widgets.ComponentNumberStepper: "number",
	} {
		registry.MustRegister(component, Descriptor{
			Renderer:    templateRenderer(templatePrefix+"input", inputPayload(inputType)),
			Stylesheets: base,
		})
	}
	registry.MustRegister(widgets.ComponentTextarea, Descriptor{
		Renderer:    templateRenderer(templatePrefix+"textarea", fieldPayload),
		Stylesheets: base,
	})
	registry.MustRegister(widgets.ComponentSelect, Descriptor{
		Renderer:    templateRenderer(templatePrefix+"select", selectPayload),
		Stylesheets: base,
	})
	registry.MustRegister(widgets.ComponentTransfer, Descriptor{
		Renderer:    templateRenderer(templatePrefix+"select", transferPayload),
		Stylesheets: base,
	})
	registry.MustRegister(widgets.ComponentDateRange, Descriptor{
		Renderer:    templateRenderer(templatePrefix+"date_range", dateRangePayload),
		Stylesheets: base,
	})
	registry.MustRegister(widgets.ComponentUpload, Descriptor{
		Renderer:    templateRenderer(templatePrefix+"upload", fieldPayload),
		Stylesheets: base,
	})
	registry.MustRegister(widgets.ComponentSwitch, Descriptor{
		Renderer:    templateRenderer(templatePrefix+"switch", switchPayload),
		Stylesheets: base,
	})
	registry.MustRegister(widgets.ComponentStructureList, Descriptor{
		Renderer:    templateRenderer(templatePrefix+"structure_list", structureListPayload),
		Stylesheets: base,
		Scripts:     []Script{{Src: "/assets/formdesk.js", Defer: true}},
	})
	for _, component := range []string{widgets.ComponentGroup, widgets.ComponentGroupInstance, widgets.ComponentInputGroup} {
		registry.MustRegister(component, Descriptor{
			Renderer:    templateRenderer(templatePrefix+"fieldset", fieldPayload),
			Stylesheets: base,
		})
	}
	registry.MustRegister(widgets.ComponentDisplayText, Descriptor{
		Renderer:    templateRenderer(templatePrefix+"display_text", displayTextPayload),
		Stylesheets: base,
	})
	registry.MustRegister(widgets.ComponentDisplayImage, Descriptor{
		Renderer:    templateRenderer(templatePrefix+"display_image", fieldPayload),
		Stylesheets: base,
	})

	return registry
}

type payloadFunc func(node render.Node, data ComponentData) map[string]any

func templateRenderer(templateName string, payload payloadFunc) Renderer {
	return func(buf *bytes.Buffer, node render.Node, data ComponentData) error {
		if data.Template == nil {
			return fmt.Errorf("components: template renderer not configured for %q", templateName)
		}
		rendered, err := data.Template.RenderTemplate(templateName, payload(node, data))
		if err != nil {
			return fmt.Errorf("components: render template %q: %w", templateName, err)
		}
		buf.WriteString(rendered)
		return nil
	}
}

func fieldPayload(node render.Node, data ComponentData) map[string]any {
	name := node.Field
	if raw, ok := node.Prop("name").(string); ok && raw != "" {
		name = raw
	}
	payload := map[string]any{
		"component":   node.Component,
		"id":          "fd-" + strings.NewReplacer(".", "-", "[", "-", "]", "").Replace(name),
		"name":        name,
		"label":       node.Label,
		"value":       Display(node.Prop("value")),
		"required":    truthy(node.Prop("required")),
		"disabled":    truthy(node.Prop("disabled")) || truthy(node.Prop("readOnly")),
		"placeholder": Display(node.Prop("placeholder")),
		"errors":      stringList(node.Prop("errors")),
		"children":    data.Children,
		"unknown":     Display(node.Prop("unknownType")),
	}
	for _, key := range []string{"maxLength", "accept", "url", "src", "format", "count"} {
		if value := node.Prop(key); value != nil {
			payload[key] = Display(value)
		}
	}
	payload["showCount"] = truthy(node.Prop("showCount"))
	return payload
}

func inputPayload(inputType string) payloadFunc {
	return func(node render.Node, data ComponentData) map[string]any {
		payload := fieldPayload(node, data)
		payload["type"] = inputType
		return payload
	}
}

func selectPayload(node render.Node, data ComponentData) map[string]any {
	payload := fieldPayload(node, data)
	multiple := node.Prop("mode") == "multiple"
	selected := map[string]bool{}
	if multiple {
		for _, v := range anyList(node.Prop("value")) {
			selected[Display(v)] = true
		}
	} else if v := node.Prop("value"); v != nil {
		selected[Display(v)] = true
	}
	payload["multiple"] = multiple
	payload["options"] = optionList(node.Prop("options"), selected)
	return payload
}

// transferPayload renders the transfer as a multiple select whose selected
// entries are the target keys.
func transferPayload(node render.Node, data ComponentData) map[string]any {
	payload := fieldPayload(node, data)
	selected := map[string]bool{}
	for _, v := range anyList(node.Prop("targetKeys")) {
		selected[Display(v)] = true
	}
	options := optionList(node.Prop("source"), selected)
	options = append(options, optionList(node.Prop("target"), selected)...)
	payload["multiple"] = true
	payload["options"] = options
	return payload
}

func dateRangePayload(node render.Node, data ComponentData) map[string]any {
	payload := fieldPayload(node, data)
	name, _ := payload["name"].(string)
	startName, endName := name+"[0]", name+"[1]"
	if keys, ok := node.Prop("keys").([]string); ok && len(keys) == 2 {
		startName, endName = keys[0], keys[1]
	}
	bounds := anyList(node.Prop("value"))
	var start, end string
	if len(bounds) > 0 {
		start = Display(bounds[0])
	}
	if len(bounds) > 1 {
		end = Display(bounds[1])
	}
	payload["start_name"] = startName
	payload["end_name"] = endName
	payload["start"] = start
	payload["end"] = end
	return payload
}

func switchPayload(node render.Node, data ComponentData) map[string]any {
	payload := fieldPayload(node, data)
	payload["checked"] = truthy(node.Prop("checked"))
	if preview, ok := node.Prop("preview").(map[string]any); ok {
		content := Display(preview["content"])
		kind := Display(preview["type"])
		if kind != "image" && data.Sanitize != nil {
			content = data.Sanitize(content)
		}
		payload["preview_type"] = kind
		payload["preview"] = content
	}
	return payload
}

func structureListPayload(node render.Node, data ComponentData) map[string]any {
	payload := fieldPayload(node, data)
	payload["expanded"] = truthy(node.Prop("expanded"))
	var items []map[string]any
	if raw, ok := node.Prop("items").([]map[string]any); ok {
		for _, item := range raw {
			title := Display(item["title"])
			if title == "" {
				title = fmt.Sprintf("%s %s", node.Label, Display(intValue(item["index"])+1))
			}
			items = append(items, map[string]any{"id": Display(item["id"]), "title": title})
		}
	}
	payload["items"] = items
	payload["state"] = listState(node.Prop("value"))
	if empty, ok := node.Prop("empty").(map[string]any); ok && len(items) == 0 {
		payload["empty_title"] = Display(empty["title"])
		payload["empty_description"] = Display(empty["description"])
	}
	return payload
}

// listState encodes the panel items posted back in the hidden list input.
func listState(value any) string {
	if value == nil {
		return "[]"
	}
	encoded, err := json.Marshal(value)
	if err != nil || string(encoded) == "null" {
		return "[]"
	}
	return string(encoded)
}

func displayTextPayload(node render.Node, data ComponentData) map[string]any {
	payload := fieldPayload(node, data)
	content := Display(node.Prop("content"))
	if data.Sanitize != nil {
		content = data.Sanitize(content)
	}
	payload["content"] = content
	return payload
}

func optionList(raw any, selected map[string]bool) []map[string]any {
	list, _ := raw.([]map[string]any)
	out := make([]map[string]any, 0, len(list))
	for _, opt := range list {
		value := Display(opt["value"])
		out = append(out, map[string]any{
			"label":    Display(opt["label"]),
			"value":    value,
			"disabled": truthy(opt["disabled"]),
			"selected": selected[value],
		})
	}
	return out
}

// Display formats a runtime value for an HTML attribute or text node.
// Whole floats drop their fraction; lists are comma joined.
func Display(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(typed)
	case []any:
		parts := make([]string, 0, len(typed))
		for _, v := range typed {
			parts = append(parts, Display(v))
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(typed, ",")
	default:
		return fmt.Sprint(typed)
	}
}

func truthy(value any) bool {
	b, _ := value.(bool)
	return b
}

func intValue(value any) int {
	switch typed := value.(type) {
	case int:
		return typed
	case float64:
		return int(typed)
	}
	return 0
}

func stringList(value any) []string {
	switch typed := value.(type) {
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, v := range typed {
			out = append(out, Display(v))
		}
		return out
	}
	return nil
}

func anyList(value any) []any {
	switch typed := value.(type) {
	case []any:
		return typed
	case []string:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out
	}
	return nil
}
