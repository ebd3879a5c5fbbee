package openapi

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formdesk/pkg/model"
)

// Violation is one unsupported or malformed extension.
type Violation struct {
	Location string
	Message  string
}

func (v Violation) String() string {
	return v.Location + " -> " + v.Message
}

var overrideKinds = map[string]string{
	"skip":        "bool",
	"hidden":      "bool",
	"type":        "string",
	"label":       "string",
	"placeholder": "string",
	"options":     "string",
	"mode":        "string",
	"visibleWhen": "string",
}

// OverrideKeys returns the keys accepted inside x-formdesk, sorted.
func OverrideKeys() []string {
	keys := make([]string, 0, len(overrideKinds))
	for key := range overrideKinds {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// LintExtensions reports x-formdesk extensions the importer would ignore or
// misread, across the request bodies of every operation. Violations come
// back sorted by location.
func LintExtensions(ctx context.Context, raw []byte, options ...Option) ([]Violation, error) {
	doc, err := loadDocument(ctx, raw, options)
	if err != nil {
		return nil, err
	}
	var out []Violation
	if doc.Paths != nil {
		for path, item := range doc.Paths.Map() {
			if item == nil {
				continue
			}
			for method, op := range item.Operations() {
				if op == nil || op.RequestBody == nil {
					continue
				}
				id := strings.TrimSpace(op.OperationID)
				if id == "" {
					id = strings.ToLower(method) + ":" + path
				}
				visited := map[*openapi3.Schema]bool{}
				out = append(out, lintSchema([]string{"operation", id, "requestBody"}, requestSchema(op.RequestBody), visited)...)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location == out[j].Location {
			return out[i].Message < out[j].Message
		}
		return out[i].Location < out[j].Location
	})
	return out, nil
}

func lintSchema(path []string, schema *openapi3.Schema, visited map[*openapi3.Schema]bool) []Violation {
	if schema == nil || visited[schema] {
		return nil
	}
	visited[schema] = true

	var out []Violation
	if raw, ok := schema.Extensions[OrderExtensionKey]; ok {
		out = append(out, lintOrder(path, raw)...)
	}
	if raw, ok := schema.Extensions[ExtensionKey]; ok {
		out = append(out, lintOverrides(path, raw)...)
	}
	for key := range schema.Extensions {
		if strings.HasPrefix(key, ExtensionKey+"-") && key != OrderExtensionKey {
			out = append(out, Violation{Location: location(path), Message: fmt.Sprintf("unsupported extension %q", key)})
		}
	}

	for _, ref := range schema.AllOf {
		if ref != nil {
			out = append(out, lintSchema(path, ref.Value, visited)...)
		}
	}
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if ref := schema.Properties[name]; ref != nil {
			out = append(out, lintSchema(appendPath(path, "properties."+name), ref.Value, visited)...)
		}
	}
	if schema.Items != nil {
		out = append(out, lintSchema(appendPath(path, "items"), schema.Items.Value, visited)...)
	}
	return out
}

func lintOrder(path []string, raw any) []Violation {
	list, ok := raw.([]any)
	if !ok {
		return []Violation{{Location: location(path), Message: fmt.Sprintf("%s must be a list of property names, found %T", OrderExtensionKey, raw)}}
	}
	var out []Violation
	for i, entry := range list {
		if _, ok := entry.(string); !ok {
			out = append(out, Violation{Location: location(path), Message: fmt.Sprintf("%s[%d] must be a string, found %T", OrderExtensionKey, i, entry)})
		}
	}
	return out
}

func lintOverrides(path []string, raw any) []Violation {
	ext, ok := raw.(map[string]any)
	if !ok {
		return []Violation{{Location: location(path), Message: fmt.Sprintf("%s must be an object, found %T", ExtensionKey, raw)}}
	}
	keys := make([]string, 0, len(ext))
	for key := range ext {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []Violation
	for _, key := range keys {
		at := location(appendPath(path, key))
		kind, known := overrideKinds[key]
		if !known {
			out = append(out, Violation{Location: at, Message: fmt.Sprintf("unsupported key %q (supported: %s)", key, strings.Join(OverrideKeys(), ", "))})
			continue
		}
		value := ext[key]
		switch kind {
		case "bool":
			if _, ok := value.(bool); !ok {
				out = append(out, Violation{Location: at, Message: fmt.Sprintf("value for %q must be a boolean (got %T)", key, value)})
			}
		case "string":
			text, ok := value.(string)
			if !ok {
				out = append(out, Violation{Location: at, Message: fmt.Sprintf("value for %q must be a string (got %T)", key, value)})
				continue
			}
			if key == "type" && !model.ParseFieldType(text).Known() {
				out = append(out, Violation{Location: at, Message: fmt.Sprintf("unknown field type %q", text)})
			}
			if key == "mode" && text != model.ModeSingle && text != model.ModeMultiple {
				out = append(out, Violation{Location: at, Message: fmt.Sprintf("unknown select mode %q", text)})
			}
		}
	}
	return out
}

func appendPath(path []string, segment string) []string {
	next := append([]string(nil), path...)
	return append(next, segment)
}

func location(path []string) string {
	return strings.Join(path, " > ")
}
