package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formdesk/pkg/client"
	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/render"
	"github.com/goliatone/go-formdesk/pkg/structure"
	"github.com/goliatone/go-formdesk/pkg/widgets"
)

// Name is the registry name of the renderer.
const Name = "tui"

const noneOption = "(none)"

// Renderer fills an editor view through terminal prompts. Render returns the
// collected values serialized in the configured format.
type Renderer struct {
	driver       PromptDriver
	outputFormat OutputFormat
	check        CheckFunc
	upload       UploadFunc
	info         io.Writer
	strip        *bluemonday.Policy
	newID        structure.IDGenerator
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs a TUI renderer with defaults (survey driver, JSON output).
func New(options ...Option) *Renderer {
	r := &Renderer{
		outputFormat: OutputFormatJSON,
		info:         os.Stdout,
		strip:        bluemonday.StrictPolicy(),
		newID:        structure.UUIDGenerator(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.driver == nil {
		r.driver = NewSurveyDriver(r.info)
	}
	return r
}

// Name reports the renderer identifier.
func (r *Renderer) Name() string {
	return Name
}

// ContentType reports the serialization format used by Render.
func (r *Renderer) ContentType() string {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return "application/x-www-form-urlencoded"
	case OutputFormatPrettyText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Render prompts for every field of the view and serializes the answers.
func (r *Renderer) Render(ctx context.Context, view render.View, opts render.RenderOptions) ([]byte, error) {
	values, err := r.Fill(ctx, view, opts)
	if err != nil {
		return nil, err
	}
	return r.serialize(values)
}

// Fill prompts for every field of the view in tree order and returns the
// answers keyed by field name. Current node values are offered as defaults.
func (r *Renderer) Fill(ctx context.Context, view render.View, opts render.RenderOptions) (model.Values, error) {
	if ctx == nil {
		return nil, errors.New("tui: context is required")
	}
	if r.driver == nil {
		return nil, errors.New("tui: prompt driver is nil")
	}
	if view.Title != "" {
		if err := r.driver.Info(ctx, view.Title); err != nil {
			return nil, err
		}
	}
	for _, message := range opts.FormErrors {
		if err := r.driver.Info(ctx, "! "+message); err != nil {
			return nil, err
		}
	}

	values := model.Values{}
	for _, node := range view.Nodes {
		if err := r.fillNode(ctx, node, values, opts.Errors); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func (r *Renderer) fillNode(ctx context.Context, node render.Node, values model.Values, errs map[string][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, _ := node.Prop("name").(string)
	if name == "" {
		name = node.Field
	}
	label := node.Label
	if label == "" {
		label = name
	}
	if disabled, _ := node.Prop("disabled").(bool); disabled {
		if v := node.Prop("value"); v != nil {
			values[name] = v
		}
		return nil
	}
	for _, message := range append(stringList(node.Prop("errors")), errs[name]...) {
		if err := r.driver.Info(ctx, fmt.Sprintf("! %s: %s", label, message)); err != nil {
			return err
		}
	}

	switch node.Component {
	case widgets.ComponentGroup, widgets.ComponentGroupInstance, widgets.ComponentInputGroup:
		if node.Component == widgets.ComponentGroup && label != "" {
			if err := r.driver.Info(ctx, "== "+label); err != nil {
				return err
			}
		}
		for _, child := range node.Children {
			if err := r.fillNode(ctx, child, values, errs); err != nil {
				return err
			}
		}
		return nil
	case widgets.ComponentDisplayText:
		content := r.strip.Sanitize(fmt.Sprint(node.Prop("content")))
		return r.driver.Info(ctx, fmt.Sprintf("%s: %s", label, content))
	case widgets.ComponentDisplayImage:
		src, _ := node.Prop("src").(string)
		return r.driver.Info(ctx, fmt.Sprintf("%s: %s", label, src))
	}

	return r.ask(ctx, name, values, func() (any, error) {
		return r.prompt(ctx, name, node, label)
	})
}

// ask repeats prompt until the answer passes the check.
func (r *Renderer) ask(ctx context.Context, name string, values model.Values, prompt func() (any, error)) error {
	for {
		answer, err := prompt()
		if err != nil {
			return err
		}
		if r.check != nil {
			if err := r.check(ctx, name, answer, values); err != nil {
				if infoErr := r.driver.Info(ctx, "Invalid: "+err.Error()); infoErr != nil {
					return infoErr
				}
				continue
			}
		}
		values[name] = answer
		return nil
	}
}

func (r *Renderer) prompt(ctx context.Context, name string, node render.Node, label string) (any, error) {
	current := node.Prop("value")
	required, _ := node.Prop("required").(bool)
	placeholder, _ := node.Prop("placeholder").(string)

	switch node.Component {
	case widgets.ComponentPassword:
		answer, err := r.driver.Password(ctx, InputConfig{Message: label, Help: placeholder})
		if err != nil {
			return nil, err
		}
		if answer == "" {
			return current, nil
		}
		return answer, nil
	case widgets.ComponentTextarea:
		return r.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: text(current), Help: placeholder})
	case widgets.ComponentNumberStepper:
		return r.promptNumber(ctx, label, current)
	case widgets.ComponentSwitch:
		checked, err := r.driver.Confirm(ctx, ConfirmConfig{Message: label, Default: widgets.SwitchValue(current) == 1})
		if err != nil {
			return nil, err
		}
		if checked {
			return 1, nil
		}
		return 0, nil
	case widgets.ComponentSelect:
		options := optionList(node.Prop("options"))
		if node.Prop("mode") == model.ModeMultiple {
			return r.promptMulti(ctx, label, options, anyList(current))
		}
		return r.promptSelect(ctx, label, options, current, required)
	case widgets.ComponentTransfer:
		options := append(optionList(node.Prop("source")), optionList(node.Prop("target"))...)
		return r.promptMulti(ctx, label, options, anyList(node.Prop("targetKeys")))
	case widgets.ComponentDateRange:
		bounds := anyList(current)
		for len(bounds) < 2 {
			bounds = append(bounds, nil)
		}
		start, err := r.driver.Input(ctx, InputConfig{Message: label + " (start)", Default: text(bounds[0])})
		if err != nil {
			return nil, err
		}
		end, err := r.driver.Input(ctx, InputConfig{Message: label + " (end)", Default: text(bounds[1])})
		if err != nil {
			return nil, err
		}
		return []any{emptyNil(start), emptyNil(end)}, nil
	case widgets.ComponentUpload:
		return r.promptUpload(ctx, name, label, current)
	case widgets.ComponentStructureList:
		return r.promptList(ctx, label, current)
	default:
		return r.driver.Input(ctx, InputConfig{Message: label, Default: text(current), Help: placeholder})
	}
}

func (r *Renderer) promptNumber(ctx context.Context, label string, current any) (any, error) {
	for {
		answer, err := r.driver.Input(ctx, InputConfig{Message: label, Default: text(current)})
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(answer)
		if trimmed == "" {
			return 0, nil
		}
		if i, err := strconv.Atoi(trimmed); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f, nil
		}
		if err := r.driver.Info(ctx, fmt.Sprintf("Invalid: %s must be a number", label)); err != nil {
			return nil, err
		}
	}
}

func (r *Renderer) promptSelect(ctx context.Context, label string, options []model.Option, current any, required bool) (any, error) {
	labels := make([]string, 0, len(options)+1)
	offset := 0
	if !required {
		labels = append(labels, noneOption)
		offset = 1
	}
	defaultIndex := 0
	for i, opt := range options {
		labels = append(labels, opt.Label)
		if current != nil && text(opt.Value) == text(current) {
			defaultIndex = i + offset
		}
	}
	if len(options) == 0 {
		return current, r.driver.Info(ctx, fmt.Sprintf("%s: no options available", label))
	}
	idx, err := r.driver.Select(ctx, SelectConfig{Message: label, Options: labels, DefaultIndex: defaultIndex})
	if err != nil {
		return nil, err
	}
	idx -= offset
	if idx < 0 || idx >= len(options) {
		return nil, nil
	}
	return options[idx].Value, nil
}

func (r *Renderer) promptMulti(ctx context.Context, label string, options []model.Option, current []any) (any, error) {
	labels := make([]string, len(options))
	var defaults []int
	for i, opt := range options {
		labels[i] = opt.Label
		for _, v := range current {
			if text(v) == text(opt.Value) {
				defaults = append(defaults, i)
				break
			}
		}
	}
	indices, err := r.driver.MultiSelect(ctx, SelectConfig{Message: label, Options: labels, Defaults: defaults})
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(options) {
			out = append(out, options[idx].Value)
		}
	}
	return out, nil
}

// promptUpload keeps URLs as typed and uploads local paths.
func (r *Renderer) promptUpload(ctx context.Context, name, label string, current any) (any, error) {
	answer, err := r.driver.Input(ctx, InputConfig{Message: label, Default: text(current), Help: "file path or URL"})
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" || strings.HasPrefix(answer, "http://") || strings.HasPrefix(answer, "https://") {
		return answer, nil
	}
	if r.upload == nil {
		return nil, ErrNoUploader
	}
	file, err := os.Open(answer)
	if err != nil {
		return nil, fmt.Errorf("tui: open %s: %w", answer, err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("tui: stat %s: %w", answer, err)
	}
	uploaded, err := r.upload(ctx, name, client.File{
		Name:        filepath.Base(answer),
		ContentType: mime.TypeByExtension(filepath.Ext(answer)),
		Size:        info.Size(),
		Body:        file,
	})
	if err != nil {
		return nil, fmt.Errorf("tui: upload %s: %w", answer, err)
	}
	return uploaded, nil
}

// promptList offers to keep existing items and append new titled ones.
func (r *Renderer) promptList(ctx context.Context, label string, current any) (any, error) {
	items := structure.ItemList(current)
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	for {
		add, err := r.driver.Confirm(ctx, ConfirmConfig{Message: fmt.Sprintf("Add an item to %s? (%d so far)", label, len(out))})
		if err != nil {
			return nil, err
		}
		if !add {
			return out, nil
		}
		title, err := r.driver.Input(ctx, InputConfig{Message: label + " item title"})
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]any{"id": r.newID.NewID(), "title": title})
	}
}

func (r *Renderer) serialize(values model.Values) ([]byte, error) {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return []byte(flattenForm(values)), nil
	case OutputFormatPrettyText:
		return []byte(prettyPrint(values)), nil
	default:
		return json.Marshal(values)
	}
}

func optionList(raw any) []model.Option {
	list, _ := raw.([]map[string]any)
	out := make([]model.Option, 0, len(list))
	for _, opt := range list {
		label, _ := opt["label"].(string)
		disabled, _ := opt["disabled"].(bool)
		if disabled {
			continue
		}
		out = append(out, model.Option{Label: label, Value: opt["value"]})
	}
	return out
}

func text(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return fmt.Sprint(typed)
	}
}

func emptyNil(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
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

func stringList(value any) []string {
	list, _ := value.([]string)
	return list
}

func flattenForm(values model.Values) string {
	flattened := url.Values{}
	flatten("", map[string]any(values), flattened)
	return flattened.Encode()
}

func flatten(prefix string, value any, out url.Values) {
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			flatten(next, val, out)
		}
	case []any:
		for _, val := range v {
			out.Add(prefix+"[]", text(val))
		}
	default:
		out.Set(prefix, text(v))
	}
}

func prettyPrint(values model.Values) string {
	var b strings.Builder
	writePretty(&b, "", map[string]any(values))
	return b.String()
}

func writePretty(b *strings.Builder, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			writePretty(b, next, v[key])
		}
	case []any:
		for idx, val := range v {
			writePretty(b, fmt.Sprintf("%s[%d]", prefix, idx), val)
		}
	default:
		if prefix != "" {
			fmt.Fprintf(b, "%s=%s\n", prefix, text(v))
		}
	}
}
