package vanilla

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formdesk/pkg/render"
	rendertemplate "github.com/goliatone/go-formdesk/pkg/render/template"
	gotemplate "github.com/goliatone/go-formdesk/pkg/render/template/gotemplate"
	"github.com/goliatone/go-formdesk/pkg/renderers/vanilla/components"
	"github.com/goliatone/go-formdesk/pkg/table"
)

// Name is the registry name of the renderer.
const Name = "html"

type Option func(*config)

type config struct {
	templateFS       fs.FS
	templateRenderer rendertemplate.TemplateRenderer
	components       *components.Registry
	policy           *bluemonday.Policy
}

// WithTemplatesFS supplies an alternate template bundle via fs.FS.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templateFS = files
	}
}

// WithTemplatesDir loads templates from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		if path == "" {
			return
		}
		cfg.templateFS = os.DirFS(path)
	}
}

// WithTemplateRenderer injects a custom template renderer implementation.
func WithTemplateRenderer(renderer rendertemplate.TemplateRenderer) Option {
	return func(cfg *config) {
		if renderer != nil {
			cfg.templateRenderer = renderer
		}
	}
}

// WithComponents replaces the component registry. Use
// components.NewDefaultRegistry().Clone() to override single entries.
func WithComponents(registry *components.Registry) Option {
	return func(cfg *config) {
		if registry != nil {
			cfg.components = registry
		}
	}
}

// WithPolicy sets the sanitising policy applied to displayText content and
// switch previews. Defaults to bluemonday's UGC policy.
func WithPolicy(policy *bluemonday.Policy) Option {
	return func(cfg *config) {
		if policy != nil {
			cfg.policy = policy
		}
	}
}

// Renderer draws editor views and table pages as HTML.
type Renderer struct {
	templates  rendertemplate.TemplateRenderer
	components *components.Registry
	policy     *bluemonday.Policy
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs the renderer applying any provided options.
func New(options ...Option) (*Renderer, error) {
	cfg := config{templateFS: TemplatesFS()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	if cfg.templateFS == nil {
		cfg.templateFS = TemplatesFS()
	}
	if cfg.components == nil {
		cfg.components = components.NewDefaultRegistry()
	}
	if cfg.policy == nil {
		cfg.policy = bluemonday.UGCPolicy()
	}

	renderer := cfg.templateRenderer
	if renderer == nil {
		engine, err := gotemplate.New(
			gotemplate.WithFS(cfg.templateFS),
			gotemplate.WithExtension(".tpl"),
		)
		if err != nil {
			return nil, fmt.Errorf("vanilla renderer: configure template renderer: %w", err)
		}
		renderer = engine
	}

	return &Renderer{templates: renderer, components: cfg.components, policy: cfg.policy}, nil
}

func (r *Renderer) Name() string {
	return Name
}

func (r *Renderer) ContentType() string {
	return "text/html; charset=utf-8"
}

// Render draws the editor view. Errors from options are attached to the
// matching field nodes before rendering.
func (r *Renderer) Render(ctx context.Context, view render.View, options render.RenderOptions) ([]byte, error) {
	if r.templates == nil {
		return nil, fmt.Errorf("vanilla renderer: template renderer is nil")
	}

	var used []string
	fields := make([]string, 0, len(view.Nodes))
	for _, node := range view.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		html, err := r.renderNode(node, options.Errors, &used)
		if err != nil {
			return nil, err
		}
		fields = append(fields, html)
	}

	stylesheets, scripts := r.components.Assets(used)
	scriptData := make([]map[string]any, 0, len(scripts))
	for _, script := range scripts {
		scriptData = append(scriptData, map[string]any{
			"src":    script.Src,
			"inline": script.Inline,
			"defer":  script.Defer,
			"module": script.Module,
		})
	}
	actions := make([]map[string]any, 0, len(view.Actions))
	for _, action := range view.Actions {
		actions = append(actions, map[string]any{
			"key":          action.Key,
			"text":         action.Text,
			"disabled":     action.Disabled,
			"status_modal": action.StatusModal,
		})
	}

	result, err := r.templates.RenderTemplate("templates/form", map[string]any{
		"view":        map[string]any{"id": view.ID, "title": view.Title},
		"actions":     actions,
		"fields":      fields,
		"notice":      options.Notice,
		"form_errors": options.FormErrors,
		"stylesheets": stylesheets,
		"scripts":     scriptData,
	})
	if err != nil {
		return nil, fmt.Errorf("vanilla renderer: render template: %w", err)
	}
	return []byte(result), nil
}

func (r *Renderer) renderNode(node render.Node, errs map[string][]string, used *[]string) (string, error) {
	descriptor, ok := r.components.Descriptor(node.Component)
	if !ok {
		return "", fmt.Errorf("vanilla renderer: no component registered for %q", node.Component)
	}
	*used = append(*used, node.Component)

	var children bytes.Buffer
	for _, child := range node.Children {
		html, err := r.renderNode(child, errs, used)
		if err != nil {
			return "", err
		}
		children.WriteString(html)
	}

	if name, _ := node.Prop("name").(string); name != "" && len(errs[name]) > 0 {
		props := make(map[string]any, len(node.Props)+1)
		for key, value := range node.Props {
			props[key] = value
		}
		props["errors"] = render.MergeFormErrors(stringSlice(props["errors"]), errs[name]...)
		node.Props = props
	}

	var buf bytes.Buffer
	err := descriptor.Renderer(&buf, node, components.ComponentData{
		Template: r.templates,
		Children: children.String(),
		Sanitize: r.policy.Sanitize,
	})
	if err != nil {
		return "", fmt.Errorf("vanilla renderer: render %q: %w", node.Field, err)
	}
	return buf.String(), nil
}

// RenderTable draws one loaded table page. cfg identifies action columns.
func (r *Renderer) RenderTable(ctx context.Context, cfg table.Config, result table.Result) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	actionColumns := make(map[string]bool)
	for _, col := range cfg.Columns {
		if col.IsAction() {
			actionColumns[col.ID()] = true
		}
	}

	headers := make([]map[string]any, 0, len(result.Headers))
	for _, header := range result.Headers {
		headers = append(headers, map[string]any{
			"id":       header.Key,
			"title":    header.Title,
			"sortable": header.Sortable,
		})
	}
	rows := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		cells := make([]map[string]any, 0, len(row.Cells))
		for _, cell := range row.Cells {
			data := map[string]any{"text": cell.Text}
			if cell.Media != nil {
				data["media_type"] = cell.Media.Type
				data["media_url"] = cell.Media.URL
			}
			if actionColumns[cell.Column] {
				actions := make([]map[string]any, 0, len(row.Actions))
				for _, action := range row.Actions {
					actions = append(actions, map[string]any{"key": action.Key, "text": action.Text})
				}
				data["actions"] = actions
			}
			cells = append(cells, data)
		}
		rows = append(rows, map[string]any{"key": row.Key, "cells": cells})
	}

	out, err := r.templates.RenderTemplate("templates/table", map[string]any{
		"table":     map[string]any{"id": cfg.ID, "title": cfg.Title},
		"headers":   headers,
		"rows":      rows,
		"total":     strconv.Itoa(result.Total),
		"page":      strconv.Itoa(result.Page),
		"page_size": strconv.Itoa(result.PageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("vanilla renderer: render table: %w", err)
	}
	return []byte(out), nil
}

func stringSlice(value any) []string {
	list, _ := value.([]string)
	return list
}
