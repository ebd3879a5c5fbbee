package gotemplate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-formdesk/pkg/render/template"
)

// Option configures an Engine.
type Option func(*Engine)

// WithFS loads templates from files.
func WithFS(files fs.FS) Option {
	return func(e *Engine) { e.files = files }
}

// WithExtension sets the suffix appended to template names that lack it.
// The default is ".tpl".
func WithExtension(ext string) Option {
	return func(e *Engine) {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		e.ext = ext
	}
}

// Engine renders pongo2 templates from an fs.FS. Parsed templates are cached
// by path.
type Engine struct {
	files fs.FS
	ext   string
	set   *pongo2.TemplateSet

	mu     sync.Mutex
	parsed map[string]*pongo2.Template
}

var _ template.TemplateRenderer = (*Engine)(nil)

// New builds an engine. WithFS is required.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{ext: ".tpl", parsed: make(map[string]*pongo2.Template)}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.files == nil {
		return nil, errors.New("gotemplate: no template files configured")
	}
	e.set = pongo2.NewSet("formdesk", pongo2.NewFSLoader(e.files))
	return e, nil
}

// RenderTemplate executes the template at name. Struct values in data reach
// the template through their JSON field names.
func (e *Engine) RenderTemplate(name string, data any, out ...io.Writer) (string, error) {
	path := name
	if !strings.HasSuffix(path, e.ext) {
		path += e.ext
	}
	tmpl, err := e.lookup(path)
	if err != nil {
		return "", err
	}
	ctx, err := contextOf(data)
	if err != nil {
		return "", fmt.Errorf("gotemplate: %s data: %w", path, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(ctx, &buf); err != nil {
		return "", fmt.Errorf("gotemplate: execute %s: %w", path, err)
	}
	rendered := buf.String()
	for _, w := range out {
		if _, err := io.WriteString(w, rendered); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

func (e *Engine) lookup(path string) (*pongo2.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if tmpl, ok := e.parsed[path]; ok {
		return tmpl, nil
	}
	tmpl, err := e.set.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("gotemplate: load %s: %w", path, err)
	}
	e.parsed[path] = tmpl
	return tmpl, nil
}

func contextOf(data any) (pongo2.Context, error) {
	if data == nil {
		return pongo2.Context{}, nil
	}
	m, ok := data.(map[string]any)
	if !ok {
		decoded, err := plain(data)
		if err != nil {
			return nil, err
		}
		if m, ok = decoded.(map[string]any); !ok {
			return nil, fmt.Errorf("expected an object, got %T", data)
		}
	}
	ctx := make(pongo2.Context, len(m))
	for key, value := range m {
		converted, err := plain(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		ctx[key] = converted
	}
	return ctx, nil
}

// plain rewrites value into maps, slices and scalars. Maps and slices are
// walked; anything else goes through its JSON encoding.
func plain(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, int, int64, float64:
		return v, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			converted, err := plain(item)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for idx, item := range v {
			converted, err := plain(item)
			if err != nil {
				return nil, err
			}
			out[idx] = converted
		}
		return out, nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
