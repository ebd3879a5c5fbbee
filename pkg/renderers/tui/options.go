package tui

import (
	"context"
	"io"

	"github.com/goliatone/go-formdesk/pkg/client"
	"github.com/goliatone/go-formdesk/pkg/model"
)

// OutputFormat controls how collected values are serialized by Render.
type OutputFormat string

const (
	// OutputFormatJSON emits application/json payloads.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatFormURLEncoded emits application/x-www-form-urlencoded payloads.
	OutputFormatFormURLEncoded OutputFormat = "form"
	// OutputFormatPrettyText emits a human-friendly text summary.
	OutputFormatPrettyText OutputFormat = "pretty"
)

// CheckFunc validates one answer. A non-nil error re-prompts the field with
// the error text.
type CheckFunc func(ctx context.Context, name string, value any, values model.Values) error

// Option configures the TUI renderer.
type Option func(*Renderer)

// WithPromptDriver overrides the prompt driver used by the renderer.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Renderer) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithOutputFormat selects the output serialization format.
func WithOutputFormat(format OutputFormat) Option {
	return func(r *Renderer) {
		if format != "" {
			r.outputFormat = format
		}
	}
}

// WithCheck installs per answer validation.
func WithCheck(fn CheckFunc) Option {
	return func(r *Renderer) {
		r.check = fn
	}
}

// UploadFunc uploads the local file answered for the upload field name and
// returns the URL stored as its value. formdesk.Editor.Upload matches it.
type UploadFunc func(ctx context.Context, name string, file client.File) (string, error)

// WithUpload uploads local files named in upload fields.
func WithUpload(fn UploadFunc) Option {
	return func(r *Renderer) {
		r.upload = fn
	}
}

// WithInfoWriter sets where the default driver prints notices.
func WithInfoWriter(w io.Writer) Option {
	return func(r *Renderer) {
		if w != nil {
			r.info = w
		}
	}
}
