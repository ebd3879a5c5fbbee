package table

import (
	"strings"

	"github.com/goliatone/go-formdesk/pkg/model"
)

// FormatDuration renders numeric seconds as m:ss. Any other non-empty Format
// is a moment style date layout.
const FormatDuration = "duration"

// Media types understood by media cells.
const (
	MediaImage = "image"
	MediaVideo = "video"
	MediaAudio = "audio"
)

// Column describes one table column.
type Column struct {
	Title     string             `json:"title" yaml:"title"`
	DataIndex string             `json:"dataIndex" yaml:"dataIndex"`
	Key       string             `json:"key,omitempty" yaml:"key,omitempty"`
	Width     int                `json:"width,omitempty" yaml:"width,omitempty"`
	Sorter    bool               `json:"sorter,omitempty" yaml:"sorter,omitempty"`
	Options   model.OptionSource `json:"options,omitempty" yaml:"options,omitempty"`
	MediaType string             `json:"mediaType,omitempty" yaml:"mediaType,omitempty"`
	Format    string             `json:"format,omitempty" yaml:"format,omitempty"`
	// ActionButtons turns the column into the row action menu.
	ActionButtons []string `json:"actionButtons,omitempty" yaml:"actionButtons,omitempty"`
	// ShowWhen limits an action button to records matching its rule.
	ShowWhen map[string]ActionRule `json:"showWhen,omitempty" yaml:"showWhen,omitempty"`
	// Mandatory columns cannot be hidden.
	Mandatory bool `json:"mandatory,omitempty" yaml:"mandatory,omitempty"`
	// VisibleColumn is the initial visibility of a toggleable column; nil
	// shows it.
	VisibleColumn *bool `json:"visibleColumn,omitempty" yaml:"visibleColumn,omitempty"`
	Searchable    bool  `json:"searchable,omitempty" yaml:"searchable,omitempty"`
}

// ActionRule offers an action only when the record field holds one of In.
// Field defaults to status.
type ActionRule struct {
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
	In    []any  `json:"in" yaml:"in"`
}

// Allows reports whether record satisfies the rule.
func (r ActionRule) Allows(record Record) bool {
	field := r.Field
	if field == "" {
		field = "status"
	}
	return anyEqual(lookup(record, field), r.In)
}

// ID returns the column key, falling back to the data index.
func (c Column) ID() string {
	if key := strings.TrimSpace(c.Key); key != "" {
		return key
	}
	return c.DataIndex
}

// IsAction reports whether the column renders the row action menu.
func (c Column) IsAction() bool {
	return len(c.ActionButtons) > 0
}

func (c Column) visibleByDefault() bool {
	return c.Mandatory || c.VisibleColumn == nil || *c.VisibleColumn
}
