package table

import (
	"fmt"
	"sync"

	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/options"
)

// FilterSection is one named group of the filter popover.
type FilterSection struct {
	Key     string             `json:"key" yaml:"key"`
	Title   string             `json:"title,omitempty" yaml:"title,omitempty"`
	Mode    string             `json:"mode,omitempty" yaml:"mode,omitempty"`
	Options model.OptionSource `json:"options" yaml:"options"`
}

func (s FilterSection) multiple() bool {
	return s.Mode == model.ModeMultiple
}

// FilterGroup is a section with its options resolved.
type FilterGroup struct {
	Section FilterSection  `json:"section"`
	Options []model.Option `json:"options"`
}

// FilterGroups resolves every configured section against the dictionary.
func (e *Engine) FilterGroups() ([]FilterGroup, error) {
	groups := make([]FilterGroup, 0, len(e.cfg.Filters))
	for _, section := range e.cfg.Filters {
		list, err := e.dict.Resolve(section.Options)
		if err != nil {
			return nil, fmt.Errorf("table %s: filter %s: %w", e.cfg.ID, section.Key, err)
		}
		groups = append(groups, FilterGroup{Section: section, Options: list})
	}
	return groups, nil
}

// FilterState holds the popover selection. Single sections keep at most one
// value; selecting the current value again clears it.
type FilterState struct {
	mu       sync.Mutex
	sections map[string]FilterSection
	selected map[string][]any
}

// NewFilterState creates an empty selection for sections.
func NewFilterState(sections []FilterSection) *FilterState {
	state := &FilterState{
		sections: make(map[string]FilterSection, len(sections)),
		selected: map[string][]any{},
	}
	for _, section := range sections {
		state.sections[section.Key] = section
	}
	return state
}

// Toggle flips value in the named section.
func (f *FilterState) Toggle(key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	section, ok := f.sections[key]
	if !ok {
		return fmt.Errorf("table: unknown filter %q", key)
	}

	current := f.selected[key]
	idx := -1
	for i, candidate := range current {
		if options.Equal(candidate, value) {
			idx = i
			break
		}
	}

	switch {
	case idx >= 0:
		current = append(current[:idx:idx], current[idx+1:]...)
	case section.multiple():
		current = append(current, value)
	default:
		current = []any{value}
	}
	if len(current) == 0 {
		delete(f.selected, key)
		return nil
	}
	f.selected[key] = current
	return nil
}

// Selected returns the values chosen in a section.
func (f *FilterState) Selected(key string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.selected[key]...)
}

// Clear empties one section.
func (f *FilterState) Clear(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.selected, key)
}

// Reset empties every section.
func (f *FilterState) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = map[string][]any{}
}

// Active counts sections with a selection, used for the popover badge.
func (f *FilterState) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.selected)
}

// Values returns the selection in Query.Filters form.
func (f *FilterState) Values() map[string][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]any, len(f.selected))
	for key, values := range f.selected {
		out[key] = append([]any(nil), values...)
	}
	return out
}
