package table

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrMandatoryColumn is returned when hiding a mandatory column.
var ErrMandatoryColumn = errors.New("table: mandatory column cannot be hidden")

// VisibilityStore persists the hidden column keys of a table instance.
type VisibilityStore interface {
	// Load reports ok=false when nothing was saved for the table.
	Load(ctx context.Context, tableID string) (hidden []string, ok bool, err error)
	Save(ctx context.Context, tableID string, hidden []string) error
}

// ColumnVisibility tracks which columns are shown for one table instance.
type ColumnVisibility struct {
	tableID string
	columns []Column
	store   VisibilityStore

	mu     sync.RWMutex
	hidden map[string]bool
}

// NewColumnVisibility restores the saved preference for tableID, or the
// column defaults when none was saved. A nil store keeps the state in
// memory for this instance only.
func NewColumnVisibility(ctx context.Context, tableID string, columns []Column, store VisibilityStore) (*ColumnVisibility, error) {
	v := &ColumnVisibility{
		tableID: tableID,
		columns: columns,
		store:   store,
		hidden:  map[string]bool{},
	}
	for _, col := range columns {
		if !col.visibleByDefault() {
			v.hidden[col.ID()] = true
		}
	}
	if store == nil {
		return v, nil
	}

	saved, ok, err := store.Load(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("table: load column visibility for %s: %w", tableID, err)
	}
	if !ok {
		return v, nil
	}
	v.hidden = map[string]bool{}
	for _, key := range saved {
		if col, known := v.column(key); known && !col.Mandatory {
			v.hidden[key] = true
		}
	}
	return v, nil
}

// Visible reports whether the column with key is shown.
func (v *ColumnVisibility) Visible(key string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return !v.hidden[key]
}

// Columns returns the shown columns in declaration order.
func (v *ColumnVisibility) Columns() []Column {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Column, 0, len(v.columns))
	for _, col := range v.columns {
		if !v.hidden[col.ID()] {
			out = append(out, col)
		}
	}
	return out
}

// Toggleable returns the columns the user may hide or show.
func (v *ColumnVisibility) Toggleable() []Column {
	out := make([]Column, 0, len(v.columns))
	for _, col := range v.columns {
		if !col.Mandatory {
			out = append(out, col)
		}
	}
	return out
}

// Set shows or hides a column and persists the preference.
func (v *ColumnVisibility) Set(ctx context.Context, key string, visible bool) error {
	col, ok := v.column(key)
	if !ok {
		return fmt.Errorf("table: unknown column %q", key)
	}
	if col.Mandatory {
		if visible {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrMandatoryColumn, key)
	}

	v.mu.Lock()
	if visible {
		delete(v.hidden, key)
	} else {
		v.hidden[key] = true
	}
	hidden := v.hiddenLocked()
	v.mu.Unlock()

	return v.persist(ctx, hidden)
}

// Reset restores the column defaults and persists them.
func (v *ColumnVisibility) Reset(ctx context.Context) error {
	v.mu.Lock()
	v.hidden = map[string]bool{}
	for _, col := range v.columns {
		if !col.visibleByDefault() {
			v.hidden[col.ID()] = true
		}
	}
	hidden := v.hiddenLocked()
	v.mu.Unlock()

	return v.persist(ctx, hidden)
}

// Hidden returns the hidden column keys, sorted.
func (v *ColumnVisibility) Hidden() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.hiddenLocked()
}

func (v *ColumnVisibility) persist(ctx context.Context, hidden []string) error {
	if v.store == nil {
		return nil
	}
	if err := v.store.Save(ctx, v.tableID, hidden); err != nil {
		return fmt.Errorf("table: save column visibility for %s: %w", v.tableID, err)
	}
	return nil
}

func (v *ColumnVisibility) hiddenLocked() []string {
	out := make([]string, 0, len(v.hidden))
	for key := range v.hidden {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func (v *ColumnVisibility) column(key string) (Column, bool) {
	for _, col := range v.columns {
		if col.ID() == key {
			return col, true
		}
	}
	return Column{}, false
}
