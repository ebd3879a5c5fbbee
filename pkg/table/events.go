package table

import (
	"context"
	"errors"
	"fmt"
)

// Area is the part of a row a click landed on.
type Area string

// Click areas.
const (
	AreaRow    Area = "row"
	AreaAction Area = "action"
	// AreaMenu is the action menu trigger; opening it never navigates.
	AreaMenu  Area = "menu"
	AreaMedia Area = "media"
)

// ErrUnknownRow is returned for clicks on rows no Load returned.
var ErrUnknownRow = errors.New("table: unknown row")

// ClickEvent is a click reported by a renderer.
type ClickEvent struct {
	Area   Area   `json:"area"`
	RowKey string `json:"rowKey"`
	Action string `json:"action,omitempty"`
}

// ClickResult tells the renderer what happened. Consumed clicks must not be
// propagated to the row.
type ClickResult struct {
	Consumed bool   `json:"consumed"`
	Handled  Area   `json:"handled,omitempty"`
	Action   string `json:"action,omitempty"`
	Err      error  `json:"-"`
}

// Dispatch routes a click. Action, menu and media clicks are consumed and
// never reach the row handler.
func (e *Engine) Dispatch(ctx context.Context, event ClickEvent) ClickResult {
	row, ok := e.Row(event.RowKey)
	if !ok {
		return ClickResult{Consumed: event.Area != AreaRow, Err: fmt.Errorf("%w %q", ErrUnknownRow, event.RowKey)}
	}

	switch event.Area {
	case AreaAction:
		result := ClickResult{Consumed: true, Handled: AreaAction, Action: event.Action}
		if !rowAllows(row, event.Action) {
			result.Err = fmt.Errorf("table: action %q is not available for row %q", event.Action, row.Key)
			return result
		}
		if e.onAction != nil {
			result.Err = e.onAction(ctx, row.Record, event.Action)
		}
		return result
	case AreaMenu, AreaMedia:
		return ClickResult{Consumed: true, Handled: event.Area}
	case AreaRow:
		result := ClickResult{Handled: AreaRow}
		if e.onRow != nil {
			result.Err = e.onRow(ctx, row.Record)
		}
		return result
	default:
		return ClickResult{Err: fmt.Errorf("table: unknown click area %q", event.Area)}
	}
}

func rowAllows(row Row, action string) bool {
	for _, candidate := range row.Actions {
		if candidate.Key == action {
			return true
		}
	}
	return false
}
