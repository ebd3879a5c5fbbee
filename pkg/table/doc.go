// Package table projects records onto configurable columns.
//
// An Engine formats cells (option labels, media, dates, durations), resolves
// the per-row action menu through an IsShow predicate and answers clicks
// with explicit consumption results. Search, filter and column visibility
// are derived state: FilterState and ColumnVisibility hold the user's
// choices and the Engine reads them on every Load.
package table
