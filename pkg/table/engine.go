package table

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/goliatone/go-formdesk/pkg/datefmt"
	"github.com/goliatone/go-formdesk/pkg/options"
)

// DefaultPageSize applies when neither the config nor the query sets one.
const DefaultPageSize = 10

// MaxIndexedRows bounds the rows kept for click dispatch. Loads add to the
// index so concurrent viewers of different pages can still click their rows.
const MaxIndexedRows = 1000

// Config describes one table instance.
type Config struct {
	ID       string          `json:"id" yaml:"id"`
	Title    string          `json:"title,omitempty" yaml:"title,omitempty"`
	Columns  []Column        `json:"columns" yaml:"columns"`
	RowKey   string          `json:"rowKey,omitempty" yaml:"rowKey,omitempty"`
	PageSize int             `json:"pageSize,omitempty" yaml:"pageSize,omitempty"`
	Filters  []FilterSection `json:"filters,omitempty" yaml:"filters,omitempty"`
	// Endpoint is the list URL used when no fetcher or data source is given.
	Endpoint     string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	ActionLabels map[string]string `json:"actionLabels,omitempty" yaml:"actionLabels,omitempty"`
}

func (c Config) rowKey() string {
	if c.RowKey == "" {
		return "id"
	}
	return c.RowKey
}

// IsShowFunc decides whether a row action is offered for a record.
type IsShowFunc func(record Record, button string) bool

// RowHandler handles a click on a row.
type RowHandler func(ctx context.Context, record Record) error

// ActionHandler handles a row action.
type ActionHandler func(ctx context.Context, record Record, action string) error

// Header describes one rendered column heading.
type Header struct {
	Key       string `json:"key"`
	Title     string `json:"title"`
	Width     int    `json:"width,omitempty"`
	Sortable  bool   `json:"sortable,omitempty"`
	SortOrder string `json:"sortOrder,omitempty"`
}

// Media is a media cell payload.
type Media struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Cell is one formatted value.
type Cell struct {
	Column string `json:"column"`
	Value  any    `json:"value,omitempty"`
	Text   string `json:"text"`
	Media  *Media `json:"media,omitempty"`
}

// Action is one entry of a row action menu.
type Action struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Row is a record projected onto the visible columns.
type Row struct {
	Key     string   `json:"key"`
	Record  Record   `json:"record"`
	Cells   []Cell   `json:"cells"`
	Actions []Action `json:"actions,omitempty"`
}

// Result is what Load hands to a renderer.
type Result struct {
	Headers  []Header `json:"headers"`
	Rows     []Row    `json:"rows"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
}

// Option customises an Engine.
type Option func(*Engine)

// WithFetcher loads rows from the backend on every query.
func WithFetcher(f Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithDataSource filters, sorts and pages a static record set locally.
func WithDataSource(records []Record) Option {
	return func(e *Engine) {
		e.source = append([]Record(nil), records...)
		e.static = true
	}
}

// WithOptions sets the dictionary used for option label cells.
func WithOptions(dict *options.Dictionary) Option {
	return func(e *Engine) {
		if dict != nil {
			e.dict = dict
		}
	}
}

// WithIsShow sets the row action predicate. It runs after the declarative
// ShowWhen rules of the action column.
func WithIsShow(fn IsShowFunc) Option {
	return func(e *Engine) { e.isShow = fn }
}

// WithVisibility attaches the column visibility state.
func WithVisibility(v *ColumnVisibility) Option {
	return func(e *Engine) { e.visibility = v }
}

// WithRowHandler sets the row click handler.
func WithRowHandler(fn RowHandler) Option {
	return func(e *Engine) { e.onRow = fn }
}

// WithActionHandler sets the row action handler.
func WithActionHandler(fn ActionHandler) Option {
	return func(e *Engine) { e.onAction = fn }
}

// WithLocation sets the time zone for date cells.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// WithDebounce overrides the search debounce delay.
func WithDebounce(delay time.Duration) Option {
	return func(e *Engine) { e.debouncer = NewDebouncer(delay) }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine renders one configured table.
type Engine struct {
	cfg        Config
	fetcher    Fetcher
	source     []Record
	static     bool
	dict       *options.Dictionary
	isShow     IsShowFunc
	visibility *ColumnVisibility
	onRow      RowHandler
	onAction   ActionHandler
	loc        *time.Location
	debouncer  *Debouncer
	logger     *zap.Logger

	mu   sync.RWMutex
	rows map[string]Row
}

// New validates the column set and builds an engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	seen := make(map[string]struct{}, len(cfg.Columns))
	for _, col := range cfg.Columns {
		id := col.ID()
		if id == "" {
			return nil, fmt.Errorf("table %s: column %q has no key or dataIndex", cfg.ID, col.Title)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("table %s: duplicate column %q", cfg.ID, id)
		}
		seen[id] = struct{}{}
	}

	e := &Engine{
		cfg:       cfg,
		dict:      options.Empty(),
		loc:       time.Local,
		debouncer: NewDebouncer(DefaultDebounce),
		logger:    zap.NewNop(),
		rows:      map[string]Row{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Config returns the table configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Visibility returns the attached column visibility state, if any.
func (e *Engine) Visibility() *ColumnVisibility {
	return e.visibility
}

// Load resolves a query into formatted rows.
func (e *Engine) Load(ctx context.Context, q Query) (Result, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = e.cfg.PageSize
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.SortField != "" && q.SortOrder == "" {
		q.SortOrder = SortAscend
	}

	var page Page
	switch {
	case e.fetcher != nil:
		fetched, err := e.fetcher.Fetch(ctx, q)
		if err != nil {
			return Result{}, err
		}
		page = fetched
	case e.static:
		page = e.local(q)
	default:
		return Result{}, errors.New("table: no fetcher or data source configured")
	}

	columns := e.columns()
	result := Result{
		Headers:  make([]Header, 0, len(columns)),
		Rows:     make([]Row, 0, len(page.Records)),
		Total:    page.Total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	for _, col := range columns {
		header := Header{Key: col.ID(), Title: col.Title, Width: col.Width, Sortable: col.Sorter}
		if col.Sorter && q.SortField == col.DataIndex {
			header.SortOrder = q.SortOrder
		}
		result.Headers = append(result.Headers, header)
	}

	index := make(map[string]Row, len(page.Records))
	for _, record := range page.Records {
		row := e.project(record, columns)
		result.Rows = append(result.Rows, row)
		index[row.Key] = row
	}

	e.mu.Lock()
	if len(e.rows)+len(index) > MaxIndexedRows {
		e.rows = make(map[string]Row, len(index))
	}
	for key, row := range index {
		e.rows[key] = row
	}
	e.mu.Unlock()

	e.logger.Debug("table loaded",
		zap.String("table", e.cfg.ID),
		zap.Int("rows", len(result.Rows)),
		zap.Int("total", result.Total),
	)
	return result, nil
}

// Search debounces a text query and delivers the result to fn. Only the
// last call within the debounce window runs.
func (e *Engine) Search(ctx context.Context, q Query, fn func(Result, error)) {
	e.debouncer.Do(func() {
		result, err := e.Load(ctx, q)
		if fn != nil {
			fn(result, err)
		}
	})
}

// Row returns the most recently loaded version of a row by key.
func (e *Engine) Row(key string) (Row, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	row, ok := e.rows[key]
	return row, ok
}

func (e *Engine) columns() []Column {
	if e.visibility == nil {
		return e.cfg.Columns
	}
	return e.visibility.Columns()
}

func (e *Engine) project(record Record, columns []Column) Row {
	row := Row{
		Key:    fmt.Sprint(lookup(record, e.cfg.rowKey())),
		Record: record,
		Cells:  make([]Cell, 0, len(columns)),
	}
	for _, col := range columns {
		row.Cells = append(row.Cells, e.cell(col, record))
	}
	// the action menu is resolved from the full column set so hiding the
	// column does not change which actions a row allows
	for _, col := range e.cfg.Columns {
		for _, button := range col.ActionButtons {
			if rule, ok := col.ShowWhen[button]; ok && !rule.Allows(record) {
				continue
			}
			if e.isShow != nil && !e.isShow(record, button) {
				continue
			}
			row.Actions = append(row.Actions, Action{Key: button, Text: e.actionLabel(button)})
		}
	}
	return row
}

func (e *Engine) cell(col Column, record Record) Cell {
	raw := lookup(record, col.DataIndex)
	cell := Cell{Column: col.ID(), Value: raw}
	switch {
	case col.IsAction():
	case col.MediaType != "":
		if url, ok := raw.(string); ok && url != "" {
			cell.Media = &Media{Type: col.MediaType, URL: url}
			cell.Text = url
		}
	case !col.Options.IsZero():
		if raw != nil {
			cell.Text = e.dict.Label(col.Options, raw)
		}
	case col.Format == FormatDuration:
		cell.Text = datefmt.Duration(raw)
	case col.Format != "":
		formatted, err := datefmt.Format(raw, col.Format, e.loc)
		if err != nil {
			e.logger.Debug("format date cell", zap.String("column", col.ID()), zap.Error(err))
			cell.Text = text(raw)
			break
		}
		if s, ok := formatted.(string); ok {
			cell.Text = s
		}
	default:
		cell.Text = text(raw)
	}
	return cell
}

func (e *Engine) actionLabel(button string) string {
	if label, ok := e.cfg.ActionLabels[button]; ok && label != "" {
		return label
	}
	r, size := utf8.DecodeRuneInString(button)
	if r == utf8.RuneError {
		return button
	}
	return string(unicode.ToUpper(r)) + button[size:]
}

// local filters, sorts and pages the static data source.
func (e *Engine) local(q Query) Page {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	searchable := e.searchColumns()

	matched := make([]Record, 0, len(e.source))
	for _, record := range e.source {
		if search != "" && !e.matchesSearch(record, searchable, search) {
			continue
		}
		if !matchesFilters(record, q.Filters) {
			continue
		}
		matched = append(matched, record)
	}

	if q.SortField != "" {
		descend := q.SortOrder == SortDescend
		sort.SliceStable(matched, func(i, j int) bool {
			cmp := compare(lookup(matched[i], q.SortField), lookup(matched[j], q.SortField))
			if descend {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	total := len(matched)
	start := (q.Page - 1) * q.PageSize
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return Page{Records: matched[start:end], Total: total}
}

func (e *Engine) searchColumns() []Column {
	var marked, all []Column
	for _, col := range e.cfg.Columns {
		if col.IsAction() {
			continue
		}
		all = append(all, col)
		if col.Searchable {
			marked = append(marked, col)
		}
	}
	if len(marked) > 0 {
		return marked
	}
	return all
}

func (e *Engine) matchesSearch(record Record, columns []Column, search string) bool {
	for _, col := range columns {
		if strings.Contains(strings.ToLower(e.cell(col, record).Text), search) {
			return true
		}
	}
	return false
}

func matchesFilters(record Record, filters map[string][]any) bool {
	for key, selected := range filters {
		if len(selected) == 0 {
			continue
		}
		if !anyEqual(lookup(record, key), selected) {
			return false
		}
	}
	return true
}

func anyEqual(value any, selected []any) bool {
	if list, ok := value.([]any); ok {
		for _, item := range list {
			if anyEqual(item, selected) {
				return true
			}
		}
		return false
	}
	for _, candidate := range selected {
		if options.Equal(candidate, value) {
			return true
		}
	}
	return false
}

// lookup reads a record value by key, walking dotted paths into nested maps.
func lookup(record Record, key string) any {
	if value, ok := record[key]; ok {
		return value
	}
	if !strings.Contains(key, ".") {
		return nil
	}
	var current any = map[string]any(record)
	for _, part := range strings.Split(key, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	af, aNum := number(a)
	bf, bNum := number(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(strings.ToLower(text(a)), strings.ToLower(text(b)))
}

func number(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	default:
		return 0, false
	}
}

func text(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case time.Time:
		return typed.Format(time.RFC3339)
	default:
		return fmt.Sprint(typed)
	}
}
