package table

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-formdesk/pkg/client"
	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/options"
)

func exerciseColumns() []Column {
	return []Column{
		{Title: "ID", DataIndex: "id", Mandatory: true, Sorter: true},
		{Title: "Name", DataIndex: "name", Searchable: true, Sorter: true},
		{Title: "Gender", DataIndex: "gender", Options: model.OptionsKey("BizExerciseGenderEnums")},
		{Title: "Cover", DataIndex: "cover", MediaType: MediaImage},
		{Title: "Length", DataIndex: "duration", Format: FormatDuration},
		{Title: "Created", DataIndex: "createdAt", Format: "YYYY/MM/DD"},
		{Title: "Actions", Key: "actions", ActionButtons: []string{"edit", "enable", "disable"}, Mandatory: true},
	}
}

func exerciseDictionary() *options.Dictionary {
	return options.New(map[string][]model.Option{
		"BizExerciseGenderEnums": {
			{Label: "Female", Value: "FEMALE"},
			{Label: "Male", Value: "MALE"},
		},
	})
}

func exerciseRecords() []Record {
	return []Record{
		{"id": 1, "name": "Squat", "gender": "MALE", "status": "ENABLED", "duration": 95, "createdAt": "2024-01-05T10:00:00Z", "cover": "https://cdn/squat.png"},
		{"id": 2, "name": "Lunge", "gender": "FEMALE", "status": "DISABLED", "duration": 3725},
		{"id": 3, "name": "Plank", "gender": []any{"FEMALE", "MALE"}, "status": "ENABLED"},
	}
}

func statusIsShow(record Record, button string) bool {
	if button == "edit" {
		return true
	}
	if record["status"] == "DISABLED" {
		return button == "enable"
	}
	return button == "disable"
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithDataSource(exerciseRecords()),
		WithOptions(exerciseDictionary()),
		WithIsShow(statusIsShow),
		WithLocation(time.UTC),
	}
	engine, err := New(Config{ID: "exercises", Columns: exerciseColumns()}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine
}

func TestNewRejectsDuplicateColumns(t *testing.T) {
	_, err := New(Config{ID: "t", Columns: []Column{{DataIndex: "a"}, {Key: "a", DataIndex: "b"}}})
	if err == nil {
		t.Fatalf("expected duplicate column error")
	}
	_, err = New(Config{ID: "t", Columns: []Column{{Title: "Nameless"}}})
	if err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestLoadFormatsCells(t *testing.T) {
	engine := newEngine(t)
	result, err := engine.Load(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Total != 3 || result.Page != 1 || result.PageSize != DefaultPageSize {
		t.Fatalf("unexpected paging: %+v", result)
	}

	first := result.Rows[0]
	texts := map[string]string{}
	for _, cell := range first.Cells {
		texts[cell.Column] = cell.Text
	}
	want := map[string]string{
		"id":        "1",
		"name":      "Squat",
		"gender":    "Male",
		"cover":     "https://cdn/squat.png",
		"duration":  "1:35",
		"createdAt": "2024/01/05",
		"actions":   "",
	}
	if diff := cmp.Diff(want, texts); diff != "" {
		t.Fatalf("cells mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(&Media{Type: MediaImage, URL: "https://cdn/squat.png"}, first.Cells[3].Media); diff != "" {
		t.Fatalf("media mismatch (-want +got):\n%s", diff)
	}
	if got := result.Rows[2].Cells[2].Text; got != "Female, Male" {
		t.Fatalf("multi value label = %q", got)
	}
	if got := result.Rows[1].Cells[4].Text; got != "1:02:05" {
		t.Fatalf("long duration = %q", got)
	}
}

func TestRowActionsFollowIsShow(t *testing.T) {
	engine, err := New(
		Config{ID: "t", Columns: []Column{{DataIndex: "id"}, {Key: "actions", ActionButtons: []string{"enable", "disable"}}}},
		WithDataSource([]Record{{"id": 9, "status": "DISABLED"}}),
		WithIsShow(func(r Record, btn string) bool {
			if r["status"] == "DISABLED" {
				return btn == "enable"
			}
			return btn == "disable"
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := engine.Load(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]Action{{Key: "enable", Text: "Enable"}}, result.Rows[0].Actions); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
}

func TestRowActionsFollowShowWhen(t *testing.T) {
	columns := []Column{
		{DataIndex: "id"},
		{
			Key:           "actions",
			ActionButtons: []string{"edit", "enable", "disable"},
			ShowWhen: map[string]ActionRule{
				"enable":  {In: []any{"DISABLED"}},
				"disable": {In: []any{"ENABLED"}},
			},
		},
	}
	engine, err := New(
		Config{ID: "t", Columns: columns},
		WithDataSource([]Record{{"id": 1, "status": "DISABLED"}, {"id": 2, "status": "ENABLED"}}),
		WithIsShow(func(_ Record, btn string) bool { return btn != "edit" }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := engine.Load(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]Action{{Key: "enable", Text: "Enable"}}, result.Rows[0].Actions); diff != "" {
		t.Fatalf("disabled row actions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Action{{Key: "disable", Text: "Disable"}}, result.Rows[1].Actions); diff != "" {
		t.Fatalf("enabled row actions mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchResolvesRowsFromEarlierPages(t *testing.T) {
	var actions []string
	engine := newEngine(t, WithActionHandler(func(_ context.Context, r Record, action string) error {
		actions = append(actions, r["name"].(string)+":"+action)
		return nil
	}))
	ctx := context.Background()
	if _, err := engine.Load(ctx, Query{Page: 1, PageSize: 1}); err != nil {
		t.Fatalf("Load page 1: %v", err)
	}
	if _, err := engine.Load(ctx, Query{Page: 2, PageSize: 1}); err != nil {
		t.Fatalf("Load page 2: %v", err)
	}

	for _, event := range []ClickEvent{
		{Area: AreaAction, RowKey: "1", Action: "disable"},
		{Area: AreaAction, RowKey: "2", Action: "enable"},
	} {
		if got := engine.Dispatch(ctx, event); got.Err != nil {
			t.Fatalf("Dispatch %+v: %v", event, got.Err)
		}
	}
	if diff := cmp.Diff([]string{"Squat:disable", "Lunge:enable"}, actions); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSearchFilterSortPage(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	result, err := engine.Load(ctx, Query{Search: "LUN"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Total != 1 || result.Rows[0].Key != "2" {
		t.Fatalf("search mismatch: %+v", result.Rows)
	}

	result, err = engine.Load(ctx, Query{Filters: map[string][]any{"gender": {"FEMALE"}}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	keys := rowKeys(result)
	if diff := cmp.Diff([]string{"2", "3"}, keys); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}

	result, err = engine.Load(ctx, Query{SortField: "name", SortOrder: SortDescend, PageSize: 2})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"1", "3"}, rowKeys(result)); diff != "" {
		t.Fatalf("sort mismatch (-want +got):\n%s", diff)
	}
	if result.Headers[1].SortOrder != SortDescend {
		t.Fatalf("expected header sort order, got %+v", result.Headers[1])
	}

	result, err = engine.Load(ctx, Query{SortField: "id", Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"3"}, rowKeys(result)); diff != "" {
		t.Fatalf("page mismatch (-want +got):\n%s", diff)
	}
}

func rowKeys(result Result) []string {
	keys := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		keys = append(keys, row.Key)
	}
	return keys
}

type listRequester struct {
	query url.Values
	env   client.Envelope
}

func (r *listRequester) Get(_ context.Context, _ string, query url.Values) (client.Envelope, error) {
	r.query = query
	return r.env, nil
}

func (r *listRequester) Post(context.Context, string, any) (client.Envelope, error) {
	return client.Envelope{}, errors.New("unexpected post")
}

func TestRequesterFetcher(t *testing.T) {
	requester := &listRequester{env: client.Envelope{
		Success: true,
		Data:    json.RawMessage(`{"list":[{"id":"a","name":"Row"}],"total":42}`),
	}}
	engine, err := New(Config{ID: "remote", Columns: []Column{{DataIndex: "id"}, {DataIndex: "name"}}},
		WithFetcher(RequesterFetcher(requester, "/exercise/page")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := engine.Load(context.Background(), Query{
		Search:    "row",
		SortField: "name",
		Filters:   map[string][]any{"status": {"ENABLED", "DRAFT"}},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Total != 42 || len(result.Rows) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	want := url.Values{
		"page":      {"1"},
		"pageSize":  {"10"},
		"keyword":   {"row"},
		"sortField": {"name"},
		"sortOrder": {SortAscend},
		"status":    {"ENABLED,DRAFT"},
	}
	if diff := cmp.Diff(want, requester.query); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}

	requester.env = client.Envelope{Success: true, Data: json.RawMessage(`[{"id":"x"},{"id":"y"}]`)}
	result, err = engine.Load(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("expected bare array total, got %d", result.Total)
	}

	requester.env = client.Envelope{Success: false, ErrMessage: "forbidden"}
	if _, err := engine.Load(context.Background(), Query{}); err == nil {
		t.Fatalf("expected failure envelope to error")
	}
}

func TestDispatchConsumesActionClicks(t *testing.T) {
	var rowClicks []string
	var actions []string
	engine := newEngine(t,
		WithRowHandler(func(_ context.Context, r Record) error {
			rowClicks = append(rowClicks, r["name"].(string))
			return nil
		}),
		WithActionHandler(func(_ context.Context, r Record, action string) error {
			actions = append(actions, action)
			return nil
		}),
	)
	ctx := context.Background()
	if _, err := engine.Load(ctx, Query{}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := engine.Dispatch(ctx, ClickEvent{Area: AreaAction, RowKey: "2", Action: "enable"})
	if diff := cmp.Diff(ClickResult{Consumed: true, Handled: AreaAction, Action: "enable"}, got, cmp.Comparer(func(a, b error) bool { return a == b })); diff != "" {
		t.Fatalf("action result mismatch (-want +got):\n%s", diff)
	}
	if got := engine.Dispatch(ctx, ClickEvent{Area: AreaMenu, RowKey: "2"}); !got.Consumed {
		t.Fatalf("menu click should be consumed")
	}
	if got := engine.Dispatch(ctx, ClickEvent{Area: AreaAction, RowKey: "2", Action: "disable"}); got.Err == nil || !got.Consumed {
		t.Fatalf("hidden action should error and stay consumed: %+v", got)
	}
	if got := engine.Dispatch(ctx, ClickEvent{Area: AreaRow, RowKey: "1"}); got.Consumed || got.Err != nil {
		t.Fatalf("row click should pass through: %+v", got)
	}
	if got := engine.Dispatch(ctx, ClickEvent{Area: AreaRow, RowKey: "99"}); !errors.Is(got.Err, ErrUnknownRow) {
		t.Fatalf("expected ErrUnknownRow, got %v", got.Err)
	}

	if diff := cmp.Diff([]string{"enable"}, actions); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Squat"}, rowClicks); diff != "" {
		t.Fatalf("row clicks mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterState(t *testing.T) {
	state := NewFilterState([]FilterSection{
		{Key: "status", Mode: model.ModeSingle},
		{Key: "gender", Mode: model.ModeMultiple},
	})

	for _, step := range []struct {
		key   string
		value any
	}{
		{"status", "ENABLED"},
		{"status", "DISABLED"},
		{"gender", "MALE"},
		{"gender", "FEMALE"},
		{"gender", "MALE"},
	} {
		if err := state.Toggle(step.key, step.value); err != nil {
			t.Fatalf("Toggle(%s): %v", step.key, err)
		}
	}
	want := map[string][]any{"status": {"DISABLED"}, "gender": {"FEMALE"}}
	if diff := cmp.Diff(want, state.Values()); diff != "" {
		t.Fatalf("selection mismatch (-want +got):\n%s", diff)
	}
	if state.Active() != 2 {
		t.Fatalf("Active() = %d", state.Active())
	}

	if err := state.Toggle("status", "DISABLED"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if got := state.Selected("status"); len(got) != 0 {
		t.Fatalf("reselecting a single value should clear it, got %v", got)
	}
	if err := state.Toggle("missing", 1); err == nil {
		t.Fatalf("expected unknown filter error")
	}
	state.Reset()
	if state.Active() != 0 {
		t.Fatalf("expected reset selection")
	}
}

func TestFilterGroupsResolveOptions(t *testing.T) {
	engine, err := New(Config{
		ID:      "t",
		Columns: []Column{{DataIndex: "id"}},
		Filters: []FilterSection{{Key: "gender", Options: model.OptionsKey("BizExerciseGenderEnums")}},
	}, WithOptions(exerciseDictionary()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	groups, err := engine.FilterGroups()
	if err != nil {
		t.Fatalf("FilterGroups: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Options) != 2 {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestDebouncerRunsLastCall(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var mu sync.Mutex
	var calls []int
	done := make(chan struct{})

	for i := 1; i <= 3; i++ {
		i := i
		d.Do(func() {
			mu.Lock()
			calls = append(calls, i)
			mu.Unlock()
			close(done)
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("debounced call never ran")
	}
	time.Sleep(40 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]int{3}, calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchIsDebounced(t *testing.T) {
	engine := newEngine(t, WithDebounce(10*time.Millisecond))
	results := make(chan Result, 2)
	ctx := context.Background()

	engine.Search(ctx, Query{Search: "squ"}, func(r Result, _ error) { results <- r })
	engine.Search(ctx, Query{Search: "plank"}, func(r Result, _ error) { results <- r })

	select {
	case r := <-results:
		if r.Total != 1 || r.Rows[0].Key != "3" {
			t.Fatalf("expected last query result, got %+v", r.Rows)
		}
	case <-time.After(time.Second):
		t.Fatalf("search never completed")
	}
}

func TestColumnVisibility(t *testing.T) {
	hidden := false
	columns := []Column{
		{Title: "ID", DataIndex: "id", Mandatory: true},
		{Title: "Name", DataIndex: "name"},
		{Title: "Notes", DataIndex: "notes", VisibleColumn: &hidden},
	}
	ctx := context.Background()
	store := NewMemoryStore()

	v, err := NewColumnVisibility(ctx, "exercises", columns, store)
	if err != nil {
		t.Fatalf("NewColumnVisibility: %v", err)
	}
	if diff := cmp.Diff([]string{"notes"}, v.Hidden()); diff != "" {
		t.Fatalf("default hidden mismatch (-want +got):\n%s", diff)
	}
	if err := v.Set(ctx, "id", false); !errors.Is(err, ErrMandatoryColumn) {
		t.Fatalf("expected ErrMandatoryColumn, got %v", err)
	}
	if err := v.Set(ctx, "name", false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := v.Set(ctx, "notes", true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(v.Toggleable()) != 2 {
		t.Fatalf("expected two toggleable columns")
	}

	restored, err := NewColumnVisibility(ctx, "exercises", columns, store)
	if err != nil {
		t.Fatalf("NewColumnVisibility: %v", err)
	}
	var titles []string
	for _, col := range restored.Columns() {
		titles = append(titles, col.Title)
	}
	if diff := cmp.Diff([]string{"ID", "Notes"}, titles); diff != "" {
		t.Fatalf("restored columns mismatch (-want +got):\n%s", diff)
	}

	other, err := NewColumnVisibility(ctx, "workouts", columns, store)
	if err != nil {
		t.Fatalf("NewColumnVisibility: %v", err)
	}
	if !other.Visible("name") {
		t.Fatalf("preferences must be keyed per table")
	}

	if err := restored.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if diff := cmp.Diff([]string{"notes"}, restored.Hidden()); diff != "" {
		t.Fatalf("reset mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineUsesVisibility(t *testing.T) {
	ctx := context.Background()
	columns := exerciseColumns()
	v, err := NewColumnVisibility(ctx, "exercises", columns, nil)
	if err != nil {
		t.Fatalf("NewColumnVisibility: %v", err)
	}
	if err := v.Set(ctx, "actions", false); err == nil {
		t.Fatalf("action column is mandatory")
	}
	if err := v.Set(ctx, "cover", false); err != nil {
		t.Fatalf("Set: %v", err)
	}

	engine := newEngine(t, WithVisibility(v))
	result, err := engine.Load(ctx, Query{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(result.Headers) != len(columns)-1 || len(result.Rows[0].Cells) != len(columns)-1 {
		t.Fatalf("expected hidden column to be dropped")
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs", "columns.json")
	store := NewFileStore(path)

	if _, ok, err := store.Load(ctx, "exercises"); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}
	if err := store.Save(ctx, "exercises", []string{"cover"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "workouts", nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened := NewFileStore(path)
	hidden, ok, err := reopened.Load(ctx, "exercises")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff([]string{"cover"}, hidden); diff != "" {
		t.Fatalf("hidden mismatch (-want +got):\n%s", diff)
	}
	if _, ok, _ := reopened.Load(ctx, "workouts"); !ok {
		t.Fatalf("expected saved empty preference to be found")
	}

	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := reopened.Load(ctx, "exercises"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("FORMDESK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FORMDESK_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() {
		rdb.Del(ctx, "formdesk-test:exercises")
		rdb.Close()
	})

	store := NewRedisStore(rdb, "formdesk-test:")

	if _, ok, err := store.Load(ctx, "exercises"); err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
	if err := store.Save(ctx, "exercises", []string{"notes"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	hidden, ok, err := store.Load(ctx, "exercises")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff([]string{"notes"}, hidden); diff != "" {
		t.Fatalf("hidden mismatch (-want +got):\n%s", diff)
	}
}
