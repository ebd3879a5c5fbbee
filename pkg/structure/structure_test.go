package structure

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/validation"
)

type recordingForm struct {
	values model.Values
	calls  int
}

func (r *recordingForm) Value(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

func (r *recordingForm) SetValues(partial model.Values) {
	if r.values == nil {
		r.values = model.Values{}
	}
	for k, v := range partial {
		r.values[k] = v
	}
	r.calls++
}

func workoutFields() []model.Field {
	return []model.Field{
		{Name: "name", Type: model.FieldTypeInput},
		{
			Name:         "structureList",
			Type:         model.FieldTypeStructureList,
			Label:        "Structure",
			Required:     true,
			ItemTemplate: map[string]any{"title": "New round", "round": 1, "fields": []any{}},
			Empty:        &model.EmptyNotice{Title: "Structure required", Description: "Add a round"},
		},
		{Name: "musicList", Type: model.FieldTypeStructureList},
	}
}

func TestControllerAddRemoveDuplicate(t *testing.T) {
	form := &recordingForm{}
	ctrl := NewController(workoutFields(), WithIDGenerator(NewCounter("tmp-")), WithForm(form))

	first, err := ctrl.AddItem("structureList")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	want := Item{"id": "tmp-1", "title": "New round", "round": 1, "fields": []any{}}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Fatalf("added item mismatch (-want +got):\n%s", diff)
	}

	plain, err := ctrl.AddItem("musicList")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if diff := cmp.Diff(Item{"id": "tmp-2", "title": "", "fields": []any{}}, plain); diff != "" {
		t.Fatalf("default template mismatch (-want +got):\n%s", diff)
	}

	if err := ctrl.Update("structureList", "tmp-1", map[string]any{"title": "Warm up", "id": "ignored"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	copied, err := ctrl.Duplicate("structureList", "tmp-1")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if copied.ID() != "tmp-3" || copied["title"] != "Warm up" {
		t.Fatalf("unexpected duplicate %v", copied)
	}
	if _, err := ctrl.AddItem("structureList"); err != nil {
		t.Fatalf("add: %v", err)
	}

	ids := func() []string {
		var out []string
		for _, item := range ctrl.Items("structureList") {
			out = append(out, item.ID())
		}
		return out
	}
	if diff := cmp.Diff([]string{"tmp-1", "tmp-3", "tmp-4"}, ids()); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	if err := ctrl.Reorder("structureList", 2, 0); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if diff := cmp.Diff([]string{"tmp-4", "tmp-1", "tmp-3"}, ids()); diff != "" {
		t.Fatalf("reorder mismatch (-want +got):\n%s", diff)
	}
	callsBefore := form.calls
	if err := ctrl.Reorder("structureList", 1, 1); err != nil {
		t.Fatalf("reorder no-op: %v", err)
	}
	if form.calls != callsBefore {
		t.Fatalf("no-op reorder must not notify the form")
	}

	if err := ctrl.RemoveItem("structureList", "tmp-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if diff := cmp.Diff([]string{"tmp-4", "tmp-3"}, ids()); diff != "" {
		t.Fatalf("remove mismatch (-want +got):\n%s", diff)
	}
	if err := ctrl.RemoveItem("structureList", "tmp-1"); err == nil {
		t.Fatalf("expected error removing a missing item")
	}

	list, _ := form.values["structureList"].([]any)
	if len(list) != 2 {
		t.Fatalf("form was not synced: %v", form.values["structureList"])
	}
}

func TestControllerDuplicateIsDeep(t *testing.T) {
	ctrl := NewController(workoutFields(), WithIDGenerator(NewCounter("")))
	if err := ctrl.Load("structureList", []map[string]any{
		{"id": "a", "fields": []any{map[string]any{"exerciseId": 7}}},
	}); err != nil {
		t.Fatalf("load: %v", err)
	}
	copied, err := ctrl.Duplicate("structureList", "a")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	nested := copied["fields"].([]any)[0].(map[string]any)
	nested["exerciseId"] = 99

	source := ctrl.Items("structureList")[0]
	if got := source["fields"].([]any)[0].(map[string]any)["exerciseId"]; got != 7 {
		t.Fatalf("duplicate shares state with source: %v", got)
	}
}

func TestControllerIDsStayUnique(t *testing.T) {
	ctrl := NewController(workoutFields(), WithIDGenerator(NewCounter("")))
	if err := ctrl.Load("structureList", []map[string]any{{"id": "1"}, {"id": "2"}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	item, err := ctrl.AddItem("structureList")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if item.ID() != "3" {
		t.Fatalf("expected generator to skip taken ids, got %q", item.ID())
	}

	err = ctrl.Load("musicList", []map[string]any{{"id": "x"}, {"id": "x"}})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}

	stuck := NewController(workoutFields(), WithIDGenerator(IDFunc(func() string { return "same" })))
	if _, err := stuck.AddItem("musicList"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := stuck.AddItem("musicList"); err == nil {
		t.Fatalf("expected exhausted generator error")
	}
}

func TestControllerRejectedLoadKeepsPanel(t *testing.T) {
	ctrl := NewController(workoutFields(), WithIDGenerator(IDFunc(func() string { return "a" })))
	if err := ctrl.Load("structureList", []map[string]any{{"id": "a"}, {"id": "b"}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := ctrl.Load("structureList", []map[string]any{{"id": "c"}, {"id": "c"}}); err == nil {
		t.Fatalf("expected duplicate id error")
	}

	var ids []string
	for _, item := range ctrl.Items("structureList") {
		ids = append(ids, item.ID())
	}
	if diff := cmp.Diff([]string{"a", "b"}, ids); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	if _, err := ctrl.AddItem("structureList"); err == nil {
		t.Fatalf("expected id %q to stay issued after the rejected load", "a")
	}

	if err := ctrl.Load("structureList", []map[string]any{{"id": "b"}, {"title": "fresh"}}); err == nil {
		t.Fatalf("expected generated id to collide with the issued id")
	}
	if err := ctrl.Load("structureList", []map[string]any{{"id": "a"}}); err != nil {
		t.Fatalf("reload with own ids: %v", err)
	}
}

func TestControllerUnknownPanel(t *testing.T) {
	ctrl := NewController(workoutFields())
	if _, err := ctrl.AddItem("nope"); err == nil {
		t.Fatalf("expected unknown panel error")
	}
	if err := ctrl.Reorder("nope", 0, 1); err == nil {
		t.Fatalf("expected unknown panel error")
	}
}

func TestValidateNonEmpty(t *testing.T) {
	fields := workoutFields()
	ctrl := NewController(fields)

	err := ctrl.ValidateNonEmpty(fields[1], model.Values{"structureList": []any{}})
	var notice *validation.NotificationError
	if !errors.As(err, &notice) {
		t.Fatalf("expected notification error, got %v", err)
	}
	want := &validation.NotificationError{Field: "structureList", Title: "Structure required", Description: "Add a round"}
	if diff := cmp.Diff(want, notice); diff != "" {
		t.Fatalf("notice mismatch (-want +got):\n%s", diff)
	}
	if !ctrl.Expanded("structureList") {
		t.Fatalf("panel should expand on empty validation")
	}

	if err := ctrl.ValidateNonEmpty(fields[1], model.Values{"structureList": []any{map[string]any{"id": "1"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ctrl.ValidateNonEmpty(fields[2], model.Values{}); err != nil {
		t.Fatalf("optional list must pass: %v", err)
	}
}

func exerciseGroup() model.Field {
	return model.Field{
		Name:    "exerciseGroup",
		IsGroup: true,
		Fields: []model.Field{
			{Name: "structureName", Type: model.FieldTypeInput},
			{Name: "exerciseList", Type: model.FieldTypeTransfer},
		},
		GroupFields: []model.GroupField{
			{Name: "structureName"},
			{Name: "exerciseList", RecordKey: "exerciseIdList", Refs: true},
		},
	}
}

func TestGetDataAfterAndReassemble(t *testing.T) {
	groups := []model.Field{exerciseGroup()}
	record := map[string]any{
		"id":   float64(12),
		"name": "Leg day",
		"exerciseGroupList": []any{
			map[string]any{"structureName": "Warm up", "exerciseIdList": []any{float64(1), float64(2)}},
			map[string]any{"structureName": "Main", "exerciseIdList": []any{float64(3)}},
		},
	}

	values := GetDataAfter(record, groups)
	wantValues := model.Values{
		"id":             float64(12),
		"name":           "Leg day",
		"structureName":  "Warm up",
		"exerciseList":   []any{map[string]any{"id": float64(1)}, map[string]any{"id": float64(2)}},
		"structureName1": "Main",
		"exerciseList1":  []any{map[string]any{"id": float64(3)}},
	}
	if diff := cmp.Diff(wantValues, values); diff != "" {
		t.Fatalf("expanded values mismatch (-want +got):\n%s", diff)
	}

	back := ReassembleGroups(values, groups)
	if diff := cmp.Diff(model.Values(record), back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupSetRenumbersOnRemoveAndDuplicate(t *testing.T) {
	group := exerciseGroup()
	set := ExpandGroups(group, model.Values{
		"structureName":  "A",
		"structureName1": "B",
		"structureName2": "C",
	})
	if set.Len() != 3 {
		t.Fatalf("expected 3 instances, got %d", set.Len())
	}
	if err := set.Remove(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	idx, err := set.Duplicate(0)
	if err != nil || idx != 1 {
		t.Fatalf("duplicate = %d, %v", idx, err)
	}
	if err := set.Set(1, "structureName", "A copy"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := set.Set(1, "unknown", "x"); err == nil {
		t.Fatalf("expected unknown field error")
	}

	want := model.Values{
		"structureName":  "A",
		"structureName1": "A copy",
		"structureName2": "C",
	}
	if diff := cmp.Diff(want, set.Flatten()); diff != "" {
		t.Fatalf("flatten mismatch (-want +got):\n%s", diff)
	}
}

func TestInstanceCountIgnoresLookalikes(t *testing.T) {
	group := model.Field{Name: "g", IsGroup: true, Fields: []model.Field{{Name: "structure"}, {Name: "structureName"}}}
	got := InstanceCount(group, model.Values{"structureName": "x", "structure3": "y", "structure03": "z"})
	if got != 4 {
		t.Fatalf("instance count = %d, want 4", got)
	}
}

func TestFlattenStructureLists(t *testing.T) {
	fields := []model.Field{
		{Name: "structureList", Type: model.FieldTypeStructureList},
		{Name: "musicList", Type: model.FieldTypeStructureList, Formatter: "musicIds"},
	}
	formatters := NewFormatters()
	if err := formatters.Register("musicIds", func(_ context.Context, list []map[string]any, values model.Values) (any, error) {
		out := make([]any, 0, len(list))
		for _, item := range list {
			out = append(out, map[string]any{"musicId": item["id"], "workoutName": values["name"]})
		}
		return out, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	values := model.Values{
		"name":          "Leg day",
		"structureList": []any{map[string]any{"id": "a", "title": "Warm up"}, map[string]any{"id": "b"}},
		"musicList":     []any{map[string]any{"id": 5}},
	}
	got, err := FlattenStructureLists(context.Background(), values, fields, formatters)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	want := model.Values{
		"name":          "Leg day",
		"structureList": []any{"a", "b"},
		"musicList":     []any{map[string]any{"musicId": 5, "workoutName": "Leg day"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("flatten mismatch (-want +got):\n%s", diff)
	}

	if _, err := FlattenStructureLists(context.Background(), values, fields, NewFormatters()); err == nil {
		t.Fatalf("expected unknown formatter error")
	}
}
