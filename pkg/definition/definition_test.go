package definition_test

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formdesk/pkg/definition"
	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/options"
	"github.com/goliatone/go-formdesk/pkg/table"
)

func TestLoadFS_Embedded(t *testing.T) {
	store, err := definition.LoadFS(definition.EmbeddedFS())
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	if diff := cmp.Diff([]string{"exercise", "workout"}, store.FormIDs()); diff != "" {
		t.Fatalf("form ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"exercises", "workouts"}, store.TableIDs()); diff != "" {
		t.Fatalf("table ids mismatch (-want +got):\n%s", diff)
	}

	exercise, ok := store.Form("exercise")
	if !ok {
		t.Fatalf("exercise form missing")
	}
	if exercise.Fields[0].Type != model.FieldTypeInput {
		t.Fatalf("expected empty type to default to input, got %q", exercise.Fields[0].Type)
	}
	gender, _ := model.Find(exercise.Fields, "gender")
	if gender.Options.Key != "BizExerciseGenderEnums" {
		t.Fatalf("options key not parsed: %+v", gender.Options)
	}
	if !exercise.Header.StatusModal || len(exercise.Header.StatusRules) != 1 {
		t.Fatalf("header not parsed: %+v", exercise.Header)
	}

	workout, _ := store.Form("workout")
	if !workout.Header.Draft.Enabled {
		t.Fatalf("expected draft mode on workout")
	}
	group, _ := findGroup(workout.Fields, "exerciseGroup")
	if len(group.Fields) != 3 || group.GroupFields[2].RecordKey != "exerciseList" {
		t.Fatalf("group not parsed: %+v", group)
	}

	exercises, _ := store.Table("exercises")
	if exercises.Endpoint != "/exercise/page" || len(exercises.Columns) != 9 {
		t.Fatalf("table not parsed: %+v", exercises.Config)
	}
	if exercises.Columns[4].VisibleColumn == nil || *exercises.Columns[4].VisibleColumn {
		t.Fatalf("expected difficulty hidden by default")
	}
	if diff := cmp.Diff(table.ActionRule{In: []any{"ENABLED"}}, exercises.Columns[8].ShowWhen["disable"]); diff != "" {
		t.Fatalf("showWhen mismatch (-want +got):\n%s", diff)
	}

	dict, err := options.LoadFS(definition.EmbeddedFS())
	if err != nil {
		t.Fatalf("options.LoadFS: %v", err)
	}
	if issues := definition.Lint(store, dict); len(issues) != 0 {
		t.Fatalf("expected bundled definitions to lint clean, got %v", issues)
	}
}

func findGroup(fields []model.Field, name string) (model.Field, bool) {
	for _, f := range fields {
		if f.IsGroup && f.Name == name {
			return f, true
		}
	}
	return model.Field{}, false
}

func TestLoadFS_JSON(t *testing.T) {
	fsys := fstest.MapFS{
		"forms/category.json": {Data: []byte(`{
			"forms": {"category": {"title": "Category", "fields": [{"name": "name", "required": true}, {"name": "kind", "type": "select", "options": [{"label": "A", "value": "a"}]}]}},
			"tables": {"categories": {"columns": [{"title": "Name", "dataIndex": "name"}]}}
		}`)},
		"README.md": {Data: []byte("ignored")},
	}
	store, err := definition.LoadFS(fsys)
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	form, ok := store.Form("category")
	if !ok {
		t.Fatalf("category missing")
	}
	want := model.Form{
		ID:    "category",
		Title: "Category",
		Fields: []model.Field{
			{Name: "name", Type: model.FieldTypeInput, Required: true},
			{Name: "kind", Type: model.FieldTypeSelect, Options: model.InlineOptions(model.Option{Label: "A", Value: "a"})},
		},
	}
	if diff := cmp.Diff(want, form.Model()); diff != "" {
		t.Fatalf("form mismatch (-want +got):\n%s", diff)
	}
	if form.Source != "forms/category.json" {
		t.Fatalf("source = %q", form.Source)
	}
	tbl, _ := store.Table("categories")
	if tbl.ID != "categories" {
		t.Fatalf("table id = %q", tbl.ID)
	}
}

func TestLoadFS_Errors(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"duplicate form": {
			"a.yaml": {Data: []byte("forms:\n  x:\n    fields: [{name: a}]\n")},
			"b.yaml": {Data: []byte("forms:\n  x:\n    fields: [{name: b}]\n")},
		},
		"nameless field": {
			"a.yaml": {Data: []byte("forms:\n  x:\n    fields: [{label: A}]\n")},
		},
		"empty table": {
			"a.yaml": {Data: []byte("tables:\n  t:\n    columns: []\n")},
		},
		"empty file": {
			"a.yaml": {Data: []byte("  \n")},
		},
		"invalid": {
			"a.yaml": {Data: []byte("forms: [\n")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := definition.LoadFS(fsys); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLint(t *testing.T) {
	store, err := definition.NewStore(
		[]definition.Form{{
			ID:     "broken",
			Source: "mem",
			Fields: []model.Field{
				{Name: "name", Type: model.FieldTypeInput},
				{Name: "name", Type: "fancy"},
				{Name: "kind", Type: model.FieldTypeSelect, Options: model.OptionsKey("Missing")},
				{Name: "when", Type: model.FieldTypeDateRange, Keys: []string{"only"}},
				{Name: "preview", Type: model.FieldTypeDisplayText, Dependencies: []string{"ghost"}, Content: "values.("},
				{Name: "choice", Type: model.FieldTypeSelect},
			},
		}},
		[]definition.Table{{
			Source: "mem",
			Config: table.Config{
				ID: "rows",
				Columns: []table.Column{
					{DataIndex: "id"},
					{Key: "id"},
					{Key: "actions", ActionButtons: []string{"edit"}, Sorter: true, ShowWhen: map[string]table.ActionRule{
						"edit":   {In: []any{"ENABLED"}},
						"delete": {In: []any{"DRAFT"}},
					}},
				},
				Filters: []table.FilterSection{{Key: "status", Mode: "many"}},
			},
		}},
	)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	issues := definition.Lint(store, options.New(nil))
	var got []string
	for _, issue := range issues {
		got = append(got, issue.Kind+" "+issue.Path+": "+firstWords(issue.Message))
	}
	want := []string{
		"form name: field name is declared",
		"form name: unknown field type \"fancy\"",
		"form kind: options key \"Missing\" is",
		"form when: dateRange keys must name",
		"form preview: dependency \"ghost\" is not",
		"form preview: content does not compile:",
		"form choice: select has no options",
		"table id: duplicate column",
		"table actions: action column cannot sort",
		"table actions: showWhen names \"delete\" which",
		"table filters.status: mode \"many\" must be",
		"table filters.status: filter has no options",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(issues[0].String(), "mem: form broken: name:") {
		t.Fatalf("unexpected issue string %q", issues[0].String())
	}
}

func firstWords(s string) string {
	parts := strings.Fields(s)
	if len(parts) > 4 {
		parts = parts[:4]
	}
	return strings.Join(parts, " ")
}
