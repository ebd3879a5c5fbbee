package form

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/validation"
)

func userFields() []model.Field {
	return []model.Field{
		{Name: "email", Type: model.FieldTypeInput, Label: "Email", Required: true},
		{Name: "name", Type: model.FieldTypeInput, Label: "Name", Required: true},
		{Name: "status", Type: model.FieldTypeSelect, Default: "DRAFT"},
		{Name: "internalNote", Type: model.FieldTypeTextarea, Hidden: true},
		{Name: "premiumLevel", Type: model.FieldTypeSelect, Label: "Premium level", Required: true, VisibleWhen: "values.premium == 1"},
		{Name: "premium", Type: model.FieldTypeSwitch},
	}
}

type staticDefaults map[model.FieldType]any

func (s staticDefaults) Default(field model.Field) any {
	return s[field.Type]
}

func TestSetInitialValuesPendingUntilConnect(t *testing.T) {
	ctrl := New(userFields(), WithDefaults(staticDefaults{model.FieldTypeSwitch: 0}))

	if applied := ctrl.SetInitialValues(model.Values{"email": "a@b.co"}); applied {
		t.Fatalf("seed must stay pending before connect")
	}
	if _, ok := ctrl.Value("email"); ok {
		t.Fatalf("pending values must not be visible yet")
	}

	ctrl.Connect()
	want := model.Values{"email": "a@b.co", "status": "DRAFT", "premium": 0}
	if diff := cmp.Diff(want, ctrl.GetValues(true)); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if ctrl.Dirty() {
		t.Fatalf("seeded form must be clean")
	}
}

func TestSetInitialValuesGuardsRepeats(t *testing.T) {
	ctrl := New(userFields())
	ctrl.Connect()

	var notifications int
	ctrl.Subscribe(func(Change) { notifications++ })

	seed := model.Values{"email": "a@b.co", "tags": []any{"x"}}
	if !ctrl.SetInitialValues(seed) {
		t.Fatalf("first seed must apply")
	}
	ctrl.SetValues(model.Values{"name": "Ada"})
	if !ctrl.Dirty() {
		t.Fatalf("expected dirty after edit")
	}

	if ctrl.SetInitialValues(model.Values{"email": "a@b.co", "tags": []any{"x"}}) {
		t.Fatalf("identical seed content must be ignored")
	}
	if got, _ := ctrl.Value("name"); got != "Ada" {
		t.Fatalf("ignored seed must not reset edits, got %v", got)
	}
	if notifications != 2 {
		t.Fatalf("expected 2 notifications, got %d", notifications)
	}

	if !ctrl.SetInitialValues(model.Values{"email": "c@d.co"}) {
		t.Fatalf("different seed must apply")
	}
	if ctrl.Dirty() {
		t.Fatalf("reseed must clear dirty")
	}
	if _, ok := ctrl.Value("name"); ok {
		t.Fatalf("reseed must drop previous edits")
	}
}

func TestSetValuesNotifiesChangedNames(t *testing.T) {
	ctrl := New(userFields())
	ctrl.Connect()
	ctrl.SetInitialValues(model.Values{"email": "a@b.co"})

	var changes []Change
	unsubscribe := ctrl.Subscribe(func(c Change) { changes = append(changes, c) })

	ctrl.SetValues(model.Values{"email": "a@b.co", "name": "Ada", "address.city": "Lisbon"})
	if len(changes) != 1 {
		t.Fatalf("expected one notification, got %d", len(changes))
	}
	if diff := cmp.Diff([]string{"address.city", "name"}, changes[0].Names); diff != "" {
		t.Fatalf("changed names mismatch (-want +got):\n%s", diff)
	}
	if !changes[0].Dirty {
		t.Fatalf("change should report dirty")
	}
	if got, _ := ctrl.Value("address.city"); got != "Lisbon" {
		t.Fatalf("dotted path not written, got %v", got)
	}

	ctrl.SetValues(model.Values{"name": "Ada"})
	if len(changes) != 1 {
		t.Fatalf("unchanged values must not notify")
	}

	unsubscribe()
	ctrl.SetValues(model.Values{"name": "Grace"})
	if len(changes) != 1 {
		t.Fatalf("unsubscribed callback was called")
	}
}

func TestGetValuesHidesHiddenFields(t *testing.T) {
	ctrl := New(userFields())
	ctrl.Connect()
	ctrl.SetInitialValues(model.Values{
		"email":        "a@b.co",
		"internalNote": "secret",
		"premiumLevel": "GOLD",
		"premium":      0,
		"extra":        "kept",
	})

	got := ctrl.GetValues(false)
	want := model.Values{"email": "a@b.co", "status": "DRAFT", "premium": 0, "extra": "kept"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("visible values mismatch (-want +got):\n%s", diff)
	}

	ctrl.SetValues(model.Values{"premium": 1})
	if _, ok := ctrl.GetValues(false)["premiumLevel"]; !ok {
		t.Fatalf("premiumLevel should be visible once premium is on")
	}
	if _, ok := ctrl.GetValues(true)["internalNote"]; !ok {
		t.Fatalf("includeHidden must keep hidden fields")
	}
}

func TestValidateFields(t *testing.T) {
	ctrl := New(userFields())
	ctrl.Connect()
	ctrl.SetInitialValues(model.Values{"email": ""})

	_, err := ctrl.ValidateFields(context.Background())
	fieldErrs, ok := validation.AsFieldErrors(err)
	if !ok {
		t.Fatalf("expected field errors, got %v", err)
	}
	want := []validation.FieldError{
		{Name: "email", Errors: []string{"Please enter Email"}},
		{Name: "name", Errors: []string{"Please enter Name"}},
	}
	if diff := cmp.Diff(want, fieldErrs.ErrorFields); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string][]string{"email": {"Please enter Email"}, "name": {"Please enter Name"}}, ctrl.Errors()); diff != "" {
		t.Fatalf("stored errors mismatch (-want +got):\n%s", diff)
	}

	ctrl.SetValues(model.Values{"email": "a@b.co"})
	if _, ok := ctrl.Errors()["email"]; ok {
		t.Fatalf("editing a field must clear its error")
	}

	values, err := ctrl.ValidateFields(context.Background(), "email")
	if err != nil {
		t.Fatalf("subset validation should pass: %v", err)
	}
	if values["email"] != "a@b.co" {
		t.Fatalf("unexpected values %v", values)
	}
	if _, ok := ctrl.Errors()["name"]; !ok {
		t.Fatalf("subset validation must leave other errors untouched")
	}
}

func TestValidateFieldsExpandsGroups(t *testing.T) {
	fields := []model.Field{{
		Name:    "exerciseGroup",
		IsGroup: true,
		Fields:  []model.Field{{Name: "structureName", Label: "Structure name", Type: model.FieldTypeInput, Required: true}},
	}}
	ctrl := New(fields)
	ctrl.Connect()
	ctrl.SetInitialValues(model.Values{"structureName": "Warm up", "structureName1": ""})

	_, err := ctrl.ValidateFields(context.Background(), "structureName")
	fieldErrs, ok := validation.AsFieldErrors(err)
	if !ok {
		t.Fatalf("expected field errors, got %v", err)
	}
	want := []validation.FieldError{{Name: "structureName1", Errors: []string{"Please enter Structure name"}}}
	if diff := cmp.Diff(want, fieldErrs.ErrorFields); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestResetAndMarkClean(t *testing.T) {
	ctrl := New(userFields())
	ctrl.Connect()
	ctrl.SetInitialValues(model.Values{"name": "Ada"})

	ctrl.SetValues(model.Values{"name": "Grace"})
	ctrl.ResetFields()
	if got, _ := ctrl.Value("name"); got != "Ada" || ctrl.Dirty() {
		t.Fatalf("reset should restore seed, got %v dirty=%v", got, ctrl.Dirty())
	}

	ctrl.SetValues(model.Values{"name": "Grace"})
	ctrl.MarkClean()
	if ctrl.Dirty() {
		t.Fatalf("mark clean must clear dirty")
	}
	ctrl.SetValues(model.Values{"name": "Linus"})
	ctrl.ResetFields()
	if got, _ := ctrl.Value("name"); got != "Grace" {
		t.Fatalf("reset after save should restore saved values, got %v", got)
	}
}

func TestSetPathLists(t *testing.T) {
	root := map[string]any{"items": []any{map[string]any{"id": 1}}}
	if err := setPath(root, "items.0.title", "A"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := setPath(root, "items.1.title", "B"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := setPath(root, "items.5.title", "C"); err == nil {
		t.Fatalf("expected sparse index error")
	}
	want := map[string]any{"items": []any{
		map[string]any{"id": 1, "title": "A"},
		map[string]any{"title": "B"},
	}}
	if diff := cmp.Diff(want, root); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if got, ok := getPath(root, "items.1.title"); !ok || got != "B" {
		t.Fatalf("get = %v, %v", got, ok)
	}
}
