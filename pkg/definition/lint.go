package definition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-formdesk/pkg/expr"
	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/options"
	"github.com/goliatone/go-formdesk/pkg/structure"
)

// Issue is one lint finding.
type Issue struct {
	Source  string `json:"source"`
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s %s: %s: %s", i.Source, i.Kind, i.ID, i.Path, i.Message)
}

// Lint checks every definition in the store. Option keys are only verified
// when dict is non-nil.
func Lint(store *Store, dict *options.Dictionary) []Issue {
	if store == nil {
		return nil
	}
	eval := expr.New()
	var issues []Issue
	for _, id := range store.FormIDs() {
		form, _ := store.Form(id)
		issues = append(issues, lintForm(form, dict, eval)...)
	}
	for _, id := range store.TableIDs() {
		t, _ := store.Table(id)
		issues = append(issues, lintTable(t, dict)...)
	}
	return issues
}

func lintForm(form Form, dict *options.Dictionary, eval *expr.Evaluator) []Issue {
	report := func(path, format string, args ...any) Issue {
		return Issue{Source: form.Source, Kind: "form", ID: form.ID, Path: path, Message: fmt.Sprintf(format, args...)}
	}
	var issues []Issue

	names := map[string]int{}
	for _, field := range model.Flatten(form.Fields) {
		names[field.Name]++
	}
	for _, group := range form.Fields {
		if group.IsGroup {
			names[structure.ListKey(group)]++
		}
	}
	dups := make([]string, 0)
	for name, count := range names {
		if count > 1 {
			dups = append(dups, name)
		}
	}
	sort.Strings(dups)
	for _, name := range dups {
		issues = append(issues, report(name, "field name is declared %d times", names[name]))
	}

	for _, field := range model.Flatten(form.Fields) {
		path := field.Name
		if !field.Type.Known() {
			issues = append(issues, report(path, "unknown field type %q renders as input", field.Type))
		}
		for _, dep := range field.Dependencies {
			if _, ok := names[dep]; !ok {
				issues = append(issues, report(path, "dependency %q is not a field of this form", dep))
			}
		}
		if key := field.Options.Key; key != "" && dict != nil && !dict.Has(key) {
			issues = append(issues, report(path, "options key %q is not in the dictionary", key))
		}
		if field.Type == model.FieldTypeSelect && field.Options.IsZero() {
			issues = append(issues, report(path, "select has no options"))
		}
		if field.Type == model.FieldTypeDateRange && len(field.Keys) != 0 && len(field.Keys) != 2 {
			issues = append(issues, report(path, "dateRange keys must name exactly two fields, got %d", len(field.Keys)))
		}
		if field.Mode != "" && field.Mode != model.ModeSingle && field.Mode != model.ModeMultiple {
			issues = append(issues, report(path, "mode %q must be single or multiple", field.Mode))
		}
		for _, source := range []struct{ name, value string }{{"visibleWhen", field.VisibleWhen}, {"content", field.Content}} {
			if strings.TrimSpace(source.value) == "" {
				continue
			}
			if err := eval.Check(source.value); err != nil {
				issues = append(issues, report(path, "%s does not compile: %v", source.name, err))
			}
		}
	}

	for _, name := range form.Header.Draft.Fields {
		if _, ok := names[name]; !ok {
			issues = append(issues, report("header.draft.fields", "draft field %q is not a field of this form", name))
		}
	}
	return issues
}

func lintTable(t Table, dict *options.Dictionary) []Issue {
	report := func(path, format string, args ...any) Issue {
		return Issue{Source: t.Source, Kind: "table", ID: t.ID, Path: path, Message: fmt.Sprintf(format, args...)}
	}
	var issues []Issue

	seen := map[string]bool{}
	for idx, col := range t.Columns {
		id := col.ID()
		if id == "" {
			issues = append(issues, report(fmt.Sprintf("columns[%d]", idx), "column has no key or dataIndex"))
			continue
		}
		if seen[id] {
			issues = append(issues, report(id, "duplicate column"))
		}
		seen[id] = true
		if col.IsAction() && col.Sorter {
			issues = append(issues, report(id, "action column cannot sort"))
		}
		buttons := make([]string, 0, len(col.ShowWhen))
		for button := range col.ShowWhen {
			buttons = append(buttons, button)
		}
		sort.Strings(buttons)
		for _, button := range buttons {
			if !contains(col.ActionButtons, button) {
				issues = append(issues, report(id, "showWhen names %q which is not an action button", button))
			}
		}
		if key := col.Options.Key; key != "" && dict != nil && !dict.Has(key) {
			issues = append(issues, report(id, "options key %q is not in the dictionary", key))
		}
	}
	for _, section := range t.Filters {
		path := "filters." + section.Key
		if section.Mode != "" && section.Mode != model.ModeSingle && section.Mode != model.ModeMultiple {
			issues = append(issues, report(path, "mode %q must be single or multiple", section.Mode))
		}
		if section.Options.IsZero() {
			issues = append(issues, report(path, "filter has no options"))
		}
		if key := section.Options.Key; key != "" && dict != nil && !dict.Has(key) {
			issues = append(issues, report(path, "options key %q is not in the dictionary", key))
		}
	}
	return issues
}

func contains(list []string, value string) bool {
	for _, candidate := range list {
		if candidate == value {
			return true
		}
	}
	return false
}
