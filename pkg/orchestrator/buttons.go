package orchestrator

import (
	"github.com/goliatone/go-formdesk/pkg/render"
)

// Header button keys.
const (
	ButtonBack      = "back"
	ButtonSave      = "save"
	ButtonSaveDraft = "saveDraft"
)

// ButtonState is the form state the button set derives from.
type ButtonState struct {
	Dirty  bool
	Status string
	Saving bool
}

// Button is one header action.
type Button = render.Action

// StatusRule gates header buttons for records in one of Statuses. Screens
// disagree on which statuses lock the editor, so the rules are per form.
type StatusRule struct {
	Statuses    []string `json:"statuses" yaml:"statuses"`
	DisableSave bool     `json:"disableSave,omitempty" yaml:"disableSave,omitempty"`
	Hide        []string `json:"hide,omitempty" yaml:"hide,omitempty"`
}

func (r StatusRule) matches(status string) bool {
	for _, candidate := range r.Statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

// Buttons computes the header actions. Save is disabled while the form is
// clean or a save is running; draft mode adds a saveDraft action.
func (o *Orchestrator) Buttons(state ButtonState) []Button {
	hidden := map[string]bool{}
	gated := false
	for _, rule := range o.cfg.StatusRules {
		if !rule.matches(state.Status) {
			continue
		}
		gated = gated || rule.DisableSave
		for _, key := range rule.Hide {
			hidden[key] = true
		}
	}
	disabled := !state.Dirty || state.Saving || gated

	buttons := []Button{{Key: ButtonBack, Text: o.cfg.text(o.cfg.Labels.Back, "Back"), Icon: "arrow-left"}}
	if o.cfg.Draft.Enabled {
		buttons = append(buttons, Button{
			Key:      ButtonSaveDraft,
			Text:     o.cfg.text(o.cfg.Labels.SaveDraft, "Save Draft"),
			Type:     "default",
			Disabled: disabled,
		})
	}
	buttons = append(buttons, Button{
		Key:         ButtonSave,
		Text:        o.cfg.text(o.cfg.Labels.Save, "Save"),
		Icon:        "save",
		Type:        "primary",
		Disabled:    disabled,
		StatusModal: o.cfg.StatusModal,
	})

	out := buttons[:0]
	for _, button := range buttons {
		if !hidden[button.Key] {
			out = append(out, button)
		}
	}
	return out
}

// CurrentButtons derives the buttons from the live form state.
func (o *Orchestrator) CurrentButtons() []Button {
	status, _ := o.form.Value("status")
	statusText, _ := status.(string)
	return o.Buttons(ButtonState{
		Dirty:  o.form.Dirty(),
		Status: statusText,
		Saving: o.State() != StateIdle,
	})
}
