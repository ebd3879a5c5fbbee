package validation

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formdesk/pkg/model"
)

// ComposeOptions carries the field attributes the composer needs.
type ComposeOptions struct {
	Required        bool
	Label           string
	Type            string
	RequiredMessage string
}

// ComposeRules copies the declared rules and, when the field is required and
// no declared rule already is, appends one synthesized required rule.
func ComposeRules(declared []model.Rule, opts ComposeOptions) []model.Rule {
	rules := make([]model.Rule, 0, len(declared)+1)
	rules = append(rules, declared...)
	if !opts.Required {
		return rules
	}
	for _, rule := range declared {
		if rule.Required {
			return rules
		}
	}
	return append(rules, model.Rule{
		Required: true,
		Message:  RequiredMessage(opts),
	})
}

// RulesFor composes the rule list for a field descriptor.
func RulesFor(field model.Field) []model.Rule {
	return ComposeRules(field.Rules, ComposeOptions{
		Required:        field.Required,
		Label:           field.DisplayLabel(),
		Type:            string(field.Type),
		RequiredMessage: field.RequiredMessage,
	})
}

// RequiredMessage builds the synthesized required message.
func RequiredMessage(opts ComposeOptions) string {
	if msg := strings.TrimSpace(opts.RequiredMessage); msg != "" {
		return msg
	}
	return fmt.Sprintf("Please %s %s", RequiredVerb(opts.Type), opts.Label)
}

// RequiredVerb maps a type tag onto the verb used by required messages.
func RequiredVerb(fieldType string) string {
	switch fieldType {
	case "select", "single", "multiple", "date", "datepicker", "dateRange":
		return "select"
	case "upload":
		return "upload"
	default:
		return "enter"
	}
}
