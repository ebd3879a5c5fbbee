package render

// RenderOptions describe per-request data that renderers use without
// touching the node tree.
type RenderOptions struct {
	// Errors surfaces validation feedback keyed by field name. Renderers show
	// the messages inline next to the matching control.
	Errors map[string][]string
	// FormErrors are messages that could not be attached to a field.
	FormErrors []string
	// Notice is an optional toast or banner line (save result, notification
	// errors).
	Notice string
}
