package orchestrator

import (
	"strings"

	"github.com/goliatone/go-formdesk/pkg/model"
)

// Save operations derived for the conventional endpoint.
const (
	OperationAdd    = "add"
	OperationUpdate = "update"
	OperationSave   = "save"
)

// Endpoint returns the conventional save URL "/{module}/{operation}". The
// module defaults to the first segment of the screen path. System modules
// distinguish add from update by the presence of an id; other modules use
// save.
func (c Config) Endpoint(data model.Values) string {
	module := strings.Trim(c.Module, "/")
	if module == "" {
		module = firstSegment(c.Path)
	}
	operation := strings.Trim(c.Operation, "/")
	if operation == "" {
		operation = OperationSave
		if c.isSystemModule(module) {
			operation = OperationAdd
			if hasID(data) {
				operation = OperationUpdate
			}
		}
	}
	return "/" + module + "/" + operation
}

func (c Config) isSystemModule(module string) bool {
	for _, candidate := range c.SystemModules {
		if strings.Trim(candidate, "/") == module {
			return true
		}
	}
	return false
}

func firstSegment(path string) string {
	for _, segment := range strings.Split(path, "/") {
		if segment = strings.TrimSpace(segment); segment != "" {
			return segment
		}
	}
	return ""
}

func hasID(data model.Values) bool {
	id, ok := data["id"]
	if !ok || id == nil {
		return false
	}
	if s, isString := id.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}
