package form

import (
	"fmt"
	"strconv"
	"strings"
)

// getPath resolves a dotted path (a.b.0.c) against nested maps and slices.
func getPath(root map[string]any, path string) (any, bool) {
	if root == nil || path == "" {
		return nil, false
	}
	if value, ok := root[path]; ok {
		return value, true
	}
	var current any = root
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// setPath writes value at a dotted path. Missing maps are created; list
// segments must address an existing element or the slot right after the
// last one.
func setPath(root map[string]any, path string, value any) error {
	if root == nil {
		return fmt.Errorf("form: values are nil")
	}
	if _, flat := root[path]; flat || !strings.Contains(path, ".") {
		root[path] = value
		return nil
	}
	segments := strings.Split(path, ".")
	if _, err := setIn(root, segments, value); err != nil {
		return fmt.Errorf("form: set %q: %w", path, err)
	}
	return nil
}

func setIn(node any, segments []string, value any) (any, error) {
	if len(segments) == 0 {
		return value, nil
	}
	head, rest := segments[0], segments[1:]

	switch typed := node.(type) {
	case map[string]any:
		child, err := setIn(typed[head], rest, value)
		if err != nil {
			return nil, err
		}
		typed[head] = child
		return typed, nil
	case []any:
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx > len(typed) {
			return nil, fmt.Errorf("invalid list index %q", head)
		}
		if idx == len(typed) {
			typed = append(typed, nil)
		}
		child, err := setIn(typed[idx], rest, value)
		if err != nil {
			return nil, err
		}
		typed[idx] = child
		return typed, nil
	case nil:
		if idx, err := strconv.Atoi(head); err == nil {
			if idx != 0 {
				return nil, fmt.Errorf("invalid list index %q", head)
			}
			return setIn([]any{}, segments, value)
		}
		return setIn(map[string]any{}, segments, value)
	default:
		return nil, fmt.Errorf("segment %q addresses a %T", head, node)
	}
}
