package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// OptionSource holds either an inline option list or a key into the options
// dictionary. Definitions write it as a JSON/YAML array or a bare string.
type OptionSource struct {
	Key    string
	Inline []Option
}

// OptionsKey builds a dictionary-backed source.
func OptionsKey(key string) OptionSource {
	return OptionSource{Key: strings.TrimSpace(key)}
}

// InlineOptions builds a source from literal options.
func InlineOptions(options ...Option) OptionSource {
	return OptionSource{Inline: append([]Option(nil), options...)}
}

// IsZero reports whether the source carries neither a key nor options.
func (s OptionSource) IsZero() bool {
	return s.Key == "" && len(s.Inline) == 0
}

// MarshalJSON writes the key as a string or the inline options as an array.
func (s OptionSource) MarshalJSON() ([]byte, error) {
	if s.Key != "" {
		return json.Marshal(s.Key)
	}
	if len(s.Inline) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(s.Inline)
}

// UnmarshalJSON accepts a string key or an array of options.
func (s *OptionSource) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = OptionSource{}
		return nil
	}
	if trimmed[0] == '"' {
		var key string
		if err := json.Unmarshal(trimmed, &key); err != nil {
			return fmt.Errorf("model: options key: %w", err)
		}
		*s = OptionsKey(key)
		return nil
	}
	var inline []Option
	if err := json.Unmarshal(trimmed, &inline); err != nil {
		return fmt.Errorf("model: options list: %w", err)
	}
	*s = OptionSource{Inline: inline}
	return nil
}

// MarshalYAML mirrors MarshalJSON.
func (s OptionSource) MarshalYAML() (any, error) {
	if s.Key != "" {
		return s.Key, nil
	}
	if len(s.Inline) == 0 {
		return nil, nil
	}
	return s.Inline, nil
}

// UnmarshalYAML accepts a scalar key or a sequence of options.
func (s *OptionSource) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*s = OptionSource{}
			return nil
		}
		*s = OptionsKey(node.Value)
		return nil
	case yaml.SequenceNode:
		var inline []Option
		if err := node.Decode(&inline); err != nil {
			return fmt.Errorf("model: options list: %w", err)
		}
		*s = OptionSource{Inline: inline}
		return nil
	default:
		return fmt.Errorf("model: options must be a key or a list (line %d)", node.Line)
	}
}
