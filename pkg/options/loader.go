package options

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formdesk/pkg/model"
)

type documentFile struct {
	Options map[string][]model.Option `json:"options" yaml:"options"`
}

// LoadFS walks fsys and merges every JSON/YAML document with a top-level
// `options` map into a dictionary. Duplicate keys across files are rejected.
func LoadFS(fsys fs.FS) (*Dictionary, error) {
	entries := make(map[string][]model.Option)
	if fsys == nil {
		return New(entries), nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDocument(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("options: read %s: %w", path, err)
		}
		doc, err := parseDocument(data, path)
		if err != nil {
			return err
		}
		for key, list := range doc.Options {
			trimmed := strings.TrimSpace(key)
			if trimmed == "" {
				return fmt.Errorf("options: file %s defines an empty key", path)
			}
			if _, exists := entries[trimmed]; exists {
				return fmt.Errorf("options: duplicate key %q (file %s)", trimmed, path)
			}
			entries[trimmed] = list
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return New(entries), nil
}

func parseDocument(data []byte, source string) (documentFile, error) {
	var doc documentFile
	if strings.TrimSpace(string(data)) == "" {
		return doc, fmt.Errorf("options: file %s is empty", source)
	}
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	return documentFile{}, fmt.Errorf("options: parse %s: invalid JSON or YAML", source)
}

func isDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
