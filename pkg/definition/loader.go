package definition

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/orchestrator"
	"github.com/goliatone/go-formdesk/pkg/table"
)

// Form is an editor definition: the fields plus the header configuration.
type Form struct {
	ID     string              `json:"id" yaml:"id"`
	Title  string              `json:"title,omitempty" yaml:"title,omitempty"`
	Fields []model.Field       `json:"fields" yaml:"fields"`
	Header orchestrator.Config `json:"header,omitempty" yaml:"header,omitempty"`
	// Source is the file the definition was read from.
	Source string `json:"-" yaml:"-"`
}

// Model returns the form as a model.Form.
func (f Form) Model() model.Form {
	return model.Form{ID: f.ID, Title: f.Title, Fields: f.Fields}
}

// Table is a list table definition.
type Table struct {
	table.Config `yaml:",inline"`
	Source       string `json:"-" yaml:"-"`
}

// Store holds the loaded definitions by id.
type Store struct {
	forms  map[string]Form
	tables map[string]Table
}

// NewStore builds a store from in-memory definitions.
func NewStore(forms []Form, tables []Table) (*Store, error) {
	store := &Store{forms: map[string]Form{}, tables: map[string]Table{}}
	for _, f := range forms {
		if err := store.addForm(f.ID, f, f.Source); err != nil {
			return nil, err
		}
	}
	for _, t := range tables {
		if err := store.addTable(t.ID, t, t.Source); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// LoadFS walks fsys and parses every JSON/YAML document. When fsys is nil
// the returned store is empty.
func LoadFS(fsys fs.FS) (*Store, error) {
	store := &Store{forms: map[string]Form{}, tables: map[string]Table{}}
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDefinitionFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("definition: read %s: %w", path, err)
		}
		doc, err := parseDocument(data, path)
		if err != nil {
			return err
		}

		for id, raw := range doc.Forms {
			if err := store.addForm(id, raw, path); err != nil {
				return err
			}
		}
		for id, raw := range doc.Tables {
			if err := store.addTable(id, raw, path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Form returns the form definition with id.
func (s *Store) Form(id string) (Form, bool) {
	if s == nil {
		return Form{}, false
	}
	f, ok := s.forms[id]
	return f, ok
}

// Table returns the table definition with id.
func (s *Store) Table(id string) (Table, bool) {
	if s == nil {
		return Table{}, false
	}
	t, ok := s.tables[id]
	return t, ok
}

// FormIDs lists the form ids, sorted.
func (s *Store) FormIDs() []string {
	if s == nil {
		return nil
	}
	return sortedKeys(s.forms)
}

// TableIDs lists the table ids, sorted.
func (s *Store) TableIDs() []string {
	if s == nil {
		return nil
	}
	return sortedKeys(s.tables)
}

// Empty reports whether the store holds any definition.
func (s *Store) Empty() bool {
	return s == nil || (len(s.forms) == 0 && len(s.tables) == 0)
}

type documentFile struct {
	Forms  map[string]Form  `json:"forms" yaml:"forms"`
	Tables map[string]Table `json:"tables" yaml:"tables"`
}

func parseDocument(data []byte, source string) (documentFile, error) {
	var doc documentFile
	if len(strings.TrimSpace(string(data))) == 0 {
		return documentFile{}, fmt.Errorf("definition: file %s is empty", source)
	}

	jsonErr := json.Unmarshal(data, &doc)
	if jsonErr == nil {
		return doc, nil
	}
	doc = documentFile{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return documentFile{}, fmt.Errorf("definition: parse %s: %w", source, err)
	}
	return doc, nil
}

func (s *Store) addForm(key string, raw Form, source string) error {
	id := strings.TrimSpace(key)
	if id == "" {
		return fmt.Errorf("definition: file %s defines a form with an empty id", source)
	}
	if _, exists := s.forms[id]; exists {
		return fmt.Errorf("definition: duplicate form %q (file %s)", id, source)
	}
	fields, err := normaliseFields(raw.Fields, id, source)
	if err != nil {
		return err
	}
	raw.ID = id
	raw.Fields = fields
	raw.Source = source
	s.forms[id] = raw
	return nil
}

func (s *Store) addTable(key string, raw Table, source string) error {
	id := strings.TrimSpace(key)
	if id == "" {
		return fmt.Errorf("definition: file %s defines a table with an empty id", source)
	}
	if _, exists := s.tables[id]; exists {
		return fmt.Errorf("definition: duplicate table %q (file %s)", id, source)
	}
	if len(raw.Columns) == 0 {
		return fmt.Errorf("definition: table %q (file %s) has no columns", id, source)
	}
	raw.ID = id
	raw.Source = source
	s.tables[id] = raw
	return nil
}

// normaliseFields trims names and defaults empty types to input. Unknown
// type tags are kept as written so Lint can report them.
func normaliseFields(fields []model.Field, formID, source string) ([]model.Field, error) {
	out := make([]model.Field, 0, len(fields))
	for idx, field := range fields {
		field.Name = strings.TrimSpace(field.Name)
		if field.Name == "" {
			return nil, fmt.Errorf("definition: form %q (file %s) field %d has no name", formID, source, idx)
		}
		if strings.TrimSpace(string(field.Type)) == "" {
			field.Type = model.FieldTypeInput
		}
		if len(field.Fields) > 0 {
			nested, err := normaliseFields(field.Fields, formID, source)
			if err != nil {
				return nil, err
			}
			field.Fields = nested
		}
		out = append(out, field)
	}
	return out, nil
}

func isDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
