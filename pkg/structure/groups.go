package structure

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formdesk/pkg/model"
)

// SuffixedName returns the flat form name of a group field instance: the
// first instance keeps the bare name, later ones append their index.
func SuffixedName(name string, index int) string {
	if index <= 0 {
		return name
	}
	return name + strconv.Itoa(index)
}

// Groups returns the repeatable group fields declared at the top level.
func Groups(fields []model.Field) []model.Field {
	var out []model.Field
	for _, field := range fields {
		if field.IsGroup {
			out = append(out, field)
		}
	}
	return out
}

// ListKey is the backend record key holding the group instances.
func ListKey(group model.Field) string {
	return group.Name + "List"
}

// GroupSet stores the instances of one repeatable group as an arena indexed
// by (instance, field name). Suffixed names only exist at the Flatten and
// ExpandGroups boundary.
type GroupSet struct {
	group     model.Field
	names     []string
	instances []map[string]any
}

// NewGroupSet creates an empty set for a group field.
func NewGroupSet(group model.Field) *GroupSet {
	return &GroupSet{group: group, names: groupFieldNames(group)}
}

// Len returns the number of instances.
func (g *GroupSet) Len() int {
	return len(g.instances)
}

// Add appends an instance seeded with the nested field defaults and returns
// its index.
func (g *GroupSet) Add() int {
	instance := make(map[string]any, len(g.names))
	for _, field := range model.Flatten(g.group.Fields) {
		if field.Default != nil {
			instance[field.Name] = model.DeepCopy(field.Default)
		}
	}
	g.instances = append(g.instances, instance)
	return len(g.instances) - 1
}

// Remove deletes an instance; later instances shift down one index.
func (g *GroupSet) Remove(index int) error {
	if err := g.check(index); err != nil {
		return err
	}
	g.instances = append(g.instances[:index:index], g.instances[index+1:]...)
	return nil
}

// Duplicate copies an instance and inserts it right after the source.
func (g *GroupSet) Duplicate(index int) (int, error) {
	if err := g.check(index); err != nil {
		return -1, err
	}
	copied, _ := model.DeepCopy(g.instances[index]).(map[string]any)
	out := make([]map[string]any, 0, len(g.instances)+1)
	out = append(out, g.instances[:index+1]...)
	out = append(out, copied)
	out = append(out, g.instances[index+1:]...)
	g.instances = out
	return index + 1, nil
}

// Get reads one field of an instance.
func (g *GroupSet) Get(index int, name string) (any, bool) {
	if g.check(index) != nil {
		return nil, false
	}
	value, ok := g.instances[index][name]
	return value, ok
}

// Set writes one field of an instance.
func (g *GroupSet) Set(index int, name string, value any) error {
	if err := g.check(index); err != nil {
		return err
	}
	if !g.knows(name) {
		return fmt.Errorf("structure: group %q has no field %q", g.group.Name, name)
	}
	g.instances[index][name] = value
	return nil
}

// Flatten renders the arena with the suffix convention. Indices are always
// contiguous, so removals and duplicates renumber the names.
func (g *GroupSet) Flatten() model.Values {
	out := make(model.Values, len(g.instances)*len(g.names))
	for idx, instance := range g.instances {
		for _, name := range g.names {
			if value, ok := instance[name]; ok {
				out[SuffixedName(name, idx)] = model.DeepCopy(value)
			}
		}
	}
	return out
}

// Names returns every suffixed key the set currently occupies.
func (g *GroupSet) Names() []string {
	out := make([]string, 0, len(g.instances)*len(g.names))
	for idx := range g.instances {
		for _, name := range g.names {
			out = append(out, SuffixedName(name, idx))
		}
	}
	return out
}

func (g *GroupSet) check(index int) error {
	if index < 0 || index >= len(g.instances) {
		return fmt.Errorf("structure: group %q has no instance %d", g.group.Name, index)
	}
	return nil
}

func (g *GroupSet) knows(name string) bool {
	for _, candidate := range g.names {
		if candidate == name {
			return true
		}
	}
	return false
}

// ExpandGroups reads suffixed form values back into an arena.
func ExpandGroups(group model.Field, values model.Values) *GroupSet {
	set := NewGroupSet(group)
	count := InstanceCount(group, values)
	for idx := 0; idx < count; idx++ {
		instance := make(map[string]any, len(set.names))
		for _, name := range set.names {
			if value, ok := values[SuffixedName(name, idx)]; ok {
				instance[name] = model.DeepCopy(value)
			}
		}
		set.instances = append(set.instances, instance)
	}
	return set
}

// InstanceCount returns one past the highest instance index present in
// values for any nested field of the group.
func InstanceCount(group model.Field, values model.Values) int {
	names := groupFieldNames(group)
	count := 0
	for key := range values {
		for _, name := range names {
			idx, ok := suffixIndex(key, name)
			if ok && idx+1 > count {
				count = idx + 1
			}
		}
	}
	return count
}

func suffixIndex(key, name string) (int, bool) {
	if key == name {
		return 0, true
	}
	if !strings.HasPrefix(key, name) {
		return 0, false
	}
	digits := key[len(name):]
	if digits == "" || digits[0] == '0' {
		return 0, false
	}
	idx, err := strconv.Atoi(digits)
	if err != nil || idx <= 0 {
		return 0, false
	}
	return idx, true
}

func groupFieldNames(group model.Field) []string {
	nested := model.Flatten(group.Fields)
	names := make([]string, 0, len(nested)+len(group.GroupFields))
	seen := make(map[string]struct{}, cap(names))
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for _, field := range nested {
		add(field.Name)
	}
	for _, mapping := range group.GroupFields {
		add(mapping.Name)
	}
	return names
}
