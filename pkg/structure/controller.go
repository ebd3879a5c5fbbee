package structure

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/validation"
)

// IDKey is the system key carrying an item's identity.
const IDKey = "id"

const maxIDAttempts = 16

// Item is one entry of a structured list panel.
type Item map[string]any

// ID returns the item id as a string.
func (i Item) ID() string {
	if i == nil {
		return ""
	}
	if v, ok := i[IDKey]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func (i Item) clone() Item {
	out, _ := model.DeepCopy(map[string]any(i)).(map[string]any)
	return Item(out)
}

// Option configures a Controller.
type Option func(*Controller)

// WithIDGenerator overrides the UUID default.
func WithIDGenerator(gen IDGenerator) Option {
	return func(c *Controller) {
		if gen != nil {
			c.ids = gen
		}
	}
}

// WithForm mirrors every panel mutation into the form state, which marks the
// form dirty and notifies its subscribers.
func WithForm(form model.FormHandle) Option {
	return func(c *Controller) {
		c.form = form
	}
}

// Controller owns the panels of every structured list field of one editor.
type Controller struct {
	mu        sync.Mutex
	ids       IDGenerator
	form      model.FormHandle
	fields    map[string]model.Field
	panels    map[string][]Item
	expanded  map[string]bool
	issuedIDs map[string]struct{}
}

// NewController registers the structured list fields found in fields.
func NewController(fields []model.Field, options ...Option) *Controller {
	c := &Controller{
		ids:       UUIDGenerator(),
		fields:    make(map[string]model.Field),
		panels:    make(map[string][]Item),
		expanded:  make(map[string]bool),
		issuedIDs: make(map[string]struct{}),
	}
	for _, field := range model.Flatten(fields) {
		if field.IsStructureList() {
			c.fields[field.Name] = field
			c.panels[field.Name] = nil
		}
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Panels returns the registered panel names.
func (c *Controller) Panels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.fields))
	for name := range c.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load replaces the items of a panel, typically with the list read from the
// backend record. Items without an id get one; duplicated ids are rejected
// and leave the panel unchanged.
func (c *Controller) Load(panel string, items []map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.fields[panel]; !ok {
		return fmt.Errorf("structure: unknown panel %q", panel)
	}

	loaded := make([]Item, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for idx, raw := range items {
		item := Item(raw).clone()
		id := item.ID()
		if id == "" {
			var err error
			if id, err = c.nextID(seen); err != nil {
				return err
			}
			item[IDKey] = id
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("structure: panel %q item %d reuses id %q", panel, idx, id)
		}
		seen[id] = struct{}{}
		loaded = append(loaded, item)
	}

	for _, item := range c.panels[panel] {
		delete(c.issuedIDs, item.ID())
	}
	for id := range seen {
		c.issuedIDs[id] = struct{}{}
	}
	c.panels[panel] = loaded
	return nil
}

// LoadValues loads every panel whose value is present in values.
func (c *Controller) LoadValues(values model.Values) error {
	for _, panel := range c.Panels() {
		raw, ok := values[panel]
		if !ok {
			continue
		}
		if err := c.Load(panel, ItemList(raw)); err != nil {
			return err
		}
	}
	return nil
}

// Items returns copies of the items in a panel.
func (c *Controller) Items(panel string) []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneItems(c.panels[panel])
}

// Values returns every panel as a form value (list of maps).
func (c *Controller) Values() model.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(model.Values, len(c.panels))
	for name, items := range c.panels {
		out[name] = itemsValue(items)
	}
	return out
}

// AddItem appends a new item cloned from the panel's item template. Panels
// without a template get {title: "", fields: []}.
func (c *Controller) AddItem(panel string) (Item, error) {
	c.mu.Lock()
	field, ok := c.fields[panel]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("structure: unknown panel %q", panel)
	}
	item := newItem(field.ItemTemplate)
	id, err := c.nextID(nil)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	item[IDKey] = id
	c.issuedIDs[id] = struct{}{}
	c.panels[panel] = append(c.panels[panel], item)
	c.mu.Unlock()

	c.sync(panel)
	return item.clone(), nil
}

// RemoveItem deletes the item with the given id.
func (c *Controller) RemoveItem(panel, id string) error {
	c.mu.Lock()
	items, idx, err := c.locate(panel, id)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.panels[panel] = append(items[:idx:idx], items[idx+1:]...)
	delete(c.issuedIDs, id)
	c.mu.Unlock()

	c.sync(panel)
	return nil
}

// Reorder moves the item at from to position to. Equal positions are a no-op.
func (c *Controller) Reorder(panel string, from, to int) error {
	c.mu.Lock()
	items := c.panels[panel]
	if _, known := c.fields[panel]; !known {
		c.mu.Unlock()
		return fmt.Errorf("structure: unknown panel %q", panel)
	}
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		c.mu.Unlock()
		return fmt.Errorf("structure: reorder %d -> %d out of range for %d items", from, to, len(items))
	}
	if from == to {
		c.mu.Unlock()
		return nil
	}
	moved := items[from]
	rest := append(items[:from:from], items[from+1:]...)
	reordered := make([]Item, 0, len(items))
	reordered = append(reordered, rest[:to]...)
	reordered = append(reordered, moved)
	reordered = append(reordered, rest[to:]...)
	c.panels[panel] = reordered
	c.mu.Unlock()

	c.sync(panel)
	return nil
}

// Duplicate deep-copies an item, gives the copy a fresh id and inserts it
// right after the source.
func (c *Controller) Duplicate(panel, id string) (Item, error) {
	c.mu.Lock()
	items, idx, err := c.locate(panel, id)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	copied := items[idx].clone()
	newID, err := c.nextID(nil)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	copied[IDKey] = newID
	c.issuedIDs[newID] = struct{}{}

	out := make([]Item, 0, len(items)+1)
	out = append(out, items[:idx+1]...)
	out = append(out, copied)
	out = append(out, items[idx+1:]...)
	c.panels[panel] = out
	c.mu.Unlock()

	c.sync(panel)
	return copied.clone(), nil
}

// Update replaces the non-id keys of an item.
func (c *Controller) Update(panel, id string, patch map[string]any) error {
	c.mu.Lock()
	items, idx, err := c.locate(panel, id)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	for key, value := range patch {
		if key == IDKey {
			continue
		}
		items[idx][key] = model.DeepCopy(value)
	}
	c.mu.Unlock()

	c.sync(panel)
	return nil
}

// ValidateNonEmpty checks a required structured list. An empty list yields a
// notification error and expands the panel so the user sees where to add.
func (c *Controller) ValidateNonEmpty(field model.Field, values model.Values) error {
	if !field.IsStructureList() || !field.Required {
		return nil
	}
	if len(ItemList(values[field.Name])) > 0 {
		return nil
	}

	c.SetExpanded(field.Name, true)

	notice := &validation.NotificationError{
		Field: field.Name,
		Title: fmt.Sprintf("Please add %s", field.DisplayLabel()),
	}
	if field.Empty != nil {
		if title := strings.TrimSpace(field.Empty.Title); title != "" {
			notice.Title = title
		}
		notice.Description = field.Empty.Description
	}
	return notice
}

// Expanded reports whether a panel is expanded.
func (c *Controller) Expanded(panel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expanded[panel]
}

// SetExpanded toggles a panel.
func (c *Controller) SetExpanded(panel string, expanded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expanded[panel] = expanded
}

func (c *Controller) locate(panel, id string) ([]Item, int, error) {
	items, ok := c.panels[panel]
	if _, known := c.fields[panel]; !known {
		return nil, -1, fmt.Errorf("structure: unknown panel %q", panel)
	}
	if ok {
		for idx, item := range items {
			if item.ID() == id {
				return items, idx, nil
			}
		}
	}
	return nil, -1, fmt.Errorf("structure: panel %q has no item %q", panel, id)
}

// nextID returns a generated id that is neither issued nor reserved.
func (c *Controller) nextID(reserved map[string]struct{}) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := c.ids.NewID()
		if id == "" {
			continue
		}
		if _, taken := c.issuedIDs[id]; taken {
			continue
		}
		if _, taken := reserved[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("structure: id generator produced no unused id after %d attempts", maxIDAttempts)
}

func (c *Controller) sync(panel string) {
	if c.form == nil {
		return
	}
	c.mu.Lock()
	value := itemsValue(c.panels[panel])
	c.mu.Unlock()
	c.form.SetValues(model.Values{panel: value})
}

func newItem(template map[string]any) Item {
	if len(template) == 0 {
		return Item{"title": "", "fields": []any{}}
	}
	out, _ := model.DeepCopy(template).(map[string]any)
	return Item(out)
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = item.clone()
	}
	return out
}

func itemsValue(items []Item) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = map[string]any(item.clone())
	}
	return out
}

// ItemList normalises a structured list form value into a list of maps.
// Non-map entries are skipped.
func ItemList(raw any) []map[string]any {
	switch typed := raw.(type) {
	case nil:
		return nil
	case []map[string]any:
		return typed
	case []Item:
		out := make([]map[string]any, len(typed))
		for i, item := range typed {
			out[i] = map[string]any(item)
		}
		return out
	case []any:
		out := make([]map[string]any, 0, len(typed))
		for _, entry := range typed {
			switch item := entry.(type) {
			case map[string]any:
				out = append(out, item)
			case Item:
				out = append(out, map[string]any(item))
			case model.Values:
				out = append(out, map[string]any(item))
			}
		}
		return out
	default:
		return nil
	}
}
