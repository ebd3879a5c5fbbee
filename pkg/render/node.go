package render

// Node is one element of the renderable UI tree produced by the field
// registry. Renderers walk the tree and pick a template or prompt per
// Component.
type Node struct {
	Component string         `json:"component"`
	Field     string         `json:"field,omitempty"`
	Label     string         `json:"label,omitempty"`
	Props     map[string]any `json:"props,omitempty"`
	Children  []Node         `json:"children,omitempty"`
}

// Prop returns a prop value, nil when absent.
func (n Node) Prop(key string) any {
	if n.Props == nil {
		return nil
	}
	return n.Props[key]
}

// Walk visits the node and its descendants depth first. Returning false from
// visit skips the children of the current node.
func (n Node) Walk(visit func(Node) bool) {
	if !visit(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(visit)
	}
}

// Action is a header button as presented to renderers.
type Action struct {
	Key         string `json:"key"`
	Text        string `json:"text"`
	Icon        string `json:"icon,omitempty"`
	Type        string `json:"type,omitempty"`
	Disabled    bool   `json:"disabled,omitempty"`
	StatusModal bool   `json:"statusModal,omitempty"`
}

// View bundles everything a renderer needs to draw one editor screen.
type View struct {
	ID      string   `json:"id"`
	Title   string   `json:"title,omitempty"`
	Nodes   []Node   `json:"nodes"`
	Actions []Action `json:"actions,omitempty"`
}
