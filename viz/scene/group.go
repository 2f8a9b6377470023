package scene

// Group is a set of objects whose visibility toggles together. Visible objects are members of
// the registry and hidden ones are not; the boolean is kept alongside so the state can be read
// without scanning the scene.
type Group struct {
	name     string
	registry *Registry
	members  []Object
	visible  bool
}

// NewGroup adds members to registry and returns a visible group.
func NewGroup(name string, registry *Registry, members ...Object) *Group {
	g := &Group{name: name, registry: registry, members: members}
	g.SetVisible(true)
	return g
}

// Name of the group.
func (g *Group) Name() string {
	return g.name
}

// Visible reports the group's current visibility.
func (g *Group) Visible() bool {
	return g.visible
}

// Members returns the grouped objects.
func (g *Group) Members() []Object {
	return g.members
}

// Contains reports whether obj is one of the grouped objects.
func (g *Group) Contains(obj Object) bool {
	for _, m := range g.members {
		if m == obj {
			return true
		}
	}
	return false
}

// SetVisible adds or removes every member. It reports whether anything changed.
func (g *Group) SetVisible(visible bool) bool {
	if g.visible == visible {
		return false
	}
	g.visible = visible
	for _, m := range g.members {
		if visible {
			g.registry.Add(m)
		} else {
			g.registry.Remove(m)
		}
	}
	return true
}
