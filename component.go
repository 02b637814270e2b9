package bluespess

import (
	"fmt"
	"reflect"
)

// Component is a behavior unit attached to an atom. A component has no
// identity of its own; its lifetime is its host atom's.
type Component interface {
	HostAtom() *Atom
}

// ComponentInfo describes a registered component type: its construction
// function, its dependency closure inputs, and its load-order constraints.
type ComponentInfo struct {
	Name string

	// Depends lists components that must also be present on any atom
	// carrying this one; missing entries are pulled in transitively.
	Depends []string

	// LoadBefore and LoadAfter constrain instantiation order relative to
	// other components present on the same template.
	LoadBefore []string
	LoadAfter  []string

	// Defaults are template vars merged weakly behind the template's own
	// vars, later-sorted components yielding to earlier ones.
	Defaults map[string]any

	// New constructs an instance. vars carries the per-instance overrides
	// from the template's components section.
	New func(atom *Atom, vars map[string]any) (Component, error)
}

// RegisterComponent adds a component type to the world's registry.
// Duplicate names are a configuration error.
func (w *World) RegisterComponent(info ComponentInfo) error {
	if info.Name == "" || info.New == nil {
		return fmt.Errorf("component registration requires a name and a constructor")
	}
	if _, ok := w.components[info.Name]; ok {
		return fmt.Errorf("component %s already exists", info.Name)
	}
	w.components[info.Name] = info
	return nil
}

// resolveComponents expands the listed component names with their
// transitive dependencies and returns them topologically sorted by the
// declared load constraints, ties broken by input order. A constraint
// cycle or an unknown name is a configuration error.
func (w *World) resolveComponents(names []string) ([]string, error) {
	list := append([]string(nil), names...)
	present := make(map[string]bool, len(list))
	for _, name := range list {
		if present[name] {
			return nil, fmt.Errorf("component %s listed multiple times", name)
		}
		present[name] = true
	}

	// Fixed-point dependency closure.
	for added := true; added; {
		added = false
		for _, name := range list {
			info, ok := w.components[name]
			if !ok {
				return nil, fmt.Errorf("component %s does not exist", name)
			}
			for _, dep := range info.Depends {
				if !present[dep] {
					list = append(list, dep)
					present[dep] = true
					added = true
				}
			}
		}
	}

	// Edges restricted to components actually present: before -> after.
	edges := make(map[string][]string)
	indegree := make(map[string]int, len(list))
	for _, name := range list {
		indegree[name] = 0
	}
	addEdge := func(before, after string) {
		edges[before] = append(edges[before], after)
		indegree[after]++
	}
	for _, name := range list {
		info := w.components[name]
		for _, other := range info.LoadBefore {
			if present[other] {
				addEdge(name, other)
			}
		}
		for _, other := range info.LoadAfter {
			if present[other] {
				addEdge(other, name)
			}
		}
	}

	// Kahn's algorithm over the input order, which keeps the sort stable.
	sorted := make([]string, 0, len(list))
	queued := make(map[string]bool, len(list))
	for len(sorted) < len(list) {
		progressed := false
		for _, name := range list {
			if queued[name] || indegree[name] != 0 {
				continue
			}
			queued[name] = true
			sorted = append(sorted, name)
			for _, next := range edges[name] {
				indegree[next]--
			}
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("cycle in component load order among %v", list)
		}
	}
	return sorted, nil
}

// Networked is the embeddable base for components whose fields are diffed
// to observers. Writes through SetVar no-op on unchanged values, may be
// vetoed by a registered filter, and otherwise enqueue a component-scoped
// diff for every observer viewing the host atom.
type Networked struct {
	atom      *Atom
	component string
	vars      map[string]any
	filters   map[string]func(value any) bool
}

// InitNetworked binds the base to its host atom and component name. Call
// from the component constructor before declaring vars.
func (n *Networked) InitNetworked(atom *Atom, component string) {
	n.atom = atom
	n.component = component
	n.vars = make(map[string]any)
	n.filters = make(map[string]func(any) bool)
}

// HostAtom returns the component's host.
func (n *Networked) HostAtom() *Atom { return n.atom }

// ComponentName returns the registered name used to key diffs.
func (n *Networked) ComponentName() string { return n.component }

// AddNetworkedVar declares a diffed field. The optional filter runs on
// every write and may veto it by returning false.
func (n *Networked) AddNetworkedVar(name string, filter func(value any) bool) {
	if _, ok := n.vars[name]; !ok {
		n.vars[name] = nil
	}
	if filter != nil {
		n.filters[name] = filter
	}
}

// Var returns the current value of a networked field.
func (n *Networked) Var(name string) any { return n.vars[name] }

// SetVar writes a networked field, reporting the diff to all observers
// currently viewing the host atom. Returns whether the write took effect.
func (n *Networked) SetVar(name string, value any) bool {
	old, declared := n.vars[name]
	if !declared {
		n.atom.world.log.WithField("component", n.component).
			Warnf("write to undeclared networked var %q ignored", name)
		return false
	}
	if valuesEqual(old, value) {
		return false
	}
	if filter, ok := n.filters[name]; ok && !filter(value) {
		return false
	}
	n.vars[name] = value
	n.atom.updateComponentVar(n.component, name)
	return true
}

// NetworkedVars returns a copy of the current field map, as sent in a
// create snapshot.
func (n *Networked) NetworkedVars() map[string]any {
	out := make(map[string]any, len(n.vars))
	for k, v := range n.vars {
		out[k] = v
	}
	return out
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ka := reflect.TypeOf(a).Kind()
	if ka == reflect.Slice || ka == reflect.Map || ka == reflect.Ptr {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

// networkedComponent is implemented by components embedding Networked;
// their presence and field maps are included in create snapshots.
type networkedComponent interface {
	ComponentName() string
	NetworkedVars() map[string]any
}
