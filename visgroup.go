package bluespess

// VisibilityGroup makes a set of atoms appear differently to a set of
// eyes: per-variable overrides applied at serialization time, plus a
// special "visible" override that can network an atom to viewers who would
// otherwise not see it (or hide one they would).
//
//	group := NewVisibilityGroup()
//	group.AddAtom(ghost)
//	group.AddViewer(medium)
//	group.SetOverride("visible", true)
type VisibilityGroup struct {
	atoms     []*Atom
	viewers   []*Atom
	overrides map[string]any
}

// NewVisibilityGroup returns an empty group.
func NewVisibilityGroup() *VisibilityGroup {
	return &VisibilityGroup{overrides: make(map[string]any)}
}

// AddAtom puts an atom under this group's overrides.
func (g *VisibilityGroup) AddAtom(a *Atom) {
	if containsAtom(g.atoms, a) {
		return
	}
	g.atoms = append(g.atoms, a)
	a.visgroups = append(a.visgroups, g)
	g.overrideChanged("", nil, a)
}

// RemoveAtom releases an atom from this group.
func (g *VisibilityGroup) RemoveAtom(a *Atom) {
	if !containsAtom(g.atoms, a) {
		return
	}
	g.atoms = removeAtom(g.atoms, a)
	a.visgroups = removeVisgroup(a.visgroups, g)
	g.overrideChanged("", nil, a)
}

// AddViewer shows this group's overrides to an eye-bearing atom.
func (g *VisibilityGroup) AddViewer(viewer *Atom) {
	eye := eyeOf(viewer)
	if eye == nil || containsAtom(g.viewers, viewer) {
		return
	}
	g.viewers = append(g.viewers, viewer)
	eye.visgroups[g] = struct{}{}
	g.overrideChanged("", viewer, nil)
}

// RemoveViewer stops showing this group's overrides to a viewer.
func (g *VisibilityGroup) RemoveViewer(viewer *Atom) {
	eye := eyeOf(viewer)
	if eye == nil || !containsAtom(g.viewers, viewer) {
		return
	}
	g.viewers = removeAtom(g.viewers, viewer)
	delete(eye.visgroups, g)
	g.overrideChanged("", viewer, nil)
}

// SetOverride sets a per-variable override and re-evaluates affected pairs.
func (g *VisibilityGroup) SetOverride(key string, value any) {
	g.overrides[key] = value
	g.overrideChanged(key, nil, nil)
}

// DeleteOverride removes an override and re-evaluates affected pairs.
func (g *VisibilityGroup) DeleteOverride(key string) {
	if _, ok := g.overrides[key]; !ok {
		return
	}
	delete(g.overrides, key)
	g.overrideChanged(key, nil, nil)
}

// Override returns the override value for a key, if set.
func (g *VisibilityGroup) Override(key string) (any, bool) {
	v, ok := g.overrides[key]
	return v, ok
}

// overrideChanged re-evaluates one (key, viewer, atom) combination, fanning
// out over the group when any dimension is unspecified.
func (g *VisibilityGroup) overrideChanged(key string, viewer, atom *Atom) {
	if viewer == nil {
		for _, v := range g.viewers {
			g.overrideChanged(key, v, atom)
		}
		return
	}
	if atom == nil {
		for _, a := range g.atoms {
			g.overrideChanged(key, viewer, a)
		}
		return
	}
	if key == "" {
		for k := range g.overrides {
			g.overrideChanged(k, viewer, atom)
		}
		return
	}

	eye := eyeOf(viewer)
	if eye == nil {
		return
	}
	canSee := eye.CanSee(atom)

	// Changing visibility changes whether the atom is networked at all.
	if key == "visible" {
		if canSee {
			eye.addViewing(atom)
		} else {
			eye.removeViewing(atom)
		}
		return
	}
	if !canSee {
		return
	}
	if netid := eye.NetID(atom); netid != "" {
		eye.enqueueUpdateAtomVar(netid, atom, key, updateKindVar)
	}
}

// visgroupOverride resolves the effective override of a variable for one
// eye/atom pair, the most recently attached shared group winning.
func visgroupOverride(eye *Eye, atom *Atom, key string) (any, bool) {
	var value any
	found := false
	for _, group := range atom.visgroups {
		if _, shared := eye.visgroups[group]; !shared {
			continue
		}
		if v, ok := group.overrides[key]; ok {
			value = v
			found = true
		}
	}
	return value, found
}

func removeVisgroup(list []*VisibilityGroup, g *VisibilityGroup) []*VisibilityGroup {
	for i, item := range list {
		if item == g {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
