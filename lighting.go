package bluespess

import "sort"

// Shadow is one opaque box inside a light's radius, networked so clients
// can cut it out of the light cone.
type Shadow struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// LightingObject is the networked half of a light: an invisible atom whose
// bounding box spans the lit area. Opaque atoms crossing the box are
// tracked as shadows and published through the shadows_list var.
type LightingObject struct {
	Networked

	shadows       map[*Atom]*Shadow
	moveCallbacks map[*Atom]struct{}
}

func newLightingObject(atom *Atom, vars map[string]any) (Component, error) {
	l := &LightingObject{
		shadows:       make(map[*Atom]*Shadow),
		moveCallbacks: make(map[*Atom]struct{}),
	}
	l.InitNetworked(atom, "LightingObject")
	l.AddNetworkedVar("enabled", nil)
	l.AddNetworkedVar("color", nil)
	l.AddNetworkedVar("radius", l.changeRadius)
	l.AddNetworkedVar("shadows_list", nil)
	atom.OnCrossed(l.crossed)
	atom.OnCrossedBy(l.crossed)
	atom.OnUncrossed(l.uncrossed)
	atom.OnUncrossedBy(l.uncrossed)
	l.changeRadius(l.Var("radius"))
	for name, value := range vars {
		l.SetVar(name, value)
	}
	l.updateShadowsList()
	return l, nil
}

func (l *LightingObject) crossed(item *Atom) {
	if !item.Opacity() || !containsAtom(l.HostAtom().crosses, item) {
		return
	}
	if _, ok := l.shadows[item]; ok {
		return
	}
	// The moved hook outlives the crossing: the caster's moved event fires
	// after its uncross events, so the hook must re-check the overlap in
	// UpdateShadow rather than assume it. Registered once per caster.
	if _, ok := l.moveCallbacks[item]; !ok {
		l.moveCallbacks[item] = struct{}{}
		item.OnMoved(func(MoveEvent) { l.UpdateShadow(item) })
	}
	l.shadows[item] = shadowFor(item)
	l.updateShadowsList()
}

func (l *LightingObject) uncrossed(item *Atom) {
	if _, ok := l.shadows[item]; !ok {
		return
	}
	delete(l.shadows, item)
	l.updateShadowsList()
}

// UpdateShadow re-derives one atom's shadow box, adding or dropping the
// shadow when the atom's opacity or its overlap with the lit area changed.
func (l *LightingObject) UpdateShadow(item *Atom) {
	if !item.Opacity() || !containsAtom(l.HostAtom().crosses, item) {
		l.uncrossed(item)
		return
	}
	if _, ok := l.shadows[item]; !ok {
		l.crossed(item)
		return
	}
	l.shadows[item] = shadowFor(item)
	l.updateShadowsList()
}

// updateShadowsList publishes the shadow set in caster-id order, so an
// unchanged set serializes identically and never queues a spurious diff.
func (l *LightingObject) updateShadowsList() {
	casters := make([]*Atom, 0, len(l.shadows))
	for caster := range l.shadows {
		casters = append(casters, caster)
	}
	sort.Slice(casters, func(i, j int) bool { return casters[i].id < casters[j].id })
	list := make([]*Shadow, 0, len(casters))
	for _, caster := range casters {
		list = append(list, l.shadows[caster])
	}
	l.SetVar("shadows_list", list)
}

// changeRadius resizes the host's bounding box to the lit square whenever
// the radius var is written. Always admits the write.
func (l *LightingObject) changeRadius(value any) bool {
	a := l.HostAtom()
	switch r := value.(type) {
	case float64:
		a.SetBounds(-r, -r, r*2+1, r*2+1)
	case int:
		f := float64(r)
		a.SetBounds(-f, -f, f*2+1, f*2+1)
	default:
		a.SetBounds(0, 0, 1, 1)
	}
	return true
}

func shadowFor(item *Atom) *Shadow {
	x, y, w, h := item.Bounds()
	return &Shadow{
		X1: item.X() + x,
		Y1: item.Y() + y,
		X2: item.X() + x + w,
		Y2: item.Y() + y + h,
	}
}

// LightSource makes an atom emit light by driving a dedicated
// LightingObject atom that follows the emitter's base mover around.
// Updates coalesce onto the next tick so a burst of moves costs one sync.
type LightSource struct {
	atom          *Atom
	lighting      *Atom
	enabled       bool
	color         string
	radius        float64
	updateQueued  bool
	lastBaseMover *Atom
}

func newLightSource(atom *Atom, vars map[string]any) (Component, error) {
	lightingAtom, err := atom.world.CreateAtomWith(&Template{
		Name:       "lighting object",
		Components: []string{"LightingObject"},
	}, nil)
	if err != nil {
		return nil, err
	}
	l := &LightSource{
		atom:     atom,
		lighting: lightingAtom,
		enabled:  toBool(vars["enabled"]),
		color:    "#ffffff",
		radius:   toFloat(vars["radius"], 2),
	}
	if c, ok := vars["color"].(string); ok {
		l.color = c
	}
	l.updateLightingObject()
	atom.OnMoved(func(MoveEvent) { l.updateLightingObject() })
	atom.OnParentMoved(func(MoveEvent) { l.updateLightingObject() })
	return l, nil
}

// HostAtom returns the emitting atom.
func (l *LightSource) HostAtom() *Atom { return l.atom }

// Enabled reports whether the light is on.
func (l *LightSource) Enabled() bool { return l.enabled }

// SetEnabled turns the light on or off.
func (l *LightSource) SetEnabled(v bool) {
	if l.enabled == v {
		return
	}
	l.enabled = v
	l.updateLightingObject()
}

// Color returns the CSS color of the light.
func (l *LightSource) Color() string { return l.color }

// SetColor changes the light's color.
func (l *LightSource) SetColor(v string) {
	if l.color == v {
		return
	}
	l.color = v
	l.updateLightingObject()
}

// Radius returns how many tiles away the light reaches.
func (l *LightSource) Radius() float64 { return l.radius }

// SetRadius changes the light's reach.
func (l *LightSource) SetRadius(v float64) {
	if l.radius == v {
		return
	}
	l.radius = v
	l.updateLightingObject()
}

func (l *LightSource) updateLightingObject() {
	if l.updateQueued {
		return
	}
	l.updateQueued = true
	l.atom.world.Defer(func() {
		defer func() { l.updateQueued = false }()
		if l.lighting == nil {
			return
		}
		loc := l.atom.Loc()
		onGrid := locOnGrid(loc)
		if container, ok := loc.(*Atom); ok {
			onGrid = locOnGrid(container.Loc())
		}
		lighting := l.lighting.Component("LightingObject").(*LightingObject)
		if !l.enabled || loc == nil || !onGrid {
			l.lighting.SetLoc(nil)
			lighting.SetVar("enabled", false)
			return
		}
		mover := l.atom.BaseMover()
		if mover == l.lastBaseMover {
			l.lighting.SetGlideSize(mover.GlideSize())
		} else {
			l.lighting.SetGlideSize(0)
		}
		fine := mover.FineLoc()
		l.lighting.changeLoc(fine.X, fine.Y, fine.Z, fine.Loc, nil)
		lighting.SetVar("enabled", true)
		lighting.SetVar("color", l.color)
		lighting.SetVar("radius", l.radius)
		l.lastBaseMover = mover
	})
}

// Destroy tears down the backing lighting atom.
func (l *LightSource) Destroy() {
	if l.lighting != nil {
		l.lighting.Destroy()
		l.lighting = nil
	}
}
