package bluespess

// Diff kinds, matching the wire buckets: plain vars go in the update body,
// overlay keys go in the overlays sub-object.
const (
	updateKindVar = iota
	updateKindOverlay
)

// Eye is the component that tracks what an atom can see. It owns the
// visible-tile set, the per-atom shared-tile refcounts, and the mapping
// from server atom ids to the opaque network ids clients are shown.
// Observing mobs fan its diffs out to their clients.
type Eye struct {
	atom *Atom

	// ViewRange is the sight radius in tiles. XRay ignores opacity.
	ViewRange int
	XRay      bool

	observers []*Mob

	// serverToNet hides real atom ids from clients.
	serverToNet map[uint64]string
	viewing     map[string]*Atom

	visibleTiles map[*Location]struct{}

	screen    map[string]*Atom
	screenSet map[*Atom]int

	// commonTilesCount counts, per atom, how many visible tiles it shares
	// with this eye. Zero means out of sight.
	commonTilesCount map[*Atom]int

	visgroups map[*VisibilityGroup]struct{}
}

func newEye(atom *Atom, vars map[string]any) (Component, error) {
	e := &Eye{
		atom:             atom,
		ViewRange:        toInt(vars["view_range"], defaultViewRange),
		XRay:             toBool(vars["xray"]),
		serverToNet:      make(map[uint64]string),
		viewing:          make(map[string]*Atom),
		visibleTiles:     make(map[*Location]struct{}),
		screen:           make(map[string]*Atom),
		screenSet:        make(map[*Atom]int),
		commonTilesCount: make(map[*Atom]int),
		visgroups:        make(map[*VisibilityGroup]struct{}),
	}
	atom.OnMoved(func(MoveEvent) { e.RecalculateVisibleTiles() })
	e.RecalculateVisibleTiles()
	return e, nil
}

// HostAtom returns the atom carrying this eye.
func (e *Eye) HostAtom() *Atom { return e.atom }

// eyeOf returns the atom's Eye component, or nil.
func eyeOf(a *Atom) *Eye {
	e, _ := a.Component("Eye").(*Eye)
	return e
}

// NetID returns the network id this eye has assigned to an atom, or ""
// when the atom is not being tracked.
func (e *Eye) NetID(a *Atom) string { return e.serverToNet[a.id] }

// Viewing reports whether the atom is currently networked through this eye.
func (e *Eye) Viewing(a *Atom) bool {
	netid, ok := e.serverToNet[a.id]
	if !ok {
		return false
	}
	_, ok = e.viewing[netid]
	return ok
}

// VisibleTiles returns the current visible set. Callers must not mutate it.
func (e *Eye) VisibleTiles() map[*Location]struct{} { return e.visibleTiles }

// CanSee reports whether the atom should be networked through this eye:
// it must share a visible tile (or sit on the screen), be visible to this
// eye after visibility-group overrides, and pass the atom's own seen check.
func (e *Eye) CanSee(item *Atom) bool {
	if e.screenSet[item] == 0 && e.commonTilesCount[item] <= 0 {
		return false
	}
	if !e.effectiveVisible(item) {
		return false
	}
	if item.SeenCheck != nil && !item.SeenCheck(e.atom) {
		return false
	}
	return true
}

// effectiveVisible resolves the atom's visible flag for this eye, the most
// recently attached shared visibility group winning.
func (e *Eye) effectiveVisible(item *Atom) bool {
	visible := item.visible
	for _, group := range item.visgroups {
		if _, shared := e.visgroups[group]; !shared {
			continue
		}
		if override, ok := group.overrides["visible"]; ok {
			visible = toBool(override)
		}
	}
	return visible
}

// addViewing starts networking an atom through this eye, assigning a fresh
// network id unless a stale mapping is still around.
func (e *Eye) addViewing(item *Atom) {
	if netid, ok := e.serverToNet[item.id]; ok {
		if _, viewing := e.viewing[netid]; viewing {
			return
		}
	}
	netid, ok := e.serverToNet[item.id]
	if !ok {
		netid = e.atom.world.newNetID()
		e.serverToNet[item.id] = netid
	}
	e.viewing[netid] = item
	item.viewers = append(item.viewers, e.atom)
	e.enqueueCreateAtom(netid, item)
}

// removeViewing stops networking an atom, forgetting its network id.
func (e *Eye) removeViewing(item *Atom) {
	netid, ok := e.serverToNet[item.id]
	if !ok {
		return
	}
	delete(e.viewing, netid)
	delete(e.serverToNet, item.id)
	item.viewers = removeAtom(item.viewers, e.atom)
	e.enqueueDeleteAtom(netid)
}

// SetScreen pins an atom to a named HUD slot. Screen atoms are networked
// regardless of tile visibility. Passing nil clears the slot.
func (e *Eye) SetScreen(key string, item *Atom) {
	old := e.screen[key]
	if old == item {
		return
	}
	if old != nil {
		e.screenSet[old]--
		if e.screenSet[old] <= 0 {
			delete(e.screenSet, old)
		}
		if !e.CanSee(old) {
			e.removeViewing(old)
		}
	}
	if item == nil {
		delete(e.screen, key)
		return
	}
	e.screen[key] = item
	e.screenSet[item]++
	e.addViewing(item)
}

// Screen returns the atom in a HUD slot, or nil.
func (e *Eye) Screen(key string) *Atom { return e.screen[key] }

// RecalculateVisibleTiles recomputes sight from the eye's current position
// and reconciles everything hanging off the visible set: tile viewer lists,
// shared-tile refcounts, the viewing map, and the clients' tile queues.
func (e *Eye) RecalculateVisibleTiles() {
	w := e.atom.world
	var newVisible map[*Location]struct{}
	if e.XRay {
		newVisible = w.ComputeInRangeTiles(e.atom, e.ViewRange)
	} else {
		newVisible = w.ComputeVisibleTiles(e.atom, e.ViewRange)
	}
	oldVisible := e.visibleTiles
	e.visibleTiles = newVisible

	for tile := range newVisible {
		if _, had := oldVisible[tile]; had {
			continue
		}
		e.enqueueAddTile(tile)
		tile.viewers = append(tile.viewers, e.atom)
		for _, item := range tile.partialContents {
			e.commonTilesCount[item]++
			if e.CanSee(item) {
				e.addViewing(item)
			}
		}
	}
	for tile := range oldVisible {
		if _, has := newVisible[tile]; has {
			continue
		}
		e.enqueueRemoveTile(tile)
		tile.viewers = removeAtom(tile.viewers, e.atom)
		for _, item := range tile.partialContents {
			e.commonTilesCount[item]--
			if !e.CanSee(item) {
				e.removeViewing(item)
			}
		}
	}
}

// Fanout to every observing mob with a live client.

func (e *Eye) enqueueCreateAtom(netid string, atom *Atom) {
	for _, observer := range e.observers {
		if observer.client != nil {
			observer.client.enqueueCreateAtom(netid, atom, e)
		}
	}
}

func (e *Eye) enqueueUpdateAtomVar(netid string, atom *Atom, varname string, kind int) {
	for _, observer := range e.observers {
		if observer.client != nil {
			observer.client.enqueueUpdateAtomVar(netid, atom, varname, kind, e)
		}
	}
}

func (e *Eye) enqueueUpdateComponentVar(netid string, atom *Atom, component, field string) {
	for _, observer := range e.observers {
		if observer.client != nil {
			observer.client.enqueueUpdateComponentVar(netid, atom, component, field)
		}
	}
}

func (e *Eye) enqueueDeleteAtom(netid string) {
	for _, observer := range e.observers {
		if observer.client != nil {
			observer.client.enqueueDeleteAtom(netid)
		}
	}
}

func (e *Eye) enqueueAddTile(tile *Location) {
	for _, observer := range e.observers {
		if observer.client != nil {
			observer.client.enqueueAddTile(tile)
		}
	}
}

func (e *Eye) enqueueRemoveTile(tile *Location) {
	for _, observer := range e.observers {
		if observer.client != nil {
			observer.client.enqueueRemoveTile(tile)
		}
	}
}

// Destroy drops the eye out of every tile viewer list and stops networking
// everything it was tracking.
func (e *Eye) Destroy() {
	for netid := range e.viewing {
		item := e.viewing[netid]
		delete(e.viewing, netid)
		delete(e.serverToNet, item.id)
		item.viewers = removeAtom(item.viewers, e.atom)
		e.enqueueDeleteAtom(netid)
	}
	for tile := range e.visibleTiles {
		tile.viewers = removeAtom(tile.viewers, e.atom)
		e.enqueueRemoveTile(tile)
	}
	e.visibleTiles = make(map[*Location]struct{})
}
