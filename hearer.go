package bluespess

// Hearer marks an atom as a recipient of chat and sound. It maintains its
// own visible-tile set (independent of any Eye) so emitters can find who
// is in earshot or line of sight, and decides per message which variant
// the atom is shown.
type Hearer struct {
	atom         *Atom
	visibleTiles map[*Location]struct{}
	updateQueued bool

	// Optional policy overrides. Nil means the default applies.
	CanHear      func(origin *Atom) bool
	CanHearSound func(s *Sound) bool
	CanSee       func(origin *Atom) bool
}

func newHearer(atom *Atom, vars map[string]any) (Component, error) {
	h := &Hearer{
		atom:         atom,
		visibleTiles: make(map[*Location]struct{}),
	}
	h.updateVisibleTiles()
	atom.OnMoved(func(MoveEvent) { h.enqueueUpdateVisibleTiles() })
	return h, nil
}

// HostAtom returns the atom carrying this hearer.
func (h *Hearer) HostAtom() *Atom { return h.atom }

// VisibleTiles returns the tiles this hearer can currently perceive.
// Callers must not mutate the map.
func (h *Hearer) VisibleTiles() map[*Location]struct{} { return h.visibleTiles }

func (h *Hearer) updateVisibleTiles() {
	newVisible := h.atom.world.ComputeVisibleTiles(h.atom, defaultViewRange)
	oldVisible := h.visibleTiles
	h.visibleTiles = newVisible
	for tile := range newVisible {
		if _, had := oldVisible[tile]; !had {
			tile.hearers = append(tile.hearers, h.atom)
		}
	}
	for tile := range oldVisible {
		if _, has := newVisible[tile]; !has {
			tile.hearers = removeAtom(tile.hearers, h.atom)
		}
	}
	h.updateQueued = false
}

// enqueueUpdateVisibleTiles coalesces recomputes onto the next tick, so a
// burst of moves costs one scan.
func (h *Hearer) enqueueUpdateVisibleTiles() {
	if h.updateQueued {
		return
	}
	h.updateQueued = true
	h.atom.world.Defer(h.updateVisibleTiles)
}

func (h *Hearer) canHear(origin *Atom) bool {
	if h.CanHear != nil {
		return h.CanHear(origin)
	}
	return true
}

func (h *Hearer) canHearSound(s *Sound) bool {
	if h.CanHearSound != nil {
		return h.CanHearSound(s)
	}
	return h.canHear(s.Emitter)
}

func (h *Hearer) canSee(origin *Atom) bool {
	if h.CanSee != nil {
		return h.CanSee(origin)
	}
	return origin != nil && origin.Loc() != nil && origin.Loc() == origin.BaseLoc()
}

// InView reports whether the given atom stands on a tile this hearer
// perceives.
func (h *Hearer) InView(a *Atom) bool {
	for _, tile := range a.PartialTiles() {
		if containsAtom(tile.hearers, h.atom) {
			return true
		}
	}
	return false
}

// ShowMessage picks the variant of a chat message this atom is shown:
// the blind or deaf fallback when the relevant sense fails, the
// self-variant when the atom is the emitter, and nothing at all when it
// can neither see nor hear. An empty return means no message.
func (h *Hearer) ShowMessage(msg *ChatMessage) string {
	canHear := h.canHear(msg.Emitter)
	canSee := h.canSee(msg.Emitter)
	if !canSee && !canHear {
		return ""
	}
	if msg.Type == MessageSee && !canSee {
		return msg.BlindMessage
	}
	if msg.Type == MessageHear && !canHear {
		return msg.DeafMessage
	}
	if msg.SelfMessage != "" && msg.Emitter == h.atom {
		return msg.SelfMessage
	}
	return msg.Message
}

// Destroy drops the hearer from every tile list.
func (h *Hearer) Destroy() {
	for tile := range h.visibleTiles {
		tile.hearers = removeAtom(tile.hearers, h.atom)
	}
	h.visibleTiles = make(map[*Location]struct{})
}
