package bluespess

import "fmt"

// changeLoc is the single choke-point for every change to an atom's
// position, z level, container, or bounding box. It keeps tile membership,
// the symmetric crossing sets, and per-viewer common-tile counts exactly in
// step with the atom's placement. Removals from old tiles are processed
// before additions to new ones so an atom is never counted in two disjoint
// tile sets at once.
func (a *Atom) changeLoc(newX, newY, newZ float64, newLoc Loc, newBounds *bounds) error {
	// Moving to the same non-world container is a no-op.
	if !locOnGrid(newLoc) && !locOnGrid(a.loc) && newLoc != nil && newLoc == a.loc {
		return nil
	}

	oldFine := a.FineLoc()
	newFine := FineLoc{X: newX, Y: newY, Z: newZ, Loc: newLoc}
	movement := MoveEvent{Atom: a, Old: oldFine, New: newFine}
	movement.Offset = gridOffset(oldFine, newFine)

	fireMove(a.events.beforeMove, movement)
	if oldContainer, ok := oldFine.Loc.(*Atom); ok {
		fireMove(oldContainer.events.beforeExit, movement)
	}
	if newContainer, ok := newFine.Loc.(*Atom); ok {
		fireMove(newContainer.events.beforeEnter, movement)
	}
	// A before handler may have re-homed the atom already; check again.
	if !locOnGrid(newLoc) && !locOnGrid(a.loc) && newLoc != nil && newLoc == a.loc {
		return nil
	}
	oldFine = a.FineLoc()
	movement.Old = oldFine
	movement.Offset = gridOffset(oldFine, newFine)

	// Reject containment cycles before touching any state. Tortoise and
	// hare over the container chain.
	if newContainer, ok := newLoc.(*Atom); ok {
		if newContainer == a {
			return fmt.Errorf("cycle detected when assigning the location of %v to itself", a)
		}
		slow, fast := newContainer, newContainer
		for slow != nil {
			slow = containerOf(slow)
			if fast != nil {
				fast = containerOf(fast)
			}
			if fast != nil {
				fast = containerOf(fast)
			}
			if (fast != nil && fast == slow) || fast == a || slow == a {
				return fmt.Errorf("cycle detected when assigning the location of %v to %v", a, newContainer)
			}
		}
	}

	var lostViewers, gainedViewers []*Atom
	var lostCrossers, gainedCrossers, commonCrossers []*Atom

	// Removal phase: leave the old tiles first.
	if a.loc != nil {
		a.loc.removeContent(a)
		if _, onGrid := a.loc.(*Location); onGrid {
			for _, tile := range a.tilesAt(a.x, a.y, a.boundsX, a.boundsY, a.boundsWidth, a.boundsHeight) {
				tile.partialContents = removeAtom(tile.partialContents, a)
				lostViewers = append(lostViewers, tile.viewers...)
				for _, other := range tile.partialContents {
					if other != a && other.DoesCross(a) && !containsAtom(lostCrossers, other) {
						lostCrossers = append(lostCrossers, other)
					}
				}
			}
		}
	}

	a.x, a.y, a.z = newX, newY, newZ
	a.loc = newLoc
	if newBounds != nil {
		a.boundsX, a.boundsY = newBounds.x, newBounds.y
		a.boundsWidth, a.boundsHeight = newBounds.width, newBounds.height
	}
	a.crosses = a.crosses[:0]

	// Addition phase: join the new tiles.
	if a.loc != nil {
		a.loc.addContent(a)
		if _, onGrid := a.loc.(*Location); onGrid {
			for _, tile := range a.tilesAt(a.x, a.y, a.boundsX, a.boundsY, a.boundsWidth, a.boundsHeight) {
				if !containsAtom(tile.partialContents, a) {
					tile.partialContents = append(tile.partialContents, a)
				}
				gainedViewers = append(gainedViewers, tile.viewers...)
				for _, other := range tile.partialContents {
					if other == a || !a.DoesCross(other) {
						continue
					}
					if i := indexOfAtom(lostCrossers, other); i == -1 {
						if !containsAtom(gainedCrossers, other) && !containsAtom(commonCrossers, other) {
							gainedCrossers = append(gainedCrossers, other)
						}
					} else {
						lostCrossers = append(lostCrossers[:i], lostCrossers[i+1:]...)
						commonCrossers = append(commonCrossers, other)
					}
					if !containsAtom(a.crosses, other) {
						a.crosses = append(a.crosses, other)
					}
				}
			}
		}
	}

	// Symmetric crossing events, exactly once per pair.
	for _, gained := range gainedCrossers {
		if !containsAtom(gained.crosses, a) {
			gained.crosses = append(gained.crosses, a)
		}
		fireAtom(a.events.crossed, gained)
		fireAtom(gained.events.crossedBy, a)
	}
	for _, lost := range lostCrossers {
		lost.crosses = removeAtom(lost.crosses, a)
		fireAtom(a.events.uncrossed, lost)
		fireAtom(lost.events.uncrossedBy, a)
	}

	// Per-viewer shared-tile refcounts. The lists intentionally carry one
	// entry per shared tile, so a viewer sharing three tiles is counted
	// three times.
	for _, lost := range lostViewers {
		if eye := eyeOf(lost); eye != nil {
			eye.commonTilesCount[a]--
		}
	}
	for _, gained := range gainedViewers {
		if eye := eyeOf(gained); eye != nil {
			eye.commonTilesCount[a]++
		}
	}
	for _, lost := range lostViewers {
		if eye := eyeOf(lost); eye != nil && !eye.CanSee(a) {
			eye.removeViewing(a)
		}
	}
	for _, gained := range gainedViewers {
		if eye := eyeOf(gained); eye != nil && eye.CanSee(a) {
			eye.addViewing(a)
		}
	}

	fireMove(a.events.moved, movement)
	a.emitParentMoved(movement)
	if oldContainer, ok := oldFine.Loc.(*Atom); ok {
		fireMove(oldContainer.events.exited, movement)
	}
	if newContainer, ok := newFine.Loc.(*Atom); ok {
		fireMove(newContainer.events.entered, movement)
	}

	a.updateVar("x")
	a.updateVar("y")
	return nil
}

func (a *Atom) emitParentMoved(movement MoveEvent) {
	for _, child := range a.contents {
		fireMove(child.events.parentMoved, movement)
		child.emitParentMoved(movement)
	}
}

func locOnGrid(loc Loc) bool {
	_, ok := loc.(*Location)
	return ok
}

func containerOf(a *Atom) *Atom {
	container, _ := a.loc.(*Atom)
	return container
}

func gridOffset(oldFine, newFine FineLoc) *Offset {
	if !oldFine.OnGrid() || !newFine.OnGrid() {
		return nil
	}
	return &Offset{
		X: newFine.X - oldFine.X,
		Y: newFine.Y - oldFine.Y,
		Z: newFine.Z - oldFine.Z,
	}
}

func indexOfAtom(list []*Atom, a *Atom) int {
	for i, item := range list {
		if item == a {
			return i
		}
	}
	return -1
}
