package bluespess

import "testing"

func TestSetLocSameValueIsNoOp(t *testing.T) {
	w := newTestWorld(t)
	crate := mustCreate(t, w, crateTemplate(), 2, 2, 0)
	moves := 0
	crate.OnMoved(func(MoveEvent) { moves++ })
	if err := crate.SetLoc(crate.Loc()); err != nil {
		t.Fatalf("SetLoc: %v", err)
	}
	if moves != 0 {
		t.Fatalf("re-assigning the current loc fired %d moved events", moves)
	}
}

func TestCrossingIsSymmetric(t *testing.T) {
	w := newTestWorld(t)
	a := mustCreate(t, w, crateTemplate(), 0, 0, 0)
	b := mustCreate(t, w, crateTemplate(), 3, 0, 0)

	if err := a.MoveTo(3.5, 0, 0); err != nil {
		t.Fatal(err)
	}
	if !containsAtom(a.Crosses(), b) {
		t.Fatal("a should cross b after overlapping move")
	}
	if !containsAtom(b.Crosses(), a) {
		t.Fatal("b's crossing set should contain a")
	}

	if err := a.MoveTo(10, 0, 0); err != nil {
		t.Fatal(err)
	}
	if containsAtom(a.Crosses(), b) || containsAtom(b.Crosses(), a) {
		t.Fatal("crossing sets should be empty after separating")
	}
}

func TestCrossingEventsFireOncePerPair(t *testing.T) {
	w := newTestWorld(t)
	a := mustCreate(t, w, crateTemplate(), 0, 0, 0)
	b := mustCreate(t, w, crateTemplate(), 3, 0, 0)
	crossed, crossedBy := 0, 0
	a.OnCrossed(func(*Atom) { crossed++ })
	b.OnCrossedBy(func(*Atom) { crossedBy++ })

	// Overlap two tiles of b's box at once; still one crossing.
	if err := a.SetBounds(0, 0, 2, 2); err != nil {
		t.Fatal(err)
	}
	if err := a.MoveTo(2.5, 0, 0); err != nil {
		t.Fatal(err)
	}
	if crossed != 1 || crossedBy != 1 {
		t.Fatalf("expected one crossed/crossed_by pair, got %d/%d", crossed, crossedBy)
	}
}

func TestContainmentCycleRejected(t *testing.T) {
	w := newTestWorld(t)
	box := mustCreate(t, w, crateTemplate(), 0, 0, 0)
	inner, err := w.CreateAtomWith(crateTemplate(), box)
	if err != nil {
		t.Fatalf("create contained atom: %v", err)
	}
	if err := box.SetLoc(inner); err == nil {
		t.Fatal("expected cycle error when containing own container")
	}
	if err := box.SetLoc(box); err == nil {
		t.Fatal("expected cycle error when containing self")
	}
	// The failed assignment must not have moved anything.
	if box.Loc() == nil || inner.Loc() != Loc(box) {
		t.Fatal("cycle rejection mutated state")
	}
}

func TestContainerChainPosition(t *testing.T) {
	w := newTestWorld(t)
	box := mustCreate(t, w, crateTemplate(), 4, 5, 0)
	item, err := w.CreateAtomWith(crateTemplate(), box)
	if err != nil {
		t.Fatal(err)
	}
	if item.X() != 4 || item.Y() != 5 {
		t.Fatalf("contained atom should report container position, got %v,%v", item.X(), item.Y())
	}
	parentMoves := 0
	item.OnParentMoved(func(MoveEvent) { parentMoves++ })
	if err := box.MoveTo(7, 5, 0); err != nil {
		t.Fatal(err)
	}
	if item.X() != 7 {
		t.Fatalf("contained atom did not follow container, x=%v", item.X())
	}
	if parentMoves != 1 {
		t.Fatalf("expected one parent_moved event, got %d", parentMoves)
	}
}

func TestPartialTileMembership(t *testing.T) {
	w := newTestWorld(t)
	crate := mustCreate(t, w, crateTemplate(), 0.5, 0, 0)
	tiles := crate.PartialTiles()
	if len(tiles) != 2 {
		t.Fatalf("straddling atom should occupy 2 tiles, got %d", len(tiles))
	}
	for _, tile := range tiles {
		if !containsAtom(tile.PartialContents(), crate) {
			t.Fatalf("tile %v missing the atom from partial contents", tile)
		}
	}
	if err := crate.MoveTo(10, 10, 0); err != nil {
		t.Fatal(err)
	}
	for _, tile := range tiles {
		if containsAtom(tile.PartialContents(), crate) {
			t.Fatalf("old tile %v still lists the atom", tile)
		}
	}
}

func TestDestroyRemovesFromWorld(t *testing.T) {
	w := newTestWorld(t)
	crate := mustCreate(t, w, crateTemplate(), 0, 0, 0)
	destroyed := false
	crate.OnDestroyed(func() { destroyed = true })
	tile := crate.BaseLoc()
	crate.Destroy()
	if !destroyed {
		t.Fatal("destroyed event did not fire")
	}
	if crate.Loc() != nil {
		t.Fatal("destroyed atom still has a loc")
	}
	if containsAtom(tile.PartialContents(), crate) {
		t.Fatal("destroyed atom still on its tile")
	}
	if _, ok := w.Atoms()[crate.ID()]; ok {
		t.Fatal("destroyed atom still in world table")
	}
}
