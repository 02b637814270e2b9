package bluespess

import "testing"

func TestMoveUnobstructedLandsExactly(t *testing.T) {
	w := newTestWorld(t)
	crate := mustCreate(t, w, crateTemplate(), 0, 0, 0)
	if !crate.Move(7.25, -3.5, "walking") {
		t.Fatal("unobstructed move reported failure")
	}
	if crate.X() != 7.25 || crate.Y() != -3.5 {
		t.Fatalf("landed at %v,%v; want 7.25,-3.5", crate.X(), crate.Y())
	}
}

func TestMoveNeverTunnels(t *testing.T) {
	w := newTestWorld(t)
	mover := mustCreate(t, w, crateTemplate(), 0, 0, 0)
	mover.Density = 1
	mustCreate(t, w, wallTemplate(), 5, 0, 0)

	var bump *BumpEvent
	mover.OnBumped(func(ev BumpEvent) { bump = &ev })

	if mover.Move(10, 0, "walking") {
		t.Fatal("move through a wall reported success")
	}
	if mover.X() >= 5 {
		t.Fatalf("mover tunneled to x=%v", mover.X())
	}
	if mover.X() < 4 || mover.X() > 4.001 {
		t.Fatalf("mover should stop flush against the wall near x=4, got %v", mover.X())
	}
	if bump == nil {
		t.Fatal("no bump fired")
	}
	if bump.RemainingX <= 0 {
		t.Fatalf("bump should carry the undelivered offset, got %v", bump.RemainingX)
	}
}

func TestMoveBumpFiresBothDirections(t *testing.T) {
	w := newTestWorld(t)
	mover := mustCreate(t, w, crateTemplate(), 3, 0, 0)
	mover.Density = 1
	wall := mustCreate(t, w, wallTemplate(), 5, 0, 0)
	bumpedBy := 0
	wall.OnBumpedBy(func(ev BumpEvent) {
		bumpedBy++
		if ev.Bumper != mover {
			t.Fatalf("bumped_by carried wrong bumper %v", ev.Bumper)
		}
	})
	mover.Move(5, 0, "walking")
	if bumpedBy != 1 {
		t.Fatalf("expected one bumped_by event, got %d", bumpedBy)
	}
}

func TestMovePassFlagsAdmitCrosser(t *testing.T) {
	w := newTestWorld(t)
	mover := mustCreate(t, w, crateTemplate(), 0, 0, 0)
	mover.Density = 1
	mover.PassFlags = 2
	grille := mustCreate(t, w, wallTemplate(), 3, 0, 0)
	grille.LetPassFlags = 2

	if !mover.Move(6, 0, "walking") {
		t.Fatal("matching pass flags should admit the mover")
	}
	if mover.X() != 6 {
		t.Fatalf("mover stopped at %v", mover.X())
	}
}

func TestMoveCanMoveVeto(t *testing.T) {
	w := newTestWorld(t)
	crate := mustCreate(t, w, crateTemplate(), 0, 0, 0)
	crate.CanMove = func(offsetX, offsetY float64, reason string) bool { return false }
	if crate.Move(1, 0, "walking") {
		t.Fatal("vetoed move reported success")
	}
	if crate.X() != 0 {
		t.Fatalf("vetoed move displaced the atom to %v", crate.X())
	}
}

func TestMoveOffGridFails(t *testing.T) {
	w := newTestWorld(t)
	box := mustCreate(t, w, crateTemplate(), 0, 0, 0)
	item, err := w.CreateAtomWith(crateTemplate(), box)
	if err != nil {
		t.Fatal(err)
	}
	if item.Move(1, 0, "walking") {
		t.Fatal("contained atom should not grid-move")
	}
}

func TestTestMoveReportsProspectiveDiff(t *testing.T) {
	w := newTestWorld(t)
	a := mustCreate(t, w, crateTemplate(), 0, 0, 0)
	b := mustCreate(t, w, crateTemplate(), 2, 0, 0)

	result := a.TestMove(1.5, 0)
	if len(result.gained) != 1 || result.gained[0] != b {
		t.Fatalf("expected b gained, got %v", result.gained)
	}
	if len(result.lost) != 0 || len(result.common) != 0 {
		t.Fatalf("unexpected lost/common: %v/%v", result.lost, result.common)
	}

	// Commit the overlap, then test a move that keeps it.
	if err := a.MoveTo(1.5, 0, 0); err != nil {
		t.Fatal(err)
	}
	result = a.TestMove(1.6, 0)
	if len(result.common) != 1 || result.common[0] != b {
		t.Fatalf("expected b common, got %v", result.common)
	}
}
