package bluespess

import "testing"

func TestEyeTracksTileContents(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	crate := mustCreate(t, w, crateTemplate(), 2, 0, 0)
	eye := eyeOf(player)

	if !eye.Viewing(crate) {
		t.Fatal("crate in view range should be networked")
	}
	netid := eye.NetID(crate)
	if netid == "" {
		t.Fatal("viewed atom has no network id")
	}

	// Re-walking the visible set must not reassign ids.
	if err := player.MoveTo(1, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := crate.MoveTo(3, 0, 0); err != nil {
		t.Fatal(err)
	}
	if got := eye.NetID(crate); got != netid {
		t.Fatalf("network id changed from %s to %s while in sight", netid, got)
	}
}

func TestEyeForgetsNetIDOutOfSight(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	crate := mustCreate(t, w, crateTemplate(), 2, 0, 0)
	eye := eyeOf(player)
	first := eye.NetID(crate)

	if err := crate.MoveTo(50, 0, 0); err != nil {
		t.Fatal(err)
	}
	if eye.Viewing(crate) || eye.NetID(crate) != "" {
		t.Fatal("atom leaving sight should be forgotten")
	}

	if err := crate.MoveTo(2, 0, 0); err != nil {
		t.Fatal(err)
	}
	second := eye.NetID(crate)
	if second == "" {
		t.Fatal("atom re-entering sight not re-networked")
	}
	if second == first {
		t.Fatalf("forgotten id %s should not be reused", first)
	}
}

func TestEyeBlockedByWall(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	mustCreate(t, w, wallTemplate(), 3, 0, 0)
	hidden := mustCreate(t, w, crateTemplate(), 5, 0, 0)
	eye := eyeOf(player)
	if eye.Viewing(hidden) {
		t.Fatal("atom behind a wall should not be networked")
	}
}

func TestEyeXRaySeesThroughWalls(t *testing.T) {
	w := newTestWorld(t)
	tmpl := &Template{
		Name:       "seer",
		Components: []string{"Mob"},
		Vars: map[string]any{
			"components": map[string]any{
				"Eye": map[string]any{"xray": true},
			},
		},
	}
	player := mustCreate(t, w, tmpl, 0, 0, 0)
	mustCreate(t, w, wallTemplate(), 3, 0, 0)
	hidden := mustCreate(t, w, crateTemplate(), 5, 0, 0)
	if !eyeOf(player).Viewing(hidden) {
		t.Fatal("x-ray eye should network atoms behind walls")
	}
}

func TestEyeScreenPinning(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	hud, err := w.CreateAtomWith(crateTemplate(), nil)
	if err != nil {
		t.Fatal(err)
	}
	eye := eyeOf(player)

	eye.SetScreen("slot_a", hud)
	eye.SetScreen("slot_b", hud)
	if !eye.Viewing(hud) {
		t.Fatal("screen atom should be networked without tile visibility")
	}

	eye.SetScreen("slot_a", nil)
	if !eye.Viewing(hud) {
		t.Fatal("atom still pinned in another slot should stay networked")
	}
	eye.SetScreen("slot_b", nil)
	if eye.Viewing(hud) {
		t.Fatal("fully unpinned off-screen atom should be dropped")
	}
}

func TestEyeInvisibleAtomNotNetworked(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	crate := mustCreate(t, w, crateTemplate(), 2, 0, 0)
	eye := eyeOf(player)

	crate.SetVisible(false)
	if eye.Viewing(crate) {
		t.Fatal("invisible atom still networked")
	}
	crate.SetVisible(true)
	if !eye.Viewing(crate) {
		t.Fatal("restored atom not re-networked")
	}
}

func TestEyeSeenCheckVeto(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	crate := mustCreate(t, w, crateTemplate(), 20, 0, 0)
	crate.SeenCheck = func(viewer *Atom) bool { return false }
	if err := crate.MoveTo(2, 0, 0); err != nil {
		t.Fatal(err)
	}
	if eyeOf(player).Viewing(crate) {
		t.Fatal("seen check veto ignored")
	}
}

func TestVisibilityGroupOverridesVisible(t *testing.T) {
	w := newTestWorld(t)
	medium := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	mundane := mustCreate(t, w, playerTemplate(), 0, 2, 0)
	ghost := mustCreate(t, w, crateTemplate(), 2, 0, 0)
	ghost.SetVisible(false)

	group := NewVisibilityGroup()
	group.SetOverride("visible", true)
	group.AddAtom(ghost)
	group.AddViewer(medium)

	if !eyeOf(medium).Viewing(ghost) {
		t.Fatal("group viewer should see the hidden atom")
	}
	if eyeOf(mundane).Viewing(ghost) {
		t.Fatal("non-viewer should not see the hidden atom")
	}

	group.RemoveViewer(medium)
	if eyeOf(medium).Viewing(ghost) {
		t.Fatal("removed viewer should lose sight of the hidden atom")
	}
}

func TestVisibilityGroupLastAttachedWins(t *testing.T) {
	w := newTestWorld(t)
	viewer := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	crate := mustCreate(t, w, crateTemplate(), 2, 0, 0)

	first := NewVisibilityGroup()
	first.SetOverride("name", "disguise one")
	first.AddAtom(crate)
	first.AddViewer(viewer)

	second := NewVisibilityGroup()
	second.SetOverride("name", "disguise two")
	second.AddAtom(crate)
	second.AddViewer(viewer)

	value, ok := visgroupOverride(eyeOf(viewer), crate, "name")
	if !ok || value != "disguise two" {
		t.Fatalf("most recently attached group should win, got %v", value)
	}
}

func TestMobSetEyeSwapsView(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	camera := mustCreate(t, w, &Template{
		Name:       "camera",
		Components: []string{"Eye"},
	}, 40, 0, 0)
	nearPlayer := mustCreate(t, w, crateTemplate(), 2, 0, 0)
	nearCamera := mustCreate(t, w, crateTemplate(), 42, 0, 0)

	m := mobOf(player)
	if err := m.SetEye("", camera); err != nil {
		t.Fatalf("SetEye: %v", err)
	}
	if m.Eye("") != camera {
		t.Fatal("eye binding not replaced")
	}
	if !eyeOf(camera).Viewing(nearCamera) {
		t.Fatal("camera eye should see its surroundings")
	}
	if eyeOf(camera).Viewing(nearPlayer) {
		t.Fatal("camera eye should not see the player's surroundings")
	}

	// The same eye cannot be observed twice by one mob.
	if err := m.SetEye("alt", camera); err == nil {
		t.Fatal("duplicate observation accepted")
	}
}
