package bluespess

import "testing"

func newTestClient(t *testing.T, w *World, key string) *Client {
	t.Helper()
	c := newClient(w, nil, key)
	w.clients[key] = c
	return c
}

func TestClientInitialFlood(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	mustCreate(t, w, crateTemplate(), 2, 0, 0)

	c := newTestClient(t, w, "alice")
	if err := c.SetMob(player); err != nil {
		t.Fatalf("SetMob: %v", err)
	}
	msg := c.buildMessage()
	if len(msg.CreateAtoms) != 2 {
		t.Fatalf("expected player and crate created, got %d", len(msg.CreateAtoms))
	}
	if len(msg.AddTiles) == 0 {
		t.Fatal("initial flood carried no tiles")
	}
	hint, ok := msg.Eye[""]
	if !ok {
		t.Fatal("default eye hint missing")
	}
	if hint.X != 0 || hint.Y != 0 {
		t.Fatalf("eye hint at %v,%v; want 0,0", hint.X, hint.Y)
	}
}

func TestClientCreateSupersedesUpdate(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	crate := mustCreate(t, w, crateTemplate(), 2, 0, 0)
	c := newTestClient(t, w, "alice")
	c.SetMob(player)

	// Dirty a var while the create is still pending.
	if err := crate.MoveTo(3, 0, 0); err != nil {
		t.Fatal(err)
	}
	msg := c.buildMessage()
	if len(msg.UpdateAtoms) != 0 {
		t.Fatalf("updates should fold into the pending create, got %v", msg.UpdateAtoms)
	}
	for _, snap := range msg.CreateAtoms {
		if snap.Name == "crate" && snap.X != 3 {
			t.Fatalf("create snapshot carries stale position %v", snap.X)
		}
	}
}

func TestClientMoveProducesSingleUpdate(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	crate := mustCreate(t, w, crateTemplate(), 2, 0, 0)
	c := newTestClient(t, w, "alice")
	c.SetMob(player)
	c.buildMessage()

	if err := crate.MoveTo(3, 1, 0); err != nil {
		t.Fatal(err)
	}
	msg := c.buildMessage()
	if len(msg.UpdateAtoms) != 1 {
		t.Fatalf("expected one update entry, got %d", len(msg.UpdateAtoms))
	}
	update := msg.UpdateAtoms[0]
	if update["x"] != 3.0 || update["y"] != 1.0 {
		t.Fatalf("update carries %v", update)
	}
	if _, ok := update["name"]; ok {
		t.Fatal("clean fields should not be serialized")
	}
}

func TestClientDeleteCancelsPendingUpdate(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	crate := mustCreate(t, w, crateTemplate(), 2, 0, 0)
	c := newTestClient(t, w, "alice")
	c.SetMob(player)
	c.buildMessage()

	netid := eyeOf(player).NetID(crate)
	if err := crate.MoveTo(3, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := crate.MoveTo(50, 0, 0); err != nil {
		t.Fatal(err)
	}
	msg := c.buildMessage()
	if len(msg.UpdateAtoms) != 0 {
		t.Fatalf("update should be cancelled by the delete, got %v", msg.UpdateAtoms)
	}
	if len(msg.DeleteAtoms) != 1 || msg.DeleteAtoms[0] != netid {
		t.Fatalf("expected delete of %s, got %v", netid, msg.DeleteAtoms)
	}
}

func TestClientTileAddRemoveCancel(t *testing.T) {
	w := newTestWorld(t)
	c := newTestClient(t, w, "alice")
	tile := tileAt(t, w, 1, 1, 0)

	c.enqueueAddTile(tile)
	c.enqueueRemoveTile(tile)
	msg := c.buildMessage()
	if len(msg.AddTiles) != 0 || len(msg.RemoveTiles) != 0 {
		t.Fatalf("add/remove of the same tile should cancel, got %v/%v", msg.AddTiles, msg.RemoveTiles)
	}

	c.enqueueRemoveTile(tile)
	c.enqueueAddTile(tile)
	msg = c.buildMessage()
	if len(msg.AddTiles) != 0 || len(msg.RemoveTiles) != 0 {
		t.Fatalf("remove/add of the same tile should cancel, got %v/%v", msg.AddTiles, msg.RemoveTiles)
	}
}

func TestClientEmptyFrameSuppressed(t *testing.T) {
	w := newTestWorld(t)
	c := newTestClient(t, w, "alice")
	if msg := c.buildMessage(); !msg.empty() {
		t.Fatalf("idle client produced a non-empty frame: %+v", msg)
	}
}

func TestClientSecondEyeFloods(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	camera := mustCreate(t, w, &Template{Name: "camera", Components: []string{"Eye"}}, 40, 0, 0)
	remote := mustCreate(t, w, crateTemplate(), 42, 0, 0)
	c := newTestClient(t, w, "alice")
	c.SetMob(player)
	c.buildMessage()

	if err := mobOf(player).SetEye("alt", camera); err != nil {
		t.Fatalf("SetEye: %v", err)
	}
	msg := c.buildMessage()
	if _, ok := msg.Eye["alt"]; !ok {
		t.Fatal("alt eye hint missing")
	}
	found := false
	for _, snap := range msg.CreateAtoms {
		if snap.NetworkID == eyeOf(camera).NetID(remote) {
			found = true
		}
	}
	if !found {
		t.Fatal("atoms visible to the new eye were not created")
	}
}

func TestClientDetachFloodsDeletes(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	mustCreate(t, w, crateTemplate(), 2, 0, 0)
	c := newTestClient(t, w, "alice")
	c.SetMob(player)
	c.buildMessage()

	mobOf(player).SetClient(nil)
	msg := c.buildMessage()
	if len(msg.DeleteAtoms) != 2 {
		t.Fatalf("detach should delete the whole view, got %v", msg.DeleteAtoms)
	}
	if len(msg.RemoveTiles) == 0 {
		t.Fatal("detach should remove the visible tiles")
	}
	if w.dcMobs["alice"] != player {
		t.Fatal("detached mob not parked for reconnect")
	}
}

func TestDestroyConnectedMobNotParked(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	c := newTestClient(t, w, "alice")
	c.SetMob(player)
	c.buildMessage()

	player.Destroy()
	if c.Mob() != nil {
		t.Fatal("client still bound to the destroyed mob")
	}
	if len(w.dcMobs) != 0 {
		t.Fatalf("destroyed mob parked for reconnect: %v", w.dcMobs)
	}
}

func TestMobHandoffClearsOldReservation(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	c1 := newTestClient(t, w, "alice")
	c1.SetMob(player)

	c2 := newTestClient(t, w, "bob")
	if err := c2.SetMob(player); err != nil {
		t.Fatalf("SetMob: %v", err)
	}
	if mobOf(player).Client() != c2 || c1.Mob() != nil {
		t.Fatal("mob not handed off")
	}
	if _, parked := w.dcMobs["alice"]; parked {
		t.Fatal("old key still reserves the mob")
	}
	if mobOf(player).Key() != "bob" {
		t.Fatalf("key %q after handoff", mobOf(player).Key())
	}
}

func TestMobSetKeyAttachesConnectedClient(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	c := newTestClient(t, w, "bob")

	mobOf(player).SetKey("bob")
	if mobOf(player).Client() != c {
		t.Fatal("mob keyed to a connected client should attach")
	}
	if c.Mob() != player {
		t.Fatal("client missing the mob back-reference")
	}
	if _, parked := w.dcMobs["bob"]; parked {
		t.Fatal("attached mob should not stay parked")
	}
}

func TestClientVisgroupOverrideSerialization(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	crate := mustCreate(t, w, crateTemplate(), 2, 0, 0)
	c := newTestClient(t, w, "alice")
	c.SetMob(player)
	c.buildMessage()

	group := NewVisibilityGroup()
	group.AddAtom(crate)
	group.AddViewer(player)
	group.SetOverride("name", "mysterious shape")

	msg := c.buildMessage()
	if len(msg.UpdateAtoms) != 1 {
		t.Fatalf("override change should queue one update, got %d", len(msg.UpdateAtoms))
	}
	if msg.UpdateAtoms[0]["name"] != "mysterious shape" {
		t.Fatalf("override not applied at serialization: %v", msg.UpdateAtoms[0])
	}
	if crate.Name() != "crate" {
		t.Fatalf("override mutated real atom state: %q", crate.Name())
	}
}

func TestClientHandleMessage(t *testing.T) {
	w := newTestWorld(t)
	player := mustCreate(t, w, playerTemplate(), 0, 0, 0)
	crate := mustCreate(t, w, crateTemplate(), 2, 0, 0)
	c := newTestClient(t, w, "alice")
	c.SetMob(player)
	c.buildMessage()

	var keys []int
	player.OnKeydown(func(k KeyInput) { keys = append(keys, k.Which) })
	clicked := 0
	crate.OnClicked(func(click ClickInput) {
		clicked++
		if click.Mob != player || click.Client != c {
			t.Fatal("click context not filled in")
		}
	})

	c.handleMessage([]byte(`{"keydown":{"which":87}}`))
	if len(keys) != 1 || keys[0] != 87 {
		t.Fatalf("keydown not routed: %v", keys)
	}

	netid := eyeOf(player).NetID(crate)
	c.handleMessage([]byte(`{"click_on":{"atom_network_id":"` + netid + `"}}`))
	if clicked != 1 {
		t.Fatalf("click not routed, count %d", clicked)
	}
	c.handleMessage([]byte(`{"click_on":{"atom_network_id":"NET_9999"}}`))
	if clicked != 1 {
		t.Fatal("click on unknown network id should be dropped")
	}

	c.handleMessage([]byte(`not json`))
	c.handleMessage([]byte(`{"ping":true}`))
	msg := c.buildMessage()
	if !msg.Pong {
		t.Fatal("ping did not queue a pong")
	}
}
