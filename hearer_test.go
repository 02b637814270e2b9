package bluespess

import "testing"

func listenerTemplate() *Template {
	return &Template{
		Name:       "listener",
		Components: []string{"Mob", "Hearer"},
		Vars:       map[string]any{"name": "listener"},
	}
}

func TestHearerRegistersOnVisibleTiles(t *testing.T) {
	w := newTestWorld(t)
	listener := mustCreate(t, w, listenerTemplate(), 0, 0, 0)
	w.drainDeferred()

	near := tileAt(t, w, 2, 0, 0)
	if !containsAtom(near.hearers, listener) {
		t.Fatal("hearer missing from a tile in view")
	}
	far := tileAt(t, w, 20, 0, 0)
	if containsAtom(far.hearers, listener) {
		t.Fatal("hearer registered beyond its view")
	}

	if err := listener.MoveTo(20, 0, 0); err != nil {
		t.Fatal(err)
	}
	w.drainDeferred()
	if containsAtom(near.hearers, listener) {
		t.Fatal("hearer still on old tiles after moving away")
	}
	if !containsAtom(far.hearers, listener) {
		t.Fatal("hearer missing from its new surroundings")
	}
}

func TestHearerRecomputeCoalesces(t *testing.T) {
	w := newTestWorld(t)
	listener := mustCreate(t, w, listenerTemplate(), 0, 0, 0)
	w.drainDeferred()
	h := listener.Component("Hearer").(*Hearer)

	listener.MoveTo(1, 0, 0)
	listener.MoveTo(2, 0, 0)
	listener.MoveTo(3, 0, 0)
	if !h.updateQueued {
		t.Fatal("moves should queue one recompute")
	}
	if len(w.deferred) != 1 {
		t.Fatalf("expected one deferred recompute, got %d", len(w.deferred))
	}
	w.drainDeferred()
	if h.updateQueued {
		t.Fatal("queue flag stuck after drain")
	}
}

func TestShowMessageVariants(t *testing.T) {
	w := newTestWorld(t)
	listener := mustCreate(t, w, listenerTemplate(), 0, 0, 0)
	speaker := mustCreate(t, w, crateTemplate(), 2, 0, 0)
	h := listener.Component("Hearer").(*Hearer)

	msg := NewChatMessage(MessageHear, "you hear a thump").Deaf("the floor vibrates")
	msg.Emitter = speaker
	if got := h.ShowMessage(msg); got != "you hear a thump" {
		t.Fatalf("hearing listener got %q", got)
	}

	h.CanHear = func(*Atom) bool { return false }
	if got := h.ShowMessage(msg); got != "the floor vibrates" {
		t.Fatalf("deaf listener got %q", got)
	}

	see := NewChatMessage(MessageSee, "the light flickers").Blind("something changes")
	see.Emitter = speaker
	h.CanHear = nil
	h.CanSee = func(*Atom) bool { return false }
	if got := h.ShowMessage(see); got != "something changes" {
		t.Fatalf("blind listener got %q", got)
	}

	// Neither sense works: the message vanishes entirely.
	h.CanHear = func(*Atom) bool { return false }
	if got := h.ShowMessage(msg); got != "" {
		t.Fatalf("senseless listener still got %q", got)
	}
}

func TestShowMessageSelfVariant(t *testing.T) {
	w := newTestWorld(t)
	listener := mustCreate(t, w, listenerTemplate(), 0, 0, 0)
	h := listener.Component("Hearer").(*Hearer)
	msg := NewChatMessage(MessageHear, "listener says something").Self("you say something")
	msg.Emitter = listener
	if got := h.ShowMessage(msg); got != "you say something" {
		t.Fatalf("emitter got %q", got)
	}
}

func TestChatDeliveredToClient(t *testing.T) {
	w := newTestWorld(t)
	listener := mustCreate(t, w, listenerTemplate(), 0, 0, 0)
	speaker := mustCreate(t, w, crateTemplate(), 2, 0, 0)
	w.drainDeferred()
	c := newTestClient(t, w, "alice")
	c.SetMob(listener)
	c.buildMessage()

	NewChatMessage(MessageHear, "clang").EmitFrom(speaker)
	msg := c.buildMessage()
	if len(msg.ToChat) != 1 || msg.ToChat[0] != "clang" {
		t.Fatalf("chat not delivered: %v", msg.ToChat)
	}
}

func TestChatRangeCap(t *testing.T) {
	w := newTestWorld(t)
	listener := mustCreate(t, w, listenerTemplate(), 0, 0, 0)
	speaker := mustCreate(t, w, crateTemplate(), 4, 0, 0)
	w.drainDeferred()
	c := newTestClient(t, w, "alice")
	c.SetMob(listener)
	c.buildMessage()

	NewChatMessage(MessageHear, "whisper").Range(2).EmitFrom(speaker)
	if msg := c.buildMessage(); len(msg.ToChat) != 0 {
		t.Fatalf("out-of-range message delivered: %v", msg.ToChat)
	}
}

func TestShowDirectlyToBypassesTiles(t *testing.T) {
	w := newTestWorld(t)
	listener := mustCreate(t, w, listenerTemplate(), 0, 0, 0)
	speaker := mustCreate(t, w, crateTemplate(), 50, 0, 0)
	w.drainDeferred()
	c := newTestClient(t, w, "alice")
	c.SetMob(listener)
	c.buildMessage()

	NewChatMessage(MessageHear, "psst").ShowDirectlyTo(listener, speaker)
	msg := c.buildMessage()
	if len(msg.ToChat) != 1 || msg.ToChat[0] != "psst" {
		t.Fatalf("direct message not delivered: %v", msg.ToChat)
	}
}

func TestFormatHTMLEscapes(t *testing.T) {
	got := FormatHTML("<b>%s</b> pokes %s", "<script>", "the crate")
	want := "<b>&lt;script&gt;</b> pokes the crate"
	if got != want {
		t.Fatalf("FormatHTML = %q, want %q", got, want)
	}
}
