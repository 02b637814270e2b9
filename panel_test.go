package bluespess

import "testing"

func TestPanelLifecycle(t *testing.T) {
	w := newTestWorld(t)
	c := newTestClient(t, w, "alice")

	p := w.NewPanel(c, PanelProps{Title: "Crate", Width: 400, Height: 300, CanClose: true})
	if p.IsOpen() {
		t.Fatal("panel open before Open")
	}
	if err := p.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	msg := c.buildMessage()
	if msg.Panel == nil {
		t.Fatal("no panel traffic queued")
	}
	props, ok := msg.Panel.Create[p.ID]
	if !ok {
		t.Fatalf("create missing for %s: %+v", p.ID, msg.Panel)
	}
	if props.Title != "Crate" || !props.CanClose {
		t.Fatalf("panel props mangled: %+v", props)
	}

	p.SendMessage(map[string]any{"verb": "examine"})
	msg = c.buildMessage()
	if msg.Panel == nil || len(msg.Panel.Message) != 1 || msg.Panel.Message[0].ID != p.ID {
		t.Fatalf("panel message not queued: %+v", msg.Panel)
	}

	closed := false
	p.OnClose = func() { closed = true }
	p.Close(true)
	msg = c.buildMessage()
	if msg.Panel == nil || len(msg.Panel.Close) != 1 || msg.Panel.Close[0] != p.ID {
		t.Fatalf("close not sent: %+v", msg.Panel)
	}
	if !closed {
		t.Fatal("OnClose not fired")
	}
	if _, still := c.panels[p.ID]; still {
		t.Fatal("closed panel still registered")
	}
}

func TestPanelReopenForbidden(t *testing.T) {
	w := newTestWorld(t)
	c := newTestClient(t, w, "alice")
	p := w.NewPanel(c, PanelProps{Title: "Once"})
	if err := p.Open(); err != nil {
		t.Fatal(err)
	}
	if err := p.Open(); err == nil {
		t.Fatal("second Open accepted")
	}
	p.Close(false)
	if err := p.Open(); err == nil {
		t.Fatal("reopen after close accepted")
	}
}

func TestPanelMessageBeforeOpenDropped(t *testing.T) {
	w := newTestWorld(t)
	c := newTestClient(t, w, "alice")
	p := w.NewPanel(c, PanelProps{Title: "Quiet"})
	p.SendMessage(map[string]any{"ignored": true})
	if msg := c.buildMessage(); msg.Panel != nil {
		t.Fatalf("message on unopened panel delivered: %+v", msg.Panel)
	}
}

func TestPanelClientTraffic(t *testing.T) {
	w := newTestWorld(t)
	c := newTestClient(t, w, "alice")
	p := w.NewPanel(c, PanelProps{Title: "Console"})
	if err := p.Open(); err != nil {
		t.Fatal(err)
	}
	c.buildMessage()

	var received map[string]any
	p.OnMessage = func(contents map[string]any) { received = contents }
	c.handleMessage([]byte(`{"panel":{"message":[{"id":"` + p.ID + `","contents":{"button":"eject"}}]}}`))
	if received == nil || received["button"] != "eject" {
		t.Fatalf("panel message not routed: %v", received)
	}

	closed := false
	p.OnClose = func() { closed = true }
	c.handleMessage([]byte(`{"panel":{"close":["` + p.ID + `"]}}`))
	if !closed {
		t.Fatal("client-side close not routed")
	}
	// The client already closed it; no close echo should go back.
	if msg := c.buildMessage(); msg.Panel != nil {
		t.Fatalf("unexpected echo after client close: %+v", msg.Panel)
	}
}
