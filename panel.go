package bluespess

import "fmt"

// PanelProps describes a panel window as shown by the client.
type PanelProps struct {
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Title        string `json:"title,omitempty"`
	CanClose     bool   `json:"can_close"`
	ContentClass string `json:"content_class,omitempty"`
}

// Panel is a server-driven UI window on one client: opened once, fed
// messages, and closed from either side. The id keys all panel traffic on
// the wire.
type Panel struct {
	ID     string
	Props  PanelProps
	client *Client
	isOpen bool

	// BoundAtom and BoundMob give handlers context about what the panel
	// is showing.
	BoundAtom *Atom
	BoundMob  *Atom

	// OnMessage receives client-sent panel messages; OnClose fires when
	// the panel goes away from either side.
	OnMessage func(contents map[string]any)
	OnClose   func()
}

// NewPanel registers a panel on a client. Open must be called to show it.
func (w *World) NewPanel(client *Client, props PanelProps) *Panel {
	w.nextPanelID++
	p := &Panel{
		ID:     fmt.Sprintf("panel_%d", w.nextPanelID),
		Props:  props,
		client: client,
	}
	client.panels[p.ID] = p
	return p
}

// IsOpen reports whether the panel is showing.
func (p *Panel) IsOpen() bool { return p.isOpen }

// Open shows the panel. A panel opens at most once; create a new panel
// instead of reopening.
func (p *Panel) Open() error {
	if p.client == nil || p.client.panels[p.ID] == nil || p.isOpen {
		return fmt.Errorf("reopening panel %s is forbidden, create a new panel instead", p.ID)
	}
	p.client.enqueuePanelCreate(p.ID, p.Props)
	p.isOpen = true
	return nil
}

// SendMessage queues arbitrary contents to the client side of the panel.
func (p *Panel) SendMessage(contents any) {
	if p.client == nil {
		return
	}
	if !p.isOpen {
		p.client.world.log.WithField("panel", p.ID).Warn("message on unopened panel dropped")
		return
	}
	p.client.enqueuePanelMessage(p.ID, contents)
}

// Close tears the panel down, optionally telling the client.
func (p *Panel) Close(sendMessage bool) {
	if !p.isOpen {
		return
	}
	if p.client != nil && sendMessage {
		p.client.enqueuePanelClose(p.ID)
	}
	delete(p.client.panels, p.ID)
	p.isOpen = false
	if p.OnClose != nil {
		p.OnClose()
	}
	p.client = nil
}
