package bluespess

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const clientWriteWait = 10 * time.Second

// netQueueEntry is the pending network state for one network id. At flush
// time exactly one of create/update/delete is emitted: a create supersedes
// updates queued after it, and a delete cancels both.
type netQueueEntry struct {
	create    *Atom
	createEye *Eye
	update    *updateSet
	del       bool
}

// updateSet accumulates the dirty field names for one atom since the last
// flush. Only named fields are serialized.
type updateSet struct {
	atom       *Atom
	eye        *Eye
	items      map[string]struct{}
	overlays   map[string]struct{}
	components map[string]map[string]struct{}
}

// nextMessage is the side-channel for one-shot message fields outside the
// per-atom diff queue.
type nextMessage struct {
	eyes  map[string]*Atom
	chat  []string
	sound *SoundMessage
	panel *PanelMessage
	pong  bool
}

// Client is one network session: a websocket, an optional mob binding, and
// the outgoing diff queues that turn engine-side dirty marks into at most
// one frame per tick.
type Client struct {
	world *World
	conn  *websocket.Conn
	log   *logrus.Entry

	// Key is the login name; SessionID distinguishes reconnects under the
	// same key.
	Key       string
	SessionID uuid.UUID

	mob *Atom

	atomQueue   map[string]*netQueueEntry
	queueOrder  []string
	netidToAtom map[string]*Atom

	addTiles    map[*Location]struct{}
	removeTiles map[*Location]struct{}

	next   nextMessage
	panels map[string]*Panel
}

func newClient(world *World, conn *websocket.Conn, key string) *Client {
	c := &Client{
		world:       world,
		conn:        conn,
		Key:         key,
		SessionID:   uuid.New(),
		atomQueue:   make(map[string]*netQueueEntry),
		netidToAtom: make(map[string]*Atom),
		addTiles:    make(map[*Location]struct{}),
		removeTiles: make(map[*Location]struct{}),
		panels:      make(map[string]*Panel),
	}
	c.log = world.log.WithFields(logrus.Fields{"client": key, "session": c.SessionID})
	return c
}

// Mob returns the atom this client controls, or nil.
func (c *Client) Mob() *Atom { return c.mob }

// SetMob binds the client to a mob atom, detaching any previous binding on
// either side and flushing the queues so the client's view follows the
// binding: deletes for everything the old mob's eyes exposed, creates for
// everything the new mob's eyes expose.
func (c *Client) SetMob(mob *Atom) error {
	if mob == c.mob {
		return nil
	}
	if mob != nil && mobOf(mob) == nil {
		return fmt.Errorf("%v does not have a mob", mob)
	}
	c.detachMob()
	if mob == nil {
		return nil
	}
	if prior := mobOf(mob).client; prior != nil && prior != c {
		prior.detachMob()
	}
	c.attachMob(mob)
	return nil
}

// attachMob wires the back-references and floods the client with the mob's
// current view. Callers have already detached both sides.
func (c *Client) attachMob(mob *Atom) {
	c.mob = mob
	m := mobOf(mob)
	m.client = c
	// The mob may still be reserved for another key; drop that entry so the
	// previous owner cannot reclaim it on a later login.
	delete(c.world.dcMobs, m.key)
	m.key = c.Key
	delete(c.world.dcMobs, c.Key)
	for eyeID, eyeAtom := range m.eyes {
		eye := eyeOf(eyeAtom)
		for netid, item := range eye.viewing {
			c.enqueueCreateAtom(netid, item, eye)
		}
		for tile := range eye.visibleTiles {
			c.enqueueAddTile(tile)
		}
		c.enqueueEyeHint(eyeID, eyeAtom)
	}
}

// detachMob severs the binding, queueing deletes for the whole view and
// parking the mob for reconnect.
func (c *Client) detachMob() {
	if c.mob == nil {
		return
	}
	m := mobOf(c.mob)
	for _, eyeAtom := range m.eyes {
		eye := eyeOf(eyeAtom)
		for netid := range eye.viewing {
			c.enqueueDeleteAtom(netid)
		}
		for tile := range eye.visibleTiles {
			c.enqueueRemoveTile(tile)
		}
	}
	m.client = nil
	if m.key != "" {
		c.world.dcMobs[m.key] = c.mob
	}
	c.mob = nil
}

// Diff queue. Entries keep insertion order; the collapse rules live here.

func (c *Client) queueEntry(netid string) *netQueueEntry {
	entry, ok := c.atomQueue[netid]
	if !ok {
		entry = &netQueueEntry{}
		c.atomQueue[netid] = entry
		c.queueOrder = append(c.queueOrder, netid)
	}
	return entry
}

func (c *Client) enqueueCreateAtom(netid string, atom *Atom, eye *Eye) {
	entry := c.queueEntry(netid)
	entry.create = atom
	entry.createEye = eye
	entry.update = nil
	entry.del = false
	c.netidToAtom[netid] = atom
}

func (c *Client) enqueueUpdateAtomVar(netid string, atom *Atom, varname string, kind int, eye *Eye) {
	entry := c.queueEntry(netid)
	// A pending create already carries the final value; a pending delete
	// makes the update moot.
	if entry.create != nil || entry.del {
		return
	}
	if entry.update == nil {
		entry.update = &updateSet{
			atom:       atom,
			eye:        eye,
			items:      make(map[string]struct{}),
			overlays:   make(map[string]struct{}),
			components: make(map[string]map[string]struct{}),
		}
	}
	if kind == updateKindOverlay {
		entry.update.overlays[varname] = struct{}{}
	} else {
		entry.update.items[varname] = struct{}{}
	}
}

func (c *Client) enqueueUpdateComponentVar(netid string, atom *Atom, component, field string) {
	entry := c.queueEntry(netid)
	if entry.create != nil || entry.del {
		return
	}
	if entry.update == nil {
		entry.update = &updateSet{
			atom:       atom,
			items:      make(map[string]struct{}),
			overlays:   make(map[string]struct{}),
			components: make(map[string]map[string]struct{}),
		}
	}
	fields, ok := entry.update.components[component]
	if !ok {
		fields = make(map[string]struct{})
		entry.update.components[component] = fields
	}
	fields[field] = struct{}{}
}

func (c *Client) enqueueDeleteAtom(netid string) {
	entry := c.queueEntry(netid)
	entry.create = nil
	entry.createEye = nil
	entry.update = nil
	entry.del = true
	delete(c.netidToAtom, netid)
}

func (c *Client) enqueueAddTile(tile *Location) {
	if _, pending := c.removeTiles[tile]; pending {
		delete(c.removeTiles, tile)
		return
	}
	c.addTiles[tile] = struct{}{}
}

func (c *Client) enqueueRemoveTile(tile *Location) {
	if _, pending := c.addTiles[tile]; pending {
		delete(c.addTiles, tile)
		return
	}
	c.removeTiles[tile] = struct{}{}
}

func (c *Client) enqueueEyeHint(eyeID string, eyeAtom *Atom) {
	if c.next.eyes == nil {
		c.next.eyes = make(map[string]*Atom)
	}
	c.next.eyes[eyeID] = eyeAtom
}

func (c *Client) enqueueChat(text string) {
	c.next.chat = append(c.next.chat, text)
}

func (c *Client) enqueueSoundPlay(s *Sound) {
	if c.next.sound == nil {
		c.next.sound = &SoundMessage{}
	}
	c.next.sound.Play = append(c.next.sound.Play, s)
}

func (c *Client) enqueueSoundStop(id string) {
	if c.next.sound == nil {
		c.next.sound = &SoundMessage{}
	}
	c.next.sound.Stop = append(c.next.sound.Stop, id)
}

func (c *Client) enqueuePanelCreate(id string, props PanelProps) {
	if c.next.panel == nil {
		c.next.panel = &PanelMessage{}
	}
	if c.next.panel.Create == nil {
		c.next.panel.Create = make(map[string]PanelProps)
	}
	c.next.panel.Create[id] = props
}

func (c *Client) enqueuePanelMessage(id string, contents any) {
	if c.next.panel == nil {
		c.next.panel = &PanelMessage{}
	}
	c.next.panel.Message = append(c.next.panel.Message, PanelContent{ID: id, Contents: contents})
}

func (c *Client) enqueuePanelClose(id string) {
	if c.next.panel == nil {
		c.next.panel = &PanelMessage{}
	}
	c.next.panel.Close = append(c.next.panel.Close, id)
}

// buildMessage drains the queues into one frame, applying visibility-group
// overrides at serialization time so real atom state is never mutated.
func (c *Client) buildMessage() *StateMessage {
	msg := &StateMessage{}
	for _, netid := range c.queueOrder {
		entry, ok := c.atomQueue[netid]
		if !ok {
			continue
		}
		switch {
		case entry.create != nil:
			msg.CreateAtoms = append(msg.CreateAtoms, c.snapshotAtom(netid, entry.create, entry.createEye))
		case entry.update != nil:
			msg.UpdateAtoms = append(msg.UpdateAtoms, c.serializeUpdate(netid, entry.update))
		case entry.del:
			msg.DeleteAtoms = append(msg.DeleteAtoms, netid)
		}
		delete(c.atomQueue, netid)
	}
	c.queueOrder = c.queueOrder[:0]

	for tile := range c.addTiles {
		msg.AddTiles = append(msg.AddTiles, tile.String())
		delete(c.addTiles, tile)
	}
	for tile := range c.removeTiles {
		msg.RemoveTiles = append(msg.RemoveTiles, tile.String())
		delete(c.removeTiles, tile)
	}

	if len(c.next.eyes) > 0 {
		msg.Eye = make(map[string]EyeHint, len(c.next.eyes))
		for eyeID, eyeAtom := range c.next.eyes {
			msg.Eye[eyeID] = EyeHint{X: eyeAtom.X(), Y: eyeAtom.Y(), GlideSize: eyeAtom.GlideSize()}
		}
	}
	msg.ToChat = c.next.chat
	msg.Sound = c.next.sound
	msg.Panel = c.next.panel
	msg.Pong = c.next.pong
	c.next = nextMessage{}
	return msg
}

// SendNetworkUpdates flushes everything queued since the last tick. An
// empty frame is suppressed entirely.
func (c *Client) SendNetworkUpdates() {
	msg := c.buildMessage()
	if msg.empty() {
		return
	}
	msg.Timestamp = c.world.Now()
	if c.conn == nil {
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.WithError(err).Warn("write failed, dropping client")
		c.world.dropClient(c)
	}
}

func (c *Client) snapshotAtom(netid string, a *Atom, eye *Eye) AtomSnapshot {
	snap := AtomSnapshot{
		NetworkID:    netid,
		Icon:         a.icon,
		IconState:    a.iconState,
		Dir:          a.dir,
		Layer:        a.layer,
		Name:         a.name,
		GlideSize:    a.glideSize,
		ScreenLocX:   a.screenLocX,
		ScreenLocY:   a.screenLocY,
		MouseOpacity: a.mouseOpacity,
		X:            a.X(),
		Y:            a.Y(),
		Opacity:      a.opacity,
		Flick:        a.flick,
		Color:        a.color,
		Alpha:        a.alpha,
		EyeID:        c.eyeIDFor(eye),
	}
	if len(a.overlays) > 0 {
		snap.Overlays = make(map[string]Overlay, len(a.overlays))
		for key, o := range a.overlays {
			snap.Overlays[key] = o
		}
	}
	for _, name := range a.componentOrder {
		nc, ok := a.components[name].(networkedComponent)
		if !ok {
			continue
		}
		snap.Components = append(snap.Components, name)
		if snap.ComponentVars == nil {
			snap.ComponentVars = make(map[string]map[string]any)
		}
		snap.ComponentVars[name] = nc.NetworkedVars()
	}
	if eye != nil {
		c.applySnapshotOverrides(&snap, a, eye)
	}
	return snap
}

// applySnapshotOverrides substitutes visibility-group values into a create
// snapshot for this viewer.
func (c *Client) applySnapshotOverrides(snap *AtomSnapshot, a *Atom, eye *Eye) {
	for _, name := range []string{"icon", "icon_state", "dir", "layer", "name", "color", "alpha", "opacity"} {
		value, ok := visgroupOverride(eye, a, name)
		if !ok {
			continue
		}
		switch name {
		case "icon":
			snap.Icon = toString(value)
		case "icon_state":
			snap.IconState = toString(value)
		case "dir":
			snap.Dir = toInt(value, snap.Dir)
		case "layer":
			snap.Layer = toFloat(value, snap.Layer)
		case "name":
			snap.Name = toString(value)
		case "color":
			snap.Color = toString(value)
		case "alpha":
			snap.Alpha = toFloat(value, snap.Alpha)
		case "opacity":
			snap.Opacity = toBool(value)
		}
	}
}

func (c *Client) serializeUpdate(netid string, update *updateSet) map[string]any {
	out := map[string]any{"network_id": netid}
	for item := range update.items {
		out[item] = atomVarValue(update.atom, item, update.eye)
	}
	if len(update.overlays) > 0 {
		overlays := make(map[string]any, len(update.overlays))
		for key := range update.overlays {
			if o, ok := update.atom.Overlay(key); ok {
				overlays[key] = o
			} else {
				overlays[key] = nil
			}
		}
		out["overlays"] = overlays
	}
	if len(update.components) > 0 {
		components := make(map[string]map[string]any, len(update.components))
		for name, fields := range update.components {
			nc, ok := update.atom.Component(name).(networkedComponent)
			if !ok {
				continue
			}
			vars := nc.NetworkedVars()
			sub := make(map[string]any, len(fields))
			for field := range fields {
				sub[field] = vars[field]
			}
			components[name] = sub
		}
		out["components"] = components
	}
	return out
}

// atomVarValue resolves one named field for the wire, honoring
// visibility-group overrides for the given eye.
func atomVarValue(a *Atom, name string, eye *Eye) any {
	if eye != nil {
		if value, ok := visgroupOverride(eye, a, name); ok {
			return value
		}
	}
	switch name {
	case "x":
		return a.X()
	case "y":
		return a.Y()
	case "icon":
		return a.icon
	case "icon_state":
		return a.iconState
	case "dir":
		return a.dir
	case "layer":
		return a.layer
	case "name":
		return a.name
	case "glide_size":
		return a.glideSize
	case "screen_loc_x":
		return a.screenLocX
	case "screen_loc_y":
		return a.screenLocY
	case "mouse_opacity":
		return a.mouseOpacity
	case "color":
		return a.color
	case "alpha":
		return a.alpha
	case "opacity":
		return a.opacity
	case "flick":
		return a.flick
	}
	return nil
}

// eyeIDFor maps an eye back to the name this client's mob knows it by.
func (c *Client) eyeIDFor(eye *Eye) string {
	if eye == nil || c.mob == nil {
		return ""
	}
	m := mobOf(c.mob)
	for eyeID, eyeAtom := range m.eyes {
		if eyeOf(eyeAtom) == eye {
			return eyeID
		}
	}
	return ""
}

// handleMessage routes one inbound frame. Malformed JSON is logged and
// dropped; it never takes the session or the tick down with it.
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.WithError(err).Warn("malformed client message")
		return
	}
	if msg.Keydown != nil && c.mob != nil {
		for _, fn := range c.mob.events.keydown {
			fn(*msg.Keydown)
		}
	}
	if msg.Keyup != nil && c.mob != nil {
		for _, fn := range c.mob.events.keyup {
			fn(*msg.Keyup)
		}
	}
	if msg.ClickOn != nil {
		click := *msg.ClickOn
		click.Atom = c.netidToAtom[click.AtomNetworkID]
		click.Mob = c.mob
		click.Client = c
		if click.Atom != nil {
			for _, fn := range click.Atom.events.clicked {
				fn(click)
			}
		}
	}
	if msg.Drag != nil {
		drag := *msg.Drag
		drag.From.Atom = c.netidToAtom[drag.From.AtomNetworkID]
		drag.To.Atom = c.netidToAtom[drag.To.AtomNetworkID]
		drag.Mob = c.mob
		drag.Client = c
		if drag.From.Atom != nil {
			for _, fn := range drag.From.Atom.events.dragged {
				fn(drag)
			}
		}
	}
	if msg.Panel != nil {
		for _, pm := range msg.Panel.Message {
			if panel, ok := c.panels[pm.ID]; ok && panel.OnMessage != nil {
				if contents, ok := pm.Contents.(map[string]any); ok {
					panel.OnMessage(contents)
				}
			}
		}
		for _, id := range msg.Panel.Close {
			if panel, ok := c.panels[id]; ok {
				panel.Close(false)
			}
		}
	}
	if msg.Ping {
		c.next.pong = true
	}
}
