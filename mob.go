package bluespess

import "fmt"

// Mob is the component that ties an atom to a player. It holds the client
// binding, the login key used for reconnect affinity, and a named map of
// eyes whose sight is relayed to the client. Every mob starts observing
// its own atom's eye under the default name "".
type Mob struct {
	atom   *Atom
	client *Client
	key    string
	eyes   map[string]*Atom
}

func newMob(atom *Atom, vars map[string]any) (Component, error) {
	m := &Mob{
		atom: atom,
		eyes: make(map[string]*Atom),
	}
	if err := m.SetEye("", atom); err != nil {
		return nil, err
	}
	return m, nil
}

// HostAtom returns the atom carrying this mob.
func (m *Mob) HostAtom() *Atom { return m.atom }

// mobOf returns the atom's Mob component, or nil.
func mobOf(a *Atom) *Mob {
	m, _ := a.Component("Mob").(*Mob)
	return m
}

// Eye returns the eye atom bound under the given name, or nil.
func (m *Mob) Eye(eyeID string) *Atom { return m.eyes[eyeID] }

// Client returns the currently attached client, or nil while disconnected.
func (m *Mob) Client() *Client { return m.client }

// Key returns the login key this mob is reserved for.
func (m *Mob) Key() string { return m.key }

// SetEye binds an eye atom under a name, replacing any previous binding.
// The attached client is flushed accordingly: everything the old eye showed
// is deleted, everything the new eye shows is created, and an origin hint
// is queued so the client knows which atom it is looking through. A nil
// eye clears the binding.
func (m *Mob) SetEye(eyeID string, eyeAtom *Atom) error {
	var eye *Eye
	if eyeAtom != nil {
		eye = eyeOf(eyeAtom)
		if eye == nil {
			return fmt.Errorf("%v does not have an eye", eyeAtom)
		}
		for _, observer := range eye.observers {
			if observer == m {
				return fmt.Errorf("%v is already observing %v", m.atom, eyeAtom)
			}
		}
	}

	oldAtom := m.eyes[eyeID]
	if oldAtom != nil {
		oldEye := eyeOf(oldAtom)
		if m.client != nil {
			for netid := range oldEye.viewing {
				m.client.enqueueDeleteAtom(netid)
			}
			for tile := range oldEye.visibleTiles {
				m.client.enqueueRemoveTile(tile)
			}
		}
		oldEye.observers = removeMob(oldEye.observers, m)
	}

	if eyeAtom == nil {
		delete(m.eyes, eyeID)
		return nil
	}
	m.eyes[eyeID] = eyeAtom
	eye.observers = append(eye.observers, m)
	if m.client != nil {
		for netid, item := range eye.viewing {
			m.client.enqueueCreateAtom(netid, item, eye)
		}
		for tile := range eye.visibleTiles {
			m.client.enqueueAddTile(tile)
		}
		m.client.enqueueEyeHint(eyeID, eyeAtom)
	}
	return nil
}

// SetKey reserves this mob for a login key. If a client with that key is
// already connected it is attached immediately; otherwise the mob is parked
// for reconnect. An empty key releases the reservation.
func (m *Mob) SetKey(key string) {
	if m.key != "" {
		delete(m.atom.world.dcMobs, m.key)
	}
	if key != "" {
		if client, ok := m.atom.world.clients[key]; ok {
			m.SetClient(client)
			return
		}
		m.atom.world.dcMobs[key] = m.atom
	}
	m.key = key
}

// SetClient attaches or detaches a client. Detaching parks the mob under
// its key so the same player reclaims it on reconnect.
func (m *Mob) SetClient(client *Client) {
	if client == nil {
		old := m.client
		m.client = nil
		if m.key != "" {
			m.atom.world.dcMobs[m.key] = m.atom
		}
		if old != nil && old.mob == m.atom {
			old.detachMob()
		}
		return
	}
	if m.client == client {
		return
	}
	if m.client != nil {
		m.client.detachMob()
	}
	client.attachMob(m.atom)
}

// Destroy detaches the client and unhooks every eye binding. The reconnect
// reservation is released before the detach, so a destroyed mob is never
// parked for a later login.
func (m *Mob) Destroy() {
	for eyeID := range m.eyes {
		m.SetEye(eyeID, nil)
	}
	delete(m.atom.world.dcMobs, m.key)
	m.key = ""
	if m.client != nil {
		m.SetClient(nil)
	}
}

func removeMob(list []*Mob, m *Mob) []*Mob {
	for i, item := range list {
		if item == m {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
