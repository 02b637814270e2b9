package bluespess

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// World owns everything: the tile grid, the atom table, the template and
// component registries, and the connected clients. All simulation state is
// mutated from a single goroutine driven by Run; outside goroutines hand
// work in through Do.
type World struct {
	log *logrus.Entry

	dim        *Dimension
	atoms      map[uint64]*Atom
	templates  map[string]*Template
	components map[string]ComponentInfo

	clients map[string]*Client
	// dcMobs parks mob atoms by login key while their player is gone.
	dcMobs map[string]*Atom

	nextAtomID  uint64
	nextNetID   uint64
	nextSoundID uint64
	nextPanelID uint64

	constructed  time.Time
	netTickDelay time.Duration

	commands chan func()
	deferred []func()

	upgrader websocket.Upgrader

	// OnClientLogin is called from the world goroutine after a client
	// logs in (and any reconnect affinity has been applied). Game code
	// uses it to create or assign a mob.
	OnClientLogin func(*Client)
}

// NewWorld builds an empty world with the built-in components registered.
func NewWorld(logger *logrus.Logger) *World {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	w := &World{
		log:          logger.WithField("system", "world"),
		atoms:        make(map[uint64]*Atom),
		templates:    make(map[string]*Template),
		components:   make(map[string]ComponentInfo),
		clients:      make(map[string]*Client),
		dcMobs:       make(map[string]*Atom),
		constructed:  time.Now(),
		netTickDelay: defaultNetTickDelay,
		commands:     make(chan func(), 256),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	w.dim = newDimension(w)
	w.registerBuiltins()
	return w
}

// SetNetTickDelay overrides the network flush cadence. Call before Run.
func (w *World) SetNetTickDelay(d time.Duration) { w.netTickDelay = d }

// Log returns the world's logger.
func (w *World) Log() *logrus.Entry { return w.log }

// Atoms returns the live atom table. Callers must not mutate it.
func (w *World) Atoms() map[uint64]*Atom { return w.atoms }

// Dimension returns the world's tile grid.
func (w *World) Dimension() *Dimension { return w.dim }

// Location returns the canonical tile at the given coordinates.
func (w *World) Location(x, y, z float64) (*Location, error) {
	return w.dim.Location(x, y, z)
}

func (w *World) registerBuiltins() {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(w.RegisterComponent(ComponentInfo{Name: "Eye", New: newEye}))
	must(w.RegisterComponent(ComponentInfo{
		Name:    "Mob",
		Depends: []string{"Eye"},
		// The eye must exist before the mob binds itself to it.
		LoadAfter: []string{"Eye"},
		New:       newMob,
	}))
	must(w.RegisterComponent(ComponentInfo{Name: "Hearer", New: newHearer}))
	must(w.RegisterComponent(ComponentInfo{Name: "LightingObject", New: newLightingObject}))
	must(w.RegisterComponent(ComponentInfo{
		Name: "LightSource",
		Defaults: map[string]any{
			"components": map[string]any{
				"LightSource": map[string]any{
					"enabled": false,
					"radius":  2,
					"color":   "#ffffff",
				},
			},
		},
		New: newLightSource,
	}))
}

// Now returns milliseconds since world construction. This timestamp is
// attached to outgoing frames for client clock-offset estimation.
func (w *World) Now() float64 {
	return float64(time.Since(w.constructed)) / float64(time.Millisecond)
}

func (w *World) newNetID() string {
	id := fmt.Sprintf("NET_%d", w.nextNetID)
	w.nextNetID++
	return id
}

// Defer queues a callback to run after the current command finishes, before
// the next one starts. Used to coalesce redundant recomputation: a burst of
// moves in one handler triggers one recompute.
func (w *World) Defer(fn func()) {
	w.deferred = append(w.deferred, fn)
}

func (w *World) drainDeferred() {
	// Deferred callbacks may defer more work; drain until quiet.
	for len(w.deferred) > 0 {
		pending := w.deferred
		w.deferred = nil
		for _, fn := range pending {
			fn()
		}
	}
}

// Do hands a closure to the world goroutine. It is the only safe way for
// other goroutines to touch simulation state.
func (w *World) Do(fn func()) {
	w.commands <- fn
}

// ScheduleAfter runs fn on the world goroutine after the given delay.
func (w *World) ScheduleAfter(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		w.Do(fn)
	})
}

// Run drives the world until the context is cancelled: inbound commands,
// deferred callbacks, and the fixed-rate network flush all execute here.
func (w *World) Run(ctx context.Context) {
	ticker := time.NewTicker(w.netTickDelay)
	defer ticker.Stop()
	w.log.WithField("net_tick", w.netTickDelay).Info("world running")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("world stopping")
			return
		case fn := <-w.commands:
			fn()
			w.drainDeferred()
		case <-ticker.C:
			w.drainDeferred()
			for _, client := range w.clients {
				client.SendNetworkUpdates()
			}
		}
	}
}

// Tick flushes all clients once. Exposed for tests and embedders driving
// the loop themselves.
func (w *World) Tick() {
	w.drainDeferred()
	for _, client := range w.clients {
		client.SendNetworkUpdates()
	}
}

// HandleConnection upgrades an HTTP request to a game session. The reader
// goroutine owns the socket; everything it learns is posted onto the world
// goroutine.
func (w *World) HandleConnection(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	go w.readLoop(conn)
}

func (w *World) readLoop(conn *websocket.Conn) {
	var client *Client
	defer func() {
		conn.Close()
		if client != nil {
			w.Do(func() { w.dropClient(client) })
		}
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if client == nil {
			var msg ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil || msg.Login == "" {
				continue
			}
			done := make(chan *Client, 1)
			w.Do(func() { done <- w.login(conn, msg.Login) })
			client = <-done
			if client == nil {
				return
			}
			continue
		}
		payload := data
		c := client
		w.Do(func() { c.handleMessage(payload) })
	}
}

// login creates the session for a key. A key already in use is rejected.
// Runs on the world goroutine.
func (w *World) login(conn *websocket.Conn, key string) *Client {
	if _, taken := w.clients[key]; taken {
		w.log.WithField("client", key).Warn("rejected login for connected key")
		return nil
	}
	client := newClient(w, conn, key)
	w.clients[key] = client
	if mob, ok := w.dcMobs[key]; ok {
		if err := client.SetMob(mob); err != nil {
			client.log.WithError(err).Warn("reattach failed")
		}
	}
	client.log.Info("client logged in")
	if w.OnClientLogin != nil {
		w.OnClientLogin(client)
	}
	return client
}

// dropClient tears a session down, parking its mob for reconnect. Runs on
// the world goroutine.
func (w *World) dropClient(c *Client) {
	if w.clients[c.Key] != c {
		return
	}
	c.detachMob()
	for _, panel := range c.panels {
		panel.Close(false)
	}
	delete(w.clients, c.Key)
	if c.conn != nil {
		c.conn.Close()
	}
	c.log.Info("client disconnected")
}

// Client returns the connected session for a login key, or nil.
func (w *World) Client(key string) *Client { return w.clients[key] }
