package bluespess

// FineLoc is the full placement of an atom: continuous coordinates plus the
// place (world tile or container atom) it belongs to.
type FineLoc struct {
	X, Y, Z float64
	Loc     Loc
}

// OnGrid reports whether the placement is directly on a world tile.
func (f FineLoc) OnGrid() bool {
	_, ok := f.Loc.(*Location)
	return ok
}

// Offset is the displacement between two on-grid placements.
type Offset struct {
	X, Y, Z float64
}

// MoveEvent describes a placement change. Offset is non-nil only when both
// the old and new placements are on world tiles.
type MoveEvent struct {
	Atom   *Atom
	Old    FineLoc
	New    FineLoc
	Offset *Offset
}

// BumpEvent fires when a Move is stopped by a blocking atom. RemainingX and
// RemainingY hold the undelivered portion of the requested offset.
type BumpEvent struct {
	Bumper     *Atom
	Bumped     *Atom
	RemainingX float64
	RemainingY float64
	Reason     string
}

// KeyInput is a keydown/keyup report from a client.
type KeyInput struct {
	Which int    `json:"which"`
	ID    string `json:"id"`
}

// ClickInput is a mouse click routed from a client. Atom is resolved from
// the network id before dispatch; it is nil if the id is unknown.
type ClickInput struct {
	AtomNetworkID string  `json:"atom_network_id"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	CtrlKey       bool    `json:"ctrlKey"`
	ShiftKey      bool    `json:"shiftKey"`
	AltKey        bool    `json:"altKey"`
	Button        int     `json:"button"`

	Atom   *Atom   `json:"-"`
	Mob    *Atom   `json:"-"`
	Client *Client `json:"-"`
}

// DragInput is a mouse drag between two click targets.
type DragInput struct {
	From ClickInput `json:"from"`
	To   ClickInput `json:"to"`

	Mob    *Atom   `json:"-"`
	Client *Client `json:"-"`
}

// atomEvents holds the registered callback lists for an atom. Handlers fire
// in registration order. This replaces a dynamic emitter so each event site
// is typed and the fire-before-commit ordering in changeLoc stays explicit.
type atomEvents struct {
	beforeMove  []func(MoveEvent)
	moved       []func(MoveEvent)
	parentMoved []func(MoveEvent)

	beforeExit  []func(MoveEvent)
	beforeEnter []func(MoveEvent)
	exited      []func(MoveEvent)
	entered     []func(MoveEvent)

	crossed     []func(*Atom)
	crossedBy   []func(*Atom)
	uncrossed   []func(*Atom)
	uncrossedBy []func(*Atom)

	bumped   []func(BumpEvent)
	bumpedBy []func(BumpEvent)

	destroyed []func()

	keydown []func(KeyInput)
	keyup   []func(KeyInput)
	clicked []func(ClickInput)
	dragged []func(DragInput)
}

// OnBeforeMove registers a handler fired before any placement change. It is
// advisory only and cannot cancel the move.
func (a *Atom) OnBeforeMove(fn func(MoveEvent)) { a.events.beforeMove = append(a.events.beforeMove, fn) }

// OnMoved registers a handler fired after this atom's placement changes.
func (a *Atom) OnMoved(fn func(MoveEvent)) { a.events.moved = append(a.events.moved, fn) }

// OnParentMoved registers a handler fired when any container up the loc
// chain moves.
func (a *Atom) OnParentMoved(fn func(MoveEvent)) {
	a.events.parentMoved = append(a.events.parentMoved, fn)
}

// OnBeforeExit registers a handler fired before an atom leaves this atom's
// contents.
func (a *Atom) OnBeforeExit(fn func(MoveEvent)) { a.events.beforeExit = append(a.events.beforeExit, fn) }

// OnBeforeEnter registers a handler fired before an atom enters this atom's
// contents.
func (a *Atom) OnBeforeEnter(fn func(MoveEvent)) {
	a.events.beforeEnter = append(a.events.beforeEnter, fn)
}

// OnExited registers a handler fired after an atom leaves this atom's
// contents.
func (a *Atom) OnExited(fn func(MoveEvent)) { a.events.exited = append(a.events.exited, fn) }

// OnEntered registers a handler fired after an atom enters this atom's
// contents.
func (a *Atom) OnEntered(fn func(MoveEvent)) { a.events.entered = append(a.events.entered, fn) }

// OnCrossed registers a handler fired when this atom moves and begins
// overlapping another atom.
func (a *Atom) OnCrossed(fn func(*Atom)) { a.events.crossed = append(a.events.crossed, fn) }

// OnCrossedBy registers a handler fired when another atom moves and begins
// overlapping this one.
func (a *Atom) OnCrossedBy(fn func(*Atom)) { a.events.crossedBy = append(a.events.crossedBy, fn) }

// OnUncrossed registers a handler fired when this atom moves and stops
// overlapping another atom.
func (a *Atom) OnUncrossed(fn func(*Atom)) { a.events.uncrossed = append(a.events.uncrossed, fn) }

// OnUncrossedBy registers a handler fired when another atom moves and stops
// overlapping this one.
func (a *Atom) OnUncrossedBy(fn func(*Atom)) { a.events.uncrossedBy = append(a.events.uncrossedBy, fn) }

// OnBumped registers a handler fired when this atom's Move is blocked.
func (a *Atom) OnBumped(fn func(BumpEvent)) { a.events.bumped = append(a.events.bumped, fn) }

// OnBumpedBy registers a handler fired when this atom blocks another's Move.
func (a *Atom) OnBumpedBy(fn func(BumpEvent)) { a.events.bumpedBy = append(a.events.bumpedBy, fn) }

// OnDestroyed registers a handler fired once when the atom is destroyed.
func (a *Atom) OnDestroyed(fn func()) { a.events.destroyed = append(a.events.destroyed, fn) }

// OnKeydown registers a handler for keydown input routed via a bound client.
func (a *Atom) OnKeydown(fn func(KeyInput)) { a.events.keydown = append(a.events.keydown, fn) }

// OnKeyup registers a handler for keyup input routed via a bound client.
func (a *Atom) OnKeyup(fn func(KeyInput)) { a.events.keyup = append(a.events.keyup, fn) }

// OnClicked registers a handler for clicks on this atom.
func (a *Atom) OnClicked(fn func(ClickInput)) { a.events.clicked = append(a.events.clicked, fn) }

// OnDragged registers a handler for drags starting on this atom.
func (a *Atom) OnDragged(fn func(DragInput)) { a.events.dragged = append(a.events.dragged, fn) }

func fireMove(handlers []func(MoveEvent), ev MoveEvent) {
	for _, fn := range handlers {
		fn(ev)
	}
}

func fireAtom(handlers []func(*Atom), other *Atom) {
	for _, fn := range handlers {
		fn(other)
	}
}

func fireBump(handlers []func(BumpEvent), ev BumpEvent) {
	for _, fn := range handlers {
		fn(ev)
	}
}
