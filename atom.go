package bluespess

import (
	"fmt"
	"math"
	"time"
)

// Atom is the base spatial object: a position, a bounding box, an
// appearance, and a bag of components. Every object in the world is one.
type Atom struct {
	world     *World
	id        uint64
	template  *Template
	destroyed bool

	x, y, z float64
	loc     Loc

	boundsX, boundsY          float64
	boundsWidth, boundsHeight float64

	contents []*Atom
	crosses  []*Atom

	// appearance
	icon         string
	iconState    string
	dir          int
	layer        float64
	name         string
	glideSize    float64
	screenLocX   *float64
	screenLocY   *float64
	mouseOpacity int
	color        string
	alpha        float64
	flick        *Flick
	visible      bool
	opacity      bool
	overlays     map[string]Overlay

	// Density controls crossing: 1 blocks, 0 is passable, -1 passes
	// through everything including density 1.
	Density int
	// PassFlags and LetPassFlags are matched bitwise: a crosser passes a
	// blocker when blocker.LetPassFlags&crosser.PassFlags != 0.
	PassFlags    int
	LetPassFlags int
	Gender       string

	// walking
	walking             bool
	walkStepping        bool
	WalkDir             int
	WalkSize            float64
	WalkDelay           time.Duration
	WalkReason          string
	MovementGranularity float64

	components     map[string]Component
	componentOrder []string

	viewers   []*Atom
	visgroups []*VisibilityGroup

	// Optional policy overrides. Nil means the default policy applies.
	CanMove        func(offsetX, offsetY float64, reason string) bool
	CanBeCrossed   func(crosser *Atom, offsetX, offsetY float64, reason string) bool
	CanBeUncrossed func(uncrosser *Atom, offsetX, offsetY float64, reason string) bool
	// SeenCheck, when set, further restricts which observers can see this
	// atom beyond tile visibility.
	SeenCheck func(viewer *Atom) bool

	events atomEvents
}

// Overlay is a named visual layered on top of an atom's own icon.
type Overlay struct {
	Icon         string  `json:"icon,omitempty" yaml:"icon"`
	IconState    string  `json:"icon_state,omitempty" yaml:"icon_state"`
	Dir          int     `json:"dir,omitempty" yaml:"dir"`
	Color        string  `json:"color,omitempty" yaml:"color"`
	Alpha        float64 `json:"alpha,omitempty" yaml:"alpha"`
	OverlayLayer float64 `json:"overlay_layer" yaml:"overlay_layer"`
}

// Flick is a transient animation override shown on an atom.
type Flick struct {
	Icon      string             `json:"icon,omitempty"`
	IconState string             `json:"icon_state,omitempty"`
	Dir       int                `json:"dir,omitempty"`
	Overlays  map[string]Overlay `json:"overlays,omitempty"`
	TimeBegin float64            `json:"time_begin"`
}

// ID returns the process-unique id of this atom, stable for its lifetime.
func (a *Atom) ID() uint64 { return a.id }

// World returns the world this atom lives in.
func (a *Atom) World() *World { return a.world }

// Destroyed reports whether Destroy has been called.
func (a *Atom) Destroyed() bool { return a.destroyed }

// Template returns the template this atom was constructed from, useful for
// reading initial variable values. Nil for bare atoms.
func (a *Atom) Template() *Template { return a.template }

// Contents returns the atoms whose loc is this atom.
func (a *Atom) Contents() []*Atom { return a.contents }

func (a *Atom) addContent(child *Atom)    { a.contents = append(a.contents, child) }
func (a *Atom) removeContent(child *Atom) { a.contents = removeAtom(a.contents, child) }

// RecursiveContents returns everything contained by this atom, depth-first.
func (a *Atom) RecursiveContents() []*Atom {
	var out []*Atom
	for _, item := range a.contents {
		out = append(out, item)
		out = append(out, item.RecursiveContents()...)
	}
	return out
}

// Crosses returns the atoms whose bounding boxes currently overlap this
// one's. The relation is symmetric.
func (a *Atom) Crosses() []*Atom { return a.crosses }

// Component returns the named component instance, or nil.
func (a *Atom) Component(name string) Component { return a.components[name] }

// HasComponent reports whether the atom carries the named component.
func (a *Atom) HasComponent(name string) bool {
	_, ok := a.components[name]
	return ok
}

// Position accessors. X/Y/Z follow the loc chain: an atom inside a
// container reports the container's position.

// X returns the effective x coordinate.
func (a *Atom) X() float64 {
	if container, ok := a.loc.(*Atom); ok {
		return container.X()
	}
	return a.x
}

// Y returns the effective y coordinate.
func (a *Atom) Y() float64 {
	if container, ok := a.loc.(*Atom); ok {
		return container.Y()
	}
	return a.y
}

// Z returns the effective z level.
func (a *Atom) Z() float64 {
	if container, ok := a.loc.(*Atom); ok {
		return container.Z()
	}
	return a.z
}

// Loc returns the current placement: a *Location, a containing *Atom, or
// nil (outside the world).
func (a *Atom) Loc() Loc { return a.loc }

// Bounds returns the bounding box offsets (x, y, width, height).
func (a *Atom) Bounds() (float64, float64, float64, float64) {
	return a.boundsX, a.boundsY, a.boundsWidth, a.boundsHeight
}

// SetX moves the atom to a new x coordinate on its current z level.
func (a *Atom) SetX(newX float64) error {
	if !isFinite(newX) {
		return fmt.Errorf("new x value %v is not a number", newX)
	}
	if _, onGrid := a.loc.(*Location); newX == a.x && onGrid {
		return nil
	}
	return a.changeLoc(newX, a.y, a.z, a.world.dim.at(roundCoord(newX), roundCoord(a.y), floorCoord(a.z)), nil)
}

// SetY moves the atom to a new y coordinate on its current z level.
func (a *Atom) SetY(newY float64) error {
	if !isFinite(newY) {
		return fmt.Errorf("new y value %v is not a number", newY)
	}
	if _, onGrid := a.loc.(*Location); newY == a.y && onGrid {
		return nil
	}
	return a.changeLoc(a.x, newY, a.z, a.world.dim.at(roundCoord(a.x), roundCoord(newY), floorCoord(a.z)), nil)
}

// SetZ moves the atom to a new z level at its current x/y.
func (a *Atom) SetZ(newZ float64) error {
	if !isFinite(newZ) {
		return fmt.Errorf("new z value %v is not a number", newZ)
	}
	if _, onGrid := a.loc.(*Location); newZ == a.z && onGrid {
		return nil
	}
	return a.changeLoc(a.x, a.y, newZ, a.world.dim.at(roundCoord(a.x), roundCoord(a.y), floorCoord(newZ)), nil)
}

// SetLoc reparents the atom: a world tile, a container atom, or nil to
// remove it from the world. Assigning the current loc is a no-op.
func (a *Atom) SetLoc(newLoc Loc) error {
	if newLoc == a.loc {
		return nil
	}
	if tile, ok := newLoc.(*Location); ok {
		return a.changeLoc(float64(tile.X), float64(tile.Y), float64(tile.Z), tile, nil)
	}
	return a.changeLoc(0, 0, 0, newLoc, nil)
}

// MoveTo places the atom at continuous world coordinates.
func (a *Atom) MoveTo(x, y, z float64) error {
	if !isFinite(x) || !isFinite(y) || !isFinite(z) {
		return fmt.Errorf("invalid fine loc %v,%v,%v", x, y, z)
	}
	return a.changeLoc(x, y, z, a.world.dim.at(roundCoord(x), roundCoord(y), floorCoord(z)), nil)
}

// SetBounds resizes the bounding box, recomputing tile membership and
// crossings at the current position.
func (a *Atom) SetBounds(boundsX, boundsY, width, height float64) error {
	if !isFinite(boundsX) || !isFinite(boundsY) || !isFinite(width) || !isFinite(height) {
		return fmt.Errorf("invalid bounds %v,%v,%v,%v", boundsX, boundsY, width, height)
	}
	if boundsX == a.boundsX && boundsY == a.boundsY && width == a.boundsWidth && height == a.boundsHeight {
		return nil
	}
	return a.changeLoc(a.x, a.y, a.z, a.loc, &bounds{boundsX, boundsY, width, height})
}

// BaseLoc walks up the loc chain to the world tile this atom ultimately
// occupies, or nil if it is not in the world.
func (a *Atom) BaseLoc() *Location {
	loc := a.loc
	for loc != nil {
		if tile, ok := loc.(*Location); ok {
			return tile
		}
		loc = loc.(*Atom).loc
	}
	return nil
}

// BaseMover walks up the loc chain to the outermost atom whose loc is a
// world tile (or the topmost container).
func (a *Atom) BaseMover() *Atom {
	mover := a
	for {
		container, ok := mover.loc.(*Atom)
		if !ok {
			return mover
		}
		mover = container
	}
}

// FineLoc returns the atom's full placement.
func (a *Atom) FineLoc() FineLoc {
	return FineLoc{X: a.X(), Y: a.Y(), Z: a.Z(), Loc: a.loc}
}

// PartialTiles returns every world tile the atom's bounding box intersects.
// Empty if the atom is not directly on the grid.
func (a *Atom) PartialTiles() []*Location {
	return a.tilesAt(a.x, a.y, a.boundsX, a.boundsY, a.boundsWidth, a.boundsHeight)
}

// MarginalTiles returns every world tile the bounding box touches even by
// an edge.
func (a *Atom) MarginalTiles() []*Location {
	if _, onGrid := a.loc.(*Location); !onGrid {
		return nil
	}
	var tiles []*Location
	x0 := int(math.Floor(a.x + a.boundsX - boundsEpsilon))
	x1 := int(math.Ceil(a.x + a.boundsX + a.boundsWidth + boundsEpsilon))
	y0 := int(math.Floor(a.y + a.boundsY - boundsEpsilon))
	y1 := int(math.Ceil(a.y + a.boundsY + a.boundsHeight + boundsEpsilon))
	z := floorCoord(a.z)
	for x := x0; x < x1; x++ {
		for y := y0; y < y1; y++ {
			tiles = append(tiles, a.world.dim.at(x, y, z))
		}
	}
	return tiles
}

func (a *Atom) tilesAt(x, y, bx, by, bw, bh float64) []*Location {
	if _, onGrid := a.loc.(*Location); !onGrid {
		return nil
	}
	var tiles []*Location
	x0, x1 := tileSpan(x, bx, bw)
	y0, y1 := tileSpan(y, by, bh)
	z := floorCoord(a.z)
	for tx := x0; tx < x1; tx++ {
		for ty := y0; ty < y1; ty++ {
			tiles = append(tiles, a.world.dim.at(tx, ty, z))
		}
	}
	return tiles
}

func tileSpan(pos, offset, size float64) (int, int) {
	return int(math.Floor(pos + offset + boundsEpsilon)), int(math.Ceil(pos + offset + size - boundsEpsilon))
}

func roundCoord(v float64) int { return int(math.Round(v)) }
func floorCoord(v float64) int { return int(math.Floor(v)) }

// EnclosesTile reports whether this atom's bounding box fully covers the
// given tile on the same z level.
func (a *Atom) EnclosesTile(tile *Location) bool {
	if _, onGrid := a.loc.(*Location); !onGrid || floorCoord(a.z) != tile.Z {
		return false
	}
	return a.x+a.boundsX-boundsEpsilon <= float64(tile.X) &&
		a.y+a.boundsY-boundsEpsilon <= float64(tile.Y) &&
		a.x+a.boundsX+a.boundsWidth+boundsEpsilon >= float64(tile.X)+1 &&
		a.y+a.boundsY+a.boundsHeight+boundsEpsilon >= float64(tile.Y)+1
}

// DoesCross reports whether this atom's bounding box overlaps the other's.
func (a *Atom) DoesCross(other *Atom) bool {
	return a.doesCrossAt(other, a.x, a.y)
}

// doesCrossAt tests overlap with this atom's box moved to (x,y). Both atoms
// must be directly on the grid on the same z level.
func (a *Atom) doesCrossAt(other *Atom, x, y float64) bool {
	if _, onGrid := a.loc.(*Location); !onGrid {
		return false
	}
	if _, onGrid := other.loc.(*Location); !onGrid {
		return false
	}
	if floorCoord(other.z) != floorCoord(a.z) {
		return false
	}
	return x+a.boundsX+a.boundsWidth-boundsEpsilon > other.x+other.boundsX &&
		x+a.boundsX+boundsEpsilon < other.x+other.boundsX+other.boundsWidth &&
		y+a.boundsY+a.boundsHeight-boundsEpsilon > other.y+other.boundsY &&
		y+a.boundsY+boundsEpsilon < other.y+other.boundsY+other.boundsHeight
}

// Appearance accessors. Writes mark the field dirty for every observer
// currently viewing this atom.

// Icon returns the icon file path.
func (a *Atom) Icon() string { return a.icon }

// SetIcon sets the icon file path.
func (a *Atom) SetIcon(v string) { a.icon = v; a.updateVar("icon") }

// IconState returns the state picked from the icon file.
func (a *Atom) IconState() string { return a.iconState }

// SetIconState sets the state picked from the icon file.
func (a *Atom) SetIconState(v string) { a.iconState = v; a.updateVar("icon_state") }

// Dir returns the facing direction bitmask.
func (a *Atom) Dir() int { return a.dir }

// SetDir sets the facing direction bitmask.
func (a *Atom) SetDir(v int) { a.dir = v; a.updateVar("dir") }

// Layer returns the draw-order layer.
func (a *Atom) Layer() float64 { return a.layer }

// SetLayer sets the draw-order layer.
func (a *Atom) SetLayer(v float64) { a.layer = v; a.updateVar("layer") }

// Name returns the display name.
func (a *Atom) Name() string { return a.name }

// SetName sets the display name.
func (a *Atom) SetName(v string) { a.name = v; a.updateVar("name") }

// GlideSize returns the client interpolation speed hint, in tiles/second.
func (a *Atom) GlideSize() float64 { return a.glideSize }

// SetGlideSize sets the client interpolation speed hint.
func (a *Atom) SetGlideSize(v float64) { a.glideSize = v; a.updateVar("glide_size") }

// ScreenLoc returns the HUD position override, nil components meaning no
// override.
func (a *Atom) ScreenLoc() (*float64, *float64) { return a.screenLocX, a.screenLocY }

// SetScreenLoc pins the atom to a screen position for HUD use. Pass nils to
// clear.
func (a *Atom) SetScreenLoc(x, y *float64) {
	a.screenLocX, a.screenLocY = x, y
	a.updateVar("screen_loc_x")
	a.updateVar("screen_loc_y")
}

// MouseOpacity returns the hit-test mode.
func (a *Atom) MouseOpacity() int { return a.mouseOpacity }

// SetMouseOpacity sets the hit-test mode.
func (a *Atom) SetMouseOpacity(v int) { a.mouseOpacity = v; a.updateVar("mouse_opacity") }

// Color returns the tint in CSS color format.
func (a *Atom) Color() string { return a.color }

// SetColor sets the tint in CSS color format.
func (a *Atom) SetColor(v string) { a.color = v; a.updateVar("color") }

// Alpha returns the transparency.
func (a *Atom) Alpha() float64 { return a.alpha }

// SetAlpha sets the transparency.
func (a *Atom) SetAlpha(v float64) { a.alpha = v; a.updateVar("alpha") }

// Flick returns the transient animation override, or nil.
func (a *Atom) Flick() *Flick { return a.flick }

// SetFlick sets a transient animation override. The begin time defaults to
// the world's current timestamp.
func (a *Atom) SetFlick(f *Flick) {
	if f != nil && f.TimeBegin == 0 {
		f.TimeBegin = a.world.Now()
	}
	a.flick = f
	a.updateVar("flick")
}

// Overlay returns the named overlay.
func (a *Atom) Overlay(key string) (Overlay, bool) {
	o, ok := a.overlays[key]
	return o, ok
}

// Overlays returns the overlay map. Callers must not mutate it directly;
// use SetOverlay/DeleteOverlay so changes reach observers.
func (a *Atom) Overlays() map[string]Overlay { return a.overlays }

// SetOverlay adds or replaces a named overlay and marks it dirty.
func (a *Atom) SetOverlay(key string, o Overlay) {
	if a.overlays == nil {
		a.overlays = make(map[string]Overlay)
	}
	a.overlays[key] = o
	a.updateOverlay(key)
}

// DeleteOverlay removes a named overlay and marks it dirty.
func (a *Atom) DeleteOverlay(key string) {
	if _, ok := a.overlays[key]; !ok {
		return
	}
	delete(a.overlays, key)
	a.updateOverlay(key)
}

// Visible reports whether the atom is networked to clients at all.
func (a *Atom) Visible() bool { return a.visible }

// SetVisible toggles whether the atom is networked, re-evaluating every
// viewer of the tiles it occupies.
func (a *Atom) SetVisible(v bool) {
	a.visible = v
	for _, tile := range a.PartialTiles() {
		for _, viewer := range tile.viewers {
			eye := eyeOf(viewer)
			if eye == nil {
				continue
			}
			if eye.CanSee(a) {
				eye.addViewing(a)
			} else {
				eye.removeViewing(a)
			}
		}
	}
}

// Opacity reports whether the atom blocks line of sight.
func (a *Atom) Opacity() bool { return a.opacity }

// SetOpacity toggles sight blocking, recomputing visibility for every
// observer tracking this atom, updating any lighting objects crossing it,
// and refreshing hearers on its tiles.
func (a *Atom) SetOpacity(v bool) {
	if a.opacity == v {
		return
	}
	a.opacity = v
	a.updateVar("opacity")
	for _, viewer := range append([]*Atom(nil), a.viewers...) {
		if eye := eyeOf(viewer); eye != nil {
			eye.RecalculateVisibleTiles()
		}
	}
	for _, crosser := range a.crosses {
		if lighting, ok := crosser.Component("LightingObject").(*LightingObject); ok {
			lighting.UpdateShadow(a)
		}
	}
	for _, tile := range a.PartialTiles() {
		for _, hearer := range tile.hearers {
			if h, ok := hearer.Component("Hearer").(*Hearer); ok {
				h.enqueueUpdateVisibleTiles()
			}
		}
	}
}

// updateVar enqueues a field diff for every observer currently viewing
// this atom.
func (a *Atom) updateVar(name string) {
	for _, viewer := range a.viewers {
		eye := eyeOf(viewer)
		if eye == nil {
			continue
		}
		if netid, ok := eye.serverToNet[a.id]; ok {
			eye.enqueueUpdateAtomVar(netid, a, name, updateKindVar)
		}
	}
}

func (a *Atom) updateOverlay(key string) {
	for _, viewer := range a.viewers {
		eye := eyeOf(viewer)
		if eye == nil {
			continue
		}
		if netid, ok := eye.serverToNet[a.id]; ok {
			eye.enqueueUpdateAtomVar(netid, a, key, updateKindOverlay)
		}
	}
}

// updateComponentVar enqueues a component-scoped field diff, keyed by
// (component name, field name).
func (a *Atom) updateComponentVar(component, field string) {
	for _, viewer := range a.viewers {
		eye := eyeOf(viewer)
		if eye == nil {
			continue
		}
		if netid, ok := eye.serverToNet[a.id]; ok {
			eye.enqueueUpdateComponentVar(netid, a, component, field)
		}
	}
}

// Destroy removes the atom from the world: component teardown, loc and
// crossing cleanup, then a terminal destroyed event.
func (a *Atom) Destroy() {
	if a.destroyed {
		return
	}
	a.destroyed = true
	for _, name := range a.componentOrder {
		if d, ok := a.components[name].(destroyable); ok {
			d.Destroy()
		}
	}
	a.SetLoc(nil)
	delete(a.world.atoms, a.id)
	for _, fn := range a.events.destroyed {
		fn()
	}
}

type destroyable interface {
	Destroy()
}

func (a *Atom) String() string {
	return a.name
}

type bounds struct {
	x, y, width, height float64
}
