package bluespess

import (
	"fmt"
	"math"
)

// Loc is a place an atom can occupy: either a canonical world tile
// (*Location) or another atom's contents (*Atom).
type Loc interface {
	// Contents returns the atoms whose loc is exactly this place.
	Contents() []*Atom

	addContent(*Atom)
	removeContent(*Atom)
}

// Dimension maps integer (x,y,z) coordinates to singleton Location records.
// Locations are created lazily on first reference and cached forever.
type Dimension struct {
	world     *World
	locations map[locKey]*Location
}

type locKey struct {
	x, y, z int
}

func newDimension(world *World) *Dimension {
	return &Dimension{
		world:     world,
		locations: make(map[locKey]*Location),
	}
}

// Location returns the canonical tile for the given coordinates. X and Y
// are rounded, Z is floored. Non-finite coordinates are an invalid-input
// error.
func (d *Dimension) Location(x, y, z float64) (*Location, error) {
	if !isFinite(x) || !isFinite(y) || !isFinite(z) {
		return nil, fmt.Errorf("invalid location: %v,%v,%v", x, y, z)
	}
	return d.at(int(math.Round(x)), int(math.Round(y)), int(math.Floor(z))), nil
}

// at is the integer-coordinate fast path. Internal callers have already
// validated coordinates at the API boundary.
func (d *Dimension) at(x, y, z int) *Location {
	key := locKey{x, y, z}
	if loc, ok := d.locations[key]; ok {
		return loc
	}
	loc := &Location{X: x, Y: y, Z: z, dim: d}
	d.locations[key] = loc
	return loc
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Location is a canonical grid cell. Identity is by coordinate: there is
// exactly one Location per (x,y,z) in a dimension, and it is never
// destroyed.
type Location struct {
	X, Y, Z int

	dim *Dimension

	// partialContents are the atoms whose bounding box intersects this
	// tile; contents are only those whose origin is exactly here.
	partialContents []*Atom
	contents        []*Atom

	// viewers are Eye-bearing atoms whose visible set includes this tile;
	// hearers are Hearer-bearing atoms with this tile in range.
	viewers []*Atom
	hearers []*Atom

	stepCache [16]*Location
}

// Contents returns the atoms whose origin tile is this one.
func (l *Location) Contents() []*Atom { return l.contents }

// PartialContents returns the atoms whose bounding box intersects this tile.
func (l *Location) PartialContents() []*Atom { return l.partialContents }

// Viewers returns the Eye-bearing atoms that currently see this tile.
func (l *Location) Viewers() []*Atom { return l.viewers }

// Hearers returns the Hearer-bearing atoms with this tile in range.
func (l *Location) Hearers() []*Atom { return l.hearers }

func (l *Location) addContent(a *Atom)    { l.contents = append(l.contents, a) }
func (l *Location) removeContent(a *Atom) { l.contents = removeAtom(l.contents, a) }

// GetStep returns the neighboring tile in the given direction bitmask.
// Conflicting bits cancel. The result is cached on the tile, so repeated
// steps are O(1).
func (l *Location) GetStep(dir int) *Location {
	if dir&(North|South) == North|South {
		dir &^= North | South
	}
	if dir&(East|West) == East|West {
		dir &^= East | West
	}
	if cached := l.stepCache[dir]; cached != nil {
		return cached
	}
	newX, newY := l.X, l.Y
	if dir&North != 0 {
		newY++
	}
	if dir&South != 0 {
		newY--
	}
	if dir&East != 0 {
		newX++
	}
	if dir&West != 0 {
		newX--
	}
	step := l.dim.at(newX, newY, l.Z)
	l.stepCache[dir] = step
	return step
}

// Opacity reports whether any partial-content atom both blocks sight and
// fully encloses this tile.
func (l *Location) Opacity() bool {
	for _, atom := range l.partialContents {
		if atom.opacity && atom.EnclosesTile(l) {
			return true
		}
	}
	return false
}

// RecursiveContents returns the contents of this tile and, depth-first,
// everything they contain.
func (l *Location) RecursiveContents() []*Atom {
	var out []*Atom
	for _, item := range l.contents {
		out = append(out, item)
		out = append(out, item.RecursiveContents()...)
	}
	return out
}

func (l *Location) String() string {
	return fmt.Sprintf("[%d,%d,%d]", l.X, l.Y, l.Z)
}

func removeAtom(list []*Atom, a *Atom) []*Atom {
	for i, item := range list {
		if item == a {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func containsAtom(list []*Atom, a *Atom) bool {
	for _, item := range list {
		if item == a {
			return true
		}
	}
	return false
}
