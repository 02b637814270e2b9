package bluespess

import "time"

// Cardinal direction bits. Diagonals are combinations; conflicting bits
// (North|South, East|West) cancel each other out.
const (
	North = 1
	South = 2
	East  = 4
	West  = 8

	Northeast = North | East
	Northwest = North | West
	Southeast = South | East
	Southwest = South | West
)

// Mouse opacity modes for hit testing on the client.
const (
	MouseOpacityNone   = 0 // never receives mouse events
	MouseOpacityIcon   = 1 // icon pixels with nonzero alpha
	MouseOpacityBounds = 2 // whole bounding box
)

const (
	defaultNetTickDelay = 50 * time.Millisecond
	defaultWalkDelay    = 150 * time.Millisecond
	defaultWalkSize     = 1.0
	defaultGlideSize    = 10.0
	defaultViewRange    = 8

	// boundsEpsilon decides which integer tiles a bounding box spans,
	// avoiding flicker when an edge sits exactly on a tile boundary.
	boundsEpsilon = 0.00001

	// defaultMovementGranularity is the resolution floor for the
	// binary-search creep in Move, in subdivisions per tile. Kept a
	// power of two to avoid floating point error accumulation.
	defaultMovementGranularity = 65536
)
