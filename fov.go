package bluespess

import "math"

// ComputeVisibleTiles returns the set of tiles an atom can see out to the
// given range, shadow-casting around opaque tiles. The scan walks outward in
// Manhattan rings so nearer blockers are processed before the tiles they
// shadow. For each opaque tile the contiguous opaque run through it is
// found, and the wedge behind the run is deleted from the visible set, the
// wedge edges widening linearly with distance. Tiles already consumed by a
// vertical run scan are skipped when encountered again later in the ring
// order; horizontal run scans do not consume tiles.
func (w *World) ComputeVisibleTiles(a *Atom, dist int) map[*Location]struct{} {
	visible := make(map[*Location]struct{})
	baseLoc := a.BaseLoc()
	if baseLoc == nil {
		return visible
	}
	baseX := roundCoord(a.X())
	baseY := roundCoord(a.Y())
	baseZ := floorCoord(a.Z())

	var ringTiles []*Location
	for i := 1; i <= dist*2; i++ {
		for j := max(i-dist, 0); j < i-max(i-dist-1, 0); j++ {
			ringTiles = append(ringTiles,
				w.dim.at(baseX+i-j, baseY+j, baseZ),
				w.dim.at(baseX-j, baseY+i-j, baseZ),
				w.dim.at(baseX-i+j, baseY-j, baseZ),
				w.dim.at(baseX+j, baseY-i+j, baseZ))
		}
	}
	for _, tile := range ringTiles {
		visible[tile] = struct{}{}
	}
	visible[baseLoc] = struct{}{}

	usedTiles := make(map[*Location]struct{})
	for _, tile := range ringTiles {
		if _, used := usedTiles[tile]; used {
			continue
		}
		dx := tile.X - baseX
		dy := tile.Y - baseY
		if !tile.Opacity() {
			continue
		}

		if tile.Y != baseY {
			left := float64(baseX)
			right := float64(baseX)
			for iter := tile; iter.Opacity() && iter.X >= baseX-dist; iter = iter.GetStep(West) {
				left = float64(iter.X)
			}
			for iter := tile; iter.Opacity() && iter.X <= baseX+dist; iter = iter.GetStep(East) {
				right = float64(iter.X)
			}
			vdir := 1
			if tile.Y < baseY {
				vdir = -1
			}
			leftDx := (left - float64(baseX)) / math.Abs(float64(dy))
			rightDx := (right - float64(baseX)) / math.Abs(float64(dy))
			for y := tile.Y; abs(y-baseY) <= dist; y += vdir {
				if y != tile.Y {
					for x := int(math.Ceil(left)); x <= int(math.Floor(right)); x++ {
						delete(visible, w.dim.at(x, y, baseZ))
					}
				}
				left += leftDx
				right += rightDx
			}
		}

		if tile.X != baseX {
			down := float64(baseY)
			up := float64(baseY)
			for iter := tile; iter.Opacity() && iter.Y >= baseY-dist; iter = iter.GetStep(South) {
				down = float64(iter.Y)
				usedTiles[iter] = struct{}{}
			}
			for iter := tile; iter.Opacity() && iter.Y <= baseY+dist; iter = iter.GetStep(North) {
				up = float64(iter.Y)
				usedTiles[iter] = struct{}{}
			}
			hdir := 1
			if tile.X < baseX {
				hdir = -1
			}
			downDy := (down - float64(baseY)) / math.Abs(float64(dx))
			upDy := (up - float64(baseY)) / math.Abs(float64(dx))
			for x := tile.X; abs(x-baseX) <= dist; x += hdir {
				if x != tile.X {
					for y := int(math.Ceil(down)); y <= int(math.Floor(up)); y++ {
						delete(visible, w.dim.at(x, y, baseZ))
					}
				}
				down += downDy
				up += upDy
			}
		}
	}
	return visible
}

// ComputeInRangeTiles returns every tile in the square of the given radius
// around the atom, ignoring opacity. Used for x-ray sight.
func (w *World) ComputeInRangeTiles(a *Atom, dist int) map[*Location]struct{} {
	tiles := make(map[*Location]struct{})
	if a.BaseLoc() == nil {
		return tiles
	}
	baseX := roundCoord(a.X())
	baseY := roundCoord(a.Y())
	baseZ := floorCoord(a.Z())
	for x := baseX - dist; x <= baseX+dist; x++ {
		for y := baseY - dist; y <= baseY+dist; y++ {
			tiles[w.dim.at(x, y, baseZ)] = struct{}{}
		}
	}
	return tiles
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
