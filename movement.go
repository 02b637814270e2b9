package bluespess

import "math"

// moveResult is the prospective crossing diff for a candidate position.
type moveResult struct {
	gained []*Atom
	lost   []*Atom
	common []*Atom
}

// TestMove computes which crossings would be gained, lost, and kept if the
// atom moved its origin to (newX, newY), without committing anything.
func (a *Atom) TestMove(newX, newY float64) moveResult {
	var result moveResult
	if _, onGrid := a.loc.(*Location); !onGrid {
		return result
	}
	for _, tile := range a.tilesAt(a.x, a.y, a.boundsX, a.boundsY, a.boundsWidth, a.boundsHeight) {
		for _, other := range tile.partialContents {
			if other != a && other.DoesCross(a) && !containsAtom(result.lost, other) {
				result.lost = append(result.lost, other)
			}
		}
	}
	for _, tile := range a.tilesAt(newX, newY, a.boundsX, a.boundsY, a.boundsWidth, a.boundsHeight) {
		for _, other := range tile.partialContents {
			if other == a || !a.doesCrossAt(other, newX, newY) {
				continue
			}
			if i := indexOfAtom(result.lost, other); i == -1 {
				if !containsAtom(result.gained, other) && !containsAtom(result.common, other) {
					result.gained = append(result.gained, other)
				}
			} else {
				result.lost = append(result.lost[:i], result.lost[i+1:]...)
				result.common = append(result.common, other)
			}
		}
	}
	return result
}

// Move attempts to displace the atom by the given offset. The displacement
// is split into sub-steps no larger than one bounding-box unit so a fast
// mover cannot tunnel through a thin obstacle. When a step is blocked, a
// binary-search creep advances as far as legally possible and a bump is
// fired against the highest-layer blocker. Returns whether the full offset
// was achieved.
func (a *Atom) Move(offsetX, offsetY float64, reason string) bool {
	if _, onGrid := a.loc.(*Location); !onGrid {
		return false
	}
	if a.CanMove != nil && !a.CanMove(offsetX, offsetY, reason) {
		return false
	}
	granularity := a.MovementGranularity
	if granularity == 0 {
		granularity = defaultMovementGranularity
	}
	remainingX := offsetX
	remainingY := offsetY
	splits := math.Ceil(math.Max(math.Abs(offsetX)/a.boundsWidth, math.Abs(offsetY)/a.boundsHeight))
	stepX := offsetX / splits
	stepY := offsetY / splits
	clang := false
	cx := a.X()
	cy := a.Y()
	for i := 0.0; i < splits; i++ {
		newX := math.Round((cx+stepX)*granularity) / granularity
		newY := math.Round((cy+stepY)*granularity) / granularity
		result := a.TestMove(newX, newY)
		for _, gained := range result.gained {
			if !a.canCross(gained, remainingX, remainingY, reason) {
				clang = true
			}
		}
		if clang {
			break
		}
		for _, lost := range result.lost {
			if !a.canUncross(lost, remainingX, remainingY, reason) {
				clang = true
			}
		}
		if clang {
			break
		}
		cx += stepX
		cy += stepY
		a.changeLoc(newX, newY, a.z, a.world.dim.at(roundCoord(newX), roundCoord(newY), floorCoord(a.z)), nil)
		remainingX -= stepX
		remainingY -= stepY
	}
	if !clang {
		return true
	}

	// Creep: halve the remaining sub-step until we either fit or hit the
	// resolution floor, remembering the highest-layer blocker.
	var firstBump *Atom
	firstBumpLayer := math.Inf(-1)
	for i := 1.0; i*math.Max(math.Abs(stepX), math.Abs(stepY)) >= 1/granularity/2; i /= 2 {
		firstBumpLayer = math.Inf(-1)
		newX := math.Round((cx+stepX*i)*granularity) / granularity
		newY := math.Round((cy+stepY*i)*granularity) / granularity
		if newX == a.X() && newY == a.Y() {
			break
		}
		result := a.TestMove(newX, newY)
		clang = false
		for _, gained := range result.gained {
			if !a.canCross(gained, remainingX, remainingY, reason) {
				clang = true
				if gained.layer > firstBumpLayer {
					firstBumpLayer = gained.layer
					firstBump = gained
				}
			}
		}
		if !clang {
			for _, lost := range result.lost {
				if !a.canUncross(lost, remainingX, remainingY, reason) {
					clang = true
					firstBump = nil
					break
				}
			}
		}
		if clang {
			continue
		}
		cx += stepX * i
		cy += stepY * i
		a.changeLoc(newX, newY, a.z, a.world.dim.at(roundCoord(newX), roundCoord(newY), floorCoord(a.z)), nil)
		remainingX -= stepX * i
		remainingY -= stepY * i
	}
	if firstBump != nil {
		ev := BumpEvent{Bumper: a, Bumped: firstBump, RemainingX: remainingX, RemainingY: remainingY, Reason: reason}
		fireBump(a.events.bumped, ev)
		fireBump(firstBump.events.bumpedBy, ev)
	}
	return false
}

// canCross delegates to the blocker's policy.
func (a *Atom) canCross(crossing *Atom, offsetX, offsetY float64, reason string) bool {
	return crossing.canBeCrossed(a, offsetX, offsetY, reason)
}

// canUncross delegates to the atom being left behind.
func (a *Atom) canUncross(uncrossing *Atom, offsetX, offsetY float64, reason string) bool {
	return uncrossing.canBeUncrossed(a, offsetX, offsetY, reason)
}

// canBeCrossed is the default entry policy: a matching let-pass bit admits
// the crosser, otherwise density decides.
func (a *Atom) canBeCrossed(crosser *Atom, offsetX, offsetY float64, reason string) bool {
	if a.CanBeCrossed != nil {
		return a.CanBeCrossed(crosser, offsetX, offsetY, reason)
	}
	if a.LetPassFlags&crosser.PassFlags != 0 {
		return true
	}
	return crosser.Density < 0 || a.Density <= 0
}

// canBeUncrossed is the default exit policy: always allowed.
func (a *Atom) canBeUncrossed(uncrosser *Atom, offsetX, offsetY float64, reason string) bool {
	if a.CanBeUncrossed != nil {
		return a.CanBeUncrossed(uncrosser, offsetX, offsetY, reason)
	}
	return true
}

// Walking reports whether the walk timer is active.
func (a *Atom) Walking() bool { return a.walking }

// SetWalking toggles timed movement. While walking, the atom repeatedly
// moves by WalkSize in WalkDir every WalkDelay, and GlideSize is kept at
// WalkSize/WalkDelay so client interpolation matches the server cadence.
func (a *Atom) SetWalking(v bool) {
	a.walking = v
	a.walkStep()
}

func (a *Atom) walkStep() {
	if a.walkStepping || !a.walking {
		return
	}
	a.walkStepping = true
	offsetX, offsetY := 0.0, 0.0
	if a.WalkDir&North != 0 {
		offsetY += a.WalkSize
	}
	if a.WalkDir&South != 0 {
		offsetY -= a.WalkSize
	}
	if a.WalkDir&East != 0 {
		offsetX += a.WalkSize
	}
	if a.WalkDir&West != 0 {
		offsetX -= a.WalkSize
	}
	a.SetGlideSize(a.WalkSize / a.WalkDelay.Seconds())
	a.Move(offsetX, offsetY, a.WalkReason)
	// Move may have changed WalkDelay; re-derive so the glide still
	// matches the actual cadence.
	a.SetGlideSize(a.WalkSize / a.WalkDelay.Seconds())
	a.world.ScheduleAfter(a.WalkDelay, func() {
		a.walkStepping = false
		a.walkStep()
	})
}
