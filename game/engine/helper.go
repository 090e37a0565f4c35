package engine

import "math"

// AdvanceX applies floor(dist) single-step wraps along d, then adds the
// fractional remainder of one unit step.
func AdvanceX(m Map, x float64, d Direction, dist float64) float64 {
	whole := math.Floor(dist)
	dx := m.RoundXWithDirection(x, d)
	for i := 0; i < int(whole)-1; i++ {
		dx = m.RoundXWithDirection(dx, d)
	}
	if f := dist - whole; f > 0 {
		dx += d.DX() * f
	}
	return dx
}

// AdvanceY is AdvanceX for the vertical axis.
func AdvanceY(m Map, y float64, d Direction, dist float64) float64 {
	whole := math.Floor(dist)
	dy := m.RoundYWithDirection(y, d)
	for i := 0; i < int(whole)-1; i++ {
		dy = m.RoundYWithDirection(dy, d)
	}
	if f := dist - whole; f > 0 {
		dy += d.DY() * f
	}
	return dy
}

// advanceTile returns the rounded tile reached after dist steps along d.
func advanceTile(m Map, x, y float64, d Direction, dist float64) (int, int) {
	return tileOf(AdvanceX(m, x, d, dist)), tileOf(AdvanceY(m, y, d, dist))
}

// CanJumpGroove checks a two-tile jump over a groove tile. A character
// straddling two columns must clear the check in both of them.
func CanJumpGroove(w *World, c *Character, x, y float64, d Direction) MovingResult {
	if d.IsVertical() && IsHalfStep(x) {
		r1 := grooveJump(w, c, x-1, y, d)
		r2 := grooveJump(w, c, x, y, d)
		if !r1.Pass || !r2.Pass {
			return Rejected()
		}
		return r2
	}
	return grooveJump(w, c, x, y, d)
}

func grooveJump(w *World, c *Character, x, y float64, d Direction) MovingResult {
	m := w.Map()
	x1, y1 := tileOf(x), tileOf(y)
	toX, toY := AdvanceX(m, x, d, 2), AdvanceY(m, y, d, 2)
	x2, y2 := tileOf(toX), tileOf(toY)
	x3, y3 := advanceTile(m, x, y, d, 1)

	if !m.IsValid(float64(x2), float64(y2)) {
		return Rejected()
	}
	if !m.IsPassable(x1, y1, d) {
		return Rejected()
	}
	if !m.IsPassable(x2, y2, d.Reverse()) {
		return Rejected()
	}
	if w.IsCollided(c, toX, toY) {
		return Rejected()
	}
	if !m.IsGroove(x3, y3) {
		return Rejected()
	}
	return Allowed(float64(x2), float64(y2))
}

// CanJumpGroundToGround checks a two-tile jump down (or across) a cliff edge.
func CanJumpGroundToGround(w *World, c *Character, x, y float64, d Direction) MovingResult {
	if d.IsVertical() {
		// A vertical half step shortens the jump so the landing is flush.
		jumpLen := 2 - (y - math.Floor(y))
		if IsHalfStep(x) {
			r1 := cliffJump(w, c, x-1, y, d, jumpLen)
			r2 := cliffJump(w, c, x, y, d, jumpLen)
			if !r1.Pass || !r2.Pass {
				return Rejected()
			}
			return r2
		}
		return cliffJump(w, c, x, y, d, jumpLen)
	}

	if IsHalfStep(y) {
		r1 := cliffJump(w, c, x, y, d, 2)
		if !r1.Pass {
			return Rejected()
		}
		// Someone standing half a tile below the landing spot would be jumped over.
		toY := math.Ceil(r1.Y)
		if w.IsCollided(c, r1.X, toY) {
			if r2 := cliffJump(w, c, roundHalfUp(x), toY-1, d, 2); !r2.Pass {
				return Rejected()
			}
		}
		return r1
	}

	return cliffJump(w, c, x, y, d, 2)
}

func cliffJump(w *World, c *Character, x, y float64, d Direction, length float64) MovingResult {
	m := w.Map()
	fromX, fromY := tileOf(x), tileOf(y)
	toX, toY := AdvanceX(m, x, d, length), AdvanceY(m, y, d, length)
	iToX, iToY := tileOf(toX), tileOf(toY)

	if !m.IsValid(float64(iToX), float64(iToY)) {
		return Rejected()
	}
	// Passable on either side means there is no cliff here.
	if m.IsPassable(fromX, fromY, d) || m.IsPassable(iToX, iToY, d.Reverse()) {
		return Rejected()
	}
	if m.IsWall(iToX, iToY) {
		return Rejected()
	}
	if w.IsCollided(c, toX, toY) {
		return Rejected()
	}
	midX, midY := advanceTile(m, x, y, d, 1)
	if w.RiddenObjectAt(midX, midY, c.ID()) != nil {
		return Rejected()
	}
	return Allowed(toX, toY)
}

// CheckGroundToObject finds a free object whose ride footprint is length
// tiles ahead. The ground step must have been blocked unless ignorePassable.
func CheckGroundToObject(w *World, c *Character, x, y float64, d Direction, length float64, ignorePassable bool) *Character {
	m := w.Map()
	if !ignorePassable && m.IsPassable(tileOf(x), tileOf(y), d) {
		return nil
	}
	nx, ny := advanceTile(m, x, y, d, length)
	return w.ObjectAtRideFootprint(nx, ny, c.ID())
}

// CheckObjectToGround reports whether a rider may step (or jump) down to the
// ground length tiles ahead. The rider's logical position already carries
// its mount's height.
func CheckObjectToGround(w *World, c *Character, x, y float64, d Direction, length float64) bool {
	m := w.Map()
	nx, ny := advanceTile(m, x, y, d, length)
	if !m.IsValid(float64(nx), float64(ny)) {
		return false
	}
	if m.IsPassable(nx, ny, d.Reverse()) {
		return false
	}
	if m.IsWall(nx, ny) {
		return false
	}
	if w.IsCollided(c, float64(nx), float64(ny)) {
		return false
	}
	if c.IsBox() && !w.IsGuide(nx, ny) {
		return false
	}
	return true
}

// CheckObjectToObject finds another free object to transfer onto.
func CheckObjectToObject(w *World, c *Character, x, y float64, d Direction, length float64) *Character {
	nx, ny := advanceTile(w.Map(), x, y, d, length)
	return w.ObjectAtRideFootprint(nx, ny, c.ID())
}

// CanBoxStep is the ground step of a box: only onto guide terrain.
func CanBoxStep(w *World, c *Character, d Direction) MovingResult {
	m := w.Map()
	x2, y2 := m.RoundXWithDirection(c.x, d), m.RoundYWithDirection(c.y, d)
	if !w.IsGuide(tileOf(x2), tileOf(y2)) {
		return Rejected()
	}
	if !c.CanPass(w, c.x, c.y, d) {
		return Rejected()
	}
	return Allowed(x2, y2)
}

// CheckBoxEdge reports whether a fallable box on guide terrain can be pushed
// over the edge it faces. Nothing may be waiting to catch it.
func CheckBoxEdge(w *World, c *Character, d Direction) MovingResult {
	if !c.IsBox() || !c.Object().Fallable {
		return Rejected()
	}
	m := w.Map()
	x1, y1 := tileOf(c.x), tileOf(c.y)
	if !w.IsGuide(x1, y1) {
		return Rejected()
	}
	if m.IsPassable(x1, y1, d) {
		return Rejected()
	}
	x2, y2 := m.RoundXWithDirection(c.x, d), m.RoundYWithDirection(c.y, d)
	if !m.IsValid(x2, y2) || m.IsWall(tileOf(x2), tileOf(y2)) {
		return Rejected()
	}
	if w.ObjectAtRideFootprint(tileOf(x2), tileOf(y2), c.ID()) != nil {
		return Rejected()
	}
	if w.IsCollided(c, x2, y2) {
		return Rejected()
	}
	return Allowed(x2, y2)
}
