package engine

import (
	"math"
)

// Page is one event page: movement settings plus the comment lines the
// object metadata is read from.
type Page struct {
	Comments  []string
	Direction Direction
	MoveSpeed int
	Frequency int
	Priority  Priority
	Through   bool
	Route     []Direction
	Repeat    bool
	Skippable bool
}

// Character is the player or a map event. Coordinates are in tiles; x/y is
// the logical position and realX/realY the drawn one.
type Character struct {
	id   int
	name string
	note string

	x, y         float64
	realX, realY float64
	direction    Direction
	moveSpeed    int
	frequency    int
	through      bool
	priority     Priority
	jumpPeak     int
	jumpCount    int
	stopCount    int

	movementSuccess bool
	lastOutcome     MoveOutcome

	pages     []Page
	pageIndex int
	route     []Direction
	routeIdx  int
	repeat    bool
	skippable bool

	mapObject bool
	object    ObjectConfig

	ridingID int
	riderID  int
	// zBoost lifts the drawn layer while riding.
	zBoost int

	waitAfterJump int

	transition      RideTransition
	getonFrameCount float64
	getonFrameMax   float64
	getonStartX     float64
	getonStartY     float64

	movingMode        MovingMode
	originalMoveSpeed int

	fallState       FallState
	pendingFall     bool
	fallArmed       bool
	fallArmedAt     int64
	fallSavedSpeed  int
	fallSavedThru   bool
	fallSavedFacing Direction
}

func newCharacter(id int, name string, x, y float64) *Character {
	return &Character{
		id:          id,
		name:        name,
		x:           x,
		y:           y,
		realX:       x,
		realY:       y,
		direction:   DirDown,
		moveSpeed:   4,
		frequency:   5,
		priority:    PrioritySame,
		lastOutcome: OutcomeNone,
		pageIndex:   -1,
		object:      DefaultObjectConfig(),
		ridingID:    NoCharacter,
		riderID:     NoCharacter,
	}
}

func (c *Character) ID() int { return c.id }
func (c *Character) Name() string { return c.name }
func (c *Character) IsPlayer() bool { return c.id == PlayerID }
func (c *Character) X() float64 { return c.x }
func (c *Character) Y() float64 { return c.y }
func (c *Character) RealX() float64 { return c.realX }
func (c *Character) RealY() float64 { return c.realY }
func (c *Character) Direction() Direction { return c.direction }
func (c *Character) MoveSpeed() int { return c.moveSpeed }
func (c *Character) Through() bool { return c.through }
func (c *Character) RidingID() int { return c.ridingID }
func (c *Character) RiderID() int { return c.riderID }
func (c *Character) FallState() FallState { return c.fallState }
func (c *Character) MovingMode() MovingMode { return c.movingMode }
func (c *Character) Transition() RideTransition { return c.transition }
func (c *Character) LastOutcome() MoveOutcome { return c.lastOutcome }
func (c *Character) WaitAfterJump() int { return c.waitAfterJump }
func (c *Character) Object() ObjectConfig { return c.object }
func (c *Character) IsMapObject() bool { return c.mapObject }
func (c *Character) PageIndex() int { return c.pageIndex }

// IsMovementSucceeded reports whether the last attempted step committed.
func (c *Character) IsMovementSucceeded() bool { return c.movementSuccess }

// Riding reports whether the character stands on an object.
func (c *Character) Riding() bool { return c.ridingID >= 0 }

// ObjectHeight is the ride height, -1 when the character cannot be ridden.
func (c *Character) ObjectHeight() int {
	if !c.mapObject {
		return -1
	}
	return c.object.Height
}

// CanRide reports whether something can stand on this character.
func (c *Character) CanRide() bool { return c.ObjectHeight() >= 0 }

// IsBox reports a pushable box object.
func (c *Character) IsBox() bool { return c.mapObject && c.object.Type == ObjectBox }

// IsMover reports whether the character can push boxes.
func (c *Character) IsMover() bool { return !c.IsBox() }

// RideFootprint is the tile a rider occupies when standing on this object.
func (c *Character) RideFootprint() (int, int) {
	return tileOf(c.x), tileOf(c.y) - c.ObjectHeight()
}

// SetPosition sets the logical position without touching the drawn one.
func (c *Character) SetPosition(x, y float64) {
	c.x, c.y = x, y
}

// SetDirection turns the character.
func (c *Character) SetDirection(d Direction) {
	if d.Valid() {
		c.direction = d
	}
	c.stopCount = 0
}

// SetMoveSpeed clamps and sets the move speed.
func (c *Character) SetMoveSpeed(speed int) {
	c.moveSpeed = clampSpeed(speed)
}

func clampSpeed(speed int) int {
	if speed < MinMoveSpeed {
		return MinMoveSpeed
	}
	if speed > MaxMoveSpeed {
		return MaxMoveSpeed
	}
	return speed
}

// SetThrough toggles pass-through of tiles and characters.
func (c *Character) SetThrough(through bool) { c.through = through }

// DistancePerFrame is 2^speed / 256 tiles.
func (c *Character) DistancePerFrame() float64 {
	return math.Pow(2, float64(c.moveSpeed)) / 256
}

// IsJumping reports an airborne character.
func (c *Character) IsJumping() bool { return c.jumpCount > 0 }

// IsMoving reports a drawn position lagging the logical one. A character
// resting on its mount is never moving.
func (c *Character) IsMoving() bool {
	if c.Riding() && c.transition == TransitionNone {
		return false
	}
	return c.realX != c.x || c.realY != c.y
}

// IsStopping reports neither moving nor jumping.
func (c *Character) IsStopping() bool { return !c.IsMoving() && !c.IsJumping() }

// IsIdle reports a fully stopped character with no transition left.
func (c *Character) IsIdle() bool {
	return c.IsStopping() && c.transition == TransitionNone
}

// Pos is the host's exact position comparison.
func (c *Character) Pos(x, y float64) bool { return c.x == x && c.y == y }

// IsNormalPriority reports a character that blocks others. Riders never do.
func (c *Character) IsNormalPriority() bool {
	if c.Riding() {
		return false
	}
	return c.priority == PrioritySame
}

// ScreenZ is the base drawing layer of the priority type.
func (c *Character) ScreenZ() int { return int(c.priority)*2 + 1 }

// StackingPriority is the drawing layer including the riding lift.
func (c *Character) StackingPriority() int { return c.ScreenZ() + c.zBoost }

// CanPass is the host's single-step passability check.
func (c *Character) CanPass(w *World, x, y float64, d Direction) bool {
	m := w.Map()
	x2, y2 := m.RoundXWithDirection(x, d), m.RoundYWithDirection(y, d)
	if !m.IsValid(x2, y2) {
		return false
	}
	if c.through {
		return true
	}
	if !c.isMapPassable(m, x, y, d) {
		return false
	}
	if w.IsCollided(c, x2, y2) {
		return false
	}
	return true
}

func (c *Character) isMapPassable(m Map, x, y float64, d Direction) bool {
	x2, y2 := m.RoundXWithDirection(x, d), m.RoundYWithDirection(y, d)
	return m.IsPassable(tileOf(x), tileOf(y), d) && m.IsPassable(tileOf(x2), tileOf(y2), d.Reverse())
}

// hostMoveStraight is the engine's plain one-tile step.
func (c *Character) hostMoveStraight(w *World, d Direction) {
	c.movementSuccess = c.CanPass(w, c.x, c.y, d)
	c.SetDirection(d)
	if !c.movementSuccess {
		return
	}
	m := w.Map()
	c.x = m.RoundXWithDirection(c.x, d)
	c.y = m.RoundYWithDirection(c.y, d)
	c.realX = m.XWithDirection(c.x, d.Reverse())
	c.realY = m.YWithDirection(c.y, d.Reverse())
}

// moveToDir commits a one-tile step without any checks. withAdjust snaps a
// vertical half step onto the grid.
func (c *Character) moveToDir(w *World, d Direction, withAdjust bool) {
	m := w.Map()
	c.SetDirection(d)
	c.x = m.RoundXWithDirection(c.x, d)
	c.y = m.RoundYWithDirection(c.y, d)
	c.realX = m.XWithDirection(c.x, d.Reverse())
	c.realY = m.YWithDirection(c.y, d.Reverse())
	if withAdjust {
		c.y = roundHalfUp(c.y)
	}
}

// hostJump starts a jump by (xPlus, yPlus). Jumping always dismounts.
func (c *Character) hostJump(w *World, xPlus, yPlus float64) {
	if math.Abs(xPlus) > math.Abs(yPlus) {
		if xPlus != 0 {
			if xPlus < 0 {
				c.SetDirection(DirLeft)
			} else {
				c.SetDirection(DirRight)
			}
		}
	} else if yPlus != 0 {
		if yPlus < 0 {
			c.SetDirection(DirUp)
		} else {
			c.SetDirection(DirDown)
		}
	}
	c.x += xPlus
	c.y += yPlus
	distance := int(roundHalfUp(math.Sqrt(xPlus*xPlus + yPlus*yPlus)))
	c.jumpPeak = 10 + distance - c.moveSpeed
	if c.jumpPeak < 1 {
		c.jumpPeak = 1
	}
	c.jumpCount = c.jumpPeak * 2
	c.stopCount = 0
	w.GetOff(c)
}

// Locate teleports the character. Teleporting always dismounts.
func (c *Character) Locate(w *World, x, y float64) {
	m := w.Map()
	c.x, c.y = m.RoundX(x), m.RoundY(y)
	c.realX, c.realY = c.x, c.y
	c.jumpCount = 0
	c.transition = TransitionNone
	w.GetOff(c)
}

// update is one frame of the character's own state.
func (c *Character) update(w *World) {
	if c.IsStopping() {
		c.updateStop(w)
	}
	if c.IsJumping() {
		c.updateJump(w)
	} else if c.IsMoving() {
		c.updateMove(w)
	}

	w.updateFall(c)

	if c.Riding() && c.transition == TransitionNone {
		c.syncToMount(w)
	}
	if c.waitAfterJump > 0 && !c.IsJumping() {
		c.waitAfterJump--
	}
}

func (c *Character) updateStop(w *World) {
	c.stopCount++
	if !c.Riding() {
		c.zBoost = 0
	}
	c.transition = TransitionNone
	if !c.IsPlayer() {
		c.updateRoute(w)
	}
}

// updateRoute advances a page's custom move route.
func (c *Character) updateRoute(w *World) {
	if len(c.route) == 0 || w.ControllerOf(c.id) != nil || c.fallState != FallNone || c.fallArmed {
		return
	}
	if c.stopCount <= 30*(5-c.frequency) {
		return
	}
	if c.routeIdx >= len(c.route) {
		if !c.repeat {
			return
		}
		c.routeIdx = 0
	}
	c.MoveStraight(w, c.route[c.routeIdx])
	if c.movementSuccess || c.skippable {
		c.routeIdx++
	}
}

func (c *Character) updateJump(w *World) {
	wasJumping := c.IsJumping()

	c.jumpCount--
	c.realX = (c.realX*float64(c.jumpCount) + c.x) / float64(c.jumpCount+1)
	c.realY = (c.realY*float64(c.jumpCount) + c.y) / float64(c.jumpCount+1)
	if c.jumpCount == 0 {
		m := w.Map()
		c.x, c.y = m.RoundX(c.x), m.RoundY(c.y)
		c.realX, c.realY = c.x, c.y
	}

	if wasJumping && c.Riding() && c.transition == TransitionOnto {
		c.interpolateJumpOnto(w)
	}
}

func (c *Character) updateMove(w *World) {
	wasMoving := c.IsMoving()

	dpf := c.DistancePerFrame()
	if c.x < c.realX {
		c.realX = math.Max(c.realX-dpf, c.x)
	}
	if c.x > c.realX {
		c.realX = math.Min(c.realX+dpf, c.x)
	}
	if c.y < c.realY {
		c.realY = math.Max(c.realY-dpf, c.y)
	}
	if c.y > c.realY {
		c.realY = math.Min(c.realY+dpf, c.y)
	}

	if c.transition != TransitionNone && c.IsMoving() {
		c.interpolateRide(w)
	}

	if wasMoving && !c.IsMoving() {
		c.onStepEnd(w)
	}
}

// onStepEnd runs once a step has fully finished.
func (c *Character) onStepEnd(w *World) {
	switch c.movingMode {
	case MovingPushing:
		if c.originalMoveSpeed > 0 {
			c.moveSpeed = c.originalMoveSpeed
		}
		c.originalMoveSpeed = 0
		c.movingMode = MovingDefault
	case MovingPushed:
		c.movingMode = MovingDefault
	}
	if c.pendingFall {
		c.pendingFall = false
		c.fallArmed = true
		c.fallArmedAt = w.Frame()
	}
}

// State snapshots the character for clients.
func (c *Character) State(w *World) CharacterState {
	s := CharacterState{
		ID:                c.id,
		Name:              c.name,
		X:                 c.x,
		Y:                 c.y,
		RealX:             c.realX,
		RealY:             c.realY,
		Direction:         c.direction,
		MoveSpeed:         c.moveSpeed,
		Through:           c.through,
		Priority:          c.priority,
		Page:              c.pageIndex,
		Moving:            c.IsMoving(),
		Jumping:           c.IsJumping(),
		MovementSucceeded: c.movementSuccess,
		LastOutcome:       c.lastOutcome,
		RidingID:          c.ridingID,
		RiderID:           c.riderID,
		ControlledBy:      NoCharacter,
		Controlling:       NoCharacter,
		FallState:         c.fallState,
		MovingMode:        c.movingMode,
		Transition:        c.transition,
		StackingPriority:  c.StackingPriority(),
		WaitAfterJump:     c.waitAfterJump,
	}
	if b := w.ControllerOf(c.id); b != nil {
		s.ControlledBy = b.Owner()
	}
	if b := w.BehaviorOwnedBy(c.id); b != nil {
		s.Controlling = b.Target()
	}
	if c.mapObject {
		obj := c.object
		s.Object = &obj
	}
	return s
}
