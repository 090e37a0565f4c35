package engine

import "go.uber.org/zap"

// MoveStraight resolves one attempted step in direction d. Exactly one
// branch of the cascade commits, or none does; the result is reported
// through IsMovementSucceeded and LastOutcome.
func (c *Character) MoveStraight(w *World, d Direction) {
	c.movementSuccess = false
	c.lastOutcome = OutcomeNone
	if !d.Valid() {
		return
	}
	if c.waitAfterJump > 0 {
		c.lastOutcome = OutcomeLocked
		return
	}

	if c.Riding() {
		c.moveWhileRiding(w, d)
		c.SetDirection(d)
	} else {
		c.moveOnGround(w, d)
	}

	if c.movementSuccess {
		w.logger.Debug("step resolved",
			zap.Int("character", c.id),
			zap.Stringer("direction", d),
			zap.String("outcome", string(c.lastOutcome)),
			zap.Float64("x", c.x),
			zap.Float64("y", c.y),
		)
	}
}

func (c *Character) moveWhileRiding(w *World, d Direction) {
	switch {
	case c.tryMoveObjectToGround(w, d):
	case c.tryMoveObjectToObject(w, d):
	case c.canJump() && c.tryJumpObjectToGround(w, d):
	case c.canJump() && c.tryJumpObjectToObject(w, d):
	case w.settings.Push.AllowPushFromMount && c.tryPushObjectAndMove(w, d):
	}
}

func (c *Character) moveOnGround(w *World, d Direction) {
	if c.IsBox() {
		c.boxStep(w, d)
	} else {
		c.hostMoveStraight(w, d)
		if c.movementSuccess {
			c.lastOutcome = OutcomeStep
		}
	}
	if c.movementSuccess {
		return
	}

	switch {
	case c.canJump() && c.tryJumpGroundToGround(w, d):
	case c.canJump() && c.tryJumpGroove(w, d):
	case c.tryMoveGroundToObject(w, d):
	case c.canJump() && c.tryJumpGroundToObject(w, d):
	case c.tryPushObjectAndMove(w, d):
	}
}

// canJump is false for boxes; they only slide along guide terrain.
func (c *Character) canJump() bool { return !c.IsBox() }

func (c *Character) boxStep(w *World, d Direction) {
	c.SetDirection(d)
	if r := CanBoxStep(w, c, d); r.Pass {
		c.commitStep(w, d, r)
		c.lastOutcome = OutcomeStep
		return
	}
	if r := CheckBoxEdge(w, c, d); r.Pass {
		c.commitStep(w, d, r)
		c.pendingFall = true
		c.lastOutcome = OutcomeEdgeStep
	}
}

func (c *Character) commitStep(w *World, d Direction, r MovingResult) {
	m := w.Map()
	c.movementSuccess = true
	c.x, c.y = r.X, r.Y
	c.realX = m.XWithDirection(c.x, d.Reverse())
	c.realY = m.YWithDirection(c.y, d.Reverse())
}

// jumpToward jumps toward the tile containing (destX, destY). Toward the
// ground the fractional offsets are kept on the axis that is not travelled.
func (c *Character) jumpToward(w *World, d Direction, destX, destY float64, toObj bool) {
	x1, y1 := c.x, c.y
	if !toObj {
		x1 = roundHalfUp(c.x)
		if !d.IsVertical() {
			y1 = roundHalfUp(c.y)
		}
	}
	x2, y2 := roundHalfUp(destX), roundHalfUp(destY)
	c.hostJump(w, x2-x1, y2-y1)
	c.waitAfterJump = w.settings.JumpWaitFrames
	w.emitSound(c, w.settings.JumpSound)
}

func (c *Character) tryJumpGroundToGround(w *World, d Direction) bool {
	r := CanJumpGroundToGround(w, c, c.x, c.y, d)
	if !r.Pass {
		return false
	}
	c.movementSuccess = true
	c.jumpToward(w, d, r.X, r.Y, false)
	c.lastOutcome = OutcomeCliffJump
	return true
}

func (c *Character) tryJumpGroove(w *World, d Direction) bool {
	r := CanJumpGroove(w, c, c.x, c.y, d)
	if !r.Pass {
		return false
	}
	c.movementSuccess = true
	c.jumpToward(w, d, r.X, r.Y, false)
	c.lastOutcome = OutcomeGrooveJump
	return true
}

func (c *Character) tryMoveGroundToObject(w *World, d Direction) bool {
	obj := CheckGroundToObject(w, c, c.x, c.y, d, 1, false)
	if obj == nil || !w.CanRideTo(c, obj) {
		return false
	}
	c.movementSuccess = true
	c.startMoveToObjectOrGround()
	c.moveToDir(w, d, true)
	w.RideTo(c, obj)
	c.transition = TransitionOnto
	c.lastOutcome = OutcomeRideOn
	return true
}

func (c *Character) tryJumpGroundToObject(w *World, d Direction) bool {
	obj := CheckGroundToObject(w, c, c.x, c.y, d, 2, false)
	if obj == nil || !w.CanRideTo(c, obj) {
		return false
	}
	m := w.Map()
	c.movementSuccess = true
	c.jumpToward(w, d, AdvanceX(m, c.x, d, 2), AdvanceY(m, c.y, d, 2), true)
	w.RideTo(c, obj)
	c.startJumpToObject()
	c.transition = TransitionOnto
	c.lastOutcome = OutcomeRideJumpOn
	return true
}

func (c *Character) tryMoveObjectToGround(w *World, d Direction) bool {
	if !CheckObjectToGround(w, c, c.x, c.y, d, 1) {
		return false
	}
	c.movementSuccess = true
	c.startMoveToObjectOrGround()
	c.moveToDir(w, d, false)
	w.GetOff(c)
	c.transition = TransitionOff
	c.lastOutcome = OutcomeRideOff
	return true
}

func (c *Character) tryMoveObjectToObject(w *World, d Direction) bool {
	obj := CheckObjectToObject(w, c, c.x, c.y, d, 1)
	if obj == nil || !w.CanRideTo(c, obj) {
		return false
	}
	c.movementSuccess = true
	c.startMoveToObjectOrGround()
	c.moveToDir(w, d, false)
	w.GetOff(c)
	w.RideTo(c, obj)
	c.transition = TransitionOnto
	c.lastOutcome = OutcomeRideTransfer
	return true
}

func (c *Character) tryJumpObjectToGround(w *World, d Direction) bool {
	if !CheckObjectToGround(w, c, c.x, c.y, d, 2) {
		return false
	}
	m := w.Map()
	c.movementSuccess = true
	c.jumpToward(w, d, AdvanceX(m, c.x, d, 2), AdvanceY(m, c.y, d, 2), false)
	c.transition = TransitionOff
	c.lastOutcome = OutcomeRideJumpOff
	return true
}

func (c *Character) tryJumpObjectToObject(w *World, d Direction) bool {
	obj := CheckObjectToObject(w, c, c.x, c.y, d, 2)
	if obj == nil || !w.CanRideTo(c, obj) {
		return false
	}
	m := w.Map()
	c.movementSuccess = true
	c.jumpToward(w, d, AdvanceX(m, c.x, d, 2), AdvanceY(m, c.y, d, 2), true)
	w.RideTo(c, obj)
	c.startJumpToObject()
	c.transition = TransitionOnto
	c.lastOutcome = OutcomeRideJumpOver
	return true
}

// tryPushObjectAndMove pushes the box one tile ahead and follows it at the
// box's speed.
func (c *Character) tryPushObjectAndMove(w *World, d Direction) bool {
	if !c.IsMover() {
		return false
	}
	m := w.Map()
	policy := w.settings.Push
	dx, dy := advanceTile(m, c.x, c.y, d, 1)

	obj := w.MapObjectAt(dx, dy, c.id)
	if obj == nil || !obj.IsBox() || obj.riderID >= 0 {
		return false
	}
	if w.ControllerOf(obj.id) != nil || obj.fallState != FallNone || !obj.IsIdle() {
		return false
	}
	if c.Riding() {
		// From a mount the box must sit on the far side of an edge.
		if !policy.AllowPushFromMount || m.IsPassable(dx, dy, d.Reverse()) {
			return false
		}
	}
	if obj.Riding() {
		if !policy.AllowPushMountedObject || m.IsPassable(tileOf(c.x), tileOf(c.y), d) {
			return false
		}
	}

	if !obj.tryMoveAsPushable(w, d) {
		return false
	}

	if c.originalMoveSpeed == 0 {
		c.originalMoveSpeed = c.moveSpeed
	}
	c.moveSpeed = obj.moveSpeed
	c.startMoveToObjectOrGround()

	wasRiding := c.Riding()
	c.moveToDir(w, d, true)
	if wasRiding {
		w.GetOff(c)
		c.transition = TransitionOff
	} else if mount := w.ObjectAtRideFootprint(tileOf(c.x), tileOf(c.y), c.id); mount != nil && w.RideTo(c, mount) {
		c.transition = TransitionOnto
	}

	c.movingMode = MovingPushing
	c.movementSuccess = true
	c.lastOutcome = OutcomePush
	w.Attach(&PushBehavior{owner: c.id, target: obj.id})
	w.emit(Event{Kind: EventPush, CharacterID: c.id, TargetID: obj.id})
	return true
}

// tryMoveAsPushable runs the box's own cascade for one step.
func (c *Character) tryMoveAsPushable(w *World, d Direction) bool {
	c.MoveStraight(w, d)
	if !c.movementSuccess {
		return false
	}
	c.movingMode = MovingPushed
	return true
}
