package engine

import "go.uber.org/zap"

// updateFall drives a fallable object once per frame. A fall armed at the
// end of a step only starts on a later frame.
func (w *World) updateFall(c *Character) {
	if c.fallArmed && c.fallState == FallNone && w.frame > c.fallArmedAt {
		c.fallArmed = false
		c.fallState = FallFalling
		c.fallSavedSpeed = c.moveSpeed
		c.fallSavedThru = c.through
		c.fallSavedFacing = c.direction
		w.emit(Event{Kind: EventFallStart, CharacterID: c.id, TargetID: NoCharacter})
		w.logger.Debug("fall started", zap.Int("character", c.id), zap.Float64("x", c.x), zap.Float64("y", c.y))
	}

	switch c.fallState {
	case FallFalling:
		if c.IsMoving() || c.IsJumping() {
			return
		}
		m := w.Map()
		if w.IsGuide(tileOf(c.x), tileOf(c.y)) {
			w.land(c)
			return
		}
		if obj := CheckGroundToObject(w, c, c.x, c.y, DirDown, 1, true); obj != nil && w.CanRideTo(c, obj) {
			c.through = c.fallSavedThru
			c.startMoveToObjectOrGround()
			c.moveToDir(w, DirDown, true)
			c.direction = c.fallSavedFacing
			w.RideTo(c, obj)
			c.transition = TransitionOnto
			c.fallState = FallEpilogueToRide
			return
		}
		if !m.IsValid(c.x, m.RoundYWithDirection(c.y, DirDown)) {
			w.land(c)
			return
		}
		c.moveSpeed = w.settings.FallSpeed
		c.through = true
		c.hostMoveStraight(w, DirDown)
		c.direction = c.fallSavedFacing
		if !c.movementSuccess {
			w.land(c)
		}

	case FallEpilogueToRide:
		if c.transition == TransitionNone && !c.IsMoving() {
			w.land(c)
		}
	}
}

// land ends a fall, restoring what the fall overrode.
func (w *World) land(c *Character) {
	if c.fallSavedSpeed > 0 {
		c.moveSpeed = c.fallSavedSpeed
	}
	c.through = c.fallSavedThru
	c.fallState = FallNone
	c.fallSavedSpeed = 0

	w.emitSound(c, w.settings.LandSound)
	w.emit(Event{Kind: EventLanded, CharacterID: c.id, TargetID: NoCharacter})
	if trigger := c.object.Trigger; trigger != "" {
		w.emit(Event{Kind: EventTrigger, CharacterID: c.id, TargetID: NoCharacter, Name: trigger})
	}
	w.logger.Debug("landed", zap.Int("character", c.id), zap.Float64("x", c.x), zap.Float64("y", c.y))

	c.onStepEnd(w)
}
