package engine

import (
	"math"

	"go.uber.org/zap"
)

// RidingZBoost is the minimum layer lift of a rider over its own base layer.
const RidingZBoost = 5

// CanRideTo reports whether RideTo(rider, obj) would link them. Moves check
// it before committing so a refused ride never leaves a half-mounted rider.
func (w *World) CanRideTo(rider, obj *Character) bool {
	if rider == nil || obj == nil || rider.id == obj.id || !obj.CanRide() {
		return false
	}
	if obj.riderID >= 0 && obj.riderID != rider.id {
		return false
	}
	return !w.ridesTransitively(obj, rider.id)
}

// RideTo links rider onto obj in both directions. It refuses occupied
// objects, self-riding and cycles.
func (w *World) RideTo(rider, obj *Character) bool {
	if !w.CanRideTo(rider, obj) {
		if rider != nil && obj != nil {
			w.logger.Warn("ride rejected", zap.Int("rider", rider.id), zap.Int("object", obj.id))
		}
		return false
	}
	if rider.Riding() && rider.ridingID != obj.id {
		w.GetOff(rider)
	}

	rider.ridingID = obj.id
	obj.riderID = rider.id

	target := rider.ScreenZ() + RidingZBoost
	if above := obj.StackingPriority() + 1; above > target {
		target = above
	}
	if boost := target - rider.ScreenZ(); boost > rider.zBoost {
		rider.zBoost = boost
	}

	w.emit(Event{Kind: EventRide, CharacterID: rider.id, TargetID: obj.id})
	return true
}

// GetOff clears the riding link of rider. Calling it on a character that
// rides nothing does nothing.
func (w *World) GetOff(rider *Character) {
	if rider == nil || !rider.Riding() {
		return
	}
	mountID := rider.ridingID
	if mount := w.Character(mountID); mount != nil && mount.riderID == rider.id {
		mount.riderID = NoCharacter
	}
	rider.ridingID = NoCharacter
	w.emit(Event{Kind: EventDismount, CharacterID: rider.id, TargetID: mountID})
}

// ridesTransitively reports whether obj stands, directly or through a stack,
// on the character with id.
func (w *World) ridesTransitively(obj *Character, id int) bool {
	cur := obj
	for i := 0; i <= len(w.chars); i++ {
		if cur.ridingID < 0 {
			return false
		}
		if cur.ridingID == id {
			return true
		}
		next := w.Character(cur.ridingID)
		if next == nil {
			return false
		}
		cur = next
	}
	return true
}

func (c *Character) startMoveToObjectOrGround() {
	c.getonFrameMax = 1 / c.DistancePerFrame()
	c.getonFrameCount = 0
	c.getonStartX = c.realX
	c.getonStartY = c.realY
}

func (c *Character) startJumpToObject() {
	c.getonStartX = c.realX
	c.getonStartY = c.realY
}

// interpolateRide eases a walk-on or walk-off toward its target.
func (c *Character) interpolateRide(w *World) {
	c.getonFrameCount++

	tx, ty := c.x, c.y
	if c.transition == TransitionOnto {
		mount := w.Character(c.ridingID)
		if mount == nil {
			c.transition = TransitionOff
		} else {
			tx = mount.realX
			ty = mount.realY - float64(mount.ObjectHeight())
		}
	}

	t := math.Min(c.getonFrameCount/c.getonFrameMax, 1)
	c.realX = Linear(t, c.getonStartX, tx-c.getonStartX, 1)
	c.realY = Linear(t, c.getonStartY, ty-c.getonStartY, 1)

	if c.getonFrameCount >= c.getonFrameMax {
		c.transition = TransitionNone
	}
}

// interpolateJumpOnto bends a jump so it lands on a possibly moving mount.
func (c *Character) interpolateJumpOnto(w *World) {
	mount := w.Character(c.ridingID)
	if mount == nil {
		return
	}
	h := float64(mount.ObjectHeight())
	tx, ty := mount.realX, mount.realY-h

	countMax := float64(c.jumpPeak * 2)
	t := math.Min((countMax-float64(c.jumpCount)+1)/countMax, 1)
	c.realX = Linear(t, c.getonStartX, tx-c.getonStartX, 1)
	c.realY = Linear(t, c.getonStartY, ty-c.getonStartY, 1)

	c.x = mount.x
	c.y = mount.y - h
}

// syncToMount copies the mount's position, lifted by its height.
func (c *Character) syncToMount(w *World) {
	mount := w.Character(c.ridingID)
	if mount == nil || !mount.CanRide() {
		w.GetOff(c)
		return
	}
	h := float64(mount.ObjectHeight())
	c.x = mount.x
	c.y = mount.y - h
	c.realX = mount.realX
	c.realY = mount.realY - h
}
