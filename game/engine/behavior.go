package engine

import (
	"sort"

	"go.uber.org/zap"
)

// Behavior is a temporary owner→target control attachment. While attached
// the target's steps are driven by the owner instead of its own input.
type Behavior interface {
	Kind() string
	Owner() int
	Target() int
	// Running reports a controlled step still in flight.
	Running() bool
	// Update runs once per frame and reports whether the attachment is done.
	Update(w *World) bool
	clone() Behavior
}

// PushBehavior lives from a successful push until the box stops, or until
// it lands if the push sent it over an edge.
type PushBehavior struct {
	owner, target int
}

func (b *PushBehavior) Kind() string  { return "push" }
func (b *PushBehavior) Owner() int    { return b.owner }
func (b *PushBehavior) Target() int   { return b.target }
func (b *PushBehavior) Running() bool { return true }

func (b *PushBehavior) Update(w *World) bool {
	t := w.Character(b.target)
	if t == nil {
		return true
	}
	return t.settledAfterStep()
}

func (b *PushBehavior) clone() Behavior {
	cp := *b
	return &cp
}

// SkillMoveBehavior hands the owner's next directional input to the target.
type SkillMoveBehavior struct {
	owner, target int
	running       bool
	dir           Direction
}

func (b *SkillMoveBehavior) Kind() string  { return "skill_move" }
func (b *SkillMoveBehavior) Owner() int    { return b.owner }
func (b *SkillMoveBehavior) Target() int   { return b.target }
func (b *SkillMoveBehavior) Running() bool { return b.running }

// Direct feeds the one-shot direction to the target. It reports false when
// the target could not move.
func (b *SkillMoveBehavior) Direct(w *World, d Direction) bool {
	t := w.Character(b.target)
	if t == nil || b.running {
		return false
	}
	t.MoveStraight(w, d)
	if !t.movementSuccess {
		return false
	}
	b.running = true
	b.dir = d
	return true
}

func (b *SkillMoveBehavior) Update(w *World) bool {
	if !b.running {
		return false
	}
	t := w.Character(b.target)
	if t == nil {
		return true
	}
	return t.settledAfterStep()
}

func (b *SkillMoveBehavior) clone() Behavior {
	cp := *b
	return &cp
}

// settledAfterStep reports a target whose step, and any fall it started, is over.
func (c *Character) settledAfterStep() bool {
	if c.fallState != FallNone || c.fallArmed || c.pendingFall {
		return false
	}
	return c.IsIdle()
}

// Attach registers b on its target, replacing a stale attachment.
func (w *World) Attach(b Behavior) {
	if old, ok := w.behaviors[b.Target()]; ok {
		w.logger.Warn("behavior overwritten",
			zap.String("old", old.Kind()),
			zap.Int("old_owner", old.Owner()),
			zap.String("new", b.Kind()),
			zap.Int("target", b.Target()),
		)
	}
	w.behaviors[b.Target()] = b
	w.emit(Event{Kind: EventBehaviorAttached, CharacterID: b.Owner(), TargetID: b.Target(), Name: b.Kind()})
}

// Detach removes the attachment controlling target.
func (w *World) Detach(target int) {
	b, ok := w.behaviors[target]
	if !ok {
		return
	}
	delete(w.behaviors, target)
	w.emit(Event{Kind: EventBehaviorReleased, CharacterID: b.Owner(), TargetID: target, Name: b.Kind()})
}

// ControllerOf returns the behavior driving target, or nil.
func (w *World) ControllerOf(target int) Behavior {
	return w.behaviors[target]
}

// BehaviorOwnedBy returns the first behavior owned by owner, in target order.
func (w *World) BehaviorOwnedBy(owner int) Behavior {
	for _, target := range w.behaviorTargets() {
		if b := w.behaviors[target]; b.Owner() == owner {
			return b
		}
	}
	return nil
}

// Behaviors lists active attachments in target order.
func (w *World) Behaviors() []BehaviorState {
	targets := w.behaviorTargets()
	out := make([]BehaviorState, 0, len(targets))
	for _, target := range targets {
		b := w.behaviors[target]
		out = append(out, BehaviorState{Kind: b.Kind(), OwnerID: b.Owner(), TargetID: target, Running: b.Running()})
	}
	return out
}

func (w *World) behaviorTargets() []int {
	targets := make([]int, 0, len(w.behaviors))
	for target := range w.behaviors {
		targets = append(targets, target)
	}
	sort.Ints(targets)
	return targets
}

func (w *World) updateBehaviors() {
	for _, target := range w.behaviorTargets() {
		if b := w.behaviors[target]; b.Update(w) {
			w.Detach(target)
		}
	}
}

// SkillMoveOwnedBy returns the skill move controlled by owner, or nil.
func (w *World) SkillMoveOwnedBy(owner int) *SkillMoveBehavior {
	for _, target := range w.behaviorTargets() {
		if b, ok := w.behaviors[target].(*SkillMoveBehavior); ok && b.owner == owner {
			return b
		}
	}
	return nil
}

// StartSkillMove attaches a skill move from controller to the first
// mountable object ahead of it. It reports whether a target was found. A
// controller whose previous skill move is still running is refused; one
// still waiting for its direction is re-targeted.
func (w *World) StartSkillMove(controller *Character) bool {
	old := w.SkillMoveOwnedBy(controller.id)
	if old != nil && old.Running() {
		w.logger.Debug("skill move already running", zap.Int("controller", controller.id), zap.Int("target", old.target))
		return false
	}
	target := w.FindMountableAlong(controller.x, controller.y, controller.direction, w.settings.SkillRange, controller.id)
	if target == nil {
		w.logger.Debug("skill move found no target", zap.Int("controller", controller.id), zap.Stringer("direction", controller.direction))
		return false
	}
	if old != nil {
		w.Detach(old.target)
	}
	w.Attach(&SkillMoveBehavior{owner: controller.id, target: target.id})
	return true
}
