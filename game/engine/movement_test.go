package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestWorld(t *testing.T, width, height int) (*World, *TileMap) {
	t.Helper()
	m := NewTileMap(width, height)
	return NewWorld(m, DefaultSettings(), zaptest.NewLogger(t)), m
}

func addObject(w *World, name string, x, y float64, meta string, prio Priority) *Character {
	return w.AddEvent(EventSpecInput{
		Name:  name,
		X:     x,
		Y:     y,
		Pages: []Page{{Comments: []string{meta}, Priority: prio}},
	})
}

// runFrames updates w until done reports true or limit frames pass.
func runFrames(w *World, limit int, done func() bool) int {
	n := 0
	for n < limit && !done() {
		w.Update(DirNone)
		n++
	}
	return n
}

func settle(t *testing.T, w *World) {
	t.Helper()
	runFrames(w, 600, w.Settled)
	require.True(t, w.Settled(), "world should settle")
}

func eventsOfKind(events []Event, kind EventKind) []Event {
	var out []Event
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestPlainStepAndBlockedByWall(t *testing.T) {
	w, m := newTestWorld(t, 5, 5)
	m.SetTile(3, 1, Tile{Block: BlockAll})
	w.PlacePlayer(1, 1, DirDown, 4)
	p := w.Player()

	w.Update(DirRight)
	outcome, ok := w.LastInput()
	assert.True(t, ok)
	assert.Equal(t, OutcomeStep, outcome)
	assert.Equal(t, 2.0, p.X())
	assert.True(t, p.IsMoving())

	settle(t, w)
	assert.Equal(t, 2.0, p.RealX())

	w.Update(DirRight)
	_, ok = w.LastInput()
	assert.False(t, ok)
	assert.Equal(t, 2.0, p.X())
	assert.Equal(t, DirRight, p.Direction(), "a blocked step still turns the character")
}

func TestPushBoxAlongGuide(t *testing.T) {
	w, m := newTestWorld(t, 10, 10)
	for x := 0; x < 10; x++ {
		m.SetTerrain(x, 5, DefaultGuideTag)
	}
	w.PlacePlayer(5, 5, DirRight, 4)
	box := addObject(w, "crate", 6, 5, "@MapObject { type: box }", PrioritySame)
	p := w.Player()

	w.Update(DirRight)
	outcome, ok := w.LastInput()
	require.True(t, ok)
	assert.Equal(t, OutcomePush, outcome)
	assert.Equal(t, 6.0, p.X())
	assert.Equal(t, 7.0, box.X())
	assert.Equal(t, 3, p.MoveSpeed(), "the pusher borrows the box speed")
	assert.Equal(t, MovingPushing, p.MovingMode())
	assert.Equal(t, MovingPushed, box.MovingMode())

	behaviors := w.Behaviors()
	require.Len(t, behaviors, 1)
	assert.Equal(t, BehaviorState{Kind: "push", OwnerID: PlayerID, TargetID: box.ID(), Running: true}, behaviors[0])

	settle(t, w)
	assert.Equal(t, 4, p.MoveSpeed(), "speed is restored when the push ends")
	assert.Equal(t, MovingDefault, p.MovingMode())
	assert.Equal(t, MovingDefault, box.MovingMode())
	assert.Empty(t, w.Behaviors())
	assert.Len(t, eventsOfKind(w.DrainEvents(), EventPush), 1)
}

func TestBoxLeavesGuideOnlyOverEdge(t *testing.T) {
	w, m := newTestWorld(t, 10, 10)
	m.SetTerrain(5, 5, DefaultGuideTag)
	w.PlacePlayer(4, 5, DirRight, 4)
	box := addObject(w, "crate", 5, 5, "@MapObject { type: box, fallable: true }", PrioritySame)

	// (6, 5) is plain floor and (5, 5) has no edge toward it.
	box.MoveStraight(w, DirRight)
	assert.False(t, box.IsMovementSucceeded())

	w.Update(DirRight)
	_, ok := w.LastInput()
	assert.False(t, ok)
	assert.Equal(t, 5.0, box.X())
}

func TestPushedBoxFallsOnLaterFrame(t *testing.T) {
	w, m := newTestWorld(t, 7, 7)
	m.SetTile(3, 2, Tile{Block: BlockDown, Terrain: DefaultGuideTag})
	m.SetTerrain(3, 4, DefaultGuideTag)
	w.PlacePlayer(3, 1, DirDown, 4)
	box := addObject(w, "crate", 3, 2, "@MapObject { type: box, fallable: true, trigger: crateLanded }", PrioritySame)

	w.Update(DirDown)
	outcome, ok := w.LastInput()
	require.True(t, ok)
	assert.Equal(t, OutcomePush, outcome)
	assert.Equal(t, OutcomeEdgeStep, box.LastOutcome())
	assert.Equal(t, 3.0, box.Y())

	runFrames(w, 100, func() bool { return !box.IsMoving() })
	assert.Equal(t, FallNone, box.FallState(), "the fall does not start on the frame the step ends")
	assert.True(t, box.fallArmed)

	w.Update(DirNone)
	assert.Equal(t, FallFalling, box.FallState())
	assert.True(t, box.Through(), "a falling box passes through")
	assert.Equal(t, 4.0, box.Y())

	settle(t, w)
	assert.Equal(t, FallNone, box.FallState())
	assert.Equal(t, 4.0, box.Y())
	assert.False(t, box.Through())
	assert.Equal(t, 3, box.MoveSpeed())
	assert.Empty(t, w.Behaviors())

	events := w.DrainEvents()
	landed := eventsOfKind(events, EventLanded)
	require.Len(t, landed, 1)
	assert.Equal(t, box.ID(), landed[0].CharacterID)
	triggers := eventsOfKind(events, EventTrigger)
	require.Len(t, triggers, 1)
	assert.Equal(t, "crateLanded", triggers[0].Name)
	assert.Len(t, eventsOfKind(events, EventFallStart), 1)
}

func TestFallingBoxCatchesPlatform(t *testing.T) {
	w, m := newTestWorld(t, 7, 7)
	m.SetTile(3, 2, Tile{Block: BlockDown, Terrain: DefaultGuideTag})
	w.PlacePlayer(3, 1, DirDown, 4)
	box := addObject(w, "crate", 3, 2, "@MapObject { type: box, fallable: true }", PrioritySame)
	raft := addObject(w, "raft", 3, 4, "@MapObject { type: platform, h: 0 }", PriorityBelow)

	w.Update(DirDown)
	_, ok := w.LastInput()
	require.True(t, ok)

	settle(t, w)
	assert.Equal(t, raft.ID(), box.RidingID())
	assert.Equal(t, box.ID(), raft.RiderID())
	assert.Equal(t, 4.0, box.Y())
	assert.Equal(t, FallNone, box.FallState())
}

func TestCliffJumpLocksInputUntilWaitEnds(t *testing.T) {
	w, m := newTestWorld(t, 5, 6)
	m.SetTile(1, 1, Tile{Block: BlockDown})
	m.SetTile(1, 2, Tile{Block: BlockAll})
	m.SetTile(1, 3, Tile{Block: BlockUp})
	w.PlacePlayer(1, 1, DirDown, 4)
	p := w.Player()

	p.MoveStraight(w, DirDown)
	require.True(t, p.IsMovementSucceeded())
	assert.Equal(t, OutcomeCliffJump, p.LastOutcome())
	assert.Equal(t, 3.0, p.Y())
	assert.True(t, p.IsJumping())
	assert.Equal(t, w.Settings().JumpWaitFrames, p.WaitAfterJump())

	p.MoveStraight(w, DirRight)
	assert.False(t, p.IsMovementSucceeded())
	assert.Equal(t, OutcomeLocked, p.LastOutcome())

	settle(t, w)
	assert.Equal(t, 0, p.WaitAfterJump())
	assert.Equal(t, 3.0, p.RealY())
	assert.Len(t, eventsOfKind(w.DrainEvents(), EventSound), 1)
}

func TestGrooveJump(t *testing.T) {
	w, m := newTestWorld(t, 5, 3)
	m.SetTile(2, 1, Tile{Block: BlockAll, Groove: true})
	w.PlacePlayer(1, 1, DirRight, 4)
	p := w.Player()

	p.MoveStraight(w, DirRight)
	require.True(t, p.IsMovementSucceeded())
	assert.Equal(t, OutcomeGrooveJump, p.LastOutcome())
	assert.Equal(t, 3.0, p.X())

	// Without the groove flag the same wall is just a wall.
	m.SetTile(2, 1, Tile{Block: BlockAll})
	settle(t, w)
	p.MoveStraight(w, DirLeft)
	assert.False(t, p.IsMovementSucceeded())
}

func TestGrooveJumpHalfStepChecksBothColumns(t *testing.T) {
	w, m := newTestWorld(t, 6, 6)
	m.SetTile(3, 2, Tile{Block: BlockAll, Groove: true})
	w.PlacePlayer(0, 0, DirDown, 4)
	p := w.Player()
	p.SetPosition(2.5, 1)

	r := CanJumpGroove(w, p, p.X(), p.Y(), DirDown)
	assert.False(t, r.Pass, "column 2 has no groove")

	m.SetTile(2, 2, Tile{Block: BlockAll, Groove: true})
	r = CanJumpGroove(w, p, p.X(), p.Y(), DirDown)
	require.True(t, r.Pass)
	assert.Equal(t, Allowed(3, 3), r)
}

func TestCascadeCommitsOnlyOneBranch(t *testing.T) {
	// A groove that is also a cliff: the cliff jump comes first.
	w, m := newTestWorld(t, 6, 3)
	m.SetTile(1, 1, Tile{Block: BlockRight})
	m.SetTile(2, 1, Tile{Block: BlockAll, Groove: true})
	m.SetTile(3, 1, Tile{Block: BlockLeft})
	w.PlacePlayer(1, 1, DirRight, 4)
	p := w.Player()

	p.MoveStraight(w, DirRight)
	require.True(t, p.IsMovementSucceeded())
	assert.Equal(t, OutcomeCliffJump, p.LastOutcome())
	assert.Equal(t, 3.0, p.X())
	assert.Len(t, eventsOfKind(w.DrainEvents(), EventSound), 1, "exactly one jump was started")
}

func TestRideOnAndOffPlatform(t *testing.T) {
	// (3,1) stays open toward the player so no cliff jump competes with the
	// walk-on.
	w, m := newTestWorld(t, 5, 5)
	m.SetTile(1, 1, Tile{Block: BlockRight})
	m.SetTile(2, 1, Tile{Block: BlockAll})
	w.PlacePlayer(1, 1, DirRight, 4)
	raft := addObject(w, "raft", 2, 1, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	p := w.Player()

	w.Update(DirRight)
	outcome, ok := w.LastInput()
	require.True(t, ok)
	assert.Equal(t, OutcomeRideOn, outcome)
	assert.Equal(t, TransitionOnto, p.Transition())
	assert.Equal(t, raft.ID(), p.RidingID())
	assert.Equal(t, PlayerID, raft.RiderID())

	settle(t, w)
	assert.Equal(t, TransitionNone, p.Transition())
	assert.Equal(t, 2.0, p.X())
	assert.Equal(t, 2.0, p.RealX())
	assert.Equal(t, p.ScreenZ()+RidingZBoost, p.StackingPriority())

	w.Update(DirLeft)
	outcome, ok = w.LastInput()
	require.True(t, ok)
	assert.Equal(t, OutcomeRideOff, outcome)
	assert.Equal(t, NoCharacter, p.RidingID())
	assert.Equal(t, NoCharacter, raft.RiderID())
	assert.Equal(t, 1.0, p.X())

	settle(t, w)
	assert.Equal(t, 1.0, p.RealX())
	assert.Equal(t, p.ScreenZ(), p.StackingPriority())
}

func TestJumpOffPlatformAcrossWater(t *testing.T) {
	w, m := newTestWorld(t, 6, 3)
	m.SetTile(1, 1, Tile{Block: BlockRight})
	m.SetTile(2, 1, Tile{Block: BlockAll})
	m.SetTile(3, 1, Tile{Block: BlockAll})
	m.SetTile(4, 1, Tile{Block: BlockLeft})
	w.PlacePlayer(1, 1, DirRight, 4)
	addObject(w, "raft", 2, 1, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	p := w.Player()

	w.Update(DirRight)
	settle(t, w)
	require.True(t, p.Riding())

	w.Update(DirRight)
	outcome, ok := w.LastInput()
	require.True(t, ok)
	assert.Equal(t, OutcomeRideJumpOff, outcome)
	assert.False(t, p.Riding())
	assert.Equal(t, 4.0, p.X())

	settle(t, w)
	assert.Equal(t, 4.0, p.RealX())
}

func TestRiderFollowsMovingMount(t *testing.T) {
	w, m := newTestWorld(t, 5, 5)
	m.SetTile(1, 1, Tile{Block: BlockRight})
	m.SetTile(2, 1, Tile{Block: BlockAll})
	w.PlacePlayer(1, 1, DirRight, 4)
	raft := addObject(w, "raft", 2, 1, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	p := w.Player()

	w.Update(DirRight)
	settle(t, w)
	require.True(t, p.Riding())

	raft.SetThrough(true)
	raft.MoveStraight(w, DirDown)
	require.True(t, raft.IsMovementSucceeded())
	runFrames(w, 100, func() bool { return !raft.IsMoving() })

	assert.Equal(t, raft.X(), p.X())
	assert.Equal(t, 2.0, p.Y())
	assert.Equal(t, 2.0, p.RealY())
	assert.False(t, p.IsMoving(), "a rider resting on its mount is not moving")
}

func TestRideToIsSymmetricAndRejectsCycles(t *testing.T) {
	w, _ := newTestWorld(t, 5, 5)
	a := addObject(w, "a", 1, 1, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	b := addObject(w, "b", 3, 3, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	p := w.Player()

	assert.False(t, w.RideTo(a, a), "an object cannot ride itself")

	require.True(t, w.RideTo(a, b))
	assert.Equal(t, b.ID(), a.RidingID())
	assert.Equal(t, a.ID(), b.RiderID())

	assert.False(t, w.RideTo(b, a), "riding cycles are rejected")
	assert.False(t, w.RideTo(p, b), "an occupied object takes no second rider")

	require.True(t, w.RideTo(p, a))
	assert.Greater(t, p.StackingPriority(), a.StackingPriority())

	w.DrainEvents()
	w.GetOff(p)
	w.GetOff(p)
	assert.Equal(t, NoCharacter, p.RidingID())
	assert.Equal(t, NoCharacter, a.RiderID())
	assert.Len(t, eventsOfKind(w.DrainEvents(), EventDismount), 1, "a second dismount does nothing")
}

func TestPageChangeDismountsRider(t *testing.T) {
	w, _ := newTestWorld(t, 5, 5)
	raft := w.AddEvent(EventSpecInput{
		Name: "raft",
		X:    2,
		Y:    2,
		Pages: []Page{
			{Comments: []string{"@MapObject { type: platform, h: 0 }"}},
			{Comments: []string{"just scenery"}},
		},
	})
	p := w.Player()
	require.True(t, w.RideTo(p, raft))

	require.NoError(t, w.SetEventPage(raft.ID(), 1))
	assert.False(t, raft.IsMapObject())
	assert.False(t, p.Riding())

	assert.ErrorIs(t, w.SetEventPage(raft.ID(), 5), ErrInvalidPage)
	assert.ErrorIs(t, w.SetEventPage(PlayerID, 0), ErrUnknownCharacter)

	require.NoError(t, w.SetEventPage(raft.ID(), -1))
	assert.Equal(t, -1, raft.PageIndex())
	assert.True(t, raft.Through())
}

func TestSkillMoveDrivesTarget(t *testing.T) {
	w, _ := newTestWorld(t, 6, 5)
	w.PlacePlayer(1, 1, DirRight, 4)
	raft := addObject(w, "raft", 3, 1, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	p := w.Player()

	ok, err := w.ExecCommand("AMPS_SKILL_MOVE 0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []BehaviorState{{Kind: "skill_move", OwnerID: PlayerID, TargetID: raft.ID()}}, w.Behaviors())
	assert.Equal(t, 1.0, p.X(), "attaching moves nobody")
	assert.Equal(t, 3.0, raft.X())

	w.Update(DirDown)
	outcome, moved := w.LastInput()
	require.True(t, moved)
	assert.Equal(t, OutcomeSkillMove, outcome)
	assert.Equal(t, 2.0, raft.Y())
	assert.Equal(t, 1.0, p.Y())
	assert.Equal(t, DirDown, p.Direction())

	// Input is locked while the controlled step runs.
	w.Update(DirRight)
	_, moved = w.LastInput()
	assert.False(t, moved)
	assert.Equal(t, 1.0, p.X())

	settle(t, w)
	assert.Empty(t, w.Behaviors())
	assert.Equal(t, 2.0, raft.Y())
	assert.Equal(t, 1.0, p.X())
}

func TestSkillMoveReleasedWhenTargetBlocked(t *testing.T) {
	w, _ := newTestWorld(t, 6, 5)
	w.PlacePlayer(1, 0, DirRight, 4)
	raft := addObject(w, "raft", 2, 0, "@MapObject { type: platform, h: 0 }", PriorityBelow)

	ok, err := w.ExecCommand("AMPS_SKILL_MOVE 0")
	require.NoError(t, err)
	require.True(t, ok)

	w.Update(DirUp)
	_, moved := w.LastInput()
	assert.False(t, moved)
	assert.Empty(t, w.Behaviors())
	assert.Equal(t, 0.0, raft.Y())
	assert.Equal(t, 0.0, w.Player().Y(), "the blocked input is not replayed on the player")
}

func TestSkillMoveCommandErrors(t *testing.T) {
	w, _ := newTestWorld(t, 5, 5)
	w.PlacePlayer(1, 1, DirRight, 4)

	ok, err := w.ExecCommand("AMPS_SKILL_MOVE 0")
	require.NoError(t, err)
	assert.False(t, ok, "nothing in range")

	_, err = w.ExecCommand("AMPS_SKILL_MOVE")
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = w.ExecCommand("AMPS_SKILL_MOVE abc")
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = w.ExecCommand("AMPS_SKILL_MOVE 42")
	assert.ErrorIs(t, err, ErrUnknownCharacter)
	_, err = w.ExecCommand("TELEPORT 1 1")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestAttachDetachKeepsPositions(t *testing.T) {
	w, _ := newTestWorld(t, 5, 5)
	w.PlacePlayer(1, 1, DirRight, 4)
	raft := addObject(w, "raft", 2, 3, "@MapObject { type: platform, h: 0 }", PriorityBelow)

	w.Attach(&SkillMoveBehavior{owner: PlayerID, target: raft.ID()})
	assert.NotNil(t, w.ControllerOf(raft.ID()))
	assert.Same(t, w.ControllerOf(raft.ID()), w.BehaviorOwnedBy(PlayerID))

	w.Detach(raft.ID())
	w.Detach(raft.ID())
	assert.Nil(t, w.ControllerOf(raft.ID()))
	assert.Equal(t, Position{X: 2, Y: 3}, Position{X: raft.X(), Y: raft.Y()})
	assert.Equal(t, Position{X: 1, Y: 1}, Position{X: w.Player().X(), Y: w.Player().Y()})
	assert.Len(t, eventsOfKind(w.DrainEvents(), EventBehaviorReleased), 1)
}

func TestEventRouteRepeats(t *testing.T) {
	w, _ := newTestWorld(t, 5, 5)
	w.PlacePlayer(0, 0, DirDown, 4)
	guard := w.AddEvent(EventSpecInput{
		Name: "guard",
		X:    2,
		Y:    2,
		Pages: []Page{{
			MoveSpeed: 6,
			Frequency: 5,
			Priority:  PrioritySame,
			Route:     []Direction{DirRight, DirLeft},
			Repeat:    true,
		}},
	})

	runFrames(w, 60, func() bool { return guard.X() == 3 })
	assert.Equal(t, 3.0, guard.X())
	runFrames(w, 60, func() bool { return guard.X() == 2 && guard.IsStopping() })
	assert.Equal(t, 2.0, guard.X())
	runFrames(w, 60, func() bool { return guard.X() == 3 })
	assert.Equal(t, 3.0, guard.X(), "the route starts over")
}

func TestCloneIsIndependent(t *testing.T) {
	w, m := newTestWorld(t, 10, 10)
	for x := 0; x < 10; x++ {
		m.SetTerrain(x, 5, DefaultGuideTag)
	}
	w.PlacePlayer(5, 5, DirRight, 4)
	box := addObject(w, "crate", 6, 5, "@MapObject { type: box }", PrioritySame)

	cp := w.Clone()
	cp.Update(DirRight)
	_, ok := cp.LastInput()
	require.True(t, ok)
	assert.Equal(t, 7.0, cp.Character(box.ID()).X())

	assert.Equal(t, 6.0, box.X())
	assert.Equal(t, 5.0, w.Player().X())
	assert.Empty(t, w.Behaviors())
	assert.Equal(t, int64(0), w.Frame())
}

func TestCliffJumpFromVerticalHalfStepLandsFlush(t *testing.T) {
	w, m := newTestWorld(t, 6, 7)
	m.SetTile(2, 3, Tile{Block: BlockDown})
	m.SetTile(2, 4, Tile{Block: BlockUp})
	w.PlacePlayer(2, 2, DirDown, 4)
	p := w.Player()
	p.SetPosition(2, 2.5)

	r := CanJumpGroundToGround(w, p, p.X(), p.Y(), DirDown)
	assert.Equal(t, Allowed(2, 4), r, "the jump is shortened to 1.5 tiles")

	p.SetPosition(2, 3)
	r = CanJumpGroundToGround(w, p, p.X(), p.Y(), DirDown)
	assert.False(t, r.Pass, "from a whole tile the landing (2,5) has no cliff")
}

func TestCliffJumpHalfStepChecksBothColumns(t *testing.T) {
	w, m := newTestWorld(t, 7, 7)
	m.SetTile(4, 4, Tile{Block: BlockUp})
	m.SetTile(4, 2, Tile{Block: BlockDown})
	w.PlacePlayer(3, 4, DirUp, 4)
	p := w.Player()
	p.SetPosition(3.5, 4)

	r := CanJumpGroundToGround(w, p, p.X(), p.Y(), DirUp)
	assert.False(t, r.Pass, "column 3 has no cliff")

	m.SetTile(3, 4, Tile{Block: BlockUp})
	m.SetTile(3, 2, Tile{Block: BlockDown})
	r = CanJumpGroundToGround(w, p, p.X(), p.Y(), DirUp)
	assert.Equal(t, Allowed(3.5, 2), r)
}

func TestCliffJumpAtHorizontalHalfStepRechecksCeiling(t *testing.T) {
	w, m := newTestWorld(t, 6, 5)
	m.SetTile(1, 2, Tile{Block: BlockRight})
	m.SetTile(3, 2, Tile{Block: BlockLeft})
	w.PlacePlayer(1, 1, DirRight, 4)
	p := w.Player()
	p.SetPosition(1, 1.5)

	r := CanJumpGroundToGround(w, p, p.X(), p.Y(), DirRight)
	assert.Equal(t, Allowed(3, 1.5), r)

	// Someone standing on the lower landing tile forces the upper row to
	// be a cliff as well.
	w.AddEvent(EventSpecInput{Name: "npc", X: 3, Y: 2, Pages: []Page{{Priority: PrioritySame}}})
	r = CanJumpGroundToGround(w, p, p.X(), p.Y(), DirRight)
	assert.False(t, r.Pass)

	m.SetTile(1, 1, Tile{Block: BlockRight})
	m.SetTile(3, 1, Tile{Block: BlockLeft})
	r = CanJumpGroundToGround(w, p, p.X(), p.Y(), DirRight)
	assert.Equal(t, Allowed(3, 1.5), r)
}

func TestCliffJumpBlockedByRiddenObjectAhead(t *testing.T) {
	w, m := newTestWorld(t, 6, 5)
	m.SetTile(1, 1, Tile{Block: BlockRight})
	m.SetTile(3, 1, Tile{Block: BlockLeft})
	w.PlacePlayer(1, 1, DirRight, 4)
	raft := addObject(w, "raft", 2, 1, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	npc := w.AddEvent(EventSpecInput{Name: "npc", X: 4, Y: 4, Pages: []Page{{Priority: PrioritySame}}})
	p := w.Player()

	r := CanJumpGroundToGround(w, p, p.X(), p.Y(), DirRight)
	assert.Equal(t, Allowed(3, 1), r, "an empty raft does not block the jump")

	require.True(t, w.RideTo(npc, raft))
	assert.Same(t, raft, w.RiddenObjectAt(2, 1, PlayerID))
	r = CanJumpGroundToGround(w, p, p.X(), p.Y(), DirRight)
	assert.False(t, r.Pass)
}

func TestPushFromMountPolicy(t *testing.T) {
	for _, allow := range []bool{true, false} {
		t.Run(fmt.Sprintf("allow=%v", allow), func(t *testing.T) {
			m := NewTileMap(7, 4)
			m.SetTile(3, 1, Tile{Block: BlockLeft})
			m.SetTerrain(4, 1, DefaultGuideTag)
			settings := DefaultSettings()
			settings.Push.AllowPushFromMount = allow
			w := NewWorld(m, settings, zaptest.NewLogger(t))

			w.PlacePlayer(2, 1, DirRight, 4)
			raft := addObject(w, "raft", 2, 1, "@MapObject { type: platform, h: 0 }", PriorityBelow)
			box := addObject(w, "crate", 3, 1, "@MapObject { type: box }", PrioritySame)
			p := w.Player()
			require.True(t, w.RideTo(p, raft))

			p.MoveStraight(w, DirRight)
			if !allow {
				assert.False(t, p.IsMovementSucceeded())
				assert.Equal(t, 3.0, box.X())
				assert.Equal(t, raft.ID(), p.RidingID())
				return
			}
			require.True(t, p.IsMovementSucceeded())
			assert.Equal(t, OutcomePush, p.LastOutcome())
			assert.Equal(t, 4.0, box.X())
			assert.Equal(t, 3.0, p.X())
			assert.Equal(t, NoCharacter, p.RidingID(), "pushing off a mount steps down")
			assert.Equal(t, NoCharacter, raft.RiderID())
		})
	}
}

func TestPushMountedBoxPolicy(t *testing.T) {
	for _, allow := range []bool{true, false} {
		t.Run(fmt.Sprintf("allow=%v", allow), func(t *testing.T) {
			m := NewTileMap(6, 4)
			m.SetTile(1, 1, Tile{Block: BlockRight})
			m.SetTile(3, 1, Tile{Block: BlockLeft, Terrain: DefaultGuideTag})
			settings := DefaultSettings()
			settings.Push.AllowPushMountedObject = allow
			w := NewWorld(m, settings, zaptest.NewLogger(t))

			w.PlacePlayer(1, 1, DirRight, 4)
			box := addObject(w, "crate", 2, 1, "@MapObject { type: box }", PrioritySame)
			float := addObject(w, "float", 2, 1, "@MapObject { type: platform, h: 0 }", PriorityBelow)
			p := w.Player()
			require.True(t, w.RideTo(box, float))

			p.MoveStraight(w, DirRight)
			if !allow {
				assert.False(t, p.IsMovementSucceeded(), "the ridden float also rules out a cliff jump")
				assert.Equal(t, 2.0, box.X())
				assert.Equal(t, float.ID(), box.RidingID())
				return
			}
			require.True(t, p.IsMovementSucceeded())
			assert.Equal(t, OutcomePush, p.LastOutcome())
			assert.Equal(t, 3.0, box.X())
			assert.False(t, box.Riding())
			assert.Equal(t, 2.0, p.X())
			assert.Equal(t, float.ID(), p.RidingID(), "the pusher lands on the freed float")
		})
	}
}

func TestLocateDismounts(t *testing.T) {
	w, _ := newTestWorld(t, 6, 6)
	raft := addObject(w, "raft", 2, 2, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	p := w.Player()
	require.True(t, w.RideTo(p, raft))

	p.Locate(w, 4, 4)
	assert.Equal(t, NoCharacter, p.RidingID())
	assert.Equal(t, NoCharacter, raft.RiderID())
	assert.Equal(t, Position{X: 4, Y: 4}, Position{X: p.X(), Y: p.Y()})
	assert.Equal(t, TransitionNone, p.Transition())
}

func TestCanRideToMatchesRideTo(t *testing.T) {
	w, _ := newTestWorld(t, 6, 6)
	a := addObject(w, "a", 1, 1, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	b := addObject(w, "b", 3, 3, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	crate := addObject(w, "crate", 4, 4, "@MapObject { type: box }", PrioritySame)
	p := w.Player()

	assert.False(t, w.CanRideTo(p, crate), "a box without height cannot be ridden")
	assert.False(t, w.CanRideTo(a, a))
	assert.False(t, w.CanRideTo(p, nil))

	require.True(t, w.CanRideTo(a, b))
	require.True(t, w.RideTo(a, b))
	assert.False(t, w.CanRideTo(b, a), "cycle")
	assert.False(t, w.CanRideTo(p, b), "occupied")
	assert.True(t, w.CanRideTo(a, b), "re-riding the same mount is allowed")

	w.DrainEvents()
	assert.False(t, w.RideTo(b, a))
	assert.Equal(t, NoCharacter, b.RidingID())
	assert.Equal(t, NoCharacter, a.RiderID())
	assert.Empty(t, eventsOfKind(w.DrainEvents(), EventRide), "a refused ride links nothing")
}

func TestSkillMoveRefusedWhileRunning(t *testing.T) {
	w, _ := newTestWorld(t, 7, 5)
	w.PlacePlayer(1, 1, DirRight, 4)
	raft := addObject(w, "raft", 3, 1, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	skiff := addObject(w, "skiff", 1, 2, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	p := w.Player()

	ok, err := w.ExecCommand("AMPS_SKILL_MOVE 0")
	require.NoError(t, err)
	require.True(t, ok)
	w.Update(DirRight)
	_, moved := w.LastInput()
	require.True(t, moved)
	require.True(t, w.SkillMoveOwnedBy(PlayerID).Running())

	// The skiff is in range below, but the raft is still moving.
	p.SetDirection(DirDown)
	ok, err = w.ExecCommand("AMPS_SKILL_MOVE 0")
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, w.Behaviors(), 1)
	assert.Equal(t, raft.ID(), w.Behaviors()[0].TargetID)

	settle(t, w)
	assert.Nil(t, w.SkillMoveOwnedBy(PlayerID))
	ok, err = w.ExecCommand("AMPS_SKILL_MOVE 0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, skiff.ID(), w.SkillMoveOwnedBy(PlayerID).Target())
}

func TestSkillMoveRetargetsWhileWaiting(t *testing.T) {
	w, _ := newTestWorld(t, 7, 5)
	w.PlacePlayer(1, 1, DirRight, 4)
	addObject(w, "raft", 3, 1, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	skiff := addObject(w, "skiff", 1, 2, "@MapObject { type: platform, h: 0 }", PriorityBelow)
	p := w.Player()

	ok, err := w.ExecCommand("AMPS_SKILL_MOVE 0")
	require.NoError(t, err)
	require.True(t, ok)

	p.SetDirection(DirDown)
	ok, err = w.ExecCommand("AMPS_SKILL_MOVE 0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []BehaviorState{{Kind: "skill_move", OwnerID: PlayerID, TargetID: skiff.ID()}}, w.Behaviors())
}

func TestAdvanceRemainderDoesNotWrap(t *testing.T) {
	m := NewTileMap(5, 5)
	m.SetLoop(true, true)

	assert.Equal(t, 3.5, AdvanceX(m, 0, DirLeft, 1.5), "whole step wraps, the half step does not")
	assert.Equal(t, 0.5, AdvanceX(m, 4, DirRight, 1.5))
	assert.Equal(t, 2.5, AdvanceX(m, 4, DirLeft, 1.5))
	assert.Equal(t, 3.5, AdvanceY(m, 0, DirUp, 1.5))
	assert.Equal(t, 2.5, AdvanceX(m, 1, DirRight, 0.5), "a sub-tile distance still takes one whole step")
	assert.Equal(t, 2.0, AdvanceX(m, 2, DirUp, 1.5), "vertical directions leave x alone")
}
