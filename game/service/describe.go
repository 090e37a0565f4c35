package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wricardo/puzzlemap/game/engine"
)

// tileAt returns the layout character and legend name at (x, y).
func tileAt(config *engine.LevelConfig, x, y int) (string, string) {
	if y < 0 || y >= len(config.Layout) || x < 0 || x >= len(config.Layout[y]) {
		return "B", "boundary"
	}
	ch := string(config.Layout[y][x])
	name := config.EffectiveLegend()[ch].Name
	if name == "" {
		name = ch
	}
	return ch, name
}

func tileOf(p engine.Position) (int, int) {
	return int(math.Floor(p.X + 0.5)), int(math.Floor(p.Y + 0.5))
}

func characterNames(state *engine.GameState) map[int]string {
	names := map[int]string{state.Player.ID: state.Player.Name}
	for _, c := range state.Characters {
		names[c.ID] = c.Name
	}
	return names
}

func characterPositions(state *engine.GameState) map[int]engine.Position {
	pos := map[int]engine.Position{state.Player.ID: {X: state.Player.X, Y: state.Player.Y}}
	for _, c := range state.Characters {
		pos[c.ID] = engine.Position{X: c.X, Y: c.Y}
	}
	return pos
}

// convertEvents turns the engine events of the last call into GameEvents.
func convertEvents(state *engine.GameState) []GameEvent {
	names := characterNames(state)
	positions := characterPositions(state)
	events := make([]GameEvent, 0, len(state.Events))
	now := time.Now()
	for _, ev := range state.Events {
		events = append(events, GameEvent{
			Type:        string(ev.Kind),
			Message:     describeEvent(ev, names),
			Timestamp:   now,
			Frame:       ev.Frame,
			CharacterID: ev.CharacterID,
			TargetID:    ev.TargetID,
			Name:        ev.Name,
			Position:    positions[ev.CharacterID],
		})
	}
	return events
}

func describeEvent(ev engine.Event, names map[int]string) string {
	who := names[ev.CharacterID]
	whom := names[ev.TargetID]
	switch ev.Kind {
	case engine.EventSound:
		return fmt.Sprintf("Played %s", ev.Name)
	case engine.EventTrigger:
		return fmt.Sprintf("%s triggered %s", who, ev.Name)
	case engine.EventLanded:
		return fmt.Sprintf("%s landed", who)
	case engine.EventFallStart:
		return fmt.Sprintf("%s started falling", who)
	case engine.EventRide:
		return fmt.Sprintf("%s climbed onto %s", who, whom)
	case engine.EventDismount:
		return fmt.Sprintf("%s got off %s", who, whom)
	case engine.EventPush:
		return fmt.Sprintf("%s pushed %s", who, whom)
	case engine.EventBehaviorAttached:
		return fmt.Sprintf("%s took control of %s", who, whom)
	case engine.EventBehaviorReleased:
		return fmt.Sprintf("%s released %s", who, whom)
	case engine.EventPageChanged:
		return fmt.Sprintf("%s switched to page %d", who, ev.TargetID)
	}
	return string(ev.Kind)
}

func moveEvent(entry engine.MoveHistoryEntry) GameEvent {
	return GameEvent{
		Type:        "move",
		Message:     fmt.Sprintf("%s %s to (%g,%g)", entry.Outcome, entry.Action, entry.ToPosition.X, entry.ToPosition.Y),
		Timestamp:   time.Now(),
		Frame:       entry.Frame,
		CharacterID: engine.PlayerID,
		TargetID:    entry.RidingID,
		Position:    entry.ToPosition,
	}
}

func resetEvent() GameEvent {
	return GameEvent{
		Type:        "reset",
		Message:     "Game reset to initial state",
		Timestamp:   time.Now(),
		CharacterID: engine.PlayerID,
		TargetID:    engine.NoCharacter,
	}
}

func stepInfo(idx int, entry engine.MoveHistoryEntry, frames int64, config *engine.LevelConfig) StepInfo {
	x, y := tileOf(entry.ToPosition)
	ch, name := tileAt(config, x, y)
	return StepInfo{
		Idx:      idx,
		Dir:      entry.Action,
		From:     entry.FromPosition,
		To:       entry.ToPosition,
		Outcome:  entry.Outcome,
		RidingID: entry.RidingID,
		Frames:   frames,
		TileChar: ch,
		TileName: name,
		Success:  entry.Success,
	}
}

// attemptInfo explains why the player could not move from entry's origin.
func attemptInfo(sess *Session, entry engine.MoveHistoryEntry, d engine.Direction) *AttemptInfo {
	m := sess.Engine.World().Map()
	fx, fy := tileOf(entry.FromPosition)
	tx := int(m.RoundXWithDirection(float64(fx), d))
	ty := int(m.RoundYWithDirection(float64(fy), d))

	info := &AttemptInfo{X: tx, Y: ty, ObjectID: engine.NoCharacter}
	info.TileChar, info.TileName = tileAt(sess.Config, tx, ty)

	if entry.Outcome == engine.OutcomeLocked {
		info.Reason = "locked"
		return info
	}
	if !m.IsValid(float64(tx), float64(ty)) {
		info.Reason = "blocked_boundary"
		return info
	}

	info.Passable = m.IsPassable(fx, fy, d) && m.IsPassable(tx, ty, d.Reverse())
	for _, c := range sess.Engine.World().Characters() {
		if c.IsPlayer() || c.Through() {
			continue
		}
		cx, cy := tileOf(engine.Position{X: c.X(), Y: c.Y()})
		if cx == tx && cy == ty {
			info.ObjectID = c.ID()
			break
		}
	}

	switch {
	case !info.Passable:
		info.Reason = "blocked_wall"
	case info.ObjectID != engine.NoCharacter:
		info.Reason = "blocked_object"
	default:
		info.Reason = "blocked"
	}
	return info
}

// buildLocal3x3 renders the tiles around the player. '@' is the player, 'b'
// a box, 'o' any other rideable object and 'e' a plain event.
func buildLocal3x3(config *engine.LevelConfig, state *engine.GameState) []string {
	if state == nil {
		return nil
	}
	px, py := tileOf(engine.Position{X: state.Player.X, Y: state.Player.Y})
	overlay := map[[2]int]string{}
	for _, c := range state.Characters {
		x, y := tileOf(engine.Position{X: c.X, Y: c.Y})
		mark := "e"
		if c.Object != nil {
			mark = "o"
			if c.Object.Type == engine.ObjectBox {
				mark = "b"
			}
		}
		overlay[[2]int{x, y}] = mark
	}

	lines := make([]string, 0, 3)
	for dy := -1; dy <= 1; dy++ {
		var row strings.Builder
		for dx := -1; dx <= 1; dx++ {
			x, y := px+dx, py+dy
			if dx == 0 && dy == 0 {
				row.WriteString("@")
				continue
			}
			if mark, ok := overlay[[2]int{x, y}]; ok {
				row.WriteString(mark)
				continue
			}
			ch, _ := tileAt(config, x, y)
			row.WriteString(ch)
		}
		lines = append(lines, row.String())
	}
	return lines
}
