// Package solver searches for the shortest input sequence that brings the
// player, or a map object, to a target tile.
//
// The search is breadth first over settled world states. Each candidate is
// evaluated by replaying its journal on a fresh copy of the level, so the
// result is exactly what a session fed the same inputs would do.
package solver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wricardo/puzzlemap/game/engine"
)

// Default search limits.
const (
	DefaultMaxDepth = 40
	DefaultMaxNodes = 20000
)

// ErrNoSolution is returned when the goal is not reached within the limits.
var ErrNoSolution = errors.New("solver: no solution within limits")

// Step is one input. A skill step runs AMPS_SKILL_MOVE on the player before
// moving, so the controlled object is steered instead of the player.
type Step struct {
	Direction engine.Direction `json:"direction"`
	Skill     bool             `json:"skill,omitempty"`
}

func (s Step) String() string {
	if s.Skill {
		return "skill:" + s.Direction.String()
	}
	return s.Direction.String()
}

// Goal names a character and the tile it must end on. ID 0 is the player.
type Goal struct {
	ID int
	X  int
	Y  int
}

func (g Goal) String() string {
	if g.ID == engine.PlayerID {
		return fmt.Sprintf("player at (%d,%d)", g.X, g.Y)
	}
	return fmt.Sprintf("event %d at (%d,%d)", g.ID, g.X, g.Y)
}

// ParseGoal reads "x,y" for the player or "id@x,y" for an event.
func ParseGoal(s string) (Goal, error) {
	var g Goal
	coords := s
	if id, rest, ok := strings.Cut(s, "@"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil || n < 0 {
			return g, fmt.Errorf("invalid goal %q: bad event id", s)
		}
		g.ID = n
		coords = rest
	}

	xs, ys, ok := strings.Cut(coords, ",")
	if !ok {
		return g, fmt.Errorf("invalid goal %q: want x,y or id@x,y", s)
	}
	x, errX := strconv.Atoi(strings.TrimSpace(xs))
	y, errY := strconv.Atoi(strings.TrimSpace(ys))
	if errX != nil || errY != nil {
		return g, fmt.Errorf("invalid goal %q: coordinates must be integers", s)
	}
	g.X, g.Y = x, y
	return g, nil
}

// Options bound the search.
type Options struct {
	MaxDepth int
	MaxNodes int
	// Skill also tries skill moves at every state.
	Skill  bool
	Logger *zap.Logger
}

// Solution is the shortest sequence found.
type Solution struct {
	Steps    []Step                `json:"steps"`
	Journal  []engine.JournalEntry `json:"journal"`
	Explored int                   `json:"explored"`
}

type node struct {
	journal []engine.JournalEntry
	steps   []Step
}

// Solve runs the search. The level is never modified.
func Solve(ctx context.Context, level *engine.LevelConfig, goal Goal, opts Options) (*Solution, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = DefaultMaxNodes
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e, err := engine.NewEngine(level, zap.NewNop())
	if err != nil {
		return nil, err
	}
	start := e.GetState()
	if findCharacter(start, goal.ID) == nil {
		return nil, fmt.Errorf("%w: %d", engine.ErrUnknownCharacter, goal.ID)
	}
	if reached(start, goal) {
		return &Solution{Steps: []Step{}, Journal: []engine.JournalEntry{}}, nil
	}

	actions := make([]Step, 0, 8)
	for _, d := range engine.Directions {
		actions = append(actions, Step{Direction: d})
	}
	if opts.Skill {
		for _, d := range engine.Directions {
			actions = append(actions, Step{Direction: d, Skill: true})
		}
	}

	seen := map[string]bool{stateKey(start): true}
	queue := []node{{}}
	explored := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		if len(cur.steps) >= opts.MaxDepth {
			continue
		}

		for _, action := range actions {
			if explored >= opts.MaxNodes {
				logger.Debug("node limit reached", zap.Int("explored", explored))
				return nil, fmt.Errorf("%w: explored %d states", ErrNoSolution, explored)
			}
			explored++

			if err := e.Replay(cur.journal); err != nil {
				return nil, err
			}
			ok, err := apply(e, action)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}

			state := e.GetState()
			key := stateKey(state)
			if seen[key] {
				continue
			}
			seen[key] = true

			next := node{
				journal: e.GetJournal(),
				steps:   append(append(make([]Step, 0, len(cur.steps)+1), cur.steps...), action),
			}
			if reached(state, goal) {
				logger.Debug("goal reached", zap.Stringer("goal", goal), zap.Int("steps", len(next.steps)), zap.Int("explored", explored))
				return &Solution{Steps: next.steps, Journal: next.journal, Explored: explored}, nil
			}
			queue = append(queue, next)
		}
	}
	return nil, fmt.Errorf("%w: explored %d states", ErrNoSolution, explored)
}

// apply feeds one step and reports whether it did something.
func apply(e *engine.GameEngine, s Step) (bool, error) {
	if s.Skill {
		ok, err := e.Command(fmt.Sprintf("%s %d", engine.SkillMoveCommand, engine.PlayerID))
		if err != nil || !ok {
			return false, err
		}
	}
	return e.MoveDirection(s.Direction).Success, nil
}

func findCharacter(state *engine.GameState, id int) *engine.CharacterState {
	if id == engine.PlayerID {
		return &state.Player
	}
	for i := range state.Characters {
		if state.Characters[i].ID == id {
			return &state.Characters[i]
		}
	}
	return nil
}

func reached(state *engine.GameState, goal Goal) bool {
	c := findCharacter(state, goal.ID)
	return c != nil && c.X == float64(goal.X) && c.Y == float64(goal.Y)
}

// stateKey identifies a settled world: every character's tile, facing, page
// and ride.
func stateKey(state *engine.GameState) string {
	var b strings.Builder
	write := func(c engine.CharacterState) {
		fmt.Fprintf(&b, "%d:%g,%g,%d,%d,%d;", c.ID, c.X, c.Y, c.Direction, c.Page, c.RidingID)
	}
	write(state.Player)
	for _, c := range state.Characters {
		write(c)
	}
	return b.String()
}

// Moves returns the plain direction names of steps, or false when a skill
// step is present.
func Moves(steps []Step) ([]string, bool) {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		if s.Skill {
			return nil, false
		}
		out = append(out, s.Direction.String())
	}
	return out, true
}
