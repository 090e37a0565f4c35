package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Validation constants
	MinMapSize      = 3
	MaxMapSize      = 100
	MinMoveSpeed    = 1
	MaxMoveSpeed    = 6
	MaxBulkMoves    = 50
	MaxTickFrames   = 6000
	DefaultGuideTag = 7

	// NoCharacter marks an empty riding/rider/behavior link.
	NoCharacter = -1

	// PlayerID is the arena index of the player character.
	PlayerID = 0

	WebSocketBufferSize = 256
)

// Direction is a 4-way facing using the numpad convention (2 down, 4 left, 6 right, 8 up).
type Direction int

const (
	DirNone  Direction = 0
	DirDown  Direction = 2
	DirLeft  Direction = 4
	DirRight Direction = 6
	DirUp    Direction = 8
)

// Directions lists the four movement directions in input order.
var Directions = []Direction{DirUp, DirDown, DirLeft, DirRight}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == DirNone {
		return DirNone
	}
	return 10 - d
}

// IsVertical reports whether d is up or down.
func (d Direction) IsVertical() bool {
	return d == DirUp || d == DirDown
}

// IsHorizontal reports whether d is left or right.
func (d Direction) IsHorizontal() bool {
	return d == DirLeft || d == DirRight
}

// Valid reports whether d is one of the four movement directions.
func (d Direction) Valid() bool {
	return d == DirDown || d == DirLeft || d == DirRight || d == DirUp
}

// DX returns the horizontal unit step of d.
func (d Direction) DX() float64 {
	switch d {
	case DirRight:
		return 1
	case DirLeft:
		return -1
	}
	return 0
}

// DY returns the vertical unit step of d.
func (d Direction) DY() float64 {
	switch d {
	case DirDown:
		return 1
	case DirUp:
		return -1
	}
	return 0
}

func (d Direction) String() string {
	switch d {
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	case DirUp:
		return "up"
	}
	return "none"
}

// ParseDirection accepts direction names ("up", "left", ...) or numpad values ("8", "4", ...).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "u", "north", "8":
		return DirUp, nil
	case "down", "d", "south", "2":
		return DirDown, nil
	case "left", "l", "west", "4":
		return DirLeft, nil
	case "right", "r", "east", "6":
		return DirRight, nil
	case "", "none", "0":
		return DirNone, nil
	}
	return DirNone, fmt.Errorf("invalid direction %q", s)
}

// MarshalJSON encodes the direction by name.
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts either a name or a numpad number.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("direction must be a string or number: %w", err)
		}
		s = strconv.Itoa(n)
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Priority is the host's event priority (below, same as, above characters).
type Priority int

const (
	PriorityBelow Priority = 0
	PrioritySame  Priority = 1
	PriorityAbove Priority = 2
)

// ParsePriority maps level-file names to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "below", "0":
		return PriorityBelow, nil
	case "", "same", "normal", "1":
		return PrioritySame, nil
	case "above", "2":
		return PriorityAbove, nil
	}
	return PrioritySame, fmt.Errorf("invalid priority %q", s)
}

// MovingResult is the outcome of a feasibility check. X and Y are -1 when not set.
type MovingResult struct {
	Pass bool    `json:"pass"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Rejected is the failed MovingResult.
func Rejected() MovingResult {
	return MovingResult{Pass: false, X: -1, Y: -1}
}

// Allowed builds a passing MovingResult with a destination.
func Allowed(x, y float64) MovingResult {
	return MovingResult{Pass: true, X: x, Y: y}
}

// FallState tracks a fallable object's fall.
type FallState int

const (
	FallNone FallState = iota
	FallFalling
	FallEpilogueToRide
)

func (s FallState) String() string {
	switch s {
	case FallFalling:
		return "falling"
	case FallEpilogueToRide:
		return "epilogue_to_ride"
	}
	return "none"
}

func (s FallState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *FallState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none":
		*s = FallNone
	case "falling":
		*s = FallFalling
	case "epilogue_to_ride":
		*s = FallEpilogueToRide
	default:
		return fmt.Errorf("invalid fall state %q", b)
	}
	return nil
}

// MovingMode records why a character is currently moving.
type MovingMode int

const (
	MovingDefault MovingMode = iota
	MovingPushed
	MovingPushing
)

func (m MovingMode) String() string {
	switch m {
	case MovingPushed:
		return "pushed"
	case MovingPushing:
		return "pushing"
	}
	return "default"
}

func (m MovingMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MovingMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "default":
		*m = MovingDefault
	case "pushed":
		*m = MovingPushed
	case "pushing":
		*m = MovingPushing
	default:
		return fmt.Errorf("invalid moving mode %q", b)
	}
	return nil
}

// RideTransition is the get-on/get-off interpolation in progress.
type RideTransition int

const (
	TransitionNone RideTransition = iota
	TransitionOnto
	TransitionOff
)

func (t RideTransition) String() string {
	switch t {
	case TransitionOnto:
		return "onto"
	case TransitionOff:
		return "off"
	}
	return "none"
}

func (t RideTransition) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *RideTransition) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none":
		*t = TransitionNone
	case "onto":
		*t = TransitionOnto
	case "off":
		*t = TransitionOff
	default:
		return fmt.Errorf("invalid ride transition %q", b)
	}
	return nil
}

// MoveOutcome classifies the branch of the movement cascade that committed.
type MoveOutcome string

const (
	OutcomeNone         MoveOutcome = "none"
	OutcomeLocked       MoveOutcome = "locked"
	OutcomeStep         MoveOutcome = "step"
	OutcomeCliffJump    MoveOutcome = "cliff_jump"
	OutcomeGrooveJump   MoveOutcome = "groove_jump"
	OutcomeRideOn       MoveOutcome = "ride_on"
	OutcomeRideJumpOn   MoveOutcome = "ride_jump_on"
	OutcomeRideOff      MoveOutcome = "ride_off"
	OutcomeRideJumpOff  MoveOutcome = "ride_jump_off"
	OutcomeRideTransfer MoveOutcome = "ride_transfer"
	OutcomeRideJumpOver MoveOutcome = "ride_jump_transfer"
	OutcomePush         MoveOutcome = "push"
	OutcomeEdgeStep     MoveOutcome = "edge_step"
	OutcomeSkillMove    MoveOutcome = "skill_move"
)

// Position represents x,y coordinates
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CharacterState is the per-frame view of a character polled by renderers and clients.
type CharacterState struct {
	ID                int            `json:"id"`
	Name              string         `json:"name"`
	X                 float64        `json:"x"`
	Y                 float64        `json:"y"`
	RealX             float64        `json:"real_x"`
	RealY             float64        `json:"real_y"`
	Direction         Direction      `json:"direction"`
	MoveSpeed         int            `json:"move_speed"`
	Through           bool           `json:"through"`
	Priority          Priority       `json:"priority"`
	Page              int            `json:"page"`
	Moving            bool           `json:"moving"`
	Jumping           bool           `json:"jumping"`
	MovementSucceeded bool           `json:"movement_succeeded"`
	LastOutcome       MoveOutcome    `json:"last_outcome"`
	RidingID          int            `json:"riding_id"`
	RiderID           int            `json:"rider_id"`
	ControlledBy      int            `json:"controlled_by"`
	Controlling       int            `json:"controlling"`
	FallState         FallState      `json:"fall_state"`
	MovingMode        MovingMode     `json:"moving_mode"`
	Transition        RideTransition `json:"transition"`
	StackingPriority  int            `json:"stacking_priority"`
	WaitAfterJump     int            `json:"wait_after_jump"`
	Object            *ObjectConfig  `json:"object,omitempty"`
}

// BehaviorState describes one active owner→target control attachment.
type BehaviorState struct {
	Kind     string `json:"kind"`
	OwnerID  int    `json:"owner_id"`
	TargetID int    `json:"target_id"`
	Running  bool   `json:"running"`
}

// GameState represents the complete observable state of a level
type GameState struct {
	ConfigName  string             `json:"config_name"`
	Frame       int64              `json:"frame"`
	Width       int                `json:"width"`
	Height      int                `json:"height"`
	Layout      []string           `json:"layout"`
	Player      CharacterState     `json:"player"`
	Characters  []CharacterState   `json:"characters"`
	Behaviors   []BehaviorState    `json:"behaviors"`
	Settled     bool               `json:"settled"`
	Message     string             `json:"message"`
	Events      []Event            `json:"events,omitempty"`
	MoveHistory []MoveHistoryEntry `json:"move_history"`
	TotalMoves  int                `json:"total_moves"`

	// CurrentMoves tracks only the moves since the last reset. It mirrors MoveHistory entries
	// but gets cleared on reset while MoveHistory remains cumulative.
	CurrentMoves      []MoveHistoryEntry `json:"current_moves"`
	CurrentMovesCount int                `json:"current_moves_count"`
}

// MoveHistoryEntry represents a single move in the game history
type MoveHistoryEntry struct {
	Action       string      `json:"action"`
	Outcome      MoveOutcome `json:"outcome"`
	FromPosition Position    `json:"from_position"`
	ToPosition   Position    `json:"to_position"`
	RidingID     int         `json:"riding_id"`
	Frame        int64       `json:"frame"`
	Timestamp    int64       `json:"timestamp"`
	Success      bool        `json:"success"`
	MoveNumber   int         `json:"move_number"`
}
