package service

import (
	"time"

	"github.com/wricardo/puzzlemap/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string              `json:"id"`
	ConfigName     string              `json:"config_name"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	GameState      *engine.GameState   `json:"game_state"`
	LevelConfig    *engine.LevelConfig `json:"level_config"`
}

// MoveResult contains the result of a move operation
type MoveResult struct {
	Success     bool              `json:"success"`
	GameState   *engine.GameState `json:"game_state"`
	Message     string            `json:"message"`
	Events      []GameEvent       `json:"events,omitempty"`
	Step        *StepInfo         `json:"step,omitempty"`
	AttemptedTo *AttemptInfo      `json:"attempted_to,omitempty"`
}

// BulkMoveResult contains the result of multiple moves
type BulkMoveResult struct {
	MovesExecuted  int               `json:"moves_executed"`
	RequestedMoves int               `json:"requested_moves"`
	Success        bool              `json:"success"`
	GameState      *engine.GameState `json:"game_state"`
	Events         []GameEvent       `json:"events"`
	StoppedReason  string            `json:"stopped_reason,omitempty"`
	StopReasonCode string            `json:"stop_reason_code,omitempty"` // invalid_direction|locked|blocked_boundary|blocked_wall|blocked_object|blocked
	StoppedOnMove  int               `json:"stopped_on_move,omitempty"`  // 1-based index of the move that caused stop
	Truncated      bool              `json:"truncated,omitempty"`
	Limit          int               `json:"limit,omitempty"`

	StartPos engine.Position `json:"start_pos"`
	EndPos   engine.Position `json:"end_pos"`
	Frames   int64           `json:"frames"`

	Steps       []StepInfo   `json:"steps,omitempty"`
	AttemptedTo *AttemptInfo `json:"attempted_to,omitempty"`

	Message       string   `json:"message,omitempty"`
	PossibleMoves []string `json:"possible_moves,omitempty"`
	LocalView3x3  []string `json:"local_view_3x3,omitempty"`
}

// StepInfo is a compact record for each executed move
type StepInfo struct {
	Idx      int                `json:"idx"`
	Dir      string             `json:"dir"`
	From     engine.Position    `json:"from"`
	To       engine.Position    `json:"to"`
	Outcome  engine.MoveOutcome `json:"outcome"`
	RidingID int                `json:"riding_id"`
	Frames   int64              `json:"frames"`
	TileChar string             `json:"tile_char"`
	TileName string             `json:"tile_name"`
	Success  bool               `json:"success"`
}

// AttemptInfo details the tile a failed move aimed at
type AttemptInfo struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	TileChar string `json:"tile_char"`
	TileName string `json:"tile_name"`
	Passable bool   `json:"passable"`
	ObjectID int    `json:"object_id"`
	Reason   string `json:"reason"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type        string          `json:"type"` // "move", "reset", "command", "tick" or an engine event kind
	Message     string          `json:"message"`
	Timestamp   time.Time       `json:"timestamp"`
	Frame       int64           `json:"frame,omitempty"`
	CharacterID int             `json:"character_id"`
	TargetID    int             `json:"target_id"`
	Name        string          `json:"name,omitempty"`
	Position    engine.Position `json:"position,omitempty"`
}

// TickResult contains the result of advancing a session without input
type TickResult struct {
	Frames    int               `json:"frames"`
	GameState *engine.GameState `json:"game_state"`
	Events    []GameEvent       `json:"events"`
}

// CommandResult contains the result of a plugin command
type CommandResult struct {
	Success   bool              `json:"success"`
	Command   string            `json:"command"`
	Message   string            `json:"message"`
	GameState *engine.GameState `json:"game_state"`
	Events    []GameEvent       `json:"events"`
}

// SkillMoveResult pairs the skill command with the move it steered
type SkillMoveResult struct {
	Command *CommandResult `json:"command"`
	Move    *MoveResult    `json:"move,omitempty"`
}

// TileInfo describes one map cell and whatever stands on it
type TileInfo struct {
	X        int                     `json:"x"`
	Y        int                     `json:"y"`
	Char     string                  `json:"char"`
	Name     string                  `json:"name"`
	Terrain  int                     `json:"terrain"`
	Groove   bool                    `json:"groove"`
	Wall     bool                    `json:"wall"`
	Passable map[string]bool         `json:"passable"`
	Objects  []engine.CharacterState `json:"objects"`
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.MoveHistoryEntry `json:"moves"`
	TotalMoves  int                       `json:"total_moves"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// ConfigInfo provides information about a level
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	EventCount  int    `json:"event_count"`
}
