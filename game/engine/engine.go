package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidTick is returned for frame counts outside 1..MaxTickFrames.
var ErrInvalidTick = errors.New("invalid tick frame count")

// Journal entry kinds.
const (
	JournalMove    = "move"
	JournalTick    = "tick"
	JournalCommand = "command"
	JournalPage    = "page"
)

// JournalEntry is one replayable input applied since the last reset.
type JournalEntry struct {
	Seq       int       `json:"seq"`
	Kind      string    `json:"kind"`
	Direction Direction `json:"direction,omitempty"`
	Frames    int       `json:"frames,omitempty"`
	Command   string    `json:"command,omitempty"`
	EventID   int       `json:"event_id,omitempty"`
	Page      int       `json:"page,omitempty"`
}

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	Reset() *GameState
	GetPlayerPosition() Position
	Settled() bool

	// Movement operations
	Move(direction string) bool
	MoveDirection(d Direction) MoveHistoryEntry
	CanMove(direction string) bool
	GetPossibleMoves() []string
	BulkMove(moves []string) []bool

	// Simulation and scripting
	Tick(frames int) error
	Command(line string) (bool, error)
	SetEventPage(id, page int) error

	// Configuration
	GetConfig() *LevelConfig
	SetConfig(config *LevelConfig) error

	// History
	GetMoveHistory() []MoveHistoryEntry
	GetLastMove() *MoveHistoryEntry
	GetJournal() []JournalEntry
	Replay(journal []JournalEntry) error
	RestoreHistory(history []MoveHistoryEntry, total int)
}

// GameEngine implements the Engine interface on top of a World. Every
// directional move runs the world until it settles before and after the
// input, so callers see whole steps, jumps and falls.
type GameEngine struct {
	config *LevelConfig
	world  *World
	logger *zap.Logger

	message    string
	lastEvents []Event

	moveHistory  []MoveHistoryEntry
	totalMoves   int
	currentMoves []MoveHistoryEntry
	journal      []JournalEntry
}

// NewEngine creates a new game engine with the provided configuration
func NewEngine(config *LevelConfig, logger *zap.Logger) (*GameEngine, error) {
	if err := ValidateLevelConfig(config); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &GameEngine{config: config, logger: logger}
	if err := engine.rebuild(); err != nil {
		return nil, err
	}
	return engine, nil
}

// NewEngineWithDefaults creates a new game engine on the built-in tutorial level
func NewEngineWithDefaults() *GameEngine {
	engine, err := NewEngine(DefaultLevelConfig(), nil)
	if err != nil {
		panic(fmt.Sprintf("default level is invalid: %v", err))
	}
	return engine
}

func (e *GameEngine) rebuild() error {
	w, err := InitWorldFromConfig(e.config, e.logger.With(zap.String("level", e.config.Name)))
	if err != nil {
		return err
	}
	e.world = w
	e.message = e.config.Messages.Welcome
	e.lastEvents = nil
	e.journal = nil
	return nil
}

// World exposes the underlying simulation.
func (e *GameEngine) World() *World {
	return e.world
}

// GetState returns a snapshot of the current game state
func (e *GameEngine) GetState() *GameState {
	w := e.world
	m := w.Map()
	chars := w.CharacterStates()

	state := &GameState{
		ConfigName:        e.config.Name,
		Frame:             w.Frame(),
		Width:             m.Width(),
		Height:            m.Height(),
		Layout:            e.config.Layout,
		Player:            chars[PlayerID],
		Characters:        chars[1:],
		Behaviors:         w.Behaviors(),
		Settled:           w.Settled(),
		Message:           e.message,
		Events:            e.lastEvents,
		MoveHistory:       e.moveHistory,
		TotalMoves:        e.totalMoves,
		CurrentMoves:      e.currentMoves,
		CurrentMovesCount: len(e.currentMoves),
	}
	if state.MoveHistory == nil {
		state.MoveHistory = []MoveHistoryEntry{}
	}
	if state.CurrentMoves == nil {
		state.CurrentMoves = []MoveHistoryEntry{}
	}
	return state
}

// Settled reports whether the world is waiting for input.
func (e *GameEngine) Settled() bool {
	return e.world.Settled()
}

// Reset resets the level to its initial state
func (e *GameEngine) Reset() *GameState {
	// Preserve cumulative history and totals across resets
	if err := e.rebuild(); err != nil {
		e.logger.Error("reset failed", zap.Error(err))
	}
	e.currentMoves = nil
	return e.GetState()
}

// GetPlayerPosition returns the current player position
func (e *GameEngine) GetPlayerPosition() Position {
	p := e.world.Player()
	return Position{X: p.X(), Y: p.Y()}
}

// settle runs idle frames until the world waits for input, bounded by the
// level's MaxSettleFrames.
func (e *GameEngine) settle() int {
	limit := e.world.Settings().MaxSettleFrames
	frames := 0
	for !e.world.Settled() && frames < limit {
		e.world.Update(DirNone)
		frames++
	}
	if frames == limit && !e.world.Settled() {
		e.logger.Warn("world did not settle", zap.Int("frames", frames))
	}
	return frames
}

func (e *GameEngine) collect() {
	e.lastEvents = append(e.lastEvents, e.world.DrainEvents()...)
}

// Move attempts to move the player in the specified direction
func (e *GameEngine) Move(direction string) bool {
	d, err := ParseDirection(direction)
	if err != nil || !d.Valid() {
		e.message = fmt.Sprintf("Invalid direction: %s", direction)
		return false
	}
	return e.MoveDirection(d).Success
}

// MoveDirection feeds one directional input and runs the world until the
// resulting step, jump, push or fall is over.
func (e *GameEngine) MoveDirection(d Direction) MoveHistoryEntry {
	e.lastEvents = nil
	e.settle()

	p := e.world.Player()
	from := Position{X: p.X(), Y: p.Y()}
	e.world.Update(d)
	outcome, success := e.world.LastInput()
	e.settle()
	e.collect()

	e.journal = append(e.journal, JournalEntry{Seq: len(e.journal) + 1, Kind: JournalMove, Direction: d})

	entry := MoveHistoryEntry{
		Action:       d.String(),
		Outcome:      outcome,
		FromPosition: from,
		ToPosition:   Position{X: p.X(), Y: p.Y()},
		RidingID:     p.RidingID(),
		Frame:        e.world.Frame(),
		Timestamp:    time.Now().Unix(),
		Success:      success,
	}
	e.addMoveToHistory(entry)

	if success {
		e.message = describeOutcome(outcome, d)
	} else if e.config.Messages.Blocked != "" {
		e.message = e.config.Messages.Blocked
	} else {
		e.message = "Can't move there!"
	}
	return entry
}

func (e *GameEngine) addMoveToHistory(entry MoveHistoryEntry) {
	e.totalMoves++
	entry.MoveNumber = e.totalMoves
	e.moveHistory = append(e.moveHistory, entry)
	e.currentMoves = append(e.currentMoves, entry)
}

func describeOutcome(outcome MoveOutcome, d Direction) string {
	switch outcome {
	case OutcomeCliffJump:
		return fmt.Sprintf("Jumped down the ledge %s", d)
	case OutcomeGrooveJump:
		return fmt.Sprintf("Hopped over the groove %s", d)
	case OutcomeRideOn, OutcomeRideJumpOn:
		return "Climbed aboard"
	case OutcomeRideOff, OutcomeRideJumpOff:
		return "Stepped off"
	case OutcomeRideTransfer, OutcomeRideJumpOver:
		return "Switched rides"
	case OutcomePush:
		return fmt.Sprintf("Pushed %s", d)
	case OutcomeSkillMove:
		return fmt.Sprintf("Sent the object %s", d)
	}
	return fmt.Sprintf("Moved %s", d)
}

// CanMove checks, on a throwaway copy of the world, whether the player's
// input in the given direction would do anything.
func (e *GameEngine) CanMove(direction string) bool {
	d, err := ParseDirection(direction)
	if err != nil || !d.Valid() {
		return false
	}
	probe := e.world.Clone()
	limit := probe.Settings().MaxSettleFrames
	for i := 0; i < limit && !probe.Settled(); i++ {
		probe.Update(DirNone)
	}
	probe.Update(d)
	_, ok := probe.LastInput()
	return ok
}

// GetPossibleMoves returns all directions the player's input would act on
func (e *GameEngine) GetPossibleMoves() []string {
	var possible []string
	for _, d := range Directions {
		if e.CanMove(d.String()) {
			possible = append(possible, d.String())
		}
	}
	return possible
}

// BulkMove executes multiple moves in sequence, returning success status for each
func (e *GameEngine) BulkMove(moves []string) []bool {
	results := make([]bool, 0, len(moves))
	events := []Event{}
	for _, direction := range moves {
		results = append(results, e.Move(direction))
		events = append(events, e.lastEvents...)
	}
	e.lastEvents = events
	return results
}

// Tick advances the world by frames idle frames.
func (e *GameEngine) Tick(frames int) error {
	if frames < 1 || frames > MaxTickFrames {
		return fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidTick, frames, MaxTickFrames)
	}
	e.lastEvents = nil
	for i := 0; i < frames; i++ {
		e.world.Update(DirNone)
	}
	e.collect()
	e.journal = append(e.journal, JournalEntry{Seq: len(e.journal) + 1, Kind: JournalTick, Frames: frames})
	return nil
}

// Command runs a plugin command such as "AMPS_SKILL_MOVE 0".
func (e *GameEngine) Command(line string) (bool, error) {
	e.lastEvents = nil
	ok, err := e.world.ExecCommand(line)
	e.collect()
	if err != nil {
		return false, err
	}
	e.journal = append(e.journal, JournalEntry{Seq: len(e.journal) + 1, Kind: JournalCommand, Command: line})
	if ok {
		e.message = "Skill move ready: choose a direction"
	} else {
		e.message = "Nothing to control in range"
	}
	return ok, nil
}

// SetEventPage switches an event's active page.
func (e *GameEngine) SetEventPage(id, page int) error {
	e.lastEvents = nil
	if err := e.world.SetEventPage(id, page); err != nil {
		return err
	}
	e.collect()
	e.journal = append(e.journal, JournalEntry{Seq: len(e.journal) + 1, Kind: JournalPage, EventID: id, Page: page})
	return nil
}

// GetConfig returns the current level configuration
func (e *GameEngine) GetConfig() *LevelConfig {
	return e.config
}

// SetConfig sets a new level configuration and resets the level
func (e *GameEngine) SetConfig(config *LevelConfig) error {
	if err := ValidateLevelConfig(config); err != nil {
		return err
	}
	prev := e.config
	e.config = config
	if err := e.rebuild(); err != nil {
		e.config = prev
		return err
	}
	e.currentMoves = nil
	return nil
}

// GetMoveHistory returns the complete move history
func (e *GameEngine) GetMoveHistory() []MoveHistoryEntry {
	return e.moveHistory
}

// GetLastMove returns the last move made, or nil if no moves
func (e *GameEngine) GetLastMove() *MoveHistoryEntry {
	if len(e.moveHistory) == 0 {
		return nil
	}
	return &e.moveHistory[len(e.moveHistory)-1]
}

// GetJournal returns the inputs applied since the last reset.
func (e *GameEngine) GetJournal() []JournalEntry {
	out := make([]JournalEntry, len(e.journal))
	copy(out, e.journal)
	return out
}

// Replay rebuilds the level and re-applies journal. The simulation is
// deterministic, so the result matches the run that recorded it.
func (e *GameEngine) Replay(journal []JournalEntry) error {
	if err := e.rebuild(); err != nil {
		return err
	}
	e.currentMoves = nil
	for _, entry := range journal {
		switch entry.Kind {
		case JournalMove:
			if !entry.Direction.Valid() {
				return fmt.Errorf("journal entry %d: invalid direction", entry.Seq)
			}
			e.MoveDirection(entry.Direction)
		case JournalTick:
			if err := e.Tick(entry.Frames); err != nil {
				return fmt.Errorf("journal entry %d: %w", entry.Seq, err)
			}
		case JournalCommand:
			if _, err := e.Command(entry.Command); err != nil {
				return fmt.Errorf("journal entry %d: %w", entry.Seq, err)
			}
		case JournalPage:
			if err := e.SetEventPage(entry.EventID, entry.Page); err != nil {
				return fmt.Errorf("journal entry %d: %w", entry.Seq, err)
			}
		default:
			return fmt.Errorf("journal entry %d: unknown kind %q", entry.Seq, entry.Kind)
		}
	}
	return nil
}

// RestoreHistory replaces the cumulative history, e.g. after loading a
// saved session whose journal was just replayed.
func (e *GameEngine) RestoreHistory(history []MoveHistoryEntry, total int) {
	e.moveHistory = history
	e.totalMoves = total
	// The replayed moves are the tail of the restored history.
	if n := len(e.currentMoves); n <= len(history) {
		e.currentMoves = append([]MoveHistoryEntry(nil), history[len(history)-n:]...)
	}
}
