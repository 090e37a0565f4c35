package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wricardo/puzzlemap/game/engine"
)

var (
	// ErrInvalidDirection is returned by operations that need a concrete direction.
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrConfigNotFound is wrapped by ConfigManager implementations for unknown levels.
	ErrConfigNotFound = errors.New("configuration not found")
	// ErrSessionNotFound is wrapped by SessionManager implementations for unknown sessions.
	ErrSessionNotFound = errors.New("session not found")
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	logger   *zap.Logger
	mu       sync.RWMutex
}

// getConfigID returns the config_id for a given level name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, logger *zap.Logger) GameService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		logger:   logger,
	}
}

func (s *gameServiceImpl) lookup(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return sess, nil
}

// session looks a session up and marks it used.
func (s *gameServiceImpl) session(sessionID string) (*Session, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.UpdateLastAccessed(sessionID); err != nil {
		s.logger.Debug("failed to touch session", zap.String("session", sessionID), zap.Error(err))
	}
	return sess, nil
}

func (s *gameServiceImpl) persist(sessionID, after string) {
	if err := s.sessions.Save(sessionID); err != nil {
		s.logger.Warn("failed to persist session",
			zap.String("session", sessionID),
			zap.String("after", after),
			zap.Error(err))
	}
}

func (s *gameServiceImpl) info(sess *Session, configID string) *SessionInfo {
	if configID == "" {
		configID = s.getConfigID(sess.Config.Name)
	}
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     configID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.GetState(),
		LevelConfig:    sess.Config,
	}
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config *engine.LevelConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("config '%s' not found. Available configs: %v: %w", configName, configIDs, err)
				}
				return nil, fmt.Errorf("config '%s' not found. Use /api/configs to list available levels: %w", configName, err)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	sess, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("session created", zap.String("session", sess.ID), zap.String("level", config.Name))

	return s.info(sess, configName), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.info(sess, ""), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.info(sess, ""))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions.Delete(sessionID)
}

// Move executes a single move for a session
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string, reset bool) (*MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	events := []GameEvent{}
	if reset {
		sess.Engine.Reset()
		events = append(events, resetEvent())
	}

	result := s.moveLocked(sess, direction, events)
	s.persist(sessionID, "move")
	return result, nil
}

func (s *gameServiceImpl) moveLocked(sess *Session, direction string, events []GameEvent) *MoveResult {
	d, err := engine.ParseDirection(direction)
	if err != nil || !d.Valid() {
		sess.Engine.Move(direction)
		state := sess.Engine.GetState()
		return &MoveResult{Success: false, GameState: state, Message: state.Message, Events: events}
	}

	startFrame := sess.Engine.World().Frame()
	entry := sess.Engine.MoveDirection(d)
	state := sess.Engine.GetState()

	result := &MoveResult{
		Success:   entry.Success,
		GameState: state,
		Message:   state.Message,
	}
	if entry.Success {
		events = append(events, moveEvent(entry))
		step := stepInfo(1, entry, entry.Frame-startFrame, sess.Config)
		result.Step = &step
	} else {
		result.AttemptedTo = attemptInfo(sess, entry, d)
	}
	result.Events = append(events, convertEvents(state)...)
	return result
}

// BulkMove executes multiple moves in sequence
func (s *gameServiceImpl) BulkMove(ctx context.Context, sessionID string, moves []string, reset bool) (*BulkMoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	result := &BulkMoveResult{
		RequestedMoves: len(moves),
		Events:         make([]GameEvent, 0),
		Success:        true,
	}

	if reset {
		sess.Engine.Reset()
		result.Events = append(result.Events, resetEvent())
	}
	result.StartPos = sess.Engine.GetPlayerPosition()
	startFrame := sess.Engine.World().Frame()

	// Limit moves to prevent abuse
	if len(moves) > engine.MaxBulkMoves {
		result.Truncated = true
		result.Limit = engine.MaxBulkMoves
		moves = moves[:engine.MaxBulkMoves]
	}

	for i, move := range moves {
		d, err := engine.ParseDirection(move)
		if err != nil || !d.Valid() {
			result.Success = false
			result.StoppedReason = fmt.Sprintf("move %d invalid: %s", i+1, move)
			result.StopReasonCode = "invalid_direction"
			result.StoppedOnMove = i + 1
			break
		}

		before := sess.Engine.World().Frame()
		entry := sess.Engine.MoveDirection(d)
		result.Events = append(result.Events, convertEvents(sess.Engine.GetState())...)

		if !entry.Success {
			result.Success = false
			result.StoppedReason = fmt.Sprintf("move %d blocked: %s", i+1, move)
			result.StoppedOnMove = i + 1
			result.AttemptedTo = attemptInfo(sess, entry, d)
			result.StopReasonCode = result.AttemptedTo.Reason
			break
		}

		result.MovesExecuted++
		result.Events = append(result.Events, moveEvent(entry))
		result.Steps = append(result.Steps, stepInfo(i+1, entry, entry.Frame-before, sess.Config))
	}

	state := sess.Engine.GetState()
	result.GameState = state
	result.EndPos = sess.Engine.GetPlayerPosition()
	result.Frames = state.Frame - startFrame
	result.Message = state.Message
	result.PossibleMoves = sess.Engine.GetPossibleMoves()
	result.LocalView3x3 = buildLocal3x3(sess.Config, state)

	s.persist(sessionID, "bulk_move")
	return result, nil
}

// Tick advances a session without player input
func (s *gameServiceImpl) Tick(ctx context.Context, sessionID string, frames int) (*TickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Engine.Tick(frames); err != nil {
		return nil, err
	}
	state := sess.Engine.GetState()
	s.persist(sessionID, "tick")
	return &TickResult{Frames: frames, GameState: state, Events: convertEvents(state)}, nil
}

// Command runs a plugin command line against a session
func (s *gameServiceImpl) Command(ctx context.Context, sessionID, line string) (*CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	result, err := s.commandLocked(sess, line)
	if err != nil {
		return nil, err
	}
	s.persist(sessionID, "command")
	return result, nil
}

func (s *gameServiceImpl) commandLocked(sess *Session, line string) (*CommandResult, error) {
	ok, err := sess.Engine.Command(line)
	if err != nil {
		return nil, fmt.Errorf("command %q failed: %w", line, err)
	}
	state := sess.Engine.GetState()
	return &CommandResult{
		Success:   ok,
		Command:   line,
		Message:   state.Message,
		GameState: state,
		Events:    convertEvents(state),
	}, nil
}

// SkillMove takes control of the nearest object the player faces and sends
// it one step in direction.
func (s *gameServiceImpl) SkillMove(ctx context.Context, sessionID, direction string) (*SkillMoveResult, error) {
	d, err := engine.ParseDirection(direction)
	if err != nil || !d.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	cmd, err := s.commandLocked(sess, fmt.Sprintf("%s %d", engine.SkillMoveCommand, engine.PlayerID))
	if err != nil {
		return nil, err
	}
	result := &SkillMoveResult{Command: cmd}
	if cmd.Success {
		result.Move = s.moveLocked(sess, d.String(), []GameEvent{})
	}
	s.persist(sessionID, "skill_move")
	return result, nil
}

// SetEventPage switches an event to another page
func (s *gameServiceImpl) SetEventPage(ctx context.Context, sessionID string, eventID, page int) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Engine.SetEventPage(eventID, page); err != nil {
		return nil, fmt.Errorf("failed to set page of event %d: %w", eventID, err)
	}
	s.persist(sessionID, "set_page")
	return sess.Engine.GetState(), nil
}

// Reset resets a game session to initial state
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	state := sess.Engine.Reset()
	s.persist(sessionID, "reset")
	return state, nil
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.GetState(), nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	history := sess.Engine.GetMoveHistory()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	var moves []engine.MoveHistoryEntry
	if opts.Order == "desc" {
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			moves = append(moves, history[i])
		}
	} else if start < total {
		moves = history[start:end]
	}
	if moves == nil {
		moves = []engine.MoveHistoryEntry{}
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// GetJournal returns the replayable inputs applied since the last reset
func (s *gameServiceImpl) GetJournal(ctx context.Context, sessionID string) ([]engine.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.GetJournal(), nil
}

// DescribeTile reports the passage data of one tile and who stands on it
func (s *gameServiceImpl) DescribeTile(ctx context.Context, sessionID string, x, y int) (*TileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	m := sess.Engine.World().Map()
	if x < 0 || y < 0 || x >= m.Width() || y >= m.Height() {
		return nil, fmt.Errorf("tile (%d, %d) is outside the %dx%d map", x, y, m.Width(), m.Height())
	}

	info := &TileInfo{
		X:        x,
		Y:        y,
		Terrain:  m.TerrainTag(x, y),
		Groove:   m.IsGroove(x, y),
		Wall:     m.IsWall(x, y),
		Passable: make(map[string]bool, len(engine.Directions)),
		Objects:  []engine.CharacterState{},
	}
	info.Char, info.Name = tileAt(sess.Config, x, y)
	for _, d := range engine.Directions {
		info.Passable[d.String()] = m.IsPassable(x, y, d)
	}

	state := sess.Engine.GetState()
	for _, c := range append([]engine.CharacterState{state.Player}, state.Characters...) {
		cx, cy := tileOf(engine.Position{X: c.X, Y: c.Y})
		if cx == x && cy == y {
			info.Objects = append(info.Objects, c)
		}
	}
	return info, nil
}

// ListConfigs returns available levels
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific level
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.LevelConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a level to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.LevelConfig) error {
	return s.configs.SaveConfig(configName, config)
}
