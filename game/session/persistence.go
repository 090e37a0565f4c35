package session

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/puzzlemap/game/engine"
	"github.com/wricardo/puzzlemap/game/replay"
	"github.com/wricardo/puzzlemap/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData is the stored form of a session. The engine state is
// never stored: the session is rebuilt by replaying its journal over Level.
type PersistedSessionData struct {
	ID             string                    `json:"id"`
	ConfigName     string                    `json:"config_name"`
	Level          *engine.LevelConfig       `json:"level,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	LastAccessedAt time.Time                 `json:"last_accessed_at"`
	TotalMoves     int                       `json:"total_moves"`
	MoveHistory    []engine.MoveHistoryEntry `json:"move_history"`
}

// configIDForName returns the config ID (file name without extension) of a
// level's display name, or the name itself when no level file matches.
func configIDForName(configs service.ConfigManager, displayName string) (string, error) {
	if configs == nil {
		return displayName, nil
	}
	list, err := configs.ListConfigs()
	if err != nil {
		return "", fmt.Errorf("failed to list configs: %w", err)
	}
	for _, config := range list {
		if config.Name == displayName {
			return config.ConfigID, nil
		}
	}
	return displayName, nil
}

// snapshot captures the persistent part of a session.
func snapshot(session *service.Session, configs service.ConfigManager) (PersistedSessionData, []engine.JournalEntry, error) {
	configID, err := configIDForName(configs, session.Config.Name)
	if err != nil {
		return PersistedSessionData{}, nil, fmt.Errorf("failed to get config ID: %w", err)
	}
	history := session.Engine.GetMoveHistory()
	data := PersistedSessionData{
		ID:             session.ID,
		ConfigName:     configID,
		Level:          session.Config,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		TotalMoves:     session.Engine.GetState().TotalMoves,
		MoveHistory:    history,
	}
	return data, session.Engine.GetJournal(), nil
}

// restore rebuilds a session from its stored form. The embedded level is
// preferred so edits to level files never change a running session.
func restore(data PersistedSessionData, journal []engine.JournalEntry, configs service.ConfigManager, logger *zap.Logger) (*service.Session, error) {
	level := data.Level
	if level == nil {
		if configs == nil {
			return nil, fmt.Errorf("session %s has no stored level", data.ID)
		}
		var err error
		level, err = configs.LoadConfig(data.ConfigName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigName, err)
		}
	}

	gameEngine, err := replay.Apply(level, journal, logger.With(zap.String("session", data.ID)))
	if err != nil {
		return nil, fmt.Errorf("failed to replay session journal: %w", err)
	}
	gameEngine.RestoreHistory(data.MoveHistory, data.TotalMoves)

	return &service.Session{
		ID:             data.ID,
		Engine:         gameEngine,
		Config:         level,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}
