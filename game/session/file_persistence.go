package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wricardo/puzzlemap/game/engine"
	"github.com/wricardo/puzzlemap/game/replay"
	"github.com/wricardo/puzzlemap/game/service"
)

// FilePersistence stores each session as <id>.json metadata next to a
// compressed <id>.journal.jsonl.zst journal.
type FilePersistence struct {
	sessionsDir   string
	configManager service.ConfigManager
	logger        *zap.Logger
}

// NewFilePersistence creates a new file-based session persistence layer
func NewFilePersistence(sessionsDir string, configManager service.ConfigManager, logger *zap.Logger) (*FilePersistence, error) {
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FilePersistence{
		sessionsDir:   sessionsDir,
		configManager: configManager,
		logger:        logger,
	}, nil
}

// Save persists a session's metadata and journal
func (fp *FilePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	data, journal, err := snapshot(session, fp.configManager)
	if err != nil {
		return err
	}

	// Journal first: metadata without its journal would replay to the wrong state.
	if err := replay.WriteFile(fp.getJournalPath(session.ID), data.ConfigName, journal); err != nil {
		return fmt.Errorf("failed to write session journal: %w", err)
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}
	if err := os.WriteFile(fp.getFilePath(session.ID), jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Load rebuilds a session from its metadata and journal
func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	filePath := fp.getFilePath(id)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, ErrSessionNotFound
	}

	jsonData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}

	var journal []engine.JournalEntry
	_, journal, err = replay.ReadFile(fp.getJournalPath(id))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read session journal: %w", err)
		}
		fp.logger.Warn("session journal missing, starting from the level start", zap.String("session", id))
	}

	return restore(data, journal, fp.configManager, fp.logger)
}

// Delete removes a session's files
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrSessionNotFound
	}

	if err := os.Remove(fp.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	if err := os.Remove(fp.getJournalPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session journal: %w", err)
	}

	return nil
}

// ListAll returns all persisted session IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessionIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name := entry.Name(); strings.HasSuffix(name, ".json") {
			sessionIDs = append(sessionIDs, strings.TrimSuffix(name, ".json"))
		}
	}

	return sessionIDs, nil
}

// Exists checks if a session file exists
func (fp *FilePersistence) Exists(id string) bool {
	_, err := os.Stat(fp.getFilePath(id))
	return err == nil
}

func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.sessionsDir, fmt.Sprintf("%s.json", id))
}

func (fp *FilePersistence) getJournalPath(id string) string {
	return filepath.Join(fp.sessionsDir, id+replay.Ext)
}
