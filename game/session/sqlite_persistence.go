package session

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/wricardo/puzzlemap/game/engine"
	"github.com/wricardo/puzzlemap/game/replay"
	"github.com/wricardo/puzzlemap/game/service"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	config_id TEXT NOT NULL,
	level_json TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	last_accessed_at INTEGER NOT NULL,
	total_moves INTEGER NOT NULL,
	history_json TEXT NOT NULL,
	journal BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_created_at ON sessions (created_at);
`

// SQLitePersistence stores sessions in a single SQLite database. The
// journal column holds the same compressed stream as the file store.
type SQLitePersistence struct {
	db            *sql.DB
	configManager service.ConfigManager
	logger        *zap.Logger
}

// OpenSQLitePersistence opens (creating if needed) the database at path.
// Use ":memory:" for a throwaway store.
func OpenSQLitePersistence(path string, configManager service.ConfigManager, logger *zap.Logger) (*SQLitePersistence, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	return &SQLitePersistence{db: db, configManager: configManager, logger: logger}, nil
}

// Close releases the database.
func (sp *SQLitePersistence) Close() error {
	if sp == nil || sp.db == nil {
		return nil
	}
	return sp.db.Close()
}

// Save upserts a session row
func (sp *SQLitePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	data, journal, err := snapshot(session, sp.configManager)
	if err != nil {
		return err
	}
	levelJSON, err := json.Marshal(data.Level)
	if err != nil {
		return fmt.Errorf("failed to marshal level: %w", err)
	}
	historyJSON, err := json.Marshal(data.MoveHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal move history: %w", err)
	}
	var blob bytes.Buffer
	if err := replay.Encode(&blob, data.ConfigName, journal); err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}

	_, err = sp.db.Exec(`
INSERT INTO sessions (
	id,
	config_id,
	level_json,
	created_at,
	last_accessed_at,
	total_moves,
	history_json,
	journal
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	config_id = excluded.config_id,
	level_json = excluded.level_json,
	last_accessed_at = excluded.last_accessed_at,
	total_moves = excluded.total_moves,
	history_json = excluded.history_json,
	journal = excluded.journal
`,
		data.ID,
		data.ConfigName,
		string(levelJSON),
		data.CreatedAt.UTC().UnixMilli(),
		data.LastAccessedAt.UTC().UnixMilli(),
		data.TotalMoves,
		string(historyJSON),
		blob.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", data.ID, err)
	}
	return nil
}

// Load rebuilds a session from its row
func (sp *SQLitePersistence) Load(id string) (*service.Session, error) {
	var (
		data                    PersistedSessionData
		levelJSON, historyJSON  string
		createdAt, lastAccessed int64
		blob                    []byte
	)
	err := sp.db.QueryRow(`
SELECT id, config_id, level_json, created_at, last_accessed_at, total_moves, history_json, journal
FROM sessions
WHERE id = ?
`, id).Scan(&data.ID, &data.ConfigName, &levelJSON, &createdAt, &lastAccessed, &data.TotalMoves, &historyJSON, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	data.CreatedAt = time.UnixMilli(createdAt)
	data.LastAccessedAt = time.UnixMilli(lastAccessed)
	if err := json.Unmarshal([]byte(levelJSON), &data.Level); err != nil {
		return nil, fmt.Errorf("failed to unmarshal level: %w", err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &data.MoveHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal move history: %w", err)
	}

	var journal []engine.JournalEntry
	if _, journal, err = replay.Decode(bytes.NewReader(blob)); err != nil {
		return nil, fmt.Errorf("failed to decode session journal: %w", err)
	}

	return restore(data, journal, sp.configManager, sp.logger)
}

// Delete removes a session row
func (sp *SQLitePersistence) Delete(id string) error {
	res, err := sp.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns all stored session IDs, oldest first
func (sp *SQLitePersistence) ListAll() ([]string, error) {
	rows, err := sp.db.Query(`SELECT id FROM sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Exists checks if a session row exists
func (sp *SQLitePersistence) Exists(id string) bool {
	var one int
	err := sp.db.QueryRow(`SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		sp.logger.Warn("session lookup failed", zap.String("session", id), zap.Error(err))
	}
	return err == nil
}
