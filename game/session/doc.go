// Package session keeps the running puzzle sessions of a server.
//
// Manager maps case-insensitive session IDs to service.Session values, each
// owning its own engine.GameEngine. IDs are either chosen by the caller or
// generated as four hex characters.
//
// Persistence:
//
// A SessionPersistence stores sessions between restarts. The engine state is
// never written out. Instead each session keeps its level, its move history
// and the engine journal, and loading replays that journal over the level.
// Two stores exist:
//
//   - FilePersistence writes <id>.json next to <id>.journal.jsonl.zst
//   - SQLitePersistence keeps one row per session in a SQLite database
//
// Usage:
//
//	store, err := session.OpenSQLitePersistence("data/sessions.db", levels, logger)
//	if err != nil {
//		return err
//	}
//	manager := session.NewManagerWithPersistence(store, logger)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		return err
//	}
//
//	sess, err := manager.Create("", levels.GetDefault())
package session
