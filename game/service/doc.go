// Package service is the business layer between the transports (HTTP,
// WebSocket and MCP) and the puzzle engine.
//
// GameService turns transport requests into engine calls on one session and
// enriches the answers: every move carries a StepInfo on success or an
// AttemptInfo explaining the block, bulk moves report where and why they
// stopped, and engine events become GameEvents with readable messages.
// Every mutating call saves the session through SessionManager.Save, which
// is a no-op for in-memory managers.
//
// Core interfaces:
//
//   - GameService: the operations exposed to clients
//   - SessionManager: session storage, implemented by package session
//   - ConfigManager: level loading, implemented by package config
//
// Usage:
//
//	levels, _ := config.NewManager("levels", logger)
//	sessions := session.NewManager(logger)
//	svc := service.NewGameService(sessions, levels, logger)
//
//	info, err := svc.CreateSession(ctx, "tutorial")
//	if err != nil {
//		return err
//	}
//	res, err := svc.BulkMove(ctx, info.ID, []string{"down", "right", "right"}, false)
package service
