// Package websocket pushes session updates to browsers and other watchers.
//
// A Hub groups connections by session ID. After every state change the API
// calls BroadcastToSession with the new engine.GameState and the
// service.GameEvents that produced it, so a viewer can animate pushes, rides
// and falls instead of diffing states. Other notifications (reset, session
// deletion) go through BroadcastEvent.
//
// Clients connect to /ws?session=<id> and only listen: anything they send is
// read and discarded to keep the connection's ping/pong deadlines alive.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	hub.BroadcastToSession(id, result.GameState, result.Events)
package websocket
