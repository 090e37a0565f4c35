// Package api provides the HTTP REST API for puzzle map sessions.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session ({"config_id": "tutorial"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/unified - Several sessions of one level side by side
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Game operations:
//   - GET /api/sessions/{id}/state - Current game state
//   - POST /api/sessions/{id}/move - {"direction": "up", "reset": false}
//   - POST /api/sessions/{id}/bulk-move - {"moves": ["up", "left"]}
//   - POST /api/sessions/{id}/tick - {"frames": 30}
//   - POST /api/sessions/{id}/command - {"command": "AMPS_SKILL_MOVE 0"}
//   - POST /api/sessions/{id}/skill-move - {"direction": "right"}
//   - POST /api/sessions/{id}/events/{eventId}/page - {"page": -1}
//   - POST /api/sessions/{id}/reset - Rebuild the level
//   - GET /api/sessions/{id}/history - Paginated move history
//   - GET /api/sessions/{id}/journal - Input journal, ?format=zst for the replay stream
//   - GET /api/sessions/{id}/tiles/{x}/{y} - Describe one tile
//
// Levels:
//   - GET /api/configs - List levels
//   - GET /api/configs/{name} - Get a level
//   - POST /api/configs - Store a level (?id=name&format=yaml)
//
// GET /ws?session={id} upgrades to a WebSocket that receives every state
// change of the session.
//
// Errors are returned as {"error": "...", "code": status}. Unknown sessions,
// levels and events are 404; bad directions, frame counts and commands are 400.
//
// Usage:
//
//	server := api.NewServer(gameService, hub, logger)
//	http.ListenAndServe(":8080", server)
package api
