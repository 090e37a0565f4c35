// Package mcp exposes puzzle map sessions as Model Context Protocol tools.
//
// The Client is a thin proxy: every tool call becomes a request against the
// REST API, so an MCP agent and a browser watching over WebSocket see the
// same sessions.
//
// Tools:
//   - create_session, get_session, list_sessions, list_configs
//   - game_state: rendered map with the player and every object
//   - move, bulk_move: walk the player (an intent argument is accepted)
//   - tick: let falls, rides and scripted moves play out
//   - command, skill_move: plugin commands such as AMPS_SKILL_MOVE
//   - set_event_page, describe_tile
//   - reset_game, move_history, game_instructions
//
// Transports:
//
//	client := mcp.NewClient("http://localhost:8080", logger)
//	client.ServeStdio()              // stdio for local agents
//	http.Handle("/mcp", client)      // one JSON-RPC message per POST
package mcp
