package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wricardo/puzzlemap/game/engine"
	"github.com/wricardo/puzzlemap/game/service"
)

const instructions = `Puzzle Map - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Move the player (@) around a tile map. Crates and platforms are map objects:
walk into a crate to push it, step onto a platform to ride it, and jump over
one-tile grooves or down cliffs. Use skill_move to take control of the object
you face and drive it one tile.

AVAILABLE TOOLS:
- create_session / get_session / list_sessions: manage sessions
- list_configs: list available levels
- game_state: map, player and objects
- move / bulk_move: walk the player (requires an intent)
- tick: let the world run without input (falls, riders, scripted moves)
- command: run a plugin command such as "AMPS_SKILL_MOVE 0"
- skill_move: control the faced object and move it one tile
- set_event_page: switch an event's page (-1 deactivates it)
- describe_tile: inspect one tile and whatever stands on it
- reset_game / move_history
- game_instructions: full rules

NOTE: The 'intent' parameter on move/bulk_move serves as rubber duck debugging - explain your reasoning!`

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
	logger     *zap.Logger
}

// NewClient creates a new MCP client that calls the REST API at baseURL
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}

	c.mcpServer = server.NewMCPServer(
		"Puzzle Map",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
	)
	c.registerTools()
	return c
}

// MCPServer returns the underlying MCP server for serving
func (c *Client) MCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeStdio serves the tools over stdin/stdout until the input closes.
func (c *Client) ServeStdio() error {
	return server.ServeStdio(c.mcpServer)
}

// ServeHTTP answers one JSON-RPC message per POST request.
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := c.mcpServer.HandleMessage(r.Context(), body)
	if response == nil {
		// Notifications get no reply.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	data, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func sessionArg() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID"))
}

func directionArg(desc string) mcp.ToolOption {
	return mcp.WithString("direction",
		mcp.Required(),
		mcp.Enum("up", "down", "left", "right"),
		mcp.Description(desc))
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Sessions
	c.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Create a new game session, optionally on a specific level"),
		mcp.WithString("config_id", mcp.Description("Level id from list_configs (optional)")),
	), c.handleCreateSession)

	c.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List all active game sessions"),
	), c.handleListSessions)

	c.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get details of a specific session"),
		sessionArg(),
	), c.handleGetSession)

	c.mcpServer.AddTool(mcp.NewTool("list_configs",
		mcp.WithDescription("List available levels"),
	), c.handleListConfigs)

	// Game operations
	c.mcpServer.AddTool(mcp.NewTool("game_state",
		mcp.WithDescription("Get the map, the player and every object"),
		sessionArg(),
	), c.handleGameState)

	c.mcpServer.AddTool(mcp.NewTool("move",
		mcp.WithDescription("Move the player one tile"),
		sessionArg(),
		directionArg("Direction to move"),
		mcp.WithString("intent", mcp.Description("Brief explanation of the intent behind this move")),
		mcp.WithBoolean("reset", mcp.Description("Reset before moving")),
	), c.handleMove)

	c.mcpServer.AddTool(mcp.NewTool("bulk_move",
		mcp.WithDescription(fmt.Sprintf("Execute up to %d moves in sequence, stopping at the first blocked one", engine.MaxBulkMoves)),
		sessionArg(),
		mcp.WithArray("moves",
			mcp.Required(),
			mcp.Description("Array of moves"),
			mcp.Items(map[string]any{"type": "string", "enum": []string{"up", "down", "left", "right"}})),
		mcp.WithString("intent", mcp.Description("Brief explanation of the intent behind this sequence of moves")),
		mcp.WithBoolean("reset", mcp.Description("Reset before moving")),
	), c.handleBulkMove)

	c.mcpServer.AddTool(mcp.NewTool("tick",
		mcp.WithDescription("Advance the world without input so falls, rides and scripted moves play out"),
		sessionArg(),
		mcp.WithNumber("frames", mcp.Required(), mcp.Description("Frames to run (positive)")),
	), c.handleTick)

	c.mcpServer.AddTool(mcp.NewTool("command",
		mcp.WithDescription("Run a plugin command line, e.g. \""+engine.SkillMoveCommand+" 0\""),
		sessionArg(),
		mcp.WithString("command", mcp.Required(), mcp.Description("Command line")),
	), c.handleCommand)

	c.mcpServer.AddTool(mcp.NewTool("skill_move",
		mcp.WithDescription("Take control of the object the player faces and move it one tile"),
		sessionArg(),
		directionArg("Direction to move the controlled object"),
	), c.handleSkillMove)

	c.mcpServer.AddTool(mcp.NewTool("set_event_page",
		mcp.WithDescription("Switch an event to another page; -1 deactivates it"),
		sessionArg(),
		mcp.WithNumber("event_id", mcp.Required(), mcp.Description("Event id")),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("Page index or -1")),
	), c.handleSetEventPage)

	c.mcpServer.AddTool(mcp.NewTool("reset_game",
		mcp.WithDescription("Rebuild the level from its start"),
		sessionArg(),
	), c.handleReset)

	c.mcpServer.AddTool(mcp.NewTool("move_history",
		mcp.WithDescription("Get the move history of a session"),
		sessionArg(),
		mcp.WithNumber("page", mcp.Description("Page number")),
		mcp.WithNumber("limit", mcp.Description("Items per page")),
	), c.handleMoveHistory)

	c.mcpServer.AddTool(mcp.NewTool("describe_tile",
		mcp.WithDescription("Describe one map tile: its character, passage per direction and the objects on it"),
		sessionArg(),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Column (0-based)")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Row (0-based)")),
	), c.handleDescribeTile)

	c.mcpServer.AddTool(mcp.NewTool("game_instructions",
		mcp.WithDescription("Get the rules of the puzzle map"),
	), c.handleGameInstructions)
}

type apiError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// apiCall sends body as JSON and decodes the response into result.
func (c *Client) apiCall(ctx context.Context, method, path string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp apiError
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func (c *Client) fail(tool string, err error) *mcp.CallToolResult {
	c.logger.Debug("tool call failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError(err.Error())
}

func sessionPath(request mcp.CallToolRequest, suffix string) (string, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return "", err
	}
	return "/api/sessions/" + url.PathEscape(id) + suffix, nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{}
	if id := request.GetString("config_id", ""); id != "" {
		body["config_id"] = id
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return c.fail("create_session", err), nil
	}

	result := fmt.Sprintf("Created session: %s\nLevel: %s\n\n%s", session.ID, session.ConfigName, formatGameState(session.GameState))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return c.fail("list_sessions", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		moves := 0
		if s.GameState != nil {
			moves = s.GameState.TotalMoves
		}
		fmt.Fprintf(&b, "- %s (Level: %s, Moves: %d, Created: %s)\n",
			s.ID, s.ConfigName, moves, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "")
	if err != nil {
		return c.fail("get_session", err), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", path, nil, &session); err != nil {
		return c.fail("get_session", err), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return c.fail("list_configs", err), nil
	}

	var b strings.Builder
	b.WriteString("Available Levels:\n\n")
	for _, cfg := range configs {
		fmt.Fprintf(&b, "• %s (config_id: %s)\n  %s\n  Map: %dx%d, Events: %d\n\n",
			cfg.Name, cfg.ConfigID, cfg.Description, cfg.Width, cfg.Height, cfg.EventCount)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "/state")
	if err != nil {
		return c.fail("game_state", err), nil
	}

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", path, nil, &state); err != nil {
		return c.fail("game_state", err), nil
	}
	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "/move")
	if err != nil {
		return c.fail("move", err), nil
	}
	direction, err := request.RequireString("direction")
	if err != nil {
		return c.fail("move", err), nil
	}

	body := map[string]interface{}{
		"direction": direction,
		"reset":     request.GetBool("reset", false),
	}
	var result service.MoveResult
	if err := c.apiCall(ctx, "POST", path, body, &result); err != nil {
		return c.fail("move", err), nil
	}
	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleBulkMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "/bulk-move")
	if err != nil {
		return c.fail("bulk_move", err), nil
	}
	moves, err := request.RequireStringSlice("moves")
	if err != nil {
		return c.fail("bulk_move", err), nil
	}

	body := map[string]interface{}{
		"moves": moves,
		"reset": request.GetBool("reset", false),
	}
	var result service.BulkMoveResult
	if err := c.apiCall(ctx, "POST", path, body, &result); err != nil {
		return c.fail("bulk_move", err), nil
	}
	return mcp.NewToolResultText(formatBulkMoveResult(&result)), nil
}

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "/tick")
	if err != nil {
		return c.fail("tick", err), nil
	}
	frames, err := request.RequireInt("frames")
	if err != nil {
		return c.fail("tick", err), nil
	}

	var result service.TickResult
	if err := c.apiCall(ctx, "POST", path, map[string]int{"frames": frames}, &result); err != nil {
		return c.fail("tick", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Advanced %d frames\n", result.Frames)
	b.WriteString(formatEvents(result.Events))
	b.WriteString("\n" + formatGameState(result.GameState))
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "/command")
	if err != nil {
		return c.fail("command", err), nil
	}
	line, err := request.RequireString("command")
	if err != nil {
		return c.fail("command", err), nil
	}

	var result service.CommandResult
	if err := c.apiCall(ctx, "POST", path, map[string]string{"command": line}, &result); err != nil {
		return c.fail("command", err), nil
	}
	return mcp.NewToolResultText(formatCommandResult(&result)), nil
}

func (c *Client) handleSkillMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "/skill-move")
	if err != nil {
		return c.fail("skill_move", err), nil
	}
	direction, err := request.RequireString("direction")
	if err != nil {
		return c.fail("skill_move", err), nil
	}

	var result service.SkillMoveResult
	if err := c.apiCall(ctx, "POST", path, map[string]string{"direction": direction}, &result); err != nil {
		return c.fail("skill_move", err), nil
	}

	text := formatCommandResult(result.Command)
	if result.Move != nil {
		text += "\n" + formatMoveResult(result.Move)
	}
	return mcp.NewToolResultText(text), nil
}

func (c *Client) handleSetEventPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eventID, err := request.RequireInt("event_id")
	if err != nil {
		return c.fail("set_event_page", err), nil
	}
	page, err := request.RequireInt("page")
	if err != nil {
		return c.fail("set_event_page", err), nil
	}
	path, err := sessionPath(request, fmt.Sprintf("/events/%d/page", eventID))
	if err != nil {
		return c.fail("set_event_page", err), nil
	}

	var state engine.GameState
	if err := c.apiCall(ctx, "POST", path, map[string]int{"page": page}, &state); err != nil {
		return c.fail("set_event_page", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Event %d now on page %d\n\n%s", eventID, page, formatGameState(&state))), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "/reset")
	if err != nil {
		return c.fail("reset_game", err), nil
	}

	var response struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", path, nil, &response); err != nil {
		return c.fail("reset_game", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatGameState(response.State))), nil
}

func (c *Client) handleMoveHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := url.Values{}
	if page := request.GetInt("page", 0); page > 0 {
		query.Set("page", fmt.Sprint(page))
	}
	if limit := request.GetInt("limit", 0); limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	path, err := sessionPath(request, "/history")
	if err != nil {
		return c.fail("move_history", err), nil
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return c.fail("move_history", err), nil
	}
	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleDescribeTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	x, err := request.RequireInt("x")
	if err != nil {
		return c.fail("describe_tile", err), nil
	}
	y, err := request.RequireInt("y")
	if err != nil {
		return c.fail("describe_tile", err), nil
	}
	path, err := sessionPath(request, fmt.Sprintf("/tiles/%d/%d", x, y))
	if err != nil {
		return c.fail("describe_tile", err), nil
	}

	var info service.TileInfo
	if err := c.apiCall(ctx, "GET", path, nil, &info); err != nil {
		return c.fail("describe_tile", err), nil
	}
	return mcp.NewToolResultText(formatTileInfo(&info)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(gameInstructions), nil
}

const gameInstructions = `Puzzle Map - Instructions

MAP LEGEND (default tiles):
  .  floor
  #  wall
  =  guide rail (crates slide along it)
  ~  groove (a one-tile gap you can jump over)
  w  water (only platforms float on it)
  v  cliff edge facing down, ^ cliff edge facing up
  <, >  rail stops

OBJECTS:
  Crates (type box) are pushed when you walk into them. A crate only moves if
  the tile behind it is free for it. Crates stack: a crate pushed off a ledge
  falls and may land on top of another object.
  Platforms carry whatever stands on them. Step on to board, step off to leave.
  You can jump across a groove when the tile beyond it is free.

MOVEMENT COMMANDS:
  move / bulk_move walk the player. A blocked move reports the tile you aimed
  at and why it failed (blocked_wall, blocked_object, blocked_boundary).
  tick lets time pass: falling objects land, riders follow their platform and
  controlled objects finish their step.

SKILL MOVE:
  Face an object that is in range and call skill_move with a direction. The
  player takes control of the object and it moves one tile. command accepts
  the raw form "` + engine.SkillMoveCommand + ` <controllerId>".

TIPS:
  - Use describe_tile before committing to a plan near rails and cliffs.
  - bulk_move stops at the first blocked move; read the local 3x3 view.
  - reset_game rebuilds the level but keeps the cumulative move history.`

func formatSessionInfo(session *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", session.ID)
	fmt.Fprintf(&b, "Level: %s\n", session.ConfigName)
	fmt.Fprintf(&b, "Created: %s\n", session.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Last accessed: %s\n\n", session.LastAccessedAt.Format(time.RFC3339))
	b.WriteString(formatGameState(session.GameState))
	return b.String()
}

func formatCharacter(c engine.CharacterState) string {
	name := c.Name
	if name == "" {
		name = fmt.Sprintf("#%d", c.ID)
	}
	line := fmt.Sprintf("%s (id %d) at (%g,%g) facing %s", name, c.ID, c.X, c.Y, c.Direction)
	if c.Object != nil {
		line += fmt.Sprintf(" [%s h=%d]", c.Object.Type, c.Object.Height)
	}
	if c.Page < 0 {
		line += " inactive"
	}
	if c.RidingID > 0 {
		line += fmt.Sprintf(" riding %d", c.RidingID)
	}
	if c.Controlling > 0 {
		line += fmt.Sprintf(" controlling %d", c.Controlling)
	}
	if c.Jumping {
		line += " jumping"
	}
	if c.Moving {
		line += " moving"
	}
	return line
}

// renderMap overlays the player and objects on the layout.
func renderMap(state *engine.GameState) []string {
	rows := make([][]byte, len(state.Layout))
	for y, row := range state.Layout {
		rows[y] = []byte(row)
	}
	put := func(x, y float64, ch byte) {
		ix, iy := int(x+0.5), int(y+0.5)
		if iy >= 0 && iy < len(rows) && ix >= 0 && ix < len(rows[iy]) {
			rows[iy][ix] = ch
		}
	}
	for _, c := range state.Characters {
		if c.Page < 0 || c.Object == nil {
			continue
		}
		switch c.Object.Type {
		case engine.ObjectBox:
			put(c.X, c.Y, 'B')
		case engine.ObjectPlatform:
			put(c.X, c.Y, 'P')
		default:
			put(c.X, c.Y, 'o')
		}
	}
	put(state.Player.X, state.Player.Y, '@')

	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = string(row)
	}
	return out
}

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Level: %s (%dx%d), frame %d\n", state.ConfigName, state.Width, state.Height, state.Frame)
	fmt.Fprintf(&b, "Player: %s\n", formatCharacter(state.Player))
	fmt.Fprintf(&b, "Moves: %d (since reset: %d)\n", state.TotalMoves, state.CurrentMovesCount)
	if !state.Settled {
		b.WriteString("World is still moving; tick to let it settle.\n")
	}
	if state.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", state.Message)
	}

	b.WriteString("\nMap (@ player, B crate, P platform, o other):\n")
	for y, row := range renderMap(state) {
		fmt.Fprintf(&b, "%2d %s\n", y, row)
	}

	if len(state.Characters) > 0 {
		b.WriteString("\nObjects:\n")
		for _, c := range state.Characters {
			fmt.Fprintf(&b, "- %s\n", formatCharacter(c))
		}
	}
	for _, bh := range state.Behaviors {
		fmt.Fprintf(&b, "Behavior %s: %d -> %d running=%v\n", bh.Kind, bh.OwnerID, bh.TargetID, bh.Running)
	}
	return b.String()
}

func formatEvents(events []service.GameEvent) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Message == "" {
			continue
		}
		fmt.Fprintf(&b, "  • %s\n", ev.Message)
	}
	return b.String()
}

func formatMoveResult(result *service.MoveResult) string {
	var b strings.Builder
	if result.Success {
		b.WriteString("✓ Move successful\n")
	} else {
		b.WriteString("✗ Move failed\n")
	}
	if result.Message != "" {
		fmt.Fprintf(&b, "%s\n", result.Message)
	}
	if s := result.Step; s != nil {
		fmt.Fprintf(&b, "%s: (%g,%g) -> (%g,%g) %s on '%s' (%s), %d frames\n",
			s.Dir, s.From.X, s.From.Y, s.To.X, s.To.Y, s.Outcome, s.TileChar, s.TileName, s.Frames)
	}
	if a := result.AttemptedTo; a != nil {
		fmt.Fprintf(&b, "Attempted (%d,%d) '%s' (%s): %s\n", a.X, a.Y, a.TileChar, a.TileName, a.Reason)
	}
	if events := formatEvents(result.Events); events != "" {
		b.WriteString("Events:\n" + events)
	}
	if st := result.GameState; st != nil {
		fmt.Fprintf(&b, "Position: (%g,%g), moves: %d\n", st.Player.X, st.Player.Y, st.TotalMoves)
	}
	return b.String()
}

func formatBulkMoveResult(result *service.BulkMoveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Executed %d/%d moves", result.MovesExecuted, result.RequestedMoves)
	if result.Truncated {
		fmt.Fprintf(&b, " (truncated to %d)", result.Limit)
	}
	fmt.Fprintf(&b, ", %d frames\n", result.Frames)
	fmt.Fprintf(&b, "From (%g,%g) to (%g,%g)\n", result.StartPos.X, result.StartPos.Y, result.EndPos.X, result.EndPos.Y)

	for _, s := range result.Steps {
		fmt.Fprintf(&b, "  %d. %s -> (%g,%g) %s '%s'\n", s.Idx, s.Dir, s.To.X, s.To.Y, s.Outcome, s.TileChar)
	}

	if !result.Success {
		fmt.Fprintf(&b, "Stopped on move %d: %s [%s]\n", result.StoppedOnMove, result.StoppedReason, result.StopReasonCode)
		if a := result.AttemptedTo; a != nil {
			fmt.Fprintf(&b, "Attempted (%d,%d) '%s' (%s)\n", a.X, a.Y, a.TileChar, a.TileName)
		}
	}
	if events := formatEvents(result.Events); events != "" {
		b.WriteString("Events:\n" + events)
	}
	if len(result.LocalView3x3) > 0 {
		b.WriteString("Local view:\n")
		for _, row := range result.LocalView3x3 {
			fmt.Fprintf(&b, "  %s\n", row)
		}
	}
	if len(result.PossibleMoves) > 0 {
		fmt.Fprintf(&b, "Possible moves: %s\n", strings.Join(result.PossibleMoves, ", "))
	}
	return b.String()
}

func formatCommandResult(result *service.CommandResult) string {
	if result == nil {
		return ""
	}
	var b strings.Builder
	if result.Success {
		fmt.Fprintf(&b, "✓ %s\n", result.Command)
	} else {
		fmt.Fprintf(&b, "✗ %s\n", result.Command)
	}
	if result.Message != "" {
		fmt.Fprintf(&b, "%s\n", result.Message)
	}
	b.WriteString(formatEvents(result.Events))
	return b.String()
}

func formatTileInfo(info *service.TileInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tile (%d,%d): '%s' (%s)\n", info.X, info.Y, info.Char, info.Name)
	fmt.Fprintf(&b, "Terrain tag: %d, groove: %v, wall: %v\n", info.Terrain, info.Groove, info.Wall)
	b.WriteString("Passable:")
	for _, d := range engine.Directions {
		fmt.Fprintf(&b, " %s=%v", d, info.Passable[d.String()])
	}
	b.WriteString("\n")
	if len(info.Objects) == 0 {
		b.WriteString("Nothing stands here\n")
	}
	for _, c := range info.Objects {
		fmt.Fprintf(&b, "- %s\n", formatCharacter(c))
	}
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Move History (page %d/%d, %d total)\n\n", history.Page, history.TotalPages, history.TotalMoves)
	for _, m := range history.Moves {
		mark := "✓"
		if !m.Success {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s #%d %s (%g,%g) -> (%g,%g) %s\n",
			mark, m.MoveNumber, m.Action, m.FromPosition.X, m.FromPosition.Y, m.ToPosition.X, m.ToPosition.Y, m.Outcome)
	}
	if history.HasNext {
		b.WriteString("\nMore moves on the next page\n")
	}
	return b.String()
}
