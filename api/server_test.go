package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/puzzlemap/game/config"
	"github.com/wricardo/puzzlemap/game/engine"
	"github.com/wricardo/puzzlemap/game/replay"
	"github.com/wricardo/puzzlemap/game/service"
	"github.com/wricardo/puzzlemap/game/session"
	"github.com/wricardo/puzzlemap/transport/websocket"
)

type testEnv struct {
	server *Server
	hub    *websocket.Hub
	levels *config.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	levels, err := config.NewManager(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	if err := levels.SaveConfig("tutorial.json", engine.DefaultLevelConfig()); err != nil {
		t.Fatalf("Failed to save tutorial: %v", err)
	}

	hub := websocket.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	svc := service.NewGameService(session.NewManager(logger), levels, logger)
	return &testEnv{server: NewServer(svc, hub, logger), hub: hub, levels: levels}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rr := e.do(t, "POST", "/api/sessions", map[string]string{"config_id": "tutorial"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Failed to create session: %d %s", rr.Code, rr.Body.String())
	}
	var info service.SessionInfo
	decode(t, rr, &info)
	return info.ID
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/health", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "healthy") {
		t.Errorf("Unexpected health response: %d %s", rr.Code, rr.Body.String())
	}
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
	}{
		{name: "config_id", body: map[string]string{"config_id": "tutorial"}, wantStatus: http.StatusCreated},
		{name: "deprecated config_name", body: map[string]string{"config_name": "tutorial"}, wantStatus: http.StatusCreated},
		{name: "empty body uses the default", body: nil, wantStatus: http.StatusCreated},
		{name: "unknown level", body: map[string]string{"config_id": "nope"}, wantStatus: http.StatusNotFound},
		{name: "malformed body", body: "{", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", "/api/sessions", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				return
			}
			var info service.SessionInfo
			decode(t, rr, &info)
			if info.ID == "" || info.ConfigName != "tutorial" || info.GameState == nil {
				t.Errorf("Unexpected session %+v", info)
			}
		})
	}
}

func TestListGetDeleteSessions(t *testing.T) {
	env := newTestEnv(t)
	first := env.createSession(t)
	time.Sleep(2 * time.Millisecond)
	second := env.createSession(t)

	t.Run("list sorted by creation", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/sessions?sort=created&order=asc&limit=1", nil)
		var body struct {
			Count    int                    `json:"count"`
			Total    int                    `json:"total"`
			Sessions []*service.SessionInfo `json:"sessions"`
		}
		decode(t, rr, &body)
		if body.Count != 1 || body.Total != 2 || body.Sessions[0].ID != first {
			t.Errorf("Unexpected listing %+v", body)
		}
	})

	t.Run("get", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/sessions/"+second, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rr.Code)
		}
		if rr := env.do(t, "GET", "/api/sessions/zzzz", nil); rr.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for an unknown session, got %d", rr.Code)
		}
	})

	t.Run("unified", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/sessions/unified?sessionIds="+first+",nope", nil)
		var body struct {
			ConfigName string                   `json:"config_name"`
			EventCount int                      `json:"event_count"`
			Sessions   []map[string]interface{} `json:"sessions"`
		}
		decode(t, rr, &body)
		if body.ConfigName != "tutorial" || body.EventCount != 2 || len(body.Sessions) != 1 {
			t.Errorf("Unexpected unified view %+v", body)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if rr := env.do(t, "DELETE", "/api/sessions/"+first, nil); rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rr.Code)
		}
		if rr := env.do(t, "DELETE", "/api/sessions/"+first, nil); rr.Code != http.StatusNotFound {
			t.Errorf("Expected 404 on second delete, got %d", rr.Code)
		}
	})
}

func TestMove(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	tests := []struct {
		name        string
		path        string
		body        interface{}
		wantStatus  int
		wantSuccess bool
	}{
		{name: "step right", path: "/api/sessions/" + id + "/move", body: map[string]string{"direction": "right"}, wantStatus: http.StatusOK, wantSuccess: true},
		{name: "blocked by a wall", path: "/api/sessions/" + id + "/move", body: map[string]interface{}{"direction": "left", "reset": true}, wantStatus: http.StatusOK},
		{name: "invalid direction", path: "/api/sessions/" + id + "/move", body: map[string]string{"direction": "diagonal"}, wantStatus: http.StatusOK},
		{name: "bad body", path: "/api/sessions/" + id + "/move", body: "not json", wantStatus: http.StatusBadRequest},
		{name: "unknown session", path: "/api/sessions/zzzz/move", body: map[string]string{"direction": "up"}, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", tt.path, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if rr.Code != http.StatusOK {
				return
			}
			var result service.MoveResult
			decode(t, rr, &result)
			if result.Success != tt.wantSuccess {
				t.Errorf("Expected success=%v, got %+v", tt.wantSuccess, result)
			}
		})
	}

	rr := env.do(t, "POST", "/api/sessions/"+id+"/move", map[string]interface{}{"direction": "left", "reset": true})
	var result service.MoveResult
	decode(t, rr, &result)
	if result.AttemptedTo == nil || result.AttemptedTo.Reason != "blocked_wall" {
		t.Errorf("Expected a blocked_wall attempt, got %+v", result.AttemptedTo)
	}
}

func TestBulkMove(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	rr := env.do(t, "POST", "/api/sessions/"+id+"/bulk-move", map[string]interface{}{
		"moves": []string{"down", "right", "right", "left", "left", "left"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result service.BulkMoveResult
	decode(t, rr, &result)

	if result.RequestedMoves != 6 || result.Success {
		t.Errorf("Expected a stopped batch of 6, got %+v", result)
	}
	if len(result.Steps) == 0 || result.Steps[2].Outcome != engine.OutcomePush {
		t.Errorf("Expected the third step to push the crate, got %+v", result.Steps)
	}
	var pushed bool
	for _, ev := range result.Events {
		if ev.Type == string(engine.EventPush) {
			pushed = true
		}
	}
	if !pushed {
		t.Error("Expected a push event in the batch")
	}

	if rr := env.do(t, "POST", "/api/sessions/"+id+"/bulk-move", "[]"); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed body, got %d", rr.Code)
	}
}

func TestTickCommandAndPages(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	base := "/api/sessions/" + id

	rr := env.do(t, "POST", base+"/tick", map[string]int{"frames": 12})
	var tick service.TickResult
	decode(t, rr, &tick)
	if rr.Code != http.StatusOK || tick.GameState.Frame != 12 {
		t.Errorf("Unexpected tick response %d %+v", rr.Code, tick)
	}
	if rr := env.do(t, "POST", base+"/tick", map[string]int{"frames": 0}); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero frames, got %d", rr.Code)
	}

	rr = env.do(t, "POST", base+"/command", map[string]string{"command": engine.SkillMoveCommand + " 0"})
	var cmd service.CommandResult
	decode(t, rr, &cmd)
	if rr.Code != http.StatusOK || cmd.Command != engine.SkillMoveCommand+" 0" {
		t.Errorf("Unexpected command response %d %+v", rr.Code, cmd)
	}
	if rr := env.do(t, "POST", base+"/command", map[string]string{"command": "FLY 0"}); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown command, got %d", rr.Code)
	}
	if rr := env.do(t, "POST", base+"/command", map[string]string{}); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an empty command, got %d", rr.Code)
	}

	rr = env.do(t, "POST", base+"/events/2/page", map[string]int{"page": -1})
	var state engine.GameState
	decode(t, rr, &state)
	if rr.Code != http.StatusOK || state.Characters[1].Page != -1 {
		t.Errorf("Unexpected page response %d %+v", rr.Code, state.Characters)
	}
	if rr := env.do(t, "POST", base+"/events/9/page", map[string]int{"page": 0}); rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown event, got %d", rr.Code)
	}
}

func TestSkillMove(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	base := "/api/sessions/" + id

	if rr := env.do(t, "POST", base+"/skill-move", map[string]string{"direction": "sideways"}); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad direction, got %d", rr.Code)
	}

	env.do(t, "POST", base+"/move", map[string]string{"direction": "right"})
	rr := env.do(t, "POST", base+"/skill-move", map[string]string{"direction": "right"})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result service.SkillMoveResult
	decode(t, rr, &result)
	if !result.Command.Success || result.Move == nil {
		t.Errorf("Expected the crate to be steered, got %+v", result.Command)
	}
}

func TestResetAndHistory(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	base := "/api/sessions/" + id

	env.do(t, "POST", base+"/bulk-move", map[string]interface{}{"moves": []string{"up", "down", "up"}})

	rr := env.do(t, "POST", base+"/reset", nil)
	var reset struct {
		State engine.GameState `json:"state"`
	}
	decode(t, rr, &reset)
	if rr.Code != http.StatusOK || reset.State.Player.X != 1 || reset.State.Player.Y != 2 {
		t.Errorf("Unexpected reset response %d %+v", rr.Code, reset.State.Player)
	}

	rr = env.do(t, "GET", base+"/history?limit=2&order=asc&page=1", nil)
	var history service.HistoryResponse
	decode(t, rr, &history)
	if history.TotalMoves != 3 || len(history.Moves) != 2 || !history.HasNext || history.Moves[0].MoveNumber != 1 {
		t.Errorf("Unexpected history %+v", history)
	}

	if rr := env.do(t, "GET", "/api/sessions/zzzz/history", nil); rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rr.Code)
	}
}

func TestJournal(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	base := "/api/sessions/" + id

	env.do(t, "POST", base+"/bulk-move", map[string]interface{}{"moves": []string{"down", "right", "right"}})
	env.do(t, "POST", base+"/tick", map[string]int{"frames": 3})

	rr := env.do(t, "GET", base+"/journal", nil)
	var body struct {
		Level   string               `json:"level"`
		Entries []engine.JournalEntry `json:"entries"`
	}
	decode(t, rr, &body)
	if body.Level != "tutorial" || len(body.Entries) != 4 {
		t.Fatalf("Unexpected journal %+v", body)
	}

	rr = env.do(t, "GET", base+"/journal?format=zst", nil)
	if ct := rr.Header().Get("Content-Type"); ct != "application/zstd" {
		t.Errorf("Expected zstd content, got %q", ct)
	}
	header, entries, err := replay.Decode(rr.Body)
	if err != nil {
		t.Fatalf("Failed to decode streamed journal: %v", err)
	}
	if header.Level != "tutorial" || len(entries) != 4 {
		t.Errorf("Unexpected streamed journal %+v (%d entries)", header, len(entries))
	}

	// The stream rebuilds the same game.
	replayed, err := replay.Apply(engine.DefaultLevelConfig(), entries, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	rr = env.do(t, "GET", base+"/state", nil)
	var state engine.GameState
	decode(t, rr, &state)
	if got := replayed.GetState(); got.Player.X != state.Player.X || got.Characters[0].X != state.Characters[0].X {
		t.Errorf("Replay diverged: player %g vs %g", got.Player.X, state.Player.X)
	}
}

func TestDescribeTile(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	tests := []struct {
		path       string
		wantStatus int
		wantName   string
	}{
		{path: fmt.Sprintf("/api/sessions/%s/tiles/3/3", id), wantStatus: http.StatusOK, wantName: "guide"},
		{path: fmt.Sprintf("/api/sessions/%s/tiles/8/4", id), wantStatus: http.StatusOK, wantName: "groove"},
		{path: fmt.Sprintf("/api/sessions/%s/tiles/-1/4", id), wantStatus: http.StatusBadRequest},
		{path: "/api/sessions/zzzz/tiles/1/1", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := env.do(t, "GET", tt.path, nil)
			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantName == "" {
				return
			}
			var info service.TileInfo
			decode(t, rr, &info)
			if info.Name != tt.wantName {
				t.Errorf("Expected %s, got %+v", tt.wantName, info)
			}
		})
	}
}

func TestConfigs(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/configs", nil)
	var list []service.ConfigInfo
	decode(t, rr, &list)
	if len(list) != 1 || list[0].ConfigID != "tutorial" || list[0].EventCount != 2 {
		t.Errorf("Unexpected config list %+v", list)
	}

	if rr := env.do(t, "GET", "/api/configs/tutorial", nil); rr.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rr.Code)
	}
	if rr := env.do(t, "GET", "/api/configs/nope", nil); rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rr.Code)
	}

	level := engine.DefaultLevelConfig()
	level.Name = "Second Room"
	rr = env.do(t, "POST", "/api/configs?format=yaml", level)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created map[string]string
	decode(t, rr, &created)
	if created["config_id"] != "second-room" || created["filename"] != "second-room.yaml" {
		t.Errorf("Unexpected create response %+v", created)
	}
	if rr := env.do(t, "POST", "/api/sessions", map[string]string{"config_id": "second-room"}); rr.Code != http.StatusCreated {
		t.Errorf("Expected a session on the new level, got %d", rr.Code)
	}

	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{name: "no name", path: "/api/configs", body: &engine.LevelConfig{Layout: []string{"..."}}},
		{name: "path in id", path: "/api/configs?id=../evil", body: level},
		{name: "invalid level", path: "/api/configs", body: &engine.LevelConfig{Name: "empty"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := env.do(t, "POST", tt.path, tt.body); rr.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestWebSocket(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	server := httptest.NewServer(env.server)
	defer server.Close()
	wsBase := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	if _, resp, err := gorillaws.DefaultDialer.Dial(wsBase, nil); err == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without a session parameter")
	}
	if _, resp, err := gorillaws.DefaultDialer.Dial(wsBase+"?session=zzzz", nil); err == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown session")
	}

	conn, _, err := gorillaws.DefaultDialer.Dial(wsBase+"?session="+id, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for env.hub.ClientCount(id) != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	env.do(t, "POST", "/api/sessions/"+id+"/move", map[string]string{"direction": "down"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read update: %v", err)
	}
	var message websocket.Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("Failed to decode update: %v", err)
	}
	if message.Event != websocket.EventStateUpdate || message.GameState.Player.Y != 3 {
		t.Errorf("Unexpected update %+v", message)
	}
	if len(message.Events) == 0 || message.Events[0].Type != "move" {
		t.Errorf("Expected the move event, got %+v", message.Events)
	}
}
