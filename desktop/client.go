package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// CharacterState mirrors the fields of the server's character snapshot the
// viewer draws.
type CharacterState struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Direction   string  `json:"direction"`
	Page        int     `json:"page"`
	Jumping     bool    `json:"jumping"`
	RidingID    int     `json:"riding_id"`
	Controlling int     `json:"controlling"`
	Object      *struct {
		Type   string `json:"type"`
		Height int    `json:"height"`
	} `json:"object,omitempty"`
}

// ObjectType returns "box", "platform" or "" for plain characters.
func (c CharacterState) ObjectType() string {
	if c.Object == nil {
		return ""
	}
	return c.Object.Type
}

// GameState mirrors the server's game state.
type GameState struct {
	ConfigName string           `json:"config_name"`
	Frame      int64            `json:"frame"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Layout     []string         `json:"layout"`
	Player     CharacterState   `json:"player"`
	Characters []CharacterState `json:"characters"`
	Settled    bool             `json:"settled"`
	Message    string           `json:"message"`
	TotalMoves int              `json:"total_moves"`
}

// WSMessage is one WebSocket update.
type WSMessage struct {
	SessionID string     `json:"session_id"`
	Event     string     `json:"event,omitempty"`
	GameState *GameState `json:"game_state,omitempty"`
}

// APIClient talks to the puzzle map REST API.
type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *APIClient) post(path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *APIClient) get(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// CreateSession starts a session on level and returns its id.
func (c *APIClient) CreateSession(level string) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	if err := c.post("/api/sessions", map[string]string{"config_id": level}, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func (c *APIClient) State(sessionID string) (*GameState, error) {
	var state GameState
	if err := c.get("/api/sessions/"+sessionID+"/state", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *APIClient) Move(sessionID, direction string) error {
	return c.post("/api/sessions/"+sessionID+"/move", map[string]string{"direction": direction}, nil)
}

func (c *APIClient) SkillMove(sessionID, direction string) error {
	return c.post("/api/sessions/"+sessionID+"/skill-move", map[string]string{"direction": direction}, nil)
}

func (c *APIClient) Tick(sessionID string, frames int) error {
	return c.post("/api/sessions/"+sessionID+"/tick", map[string]int{"frames": frames}, nil)
}

func (c *APIClient) Reset(sessionID string) error {
	return c.post("/api/sessions/"+sessionID+"/reset", struct{}{}, nil)
}

// Dial opens the update stream of a session.
func (c *APIClient) Dial(sessionID string) (*websocket.Conn, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"session": {sessionID}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	return conn, err
}
