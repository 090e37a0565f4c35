package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wricardo/puzzlemap/game/engine"
	"github.com/wricardo/puzzlemap/game/service"
	"github.com/wricardo/puzzlemap/solver"
)

// Client plays solutions against a running server.
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s failed: %s - %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// CreateSession starts a session on level and remembers its id.
func (c *Client) CreateSession(ctx context.Context, level string) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", map[string]string{"config_id": level}, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

func (c *Client) BulkMove(ctx context.Context, moves []string) (*service.BulkMoveResult, error) {
	var result service.BulkMoveResult
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+c.sessionID+"/bulk-move", map[string]any{"moves": moves}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) SkillMove(ctx context.Context, direction string) (*service.SkillMoveResult, error) {
	var result service.SkillMoveResult
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+c.sessionID+"/skill-move", map[string]string{"direction": direction}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Play sends steps in order. Runs of plain moves go out as bulk moves of at
// most engine.MaxBulkMoves. It returns the final state.
func (c *Client) Play(ctx context.Context, steps []solver.Step) (*engine.GameState, error) {
	var state *engine.GameState
	var pending []string

	flush := func() error {
		for len(pending) > 0 {
			n := min(len(pending), engine.MaxBulkMoves)
			result, err := c.BulkMove(ctx, pending[:n])
			if err != nil {
				return err
			}
			state = result.GameState
			if !result.Success {
				return fmt.Errorf("bulk move stopped on move %d: %s", result.StoppedOnMove, result.StoppedReason)
			}
			pending = pending[n:]
		}
		return nil
	}

	for _, step := range steps {
		if !step.Skill {
			pending = append(pending, step.Direction.String())
			continue
		}
		if err := flush(); err != nil {
			return state, err
		}
		result, err := c.SkillMove(ctx, step.Direction.String())
		if err != nil {
			return state, err
		}
		if result.Move == nil || !result.Move.Success {
			return result.Command.GameState, fmt.Errorf("skill move %s failed: %s", step.Direction, result.Command.Message)
		}
		state = result.Move.GameState
	}
	if err := flush(); err != nil {
		return state, err
	}
	return state, nil
}
