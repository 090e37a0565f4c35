package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/puzzlemap/game/config"
	"github.com/wricardo/puzzlemap/game/engine"
	"github.com/wricardo/puzzlemap/game/replay"
	"github.com/wricardo/puzzlemap/game/service"
	"github.com/wricardo/puzzlemap/transport/websocket"
)

var levelIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	logger  *zap.Logger
	started time.Time
}

// NewServer creates a new API server. hub may be nil when no WebSocket
// clients are served.
func NewServer(gameService service.GameService, hub *websocket.Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  logger,
		started: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	// Must be before the {id} pattern
	api.HandleFunc("/sessions/unified", s.handleUnifiedSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Game operations
	api.HandleFunc("/sessions/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/sessions/{id}/move", s.handleMove).Methods("POST")
	api.HandleFunc("/sessions/{id}/bulk-move", s.handleBulkMove).Methods("POST")
	api.HandleFunc("/sessions/{id}/tick", s.handleTick).Methods("POST")
	api.HandleFunc("/sessions/{id}/command", s.handleCommand).Methods("POST")
	api.HandleFunc("/sessions/{id}/skill-move", s.handleSkillMove).Methods("POST")
	api.HandleFunc("/sessions/{id}/events/{eventId:[0-9]+}/page", s.handleSetEventPage).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")
	api.HandleFunc("/sessions/{id}/journal", s.handleGetJournal).Methods("GET")
	api.HandleFunc("/sessions/{id}/tiles/{x:-?[0-9]+}/{y:-?[0-9]+}", s.handleDescribeTile).Methods("GET")

	// Levels
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"error": message, "code": status})
}

// errorStatus maps service and engine errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrConfigNotFound),
		errors.Is(err, engine.ErrUnknownCharacter):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidDirection),
		errors.Is(err, engine.ErrInvalidTick),
		errors.Is(err, engine.ErrUnknownCommand),
		errors.Is(err, engine.ErrInvalidCommand),
		errors.Is(err, config.ErrInvalidConfig):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	respondError(w, status, err.Error())
}

func (s *Server) broadcast(sessionID string, state *engine.GameState, events []service.GameEvent) {
	if s.hub != nil && state != nil {
		s.hub.BroadcastToSession(sessionID, state, events)
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID   string `json:"config_id,omitempty"`
		ConfigName string `json:"config_name,omitempty"` // Deprecated, use config_id
	}

	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	configID := req.ConfigID
	if configID == "" {
		configID = req.ConfigName
	}

	session, err := s.service.CreateSession(r.Context(), configID)
	if err != nil {
		s.fail(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort") // "created", "accessed" (default)
	order := query.Get("order") // "asc", "desc" (default)
	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 && l < total {
		sessions = sessions[:l]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		s.fail(w, err)
		return
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(sessionID, websocket.EventDeleted, nil)
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Game Operation Handlers

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Direction string `json:"direction"`
		Reset     bool   `json:"reset,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Move(r.Context(), sessionID, req.Direction, req.Reset)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.broadcast(sessionID, result.GameState, result.Events)

	if step := result.Step; step != nil {
		s.logger.Debug("move",
			zap.String("session", sessionID),
			zap.String("dir", step.Dir),
			zap.String("outcome", string(step.Outcome)),
			zap.Float64("x", step.To.X),
			zap.Float64("y", step.To.Y),
			zap.String("tile", step.TileChar))
	} else if a := result.AttemptedTo; a != nil {
		s.logger.Debug("move blocked",
			zap.String("session", sessionID),
			zap.Int("x", a.X),
			zap.Int("y", a.Y),
			zap.String("tile", a.TileChar),
			zap.String("reason", a.Reason))
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkMove(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Moves []string `json:"moves"`
		Reset bool     `json:"reset,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.BulkMove(r.Context(), sessionID, req.Moves, req.Reset)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.broadcast(sessionID, result.GameState, result.Events)

	s.logger.Debug("bulk move",
		zap.String("session", sessionID),
		zap.Int("executed", result.MovesExecuted),
		zap.Int("requested", result.RequestedMoves),
		zap.String("stop", result.StopReasonCode),
		zap.Float64("x", result.EndPos.X),
		zap.Float64("y", result.EndPos.Y),
		zap.Int64("frames", result.Frames))

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Frames int `json:"frames"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Tick(r.Context(), sessionID, req.Frames)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.broadcast(sessionID, result.GameState, result.Events)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Command string `json:"command"`
	}
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Command) == "" {
		respondError(w, http.StatusBadRequest, "Request body must carry a command")
		return
	}

	result, err := s.service.Command(r.Context(), sessionID, req.Command)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.broadcast(sessionID, result.GameState, result.Events)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSkillMove(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Direction string `json:"direction"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.SkillMove(r.Context(), sessionID, req.Direction)
	if err != nil {
		s.fail(w, err)
		return
	}
	if result.Move != nil {
		events := append(append([]service.GameEvent{}, result.Command.Events...), result.Move.Events...)
		s.broadcast(sessionID, result.Move.GameState, events)
	} else {
		s.broadcast(sessionID, result.Command.GameState, result.Command.Events)
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSetEventPage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]
	eventID, err := strconv.Atoi(vars["eventId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid event id")
		return
	}

	var req struct {
		Page int `json:"page"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := s.service.SetEventPage(r.Context(), sessionID, eventID, req.Page)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.broadcast(sessionID, state, nil)
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	state, err := s.service.Reset(r.Context(), sessionID)
	if err != nil {
		s.fail(w, err)
		return
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(sessionID, websocket.EventReset, nil)
	}
	s.broadcast(sessionID, state, nil)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Game reset successfully",
		"state":   state,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if p, err := strconv.Atoi(query.Get("page")); err == nil && p > 0 {
		opts.Page = p
	}
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 {
		opts.Limit = l
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetMoveHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// handleGetJournal returns the session's journal as JSON, or as the
// compressed replay stream with ?format=zst.
func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	info, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		s.fail(w, err)
		return
	}
	journal, err := s.service.GetJournal(r.Context(), sessionID)
	if err != nil {
		s.fail(w, err)
		return
	}

	if r.URL.Query().Get("format") != "zst" {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"session_id": sessionID,
			"level":      info.ConfigName,
			"entries":    journal,
		})
		return
	}

	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sessionID+replay.Ext))
	if err := replay.Encode(w, info.ConfigName, journal); err != nil {
		s.logger.Warn("failed to stream journal", zap.String("session", sessionID), zap.Error(err))
	}
}

func (s *Server) handleDescribeTile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	x, errX := strconv.Atoi(vars["x"])
	y, errY := strconv.Atoi(vars["y"])
	if errX != nil || errY != nil {
		respondError(w, http.StatusBadRequest, "Invalid tile coordinates")
		return
	}

	info, err := s.service.DescribeTile(r.Context(), vars["id"], x, y)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			s.fail(w, err)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// Level Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	level, err := s.service.LoadConfig(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, level)
}

// handleCreateConfig stores a level. The file name comes from ?id= or, when
// absent, from the level's name.
func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var level engine.LevelConfig
	if err := decodeBody(r, &level); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if level.Name == "" {
		respondError(w, http.StatusBadRequest, "Level name is required")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		id = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(level.Name), " ", "-"))
	}
	if !levelIDPattern.MatchString(id) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid level id %q", id))
		return
	}

	format := r.URL.Query().Get("format")
	filename := id + ".json"
	if format == "yaml" {
		filename = id + ".yaml"
	}

	if err := s.service.SaveConfig(r.Context(), filename, &level); err != nil {
		s.fail(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Level saved successfully",
		"config_id": id,
		"filename":  filename,
	})
}

// Unified Sessions Handler

func (s *Server) handleUnifiedSessions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var sessions []*service.SessionInfo
	if sessionIDs := query.Get("sessionIds"); sessionIDs != "" {
		for _, id := range strings.Split(sessionIDs, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if session, err := s.service.GetSession(r.Context(), id); err == nil {
				sessions = append(sessions, session)
			}
		}
	} else {
		all, err := s.service.ListSessions(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		configName := query.Get("configName")
		for _, session := range all {
			if configName == "" || session.ConfigName == configName {
				sessions = append(sessions, session)
			}
		}
	}

	configName := ""
	eventCount := 0
	if len(sessions) > 0 {
		configName = sessions[0].ConfigName
		if level := sessions[0].LevelConfig; level != nil {
			eventCount = len(level.Events)
		}
	}

	entries := make([]map[string]interface{}, 0, len(sessions))
	for _, session := range sessions {
		entries = append(entries, map[string]interface{}{
			"session_id":    session.ID,
			"config_name":   session.ConfigName,
			"game_state":    session.GameState,
			"created_at":    session.CreatedAt,
			"last_accessed": session.LastAccessedAt,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"config_name": configName,
		"event_count": eventCount,
		"sessions":    entries,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket updates are disabled", http.StatusServiceUnavailable)
		return
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	if _, err := s.service.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, sessionID)
}
