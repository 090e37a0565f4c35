// Command desktop is a multi-session viewer for the puzzle map server. It
// draws each session's map, the player and every map object, follows
// WebSocket updates and sends moves from the keyboard.
//
//	desktop [--server http://localhost:8080] [--level tutorial] [session ids...]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	cellSize          = 40
	headerHeight      = 80
	screenWidth       = 800
	screenHeight      = 720
	tickFrames        = 30
	animationDuration = 150 * time.Millisecond
	bumpDuration      = 400 * time.Millisecond
)

// Player colors for different sessions
var playerColors = []color.RGBA{
	{255, 100, 100, 255},
	{100, 100, 255, 255},
	{100, 255, 100, 255},
	{255, 255, 100, 255},
	{255, 100, 255, 255},
	{100, 255, 255, 255},
	{255, 165, 0, 255},
	{128, 0, 128, 255},
	{255, 192, 203, 255},
}

type point struct{ X, Y float64 }

// SessionData holds data for a single session
type SessionData struct {
	sessionID     string
	state         *GameState
	wsConn        *websocket.Conn
	lastUpdate    time.Time
	prev          map[int]point // positions before the last update, by character id
	moveStartTime time.Time
	animationTime float64
	bumpTime      time.Time
	bumping       bool
}

// Game is the desktop client
type Game struct {
	api           *APIClient
	log           *zap.Logger
	level         string
	sessions      []*SessionData
	activeSession int
	stateMutex    sync.RWMutex
	status        string
}

func NewGame(api *APIClient, logger *zap.Logger, level string, sessionIDs []string) *Game {
	g := &Game{api: api, log: logger, level: level}
	if len(sessionIDs) == 0 {
		sessionIDs = []string{""}
	}
	for _, sid := range sessionIDs {
		g.addSession(sid)
	}
	return g
}

// addSession attaches to sessionID, creating a session when it is empty.
func (g *Game) addSession(sessionID string) {
	if sessionID == "" {
		id, err := g.api.CreateSession(g.level)
		if err != nil {
			g.status = fmt.Sprintf("Failed to create session: %v", err)
			g.log.Error("create session", zap.String("level", g.level), zap.Error(err))
			return
		}
		sessionID = id
		g.log.Info("created session", zap.String("session", sessionID), zap.String("level", g.level))
	}

	session := &SessionData{sessionID: sessionID, lastUpdate: time.Now(), animationTime: 1}

	g.stateMutex.Lock()
	g.sessions = append(g.sessions, session)
	g.stateMutex.Unlock()

	conn, err := g.api.Dial(sessionID)
	if err != nil {
		g.log.Warn("websocket unavailable, polling", zap.String("session", sessionID), zap.Error(err))
	} else {
		session.wsConn = conn
		go g.listenWebSocket(session)
	}

	g.fetchGameState(session)
}

func (g *Game) listenWebSocket(session *SessionData) {
	defer session.wsConn.Close()

	for {
		_, message, err := session.wsConn.ReadMessage()
		if err != nil {
			g.log.Warn("websocket read", zap.String("session", session.sessionID), zap.Error(err))
			g.stateMutex.Lock()
			session.wsConn = nil
			g.stateMutex.Unlock()
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			g.log.Warn("websocket message", zap.Error(err))
			continue
		}
		if msg.GameState == nil {
			continue
		}
		g.applyState(session, msg.GameState)
	}
}

func (g *Game) fetchGameState(session *SessionData) {
	state, err := g.api.State(session.sessionID)
	if err != nil {
		g.log.Warn("fetch state", zap.String("session", session.sessionID), zap.Error(err))
		return
	}
	g.applyState(session, state)
}

// applyState swaps in a new state and starts the slide animation, or a bump
// when a move was recorded without anything changing place.
func (g *Game) applyState(session *SessionData, state *GameState) {
	g.stateMutex.Lock()
	defer g.stateMutex.Unlock()

	old := session.state
	session.state = state
	session.lastUpdate = time.Now()
	if old == nil {
		session.animationTime = 1
		return
	}

	session.prev = positions(old)
	moved := false
	for id, p := range positions(state) {
		if q, ok := session.prev[id]; ok && q != p {
			moved = true
		}
	}
	switch {
	case moved:
		session.moveStartTime = time.Now()
		session.animationTime = 0
		session.bumping = false
	case state.TotalMoves > old.TotalMoves:
		session.bumpTime = time.Now()
		session.bumping = true
	}
}

func positions(state *GameState) map[int]point {
	out := map[int]point{state.Player.ID: {state.Player.X, state.Player.Y}}
	for _, c := range state.Characters {
		out[c.ID] = point{c.X, c.Y}
	}
	return out
}

func (g *Game) active() *SessionData {
	if len(g.sessions) == 0 {
		return nil
	}
	return g.sessions[g.activeSession]
}

// sendAction runs one keyboard action on the active session.
func (g *Game) sendAction(action, direction string) {
	session := g.active()
	if session == nil {
		return
	}

	var err error
	switch action {
	case "move":
		err = g.api.Move(session.sessionID, direction)
	case "skill":
		err = g.api.SkillMove(session.sessionID, direction)
	case "tick":
		err = g.api.Tick(session.sessionID, tickFrames)
	case "reset":
		err = g.api.Reset(session.sessionID)
	}
	if err != nil {
		g.status = fmt.Sprintf("%s failed: %v", action, err)
		return
	}
	g.status = ""
	if session.wsConn == nil {
		g.fetchGameState(session)
	}
}

var arrowKeys = map[ebiten.Key]string{
	ebiten.KeyArrowUp:    "up",
	ebiten.KeyW:          "up",
	ebiten.KeyArrowDown:  "down",
	ebiten.KeyS:          "down",
	ebiten.KeyArrowLeft:  "left",
	ebiten.KeyA:          "left",
	ebiten.KeyArrowRight: "right",
	ebiten.KeyD:          "right",
}

// Update handles input and animation
func (g *Game) Update() error {
	g.stateMutex.Lock()
	for _, session := range g.sessions {
		if session.animationTime < 1 {
			session.animationTime = math.Min(1, float64(time.Since(session.moveStartTime))/float64(animationDuration))
		}
		if session.bumping && time.Since(session.bumpTime) > bumpDuration {
			session.bumping = false
		}
	}
	g.stateMutex.Unlock()

	// Poll sessions without a WebSocket
	for _, session := range g.sessions {
		if session.wsConn == nil && time.Since(session.lastUpdate) > 500*time.Millisecond {
			g.fetchGameState(session)
		}
	}

	for k := ebiten.Key1; k <= ebiten.Key9; k++ {
		if idx := int(k - ebiten.Key1); inpututil.IsKeyJustPressed(k) && idx < len(g.sessions) {
			g.activeSession = idx
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyN) && len(g.sessions) < 9 {
		g.addSession("")
	}

	skill := ebiten.IsKeyPressed(ebiten.KeyShift)
	for key, dir := range arrowKeys {
		if !inpututil.IsKeyJustPressed(key) {
			continue
		}
		if skill {
			g.sendAction("skill", dir)
		} else {
			g.sendAction("move", dir)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyT) {
		g.sendAction("tick", "")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.sendAction("reset", "")
	}
	return nil
}

// Draw renders the active session's map with every session's player on it
func (g *Game) Draw(screen *ebiten.Image) {
	g.stateMutex.RLock()
	defer g.stateMutex.RUnlock()

	screen.Fill(color.RGBA{20, 20, 30, 255})
	session := g.active()
	if session == nil || session.state == nil {
		ebitenutil.DebugPrint(screen, "Loading... "+g.status)
		return
	}
	state := session.state

	g.drawHeader(screen)

	for y, row := range state.Layout {
		for x, ch := range []rune(row) {
			ebitenutil.DrawRect(screen,
				float64(x*cellSize), float64(y*cellSize+headerHeight),
				cellSize-1, cellSize-1, tileColor(ch))
		}
	}

	t := session.animationTime
	for _, c := range state.Characters {
		if c.Page < 0 {
			continue
		}
		x, y := interpolate(session, c, t)
		sx := x*cellSize + 4
		sy := y*cellSize + headerHeight + 4
		ebitenutil.DrawRect(screen, sx, sy, cellSize-8, cellSize-8, objectColor(c.ObjectType()))
		ebitenutil.DebugPrintAt(screen, fmt.Sprint(c.ID), int(sx)+10, int(sy)+8)
	}

	for idx, s := range g.sessions {
		if s.state == nil || s.state.ConfigName != state.ConfigName {
			continue
		}
		p := s.state.Player
		x, y := interpolate(s, p, s.animationTime)
		pc := playerColors[idx%len(playerColors)]

		var shakeX, shakeY float64
		if s.bumping {
			progress := time.Since(s.bumpTime).Seconds() / bumpDuration.Seconds()
			intensity := 4.0 * (1.0 - progress)
			shakeX = intensity * math.Sin(progress*40)
			shakeY = intensity * math.Cos(progress*40)
			flash := (1.0 - progress) * 0.7
			pc.R = uint8(float64(pc.R)*(1.0-flash) + 255*flash)
		}
		if p.Jumping {
			shakeY -= 6
		}

		sx := x*cellSize + 10 + shakeX
		sy := y*cellSize + headerHeight + 10 + shakeY
		ebitenutil.DrawRect(screen, sx, sy, cellSize-20, cellSize-20, pc)
		ebitenutil.DebugPrintAt(screen, fmt.Sprint(idx+1), int(sx)+6, int(sy)+2)
	}

	ebitenutil.DebugPrintAt(screen, "1-9: Session | N: New | Arrows/WASD: Move | Shift+Arrow: Skill move | T: Tick | R: Reset", 10, screenHeight-20)
}

func interpolate(session *SessionData, c CharacterState, t float64) (float64, float64) {
	from, ok := session.prev[c.ID]
	if !ok || t >= 1 {
		return c.X, c.Y
	}
	return from.X*(1-t) + c.X*t, from.Y*(1-t) + c.Y*t
}

func (g *Game) drawHeader(screen *ebiten.Image) {
	for idx, session := range g.sessions {
		if session.state == nil {
			continue
		}
		y := 5 + idx*15
		ebitenutil.DrawRect(screen, 5, float64(y), 10, 10, playerColors[idx%len(playerColors)])

		marker := ""
		if idx == g.activeSession {
			marker = ">>>"
		}
		conn := "POLL"
		if session.wsConn != nil {
			conn = "WS"
		}
		p := session.state.Player
		info := fmt.Sprintf("%s [%d] %s [%s] %s (%g,%g) MV:%d F:%d %s",
			marker, idx+1, session.sessionID, conn, session.state.ConfigName,
			p.X, p.Y, session.state.TotalMoves, session.state.Frame, session.state.Message)
		ebitenutil.DebugPrintAt(screen, info, 20, y)
	}
	if g.status != "" {
		ebitenutil.DebugPrintAt(screen, g.status, 20, headerHeight-15)
	}
}

// Layout returns the game screen size
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

// tileColor colors the built-in legend characters.
func tileColor(ch rune) color.Color {
	switch ch {
	case '.':
		return color.RGBA{128, 128, 128, 255}
	case '#':
		return color.RGBA{100, 50, 0, 255}
	case '~':
		return color.RGBA{30, 30, 30, 255}
	case 'w':
		return color.RGBA{0, 100, 200, 255}
	case '=':
		return color.RGBA{180, 180, 120, 255}
	case 'v', '^', '<', '>':
		return color.RGBA{90, 140, 90, 255}
	default:
		return color.RGBA{50, 50, 50, 255}
	}
}

func objectColor(kind string) color.Color {
	switch kind {
	case "box":
		return color.RGBA{200, 140, 60, 255}
	case "platform":
		return color.RGBA{60, 200, 200, 255}
	default:
		return color.RGBA{160, 160, 220, 255}
	}
}

func main() {
	app := &cli.Command{
		Name:      "desktop",
		Usage:     "watch and play puzzle map sessions",
		ArgsUsage: "[session ids...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "puzzle map server URL", Sources: cli.EnvVars("PUZZLEMAP_SERVER")},
			&cli.StringFlag{Name: "level", Value: "tutorial", Usage: "level for new sessions"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync()

			game := NewGame(NewAPIClient(cmd.String("server")), logger, cmd.String("level"), cmd.Args().Slice())

			ebiten.SetWindowSize(screenWidth, screenHeight)
			ebiten.SetWindowTitle("Puzzle Map - Multi-Session Desktop Client")
			ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
			return ebiten.RunGame(game)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
