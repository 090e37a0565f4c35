package engine

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrUnknownCharacter = errors.New("unknown character")
	ErrInvalidPage      = errors.New("invalid event page")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrInvalidCommand   = errors.New("invalid command arguments")
)

// SkillMoveCommand starts a scripted move: "AMPS_SKILL_MOVE <controllerId>".
const SkillMoveCommand = "AMPS_SKILL_MOVE"

// PushPolicy holds the level-design rules for pushing across elevation.
type PushPolicy struct {
	// AllowPushFromMount lets a rider push a box whose tile faces an edge toward it.
	AllowPushFromMount bool `json:"allow_push_from_mount"`
	// AllowPushMountedObject lets a pusher facing an edge push a box that rides something.
	AllowPushMountedObject bool `json:"allow_push_mounted_object"`
}

// Settings are the engine tunables of one level.
type Settings struct {
	GuideTerrainTag int        `json:"guide_terrain_tag"`
	JumpWaitFrames  int        `json:"jump_wait_frames"`
	FallSpeed       int        `json:"fall_speed"`
	SkillRange      int        `json:"skill_range"`
	MaxSettleFrames int        `json:"max_settle_frames"`
	JumpSound       SoundSpec  `json:"jump_sound"`
	LandSound       SoundSpec  `json:"land_sound"`
	Push            PushPolicy `json:"push"`
}

// DefaultSettings returns the stock tunables.
func DefaultSettings() Settings {
	return Settings{
		GuideTerrainTag: DefaultGuideTag,
		JumpWaitFrames:  4,
		FallSpeed:       5,
		SkillRange:      2,
		MaxSettleFrames: 600,
		JumpSound:       SoundSpec{Name: "Evasion1", Volume: 80, Pitch: 110},
		LandSound:       SoundSpec{Name: "Blow1", Volume: 90, Pitch: 100},
		Push:            PushPolicy{AllowPushFromMount: true, AllowPushMountedObject: true},
	}
}

// World is the explicit context every movement call runs against: the map,
// the character arena (0 = player, 1..N = events) and the attachments.
type World struct {
	m         Map
	chars     []*Character
	behaviors map[int]Behavior
	settings  Settings
	queue     EventQueue
	audio     AudioSink
	frame     int64
	logger    *zap.Logger

	lastInputOutcome MoveOutcome
	lastInputSuccess bool
}

// NewWorld creates a world holding only the player at (0, 0).
func NewWorld(m Map, settings Settings, logger *zap.Logger) *World {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &World{
		m:         m,
		behaviors: make(map[int]Behavior),
		settings:  settings,
		logger:    logger,
	}
	w.chars = []*Character{newCharacter(PlayerID, "player", 0, 0)}
	return w
}

// SetAudioSink routes sound events to s as they are emitted.
func (w *World) SetAudioSink(s AudioSink) { w.audio = s }

func (w *World) Map() Map { return w.m }
func (w *World) Settings() Settings { return w.settings }
func (w *World) Frame() int64 { return w.frame }
func (w *World) Player() *Character { return w.chars[PlayerID] }
func (w *World) Logger() *zap.Logger { return w.logger }

// Characters returns the arena in id order.
func (w *World) Characters() []*Character { return w.chars }

// Character resolves an arena id, nil when out of range.
func (w *World) Character(id int) *Character {
	if id < 0 || id >= len(w.chars) {
		return nil
	}
	return w.chars[id]
}

// EventSpecInput is what AddEvent needs to place an event.
type EventSpecInput struct {
	Name  string
	X, Y  float64
	Note  string
	Pages []Page
	Page  int
}

// AddEvent appends an event to the arena and activates its starting page.
func (w *World) AddEvent(in EventSpecInput) *Character {
	c := newCharacter(len(w.chars), in.Name, in.X, in.Y)
	c.note = in.Note
	c.pages = in.Pages
	c.moveSpeed = 3
	w.chars = append(w.chars, c)
	page := in.Page
	if len(c.pages) == 0 {
		page = -1
	}
	w.setupPage(c, page)
	return c
}

// PlacePlayer puts the player at (x, y) facing d.
func (w *World) PlacePlayer(x, y float64, d Direction, speed int) {
	p := w.Player()
	p.Locate(w, x, y)
	if d.Valid() {
		p.SetDirection(d)
	}
	if speed > 0 {
		p.SetMoveSpeed(speed)
	}
}

// Update advances the world one frame. input is the player's requested
// direction for this frame, DirNone for none. Mounts update before riders.
func (w *World) Update(input Direction) {
	w.frame++
	w.lastInputOutcome = OutcomeNone
	w.lastInputSuccess = false

	for _, c := range w.updateOrder() {
		if c.IsPlayer() && input.Valid() {
			w.handleInput(c, input)
		}
		c.update(w)
	}
	w.updateBehaviors()
}

// LastInput reports what the player's input did on the latest frame.
func (w *World) LastInput() (MoveOutcome, bool) {
	return w.lastInputOutcome, w.lastInputSuccess
}

func (w *World) handleInput(p *Character, d Direction) {
	if !p.IsStopping() || w.ControllerOf(p.id) != nil {
		return
	}
	if b := w.SkillMoveOwnedBy(p.id); b != nil {
		if b.Running() {
			return
		}
		if !b.Direct(w, d) {
			w.Detach(b.Target())
			w.lastInputOutcome = OutcomeNone
			return
		}
		p.SetDirection(d)
		w.lastInputOutcome = OutcomeSkillMove
		w.lastInputSuccess = true
		return
	}
	p.MoveStraight(w, d)
	w.lastInputOutcome = p.lastOutcome
	w.lastInputSuccess = p.movementSuccess
}

// updateOrder sorts characters so every mount precedes its riders.
func (w *World) updateOrder() []*Character {
	order := make([]*Character, len(w.chars))
	copy(order, w.chars)
	depth := make(map[int]int, len(w.chars))
	for _, c := range w.chars {
		d := 0
		cur := c
		for cur.Riding() && d <= len(w.chars) {
			next := w.Character(cur.ridingID)
			if next == nil {
				break
			}
			d++
			cur = next
		}
		depth[c.id] = d
	}
	sort.SliceStable(order, func(i, j int) bool {
		return depth[order[i].id] < depth[order[j].id]
	})
	return order
}

// Settled reports a world waiting for input: the player idle and unlocked,
// no controlled step in flight and nothing falling.
func (w *World) Settled() bool {
	p := w.Player()
	if !p.IsIdle() || p.waitAfterJump > 0 {
		return false
	}
	for _, b := range w.behaviors {
		if b.Running() {
			return false
		}
	}
	for _, c := range w.chars {
		if c.fallState != FallNone || c.fallArmed || c.pendingFall {
			return false
		}
	}
	return true
}

// DrainEvents returns and clears the events emitted since the last drain.
func (w *World) DrainEvents() []Event {
	return w.queue.Drain()
}

// ExecCommand runs a plugin-style command line. It reports whether the
// command took effect.
func (w *World) ExecCommand(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}
	switch strings.ToUpper(fields[0]) {
	case SkillMoveCommand:
		if len(fields) < 2 {
			return false, fmt.Errorf("%w: %s needs a controller id", ErrInvalidCommand, SkillMoveCommand)
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return false, fmt.Errorf("%w: controller id %q", ErrInvalidCommand, fields[1])
		}
		controller := w.Character(id)
		if controller == nil {
			return false, fmt.Errorf("%w: %d", ErrUnknownCharacter, id)
		}
		return w.StartSkillMove(controller), nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
}

// Clone deep-copies the mutable state. The map is shared read-only and the
// copy logs nothing.
func (w *World) Clone() *World {
	cp := &World{
		m:         w.m,
		chars:     make([]*Character, len(w.chars)),
		behaviors: make(map[int]Behavior, len(w.behaviors)),
		settings:  w.settings,
		frame:     w.frame,
		logger:    zap.NewNop(),
	}
	for i, c := range w.chars {
		cc := *c
		cp.chars[i] = &cc
	}
	for target, b := range w.behaviors {
		cp.behaviors[target] = b.clone()
	}
	return cp
}

// CharacterStates snapshots every character in id order.
func (w *World) CharacterStates() []CharacterState {
	out := make([]CharacterState, 0, len(w.chars))
	for _, c := range w.chars {
		out = append(out, c.State(w))
	}
	return out
}
