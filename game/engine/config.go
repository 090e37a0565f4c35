package engine

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed level.schema.json
var levelSchemaJSON string

var (
	levelSchemaOnce sync.Once
	levelSchema     *jsonschema.Schema
)

// ErrSchema wraps level documents rejected by the JSON schema.
var ErrSchema = errors.New("level schema validation failed")

// TileSpec describes one legend character.
type TileSpec struct {
	Name    string   `json:"name,omitempty"`
	Block   []string `json:"block,omitempty"`
	Terrain int      `json:"terrain,omitempty"`
	Groove  bool     `json:"groove,omitempty"`
}

// PlayerSpec is the player's starting state.
type PlayerSpec struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Direction Direction `json:"direction,omitempty"`
	Speed     int       `json:"speed,omitempty"`
}

// PageSpec is one event page in a level file.
type PageSpec struct {
	Comments  []string    `json:"comments,omitempty"`
	Direction Direction   `json:"direction,omitempty"`
	Speed     int         `json:"speed,omitempty"`
	Frequency int         `json:"frequency,omitempty"`
	Priority  string      `json:"priority,omitempty"`
	Through   bool        `json:"through,omitempty"`
	Route     []Direction `json:"route,omitempty"`
	Repeat    bool        `json:"repeat,omitempty"`
	Skippable bool        `json:"skippable,omitempty"`
}

// EventSpec places one map event.
type EventSpec struct {
	Name  string     `json:"name"`
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
	Note  string     `json:"note,omitempty"`
	Page  int        `json:"page,omitempty"`
	Pages []PageSpec `json:"pages,omitempty"`
}

// SettingsSpec overrides DefaultSettings field by field.
type SettingsSpec struct {
	GuideTerrainTag        *int       `json:"guide_terrain_tag,omitempty"`
	JumpWaitFrames         *int       `json:"jump_wait_frames,omitempty"`
	FallSpeed              *int       `json:"fall_speed,omitempty"`
	SkillRange             *int       `json:"skill_range,omitempty"`
	MaxSettleFrames        *int       `json:"max_settle_frames,omitempty"`
	JumpSound              *SoundSpec `json:"jump_sound,omitempty"`
	LandSound              *SoundSpec `json:"land_sound,omitempty"`
	AllowPushFromMount     *bool      `json:"allow_push_from_mount,omitempty"`
	AllowPushMountedObject *bool      `json:"allow_push_mounted_object,omitempty"`
}

// LevelConfig represents a puzzle level loaded from JSON or YAML
type LevelConfig struct {
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	Layout         []string            `json:"layout"`
	Legend         map[string]TileSpec `json:"legend,omitempty"`
	LoopHorizontal bool                `json:"loop_horizontal,omitempty"`
	LoopVertical   bool                `json:"loop_vertical,omitempty"`
	Player         PlayerSpec          `json:"player"`
	Events         []EventSpec         `json:"events,omitempty"`
	Settings       *SettingsSpec       `json:"settings,omitempty"`
	Messages       struct {
		Welcome string `json:"welcome,omitempty"`
		Blocked string `json:"blocked,omitempty"`
	} `json:"messages,omitempty"`
}

// DefaultLegend maps the built-in layout characters to tiles.
func DefaultLegend() map[string]TileSpec {
	return map[string]TileSpec{
		".": {Name: "floor"},
		"#": {Name: "wall", Block: []string{"all"}},
		"~": {Name: "groove", Block: []string{"all"}, Groove: true},
		"w": {Name: "water", Block: []string{"all"}},
		"=": {Name: "guide", Terrain: DefaultGuideTag},
		"v": {Name: "ledge_down", Block: []string{"down"}},
		"^": {Name: "ledge_up", Block: []string{"up"}},
		"<": {Name: "ledge_left", Block: []string{"left"}},
		">": {Name: "ledge_right", Block: []string{"right"}},
	}
}

// EffectiveLegend merges the level's legend over the defaults.
func (cfg *LevelConfig) EffectiveLegend() map[string]TileSpec {
	legend := DefaultLegend()
	for k, v := range cfg.Legend {
		legend[k] = v
	}
	return legend
}

// EffectiveSettings applies the level's overrides to DefaultSettings.
func (cfg *LevelConfig) EffectiveSettings() Settings {
	s := DefaultSettings()
	o := cfg.Settings
	if o == nil {
		return s
	}
	if o.GuideTerrainTag != nil {
		s.GuideTerrainTag = *o.GuideTerrainTag
	}
	if o.JumpWaitFrames != nil {
		s.JumpWaitFrames = *o.JumpWaitFrames
	}
	if o.FallSpeed != nil {
		s.FallSpeed = *o.FallSpeed
	}
	if o.SkillRange != nil {
		s.SkillRange = *o.SkillRange
	}
	if o.MaxSettleFrames != nil {
		s.MaxSettleFrames = *o.MaxSettleFrames
	}
	if o.JumpSound != nil {
		s.JumpSound = *o.JumpSound
	}
	if o.LandSound != nil {
		s.LandSound = *o.LandSound
	}
	if o.AllowPushFromMount != nil {
		s.Push.AllowPushFromMount = *o.AllowPushFromMount
	}
	if o.AllowPushMountedObject != nil {
		s.Push.AllowPushMountedObject = *o.AllowPushMountedObject
	}
	return s
}

func parseBlock(names []string) (uint8, error) {
	var bits uint8
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "all":
			bits |= BlockAll
		case "down":
			bits |= BlockDown
		case "left":
			bits |= BlockLeft
		case "right":
			bits |= BlockRight
		case "up":
			bits |= BlockUp
		default:
			return 0, fmt.Errorf("unknown block side %q", name)
		}
	}
	return bits, nil
}

// ValidateLevelConfig validates a level configuration for correctness
func ValidateLevelConfig(config *LevelConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	height := len(config.Layout)
	if height < MinMapSize || height > MaxMapSize {
		return fmt.Errorf("config validation: layout must have between %d and %d rows, got %d", MinMapSize, MaxMapSize, height)
	}
	width := len(config.Layout[0])
	if width < MinMapSize || width > MaxMapSize {
		return fmt.Errorf("config validation: layout rows must have between %d and %d characters, got %d", MinMapSize, MaxMapSize, width)
	}

	legend := config.EffectiveLegend()
	for key, spec := range legend {
		if len(key) != 1 {
			return fmt.Errorf("config validation: legend key %q must be a single character", key)
		}
		if _, err := parseBlock(spec.Block); err != nil {
			return fmt.Errorf("config validation: legend[%q]: %v", key, err)
		}
	}
	for i, row := range config.Layout {
		if len(row) != width {
			return fmt.Errorf("config validation: row %d must have %d characters, got %d", i+1, width, len(row))
		}
		for j, char := range row {
			if _, ok := legend[string(char)]; !ok {
				return fmt.Errorf("config validation: invalid character '%c' at row %d, col %d", char, i+1, j+1)
			}
		}
	}

	inBounds := func(x, y float64) bool {
		return x >= 0 && y >= 0 && x < float64(width) && y < float64(height)
	}
	if !inBounds(config.Player.X, config.Player.Y) {
		return fmt.Errorf("config validation: player start (%g, %g) is outside the map", config.Player.X, config.Player.Y)
	}
	if config.Player.Speed != 0 && (config.Player.Speed < MinMoveSpeed || config.Player.Speed > MaxMoveSpeed) {
		return fmt.Errorf("config validation: player speed must be between %d and %d, got %d", MinMoveSpeed, MaxMoveSpeed, config.Player.Speed)
	}

	occupied := map[Position]string{{X: config.Player.X, Y: config.Player.Y}: "player"}
	for i, ev := range config.Events {
		label := ev.Name
		if label == "" {
			label = fmt.Sprintf("event %d", i+1)
		}
		if !inBounds(ev.X, ev.Y) {
			return fmt.Errorf("config validation: %s at (%g, %g) is outside the map", label, ev.X, ev.Y)
		}
		if ev.Page < -1 || (len(ev.Pages) > 0 && ev.Page >= len(ev.Pages)) {
			return fmt.Errorf("config validation: %s starts on page %d but has %d pages", label, ev.Page, len(ev.Pages))
		}
		for p, page := range ev.Pages {
			if _, err := ParsePriority(page.Priority); err != nil {
				return fmt.Errorf("config validation: %s page %d: %v", label, p+1, err)
			}
			if page.Speed != 0 && (page.Speed < MinMoveSpeed || page.Speed > MaxMoveSpeed) {
				return fmt.Errorf("config validation: %s page %d: speed must be between %d and %d, got %d", label, p+1, MinMoveSpeed, MaxMoveSpeed, page.Speed)
			}
			if page.Frequency < 0 || page.Frequency > 5 {
				return fmt.Errorf("config validation: %s page %d: frequency must be between 1 and 5, got %d", label, p+1, page.Frequency)
			}
			for _, d := range page.Route {
				if !d.Valid() {
					return fmt.Errorf("config validation: %s page %d: route contains an invalid direction", label, p+1)
				}
			}
		}
		if blocksStart(ev) {
			pos := Position{X: ev.X, Y: ev.Y}
			if other, ok := occupied[pos]; ok {
				return fmt.Errorf("config validation: %s and %s both start at (%g, %g)", label, other, ev.X, ev.Y)
			}
			occupied[pos] = label
		}
	}

	s := config.EffectiveSettings()
	if s.GuideTerrainTag < 0 || s.GuideTerrainTag > 255 {
		return fmt.Errorf("config validation: guide_terrain_tag must be between 0 and 255, got %d", s.GuideTerrainTag)
	}
	if s.JumpWaitFrames < 0 || s.JumpWaitFrames > 60 {
		return fmt.Errorf("config validation: jump_wait_frames must be between 0 and 60, got %d", s.JumpWaitFrames)
	}
	if s.FallSpeed < MinMoveSpeed || s.FallSpeed > MaxMoveSpeed {
		return fmt.Errorf("config validation: fall_speed must be between %d and %d, got %d", MinMoveSpeed, MaxMoveSpeed, s.FallSpeed)
	}
	if s.SkillRange < 1 || s.SkillRange > 10 {
		return fmt.Errorf("config validation: skill_range must be between 1 and 10, got %d", s.SkillRange)
	}
	if s.MaxSettleFrames < 1 || s.MaxSettleFrames > MaxTickFrames {
		return fmt.Errorf("config validation: max_settle_frames must be between 1 and %d, got %d", MaxTickFrames, s.MaxSettleFrames)
	}

	return nil
}

// blocksStart reports an event whose starting page makes it solid.
func blocksStart(ev EventSpec) bool {
	if len(ev.Pages) == 0 || ev.Page < 0 {
		return false
	}
	page := ev.Pages[ev.Page]
	prio, _ := ParsePriority(page.Priority)
	return !page.Through && prio == PrioritySame
}

func compiledLevelSchema() *jsonschema.Schema {
	levelSchemaOnce.Do(func() {
		levelSchema = jsonschema.MustCompileString("level.schema.json", levelSchemaJSON)
	})
	return levelSchema
}

// DecodeLevelConfig parses a level document. format is "json" or "yaml";
// both are checked against the level JSON schema before decoding.
func DecodeLevelConfig(data []byte, format string) (*LevelConfig, error) {
	jsonData := data
	if format == "yaml" || format == "yml" {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
		converted, err := json.Marshal(normalizeYAML(doc))
		if err != nil {
			return nil, fmt.Errorf("failed to convert yaml: %w", err)
		}
		jsonData = converted
	}

	var doc any
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse json: %w", err)
	}
	if err := compiledLevelSchema().Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	var config LevelConfig
	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, fmt.Errorf("failed to decode level: %w", err)
	}
	if err := ValidateLevelConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// normalizeYAML turns yaml's interface-keyed maps into JSON-encodable ones.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			key := "~"
			if k != nil {
				key = fmt.Sprint(k)
			}
			out[key] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	}
	return v
}

// FormatForPath picks the decoder from a file extension.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}

// LoadLevelConfig loads a level from a JSON or YAML file
func LoadLevelConfig(filename string) (*LevelConfig, error) {
	// Support LEVELS_DIR environment variable for alternative level directory
	path := filename
	if dir := os.Getenv("LEVELS_DIR"); dir != "" && strings.HasPrefix(filename, "levels/") {
		path = filepath.Join(dir, strings.TrimPrefix(filename, "levels/"))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeLevelConfig(data, FormatForPath(path))
}

// LoadConfigByName loads a level by name from the levels directory, trying
// .json, .yaml and .yml in that order.
func LoadConfigByName(name string) (*LevelConfig, error) {
	dir := "levels"
	if env := os.Getenv("LEVELS_DIR"); env != "" {
		dir = env
	}
	candidates := []string{name}
	if filepath.Ext(name) == "" {
		candidates = []string{name + ".json", name + ".yaml", name + ".yml"}
	}
	for _, candidate := range candidates {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read level '%s': %w", candidate, err)
		}
		config, err := DecodeLevelConfig(data, FormatForPath(path))
		if err != nil {
			return nil, fmt.Errorf("invalid level '%s': %w", candidate, err)
		}
		return config, nil
	}
	return nil, fmt.Errorf("level '%s' not found", name)
}

// BuildTileMap turns the layout and legend into a TileMap.
func BuildTileMap(config *LevelConfig) (*TileMap, error) {
	legend := config.EffectiveLegend()
	tiles := make(map[rune]Tile, len(legend))
	for key, spec := range legend {
		bits, err := parseBlock(spec.Block)
		if err != nil {
			return nil, err
		}
		tiles[[]rune(key)[0]] = Tile{Block: bits, Terrain: spec.Terrain, Groove: spec.Groove}
	}

	m := NewTileMap(len(config.Layout[0]), len(config.Layout))
	m.SetLoop(config.LoopHorizontal, config.LoopVertical)
	for y, row := range config.Layout {
		for x, char := range row {
			m.SetTile(x, y, tiles[char])
		}
	}
	return m, nil
}

// PagesFromSpecs converts level-file pages to engine pages.
func PagesFromSpecs(specs []PageSpec) []Page {
	pages := make([]Page, 0, len(specs))
	for _, spec := range specs {
		prio, _ := ParsePriority(spec.Priority)
		pages = append(pages, Page{
			Comments:  spec.Comments,
			Direction: spec.Direction,
			MoveSpeed: spec.Speed,
			Frequency: spec.Frequency,
			Priority:  prio,
			Through:   spec.Through,
			Route:     spec.Route,
			Repeat:    spec.Repeat,
			Skippable: spec.Skippable,
		})
	}
	return pages
}

// InitWorldFromConfig creates a new world using the provided configuration
func InitWorldFromConfig(config *LevelConfig, logger *zap.Logger) (*World, error) {
	if config == nil {
		config = DefaultLevelConfig()
	}
	m, err := BuildTileMap(config)
	if err != nil {
		return nil, err
	}

	w := NewWorld(m, config.EffectiveSettings(), logger)
	w.PlacePlayer(config.Player.X, config.Player.Y, config.Player.Direction, config.Player.Speed)
	for _, ev := range config.Events {
		w.AddEvent(EventSpecInput{
			Name:  ev.Name,
			X:     ev.X,
			Y:     ev.Y,
			Note:  ev.Note,
			Pages: PagesFromSpecs(ev.Pages),
			Page:  ev.Page,
		})
	}
	// Setup noise (page changes, placement) is not part of play.
	w.DrainEvents()
	return w, nil
}

// DefaultLevelConfig is the built-in tutorial level.
func DefaultLevelConfig() *LevelConfig {
	config := &LevelConfig{
		Name:        "tutorial",
		Description: "Push the crate along the rail, ride the lift and hop the groove.",
		Layout: []string{
			"############",
			"#....#.....#",
			"#..........#",
			"#.====>ww<.#",
			"#....#..~..#",
			"#vvvv#.....#",
			"#####......#",
			"#^^^^......#",
			"############",
		},
		Player: PlayerSpec{X: 1, Y: 2, Direction: DirRight, Speed: 4},
		Events: []EventSpec{
			{
				Name: "crate",
				X:    3,
				Y:    3,
				Pages: []PageSpec{{
					Comments: []string{"@MapObject { type: box, h: 1, trigger: onCrateLanded }"},
					Speed:    3,
				}},
			},
			{
				Name: "lift",
				X:    7,
				Y:    3,
				Pages: []PageSpec{{
					Comments: []string{"@MapObject { type: platform, h: 0 }"},
					Priority: "below",
					Speed:    3,
				}},
			},
		},
	}
	config.Messages.Welcome = "Welcome! Push, ride and jump your way across."
	config.Messages.Blocked = "Can't move there!"
	return config
}
