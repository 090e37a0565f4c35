package engine

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func createValidLevel() *LevelConfig {
	return &LevelConfig{
		Name:        "Test Level",
		Description: "Level for config tests",
		Layout: []string{
			"#####",
			"#.=.#",
			"#v=.#",
			"#^..#",
			"#####",
		},
		Player: PlayerSpec{X: 1, Y: 1, Direction: DirRight},
		Events: []EventSpec{
			{Name: "crate", X: 2, Y: 2, Pages: []PageSpec{{Comments: []string{"@MapObject { type: box }"}}}},
		},
	}
}

const testLevelJSON = `{
	"name": "Test Level",
	"description": "Test description",
	"layout": [
		"#####",
		"#.=.#",
		"#.=.#",
		"#...#",
		"#####"
	],
	"player": {"x": 1, "y": 1, "direction": "down"},
	"events": [
		{"name": "crate", "x": 2, "y": 1, "pages": [{"comments": ["@MapObject { type: box, fallable: true }"], "speed": 3}]}
	],
	"settings": {"fall_speed": 6}
}`

const testLevelYAML = `
name: Yaml Level
description: Loaded from yaml
layout:
  - "#####"
  - "#.w.#"
  - "#...#"
legend:
  w: {name: water, block: [all]}
player: {x: 1, y: 1, direction: 6, speed: 5}
events:
  - name: raft
    x: 2
    y: 1
    pages:
      - comments: ["@MapObject { type: platform, h: 0 }"]
        priority: below
        route: [down, up]
        repeat: true
`

func TestValidateLevelConfig_ValidConfig(t *testing.T) {
	if err := ValidateLevelConfig(createValidLevel()); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
	if err := ValidateLevelConfig(DefaultLevelConfig()); err != nil {
		t.Errorf("Expected default level to be valid, got error: %v", err)
	}
}

func TestValidateLevelConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *LevelConfig)
		want   string
	}{
		{"missing name", func(c *LevelConfig) { c.Name = "" }, "name is required"},
		{"missing description", func(c *LevelConfig) { c.Description = "" }, "description is required"},
		{"too few rows", func(c *LevelConfig) { c.Layout = c.Layout[:2] }, "layout must have"},
		{"ragged row", func(c *LevelConfig) { c.Layout[2] = "#..#" }, "row 3 must have"},
		{"unknown character", func(c *LevelConfig) { c.Layout[1] = "#.?.#" }, "invalid character '?'"},
		{"bad legend key", func(c *LevelConfig) { c.Legend = map[string]TileSpec{"ab": {}} }, "single character"},
		{"bad block side", func(c *LevelConfig) { c.Legend = map[string]TileSpec{"x": {Block: []string{"sideways"}}} }, "unknown block side"},
		{"player outside", func(c *LevelConfig) { c.Player.X = 9 }, "outside the map"},
		{"player speed", func(c *LevelConfig) { c.Player.Speed = 9 }, "player speed"},
		{"bad start page", func(c *LevelConfig) { c.Events[0].Page = 3 }, "starts on page 3"},
		{"bad priority", func(c *LevelConfig) { c.Events[0].Pages[0].Priority = "sky" }, "invalid priority"},
		{"bad page speed", func(c *LevelConfig) { c.Events[0].Pages[0].Speed = 7 }, "speed must be between"},
		{"shared start", func(c *LevelConfig) { c.Events[0].X, c.Events[0].Y = 1, 1 }, "both start at"},
		{"fall speed", func(c *LevelConfig) {
			v := 0
			c.Settings = &SettingsSpec{FallSpeed: &v}
		}, "fall_speed"},
		{"skill range", func(c *LevelConfig) {
			v := 11
			c.Settings = &SettingsSpec{SkillRange: &v}
		}, "skill_range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := createValidLevel()
			tt.mutate(config)
			err := ValidateLevelConfig(config)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidateLevelConfig_ThroughEventsMayShareTiles(t *testing.T) {
	config := createValidLevel()
	config.Events = append(config.Events, EventSpec{
		Name:  "ghost",
		X:     2,
		Y:     2,
		Pages: []PageSpec{{Through: true}},
	})
	if err := ValidateLevelConfig(config); err != nil {
		t.Errorf("Expected through event to share a tile, got: %v", err)
	}
}

func TestDecodeLevelConfig_JSON(t *testing.T) {
	config, err := DecodeLevelConfig([]byte(testLevelJSON), "json")
	if err != nil {
		t.Fatalf("Failed to decode level: %v", err)
	}
	if config.Name != "Test Level" {
		t.Errorf("Expected name 'Test Level', got '%s'", config.Name)
	}
	if config.Player.Direction != DirDown {
		t.Errorf("Expected player facing down, got %s", config.Player.Direction)
	}
	if s := config.EffectiveSettings(); s.FallSpeed != 6 || s.SkillRange != 2 {
		t.Errorf("Expected fall speed override only, got %+v", s)
	}
}

func TestDecodeLevelConfig_YAML(t *testing.T) {
	config, err := DecodeLevelConfig([]byte(testLevelYAML), "yaml")
	if err != nil {
		t.Fatalf("Failed to decode yaml level: %v", err)
	}
	if config.Player.Direction != DirRight || config.Player.Speed != 5 {
		t.Errorf("Expected player right at speed 5, got %+v", config.Player)
	}
	page := config.Events[0].Pages[0]
	if len(page.Route) != 2 || page.Route[0] != DirDown || !page.Repeat {
		t.Errorf("Expected repeating down/up route, got %+v", page)
	}
	if config.EffectiveLegend()["w"].Block[0] != "all" {
		t.Error("Expected custom water legend entry")
	}
}

func TestDecodeLevelConfig_SchemaRejects(t *testing.T) {
	docs := map[string]string{
		"missing layout":  `{"name": "x", "description": "y", "player": {"x": 1, "y": 1}}`,
		"unknown setting": `{"name": "x", "description": "y", "layout": ["...", "...", "..."], "player": {"x": 1, "y": 1}, "settings": {"gravity": 2}}`,
		"bad block name":  `{"name": "x", "description": "y", "layout": ["...", "...", "..."], "legend": {"q": {"block": ["north"]}}, "player": {"x": 1, "y": 1}}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeLevelConfig([]byte(doc), "json")
			if !errors.Is(err, ErrSchema) {
				t.Errorf("Expected schema error, got: %v", err)
			}
		})
	}
}

func TestDecodeLevelConfig_RoundTripsDefault(t *testing.T) {
	data, err := json.Marshal(DefaultLevelConfig())
	if err != nil {
		t.Fatalf("Failed to marshal default level: %v", err)
	}
	config, err := DecodeLevelConfig(data, "json")
	if err != nil {
		t.Fatalf("Default level failed to decode: %v", err)
	}
	if config.Name != "tutorial" || len(config.Events) != 2 {
		t.Errorf("Unexpected decoded default level: %+v", config)
	}
}

func TestLoadConfigByName(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("LEVELS_DIR", tempDir)

	if err := os.WriteFile(filepath.Join(tempDir, "test.json"), []byte(testLevelJSON), 0644); err != nil {
		t.Fatalf("Failed to create test level file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "lake.yaml"), []byte(testLevelYAML), 0644); err != nil {
		t.Fatalf("Failed to create yaml level file: %v", err)
	}

	// Test loading by name without extension
	config, err := LoadConfigByName("test")
	if err != nil {
		t.Fatalf("Failed to load config by name: %v", err)
	}
	if config.Name != "Test Level" {
		t.Errorf("Expected config name 'Test Level', got '%s'", config.Name)
	}

	yamlConfig, err := LoadConfigByName("lake")
	if err != nil {
		t.Fatalf("Failed to load yaml level by name: %v", err)
	}
	if yamlConfig.Name != "Yaml Level" {
		t.Errorf("Expected 'Yaml Level', got '%s'", yamlConfig.Name)
	}

	// Test loading non-existent config
	_, err = LoadConfigByName("nonexistent")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected 'not found' error, got: %v", err)
	}
}

func TestLoadLevelConfig(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "level.yml")
	if err := os.WriteFile(tempFile, []byte(testLevelYAML), 0644); err != nil {
		t.Fatalf("Failed to create level file: %v", err)
	}

	config, err := LoadLevelConfig(tempFile)
	if err != nil {
		t.Fatalf("Failed to load level: %v", err)
	}
	if len(config.Layout) != 3 {
		t.Errorf("Expected 3 layout rows, got %d", len(config.Layout))
	}

	if _, err := LoadLevelConfig("nonexistent.json"); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestInitWorldFromConfig(t *testing.T) {
	config, err := DecodeLevelConfig([]byte(testLevelYAML), "yaml")
	if err != nil {
		t.Fatalf("Failed to decode level: %v", err)
	}
	w, err := InitWorldFromConfig(config, nil)
	if err != nil {
		t.Fatalf("Failed to build world: %v", err)
	}

	m := w.Map()
	if m.Width() != 5 || m.Height() != 3 {
		t.Errorf("Expected 5x3 map, got %dx%d", m.Width(), m.Height())
	}
	if !m.IsWall(2, 1) {
		t.Error("Expected water tile to block every side")
	}

	p := w.Player()
	if p.X() != 1 || p.Y() != 1 || p.Direction() != DirRight || p.MoveSpeed() != 5 {
		t.Errorf("Unexpected player start: (%g, %g) %s speed %d", p.X(), p.Y(), p.Direction(), p.MoveSpeed())
	}

	raft := w.Character(1)
	if raft == nil || !raft.CanRide() || raft.Object().Type != ObjectPlatform {
		t.Fatalf("Expected rideable platform event, got %+v", raft)
	}
	if raft.priority != PriorityBelow {
		t.Errorf("Expected below priority, got %d", raft.priority)
	}
	if len(w.DrainEvents()) != 0 {
		t.Error("Expected setup events to be drained")
	}
}
