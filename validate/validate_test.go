package validate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/wricardo/puzzlemap/game/engine"
)

func crate(name string, x, y float64) engine.EventSpec {
	return engine.EventSpec{
		Name:  name,
		X:     x,
		Y:     y,
		Pages: []engine.PageSpec{{Comments: []string{"@MapObject { type: box, h: 1 }"}}},
	}
}

func level(layout []string, events ...engine.EventSpec) *engine.LevelConfig {
	return &engine.LevelConfig{
		Name:        "test",
		Description: "validation fixture",
		Layout:      layout,
		Player:      engine.PlayerSpec{X: 1, Y: 1, Direction: engine.DirRight},
		Events:      events,
	}
}

func writeLevel(t *testing.T, dir, name string, cfg *engine.LevelConfig) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Failed to marshal level: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write level: %v", err)
	}
	return path
}

func hasLine(lines []string, substr string) bool {
	for _, line := range lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestLevel_Tutorial(t *testing.T) {
	result := Level("tutorial.json", engine.DefaultLevelConfig())

	if !result.Valid {
		t.Fatalf("Expected the tutorial to be valid, got %v", result.Errors)
	}
	for _, want := range []string{"✓ Name: tutorial", "✓ Map: 12x9", "✓ Objects: 1 crates, 1 platforms, 0 other"} {
		if !hasLine(result.Info, want) {
			t.Errorf("Expected %q in %v", want, result.Info)
		}
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		name      string
		level     *engine.LevelConfig
		wantValid bool
		wantError string
	}{
		{
			name: "reachable crate",
			level: level([]string{
				"######",
				"#....#",
				"######",
			}, crate("crate", 3, 1)),
			wantValid: true,
		},
		{
			name: "walled off crate",
			level: level([]string{
				"#######",
				"#..#..#",
				"#######",
			}, crate("crate", 5, 1)),
			wantError: "Unreachable: box crate at (5,1)",
		},
		{
			name: "groove jump reaches the far side",
			level: level([]string{
				"#######",
				"#..~..#",
				"#######",
			}, crate("crate", 5, 1)),
			wantValid: true,
		},
		{
			name: "groove into a wall",
			level: level([]string{
				"########",
				"#..~#..#",
				"########",
			}, crate("crate", 6, 1)),
			wantError: "Unreachable",
		},
		{
			name: "one-way ledge",
			level: level([]string{
				"######",
				"#.>..#",
				"######",
			}, crate("crate", 4, 1)),
			wantError: "Unreachable",
		},
		{
			name:      "no objects",
			level:     level([]string{"....", "....", "...."}),
			wantError: "no map objects",
		},
		{
			name:      "structural error",
			level:     level([]string{"...", ".."}),
			wantError: "config validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Level("level.json", tt.level)
			if result.Valid != tt.wantValid {
				t.Fatalf("Expected valid=%v, got %v (errors %v)", tt.wantValid, result.Valid, result.Errors)
			}
			if tt.wantError != "" && !hasLine(result.Errors, tt.wantError) {
				t.Errorf("Expected an error containing %q, got %v", tt.wantError, result.Errors)
			}
		})
	}
}

func TestReachable(t *testing.T) {
	cfg := level([]string{
		"#####",
		"#.v.#",
		"#...#",
		"#####",
	})
	m, err := engine.BuildTileMap(cfg)
	if err != nil {
		t.Fatalf("BuildTileMap failed: %v", err)
	}

	reached := reachable(m, cell{1, 1})
	for _, c := range []cell{{1, 1}, {2, 1}, {3, 1}, {1, 2}, {2, 2}, {3, 2}} {
		if !reached[c] {
			t.Errorf("Expected (%d,%d) to be reachable", c.x, c.y)
		}
	}
	if reached[cell{0, 0}] {
		t.Error("Walls must not be reachable")
	}
}

func TestFileAndDir(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "b_tutorial.json", engine.DefaultLevelConfig())
	writeLevel(t, dir, "a_empty.json", level([]string{"....", "....", "...."}))
	if err := os.WriteFile(filepath.Join(dir, "c_broken.yaml"), []byte("name: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	results, err := Dir(dir)
	if err != nil {
		t.Fatalf("Dir failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	want := []struct {
		file  string
		valid bool
	}{
		{"a_empty.json", false},
		{"b_tutorial.json", true},
		{"c_broken.yaml", false},
	}
	for i, w := range want {
		if results[i].File != w.file || results[i].Valid != w.valid {
			t.Errorf("Result %d: expected %s valid=%v, got %s valid=%v", i, w.file, w.valid, results[i].File, results[i].Valid)
		}
	}

	missing := File(filepath.Join(dir, "missing.json"))
	if missing.Valid || !hasLine(missing.Errors, "Failed to read file") {
		t.Errorf("Expected a read error, got %+v", missing)
	}
}

func TestReport(t *testing.T) {
	var out strings.Builder
	ok := Report(&out, []Result{
		{File: "good.json", Valid: true, Info: []string{"✓ Name: good"}},
		{File: "bad.json", Errors: []string{"Unreachable: box crate at (5,1)"}},
	})

	if ok {
		t.Error("Report should fail when any level is invalid")
	}
	text := out.String()
	for _, want := range []string{"good.json", "✅ VALID", "✓ Name: good", "❌ INVALID", "❌ Unreachable", "Some levels have errors"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in report:\n%s", want, text)
		}
	}

	out.Reset()
	if !Report(&out, []Result{{File: "good.json", Valid: true}}) {
		t.Error("Report should pass when every level is valid")
	}
}

func TestDir_SampleLevels(t *testing.T) {
	results, err := Dir(filepath.Join("..", "levels"))
	if err != nil {
		t.Fatalf("Dir failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 sample levels, got %d", len(results))
	}
	for _, r := range results {
		if !r.Valid {
			t.Errorf("%s should be valid, got errors: %v", r.File, r.Errors)
		}
	}

	data, err := os.ReadFile(filepath.Join("..", "levels", "tutorial.json"))
	if err != nil {
		t.Fatalf("Failed to read tutorial: %v", err)
	}
	tutorial, err := engine.DecodeLevelConfig(data, "json")
	if err != nil {
		t.Fatalf("Failed to decode tutorial: %v", err)
	}
	if !reflect.DeepEqual(tutorial, engine.DefaultLevelConfig()) {
		t.Error("levels/tutorial.json drifted from the built-in default level")
	}
}
