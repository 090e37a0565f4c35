// Package validate checks level files before they are served. Beyond the
// schema and structural checks done when a level is decoded, it verifies:
//   - every map object can be reached from the player start, walking over
//     passable tiles and jumping one-tile grooves
//   - crates do not start on a tile they could never leave
//   - at least one map object exists
package validate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wricardo/puzzlemap/game/engine"
)

// Result captures the outcome of validating a single file. Info holds
// summary lines for valid files; Errors lists what made a file invalid.
type Result struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
	Info   []string `json:"info,omitempty"`
}

func (r *Result) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// File loads and validates one level file.
func File(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		r := Result{File: filepath.Base(path)}
		r.fail("Failed to read file: %v", err)
		return r
	}

	level, err := engine.DecodeLevelConfig(data, engine.FormatForPath(path))
	if err != nil {
		r := Result{File: filepath.Base(path)}
		r.fail("%v", err)
		return r
	}
	return Level(filepath.Base(path), level)
}

// Dir validates every level file in dir, sorted by name.
func Dir(dir string) ([]Result, error) {
	var files []string
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	results := make([]Result, 0, len(files))
	for _, file := range files {
		results = append(results, File(file))
	}
	return results, nil
}

type cell struct{ x, y int }

// Level runs the semantic checks on an already decoded level.
func Level(name string, level *engine.LevelConfig) Result {
	result := Result{File: name, Valid: true}

	if err := engine.ValidateLevelConfig(level); err != nil {
		result.fail("%v", err)
		return result
	}
	world, err := engine.InitWorldFromConfig(level, zap.NewNop())
	if err != nil {
		result.fail("Failed to build level: %v", err)
		return result
	}

	m := world.Map()
	player := world.Player()
	reached := reachable(m, cell{int(player.X()), int(player.Y())})

	counts := map[engine.ObjectType]int{}
	for _, c := range world.Characters() {
		if c.ID() == engine.PlayerID || !c.IsMapObject() {
			continue
		}
		obj := c.Object()
		counts[obj.Type]++
		at := cell{int(c.X()), int(c.Y())}
		label := c.Name()
		if label == "" {
			label = fmt.Sprintf("event %d", c.ID())
		}

		if !touches(reached, at) {
			result.fail("Unreachable: %s %s at (%d,%d)", obj.Type, label, at.x, at.y)
		}
		if obj.Type == engine.ObjectBox && m.IsWall(at.x, at.y) && !world.IsGuide(at.x, at.y) {
			result.fail("Crate %s starts inside an impassable tile at (%d,%d)", label, at.x, at.y)
		}
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		result.fail("Level has no map objects")
	}

	if result.Valid {
		result.Info = append(result.Info,
			fmt.Sprintf("✓ Name: %s", level.Name),
			fmt.Sprintf("✓ Map: %dx%d", m.Width(), m.Height()),
			fmt.Sprintf("✓ Player start: (%g,%g)", player.X(), player.Y()),
			fmt.Sprintf("✓ Objects: %d crates, %d platforms, %d other", counts[engine.ObjectBox], counts[engine.ObjectPlatform], counts[engine.ObjectPlain]),
			fmt.Sprintf("✓ Reachable tiles: %d", len(reached)),
		)
	}
	return result
}

// touches reports whether at or one of its neighbours was reached.
func touches(reached map[cell]bool, at cell) bool {
	if reached[at] {
		return true
	}
	for _, d := range engine.Directions {
		if reached[cell{at.x + int(d.DX()), at.y + int(d.DY())}] {
			return true
		}
	}
	return false
}

func inMap(m engine.Map, c cell) bool {
	return c.x >= 0 && c.y >= 0 && c.x < m.Width() && c.y < m.Height()
}

// canStep mirrors tile passage: leave from in direction d and enter to from
// the opposite side.
func canStep(m engine.Map, from, to cell, d engine.Direction) bool {
	return inMap(m, to) && m.IsPassable(from.x, from.y, d) && m.IsPassable(to.x, to.y, d.Reverse())
}

// reachable flood-fills from start over walkable tiles. A groove is crossed
// when the tile beyond it can be entered.
func reachable(m engine.Map, start cell) map[cell]bool {
	visited := map[cell]bool{start: true}
	queue := []cell{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, d := range engine.Directions {
			dx, dy := int(d.DX()), int(d.DY())
			next := cell{cur.x + dx, cur.y + dy}

			if inMap(m, next) && m.IsGroove(next.x, next.y) {
				beyond := cell{next.x + dx, next.y + dy}
				if inMap(m, beyond) && !m.IsGroove(beyond.x, beyond.y) && m.IsPassable(beyond.x, beyond.y, d.Reverse()) {
					next = beyond
				} else {
					continue
				}
			} else if !canStep(m, cur, next, d) {
				continue
			}

			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}

// Report writes results in the human readable form used by the CLI and
// reports whether all of them are valid.
func Report(out io.Writer, results []Result) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(out, "\n%s %s\n", strings.Repeat("=", 20), result.File)
		if result.Valid {
			fmt.Fprintln(out, "✅ VALID")
			for _, info := range result.Info {
				fmt.Fprintln(out, "  "+info)
			}
			continue
		}
		allValid = false
		fmt.Fprintln(out, "❌ INVALID")
		for _, err := range result.Errors {
			fmt.Fprintln(out, "  ❌ "+err)
		}
	}

	fmt.Fprintf(out, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(out, "✅ All levels are valid!")
	} else {
		fmt.Fprintln(out, "❌ Some levels have errors")
	}
	return allValid
}
