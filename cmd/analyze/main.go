// Command analyze prints quick, human-readable facts about level files and
// recorded journals. For a level it summarizes dimensions, tile kinds, map
// objects by type and the reachability check from package validate. For a
// journal it replays the entries over the level they were recorded on and
// prints where everything ended up.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/puzzlemap/game/config"
	"github.com/wricardo/puzzlemap/game/engine"
	"github.com/wricardo/puzzlemap/game/replay"
	"github.com/wricardo/puzzlemap/validate"
)

// LevelAnalysis holds the numbers printed for one level.
type LevelAnalysis struct {
	File    string
	Name    string
	Width   int
	Height  int
	Blocked int
	Grooves int
	Guides  int
	Ledges  int
	Objects map[engine.ObjectType]int
	Check   validate.Result
}

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "summarize level files and replay journals",
		ArgsUsage: "[level files...]",
		Writer:    out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "levels",
				Value:   "levels",
				Usage:   "directory holding level files",
				Sources: cli.EnvVars("LEVELS_DIR"),
			},
			&cli.StringFlag{
				Name:  "journal",
				Usage: "replay a journal file instead of analyzing levels",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if path := cmd.String("journal"); path != "" {
				manager, err := config.NewManager(cmd.String("levels"), zap.NewNop())
				if err != nil {
					return err
				}
				return analyzeJournal(out, manager, path)
			}

			files := cmd.Args().Slice()
			if len(files) == 0 {
				var err error
				files, err = levelFiles(cmd.String("levels"))
				if err != nil {
					return err
				}
			}
			if len(files) == 0 {
				return fmt.Errorf("no level files found")
			}

			for _, file := range files {
				fmt.Fprintf(out, "\n=== Analyzing %s ===\n", filepath.Base(file))
				a, err := analyzeFile(file)
				if err != nil {
					fmt.Fprintf(out, "Error: %v\n", err)
					continue
				}
				printLevel(out, a)
			}
			return nil
		},
	}
}

func levelFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func analyzeFile(path string) (*LevelAnalysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	level, err := engine.DecodeLevelConfig(data, engine.FormatForPath(path))
	if err != nil {
		return nil, err
	}
	return analyzeLevel(filepath.Base(path), level)
}

func analyzeLevel(file string, level *engine.LevelConfig) (*LevelAnalysis, error) {
	m, err := engine.BuildTileMap(level)
	if err != nil {
		return nil, err
	}
	world, err := engine.InitWorldFromConfig(level, zap.NewNop())
	if err != nil {
		return nil, err
	}
	guide := level.EffectiveSettings().GuideTerrainTag

	return &LevelAnalysis{
		File:   file,
		Name:   level.Name,
		Width:  m.Width(),
		Height: m.Height(),
		Blocked: engine.CountTiles(m, func(t engine.Tile) bool {
			return t.Block&engine.BlockAll == engine.BlockAll && !t.Groove
		}),
		Grooves: engine.CountTiles(m, func(t engine.Tile) bool { return t.Groove }),
		Guides:  engine.CountTiles(m, func(t engine.Tile) bool { return t.Terrain == guide }),
		Ledges: engine.CountTiles(m, func(t engine.Tile) bool {
			return t.Block != 0 && t.Block&engine.BlockAll != engine.BlockAll
		}),
		Objects: engine.CountMapObjects(world),
		Check:   validate.Level(file, level),
	}, nil
}

func printLevel(out io.Writer, a *LevelAnalysis) {
	fmt.Fprintf(out, "Name: %s\n", a.Name)
	fmt.Fprintf(out, "Map Size: %d x %d\n", a.Width, a.Height)
	fmt.Fprintf(out, "Blocked tiles: %d\n", a.Blocked)
	fmt.Fprintf(out, "Grooves: %d\n", a.Grooves)
	fmt.Fprintf(out, "Guide tiles: %d\n", a.Guides)
	fmt.Fprintf(out, "One-way ledges: %d\n", a.Ledges)
	fmt.Fprintf(out, "Crates: %d, Platforms: %d, Other objects: %d\n",
		a.Objects[engine.ObjectBox], a.Objects[engine.ObjectPlatform], a.Objects[engine.ObjectPlain])

	if a.Check.Valid {
		fmt.Fprintln(out, "All map objects reachable from the player start")
		return
	}
	fmt.Fprintln(out, "Problems:")
	for _, e := range a.Check.Errors {
		fmt.Fprintf(out, "  - %s\n", e)
	}
}

func analyzeJournal(out io.Writer, manager *config.Manager, path string) error {
	header, entries, err := replay.ReadFile(path)
	if err != nil {
		return err
	}
	level, err := manager.LoadConfig(header.Level)
	if err != nil {
		return err
	}
	e, err := replay.Apply(level, entries, zap.NewNop())
	if err != nil {
		return fmt.Errorf("replay %s: %w", filepath.Base(path), err)
	}

	kinds := map[string]int{}
	for _, entry := range entries {
		kinds[entry.Kind]++
	}

	state := e.GetState()
	fmt.Fprintf(out, "\n=== Replaying %s ===\n", filepath.Base(path))
	fmt.Fprintf(out, "Level: %s\n", header.Level)
	fmt.Fprintf(out, "Entries: %d (moves %d, ticks %d, commands %d, pages %d)\n", len(entries),
		kinds[engine.JournalMove], kinds[engine.JournalTick], kinds[engine.JournalCommand], kinds[engine.JournalPage])
	fmt.Fprintf(out, "Final frame: %d\n", state.Frame)
	fmt.Fprintf(out, "Total moves: %d\n", state.TotalMoves)
	fmt.Fprintf(out, "Player: (%g,%g) facing %s\n", state.Player.X, state.Player.Y, state.Player.Direction)
	for _, c := range state.Characters {
		if c.ID == engine.PlayerID {
			continue
		}
		fmt.Fprintf(out, "Event %d %s: (%g,%g) page %d\n", c.ID, c.Name, c.X, c.Y, c.Page)
	}
	return nil
}
