// Command solver finds the shortest input sequence that brings the player or
// a map object to a tile, and can play it on a running server.
//
//	solver --level tutorial --goal 1@5,3
//	solver --level tutorial --goal 10,7 --skill --play http://localhost:8080
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/puzzlemap/game/config"
	"github.com/wricardo/puzzlemap/solver"
)

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "solver",
		Usage:  "search for the shortest input sequence reaching a goal",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "levels", Value: "levels", Usage: "directory holding level files", Sources: cli.EnvVars("LEVELS_DIR")},
			&cli.StringFlag{Name: "level", Value: config.DefaultLevelID, Usage: "level id"},
			&cli.StringFlag{Name: "goal", Required: true, Usage: "x,y for the player or id@x,y for an event"},
			&cli.IntFlag{Name: "max-depth", Value: solver.DefaultMaxDepth, Usage: "longest sequence to try"},
			&cli.IntFlag{Name: "max-nodes", Value: solver.DefaultMaxNodes, Usage: "states to explore before giving up"},
			&cli.BoolFlag{Name: "skill", Usage: "also try AMPS_SKILL_MOVE steps"},
			&cli.StringFlag{Name: "play", Usage: "base URL of a server to play the solution on"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := zap.NewNop()
			if cmd.Bool("debug") {
				var err error
				if logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
			}

			goal, err := solver.ParseGoal(cmd.String("goal"))
			if err != nil {
				return err
			}
			manager, err := config.NewManager(cmd.String("levels"), logger)
			if err != nil {
				return err
			}
			level, err := manager.LoadConfig(cmd.String("level"))
			if err != nil {
				return err
			}

			sol, err := solver.Solve(ctx, level, goal, solver.Options{
				MaxDepth: cmd.Int("max-depth"),
				MaxNodes: cmd.Int("max-nodes"),
				Skill:    cmd.Bool("skill"),
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			steps := make([]string, len(sol.Steps))
			for i, s := range sol.Steps {
				steps[i] = s.String()
			}
			fmt.Fprintf(out, "Goal: %s\n", goal)
			fmt.Fprintf(out, "Solved in %d steps (%d states explored)\n", len(sol.Steps), sol.Explored)
			fmt.Fprintf(out, "Steps: %s\n", strings.Join(steps, " "))
			if moves, ok := solver.Moves(sol.Steps); ok && len(moves) > 0 {
				fmt.Fprintf(out, "Bulk move: [\"%s\"]\n", strings.Join(moves, "\",\""))
			}

			url := cmd.String("play")
			if url == "" {
				return nil
			}
			client := NewClient(url)
			info, err := client.CreateSession(ctx, cmd.String("level"))
			if err != nil {
				return err
			}
			state, err := client.Play(ctx, sol.Steps)
			if err != nil {
				return err
			}
			if state == nil {
				state = info.GameState
			}
			fmt.Fprintf(out, "Played on session %s: player at (%g,%g)\n", info.ID, state.Player.X, state.Player.Y)
			return nil
		},
	}
}
