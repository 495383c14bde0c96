package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/delaneyj/signalexpr/ecs"
	"github.com/delaneyj/signalexpr/signals"
	"github.com/urfave/cli/v3"
)

const (
	sceneKey    = "scene"
	stagingKey  = "staging"
	maxDepthKey = "max-depth"
	logLevelKey = "log-level"
	setKey      = "set"
	maxAgeKey   = "max-age"
	intervalKey = "interval"
)

func main() {
	cmd := &cli.Command{
		Name:  "sigconsole",
		Usage: "Load a scene and inspect its signals",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     sceneKey,
				Aliases:  []string{"s"},
				Usage:    "Scene file to load",
				Sources:  cli.EnvVars("SIGNALS_SCENE"),
				Required: true,
			},
			&cli.BoolFlag{
				Name:  stagingKey,
				Usage: "Load the scene into the staging signals instead of live",
			},
			&cli.IntFlag{
				Name:    maxDepthKey,
				Usage:   "Deepest chain of bindings to evaluate",
				Value:   signals.DefaultMaxDepth,
				Sources: cli.EnvVars("SIGNALS_MAX_DEPTH"),
			},
			&cli.StringFlag{
				Name:    logLevelKey,
				Usage:   "debug, info, warn or error",
				Value:   "warn",
				Sources: cli.EnvVars("SIGNALS_LOG_LEVEL"),
			},
			&cli.StringSliceFlag{
				Name:  setKey,
				Usage: "Assign signal=value or signal=expression before running",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "eval",
				Usage:     "Evaluate an expression in the scene's scope",
				ArgsUsage: "<expression>",
				Action: withConsole(func(ctx context.Context, cmd *cli.Command, c *console) error {
					if cmd.Args().Len() != 1 {
						return errors.New("eval takes exactly one expression")
					}
					_, err := c.eval(cmd.Args().First())
					return err
				}),
			},
			{
				Name:      "get",
				Usage:     "Print the value of signals",
				ArgsUsage: "<entity/signal>...",
				Action: withConsole(func(ctx context.Context, cmd *cli.Command, c *console) error {
					if cmd.Args().Len() == 0 {
						return errors.New("get needs at least one signal")
					}
					return c.get(cmd.Args().Slice()...)
				}),
			},
			{
				Name:      "list",
				Usage:     "List signals, optionally filtered by name",
				ArgsUsage: "[filter]",
				Action: withConsole(func(ctx context.Context, cmd *cli.Command, c *console) error {
					c.list(cmd.Args().First())
					return nil
				}),
			},
			{
				Name:  "nodes",
				Usage: "List the pooled expression nodes",
				Action: withConsole(func(ctx context.Context, cmd *cli.Command, c *console) error {
					c.nodes()
					return nil
				}),
			},
			{
				Name:  "graph",
				Usage: "Write the binding graph in Graphviz DOT format",
				Action: withConsole(func(ctx context.Context, cmd *cli.Command, c *console) error {
					c.graph()
					return nil
				}),
			},
			{
				Name:  "stats",
				Usage: "Print table sizes and engine metrics",
				Action: withConsole(func(ctx context.Context, cmd *cli.Command, c *console) error {
					return c.stats()
				}),
			},
			{
				Name:  "sweep",
				Usage: "Retire idle signals and drop unused nodes",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  maxAgeKey,
						Usage: "How long a signal must be unreferenced before it is retired",
					},
					&cli.DurationFlag{
						Name:  intervalKey,
						Usage: "Keep sweeping at this interval until interrupted",
					},
				},
				Action: withConsole(sweep),
			},
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func withConsole(fn func(ctx context.Context, cmd *cli.Command, c *console) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cmd.String(logLevelKey))); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		cfg := signals.DefaultConfig()
		cfg.MaxDepth = int(cmd.Int(maxDepthKey))
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		mode := ecs.Live
		if cmd.Bool(stagingKey) {
			mode = ecs.Staging
		}

		start := time.Now()
		c, err := openConsole(cmd.String(sceneKey), cfg, mode, os.Stdout)
		if err != nil {
			return err
		}
		defer c.Close()
		cfg.Logger.Debug("scene loaded",
			"scene", cmd.String(sceneKey),
			"mode", mode.String(),
			"took", time.Since(start),
		)

		if err := c.assign(cmd.StringSlice(setKey)); err != nil {
			return err
		}
		return fn(ctx, cmd, c)
	}
}

func sweep(ctx context.Context, cmd *cli.Command, c *console) error {
	maxAge := cmd.Duration(maxAgeKey)
	interval := cmd.Duration(intervalKey)
	if interval <= 0 {
		c.sweep(maxAge)
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	log.Printf("Sweeping every %v, press ctrl-c to stop", interval)
	return c.mgr.Sweep(ctx, interval, maxAge)
}
