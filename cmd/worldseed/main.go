// Command worldseed creates the world schema and inserts default content.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-worldstore/config"
	"github.com/goliatone/go-worldstore/pkg/di"
	"github.com/goliatone/go-worldstore/seed"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	seedPath := flag.String("seed", "", "YAML seed file; the built-in defaults when empty")
	schema := flag.Bool("schema", true, "create missing tables before seeding")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worldseed: %v\n", err)
		return 1
	}
	cfg.CreateSchema = *schema
	logger := cfg.Logger()
	slog.SetDefault(logger)

	defaults := seed.Builtin()
	if *seedPath != "" {
		if defaults, err = seed.LoadFile(*seedPath); err != nil {
			logger.Error("worldseed: load seed", "err", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := di.NewContainer(ctx, cfg, di.WithLogger(logger))
	if err != nil {
		logger.Error("worldseed: open store", "err", err)
		return 1
	}
	defer func() {
		if err := c.Close(context.Background()); err != nil {
			logger.Error("worldseed: close store", "err", err)
		}
	}()

	ok, err := c.Store().Initialized(ctx)
	if err != nil {
		logger.Error("worldseed: check schema", "err", err)
		return 1
	}
	if !ok {
		logger.Error("worldseed: schema missing; rerun with -schema")
		return 1
	}

	if err := seed.Apply(ctx, c.Store(), defaults); err != nil {
		logger.Error("worldseed: seed", "err", err)
		return 1
	}
	logger.Info("worldseed: done",
		"driver", cfg.Driver,
		"places", len(defaults.Places),
		"things", len(defaults.Things),
		"portals", len(defaults.Portals),
	)
	return 0
}
