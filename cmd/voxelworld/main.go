// Command voxelworld runs a headless voxel world: it streams chunks around a simulated
// player, persists edits to SQLite and can render a heightmap preview.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"voxelglobe/internal/config"
	"voxelglobe/internal/logging"
	"voxelglobe/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "voxelworld:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "voxelworld.yaml", "path to the YAML config")
		worldType  = flag.String("world-type", "", "override world type (flat, hills, spherical, improved)")
		seed       = flag.Int64("seed", 0, "override the world seed")
		ticks      = flag.Int("ticks", -1, "override the number of simulated ticks (0 runs until interrupted)")
		previewOut = flag.String("preview", "", "write a heightmap PNG to this path")
		dumpConfig = flag.Bool("dump-config", false, "write the effective config to -config and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *worldType != "" {
		t, err := world.ParseWorldType(*worldType)
		if err != nil {
			return err
		}
		cfg.World.Type = t
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.World.Generator.Seed = *seed
		case "ticks":
			cfg.Sim.Ticks = *ticks
		}
	})
	if *previewOut != "" {
		cfg.Preview.Path = *previewOut
	}
	cfg.Clamp()

	if *dumpConfig {
		return config.Write(*configPath, cfg)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	logging.SetDefault(logger)
	log := logging.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim, err := NewSim(cfg, log)
	if err != nil {
		return err
	}
	runErr := sim.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		log.Info("Interrupted")
		runErr = nil
	}
	if err := sim.Close(); err != nil {
		log.WithError(err).Error("Shutdown failed")
		runErr = errors.Join(runErr, err)
	}
	log.WithFields(logrus.Fields{"type": cfg.World.Type, "seed": cfg.World.Generator.Seed}).Info("Stopped")
	return runErr
}
