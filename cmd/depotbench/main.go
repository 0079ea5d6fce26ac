// Profiling:
// go build ./cmd/depotbench
// ./depotbench --profile mem --entities 100000
// go tool pprof -http=":8000" -nodefraction=0.001 ./depotbench mem.pprof

package main

import (
	"context"
	"os"
	"time"

	"github.com/TheBitDrifter/depot"
	"github.com/TheBitDrifter/table"
	"github.com/pkg/profile"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type position struct {
	X, Y float64
}

type velocity struct {
	X, Y float64
}

type body struct {
	depot.Bundle
	Pos position
	Vel velocity
}

var (
	positionC = depot.FactoryNewComponent[position]()
	velocityC = depot.FactoryNewComponent[velocity]()
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	depot.Config.SetLogger(logger)

	if err := newRootCmd(&logger).Execute(); err != nil {
		logger.Error().Err(err).Msg("depotbench failed")
		os.Exit(1)
	}
}

func newRootCmd(logger *zerolog.Logger) *cobra.Command {
	var (
		mode       string
		entities   int
		rounds     int
		iters      int
		configPath string
	)
	cmd := &cobra.Command{
		Use:   "depotbench",
		Short: "Spawn, iterate and despawn entities under a profiler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := depot.DefaultStoreConfig()
			if configPath != "" {
				f, err := os.Open(configPath)
				if err != nil {
					return eris.Wrap(err, "failed to open store config")
				}
				defer f.Close()
				if cfg, err = depot.LoadStoreConfig(f); err != nil {
					return err
				}
			}
			cfg, err := cfg.WithEnv()
			if err != nil {
				return err
			}

			switch mode {
			case "cpu":
				defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
			case "mem":
				defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
			case "none":
			default:
				return eris.Errorf("unknown profile mode %q", mode)
			}

			start := time.Now()
			for round := range rounds {
				if err := run(cmd.Context(), cfg, entities, iters); err != nil {
					return eris.Wrapf(err, "round %d", round)
				}
			}
			logger.Info().
				Int("rounds", rounds).
				Int("entities", entities).
				Int("iterations", iters).
				Dur("elapsed", time.Since(start)).
				Msg("done")
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "profile", "cpu", "profile to record: cpu, mem or none")
	cmd.Flags().IntVar(&entities, "entities", 10_000, "entities spawned per iteration")
	cmd.Flags().IntVar(&rounds, "rounds", 10, "fresh stores to run")
	cmd.Flags().IntVar(&iters, "iters", 100, "spawn/update/despawn cycles per store")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML store config, DEPOT_* environment variables override it")
	return cmd
}

func run(ctx context.Context, cfg depot.StoreConfig, numEntities, iters int) error {
	store := depot.Factory.NewStore(table.Factory.NewSchema(), cfg)
	bodies := make([]body, numEntities)
	for i := range bodies {
		bodies[i].Vel = velocity{X: 1, Y: float64(i % 7)}
	}
	query := depot.Factory.NewQuery()
	moving := query.And(positionC, velocityC)

	for range iters {
		spawned, err := depot.SpawnAll(store, bodies)
		if err != nil {
			return err
		}
		err = depot.ParEach(ctx, moving, store, 0, func(ref depot.EntityRef) error {
			pos, _ := depot.Get[position](ref)
			vel, _ := depot.Get[velocity](ref)
			pos.X += vel.X
			pos.Y += vel.Y
			return nil
		})
		if err != nil {
			return err
		}
		for _, e := range spawned {
			if err := store.Despawn(e); err != nil {
				return err
			}
		}
	}
	return nil
}
