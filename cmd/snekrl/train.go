package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/brensch/snekrl/config"
	"github.com/brensch/snekrl/qtable"
	"github.com/brensch/snekrl/rules"
	"github.com/brensch/snekrl/store"
	"github.com/brensch/snekrl/trainer"
)

func newTrainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the Q-table and write a checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := a.load(cmd, map[string]string{
				"train.episodes":         "episodes",
				"train.alpha":            "alpha",
				"train.gamma":            "gamma",
				"train.epsilon_start":    "epsilon-start",
				"train.epsilon_end":      "epsilon-end",
				"train.schedule":         "schedule",
				"train.seed":             "seed",
				"train.log_every":        "log-every",
				"train.checkpoint_every": "checkpoint-every",
				"train.output":           "output",
				"train.episode_log_dir":  "episode-log-dir",
				"train.resume":           "resume",
				"train.fresh":            "fresh",
			})
			if err != nil {
				return err
			}
			return a.train(cmd.Context(), cmd)
		},
	}

	def := config.Default().Train
	f := cmd.Flags()
	f.Int("episodes", def.Episodes, "total episodes; resumed runs continue toward this total")
	f.Float64("alpha", def.Alpha, "learning rate")
	f.Float64("gamma", def.Gamma, "discount factor")
	f.Float64("epsilon-start", def.EpsilonStart, "initial exploration rate")
	f.Float64("epsilon-end", def.EpsilonEnd, "final exploration rate")
	f.String("schedule", string(def.Schedule), "epsilon schedule: linear|exponential")
	f.Int64("seed", def.Seed, "random seed")
	f.Int("log-every", def.LogEvery, "log progress every N episodes")
	f.Int("checkpoint-every", def.CheckpointEvery, "flush the checkpoint every N episodes (0 = only at the end)")
	f.String("output", def.CheckpointPath, "checkpoint path (.parquet or .json)")
	f.String("episode-log-dir", def.EpisodeLogDir, "directory for per-episode parquet logs")
	f.Bool("resume", false, "continue from the checkpoint at --output")
	f.Bool("fresh", false, "with --resume, start empty when the checkpoint does not exist")
	return cmd
}

func (a *app) train(ctx context.Context, cmd *cobra.Command) error {
	cfg := a.cfg
	env, err := rules.NewEnvironment(cfg.Env, rand.New(rand.NewSource(cfg.Train.Seed)))
	if err != nil {
		return err
	}

	table := qtable.New()
	opts := []trainer.Option{trainer.WithLogger(a.logger)}
	if cfg.Train.Resume {
		cp, err := store.Load(cfg.Train.CheckpointPath, store.LoadOptions{
			Width:  cfg.Env.Width,
			Height: cfg.Env.Height,
			Fresh:  cfg.Train.Fresh,
		})
		if err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		table = cp.Table
		opts = append(opts, trainer.WithResume(cp.Meta))
		a.logger.Info().
			Str("path", cfg.Train.CheckpointPath).
			Int("episodes_trained", cp.EpisodesTrained).
			Int("states", table.Len()).
			Msg("resuming")
	}

	t, err := trainer.New(cfg.Train.Config, env, table, opts...)
	if err != nil {
		return err
	}
	res, err := t.Run(ctx)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: episodes %d..%d  best %d  states %d  elapsed %s\n",
		res.RunID, res.StartEpisode, res.EpisodesTrained,
		res.Best, res.States, res.Elapsed.Round(time.Millisecond))
	if cfg.Train.CheckpointPath != "" {
		fmt.Fprintf(out, "checkpoint: %s\n", cfg.Train.CheckpointPath)
	}

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "interrupted; progress saved")
		return nil
	}
	return err
}
