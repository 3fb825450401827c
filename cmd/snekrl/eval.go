package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brensch/snekrl/config"
	"github.com/brensch/snekrl/eval"
)

func newEvalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Play greedy episodes with a trained model and report scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := a.load(cmd, map[string]string{
				"eval.model":    "model",
				"eval.policy":   "policy",
				"eval.episodes": "episodes",
				"eval.seed":     "seed",
				"eval.workers":  "workers",
			})
			if err != nil {
				return err
			}

			cfg := a.cfg.Eval
			ag, _, err := a.loadAgent(cfg.Model, cfg.Policy)
			if err != nil {
				return err
			}
			ev, err := eval.New(eval.Config{
				Episodes: cfg.Episodes,
				Seed:     cfg.Seed,
				Workers:  cfg.Workers,
				Env:      a.cfg.Env,
			}, ag, a.logger)
			if err != nil {
				return err
			}
			report, err := ev.Run(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), report.Format())
			return err
		},
	}

	def := config.Default().Eval
	f := cmd.Flags()
	f.String("model", def.Model, "checkpoint to evaluate")
	f.String("policy", def.Policy, "rl|hybrid")
	f.Int("episodes", def.Episodes, "episodes to play")
	f.Int64("seed", def.Seed, "seed of episode 0; episode i uses seed+i")
	f.Int("workers", def.Workers, "parallel episode workers")
	return cmd
}
