package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brensch/snekrl/config"
	"github.com/brensch/snekrl/presenter"
)

var playBinds = map[string]string{
	"play.model":    "model",
	"play.policy":   "policy",
	"play.speed_ms": "speed-ms",
	"play.seed":     "seed",
}

func addPlayFlags(cmd *cobra.Command) {
	def := config.Default().Play
	f := cmd.Flags()
	f.String("model", def.Model, "checkpoint to play")
	f.String("policy", def.Policy, "rl|hybrid")
	f.Int("speed-ms", def.SpeedMS, "milliseconds per tick")
	f.Int64("seed", def.Seed, "food placement seed")
}

func (a *app) newSession() (*presenter.Session, error) {
	cfg := a.cfg.Play
	ag, _, err := a.loadAgent(cfg.Model, cfg.Policy)
	if err != nil {
		return nil, err
	}
	return presenter.NewSession(presenter.Options{
		Env:   a.cfg.Env,
		Seed:  cfg.Seed,
		Speed: cfg.Speed(),
	}, ag)
}

func newPlayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Watch the agent play in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd, playBinds); err != nil {
				return err
			}
			session, err := a.newSession()
			if err != nil {
				return err
			}
			return runTUI(cmd.Context(), session)
		},
	}
	addPlayFlags(cmd)
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Stream frames over HTTP and websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			binds := map[string]string{"play.addr": "addr"}
			for k, v := range playBinds {
				binds[k] = v
			}
			if err := a.load(cmd, binds); err != nil {
				return err
			}
			session, err := a.newSession()
			if err != nil {
				return err
			}
			srv := presenter.NewServer(a.cfg.Play.Addr, session, a.logger)
			fmt.Fprintf(cmd.OutOrStdout(), "serving on %s (GET /frame, POST /control/{name}, GET /ws)\n", a.cfg.Play.Addr)
			return srv.Run(cmd.Context())
		},
	}
	addPlayFlags(cmd)
	cmd.Flags().String("addr", config.Default().Play.Addr, "listen address")
	return cmd
}
