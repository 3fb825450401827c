// Command snekrl trains, evaluates and watches the tabular Snake agent.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brensch/snekrl/agent"
	"github.com/brensch/snekrl/config"
	"github.com/brensch/snekrl/logging"
	"github.com/brensch/snekrl/store"
)

// app carries the resolved configuration into the subcommands.
type app struct {
	v       *viper.Viper
	cfgPath string
	cfg     config.Config
	logger  zerolog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:          "snekrl",
		Short:        "Tabular Q-learning Snake with a flood-fill safety layer",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "YAML config file")
	def := config.Default()
	root.PersistentFlags().String("log-level", def.Log.Level, "debug|info|warn|error")
	root.PersistentFlags().String("log-format", def.Log.Format, "console|json|pretty")
	root.PersistentFlags().Int("width", def.Env.Width, "grid width")
	root.PersistentFlags().Int("height", def.Env.Height, "grid height")
	for key, name := range map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
		"env.width":  "width",
		"env.height": "height",
	} {
		// Lookup cannot miss; the flags are declared above.
		_ = a.v.BindPFlag(key, root.PersistentFlags().Lookup(name))
	}

	root.AddCommand(
		newTrainCmd(a),
		newEvalCmd(a),
		newPlayCmd(a),
		newServeCmd(a),
		newDebugCmd(a),
		newConfigCmd(a),
	)
	return root
}

// load binds the command's own flags and resolves the configuration.
// Binding happens here rather than at construction so commands that share
// a key (play and serve) do not override each other.
func (a *app) load(cmd *cobra.Command, binds map[string]string) error {
	for key, name := range binds {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			return fmt.Errorf("flag %q is not defined on %s", name, cmd.Name())
		}
		if err := a.v.BindPFlag(key, f); err != nil {
			return err
		}
	}

	cfg, err := config.Load(a.v, a.cfgPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// loadAgent reads a checkpoint for play or evaluation.
func (a *app) loadAgent(model, policy string) (*agent.Agent, *store.Checkpoint, error) {
	mode, err := agent.ParseMode(policy)
	if err != nil {
		return nil, nil, err
	}
	cp, err := store.Load(model, store.LoadOptions{Width: a.cfg.Env.Width, Height: a.cfg.Env.Height})
	if err != nil {
		return nil, nil, fmt.Errorf("load model: %w", err)
	}
	a.logger.Info().
		Str("path", model).
		Str("run_id", cp.RunID).
		Int("episodes_trained", cp.EpisodesTrained).
		Int("states", cp.Table.Len()).
		Str("policy", mode.String()).
		Msg("model loaded")
	return agent.New(cp.Table, nil, mode), cp, nil
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd, nil); err != nil {
				return err
			}
			raw, err := config.Dump(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
}
