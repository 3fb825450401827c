package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brensch/snekrl/config"
	"github.com/brensch/snekrl/eval"
	"github.com/brensch/snekrl/presenter"
	"github.com/brensch/snekrl/store"
)

func newDebugCmd(a *app) *cobra.Command {
	var (
		outDir string
		quiet  bool
	)
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Trace one seeded episode turn by turn",
		Long: "Plays the episode eval would play first for the given seed and prints the board,\n" +
			"Q-values and planner verdicts before every move. With --out-dir the trace is\n" +
			"also written as parquet.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := a.load(cmd, map[string]string{
				"eval.model":  "model",
				"eval.policy": "policy",
				"eval.seed":   "seed",
			})
			if err != nil {
				return err
			}

			cfg := a.cfg.Eval
			ag, cp, err := a.loadAgent(cfg.Model, cfg.Policy)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			onStep := func(s eval.Step) {
				if !quiet {
					printStep(out, s)
				}
			}
			rows, res, err := eval.Trace(cmd.Context(), ag, a.cfg.Env, cfg.Seed, onStep)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "episode over: %s after %d steps, score %d, %d fallbacks\n",
				res.Outcome, res.Steps, res.Score, res.Fallback)

			if outDir == "" {
				return nil
			}
			runID := cp.RunID
			if runID == "" {
				runID = "untracked"
			}
			path, err := store.WriteTrace(outDir, runID, rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "trace written to %s\n", path)
			return nil
		},
	}

	def := config.Default().Eval
	f := cmd.Flags()
	f.String("model", def.Model, "checkpoint to trace")
	f.String("policy", def.Policy, "rl|hybrid")
	f.Int64("seed", def.Seed, "episode seed")
	f.StringVar(&outDir, "out-dir", "", "write the trace as parquet into this directory")
	f.BoolVar(&quiet, "quiet", false, "only print the summary")
	return cmd
}

func printStep(w io.Writer, s eval.Step) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n=== step %d  heading %s  len %d  state %s ===\n",
		s.Index, s.Board.Heading, len(s.Board.Snake), s.State.Key())
	for _, row := range presenter.BoardRows(s.Board) {
		sb.WriteString(strings.Join(strings.Split(row, ""), " "))
		sb.WriteByte('\n')
	}
	d := s.Decision
	for i, a := range d.Ranked {
		fmt.Fprintf(&sb, "  %d. %-8s q=%8.3f", i+1, a, d.Values[a])
		if len(d.Assessments) > int(a) {
			as := d.Assessments[a]
			fmt.Fprintf(&sb, "  legal=%-5t reach=%3d safe=%t", as.Legal, as.Reachable, as.Safe)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  -> %s", d.Action)
	if d.Fallback {
		sb.WriteString(" (fallback)")
	}
	fmt.Fprintf(&sb, "  reward %.2f  score %d  %s\n", s.Result.Reward, s.Result.Score, s.Result.Outcome)
	_, _ = io.WriteString(w, sb.String())
}
