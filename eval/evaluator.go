// Package eval plays a fixed table headlessly and summarizes the scores.
package eval

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/brensch/snekrl/agent"
	"github.com/brensch/snekrl/rules"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrInvalidConfig = errors.New("invalid eval config")

type Config struct {
	Episodes int   `mapstructure:"episodes" yaml:"episodes"`
	Seed     int64 `mapstructure:"seed" yaml:"seed"`
	// Workers play episodes in parallel. Results do not depend on it.
	Workers int          `mapstructure:"workers" yaml:"workers"`
	Env     rules.Config `mapstructure:"-" yaml:"-"`
}

func (c Config) Validate() error {
	if c.Episodes <= 0 {
		return fmt.Errorf("%w: episodes=%d must be positive", ErrInvalidConfig, c.Episodes)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers=%d must be at least 1", ErrInvalidConfig, c.Workers)
	}
	return c.Env.Validate()
}

// EpisodeResult is one finished evaluation episode.
type EpisodeResult struct {
	Index    int
	Score    int
	Steps    int
	Outcome  rules.Outcome
	Fallback int
}

// Report summarizes an evaluation run.
type Report struct {
	Policy     string
	Episodes   int
	Scores     []int
	Avg        float64
	StdDev     float64
	Best       int
	Min        int
	P50        int
	P90        int
	AvgSteps   float64
	Wins       int
	Collisions int
	Stuck      int
	Fallbacks  int
	Elapsed    time.Duration
}

// Evaluator runs episodes for one agent.
type Evaluator struct {
	cfg    Config
	agent  *agent.Agent
	logger zerolog.Logger
}

func New(cfg Config, ag *agent.Agent, logger zerolog.Logger) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ag == nil {
		return nil, fmt.Errorf("%w: agent is required", ErrInvalidConfig)
	}
	return &Evaluator{cfg: cfg, agent: ag, logger: logger}, nil
}

// Run plays every episode and builds the report. Episode i uses its own
// environment seeded with Seed+i.
func (e *Evaluator) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	workers := e.cfg.Workers
	if workers > e.cfg.Episodes {
		workers = e.cfg.Episodes
	}

	g, gctx := errgroup.WithContext(ctx)
	chans := make([]<-chan EpisodeResult, 0, workers)
	for w := 0; w < workers; w++ {
		ch := make(chan EpisodeResult)
		chans = append(chans, ch)
		g.Go(func() error {
			defer close(ch)
			for i := w; i < e.cfg.Episodes; i += workers {
				r, err := e.playEpisode(gctx, i)
				if err != nil {
					return err
				}
				select {
				case ch <- r:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	results := make([]EpisodeResult, 0, e.cfg.Episodes)
	for r := range channerics.Merge(gctx.Done(), chans...) {
		results = append(results, r)
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if len(results) != e.cfg.Episodes {
		return Report{}, fmt.Errorf("evaluation stopped after %d of %d episodes: %w", len(results), e.cfg.Episodes, ctx.Err())
	}

	rep := Summarize(e.agent.Mode().String(), results)
	rep.Elapsed = time.Since(start)
	e.logger.Info().
		Str("policy", rep.Policy).
		Int("episodes", rep.Episodes).
		Float64("avg", rep.Avg).
		Int("best", rep.Best).
		Int("min", rep.Min).
		Int("p50", rep.P50).
		Int("p90", rep.P90).
		Int("wins", rep.Wins).
		Dur("elapsed", rep.Elapsed).
		Msg("evaluation finished")
	return rep, nil
}

func (e *Evaluator) playEpisode(ctx context.Context, index int) (EpisodeResult, error) {
	env, err := rules.NewEnvironment(e.cfg.Env, rand.New(rand.NewSource(e.cfg.Seed+int64(index))))
	if err != nil {
		return EpisodeResult{}, err
	}
	return playOut(ctx, e.agent, env, index, nil)
}

// playOut runs env to the end under ag, handing each step to onStep when
// it is set.
func playOut(ctx context.Context, ag *agent.Agent, env *rules.Environment, index int, onStep func(Step)) (EpisodeResult, error) {
	r := EpisodeResult{Index: index}
	state := env.State()
	for !env.Done() {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		board := env.Board()
		d := ag.Decide(board, state)
		if d.Fallback {
			r.Fallback++
		}
		res, err := env.Step(d.Action)
		if err != nil {
			return r, fmt.Errorf("episode %d: %w", index, err)
		}
		if onStep != nil {
			onStep(Step{Index: res.Steps - 1, Board: board, State: state, Decision: d, Result: res})
		}
		state = res.State
		r.Score, r.Steps, r.Outcome = res.Score, res.Steps, res.Outcome
	}
	return r, nil
}

// Summarize builds a report from finished episodes in any order.
// Percentiles index the sorted scores at n/2 and int(0.9n).
func Summarize(policy string, results []EpisodeResult) Report {
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	rep := Report{Policy: policy, Episodes: len(results)}
	if len(results) == 0 {
		return rep
	}

	scores := make([]float64, len(results))
	steps := make([]float64, len(results))
	rep.Scores = make([]int, len(results))
	for i, r := range results {
		rep.Scores[i] = r.Score
		scores[i] = float64(r.Score)
		steps[i] = float64(r.Steps)
		rep.Fallbacks += r.Fallback
		switch r.Outcome {
		case rules.Win:
			rep.Wins++
		case rules.Collision:
			rep.Collisions++
		case rules.Stuck, rules.StepCap:
			rep.Stuck++
		}
	}

	if len(scores) > 1 {
		rep.Avg, rep.StdDev = stat.MeanStdDev(scores, nil)
	} else {
		rep.Avg = scores[0]
	}
	rep.AvgSteps = stat.Mean(steps, nil)
	rep.Best = int(floats.Max(scores))
	rep.Min = int(floats.Min(scores))

	sorted := append([]int(nil), rep.Scores...)
	sort.Ints(sorted)
	n := len(sorted)
	rep.P50 = sorted[n/2]
	rep.P90 = sorted[min(int(float64(n)*0.9), n-1)]
	return rep
}

// Format renders the report as key=value lines.
func (r Report) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "episodes=%d\n", r.Episodes)
	fmt.Fprintf(&sb, "policy=%s\n", r.Policy)
	fmt.Fprintf(&sb, "avg_score=%.3f\n", r.Avg)
	fmt.Fprintf(&sb, "stddev_score=%.3f\n", r.StdDev)
	fmt.Fprintf(&sb, "best_score=%d\n", r.Best)
	fmt.Fprintf(&sb, "min_score=%d\n", r.Min)
	fmt.Fprintf(&sb, "p50_score=%d\n", r.P50)
	fmt.Fprintf(&sb, "p90_score=%d\n", r.P90)
	fmt.Fprintf(&sb, "avg_steps=%.1f\n", r.AvgSteps)
	fmt.Fprintf(&sb, "wins=%d collisions=%d stuck=%d fallbacks=%d\n", r.Wins, r.Collisions, r.Stuck, r.Fallbacks)
	return sb.String()
}
