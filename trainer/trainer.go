// Package trainer runs tabular Q-learning episodes against the Snake
// environment.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/brensch/snekrl/game"
	"github.com/brensch/snekrl/qtable"
	"github.com/brensch/snekrl/rules"
	"github.com/brensch/snekrl/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Progress is reported after every finished episode.
type Progress struct {
	Episode int
	Epsilon float64
	Score   int
	Steps   int
	Reward  float64
	Outcome rules.Outcome
	Best    int
	States  int
}

// ProgressFunc observes training. It runs on the training goroutine.
type ProgressFunc func(context.Context, Progress)

// EpisodeStats summarizes one episode.
type EpisodeStats struct {
	Score   int
	Steps   int
	Reward  float64
	Outcome rules.Outcome
}

// Result summarizes a Run.
type Result struct {
	RunID           string
	StartEpisode    int
	EpisodesTrained int
	Scores          []int
	Best            int
	States          int
	Interrupted     bool
	Elapsed         time.Duration
}

type Option func(*Trainer)

func WithLogger(l zerolog.Logger) Option {
	return func(t *Trainer) { t.logger = l }
}

func WithProgress(fn ProgressFunc) Option {
	return func(t *Trainer) { t.progress = fn }
}

// WithResume continues from a loaded checkpoint's progress. The table
// itself is passed to New.
func WithResume(meta store.Meta) Option {
	return func(t *Trainer) {
		t.completed = meta.EpisodesTrained
		if meta.RunID != "" {
			t.runID = meta.RunID
		}
	}
}

// Trainer owns the only writable reference to its table while running.
type Trainer struct {
	cfg      Config
	env      *rules.Environment
	table    *qtable.Table
	rng      *rand.Rand
	logger   zerolog.Logger
	progress ProgressFunc

	runID     string
	completed int
	best      int
}

func New(cfg Config, env *rules.Environment, table *qtable.Table, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if env == nil || table == nil {
		return nil, fmt.Errorf("%w: environment and table are required", ErrInvalidConfig)
	}
	if cfg.Schedule == "" {
		cfg.Schedule = Linear
	}
	t := &Trainer{
		cfg:    cfg,
		env:    env,
		table:  table,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: zerolog.Nop(),
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Trainer) Table() *qtable.Table { return t.table }
func (t *Trainer) Completed() int       { return t.completed }
func (t *Trainer) RunID() string        { return t.runID }

// ChooseAction is epsilon-greedy over the table. With epsilon 0 it never
// draws from the random source.
func (t *Trainer) ChooseAction(key string, epsilon float64) game.Action {
	if epsilon > 0 && t.rng.Float64() < epsilon {
		return game.Action(t.rng.Intn(game.NumActions))
	}
	return t.table.Best(key)
}

// target is the TD target for one transition.
func target(table *qtable.Table, res rules.StepResult, gamma float64) float64 {
	if res.Done {
		return res.Reward
	}
	return res.Reward + gamma*table.Max(res.State.Key())
}

// RunEpisode plays one episode from a fresh reset, updating the table
// after every step. Cancellation is checked between steps. An episode that
// does not finish leaves the table as it was before the episode started.
func (t *Trainer) RunEpisode(ctx context.Context, epsilon float64) (EpisodeStats, error) {
	var stats EpisodeStats
	// undo holds the pre-episode vector of every key touched; nil means the
	// key was absent.
	undo := make(map[string]*qtable.Values)
	rollback := func() {
		for key, prev := range undo {
			if prev == nil {
				t.table.Delete(key)
			} else {
				t.table.Set(key, *prev)
			}
		}
	}

	state := t.env.Reset()
	for {
		if err := ctx.Err(); err != nil {
			rollback()
			return stats, err
		}
		key := state.Key()
		a := t.ChooseAction(key, epsilon)
		res, err := t.env.Step(a)
		if err != nil {
			rollback()
			return stats, fmt.Errorf("step %d: %w", stats.Steps, err)
		}
		if _, seen := undo[key]; !seen {
			if t.table.Has(key) {
				prev := t.table.Get(key)
				undo[key] = &prev
			} else {
				undo[key] = nil
			}
		}
		t.table.Update(key, a, target(t.table, res, t.cfg.Gamma), t.cfg.Alpha)

		stats.Reward += res.Reward
		stats.Score = res.Score
		stats.Steps = res.Steps
		stats.Outcome = res.Outcome
		state = res.State
		if res.Done {
			return stats, nil
		}
	}
}

// Run trains until the configured episode total is reached or ctx is
// cancelled. The checkpoint, when configured, is flushed before return in
// both cases. A cancelled run returns the context error with the result;
// the interrupted episode's updates are discarded, so the flushed table
// matches EpisodesTrained.
func (t *Trainer) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{RunID: t.runID, StartEpisode: t.completed}

	var epLog *store.EpisodeLog
	if t.cfg.EpisodeLogDir != "" {
		l, err := store.NewEpisodeLog(t.cfg.EpisodeLogDir, t.runID)
		if err != nil {
			return res, err
		}
		epLog = l
	}

	t.logger.Info().
		Str("run_id", t.runID).
		Int("from_episode", t.completed).
		Int("episodes", t.cfg.Episodes).
		Float64("alpha", t.cfg.Alpha).
		Float64("gamma", t.cfg.Gamma).
		Str("schedule", string(t.cfg.Schedule)).
		Msg("training started")

	var runErr error
	for t.completed < t.cfg.Episodes {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		eps := t.cfg.Epsilon(t.completed)
		stats, err := t.RunEpisode(ctx, eps)
		if err != nil {
			runErr = err
			break
		}
		t.completed++
		if stats.Score > t.best {
			t.best = stats.Score
		}
		res.Scores = append(res.Scores, stats.Score)

		if epLog != nil {
			if err := epLog.Write(store.EpisodeRow{
				RunID:   t.runID,
				Episode: int64(t.completed),
				Score:   int32(stats.Score),
				Steps:   int32(stats.Steps),
				Reward:  stats.Reward,
				Epsilon: eps,
				Outcome: stats.Outcome.String(),
				States:  int64(t.table.Len()),
			}); err != nil {
				runErr = err
				break
			}
		}

		if t.cfg.LogEvery > 0 && (t.completed%t.cfg.LogEvery == 0 || len(res.Scores) == 1) {
			t.logEpisode(res.Scores, eps)
		}
		if t.progress != nil {
			t.progress(ctx, Progress{
				Episode: t.completed,
				Epsilon: eps,
				Score:   stats.Score,
				Steps:   stats.Steps,
				Reward:  stats.Reward,
				Outcome: stats.Outcome,
				Best:    t.best,
				States:  t.table.Len(),
			})
		}
		if t.cfg.CheckpointEvery > 0 && t.completed%t.cfg.CheckpointEvery == 0 {
			if err := t.Flush(); err != nil {
				runErr = err
				break
			}
		}
	}

	res.EpisodesTrained = t.completed
	res.Best = t.best
	res.States = t.table.Len()
	res.Interrupted = errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	res.Elapsed = time.Since(start)

	if err := t.Flush(); err != nil {
		return res, errors.Join(runErr, err)
	}
	if epLog != nil {
		if path, n, err := epLog.Finalize(); err != nil {
			return res, errors.Join(runErr, err)
		} else if n > 0 {
			t.logger.Info().Str("path", path).Int("rows", n).Msg("episode log written")
		}
	}

	t.logger.Info().
		Int("episodes_trained", res.EpisodesTrained).
		Int("best", res.Best).
		Int("states", res.States).
		Bool("interrupted", res.Interrupted).
		Dur("elapsed", res.Elapsed).
		Msg("training finished")
	return res, runErr
}

func (t *Trainer) logEpisode(scores []int, eps float64) {
	window := scores
	if t.cfg.LogEvery > 0 && len(window) > t.cfg.LogEvery {
		window = window[len(window)-t.cfg.LogEvery:]
	}
	sum := 0
	for _, s := range window {
		sum += s
	}
	t.logger.Info().
		Int("episode", t.completed).
		Float64("epsilon", eps).
		Int("score", scores[len(scores)-1]).
		Float64("avg", float64(sum)/float64(len(window))).
		Int("best", t.best).
		Int("states", t.table.Len()).
		Msg("progress")
}

// Checkpoint snapshots the table reference and training metadata.
func (t *Trainer) Checkpoint() *store.Checkpoint {
	envCfg := t.env.Config()
	return &store.Checkpoint{
		Meta: store.Meta{
			RunID:           t.runID,
			EpisodesTrained: t.completed,
			Width:           envCfg.Width,
			Height:          envCfg.Height,
			Hyperparameters: store.Hyperparameters{
				Alpha:        t.cfg.Alpha,
				Gamma:        t.cfg.Gamma,
				EpsilonStart: t.cfg.EpsilonStart,
				EpsilonEnd:   t.cfg.EpsilonEnd,
				Schedule:     string(t.cfg.Schedule),
				Episodes:     t.cfg.Episodes,
				Seed:         t.cfg.Seed,
				Rewards:      envCfg.Rewards,
			},
		},
		Table: t.table,
	}
}

// Flush saves the checkpoint if a path is configured.
func (t *Trainer) Flush() error {
	if t.cfg.CheckpointPath == "" {
		return nil
	}
	start := time.Now()
	if err := store.Save(t.cfg.CheckpointPath, t.Checkpoint()); err != nil {
		return fmt.Errorf("flush checkpoint: %w", err)
	}
	t.logger.Info().
		Str("path", t.cfg.CheckpointPath).
		Int("episodes_trained", t.completed).
		Int("states", t.table.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("checkpoint saved")
	return nil
}
