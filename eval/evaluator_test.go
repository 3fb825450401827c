package eval

import (
	"context"
	"strings"
	"testing"

	"github.com/brensch/snekrl/agent"
	"github.com/brensch/snekrl/qtable"
	"github.com/brensch/snekrl/rules"
	"github.com/brensch/snekrl/safety"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(episodes, workers int) Config {
	return Config{Episodes: episodes, Seed: 123, Workers: workers, Env: rules.DefaultConfig()}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, testConfig(10, 2).Validate())
	require.ErrorIs(t, testConfig(0, 1).Validate(), ErrInvalidConfig)
	require.ErrorIs(t, testConfig(10, 0).Validate(), ErrInvalidConfig)

	cfg := testConfig(10, 1)
	cfg.Env.Width = 2
	require.ErrorIs(t, cfg.Validate(), rules.ErrInvalidConfig)
}

func TestSummarize_Percentiles(t *testing.T) {
	var results []EpisodeResult
	// Out of order on purpose.
	for i := 9; i >= 0; i-- {
		o := rules.Collision
		if i == 9 {
			o = rules.Win
		}
		if i == 0 {
			o = rules.Stuck
		}
		results = append(results, EpisodeResult{Index: i, Score: i, Steps: 10 * i, Outcome: o})
	}

	rep := Summarize("hybrid", results)
	assert.Equal(t, 10, rep.Episodes)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, rep.Scores)
	assert.InDelta(t, 4.5, rep.Avg, 1e-12)
	assert.Equal(t, 9, rep.Best)
	assert.Equal(t, 0, rep.Min)
	assert.Equal(t, 5, rep.P50)
	assert.Equal(t, 9, rep.P90)
	assert.InDelta(t, 45, rep.AvgSteps, 1e-12)
	assert.Equal(t, 1, rep.Wins)
	assert.Equal(t, 8, rep.Collisions)
	assert.Equal(t, 1, rep.Stuck)
	assert.Greater(t, rep.StdDev, 0.0)

	single := Summarize("rl", []EpisodeResult{{Score: 4}})
	assert.Equal(t, 4.0, single.Avg)
	assert.Zero(t, single.StdDev)
	assert.Equal(t, 4, single.P50)
	assert.Equal(t, 4, single.P90)
}

func TestRun_IndependentOfWorkerCount(t *testing.T) {
	ag := agent.New(qtable.New(), safety.NewPlanner(), agent.ModeHybrid)

	run := func(workers int) Report {
		ev, err := New(testConfig(12, workers), ag, zerolog.Nop())
		require.NoError(t, err)
		rep, err := ev.Run(context.Background())
		require.NoError(t, err)
		return rep
	}
	one, four := run(1), run(4)
	assert.Equal(t, one.Scores, four.Scores)
	assert.Equal(t, one.AvgSteps, four.AvgSteps)
	assert.Equal(t, "hybrid", one.Policy)
}

func TestRun_HybridOutlivesRLOnEmptyTable(t *testing.T) {
	table := qtable.New()
	run := func(mode agent.Mode) Report {
		ev, err := New(testConfig(8, 2), agent.New(table, nil, mode), zerolog.Nop())
		require.NoError(t, err)
		rep, err := ev.Run(context.Background())
		require.NoError(t, err)
		return rep
	}
	rl, hybrid := run(agent.ModeRL), run(agent.ModeHybrid)

	// Straight ahead from the centre of a 12x12 board meets the wall within six steps.
	assert.LessOrEqual(t, rl.AvgSteps, 6.0)
	assert.Greater(t, hybrid.AvgSteps, rl.AvgSteps)
	assert.Equal(t, 0, table.Len(), "evaluation must not write to the table")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ev, err := New(testConfig(5, 2), agent.New(qtable.New(), nil, agent.ModeHybrid), zerolog.Nop())
	require.NoError(t, err)
	_, err = ev.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReport_Format(t *testing.T) {
	out := Summarize("rl", []EpisodeResult{{Score: 2}, {Index: 1, Score: 4}}).Format()
	assert.True(t, strings.HasPrefix(out, "episodes=2\npolicy=rl\navg_score=3.000\n"), out)
	assert.Contains(t, out, "p90_score=4\n")
}

func TestTrace_MatchesRunEpisodeZero(t *testing.T) {
	ag := agent.New(qtable.New(), safety.NewPlanner(), agent.ModeHybrid)
	cfg := testConfig(1, 1)

	var steps []Step
	rows, res, err := Trace(context.Background(), ag, cfg.Env, cfg.Seed, func(s Step) {
		steps = append(steps, s)
	})
	require.NoError(t, err)

	ev, err := New(cfg, ag, zerolog.Nop())
	require.NoError(t, err)
	rep, err := ev.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rep.Scores[0], res.Score)

	require.Len(t, rows, res.Steps)
	require.Len(t, steps, res.Steps)
	for i, row := range rows {
		assert.Equal(t, int32(i), row.Step)
		assert.Len(t, row.Q, 3)
		assert.Len(t, row.Safe, 3)
		assert.Equal(t, "hybrid", row.Mode)
		assert.Equal(t, int32(len(steps[i].Board.Snake)), row.Length)
	}
	last := rows[len(rows)-1]
	assert.Equal(t, res.Outcome.String(), last.Outcome)
	assert.Equal(t, "running", rows[0].Outcome)
}
