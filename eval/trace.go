package eval

import (
	"context"
	"math/rand"

	"github.com/brensch/snekrl/agent"
	"github.com/brensch/snekrl/game"
	"github.com/brensch/snekrl/rules"
	"github.com/brensch/snekrl/store"
)

// Step is one decision of a traced episode. Board is the position the
// decision was made on.
type Step struct {
	Index    int
	Board    *game.Board
	State    rules.Features
	Decision agent.Decision
	Result   rules.StepResult
}

// Row flattens s for the trace log.
func (s Step) Row() store.TraceRow {
	head := s.Board.Head()
	row := store.TraceRow{
		Step:     int32(s.Index),
		StateKey: s.State.Key(),
		Heading:  s.Board.Heading.String(),
		HeadX:    int32(head.X),
		HeadY:    int32(head.Y),
		Length:   int32(len(s.Board.Snake)),
		FoodX:    -1,
		FoodY:    -1,
		Q:        s.Decision.Values[:],
		Action:   s.Decision.Action.String(),
		Mode:     s.Decision.Mode.String(),
		Fallback: s.Decision.Fallback,
		Reward:   s.Result.Reward,
		Score:    int32(s.Result.Score),
		Outcome:  s.Result.Outcome.String(),
	}
	if s.Board.HasFood {
		row.FoodX, row.FoodY = int32(s.Board.Food.X), int32(s.Board.Food.Y)
	}
	for _, a := range s.Decision.Assessments {
		row.Safe = append(row.Safe, a.Safe)
		row.Reachable = append(row.Reachable, int32(a.Reachable))
	}
	return row
}

// Trace plays a single episode with the environment seeded by seed, the
// same episode Run plays at index 0 for that seed.
func Trace(ctx context.Context, ag *agent.Agent, cfg rules.Config, seed int64, onStep func(Step)) ([]store.TraceRow, EpisodeResult, error) {
	env, err := rules.NewEnvironment(cfg, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, EpisodeResult{}, err
	}
	var rows []store.TraceRow
	res, err := playOut(ctx, ag, env, 0, func(s Step) {
		rows = append(rows, s.Row())
		if onStep != nil {
			onStep(s)
		}
	})
	return rows, res, err
}
