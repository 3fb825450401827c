// Package agent picks moves by combining learned action values with the
// safety planner's lookahead.
package agent

import (
	"fmt"

	"github.com/brensch/snekrl/game"
	"github.com/brensch/snekrl/qtable"
	"github.com/brensch/snekrl/rules"
	"github.com/brensch/snekrl/safety"
)

// Mode selects the decision rule for a session.
type Mode uint8

const (
	// ModeHybrid takes the best-valued safe action, else the least-bad one.
	ModeHybrid Mode = iota
	// ModeRL always takes the best-valued action.
	ModeRL
)

func (m Mode) String() string {
	switch m {
	case ModeHybrid:
		return "hybrid"
	case ModeRL:
		return "rl"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode accepts "rl" or "hybrid".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "hybrid", "":
		return ModeHybrid, nil
	case "rl":
		return ModeRL, nil
	}
	return 0, fmt.Errorf("unknown policy %q (want rl or hybrid)", s)
}

// Toggle flips between the two modes.
func (m Mode) Toggle() Mode {
	if m == ModeRL {
		return ModeHybrid
	}
	return ModeRL
}

// ValueSource is the read side of a Q-table.
type ValueSource interface {
	Get(key string) qtable.Values
}

// Checker is the read side of the safety planner.
type Checker interface {
	Assess(b *game.Board, a game.Action) safety.Assessment
	LeastBad(b *game.Board, order []game.Action) game.Action
}

// Decision explains one choice.
type Decision struct {
	Action game.Action
	Mode   Mode
	// Ranked is every action ordered by value, best first.
	Ranked [game.NumActions]game.Action
	Values qtable.Values
	// Assessments is indexed by action. Empty in rl mode.
	Assessments []safety.Assessment
	// Fallback is set when no action was safe.
	Fallback bool
}

// Agent never writes to its value source.
type Agent struct {
	values  ValueSource
	checker Checker
	mode    Mode
}

func New(values ValueSource, checker Checker, mode Mode) *Agent {
	if checker == nil {
		checker = safety.NewPlanner()
	}
	return &Agent{values: values, checker: checker, mode: mode}
}

func (a *Agent) Mode() Mode { return a.mode }

// WithMode returns an agent sharing the same table and planner.
func (a *Agent) WithMode(m Mode) *Agent {
	out := *a
	out.mode = m
	return &out
}

// SelectAction returns the chosen action for b, whose features are state.
func (a *Agent) SelectAction(b *game.Board, state rules.Features) game.Action {
	return a.Decide(b, state).Action
}

// Decide ranks actions by value and, in hybrid mode, keeps the best one
// the planner marks safe.
func (a *Agent) Decide(b *game.Board, state rules.Features) Decision {
	values := a.values.Get(state.Key())
	d := Decision{
		Mode:   a.mode,
		Values: values,
		Ranked: qtable.RankValues(values),
	}
	if a.mode == ModeRL {
		d.Action = d.Ranked[0]
		return d
	}

	d.Assessments = make([]safety.Assessment, game.NumActions)
	for _, act := range game.Actions {
		d.Assessments[act] = a.checker.Assess(b, act)
	}
	for _, act := range d.Ranked {
		if d.Assessments[act].Safe {
			d.Action = act
			return d
		}
	}
	d.Fallback = true
	d.Action = a.checker.LeastBad(b, d.Ranked[:])
	return d
}
