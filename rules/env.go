package rules

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/brensch/snekrl/game"
)

var (
	// ErrInvalidConfig marks environment settings rejected before play.
	ErrInvalidConfig = errors.New("invalid environment config")
	// ErrInvalidAction is returned for actions outside the three relative moves.
	ErrInvalidAction = errors.New("invalid action")
	// ErrEpisodeOver is returned when Step is called after a terminal step.
	ErrEpisodeOver = errors.New("episode is over")
)

const (
	MinBoardSize = 4
	MaxBoardSize = 64
	// StartLength is the snake length after Reset.
	StartLength = 3
)

// Rewards holds the shaping constants.
type Rewards struct {
	Collision float64 `mapstructure:"collision" yaml:"collision" json:"collision"`
	Food      float64 `mapstructure:"food" yaml:"food" json:"food"`
	Step      float64 `mapstructure:"step" yaml:"step" json:"step"`
	Closer    float64 `mapstructure:"closer" yaml:"closer" json:"closer"`
	Farther   float64 `mapstructure:"farther" yaml:"farther" json:"farther"`
	Win       float64 `mapstructure:"win" yaml:"win" json:"win"`
	Stuck     float64 `mapstructure:"stuck" yaml:"stuck" json:"stuck"`
}

// DefaultRewards are the tuned values the bundled checkpoints were trained with.
var DefaultRewards = Rewards{
	Collision: -12,
	Food:      15,
	Step:      -0.03,
	Closer:    0.2,
	Farther:   0.2,
	Win:       50,
	Stuck:     -5,
}

// Config sizes the board and bounds episodes.
type Config struct {
	Width   int     `mapstructure:"width" yaml:"width" json:"width"`
	Height  int     `mapstructure:"height" yaml:"height" json:"height"`
	Rewards Rewards `mapstructure:"rewards" yaml:"rewards" json:"rewards"`
	// MaxStepsWithoutFood ends an episode as stuck. Zero means Width*Height*2.
	MaxStepsWithoutFood int `mapstructure:"max_steps_without_food" yaml:"max_steps_without_food" json:"max_steps_without_food"`
	// MaxSteps caps an episode outright. Zero disables the cap.
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps" json:"max_steps"`
}

// DefaultConfig is a 12x12 board with the default rewards.
func DefaultConfig() Config {
	return Config{Width: 12, Height: 12, Rewards: DefaultRewards}
}

func (c Config) Validate() error {
	if c.Width < MinBoardSize || c.Width > MaxBoardSize || c.Height < MinBoardSize || c.Height > MaxBoardSize {
		return fmt.Errorf("%w: board %dx%d outside %d..%d", ErrInvalidConfig, c.Width, c.Height, MinBoardSize, MaxBoardSize)
	}
	if c.MaxStepsWithoutFood < 0 {
		return fmt.Errorf("%w: max_steps_without_food=%d", ErrInvalidConfig, c.MaxStepsWithoutFood)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("%w: max_steps=%d", ErrInvalidConfig, c.MaxSteps)
	}
	return nil
}

func (c Config) stuckLimit() int {
	if c.MaxStepsWithoutFood > 0 {
		return c.MaxStepsWithoutFood
	}
	return c.Width * c.Height * 2
}

// Outcome says why an episode is, or is not, over.
type Outcome uint8

const (
	Running Outcome = iota
	Collision
	Win
	Stuck
	StepCap
)

func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Collision:
		return "collision"
	case Win:
		return "win"
	case Stuck:
		return "stuck"
	case StepCap:
		return "step_cap"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// StepResult is one transition as seen by the caller.
type StepResult struct {
	State   Features
	Reward  float64
	Done    bool
	Outcome Outcome
	Score   int
	Steps   int
}

// Environment simulates one snake on a fixed grid.
type Environment struct {
	cfg       Config
	rng       *rand.Rand
	board     *game.Board
	score     int
	steps     int
	sinceFood int
	outcome   Outcome
}

// NewEnvironment validates cfg and resets a first episode. Food placement
// draws from rng; a nil rng places food deterministically.
func NewEnvironment(cfg Config, rng *rand.Rand) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Environment{cfg: cfg, rng: rng}
	e.Reset()
	return e, nil
}

// Reset starts a new episode: a length-3 snake centred and heading right,
// with food on a random free cell.
func (e *Environment) Reset() Features {
	cx, cy := e.cfg.Width/2, e.cfg.Height/2
	e.board = &game.Board{
		Width:   e.cfg.Width,
		Height:  e.cfg.Height,
		Heading: game.Right,
		Snake: []game.Point{
			{X: cx, Y: cy},
			{X: cx - 1, Y: cy},
			{X: cx - 2, Y: cy},
		},
	}
	// A fresh board always has room.
	_ = game.PlaceFood(e.board, e.rng)
	e.score = 0
	e.steps = 0
	e.sinceFood = 0
	e.outcome = Running
	return Discretize(e.board)
}

// Step applies a and returns the transition.
func (e *Environment) Step(a game.Action) (StepResult, error) {
	if e.outcome != Running {
		return StepResult{}, ErrEpisodeOver
	}
	if !a.Valid() {
		return StepResult{}, fmt.Errorf("%w: %d", ErrInvalidAction, a)
	}

	r := e.cfg.Rewards
	prev := e.board
	e.steps++
	e.sinceFood++

	m := Advance(prev, a)
	if m.Collided {
		e.board.Heading = m.Heading
		return e.finish(Collision, r.Collision), nil
	}
	e.board = m.Next

	reward := r.Step
	if m.Ate {
		e.score++
		e.sinceFood = 0
		reward = r.Food
		if err := game.PlaceFood(e.board, e.rng); errors.Is(err, game.ErrBoardFull) {
			return e.finish(Win, r.Win), nil
		}
	} else if prev.HasFood {
		before := game.Manhattan(prev.Head(), prev.Food)
		after := game.Manhattan(m.Head, prev.Food)
		switch {
		case after < before:
			reward += r.Closer
		case after > before:
			reward -= r.Farther
		}
	}

	if e.sinceFood > e.cfg.stuckLimit() {
		return e.finish(Stuck, r.Stuck), nil
	}
	if e.cfg.MaxSteps > 0 && e.steps >= e.cfg.MaxSteps {
		return e.finish(StepCap, r.Stuck), nil
	}
	return e.result(reward), nil
}

func (e *Environment) finish(o Outcome, reward float64) StepResult {
	e.outcome = o
	return e.result(reward)
}

func (e *Environment) result(reward float64) StepResult {
	return StepResult{
		State:   Discretize(e.board),
		Reward:  reward,
		Done:    e.outcome != Running,
		Outcome: e.outcome,
		Score:   e.score,
		Steps:   e.steps,
	}
}

// Board returns a copy of the live board.
func (e *Environment) Board() *game.Board { return e.board.Clone() }

// State discretizes the live board.
func (e *Environment) State() Features { return Discretize(e.board) }

func (e *Environment) Score() int       { return e.score }
func (e *Environment) Steps() int       { return e.steps }
func (e *Environment) Outcome() Outcome { return e.outcome }
func (e *Environment) Done() bool       { return e.outcome != Running }
func (e *Environment) Config() Config   { return e.cfg }
