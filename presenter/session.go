// Package presenter drives a live game for display: a fixed-tick loop
// around the environment and the agent, pass-through controls, and frame
// snapshots for the terminal and web front ends.
package presenter

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/brensch/snekrl/agent"
	"github.com/brensch/snekrl/game"
	"github.com/brensch/snekrl/rules"
	"github.com/brensch/snekrl/safety"
)

const (
	MinSpeed     = 15 * time.Millisecond
	MaxSpeed     = 300 * time.Millisecond
	SpeedStep    = 10 * time.Millisecond
	DefaultSpeed = 70 * time.Millisecond
)

// ErrUnknownControl is returned by Apply for names it does not know.
// Callers ignore it; it never stops the session.
var ErrUnknownControl = errors.New("unknown control")

// Control names accepted by Apply.
const (
	ControlPause       = "pause"
	ControlResume      = "resume"
	ControlTogglePause = "toggle-pause"
	ControlRestart     = "restart"
	ControlPolicy      = "policy"
	ControlFaster      = "faster"
	ControlSlower      = "slower"
)

type Options struct {
	Env   rules.Config
	Seed  int64
	Speed time.Duration
}

// Session is safe for concurrent use; the web server reads frames and
// applies controls from handler goroutines while the loop ticks.
type Session struct {
	mu sync.Mutex

	env    *rules.Environment
	agent  *agent.Agent
	state  rules.Features
	speed  time.Duration
	paused bool

	episode  int
	best     int
	tick     uint64
	reason   string
	decision *agent.Decision
}

func NewSession(opts Options, ag *agent.Agent) (*Session, error) {
	if ag == nil {
		return nil, fmt.Errorf("session needs an agent")
	}
	env, err := rules.NewEnvironment(opts.Env, rand.New(rand.NewSource(opts.Seed)))
	if err != nil {
		return nil, err
	}
	speed := opts.Speed
	if speed == 0 {
		speed = DefaultSpeed
	}
	return &Session{
		env:     env,
		agent:   ag,
		state:   env.State(),
		speed:   clampSpeed(speed),
		episode: 1,
		reason:  rules.Running.String(),
	}, nil
}

func clampSpeed(d time.Duration) time.Duration {
	if d < MinSpeed {
		return MinSpeed
	}
	if d > MaxSpeed {
		return MaxSpeed
	}
	return d
}

// Tick advances one step unless paused. A finished episode updates the
// best score and starts the next one.
func (s *Session) Tick() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	if s.paused {
		return s.frameLocked(), nil
	}

	board := s.env.Board()
	d := s.agent.Decide(board, s.state)
	s.decision = &d
	res, err := s.env.Step(d.Action)
	if err != nil {
		return s.frameLocked(), fmt.Errorf("tick %d: %w", s.tick, err)
	}
	s.state = res.State
	s.reason = res.Outcome.String()
	if res.Done {
		if res.Score > s.best {
			s.best = res.Score
		}
		s.episode++
		s.state = s.env.Reset()
	}
	return s.frameLocked(), nil
}

// Run ticks at the current speed until ctx is done, handing every frame
// to onFrame. Speed changes apply from the next tick.
func (s *Session) Run(ctx context.Context, onFrame func(Frame)) error {
	timer := time.NewTimer(s.Speed())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			f, err := s.Tick()
			if err != nil {
				return err
			}
			if onFrame != nil {
				onFrame(f)
			}
			timer.Reset(s.Speed())
		}
	}
}

func (s *Session) Speed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

func (s *Session) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *Session) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *Session) TogglePause() {
	s.mu.Lock()
	s.paused = !s.paused
	s.mu.Unlock()
}

// Restart abandons the current episode without counting it.
func (s *Session) Restart() {
	s.mu.Lock()
	s.state = s.env.Reset()
	s.reason = "restart"
	s.decision = nil
	s.mu.Unlock()
}

// TogglePolicy switches between rl and hybrid for the following ticks.
func (s *Session) TogglePolicy() {
	s.mu.Lock()
	s.agent = s.agent.WithMode(s.agent.Mode().Toggle())
	s.mu.Unlock()
}

// SpeedUp shortens the tick by one step.
func (s *Session) SpeedUp() {
	s.mu.Lock()
	s.speed = clampSpeed(s.speed - SpeedStep)
	s.mu.Unlock()
}

// SpeedDown lengthens the tick by one step.
func (s *Session) SpeedDown() {
	s.mu.Lock()
	s.speed = clampSpeed(s.speed + SpeedStep)
	s.mu.Unlock()
}

// Apply runs a named control.
func (s *Session) Apply(name string) error {
	switch name {
	case ControlPause:
		s.Pause()
	case ControlResume:
		s.Resume()
	case ControlTogglePause:
		s.TogglePause()
	case ControlRestart:
		s.Restart()
	case ControlPolicy:
		s.TogglePolicy()
	case ControlFaster:
		s.SpeedUp()
	case ControlSlower:
		s.SpeedDown()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownControl, name)
	}
	return nil
}

// Frame snapshots the session without advancing it.
func (s *Session) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

// Frame is an immutable view of one tick.
type Frame struct {
	Tick     uint64       `json:"tick"`
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	Rows     []string     `json:"rows"`
	Snake    []game.Point `json:"snake"`
	Food     *game.Point  `json:"food,omitempty"`
	Score    int          `json:"score"`
	Best     int          `json:"best"`
	Length   int          `json:"length"`
	Episode  int          `json:"episode"`
	Mode     string       `json:"mode"`
	SpeedMS  int64        `json:"speed_ms"`
	Paused   bool         `json:"paused"`
	Reason   string       `json:"reason"`
	Action   string       `json:"action,omitempty"`
	Fallback bool         `json:"fallback"`
	// FoodDistance is the path length to food, -1 if unreachable.
	FoodDistance int `json:"food_distance"`
}

func (s *Session) frameLocked() Frame {
	b := s.env.Board()
	f := Frame{
		Tick:         s.tick,
		Width:        b.Width,
		Height:       b.Height,
		Rows:         BoardRows(b),
		Snake:        b.Snake,
		Score:        s.env.Score(),
		Best:         max(s.best, s.env.Score()),
		Length:       len(b.Snake),
		Episode:      s.episode,
		Mode:         s.agent.Mode().String(),
		SpeedMS:      s.speed.Milliseconds(),
		Paused:       s.paused,
		Reason:       s.reason,
		FoodDistance: safety.DistanceToFood(b),
	}
	if b.HasFood {
		food := b.Food
		f.Food = &food
	}
	if s.decision != nil {
		f.Action = s.decision.Action.String()
		f.Fallback = s.decision.Fallback
	}
	return f
}
