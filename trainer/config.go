package trainer

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig marks training settings rejected before any episode runs.
var ErrInvalidConfig = errors.New("invalid training config")

// Schedule names how epsilon moves from start to end.
type Schedule string

const (
	Linear      Schedule = "linear"
	Exponential Schedule = "exponential"
)

// Config holds the learning hyperparameters and run bookkeeping.
type Config struct {
	// Episodes is the total the schedule is laid out over. Resumed runs
	// continue toward the same total.
	Episodes     int      `mapstructure:"episodes" yaml:"episodes"`
	Alpha        float64  `mapstructure:"alpha" yaml:"alpha"`
	Gamma        float64  `mapstructure:"gamma" yaml:"gamma"`
	EpsilonStart float64  `mapstructure:"epsilon_start" yaml:"epsilon_start"`
	EpsilonEnd   float64  `mapstructure:"epsilon_end" yaml:"epsilon_end"`
	Schedule     Schedule `mapstructure:"schedule" yaml:"schedule"`
	Seed         int64    `mapstructure:"seed" yaml:"seed"`

	LogEvery        int    `mapstructure:"log_every" yaml:"log_every"`
	CheckpointEvery int    `mapstructure:"checkpoint_every" yaml:"checkpoint_every"`
	CheckpointPath  string `mapstructure:"output" yaml:"output"`
	// EpisodeLogDir, when set, receives a parquet row per episode.
	EpisodeLogDir string `mapstructure:"episode_log_dir" yaml:"episode_log_dir"`
}

func DefaultConfig() Config {
	return Config{
		Episodes:       5000,
		Alpha:          0.1,
		Gamma:          0.95,
		EpsilonStart:   1.0,
		EpsilonEnd:     0.05,
		Schedule:       Linear,
		Seed:           42,
		LogEvery:       100,
		CheckpointPath: "checkpoints/q_table.parquet",
	}
}

func (c Config) Validate() error {
	switch {
	case c.Episodes <= 0:
		return fmt.Errorf("%w: episodes=%d must be positive", ErrInvalidConfig, c.Episodes)
	case !(c.Alpha > 0 && c.Alpha <= 1):
		return fmt.Errorf("%w: alpha=%v outside (0,1]", ErrInvalidConfig, c.Alpha)
	case !(c.Gamma >= 0 && c.Gamma <= 1):
		return fmt.Errorf("%w: gamma=%v outside [0,1]", ErrInvalidConfig, c.Gamma)
	case !(c.EpsilonStart >= 0 && c.EpsilonStart <= 1) || !(c.EpsilonEnd >= 0 && c.EpsilonEnd <= 1):
		return fmt.Errorf("%w: epsilon %v..%v outside [0,1]", ErrInvalidConfig, c.EpsilonStart, c.EpsilonEnd)
	case c.EpsilonStart < c.EpsilonEnd:
		return fmt.Errorf("%w: epsilon_start=%v below epsilon_end=%v", ErrInvalidConfig, c.EpsilonStart, c.EpsilonEnd)
	case c.LogEvery < 0 || c.CheckpointEvery < 0:
		return fmt.Errorf("%w: log_every and checkpoint_every must not be negative", ErrInvalidConfig)
	}
	switch c.Schedule {
	case Linear, Exponential, "":
	default:
		return fmt.Errorf("%w: unknown schedule %q", ErrInvalidConfig, c.Schedule)
	}
	return nil
}

// Epsilon is the exploration rate for the episode after `completed`
// finished episodes.
func (c Config) Epsilon(completed int) float64 {
	span := c.EpsilonStart - c.EpsilonEnd
	if span <= 0 || c.Episodes <= 0 {
		return c.EpsilonEnd
	}
	if completed >= c.Episodes {
		return c.EpsilonEnd
	}
	if c.Schedule == Exponential {
		// Within 1e-3 of the end value at the last episode.
		decay := math.Pow(1e-3/span, 1/float64(c.Episodes))
		if decay >= 1 {
			return c.EpsilonEnd
		}
		return c.EpsilonEnd + span*math.Pow(decay, float64(completed))
	}
	return math.Max(c.EpsilonEnd, c.EpsilonStart-float64(completed)*span/float64(c.Episodes))
}
