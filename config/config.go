// Package config loads the command settings from defaults, an optional YAML
// file, SNEKRL_* environment variables and flags, in increasing priority.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/brensch/snekrl/agent"
	"github.com/brensch/snekrl/eval"
	"github.com/brensch/snekrl/logging"
	"github.com/brensch/snekrl/presenter"
	"github.com/brensch/snekrl/rules"
	"github.com/brensch/snekrl/trainer"
)

// EnvPrefix is prepended to every environment override, so train.alpha is
// read from SNEKRL_TRAIN_ALPHA.
const EnvPrefix = "SNEKRL"

const DefaultModel = "checkpoints/q_table.parquet"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Env   rules.Config `mapstructure:"env" yaml:"env"`
	Train TrainConfig  `mapstructure:"train" yaml:"train"`
	Eval  EvalConfig   `mapstructure:"eval" yaml:"eval"`
	Play  PlayConfig   `mapstructure:"play" yaml:"play"`
	Log   LogConfig    `mapstructure:"log" yaml:"log"`
}

type TrainConfig struct {
	trainer.Config `mapstructure:",squash" yaml:",inline"`

	// Resume continues from the checkpoint at Output and fails if it is
	// missing, unless Fresh is also set.
	Resume bool `mapstructure:"resume" yaml:"resume"`
	Fresh  bool `mapstructure:"fresh" yaml:"fresh"`
}

type EvalConfig struct {
	eval.Config `mapstructure:",squash" yaml:",inline"`

	Model  string `mapstructure:"model" yaml:"model"`
	Policy string `mapstructure:"policy" yaml:"policy"`
}

type PlayConfig struct {
	Model   string `mapstructure:"model" yaml:"model"`
	Policy  string `mapstructure:"policy" yaml:"policy"`
	SpeedMS int    `mapstructure:"speed_ms" yaml:"speed_ms"`
	Seed    int64  `mapstructure:"seed" yaml:"seed"`
	// Addr is where serve listens.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

func (p PlayConfig) Speed() time.Duration { return time.Duration(p.SpeedMS) * time.Millisecond }

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func Default() Config {
	return Config{
		Env:   rules.DefaultConfig(),
		Train: TrainConfig{Config: trainer.DefaultConfig()},
		Eval: EvalConfig{
			Config: eval.Config{Episodes: 100, Seed: 123, Workers: 4},
			Model:  DefaultModel,
			Policy: agent.ModeHybrid.String(),
		},
		Play: PlayConfig{
			Model:   DefaultModel,
			Policy:  agent.ModeHybrid.String(),
			SpeedMS: int(presenter.DefaultSpeed.Milliseconds()),
			Seed:    7,
			Addr:    ":8080",
		},
		Log: LogConfig{Level: "info", Format: logging.FormatConsole},
	}
}

// Load resolves a Config through v. Flags should already be bound to v under
// their dotted keys. path may be empty.
func Load(v *viper.Viper, path string) (Config, error) {
	if err := setDefaults(v, Default()); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// setDefaults registers every key of def so AutomaticEnv can see it.
func setDefaults(v *viper.Viper, def Config) error {
	raw, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("decode defaults: %w", err)
	}
	walk("", tree, v.SetDefault)
	return nil
}

func walk(prefix string, node map[string]any, set func(string, any)) {
	for k, val := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := val.(map[string]any); ok {
			walk(key, child, set)
			continue
		}
		set(key, val)
	}
}

func (c Config) Validate() error {
	if err := c.Env.Validate(); err != nil {
		return fmt.Errorf("%w: env: %w", ErrInvalid, err)
	}
	if err := c.Train.Config.Validate(); err != nil {
		return fmt.Errorf("%w: train: %w", ErrInvalid, err)
	}
	if c.Train.CheckpointPath == "" {
		return fmt.Errorf("%w: train.output is empty", ErrInvalid)
	}
	ec := c.Eval.Config
	ec.Env = c.Env
	if err := ec.Validate(); err != nil {
		return fmt.Errorf("%w: eval: %w", ErrInvalid, err)
	}
	if _, err := agent.ParseMode(c.Eval.Policy); err != nil {
		return fmt.Errorf("%w: eval.policy: %w", ErrInvalid, err)
	}
	if _, err := agent.ParseMode(c.Play.Policy); err != nil {
		return fmt.Errorf("%w: play.policy: %w", ErrInvalid, err)
	}
	if s := c.Play.Speed(); s < presenter.MinSpeed || s > presenter.MaxSpeed {
		return fmt.Errorf("%w: play.speed_ms=%d outside %d..%d", ErrInvalid, c.Play.SpeedMS,
			presenter.MinSpeed.Milliseconds(), presenter.MaxSpeed.Milliseconds())
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	switch c.Log.Format {
	case logging.FormatConsole, logging.FormatJSON, logging.FormatPretty:
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Dump renders c as YAML that Load accepts back.
func Dump(c Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
