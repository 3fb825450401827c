// Package store persists Q-table checkpoints and training episode logs.
//
// Checkpoints are written as parquet (one row per state) unless the path
// ends in .json. Every write goes to a temporary file first and is renamed
// into place, so a reader never sees a partial checkpoint.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brensch/snekrl/qtable"
	"github.com/brensch/snekrl/rules"
	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("checkpoint not found")
	ErrCorrupt       = errors.New("checkpoint is corrupt")
	ErrShapeMismatch = errors.New("checkpoint grid does not match config")
)

// Hyperparameters records how a table was trained.
type Hyperparameters struct {
	Alpha        float64       `json:"alpha"`
	Gamma        float64       `json:"gamma"`
	EpsilonStart float64       `json:"epsilon_start"`
	EpsilonEnd   float64       `json:"epsilon_end"`
	Schedule     string        `json:"schedule"`
	Episodes     int           `json:"episodes"`
	Seed         int64         `json:"seed"`
	Rewards      rules.Rewards `json:"rewards"`
}

// Meta is everything in a checkpoint except the table itself.
type Meta struct {
	RunID           string          `json:"run_id"`
	EpisodesTrained int             `json:"episodes_trained"`
	Width           int             `json:"width"`
	Height          int             `json:"height"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	SavedAt         time.Time       `json:"saved_at"`
}

// Checkpoint is a table plus its training metadata.
type Checkpoint struct {
	Meta
	Table *qtable.Table
}

// LoadOptions controls validation on load.
type LoadOptions struct {
	// Width and Height are the configured grid. Zero skips the check.
	Width  int
	Height int
	// Fresh returns an empty checkpoint when the file does not exist.
	Fresh bool
}

// Save writes cp to path, choosing the format from the extension.
// A missing RunID is generated.
func Save(path string, cp *Checkpoint) error {
	if cp == nil || cp.Table == nil {
		return fmt.Errorf("save checkpoint: nil table")
	}
	if cp.RunID == "" {
		cp.RunID = uuid.NewString()
	}
	cp.SavedAt = time.Now().UTC()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	_ = os.Remove(tmpPath)

	var err error
	if isJSON(path) {
		err = writeJSON(tmpPath, cp)
	} else {
		err = writeParquet(tmpPath, cp)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint and validates it against opts.
func Load(path string, opts LoadOptions) (*Checkpoint, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if opts.Fresh {
				return &Checkpoint{Table: qtable.New()}, nil
			}
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat checkpoint: %w", err)
	}

	var (
		cp  *Checkpoint
		err error
	)
	if isJSON(path) {
		cp, err = readJSON(path)
	} else {
		cp, err = readParquet(path)
	}
	if err != nil {
		return nil, err
	}

	for _, key := range cp.Table.Keys() {
		if _, err := rules.ParseKey(key); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
		}
	}
	if cp.EpisodesTrained < 0 {
		return nil, fmt.Errorf("%w: %s: episodes_trained=%d", ErrCorrupt, path, cp.EpisodesTrained)
	}

	if opts.Width > 0 && cp.Width > 0 && (cp.Width != opts.Width || cp.Height != opts.Height) {
		return nil, fmt.Errorf("%w: %s is %dx%d, want %dx%d",
			ErrShapeMismatch, path, cp.Width, cp.Height, opts.Width, opts.Height)
	}
	return cp, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
