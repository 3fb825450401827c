package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const episodeSchema = "episode_v1"

// EpisodeRow is one finished training episode.
type EpisodeRow struct {
	RunID   string  `parquet:"run_id,dict" json:"run_id"`
	Episode int64   `parquet:"episode" json:"episode"`
	Score   int32   `parquet:"score" json:"score"`
	Steps   int32   `parquet:"steps" json:"steps"`
	Reward  float64 `parquet:"reward" json:"reward"`
	Epsilon float64 `parquet:"epsilon" json:"epsilon"`
	Outcome string  `parquet:"outcome,dict" json:"outcome"`
	States  int64   `parquet:"states" json:"states"`
}

// EpisodeLog streams episode rows into a parquet file under outDir/tmp and
// moves it into outDir on Finalize.
type EpisodeLog struct {
	tmpPath string
	outPath string

	file   *os.File
	writer *parquet.GenericWriter[EpisodeRow]

	rows int
}

func NewEpisodeLog(outDir, runID string) (*EpisodeLog, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}

	absOut, err := filepath.Abs(outDir)
	if err != nil {
		absOut = outDir
	}
	tmpDir := filepath.Join(absOut, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("episodes_%s.parquet", runID)
	tmpPath := filepath.Join(tmpDir, name)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tmp parquet: %w", err)
	}

	w := parquet.NewGenericWriter[EpisodeRow](
		f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	w.SetKeyValueMetadata("schema", episodeSchema)
	w.SetKeyValueMetadata("run_id", runID)

	return &EpisodeLog{
		tmpPath: tmpPath,
		outPath: filepath.Join(absOut, name),
		file:    f,
		writer:  w,
	}, nil
}

func (l *EpisodeLog) OutPath() string { return l.outPath }
func (l *EpisodeLog) Rows() int       { return l.rows }

func (l *EpisodeLog) Write(rows ...EpisodeRow) error {
	if l.writer == nil || l.file == nil {
		return fmt.Errorf("episode log is closed")
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := l.writer.Write(rows); err != nil {
		return fmt.Errorf("write episodes: %w", err)
	}
	l.rows += len(rows)
	return nil
}

// Finalize closes the writer and moves the file out of tmp/.
// An empty log is removed and reported with an empty path.
func (l *EpisodeLog) Finalize() (outPath string, rows int, err error) {
	if l.writer == nil && l.file == nil {
		return "", 0, nil
	}

	var closeErr error
	if l.writer != nil {
		closeErr = l.writer.Close()
		l.writer = nil
	}
	var fileErr error
	if l.file != nil {
		_ = l.file.Sync()
		fileErr = l.file.Close()
		l.file = nil
	}
	if closeErr != nil {
		return "", 0, fmt.Errorf("close parquet writer: %w", closeErr)
	}
	if fileErr != nil {
		return "", 0, fmt.Errorf("close parquet file: %w", fileErr)
	}

	if l.rows == 0 {
		_ = os.Remove(l.tmpPath)
		return "", 0, nil
	}
	if err := os.Rename(l.tmpPath, l.outPath); err != nil {
		return "", 0, fmt.Errorf("rename parquet: %w", err)
	}
	return l.outPath, l.rows, nil
}

// ReadEpisodeLog loads every row of a finalized log.
func ReadEpisodeLog(path string) ([]EpisodeRow, error) {
	rows, err := parquet.ReadFile[EpisodeRow](path)
	if err != nil {
		return nil, fmt.Errorf("read episodes: %w", err)
	}
	return rows, nil
}
