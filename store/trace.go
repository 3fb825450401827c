package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const traceSchema = "trace_v1"

// TraceRow is one decision of a traced episode: the board before the move,
// what the table and planner said, and what happened.
type TraceRow struct {
	Step     int32  `parquet:"step" json:"step"`
	StateKey string `parquet:"state_key,dict" json:"state_key"`
	Heading  string `parquet:"heading,dict" json:"heading"`
	HeadX    int32  `parquet:"head_x" json:"head_x"`
	HeadY    int32  `parquet:"head_y" json:"head_y"`
	Length   int32  `parquet:"length" json:"length"`
	FoodX    int32  `parquet:"food_x" json:"food_x"`
	FoodY    int32  `parquet:"food_y" json:"food_y"`

	// Q-values and planner verdicts, indexed straight, right, left.
	Q         []float64 `parquet:"q" json:"q"`
	Safe      []bool    `parquet:"safe" json:"safe"`
	Reachable []int32   `parquet:"reachable" json:"reachable"`

	Action   string  `parquet:"action,dict" json:"action"`
	Mode     string  `parquet:"mode,dict" json:"mode"`
	Fallback bool    `parquet:"fallback" json:"fallback"`
	Reward   float64 `parquet:"reward" json:"reward"`
	Score    int32   `parquet:"score" json:"score"`
	Outcome  string  `parquet:"outcome,dict" json:"outcome"`
}

// WriteTrace writes rows to outDir/trace_<runID>_<ns>.parquet and returns
// the path.
func WriteTrace(outDir, runID string, rows []TraceRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	name := fmt.Sprintf("trace_%s_%d.parquet", runID, time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := finalPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", traceSchema),
		parquet.KeyValueMetadata("run_id", runID),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}

func ReadTrace(path string) ([]TraceRow, error) {
	rows, err := parquet.ReadFile[TraceRow](path)
	if err != nil {
		return nil, fmt.Errorf("%w: read trace %s: %v", ErrCorrupt, path, err)
	}
	return rows, nil
}
