package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/brensch/snekrl/qtable"
)

type jsonDoc struct {
	Meta
	QTable *qtable.Table `json:"q_table"`
}

func writeJSON(tmpPath string, cp *Checkpoint) error {
	data, err := json.MarshalIndent(jsonDoc{Meta: cp.Meta, QTable: cp.Table}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// readJSON accepts the full document or a bare {"key": [..]} table.
func readJSON(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	if probe == nil {
		return nil, fmt.Errorf("%w: %s: document is null", ErrCorrupt, path)
	}

	cp := &Checkpoint{Table: qtable.New()}
	rawTable, ok := probe["q_table"]
	if !ok {
		if err := json.Unmarshal(data, cp.Table); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
		}
		return cp, nil
	}

	if string(bytes.TrimSpace(rawTable)) == "null" {
		return nil, fmt.Errorf("%w: %s: q_table is null", ErrCorrupt, path)
	}

	doc := jsonDoc{QTable: cp.Table}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	cp.Meta = doc.Meta
	return cp, nil
}
