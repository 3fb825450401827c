package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/brensch/snekrl/qtable"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const qtableSchema = "qtable_v1"

// QRow is one state of a parquet checkpoint.
type QRow struct {
	StateKey string  `parquet:"state_key" json:"state_key"`
	Straight float64 `parquet:"straight" json:"straight"`
	Right    float64 `parquet:"right" json:"right"`
	Left     float64 `parquet:"left" json:"left"`
}

func writeParquet(tmpPath string, cp *Checkpoint) error {
	meta, err := json.Marshal(cp.Meta)
	if err != nil {
		return fmt.Errorf("encode checkpoint meta: %w", err)
	}

	keys := cp.Table.Keys()
	rows := make([]QRow, 0, len(keys))
	for _, k := range keys {
		v := cp.Table.Get(k)
		rows = append(rows, QRow{StateKey: k, Straight: v[0], Right: v[1], Left: v[2]})
	}

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", qtableSchema),
		parquet.KeyValueMetadata("meta", string(meta)),
	); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}

func readParquet(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat checkpoint: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if schema, _ := pf.Lookup("schema"); schema != qtableSchema {
		return nil, fmt.Errorf("%w: %s: schema %q, want %q", ErrCorrupt, path, schema, qtableSchema)
	}

	cp := &Checkpoint{Table: qtable.New()}
	if raw, ok := pf.Lookup("meta"); ok {
		if err := json.Unmarshal([]byte(raw), &cp.Meta); err != nil {
			return nil, fmt.Errorf("%w: %s: meta: %v", ErrCorrupt, path, err)
		}
	}

	reader := parquet.NewGenericReader[QRow](pf)
	defer reader.Close()

	buf := make([]QRow, 512)
	for {
		n, err := reader.Read(buf)
		for _, r := range buf[:n] {
			if cp.Table.Has(r.StateKey) {
				return nil, fmt.Errorf("%w: %s: duplicate state %q", ErrCorrupt, path, r.StateKey)
			}
			v, verr := qtable.ToValues([]float64{r.Straight, r.Right, r.Left})
			if verr != nil {
				return nil, fmt.Errorf("%w: %s: state %q: %v", ErrCorrupt, path, r.StateKey, verr)
			}
			cp.Table.Set(r.StateKey, v)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
		}
		if n == 0 {
			break
		}
	}
	return cp, nil
}
