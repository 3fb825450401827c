package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brensch/snekrl/qtable"
	"github.com/brensch/snekrl/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCheckpoint() *Checkpoint {
	table := qtable.New()
	table.Set("1|0|0|0|1|0|0|1|0|1|0", qtable.Values{0.5, -1.25, 3})
	table.Set("0|0|0|0|0|1|0|0|1|0|1", qtable.Values{-12, 0, 1e-9})
	table.Set("0|1|1|1|0|0|0|0|0|0|0", qtable.Values{})
	return &Checkpoint{
		Meta: Meta{
			EpisodesTrained: 1200,
			Width:           12,
			Height:          12,
			Hyperparameters: Hyperparameters{
				Alpha: 0.1, Gamma: 0.95, EpsilonStart: 1, EpsilonEnd: 0.05,
				Schedule: "linear", Episodes: 5000, Seed: 42, Rewards: rules.DefaultRewards,
			},
		},
		Table: table,
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	for _, name := range []string{"q.parquet", "q.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cp := sampleCheckpoint()
			require.NoError(t, Save(path, cp))
			assert.NotEmpty(t, cp.RunID)

			_, err := os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err), "tmp file left behind")

			got, err := Load(path, LoadOptions{Width: 12, Height: 12})
			require.NoError(t, err)
			assert.True(t, got.Table.Equal(cp.Table))
			assert.Equal(t, cp.Table.Keys(), got.Table.Keys())
			for _, k := range cp.Table.Keys() {
				assert.Equal(t, cp.Table.Get(k), got.Table.Get(k), k)
			}
			assert.Equal(t, cp.RunID, got.RunID)
			assert.Equal(t, 1200, got.EpisodesTrained)
			assert.Equal(t, cp.Hyperparameters, got.Hyperparameters)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.parquet")

	_, err := Load(path, LoadOptions{})
	require.ErrorIs(t, err, ErrNotFound)

	cp, err := Load(path, LoadOptions{Fresh: true})
	require.NoError(t, err)
	assert.Equal(t, 0, cp.Table.Len())
	assert.Equal(t, 0, cp.EpisodesTrained)
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"garbage.parquet": "not a parquet file",
		"garbage.json":    "{nope",
		"short.json":      `{"1|0|0|0|1|0|0|1|0|1|0": [1, 2]}`,
		"badkey.json":     `{"q_table": {"1|0|2": [1, 2, 3]}}`,
		"negative.json":   `{"episodes_trained": -1, "q_table": {}}`,
		"nulltable.json":  `{"episodes_trained": 900, "q_table": null}`,
		"nullvalue.json":  `{"q_table": {"1|0|0|0|1|0|0|1|0|1|0": [1, null, 2]}}`,
		"nullvector.json": `{"1|0|0|0|1|0|0|1|0|1|0": null}`,
		"null.json":       `null`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path, LoadOptions{Fresh: true})
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestLoad_ShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.parquet")
	require.NoError(t, Save(path, sampleCheckpoint()))

	_, err := Load(path, LoadOptions{Width: 10, Height: 10})
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Load(path, LoadOptions{})
	require.NoError(t, err)
}

func TestLoad_LegacyBareTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q_table.json")
	body := `{
  "1|0|0|0|1|0|0|1|0|1|0": [0.25, -3.5, 1.0],
  "0|0|0|1|0|0|0|1|0|0|0": [0.0, 0.0, 0.0]
}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cp, err := Load(path, LoadOptions{Width: 12, Height: 12})
	require.NoError(t, err)
	assert.Equal(t, 2, cp.Table.Len())
	assert.Equal(t, qtable.Values{0.25, -3.5, 1}, cp.Table.Get("1|0|0|0|1|0|0|1|0|1|0"))
	assert.Equal(t, 0, cp.EpisodesTrained)
}

func TestEpisodeLog_WriteFinalizeRead(t *testing.T) {
	dir := t.TempDir()
	log, err := NewEpisodeLog(dir, "run-1")
	require.NoError(t, err)

	rows := []EpisodeRow{
		{RunID: "run-1", Episode: 1, Score: 0, Steps: 12, Reward: -12.4, Epsilon: 1, Outcome: "collision", States: 10},
		{RunID: "run-1", Episode: 2, Score: 3, Steps: 80, Reward: 31.2, Epsilon: 0.99, Outcome: "stuck", States: 25},
	}
	require.NoError(t, log.Write(rows[0]))
	require.NoError(t, log.Write(rows[1]))

	out, n, err := log.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, filepath.Join(dir, "episodes_run-1.parquet"), out)

	got, err := ReadEpisodeLog(out)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	require.Error(t, log.Write(rows[0]))
}

func TestEpisodeLog_EmptyIsRemoved(t *testing.T) {
	dir := t.TempDir()
	log, err := NewEpisodeLog(dir, "empty")
	require.NoError(t, err)

	out, n, err := log.Finalize()
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, n)

	entries, err := os.ReadDir(filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrace_WriteRead(t *testing.T) {
	dir := t.TempDir()
	rows := []TraceRow{
		{
			Step: 0, StateKey: "0|0|0|0|0|0|1|0|0|1|0", Heading: "right",
			HeadX: 6, HeadY: 6, Length: 3, FoodX: 9, FoodY: 2,
			Q: []float64{0.4, -1, 0}, Safe: []bool{true, true, true}, Reachable: []int32{140, 140, 140},
			Action: "straight", Mode: "hybrid", Reward: 0.17, Score: 0, Outcome: "running",
		},
		{
			Step: 1, StateKey: "1|0|0|0|0|0|1|0|0|1|0", Heading: "right",
			HeadX: 7, HeadY: 6, Length: 3, FoodX: 9, FoodY: 2,
			Q: []float64{0, 0, 0}, Safe: []bool{false, true, true}, Reachable: []int32{0, 140, 140},
			Action: "right", Mode: "hybrid", Fallback: false, Reward: -12, Score: 0, Outcome: "collision",
		},
	}

	path, err := WriteTrace(dir, "run-1", rows)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	back, err := ReadTrace(path)
	require.NoError(t, err)
	assert.Equal(t, rows, back)
}
