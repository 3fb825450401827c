// Package qtable stores tabular action values keyed by encoded state.
//
// Reads are pure: looking up a state that was never updated returns a
// zero vector and leaves the table unchanged. Entries exist only for
// states that have been written through Update or Set.
package qtable

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/brensch/snekrl/game"
)

// Values is one action-value vector, indexed by game.Action.
type Values [game.NumActions]float64

// Table is a sparse Q-table. The zero value is not usable; call New.
type Table struct {
	entries map[string]Values
}

func New() *Table {
	return &Table{entries: make(map[string]Values)}
}

// Get returns the values for key, zeros if absent.
func (t *Table) Get(key string) Values {
	return t.entries[key]
}

// Has reports whether key has an entry.
func (t *Table) Has(key string) bool {
	_, ok := t.entries[key]
	return ok
}

// Set replaces the vector stored for key.
func (t *Table) Set(key string, v Values) {
	t.entries[key] = v
}

// Delete drops key; later reads see zeros again.
func (t *Table) Delete(key string) {
	delete(t.entries, key)
}

// Update moves Q[key,a] toward target by alpha and returns the new value.
// No other entry is touched.
func (t *Table) Update(key string, a game.Action, target, alpha float64) float64 {
	v := t.entries[key]
	v[a] += alpha * (target - v[a])
	t.entries[key] = v
	return v[a]
}

// Max returns the largest value for key.
func (t *Table) Max(key string) float64 {
	v := t.entries[key]
	m := v[0]
	for _, q := range v[1:] {
		if q > m {
			m = q
		}
	}
	return m
}

// Best returns the argmax action, lowest index on ties.
func (t *Table) Best(key string) game.Action {
	return t.Rank(key)[0]
}

// Rank orders the actions by value, highest first, lowest index on ties.
func (t *Table) Rank(key string) [game.NumActions]game.Action {
	return RankValues(t.entries[key])
}

// RankValues orders the actions of v by value, highest first, lowest index on ties.
func RankValues(v Values) [game.NumActions]game.Action {
	order := game.Actions
	sort.SliceStable(order[:], func(i, j int) bool {
		return v[order[i]] > v[order[j]]
	})
	return order
}

// Len is the number of stored states.
func (t *Table) Len() int { return len(t.entries) }

// Keys returns the stored keys in sorted order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	out := &Table{entries: make(map[string]Values, len(t.entries))}
	for k, v := range t.entries {
		out.entries[k] = v
	}
	return out
}

// Equal reports whether both tables answer every lookup identically.
// A missing entry equals a zero vector.
func (t *Table) Equal(other *Table) bool {
	for k, v := range t.entries {
		if other.Get(k) != v {
			return false
		}
	}
	for k, v := range other.entries {
		if t.Get(k) != v {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the table as {"key": [v0, v1, v2]} with sorted keys.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.entries)
}

// UnmarshalJSON replaces the table contents. Vectors must have exactly
// three finite values.
func (t *Table) UnmarshalJSON(data []byte) error {
	var raw map[string][]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("table is null")
	}
	entries := make(map[string]Values, len(raw))
	for k, ptrs := range raw {
		vals := make([]float64, len(ptrs))
		for i, p := range ptrs {
			if p == nil {
				return fmt.Errorf("state %q: value %d is null", k, i)
			}
			vals[i] = *p
		}
		v, err := ToValues(vals)
		if err != nil {
			return fmt.Errorf("state %q: %w", k, err)
		}
		entries[k] = v
	}
	t.entries = entries
	return nil
}

// ToValues checks and converts a decoded vector.
func ToValues(vals []float64) (Values, error) {
	var v Values
	if len(vals) != game.NumActions {
		return v, fmt.Errorf("%d values, want %d", len(vals), game.NumActions)
	}
	for i, q := range vals {
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return v, fmt.Errorf("value %d is not finite", i)
		}
		v[i] = q
	}
	return v, nil
}
