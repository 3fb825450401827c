package rules

import (
	"fmt"
	"strings"

	"github.com/brensch/snekrl/game"
)

// NumFeatures is the length of the discretized state.
const NumFeatures = 11

// Feature indices.
const (
	DangerStraight = iota
	DangerRight
	DangerLeft
	MovingLeft
	MovingRight
	MovingUp
	MovingDown
	FoodLeft
	FoodRight
	FoodUp
	FoodDown
)

// Features is the binary state vector seen by the learner. Boards that
// share features are the same state to the table.
type Features [NumFeatures]uint8

// Discretize encodes b relative to its heading. It is a pure function of
// the board.
func Discretize(b *game.Board) Features {
	var f Features
	f[DangerStraight] = flag(Collides(b, game.Straight))
	f[DangerRight] = flag(Collides(b, game.TurnRight))
	f[DangerLeft] = flag(Collides(b, game.TurnLeft))

	f[MovingLeft] = flag(b.Heading == game.Left)
	f[MovingRight] = flag(b.Heading == game.Right)
	f[MovingUp] = flag(b.Heading == game.Up)
	f[MovingDown] = flag(b.Heading == game.Down)

	if b.HasFood {
		head := b.Head()
		f[FoodLeft] = flag(b.Food.X < head.X)
		f[FoodRight] = flag(b.Food.X > head.X)
		f[FoodUp] = flag(b.Food.Y < head.Y)
		f[FoodDown] = flag(b.Food.Y > head.Y)
	}
	return f
}

func flag(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

// Key encodes the features as "1|0|0|...".
func (f Features) Key() string {
	var sb strings.Builder
	sb.Grow(2*NumFeatures - 1)
	for i, v := range f {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteByte('0' + v)
	}
	return sb.String()
}

func (f Features) String() string { return f.Key() }

// ParseKey decodes a key produced by Features.Key.
func ParseKey(key string) (Features, error) {
	var f Features
	parts := strings.Split(key, "|")
	if len(parts) != NumFeatures {
		return f, fmt.Errorf("state key %q: %d flags, want %d", key, len(parts), NumFeatures)
	}
	for i, p := range parts {
		switch p {
		case "0":
		case "1":
			f[i] = 1
		default:
			return f, fmt.Errorf("state key %q: flag %d is %q", key, i, p)
		}
	}
	return f, nil
}
