// food.go implements food placement for single-player Snake.

package game

import (
	"errors"
	"math/rand"
)

// ErrBoardFull is returned when food is requested and no free cell remains.
var ErrBoardFull = errors.New("no free cell for food")

// FreeSpots lists every cell not covered by the snake, row by row.
func FreeSpots(b *Board) []Point {
	occupied := make(map[Point]bool, len(b.Snake))
	for _, p := range b.Snake {
		occupied[p] = true
	}
	free := make([]Point, 0, b.Width*b.Height-len(occupied))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			p := Point{X: x, Y: y}
			if !occupied[p] {
				free = append(free, p)
			}
		}
	}
	return free
}

// PlaceFood puts one food on a free cell chosen uniformly at random.
// If rng is nil, the cell is picked by a deterministic hash of the snake
// length. On a full board the food is cleared and ErrBoardFull returned.
func PlaceFood(b *Board, rng *rand.Rand) error {
	free := FreeSpots(b)
	if len(free) == 0 {
		b.HasFood = false
		b.Food = Point{X: -1, Y: -1}
		return ErrBoardFull
	}
	var idx int
	if rng != nil {
		idx = rng.Intn(len(free))
	} else {
		idx = int(deterministicU64Fast(uint64(len(b.Snake)), uint64(b.Width*b.Height)) % uint64(len(free)))
	}
	b.Food = free[idx]
	b.HasFood = true
	return nil
}

// deterministicU64Fast is a splitmix64 variant for rng-free placement.
func deterministicU64Fast(a, b uint64) uint64 {
	x := a + b
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
