// Package game defines the board types for single-player Snake.
//
// These types carry the minimal state needed by the environment, the
// feature encoder and the safety planner. Boards are small and cloned
// freely when a move has to be simulated.
package game

import "fmt"

// Point is a board coordinate.
// (0,0) is top-left; Y grows downward.
type Point struct {
	X int
	Y int
}

// Add returns p moved one cell in direction d.
func (p Point) Add(d Direction) Point {
	dx, dy := d.Delta()
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Manhattan returns the L1 distance between two points.
func Manhattan(a, b Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Direction is an absolute heading. Values follow clockwise order.
type Direction uint8

const (
	Right Direction = iota
	Down
	Left
	Up
)

func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Right:
		return 1, 0
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	default:
		return 0, -1
	}
}

// Clockwise returns the heading after a right turn.
func (d Direction) Clockwise() Direction { return (d + 1) % 4 }

// CounterClockwise returns the heading after a left turn.
func (d Direction) CounterClockwise() Direction { return (d + 3) % 4 }

func (d Direction) String() string {
	switch d {
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	case Up:
		return "up"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// Action is a move relative to the current heading. Reversing is not
// representable.
type Action uint8

const (
	Straight Action = iota
	TurnRight
	TurnLeft
)

// NumActions is the width of every action-value vector.
const NumActions = 3

// Actions lists every action in index order.
var Actions = [NumActions]Action{Straight, TurnRight, TurnLeft}

// Valid reports whether a is one of the three relative moves.
func (a Action) Valid() bool { return a < NumActions }

// Apply returns the heading that results from taking a while facing d.
func (a Action) Apply(d Direction) Direction {
	switch a {
	case TurnRight:
		return d.Clockwise()
	case TurnLeft:
		return d.CounterClockwise()
	default:
		return d
	}
}

func (a Action) String() string {
	switch a {
	case Straight:
		return "straight"
	case TurnRight:
		return "right"
	case TurnLeft:
		return "left"
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// Cell tags one square of the board.
type Cell uint8

const (
	Empty Cell = iota
	Body
	Head
	Food
	Wall
)

// Board is the full single-snake game state.
// Snake is ordered head first: Snake[0] is the head, the last element is the tail.
// HasFood is false only once the board is full.
type Board struct {
	Width   int
	Height  int
	Snake   []Point
	Heading Direction
	Food    Point
	HasFood bool
}

// Head returns the head position.
func (b *Board) Head() Point { return b.Snake[0] }

// Tail returns the last body segment.
func (b *Board) Tail() Point { return b.Snake[len(b.Snake)-1] }

// InBounds reports whether p lies on the grid.
func (b *Board) InBounds(p Point) bool {
	return p.X >= 0 && p.X < b.Width && p.Y >= 0 && p.Y < b.Height
}

// Occupied reports whether any snake segment covers p.
func (b *Board) Occupied(p Point) bool {
	for _, s := range b.Snake {
		if s == p {
			return true
		}
	}
	return false
}

// CellAt tags p. Points off the grid are walls.
func (b *Board) CellAt(p Point) Cell {
	if !b.InBounds(p) {
		return Wall
	}
	for i, s := range b.Snake {
		if s == p {
			if i == 0 {
				return Head
			}
			return Body
		}
	}
	if b.HasFood && b.Food == p {
		return Food
	}
	return Empty
}

// Cells returns the board as rows of cell tags, indexed [y][x].
func (b *Board) Cells() [][]Cell {
	grid := make([][]Cell, b.Height)
	for y := range grid {
		grid[y] = make([]Cell, b.Width)
	}
	if b.HasFood && b.InBounds(b.Food) {
		grid[b.Food.Y][b.Food.X] = Food
	}
	for i := len(b.Snake) - 1; i >= 0; i-- {
		p := b.Snake[i]
		if !b.InBounds(p) {
			continue
		}
		if i == 0 {
			grid[p.Y][p.X] = Head
		} else {
			grid[p.Y][p.X] = Body
		}
	}
	return grid
}

// FreeCells counts cells not covered by the snake.
func (b *Board) FreeCells() int {
	return b.Width*b.Height - len(b.Snake)
}

// Clone performs a deep copy of the board.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := *b
	if len(b.Snake) > 0 {
		out.Snake = make([]Point, len(b.Snake))
		copy(out.Snake, b.Snake)
	}
	return &out
}

// Validate checks the structural invariants of the board: one head on
// the grid, a body that is a simple path of adjacent cells, and food on
// a free cell.
func (b *Board) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("board %dx%d: non-positive size", b.Width, b.Height)
	}
	if len(b.Snake) == 0 {
		return fmt.Errorf("board has no snake")
	}
	seen := make(map[Point]bool, len(b.Snake))
	for i, p := range b.Snake {
		if !b.InBounds(p) {
			return fmt.Errorf("segment %d at %v is off the board", i, p)
		}
		if seen[p] {
			return fmt.Errorf("segment %d at %v overlaps the body", i, p)
		}
		seen[p] = true
		if i > 0 && Manhattan(p, b.Snake[i-1]) != 1 {
			return fmt.Errorf("segment %d at %v is not adjacent to %v", i, p, b.Snake[i-1])
		}
	}
	if b.HasFood {
		if !b.InBounds(b.Food) {
			return fmt.Errorf("food at %v is off the board", b.Food)
		}
		if seen[b.Food] {
			return fmt.Errorf("food at %v is under the snake", b.Food)
		}
	}
	return nil
}
