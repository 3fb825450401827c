package safety

import (
	"math/rand"
	"testing"

	"github.com/brensch/snekrl/game"
	"github.com/brensch/snekrl/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func board(w, h int, heading game.Direction, food game.Point, snake ...game.Point) *game.Board {
	return &game.Board{Width: w, Height: h, Heading: heading, Food: food, HasFood: true, Snake: snake}
}

func pt(x, y int) game.Point { return game.Point{X: x, Y: y} }

func TestAssess_OpenBoardAllSafe(t *testing.T) {
	b := board(12, 12, game.Right, pt(0, 0), pt(6, 6), pt(5, 6), pt(4, 6))
	p := NewPlanner()
	for _, a := range game.Actions {
		as := p.Assess(b, a)
		assert.True(t, as.Legal, a)
		assert.True(t, as.Safe, a)
		assert.Equal(t, 3, as.Length)
		// 144 cells minus the three body cells after the move.
		assert.Equal(t, 141, as.Reachable, a)
	}
}

func TestAssess_WallIsIllegal(t *testing.T) {
	b := board(5, 5, game.Right, pt(0, 0), pt(4, 2), pt(3, 2), pt(2, 2))
	as := NewPlanner().Assess(b, game.Straight)
	assert.False(t, as.Legal)
	assert.False(t, as.Safe)
	assert.Zero(t, as.Reachable)
}

func TestAssess_PocketSmallerThanSnakeIsUnsafe(t *testing.T) {
	// Turning left enters a two-cell pocket walled off by the body.
	b := board(6, 6, game.Up, pt(5, 5),
		pt(1, 0), pt(1, 1), pt(1, 2), pt(0, 2), pt(0, 3), pt(1, 3))
	require.NoError(t, b.Validate())
	p := NewPlanner()

	left := p.Assess(b, game.TurnLeft)
	assert.True(t, left.Legal)
	assert.Equal(t, 1, left.Reachable)
	assert.False(t, left.Safe)

	right := p.Assess(b, game.TurnRight)
	assert.True(t, right.Safe)
	assert.False(t, p.IsSafe(b, game.Straight))
}

func TestAssess_ZeroReachableNeverSafe(t *testing.T) {
	b := board(6, 6, game.Up, pt(5, 5),
		pt(1, 0), pt(1, 1), pt(0, 1), pt(0, 2), pt(1, 2))
	require.NoError(t, b.Validate())

	as := NewPlanner().Assess(b, game.TurnLeft)
	assert.True(t, as.Legal)
	assert.Zero(t, as.Reachable)
	assert.False(t, as.Safe)
}

func TestAssess_DoesNotMutateBoard(t *testing.T) {
	b := board(6, 6, game.Right, pt(4, 3), pt(3, 3), pt(2, 3), pt(1, 3))
	before := b.Clone()
	p := NewPlanner()
	for _, a := range game.Actions {
		p.Assess(b, a)
	}
	assert.Equal(t, before, b)
}

func TestAssess_LastFoodWins(t *testing.T) {
	// 4x4 board filled in serpentine order except the final cell, which holds food.
	var path []game.Point
	for y := 0; y < 4; y++ {
		for i := 0; i < 4; i++ {
			x := i
			if y%2 == 1 {
				x = 3 - i
			}
			path = append(path, pt(x, y))
		}
	}
	var snake []game.Point
	for i := 14; i >= 0; i-- {
		snake = append(snake, path[i])
	}
	b := board(4, 4, game.Left, path[15], snake...)
	p := NewPlanner()

	as := p.Assess(b, game.Straight)
	assert.True(t, as.Wins)
	assert.True(t, as.Ate)
	assert.False(t, as.Safe)
	assert.Equal(t, game.Straight, p.LeastBad(b, []game.Action{game.TurnLeft, game.TurnRight, game.Straight}))
}

func TestLeastBad_PrefersLegalThenSpace(t *testing.T) {
	b := board(6, 6, game.Up, pt(5, 5),
		pt(1, 0), pt(1, 1), pt(1, 2), pt(0, 2), pt(0, 3), pt(1, 3))
	p := NewPlanner()

	// Straight hits the wall; the pocket is bad but survivable for a step.
	assert.Equal(t, game.TurnLeft, p.LeastBad(b, []game.Action{game.Straight, game.TurnLeft}))
	assert.Equal(t, game.TurnRight, p.LeastBad(b, nil))
}

func TestLeastBad_TiesFollowOrder(t *testing.T) {
	b := board(12, 12, game.Right, pt(0, 0), pt(6, 6), pt(5, 6), pt(4, 6))
	p := NewPlanner()
	assert.Equal(t, game.TurnLeft, p.LeastBad(b, []game.Action{game.TurnLeft, game.Straight, game.TurnRight}))
	assert.Equal(t, game.TurnRight, p.LeastBad(b, []game.Action{game.TurnRight, game.TurnLeft}))
}

func TestAssess_SafeImpliesRoom(t *testing.T) {
	env, err := rules.NewEnvironment(rules.Config{Width: 7, Height: 7, Rewards: rules.DefaultRewards}, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(8))
	p := NewPlanner()

	for ep := 0; ep < 100; ep++ {
		env.Reset()
		for !env.Done() {
			b := env.Board()
			for _, as := range p.AssessAll(b) {
				if as.Safe {
					require.True(t, as.Legal)
					require.GreaterOrEqual(t, as.Reachable, 1)
					require.GreaterOrEqual(t, as.Reachable, as.Length)
				}
			}
			_, err := env.Step(game.Actions[rng.Intn(game.NumActions)])
			require.NoError(t, err)
		}
	}
}

func TestFloodFill_CountsExcludingStart(t *testing.T) {
	b := &game.Board{Width: 3, Height: 3}
	assert.Equal(t, 8, FloodFill(b, pt(1, 1), nil))
	blocked := map[game.Point]bool{pt(1, 0): true, pt(1, 1): true, pt(1, 2): true}
	assert.Equal(t, 2, FloodFill(b, pt(0, 0), blocked))
	assert.Zero(t, FloodFill(b, pt(-1, 0), nil))
}

func TestDistanceToFood(t *testing.T) {
	b := board(5, 5, game.Right, pt(4, 2), pt(2, 2), pt(1, 2), pt(0, 2))
	assert.Equal(t, 2, DistanceToFood(b))

	// Food behind the body routes around it.
	b = board(5, 5, game.Right, pt(0, 1), pt(2, 1), pt(1, 1), pt(1, 2))
	assert.Equal(t, 4, DistanceToFood(b))

	b.HasFood = false
	assert.Equal(t, -1, DistanceToFood(b))
}
