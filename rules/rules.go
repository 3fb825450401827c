// Package rules implements the single-player Snake environment: the
// one-step transition shared by the simulator and the safety planner,
// reward shaping, and the 11-flag state discretization.
package rules

import (
	"github.com/brensch/snekrl/game"
)

// Move is the outcome of simulating one action on a board.
type Move struct {
	Action  game.Action
	Heading game.Direction
	Head    game.Point
	// Next is the board after the move. Nil when the move collides.
	Next     *game.Board
	Collided bool
	Ate      bool
}

// Advance simulates a on a copy of b. The input board is never modified.
// The tail cell is vacated unless the snake eats, so stepping into the
// current tail is legal.
func Advance(b *game.Board, a game.Action) Move {
	heading := a.Apply(b.Heading)
	head := b.Head().Add(heading)
	m := Move{Action: a, Heading: heading, Head: head}

	m.Ate = b.HasFood && head == b.Food
	if collides(b, head, m.Ate) {
		m.Collided = true
		return m
	}

	next := &game.Board{
		Width:   b.Width,
		Height:  b.Height,
		Heading: heading,
		Food:    b.Food,
		HasFood: b.HasFood,
	}
	keep := len(b.Snake) - 1
	if m.Ate {
		keep = len(b.Snake)
		next.HasFood = false
	}
	next.Snake = make([]game.Point, 0, keep+1)
	next.Snake = append(next.Snake, head)
	next.Snake = append(next.Snake, b.Snake[:keep]...)
	m.Next = next
	return m
}

// Collides reports whether taking a from b hits a wall or the body.
func Collides(b *game.Board, a game.Action) bool {
	head := b.Head().Add(a.Apply(b.Heading))
	return collides(b, head, b.HasFood && head == b.Food)
}

func collides(b *game.Board, p game.Point, growing bool) bool {
	if !b.InBounds(p) {
		return true
	}
	body := b.Snake
	if !growing {
		// Tail moves away this step.
		body = body[:len(body)-1]
	}
	for _, s := range body {
		if s == p {
			return true
		}
	}
	return false
}

// GetLegalActions returns the actions that do not collide immediately.
func GetLegalActions(b *game.Board) []game.Action {
	actions := make([]game.Action, 0, game.NumActions)
	for _, a := range game.Actions {
		if !Collides(b, a) {
			actions = append(actions, a)
		}
	}
	return actions
}
