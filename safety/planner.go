// Package safety looks one move ahead and flood-fills the board to catch
// moves that leave the snake boxed in.
package safety

import (
	"github.com/brensch/snekrl/game"
	"github.com/brensch/snekrl/rules"
)

// Assessment is the planner's view of one candidate action.
type Assessment struct {
	Action game.Action
	// Legal is false when the move hits a wall or the body.
	Legal bool
	Ate   bool
	// Wins is set when the move eats the last food on a full board.
	Wins bool
	Head game.Point
	// Length is the snake length after the move.
	Length int
	// Reachable counts free cells reachable from the new head, head excluded.
	Reachable int
	Safe      bool
}

// Planner is stateless and safe for concurrent use.
type Planner struct{}

func NewPlanner() *Planner { return &Planner{} }

// Assess simulates a on a copy of b and measures the room left.
// A move is safe only if it is legal and the reachable free space is at
// least the snake's length, which also rules out zero space.
func (p *Planner) Assess(b *game.Board, a game.Action) Assessment {
	m := rules.Advance(b, a)
	as := Assessment{Action: a, Head: m.Head, Ate: m.Ate}
	if m.Collided {
		return as
	}
	as.Legal = true
	as.Length = len(m.Next.Snake)
	as.Wins = m.Ate && m.Next.FreeCells() == 0

	blocked := make(map[game.Point]bool, len(m.Next.Snake))
	for _, s := range m.Next.Snake[1:] {
		blocked[s] = true
	}
	as.Reachable = FloodFill(m.Next, m.Head, blocked)
	as.Safe = as.Reachable >= 1 && as.Reachable >= as.Length
	return as
}

// IsSafe reports whether a keeps enough room to escape.
func (p *Planner) IsSafe(b *game.Board, a game.Action) bool {
	return p.Assess(b, a).Safe
}

// AssessAll assesses every action in index order.
func (p *Planner) AssessAll(b *game.Board) [game.NumActions]Assessment {
	var out [game.NumActions]Assessment
	for _, a := range game.Actions {
		out[a] = p.Assess(b, a)
	}
	return out
}

// LeastBad picks a fallback when nothing is safe: a winning move first,
// then legal over illegal, then the most reachable space. Ties go to the
// earliest action in order. It always returns an action.
func (p *Planner) LeastBad(b *game.Board, order []game.Action) game.Action {
	if len(order) == 0 {
		order = game.Actions[:]
	}
	best := p.Assess(b, order[0])
	for _, a := range order[1:] {
		as := p.Assess(b, a)
		if better(as, best) {
			best = as
		}
	}
	return best.Action
}

func better(a, b Assessment) bool {
	if a.Wins != b.Wins {
		return a.Wins
	}
	if a.Legal != b.Legal {
		return a.Legal
	}
	return a.Reachable > b.Reachable
}

// FloodFill counts in-bounds cells reachable from start through cells not
// in blocked. The start cell itself is not counted.
func FloodFill(b *game.Board, start game.Point, blocked map[game.Point]bool) int {
	if !b.InBounds(start) {
		return 0
	}
	visited := map[game.Point]bool{start: true}
	queue := []game.Point{start}
	count := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for d := game.Right; d <= game.Up; d++ {
			next := cur.Add(d)
			if !b.InBounds(next) || blocked[next] || visited[next] {
				continue
			}
			visited[next] = true
			count++
			queue = append(queue, next)
		}
	}
	return count
}

// DistanceToFood is the BFS path length from the head to the food with
// the body blocked, or -1 when the food is unreachable or absent.
func DistanceToFood(b *game.Board) int {
	if !b.HasFood {
		return -1
	}
	blocked := make(map[game.Point]bool, len(b.Snake))
	for _, s := range b.Snake[1:] {
		blocked[s] = true
	}
	start := b.Head()
	if start == b.Food {
		return 0
	}
	type node struct {
		p    game.Point
		dist int
	}
	visited := map[game.Point]bool{start: true}
	queue := []node{{p: start}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for d := game.Right; d <= game.Up; d++ {
			next := cur.p.Add(d)
			if !b.InBounds(next) || blocked[next] || visited[next] {
				continue
			}
			if next == b.Food {
				return cur.dist + 1
			}
			visited[next] = true
			queue = append(queue, node{p: next, dist: cur.dist + 1})
		}
	}
	return -1
}
