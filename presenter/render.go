// render.go - ASCII rendering of frames for terminals and logs.

package presenter

import (
	"fmt"
	"strings"

	"github.com/brensch/snekrl/game"
)

// Glyphs used in frame rows.
const (
	GlyphEmpty = '.'
	GlyphBody  = 'o'
	GlyphHead  = 'O'
	GlyphFood  = 'F'
)

// ControlsHelp lists the key bindings shown under the board.
const ControlsHelp = "controls: Space pause | R restart | M mode | +/- speed | Q quit"

// BoardRows renders b one string per row, top row first.
func BoardRows(b *game.Board) []string {
	rows := make([]string, 0, b.Height)
	for _, line := range b.Cells() {
		var sb strings.Builder
		sb.Grow(len(line))
		for _, c := range line {
			switch c {
			case game.Body:
				sb.WriteByte(GlyphBody)
			case game.Head:
				sb.WriteByte(GlyphHead)
			case game.Food:
				sb.WriteByte(GlyphFood)
			default:
				sb.WriteByte(GlyphEmpty)
			}
		}
		rows = append(rows, sb.String())
	}
	return rows
}

// HUD is the status line for a frame.
func HUD(f Frame) string {
	mode := strings.ToUpper(f.Mode)
	line := fmt.Sprintf("score %d   best %d   len %d   episode %d   mode %s   tick %dms",
		f.Score, f.Best, f.Length, f.Episode, mode, f.SpeedMS)
	if f.Paused {
		line += "   PAUSED"
	}
	return line
}

// Status is the secondary line: last outcome and decision.
func Status(f Frame) string {
	parts := []string{"status: " + f.Reason}
	if f.Action != "" {
		a := "action: " + f.Action
		if f.Fallback {
			a += " (fallback)"
		}
		parts = append(parts, a)
	}
	if f.FoodDistance >= 0 {
		parts = append(parts, fmt.Sprintf("food: %d", f.FoodDistance))
	}
	return strings.Join(parts, "   ")
}

// Render draws a framed board followed by the HUD lines.
func Render(f Frame) string {
	var sb strings.Builder
	border := "+" + strings.Repeat("-", f.Width*2) + "+\n"
	sb.WriteString(border)
	for _, row := range f.Rows {
		sb.WriteByte('|')
		for i := 0; i < len(row); i++ {
			sb.WriteByte(row[i])
			sb.WriteByte(' ')
		}
		sb.WriteString("|\n")
	}
	sb.WriteString(border)
	sb.WriteString(HUD(f))
	sb.WriteByte('\n')
	sb.WriteString(Status(f))
	sb.WriteByte('\n')
	return sb.String()
}
