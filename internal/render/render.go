// Package render draws a board overlay as plain text for terminal play.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/DoyleJ11/quoridor-client/internal/engine"
)

// Glyphs
const (
	upPawn    = 'U'
	downPawn  = 'D'
	empty     = '.'
	legal     = 'o'
	blocked   = 'x'
	wallSpot  = '+'
	vWall     = '|'
	hWall     = "---"
	noHWall   = "   "
	separator = ' '
)

// Board writes the 9x9 grid for s with hover feedback for mode, followed by a
// status line. me marks which pawn is the local player's.
func Board(w io.Writer, s engine.State, mode engine.Mode, me string) error {
	_, err := io.WriteString(w, String(s, mode, me))
	return err
}

func String(s engine.State, mode engine.Mode, me string) string {
	g := engine.Overlay(s, mode)
	var b strings.Builder

	b.WriteString("   ")
	for c := 0; c < engine.BoardSize; c++ {
		fmt.Fprintf(&b, " %d  ", c)
	}
	b.WriteByte('\n')

	for r := 0; r < engine.BoardSize; r++ {
		fmt.Fprintf(&b, "%d  ", r)
		for c := 0; c < engine.BoardSize; c++ {
			t := g[r][c]
			b.WriteByte(' ')
			b.WriteRune(glyph(s, t))
			b.WriteByte(' ')
			if c < engine.LastIndex {
				if t.Borders.Has(engine.BorderRight) {
					b.WriteRune(vWall)
				} else {
					b.WriteRune(separator)
				}
			}
		}
		b.WriteByte('\n')

		if r == engine.LastIndex {
			break
		}
		b.WriteString("   ")
		for c := 0; c < engine.BoardSize; c++ {
			bottom := g[r][c].Borders.Has(engine.BorderBottom)
			if bottom {
				b.WriteString(hWall)
			} else {
				b.WriteString(noHWall)
			}
			if c < engine.LastIndex {
				if bottom && g[r][c+1].Borders.Has(engine.BorderBottom) {
					b.WriteByte('-')
				} else {
					b.WriteRune(separator)
				}
			}
		}
		b.WriteByte('\n')
	}

	b.WriteString(Status(s, me))
	b.WriteByte('\n')
	return b.String()
}

func glyph(s engine.State, t engine.Tile) rune {
	switch {
	case t.Pawn != "" && t.Pawn == s.FirstPlayer:
		return upPawn
	case t.Pawn != "" && t.Pawn == s.SecondPlayer:
		return downPawn
	case t.Wall:
		return wallSpot
	case t.Hover == engine.HoverLegal:
		return legal
	case t.Hover == engine.HoverBlocked:
		return blocked
	}
	return empty
}

// Status is the one-line summary under the grid.
func Status(s engine.State, me string) string {
	if s.FirstPlayer == "" {
		return "waiting for board..."
	}
	if s.Finished() {
		if s.Winner == me {
			return "game over: you won"
		}
		return fmt.Sprintf("game over: %s won", s.Winner)
	}
	who := s.Current
	if who == me {
		who = "you"
	}
	mode := ""
	if s.OnlyPlayerMovesAllowed {
		mode = ", pawn moves only"
	}
	return fmt.Sprintf("turn %d, %s to play | walls U:%d D:%d%s",
		s.Turn, who, s.FirstWalls, s.SecondWalls, mode)
}
