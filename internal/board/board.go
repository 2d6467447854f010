// Package board holds the client's copy of the authoritative match state.
package board

import (
	"fmt"

	"github.com/DoyleJ11/quoridor-client/internal/engine"
	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

// Model is owned by a single goroutine (the session loop) and is not safe for
// concurrent use.
type Model struct {
	state engine.State
	ok    bool
}

// ApplyServerFrame replaces the current state wholesale. No legality checks
// happen here: the server already decided. Frames are assumed to arrive in
// order, so no staleness detection is attempted.
func (m *Model) ApplyServerFrame(f types.Frame) engine.State {
	m.state = FromFrame(f)
	m.ok = true
	return m.State()
}

// State returns a copy of the current board. Before the first frame it is
// the zero State; check Loaded.
func (m *Model) State() engine.State {
	return m.state.Clone()
}

func (m *Model) Loaded() bool { return m.ok }

func (m *Model) Clear() {
	m.state = engine.State{}
	m.ok = false
}

func FromFrame(f types.Frame) engine.State {
	s := engine.State{
		FirstPlayer:            f.UpPlayer,
		SecondPlayer:           f.DownPlayer,
		FirstPosition:          cell(f.Game.UpPlayer),
		SecondPosition:         cell(f.Game.DownPlayer),
		FirstWalls:             f.Game.UpPlayerFreeWalls,
		SecondWalls:            f.Game.DownPlayerFreeWalls,
		VerticalWalls:          cells(f.Game.VerticalWalls),
		HorizontalWalls:        cells(f.Game.HorizontalWalls),
		Turn:                   f.Turn,
		Current:                f.Current,
		OnlyPlayerMovesAllowed: f.OnlyPlayerMovesAllowed,
	}
	if f.Winner != nil {
		s.Winner = *f.Winner
	}
	return s
}

// ToFrame is the inverse of FromFrame; the local server uses it to publish.
func ToFrame(s engine.State) types.Frame {
	f := types.Frame{
		UpPlayer:   s.FirstPlayer,
		DownPlayer: s.SecondPlayer,
		Game: types.GameFrame{
			UpPlayer:            types.Cell{s.FirstPosition.Row, s.FirstPosition.Col},
			DownPlayer:          types.Cell{s.SecondPosition.Row, s.SecondPosition.Col},
			UpPlayerFreeWalls:   s.FirstWalls,
			DownPlayerFreeWalls: s.SecondWalls,
			VerticalWalls:       toCells(s.VerticalWalls),
			HorizontalWalls:     toCells(s.HorizontalWalls),
		},
		Turn:                   s.Turn,
		Current:                s.Current,
		OnlyPlayerMovesAllowed: s.OnlyPlayerMovesAllowed,
	}
	if s.Winner != "" {
		w := s.Winner
		f.Winner = &w
	}
	return f
}

func cell(c types.Cell) engine.Position {
	return engine.Position{Row: c.Row(), Col: c.Col()}
}

func cells(cs []types.Cell) []engine.Position {
	if len(cs) == 0 {
		return nil
	}
	out := make([]engine.Position, 0, len(cs))
	for _, c := range cs {
		out = append(out, cell(c))
	}
	return out
}

func toCells(ps []engine.Position) []types.Cell {
	out := make([]types.Cell, 0, len(ps))
	for _, p := range ps {
		out = append(out, types.Cell{p.Row, p.Col})
	}
	return out
}

// Decode parses one inbound game frame without touching the model.
func Decode(data []byte) (types.Frame, error) {
	return types.DecodeFrame(data)
}

// MoveOf encodes a command in its wire shape.
func MoveOf(cmd engine.Command) types.PlayerMove {
	if cmd.Type == engine.CmdConcede {
		return types.PlayerMove{Kind: types.MoveConcede}
	}
	return types.PlayerMove{Kind: string(cmd.Type), Row: cmd.At.Row, Col: cmd.At.Col}
}

// CommandOf is the inverse of MoveOf.
func CommandOf(m types.PlayerMove) (engine.Command, error) {
	switch m.Kind {
	case types.MoveConcede:
		return engine.Concede(), nil
	case types.MovePawn:
		return engine.Move(m.Row, m.Col), nil
	case types.MoveWallH:
		return engine.WallH(m.Row, m.Col), nil
	case types.MoveWallV:
		return engine.WallV(m.Row, m.Col), nil
	}
	return engine.Command{}, fmt.Errorf("%w: %q", types.ErrUnknownMove, m.Kind)
}
