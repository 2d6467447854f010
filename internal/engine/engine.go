package engine

import "errors"

var ErrGameFinished = errors.New("game already finished")
var ErrWrongTurn = errors.New("invalid turn")
var ErrIllegalMove = errors.New("illegal pawn move")
var ErrIllegalWall = errors.New("illegal wall placement")
var ErrNoWallsLeft = errors.New("no walls left")
var ErrMovesOnly = errors.New("only pawn moves allowed")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrUnsupportedCommand = errors.New("unsupported command")

const (
	BoardSize     = 9
	LastIndex     = BoardSize - 1
	StartingWalls = 10
)

type Position struct {
	Row int
	Col int
}

func (p Position) InBounds() bool {
	return p.Row >= 0 && p.Row <= LastIndex && p.Col >= 0 && p.Col <= LastIndex
}

// State is one authoritative snapshot of a match. First is the "up" player
// (starts on row 0, races to row 8), Second is the "down" player.
type State struct {
	FirstPlayer            string
	SecondPlayer           string
	FirstPosition          Position
	SecondPosition         Position
	FirstWalls             int
	SecondWalls            int
	VerticalWalls          []Position
	HorizontalWalls        []Position
	Turn                   int
	Current                string
	Winner                 string
	OnlyPlayerMovesAllowed bool
}

func (s State) Finished() bool { return s.Winner != "" }

func (s State) HasPlayer(player string) bool {
	return player != "" && (player == s.FirstPlayer || player == s.SecondPlayer)
}

// PositionOf reports the tile of player. Unknown players get false.
func (s State) PositionOf(player string) (Position, bool) {
	switch {
	case player == "":
		return Position{}, false
	case player == s.FirstPlayer:
		return s.FirstPosition, true
	case player == s.SecondPlayer:
		return s.SecondPosition, true
	}
	return Position{}, false
}

func (s State) Opponent(player string) string {
	if player == s.FirstPlayer {
		return s.SecondPlayer
	}
	return s.FirstPlayer
}

func (s State) WallsLeft(player string) int {
	switch player {
	case s.FirstPlayer:
		return s.FirstWalls
	case s.SecondPlayer:
		return s.SecondWalls
	}
	return 0
}

// GoalRow is the row player must reach to win.
func (s State) GoalRow(player string) int {
	if player == s.FirstPlayer {
		return LastIndex
	}
	return 0
}

// Clone deep-copies the wall slices so the copy can be mutated freely.
func (s State) Clone() State {
	c := s
	c.VerticalWalls = append([]Position(nil), s.VerticalWalls...)
	c.HorizontalWalls = append([]Position(nil), s.HorizontalWalls...)
	return c
}

type CommandType string

const (
	CmdMove    CommandType = "QuoridorMove"
	CmdWallH   CommandType = "QuoridorWallH"
	CmdWallV   CommandType = "QuoridorWallV"
	CmdConcede CommandType = "Concede"
)

type Command struct {
	Type CommandType
	At   Position
}

func Move(row, col int) Command  { return Command{Type: CmdMove, At: Position{row, col}} }
func WallH(row, col int) Command { return Command{Type: CmdWallH, At: Position{row, col}} }
func WallV(row, col int) Command { return Command{Type: CmdWallV, At: Position{row, col}} }
func Concede() Command           { return Command{Type: CmdConcede} }

// Check is the client-side gate in front of a submission. It never runs the
// path-to-goal rule; the server remains the final judge.
func Check(s State, player string, cmd Command) error {
	if s.Finished() {
		return ErrGameFinished
	}
	if !s.HasPlayer(player) {
		return ErrUnknownPlayer
	}
	if cmd.Type == CmdConcede {
		return nil
	}
	if s.Current != player {
		return ErrWrongTurn
	}

	switch cmd.Type {
	case CmdMove:
		if !CanMovePawn(s, cmd.At) {
			return ErrIllegalMove
		}
		return nil

	case CmdWallH, CmdWallV:
		if s.OnlyPlayerMovesAllowed {
			return ErrMovesOnly
		}
		if s.WallsLeft(player) < 1 {
			return ErrNoWallsLeft
		}
		ok := CanPlaceHorizontalWall(s, cmd.At)
		if cmd.Type == CmdWallV {
			ok = CanPlaceVerticalWall(s, cmd.At)
		}
		if !ok {
			return ErrIllegalWall
		}
		return nil

	default:
		return ErrUnsupportedCommand
	}
}
