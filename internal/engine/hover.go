package engine

// Border is the set of tile sides that carry a rendered wall segment.
type Border uint8

const (
	BorderTop Border = 1 << iota
	BorderBottom
	BorderLeft
	BorderRight
)

func (b Border) Has(side Border) bool { return b&side != 0 }

type Hover int

const (
	HoverNone Hover = iota
	HoverLegal
	HoverBlocked
)

func (h Hover) String() string {
	switch h {
	case HoverLegal:
		return "legal"
	case HoverBlocked:
		return "blocked"
	default:
		return ""
	}
}

// Mode is the interaction the user has selected; hover feedback depends on it.
type Mode int

const (
	ModeNone Mode = iota
	ModeMove
	ModeWallH
	ModeWallV
)

// Borders scans both wall lists for segments touching tile.
func Borders(s State, tile Position) Border {
	var b Border
	for _, h := range s.HorizontalWalls {
		if h.Col != tile.Col && h.Col != tile.Col-1 {
			continue
		}
		if h.Row == tile.Row {
			b |= BorderBottom
		}
		if h.Row == tile.Row-1 {
			b |= BorderTop
		}
	}
	for _, v := range s.VerticalWalls {
		if v.Row != tile.Row && v.Row != tile.Row-1 {
			continue
		}
		if v.Col == tile.Col {
			b |= BorderRight
		}
		if v.Col == tile.Col-1 {
			b |= BorderLeft
		}
	}
	return b
}

// MoveHover classifies tile for pawn-move previews. Both pawns' tiles and
// in-range tiles that cannot be entered are blocked; everything else out of
// range gets no decoration.
func MoveHover(s State, tile Position) Hover {
	if s.Finished() || !tile.InBounds() {
		return HoverNone
	}
	from, ok := s.PositionOf(s.Current)
	if !ok {
		return HoverNone
	}
	if from == tile {
		return HoverBlocked
	}
	if opp, ok := s.PositionOf(s.Opponent(s.Current)); ok && opp == tile {
		return HoverBlocked
	}
	if !adjacent(from, tile) {
		return HoverNone
	}
	if CanMovePawn(s, tile) {
		return HoverLegal
	}
	return HoverBlocked
}

// WallHover reports whether a wall preview should be drawn at anchor.
func WallHover(s State, mode Mode, anchor Position) bool {
	if s.Finished() {
		return false
	}
	switch mode {
	case ModeWallH:
		return CanPlaceHorizontalWall(s, anchor)
	case ModeWallV:
		return CanPlaceVerticalWall(s, anchor)
	}
	return false
}

type Tile struct {
	Borders Border
	Hover   Hover
	Wall    bool // wall preview anchored here
	Pawn    string
}

type Grid [BoardSize][BoardSize]Tile

// Overlay derives the per-tile render state for one frame. It is recomputed
// from scratch every time and never stored alongside the board.
func Overlay(s State, mode Mode) Grid {
	var g Grid
	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			p := Position{Row: row, Col: col}
			t := Tile{Borders: Borders(s, p)}
			switch mode {
			case ModeMove:
				t.Hover = MoveHover(s, p)
			case ModeWallH, ModeWallV:
				t.Wall = WallHover(s, mode, p)
			}
			if p == s.FirstPosition && s.FirstPlayer != "" {
				t.Pawn = s.FirstPlayer
			}
			if p == s.SecondPosition && s.SecondPlayer != "" {
				t.Pawn = s.SecondPlayer
			}
			g[row][col] = t
		}
	}
	return g
}
