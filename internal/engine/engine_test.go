package engine

import (
	"errors"
	"testing"
)

func newTestState() State {
	s := NewMatch("up@example.com", "down@example.com")
	s.FirstPosition = Position{1, 4}
	s.SecondPosition = Position{8, 4}
	return s
}

func TestCanMovePawn_Scenario(t *testing.T) {
	s := newTestState()

	cases := []struct {
		name   string
		target Position
		want   bool
	}{
		{name: "one step down is legal", target: Position{2, 4}, want: true},
		{name: "one step up is legal", target: Position{0, 4}, want: true},
		{name: "sideways is legal", target: Position{1, 5}, want: true},
		{name: "occupied tile is illegal", target: Position{8, 4}, want: false},
		{name: "two steps is illegal", target: Position{3, 4}, want: false},
		{name: "diagonal is illegal", target: Position{2, 5}, want: false},
		{name: "own tile is illegal", target: Position{1, 4}, want: false},
		{name: "off grid is illegal", target: Position{-1, 4}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanMovePawn(s, tc.target); got != tc.want {
				t.Fatalf("CanMovePawn(%v): got %v, want %v", tc.target, got, tc.want)
			}
		})
	}
}

func TestCanMovePawn_OccupiedAdjacentTile(t *testing.T) {
	s := newTestState()
	s.SecondPosition = Position{2, 4}

	if CanMovePawn(s, Position{2, 4}) {
		t.Fatalf("expected move onto opponent to be rejected")
	}
	if got := MoveHover(s, Position{2, 4}); got != HoverBlocked {
		t.Fatalf("hover on opponent tile: got %v, want blocked", got)
	}
	if got := MoveHover(s, Position{4, 4}); got != HoverNone {
		t.Fatalf("hover out of range: got %v, want none", got)
	}
}

func TestMoveHover_OpponentTileAlwaysBlocked(t *testing.T) {
	s := newTestState()

	// opponent far away on row 8
	if got := MoveHover(s, Position{8, 4}); got != HoverBlocked {
		t.Fatalf("hover on distant opponent: got %v, want blocked", got)
	}
	if got := MoveHover(s, Position{8, 3}); got != HoverNone {
		t.Fatalf("hover beside distant opponent: got %v, want none", got)
	}

	s.Current = s.SecondPlayer
	if got := MoveHover(s, Position{1, 4}); got != HoverBlocked {
		t.Fatalf("hover on first player from second: got %v, want blocked", got)
	}
}

func TestIsWallBlocked(t *testing.T) {
	cases := []struct {
		name     string
		vertical []Position
		horiz    []Position
		from, to Position
		want     bool
	}{
		{
			name:  "horizontal wall anchored on the edge row blocks",
			horiz: []Position{{2, 2}},
			from:  Position{2, 2}, to: Position{3, 2},
			want: true,
		},
		{
			name:  "horizontal wall covers the next column too",
			horiz: []Position{{2, 2}},
			from:  Position{3, 3}, to: Position{2, 3},
			want: true,
		},
		{
			name:  "horizontal wall does not reach two columns over",
			horiz: []Position{{2, 2}},
			from:  Position{2, 4}, to: Position{3, 4},
			want: false,
		},
		{
			name:     "vertical wall blocks sideways step",
			vertical: []Position{{4, 4}},
			from:     Position{5, 5}, to: Position{5, 4},
			want: true,
		},
		{
			name:     "vertical wall ignored for vertical step",
			vertical: []Position{{4, 4}},
			from:     Position{4, 4}, to: Position{5, 4},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := State{VerticalWalls: tc.vertical, HorizontalWalls: tc.horiz}
			if got := IsWallBlocked(s, tc.from, tc.to); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanMovePawn_AdjacentWithoutWalls(t *testing.T) {
	// every adjacent pair with no wall is legal exactly when unoccupied
	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			from := Position{row, col}
			for _, d := range []Position{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				to := Position{row + d.Row, col + d.Col}
				if !to.InBounds() {
					continue
				}
				s := State{FirstPlayer: "a", SecondPlayer: "b", Current: "a", FirstPosition: from, SecondPosition: Position{-5, -5}}
				if !CanMovePawn(s, to) {
					t.Fatalf("%v -> %v should be legal", from, to)
				}
				s.SecondPosition = to
				if CanMovePawn(s, to) {
					t.Fatalf("%v -> %v should be blocked by the opponent", from, to)
				}
			}
		}
	}
}

func TestWallPlacement_EdgeAnchorsAreIllegal(t *testing.T) {
	s := newTestState()
	for i := 0; i < BoardSize; i++ {
		for _, a := range []Position{{LastIndex, i}, {i, LastIndex}} {
			if CanPlaceHorizontalWall(s, a) {
				t.Fatalf("horizontal wall at %v should be illegal", a)
			}
			if CanPlaceVerticalWall(s, a) {
				t.Fatalf("vertical wall at %v should be illegal", a)
			}
		}
	}
}

func TestWallPlacement_OverlapAndCrossing(t *testing.T) {
	s := newTestState()
	s.VerticalWalls = []Position{{3, 3}}
	s.HorizontalWalls = []Position{{5, 5}}

	cases := []struct {
		name   string
		vert   bool
		anchor Position
		want   bool
	}{
		{name: "same vertical anchor", vert: true, anchor: Position{3, 3}, want: false},
		{name: "vertical crossing at same anchor", vert: false, anchor: Position{3, 3}, want: false},
		{name: "vertical directly above overlaps", vert: true, anchor: Position{2, 3}, want: false},
		{name: "vertical directly below overlaps", vert: true, anchor: Position{4, 3}, want: false},
		{name: "vertical two below is free", vert: true, anchor: Position{5, 3}, want: true},
		{name: "vertical next column is free", vert: true, anchor: Position{3, 4}, want: true},
		{name: "horizontal same anchor", vert: false, anchor: Position{5, 5}, want: false},
		{name: "horizontal left neighbour overlaps", vert: false, anchor: Position{5, 4}, want: false},
		{name: "horizontal right neighbour overlaps", vert: false, anchor: Position{5, 6}, want: false},
		{name: "horizontal two over is free", vert: false, anchor: Position{5, 7}, want: true},
		{name: "vertical crossing horizontal", vert: true, anchor: Position{5, 5}, want: false},
		{name: "negative anchor", vert: true, anchor: Position{-1, 0}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CanPlaceHorizontalWall(s, tc.anchor)
			if tc.vert {
				got = CanPlaceVerticalWall(s, tc.anchor)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBorders(t *testing.T) {
	s := State{
		HorizontalWalls: []Position{{2, 2}},
		VerticalWalls:   []Position{{5, 5}},
	}

	cases := []struct {
		tile Position
		want Border
	}{
		{Position{2, 2}, BorderBottom},
		{Position{2, 3}, BorderBottom},
		{Position{3, 2}, BorderTop},
		{Position{3, 3}, BorderTop},
		{Position{2, 4}, 0},
		{Position{5, 5}, BorderRight},
		{Position{6, 5}, BorderRight},
		{Position{5, 6}, BorderLeft},
		{Position{7, 6}, 0},
	}
	for _, tc := range cases {
		if got := Borders(s, tc.tile); got != tc.want {
			t.Fatalf("Borders(%v): got %b, want %b", tc.tile, got, tc.want)
		}
	}
}

func TestOverlay_ModeControlsHover(t *testing.T) {
	s := newTestState()

	g := Overlay(s, ModeNone)
	if g[2][4].Hover != HoverNone || g[0][0].Wall {
		t.Fatalf("no hover expected without an interaction mode")
	}

	g = Overlay(s, ModeMove)
	if g[2][4].Hover != HoverLegal {
		t.Fatalf("want legal hover below the pawn, got %v", g[2][4].Hover)
	}
	if g[1][4].Pawn != s.FirstPlayer || g[8][4].Pawn != s.SecondPlayer {
		t.Fatalf("pawns not placed on overlay")
	}

	g = Overlay(s, ModeWallH)
	if !g[0][0].Wall || g[8][0].Wall {
		t.Fatalf("unexpected wall hover: %+v %+v", g[0][0], g[8][0])
	}
}

func TestOverlay_TerminalStateHasNoAffordances(t *testing.T) {
	s := newTestState()
	s.Winner = s.FirstPlayer

	g := Overlay(s, ModeMove)
	if g[2][4].Hover != HoverNone {
		t.Fatalf("finished match must not offer moves")
	}
	if WallHover(s, ModeWallV, Position{0, 0}) {
		t.Fatalf("finished match must not offer walls")
	}
}

func TestCheck(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(*State)
		player  string
		cmd     Command
		wantErr error
	}{
		{name: "legal move", player: "up@example.com", cmd: Move(2, 4)},
		{name: "not your turn", player: "down@example.com", cmd: Move(7, 4), wantErr: ErrWrongTurn},
		{name: "illegal move", player: "up@example.com", cmd: Move(5, 5), wantErr: ErrIllegalMove},
		{name: "legal wall", player: "up@example.com", cmd: WallH(4, 4)},
		{name: "edge wall", player: "up@example.com", cmd: WallV(8, 0), wantErr: ErrIllegalWall},
		{
			name:    "out of walls",
			setup:   func(s *State) { s.FirstWalls = 0 },
			player:  "up@example.com",
			cmd:     WallH(4, 4),
			wantErr: ErrNoWallsLeft,
		},
		{
			name:    "moves only",
			setup:   func(s *State) { s.OnlyPlayerMovesAllowed = true },
			player:  "up@example.com",
			cmd:     WallV(1, 1),
			wantErr: ErrMovesOnly,
		},
		{
			name:    "finished",
			setup:   func(s *State) { s.Winner = "down@example.com" },
			player:  "up@example.com",
			cmd:     Move(2, 4),
			wantErr: ErrGameFinished,
		},
		{name: "concede out of turn", player: "down@example.com", cmd: Concede()},
		{name: "stranger", player: "ghost", cmd: Concede(), wantErr: ErrUnknownPlayer},
		{name: "garbage command", player: "up@example.com", cmd: Command{Type: "Jump"}, wantErr: ErrUnsupportedCommand},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestState()
			if tc.setup != nil {
				tc.setup(&s)
			}
			err := Check(s, tc.player, tc.cmd)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}
