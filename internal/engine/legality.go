package engine

// The predicates in this file are total: malformed or out-of-grid input is
// reported as "not legal", never as an error.

// IsWallBlocked reports whether a placed wall spans the edge between two
// orthogonally adjacent tiles. A wall anchored at (r, c) covers two tile
// edges: columns c and c+1 for a horizontal wall, rows r and r+1 for a
// vertical one.
func IsWallBlocked(s State, from, to Position) bool {
	switch {
	case from.Row == to.Row && from.Col != to.Col:
		col := min(from.Col, to.Col)
		for _, w := range s.VerticalWalls {
			if w.Col == col && (w.Row == from.Row || w.Row == from.Row-1) {
				return true
			}
		}

	case from.Col == to.Col && from.Row != to.Row:
		row := min(from.Row, to.Row)
		for _, w := range s.HorizontalWalls {
			if w.Row == row && (w.Col == from.Col || w.Col == from.Col-1) {
				return true
			}
		}
	}
	return false
}

// CanMovePawn reports whether the player to act may step onto target:
// exactly one orthogonal step, no wall on the edge, tile not occupied.
func CanMovePawn(s State, target Position) bool {
	if s.Finished() {
		return false
	}
	from, ok := s.PositionOf(s.Current)
	if !ok || !from.InBounds() || !target.InBounds() {
		return false
	}
	if !adjacent(from, target) {
		return false
	}
	if occupiedByOpponent(s, target) {
		return false
	}
	return !IsWallBlocked(s, from, target)
}

// CanPlaceHorizontalWall is the local pre-check for a horizontal wall. It
// does not verify that both players can still reach their goal rows.
func CanPlaceHorizontalWall(s State, anchor Position) bool {
	if !validAnchor(anchor) {
		return false
	}
	for _, v := range s.VerticalWalls {
		if v == anchor {
			return false
		}
	}
	for _, h := range s.HorizontalWalls {
		if h.Row == anchor.Row && abs(h.Col-anchor.Col) <= 1 {
			return false
		}
	}
	return true
}

// CanPlaceVerticalWall mirrors CanPlaceHorizontalWall with rows and columns
// swapped.
func CanPlaceVerticalWall(s State, anchor Position) bool {
	if !validAnchor(anchor) {
		return false
	}
	for _, h := range s.HorizontalWalls {
		if h == anchor {
			return false
		}
	}
	for _, v := range s.VerticalWalls {
		if v.Col == anchor.Col && abs(v.Row-anchor.Row) <= 1 {
			return false
		}
	}
	return true
}

// walls never anchor on the outer edge
func validAnchor(a Position) bool {
	return a.InBounds() && a.Row != LastIndex && a.Col != LastIndex
}

func occupiedByOpponent(s State, tile Position) bool {
	opp, ok := s.PositionOf(s.Opponent(s.Current))
	return ok && opp == tile
}

func adjacent(a, b Position) bool {
	return abs(a.Row-b.Row)+abs(a.Col-b.Col) == 1
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
