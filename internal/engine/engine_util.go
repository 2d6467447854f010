package engine

// NewMatch builds the opening position: up player on (0,4), down player on
// (8,4), full wall supply, up player to act.
func NewMatch(up, down string) State {
	return State{
		FirstPlayer:    up,
		SecondPlayer:   down,
		FirstPosition:  Position{Row: 0, Col: BoardSize / 2},
		SecondPosition: Position{Row: LastIndex, Col: BoardSize / 2},
		FirstWalls:     StartingWalls,
		SecondWalls:    StartingWalls,
		Current:        up,
	}
}

func ContainsWall(walls []Position, anchor Position) bool {
	for _, w := range walls {
		if w == anchor {
			return true
		}
	}
	return false
}

// neighbours lists the tiles reachable from p in one step, ignoring pawns.
func neighbours(s State, p Position) []Position {
	out := make([]Position, 0, 4)
	for _, d := range [...]Position{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		n := Position{Row: p.Row + d.Row, Col: p.Col + d.Col}
		if !n.InBounds() || IsWallBlocked(s, p, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// ShortestPath returns the tiles (start excluded) of a shortest route from
// start to any tile on goalRow, or nil when the goal is walled off.
func ShortestPath(s State, start Position, goalRow int) []Position {
	if !start.InBounds() {
		return nil
	}
	if start.Row == goalRow {
		return []Position{}
	}
	prev := map[Position]Position{}
	seen := map[Position]bool{start: true}
	queue := []Position{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range neighbours(s, cur) {
			if seen[n] {
				continue
			}
			seen[n] = true
			prev[n] = cur
			if n.Row == goalRow {
				return unwind(prev, start, n)
			}
			queue = append(queue, n)
		}
	}
	return nil
}

func unwind(prev map[Position]Position, start, end Position) []Position {
	var path []Position
	for p := end; p != start; p = prev[p] {
		path = append(path, p)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func HasPathToGoal(s State, player string) bool {
	pos, ok := s.PositionOf(player)
	if !ok {
		return false
	}
	return ShortestPath(s, pos, s.GoalRow(player)) != nil
}
