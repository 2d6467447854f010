package engine

// Apply is the authoritative transition used by the local server. The client
// only ever calls Check; the path-to-goal rule lives here.
func Apply(s State, player string, cmd Command) (State, error) {
	if s.Finished() {
		return s, ErrGameFinished
	}
	if !s.HasPlayer(player) {
		return s, ErrUnknownPlayer
	}

	if cmd.Type == CmdConcede {
		ns := s.Clone()
		ns.Winner = s.Opponent(player)
		return ns, nil
	}

	if err := Check(s, player, cmd); err != nil {
		return s, err
	}

	ns := s.Clone()
	switch cmd.Type {
	case CmdMove:
		if player == ns.FirstPlayer {
			ns.FirstPosition = cmd.At
		} else {
			ns.SecondPosition = cmd.At
		}
		if cmd.At.Row == ns.GoalRow(player) {
			ns.Winner = player
		}

	case CmdWallH, CmdWallV:
		if cmd.Type == CmdWallH {
			ns.HorizontalWalls = append(ns.HorizontalWalls, cmd.At)
		} else {
			ns.VerticalWalls = append(ns.VerticalWalls, cmd.At)
		}
		if !HasPathToGoal(ns, ns.FirstPlayer) || !HasPathToGoal(ns, ns.SecondPlayer) {
			return s, ErrIllegalWall
		}
		if player == ns.FirstPlayer {
			ns.FirstWalls--
		} else {
			ns.SecondWalls--
		}
		ns.OnlyPlayerMovesAllowed = ns.FirstWalls == 0 && ns.SecondWalls == 0
	}

	advanceTurn(&ns)
	return ns, nil
}

func advanceTurn(s *State) {
	s.Turn++
	s.Current = s.Opponent(s.Current)
}

// CPUMove picks the computer player's next command: step along the shortest
// route, otherwise any legal step, otherwise concede.
func CPUMove(s State) Command {
	pos, ok := s.PositionOf(s.Current)
	if !ok {
		return Concede()
	}
	if path := ShortestPath(s, pos, s.GoalRow(s.Current)); len(path) > 0 && CanMovePawn(s, path[0]) {
		return Command{Type: CmdMove, At: path[0]}
	}

	best, bestLen := Position{}, -1
	for _, n := range neighbours(s, pos) {
		if !CanMovePawn(s, n) {
			continue
		}
		p := ShortestPath(s, n, s.GoalRow(s.Current))
		if p == nil {
			continue
		}
		if bestLen < 0 || len(p) < bestLen {
			best, bestLen = n, len(p)
		}
	}
	if bestLen >= 0 {
		return Command{Type: CmdMove, At: best}
	}
	return Concede()
}
