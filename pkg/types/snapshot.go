package types

import (
	"encoding/json"
	"fmt"
)

// Frame is one board-state push on /quoridor/events/{matchId}:
//
//	up_player, down_player: string
//	game: {
//	  up_player, down_player: [row, col]
//	  up_player_free_walls, down_player_free_walls: number
//	  vertical_walls, horizontal_walls: [row, col][]
//	}
//	turn: number
//	current: string
//	winner: string | null
type Frame struct {
	UpPlayer               string    `json:"up_player"`
	DownPlayer             string    `json:"down_player"`
	Game                   GameFrame `json:"game"`
	Turn                   int       `json:"turn"`
	Current                string    `json:"current"`
	Winner                 *string   `json:"winner"`
	OnlyPlayerMovesAllowed bool      `json:"only_player_moves_allowed,omitempty"`
}

type GameFrame struct {
	UpPlayer            Cell   `json:"up_player"`
	DownPlayer          Cell   `json:"down_player"`
	UpPlayerFreeWalls   int    `json:"up_player_free_walls"`
	DownPlayerFreeWalls int    `json:"down_player_free_walls"`
	VerticalWalls       []Cell `json:"vertical_walls"`
	HorizontalWalls     []Cell `json:"horizontal_walls"`
}

// Cell is a (row, col) pair encoded as a two element array.
type Cell [2]int

func (c Cell) Row() int { return c[0] }
func (c Cell) Col() int { return c[1] }

// DecodeFrame parses one inbound game frame. Players are mandatory; anything
// without them is not a board state.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	if f.UpPlayer == "" || f.DownPlayer == "" {
		return Frame{}, fmt.Errorf("frame without players: %s", truncate(data, 64))
	}
	return f, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
