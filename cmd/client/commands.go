package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/DoyleJ11/quoridor-client/internal/engine"
)

var errUsage = errors.New("commands: m r c | h r c | v r c | show [m|h|v] | concede | say <text> | chat | leave | quit")

// ignored reports errors from local move checks. Like a click on a blocked
// tile, they leave the board as it is and print nothing.
func ignored(err error) bool {
	for _, target := range []error{
		engine.ErrGameFinished,
		engine.ErrWrongTurn,
		engine.ErrIllegalMove,
		engine.ErrIllegalWall,
		engine.ErrNoWallsLeft,
		engine.ErrMovesOnly,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type action int

const (
	actSubmit action = iota
	actShow
	actSay
	actChat
	actLeave
	actQuit
)

type line struct {
	act  action
	cmd  engine.Command
	mode engine.Mode
	text string
}

// parseLine reads one interactive command.
func parseLine(s string) (line, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return line{}, errUsage
	}
	switch verb := strings.ToLower(fields[0]); verb {
	case "m", "h", "v":
		if len(fields) != 3 {
			return line{}, errUsage
		}
		row, err1 := strconv.Atoi(fields[1])
		col, err2 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil {
			return line{}, fmt.Errorf("bad coordinates %q %q", fields[1], fields[2])
		}
		cmd := engine.Move(row, col)
		switch verb {
		case "h":
			cmd = engine.WallH(row, col)
		case "v":
			cmd = engine.WallV(row, col)
		}
		return line{act: actSubmit, cmd: cmd}, nil

	case "show":
		mode := engine.ModeNone
		if len(fields) > 1 {
			switch fields[1] {
			case "m":
				mode = engine.ModeMove
			case "h":
				mode = engine.ModeWallH
			case "v":
				mode = engine.ModeWallV
			default:
				return line{}, errUsage
			}
		}
		return line{act: actShow, mode: mode}, nil

	case "concede":
		return line{act: actSubmit, cmd: engine.Concede()}, nil

	case "say":
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), fields[0]))
		if text == "" {
			return line{}, errUsage
		}
		return line{act: actSay, text: text}, nil

	case "chat":
		return line{act: actChat}, nil
	case "leave":
		return line{act: actLeave}, nil
	case "quit", "exit":
		return line{act: actQuit}, nil
	}
	return line{}, errUsage
}
