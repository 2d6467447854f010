package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownMove = errors.New("unknown player move")

// Client -> Server on /quoridor/events/{matchId}:
//
//	{"QuoridorMove":  {"row": r, "col": c}}
//	{"QuoridorWallH": {"row": r, "col": c}}
//	{"QuoridorWallV": {"row": r, "col": c}}
//	"Concede"
type PlayerMove struct {
	Kind string // one of the MoveX constants
	Row  int
	Col  int
}

const (
	MovePawn    = "QuoridorMove"
	MoveWallH   = "QuoridorWallH"
	MoveWallV   = "QuoridorWallV"
	MoveConcede = "Concede"
)

type position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (m PlayerMove) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case MoveConcede:
		return json.Marshal(MoveConcede)
	case MovePawn, MoveWallH, MoveWallV:
		return json.Marshal(map[string]position{m.Kind: {Row: m.Row, Col: m.Col}})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMove, m.Kind)
}

func (m *PlayerMove) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != MoveConcede {
			return fmt.Errorf("%w: %q", ErrUnknownMove, s)
		}
		*m = PlayerMove{Kind: MoveConcede}
		return nil
	}

	var raw map[string]position
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("%w: %d variants", ErrUnknownMove, len(raw))
	}
	for kind, pos := range raw {
		switch kind {
		case MovePawn, MoveWallH, MoveWallV:
			*m = PlayerMove{Kind: kind, Row: pos.Row, Col: pos.Col}
			return nil
		}
		return fmt.Errorf("%w: %q", ErrUnknownMove, kind)
	}
	return nil
}

// Bidirectional on /chat/{matchId}. Clients send plain text; the server
// broadcasts this JSON shape.
type ChatMessage struct {
	User      string `json:"user"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// UserContext is returned by every auth endpoint on success.
type UserContext struct {
	Email       string  `json:"email"`
	Username    string  `json:"username"`
	AuthToken   string  `json:"authToken"`
	ActiveMatch *string `json:"activeMatch"`
}

// Identity is the identifier the server uses for current/winner fields.
func (u UserContext) Identity() string { return u.Email }

func (u UserContext) Match() (string, bool) {
	if u.ActiveMatch == nil || *u.ActiveMatch == "" {
		return "", false
	}
	return *u.ActiveMatch, true
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

type Registration struct {
	Username string `json:"username" validate:"required,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1,max=72"`
}

type GuestLogin struct {
	Username string `json:"username" validate:"required,max=32"`
}

type MatchMeta struct {
	ID         string `json:"id"`
	UpPlayer   string `json:"upPlayer"`
	DownPlayer string `json:"downPlayer"`
}

type UserStats struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Loses    int    `json:"loses"`
}

// Non-2xx-shaped auth results that arrive with a 200 body.
const AlreadyTaken = "AlreadyTaken"

type UnsupportedDataType struct {
	UnsupportedDataType string `json:"UnsupportedDataType"`
}
