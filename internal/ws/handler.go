// Package ws serves the local server's duplex channels: game events, chat and
// the host queue.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quoridor-client/internal/authtoken"
	"github.com/DoyleJ11/quoridor-client/internal/hub"
	"github.com/DoyleJ11/quoridor-client/internal/lobby"
	"github.com/DoyleJ11/quoridor-client/internal/logging"
	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

const writeTimeout = 3 * time.Second

// MatchParam is the chi URL parameter holding the match id.
const MatchParam = "matchID"

type Handlers struct {
	hub *hub.Hub
	log *zap.Logger
}

func New(h *hub.Hub, log *zap.Logger) *Handlers {
	return &Handlers{hub: h, log: logging.OrNop(log).Named("ws")}
}

func (s *Handlers) lookup(r *http.Request) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	select {
	case s.hub.Inbox() <- hub.GetMatch{ID: chi.URLParam(r, MatchParam), Reply: reply}:
	case <-r.Context().Done():
		return nil
	}
	select {
	case lb := <-reply:
		return lb
	case <-r.Context().Done():
		return nil
	}
}

// post delivers m unless the lobby has already stopped.
func post(lb *lobby.Lobby, m lobby.Msg) bool {
	select {
	case lb.Inbox() <- m:
		return true
	case <-lb.Done():
		return false
	}
}

// Events streams board frames for one match and feeds the player's moves to it.
func (s *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	claims, ok := authtoken.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	lb := s.lookup(r)
	if lb == nil {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	log := s.log.With(zap.String("match_id", lb.ID()), zap.String("player", claims.Subject))
	out := make(chan lobby.Snapshot, 8)
	clientID := uuid.NewString()

	if !post(lb, lobby.Join{ClientID: clientID, Outbox: out}) {
		conn.Close(websocket.StatusGoingAway, "match closed")
		return
	}
	defer post(lb, lobby.Leave{ClientID: clientID})

	// Writer goroutine
	writeCtx, writeCancel := context.WithCancel(r.Context())
	defer writeCancel()
	go func() {
		for snap := range out {
			payload, err := json.Marshal(snap.Frame)
			if err != nil {
				log.Error("encode frame", zap.Error(err))
				continue
			}
			ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
			err = conn.Write(ctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
		// dropped as a slow reader, or the match stopped
		conn.Close(websocket.StatusTryAgainLater, "stream ended")
	}()

	// Reader loop
	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}

		var mv types.PlayerMove
		if err := json.Unmarshal(data, &mv); err != nil {
			log.Debug("bad move", zap.Error(err))
			continue
		}
		if !post(lb, lobby.FromClient{Player: claims.Subject, Move: mv}) {
			return
		}
	}
}

// Chat relays plain-text messages between everyone watching a match.
func (s *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	claims, ok := authtoken.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	lb := s.lookup(r)
	if lb == nil {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	out := make(chan types.ChatMessage, 16)
	clientID := uuid.NewString()
	if !post(lb, lobby.ChatJoin{ClientID: clientID, Outbox: out}) {
		conn.Close(websocket.StatusGoingAway, "match closed")
		return
	}
	defer post(lb, lobby.ChatLeave{ClientID: clientID})

	writeCtx, writeCancel := context.WithCancel(r.Context())
	defer writeCancel()
	go func() {
		for m := range out {
			payload, _ := json.Marshal(m)
			ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
			err := conn.Write(ctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
		conn.Close(websocket.StatusTryAgainLater, "stream ended")
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		if !post(lb, lobby.ChatPost{User: claims.Username, Text: text}) {
			return
		}
	}
}

// Host queues the caller and writes the match id once an opponent joins.
// The channel carries exactly one event and then closes.
func (s *Handlers) Host(w http.ResponseWriter, r *http.Request) {
	claims, ok := authtoken.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	notify := make(chan string, 1)
	reply := make(chan hub.HostResult, 1)
	s.hub.Inbox() <- hub.Host{Player: claims.Subject, Notify: notify, Reply: reply}
	res := <-reply
	if res.Err != nil {
		http.Error(w, res.Err.Error(), http.StatusConflict)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.hub.Inbox() <- hub.Unhost{ID: res.ID}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	// the host never writes; CloseRead notices when it goes away
	ctx := conn.CloseRead(r.Context())
	select {
	case id := <-notify:
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		if err := conn.Write(wctx, websocket.MessageText, []byte(id)); err != nil {
			s.log.Info("host left before match start", zap.String("match_id", id), zap.Error(err))
		}
	case <-ctx.Done():
		s.hub.Inbox() <- hub.Unhost{ID: res.ID}
	}
}
