// Package hub is the local server's registry of running matches and of hosts
// waiting in the queue.
package hub

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quoridor-client/internal/engine"
	"github.com/DoyleJ11/quoridor-client/internal/lobby"
	"github.com/DoyleJ11/quoridor-client/internal/logging"
	"github.com/DoyleJ11/quoridor-client/internal/store"
)

var ErrInMatch = errors.New("player already in a match")
var ErrNoHost = errors.New("no such host")
var ErrOwnHost = errors.New("cannot join own match")

type HubMsg interface{ isHubMsg() }

// CreateMatch starts a match between Up and Down. If Up is already playing,
// the running match is returned instead.
type CreateMatch struct {
	Up    string
	Down  string
	Reply chan *lobby.Lobby
}

type GetMatch struct {
	ID    string
	Reply chan *lobby.Lobby
}

type RemoveMatch struct {
	ID string
}

// ActiveMatch replies with the id of the unfinished match Player is in, or "".
type ActiveMatch struct {
	Player string
	Reply  chan string
}

// Host puts Player in the queue. Notify receives the match id once someone
// joins; it must have room for one value.
type Host struct {
	Player string
	Notify chan string
	Reply  chan HostResult
}

type HostResult struct {
	ID  string
	Err error
}

type Unhost struct {
	ID string
}

type ListHosts struct {
	Reply chan []string
}

type JoinHost struct {
	ID     string
	Player string
	Reply  chan JoinResult
}

type JoinResult struct {
	Lobby *lobby.Lobby
	Err   error
}

type ShutdownHub struct{}

type matchFinished struct {
	ID    string
	Final engine.State
}

func (CreateMatch) isHubMsg()   {}
func (GetMatch) isHubMsg()      {}
func (RemoveMatch) isHubMsg()   {}
func (ActiveMatch) isHubMsg()   {}
func (Host) isHubMsg()          {}
func (Unhost) isHubMsg()        {}
func (ListHosts) isHubMsg()     {}
func (JoinHost) isHubMsg()      {}
func (ShutdownHub) isHubMsg()   {}
func (matchFinished) isHubMsg() {}

type Config struct {
	// Store receives win/lose results. Nil skips recording.
	Store      store.UserStore
	AFKTimeout time.Duration
	Logger     *zap.Logger
}

type waiting struct {
	player string
	notify chan string
}

type Hub struct {
	inbox   chan HubMsg
	matches map[string]*lobby.Lobby
	active  map[string]string // player -> match id
	hosts   map[string]waiting
	order   []string // host ids, oldest first
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     Config
	log     *zap.Logger
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		matches: make(map[string]*lobby.Lobby),
		active:  make(map[string]string),
		hosts:   make(map[string]waiting),
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		log:     logging.OrNop(cfg.Logger).Named("hub"),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateMatch:
				if id, ok := h.active[msg.Up]; ok {
					msg.Reply <- h.matches[id]
					break
				}
				msg.Reply <- h.start(uuid.NewString(), msg.Up, msg.Down)

			case GetMatch:
				msg.Reply <- h.matches[msg.ID] // May be nil

			case RemoveMatch:
				h.remove(msg.ID)

			case ActiveMatch:
				msg.Reply <- h.active[msg.Player]

			case Host:
				if _, ok := h.active[msg.Player]; ok {
					msg.Reply <- HostResult{Err: ErrInMatch}
					break
				}
				id := uuid.NewString()
				h.hosts[id] = waiting{player: msg.Player, notify: msg.Notify}
				h.order = append(h.order, id)
				h.log.Info("host queued", zap.String("match_id", id), zap.String("player", msg.Player))
				msg.Reply <- HostResult{ID: id}

			case Unhost:
				h.unhost(msg.ID)

			case ListHosts:
				ids := make([]string, len(h.order))
				copy(ids, h.order)
				msg.Reply <- ids

			case JoinHost:
				msg.Reply <- h.join(msg.ID, msg.Player)

			case matchFinished:
				h.finish(msg.ID, msg.Final)

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) join(id, player string) JoinResult {
	w, ok := h.hosts[id]
	switch {
	case !ok:
		return JoinResult{Err: ErrNoHost}
	case w.player == player:
		return JoinResult{Err: ErrOwnHost}
	}
	if _, busy := h.active[player]; busy {
		return JoinResult{Err: ErrInMatch}
	}
	if _, busy := h.active[w.player]; busy {
		// host started something else while waiting
		h.unhost(id)
		return JoinResult{Err: ErrNoHost}
	}

	h.unhost(id)
	lb := h.start(id, w.player, player)
	select {
	case w.notify <- id:
	default:
		h.log.Warn("host not listening", zap.String("match_id", id))
	}
	return JoinResult{Lobby: lb}
}

func (h *Hub) start(id, up, down string) *lobby.Lobby {
	lb := lobby.NewLobby(h.ctx, lobby.Config{
		ID:         id,
		State:      engine.NewMatch(up, down),
		AFKTimeout: h.cfg.AFKTimeout,
		OnFinish:   h.onFinish,
		Logger:     h.log.Named("lobby"),
	})
	h.matches[id] = lb
	for _, p := range []string{up, down} {
		if p != lobby.CPU {
			h.active[p] = id
		}
	}
	h.log.Info("match started", zap.String("match_id", id), zap.String("up", up), zap.String("down", down))

	// forget the lobby once it stops on its own
	go func() {
		select {
		case <-lb.Done():
			select {
			case h.inbox <- RemoveMatch{ID: id}:
			case <-h.ctx.Done():
			}
		case <-h.ctx.Done():
		}
	}()
	return lb
}

// onFinish runs on the lobby goroutine.
func (h *Hub) onFinish(id string, final engine.State) {
	select {
	case h.inbox <- matchFinished{ID: id, Final: final}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) finish(id string, final engine.State) {
	h.release(id)
	if h.cfg.Store == nil {
		return
	}
	winner, loser := final.Winner, final.Opponent(final.Winner)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.cfg.Store.RecordResult(ctx, winner, loser); err != nil {
			h.log.Error("record result", zap.String("match_id", id), zap.Error(err))
		}
	}()
}

func (h *Hub) remove(id string) {
	h.release(id)
	delete(h.matches, id)
}

// release frees the players of match id to start another one.
func (h *Hub) release(id string) {
	for p, m := range h.active {
		if m == id {
			delete(h.active, p)
		}
	}
}

func (h *Hub) unhost(id string) {
	if _, ok := h.hosts[id]; !ok {
		return
	}
	delete(h.hosts, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

func (h *Hub) shutdown() {
	for _, lb := range h.matches {
		select {
		case lb.Inbox() <- lobby.Shutdown{}:
		case <-lb.Done():
		}
	}
	clear(h.matches)
	clear(h.active)
	clear(h.hosts)
	h.order = nil
}
