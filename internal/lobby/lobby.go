package lobby

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/quoridor-client/internal/board"
	"github.com/DoyleJ11/quoridor-client/internal/engine"
	"github.com/DoyleJ11/quoridor-client/internal/logging"
	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

// CPU is the identity of the computer opponent in solo matches.
const CPU = "|CPU|"

type Msg interface{ isLobbyMsg() }

// FromClient is one move command received on a player's game channel.
type FromClient struct {
	Player string
	Move   types.PlayerMove
	Reply  chan error // optional
}

func (FromClient) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type ChatJoin struct {
	ClientID string
	Outbox   chan types.ChatMessage
}

func (ChatJoin) isLobbyMsg() {}

type ChatLeave struct{ ClientID string }

func (ChatLeave) isLobbyMsg() {}

type ChatPost struct {
	User string
	Text string
}

func (ChatPost) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// afkFired is posted by the idle timer; stale generations are ignored.
type afkFired struct{ Gen int }

func (afkFired) isLobbyMsg() {}

type Snapshot struct {
	Version int
	Frame   types.Frame
}

type View struct {
	Version    int
	NumClients int
	NumChat    int
	State      engine.State
}

type Config struct {
	ID    string
	State engine.State
	// AFKTimeout concedes for the player to act after this much idle time.
	// Zero disables it.
	AFKTimeout time.Duration
	// OnFinish runs once, on the lobby goroutine, when a winner is decided.
	OnFinish func(id string, final engine.State)
	Logger   *zap.Logger
	Now      func() time.Time
}

type Lobby struct {
	id      string
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]chan Snapshot
	chat    map[string]chan types.ChatMessage
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	afk      time.Duration
	afkTimer *time.Timer
	afkGen   int
	onFinish func(string, engine.State)
	finished bool
	log      *zap.Logger
	now      func() time.Time
}

func NewLobby(parent context.Context, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		id:       cfg.ID,
		inbox:    make(chan Msg, 64),
		state:    cfg.State,
		clients:  make(map[string]chan Snapshot),
		chat:     make(map[string]chan types.ChatMessage),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		afk:      cfg.AFKTimeout,
		onFinish: cfg.OnFinish,
		log:      logging.OrNop(cfg.Logger).With(zap.String("match_id", cfg.ID)),
		now:      cfg.Now,
	}
	if l.now == nil {
		l.now = time.Now
	}

	l.cpuTurns()
	l.armAFK()
	go l.loop()
	return l
}

func (l *Lobby) ID() string { return l.id }

// Expose the inbox so the hub and ws layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// register and send the current board immediately
				l.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- l.snapshot()

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
				}

			case ChatJoin:
				l.chat[msg.ClientID] = msg.Outbox

			case ChatLeave:
				if ch, ok := l.chat[msg.ClientID]; ok {
					close(ch)
					delete(l.chat, msg.ClientID)
				}

			case ChatPost:
				l.broadcastChat(types.ChatMessage{
					User:      msg.User,
					Message:   msg.Text,
					Timestamp: l.now().UnixMilli(),
				})

			case FromClient:
				err := l.apply(msg.Player, msg.Move)
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case afkFired:
				if msg.Gen != l.afkGen || l.state.Finished() {
					break
				}
				l.log.Info("player idle, conceding", zap.String("player", l.state.Current))
				l.commit(engine.Apply(l.state, l.state.Current, engine.Concede()))

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					NumChat:    len(l.chat),
					State:      l.state.Clone(),
				}

			case Shutdown:
				l.shutdown()
				return
			}

			if l.idle() {
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) apply(player string, mv types.PlayerMove) error {
	cmd, err := board.CommandOf(mv)
	if err != nil {
		return err
	}
	ns, err := engine.Apply(l.state, player, cmd)
	if err != nil {
		l.log.Debug("move rejected", zap.String("player", player), zap.Error(err))
		return err
	}
	l.commit(ns, nil)
	return nil
}

// commit installs a new state, lets the CPU answer, and publishes once.
func (l *Lobby) commit(ns engine.State, err error) {
	if err != nil {
		return
	}
	l.state = ns
	l.cpuTurns()
	l.version++
	l.broadcast(l.snapshot())
	l.armAFK()

	if l.state.Finished() && !l.finished {
		l.finished = true
		l.log.Info("match finished", zap.String("winner", l.state.Winner))
		if l.onFinish != nil {
			l.onFinish(l.id, l.state.Clone())
		}
	}
}

func (l *Lobby) cpuTurns() {
	for l.state.Current == CPU && !l.state.Finished() {
		ns, err := engine.Apply(l.state, CPU, engine.CPUMove(l.state))
		if err != nil {
			// CPUMove only proposes legal commands; bail rather than spin
			l.log.Warn("cpu move rejected", zap.Error(err))
			return
		}
		l.state = ns
	}
}

func (l *Lobby) armAFK() {
	if l.afk <= 0 {
		return
	}
	if l.afkTimer != nil {
		l.afkTimer.Stop()
	}
	l.afkGen++
	if l.state.Finished() {
		return
	}
	gen := l.afkGen
	l.afkTimer = time.AfterFunc(l.afk, func() {
		select {
		case l.inbox <- afkFired{Gen: gen}:
		case <-l.ctx.Done():
		}
	})
}

// idle is true once a finished match has no one watching.
func (l *Lobby) idle() bool {
	return l.state.Finished() && len(l.clients) == 0 && len(l.chat) == 0
}

func (l *Lobby) snapshot() Snapshot {
	return Snapshot{Version: l.version, Frame: board.ToFrame(l.state)}
}

func (l *Lobby) shutdown() {
	if l.afkTimer != nil {
		l.afkTimer.Stop()
	}
	for id, ch := range l.clients {
		close(ch) // Tell client no more snapshots
		delete(l.clients, id)
	}
	for id, ch := range l.chat {
		close(ch)
		delete(l.chat, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, ch := range l.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(l.clients, id)
		}
	}
}

func (l *Lobby) broadcastChat(m types.ChatMessage) {
	for id, ch := range l.chat {
		select {
		case ch <- m:
		default:
			close(ch)
			delete(l.chat, id)
		}
	}
}
