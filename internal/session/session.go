// Package session owns the live channels of one player: at most one game
// channel and at most one chat channel, the board model fed by the game
// channel, and chat history fed by the chat channel.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quoridor-client/internal/board"
	"github.com/DoyleJ11/quoridor-client/internal/chatstore"
	"github.com/DoyleJ11/quoridor-client/internal/connector"
	"github.com/DoyleJ11/quoridor-client/internal/engine"
	"github.com/DoyleJ11/quoridor-client/internal/logging"
	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

var ErrStopped = errors.New("session manager stopped")
var ErrNoGame = errors.New("no active game")
var ErrNoChat = errors.New("no active chat")
var ErrNoBoard = errors.New("board not loaded yet")

const (
	NoticeDecode = "failed to read message from server, try reloading"
	NoticeLost   = "connection lost, reconnecting"

	// Consecutive losses before a transport failure is surfaced.
	lostNoticeAfter = 3
)

// Listener receives session events. Calls run on the manager goroutine and
// must not call back into the Manager synchronously.
type Listener interface {
	BoardUpdated(matchID string, s engine.State)
	ChatReceived(matchID string, msg types.ChatMessage)
	Notice(text string)
}

type nopListener struct{}

func (nopListener) BoardUpdated(string, engine.State)      {}
func (nopListener) ChatReceived(string, types.ChatMessage) {}
func (nopListener) Notice(string)                          {}

type Purpose string

const (
	PurposeGame Purpose = "game"
	PurposeChat Purpose = "chat"
)

// OpenFunc opens a connector handle. connector.Open by default.
type OpenFunc func(ctx context.Context, uri string, onMessage func([]byte), opts ...connector.Option) *connector.Handle

type Config struct {
	BaseURL string
	// Header supplies the auth cookie on every dial.
	Header   func() http.Header
	Chat     chatstore.Store
	Listener Listener
	Logger   *zap.Logger

	MaxRetryDelay    time.Duration
	ConnectorOptions []connector.Option
	Open             OpenFunc
}

func GamePath(matchID string) string { return "/quoridor/events/" + url.PathEscape(matchID) }
func ChatPath(matchID string) string { return "/chat/" + url.PathEscape(matchID) }

type channel struct {
	handle  *connector.Handle
	matchID string
	gen     uint64
	losses  int
}

type Msg interface{ isSessionMsg() }

type establish struct {
	Purpose Purpose
	MatchID string
	Reply   chan error
}

type teardown struct {
	Reply chan teardownResult
}

type teardownResult struct {
	handles []*connector.Handle
	err     error
}

type inbound struct {
	Purpose Purpose
	Gen     uint64
	Data    []byte
}

type opened struct {
	Purpose Purpose
	Gen     uint64
}

type lost struct {
	Purpose Purpose
	Gen     uint64
	Err     error
}

type submit struct {
	Player string
	Cmd    engine.Command
	Reply  chan outbound
}

type chatSend struct {
	Reply chan outbound
}

type outbound struct {
	handle *connector.Handle
	err    error
}

type getBoard struct {
	Reply chan boardView
}

type boardView struct {
	matchID string
	state   engine.State
	loaded  bool
}

func (establish) isSessionMsg() {}
func (teardown) isSessionMsg()  {}
func (inbound) isSessionMsg()   {}
func (opened) isSessionMsg()    {}
func (lost) isSessionMsg()      {}
func (submit) isSessionMsg()    {}
func (chatSend) isSessionMsg()  {}
func (getBoard) isSessionMsg()  {}

type Manager struct {
	inbox  chan Msg
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	cfg      Config
	log      *zap.Logger
	listener Listener
	chat     chatstore.Store

	// owned by loop
	game    *channel
	chatCh  *channel
	board   board.Model
	nextGen uint64
}

func New(parent context.Context, cfg Config) *Manager {
	ctx, cancel := context.WithCancel(parent)
	m := &Manager{
		inbox:    make(chan Msg, 64),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		cfg:      cfg,
		log:      logging.OrNop(cfg.Logger).Named("session"),
		listener: cfg.Listener,
		chat:     cfg.Chat,
	}
	if m.listener == nil {
		m.listener = nopListener{}
	}
	if m.chat == nil {
		m.chat = chatstore.NewMemory()
	}
	if m.cfg.Open == nil {
		m.cfg.Open = connector.Open
	}
	if m.cfg.Header == nil {
		m.cfg.Header = func() http.Header { return nil }
	}
	go m.loop()
	return m
}

// EstablishGameSession makes matchID the one live game channel, closing any
// previous one first.
func (m *Manager) EstablishGameSession(ctx context.Context, matchID string) error {
	return m.establish(ctx, PurposeGame, matchID)
}

// EstablishChatSession makes matchID the one live chat channel.
func (m *Manager) EstablishChatSession(ctx context.Context, matchID string) error {
	return m.establish(ctx, PurposeChat, matchID)
}

func (m *Manager) establish(ctx context.Context, p Purpose, matchID string) error {
	reply := make(chan error, 1)
	if err := m.send(ctx, establish{Purpose: p, MatchID: matchID, Reply: reply}); err != nil {
		return err
	}
	return recv(ctx, m, reply)
}

// Teardown closes both channels, waits for them to stop and drops the board
// and chat history of the match.
func (m *Manager) Teardown(ctx context.Context) error {
	reply := make(chan teardownResult, 1)
	if err := m.send(ctx, teardown{Reply: reply}); err != nil {
		return err
	}
	res, err := recvValue(ctx, m, reply)
	if err != nil {
		return err
	}
	errs := res.err
	for _, h := range res.handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, ctx.Err())
		}
	}
	return errs
}

// SubmitMove checks cmd against the local board and sends it on the game
// channel. The server stays authoritative; a nil error only means sent.
func (m *Manager) SubmitMove(ctx context.Context, player string, cmd engine.Command) error {
	reply := make(chan outbound, 1)
	if err := m.send(ctx, submit{Player: player, Cmd: cmd, Reply: reply}); err != nil {
		return err
	}
	out, err := recvValue(ctx, m, reply)
	if err != nil {
		return err
	}
	if out.err != nil {
		return out.err
	}
	return out.handle.SendJSON(ctx, board.MoveOf(cmd))
}

func (m *Manager) Concede(ctx context.Context, player string) error {
	return m.SubmitMove(ctx, player, engine.Concede())
}

// SendChat posts plain text on the chat channel.
func (m *Manager) SendChat(ctx context.Context, text string) error {
	reply := make(chan outbound, 1)
	if err := m.send(ctx, chatSend{Reply: reply}); err != nil {
		return err
	}
	out, err := recvValue(ctx, m, reply)
	if err != nil {
		return err
	}
	if out.err != nil {
		return out.err
	}
	return out.handle.Send(ctx, []byte(text))
}

// Board returns the current board and whether a frame has arrived yet.
func (m *Manager) Board(ctx context.Context) (engine.State, bool, error) {
	v, err := m.view(ctx)
	return v.state, v.loaded, err
}

// ActiveGame is the match id of the live game channel, "" when none.
func (m *Manager) ActiveGame(ctx context.Context) (string, error) {
	v, err := m.view(ctx)
	return v.matchID, err
}

func (m *Manager) view(ctx context.Context) (boardView, error) {
	reply := make(chan boardView, 1)
	if err := m.send(ctx, getBoard{Reply: reply}); err != nil {
		return boardView{}, err
	}
	return recvValue(ctx, m, reply)
}

func (m *Manager) ChatHistory(ctx context.Context, matchID string) ([]types.ChatMessage, error) {
	return m.chat.List(ctx, matchID)
}

// Close stops the manager and both channels without waiting.
func (m *Manager) Close() {
	m.cancel()
}

func (m *Manager) Done() <-chan struct{} { return m.done }

func (m *Manager) send(ctx context.Context, msg Msg) error {
	select {
	case m.inbox <- msg:
		return nil
	case <-m.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recv(ctx context.Context, m *Manager, ch <-chan error) error {
	err, rerr := recvValue(ctx, m, ch)
	if rerr != nil {
		return rerr
	}
	return err
}

func recvValue[T any](ctx context.Context, m *Manager, ch <-chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-m.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// post is used by connector callbacks; it gives up once the manager stops.
func (m *Manager) post(msg Msg) {
	select {
	case m.inbox <- msg:
	case <-m.ctx.Done():
	}
}

func (m *Manager) loop() {
	defer close(m.done)
	for {
		select {
		case <-m.ctx.Done():
			m.closeChannel(m.game)
			m.closeChannel(m.chatCh)
			m.game, m.chatCh = nil, nil
			return

		case msg := <-m.inbox:
			switch msg := msg.(type) {
			case establish:
				msg.Reply <- m.handleEstablish(msg.Purpose, msg.MatchID)

			case teardown:
				msg.Reply <- m.handleTeardown()

			case inbound:
				m.handleInbound(msg)

			case opened:
				if ch := m.current(msg.Purpose); ch != nil && ch.gen == msg.Gen {
					ch.losses = 0
				}

			case lost:
				m.handleLost(msg)

			case submit:
				msg.Reply <- m.handleSubmit(msg.Player, msg.Cmd)

			case chatSend:
				if m.chatCh == nil {
					msg.Reply <- outbound{err: ErrNoChat}
					break
				}
				msg.Reply <- outbound{handle: m.chatCh.handle}

			case getBoard:
				v := boardView{loaded: m.board.Loaded(), state: m.board.State()}
				if m.game != nil {
					v.matchID = m.game.matchID
				}
				msg.Reply <- v
			}
		}
	}
}

func (m *Manager) current(p Purpose) *channel {
	if p == PurposeGame {
		return m.game
	}
	return m.chatCh
}

func (m *Manager) handleEstablish(p Purpose, matchID string) error {
	uri, err := connector.Resolve(m.cfg.BaseURL, pathFor(p, matchID))
	if err != nil {
		return err
	}

	old := m.current(p)
	m.closeChannel(old)
	if p == PurposeGame && (old == nil || old.matchID != matchID) {
		m.board.Clear()
	}

	m.nextGen++
	gen := m.nextGen
	opts := []connector.Option{
		connector.WithHeader(m.cfg.Header),
		connector.WithLogger(m.log.With(zap.String("purpose", string(p)), zap.String("match_id", matchID))),
		connector.WithOnOpen(func() { m.post(opened{Purpose: p, Gen: gen}) }),
		connector.WithOnClose(func(err error) { m.post(lost{Purpose: p, Gen: gen, Err: err}) }),
	}
	if m.cfg.MaxRetryDelay > 0 {
		opts = append(opts, connector.WithBackoff(connector.DefaultInitialDelay, m.cfg.MaxRetryDelay))
	}
	opts = append(opts, m.cfg.ConnectorOptions...)

	h := m.cfg.Open(m.ctx, uri, func(data []byte) {
		m.post(inbound{Purpose: p, Gen: gen, Data: data})
	}, opts...)

	ch := &channel{handle: h, matchID: matchID, gen: gen}
	if p == PurposeGame {
		m.game = ch
	} else {
		m.chatCh = ch
	}
	m.log.Info("channel established", zap.String("purpose", string(p)), zap.String("match_id", matchID))
	return nil
}

func (m *Manager) handleTeardown() teardownResult {
	var res teardownResult
	matches := map[string]struct{}{}
	for _, ch := range []*channel{m.game, m.chatCh} {
		if ch == nil {
			continue
		}
		ch.handle.Close()
		res.handles = append(res.handles, ch.handle)
		matches[ch.matchID] = struct{}{}
	}
	for id := range matches {
		res.err = multierr.Append(res.err, m.chat.Clear(m.ctx, id))
	}
	m.game, m.chatCh = nil, nil
	m.board.Clear()
	m.log.Info("session torn down", zap.Int("channels", len(res.handles)))
	return res
}

func (m *Manager) handleInbound(msg inbound) {
	ch := m.current(msg.Purpose)
	if ch == nil || ch.gen != msg.Gen {
		// frame from a replaced or closed channel
		return
	}

	switch msg.Purpose {
	case PurposeGame:
		f, err := board.Decode(msg.Data)
		if err != nil {
			m.log.Warn("bad game frame", zap.String("match_id", ch.matchID), zap.Error(err))
			m.listener.Notice(NoticeDecode)
			return
		}
		m.listener.BoardUpdated(ch.matchID, m.board.ApplyServerFrame(f))

	case PurposeChat:
		var cm types.ChatMessage
		if err := json.Unmarshal(msg.Data, &cm); err != nil {
			m.log.Debug("bad chat frame", zap.String("match_id", ch.matchID), zap.Error(err))
			return
		}
		if err := m.chat.Append(m.ctx, ch.matchID, cm); err != nil {
			m.log.Warn("chat history append", zap.Error(err))
		}
		m.listener.ChatReceived(ch.matchID, cm)
	}
}

func (m *Manager) handleLost(msg lost) {
	ch := m.current(msg.Purpose)
	if ch == nil || ch.gen != msg.Gen {
		return
	}
	ch.losses++
	if msg.Purpose == PurposeGame && ch.losses == lostNoticeAfter {
		m.listener.Notice(NoticeLost)
	}
}

func (m *Manager) handleSubmit(player string, cmd engine.Command) outbound {
	if m.game == nil {
		return outbound{err: ErrNoGame}
	}
	if !m.board.Loaded() {
		return outbound{err: ErrNoBoard}
	}
	if err := engine.Check(m.board.State(), player, cmd); err != nil {
		return outbound{err: err}
	}
	return outbound{handle: m.game.handle}
}

func (m *Manager) closeChannel(ch *channel) {
	if ch == nil {
		return
	}
	ch.handle.Close()
}

func pathFor(p Purpose, matchID string) string {
	if p == PurposeGame {
		return GamePath(matchID)
	}
	return ChatPath(matchID)
}
