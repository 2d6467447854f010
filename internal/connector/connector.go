// Package connector keeps one long-lived websocket channel open, reconnecting
// with capped exponential backoff until its owner closes it.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/quoridor-client/internal/logging"
)

var ErrClosed = errors.New("connector: channel closed")
var ErrNotConnected = errors.New("connector: not connected")

const (
	DefaultKeepAlive        = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

// DialFunc opens one websocket. Swappable for tests and custom transports.
type DialFunc func(ctx context.Context, uri string, header http.Header) (*websocket.Conn, error)

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

type options struct {
	onOpen    func()
	onClose   func(error)
	header    func() http.Header
	dial      DialFunc
	wait      WaitFunc
	backoff   *Backoff
	keepAlive time.Duration
	log       *zap.Logger
}

type Option func(*options)

// WithOnClose is invoked after every unexpected loss of the channel, before
// the reconnect wait. It is not invoked after Close.
func WithOnClose(fn func(error)) Option { return func(o *options) { o.onClose = fn } }

func WithOnOpen(fn func()) Option { return func(o *options) { o.onOpen = fn } }

// WithHeader is evaluated on every dial so refreshed credentials are picked up.
func WithHeader(fn func() http.Header) Option { return func(o *options) { o.header = fn } }

func WithDialer(fn DialFunc) Option { return func(o *options) { o.dial = fn } }

func WithWait(fn WaitFunc) Option { return func(o *options) { o.wait = fn } }

func WithBackoff(initial, ceiling time.Duration) Option {
	return func(o *options) { o.backoff = NewBackoff(initial, ceiling) }
}

// WithKeepAlive sets the ping interval; zero disables pings.
func WithKeepAlive(d time.Duration) Option { return func(o *options) { o.keepAlive = d } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// Handle is one reconnecting channel.
type Handle struct {
	uri       string
	onMessage func([]byte)
	opts      options

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

// Open starts connecting to uri in the background and returns immediately.
// onMessage runs once per inbound frame, in arrival order, never
// concurrently with itself.
func Open(ctx context.Context, uri string, onMessage func([]byte), opts ...Option) *Handle {
	o := options{
		dial:      Dial,
		wait:      sleep,
		keepAlive: DefaultKeepAlive,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.backoff == nil {
		o.backoff = NewBackoff(DefaultInitialDelay, DefaultMaxDelay)
	}
	o.log = logging.OrNop(o.log).With(zap.String("uri", uri))

	hctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		uri:       uri,
		onMessage: onMessage,
		opts:      o,
		ctx:       hctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Handle) URI() string { return h.uri }

// Done is closed once the handle has stopped for good.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Close shuts the channel down permanently: no reconnect, pending waits are
// abandoned. It does not block, so it is safe to call from onMessage.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.opts.log.Debug("channel close requested")
		h.cancel()
	})
}

func (h *Handle) Closed() bool { return h.ctx.Err() != nil }

func (h *Handle) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

func (h *Handle) Send(ctx context.Context, data []byte) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	return c.Write(ctx, websocket.MessageText, data)
}

// SendJSON writes v as a single text frame with no trailing newline.
func (h *Handle) SendJSON(ctx context.Context, v any) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Write(ctx, websocket.MessageText, b)
}

func (h *Handle) current() (*websocket.Conn, error) {
	if h.Closed() {
		return nil, ErrClosed
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return nil, ErrNotConnected
	}
	return h.conn, nil
}

func (h *Handle) setConn(c *websocket.Conn) {
	h.mu.Lock()
	h.conn = c
	h.mu.Unlock()
}

func (h *Handle) run() {
	defer close(h.done)

	attempt := 0
	for {
		opened, err := h.serve()
		if h.Closed() {
			h.opts.log.Debug("channel closed")
			return
		}
		if opened {
			attempt = 0
		}
		attempt++

		if h.opts.onClose != nil {
			h.opts.onClose(err)
		}

		delay := h.opts.backoff.Next()
		h.opts.log.Warn("channel lost, reconnecting",
			zap.Duration("retry_in", delay),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if err := h.opts.wait(h.ctx, delay); err != nil {
			return
		}
	}
}

// serve dials once and pumps frames until the socket fails. opened reports
// whether the dial itself succeeded.
func (h *Handle) serve() (opened bool, err error) {
	var header http.Header
	if h.opts.header != nil {
		header = h.opts.header()
	}

	conn, err := h.opts.dial(h.ctx, h.uri, header)
	if err != nil {
		return false, err
	}
	h.opts.backoff.Reset()
	h.setConn(conn)
	defer func() {
		h.setConn(nil)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	h.opts.log.Info("channel open")
	if h.opts.onOpen != nil {
		h.opts.onOpen()
	}

	g, gctx := errgroup.WithContext(h.ctx)
	g.Go(func() error {
		for {
			_, data, err := conn.Read(gctx)
			if err != nil {
				return err
			}
			if h.Closed() {
				return ErrClosed
			}
			h.onMessage(data)
		}
	})
	if h.opts.keepAlive > 0 {
		g.Go(func() error {
			t := time.NewTicker(h.opts.keepAlive)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					pctx, cancel := context.WithTimeout(gctx, h.opts.keepAlive)
					err := conn.Ping(pctx)
					cancel()
					if err != nil {
						return fmt.Errorf("keepalive: %w", err)
					}
				}
			}
		})
	}
	return true, g.Wait()
}

// Dial is the default DialFunc.
func Dial(ctx context.Context, uri string, header http.Header) (*websocket.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, DefaultHandshakeTimeout)
	defer cancel()

	c, resp, err := websocket.Dial(dctx, uri, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", uri, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", uri, err)
	}
	return c, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Resolve joins a REST base URL and a channel path into a ws(s) URI.
func Resolve(base, path string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	u := b.ResolveReference(ref)
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}
