// Package matchmaking finds or creates matches: solo games against the CPU,
// joining a hosted match, listing open matches and hosting one.
package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/quoridor-client/internal/apiclient"
	"github.com/DoyleJ11/quoridor-client/internal/connector"
	"github.com/DoyleJ11/quoridor-client/internal/logging"
	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

const (
	PathSolo        = "/quoridor/solo"
	PathQueue       = "/quoridor/que"
	PathHost        = "/quoridor/que/host"
	PathJoin        = "/quoridor/que/join/"
	PathLeaderboard = "/leaderboard"
)

var ErrHostCancelled = errors.New("hosting cancelled")
var ErrNoMatch = errors.New("server returned no match")
var ErrEmptyMatchID = errors.New("empty match id")

type Client struct {
	api  *apiclient.Client
	log  *zap.Logger
	open func(ctx context.Context, uri string, onMessage func([]byte), opts ...connector.Option) *connector.Handle
	opts []connector.Option
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// WithConnectorOptions are appended to the hosting channel's options.
func WithConnectorOptions(opts ...connector.Option) Option {
	return func(c *Client) { c.opts = append(c.opts, opts...) }
}

func New(api *apiclient.Client, opts ...Option) *Client {
	c := &Client{api: api, open: connector.Open}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrNop(c.log).Named("matchmaking")
	return c
}

// RequestSolo starts a match against the CPU. The returned context names it
// in ActiveMatch.
func (c *Client) RequestSolo(ctx context.Context) (types.UserContext, error) {
	return c.matchContext(ctx, PathSolo)
}

// RequestJoin takes the open seat of a hosted match.
func (c *Client) RequestJoin(ctx context.Context, hostID string) (types.UserContext, error) {
	if strings.TrimSpace(hostID) == "" {
		return types.UserContext{}, ErrEmptyMatchID
	}
	return c.matchContext(ctx, PathJoin+url.PathEscape(hostID))
}

func (c *Client) matchContext(ctx context.Context, path string) (types.UserContext, error) {
	var uc types.UserContext
	if err := c.api.Get(ctx, path, &uc); err != nil {
		c.log.Info("match request failed", zap.String("path", path), zap.Error(err))
		return types.UserContext{}, err
	}
	if _, ok := uc.Match(); !ok {
		return types.UserContext{}, ErrNoMatch
	}
	return uc, nil
}

// PollOpenMatches lists ids of hosted matches waiting for an opponent.
func (c *Client) PollOpenMatches(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.api.Get(ctx, PathQueue, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) Leaderboard(ctx context.Context) ([]types.UserStats, error) {
	var out []types.UserStats
	if err := c.api.Get(ctx, PathLeaderboard, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Hosting is a pending hosted match. It resolves exactly once: with the match
// id when an opponent joins, or with ErrHostCancelled.
type Hosting struct {
	handle *connector.Handle
	done   chan struct{}
	once   sync.Once
	id     string
	err    error
}

// RequestHost opens the matchmaking channel and waits in the background for
// the single event carrying the match id.
func (c *Client) RequestHost(ctx context.Context) (*Hosting, error) {
	uri, err := connector.Resolve(c.api.BaseURL(), PathHost)
	if err != nil {
		return nil, err
	}
	h := &Hosting{done: make(chan struct{})}
	ready := make(chan struct{})

	opts := append([]connector.Option{
		connector.WithHeader(c.api.Header),
		connector.WithLogger(c.log.With(zap.String("purpose", "host"))),
	}, c.opts...)

	h.handle = c.open(ctx, uri, func(data []byte) {
		<-ready
		id := parseMatchID(data)
		if id == "" {
			c.log.Warn("ignoring empty host event")
			return
		}
		h.resolve(id, nil)
	}, opts...)
	close(ready)

	// a parent cancellation counts as the user giving up
	go func() {
		select {
		case <-h.handle.Done():
			h.resolve("", ErrHostCancelled)
		case <-h.done:
		}
	}()
	return h, nil
}

func (h *Hosting) resolve(id string, err error) {
	h.once.Do(func() {
		h.id, h.err = id, err
		h.handle.Close()
		close(h.done)
	})
}

// Cancel gives up hosting. The channel is closed without reconnecting.
func (h *Hosting) Cancel() { h.resolve("", ErrHostCancelled) }

func (h *Hosting) Done() <-chan struct{} { return h.done }

// Wait blocks until the hosting resolves or ctx ends.
func (h *Hosting) Wait(ctx context.Context) (string, error) {
	select {
	case <-h.done:
		return h.id, h.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// parseMatchID accepts the id as raw text or as a JSON string.
func parseMatchID(data []byte) string {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, `"`) {
		var id string
		if json.Unmarshal([]byte(s), &id) == nil {
			return strings.TrimSpace(id)
		}
	}
	return s
}
