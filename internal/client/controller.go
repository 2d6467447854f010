// Package client wires auth, matchmaking and the session manager into the one
// object a front end drives.
package client

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quoridor-client/internal/auth"
	"github.com/DoyleJ11/quoridor-client/internal/engine"
	"github.com/DoyleJ11/quoridor-client/internal/logging"
	"github.com/DoyleJ11/quoridor-client/internal/matchmaking"
	"github.com/DoyleJ11/quoridor-client/internal/session"
	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

var ErrAlreadyHosting = errors.New("already hosting a match")

type Controller struct {
	auth *auth.Client
	mm   *matchmaking.Client
	sess *session.Manager
	log  *zap.Logger

	mu      sync.Mutex
	hosting *matchmaking.Hosting
}

func New(a *auth.Client, mm *matchmaking.Client, s *session.Manager, log *zap.Logger) *Controller {
	return &Controller{auth: a, mm: mm, sess: s, log: logging.OrNop(log).Named("controller")}
}

func (c *Controller) Session() *session.Manager { return c.sess }

func (c *Controller) User() (types.UserContext, bool) { return c.auth.Context() }

func (c *Controller) Login(ctx context.Context, email, password string) (types.UserContext, error) {
	uc, err := c.auth.Login(ctx, email, password)
	if err != nil {
		return uc, err
	}
	return uc, c.resume(ctx, uc)
}

func (c *Controller) RegisterUser(ctx context.Context, username, password, email string) (types.UserContext, error) {
	uc, err := c.auth.RegisterUser(ctx, username, password, email)
	if err != nil {
		return uc, err
	}
	return uc, c.resume(ctx, uc)
}

func (c *Controller) RegisterGuest(ctx context.Context, username string) (types.UserContext, error) {
	uc, err := c.auth.RegisterGuest(ctx, username)
	if err != nil {
		return uc, err
	}
	return uc, c.resume(ctx, uc)
}

// Restore resumes a stored session and rejoins its active match.
func (c *Controller) Restore(ctx context.Context) (types.UserContext, error) {
	uc, err := c.auth.RestoreContext(ctx)
	if err != nil {
		return uc, err
	}
	return uc, c.resume(ctx, uc)
}

// resume rejoins the match named by a fresh user context, if any.
func (c *Controller) resume(ctx context.Context, uc types.UserContext) error {
	id, ok := uc.Match()
	if !ok {
		return nil
	}
	c.log.Info("rejoining active match", zap.String("match_id", id))
	return c.enter(ctx, id)
}

func (c *Controller) enter(ctx context.Context, matchID string) error {
	return multierr.Combine(
		c.sess.EstablishGameSession(ctx, matchID),
		c.sess.EstablishChatSession(ctx, matchID),
	)
}

func (c *Controller) Solo(ctx context.Context) (string, error) {
	uc, err := c.mm.RequestSolo(ctx)
	if err != nil {
		return "", err
	}
	id, _ := uc.Match()
	return id, c.enter(ctx, id)
}

func (c *Controller) Join(ctx context.Context, hostID string) (string, error) {
	uc, err := c.mm.RequestJoin(ctx, hostID)
	if err != nil {
		return "", err
	}
	id, _ := uc.Match()
	return id, c.enter(ctx, id)
}

func (c *Controller) OpenMatches(ctx context.Context) ([]string, error) {
	return c.mm.PollOpenMatches(ctx)
}

func (c *Controller) Leaderboard(ctx context.Context) ([]types.UserStats, error) {
	return c.mm.Leaderboard(ctx)
}

func (c *Controller) Stats(ctx context.Context) (types.UserStats, error) {
	return c.auth.Stats(ctx)
}

// Host starts hosting. Follow with AwaitHost; CancelHost gives up.
func (c *Controller) Host(ctx context.Context) (*matchmaking.Hosting, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hosting != nil {
		select {
		case <-c.hosting.Done():
		default:
			return nil, ErrAlreadyHosting
		}
	}
	h, err := c.mm.RequestHost(ctx)
	if err != nil {
		return nil, err
	}
	c.hosting = h
	return h, nil
}

// AwaitHost waits for an opponent and opens the match channels.
func (c *Controller) AwaitHost(ctx context.Context, h *matchmaking.Hosting) (string, error) {
	id, err := h.Wait(ctx)
	if err != nil {
		return "", err
	}
	return id, c.enter(ctx, id)
}

func (c *Controller) CancelHost() {
	c.mu.Lock()
	h := c.hosting
	c.hosting = nil
	c.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
}

// Submit sends cmd as the signed-in player.
func (c *Controller) Submit(ctx context.Context, cmd engine.Command) error {
	uc, ok := c.auth.Context()
	if !ok {
		return auth.ErrNoContext
	}
	return c.sess.SubmitMove(ctx, uc.Identity(), cmd)
}

func (c *Controller) Concede(ctx context.Context) error {
	return c.Submit(ctx, engine.Concede())
}

func (c *Controller) Say(ctx context.Context, text string) error {
	if _, ok := c.auth.Context(); !ok {
		return auth.ErrNoContext
	}
	return c.sess.SendChat(ctx, text)
}

func (c *Controller) LeaveMatch(ctx context.Context) error {
	return c.sess.Teardown(ctx)
}

// Logout tears the session down and then signs out.
func (c *Controller) Logout(ctx context.Context) error {
	c.CancelHost()
	return multierr.Combine(
		c.sess.Teardown(ctx),
		c.auth.Logout(ctx),
	)
}
