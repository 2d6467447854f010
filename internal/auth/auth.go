// Package auth talks to the /auth endpoints and is the only writer of the
// player's UserContext and stored session token.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quoridor-client/internal/apiclient"
	"github.com/DoyleJ11/quoridor-client/internal/logging"
	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

const (
	PathLogin    = "/auth/login"
	PathGuest    = "/auth/guest_login"
	PathRegister = "/auth/register"
	PathLogout   = "/auth/logout"
	PathContext  = "/auth/context/"
	PathStats    = "/auth/stats"

	// MaxPasswordBytes is the bcrypt input limit enforced by the server.
	MaxPasswordBytes = 72
)

var ErrPasswordTooLong = errors.New("password too long")
var ErrNoToken = errors.New("no stored session")
var ErrNoContext = errors.New("not signed in")

var validate = validator.New()

type Client struct {
	api    *apiclient.Client
	tokens *TokenStore
	log    *zap.Logger

	onContext func(*types.UserContext)

	mu  sync.RWMutex
	ctx *types.UserContext
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// WithOnContext is called after every change of the user context; nil means
// signed out. It runs on the calling goroutine.
func WithOnContext(fn func(*types.UserContext)) Option {
	return func(c *Client) { c.onContext = fn }
}

func New(api *apiclient.Client, tokens *TokenStore, opts ...Option) *Client {
	c := &Client{api: api, tokens: tokens}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrNop(c.log).Named("auth")
	return c
}

// Context is the signed-in user, if any.
func (c *Client) Context() (types.UserContext, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ctx == nil {
		return types.UserContext{}, false
	}
	return *c.ctx, true
}

func (c *Client) Login(ctx context.Context, email, password string) (types.UserContext, error) {
	if len(password) > MaxPasswordBytes {
		return types.UserContext{}, ErrPasswordTooLong
	}
	body := types.Credentials{Email: email, Password: password}
	if err := validate.Struct(body); err != nil {
		return types.UserContext{}, invalid(err)
	}
	return c.authenticate(ctx, http.MethodPost, PathLogin, body)
}

func (c *Client) RegisterUser(ctx context.Context, username, password, email string) (types.UserContext, error) {
	if len(password) > MaxPasswordBytes {
		return types.UserContext{}, ErrPasswordTooLong
	}
	body := types.Registration{Username: username, Email: email, Password: password}
	if err := validate.Struct(body); err != nil {
		return types.UserContext{}, invalid(err)
	}
	return c.authenticate(ctx, http.MethodPost, PathRegister, body)
}

func (c *Client) RegisterGuest(ctx context.Context, username string) (types.UserContext, error) {
	body := types.GuestLogin{Username: username}
	if err := validate.Struct(body); err != nil {
		return types.UserContext{}, invalid(err)
	}
	return c.authenticate(ctx, http.MethodPost, PathGuest, body)
}

// RestoreContext resumes a stored session. Without a stored token no request
// is made.
func (c *Client) RestoreContext(ctx context.Context) (types.UserContext, error) {
	if _, ok := c.tokens.Load(); !ok {
		c.setContext(nil)
		return types.UserContext{}, ErrNoToken
	}
	uc, err := c.authenticate(ctx, http.MethodGet, PathContext, nil)
	if err != nil {
		var se *apiclient.StatusError
		if errors.As(err, &se) && se.Status < 500 {
			// server no longer knows the token
			_ = c.tokens.Clear()
			c.setContext(nil)
		}
	}
	return uc, err
}

// Logout always forgets the local session, even when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.api.Do(ctx, http.MethodGet, PathLogout, nil)
	if cerr := c.tokens.Clear(); cerr != nil {
		c.log.Warn("clear token", zap.Error(cerr))
	}
	c.setContext(nil)
	if err != nil {
		c.log.Info("logout request failed", zap.Error(err))
	}
	return err
}

func (c *Client) Stats(ctx context.Context) (types.UserStats, error) {
	var st types.UserStats
	if _, ok := c.Context(); !ok {
		return st, ErrNoContext
	}
	err := c.api.Get(ctx, PathStats, &st)
	return st, err
}

func (c *Client) authenticate(ctx context.Context, method, path string, in any) (types.UserContext, error) {
	body, err := c.api.Do(ctx, method, path, in)
	if err != nil {
		c.log.Info("auth request failed", zap.String("path", path), zap.Error(err))
		return types.UserContext{}, err
	}
	if err := apiclient.ResultError(body); err != nil {
		return types.UserContext{}, err
	}

	var uc types.UserContext
	if err := json.Unmarshal(body, &uc); err != nil {
		return types.UserContext{}, fmt.Errorf("decode user context: %w", err)
	}
	if uc.AuthToken != "" {
		if err := c.tokens.Save(uc.AuthToken); err != nil {
			c.log.Warn("persist token", zap.Error(err))
		}
	}
	c.setContext(&uc)

	fields := []zap.Field{zap.String("user", uc.Username)}
	if id, ok := uc.Match(); ok {
		fields = append(fields, zap.String("match_id", id))
	}
	c.log.Info("signed in", fields...)
	return uc, nil
}

func (c *Client) setContext(uc *types.UserContext) {
	c.mu.Lock()
	c.ctx = uc
	c.mu.Unlock()
	if c.onContext != nil {
		c.onContext(uc)
	}
}

// invalid reports a validation failure in the server's rejected-data shape.
func invalid(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &apiclient.UnsupportedDataError{Message: fmt.Sprintf("invalid %s", strings.ToLower(fe.Field()))}
	}
	return &apiclient.UnsupportedDataError{Message: err.Error()}
}
