// Package apiclient is the thin REST layer shared by the auth and matchmaking
// clients: base URL resolution, the auth cookie, JSON bodies and status
// errors mapped to user-facing messages.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/quoridor-client/internal/logging"
	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

// CookieName carries the auth token on requests and channel dials.
const CookieName = "auth_token"

const maxBody = 1 << 20

var ErrAlreadyTaken = errors.New("username already taken")

// StatusError is any non-2xx response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// UnsupportedDataError is the server rejecting a request body; Message is
// meant for the user as is.
type UnsupportedDataError struct {
	Message string
}

func (e *UnsupportedDataError) Error() string { return e.Message }

// UserMessage turns a request failure into the text shown to the player.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrAlreadyTaken) {
		return "username already taken"
	}
	var ud *UnsupportedDataError
	if errors.As(err, &ud) {
		return ud.Message
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status >= 500:
			return "server error, retry later"
		case se.Status == http.StatusNotFound:
			return "user not found"
		case se.Status == http.StatusForbidden:
			return "incorrect credentials"
		}
		if msg, ok := bodyMessage([]byte(se.Body)); ok {
			return msg
		}
		return fmt.Sprintf("request failed (%d)", se.Status)
	}
	return err.Error()
}

// bodyMessage recognises the two error bodies the server sends with any
// status: the bare "AlreadyTaken" string and {"UnsupportedDataType": msg}.
func bodyMessage(body []byte) (string, bool) {
	if err := ResultError(body); err != nil {
		return UserMessage(err), true
	}
	return "", false
}

// ResultError inspects a response body for the in-band failure shapes.
// It returns nil when the body is something else.
func ResultError(body []byte) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	switch body[0] {
	case '"':
		var s string
		if json.Unmarshal(body, &s) == nil && s == types.AlreadyTaken {
			return ErrAlreadyTaken
		}
	case '{':
		var ud types.UnsupportedDataType
		if json.Unmarshal(body, &ud) == nil && ud.UnsupportedDataType != "" {
			return &UnsupportedDataError{Message: ud.UnsupportedDataType}
		}
	default:
		if string(body) == types.AlreadyTaken {
			return ErrAlreadyTaken
		}
	}
	return nil
}

// TokenSource yields the current auth token, or "" when signed out.
type TokenSource func() string

type Client struct {
	base  *url.URL
	http  *http.Client
	token TokenSource
	log   *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }
func WithLogger(l *zap.Logger) Option       { return func(c *Client) { c.log = l } }

func New(baseURL string, token TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		base:  u,
		http:  &http.Client{Timeout: 15 * time.Second},
		token: token,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrNop(c.log)
	if c.token == nil {
		c.token = func() string { return "" }
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return strings.TrimRight(c.base.String(), "/") + path
	}
	return c.base.ResolveReference(ref).String()
}

// Header returns the auth cookie header for a request or a channel dial.
// Empty when signed out.
func (c *Client) Header() http.Header {
	h := http.Header{}
	if tok := c.token(); tok != "" {
		h.Set("Cookie", (&http.Cookie{Name: CookieName, Value: tok}).String())
	}
	return h
}

// Get decodes a JSON response into out (skipped when out is nil).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	body, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decode(path, body, out)
}

// Post sends in as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	body, err := c.Do(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	return decode(path, body, out)
}

// Do performs one request and returns the raw body of a 2xx response.
// Non-2xx responses come back as *StatusError.
func (c *Client) Do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var rdr io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), rdr)
	if err != nil {
		return nil, err
	}
	req.Header = c.Header()
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func decode(path string, body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
