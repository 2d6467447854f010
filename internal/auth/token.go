package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TokenTTL is how long a stored session token stays usable.
const TokenTTL = 7 * 24 * time.Hour

type storedToken struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// TokenStore persists the session token in a small file, the client's
// equivalent of a browser cookie. Safe for concurrent use.
type TokenStore struct {
	path string
	now  func() time.Time

	mu     sync.Mutex
	cached *storedToken
	loaded bool
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path, now: time.Now}
}

func (s *TokenStore) Path() string { return s.path }

// Save stores token with a fresh expiry of TokenTTL from now.
func (s *TokenStore) Save(token string) error {
	st := storedToken{Token: token, Expires: s.now().Add(TokenTTL)}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("token dir: %w", err)
	}
	if err := os.WriteFile(s.path, b, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	s.cached, s.loaded = &st, true
	return nil
}

// Load returns the stored token unless it is missing or expired.
func (s *TokenStore) Load() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.cached = s.read()
		s.loaded = true
	}
	if s.cached == nil || s.cached.Token == "" || !s.now().Before(s.cached.Expires) {
		return "", false
	}
	return s.cached.Token, true
}

// Token is Load without the flag; it fits apiclient.TokenSource.
func (s *TokenStore) Token() string {
	t, _ := s.Load()
	return t
}

func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached, s.loaded = nil, true
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *TokenStore) read() *storedToken {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var st storedToken
	if err := json.Unmarshal(b, &st); err != nil {
		return nil
	}
	return &st
}
