// Package store keeps accounts and win/lose records for the local server.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

var ErrNotFound = errors.New("user not found")
var ErrUsernameTaken = errors.New("username taken")
var ErrEmailTaken = errors.New("email taken")
var ErrBadPassword = errors.New("incorrect password")

// DefaultLeaderboardSize caps Leaderboard when limit <= 0.
const DefaultLeaderboardSize = 50

type User struct {
	Email        string
	Username     string
	PasswordHash string
	Guest        bool
	Wins         int
	Loses        int
}

func (u User) Stats() types.UserStats {
	return types.UserStats{Username: u.Username, Wins: u.Wins, Loses: u.Loses}
}

type UserStore interface {
	Create(ctx context.Context, u User) error
	ByEmail(ctx context.Context, email string) (User, error)
	// RecordResult bumps the winner's wins and the loser's loses. Identities
	// without an account (the CPU) are skipped.
	RecordResult(ctx context.Context, winner, loser string) error
	// Leaderboard lists players with more wins than loses, most wins first.
	Leaderboard(ctx context.Context, limit int) ([]types.UserStats, error)
	Close() error
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Authenticate looks up email and checks pw against the stored hash.
func Authenticate(ctx context.Context, s UserStore, email, pw string) (User, error) {
	u, err := s.ByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if u.Guest || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pw)) != nil {
		return User{}, ErrBadPassword
	}
	return u, nil
}

// Memory is a UserStore for tests and database-less runs.
type Memory struct {
	mu    sync.RWMutex
	users map[string]*User // by email
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]*User)}
}

func (m *Memory) Create(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return ErrEmailTaken
	}
	for _, other := range m.users {
		if strings.EqualFold(other.Username, u.Username) {
			return ErrUsernameTaken
		}
	}
	cp := u
	m.users[u.Email] = &cp
	return nil
}

func (m *Memory) ByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

func (m *Memory) RecordResult(_ context.Context, winner, loser string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[winner]; ok {
		u.Wins++
	}
	if u, ok := m.users[loser]; ok {
		u.Loses++
	}
	return nil
}

func (m *Memory) Leaderboard(_ context.Context, limit int) ([]types.UserStats, error) {
	m.mu.RLock()
	out := make([]types.UserStats, 0, len(m.users))
	for _, u := range m.users {
		if u.Wins > u.Loses {
			out = append(out, u.Stats())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].Username < out[j].Username
	})
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
