// Package chatstore keeps chat history per match for the lifetime of a
// client session.
package chatstore

import (
	"context"
	"sync"

	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

type Store interface {
	Append(ctx context.Context, matchID string, msg types.ChatMessage) error
	// List returns history oldest first.
	List(ctx context.Context, matchID string) ([]types.ChatMessage, error)
	Clear(ctx context.Context, matchID string) error
	Close() error
}

// Memory is the default Store.
type Memory struct {
	mu      sync.Mutex
	history map[string][]types.ChatMessage
}

func NewMemory() *Memory {
	return &Memory{history: make(map[string][]types.ChatMessage)}
}

func (m *Memory) Append(_ context.Context, matchID string, msg types.ChatMessage) error {
	m.mu.Lock()
	m.history[matchID] = append(m.history[matchID], msg)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, matchID string) ([]types.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ChatMessage(nil), m.history[matchID]...), nil
}

func (m *Memory) Clear(_ context.Context, matchID string) error {
	m.mu.Lock()
	delete(m.history, matchID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
