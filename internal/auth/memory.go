package auth

import (
	"context"
	"sync"
	"time"

	"github.com/worldsrv/server/internal/persist"
)

// MemoryStore keeps accounts and player snapshots in process memory. It is
// the store used when no database is configured; everything is lost on exit.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*persist.AccountRow
	players  map[string]persist.PlayerRow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*persist.AccountRow),
		players:  make(map[string]persist.PlayerRow),
	}
}

func (m *MemoryStore) LoadAccount(_ context.Context, name string) (*persist.AccountRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[name]
	if !ok {
		return nil, nil
	}
	cp := *acc
	return &cp, nil
}

func (m *MemoryStore) CreateAccount(_ context.Context, name, rawPassword, ip string) (*persist.AccountRow, error) {
	hash, err := persist.HashPassword(rawPassword)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	acc := &persist.AccountRow{Name: name, PasswordHash: hash, IP: ip, CreatedAt: now, LastActive: &now}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[name] = acc
	cp := *acc
	return &cp, nil
}

func (m *MemoryStore) MarkActive(_ context.Context, name, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[name]; ok {
		now := time.Now()
		acc.LastActive = &now
		acc.IP = ip
	}
	return nil
}

// Ban marks an account as banned.
func (m *MemoryStore) Ban(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[name]; ok {
		acc.Banned = true
	}
}

func (m *MemoryStore) LoadPlayer(_ context.Context, name string) (*persist.PlayerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[name]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) SavePlayers(_ context.Context, rows []persist.PlayerRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.players[r.Name] = r
	}
	return nil
}
