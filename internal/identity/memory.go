package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryAccountRepository is a mutex-guarded in-memory AccountRepository used
// for unit tests and for running without MongoDB. It enforces the same
// uniqueness constraint as the Mongo indexes: at most one account per
// external id.
type MemoryAccountRepository struct {
	mu    sync.Mutex
	next  int
	store map[string]*Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{store: make(map[string]*Account)}
}

func (m *MemoryAccountRepository) GetByExternalID(ctx context.Context, externalID string) (*Account, error) {
	if externalID == "" {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.store {
		if a.ExternalID == externalID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryAccountRepository) FindMatches(ctx context.Context, adminEmail, name string) ([]*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Account
	for _, a := range m.store {
		if a.AdminEmail == adminEmail || a.Name == name {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAccountRepository) Insert(ctx context.Context, a *Account) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ExternalID != "" {
		for _, existing := range m.store {
			if existing.ExternalID == a.ExternalID {
				return nil, ErrDuplicate
			}
		}
	}
	if a.ID == "" {
		m.next++
		a.ID = fmt.Sprintf("acct-%06d", m.next)
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	cp := *a
	m.store[a.ID] = &cp
	return a, nil
}

func (m *MemoryAccountRepository) SetExternalID(ctx context.Context, id, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	for _, existing := range m.store {
		if existing.ID != id && existing.ExternalID == externalID {
			return ErrDuplicate
		}
	}
	a.ExternalID = externalID
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Len reports how many accounts are stored; test helper.
func (m *MemoryAccountRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// MemoryUserRepository is the in-memory UserRepository counterpart, enforcing
// uniqueness of (account_id, external_id).
type MemoryUserRepository struct {
	mu    sync.Mutex
	next  int
	store map[string]*User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{store: make(map[string]*User)}
}

func (m *MemoryUserRepository) GetByExternalID(ctx context.Context, accountID, externalID string) (*User, error) {
	if externalID == "" {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.store {
		if u.AccountID == accountID && u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryUserRepository) FindMatches(ctx context.Context, accountID, username, email, firstName, lastName string) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*User
	for _, u := range m.store {
		if u.AccountID != accountID {
			continue
		}
		if u.Username == username || u.Email == email || (u.FirstName == firstName && u.LastName == lastName) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryUserRepository) Insert(ctx context.Context, u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ExternalID != "" {
		for _, existing := range m.store {
			if existing.AccountID == u.AccountID && existing.ExternalID == u.ExternalID {
				return nil, ErrDuplicate
			}
		}
	}
	if u.ID == "" {
		m.next++
		u.ID = fmt.Sprintf("user-%06d", m.next)
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	m.store[u.ID] = &cp
	return u, nil
}

func (m *MemoryUserRepository) SetExternalID(ctx context.Context, id, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	for _, existing := range m.store {
		if existing.ID != id && existing.AccountID == target.AccountID && existing.ExternalID == externalID {
			return ErrDuplicate
		}
	}
	target.ExternalID = externalID
	target.UpdatedAt = time.Now().UTC()
	return nil
}

// Len reports how many users are stored; test helper.
func (m *MemoryUserRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}
