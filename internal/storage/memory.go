package storage

import (
	"context"
	"sync"
	"time"

	"github.com/andyleap/authd/internal/models"
)

type ownerKey struct {
	clientID string
	username string
}

// MemoryCredentialStore keeps credentials in two maps guarded by one
// mutex, so both index paths update together.
type MemoryCredentialStore struct {
	byValue map[string]*models.CredentialRecord
	byOwner map[ownerKey]*models.CredentialRecord
	mu      sync.RWMutex
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	store := &MemoryCredentialStore{
		byValue: make(map[string]*models.CredentialRecord),
		byOwner: make(map[ownerKey]*models.CredentialRecord),
	}

	go store.cleanupRoutine()

	return store
}

func (m *MemoryCredentialStore) Put(ctx context.Context, record *models.CredentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byValue[record.Value] = record
	m.byOwner[ownerKey{record.ClientID, record.Username}] = record
	return nil
}

func (m *MemoryCredentialStore) GetByValue(ctx context.Context, value string) (*models.CredentialRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.byValue[value]
	if !exists {
		return nil, nil
	}
	return record, nil
}

func (m *MemoryCredentialStore) GetByOwner(ctx context.Context, clientID, username string) (*models.CredentialRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.byOwner[ownerKey{clientID, username}]
	if !exists {
		return nil, nil
	}
	return record, nil
}

func (m *MemoryCredentialStore) Remove(ctx context.Context, record *models.CredentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.byValue, record.Value)

	// Only drop the owner index if it still points at this record; a
	// newer credential for the same owner must survive the removal of
	// an older one.
	key := ownerKey{record.ClientID, record.Username}
	if current, exists := m.byOwner[key]; exists && current.Value == record.Value {
		delete(m.byOwner, key)
	}
	return nil
}

// cleanupRoutine sweeps expired credentials every 5 minutes.
func (m *MemoryCredentialStore) cleanupRoutine() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.cleanup(time.Now())
	}
}

func (m *MemoryCredentialStore) cleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for value, record := range m.byValue {
		if record.Expired(now) {
			delete(m.byValue, value)
		}
	}
	for key, record := range m.byOwner {
		if record.Expired(now) {
			delete(m.byOwner, key)
		}
	}
}

type MemorySessionStore struct {
	sessions map[string]*models.Session
	mu       sync.RWMutex
}

func NewMemorySessionStore() *MemorySessionStore {
	store := &MemorySessionStore{
		sessions: make(map[string]*models.Session),
	}

	go store.cleanupRoutine()

	return store
}

func (m *MemorySessionStore) SaveSession(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = session
	return nil
}

func (m *MemorySessionStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[sessionID]
	m.mu.RUnlock()

	if !exists {
		return nil, nil
	}

	if time.Now().After(session.ExpiresAt) {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		return nil, nil
	}

	return session, nil
}

func (m *MemorySessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

func (m *MemorySessionStore) cleanupRoutine() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		now := time.Now()
		for id, session := range m.sessions {
			if now.After(session.ExpiresAt) {
				delete(m.sessions, id)
			}
		}
		m.mu.Unlock()
	}
}
