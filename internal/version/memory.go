package version

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps versions in process memory. It backs tests and
// single-node deployments without a database.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]*Version
	byDocument map[string][]*Version
	now        func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]*Version),
		byDocument: make(map[string][]*Version),
		now:        time.Now,
	}
}

// Append freezes a draft into the next version of its document
func (m *MemoryStore) Append(ctx context.Context, draft Draft) (*Version, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	number := len(m.byDocument[draft.DocumentID]) + 1
	v := freeze(draft, uuid.NewString(), number, m.now(), uuid.NewString)

	m.byID[v.ID] = v
	m.byDocument[draft.DocumentID] = append(m.byDocument[draft.DocumentID], v)
	return clone(v), nil
}

// Get returns a version by id
func (m *MemoryStore) Get(ctx context.Context, id string) (*Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

// List returns the versions of a document, oldest first
func (m *MemoryStore) List(ctx context.Context, documentID string) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.byDocument[documentID]
	out := make([]Summary, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Summarize())
	}
	return out, nil
}

// Latest returns the newest version of a document
func (m *MemoryStore) Latest(ctx context.Context, documentID string) (*Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.byDocument[documentID]
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	return clone(versions[len(versions)-1]), nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
