package definition

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoBackingStore is returned when a definition has no identifier
	// sidecar path to persist into.
	ErrNoBackingStore = errors.New("definition: backing store for ids missing")
	// ErrPersist wraps a local durability failure after release. The
	// in-memory identifiers stay mutated; the next run must re-converge.
	ErrPersist = errors.New("definition: persist ids failed")
)

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// LockManager serializes identifier access per definition. Entries are
// created on first acquire and dropped once the final reference is
// released.
type LockManager struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// Lock is a held definition lock. Release it through the manager that
// issued it.
type Lock struct {
	key   string
	def   *Definition
	entry *lockEntry
}

func NewLockManager() *LockManager {
	return &LockManager{entries: make(map[string]*lockEntry)}
}

// Acquire blocks until the definition's lock is free. Identifier reads and
// writes on the definition are only valid while the lock is held.
func (m *LockManager) Acquire(def *Definition) (*Lock, error) {
	if def.IDsPath == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoBackingStore, def.Name)
	}

	m.mu.Lock()
	entry, ok := m.entries[def.IDsPath]
	if !ok {
		entry = &lockEntry{}
		m.entries[def.IDsPath] = entry
	}
	entry.refs++
	m.mu.Unlock()

	entry.mu.Lock()
	return &Lock{key: def.IDsPath, def: def, entry: entry}, nil
}

// Release persists the definition's identifiers and frees the lock. A
// persistence failure is reported but the lock is released regardless;
// callers must treat it as "changes may be lost on the next run".
func (m *LockManager) Release(l *Lock) error {
	persistErr := persistIDs(l.def)

	l.entry.mu.Unlock()

	m.mu.Lock()
	l.entry.refs--
	if l.entry.refs <= 0 {
		delete(m.entries, l.key)
	}
	m.mu.Unlock()

	if persistErr != nil {
		return fmt.Errorf("%w: %v", ErrPersist, persistErr)
	}
	return nil
}
