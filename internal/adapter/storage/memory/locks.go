package memory

import (
	"context"
	"fmt"
	"sync"

	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// lockTable hands out one exclusive, context-aware lock per wallet id.
// Entries are reference counted and dropped once nobody holds or waits.
type lockTable struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[uuid.UUID]*lockEntry)}
}

func (l *lockTable) acquire(ctx context.Context, id uuid.UUID) error {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.unref(id, e)
		return fmt.Errorf("%w: lock wallet %s: %w", ports.ErrStoreUnavailable, id, ctx.Err())
	}
}

func (l *lockTable) release(id uuid.UUID) {
	l.mu.Lock()
	e := l.entries[id]
	l.mu.Unlock()
	if e == nil {
		return
	}
	<-e.ch
	l.unref(id, e)
}

func (l *lockTable) unref(id uuid.UUID, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

// size reports live entries; used by tests to detect leaks.
func (l *lockTable) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
