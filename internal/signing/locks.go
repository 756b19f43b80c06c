package signing

import (
	"sync"

	"github.com/google/uuid"
)

// documentLocks serializes every read-render-write-rehash sequence per
// document. Two signing operations against the same document must never
// interleave; two documents never contend.
type documentLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newDocumentLocks() *documentLocks {
	return &documentLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock blocks until the document's mutex is held and returns the unlock
// func. The caller holds it through the checksum update, and through
// sealing when sealing is triggered.
func (l *documentLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
