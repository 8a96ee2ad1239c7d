// Package dedupe remembers which record ids have already been committed so a
// resubmitted publish can be answered with the original commit reference.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/metrics"
)

const defaultMaxSize = 50_000

// Store maps committed record ids to their commit reference (tx hash).
type Store interface {
	// Lookup returns the commit reference recorded for recordID, if any.
	Lookup(ctx context.Context, recordID string) (txHash string, found bool, err error)

	// Remember records a committed record id. Only call it after the backend
	// confirmed durability.
	Remember(ctx context.Context, recordID, txHash string) error

	Size() int64
}

type entry struct {
	recordID string
	txHash   string
}

// inMemoryStore keeps the most recent maxSize record ids, evicting the oldest.
// maxSize <= 0 means unbounded.
type inMemoryStore struct {
	mu      sync.Mutex
	byID    map[string]*list.Element
	order   *list.List // front = newest
	maxSize int
	size    atomic.Int64
}

// NewInMemoryStore creates a bounded in-memory store.
func NewInMemoryStore(opts ...Option) Store {
	s := &inMemoryStore{
		maxSize: defaultMaxSize,
		byID:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *inMemoryStore) Lookup(_ context.Context, recordID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.byID[recordID]
	if !ok {
		return "", false, nil
	}
	return el.Value.(*entry).txHash, true, nil
}

func (s *inMemoryStore) Remember(_ context.Context, recordID, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.byID[recordID]; ok {
		// First commit wins; a record id never moves to a new tx.
		s.order.MoveToFront(el)
		return nil
	}
	if s.maxSize > 0 && s.order.Len() >= s.maxSize {
		s.evictOldest()
	}
	s.byID[recordID] = s.order.PushFront(&entry{recordID: recordID, txHash: txHash})
	s.size.Add(1)
	metrics.UpdateIdempotencyEntries(s.size.Load())
	return nil
}

// evictOldest must be called with s.mu held.
func (s *inMemoryStore) evictOldest() {
	el := s.order.Back()
	if el == nil {
		return
	}
	s.order.Remove(el)
	delete(s.byID, el.Value.(*entry).recordID)
	s.size.Add(-1)
}

func (s *inMemoryStore) Size() int64 {
	return s.size.Load()
}
