package service

import (
	"sort"
	"sync"
	"sync/atomic"

	"androidmirror/models"
)

// CatalogStore holds the latest published snapshot. Reads never block;
// writes are serialized so subscribers observe replacements in order.
type CatalogStore struct {
	current atomic.Pointer[models.Snapshot]

	mu          sync.Mutex // single writer
	subscribers map[int]func(*models.Snapshot)
	nextSubID   int
}

func NewCatalogStore() *CatalogStore {
	s := &CatalogStore{subscribers: make(map[int]func(*models.Snapshot))}
	s.current.Store(models.EmptySnapshot())
	return s
}

// Get returns the most recent complete snapshot
func (s *CatalogStore) Get() *models.Snapshot {
	return s.current.Load()
}

// Replace publishes a fully built snapshot and notifies subscribers.
// A nil snapshot is ignored.
func (s *CatalogStore) Replace(snapshot *models.Snapshot) {
	if snapshot == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Store(snapshot)

	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s.subscribers[id](snapshot)
	}
}

// Subscribe registers fn to be called after every Replace. The returned
// function removes the subscription. fn must not call Replace.
func (s *CatalogStore) Subscribe(fn func(*models.Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}
