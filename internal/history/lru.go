package history

import (
	"container/list"
	"sync"
)

// LRUStore keeps the most recently used records in memory and delegates
// to a backing Store. Saves always reach the backing store; loads only
// on a cache miss.
type LRUStore struct {
	back Store
	size int

	mu    sync.Mutex
	order *list.List // of *Record, most recently used first
	byID  map[string]*list.Element
}

// NewLRUStore returns a cache of at most size records in front of back.
// A size below 1 is treated as 1.
func NewLRUStore(size int, back Store) *LRUStore {
	return &LRUStore{
		back:  back,
		size:  max(size, 1),
		order: list.New(),
		byID:  make(map[string]*list.Element),
	}
}

// Save caches rec and writes it through to the backing store.
func (s *LRUStore) Save(rec *Record) error {
	s.remember(rec)
	return s.back.Save(rec)
}

// Load returns the cached record for runID, or loads and caches it.
func (s *LRUStore) Load(runID string) (*Record, error) {
	if rec, ok := s.cached(runID); ok {
		return rec, nil
	}
	rec, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}
	s.remember(rec)
	return rec, nil
}

// Len returns the number of cached records.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *LRUStore) cached(runID string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.byID[runID]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*Record), true
}

func (s *LRUStore) remember(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.byID[rec.ID]; ok {
		el.Value = rec
		s.order.MoveToFront(el)
		return
	}
	s.byID[rec.ID] = s.order.PushFront(rec)

	for s.order.Len() > s.size {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.byID, oldest.Value.(*Record).ID)
	}
}
