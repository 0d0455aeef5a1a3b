package store

import (
	"sync"

	mapping "github.com/graphprotocol/mapping-runtime"
)

// MemoryEntityStore is an in-process EntityStore: a mutex-guarded map keyed
// by (entity type, id). It backs tests and single-process embedders.
type MemoryEntityStore struct {
	mu       sync.RWMutex
	entities map[string]mapping.Entity
}

// NewMemoryEntityStore returns an empty in-process store.
func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{entities: make(map[string]mapping.Entity)}
}

// Get implements mapping.EntityStore.
func (s *MemoryEntityStore) Get(entityType, id string) (mapping.Entity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[entityKey(entityType, id)]
	if !ok {
		return nil, false, nil
	}
	return e.Clone(), true, nil
}

// Put stores an entity, replacing any previous value.
func (s *MemoryEntityStore) Put(entityType, id string, e mapping.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[entityKey(entityType, id)] = e.Clone()
}

// Delete removes an entity if present.
func (s *MemoryEntityStore) Delete(entityType, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, entityKey(entityType, id))
}

// Len reports the number of stored entities.
func (s *MemoryEntityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// ApplyBlockState flushes a completed request's pending writes and removals
// into the store, the step the embedder performs after a successful
// MappingResponse.
func (s *MemoryEntityStore) ApplyBlockState(state *mapping.BlockState) {
	for key, entity := range state.PendingWrites() {
		s.Put(key.Type, key.ID, entity)
	}
	for _, key := range state.PendingRemovals() {
		s.Delete(key.Type, key.ID)
	}
}
