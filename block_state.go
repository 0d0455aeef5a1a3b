package mapping

import "fmt"

// EntityKey identifies a pending entity write or removal by entity type and
// id.
type EntityKey struct {
	Type string
	ID   string
}

func (k EntityKey) String() string { return k.Type + "/" + k.ID }

type entityOp int

const (
	opSet entityOp = iota
	opRemove
)

type entityChange struct {
	op   entityOp
	data Entity
}

// DataSourceSpawn records a dynamic data source created during handler
// execution via the DataSource host functions.
type DataSourceSpawn struct {
	Name    string
	Params  []string
	Context Entity
}

// BlockState accumulates pending entity writes/removals and created data
// sources during the execution of one handler call. It is mutated only from
// the worker goroutine that owns the Wasm instance; see the package-level
// concurrency note.
type BlockState struct {
	store              EntityStore
	entityCache        map[EntityKey]entityChange
	createdDataSources []DataSourceSpawn
}

// NewBlockState returns an empty BlockState backed by store for reads that
// miss the in-memory entity cache.
func NewBlockState(store EntityStore) *BlockState {
	return &BlockState{
		store:       store,
		entityCache: make(map[EntityKey]entityChange),
	}
}

// Set records a pending write for (entityType, id), overwriting any prior
// pending write or removal for the same key within this state.
func (s *BlockState) Set(entityType, id string, data Entity) {
	s.entityCache[EntityKey{Type: entityType, ID: id}] = entityChange{op: opSet, data: data.Clone()}
}

// Remove records a pending removal for (entityType, id).
func (s *BlockState) Remove(entityType, id string) {
	s.entityCache[EntityKey{Type: entityType, ID: id}] = entityChange{op: opRemove}
}

// Get returns the entity for (entityType, id): the pending write/removal in
// this state if one exists (write-your-own-writes), otherwise falls through
// to the backing store.
func (s *BlockState) Get(entityType, id string) (Entity, bool, error) {
	if change, ok := s.entityCache[EntityKey{Type: entityType, ID: id}]; ok {
		if change.op == opRemove {
			return nil, false, nil
		}
		return change.data, true, nil
	}
	if s.store == nil {
		return nil, false, nil
	}
	return s.store.Get(entityType, id)
}

// CreateDataSource appends a dynamic data source spawn.
func (s *BlockState) CreateDataSource(spawn DataSourceSpawn) {
	s.createdDataSources = append(s.createdDataSources, spawn)
}

// CreatedDataSources returns the data sources created so far, in creation
// order.
func (s *BlockState) CreatedDataSources() []DataSourceSpawn {
	return append([]DataSourceSpawn(nil), s.createdDataSources...)
}

// PendingWrites exposes the entity cache for inspection by tests and by the
// embedder flushing mutations to the persistent store after a handler
// completes.
func (s *BlockState) PendingWrites() map[EntityKey]Entity {
	out := make(map[EntityKey]Entity)
	for k, c := range s.entityCache {
		if c.op == opSet {
			out[k] = c.data
		}
	}
	return out
}

// PendingRemovals exposes the set of keys removed during this state.
func (s *BlockState) PendingRemovals() []EntityKey {
	var out []EntityKey
	for k, c := range s.entityCache {
		if c.op == opRemove {
			out = append(out, k)
		}
	}
	return out
}

// Extend merges other into s: created data sources are concatenated in
// order, and entity caches are unioned. Extend fails if both states hold
// conflicting changes (different data) for the same key, matching the
// ipfs.map merge contract.
func (s *BlockState) Extend(other *BlockState) error {
	for k, change := range other.entityCache {
		existing, ok := s.entityCache[k]
		if ok && !sameChange(existing, change) {
			return fmt.Errorf("%w: %s", ErrEntityCacheConflict, k)
		}
		s.entityCache[k] = change
	}
	s.createdDataSources = append(s.createdDataSources, other.createdDataSources...)
	return nil
}

func sameChange(a, b entityChange) bool {
	if a.op != b.op {
		return false
	}
	if a.op == opRemove {
		return true
	}
	return a.data.Equal(b.data)
}
