package store

import (
	"context"
	"errors"
	"fmt"

	olriclib "github.com/olric-data/olric"

	mapping "github.com/graphprotocol/mapping-runtime"
)

const entityDMapName = "mapping_entities"

// OlricEntityStore is an EntityStore over an Olric distributed map, for
// embedders running mapping workers across processes against one shared
// entity set. Entities are stored as JSON documents under
// {entityType}/{id} keys.
type OlricEntityStore struct {
	client olriclib.Client
	ctx    context.Context
	dmap   string
}

// NewOlricEntityStore returns a store over client. The context bounds every
// cluster round trip, since the EntityStore read interface itself carries
// none.
func NewOlricEntityStore(ctx context.Context, client olriclib.Client) *OlricEntityStore {
	return &OlricEntityStore{client: client, ctx: ctx, dmap: entityDMapName}
}

// Get implements mapping.EntityStore.
func (s *OlricEntityStore) Get(entityType, id string) (mapping.Entity, bool, error) {
	dm, err := s.client.NewDMap(s.dmap)
	if err != nil {
		return nil, false, fmt.Errorf("olric dmap: %w", err)
	}

	result, err := dm.Get(s.ctx, entityKey(entityType, id))
	if err != nil {
		if errors.Is(err, olriclib.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("olric get: %w", err)
	}

	raw, err := result.Byte()
	if err != nil {
		return nil, false, fmt.Errorf("olric decode: %w", err)
	}
	entity, err := UnmarshalEntity(raw)
	if err != nil {
		return nil, false, fmt.Errorf("entity decode: %w", err)
	}
	return entity, true, nil
}

// Put stores an entity.
func (s *OlricEntityStore) Put(entityType, id string, e mapping.Entity) error {
	raw, err := MarshalEntity(e)
	if err != nil {
		return fmt.Errorf("entity encode: %w", err)
	}

	dm, err := s.client.NewDMap(s.dmap)
	if err != nil {
		return fmt.Errorf("olric dmap: %w", err)
	}
	if err := dm.Put(s.ctx, entityKey(entityType, id), raw); err != nil {
		return fmt.Errorf("olric put: %w", err)
	}
	return nil
}

// Delete removes an entity if present.
func (s *OlricEntityStore) Delete(entityType, id string) error {
	dm, err := s.client.NewDMap(s.dmap)
	if err != nil {
		return fmt.Errorf("olric dmap: %w", err)
	}
	if _, err := dm.Delete(s.ctx, entityKey(entityType, id)); err != nil {
		return fmt.Errorf("olric delete: %w", err)
	}
	return nil
}

// ApplyBlockState flushes a completed request's pending writes and removals
// into the cluster.
func (s *OlricEntityStore) ApplyBlockState(state *mapping.BlockState) error {
	for key, entity := range state.PendingWrites() {
		if err := s.Put(key.Type, key.ID, entity); err != nil {
			return err
		}
	}
	for _, key := range state.PendingRemovals() {
		if err := s.Delete(key.Type, key.ID); err != nil {
			return err
		}
	}
	return nil
}
