package mapping

import (
	"context"

	"github.com/graphprotocol/mapping-runtime/internal/asc"
)

// storeGet reads an entity through the block state so pending writes from
// this request are visible (write-your-own-writes). Returns a null pointer
// when the entity does not exist.
func (i *Instance) storeGet(ctx context.Context, entityPtr, idPtr uint32) (uint32, error) {
	entityType, err := i.readString("store.get", entityPtr)
	if err != nil {
		return 0, err
	}
	id, err := i.readString("store.get", idPtr)
	if err != nil {
		return 0, err
	}

	entity, found, err := i.mctx.State.Get(entityType, id)
	if err != nil {
		return 0, &TrapError{Function: "store.get", Reason: "store lookup failed", Cause: &CollaboratorError{Collaborator: "store", Cause: err}}
	}
	if !found {
		return 0, nil
	}

	ptr, err := encodeEntity(ctx, i.heap, entity)
	if err != nil {
		return 0, &TrapError{Function: "store.get", Reason: "entity encoding failed", Cause: err}
	}
	return ptr, nil
}

// storeSet records a pending entity write and notifies the proof-of-indexing
// stream.
func (i *Instance) storeSet(ctx context.Context, entityPtr, idPtr, dataPtr uint32) error {
	entityType, err := i.readString("store.set", entityPtr)
	if err != nil {
		return err
	}
	id, err := i.readString("store.set", idPtr)
	if err != nil {
		return err
	}
	data, err := decodeEntity(i.heap, dataPtr)
	if err != nil {
		return &TrapError{Function: "store.set", Reason: "malformed entity data", Cause: err}
	}

	i.mctx.State.Set(entityType, id, data)
	i.mctx.ProofOfIndexing.WriteEvent(entityType, id, "set")
	return nil
}

// storeRemove records a pending entity removal and notifies the
// proof-of-indexing stream.
func (i *Instance) storeRemove(ctx context.Context, entityPtr, idPtr uint32) error {
	entityType, err := i.readString("store.remove", entityPtr)
	if err != nil {
		return err
	}
	id, err := i.readString("store.remove", idPtr)
	if err != nil {
		return err
	}

	i.mctx.State.Remove(entityType, id)
	i.mctx.ProofOfIndexing.WriteEvent(entityType, id, "remove")
	return nil
}

// dataSourceCreate spawns a dynamic data source from a declared template.
// Unknown template names trap.
func (i *Instance) dataSourceCreate(ctx context.Context, namePtr, paramsPtr uint32) error {
	return i.createDataSource(ctx, "dataSource.create", namePtr, paramsPtr, 0)
}

// dataSourceCreateWithContext is dataSourceCreate plus a context entity
// attached to the spawned source.
func (i *Instance) dataSourceCreateWithContext(ctx context.Context, namePtr, paramsPtr, contextPtr uint32) error {
	return i.createDataSource(ctx, "dataSource.createWithContext", namePtr, paramsPtr, contextPtr)
}

func (i *Instance) createDataSource(ctx context.Context, fn string, namePtr, paramsPtr, contextPtr uint32) error {
	name, err := i.readString(fn, namePtr)
	if err != nil {
		return err
	}
	paramPtrs, err := asc.DecodePointerArray(i.heap, paramsPtr)
	if err != nil {
		return &TrapError{Function: fn, Reason: "malformed params array", Cause: err}
	}
	params := make([]string, len(paramPtrs))
	for idx, p := range paramPtrs {
		params[idx], err = i.readString(fn, p)
		if err != nil {
			return err
		}
	}

	var spawnContext Entity
	if contextPtr != 0 {
		spawnContext, err = decodeEntity(i.heap, contextPtr)
		if err != nil {
			return &TrapError{Function: fn, Reason: "malformed context entity", Cause: err}
		}
	}

	if !i.mctx.HostExports.HasTemplate(name) {
		return &TrapError{Function: fn, Reason: "unknown data source template " + name}
	}

	i.mctx.State.CreateDataSource(DataSourceSpawn{Name: name, Params: params, Context: spawnContext})
	return nil
}

// dataSourceAddress returns the current data source's address bytes.
func (i *Instance) dataSourceAddress(ctx context.Context) (uint32, error) {
	return i.writeBytesResult(ctx, "dataSource.address", i.mctx.HostExports.DataSourceAddress)
}

// dataSourceNetwork returns the network name the subgraph indexes.
func (i *Instance) dataSourceNetwork(ctx context.Context) (uint32, error) {
	ptr, err := asc.EncodeString(ctx, i.heap, i.mctx.HostExports.Network)
	if err != nil {
		return 0, &TrapError{Function: "dataSource.network", Reason: "result encoding failed", Cause: err}
	}
	return ptr, nil
}

// dataSourceContext returns the context entity the data source was spawned
// with; empty when the source has none.
func (i *Instance) dataSourceContext(ctx context.Context) (uint32, error) {
	dsCtx := i.mctx.HostExports.DataSourceContext
	if dsCtx == nil {
		dsCtx = Entity{}
	}
	ptr, err := encodeEntity(ctx, i.heap, dsCtx)
	if err != nil {
		return 0, &TrapError{Function: "dataSource.context", Reason: "result encoding failed", Cause: err}
	}
	return ptr, nil
}

// writeBytesResult encodes a byte-array host result, tagging encoding
// failures with the calling function.
func (i *Instance) writeBytesResult(ctx context.Context, fn string, b []byte) (uint32, error) {
	ptr, err := asc.EncodeBytes(ctx, i.heap, b)
	if err != nil {
		return 0, &TrapError{Function: fn, Reason: "result encoding failed", Cause: err}
	}
	return ptr, nil
}
