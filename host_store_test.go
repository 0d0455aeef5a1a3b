package mapping

import (
	"context"
	"testing"
)

func TestStoreWriteYourOwnWrites(t *testing.T) {
	mctx, poi := newTestContext(NewMockEntityStore())
	inst, _ := newTestInstance(t, mctx)
	ctx := context.Background()

	entity := Entity{"x": IntValue(42)}
	err := inst.storeSet(ctx,
		mustEncodeString(t, inst, "Foo"),
		mustEncodeString(t, inst, "1"),
		mustEncodeEntity(t, inst, entity))
	if err != nil {
		t.Fatalf("store.set failed: %v", err)
	}

	ptr, err := inst.storeGet(ctx, mustEncodeString(t, inst, "Foo"), mustEncodeString(t, inst, "1"))
	if err != nil {
		t.Fatalf("store.get failed: %v", err)
	}
	if ptr == 0 {
		t.Fatal("store.get returned null after store.set")
	}
	got, err := decodeEntity(inst.heap, ptr)
	if err != nil {
		t.Fatalf("decode entity: %v", err)
	}
	if !got.Equal(entity) {
		t.Errorf("got %+v, want %+v", got, entity)
	}

	events := poi.Events()
	if len(events) != 1 || events[0] != "set:Foo/1" {
		t.Errorf("proof of indexing events: %v", events)
	}
}

func TestStoreRemoveThenGet(t *testing.T) {
	backing := NewMockEntityStore()
	backing.Put("Foo", "1", Entity{"x": IntValue(1)})
	mctx, poi := newTestContext(backing)
	inst, _ := newTestInstance(t, mctx)
	ctx := context.Background()

	err := inst.storeRemove(ctx, mustEncodeString(t, inst, "Foo"), mustEncodeString(t, inst, "1"))
	if err != nil {
		t.Fatalf("store.remove failed: %v", err)
	}

	ptr, err := inst.storeGet(ctx, mustEncodeString(t, inst, "Foo"), mustEncodeString(t, inst, "1"))
	if err != nil {
		t.Fatalf("store.get failed: %v", err)
	}
	if ptr != 0 {
		t.Error("store.get returned entity after store.remove in same request")
	}

	events := poi.Events()
	if len(events) != 1 || events[0] != "remove:Foo/1" {
		t.Errorf("proof of indexing events: %v", events)
	}
}

func TestStoreGetFallsThroughToBackingStore(t *testing.T) {
	backing := NewMockEntityStore()
	backing.Put("Foo", "persisted", Entity{"x": StringValue("from store")})
	mctx, _ := newTestContext(backing)
	inst, _ := newTestInstance(t, mctx)

	ptr, err := inst.storeGet(context.Background(),
		mustEncodeString(t, inst, "Foo"), mustEncodeString(t, inst, "persisted"))
	if err != nil {
		t.Fatalf("store.get failed: %v", err)
	}
	if ptr == 0 {
		t.Fatal("store.get missed entity present in backing store")
	}
	got, err := decodeEntity(inst.heap, ptr)
	if err != nil {
		t.Fatalf("decode entity: %v", err)
	}
	if !got["x"].Equal(StringValue("from store")) {
		t.Errorf("got %+v", got)
	}
}

func TestDataSourceCreate(t *testing.T) {
	mctx, _ := newTestContext(NewMockEntityStore())
	inst, _ := newTestInstance(t, mctx)
	ctx := context.Background()

	err := inst.dataSourceCreate(ctx,
		mustEncodeString(t, inst, "Token"),
		mustEncodeStringArray(t, inst, []string{"0xabc"}))
	if err != nil {
		t.Fatalf("dataSource.create failed: %v", err)
	}

	spawned := mctx.State.CreatedDataSources()
	if len(spawned) != 1 || spawned[0].Name != "Token" || spawned[0].Params[0] != "0xabc" {
		t.Errorf("created data sources: %+v", spawned)
	}
	if spawned[0].Context != nil {
		t.Errorf("create without context attached one: %+v", spawned[0].Context)
	}
}

func TestDataSourceCreateWithContext(t *testing.T) {
	mctx, _ := newTestContext(NewMockEntityStore())
	inst, _ := newTestInstance(t, mctx)

	spawnCtx := Entity{"owner": StringValue("0xdef")}
	err := inst.dataSourceCreateWithContext(context.Background(),
		mustEncodeString(t, inst, "Pair"),
		mustEncodeStringArray(t, inst, []string{"0xabc", "0xdef"}),
		mustEncodeEntity(t, inst, spawnCtx))
	if err != nil {
		t.Fatalf("dataSource.createWithContext failed: %v", err)
	}

	spawned := mctx.State.CreatedDataSources()
	if len(spawned) != 1 || !spawned[0].Context.Equal(spawnCtx) {
		t.Errorf("created data sources: %+v", spawned)
	}
}

func TestDataSourceCreateUnknownTemplateTraps(t *testing.T) {
	mctx, _ := newTestContext(NewMockEntityStore())
	inst, _ := newTestInstance(t, mctx)

	err := inst.dataSourceCreate(context.Background(),
		mustEncodeString(t, inst, "NotATemplate"),
		mustEncodeStringArray(t, inst, nil))
	if !IsTrap(err) {
		t.Fatalf("expected trap for unknown template, got %v", err)
	}
	if len(mctx.State.CreatedDataSources()) != 0 {
		t.Error("trapped create still spawned a data source")
	}
}

func TestDataSourceIdentity(t *testing.T) {
	mctx, _ := newTestContext(NewMockEntityStore())
	mctx.HostExports.DataSourceContext = Entity{"pair": StringValue("0x1234")}
	inst, _ := newTestInstance(t, mctx)
	ctx := context.Background()

	addrPtr, err := inst.dataSourceAddress(ctx)
	if err != nil {
		t.Fatalf("dataSource.address failed: %v", err)
	}
	if got := mustDecodeBytes(t, inst, addrPtr); len(got) != 20 || got[0] != 0x01 {
		t.Errorf("address bytes: %x", got)
	}

	netPtr, err := inst.dataSourceNetwork(ctx)
	if err != nil {
		t.Fatalf("dataSource.network failed: %v", err)
	}
	if got := mustDecodeString(t, inst, netPtr); got != "mainnet" {
		t.Errorf("network: %q", got)
	}

	ctxPtr, err := inst.dataSourceContext(ctx)
	if err != nil {
		t.Fatalf("dataSource.context failed: %v", err)
	}
	got, err := decodeEntity(inst.heap, ctxPtr)
	if err != nil {
		t.Fatalf("decode context entity: %v", err)
	}
	if !got.Equal(mctx.HostExports.DataSourceContext) {
		t.Errorf("context entity: %+v", got)
	}
}

func TestEthereumCall(t *testing.T) {
	mctx, _ := newTestContext(NewMockEntityStore())
	chain := &recordingChainCaller{Response: []Value{BooleanValue(true)}}
	mctx.HostExports.Chain = chain
	inst, _ := newTestInstance(t, mctx)
	ctx := context.Background()

	callPtr := encodeTestCallDescriptor(t, inst, true)
	resultPtr, err := inst.ethereumCall(ctx, callPtr)
	if err != nil {
		t.Fatalf("ethereum.call failed: %v", err)
	}
	if resultPtr == 0 {
		t.Fatal("ethereum.call returned null for a successful call")
	}
	if chain.LastCall == nil || chain.LastCall.FunctionName != "balanceOf" {
		t.Errorf("chain adapter saw %+v", chain.LastCall)
	}
	if chain.LastCall.FunctionSignature == "" {
		t.Error("0.0.4 descriptor lost its function signature")
	}

	// Adapter failure traps.
	chain.Err = errNotFound
	if _, err := inst.ethereumCall(ctx, callPtr); !IsTrap(err) {
		t.Errorf("expected trap on adapter failure, got %v", err)
	}
}
