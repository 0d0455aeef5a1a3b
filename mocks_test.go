package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/graphprotocol/mapping-runtime/internal/arena"
	"github.com/graphprotocol/mapping-runtime/internal/asc"
)

// fakeMemory is an in-process linear memory with a bump allocator, standing
// in for a real guest during host-side tests.
type fakeMemory struct {
	data []byte
	next uint32
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{data: make([]byte, 1<<22), next: 8}
}

func (m *fakeMemory) Read(offset, count uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(count)
	if end > uint64(len(m.data)) {
		return nil, false
	}
	return m.data[offset:end], true
}

func (m *fakeMemory) Write(offset uint32, v []byte) bool {
	end := uint64(offset) + uint64(len(v))
	if end > uint64(len(m.data)) {
		return false
	}
	copy(m.data[offset:end], v)
	return true
}

func (m *fakeMemory) allocate(_ context.Context, size uint32) (uint32, error) {
	ptr := m.next
	m.next += size
	return ptr, nil
}

// MockEntityStore is a mutex-guarded in-process EntityStore.
type MockEntityStore struct {
	mu       sync.RWMutex
	entities map[EntityKey]Entity
}

func NewMockEntityStore() *MockEntityStore {
	return &MockEntityStore{entities: make(map[EntityKey]Entity)}
}

func (s *MockEntityStore) Get(entityType, id string) (Entity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[EntityKey{Type: entityType, ID: id}]
	if !ok {
		return nil, false, nil
	}
	return e.Clone(), true, nil
}

func (s *MockEntityStore) Put(entityType, id string, e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[EntityKey{Type: entityType, ID: id}] = e.Clone()
}

// recordingPoI records every proof-of-indexing event in order.
type recordingPoI struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPoI) WriteEvent(entityType, id, op string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, op+":"+entityType+"/"+id)
}

func (p *recordingPoI) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// MockIPFSResolver serves links from a map.
type MockIPFSResolver struct {
	Content map[string][]byte
	Err     error
}

func (r *MockIPFSResolver) Cat(_ context.Context, link string) ([]byte, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	data, ok := r.Content[link]
	if !ok {
		return nil, errNotFound
	}
	return data, nil
}

// MockENSResolver resolves hashes from a map.
type MockENSResolver struct {
	Names map[string]string
	Err   error
}

func (r *MockENSResolver) NameByHash(_ context.Context, hash string) (string, bool, error) {
	if r.Err != nil {
		return "", false, r.Err
	}
	name, ok := r.Names[hash]
	return name, ok, nil
}

// MockArweaveResolver serves transaction data from a map.
type MockArweaveResolver struct {
	Data map[string][]byte
}

func (r *MockArweaveResolver) TransactionData(_ context.Context, id string) ([]byte, error) {
	data, ok := r.Data[id]
	if !ok {
		return nil, errNotFound
	}
	return data, nil
}

// MockThreeBoxResolver serves profiles from a map.
type MockThreeBoxResolver struct {
	Profiles map[string]json.RawMessage
}

func (r *MockThreeBoxResolver) Profile(_ context.Context, address string) (json.RawMessage, error) {
	p, ok := r.Profiles[address]
	if !ok {
		return nil, errNotFound
	}
	return p, nil
}

// recordingChainCaller records the last descriptor it was asked to call.
type recordingChainCaller struct {
	LastCall *ContractCall
	Response []Value
	Err      error
}

func (c *recordingChainCaller) Call(_ context.Context, call ContractCall) ([]Value, error) {
	c.LastCall = &call
	return c.Response, c.Err
}

var errNotFound = errors.New("mock: not found")

// newTestContext builds a MappingContext over a mock store with sane test
// defaults: api version 0.0.4, nop logger, recording proof of indexing.
func newTestContext(store EntityStore) (*MappingContext, *recordingPoI) {
	poi := &recordingPoI{}
	return &MappingContext{
		Logger: zap.NewNop(),
		HostExports: &HostExports{
			APIVersion: APIVersion{0, 0, 4},
			Store:      store,
			Templates:  []string{"Token", "Pair"},
			Network:    "mainnet",
			DataSourceAddress: []byte{
				0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a,
				0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14,
			},
		},
		Block:           &Block{Number: 1234, Timestamp: 1600000000},
		State:           NewBlockState(store),
		ProofOfIndexing: poi,
	}, poi
}

// newTestInstance binds a fresh fake-memory arena to mctx. The returned
// map is the instance's export table; tests install fake guest functions in
// it as needed.
func newTestInstance(t *testing.T, mctx *MappingContext) (*Instance, map[string]guestFunc) {
	t.Helper()
	mem := newFakeMemory()
	handlers := map[string]guestFunc{}
	inst := &Instance{
		mctx:    mctx,
		version: mctx.HostExports.APIVersion,
		heap:    arena.New(mem, mem.allocate, 0),
		metrics: NopMetrics{},
	}
	inst.lookup = func(name string) guestFunc { return handlers[name] }
	return inst, handlers
}

// mustEncodeString writes s into the instance arena for use as a host
// function argument.
func mustEncodeString(t *testing.T, i *Instance, s string) uint32 {
	t.Helper()
	ptr, err := asc.EncodeString(context.Background(), i.heap, s)
	if err != nil {
		t.Fatalf("encode string %q: %v", s, err)
	}
	return ptr
}

// mustEncodeBytes writes b into the instance arena.
func mustEncodeBytes(t *testing.T, i *Instance, b []byte) uint32 {
	t.Helper()
	ptr, err := asc.EncodeBytes(context.Background(), i.heap, b)
	if err != nil {
		t.Fatalf("encode bytes: %v", err)
	}
	return ptr
}

// mustEncodeEntity writes e into the instance arena.
func mustEncodeEntity(t *testing.T, i *Instance, e Entity) uint32 {
	t.Helper()
	ptr, err := encodeEntity(context.Background(), i.heap, e)
	if err != nil {
		t.Fatalf("encode entity: %v", err)
	}
	return ptr
}

// mustEncodeStringArray writes a guest array of strings.
func mustEncodeStringArray(t *testing.T, i *Instance, values []string) uint32 {
	t.Helper()
	ptrs := make([]uint32, len(values))
	for idx, v := range values {
		ptrs[idx] = mustEncodeString(t, i, v)
	}
	ptr, err := asc.EncodePointerArray(context.Background(), i.heap, ptrs)
	if err != nil {
		t.Fatalf("encode string array: %v", err)
	}
	return ptr
}

// encodeTestCallDescriptor writes an ethereum.call descriptor for
// Token.balanceOf into the instance arena, with or without the 0.0.4
// function signature field.
func encodeTestCallDescriptor(t *testing.T, i *Instance, withSignature bool) uint32 {
	t.Helper()
	ctx := context.Background()

	namePtr := mustEncodeString(t, i, "Token")
	addrPtr := mustEncodeBytes(t, i, make([]byte, 20))
	fnPtr := mustEncodeString(t, i, "balanceOf")
	argPtr, err := encodeValue(ctx, i.heap, BytesValue(make([]byte, 20)))
	if err != nil {
		t.Fatalf("encode call arg: %v", err)
	}
	argsPtr, err := asc.EncodePointerArray(ctx, i.heap, []uint32{argPtr})
	if err != nil {
		t.Fatalf("encode call args: %v", err)
	}

	fields := []uint32{namePtr, addrPtr, fnPtr}
	if withSignature {
		fields = append(fields, mustEncodeString(t, i, "balanceOf(address):(uint256)"))
	}
	fields = append(fields, argsPtr)
	ptr, err := encodeStruct(ctx, i.heap, fields)
	if err != nil {
		t.Fatalf("encode call descriptor: %v", err)
	}
	return ptr
}

// mustDecodeString reads a host function's string result.
func mustDecodeString(t *testing.T, i *Instance, ptr uint32) string {
	t.Helper()
	s, err := asc.DecodeString(i.heap, ptr)
	if err != nil {
		t.Fatalf("decode string result: %v", err)
	}
	return s
}

// mustDecodeBytes reads a host function's byte-array result.
func mustDecodeBytes(t *testing.T, i *Instance, ptr uint32) []byte {
	t.Helper()
	b, err := asc.DecodeBytes(i.heap, ptr)
	if err != nil {
		t.Fatalf("decode bytes result: %v", err)
	}
	return b
}
