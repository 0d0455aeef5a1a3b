// Package arena implements the bump-allocator layered over a Wasm guest's
// own memory.allocate export. It has no knowledge of the mapping domain: it
// only moves bytes into and out of a guest's linear memory.
package arena

import (
	"context"
	"fmt"
)

// MinSlabSize is the minimum size requested from the guest allocator on a
// refill.
const MinSlabSize = 10_000

// Memory is the slice of a Wasm linear memory the arena needs. wazero's
// api.Memory satisfies it directly; tests substitute an in-process fake.
type Memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// AllocateFunc requests a fresh slab of size bytes from the guest's own
// allocator and returns its offset.
type AllocateFunc func(ctx context.Context, size uint32) (uint32, error)

// Arena bump-allocates inside slabs obtained from the guest allocator.
// Allocations are append-only: the writer never shrinks or overwrites a
// pointer it has already returned. Before the first allocation both startPtr
// and freeSize are zero, which reads as "no room" and forces a slab request.
type Arena struct {
	mem      Memory
	allocate AllocateFunc
	minSlab  uint32
	startPtr uint32
	freeSize uint32
}

// New returns an Arena over mem, calling allocate to obtain slabs of at
// least minSlab bytes.
func New(mem Memory, allocate AllocateFunc, minSlab uint32) *Arena {
	if minSlab == 0 {
		minSlab = MinSlabSize
	}
	return &Arena{mem: mem, allocate: allocate, minSlab: minSlab}
}

// RawNew copies data into guest memory and returns its guest-side offset.
// If the current slab has insufficient room, a fresh slab of
// max(len(data), minSlab) bytes is requested and the remainder of the
// previous slab is abandoned.
func (a *Arena) RawNew(ctx context.Context, data []byte) (uint32, error) {
	need := uint32(len(data))
	if need > a.freeSize {
		slabSize := a.minSlab
		if need > slabSize {
			slabSize = need
		}
		ptr, err := a.allocate(ctx, slabSize)
		if err != nil {
			return 0, fmt.Errorf("arena: memory.allocate failed: %w", err)
		}
		a.startPtr = ptr
		a.freeSize = slabSize
	}

	ptr := a.startPtr
	if !a.mem.Write(ptr, data) {
		return 0, fmt.Errorf("arena: write out of bounds at [%d:%d]", ptr, uint64(ptr)+uint64(need))
	}

	a.startPtr += need
	a.freeSize -= need
	return ptr, nil
}

// Get returns a copy of size bytes from guest memory starting at offset.
// Out-of-range reads are reported as an error, which the caller converts to
// a trap.
func (a *Arena) Get(offset, size uint32) ([]byte, error) {
	data, ok := a.mem.Read(offset, size)
	if !ok {
		return nil, fmt.Errorf("arena: read out of bounds at [%d:%d]", offset, uint64(offset)+uint64(size))
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// FreeSize reports the number of bytes left in the current slab.
func (a *Arena) FreeSize() uint32 { return a.freeSize }

// StartPtr reports the next offset RawNew would write to within the current
// slab.
func (a *Arena) StartPtr() uint32 { return a.startPtr }
