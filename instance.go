package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/graphprotocol/mapping-runtime/internal/arena"
	"github.com/graphprotocol/mapping-runtime/internal/asc"
)

// guestFunc invokes one exported guest function.
type guestFunc func(ctx context.Context, params ...uint64) ([]uint64, error)

// Instance binds one instantiated Wasm module to one MappingContext. It is
// built fresh for every MappingRequest and never leaves the worker goroutine
// that created it.
type Instance struct {
	mctx    *MappingContext
	version APIVersion
	heap    *arena.Arena
	metrics MetricsRecorder
	lookup  func(name string) guestFunc
	module  api.Module
}

// instanceCell breaks the cycle between host-import registration and the
// instance the imports belong to: imports are registered once per worker
// runtime and dereference the cell lazily, the worker fills it right after
// each instantiation. The cell is confined to the worker goroutine, so no
// synchronization is needed. An empty cell at invocation time is an internal
// invariant violation, not a recoverable error.
type instanceCell struct {
	inst *Instance
}

func (c *instanceCell) set(i *Instance) { c.inst = i }

func (c *instanceCell) clear() { c.inst = nil }

func (c *instanceCell) must() *Instance {
	if c.inst == nil {
		panic("mapping: host function invoked with no live instance")
	}
	return c.inst
}

// newInstance instantiates vm on runtime, resolves the required guest
// exports, and binds the result to mctx. The caller owns closing the
// returned module.
func newInstance(ctx context.Context, runtime wazero.Runtime, vm *ValidatedModule, mctx *MappingContext, cfg *Config) (*Instance, error) {
	if mctx == nil || mctx.HostExports == nil {
		return nil, &InstantiationError{Reason: "mapping context is missing host exports"}
	}

	// The instance never mutates the caller's BlockState directly: it runs
	// against a scratch state that reads through to the caller's, and the
	// worker merges the scratch back only after a clean return. A trapped
	// handler's partial writes die with the instance.
	mctx = mctx.deriveWithScratchState()
	if mctx.Logger == nil {
		mctx.Logger = zap.NewNop()
	}
	if mctx.ProofOfIndexing == nil {
		mctx.ProofOfIndexing = NopProofOfIndexing{}
	}

	mod, err := runtime.InstantiateModule(ctx, vm.Compiled(), wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, &InstantiationError{Reason: "module instantiation failed", Cause: err}
	}

	memory := mod.ExportedMemory("memory")
	if memory == nil {
		_ = mod.Close(ctx)
		return nil, &InstantiationError{Reason: "module does not export memory"}
	}
	allocFn := mod.ExportedFunction("memory.allocate")
	if allocFn == nil {
		_ = mod.Close(ctx)
		return nil, &InstantiationError{Reason: "module does not export memory.allocate"}
	}

	allocate := func(ctx context.Context, size uint32) (uint32, error) {
		results, err := allocFn.Call(ctx, uint64(size))
		if err != nil {
			return 0, err
		}
		return uint32(results[0]), nil
	}

	minSlab := uint32(arena.MinSlabSize)
	if cfg != nil && cfg.MinArenaSize > 0 {
		minSlab = uint32(cfg.MinArenaSize)
	}

	metrics := MetricsRecorder(NopMetrics{})
	if mctx.HostExports != nil && mctx.HostExports.Metrics != nil {
		metrics = mctx.HostExports.Metrics
	}

	return &Instance{
		mctx:    mctx,
		version: mctx.HostExports.APIVersion,
		heap:    arena.New(memory, allocate, minSlab),
		metrics: metrics,
		lookup: func(name string) guestFunc {
			fn := mod.ExportedFunction(name)
			if fn == nil {
				return nil
			}
			return func(ctx context.Context, params ...uint64) (results []uint64, err error) {
				// Host function traps travel as panics through the engine;
				// recover here in case one escapes instead of being folded
				// into Call's error.
				defer func() {
					if r := recover(); r != nil {
						if e, ok := r.(error); ok {
							err = e
						} else {
							err = fmt.Errorf("guest call panicked: %v", r)
						}
					}
				}()
				return fn.Call(ctx, params...)
			}
		},
		module: mod,
	}, nil
}

// Close releases the underlying module instance, discarding its linear
// memory and arena state.
func (i *Instance) Close(ctx context.Context) error {
	if i.module == nil {
		return nil
	}
	return i.module.Close(ctx)
}

// section starts a metrics timer tagged with the host function name.
func (i *Instance) section(name string) func() {
	return i.metrics.StartSection(name)
}

// HandleLog encodes the event payload for t and invokes its handler.
func (i *Instance) HandleLog(ctx context.Context, t *LogTrigger) error {
	fn := i.lookup(t.Handler.Handler)
	if fn == nil {
		return &HandlerMissingError{Handler: t.Handler.Handler}
	}
	ptr, err := encodeEvent(ctx, i.heap, i.version, i.mctx.Block, t)
	if err != nil {
		return asTrap("handle_log", err)
	}
	if _, err := fn(ctx, uint64(ptr)); err != nil {
		return asTrap(t.Handler.Handler, err)
	}
	return nil
}

// HandleCall encodes the call payload for t and invokes its handler.
func (i *Instance) HandleCall(ctx context.Context, t *CallTrigger) error {
	fn := i.lookup(t.Handler.Handler)
	if fn == nil {
		return &HandlerMissingError{Handler: t.Handler.Handler}
	}
	ptr, err := encodeCall(ctx, i.heap, i.version, i.mctx.Block, t)
	if err != nil {
		return asTrap("handle_call", err)
	}
	if _, err := fn(ctx, uint64(ptr)); err != nil {
		return asTrap(t.Handler.Handler, err)
	}
	return nil
}

// HandleBlock encodes just the block and invokes t's handler.
func (i *Instance) HandleBlock(ctx context.Context, t *BlockTrigger) error {
	fn := i.lookup(t.Handler.Handler)
	if fn == nil {
		return &HandlerMissingError{Handler: t.Handler.Handler}
	}
	ptr, err := encodeBlock(ctx, i.heap, i.mctx.Block)
	if err != nil {
		return asTrap("handle_block", err)
	}
	if _, err := fn(ctx, uint64(ptr)); err != nil {
		return asTrap(t.Handler.Handler, err)
	}
	return nil
}

// handleJSONCallback invokes the guest callback named by ipfs.map with one
// streamed JSON value and the caller's user data.
func (i *Instance) handleJSONCallback(ctx context.Context, name string, valuePtr, userDataPtr uint32) error {
	fn := i.lookup(name)
	if fn == nil {
		return &HandlerMissingError{Handler: name}
	}
	if _, err := fn(ctx, uint64(valuePtr), uint64(userDataPtr)); err != nil {
		return asTrap(name, err)
	}
	return nil
}

// Dispatch routes a trigger to the matching handler entry point.
func (i *Instance) Dispatch(ctx context.Context, trigger MappingTrigger) error {
	switch trigger.Kind {
	case TriggerLog:
		return i.HandleLog(ctx, trigger.Log)
	case TriggerCall:
		return i.HandleCall(ctx, trigger.Call)
	case TriggerBlock:
		return i.HandleBlock(ctx, trigger.Block)
	default:
		return fmt.Errorf("mapping: unknown trigger kind %d", trigger.Kind)
	}
}

// asTrap normalizes errors escaping a guest call. Traps raised by host
// functions (delivered through the engine as recovered panics) pass through
// unchanged; anything else is wrapped.
func asTrap(function string, err error) error {
	var trap *TrapError
	if errors.As(err, &trap) {
		return trap
	}
	var missing *HandlerMissingError
	if errors.As(err, &missing) {
		return missing
	}
	return &TrapError{Function: function, Reason: "guest execution failed", Cause: err}
}

// readString decodes a guest string argument, converting malformed layouts
// into traps tagged with the host function name.
func (i *Instance) readString(fn string, ptr uint32) (string, error) {
	s, err := asc.DecodeString(i.heap, ptr)
	if err != nil {
		return "", &TrapError{Function: fn, Reason: "malformed string argument", Cause: err}
	}
	return s, nil
}

// readBytes decodes a guest byte-array argument.
func (i *Instance) readBytes(fn string, ptr uint32) ([]byte, error) {
	b, err := asc.DecodeBytes(i.heap, ptr)
	if err != nil {
		return nil, &TrapError{Function: fn, Reason: "malformed bytes argument", Cause: err}
	}
	return b, nil
}
