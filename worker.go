package mapping

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/graphprotocol/mapping-runtime/pkg/logging"
)

// MappingRequest asks a worker to run one trigger through one handler call.
// Reply is single-shot and single-consumer; it must be buffered so the
// worker's non-blocking send succeeds when the receiver is still listening.
type MappingRequest struct {
	Ctx     *MappingContext
	Trigger MappingTrigger
	Reply   chan<- MappingResponse
}

// MappingResponse carries the accumulated BlockState (or the error that
// prevented it) and the time the handler completed on the worker goroutine.
type MappingResponse struct {
	State       *BlockState
	Err         error
	CompletedAt time.Time
}

// NewReplyChannel returns a reply channel suitable for MappingRequest: one
// buffered slot so the worker never blocks on it.
func NewReplyChannel() chan MappingResponse {
	return make(chan MappingResponse, 1)
}

// WorkerHandle is the producer side of a spawned worker: a bounded request
// queue plus liveness signal.
type WorkerHandle struct {
	name       string
	subgraphID string
	requests   chan MappingRequest
	done       chan struct{}
	closeOnce  sync.Once
}

// Name returns the worker's trace name, mapping-{subgraphID}-{uuid}.
func (h *WorkerHandle) Name() string { return h.name }

// Send enqueues a request, blocking while the queue is at its bound. It
// fails once the worker goroutine has exited.
func (h *WorkerHandle) Send(req MappingRequest) error {
	select {
	case <-h.done:
		return &ThreadTerminationError{SubgraphID: h.subgraphID, Cause: ErrThreadTerminated}
	default:
	}
	select {
	case h.requests <- req:
		return nil
	case <-h.done:
		return &ThreadTerminationError{SubgraphID: h.subgraphID, Cause: ErrThreadTerminated}
	}
}

// Close drops the producer's sender; the worker drains its queue and
// exits. Callers must not Send concurrently with or after Close.
func (h *WorkerHandle) Close() {
	h.closeOnce.Do(func() { close(h.requests) })
}

// Done is closed when the worker goroutine has exited.
func (h *WorkerHandle) Done() <-chan struct{} { return h.done }

type worker struct {
	name       string
	subgraphID string
	raw        []byte
	logger     *logging.ColoredLogger
	metrics    MetricsRecorder
	cfg        *Config
	requests   chan MappingRequest
	done       chan struct{}

	// process, when set, replaces the full per-request path; tests use it
	// to exercise the queue semantics without a real module.
	process func(req MappingRequest) MappingResponse
}

// SpawnWorker starts the dedicated goroutine for one subgraph, pinned to an
// OS thread for the lifetime of its Wasm engine. The raw bytes are compiled
// and validated before SpawnWorker returns; a validation failure is
// returned here and no worker is left running.
func SpawnWorker(ctx context.Context, rawWasm []byte, logger *logging.ColoredLogger, subgraphID string, metrics MetricsRecorder, cfg *Config) (*WorkerHandle, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg.ApplyDefaults()
	}

	w := &worker{
		name:       "mapping-" + subgraphID + "-" + uuid.New().String(),
		subgraphID: subgraphID,
		raw:        rawWasm,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
		requests:   make(chan MappingRequest, cfg.RequestChannelDepth),
		done:       make(chan struct{}),
	}

	ready := make(chan error, 1)
	go w.run(ctx, ready)
	if err := <-ready; err != nil {
		return nil, err
	}

	return &WorkerHandle{
		name:       w.name,
		subgraphID: subgraphID,
		requests:   w.requests,
		done:       w.done,
	}, nil
}

// run owns the worker's Wasm engine end to end: compile and validate once,
// register host modules once, then process requests strictly in order until
// every sender is gone. spawnCtx bounds only the startup phase; the request
// loop outlives it.
func (w *worker) run(spawnCtx context.Context, ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	bg := context.Background()
	engine := wazero.NewRuntimeWithConfig(bg, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	defer engine.Close(bg)

	var vm *ValidatedModule
	cell := &instanceCell{}
	if w.process == nil {
		var err error
		vm, err = ValidateModule(spawnCtx, engine, w.raw)
		if err != nil {
			ready <- err
			return
		}
		if err := registerHostModules(spawnCtx, engine, vm.UserNamespace(), cell); err != nil {
			ready <- err
			return
		}
	}
	ready <- nil

	w.logger.ComponentInfo(logging.ComponentWorker, "mapping worker started",
		zap.String("worker", w.name), zap.String("subgraph", w.subgraphID))

	for req := range w.requests {
		var resp MappingResponse
		if w.process != nil {
			resp = w.process(req)
		} else {
			resp = w.handle(engine, vm, cell, req)
		}
		select {
		case req.Reply <- resp:
		default:
			w.logger.ComponentWarn(logging.ComponentWorker, "reply receiver gone, dropping response",
				zap.String("worker", w.name), zap.Error(&ReplyLostError{SubgraphID: w.subgraphID}))
		}
	}

	w.logger.ComponentInfo(logging.ComponentWorker, "mapping worker stopped",
		zap.String("worker", w.name), zap.String("subgraph", w.subgraphID))
}

// handle runs one request: fresh instance, dispatch on trigger variant,
// collect the final state.
func (w *worker) handle(engine wazero.Runtime, vm *ValidatedModule, cell *instanceCell, req MappingRequest) MappingResponse {
	reqCtx, cancel := context.WithTimeout(context.Background(), w.cfg.RequestTimeout())
	defer cancel()

	stopInit := w.metrics.StartSection("module_init")
	inst, err := newInstance(reqCtx, engine, vm, req.Ctx, w.cfg)
	stopInit()
	if err != nil {
		w.logger.ComponentError(logging.ComponentInstance, "instantiation failed",
			zap.String("worker", w.name), zap.Error(err))
		return MappingResponse{Err: err, CompletedAt: time.Now()}
	}
	cell.set(inst)
	defer func() {
		cell.clear()
		_ = inst.Close(reqCtx)
	}()

	stopRun := w.metrics.StartSection("run_handler")
	err = inst.Dispatch(reqCtx, req.Trigger)
	stopRun()
	if err != nil {
		// The scratch state dies with the instance; the caller's
		// BlockState is exactly as it was before the request.
		return MappingResponse{Err: err, CompletedAt: time.Now()}
	}

	// Clean return: fold the handler's writes into the caller's state.
	if req.Ctx.State == nil {
		req.Ctx.State = inst.mctx.State
		return MappingResponse{State: req.Ctx.State, CompletedAt: time.Now()}
	}
	if err := req.Ctx.State.Extend(inst.mctx.State); err != nil {
		return MappingResponse{Err: err, CompletedAt: time.Now()}
	}
	return MappingResponse{State: req.Ctx.State, CompletedAt: time.Now()}
}
