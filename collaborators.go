package mapping

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// EntityStore is the read interface the core consumes from the persistent
// entity store. Writes and removals during a handler call land in
// BlockState, not here; the embedder is responsible for flushing
// BlockState.PendingWrites/PendingRemovals to the real store after a
// MappingRequest completes. Owning the real backing store is the
// embedder's concern; this interface only describes the shape this package
// depends on.
type EntityStore interface {
	Get(entityType, id string) (Entity, bool, error)
}

// ContractCall describes a chain-adapter call: an address, a function
// descriptor, and argument tokens. FunctionSignature is populated only when
// the guest-side call descriptor carries it (api_version >= 0.0.4).
type ContractCall struct {
	ContractName      string
	Address           common.Address
	FunctionName      string
	FunctionSignature string
	Args              []Value
}

// ChainCaller is the interface the core consumes from the chain-call
// adapter for ethereum.call.
type ChainCaller interface {
	Call(ctx context.Context, call ContractCall) ([]Value, error)
}

// IPFSResolver is the interface the core consumes from the IPFS link
// resolver for ipfs.cat/ipfs.map.
type IPFSResolver interface {
	Cat(ctx context.Context, link string) ([]byte, error)
}

// MetricsRecorder times named sections of work. StartSection returns a
// function that records the section's end when called.
type MetricsRecorder interface {
	StartSection(name string) func()
}

// ENSResolver is the interface the core consumes for ens.nameByHash.
type ENSResolver interface {
	NameByHash(ctx context.Context, hash string) (string, bool, error)
}

// ArweaveResolver is the interface the core consumes for
// arweave.transactionData.
type ArweaveResolver interface {
	TransactionData(ctx context.Context, id string) ([]byte, error)
}

// ThreeBoxResolver is the interface the core consumes for box.profile.
type ThreeBoxResolver interface {
	Profile(ctx context.Context, address string) (json.RawMessage, error)
}

// NopMetrics is a MetricsRecorder that records nothing.
type NopMetrics struct{}

// StartSection implements MetricsRecorder.
func (NopMetrics) StartSection(string) func() { return func() {} }

// LoggingMetrics is a MetricsRecorder that logs every section's duration at
// debug level, for embedders without a real metrics backend.
type LoggingMetrics struct {
	Logger *zap.Logger
}

// StartSection implements MetricsRecorder.
func (m LoggingMetrics) StartSection(name string) func() {
	start := time.Now()
	return func() {
		m.Logger.Debug("section complete",
			zap.String("section", name),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// StaticChainCaller is a ChainCaller test double that returns a fixed
// response regardless of the call descriptor, or an error if configured.
type StaticChainCaller struct {
	Response []Value
	Err      error
}

// Call implements ChainCaller.
func (c StaticChainCaller) Call(context.Context, ContractCall) ([]Value, error) {
	return c.Response, c.Err
}
