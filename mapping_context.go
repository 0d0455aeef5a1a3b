package mapping

import "go.uber.org/zap"

// APIVersion is the semver triple stored in the mapping context that
// selects between versioned payload encodings at the boundaries 0.0.2
// (event), 0.0.3 (call), and 0.0.4 (contract-call argument).
type APIVersion struct {
	Major, Minor, Patch int
}

// GTE reports whether v is greater than or equal to (major, minor, patch).
// Every version-gated branch in this package uses this comparison.
func (v APIVersion) GTE(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

var (
	// APIVersion0_0_2 is the boundary at which EthereumEvent gains the
	// AscEthereumTransaction_0_0_2 transaction encoding.
	APIVersion0_0_2 = APIVersion{0, 0, 2}
	// APIVersion0_0_3 is the boundary at which EthereumCall gains the
	// AscEthereumCall_0_0_3 encoding.
	APIVersion0_0_3 = APIVersion{0, 0, 3}
	// APIVersion0_0_4 is the boundary at which ethereum.call's descriptor
	// gains the function signature field.
	APIVersion0_0_4 = APIVersion{0, 0, 4}
)

// ProofOfIndexingSink is the append-only stream the core notifies on every
// store.set/store.remove so downstream attestations can be produced.
type ProofOfIndexingSink interface {
	WriteEvent(entityType, id, op string)
}

// NopProofOfIndexing discards every event.
type NopProofOfIndexing struct{}

// WriteEvent implements ProofOfIndexingSink.
func (NopProofOfIndexing) WriteEvent(string, string, string) {}

// Block is the read-only current block made available to handlers.
type Block struct {
	Number    uint64
	Hash      [32]byte
	Timestamp int64
}

// HostExports bundles the collaborators and configuration a MappingContext
// shares with every Instance built from it: the API version, the
// persistent store, the chain adapter, IPFS/ENS/Arweave/3Box resolvers, a
// metrics recorder, and the subgraph's declared data source template
// names (consulted by DataSource.create).
type HostExports struct {
	APIVersion APIVersion
	Store      EntityStore
	Chain      ChainCaller
	IPFS       IPFSResolver
	ENS        ENSResolver
	Arweave    ArweaveResolver
	ThreeBox   ThreeBoxResolver
	Metrics    MetricsRecorder
	Templates  []string

	// Identity of the data source whose handlers are running: its on-chain
	// address, the network it indexes, and the context entity it was
	// spawned with (nil for static sources).
	DataSourceAddress []byte
	Network           string
	DataSourceContext Entity
}

// HasTemplate reports whether name is a declared data source template.
func (h *HostExports) HasTemplate(name string) bool {
	for _, t := range h.Templates {
		if t == name {
			return true
		}
	}
	return false
}

// MappingContext is the per-request bundle passed to the worker: a logger,
// the shared HostExports, the current block, a mutable BlockState, and a
// proof-of-indexing sink.
type MappingContext struct {
	Logger          *zap.Logger
	HostExports     *HostExports
	Block           *Block
	State           *BlockState
	ProofOfIndexing ProofOfIndexingSink
}

// DeriveWithEmptyState clones the context but swaps in a fresh BlockState
// built atop the same store handle, used when recursing into ipfs.map
// callbacks so each callback invocation starts from a blank state.
func (c *MappingContext) DeriveWithEmptyState() *MappingContext {
	return &MappingContext{
		Logger:          c.Logger,
		HostExports:     c.HostExports,
		Block:           c.Block,
		State:           NewBlockState(c.HostExports.Store),
		ProofOfIndexing: c.ProofOfIndexing,
	}
}

// deriveWithScratchState clones the context but swaps in a fresh BlockState
// whose reads fall through to the current state (BlockState itself
// satisfies EntityStore). Handlers run against the scratch state; the
// worker merges it into the caller's state only when the handler returns
// cleanly, so a handler that writes and then traps leaves the caller's
// BlockState exactly as it was before the request.
func (c *MappingContext) deriveWithScratchState() *MappingContext {
	var backing EntityStore
	if c.State != nil {
		backing = c.State
	} else if c.HostExports != nil {
		backing = c.HostExports.Store
	}
	return &MappingContext{
		Logger:          c.Logger,
		HostExports:     c.HostExports,
		Block:           c.Block,
		State:           NewBlockState(backing),
		ProofOfIndexing: c.ProofOfIndexing,
	}
}
