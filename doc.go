// Package mapping implements a per-subgraph WebAssembly mapping runtime: a
// thread-pinned execution engine that instantiates a validated Wasm module,
// wires a fixed catalog of host functions into it, marshals blockchain
// events across the host/guest boundary, and drives one event through one
// exported handler at a time while preserving accumulated state.
//
// The core is an embeddable library. It does not fetch Wasm bytes, persist
// entity changes, schedule across subgraphs, or expose a network surface;
// those concerns belong to the embedder and are consumed here only through
// the narrow collaborator interfaces in collaborators.go.
package mapping
