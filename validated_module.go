package mapping

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/graphprotocol/mapping-runtime/internal/wasmmodule"
)

// ValidatedModule is a parsed Wasm module plus the name of its single user
// import namespace (component A). It is immutable and cheaply shared across
// every Instance built for a subgraph's worker.
type ValidatedModule struct {
	inner *wasmmodule.ValidatedModule
}

// UserNamespace returns the name of the module's single non-"env" import
// namespace.
func (m *ValidatedModule) UserNamespace() string { return m.inner.UserNS }

// Compiled returns the underlying compiled wazero module.
func (m *ValidatedModule) Compiled() wazero.CompiledModule { return m.inner.Compiled }

// Close releases the compiled module's resources.
func (m *ValidatedModule) Close(ctx context.Context) error { return m.inner.Close(ctx) }

// ValidateModule compiles raw Wasm bytes and verifies the import shape a
// guest module must have, wrapping failures as a *ValidationError.
func ValidateModule(ctx context.Context, runtime wazero.Runtime, raw []byte) (*ValidatedModule, error) {
	inner, err := wasmmodule.Validate(ctx, runtime, raw)
	if err != nil {
		return nil, &ValidationError{Reason: "module validation failed", Cause: err}
	}
	return &ValidatedModule{inner: inner}, nil
}
