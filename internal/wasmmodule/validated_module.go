// Package wasmmodule implements component A: parsing and validating a raw
// Wasm blob before it is handed to a worker. It has no knowledge of the
// mapping domain beyond the single "exactly one user import namespace"
// invariant wazero's module introspection lets it check directly.
package wasmmodule

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
)

// EnvNamespace is the fixed import namespace reserved for env.abort. Every
// other import namespace a guest module uses must be the same single name;
// see Validate for why.
const EnvNamespace = "env"

// ValidatedModule is a parsed Wasm module plus the name of the single user
// import namespace. It is immutable and cheaply shared across many
// instantiations of the same subgraph.
type ValidatedModule struct {
	Compiled wazero.CompiledModule
	UserNS   string
}

// Validate compiles raw and enumerates its imports, requiring exactly one
// distinct import module name besides "env". The guest toolchain places all
// host imports in a single namespace whose name is not fixed; uniqueness
// lets the host resolve imports by position rather than by name.
func Validate(ctx context.Context, runtime wazero.Runtime, raw []byte) (*ValidatedModule, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("wasmmodule: raw module is empty")
	}

	compiled, err := runtime.CompileModule(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("wasmmodule: compile failed: %w", err)
	}

	userNS, err := userImportNamespace(compiled)
	if err != nil {
		compiled.Close(ctx)
		return nil, err
	}

	return &ValidatedModule{Compiled: compiled, UserNS: userNS}, nil
}

// userImportNamespace collects the distinct import module names excluding
// "env" and requires the remainder to contain exactly one name.
func userImportNamespace(compiled wazero.CompiledModule) (string, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, imp := range compiled.ImportedFunctions() {
		moduleName, _, _ := imp.Import()
		if moduleName == EnvNamespace {
			continue
		}
		if _, ok := seen[moduleName]; ok {
			continue
		}
		seen[moduleName] = struct{}{}
		names = append(names, moduleName)
	}

	if len(names) != 1 {
		return "", fmt.Errorf("wasmmodule: module has %d user import namespaces, expected exactly 1: %v", len(names), names)
	}
	return names[0], nil
}

// Close releases the compiled module's resources.
func (m *ValidatedModule) Close(ctx context.Context) error {
	if m.Compiled == nil {
		return nil
	}
	return m.Compiled.Close(ctx)
}
