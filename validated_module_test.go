package mapping

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
)

// buildImportOnlyModule assembles a minimal Wasm binary whose only contents
// are function imports, one per (module, name) pair. Every section length
// here stays below 128 bytes so single-byte LEB128 encodings suffice.
func buildImportOnlyModule(t *testing.T, imports [][2]string) []byte {
	t.Helper()

	section := func(id byte, body []byte) []byte {
		if len(body) > 127 {
			t.Fatalf("section %d too large for single-byte length: %d", id, len(body))
		}
		return append([]byte{id, byte(len(body))}, body...)
	}
	name := func(s string) []byte {
		if len(s) > 127 {
			t.Fatalf("name %q too long", s)
		}
		return append([]byte{byte(len(s))}, s...)
	}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// Type section: one functype () -> ().
	out = append(out, section(0x01, []byte{0x01, 0x60, 0x00, 0x00})...)

	if len(imports) > 0 {
		body := []byte{byte(len(imports))}
		for _, imp := range imports {
			body = append(body, name(imp[0])...)
			body = append(body, name(imp[1])...)
			body = append(body, 0x00, 0x00) // function import, type 0
		}
		out = append(out, section(0x02, body)...)
	}

	return out
}

func TestValidateModuleSingleNamespace(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	raw := buildImportOnlyModule(t, [][2]string{
		{"env", "abort"},
		{"index", "store.get"},
		{"index", "store.set"},
	})

	vm, err := ValidateModule(ctx, runtime, raw)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	defer vm.Close(ctx)

	if vm.UserNamespace() != "index" {
		t.Errorf("user namespace: got %q, want %q", vm.UserNamespace(), "index")
	}
}

func TestValidateModuleZeroNamespaces(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	raw := buildImportOnlyModule(t, [][2]string{{"env", "abort"}})
	if _, err := ValidateModule(ctx, runtime, raw); !IsValidation(err) {
		t.Errorf("env-only module: expected validation error, got %v", err)
	}

	raw = buildImportOnlyModule(t, nil)
	if _, err := ValidateModule(ctx, runtime, raw); !IsValidation(err) {
		t.Errorf("import-free module: expected validation error, got %v", err)
	}
}

func TestValidateModuleTwoNamespaces(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	raw := buildImportOnlyModule(t, [][2]string{
		{"alpha", "f"},
		{"beta", "g"},
	})
	if _, err := ValidateModule(ctx, runtime, raw); !IsValidation(err) {
		t.Errorf("two-namespace module: expected validation error, got %v", err)
	}
}

func TestValidateModuleGarbage(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	if _, err := ValidateModule(ctx, runtime, []byte("definitely not wasm")); !IsValidation(err) {
		t.Errorf("garbage: expected validation error, got %v", err)
	}
	if _, err := ValidateModule(ctx, runtime, nil); !IsValidation(err) {
		t.Errorf("empty: expected validation error, got %v", err)
	}
}
