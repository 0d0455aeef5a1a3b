package mapping

import "testing"

func TestDeriveWithEmptyState(t *testing.T) {
	store := NewMockEntityStore()
	store.Put("Foo", "persisted", Entity{"x": IntValue(1)})
	mctx, _ := newTestContext(store)
	mctx.State.Set("Foo", "pending", Entity{"y": IntValue(2)})

	derived := mctx.DeriveWithEmptyState()

	if derived.State == mctx.State {
		t.Fatal("derived context shares block state")
	}
	if len(derived.State.PendingWrites()) != 0 {
		t.Error("derived state is not empty")
	}
	if derived.HostExports != mctx.HostExports || derived.Block != mctx.Block ||
		derived.Logger != mctx.Logger || derived.ProofOfIndexing != mctx.ProofOfIndexing {
		t.Error("derived context does not share the remaining fields")
	}

	// The derived state still reads through the same store handle.
	_, found, err := derived.State.Get("Foo", "persisted")
	if err != nil || !found {
		t.Errorf("derived state lost the store handle: (%v, %v)", found, err)
	}

	// But not the parent's pending writes.
	_, found, _ = derived.State.Get("Foo", "pending")
	if found {
		t.Error("derived state sees parent's pending writes")
	}
}

func TestHasTemplate(t *testing.T) {
	h := &HostExports{Templates: []string{"Token", "Pair"}}
	if !h.HasTemplate("Token") || h.HasTemplate("Unknown") {
		t.Error("HasTemplate wrong")
	}
}
