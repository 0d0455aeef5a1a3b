package mapping

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"github.com/graphprotocol/mapping-runtime/internal/asc"
)

// ipfsCat fetches a link's bytes. Fetch failures are logged and coalesced
// to null: mapping code treats missing content as a normal case.
func (i *Instance) ipfsCat(ctx context.Context, linkPtr uint32) (uint32, error) {
	link, err := i.readString("ipfs.cat", linkPtr)
	if err != nil {
		return 0, err
	}

	resolver := i.mctx.HostExports.IPFS
	if resolver == nil {
		i.mctx.Logger.Warn("ipfs.cat with no resolver configured", zap.String("link", link))
		return 0, nil
	}
	data, err := resolver.Cat(ctx, link)
	if err != nil {
		i.mctx.Logger.Warn("ipfs.cat failed", zap.String("link", link), zap.Error(err))
		return 0, nil
	}
	return i.writeBytesResult(ctx, "ipfs.cat", data)
}

// ipfsMap stream-fetches a link, invokes the guest callback once per JSON
// value in the stream, and merges each callback's state back into the
// current context. Unlike ipfs.cat, fetch failures trap: the callback is
// expected to run.
func (i *Instance) ipfsMap(ctx context.Context, linkPtr, callbackPtr, userDataPtr, flagsPtr uint32) error {
	const fn = "ipfs.map"

	link, err := i.readString(fn, linkPtr)
	if err != nil {
		return err
	}
	callback, err := i.readString(fn, callbackPtr)
	if err != nil {
		return err
	}
	flags, err := i.readStringArray(fn, flagsPtr)
	if err != nil {
		return err
	}

	jsonMode := false
	for _, f := range flags {
		if f == "json" {
			jsonMode = true
		}
	}
	if !jsonMode {
		return &TrapError{Function: fn, Reason: "the only supported flag is 'json'"}
	}

	resolver := i.mctx.HostExports.IPFS
	if resolver == nil {
		return &TrapError{Function: fn, Reason: "no IPFS resolver configured"}
	}
	data, err := resolver.Cat(ctx, link)
	if err != nil {
		return &TrapError{Function: fn, Reason: "fetch of " + link + " failed", Cause: &CollaboratorError{Collaborator: "ipfs", Cause: err}}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parent := i.mctx
	for {
		var v interface{}
		if err := dec.Decode(&v); err == io.EOF {
			break
		} else if err != nil {
			i.mctx = parent
			return &TrapError{Function: fn, Reason: "malformed JSON stream from " + link, Cause: err}
		}

		valuePtr, err := encodeJSONValue(ctx, i.heap, v)
		if err != nil {
			i.mctx = parent
			return &TrapError{Function: fn, Reason: "callback argument encoding failed", Cause: err}
		}

		// Each callback runs against a blank state derived from the parent
		// so its writes can be merged in stream order afterwards.
		i.mctx = parent.DeriveWithEmptyState()
		err = i.handleJSONCallback(ctx, callback, valuePtr, userDataPtr)
		derived := i.mctx
		i.mctx = parent
		if err != nil {
			return err
		}
		if err := parent.State.Extend(derived.State); err != nil {
			return &TrapError{Function: fn, Reason: "merging callback state failed", Cause: err}
		}
	}
	return nil
}

// readStringArray decodes a guest array of string pointers.
func (i *Instance) readStringArray(fn string, ptr uint32) ([]string, error) {
	ptrs, err := asc.DecodePointerArray(i.heap, ptr)
	if err != nil {
		return nil, &TrapError{Function: fn, Reason: "malformed string array", Cause: err}
	}
	out := make([]string, len(ptrs))
	for idx, p := range ptrs {
		out[idx], err = i.readString(fn, p)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
