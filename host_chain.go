package mapping

import (
	"context"

	"github.com/graphprotocol/mapping-runtime/internal/asc"
)

// ethereumCall decodes the guest's call descriptor, forwards it to the
// chain adapter, and encodes the returned token array. A nil result (e.g. a
// reverted call the adapter chose to swallow) is returned as null.
func (i *Instance) ethereumCall(ctx context.Context, callPtr uint32) (uint32, error) {
	call, err := decodeContractCall(i.heap, i.version, callPtr)
	if err != nil {
		return 0, &TrapError{Function: "ethereum.call", Reason: "malformed call descriptor", Cause: err}
	}

	chain := i.mctx.HostExports.Chain
	if chain == nil {
		return 0, &TrapError{Function: "ethereum.call", Reason: "no chain adapter configured"}
	}
	tokens, err := chain.Call(ctx, *call)
	if err != nil {
		return 0, &TrapError{
			Function: "ethereum.call",
			Reason:   "call to " + call.ContractName + "." + call.FunctionName + " failed",
			Cause:    &CollaboratorError{Collaborator: "chain", Cause: err},
		}
	}
	if tokens == nil {
		return 0, nil
	}

	ptrs := make([]uint32, len(tokens))
	for idx, tok := range tokens {
		ptrs[idx], err = encodeValue(ctx, i.heap, tok)
		if err != nil {
			return 0, &TrapError{Function: "ethereum.call", Reason: "result encoding failed", Cause: err}
		}
	}
	out, err := asc.EncodePointerArray(ctx, i.heap, ptrs)
	if err != nil {
		return 0, &TrapError{Function: "ethereum.call", Reason: "result encoding failed", Cause: err}
	}
	return out, nil
}
