package mapping

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// HandlerSpec names the exported guest function a trigger must invoke.
type HandlerSpec struct {
	Handler string
}

// LogParam is one decoded Ethereum event parameter.
type LogParam struct {
	Name  string
	Value Value
}

// TriggerKind discriminates the three MappingTrigger variants.
type TriggerKind int

const (
	TriggerLog TriggerKind = iota
	TriggerCall
	TriggerBlock
)

// LogTrigger fires handle_log with a decoded Ethereum event. TxFrom and
// TxIndex carry the sender and in-block position, which types.Transaction
// does not record by itself.
type LogTrigger struct {
	Transaction *types.Transaction
	TxFrom      common.Address
	TxIndex     uint
	Log         *types.Log
	Params      []LogParam
	Handler     HandlerSpec
}

// CallTrigger fires handle_call with a decoded Ethereum contract call.
type CallTrigger struct {
	Transaction *types.Transaction
	TxFrom      common.Address
	TxIndex     uint
	Call        *ContractCall
	Inputs      []LogParam
	Outputs     []LogParam
	Handler     HandlerSpec
}

// BlockTrigger fires handle_block.
type BlockTrigger struct {
	Handler HandlerSpec
}

// MappingTrigger is the tagged union of the three trigger variants a
// MappingRequest may carry. Exactly one of Log, Call, Block is non-nil,
// selected by Kind.
type MappingTrigger struct {
	Kind  TriggerKind
	Log   *LogTrigger
	Call  *CallTrigger
	Block *BlockTrigger
}

// NewLogTrigger constructs a Log-kind MappingTrigger.
func NewLogTrigger(t LogTrigger) MappingTrigger {
	return MappingTrigger{Kind: TriggerLog, Log: &t}
}

// NewCallTrigger constructs a Call-kind MappingTrigger.
func NewCallTrigger(t CallTrigger) MappingTrigger {
	return MappingTrigger{Kind: TriggerCall, Call: &t}
}

// NewBlockTrigger constructs a Block-kind MappingTrigger.
func NewBlockTrigger(t BlockTrigger) MappingTrigger {
	return MappingTrigger{Kind: TriggerBlock, Block: &t}
}

// HandlerName returns the exported guest function name this trigger must
// invoke.
func (t MappingTrigger) HandlerName() string {
	switch t.Kind {
	case TriggerLog:
		return t.Log.Handler.Handler
	case TriggerCall:
		return t.Call.Handler.Handler
	case TriggerBlock:
		return t.Block.Handler.Handler
	default:
		return ""
	}
}
