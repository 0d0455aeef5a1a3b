package mapping

import (
	"context"
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/graphprotocol/mapping-runtime/internal/arena"
	"github.com/graphprotocol/mapping-runtime/internal/asc"
)

// The composite Ethereum objects are laid out as packed sequences of 4-byte
// pointer words, one per field. Which fields are present is gated on the
// guest API version: 0.0.2 adds the transaction input field, 0.0.3 adds the
// call's from field, 0.0.4 adds the contract-call function signature.

func encodeStruct(ctx context.Context, a *arena.Arena, fields []uint32) (uint32, error) {
	buf := make([]byte, 4*len(fields))
	for i, f := range fields {
		binary.LittleEndian.PutUint32(buf[4*i:4*i+4], f)
	}
	return a.RawNew(ctx, buf)
}

func decodeStruct(a *arena.Arena, ptr uint32, nFields int) ([]uint32, error) {
	raw, err := a.Get(ptr, uint32(4*nFields))
	if err != nil {
		return nil, err
	}
	fields := make([]uint32, nFields)
	for i := range fields {
		fields[i] = binary.LittleEndian.Uint32(raw[4*i : 4*i+4])
	}
	return fields, nil
}

// encodeBlock writes the read-only current block: hash, number, timestamp.
func encodeBlock(ctx context.Context, a *arena.Arena, b *Block) (uint32, error) {
	hashPtr, err := asc.EncodeBytes(ctx, a, b.Hash[:])
	if err != nil {
		return 0, err
	}
	numberPtr, err := asc.EncodeBigInt(ctx, a, new(big.Int).SetUint64(b.Number))
	if err != nil {
		return 0, err
	}
	timestampPtr, err := asc.EncodeBigInt(ctx, a, big.NewInt(b.Timestamp))
	if err != nil {
		return 0, err
	}
	return encodeStruct(ctx, a, []uint32{hashPtr, numberPtr, timestampPtr})
}

// encodeTransaction writes a transaction: hash, index, from, to, value,
// gasLimit, gasPrice, and (api version 0.0.2 and up) the call input bytes.
// A nil to address (contract creation) is written as a null pointer.
func encodeTransaction(ctx context.Context, a *arena.Arena, v APIVersion, tx *types.Transaction, from common.Address, index uint) (uint32, error) {
	hashPtr, err := asc.EncodeBytes(ctx, a, tx.Hash().Bytes())
	if err != nil {
		return 0, err
	}
	indexPtr, err := asc.EncodeBigInt(ctx, a, new(big.Int).SetUint64(uint64(index)))
	if err != nil {
		return 0, err
	}
	fromPtr, err := asc.EncodeBytes(ctx, a, from.Bytes())
	if err != nil {
		return 0, err
	}
	var toPtr uint32
	if to := tx.To(); to != nil {
		toPtr, err = asc.EncodeBytes(ctx, a, to.Bytes())
		if err != nil {
			return 0, err
		}
	}
	valuePtr, err := asc.EncodeBigInt(ctx, a, tx.Value())
	if err != nil {
		return 0, err
	}
	gasLimitPtr, err := asc.EncodeBigInt(ctx, a, new(big.Int).SetUint64(tx.Gas()))
	if err != nil {
		return 0, err
	}
	gasPricePtr, err := asc.EncodeBigInt(ctx, a, tx.GasPrice())
	if err != nil {
		return 0, err
	}

	fields := []uint32{hashPtr, indexPtr, fromPtr, toPtr, valuePtr, gasLimitPtr, gasPricePtr}
	if v.GTE(0, 0, 2) {
		inputPtr, err := asc.EncodeBytes(ctx, a, tx.Data())
		if err != nil {
			return 0, err
		}
		fields = append(fields, inputPtr)
	}
	return encodeStruct(ctx, a, fields)
}

// encodeLogParams writes decoded event or call parameters as ordered
// (name, value enum) pairs.
func encodeLogParams(ctx context.Context, a *arena.Arena, params []LogParam) (uint32, error) {
	pairs := make([]asc.MapPair, len(params))
	for i, p := range params {
		namePtr, err := asc.EncodeString(ctx, a, p.Name)
		if err != nil {
			return 0, err
		}
		valPtr, err := encodeValue(ctx, a, p.Value)
		if err != nil {
			return 0, err
		}
		pairs[i] = asc.MapPair{KeyPtr: namePtr, ValuePtr: valPtr}
	}
	return asc.EncodeMap(ctx, a, pairs)
}

// encodeEvent writes the full event payload handed to a log handler:
// address, logIndex, transactionLogIndex, logType, block, transaction,
// params.
func encodeEvent(ctx context.Context, a *arena.Arena, v APIVersion, block *Block, t *LogTrigger) (uint32, error) {
	addressPtr, err := asc.EncodeBytes(ctx, a, t.Log.Address.Bytes())
	if err != nil {
		return 0, err
	}
	logIndexPtr, err := asc.EncodeBigInt(ctx, a, new(big.Int).SetUint64(uint64(t.Log.Index)))
	if err != nil {
		return 0, err
	}
	txLogIndexPtr, err := asc.EncodeBigInt(ctx, a, new(big.Int).SetUint64(uint64(t.Log.TxIndex)))
	if err != nil {
		return 0, err
	}
	blockPtr, err := encodeBlock(ctx, a, block)
	if err != nil {
		return 0, err
	}
	txPtr, err := encodeTransaction(ctx, a, v, t.Transaction, t.TxFrom, t.TxIndex)
	if err != nil {
		return 0, err
	}
	paramsPtr, err := encodeLogParams(ctx, a, t.Params)
	if err != nil {
		return 0, err
	}

	// logType has no source in types.Log and is written as null.
	return encodeStruct(ctx, a, []uint32{addressPtr, logIndexPtr, txLogIndexPtr, 0, blockPtr, txPtr, paramsPtr})
}

// encodeCall writes the full payload handed to a call handler. The legacy
// layout is to, block, transaction, inputs, outputs; 0.0.3 and up inserts
// the from address after to.
func encodeCall(ctx context.Context, a *arena.Arena, v APIVersion, block *Block, t *CallTrigger) (uint32, error) {
	toPtr, err := asc.EncodeBytes(ctx, a, t.Call.Address.Bytes())
	if err != nil {
		return 0, err
	}
	blockPtr, err := encodeBlock(ctx, a, block)
	if err != nil {
		return 0, err
	}
	txPtr, err := encodeTransaction(ctx, a, v, t.Transaction, t.TxFrom, t.TxIndex)
	if err != nil {
		return 0, err
	}
	inputsPtr, err := encodeLogParams(ctx, a, t.Inputs)
	if err != nil {
		return 0, err
	}
	outputsPtr, err := encodeLogParams(ctx, a, t.Outputs)
	if err != nil {
		return 0, err
	}

	if v.GTE(0, 0, 3) {
		fromPtr, err := asc.EncodeBytes(ctx, a, t.TxFrom.Bytes())
		if err != nil {
			return 0, err
		}
		return encodeStruct(ctx, a, []uint32{toPtr, fromPtr, blockPtr, txPtr, inputsPtr, outputsPtr})
	}
	return encodeStruct(ctx, a, []uint32{toPtr, blockPtr, txPtr, inputsPtr, outputsPtr})
}

// decodeContractCall reads the guest's ethereum.call descriptor: contract
// name, contract address, function name, (0.0.4 and up) function signature,
// and the argument values.
func decodeContractCall(a *arena.Arena, v APIVersion, ptr uint32) (*ContractCall, error) {
	nFields := 4
	if v.GTE(0, 0, 4) {
		nFields = 5
	}
	fields, err := decodeStruct(a, ptr, nFields)
	if err != nil {
		return nil, err
	}

	call := &ContractCall{}
	call.ContractName, err = asc.DecodeString(a, fields[0])
	if err != nil {
		return nil, err
	}
	addr, err := asc.DecodeBytes(a, fields[1])
	if err != nil {
		return nil, err
	}
	if len(addr) != common.AddressLength {
		return nil, &TrapError{Function: "ethereum.call", Reason: "contract address is not 20 bytes"}
	}
	call.Address = common.BytesToAddress(addr)
	call.FunctionName, err = asc.DecodeString(a, fields[2])
	if err != nil {
		return nil, err
	}

	argsField := fields[3]
	if v.GTE(0, 0, 4) {
		call.FunctionSignature, err = asc.DecodeString(a, fields[3])
		if err != nil {
			return nil, err
		}
		argsField = fields[4]
	}

	argPtrs, err := asc.DecodePointerArray(a, argsField)
	if err != nil {
		return nil, err
	}
	call.Args = make([]Value, len(argPtrs))
	for i, p := range argPtrs {
		call.Args[i], err = decodeValue(a, p)
		if err != nil {
			return nil, err
		}
	}
	return call, nil
}
