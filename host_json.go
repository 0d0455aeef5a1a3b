package mapping

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/graphprotocol/mapping-runtime/internal/asc"
)

// parseJSONBytes decodes one JSON document from raw bytes, preserving
// number precision.
func parseJSONBytes(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// jsonFromBytes parses the argument bytes as JSON; a parse error traps.
func (i *Instance) jsonFromBytes(ctx context.Context, ptr uint32) (uint32, error) {
	raw, err := i.readBytes("json.fromBytes", ptr)
	if err != nil {
		return 0, err
	}
	v, err := parseJSONBytes(raw)
	if err != nil {
		return 0, &TrapError{Function: "json.fromBytes", Reason: "JSON parse failed", Cause: err}
	}
	out, err := encodeJSONValue(ctx, i.heap, v)
	if err != nil {
		return 0, &TrapError{Function: "json.fromBytes", Reason: "result encoding failed", Cause: err}
	}
	return out, nil
}

// jsonTryFromBytes never traps on malformed input: it returns a tagged
// result whose error arm is the boolean true.
func (i *Instance) jsonTryFromBytes(ctx context.Context, ptr uint32) (uint32, error) {
	raw, err := i.readBytes("json.try_fromBytes", ptr)
	if err != nil {
		return 0, err
	}

	v, parseErr := parseJSONBytes(raw)
	if parseErr != nil {
		out, err := asc.EncodeEnum(ctx, i.heap, resultKindError, 1)
		if err != nil {
			return 0, &TrapError{Function: "json.try_fromBytes", Reason: "result encoding failed", Cause: err}
		}
		return out, nil
	}

	valuePtr, err := encodeJSONValue(ctx, i.heap, v)
	if err != nil {
		return 0, &TrapError{Function: "json.try_fromBytes", Reason: "result encoding failed", Cause: err}
	}
	out, err := asc.EncodeEnum(ctx, i.heap, resultKindOk, valuePtr)
	if err != nil {
		return 0, &TrapError{Function: "json.try_fromBytes", Reason: "result encoding failed", Cause: err}
	}
	return out, nil
}

// Result discriminants for json.try_fromBytes.
const (
	resultKindOk asc.EnumKind = iota
	resultKindError
)

// jsonToI64 parses a decimal string into an i64.
func (i *Instance) jsonToI64(ctx context.Context, ptr uint32) (int64, error) {
	s, err := i.readString("json.toI64", ptr)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &TrapError{Function: "json.toI64", Reason: "not a signed 64-bit decimal: " + s}
	}
	return n, nil
}

// jsonToU64 parses a decimal string into a u64.
func (i *Instance) jsonToU64(ctx context.Context, ptr uint32) (uint64, error) {
	s, err := i.readString("json.toU64", ptr)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, &TrapError{Function: "json.toU64", Reason: "not an unsigned 64-bit decimal: " + s}
	}
	return n, nil
}

// jsonToF64 parses a decimal string into an f64.
func (i *Instance) jsonToF64(ctx context.Context, ptr uint32) (float64, error) {
	s, err := i.readString("json.toF64", ptr)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &TrapError{Function: "json.toF64", Reason: "not a 64-bit float: " + s}
	}
	return f, nil
}

// jsonToBigInt parses a decimal string into a BigInt.
func (i *Instance) jsonToBigInt(ctx context.Context, ptr uint32) (uint32, error) {
	s, err := i.readString("json.toBigInt", ptr)
	if err != nil {
		return 0, err
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0, &TrapError{Function: "json.toBigInt", Reason: "not a decimal integer: " + s}
	}
	out, err := asc.EncodeBigInt(ctx, i.heap, n)
	if err != nil {
		return 0, &TrapError{Function: "json.toBigInt", Reason: "result encoding failed", Cause: err}
	}
	return out, nil
}
