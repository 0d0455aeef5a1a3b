package mapping

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sort"

	"github.com/graphprotocol/mapping-runtime/internal/arena"
	"github.com/graphprotocol/mapping-runtime/internal/asc"
)

// Guest-side discriminants for JSON value enums. Store values reuse the
// ValueKind numbering directly.
const (
	jsonKindNull asc.EnumKind = iota
	jsonKindBool
	jsonKindNumber
	jsonKindString
	jsonKindArray
	jsonKindObject
)

// encodeValue writes v as a tagged store-value enum and returns its guest
// pointer. Boolean payloads are carried inline in the payload word; every
// other kind's payload is a pointer to its encoded body.
func encodeValue(ctx context.Context, a *arena.Arena, v Value) (uint32, error) {
	var payload uint32
	var err error

	switch v.Kind {
	case ValueKindNull:
		payload = 0
	case ValueKindString:
		payload, err = asc.EncodeString(ctx, a, v.Str)
	case ValueKindBytes:
		payload, err = asc.EncodeBytes(ctx, a, v.Bytes)
	case ValueKindBoolean:
		if v.Bool {
			payload = 1
		}
	case ValueKindInt:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v.Int))
		payload, err = a.RawNew(ctx, buf)
	case ValueKindBigInt:
		payload, err = asc.EncodeBigInt(ctx, a, v.BigInt)
	case ValueKindBigDecimal:
		payload, err = asc.EncodeBigDecimal(ctx, a, v.BigDecimal.Digits, v.BigDecimal.Exp)
	case ValueKindArray:
		ptrs := make([]uint32, len(v.Array))
		for i, elem := range v.Array {
			ptrs[i], err = encodeValue(ctx, a, elem)
			if err != nil {
				return 0, err
			}
		}
		payload, err = asc.EncodePointerArray(ctx, a, ptrs)
	}
	if err != nil {
		return 0, err
	}
	return asc.EncodeEnum(ctx, a, asc.EnumKind(v.Kind), payload)
}

// decodeValue reads a tagged store-value enum at ptr.
func decodeValue(a *arena.Arena, ptr uint32) (Value, error) {
	kind, payload, err := asc.DecodeEnum(a, ptr)
	if err != nil {
		return Value{}, err
	}

	switch ValueKind(kind) {
	case ValueKindNull:
		return NullValue(), nil
	case ValueKindString:
		s, err := asc.DecodeString(a, payload)
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case ValueKindBytes:
		b, err := asc.DecodeBytes(a, payload)
		if err != nil {
			return Value{}, err
		}
		return BytesValue(b), nil
	case ValueKindBoolean:
		return BooleanValue(payload != 0), nil
	case ValueKindInt:
		raw, err := a.Get(payload, 8)
		if err != nil {
			return Value{}, err
		}
		return IntValue(int64(binary.LittleEndian.Uint64(raw))), nil
	case ValueKindBigInt:
		i, err := asc.DecodeBigInt(a, payload)
		if err != nil {
			return Value{}, err
		}
		return BigIntValue(i), nil
	case ValueKindBigDecimal:
		digits, exp, err := asc.DecodeBigDecimal(a, payload)
		if err != nil {
			return Value{}, err
		}
		return BigDecimalValue(NewBigDecimal(digits, exp)), nil
	case ValueKindArray:
		ptrs, err := asc.DecodePointerArray(a, payload)
		if err != nil {
			return Value{}, err
		}
		elems := make([]Value, len(ptrs))
		for i, p := range ptrs {
			elems[i], err = decodeValue(a, p)
			if err != nil {
				return Value{}, err
			}
		}
		return ArrayValue(elems), nil
	default:
		return Value{}, &TrapError{Function: "decodeValue", Reason: "unknown value discriminant " + ValueKind(kind).String()}
	}
}

// encodeEntity writes e as an ordered sequence of (key string, value enum)
// pairs. Keys are written in lexicographic order so the guest layout is
// deterministic for a given entity.
func encodeEntity(ctx context.Context, a *arena.Arena, e Entity) (uint32, error) {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]asc.MapPair, len(keys))
	for i, k := range keys {
		keyPtr, err := asc.EncodeString(ctx, a, k)
		if err != nil {
			return 0, err
		}
		valPtr, err := encodeValue(ctx, a, e[k])
		if err != nil {
			return 0, err
		}
		pairs[i] = asc.MapPair{KeyPtr: keyPtr, ValuePtr: valPtr}
	}
	return asc.EncodeMap(ctx, a, pairs)
}

// decodeEntity reads an entity's (key, value) pairs at ptr.
func decodeEntity(a *arena.Arena, ptr uint32) (Entity, error) {
	pairs, err := asc.DecodeMap(a, ptr)
	if err != nil {
		return nil, err
	}
	out := make(Entity, len(pairs))
	for _, p := range pairs {
		key, err := asc.DecodeString(a, p.KeyPtr)
		if err != nil {
			return nil, err
		}
		val, err := decodeValue(a, p.ValuePtr)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}

// encodeJSONValue writes a decoded JSON document (as produced by a
// json.Decoder with UseNumber) as a tagged JSON enum. Numbers are carried as
// their decimal string so arbitrary precision survives the boundary.
func encodeJSONValue(ctx context.Context, a *arena.Arena, v interface{}) (uint32, error) {
	var kind asc.EnumKind
	var payload uint32
	var err error

	switch val := v.(type) {
	case nil:
		kind = jsonKindNull
	case bool:
		kind = jsonKindBool
		if val {
			payload = 1
		}
	case json.Number:
		kind = jsonKindNumber
		payload, err = asc.EncodeString(ctx, a, val.String())
	case string:
		kind = jsonKindString
		payload, err = asc.EncodeString(ctx, a, val)
	case []interface{}:
		kind = jsonKindArray
		ptrs := make([]uint32, len(val))
		for i, elem := range val {
			ptrs[i], err = encodeJSONValue(ctx, a, elem)
			if err != nil {
				return 0, err
			}
		}
		payload, err = asc.EncodePointerArray(ctx, a, ptrs)
	case map[string]interface{}:
		kind = jsonKindObject
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]asc.MapPair, len(keys))
		for i, k := range keys {
			keyPtr, kerr := asc.EncodeString(ctx, a, k)
			if kerr != nil {
				return 0, kerr
			}
			valPtr, verr := encodeJSONValue(ctx, a, val[k])
			if verr != nil {
				return 0, verr
			}
			pairs[i] = asc.MapPair{KeyPtr: keyPtr, ValuePtr: valPtr}
		}
		payload, err = asc.EncodeMap(ctx, a, pairs)
	default:
		return 0, &TrapError{Function: "encodeJSONValue", Reason: "unsupported JSON value shape"}
	}
	if err != nil {
		return 0, err
	}
	return asc.EncodeEnum(ctx, a, kind, payload)
}

// decodeJSONValue reads a tagged JSON enum at ptr back into the decoded-JSON
// shape encodeJSONValue accepts.
func decodeJSONValue(a *arena.Arena, ptr uint32) (interface{}, error) {
	kind, payload, err := asc.DecodeEnum(a, ptr)
	if err != nil {
		return nil, err
	}

	switch kind {
	case jsonKindNull:
		return nil, nil
	case jsonKindBool:
		return payload != 0, nil
	case jsonKindNumber:
		s, err := asc.DecodeString(a, payload)
		if err != nil {
			return nil, err
		}
		return json.Number(s), nil
	case jsonKindString:
		return asc.DecodeString(a, payload)
	case jsonKindArray:
		ptrs, err := asc.DecodePointerArray(a, payload)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, len(ptrs))
		for i, p := range ptrs {
			out[i], err = decodeJSONValue(a, p)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	case jsonKindObject:
		pairs, err := asc.DecodeMap(a, payload)
		if err != nil {
			return nil, err
		}
		out := make(map[string]interface{}, len(pairs))
		for _, p := range pairs {
			key, err := asc.DecodeString(a, p.KeyPtr)
			if err != nil {
				return nil, err
			}
			out[key], err = decodeJSONValue(a, p.ValuePtr)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, &TrapError{Function: "decodeJSONValue", Reason: "unknown JSON discriminant"}
	}
}
