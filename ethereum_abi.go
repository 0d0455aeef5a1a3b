package mapping

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DecodeABIOutput unpacks ABI-encoded return data from a contract call into
// Values, one per output of method. ChainCaller implementations use this to
// turn raw eth_call responses into the token shapes handlers consume.
func DecodeABIOutput(method abi.Method, data []byte) ([]Value, error) {
	tokens, err := method.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s output: %w", method.Name, err)
	}
	out := make([]Value, len(tokens))
	for i, tok := range tokens {
		out[i], err = ValueFromABIToken(tok)
		if err != nil {
			return nil, fmt.Errorf("output %d of %s: %w", i, method.Name, err)
		}
	}
	return out, nil
}

// ValueFromABIToken converts one unpacked ABI token into a Value. Addresses
// and hashes become bytes; every integer width becomes a BigInt so handlers
// see a single numeric shape.
func ValueFromABIToken(tok interface{}) (Value, error) {
	switch v := tok.(type) {
	case bool:
		return BooleanValue(v), nil
	case string:
		return StringValue(v), nil
	case []byte:
		return BytesValue(v), nil
	case common.Address:
		return BytesValue(v.Bytes()), nil
	case common.Hash:
		return BytesValue(v.Bytes()), nil
	case *big.Int:
		return BigIntValue(v), nil
	case int8:
		return BigIntValue(big.NewInt(int64(v))), nil
	case int16:
		return BigIntValue(big.NewInt(int64(v))), nil
	case int32:
		return BigIntValue(big.NewInt(int64(v))), nil
	case int64:
		return BigIntValue(big.NewInt(v)), nil
	case uint8:
		return BigIntValue(new(big.Int).SetUint64(uint64(v))), nil
	case uint16:
		return BigIntValue(new(big.Int).SetUint64(uint64(v))), nil
	case uint32:
		return BigIntValue(new(big.Int).SetUint64(uint64(v))), nil
	case uint64:
		return BigIntValue(new(big.Int).SetUint64(v)), nil
	case []common.Address:
		elems := make([]Value, len(v))
		for i, a := range v {
			elems[i] = BytesValue(a.Bytes())
		}
		return ArrayValue(elems), nil
	case []*big.Int:
		elems := make([]Value, len(v))
		for i, n := range v {
			elems[i] = BigIntValue(n)
		}
		return ArrayValue(elems), nil
	case []interface{}:
		elems := make([]Value, len(v))
		for i, e := range v {
			ev, err := ValueFromABIToken(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = ev
		}
		return ArrayValue(elems), nil
	default:
		// Fixed-size byte arrays unpack as [N]byte; reflectively sized
		// variants are rare enough that unsupported shapes surface loudly.
		if b, ok := fixedBytes(tok); ok {
			return BytesValue(b), nil
		}
		return Value{}, fmt.Errorf("unsupported ABI token type %T", tok)
	}
}

func fixedBytes(tok interface{}) ([]byte, bool) {
	switch v := tok.(type) {
	case [4]byte:
		return append([]byte(nil), v[:]...), true
	case [8]byte:
		return append([]byte(nil), v[:]...), true
	case [16]byte:
		return append([]byte(nil), v[:]...), true
	case [20]byte:
		return append([]byte(nil), v[:]...), true
	case [32]byte:
		return append([]byte(nil), v[:]...), true
	default:
		return nil, false
	}
}
