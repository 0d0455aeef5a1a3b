// Package store provides EntityStore backends for the mapping runtime: an
// in-process map for tests and single-process embedders, and a distributed
// adapter over an Olric cluster for embedders running workers across
// processes.
package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	mapping "github.com/graphprotocol/mapping-runtime"
)

// entityDocument is the serialized form of an entity: field name to tagged
// value. Bytes are base64, big integers and decimals are decimal strings so
// precision survives the round trip.
type entityDocument map[string]fieldDocument

type fieldDocument struct {
	Kind   string           `json:"kind"`
	String string           `json:"string,omitempty"`
	Bytes  string           `json:"bytes,omitempty"`
	Bool   bool             `json:"bool,omitempty"`
	Int    int64            `json:"int,omitempty"`
	BigInt string           `json:"bigint,omitempty"`
	Digits string           `json:"digits,omitempty"`
	Exp    int32            `json:"exp,omitempty"`
	Array  []fieldDocument  `json:"array,omitempty"`
}

// MarshalEntity serializes an entity for storage.
func MarshalEntity(e mapping.Entity) ([]byte, error) {
	doc := make(entityDocument, len(e))
	for k, v := range e {
		fd, err := fieldFromValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		doc[k] = fd
	}
	return json.Marshal(doc)
}

// UnmarshalEntity deserializes an entity written by MarshalEntity.
func UnmarshalEntity(data []byte) (mapping.Entity, error) {
	var doc entityDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make(mapping.Entity, len(doc))
	for k, fd := range doc {
		v, err := valueFromField(fd)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func fieldFromValue(v mapping.Value) (fieldDocument, error) {
	switch v.Kind {
	case mapping.ValueKindNull:
		return fieldDocument{Kind: "null"}, nil
	case mapping.ValueKindString:
		return fieldDocument{Kind: "string", String: v.Str}, nil
	case mapping.ValueKindBytes:
		return fieldDocument{Kind: "bytes", Bytes: base64.StdEncoding.EncodeToString(v.Bytes)}, nil
	case mapping.ValueKindBoolean:
		return fieldDocument{Kind: "bool", Bool: v.Bool}, nil
	case mapping.ValueKindInt:
		return fieldDocument{Kind: "int", Int: v.Int}, nil
	case mapping.ValueKindBigInt:
		return fieldDocument{Kind: "bigint", BigInt: v.BigInt.String()}, nil
	case mapping.ValueKindBigDecimal:
		return fieldDocument{Kind: "bigdecimal", Digits: v.BigDecimal.Digits.String(), Exp: v.BigDecimal.Exp}, nil
	case mapping.ValueKindArray:
		elems := make([]fieldDocument, len(v.Array))
		for i, e := range v.Array {
			fd, err := fieldFromValue(e)
			if err != nil {
				return fieldDocument{}, err
			}
			elems[i] = fd
		}
		return fieldDocument{Kind: "array", Array: elems}, nil
	default:
		return fieldDocument{}, fmt.Errorf("unsupported value kind %s", v.Kind)
	}
}

func valueFromField(fd fieldDocument) (mapping.Value, error) {
	switch fd.Kind {
	case "null":
		return mapping.NullValue(), nil
	case "string":
		return mapping.StringValue(fd.String), nil
	case "bytes":
		b, err := base64.StdEncoding.DecodeString(fd.Bytes)
		if err != nil {
			return mapping.Value{}, err
		}
		return mapping.BytesValue(b), nil
	case "bool":
		return mapping.BooleanValue(fd.Bool), nil
	case "int":
		return mapping.IntValue(fd.Int), nil
	case "bigint":
		n, ok := new(big.Int).SetString(fd.BigInt, 10)
		if !ok {
			return mapping.Value{}, fmt.Errorf("malformed bigint %q", fd.BigInt)
		}
		return mapping.BigIntValue(n), nil
	case "bigdecimal":
		digits, ok := new(big.Int).SetString(fd.Digits, 10)
		if !ok {
			return mapping.Value{}, fmt.Errorf("malformed bigdecimal digits %q", fd.Digits)
		}
		return mapping.BigDecimalValue(mapping.NewBigDecimal(digits, fd.Exp)), nil
	case "array":
		elems := make([]mapping.Value, len(fd.Array))
		for i, e := range fd.Array {
			v, err := valueFromField(e)
			if err != nil {
				return mapping.Value{}, err
			}
			elems[i] = v
		}
		return mapping.ArrayValue(elems), nil
	default:
		return mapping.Value{}, fmt.Errorf("unknown value kind %q", fd.Kind)
	}
}

// entityKey builds the storage key for (entityType, id).
func entityKey(entityType, id string) string {
	return entityType + "/" + id
}
