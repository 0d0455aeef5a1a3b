// Package asc implements component C: the typed marshalling layer between
// host domain values and AssemblyScript-style guest object representations
// (strings, typed arrays, tagged enums, maps, big integers/decimals). It
// depends only on the arena bump allocator and has no knowledge of mapping
// domain types; the root package adapts its own types to and from the
// plain structs declared here.
package asc

import (
	"context"
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/graphprotocol/mapping-runtime/internal/arena"
)

// TrapError reports a malformed guest value encountered while decoding;
// try_asc_get-style callers convert this into a host trap rather than
// panicking.
type TrapError struct {
	Reason string
}

func (e *TrapError) Error() string { return "asc: " + e.Reason }

func trap(format string, args ...interface{}) error {
	return &TrapError{Reason: fmt.Sprintf(format, args...)}
}

// EncodeString writes s as a length-prefixed sequence of UTF-16 code units
// and returns its guest pointer.
func EncodeString(ctx context.Context, a *arena.Arena, s string) (uint32, error) {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, 4+2*len(units))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(units)))
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[4+2*i:6+2*i], u)
	}
	return a.RawNew(ctx, buf)
}

// DecodeString reads a length-prefixed UTF-16 string at ptr.
func DecodeString(a *arena.Arena, ptr uint32) (string, error) {
	header, err := a.Get(ptr, 4)
	if err != nil {
		return "", trap("string header out of range at %d: %v", ptr, err)
	}
	count := binary.LittleEndian.Uint32(header)
	body, err := a.Get(ptr+4, 2*count)
	if err != nil {
		return "", trap("string body out of range at %d (%d units): %v", ptr, count, err)
	}
	units := make([]uint16, count)
	for i := uint32(0); i < count; i++ {
		units[i] = binary.LittleEndian.Uint16(body[2*i : 2*i+2])
	}
	return string(utf16.Decode(units)), nil
}

// EncodeBytes writes b as a length-prefixed byte array (Uint8Array/Bytes)
// and returns its guest pointer.
func EncodeBytes(ctx context.Context, a *arena.Arena, b []byte) (uint32, error) {
	buf := make([]byte, 4+len(b))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(b)))
	copy(buf[4:], b)
	return a.RawNew(ctx, buf)
}

// DecodeBytes reads a length-prefixed byte array at ptr.
func DecodeBytes(a *arena.Arena, ptr uint32) ([]byte, error) {
	header, err := a.Get(ptr, 4)
	if err != nil {
		return nil, trap("bytes header out of range at %d: %v", ptr, err)
	}
	count := binary.LittleEndian.Uint32(header)
	body, err := a.Get(ptr+4, count)
	if err != nil {
		return nil, trap("bytes body out of range at %d (%d bytes): %v", ptr, count, err)
	}
	return body, nil
}

// EncodePointerArray writes a length-prefixed array of guest pointers and
// returns its own guest pointer. Used for arrays of asc values (e.g. a
// field's array value, or an array of entity field pairs).
func EncodePointerArray(ctx context.Context, a *arena.Arena, ptrs []uint32) (uint32, error) {
	buf := make([]byte, 4+4*len(ptrs))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(ptrs)))
	for i, p := range ptrs {
		binary.LittleEndian.PutUint32(buf[4+4*i:8+4*i], p)
	}
	return a.RawNew(ctx, buf)
}

// DecodePointerArray reads a length-prefixed pointer array at ptr.
func DecodePointerArray(a *arena.Arena, ptr uint32) ([]uint32, error) {
	header, err := a.Get(ptr, 4)
	if err != nil {
		return nil, trap("pointer array header out of range at %d: %v", ptr, err)
	}
	count := binary.LittleEndian.Uint32(header)
	body, err := a.Get(ptr+4, 4*count)
	if err != nil {
		return nil, trap("pointer array body out of range at %d (%d entries): %v", ptr, count, err)
	}
	out := make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		out[i] = binary.LittleEndian.Uint32(body[4*i : 4*i+4])
	}
	return out, nil
}

// EnumKind is the discriminant of an AscEnum<K>: which union member a
// tagged value's payload pointer refers to.
type EnumKind uint8

// EncodeEnum writes a tagged enum: 1 discriminant byte followed by a 4-byte
// payload pointer.
func EncodeEnum(ctx context.Context, a *arena.Arena, kind EnumKind, payload uint32) (uint32, error) {
	buf := make([]byte, 8)
	buf[0] = byte(kind)
	binary.LittleEndian.PutUint32(buf[4:8], payload)
	return a.RawNew(ctx, buf)
}

// DecodeEnum reads a tagged enum's discriminant and payload pointer.
func DecodeEnum(a *arena.Arena, ptr uint32) (EnumKind, uint32, error) {
	raw, err := a.Get(ptr, 8)
	if err != nil {
		return 0, 0, trap("enum out of range at %d: %v", ptr, err)
	}
	return EnumKind(raw[0]), binary.LittleEndian.Uint32(raw[4:8]), nil
}

// MapPair is one (key pointer, value pointer) entry in an encoded entity or
// map.
type MapPair struct {
	KeyPtr   uint32
	ValuePtr uint32
}

// EncodeMap writes an ordered sequence of key/value pointer pairs.
func EncodeMap(ctx context.Context, a *arena.Arena, pairs []MapPair) (uint32, error) {
	buf := make([]byte, 4+8*len(pairs))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(pairs)))
	for i, p := range pairs {
		binary.LittleEndian.PutUint32(buf[4+8*i:8+8*i], p.KeyPtr)
		binary.LittleEndian.PutUint32(buf[8+8*i:12+8*i], p.ValuePtr)
	}
	return a.RawNew(ctx, buf)
}

// DecodeMap reads an ordered sequence of key/value pointer pairs at ptr.
func DecodeMap(a *arena.Arena, ptr uint32) ([]MapPair, error) {
	header, err := a.Get(ptr, 4)
	if err != nil {
		return nil, trap("map header out of range at %d: %v", ptr, err)
	}
	count := binary.LittleEndian.Uint32(header)
	body, err := a.Get(ptr+4, 8*count)
	if err != nil {
		return nil, trap("map body out of range at %d (%d pairs): %v", ptr, count, err)
	}
	out := make([]MapPair, count)
	for i := uint32(0); i < count; i++ {
		out[i] = MapPair{
			KeyPtr:   binary.LittleEndian.Uint32(body[8*i : 8*i+4]),
			ValuePtr: binary.LittleEndian.Uint32(body[8*i+4 : 8*i+8]),
		}
	}
	return out, nil
}
