package asc

import (
	"context"
	"math/big"

	"github.com/graphprotocol/mapping-runtime/internal/arena"
)

// ToLEBytes returns i's little-endian two's-complement byte representation,
// the BigInt wire format the guest expects.
func ToLEBytes(i *big.Int) []byte {
	if i.Sign() == 0 {
		return []byte{0}
	}

	if i.Sign() > 0 {
		be := i.Bytes()
		le := reverse(be)
		// Two's complement positive values need a leading zero byte when
		// the most significant bit is already set, so the sign reads
		// non-negative.
		if len(le) > 0 && le[len(le)-1]&0x80 != 0 {
			le = append(le, 0)
		}
		return le
	}

	// Negative: compute two's complement over the minimal byte width that
	// keeps the sign bit set.
	mag := new(big.Int).Abs(i)
	nBytes := len(mag.Bytes())
	if nBytes == 0 {
		nBytes = 1
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(nBytes*8))
	twos := new(big.Int).Add(mod, i) // mod + i, i negative
	be := twos.Bytes()
	// Left-pad to nBytes.
	for len(be) < nBytes {
		be = append([]byte{0}, be...)
	}
	le := reverse(be)
	if len(le) > 0 && le[len(le)-1]&0x80 == 0 {
		le = append(le, 0xff)
	}
	return le
}

// FromLEBytes parses a little-endian two's-complement byte slice into a
// big.Int.
func FromLEBytes(b []byte) *big.Int {
	if len(b) == 0 {
		return big.NewInt(0)
	}
	be := reverse(b)
	negative := be[0]&0x80 != 0
	if !negative {
		return new(big.Int).SetBytes(be)
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(len(be)*8))
	val := new(big.Int).SetBytes(be)
	return new(big.Int).Sub(val, mod)
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// EncodeBigInt writes i as a length-prefixed little-endian two's-complement
// byte array.
func EncodeBigInt(ctx context.Context, a *arena.Arena, i *big.Int) (uint32, error) {
	return EncodeBytes(ctx, a, ToLEBytes(i))
}

// DecodeBigInt reads a BigInt at ptr.
func DecodeBigInt(a *arena.Arena, ptr uint32) (*big.Int, error) {
	raw, err := DecodeBytes(a, ptr)
	if err != nil {
		return nil, err
	}
	return FromLEBytes(raw), nil
}

// EncodeBigDecimal writes a (digits, exp) pair: a pointer to the BigInt
// digits followed by a 4-byte little-endian exponent.
func EncodeBigDecimal(ctx context.Context, a *arena.Arena, digits *big.Int, exp int32) (uint32, error) {
	digitsPtr, err := EncodeBigInt(ctx, a, digits)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 8)
	leUint32(buf[0:4], digitsPtr)
	leUint32(buf[4:8], uint32(exp))
	return a.RawNew(ctx, buf)
}

// DecodeBigDecimal reads a (digits, exp) pair at ptr.
func DecodeBigDecimal(a *arena.Arena, ptr uint32) (*big.Int, int32, error) {
	raw, err := a.Get(ptr, 8)
	if err != nil {
		return nil, 0, trap("bigdecimal out of range at %d: %v", ptr, err)
	}
	digitsPtr := readUint32(raw[0:4])
	exp := int32(readUint32(raw[4:8]))
	digits, err := DecodeBigInt(a, digitsPtr)
	if err != nil {
		return nil, 0, err
	}
	return digits, exp, nil
}

func leUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func readUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
