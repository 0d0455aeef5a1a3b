package mapping

import (
	"context"
	"encoding/hex"
	"math/big"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/graphprotocol/mapping-runtime/internal/asc"
)

// bytesToString interprets the argument bytes as UTF-8. Invalid byte
// sequences trap rather than being replaced.
func (i *Instance) bytesToString(ctx context.Context, ptr uint32) (uint32, error) {
	b, err := i.readBytes("typeConversion.bytesToString", ptr)
	if err != nil {
		return 0, err
	}
	if !utf8.Valid(b) {
		return 0, &TrapError{Function: "typeConversion.bytesToString", Reason: "bytes are not valid UTF-8"}
	}
	return i.writeStringResult(ctx, "typeConversion.bytesToString", string(b))
}

// bytesToHex renders bytes as lowercase hex with a 0x prefix; empty input
// yields "0x".
func (i *Instance) bytesToHex(ctx context.Context, ptr uint32) (uint32, error) {
	b, err := i.readBytes("typeConversion.bytesToHex", ptr)
	if err != nil {
		return 0, err
	}
	return i.writeStringResult(ctx, "typeConversion.bytesToHex", "0x"+hex.EncodeToString(b))
}

// bigIntToString renders a BigInt in decimal.
func (i *Instance) bigIntToString(ctx context.Context, ptr uint32) (uint32, error) {
	n, err := i.readBigInt("typeConversion.bigIntToString", ptr)
	if err != nil {
		return 0, err
	}
	return i.writeStringResult(ctx, "typeConversion.bigIntToString", n.String())
}

// bigIntToHex renders a BigInt as 0x-prefixed lowercase hex; negative
// values carry a leading minus sign.
func (i *Instance) bigIntToHex(ctx context.Context, ptr uint32) (uint32, error) {
	n, err := i.readBigInt("typeConversion.bigIntToHex", ptr)
	if err != nil {
		return 0, err
	}
	s := "0x" + new(big.Int).Abs(n).Text(16)
	if n.Sign() < 0 {
		s = "-" + s
	}
	return i.writeStringResult(ctx, "typeConversion.bigIntToHex", s)
}

// stringToH160 parses a hex address string into its 20 address bytes.
func (i *Instance) stringToH160(ctx context.Context, ptr uint32) (uint32, error) {
	s, err := i.readString("typeConversion.stringToH160", ptr)
	if err != nil {
		return 0, err
	}
	if !common.IsHexAddress(s) {
		return 0, &TrapError{Function: "typeConversion.stringToH160", Reason: "invalid address " + s}
	}
	return i.writeBytesResult(ctx, "typeConversion.stringToH160", common.HexToAddress(s).Bytes())
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// bytesToBase58 renders bytes in the Bitcoin base58 alphabet, preserving
// leading zero bytes as '1' characters.
func (i *Instance) bytesToBase58(ctx context.Context, ptr uint32) (uint32, error) {
	b, err := i.readBytes("typeConversion.bytesToBase58", ptr)
	if err != nil {
		return 0, err
	}
	return i.writeStringResult(ctx, "typeConversion.bytesToBase58", encodeBase58(b))
}

func encodeBase58(b []byte) string {
	zeros := 0
	for zeros < len(b) && b[zeros] == 0 {
		zeros++
	}

	n := new(big.Int).SetBytes(b)
	radix := big.NewInt(58)
	rem := new(big.Int)
	var out []byte
	for n.Sign() > 0 {
		n.QuoRem(n, radix, rem)
		out = append(out, base58Alphabet[rem.Int64()])
	}
	for j := 0; j < zeros; j++ {
		out = append(out, base58Alphabet[0])
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return string(out)
}

// cryptoKeccak256 hashes the argument bytes with Keccak-256 (the legacy
// padding Ethereum uses, not standard SHA3).
func (i *Instance) cryptoKeccak256(ctx context.Context, ptr uint32) (uint32, error) {
	b, err := i.readBytes("crypto.keccak256", ptr)
	if err != nil {
		return 0, err
	}
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(b)
	return i.writeBytesResult(ctx, "crypto.keccak256", hasher.Sum(nil))
}

// readBigInt decodes a guest BigInt argument.
func (i *Instance) readBigInt(fn string, ptr uint32) (*big.Int, error) {
	n, err := asc.DecodeBigInt(i.heap, ptr)
	if err != nil {
		return nil, &TrapError{Function: fn, Reason: "malformed bigint argument", Cause: err}
	}
	return n, nil
}

// writeStringResult encodes a string host result.
func (i *Instance) writeStringResult(ctx context.Context, fn, s string) (uint32, error) {
	ptr, err := asc.EncodeString(ctx, i.heap, s)
	if err != nil {
		return 0, &TrapError{Function: fn, Reason: "result encoding failed", Cause: err}
	}
	return ptr, nil
}
