package mapping

import (
	"context"
	"math/big"

	"github.com/graphprotocol/mapping-runtime/internal/asc"
)

// BigInt arithmetic. Every operand is decoded from guest memory, operated
// on with math/big, and the result re-encoded.

func (i *Instance) bigIntBinop(ctx context.Context, fn string, xPtr, yPtr uint32, op func(x, y *big.Int) (*big.Int, error)) (uint32, error) {
	x, err := i.readBigInt(fn, xPtr)
	if err != nil {
		return 0, err
	}
	y, err := i.readBigInt(fn, yPtr)
	if err != nil {
		return 0, err
	}
	result, err := op(x, y)
	if err != nil {
		return 0, &TrapError{Function: fn, Reason: err.Error()}
	}
	out, err := asc.EncodeBigInt(ctx, i.heap, result)
	if err != nil {
		return 0, &TrapError{Function: fn, Reason: "result encoding failed", Cause: err}
	}
	return out, nil
}

func (i *Instance) bigIntPlus(ctx context.Context, xPtr, yPtr uint32) (uint32, error) {
	return i.bigIntBinop(ctx, "bigInt.plus", xPtr, yPtr, func(x, y *big.Int) (*big.Int, error) {
		return new(big.Int).Add(x, y), nil
	})
}

func (i *Instance) bigIntMinus(ctx context.Context, xPtr, yPtr uint32) (uint32, error) {
	return i.bigIntBinop(ctx, "bigInt.minus", xPtr, yPtr, func(x, y *big.Int) (*big.Int, error) {
		return new(big.Int).Sub(x, y), nil
	})
}

func (i *Instance) bigIntTimes(ctx context.Context, xPtr, yPtr uint32) (uint32, error) {
	return i.bigIntBinop(ctx, "bigInt.times", xPtr, yPtr, func(x, y *big.Int) (*big.Int, error) {
		return new(big.Int).Mul(x, y), nil
	})
}

func (i *Instance) bigIntDividedBy(ctx context.Context, xPtr, yPtr uint32) (uint32, error) {
	return i.bigIntBinop(ctx, "bigInt.dividedBy", xPtr, yPtr, func(x, y *big.Int) (*big.Int, error) {
		if y.Sign() == 0 {
			return nil, errDivisionByZero
		}
		return new(big.Int).Quo(x, y), nil
	})
}

func (i *Instance) bigIntMod(ctx context.Context, xPtr, yPtr uint32) (uint32, error) {
	return i.bigIntBinop(ctx, "bigInt.mod", xPtr, yPtr, func(x, y *big.Int) (*big.Int, error) {
		if y.Sign() == 0 {
			return nil, errDivisionByZero
		}
		return new(big.Int).Mod(x, y), nil
	})
}

func (i *Instance) bigIntPow(ctx context.Context, xPtr, exp uint32) (uint32, error) {
	x, err := i.readBigInt("bigInt.pow", xPtr)
	if err != nil {
		return 0, err
	}
	result := new(big.Int).Exp(x, new(big.Int).SetUint64(uint64(exp&0xff)), nil)
	out, err := asc.EncodeBigInt(ctx, i.heap, result)
	if err != nil {
		return 0, &TrapError{Function: "bigInt.pow", Reason: "result encoding failed", Cause: err}
	}
	return out, nil
}

// bigIntDividedByDecimal divides a BigInt by a BigDecimal, producing a
// BigDecimal.
func (i *Instance) bigIntDividedByDecimal(ctx context.Context, xPtr, yPtr uint32) (uint32, error) {
	x, err := i.readBigInt("bigInt.dividedByDecimal", xPtr)
	if err != nil {
		return 0, err
	}
	y, err := i.readBigDecimal("bigInt.dividedByDecimal", yPtr)
	if err != nil {
		return 0, err
	}
	result, err := NewBigDecimal(x, 0).DividedBy(y)
	if err != nil {
		return 0, &TrapError{Function: "bigInt.dividedByDecimal", Reason: err.Error()}
	}
	return i.writeBigDecimalResult(ctx, "bigInt.dividedByDecimal", result)
}

// BigDecimal arithmetic.

func (i *Instance) bigDecimalBinop(ctx context.Context, fn string, xPtr, yPtr uint32, op func(x, y BigDecimal) (BigDecimal, error)) (uint32, error) {
	x, err := i.readBigDecimal(fn, xPtr)
	if err != nil {
		return 0, err
	}
	y, err := i.readBigDecimal(fn, yPtr)
	if err != nil {
		return 0, err
	}
	result, err := op(x, y)
	if err != nil {
		return 0, &TrapError{Function: fn, Reason: err.Error()}
	}
	return i.writeBigDecimalResult(ctx, fn, result)
}

func (i *Instance) bigDecimalPlus(ctx context.Context, xPtr, yPtr uint32) (uint32, error) {
	return i.bigDecimalBinop(ctx, "bigDecimal.plus", xPtr, yPtr, func(x, y BigDecimal) (BigDecimal, error) {
		return x.Plus(y), nil
	})
}

func (i *Instance) bigDecimalMinus(ctx context.Context, xPtr, yPtr uint32) (uint32, error) {
	return i.bigDecimalBinop(ctx, "bigDecimal.minus", xPtr, yPtr, func(x, y BigDecimal) (BigDecimal, error) {
		return x.Minus(y), nil
	})
}

func (i *Instance) bigDecimalTimes(ctx context.Context, xPtr, yPtr uint32) (uint32, error) {
	return i.bigDecimalBinop(ctx, "bigDecimal.times", xPtr, yPtr, func(x, y BigDecimal) (BigDecimal, error) {
		return x.Times(y), nil
	})
}

func (i *Instance) bigDecimalDividedBy(ctx context.Context, xPtr, yPtr uint32) (uint32, error) {
	return i.bigDecimalBinop(ctx, "bigDecimal.dividedBy", xPtr, yPtr, func(x, y BigDecimal) (BigDecimal, error) {
		return x.DividedBy(y)
	})
}

// bigDecimalEquals compares two BigDecimals after exponent normalization,
// returning a guest boolean.
func (i *Instance) bigDecimalEquals(ctx context.Context, xPtr, yPtr uint32) (uint32, error) {
	x, err := i.readBigDecimal("bigDecimal.equals", xPtr)
	if err != nil {
		return 0, err
	}
	y, err := i.readBigDecimal("bigDecimal.equals", yPtr)
	if err != nil {
		return 0, err
	}
	if x.Equals(y) {
		return 1, nil
	}
	return 0, nil
}

// bigDecimalToString renders a BigDecimal in plain positional notation.
func (i *Instance) bigDecimalToString(ctx context.Context, ptr uint32) (uint32, error) {
	x, err := i.readBigDecimal("bigDecimal.toString", ptr)
	if err != nil {
		return 0, err
	}
	return i.writeStringResult(ctx, "bigDecimal.toString", x.DecimalString())
}

// bigDecimalFromString parses a decimal string, trapping on malformed
// input.
func (i *Instance) bigDecimalFromString(ctx context.Context, ptr uint32) (uint32, error) {
	s, err := i.readString("bigDecimal.fromString", ptr)
	if err != nil {
		return 0, err
	}
	d, err := ParseBigDecimal(s)
	if err != nil {
		return 0, &TrapError{Function: "bigDecimal.fromString", Reason: err.Error()}
	}
	return i.writeBigDecimalResult(ctx, "bigDecimal.fromString", d)
}

func (i *Instance) readBigDecimal(fn string, ptr uint32) (BigDecimal, error) {
	digits, exp, err := asc.DecodeBigDecimal(i.heap, ptr)
	if err != nil {
		return BigDecimal{}, &TrapError{Function: fn, Reason: "malformed bigdecimal argument", Cause: err}
	}
	return NewBigDecimal(digits, exp), nil
}

func (i *Instance) writeBigDecimalResult(ctx context.Context, fn string, d BigDecimal) (uint32, error) {
	ptr, err := asc.EncodeBigDecimal(ctx, i.heap, d.Digits, d.Exp)
	if err != nil {
		return 0, &TrapError{Function: fn, Reason: "result encoding failed", Cause: err}
	}
	return ptr, nil
}
