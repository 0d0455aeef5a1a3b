package mapping

import (
	"context"
	"math/big"
	"testing"

	"github.com/graphprotocol/mapping-runtime/internal/asc"
)

func encodeBigIntArg(t *testing.T, i *Instance, n int64) uint32 {
	t.Helper()
	ptr, err := asc.EncodeBigInt(context.Background(), i.heap, big.NewInt(n))
	if err != nil {
		t.Fatalf("encode bigint %d: %v", n, err)
	}
	return ptr
}

func decodeBigIntResult(t *testing.T, i *Instance, ptr uint32) *big.Int {
	t.Helper()
	n, err := asc.DecodeBigInt(i.heap, ptr)
	if err != nil {
		t.Fatalf("decode bigint result: %v", err)
	}
	return n
}

func encodeBigDecimalArg(t *testing.T, i *Instance, d BigDecimal) uint32 {
	t.Helper()
	ptr, err := asc.EncodeBigDecimal(context.Background(), i.heap, d.Digits, d.Exp)
	if err != nil {
		t.Fatalf("encode bigdecimal: %v", err)
	}
	return ptr
}

func decodeBigDecimalResult(t *testing.T, i *Instance, ptr uint32) BigDecimal {
	t.Helper()
	digits, exp, err := asc.DecodeBigDecimal(i.heap, ptr)
	if err != nil {
		t.Fatalf("decode bigdecimal result: %v", err)
	}
	return NewBigDecimal(digits, exp)
}

func TestBigIntArithmetic(t *testing.T) {
	mctx, _ := newTestContext(NewMockEntityStore())
	inst, _ := newTestInstance(t, mctx)
	ctx := context.Background()

	cases := []struct {
		name string
		op   func(x, y uint32) (uint32, error)
		x, y int64
		want string
	}{
		{"plus", func(x, y uint32) (uint32, error) { return inst.bigIntPlus(ctx, x, y) }, 40, 2, "42"},
		{"minus", func(x, y uint32) (uint32, error) { return inst.bigIntMinus(ctx, x, y) }, 40, 2, "38"},
		{"times", func(x, y uint32) (uint32, error) { return inst.bigIntTimes(ctx, x, y) }, -6, 7, "-42"},
		{"dividedBy", func(x, y uint32) (uint32, error) { return inst.bigIntDividedBy(ctx, x, y) }, 85, 2, "42"},
		{"mod", func(x, y uint32) (uint32, error) { return inst.bigIntMod(ctx, x, y) }, 85, 2, "1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ptr, err := tc.op(encodeBigIntArg(t, inst, tc.x), encodeBigIntArg(t, inst, tc.y))
			if err != nil {
				t.Fatalf("%s failed: %v", tc.name, err)
			}
			if got := decodeBigIntResult(t, inst, ptr); got.String() != tc.want {
				t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
			}
		})
	}
}

func TestBigIntPow(t *testing.T) {
	mctx, _ := newTestContext(NewMockEntityStore())
	inst, _ := newTestInstance(t, mctx)

	ptr, err := inst.bigIntPow(context.Background(), encodeBigIntArg(t, inst, 2), 10)
	if err != nil {
		t.Fatalf("pow failed: %v", err)
	}
	if got := decodeBigIntResult(t, inst, ptr); got.Int64() != 1024 {
		t.Errorf("pow: got %s, want 1024", got)
	}
}

func TestBigIntDivisionByZeroTraps(t *testing.T) {
	store := NewMockEntityStore()
	mctx, _ := newTestContext(store)
	inst, _ := newTestInstance(t, mctx)
	ctx := context.Background()

	if _, err := inst.bigIntDividedBy(ctx, encodeBigIntArg(t, inst, 1), encodeBigIntArg(t, inst, 0)); !IsTrap(err) {
		t.Errorf("dividedBy zero: expected trap, got %v", err)
	}
	if _, err := inst.bigIntMod(ctx, encodeBigIntArg(t, inst, 1), encodeBigIntArg(t, inst, 0)); !IsTrap(err) {
		t.Errorf("mod zero: expected trap, got %v", err)
	}

	// The trap leaves no state behind.
	if len(mctx.State.PendingWrites()) != 0 || len(mctx.State.CreatedDataSources()) != 0 {
		t.Error("division trap mutated block state")
	}
}

func TestBigIntDividedByDecimal(t *testing.T) {
	mctx, _ := newTestContext(NewMockEntityStore())
	inst, _ := newTestInstance(t, mctx)

	// 5 / 2.5 == 2
	yPtr := encodeBigDecimalArg(t, inst, NewBigDecimal(big.NewInt(25), -1))
	ptr, err := inst.bigIntDividedByDecimal(context.Background(), encodeBigIntArg(t, inst, 5), yPtr)
	if err != nil {
		t.Fatalf("dividedByDecimal failed: %v", err)
	}
	got := decodeBigDecimalResult(t, inst, ptr)
	if !got.Equals(NewBigDecimal(big.NewInt(2), 0)) {
		t.Errorf("dividedByDecimal: got %s", got.DecimalString())
	}
}

func TestBigDecimalArithmetic(t *testing.T) {
	mctx, _ := newTestContext(NewMockEntityStore())
	inst, _ := newTestInstance(t, mctx)
	ctx := context.Background()

	// 1.5 + 0.25 = 1.75
	x := encodeBigDecimalArg(t, inst, NewBigDecimal(big.NewInt(15), -1))
	y := encodeBigDecimalArg(t, inst, NewBigDecimal(big.NewInt(25), -2))
	ptr, err := inst.bigDecimalPlus(ctx, x, y)
	if err != nil {
		t.Fatalf("plus failed: %v", err)
	}
	if got := decodeBigDecimalResult(t, inst, ptr); got.DecimalString() != "1.75" {
		t.Errorf("plus: got %s", got.DecimalString())
	}

	// 1.5 * 0.25 = 0.375
	ptr, err = inst.bigDecimalTimes(ctx, x, y)
	if err != nil {
		t.Fatalf("times failed: %v", err)
	}
	if got := decodeBigDecimalResult(t, inst, ptr); got.DecimalString() != "0.375" {
		t.Errorf("times: got %s", got.DecimalString())
	}

	// 1.5 / 0.25 = 6
	ptr, err = inst.bigDecimalDividedBy(ctx, x, y)
	if err != nil {
		t.Fatalf("dividedBy failed: %v", err)
	}
	if got := decodeBigDecimalResult(t, inst, ptr); got.DecimalString() != "6" {
		t.Errorf("dividedBy: got %s", got.DecimalString())
	}

	// 1.5 - 0.25 = 1.25
	ptr, err = inst.bigDecimalMinus(ctx, x, y)
	if err != nil {
		t.Fatalf("minus failed: %v", err)
	}
	if got := decodeBigDecimalResult(t, inst, ptr); got.DecimalString() != "1.25" {
		t.Errorf("minus: got %s", got.DecimalString())
	}

	zero := encodeBigDecimalArg(t, inst, NewBigDecimal(big.NewInt(0), 0))
	if _, err := inst.bigDecimalDividedBy(ctx, x, zero); !IsTrap(err) {
		t.Errorf("dividedBy zero: expected trap, got %v", err)
	}
}

func TestBigDecimalEqualsAndStrings(t *testing.T) {
	mctx, _ := newTestContext(NewMockEntityStore())
	inst, _ := newTestInstance(t, mctx)
	ctx := context.Background()

	// 120e0 equals 12e1 after normalization.
	x := encodeBigDecimalArg(t, inst, NewBigDecimal(big.NewInt(120), 0))
	y := encodeBigDecimalArg(t, inst, NewBigDecimal(big.NewInt(12), 1))
	eq, err := inst.bigDecimalEquals(ctx, x, y)
	if err != nil || eq != 1 {
		t.Errorf("equals: got (%d, %v), want (1, nil)", eq, err)
	}

	z := encodeBigDecimalArg(t, inst, NewBigDecimal(big.NewInt(121), 0))
	eq, err = inst.bigDecimalEquals(ctx, x, z)
	if err != nil || eq != 0 {
		t.Errorf("not-equals: got (%d, %v), want (0, nil)", eq, err)
	}

	strPtr, err := inst.bigDecimalToString(ctx, encodeBigDecimalArg(t, inst, NewBigDecimal(big.NewInt(-1234), -2)))
	if err != nil {
		t.Fatalf("toString failed: %v", err)
	}
	if got := mustDecodeString(t, inst, strPtr); got != "-12.34" {
		t.Errorf("toString: got %q", got)
	}

	parsedPtr, err := inst.bigDecimalFromString(ctx, mustEncodeString(t, inst, "3.14e2"))
	if err != nil {
		t.Fatalf("fromString failed: %v", err)
	}
	if got := decodeBigDecimalResult(t, inst, parsedPtr); got.DecimalString() != "314" {
		t.Errorf("fromString: got %s", got.DecimalString())
	}

	if _, err := inst.bigDecimalFromString(ctx, mustEncodeString(t, inst, "not a number")); !IsTrap(err) {
		t.Errorf("fromString garbage: expected trap, got %v", err)
	}
}
