package compiler

import (
	"fmt"
	"math"
	"math/bits"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm2evm/evm"
	"github.com/wippyai/wasm2evm/wasm"
)

const (
	divZero  = "integer divide by zero"
	overflow = "integer overflow"
)

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// ref32 is the reference result of a binary i32 opcode, or the trap it raises.
func ref32(op byte, a, b uint32) (uint64, string) {
	sa, sb := int32(a), int32(b)
	k := int(b & 31)
	switch op {
	case wasm.OpI32Add:
		return uint64(a + b), ""
	case wasm.OpI32Sub:
		return uint64(a - b), ""
	case wasm.OpI32Mul:
		return uint64(a * b), ""
	case wasm.OpI32And:
		return uint64(a & b), ""
	case wasm.OpI32Or:
		return uint64(a | b), ""
	case wasm.OpI32Xor:
		return uint64(a ^ b), ""
	case wasm.OpI32Shl:
		return uint64(a << k), ""
	case wasm.OpI32ShrU:
		return uint64(a >> k), ""
	case wasm.OpI32ShrS:
		return uint64(uint32(sa >> k)), ""
	case wasm.OpI32Rotl:
		return uint64(bits.RotateLeft32(a, k)), ""
	case wasm.OpI32Rotr:
		return uint64(bits.RotateLeft32(a, -k)), ""
	case wasm.OpI32DivU, wasm.OpI32RemU, wasm.OpI32DivS, wasm.OpI32RemS:
		if b == 0 {
			return 0, divZero
		}
		switch op {
		case wasm.OpI32DivU:
			return uint64(a / b), ""
		case wasm.OpI32RemU:
			return uint64(a % b), ""
		case wasm.OpI32DivS:
			if sa == math.MinInt32 && sb == -1 {
				return 0, overflow
			}
			return uint64(uint32(sa / sb)), ""
		default:
			return uint64(uint32(sa % sb)), ""
		}
	case wasm.OpI32Eq:
		return b2u(a == b), ""
	case wasm.OpI32Ne:
		return b2u(a != b), ""
	case wasm.OpI32LtS:
		return b2u(sa < sb), ""
	case wasm.OpI32LtU:
		return b2u(a < b), ""
	case wasm.OpI32GtS:
		return b2u(sa > sb), ""
	case wasm.OpI32GtU:
		return b2u(a > b), ""
	case wasm.OpI32LeS:
		return b2u(sa <= sb), ""
	case wasm.OpI32LeU:
		return b2u(a <= b), ""
	case wasm.OpI32GeS:
		return b2u(sa >= sb), ""
	case wasm.OpI32GeU:
		return b2u(a >= b), ""
	}
	panic(fmt.Sprintf("no reference for %s", wasm.OpcodeName(op)))
}

// ref64 mirrors ref32 for i64 opcodes.
func ref64(op byte, a, b uint64) (uint64, string) {
	sa, sb := int64(a), int64(b)
	k := int(b & 63)
	switch op {
	case wasm.OpI64Add:
		return a + b, ""
	case wasm.OpI64Sub:
		return a - b, ""
	case wasm.OpI64Mul:
		return a * b, ""
	case wasm.OpI64And:
		return a & b, ""
	case wasm.OpI64Or:
		return a | b, ""
	case wasm.OpI64Xor:
		return a ^ b, ""
	case wasm.OpI64Shl:
		return a << k, ""
	case wasm.OpI64ShrU:
		return a >> k, ""
	case wasm.OpI64ShrS:
		return uint64(sa >> k), ""
	case wasm.OpI64Rotl:
		return bits.RotateLeft64(a, k), ""
	case wasm.OpI64Rotr:
		return bits.RotateLeft64(a, -k), ""
	case wasm.OpI64DivU, wasm.OpI64RemU, wasm.OpI64DivS, wasm.OpI64RemS:
		if b == 0 {
			return 0, divZero
		}
		switch op {
		case wasm.OpI64DivU:
			return a / b, ""
		case wasm.OpI64RemU:
			return a % b, ""
		case wasm.OpI64DivS:
			if sa == math.MinInt64 && sb == -1 {
				return 0, overflow
			}
			return uint64(sa / sb), ""
		default:
			return uint64(sa % sb), ""
		}
	case wasm.OpI64Eq:
		return b2u(a == b), ""
	case wasm.OpI64Ne:
		return b2u(a != b), ""
	case wasm.OpI64LtS:
		return b2u(sa < sb), ""
	case wasm.OpI64LtU:
		return b2u(a < b), ""
	case wasm.OpI64GtS:
		return b2u(sa > sb), ""
	case wasm.OpI64GtU:
		return b2u(a > b), ""
	case wasm.OpI64LeS:
		return b2u(sa <= sb), ""
	case wasm.OpI64LeU:
		return b2u(a <= b), ""
	case wasm.OpI64GeS:
		return b2u(sa >= sb), ""
	case wasm.OpI64GeU:
		return b2u(a >= b), ""
	}
	panic(fmt.Sprintf("no reference for %s", wasm.OpcodeName(op)))
}

var (
	samples32 = []uint32{0, 1, 2, 3, 31, 32, 33, 0x12345678, 0x7fffffff, 0x80000000, 0xfffffffe, 0xffffffff}
	samples64 = []uint64{
		0, 1, 2, 63, 64, 65, 0xffffffff, 0x100000000, 0x123456789abcdef0,
		0x7fffffffffffffff, 0x8000000000000000, 0xfffffffffffffffe, 0xffffffffffffffff,
	}
)

func binaryOps(from, to byte) []byte {
	var ops []byte
	for op := from; op <= to; op++ {
		switch op {
		case wasm.OpI32Eqz, wasm.OpI64Eqz, wasm.OpI32Clz, wasm.OpI32Ctz, wasm.OpI32Popcnt,
			wasm.OpI64Clz, wasm.OpI64Ctz, wasm.OpI64Popcnt:
			continue
		}
		ops = append(ops, op)
	}
	return ops
}

func TestNumeric_Binary32(t *testing.T) {
	ops := append(binaryOps(wasm.OpI32Eqz, wasm.OpI32GeU), binaryOps(wasm.OpI32Clz, wasm.OpI32Rotr)...)
	for _, op := range ops {
		t.Run(wasm.OpcodeName(op), func(t *testing.T) {
			unit := compileOne(t, fn{
				params:  []wasm.ValType{i32, i32},
				results: []wasm.ValType{i32},
				body:    []wasm.Instruction{get(0), get(1), in(op)},
			})
			for _, a := range samples32 {
				for _, b := range samples32 {
					want, trap := ref32(op, a, b)
					got := execute(t, unit, uint64(a), uint64(b))
					if trap != "" {
						if !got.reverted || got.reason != trap {
							t.Fatalf("(0x%x, 0x%x) = %+v, want trap %q", a, b, got, trap)
						}
						continue
					}
					if got.err != nil || got.reverted || got.value != want {
						t.Fatalf("(0x%x, 0x%x) = %+v, want 0x%x", a, b, got, want)
					}
				}
			}
		})
	}
}

func TestNumeric_Binary64(t *testing.T) {
	ops := append(binaryOps(wasm.OpI64Eqz, wasm.OpI64GeU), binaryOps(wasm.OpI64Clz, wasm.OpI64Rotr)...)
	for _, op := range ops {
		t.Run(wasm.OpcodeName(op), func(t *testing.T) {
			unit := compileOne(t, fn{
				params:  []wasm.ValType{i64, i64},
				results: resultOf(op),
				body:    []wasm.Instruction{get(0), get(1), in(op)},
			})
			for _, a := range samples64 {
				for _, b := range samples64 {
					want, trap := ref64(op, a, b)
					got := execute(t, unit, a, b)
					if trap != "" {
						if !got.reverted || got.reason != trap {
							t.Fatalf("(0x%x, 0x%x) = %+v, want trap %q", a, b, got, trap)
						}
						continue
					}
					if got.err != nil || got.reverted || got.value != want {
						t.Fatalf("(0x%x, 0x%x) = %+v, want 0x%x", a, b, got, want)
					}
				}
			}
		})
	}
}

// resultOf returns the result type of an i64 opcode: comparisons yield i32.
func resultOf(op byte) []wasm.ValType {
	if op >= wasm.OpI64Eqz && op <= wasm.OpI64GeU {
		return []wasm.ValType{i32}
	}
	return []wasm.ValType{i64}
}

func TestNumeric_Unary(t *testing.T) {
	tests := []struct {
		op    byte
		param wasm.ValType
		ref   func(uint64) uint64
	}{
		{wasm.OpI32Eqz, i32, func(x uint64) uint64 { return b2u(uint32(x) == 0) }},
		{wasm.OpI32Clz, i32, func(x uint64) uint64 { return uint64(bits.LeadingZeros32(uint32(x))) }},
		{wasm.OpI32Ctz, i32, func(x uint64) uint64 { return uint64(bits.TrailingZeros32(uint32(x))) }},
		{wasm.OpI32Popcnt, i32, func(x uint64) uint64 { return uint64(bits.OnesCount32(uint32(x))) }},
		{wasm.OpI32Extend8S, i32, func(x uint64) uint64 { return uint64(uint32(int32(int8(x)))) }},
		{wasm.OpI32Extend16S, i32, func(x uint64) uint64 { return uint64(uint32(int32(int16(x)))) }},
		{wasm.OpI64Eqz, i64, func(x uint64) uint64 { return b2u(x == 0) }},
		{wasm.OpI64Clz, i64, func(x uint64) uint64 { return uint64(bits.LeadingZeros64(x)) }},
		{wasm.OpI64Ctz, i64, func(x uint64) uint64 { return uint64(bits.TrailingZeros64(x)) }},
		{wasm.OpI64Popcnt, i64, func(x uint64) uint64 { return uint64(bits.OnesCount64(x)) }},
		{wasm.OpI64Extend8S, i64, func(x uint64) uint64 { return uint64(int64(int8(x))) }},
		{wasm.OpI64Extend16S, i64, func(x uint64) uint64 { return uint64(int64(int16(x))) }},
		{wasm.OpI64Extend32S, i64, func(x uint64) uint64 { return uint64(int64(int32(x))) }},
		{wasm.OpI32WrapI64, i64, func(x uint64) uint64 { return uint64(uint32(x)) }},
		{wasm.OpI64ExtendI32S, i32, func(x uint64) uint64 { return uint64(int64(int32(uint32(x)))) }},
		{wasm.OpI64ExtendI32U, i32, func(x uint64) uint64 { return uint64(uint32(x)) }},
	}
	for _, tt := range tests {
		t.Run(wasm.OpcodeName(tt.op), func(t *testing.T) {
			result := tt.param
			switch tt.op {
			case wasm.OpI64Eqz, wasm.OpI32WrapI64:
				result = i32
			case wasm.OpI64ExtendI32S, wasm.OpI64ExtendI32U:
				result = i64
			}
			unit := compileOne(t, fn{
				params:  []wasm.ValType{tt.param},
				results: []wasm.ValType{result},
				body:    []wasm.Instruction{get(0), in(tt.op)},
			})
			samples := samples64
			if tt.param == i32 {
				samples = nil
				for _, s := range samples32 {
					samples = append(samples, uint64(s))
				}
				samples = append(samples, 0x80, 0x7f, 0x8000, 0xff00ff)
			}
			for _, x := range samples {
				got := execute(t, unit, x)
				if want := tt.ref(x); got.err != nil || got.reverted || got.value != want {
					t.Fatalf("(0x%x) = %+v, want 0x%x", x, got, want)
				}
			}
		})
	}
}

func TestNumeric_Constants(t *testing.T) {
	tests := []struct {
		name   string
		result wasm.ValType
		instr  wasm.Instruction
		want   uint64
	}{
		{"i32 negative", i32, i32c(-1), 0xffffffff},
		{"i32 min", i32, i32c(math.MinInt32), 0x80000000},
		{"i64 negative", i64, i64c(-2), 0xfffffffffffffffe},
		{"i64 max", i64, i64c(math.MaxInt64), math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := compileOne(t, fn{results: []wasm.ValType{tt.result}, body: []wasm.Instruction{tt.instr}})
			mustValue(t, execute(t, unit), tt.want)
		})
	}
}

func TestNumeric_OversizedArguments(t *testing.T) {
	// Calldata words wider than the parameter type are truncated on entry.
	unit := compileOne(t, fn{
		params:  []wasm.ValType{i32, i32},
		results: []wasm.ValType{i32},
		body:    []wasm.Instruction{get(0), get(1), in(wasm.OpI32Add)},
	})
	mustValue(t, execute(t, unit, 0x1_0000_0002, 0xff_0000_0003), 5)
}

func TestNumeric_DivisionGuardsPrecedeDivide(t *testing.T) {
	e := evm.NewEmitter()
	traps := trapSet{}
	DivS(e, W32, traps)

	var codes []string
	for _, op := range e.Ops() {
		codes = append(codes, op.String())
	}
	div := -1
	lastJump := -1
	for i, c := range codes {
		switch c {
		case "SDIV":
			div = i
		case "JUMPI":
			lastJump = i
		}
	}
	if div < 0 || lastJump < 0 || lastJump > div {
		t.Fatalf("guards must precede SDIV:\n%s", evm.Format(e.Ops()))
	}
	want := []Trap{TrapDivByZero, TrapOverflow}
	if diff := cmp.Diff(want, traps.sorted()); diff != "" {
		t.Errorf("traps mismatch (-want +got):\n%s", diff)
	}
}

func TestNumeric_Select(t *testing.T) {
	unit := compileOne(t, fn{
		params:  []wasm.ValType{i64, i64, i32},
		results: []wasm.ValType{i64},
		body:    []wasm.Instruction{get(0), get(1), get(2), in(wasm.OpSelect)},
	})
	mustValue(t, execute(t, unit, 7, 9, 1), 7)
	mustValue(t, execute(t, unit, 7, 9, 0), 9)
	mustValue(t, execute(t, unit, 7, 9, 0x80000000), 7)
}

func TestWidth(t *testing.T) {
	if W32.Mask() != 0xffffffff || W64.Mask() != math.MaxUint64 {
		t.Error("unexpected masks")
	}
	if W32.SignByte() != 3 || W64.SignByte() != 7 {
		t.Error("unexpected sign bytes")
	}
	if W32.MinSigned() != 0x80000000 || W64.MinSigned() != 0x8000000000000000 {
		t.Error("unexpected minimum values")
	}
	if W32.String() != "i32" || W64.String() != "i64" {
		t.Error("unexpected names")
	}
}
