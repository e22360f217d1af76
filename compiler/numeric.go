package compiler

import (
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/wippyai/wasm2evm/evm"
)

// Width is a WebAssembly integer width.
type Width int

const (
	W32 Width = 32
	W64 Width = 64
)

// Bits returns the width in bits.
func (w Width) Bits() uint64 { return uint64(w) }

// Mask returns 2^w - 1.
func (w Width) Mask() uint64 {
	if w == W64 {
		return ^uint64(0)
	}
	return 0xffffffff
}

// SignByte is the SIGNEXTEND byte index of the sign bit.
func (w Width) SignByte() uint64 { return uint64(w)/8 - 1 }

// MinSigned returns the bit pattern of the most negative value.
func (w Width) MinSigned() uint64 { return 1 << (uint64(w) - 1) }

func (w Width) String() string {
	if w == W64 {
		return "i64"
	}
	return "i32"
}

// Traps hands out the label of a function's shared trap block.
type Traps interface {
	TrapLabel(t Trap) evm.Label
}

// All functions below expect the WebAssembly operands already pushed, the
// second operand on top, and leave one result zero-extended above w.
// Target binary opcodes take the top of stack as their first operand, so
// order-sensitive operations swap first.

// Mask truncates the top of stack to w bits.
func Mask(e *evm.Emitter, w Width) {
	e.Push(w.Mask()).Op(vm.AND)
}

// SignExtend widens the top of stack from w bits to the full word.
func SignExtend(e *evm.Emitter, w Width) {
	e.Push(w.SignByte()).Op(vm.SIGNEXTEND)
}

// signExtendPair sign-extends both operands.
func signExtendPair(e *evm.Emitter, w Width) {
	SignExtend(e, w)
	e.Swap(1)
	SignExtend(e, w)
	e.Swap(1)
}

// Arith emits add, sub, mul, and, or and xor.
func Arith(e *evm.Emitter, w Width, op vm.OpCode) {
	if op == vm.SUB {
		e.Swap(1)
	}
	e.Op(op)
	Mask(e, w)
}

// Eqz emits eqz.
func Eqz(e *evm.Emitter) {
	e.Op(vm.ISZERO)
}

// Eq emits eq, or ne when negate is set.
func Eq(e *evm.Emitter, negate bool) {
	e.Op(vm.EQ)
	if negate {
		e.Op(vm.ISZERO)
	}
}

// Compare emits lt, gt, le and ge. strict is LT or GT; orEqual adds the
// equality case by duplicating both operands.
func Compare(e *evm.Emitter, w Width, strict vm.OpCode, signed, orEqual bool) {
	if signed {
		signExtendPair(e, w)
		switch strict {
		case vm.LT:
			strict = vm.SLT
		case vm.GT:
			strict = vm.SGT
		}
	}
	if !orEqual {
		e.Swap(1).Op(strict)
		return
	}
	// [x y] -> [x y (x==y)] -> [(x==y) y x] -> [(x==y) (x<y)] -> or
	e.Dup(2).Dup(2).Op(vm.EQ).Swap(2).Op(strict, vm.OR)
}

// zeroGuard branches to the divide-by-zero trap when the divisor is zero.
func zeroGuard(e *evm.Emitter, t Traps) {
	e.Dup(1).Op(vm.ISZERO).JumpI(t.TrapLabel(TrapDivByZero))
}

// overflowGuard branches to the overflow trap for MIN / -1.
func overflowGuard(e *evm.Emitter, w Width, t Traps) {
	e.Dup(1).Push(w.Mask()).Op(vm.EQ)
	e.Dup(3).Push(w.MinSigned()).Op(vm.EQ)
	e.Op(vm.AND).JumpI(t.TrapLabel(TrapOverflow))
}

// DivU emits div_u.
func DivU(e *evm.Emitter, t Traps) {
	zeroGuard(e, t)
	e.Swap(1).Op(vm.DIV)
}

// RemU emits rem_u.
func RemU(e *evm.Emitter, t Traps) {
	zeroGuard(e, t)
	e.Swap(1).Op(vm.MOD)
}

// DivS emits div_s.
func DivS(e *evm.Emitter, w Width, t Traps) {
	zeroGuard(e, t)
	overflowGuard(e, w, t)
	signExtendPair(e, w)
	e.Swap(1).Op(vm.SDIV)
	Mask(e, w)
}

// RemS emits rem_s. MIN rem -1 is 0, not a trap.
func RemS(e *evm.Emitter, w Width, t Traps) {
	zeroGuard(e, t)
	signExtendPair(e, w)
	e.Swap(1).Op(vm.SMOD)
	Mask(e, w)
}

// shiftAmount reduces the shift count modulo w.
func shiftAmount(e *evm.Emitter, w Width) {
	e.Push(w.Bits() - 1).Op(vm.AND)
}

// Shl emits shl.
func Shl(e *evm.Emitter, w Width) {
	shiftAmount(e, w)
	e.Op(vm.SHL)
	Mask(e, w)
}

// ShrU emits shr_u.
func ShrU(e *evm.Emitter, w Width) {
	shiftAmount(e, w)
	e.Op(vm.SHR)
	Mask(e, w)
}

// ShrS emits shr_s.
func ShrS(e *evm.Emitter, w Width) {
	shiftAmount(e, w)
	e.Swap(1)
	SignExtend(e, w)
	e.Swap(1).Op(vm.SAR)
	Mask(e, w)
}

// Rotate emits rotl, or rotr when right is set.
func Rotate(e *evm.Emitter, w Width, right bool) {
	first, second := vm.SHL, vm.SHR
	if right {
		first, second = vm.SHR, vm.SHL
	}
	shiftAmount(e, w)
	// [x k] -> [x k (x<<k)] -> [(x<<k) x k] -> [(x<<k) x (w-k)] -> [(x<<k) (x>>(w-k))]
	e.Dup(2).Dup(2).Op(first)
	e.Swap(2).Swap(1)
	e.Push(w.Bits()).Op(vm.SUB, second, vm.OR)
	Mask(e, w)
}

const (
	swar1  = 0x5555555555555555
	swar2  = 0x3333333333333333
	swar4  = 0x0f0f0f0f0f0f0f0f
	swar01 = 0x0101010101010101
)

// Popcnt emits popcnt for an operand of at most 64 bits.
func Popcnt(e *evm.Emitter) {
	e.Dup(1).Push(1).Op(vm.SHR).Push(swar1).Op(vm.AND).Swap(1).Op(vm.SUB)
	e.Dup(1).Push(2).Op(vm.SHR).Push(swar2).Op(vm.AND).Swap(1).Push(swar2).Op(vm.AND, vm.ADD)
	e.Dup(1).Push(4).Op(vm.SHR, vm.ADD).Push(swar4).Op(vm.AND)
	e.Push(swar01).Op(vm.MUL)
	Mask(e, W64)
	e.Push(56).Op(vm.SHR)
}

// Clz emits clz by smearing the highest set bit downward and counting.
func Clz(e *evm.Emitter, w Width) {
	for s := uint64(1); s < w.Bits(); s <<= 1 {
		e.Dup(1).Push(s).Op(vm.SHR, vm.OR)
	}
	Popcnt(e)
	e.Push(w.Bits()).Op(vm.SUB)
}

// Ctz emits ctz as popcnt(~x & (x-1)) over w bits. Zero yields w.
func Ctz(e *evm.Emitter, w Width) {
	e.Dup(1).Push(1).Swap(1).Op(vm.SUB)
	e.Swap(1).Op(vm.NOT, vm.AND)
	Mask(e, w)
	Popcnt(e)
}

// Extend sign-extends the low `from` bits of the top of stack into a
// `to`-bit value.
func Extend(e *evm.Emitter, from uint64, to Width) {
	e.Push(1<<from - 1).Op(vm.AND)
	e.Push(from/8 - 1).Op(vm.SIGNEXTEND)
	Mask(e, to)
}

// Const pushes a constant of width w.
func Const(e *evm.Emitter, w Width, v uint64) {
	e.Push(v & w.Mask())
}

// Select emits select without branching: c ? a : b == b ^ (c' * (a ^ b))
// with c' normalised to 0 or 1.
func Select(e *evm.Emitter) {
	e.Op(vm.ISZERO, vm.ISZERO)
	e.Dup(3).Dup(3).Op(vm.XOR, vm.MUL, vm.XOR)
	e.Swap(1).Op(vm.POP)
}
