package evm

import (
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
)

// Emitter accumulates ops. All methods return the receiver for chaining.
type Emitter struct {
	ops []Op
}

// NewEmitter returns an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Ops returns the accumulated ops.
func (e *Emitter) Ops() []Op {
	return e.ops
}

// Len returns the number of accumulated ops.
func (e *Emitter) Len() int {
	return len(e.ops)
}

// Append adds ops verbatim.
func (e *Emitter) Append(ops ...Op) *Emitter {
	e.ops = append(e.ops, ops...)
	return e
}

// Op emits plain opcodes.
func (e *Emitter) Op(codes ...vm.OpCode) *Emitter {
	for _, c := range codes {
		e.ops = append(e.ops, Op{Code: c})
	}
	return e
}

// Push emits a constant push.
func (e *Emitter) Push(v uint64) *Emitter {
	return e.PushWord(uint256.NewInt(v))
}

// PushWord emits a constant push of a full word.
func (e *Emitter) PushWord(v *uint256.Int) *Emitter {
	e.ops = append(e.ops, Op{Code: vm.PUSH32, Imm: PushImm{Value: new(uint256.Int).Set(v)}})
	return e
}

// PushBytes pushes b, at most 32 bytes, left-aligned in the word so that
// MSTORE writes it at the start of the slot.
func (e *Emitter) PushBytes(b []byte) *Emitter {
	var word [32]byte
	copy(word[:], b)
	return e.PushWord(new(uint256.Int).SetBytes32(word[:]))
}

// Dup emits DUPn.
func (e *Emitter) Dup(n int) *Emitter {
	return e.Op(vm.DUP1 + vm.OpCode(n-1))
}

// Swap emits SWAPn.
func (e *Emitter) Swap(n int) *Emitter {
	return e.Op(vm.SWAP1 + vm.OpCode(n-1))
}

// Mark defines label at the current position.
func (e *Emitter) Mark(l Label) *Emitter {
	e.ops = append(e.ops, Op{Code: vm.JUMPDEST, Imm: LabelImm{Label: l}})
	return e
}

// PushLabel pushes the offset of label.
func (e *Emitter) PushLabel(l Label) *Emitter {
	e.ops = append(e.ops, Op{Code: vm.PUSH2, Imm: LabelImm{Label: l}})
	return e
}

// Jump emits an unconditional jump to label.
func (e *Emitter) Jump(l Label) *Emitter {
	return e.PushLabel(l).Op(vm.JUMP)
}

// JumpI emits a jump to label taken when the top of stack is non-zero.
// The condition is consumed.
func (e *Emitter) JumpI(l Label) *Emitter {
	return e.PushLabel(l).Op(vm.JUMPI)
}

// Unsupported emits the unsupported-operation marker.
func (e *Emitter) Unsupported(reason string) *Emitter {
	e.ops = append(e.ops, Op{Code: vm.INVALID, Imm: UnsupportedImm{Reason: reason}})
	return e
}
