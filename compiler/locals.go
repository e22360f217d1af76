package compiler

import (
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/wippyai/wasm2evm/evm"
	"github.com/wippyai/wasm2evm/wasm"
)

// WordSize is the size in bytes of one target machine word.
const WordSize = 32

// Locals maps local indices to fixed scratch memory slots. Parameters take
// the first slots, declared locals follow. Scratch memory is fresh on every
// call so declared locals start at zero without initialisation.
type Locals struct {
	types     []wasm.ValType
	numParams int
}

// NewLocals lays out the locals of a function with signature sig and body.
func NewLocals(sig *wasm.FuncType, body *wasm.FuncBody) *Locals {
	l := &Locals{numParams: len(sig.Params)}
	l.types = append(l.types, sig.Params...)
	if body != nil {
		for _, entry := range body.Locals {
			for i := uint32(0); i < entry.Count; i++ {
				l.types = append(l.types, entry.ValType)
			}
		}
	}
	return l
}

// Len returns the number of parameters plus declared locals.
func (l *Locals) Len() int { return len(l.types) }

// NumParams returns the number of parameter slots.
func (l *Locals) NumParams() int { return l.numParams }

// TypeOf returns the type of a local.
func (l *Locals) TypeOf(idx uint32) (wasm.ValType, bool) {
	if int(idx) >= len(l.types) {
		return 0, false
	}
	return l.types[idx], true
}

// Offset returns the scratch memory offset of a local.
func (l *Locals) Offset(idx uint32) (uint64, bool) {
	if int(idx) >= len(l.types) {
		return 0, false
	}
	return uint64(idx) * WordSize, true
}

// FrameSize returns the scratch bytes occupied by all locals. Memory above
// it is free for outgoing call arguments.
func (l *Locals) FrameSize() uint64 {
	return uint64(len(l.types)) * WordSize
}

// Get pushes the value of local idx.
func (l *Locals) Get(e *evm.Emitter, idx uint32) bool {
	off, ok := l.Offset(idx)
	if ok {
		e.Push(off).Op(vm.MLOAD)
	}
	return ok
}

// Set pops the top of stack into local idx.
func (l *Locals) Set(e *evm.Emitter, idx uint32) bool {
	off, ok := l.Offset(idx)
	if ok {
		e.Push(off).Op(vm.MSTORE)
	}
	return ok
}

// Tee stores the top of stack into local idx and keeps it.
func (l *Locals) Tee(e *evm.Emitter, idx uint32) bool {
	off, ok := l.Offset(idx)
	if ok {
		e.Dup(1).Push(off).Op(vm.MSTORE)
	}
	return ok
}
