package compiler

import (
	"sort"

	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/wippyai/wasm2evm/evm"
)

// Trap identifies a shared abort block.
type Trap int

const (
	TrapDivByZero Trap = iota
	TrapOverflow
	TrapUnreachable
	// TrapCall re-raises a failed callee's revert data.
	TrapCall
)

var trapInfo = [...]struct {
	label   evm.Label
	message string
}{
	TrapDivByZero:   {"trap_div_zero", "integer divide by zero"},
	TrapOverflow:    {"trap_overflow", "integer overflow"},
	TrapUnreachable: {"trap_unreachable", "unreachable"},
	TrapCall:        {"trap_call", ""},
}

// Label returns the trap block's label.
func (t Trap) Label() evm.Label { return trapInfo[t].label }

// Message returns the revert reason the trap block produces. TrapCall
// forwards the callee's data and has no message of its own.
func (t Trap) Message() string { return trapInfo[t].message }

// TrapMessages lists the revert reasons of the built-in traps.
func TrapMessages() []string {
	return []string{
		TrapDivByZero.Message(),
		TrapOverflow.Message(),
		TrapUnreachable.Message(),
	}
}

// trapSet records which trap blocks a function references.
type trapSet map[Trap]struct{}

func (s trapSet) TrapLabel(t Trap) evm.Label {
	s[t] = struct{}{}
	return t.Label()
}

// sorted returns the referenced traps in a fixed order.
func (s trapSet) sorted() []Trap {
	used := make([]Trap, 0, len(s))
	for t := range s {
		used = append(used, t)
	}
	sort.Slice(used, func(i, j int) bool { return used[i] < used[j] })
	return used
}

// emitTraps appends one abort block per trap.
func emitTraps(e *evm.Emitter, traps []Trap) {
	for _, t := range traps {
		e.Mark(t.Label())
		if t == TrapCall {
			e.Op(vm.RETURNDATASIZE).Push(0).Push(0).Op(vm.RETURNDATACOPY)
			e.Op(vm.RETURNDATASIZE).Push(0).Op(vm.REVERT)
			continue
		}
		msg := t.Message()
		e.PushBytes([]byte(msg)).Push(0).Op(vm.MSTORE)
		e.Push(uint64(len(msg))).Push(0).Op(vm.REVERT)
	}
}
