// Package evm models the target operations produced by the compiler: plain
// opcodes plus three symbolic forms (constant push, label marker or
// reference, and the unsupported-operation marker) that the assembler
// resolves into bytecode.
package evm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
)

// Label names a jump destination within one unit.
type Label string

// Op is one target operation. Imm is nil for plain opcodes, otherwise one
// of PushImm, LabelImm or UnsupportedImm.
type Op struct {
	Imm  any
	Code vm.OpCode
}

// PushImm pushes a constant. The assembler selects the narrowest PUSHn.
type PushImm struct {
	Value *uint256.Int
}

// LabelImm marks a label when Code is JUMPDEST and references it when Code
// is PUSH2.
type LabelImm struct {
	Label Label
}

// UnsupportedImm annotates an INVALID emitted in place of an operation the
// compiler cannot translate. Executing it aborts the call.
type UnsupportedImm struct {
	Reason string
}

// IsPush reports whether o pushes a constant.
func (o Op) IsPush() bool {
	_, ok := o.Imm.(PushImm)
	return ok
}

// IsMark reports whether o defines a label.
func (o Op) IsMark() bool {
	_, ok := o.Imm.(LabelImm)
	return ok && o.Code == vm.JUMPDEST
}

// IsLabelRef reports whether o pushes a label's offset.
func (o Op) IsLabelRef() bool {
	_, ok := o.Imm.(LabelImm)
	return ok && o.Code == vm.PUSH2
}

// IsUnsupported reports whether o is the unsupported-operation marker.
func (o Op) IsUnsupported() bool {
	_, ok := o.Imm.(UnsupportedImm)
	return ok
}

func (o Op) String() string {
	switch imm := o.Imm.(type) {
	case PushImm:
		return "PUSH " + imm.Value.Hex()
	case LabelImm:
		if o.Code == vm.JUMPDEST {
			return "JUMPDEST @" + string(imm.Label)
		}
		return "PUSH2 @" + string(imm.Label)
	case UnsupportedImm:
		return "INVALID ; unsupported: " + imm.Reason
	}
	return o.Code.String()
}

// Format renders ops one per line with label markers outdented.
func Format(ops []Op) string {
	var b strings.Builder
	for _, op := range ops {
		if op.IsMark() {
			fmt.Fprintf(&b, "%s:\n", op.Imm.(LabelImm).Label)
			continue
		}
		b.WriteString("    ")
		b.WriteString(op.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// UnsupportedReasons lists the reasons of all unsupported markers in ops.
func UnsupportedReasons(ops []Op) []string {
	var reasons []string
	for _, op := range ops {
		if imm, ok := op.Imm.(UnsupportedImm); ok {
			reasons = append(reasons, imm.Reason)
		}
	}
	return reasons
}
