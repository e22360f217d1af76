// Package assembler resolves symbolic target operations into bytecode.
//
// Assembly runs in two passes: the first assigns a byte offset to every op
// and records label definitions, the second encodes ops with label
// references replaced by their two-byte offsets.
package assembler

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/wippyai/wasm2evm/errors"
	"github.com/wippyai/wasm2evm/evm"
)

// MaxCodeSize is the largest program whose offsets fit a PUSH2 operand.
const MaxCodeSize = 0xFFFF

// Program is assembled bytecode with its label table.
type Program struct {
	Labels map[evm.Label]int
	Code   []byte
}

// Assemble encodes ops into bytecode.
func Assemble(ops []evm.Op) (*Program, error) {
	labels := make(map[evm.Label]int)

	pc := 0
	for i, op := range ops {
		if op.IsMark() {
			l := op.Imm.(evm.LabelImm).Label
			if _, dup := labels[l]; dup {
				return nil, errors.DuplicateLabel(string(l))
			}
			labels[l] = pc
		}
		n, err := opSize(op)
		if err != nil {
			return nil, errors.New(errors.PhaseAssemble, errors.KindInvalidData).
				Path(fmt.Sprintf("op[%d]", i)).
				Cause(err).
				Build()
		}
		pc += n
	}
	if pc > MaxCodeSize {
		return nil, errors.Overflow(errors.PhaseAssemble, nil, pc, "maximum code size")
	}

	code := make([]byte, 0, pc)
	for i, op := range ops {
		switch imm := op.Imm.(type) {
		case evm.PushImm:
			code = appendPush(code, imm.Value.Bytes())
		case evm.LabelImm:
			if op.Code == vm.JUMPDEST {
				code = append(code, byte(vm.JUMPDEST))
				continue
			}
			target, ok := labels[imm.Label]
			if !ok {
				return nil, errors.New(errors.PhaseAssemble, errors.KindUnresolvedLabel).
					Path(fmt.Sprintf("op[%d]", i)).
					Detail("undefined label %q", imm.Label).
					Value(string(imm.Label)).
					Build()
			}
			code = append(code, byte(vm.PUSH2), byte(target>>8), byte(target))
		default:
			code = append(code, byte(op.Code))
		}
	}

	return &Program{Code: code, Labels: labels}, nil
}

func opSize(op evm.Op) (int, error) {
	switch imm := op.Imm.(type) {
	case evm.PushImm:
		if imm.Value == nil {
			return 0, fmt.Errorf("push without value")
		}
		return 1 + pushWidth(imm.Value.Bytes()), nil
	case evm.LabelImm:
		switch op.Code {
		case vm.JUMPDEST:
			return 1, nil
		case vm.PUSH2:
			return 3, nil
		}
		return 0, fmt.Errorf("label %q attached to %s", imm.Label, op.Code)
	case evm.UnsupportedImm, nil:
		if op.Code.IsPush() {
			return 0, fmt.Errorf("%s without immediate", op.Code)
		}
		return 1, nil
	}
	return 0, fmt.Errorf("unknown immediate %T", op.Imm)
}

// pushWidth is the PUSHn width for a big-endian value with leading zeros
// stripped. Zero is pushed as PUSH1 0x00 so output runs on engines
// without PUSH0.
func pushWidth(b []byte) int {
	if len(b) == 0 {
		return 1
	}
	return len(b)
}

func appendPush(code, b []byte) []byte {
	if len(b) == 0 {
		b = []byte{0}
	}
	code = append(code, byte(vm.PUSH1)+byte(len(b)-1))
	return append(code, b...)
}
