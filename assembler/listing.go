package assembler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/core/asm"
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/wippyai/wasm2evm/evm"
)

// Instruction is one disassembled instruction.
type Instruction struct {
	Arg []byte
	PC  uint64
	Op  vm.OpCode
}

func (i Instruction) String() string {
	if len(i.Arg) > 0 {
		return fmt.Sprintf("%05x: %s 0x%x", i.PC, i.Op, i.Arg)
	}
	return fmt.Sprintf("%05x: %s", i.PC, i.Op)
}

// Disassemble decodes bytecode. Trailing truncated push data is reported
// as an error after the instructions decoded so far.
func Disassemble(code []byte) ([]Instruction, error) {
	var out []Instruction
	it := asm.NewInstructionIterator(code)
	for it.Next() {
		out = append(out, Instruction{PC: it.PC(), Op: it.Op(), Arg: it.Arg()})
	}
	return out, it.Error()
}

// Listing renders the program with label names at their offsets.
func (p *Program) Listing() (string, error) {
	instrs, err := Disassemble(p.Code)
	if err != nil {
		return "", err
	}
	byPC := make(map[uint64][]string)
	for l, pc := range p.Labels {
		byPC[uint64(pc)] = append(byPC[uint64(pc)], string(l))
	}

	var b strings.Builder
	for _, in := range instrs {
		names := byPC[in.PC]
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(&b, "%s:\n", n)
		}
		b.WriteString("  ")
		b.WriteString(in.String())
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// LabelAt returns the label defined at pc, if any.
func (p *Program) LabelAt(pc int) (evm.Label, bool) {
	for l, off := range p.Labels {
		if off == pc {
			return l, true
		}
	}
	return "", false
}
