package wasm

import (
	"bytes"
	"fmt"
	"math"

	"github.com/wippyai/wasm2evm/wasm/internal/binary"
)

// Instruction is a decoded instruction. Imm holds one of the *Imm types
// below, or nil for instructions without immediates.
type Instruction struct {
	Imm    any
	Opcode byte
}

func (i Instruction) String() string {
	if i.Imm == nil {
		return OpcodeName(i.Opcode)
	}
	return fmt.Sprintf("%s %v", OpcodeName(i.Opcode), i.Imm)
}

// BlockImm holds the block type of block, loop and if.
type BlockImm struct {
	Type int32 // BlockType* constant or a type index
}

// BranchImm holds the relative depth of br and br_if.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the depth table of br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the callee of call.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds the signature and table of call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds the index of local.get, local.set and local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the index of global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// MemoryImm is the memarg of loads and stores.
type MemoryImm struct {
	Offset uint32
	Align  uint32
}

// MemoryIdxImm holds the reserved memory index of memory.size and memory.grow.
type MemoryIdxImm struct {
	MemIdx byte
}

// I32Imm holds an i32.const value.
type I32Imm struct {
	Value int32
}

// I64Imm holds an i64.const value.
type I64Imm struct {
	Value int64
}

// F32Imm holds the raw bits of an f32.const.
type F32Imm struct {
	Bits uint32
}

// F64Imm holds the raw bits of an f64.const.
type F64Imm struct {
	Bits uint64
}

// SelectTypeImm holds the result types of a typed select.
type SelectTypeImm struct {
	Types []ValType
}

// MiscImm holds a 0xFC-prefixed instruction.
type MiscImm struct {
	SubOpcode uint32
	Operands  []uint32
}

// Value returns the float value of an f32.const.
func (f F32Imm) Value() float32 { return math.Float32frombits(f.Bits) }

// Value returns the float value of an f64.const.
func (f F64Imm) Value() float64 { return math.Float64frombits(f.Bits) }

// DecodeInstructions decodes a flat instruction stream. Block structure is
// not checked; ir.Parse recovers nesting.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(bytes.NewReader(code))
	instrs := make([]Instruction, 0, len(code)/2)

	for r.Position() < len(code) {
		start := r.Position()
		op, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		instr := Instruction{Opcode: op}
		instr.Imm, err = decodeImmediate(r, op)
		if err != nil {
			return nil, fmt.Errorf("%s at offset %d: %w", OpcodeName(op), start, err)
		}
		instrs = append(instrs, instr)
	}
	return instrs, nil
}

func decodeImmediate(r *binary.Reader, op byte) (any, error) {
	switch op {
	case OpBlock, OpLoop, OpIf:
		bt, err := r.ReadS32()
		return BlockImm{Type: bt}, err

	case OpBr, OpBrIf:
		idx, err := r.ReadU32()
		return BranchImm{LabelIdx: idx}, err

	case OpBrTable:
		count, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		labels := make([]uint32, count)
		for i := range labels {
			if labels[i], err = r.ReadU32(); err != nil {
				return nil, err
			}
		}
		def, err := r.ReadU32()
		return BrTableImm{Labels: labels, Default: def}, err

	case OpCall:
		idx, err := r.ReadU32()
		return CallImm{FuncIdx: idx}, err

	case OpCallIndirect:
		typeIdx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		tableIdx, err := r.ReadU32()
		return CallIndirectImm{TypeIdx: typeIdx, TableIdx: tableIdx}, err

	case OpSelectType:
		count, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		types := make([]ValType, count)
		for i := range types {
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			types[i] = ValType(b)
		}
		return SelectTypeImm{Types: types}, nil

	case OpLocalGet, OpLocalSet, OpLocalTee:
		idx, err := r.ReadU32()
		return LocalImm{LocalIdx: idx}, err

	case OpGlobalGet, OpGlobalSet:
		idx, err := r.ReadU32()
		return GlobalImm{GlobalIdx: idx}, err

	case OpMemorySize, OpMemoryGrow:
		b, err := r.ReadByte()
		return MemoryIdxImm{MemIdx: b}, err

	case OpI32Const:
		v, err := r.ReadS32()
		return I32Imm{Value: v}, err

	case OpI64Const:
		v, err := r.ReadS64()
		return I64Imm{Value: v}, err

	case OpF32Const:
		v, err := r.ReadU32LE()
		return F32Imm{Bits: v}, err

	case OpF64Const:
		v, err := r.ReadU64LE()
		return F64Imm{Bits: v}, err

	case OpPrefixMisc:
		return decodeMisc(r)
	}

	if op >= OpI32Load && op <= OpI64Store32 {
		align, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		offset, err := r.ReadU32()
		return MemoryImm{Align: align, Offset: offset}, err
	}

	if opcodeNames[op] == "" {
		return nil, fmt.Errorf("unknown opcode 0x%02x", op)
	}
	return nil, nil
}

func decodeMisc(r *binary.Reader) (any, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	imm := MiscImm{SubOpcode: sub}
	var n int
	switch {
	case sub <= 7:
		n = 0
	case sub == MiscMemoryInit, sub == MiscMemoryCopy:
		n = 2
	case sub == MiscDataDrop, sub == MiscMemoryFill:
		n = 1
	default:
		return nil, fmt.Errorf("unsupported 0xfc sub-opcode %d", sub)
	}
	for i := 0; i < n; i++ {
		v, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		imm.Operands = append(imm.Operands, v)
	}
	return imm, nil
}

// EncodeInstructions encodes instrs back to binary form.
func EncodeInstructions(instrs []Instruction) []byte {
	w := binary.NewWriter()
	for i := range instrs {
		encodeInstruction(w, &instrs[i])
	}
	return w.Bytes()
}

func encodeInstruction(w *binary.Writer, instr *Instruction) {
	w.Byte(instr.Opcode)
	switch imm := instr.Imm.(type) {
	case BlockImm:
		w.WriteS64(int64(imm.Type))
	case BranchImm:
		w.WriteU32(imm.LabelIdx)
	case BrTableImm:
		w.WriteU32(uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			w.WriteU32(l)
		}
		w.WriteU32(imm.Default)
	case CallImm:
		w.WriteU32(imm.FuncIdx)
	case CallIndirectImm:
		w.WriteU32(imm.TypeIdx)
		w.WriteU32(imm.TableIdx)
	case SelectTypeImm:
		w.WriteU32(uint32(len(imm.Types)))
		for _, t := range imm.Types {
			w.Byte(byte(t))
		}
	case LocalImm:
		w.WriteU32(imm.LocalIdx)
	case GlobalImm:
		w.WriteU32(imm.GlobalIdx)
	case MemoryImm:
		w.WriteU32(imm.Align)
		w.WriteU32(imm.Offset)
	case MemoryIdxImm:
		w.Byte(imm.MemIdx)
	case I32Imm:
		w.WriteS64(int64(imm.Value))
	case I64Imm:
		w.WriteS64(imm.Value)
	case F32Imm:
		w.WriteU32LE(imm.Bits)
	case F64Imm:
		w.WriteU64LE(imm.Bits)
	case MiscImm:
		w.WriteU32(imm.SubOpcode)
		for _, v := range imm.Operands {
			w.WriteU32(v)
		}
	}
}
