// Package ir recovers the nesting of a flat WebAssembly instruction stream
// so that structured control flow can be translated recursively.
package ir

import (
	"fmt"

	"github.com/wippyai/wasm2evm/wasm"
)

// Node is an element of the instruction tree.
type Node interface {
	// IsControlFlow reports whether the node opens a label scope.
	IsControlFlow() bool
	// Results returns the value types the node leaves on the stack when it
	// opens a label scope, nil otherwise.
	Results() []wasm.ValType
}

// SeqNode is an ordered instruction sequence.
type SeqNode struct {
	Children []Node
}

func (n *SeqNode) IsControlFlow() bool     { return false }
func (n *SeqNode) Results() []wasm.ValType { return nil }

// BlockNode is a block or loop.
type BlockNode struct {
	Body        *SeqNode
	ParamTypes  []wasm.ValType
	ResultTypes []wasm.ValType
	Opcode      byte // wasm.OpBlock or wasm.OpLoop
}

func (n *BlockNode) IsControlFlow() bool     { return true }
func (n *BlockNode) Results() []wasm.ValType { return n.ResultTypes }

// IsLoop reports whether branches to this node re-enter it.
func (n *BlockNode) IsLoop() bool { return n.Opcode == wasm.OpLoop }

// IfNode is an if with an optional else arm. Else is nil when absent.
type IfNode struct {
	Then        *SeqNode
	Else        *SeqNode
	ParamTypes  []wasm.ValType
	ResultTypes []wasm.ValType
}

func (n *IfNode) IsControlFlow() bool     { return true }
func (n *IfNode) Results() []wasm.ValType { return n.ResultTypes }

// InstrNode is a plain instruction.
type InstrNode struct {
	Instr wasm.Instruction
}

func (n *InstrNode) IsControlFlow() bool     { return false }
func (n *InstrNode) Results() []wasm.ValType { return nil }

// Parse builds the tree for a function body. instrs must include the
// function's final end. module resolves type-indexed block types and may
// be nil.
func Parse(instrs []wasm.Instruction, module *wasm.Module) (*SeqNode, error) {
	p := &parser{instrs: instrs, module: module}
	body, term, err := p.parseSeq()
	if err != nil {
		return nil, err
	}
	if term != wasm.OpEnd {
		return nil, fmt.Errorf("function body is missing its final end")
	}
	if p.pos != len(instrs) {
		return nil, fmt.Errorf("%d instructions after final end", len(instrs)-p.pos)
	}
	return body, nil
}

type parser struct {
	module *wasm.Module
	instrs []wasm.Instruction
	pos    int
}

// parseSeq consumes instructions up to and including the next end or else
// at this nesting level and reports which one terminated the sequence, or
// 0 if the stream ran out.
func (p *parser) parseSeq() (*SeqNode, byte, error) {
	seq := &SeqNode{}
	for p.pos < len(p.instrs) {
		instr := p.instrs[p.pos]
		p.pos++

		switch instr.Opcode {
		case wasm.OpEnd, wasm.OpElse:
			return seq, instr.Opcode, nil

		case wasm.OpBlock, wasm.OpLoop:
			node, err := p.parseBlock(instr)
			if err != nil {
				return nil, 0, err
			}
			seq.Children = append(seq.Children, node)

		case wasm.OpIf:
			node, err := p.parseIf(instr)
			if err != nil {
				return nil, 0, err
			}
			seq.Children = append(seq.Children, node)

		default:
			seq.Children = append(seq.Children, &InstrNode{Instr: instr})
		}
	}
	return seq, 0, nil
}

func (p *parser) parseBlock(instr wasm.Instruction) (*BlockNode, error) {
	imm, ok := instr.Imm.(wasm.BlockImm)
	if !ok {
		return nil, fmt.Errorf("%s without block type", wasm.OpcodeName(instr.Opcode))
	}
	params, results, err := blockSignature(imm.Type, p.module)
	if err != nil {
		return nil, err
	}
	body, term, err := p.parseSeq()
	if err != nil {
		return nil, err
	}
	if term != wasm.OpEnd {
		return nil, fmt.Errorf("%s at instruction %d is not closed by end", wasm.OpcodeName(instr.Opcode), p.pos)
	}
	return &BlockNode{
		Opcode:      instr.Opcode,
		Body:        body,
		ParamTypes:  params,
		ResultTypes: results,
	}, nil
}

func (p *parser) parseIf(instr wasm.Instruction) (*IfNode, error) {
	imm, ok := instr.Imm.(wasm.BlockImm)
	if !ok {
		return nil, fmt.Errorf("if without block type")
	}
	params, results, err := blockSignature(imm.Type, p.module)
	if err != nil {
		return nil, err
	}
	then, term, err := p.parseSeq()
	if err != nil {
		return nil, err
	}
	node := &IfNode{Then: then, ParamTypes: params, ResultTypes: results}
	if term == wasm.OpElse {
		node.Else, term, err = p.parseSeq()
		if err != nil {
			return nil, err
		}
	}
	if term != wasm.OpEnd {
		return nil, fmt.Errorf("if at instruction %d is not closed by end", p.pos)
	}
	return node, nil
}

// blockSignature resolves a block type immediate.
func blockSignature(blockType int32, module *wasm.Module) (params, results []wasm.ValType, err error) {
	switch blockType {
	case wasm.BlockTypeVoid:
		return nil, nil, nil
	case wasm.BlockTypeI32:
		return nil, []wasm.ValType{wasm.ValI32}, nil
	case wasm.BlockTypeI64:
		return nil, []wasm.ValType{wasm.ValI64}, nil
	case wasm.BlockTypeF32:
		return nil, []wasm.ValType{wasm.ValF32}, nil
	case wasm.BlockTypeF64:
		return nil, []wasm.ValType{wasm.ValF64}, nil
	}
	if blockType >= 0 && module != nil && int(blockType) < len(module.Types) {
		ft := module.Types[blockType]
		return ft.Params, ft.Results, nil
	}
	return nil, nil, fmt.Errorf("unknown block type %d", blockType)
}

// Walk calls fn for every node in pre-order. Returning false skips the
// node's children.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	switch n := n.(type) {
	case *SeqNode:
		for _, c := range n.Children {
			Walk(c, fn)
		}
	case *BlockNode:
		Walk(n.Body, fn)
	case *IfNode:
		Walk(n.Then, fn)
		if n.Else != nil {
			Walk(n.Else, fn)
		}
	}
}
