// Package wasmtest builds small WebAssembly modules for tests.
package wasmtest

import (
	"github.com/wippyai/wasm2evm/wasm"
)

// Func is one defined function. A non-empty Name exports it.
type Func struct {
	Name    string
	Params  []wasm.ValType
	Results []wasm.ValType
	Locals  []wasm.LocalEntry
	Body    []wasm.Instruction // without the final end
}

// Module builds a module defining funcs in order, so funcs[i] has
// function index i plus the number of imports.
func Module(funcs ...Func) *wasm.Module {
	return WithImports(nil, funcs...)
}

// WithImports builds a module whose function imports precede funcs.
func WithImports(imports []wasm.FuncType, funcs ...Func) *wasm.Module {
	m := &wasm.Module{}
	for i, sig := range imports {
		m.Imports = append(m.Imports, wasm.Import{
			Module: "env",
			Name:   "f" + string(rune('a'+i)),
			Desc:   wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: m.AddType(sig)},
		})
	}
	for i, f := range funcs {
		typeIdx := m.AddType(wasm.FuncType{Params: f.Params, Results: f.Results})
		m.Funcs = append(m.Funcs, typeIdx)
		body := append(append([]wasm.Instruction{}, f.Body...), I(wasm.OpEnd))
		m.Code = append(m.Code, wasm.FuncBody{Locals: f.Locals, Code: wasm.EncodeInstructions(body)})
		if f.Name != "" {
			m.Exports = append(m.Exports, wasm.Export{
				Name: f.Name,
				Kind: wasm.KindFunc,
				Idx:  uint32(len(imports) + i),
			})
		}
	}
	return m
}

// Binary encodes Module(funcs...).
func Binary(funcs ...Func) []byte {
	return Module(funcs...).Encode()
}

// I builds an instruction with an optional immediate.
func I(op byte, imm ...any) wasm.Instruction {
	in := wasm.Instruction{Opcode: op}
	if len(imm) > 0 {
		in.Imm = imm[0]
	}
	return in
}

func I32(v int32) wasm.Instruction { return I(wasm.OpI32Const, wasm.I32Imm{Value: v}) }
func I64(v int64) wasm.Instruction { return I(wasm.OpI64Const, wasm.I64Imm{Value: v}) }

func Get(idx uint32) wasm.Instruction { return I(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: idx}) }
func Set(idx uint32) wasm.Instruction { return I(wasm.OpLocalSet, wasm.LocalImm{LocalIdx: idx}) }
func Tee(idx uint32) wasm.Instruction { return I(wasm.OpLocalTee, wasm.LocalImm{LocalIdx: idx}) }

func Br(op byte, depth uint32) wasm.Instruction { return I(op, wasm.BranchImm{LabelIdx: depth}) }
func Call(idx uint32) wasm.Instruction          { return I(wasm.OpCall, wasm.CallImm{FuncIdx: idx}) }

// Scope opens a block, loop or if with block type bt.
func Scope(op byte, bt int32) wasm.Instruction { return I(op, wasm.BlockImm{Type: bt}) }

func End() wasm.Instruction { return I(wasm.OpEnd) }
