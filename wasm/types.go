package wasm

import "strings"

// Module is a decoded WebAssembly MVP module.
type Module struct {
	Types     []FuncType
	Imports   []Import
	Funcs     []uint32 // type indices of defined functions
	Tables    []TableType
	Memories  []MemoryType
	Globals   []Global
	Exports   []Export
	Start     *uint32
	Elements  []Element
	Code      []FuncBody
	Data      []DataSegment
	DataCount *uint32

	CustomSections []CustomSection
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// String renders the signature as "(i32, i32) -> i32".
func (f FuncType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	switch len(f.Results) {
	case 0:
	case 1:
		b.WriteString(" -> ")
		b.WriteString(f.Results[0].String())
	default:
		b.WriteString(" -> (")
		for i, r := range f.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

// ValType is a WebAssembly value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	default:
		return "unknown"
	}
}

// IsInteger reports whether v is i32 or i64.
func (v ValType) IsInteger() bool {
	return v == ValI32 || v == ValI64
}

// Import describes an imported item.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes the imported entity. Kind selects the populated field.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// TableType describes a table.
type TableType struct {
	Limits   Limits
	ElemType ValType
}

// MemoryType describes a linear memory.
type MemoryType struct {
	Limits Limits
}

// Limits bounds a table or memory size.
type Limits struct {
	Max *uint32
	Min uint32
}

// GlobalType describes a global.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a module-defined global with its constant initializer.
type Global struct {
	Type GlobalType
	Init []byte // init expression including the trailing end opcode
}

// ConstValue returns the value of a global initialized with a single
// i32.const or i64.const. The i32 case returns the zero-extended bits.
func (g Global) ConstValue() (uint64, bool) {
	instrs, err := DecodeInstructions(g.Init)
	if err != nil || len(instrs) != 2 || instrs[1].Opcode != OpEnd {
		return 0, false
	}
	switch imm := instrs[0].Imm.(type) {
	case I32Imm:
		return uint64(uint32(imm.Value)), true
	case I64Imm:
		return uint64(imm.Value), true
	}
	return 0, false
}

// Export describes an exported item.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Element is an active MVP element segment for table 0.
type Element struct {
	Offset   []byte
	FuncIdxs []uint32
}

// FuncBody holds a defined function's locals and code.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // instruction bytes including the final end
}

// NumLocals returns the number of declared locals, excluding parameters.
func (b *FuncBody) NumLocals() uint32 {
	var n uint32
	for _, l := range b.Locals {
		n += l.Count
	}
	return n
}

// LocalEntry declares Count locals of one type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// DataSegment is an active MVP data segment for memory 0, or a passive one.
type DataSegment struct {
	Offset  []byte
	Init    []byte
	Passive bool
}

// CustomSection holds a named custom section's data.
type CustomSection struct {
	Name string
	Data []byte
}

// NumImportedFuncs returns the number of imported functions, which precede
// defined functions in the function index space.
func (m *Module) NumImportedFuncs() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc {
			n++
		}
	}
	return n
}

// NumImportedGlobals returns the number of imported globals.
func (m *Module) NumImportedGlobals() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindGlobal {
			n++
		}
	}
	return n
}

// GetFuncType returns the signature of a function by index in the
// function index space, or nil when the index is out of range.
func (m *Module) GetFuncType(funcIdx uint32) *FuncType {
	imported := uint32(0)
	for _, imp := range m.Imports {
		if imp.Desc.Kind != KindFunc {
			continue
		}
		if imported == funcIdx {
			return m.typeAt(imp.Desc.TypeIdx)
		}
		imported++
	}
	local := funcIdx - imported
	if funcIdx < imported || int(local) >= len(m.Funcs) {
		return nil
	}
	return m.typeAt(m.Funcs[local])
}

func (m *Module) typeAt(idx uint32) *FuncType {
	if int(idx) >= len(m.Types) {
		return nil
	}
	return &m.Types[idx]
}

// GlobalAt returns a global by index in the global index space. Imported
// globals have no initializer and report ok=false.
func (m *Module) GlobalAt(idx uint32) (*Global, bool) {
	imported := uint32(m.NumImportedGlobals())
	if idx < imported {
		return nil, false
	}
	local := idx - imported
	if int(local) >= len(m.Globals) {
		return nil, false
	}
	return &m.Globals[local], true
}

// ExportedFunc returns the function index exported under name.
func (m *Module) ExportedFunc(name string) (uint32, bool) {
	for _, exp := range m.Exports {
		if exp.Kind == KindFunc && exp.Name == name {
			return exp.Idx, true
		}
	}
	return 0, false
}

// AddType appends ft unless an identical type exists and returns its index.
func (m *Module) AddType(ft FuncType) uint32 {
	for i, t := range m.Types {
		if typesEqual(t, ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

func typesEqual(a, b FuncType) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}
