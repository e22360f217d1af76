// Package wasm decodes and encodes WebAssembly 1.0 (MVP) binary modules.
//
// The model covers the sections a translator needs: types, imports,
// functions, tables, memories, globals, exports, start, active element and
// data segments, and code. Function bodies are kept as raw bytes and
// decoded on demand with DecodeInstructions:
//
//	m, err := wasm.ParseModule(data)
//	if err != nil {
//	    return err
//	}
//	instrs, err := wasm.DecodeInstructions(m.Code[0].Code)
//
// Modules can also be built in Go and serialized, which is how tests
// construct inputs:
//
//	m := &wasm.Module{
//	    Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}},
//	    Funcs: []uint32{0},
//	    Exports: []wasm.Export{{Name: "add", Kind: wasm.KindFunc, Idx: 0}},
//	    Code: []wasm.FuncBody{{Code: wasm.EncodeInstructions([]wasm.Instruction{
//	        {Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
//	        {Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
//	        {Opcode: wasm.OpI32Add},
//	        {Opcode: wasm.OpEnd},
//	    })}},
//	}
//	data := m.Encode()
//
// Floating point, SIMD, reference-typed and GC instructions beyond the MVP
// are decoded where the MVP defines them and rejected otherwise.
package wasm
