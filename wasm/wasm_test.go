package wasm

import (
	"bytes"
	"errors"
	"testing"
)

func addModule() *Module {
	return &Module{
		Types: []FuncType{{Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}}},
		Funcs: []uint32{0},
		Globals: []Global{{
			Type: GlobalType{ValType: ValI32},
			Init: EncodeInstructions([]Instruction{{Opcode: OpI32Const, Imm: I32Imm{Value: -7}}, {Opcode: OpEnd}}),
		}},
		Exports: []Export{{Name: "add", Kind: KindFunc, Idx: 0}},
		Code: []FuncBody{{
			Locals: []LocalEntry{{Count: 2, ValType: ValI64}},
			Code: EncodeInstructions([]Instruction{
				{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 0}},
				{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 1}},
				{Opcode: OpI32Add},
				{Opcode: OpEnd},
			}),
		}},
	}
}

func TestModuleRoundTrip(t *testing.T) {
	m := addModule()
	data := m.Encode()

	parsed, err := ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if len(parsed.Types) != 1 || len(parsed.Types[0].Params) != 2 {
		t.Fatalf("types = %+v", parsed.Types)
	}
	if len(parsed.Exports) != 1 || parsed.Exports[0].Name != "add" {
		t.Fatalf("exports = %+v", parsed.Exports)
	}
	if parsed.Code[0].NumLocals() != 2 {
		t.Errorf("NumLocals = %d, want 2", parsed.Code[0].NumLocals())
	}
	if !bytes.Equal(parsed.Code[0].Code, m.Code[0].Code) {
		t.Errorf("code = % x, want % x", parsed.Code[0].Code, m.Code[0].Code)
	}
	if !bytes.Equal(parsed.Encode(), data) {
		t.Error("re-encoding differs from original")
	}
}

func TestParseModule_Header(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"bad magic", []byte{0x00, 0x61, 0x73, 0x6e, 0x01, 0x00, 0x00, 0x00}, ErrInvalidMagic},
		{"bad version", []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00}, ErrInvalidVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModule(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := ParseModule([]byte{0x00, 0x61}); err == nil {
		t.Error("expected error for truncated header")
	}
}

func TestParseModule_SectionOrder(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	data = append(data, SectionFunction, 0x01, 0x00)
	data = append(data, SectionType, 0x01, 0x00)
	if _, err := ParseModule(data); err == nil {
		t.Fatal("expected out of order error")
	}
}

func TestParseModule_FuncCodeMismatch(t *testing.T) {
	m := addModule()
	m.Code = nil
	if _, err := ParseModule(m.Encode()); err == nil {
		t.Fatal("expected inconsistent lengths error")
	}
}

func TestGlobalConstValue(t *testing.T) {
	m := addModule()
	v, ok := m.Globals[0].ConstValue()
	if !ok {
		t.Fatal("ConstValue not ok")
	}
	if v != 0xfffffff9 {
		t.Errorf("ConstValue = %#x, want 0xfffffff9", v)
	}

	g := Global{Init: EncodeInstructions([]Instruction{{Opcode: OpGlobalGet, Imm: GlobalImm{}}, {Opcode: OpEnd}})}
	if _, ok := g.ConstValue(); ok {
		t.Error("global.get initializer reported constant")
	}
}

func TestModuleLookups(t *testing.T) {
	m := addModule()
	m.Imports = []Import{{Module: "env", Name: "log", Desc: ImportDesc{Kind: KindFunc, TypeIdx: 0}}}
	m.Exports[0].Idx = 1

	if n := m.NumImportedFuncs(); n != 1 {
		t.Errorf("NumImportedFuncs = %d", n)
	}
	if ft := m.GetFuncType(1); ft == nil || len(ft.Results) != 1 {
		t.Errorf("GetFuncType(1) = %+v", ft)
	}
	if ft := m.GetFuncType(2); ft != nil {
		t.Errorf("GetFuncType(2) = %+v, want nil", ft)
	}
	if idx, ok := m.ExportedFunc("add"); !ok || idx != 1 {
		t.Errorf("ExportedFunc = %d, %v", idx, ok)
	}
	if _, ok := m.ExportedFunc("sub"); ok {
		t.Error("ExportedFunc(sub) found")
	}
	if g, ok := m.GlobalAt(0); !ok || g.Type.ValType != ValI32 {
		t.Errorf("GlobalAt(0) = %+v, %v", g, ok)
	}
}

func TestAddType(t *testing.T) {
	m := &Module{}
	a := m.AddType(FuncType{Params: []ValType{ValI32}})
	b := m.AddType(FuncType{Params: []ValType{ValI64}})
	c := m.AddType(FuncType{Params: []ValType{ValI32}})
	if a != 0 || b != 1 || c != 0 {
		t.Errorf("AddType indices = %d %d %d", a, b, c)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *Module)
		wantErr bool
	}{
		{"valid", func(*Module) {}, false},
		{"bad type index", func(m *Module) { m.Funcs[0] = 3 }, true},
		{"bad export", func(m *Module) { m.Exports[0].Idx = 9 }, true},
		{"bad start signature", func(m *Module) { s := uint32(0); m.Start = &s }, true},
		{"bad element", func(m *Module) {
			m.Elements = []Element{{FuncIdxs: []uint32{4}}}
		}, true},
		{"data count mismatch", func(m *Module) { n := uint32(2); m.DataCount = &n }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := addModule()
			tt.mutate(m)
			err := m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFuncType_String(t *testing.T) {
	tests := []struct {
		ft   FuncType
		want string
	}{
		{FuncType{}, "()"},
		{FuncType{Params: []ValType{ValI32, ValI64}, Results: []ValType{ValI32}}, "(i32, i64) -> i32"},
		{FuncType{Results: []ValType{ValI64, ValF32}}, "() -> (i64, f32)"},
	}
	for _, tt := range tests {
		if got := tt.ft.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
