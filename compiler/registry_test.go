package compiler

import (
	"testing"

	"github.com/wippyai/wasm2evm/evm"
	"github.com/wippyai/wasm2evm/wasm"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	called := false
	r.RegisterFunc(wasm.OpNop, func(ctx *Context, instr wasm.Instruction) error {
		called = true
		return nil
	}, "nop")

	if !r.Has(wasm.OpNop) {
		t.Error("Has should return true for registered opcode")
	}
	if r.Has(wasm.OpDrop) {
		t.Error("Has should return false for unregistered opcode")
	}
	if r.Name(wasm.OpNop) != "nop" {
		t.Errorf("Name = %q, want %q", r.Name(wasm.OpNop), "nop")
	}
	if err := r.Get(wasm.OpNop).Handle(&Context{Emit: evm.NewEmitter()}, wasm.Instruction{Opcode: wasm.OpNop}); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("handler should have been called")
	}
}

func TestRegistry_MissingHandlers(t *testing.T) {
	r := NewRegistry()
	r.RegisterBulk([]byte{wasm.OpI32Add, wasm.OpI32Sub}, Func(nil), "arith")

	missing := r.MissingHandlers([]byte{wasm.OpI32Add, wasm.OpI32Sub, wasm.OpI32Mul})
	if len(missing) != 1 || missing[0] != wasm.OpI32Mul {
		t.Errorf("MissingHandlers = %v, want [i32.mul]", missing)
	}
}

func TestRegistry_CloneIsIndependent(t *testing.T) {
	base := DefaultRegistry()
	clone := base.Clone()
	clone.Register(wasm.OpI32Add, Func(nil), "custom")

	if base.Name(wasm.OpI32Add) == "custom" {
		t.Error("Clone shares handler table with the original")
	}
}

func TestDefaultRegistry_CoversIntegerOpcodes(t *testing.T) {
	r := DefaultRegistry()
	var want []byte
	for _, op := range wasm.IntegerOpcodes {
		if !IsStructural(op) {
			want = append(want, op)
		}
	}
	for _, op := range r.MissingHandlers(want) {
		t.Errorf("no handler for %s", wasm.OpcodeName(op))
	}
}

func TestDefaultRegistry_FloatsAreUnsupported(t *testing.T) {
	r := DefaultRegistry()
	for op := 0; op < 256; op++ {
		if !wasm.IsFloatOpcode(byte(op)) {
			continue
		}
		if _, ok := r.Get(byte(op)).(unsupportedHandler); !ok {
			t.Errorf("%s: handler %T, want unsupported marker", wasm.OpcodeName(byte(op)), r.Get(byte(op)))
		}
	}
}

func TestDefaultRegistry_StackEffects(t *testing.T) {
	r := DefaultRegistry()
	tests := []struct {
		op   byte
		want StackEffect
	}{
		{wasm.OpI32Add, StackEffect{Pops: 2, Pushes: 1}},
		{wasm.OpI64DivS, StackEffect{Pops: 2, Pushes: 1}},
		{wasm.OpI32Eqz, StackEffect{Pops: 1, Pushes: 1}},
		{wasm.OpSelect, StackEffect{Pops: 3, Pushes: 1}},
		{wasm.OpDrop, StackEffect{Pops: 1}},
		{wasm.OpNop, StackEffect{}},
	}
	for _, tt := range tests {
		se, ok := r.Get(tt.op).(StackEffecter)
		if !ok {
			t.Errorf("%s has no static stack effect", wasm.OpcodeName(tt.op))
			continue
		}
		if got := se.StackEffect(); got != tt.want {
			t.Errorf("%s effect = %+v, want %+v", wasm.OpcodeName(tt.op), got, tt.want)
		}
	}
}
