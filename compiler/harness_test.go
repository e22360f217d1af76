package compiler

import (
	stderrors "errors"
	"testing"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/core/vm/runtime"
	"github.com/holiman/uint256"

	"github.com/wippyai/wasm2evm/internal/wasmtest"
	"github.com/wippyai/wasm2evm/wasm"
)

var (
	i32 = wasm.ValI32
	i64 = wasm.ValI64

	in    = wasmtest.I
	i32c  = wasmtest.I32
	i64c  = wasmtest.I64
	get   = wasmtest.Get
	set   = wasmtest.Set
	tee   = wasmtest.Tee
	br    = wasmtest.Br
	scope = wasmtest.Scope
	end   = wasmtest.End
)

// fn describes one function of a test module.
type fn struct {
	params  []wasm.ValType
	results []wasm.ValType
	locals  []wasm.LocalEntry
	body    []wasm.Instruction // without the final end
}

func buildModule(funcs ...fn) *wasm.Module {
	defs := make([]wasmtest.Func, len(funcs))
	for i, f := range funcs {
		defs[i] = wasmtest.Func{Params: f.params, Results: f.results, Locals: f.locals, Body: f.body}
	}
	return wasmtest.Module(defs...)
}

func compileOne(t *testing.T, f fn) *Unit {
	t.Helper()
	unit, err := Compile(buildModule(f), 0, Config{Strict: true})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return unit
}

func calldata(args ...uint64) []byte {
	input := make([]byte, 0, 32*len(args))
	for _, a := range args {
		w := uint256.NewInt(a).Bytes32()
		input = append(input, w[:]...)
	}
	return input
}

// outcome is the observable result of running a unit once.
type outcome struct {
	value    uint64
	reverted bool
	reason   string
	err      error
}

// execute installs the runtime code of unit at a fresh address and calls it.
func execute(t *testing.T, unit *Unit, args ...uint64) outcome {
	t.Helper()
	ret, _, err := runtime.Execute(unit.Runtime, calldata(args...), nil)
	if stderrors.Is(err, vm.ErrExecutionReverted) {
		return outcome{reverted: true, reason: string(ret)}
	}
	if err != nil {
		return outcome{err: err}
	}
	if len(ret) != 32 {
		t.Fatalf("return data is %d bytes, want 32", len(ret))
	}
	word := new(uint256.Int).SetBytes(ret)
	if !word.IsUint64() {
		t.Fatalf("result %s exceeds 64 bits", word.Hex())
	}
	return outcome{value: word.Uint64()}
}

func mustValue(t *testing.T, got outcome, want uint64) {
	t.Helper()
	switch {
	case got.err != nil:
		t.Fatalf("execution failed: %v", got.err)
	case got.reverted:
		t.Fatalf("reverted with %q, want %d", got.reason, want)
	case got.value != want:
		t.Fatalf("result = %d (0x%x), want %d (0x%x)", got.value, got.value, want, want)
	}
}

func mustTrap(t *testing.T, got outcome, reason string) {
	t.Helper()
	if !got.reverted {
		t.Fatalf("outcome = %+v, want trap %q", got, reason)
	}
	if got.reason != reason {
		t.Fatalf("revert reason = %q, want %q", got.reason, reason)
	}
}
