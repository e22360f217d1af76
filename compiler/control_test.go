package compiler

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm2evm/errors"
	"github.com/wippyai/wasm2evm/evm"
	"github.com/wippyai/wasm2evm/wasm"
)

func translateOne(t *testing.T, f fn, cfg Config) *Function {
	t.Helper()
	out, err := Translate(buildModule(f), 0, cfg)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	return out
}

func TestControl_BlockBranchTargetsExit(t *testing.T) {
	out := translateOne(t, fn{
		body: []wasm.Instruction{
			scope(wasm.OpBlock, wasm.BlockTypeVoid),
			br(wasm.OpBr, 0),
			i32c(1),
			in(wasm.OpDrop),
			end(),
		},
	}, Config{Strict: true})

	want := []evm.Op{
		{Code: vm.PUSH2, Imm: evm.LabelImm{Label: "L0"}},
		{Code: vm.JUMP},
		{Code: vm.JUMPDEST, Imm: evm.LabelImm{Label: "L0"}},
	}
	if diff := cmp.Diff(want, out.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestControl_LoopBranchReenters(t *testing.T) {
	out := translateOne(t, fn{
		params: []wasm.ValType{i32},
		body: []wasm.Instruction{
			scope(wasm.OpLoop, wasm.BlockTypeVoid),
			get(0),
			br(wasm.OpBrIf, 0),
			end(),
		},
	}, Config{Strict: true})

	if len(out.Body) == 0 || !out.Body[0].IsMark() {
		t.Fatalf("loop must start with its label:\n%s", evm.Format(out.Body))
	}
	mark := out.Body[0].Imm.(evm.LabelImm).Label
	var refs []evm.Label
	for _, op := range out.Body {
		if op.IsLabelRef() {
			refs = append(refs, op.Imm.(evm.LabelImm).Label)
		}
	}
	if diff := cmp.Diff([]evm.Label{mark}, refs); diff != "" {
		t.Errorf("branch targets mismatch (-want +got):\n%s", diff)
	}
}

func TestControl_LabelsAreDeterministic(t *testing.T) {
	f := fn{
		params:  []wasm.ValType{i32},
		results: []wasm.ValType{i32},
		body: []wasm.Instruction{
			scope(wasm.OpBlock, wasm.BlockTypeI32),
			scope(wasm.OpBlock, wasm.BlockTypeVoid),
			get(0),
			br(wasm.OpBrIf, 0),
			end(),
			i32c(1),
			end(),
		},
	}
	a := translateOne(t, f, Config{Strict: true})
	b := translateOne(t, f, Config{Strict: true})
	if diff := cmp.Diff(a.Body, b.Body); diff != "" {
		t.Errorf("translation is not deterministic:\n%s", diff)
	}
}

func TestControl_UnresolvedLabel(t *testing.T) {
	m := buildModule(fn{body: []wasm.Instruction{br(wasm.OpBr, 3)}})

	_, err := Translate(m, 0, Config{})
	if !errors.Match(err, errors.PhaseTranslate, errors.KindUnresolvedLabel) {
		t.Fatalf("Translate error = %v, want unresolved label", err)
	}

	// Outside strict mode the function still packages, as a unit that aborts.
	unit, err := Compile(m, 0, Config{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(unit.Unsupported) != 1 || !strings.Contains(unit.Unsupported[0], "unresolved_label") {
		t.Errorf("Unsupported = %q", unit.Unsupported)
	}
	if _, err := Compile(m, 0, Config{Strict: true}); err == nil {
		t.Error("strict Compile should fail")
	}
}

func TestControl_Execution(t *testing.T) {
	tests := []struct {
		name string
		f    fn
		runs [][2]uint64 // argument, result
	}{
		{
			name: "sum loop",
			f: fn{
				params:  []wasm.ValType{i32},
				results: []wasm.ValType{i32},
				locals:  []wasm.LocalEntry{{Count: 1, ValType: i32}},
				body: []wasm.Instruction{
					scope(wasm.OpBlock, wasm.BlockTypeVoid),
					scope(wasm.OpLoop, wasm.BlockTypeVoid),
					get(0), in(wasm.OpI32Eqz), br(wasm.OpBrIf, 1),
					get(1), get(0), in(wasm.OpI32Add), set(1),
					get(0), i32c(1), in(wasm.OpI32Sub), set(0),
					br(wasm.OpBr, 0),
					end(),
					end(),
					get(1),
				},
			},
			runs: [][2]uint64{{0, 0}, {1, 1}, {10, 55}, {100, 5050}},
		},
		{
			name: "if else",
			f: fn{
				params:  []wasm.ValType{i32},
				results: []wasm.ValType{i32},
				body: []wasm.Instruction{
					get(0), i32c(10), in(wasm.OpI32LtS),
					scope(wasm.OpIf, wasm.BlockTypeI32),
					i32c(100),
					in(wasm.OpElse),
					i32c(200),
					end(),
				},
			},
			runs: [][2]uint64{{3, 100}, {10, 200}, {0xffffffff, 100}},
		},
		{
			name: "if without else",
			f: fn{
				params:  []wasm.ValType{i32},
				results: []wasm.ValType{i32},
				locals:  []wasm.LocalEntry{{Count: 1, ValType: i32}},
				body: []wasm.Instruction{
					i32c(7), set(1),
					get(0),
					scope(wasm.OpIf, wasm.BlockTypeVoid),
					i32c(9), set(1),
					end(),
					get(1),
				},
			},
			runs: [][2]uint64{{0, 7}, {1, 9}},
		},
		{
			name: "br_table",
			f: fn{
				params:  []wasm.ValType{i32},
				results: []wasm.ValType{i32},
				body: []wasm.Instruction{
					scope(wasm.OpBlock, wasm.BlockTypeVoid),
					scope(wasm.OpBlock, wasm.BlockTypeVoid),
					scope(wasm.OpBlock, wasm.BlockTypeVoid),
					get(0),
					in(wasm.OpBrTable, wasm.BrTableImm{Labels: []uint32{0, 1, 0}, Default: 2}),
					end(),
					i32c(10), in(wasm.OpReturn),
					end(),
					i32c(11), in(wasm.OpReturn),
					end(),
					i32c(12),
				},
			},
			runs: [][2]uint64{{0, 10}, {1, 11}, {2, 10}, {3, 12}, {0xffffffff, 12}},
		},
		{
			name: "branch carries value",
			f: fn{
				params:  []wasm.ValType{i32},
				results: []wasm.ValType{i32},
				body: []wasm.Instruction{
					scope(wasm.OpBlock, wasm.BlockTypeI32),
					i32c(1), i32c(2),
					i32c(42),
					get(0),
					br(wasm.OpBrIf, 0),
					in(wasm.OpDrop), in(wasm.OpDrop), in(wasm.OpDrop),
					i32c(5),
					end(),
				},
			},
			runs: [][2]uint64{{1, 42}, {0, 5}},
		},
		{
			name: "nested return",
			f: fn{
				params:  []wasm.ValType{i64},
				results: []wasm.ValType{i64},
				body: []wasm.Instruction{
					i64c(1),
					scope(wasm.OpBlock, wasm.BlockTypeVoid),
					scope(wasm.OpLoop, wasm.BlockTypeVoid),
					get(0), in(wasm.OpI64Eqz),
					scope(wasm.OpIf, wasm.BlockTypeVoid),
					i64c(99), in(wasm.OpReturn),
					end(),
					end(),
					end(),
					in(wasm.OpDrop),
					get(0),
				},
			},
			runs: [][2]uint64{{0, 99}, {5, 5}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := compileOne(t, tt.f)
			for _, run := range tt.runs {
				mustValue(t, execute(t, unit, run[0]), run[1])
			}
		})
	}
}

func TestControl_Traps(t *testing.T) {
	tests := []struct {
		name   string
		f      fn
		args   []uint64
		reason string
	}{
		{
			name:   "unreachable",
			f:      fn{results: []wasm.ValType{i32}, body: []wasm.Instruction{in(wasm.OpUnreachable)}},
			reason: "unreachable",
		},
		{
			name: "div_u by zero",
			f: fn{
				params:  []wasm.ValType{i32, i32},
				results: []wasm.ValType{i32},
				body:    []wasm.Instruction{get(0), get(1), in(wasm.OpI32DivU)},
			},
			args:   []uint64{5, 0},
			reason: divZero,
		},
		{
			name: "i64 div_s overflow",
			f: fn{
				params:  []wasm.ValType{i64, i64},
				results: []wasm.ValType{i64},
				body:    []wasm.Instruction{get(0), get(1), in(wasm.OpI64DivS)},
			},
			args:   []uint64{0x8000000000000000, 0xffffffffffffffff},
			reason: overflow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustTrap(t, execute(t, compileOne(t, tt.f), tt.args...), tt.reason)
		})
	}
}

func TestControl_DeadCodeIsSkipped(t *testing.T) {
	out := translateOne(t, fn{
		results: []wasm.ValType{i32},
		body: []wasm.Instruction{
			i32c(1),
			in(wasm.OpReturn),
			i32c(2),
			i32c(3),
			in(wasm.OpI32Add),
		},
	}, Config{Strict: true})
	for _, op := range out.Body {
		if op.Code == vm.ADD {
			t.Fatalf("dead code was emitted:\n%s", evm.Format(out.Body))
		}
	}
}

func TestControl_StackUnderflow(t *testing.T) {
	m := buildModule(fn{results: []wasm.ValType{i32}, body: []wasm.Instruction{in(wasm.OpI32Add)}})
	_, err := Translate(m, 0, Config{Strict: true})
	if !errors.Match(err, errors.PhaseTranslate, errors.KindInvalidData) {
		t.Fatalf("error = %v, want invalid data", err)
	}
}
