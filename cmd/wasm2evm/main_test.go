package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/wasm2evm/engine"
	"github.com/wippyai/wasm2evm/internal/wasmtest"
	"github.com/wippyai/wasm2evm/wasm"
)

func writeModule(t *testing.T) string {
	t.Helper()
	i32 := wasm.ValI32
	bin := wasmtest.Binary(
		wasmtest.Func{
			Name:    "add",
			Params:  []wasm.ValType{i32, i32},
			Results: []wasm.ValType{i32},
			Body:    []wasm.Instruction{wasmtest.Get(0), wasmtest.Get(1), wasmtest.I(wasm.OpI32Add)},
		},
		wasmtest.Func{
			Name:    "div",
			Params:  []wasm.ValType{i32, i32},
			Results: []wasm.ValType{i32},
			Body:    []wasm.Instruction{wasmtest.Get(0), wasmtest.Get(1), wasmtest.I(wasm.OpI32DivU)},
		},
	)
	path := filepath.Join(t.TempDir(), "arith.wasm")
	if err := os.WriteFile(path, bin, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func defaults(path string) options {
	return options{wasmFile: path, gas: engine.DefaultGasLimit, validate: true}
}

func TestRun(t *testing.T) {
	path := writeModule(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mod     func(*options)
		want    []string
		wantErr string
	}{
		{
			name: "list",
			mod:  func(o *options) { o.list = true },
			want: []string{"Functions: 2", "add(i32, i32) -> i32", "div(i32, i32) -> i32"},
		},
		{
			name: "call",
			mod:  func(o *options) { o.funcName, o.args = "add", "2,-3" },
			want: []string{"Calling add(2,-3)", "Status: success", "Result: 4294967295 (-1)"},
		},
		{
			name:    "trap",
			mod:     func(o *options) { o.funcName, o.args = "div", "1,0" },
			want:    []string{"Status: reverted", "Trap: integer divide by zero"},
			wantErr: "reverted",
		},
		{
			name: "disasm",
			mod:  func(o *options) { o.funcName, o.disasm = "add", true },
			want: []string{"add (i32, i32) -> i32", "ret:", "CALLDATACOPY", "RETURN"},
		},
		{
			name: "no entry point",
			want: []string{"No function specified"},
		},
		{
			name:    "unknown export",
			mod:     func(o *options) { o.funcName = "mul" },
			wantErr: `export "mul" not found`,
		},
		{
			name:    "bad arguments",
			mod:     func(o *options) { o.funcName, o.args = "add", "1" },
			wantErr: "expected 2 arguments",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaults(path)
			if tt.mod != nil {
				tt.mod(&o)
			}
			var out bytes.Buffer
			err := run(ctx, &out, o)
			if tt.wantErr == "" && err != nil {
				t.Fatalf("run: %v\n%s", err, out.String())
			}
			if tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output lacks %q:\n%s", w, out.String())
				}
			}
		})
	}
}

func TestRun_Script(t *testing.T) {
	path := writeModule(t)
	script := `{"source_filename": "arith.wast", "commands": [
  {"type": "module", "line": 1, "filename": "arith.wasm"},
  {"type": "assert_return", "line": 2,
   "action": {"type": "invoke", "field": "add", "args": [{"type": "i32", "value": "1"}, {"type": "i32", "value": "2"}]},
   "expected": [{"type": "i32", "value": "3"}]}
]}`
	scriptPath := filepath.Join(filepath.Dir(path), "arith.json")
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	o := defaults("")
	o.script = scriptPath
	var out bytes.Buffer
	if err := run(context.Background(), &out, o); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "2 passed, 0 failed, 0 skipped") {
		t.Errorf("unexpected report:\n%s", out.String())
	}
}
