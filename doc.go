// Package wasm2evm compiles WebAssembly modules to EVM bytecode.
//
// Every defined function becomes its own unit: runtime code that reads its
// parameters from calldata as 32-byte words, keeps locals in memory, and
// returns its result as one word. Integer operations follow WebAssembly
// semantics at 32 and 64 bits on the 256-bit machine; traps revert with
// their message.
//
// # Architecture Overview
//
//	wasm2evm/            Compile: binary to units without deploying
//	├── wasm/            MVP binary decoding, encoding and validation
//	├── compiler/        translation, numeric semantics, locals, packaging
//	│   └── internal/ir  structured control tree of a function body
//	├── evm/             symbolic instructions and the emitter
//	├── assembler/       label resolution, bytecode and listings
//	├── engine/          go-ethereum execution and the wazero reference
//	├── runtime/         instantiate modules and invoke exports
//	├── conformance/     test suite script runner and differential checks
//	├── errors/          structured error types
//	└── cmd/wasm2evm/    command line and interactive runner
//
// # Quick Start
//
//	rt, err := runtime.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	inst, err := rt.Instantiate(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := inst.Invoke(ctx, "add", runtime.I32(2), runtime.I32(3))
//	fmt.Println(res.U32()) // 5
//
// # Unsupported Operations
//
// Floats, linear memory, tables and globals that are not immutable
// integer constants are outside the compiled subset. They compile to an
// abort marker, an invalid instruction, so the rest of the function keeps
// working; compiler.Config.Strict rejects them instead.
//
// # Error Handling
//
// Errors carry a phase and a kind:
//
//	if errors.Match(err, errors.PhaseTranslate, errors.KindUnsupported) {
//	    // the module uses an operation outside the compiled subset
//	}
package wasm2evm
