// Package runtime instantiates WebAssembly modules as sets of EVM units
// and invokes their exports.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	inst, err := rt.Instantiate(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := inst.Invoke(ctx, "add", runtime.I32(2), runtime.I32(3))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.U32()) // 5
//
// # Units
//
// Every defined function becomes its own unit, deployed in declaration
// order. Unit addresses are predicted from the engine's nonce before
// compilation so a call can name a callee that is not deployed yet.
// Imported functions have no unit; calling one aborts.
//
// # Results
//
// Invoke returns the engine result unchanged. A trap reverts with its
// message:
//
//	res, _ := inst.Invoke(ctx, "div", runtime.I32(1), runtime.I32(0))
//	res.Status       // engine.StatusReverted
//	res.RevertReason // "integer divide by zero"
//
// An operation the compiler does not support compiles to an abort marker
// and reports engine.StatusAborted when reached. WithStrict turns such
// operations into instantiation errors instead.
//
// # Options
//
//	WithEngine(e)        - deploy onto an existing engine
//	WithStrict(true)     - reject unsupported operations at compile time
//	WithValidation(true) - validate binaries with the wazero reference first
//	WithTracing(true)    - log every executed instruction
//	WithGasLimit(n)      - gas per deployment and call
package runtime
