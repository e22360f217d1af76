// Package engine runs compiled units.
//
// EVMEngine wraps go-ethereum's core/vm/runtime around a single persistent
// state: every Deploy creates a contract from the deployer account, whose
// nonce increases by one, so unit addresses follow the platform's
// "deployer + nonce" derivation and can be predicted with PredictAddress
// before deployment. Call issues a message call and classifies the outcome:
//
//	StatusSuccess    normal return, ReturnData holds the result word
//	StatusReverted   REVERT, RevertReason holds the trap message
//	StatusExhausted  out of gas or call depth; never retried
//	StatusAborted    invalid opcode or jump, including unsupported operations
//	StatusFailed     any other engine error
//
// A unit re-raises a failed callee's return data, which is empty when the
// callee ran out of gas or aborted. The engine watches nested frames through
// a tracing OnExit hook and reports such an empty revert with the callee's
// status instead.
//
// Deployments and calls on one engine are serialized by a mutex.
//
// WazeroEngine executes the original WebAssembly module on wazero's
// interpreter. It validates modules before compilation and serves as the
// reference in differential conformance runs.
//
// # Tracing
//
// Config.Tracing logs every executed instruction through the package logger
// at debug level; Config.OnStep receives the same steps programmatically.
package engine
