// Package errors provides structured error types for wasm2evm.
//
// Errors are categorized by Phase (which pipeline stage failed) and Kind
// (error category). The Error type carries a location path such as
// "func[3]" or "export add", the offending opcode when one is known, and
// the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseTranslate, errors.KindUnresolvedLabel).
//		Path("func[2]").
//		Opcode("br_if").
//		Detail("branch depth %d exceeds label stack of %d", 4, 2).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.PhaseInvoke, "export", "add")
//	err := errors.Deploy("func[0]", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two *Error values match under errors.Is when Phase and Kind are equal.
package errors
