package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which pipeline stage produced the error
type Phase string

const (
	PhaseDecode    Phase = "decode"    // WASM binary to module tree
	PhaseValidate  Phase = "validate"  // reference validation
	PhaseTranslate Phase = "translate" // WASM instructions to target ops
	PhaseAssemble  Phase = "assemble"  // target ops to bytecode
	PhasePackage   Phase = "package"   // prologue, epilogue, deploy stub
	PhaseDeploy    Phase = "deploy"    // contract creation
	PhaseInvoke    Phase = "invoke"    // contract call
	PhaseLoad      Phase = "load"      // file and script loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidData     Kind = "invalid_data"
	KindUnsupported     Kind = "unsupported"
	KindUnresolvedLabel Kind = "unresolved_label"
	KindDuplicateLabel  Kind = "duplicate_label"
	KindOverflow        Kind = "overflow"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindNotFound        Kind = "not_found"
	KindInvalidInput    Kind = "invalid_input"
	KindInstantiation   Kind = "instantiation"
	KindEngine          Kind = "engine"
)

// Error is the structured error type used throughout wasm2evm
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Opcode string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Opcode != "" {
		b.WriteString(" (")
		b.WriteString(e.Opcode)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Match reports whether err or any error it wraps is an *Error with the
// given phase and kind.
func Match(err error, phase Phase, kind Kind) bool {
	return stderrors.Is(err, &Error{Phase: phase, Kind: kind})
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrors.As(err, &e)
	return e, ok
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the location path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Opcode sets the offending instruction name
func (b *Builder) Opcode(name string) *Builder {
	b.err.Opcode = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// FuncPath formats the location of a function by index.
func FuncPath(idx uint32) string {
	return fmt.Sprintf("func[%d]", idx)
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// UnresolvedLabel creates an error for a branch whose depth is outside the label stack
func UnresolvedLabel(path []string, opcode string, depth uint32, stack int) *Error {
	return &Error{
		Phase:  PhaseTranslate,
		Kind:   KindUnresolvedLabel,
		Path:   path,
		Opcode: opcode,
		Detail: fmt.Sprintf("branch depth %d exceeds label stack of %d", depth, stack),
		Value:  depth,
	}
}

// DuplicateLabel creates an assembler error for a label defined twice
func DuplicateLabel(label string) *Error {
	return &Error{
		Phase:  PhaseAssemble,
		Kind:   KindDuplicateLabel,
		Detail: fmt.Sprintf("label %q defined more than once", label),
		Value:  label,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, limit string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v exceeds %s", value, limit),
		Value:  value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Value:  name,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Instantiation creates an instantiation error for a function
func Instantiation(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseDeploy,
		Kind:   KindInstantiation,
		Path:   []string{path},
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Deploy creates a deployment error wrapping an engine failure
func Deploy(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseDeploy,
		Kind:   KindEngine,
		Path:   []string{path},
		Detail: "create contract",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
