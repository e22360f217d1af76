package compiler

import (
	"fmt"

	"github.com/wippyai/wasm2evm/errors"
	"github.com/wippyai/wasm2evm/evm"
	"github.com/wippyai/wasm2evm/wasm"
)

// ReturnLabel precedes the epilogue of every function.
const ReturnLabel evm.Label = "ret"

// label is one entry of the label stack.
type label struct {
	name   evm.Label
	height int // operand height at scope entry
	arity  int // values a branch to this label carries
	loop   bool
	used   bool
}

// Context is the per-function translation state shared by handlers.
type Context struct {
	Emit    *evm.Emitter
	Module  *wasm.Module
	Type    *wasm.FuncType
	Locals  *Locals
	Calls   CallResolver
	FuncIdx uint32
	Strict  bool

	registry    *Registry
	labels      []*label
	traps       trapSet
	height      int
	nextLabel   int
	unreachable bool
	unsupported []string
}

func newContext(module *wasm.Module, funcIdx uint32, sig *wasm.FuncType, body *wasm.FuncBody) *Context {
	ctx := &Context{
		Emit:    evm.NewEmitter(),
		Module:  module,
		Type:    sig,
		Locals:  NewLocals(sig, body),
		FuncIdx: funcIdx,
		traps:   trapSet{},
	}
	ctx.labels = []*label{{name: ReturnLabel, arity: len(sig.Results)}}
	return ctx
}

// TrapLabel implements Traps for the function being translated.
func (c *Context) TrapLabel(t Trap) evm.Label {
	return c.traps.TrapLabel(t)
}

// Height returns the static operand stack height.
func (c *Context) Height() int { return c.height }

// Push records n values pushed by emitted code.
func (c *Context) Push(n int) { c.height += n }

// Pop records n values consumed by emitted code.
func (c *Context) Pop(n int) error {
	if c.height < n {
		return c.errorf(errors.KindInvalidData, "operand stack underflow: need %d, have %d", n, c.height)
	}
	c.height -= n
	return nil
}

// Depth returns the number of enclosing labels, including the function's.
func (c *Context) Depth() int { return len(c.labels) }

// SetUnreachable marks the rest of the current sequence as dead code.
func (c *Context) SetUnreachable() { c.unreachable = true }

// Unsupported emits the abort marker for an operation that cannot be
// translated. In strict mode it fails instead.
func (c *Context) Unsupported(reason string) error {
	if c.Strict {
		return errors.New(errors.PhaseTranslate, errors.KindUnsupported).
			Path(errors.FuncPath(c.FuncIdx)).
			Detail("%s", reason).
			Build()
	}
	debugf("func[%d]: unsupported %s", c.FuncIdx, reason)
	c.Emit.Unsupported(reason)
	c.unsupported = append(c.unsupported, reason)
	c.unreachable = true
	return nil
}

func (c *Context) newLabel() evm.Label {
	l := evm.Label(fmt.Sprintf("L%d", c.nextLabel))
	c.nextLabel++
	return l
}

func (c *Context) pushLabel(l *label) { c.labels = append(c.labels, l) }

func (c *Context) popLabel() *label {
	l := c.labels[len(c.labels)-1]
	c.labels = c.labels[:len(c.labels)-1]
	return l
}

// resolve returns the label a branch of the given depth targets.
func (c *Context) resolve(instr wasm.Instruction, depth uint32) (*label, error) {
	if int64(depth) >= int64(len(c.labels)) {
		return nil, errors.UnresolvedLabel(
			[]string{errors.FuncPath(c.FuncIdx)}, wasm.OpcodeName(instr.Opcode), depth, len(c.labels))
	}
	return c.labels[len(c.labels)-1-int(depth)], nil
}

func (c *Context) errorf(kind errors.Kind, format string, args ...any) error {
	return errors.New(errors.PhaseTranslate, kind).
		Path(errors.FuncPath(c.FuncIdx)).
		Detail(format, args...).
		Build()
}
