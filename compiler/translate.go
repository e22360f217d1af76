package compiler

import (
	"github.com/wippyai/wasm2evm/compiler/internal/ir"
	"github.com/wippyai/wasm2evm/errors"
	"github.com/wippyai/wasm2evm/evm"
	"github.com/wippyai/wasm2evm/wasm"
)

// Config controls translation.
type Config struct {
	// Registry supplies instruction handlers. Nil uses DefaultRegistry.
	Registry *Registry

	// Calls resolves the targets of call. Nil makes every call an
	// unsupported operation.
	Calls CallResolver

	// Strict fails on the first unsupported operation or malformed body
	// instead of producing a unit that aborts when it reaches that point.
	Strict bool
}

// Function is a translated function body awaiting packaging.
type Function struct {
	Type        *wasm.FuncType
	Locals      *Locals
	Body        []evm.Op
	Traps       []Trap
	Unsupported []string
	Index       uint32
}

// Translate lowers the defined function at funcIdx, an index in the
// module's function index space, into a flat op sequence.
func Translate(m *wasm.Module, funcIdx uint32, cfg Config) (*Function, error) {
	imported := uint32(m.NumImportedFuncs())
	if funcIdx < imported || int(funcIdx-imported) >= len(m.Code) {
		return nil, errors.NotFound(errors.PhaseTranslate, "defined function", errors.FuncPath(funcIdx))
	}
	sig := m.GetFuncType(funcIdx)
	if sig == nil {
		return nil, errors.InvalidData(errors.PhaseTranslate, []string{errors.FuncPath(funcIdx)}, "function has no type")
	}
	body := &m.Code[funcIdx-imported]

	reg := cfg.Registry
	if reg == nil {
		reg = defaultRegistry
	}
	ctx := newContext(m, funcIdx, sig, body)
	ctx.registry = reg
	ctx.Calls = cfg.Calls
	ctx.Strict = cfg.Strict

	if len(sig.Results) > 1 {
		if err := ctx.Unsupported("multi-value results"); err != nil {
			return nil, err
		}
		return ctx.function(), nil
	}

	instrs, err := wasm.DecodeInstructions(body.Code)
	if err != nil {
		return nil, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			Path(errors.FuncPath(funcIdx)).
			Cause(err).
			Detail("decode body").
			Build()
	}
	tree, err := ir.Parse(instrs, m)
	if err != nil {
		return nil, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			Path(errors.FuncPath(funcIdx)).
			Cause(err).
			Detail("parse body").
			Build()
	}

	if err := ctx.translateSeq(tree); err != nil {
		return nil, err
	}
	if !ctx.unreachable {
		if err := ctx.checkExit(ctx.labels[0], 0, len(sig.Results)); err != nil {
			return nil, err
		}
	}
	if len(ctx.labels) != 1 {
		return nil, ctx.errorf(errors.KindInvalidData, "label stack holds %d entries after body", len(ctx.labels))
	}

	debugf("func[%d]: %d ops, %d labels", funcIdx, ctx.Emit.Len(), ctx.nextLabel)
	return ctx.function(), nil
}

func (c *Context) function() *Function {
	return &Function{
		Index:       c.FuncIdx,
		Type:        c.Type,
		Locals:      c.Locals,
		Body:        c.Emit.Ops(),
		Traps:       c.traps.sorted(),
		Unsupported: c.unsupported,
	}
}

func (c *Context) translateInstr(instr wasm.Instruction) error {
	h := c.registry.Get(instr.Opcode)
	if h == nil {
		return errors.New(errors.PhaseTranslate, errors.KindUnsupported).
			Path(errors.FuncPath(c.FuncIdx)).
			Opcode(wasm.OpcodeName(instr.Opcode)).
			Detail("no handler registered").
			Build()
	}

	effect, static := h.(StackEffecter)
	if static && c.height < effect.StackEffect().Pops {
		return c.errorf(errors.KindInvalidData, "%s: operand stack underflow", wasm.OpcodeName(instr.Opcode))
	}
	if err := h.Handle(c, instr); err != nil {
		return err
	}
	if static {
		se := effect.StackEffect()
		c.height += se.Pushes - se.Pops
	}
	return nil
}

// translateSeq translates the children of seq until one makes the rest of
// the sequence unreachable.
func (c *Context) translateSeq(seq *ir.SeqNode) error {
	for _, child := range seq.Children {
		if c.unreachable {
			break
		}
		var err error
		switch n := child.(type) {
		case *ir.BlockNode:
			err = c.translateBlock(n)
		case *ir.IfNode:
			err = c.translateIf(n)
		case *ir.InstrNode:
			err = c.translateInstr(n.Instr)
		case *ir.SeqNode:
			err = c.translateSeq(n)
		default:
			err = c.errorf(errors.KindInvalidData, "unexpected node %T", n)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
