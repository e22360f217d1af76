package compiler

import (
	"sort"

	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/wippyai/wasm2evm/compiler/internal/ir"
	"github.com/wippyai/wasm2evm/errors"
	"github.com/wippyai/wasm2evm/evm"
	"github.com/wippyai/wasm2evm/wasm"
)

// scopeCheck rejects block signatures the label model cannot carry.
func (c *Context) scopeCheck(params, results []wasm.ValType) (bool, error) {
	if len(params) > 0 {
		return false, c.Unsupported("block parameters")
	}
	if len(results) > 1 {
		return false, c.Unsupported("multi-value block results")
	}
	return true, nil
}

// checkExit verifies that a scope body falling through leaves its results.
func (c *Context) checkExit(l *label, entry, results int) error {
	if c.height != entry+results {
		return c.errorf(errors.KindInvalidData, "scope %s leaves %d values, want %d", l.name, c.height-entry, results)
	}
	return nil
}

// leave restores the operand height after a scope and decides whether code
// following it is reachable.
func (c *Context) leave(l *label, entry, results int, fallsThrough bool) {
	c.height = entry + results
	c.unreachable = !fallsThrough && !(l.used && !l.loop)
}

func (c *Context) translateBlock(n *ir.BlockNode) error {
	if ok, err := c.scopeCheck(n.ParamTypes, n.ResultTypes); !ok {
		return err
	}
	entry := c.height
	l := &label{name: c.newLabel(), height: entry, loop: n.IsLoop()}
	if l.loop {
		c.Emit.Mark(l.name)
	} else {
		l.arity = len(n.ResultTypes)
	}

	c.pushLabel(l)
	err := c.translateSeq(n.Body)
	c.popLabel()
	if err != nil {
		return err
	}
	fallsThrough := !c.unreachable
	if fallsThrough {
		if err := c.checkExit(l, entry, len(n.ResultTypes)); err != nil {
			return err
		}
	}

	if !l.loop {
		c.Emit.Mark(l.name)
	}
	c.leave(l, entry, len(n.ResultTypes), fallsThrough)
	return nil
}

func (c *Context) translateIf(n *ir.IfNode) error {
	if err := c.Pop(1); err != nil {
		return err
	}
	if ok, err := c.scopeCheck(n.ParamTypes, n.ResultTypes); !ok {
		return err
	}
	entry := c.height
	end := &label{name: c.newLabel(), height: entry, arity: len(n.ResultTypes)}
	elseLabel := end.name
	if n.Else != nil {
		elseLabel = c.newLabel()
	}

	c.Emit.Op(vm.ISZERO).JumpI(elseLabel)
	c.pushLabel(end)
	defer c.popLabel()

	if err := c.translateSeq(n.Then); err != nil {
		return err
	}
	thenFalls := !c.unreachable
	if thenFalls {
		if err := c.checkExit(end, entry, len(n.ResultTypes)); err != nil {
			return err
		}
	}

	elseFalls := true
	if n.Else != nil {
		if thenFalls {
			c.Emit.Jump(end.name)
		}
		c.Emit.Mark(elseLabel)
		c.height = entry
		c.unreachable = false
		if err := c.translateSeq(n.Else); err != nil {
			return err
		}
		elseFalls = !c.unreachable
		if elseFalls {
			if err := c.checkExit(end, entry, len(n.ResultTypes)); err != nil {
				return err
			}
		}
	}

	c.Emit.Mark(end.name)
	c.leave(end, entry, len(n.ResultTypes), thenFalls || elseFalls)
	return nil
}

// dropTo discards the values between l's entry height and its arity so a
// branch leaves exactly the carried values.
func (c *Context) dropTo(l *label) error {
	surplus := c.height - l.height - l.arity
	if surplus < 0 {
		return c.errorf(errors.KindInvalidData, "branch to %s needs %d values, have %d", l.name, l.arity, c.height-l.height)
	}
	if l.arity > 1 {
		return c.Unsupported("multi-value branch")
	}
	for i := 0; i < surplus; i++ {
		if l.arity == 1 {
			c.Emit.Swap(1)
		}
		c.Emit.Op(vm.POP)
	}
	return nil
}

// branch emits an unconditional transfer to l.
func (c *Context) branch(l *label) error {
	if err := c.dropTo(l); err != nil {
		return err
	}
	if c.unreachable {
		return nil
	}
	l.used = true
	c.Emit.Jump(l.name)
	c.unreachable = true
	return nil
}

func handleBr(ctx *Context, instr wasm.Instruction) error {
	l, err := ctx.resolve(instr, instr.Imm.(wasm.BranchImm).LabelIdx)
	if err != nil {
		return err
	}
	return ctx.branch(l)
}

func handleBrIf(ctx *Context, instr wasm.Instruction) error {
	l, err := ctx.resolve(instr, instr.Imm.(wasm.BranchImm).LabelIdx)
	if err != nil {
		return err
	}
	if err := ctx.Pop(1); err != nil {
		return err
	}
	if ctx.height-l.height == l.arity {
		l.used = true
		ctx.Emit.JumpI(l.name)
		return nil
	}

	skip := ctx.newLabel()
	ctx.Emit.Op(vm.ISZERO).JumpI(skip)
	height := ctx.height
	if err := ctx.branch(l); err != nil {
		return err
	}
	ctx.Emit.Mark(skip)
	ctx.height = height
	ctx.unreachable = false
	return nil
}

func handleBrTable(ctx *Context, instr wasm.Instruction) error {
	imm := instr.Imm.(wasm.BrTableImm)
	if err := ctx.Pop(1); err != nil {
		return err
	}
	height := ctx.height

	targets := make(map[uint32]*label)
	cases := make(map[uint32]evm.Label)
	resolve := func(depth uint32) error {
		if _, ok := targets[depth]; ok {
			return nil
		}
		l, err := ctx.resolve(instr, depth)
		if err != nil {
			return err
		}
		targets[depth] = l
		if depth != imm.Default {
			cases[depth] = ctx.newLabel()
		}
		return nil
	}
	for _, depth := range imm.Labels {
		if err := resolve(depth); err != nil {
			return err
		}
	}
	if err := resolve(imm.Default); err != nil {
		return err
	}

	// Index on top: compare against each entry, the default falls out of the chain.
	for i, depth := range imm.Labels {
		if depth == imm.Default {
			continue
		}
		ctx.Emit.Dup(1).Push(uint64(i)).Op(vm.EQ).JumpI(cases[depth])
	}
	ctx.Emit.Op(vm.POP)
	if err := ctx.branch(targets[imm.Default]); err != nil {
		return err
	}

	depths := make([]uint32, 0, len(targets))
	for depth := range targets {
		if depth != imm.Default {
			depths = append(depths, depth)
		}
	}
	sort.Slice(depths, func(i, j int) bool { return depths[i] < depths[j] })
	for _, depth := range depths {
		ctx.Emit.Mark(cases[depth])
		ctx.Emit.Op(vm.POP)
		ctx.height = height
		ctx.unreachable = false
		if err := ctx.branch(targets[depth]); err != nil {
			return err
		}
	}
	ctx.unreachable = true
	return nil
}

func handleReturn(ctx *Context, instr wasm.Instruction) error {
	return ctx.branch(ctx.labels[0])
}

func handleUnreachable(ctx *Context, instr wasm.Instruction) error {
	ctx.Emit.Jump(ctx.TrapLabel(TrapUnreachable))
	ctx.SetUnreachable()
	return nil
}
