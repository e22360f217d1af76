package compiler

import (
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/wippyai/wasm2evm/errors"
	"github.com/wippyai/wasm2evm/evm"
	"github.com/wippyai/wasm2evm/wasm"
)

// emitHandler emits a fixed op sequence with a static stack effect.
type emitHandler struct {
	emit   func(e *evm.Emitter, t Traps)
	pops   int
	pushes int
}

func (h emitHandler) Handle(ctx *Context, instr wasm.Instruction) error {
	h.emit(ctx.Emit, ctx)
	return nil
}

// StackEffect implements StackEffecter.
func (h emitHandler) StackEffect() StackEffect {
	return StackEffect{Pops: h.pops, Pushes: h.pushes}
}

func unary(emit func(e *evm.Emitter)) emitHandler {
	return emitHandler{emit: func(e *evm.Emitter, _ Traps) { emit(e) }, pops: 1, pushes: 1}
}

func binary(emit func(e *evm.Emitter)) emitHandler {
	return emitHandler{emit: func(e *evm.Emitter, _ Traps) { emit(e) }, pops: 2, pushes: 1}
}

func trapping(emit func(e *evm.Emitter, t Traps)) emitHandler {
	return emitHandler{emit: emit, pops: 2, pushes: 1}
}

// unsupportedHandler emits the abort marker. It ends the current sequence
// so it carries no stack effect.
type unsupportedHandler struct {
	what string
}

func (h unsupportedHandler) Handle(ctx *Context, instr wasm.Instruction) error {
	reason := h.what
	if reason == "" {
		reason = wasm.OpcodeName(instr.Opcode)
	}
	return ctx.Unsupported(reason)
}

var defaultRegistry = newDefaultRegistry()

// DefaultRegistry returns a copy of the registry covering every MVP
// integer opcode. Float and 0xFC-prefixed opcodes map to the abort marker.
func DefaultRegistry() *Registry {
	return defaultRegistry.Clone()
}

func newDefaultRegistry() *Registry {
	r := NewRegistry()

	for op := 0; op < 256; op++ {
		if wasm.IsFloatOpcode(byte(op)) {
			r.Register(byte(op), unsupportedHandler{}, "float")
		}
	}
	r.Register(wasm.OpPrefixMisc, unsupportedHandler{what: "bulk memory or saturating truncation"}, "misc")

	registerControl(r)
	registerVariables(r)
	registerMemory(r)
	for _, w := range []Width{W32, W64} {
		registerIntegers(r, w)
	}
	registerConversions(r)
	return r
}

func registerControl(r *Registry) {
	r.RegisterFunc(wasm.OpUnreachable, handleUnreachable, "unreachable")
	r.Register(wasm.OpNop, emitHandler{emit: func(*evm.Emitter, Traps) {}}, "nop")
	r.RegisterFunc(wasm.OpBr, handleBr, "br")
	r.RegisterFunc(wasm.OpBrIf, handleBrIf, "br_if")
	r.RegisterFunc(wasm.OpBrTable, handleBrTable, "br_table")
	r.RegisterFunc(wasm.OpReturn, handleReturn, "return")
	r.RegisterFunc(wasm.OpCall, handleCall, "call")
	r.Register(wasm.OpCallIndirect, unsupportedHandler{what: "call_indirect"}, "call_indirect")

	r.Register(wasm.OpDrop, emitHandler{
		emit: func(e *evm.Emitter, _ Traps) { e.Op(vm.POP) },
		pops: 1,
	}, "drop")
	sel := emitHandler{emit: func(e *evm.Emitter, _ Traps) { Select(e) }, pops: 3, pushes: 1}
	r.RegisterBulk([]byte{wasm.OpSelect, wasm.OpSelectType}, sel, "select")
}

func registerVariables(r *Registry) {
	local := func(op byte, name string, apply func(*Locals, *evm.Emitter, uint32) bool, pops, pushes int) {
		r.RegisterFunc(op, func(ctx *Context, instr wasm.Instruction) error {
			idx := instr.Imm.(wasm.LocalImm).LocalIdx
			if err := ctx.Pop(pops); err != nil {
				return err
			}
			if !apply(ctx.Locals, ctx.Emit, idx) {
				return errors.OutOfBounds(errors.PhaseTranslate,
					[]string{errors.FuncPath(ctx.FuncIdx), name}, int(idx), ctx.Locals.Len())
			}
			ctx.Push(pushes)
			return nil
		}, name)
	}
	local(wasm.OpLocalGet, "local.get", (*Locals).Get, 0, 1)
	local(wasm.OpLocalSet, "local.set", (*Locals).Set, 1, 0)
	local(wasm.OpLocalTee, "local.tee", (*Locals).Tee, 1, 1)

	r.RegisterFunc(wasm.OpGlobalGet, handleGlobalGet, "global.get")
	r.Register(wasm.OpGlobalSet, unsupportedHandler{what: "global.set"}, "global.set")
}

// handleGlobalGet inlines immutable globals with a constant initializer.
// Other globals have no storage in a unit.
func handleGlobalGet(ctx *Context, instr wasm.Instruction) error {
	idx := instr.Imm.(wasm.GlobalImm).GlobalIdx
	g, ok := ctx.Module.GlobalAt(idx)
	if !ok || g.Type.Mutable || !g.Type.ValType.IsInteger() {
		return ctx.Unsupported("global.get of a mutable or imported global")
	}
	v, ok := g.ConstValue()
	if !ok {
		return ctx.Unsupported("global.get of a non-constant global")
	}
	ctx.Emit.Push(v)
	ctx.Push(1)
	return nil
}

func registerMemory(r *Registry) {
	for op := wasm.OpI32Load; op <= wasm.OpMemoryGrow; op++ {
		if !wasm.IsFloatOpcode(op) {
			r.Register(op, unsupportedHandler{}, "memory")
		}
	}
}

func registerIntegers(r *Registry, w Width) {
	// Opcode layout is identical for both widths, offset by a fixed delta.
	cmp, num := wasm.OpI32Eqz, wasm.OpI32Clz
	if w == W64 {
		cmp, num = wasm.OpI64Eqz, wasm.OpI64Clz
	}
	name := func(op byte) string { return wasm.OpcodeName(op) }

	if w == W32 {
		r.RegisterFunc(wasm.OpI32Const, func(ctx *Context, instr wasm.Instruction) error {
			Const(ctx.Emit, W32, uint64(uint32(instr.Imm.(wasm.I32Imm).Value)))
			ctx.Push(1)
			return nil
		}, "i32.const")
	} else {
		r.RegisterFunc(wasm.OpI64Const, func(ctx *Context, instr wasm.Instruction) error {
			Const(ctx.Emit, W64, uint64(instr.Imm.(wasm.I64Imm).Value))
			ctx.Push(1)
			return nil
		}, "i64.const")
	}

	r.Register(cmp, unary(Eqz), name(cmp))
	r.Register(cmp+1, binary(func(e *evm.Emitter) { Eq(e, false) }), name(cmp+1))
	r.Register(cmp+2, binary(func(e *evm.Emitter) { Eq(e, true) }), name(cmp+2))
	compares := []struct {
		op      vm.OpCode
		orEqual bool
	}{{vm.LT, false}, {vm.GT, false}, {vm.LT, true}, {vm.GT, true}}
	for i, c := range compares {

		// lt_s, lt_u, gt_s, gt_u, le_s, le_u, ge_s, ge_u
		signed, unsigned := cmp+3+byte(2*i), cmp+4+byte(2*i)
		r.Register(signed, binary(func(e *evm.Emitter) { Compare(e, w, c.op, true, c.orEqual) }), name(signed))
		r.Register(unsigned, binary(func(e *evm.Emitter) { Compare(e, w, c.op, false, c.orEqual) }), name(unsigned))
	}

	r.Register(num, unary(func(e *evm.Emitter) { Clz(e, w) }), name(num))
	r.Register(num+1, unary(func(e *evm.Emitter) { Ctz(e, w) }), name(num+1))
	r.Register(num+2, unary(Popcnt), name(num+2))

	natives := map[byte]vm.OpCode{3: vm.ADD, 4: vm.SUB, 5: vm.MUL, 10: vm.AND, 11: vm.OR, 12: vm.XOR}
	for delta, op := range natives {

		r.Register(num+delta, binary(func(e *evm.Emitter) { Arith(e, w, op) }), name(num+delta))
	}

	r.Register(num+6, trapping(func(e *evm.Emitter, t Traps) { DivS(e, w, t) }), name(num+6))
	r.Register(num+7, trapping(func(e *evm.Emitter, t Traps) { DivU(e, t) }), name(num+7))
	r.Register(num+8, trapping(func(e *evm.Emitter, t Traps) { RemS(e, w, t) }), name(num+8))
	r.Register(num+9, trapping(func(e *evm.Emitter, t Traps) { RemU(e, t) }), name(num+9))

	r.Register(num+13, binary(func(e *evm.Emitter) { Shl(e, w) }), name(num+13))
	r.Register(num+14, binary(func(e *evm.Emitter) { ShrS(e, w) }), name(num+14))
	r.Register(num+15, binary(func(e *evm.Emitter) { ShrU(e, w) }), name(num+15))
	r.Register(num+16, binary(func(e *evm.Emitter) { Rotate(e, w, false) }), name(num+16))
	r.Register(num+17, binary(func(e *evm.Emitter) { Rotate(e, w, true) }), name(num+17))
}

func registerConversions(r *Registry) {
	r.Register(wasm.OpI32WrapI64, unary(func(e *evm.Emitter) { Mask(e, W32) }), "i32.wrap_i64")
	r.Register(wasm.OpI64ExtendI32S, unary(func(e *evm.Emitter) { Extend(e, 32, W64) }), "i64.extend_i32_s")
	r.Register(wasm.OpI64ExtendI32U, unary(func(e *evm.Emitter) { Mask(e, W32) }), "i64.extend_i32_u")

	extends := []struct {
		op   byte
		from uint64
		to   Width
	}{
		{wasm.OpI32Extend8S, 8, W32},
		{wasm.OpI32Extend16S, 16, W32},
		{wasm.OpI64Extend8S, 8, W64},
		{wasm.OpI64Extend16S, 16, W64},
		{wasm.OpI64Extend32S, 32, W64},
	}
	for _, x := range extends {

		r.Register(x.op, unary(func(e *evm.Emitter) { Extend(e, x.from, x.to) }), wasm.OpcodeName(x.op))
	}
}
