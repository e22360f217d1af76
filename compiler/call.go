package compiler

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/wippyai/wasm2evm/errors"
	"github.com/wippyai/wasm2evm/wasm"
)

// CallResolver maps a function index to the address its unit is deployed
// at. Addresses may be predicted before the callee exists.
type CallResolver interface {
	ResolveCall(funcIdx uint32) (common.Address, bool)
}

// CallResolverFunc adapts a function to CallResolver.
type CallResolverFunc func(funcIdx uint32) (common.Address, bool)

// ResolveCall implements CallResolver.
func (f CallResolverFunc) ResolveCall(funcIdx uint32) (common.Address, bool) {
	return f(funcIdx)
}

// handleCall marshals the arguments above the caller's frame using the
// same one-word-per-argument layout as external invocation, calls the
// callee's unit and loads the result word from the same region. A failed
// callee's revert data is re-raised unchanged.
func handleCall(ctx *Context, instr wasm.Instruction) error {
	idx := instr.Imm.(wasm.CallImm).FuncIdx
	callee := ctx.Module.GetFuncType(idx)
	if callee == nil {
		return errors.New(errors.PhaseTranslate, errors.KindNotFound).
			Path(errors.FuncPath(ctx.FuncIdx)).
			Opcode("call").
			Value(idx).
			Detail("function %d does not exist", idx).
			Build()
	}
	if int(idx) < ctx.Module.NumImportedFuncs() {
		return ctx.Unsupported("call to imported function")
	}
	if len(callee.Results) > 1 {
		return ctx.Unsupported("call returning multiple values")
	}
	var addr common.Address
	ok := false
	if ctx.Calls != nil {
		addr, ok = ctx.Calls.ResolveCall(idx)
	}
	if !ok {
		return ctx.Unsupported("call target without a deployed unit")
	}

	n := len(callee.Params)
	if err := ctx.Pop(n); err != nil {
		return err
	}
	base := ctx.Locals.FrameSize()
	e := ctx.Emit
	for i := n - 1; i >= 0; i-- {
		e.Push(base + uint64(i)*WordSize).Op(vm.MSTORE)
	}

	retSize := uint64(0)
	if len(callee.Results) == 1 {
		retSize = WordSize
	}
	e.Push(retSize).Push(base).Push(uint64(n) * WordSize).Push(base).Push(0)
	e.PushWord(new(uint256.Int).SetBytes(addr.Bytes()))
	e.Op(vm.GAS, vm.CALL)
	e.Op(vm.ISZERO).JumpI(ctx.TrapLabel(TrapCall))

	if retSize > 0 {
		e.Push(base).Op(vm.MLOAD)
		ctx.Push(1)
	}
	debugf("func[%d]: call func[%d] at %s", ctx.FuncIdx, idx, addr)
	return nil
}
