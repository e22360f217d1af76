package compiler

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/vm"
	"go.uber.org/zap"

	"github.com/wippyai/wasm2evm/assembler"
	"github.com/wippyai/wasm2evm/errors"
	"github.com/wippyai/wasm2evm/evm"
	"github.com/wippyai/wasm2evm/wasm"
)

// DeployStubSize is the length of the constructor prepended to every unit.
const DeployStubSize = 15

// Unit is one packaged function.
type Unit struct {
	Type        *wasm.FuncType
	Labels      map[evm.Label]int
	Ops         []evm.Op // runtime ops before assembly
	Runtime     []byte   // installed code
	Deploy      []byte   // constructor followed by Runtime
	Unsupported []string // reasons of abort markers in Ops
	Index       uint32
}

// Package wraps a translated body with the calldata prologue, the result
// epilogue and the trap blocks, assembles it, and prepends the deploy stub.
func Package(fn *Function) (*Unit, error) {
	e := evm.NewEmitter()
	path := errors.FuncPath(fn.Index)

	// Prologue: copy one word per parameter into its local slot, then
	// truncate each to its width so oversized words cannot leak high bits.
	n := uint64(len(fn.Type.Params))
	if n > 0 {
		e.Push(n * WordSize).Push(0).Push(0).Op(vm.CALLDATACOPY)
	}
	for i, p := range fn.Type.Params {
		off := uint64(i) * WordSize
		e.Push(off).Op(vm.MLOAD)
		Mask(e, widthOf(p))
		e.Push(off).Op(vm.MSTORE)
	}

	e.Append(fn.Body...)
	e.Mark(ReturnLabel)

	switch len(fn.Type.Results) {
	case 0:
		e.Op(vm.STOP)
	case 1:
		e.Push(0).Op(vm.MSTORE)
		e.Push(WordSize).Push(0).Op(vm.RETURN)
	default:
		e.Unsupported("multi-value results")
	}
	emitTraps(e, fn.Traps)

	prog, err := assembler.Assemble(e.Ops())
	if err != nil {
		return nil, errors.New(errors.PhasePackage, errors.KindInvalidData).
			Path(path).
			Cause(err).
			Detail("assemble runtime code").
			Build()
	}

	unit := &Unit{
		Index:       fn.Index,
		Type:        fn.Type,
		Labels:      prog.Labels,
		Ops:         e.Ops(),
		Runtime:     prog.Code,
		Deploy:      DeployCode(prog.Code),
		Unsupported: evm.UnsupportedReasons(e.Ops()),
	}
	Logger().Debug("packaged function",
		zap.Uint32("index", fn.Index),
		zap.Int("runtime_bytes", len(unit.Runtime)),
		zap.Int("unsupported", len(unit.Unsupported)))
	return unit, nil
}

// DeployCode returns the constructor that installs runtime, followed by
// runtime. runtime must not exceed assembler.MaxCodeSize.
func DeployCode(runtime []byte) []byte {
	hi, lo := byte(len(runtime)>>8), byte(len(runtime))
	code := make([]byte, 0, DeployStubSize+len(runtime))
	code = append(code,
		byte(vm.PUSH2), hi, lo,
		byte(vm.PUSH1), DeployStubSize,
		byte(vm.PUSH1), 0,
		byte(vm.CODECOPY),
		byte(vm.PUSH2), hi, lo,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
		byte(vm.INVALID),
	)
	return append(code, runtime...)
}

// Compile translates and packages one defined function. Outside strict
// mode a body that cannot be translated still yields a unit, one that
// aborts as soon as it is called.
func Compile(m *wasm.Module, funcIdx uint32, cfg Config) (*Unit, error) {
	fn, err := Translate(m, funcIdx, cfg)
	if err != nil {
		if cfg.Strict || errors.Match(err, errors.PhaseTranslate, errors.KindNotFound) {
			return nil, err
		}
		Logger().Warn("function replaced by abort stub",
			zap.Uint32("index", funcIdx), zap.Error(err))
		fn = AbortStub(m, funcIdx, err.Error())
	}
	return Package(fn)
}

// AbortStub returns a body that immediately aborts with reason.
func AbortStub(m *wasm.Module, funcIdx uint32, reason string) *Function {
	sig := m.GetFuncType(funcIdx)
	if sig == nil {
		sig = &wasm.FuncType{}
	}
	e := evm.NewEmitter().Unsupported(reason)
	return &Function{
		Index:       funcIdx,
		Type:        sig,
		Locals:      NewLocals(sig, nil),
		Body:        e.Ops(),
		Unsupported: []string{reason},
	}
}

func widthOf(t wasm.ValType) Width {
	switch t {
	case wasm.ValI32, wasm.ValF32:
		return W32
	}
	return W64
}

func (u *Unit) String() string {
	return fmt.Sprintf("func[%d] %d bytes", u.Index, len(u.Runtime))
}
