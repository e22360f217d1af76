package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"
	"sync"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/core/vm/runtime"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/wippyai/wasm2evm/errors"
)

// DefaultGasLimit bounds every deployment and call unless Config overrides it.
const DefaultGasLimit = 30_000_000

// DefaultDeployer is the account that deploys units and issues calls.
var DefaultDeployer = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

// Config holds configuration for engine creation
type Config struct {
	// OnStep receives every executed instruction when set.
	OnStep func(Step)

	// GasLimit is the gas available to each deployment and call.
	// 0 means DefaultGasLimit.
	GasLimit uint64

	// Deployer is the origin of deployments and calls. The zero address
	// means DefaultDeployer.
	Deployer common.Address

	// Tracing logs every executed instruction at debug level.
	Tracing bool
}

// Status classifies the outcome of a call.
type Status int

const (
	// StatusSuccess means the unit returned normally.
	StatusSuccess Status = iota
	// StatusReverted means the unit reverted, for example on a trap.
	StatusReverted
	// StatusExhausted means the call ran out of gas or call depth.
	StatusExhausted
	// StatusAborted means execution hit an invalid instruction or jump,
	// which includes the unsupported-operation marker.
	StatusAborted
	// StatusFailed covers every other engine error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusReverted:
		return "reverted"
	case StatusExhausted:
		return "exhausted"
	case StatusAborted:
		return "aborted"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result is the engine's outcome of one call, returned to callers as is.
type Result struct {
	Err          error // engine error for non-success outcomes
	RevertReason string
	ReturnData   []byte
	GasUsed      uint64
	Status       Status
}

// Word returns the last 32 bytes of the return data, left-padded.
func (r *Result) Word() [32]byte {
	var w [32]byte
	data := r.ReturnData
	if len(data) > 32 {
		data = data[len(data)-32:]
	}
	copy(w[32-len(data):], data)
	return w
}

// Uint256 returns the result word as an integer.
func (r *Result) Uint256() *uint256.Int {
	w := r.Word()
	return new(uint256.Int).SetBytes32(w[:])
}

// U64 returns the low 64 bits of the result word.
func (r *Result) U64() uint64 {
	return r.Uint256().Uint64()
}

// U32 returns the low 32 bits of the result word.
func (r *Result) U32() uint32 {
	return uint32(r.U64())
}

func (r *Result) String() string {
	switch r.Status {
	case StatusSuccess:
		if len(r.ReturnData) == 0 {
			return "success (no result)"
		}
		return "success " + r.Uint256().Dec()
	case StatusReverted:
		return fmt.Sprintf("reverted: %q", r.RevertReason)
	}
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Status, r.Err)
	}
	return r.Status.String()
}

// Step is one executed instruction.
type Step struct {
	Stack []uint256.Int // bottom first
	PC    uint64
	Gas   uint64
	Cost  uint64
	Depth int
	Op    vm.OpCode
}

// EVMEngine deploys units into, and calls them on, one persistent state.
// Deployments and calls are serialized.
type EVMEngine struct {
	cfg      *runtime.Config
	onStep   func(Step)
	cause    error // failure of the innermost nested frame of the current call
	deployer common.Address
	mu       sync.Mutex
}

// NewEVMEngine creates an engine with default configuration.
func NewEVMEngine() *EVMEngine {
	return NewEVMEngineWithConfig(nil)
}

// NewEVMEngineWithConfig creates a new engine with custom configuration.
func NewEVMEngineWithConfig(cfg *Config) *EVMEngine {
	if cfg == nil {
		cfg = &Config{}
	}
	deployer := cfg.Deployer
	if deployer == (common.Address{}) {
		deployer = DefaultDeployer
	}
	gas := cfg.GasLimit
	if gas == 0 {
		gas = DefaultGasLimit
	}

	e := &EVMEngine{
		deployer: deployer,
		onStep:   cfg.OnStep,
		cfg: &runtime.Config{
			Origin:   deployer,
			GasLimit: gas,
			Value:    new(big.Int),
		},
	}
	hooks := &tracing.Hooks{OnExit: e.onExit}
	if cfg.Tracing || cfg.OnStep != nil {
		hooks.OnOpcode = e.onOpcode(cfg.Tracing)
	}
	e.cfg.EVMConfig.Tracer = hooks
	return e
}

// Deployer returns the origin of deployments.
func (e *EVMEngine) Deployer() common.Address { return e.deployer }

// GasLimit returns the gas available to each deployment and call.
func (e *EVMEngine) GasLimit() uint64 { return e.cfg.GasLimit }

// Nonce returns the deployer's current nonce, which determines the address
// of the next deployment.
func (e *EVMEngine) Nonce() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nonce()
}

func (e *EVMEngine) nonce() uint64 {
	if e.cfg.State == nil {
		return 0
	}
	return e.cfg.State.GetNonce(e.deployer)
}

// PredictAddress returns the address the deployment offset positions after
// the next one will receive.
func (e *EVMEngine) PredictAddress(offset uint64) common.Address {
	return crypto.CreateAddress(e.deployer, e.Nonce()+offset)
}

// Deploy runs deploy code and installs the code it returns.
func (e *EVMEngine) Deploy(ctx context.Context, code []byte) (common.Address, error) {
	if err := ctx.Err(); err != nil {
		return common.Address{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	want := crypto.CreateAddress(e.deployer, e.nonce())
	_, addr, left, err := runtime.Create(code, e.cfg)
	if err != nil {
		return common.Address{}, err
	}
	if addr != want {
		return common.Address{}, fmt.Errorf("deployed at %s, expected %s", addr, want)
	}
	Logger().Debug("deployed unit",
		zap.Stringer("address", addr),
		zap.Int("code_bytes", len(code)),
		zap.Uint64("gas_used", e.cfg.GasLimit-left))
	return addr, nil
}

// Code returns the code installed at addr.
func (e *EVMEngine) Code(addr common.Address) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.State == nil {
		return nil
	}
	return e.cfg.State.GetCode(addr)
}

// Call invokes the unit at addr with input as calldata. Outcomes of the
// unit itself, including traps and gas exhaustion, are reported in the
// Result; the error is reserved for calls that could not be issued.
func (e *EVMEngine) Call(ctx context.Context, addr common.Address, input []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.State == nil || e.cfg.State.GetCodeSize(addr) == 0 {
		return nil, errors.NotFound(errors.PhaseInvoke, "unit", addr.Hex())
	}
	e.cause = nil
	ret, left, err := runtime.Call(addr, input, e.cfg)
	res := classify(ret, err, e.cause)
	res.GasUsed = e.cfg.GasLimit - left
	debugf("call %s: %s", addr, res)
	return res, nil
}

// onExit tracks why a nested frame failed. A unit re-raises a failed
// callee's return data, so an empty revert at the top hides the callee's
// gas exhaustion or abort; cause keeps it.
func (e *EVMEngine) onExit(depth int, output []byte, _ uint64, err error, _ bool) {
	if depth == 0 {
		return
	}
	switch {
	case err == nil:
		e.cause = nil
	case stderrors.Is(err, vm.ErrExecutionReverted):
		if len(output) > 0 {
			e.cause = nil
		}
	default:
		e.cause = err
	}
}

// classify maps an engine outcome to a Result. An empty revert caused by a
// nested failure takes that failure's classification.
func classify(ret []byte, err, cause error) *Result {
	if cause != nil && len(ret) == 0 && stderrors.Is(err, vm.ErrExecutionReverted) {
		err = fmt.Errorf("nested call: %w", cause)
	}
	res := &Result{ReturnData: ret, Err: err}
	var invalidOp *vm.ErrInvalidOpCode
	var underflow *vm.ErrStackUnderflow
	var overflow *vm.ErrStackOverflow
	switch {
	case err == nil:
		res.Status = StatusSuccess
	case stderrors.Is(err, vm.ErrExecutionReverted):
		res.Status = StatusReverted
		res.RevertReason = RevertReason(ret)
	case stderrors.Is(err, vm.ErrOutOfGas), stderrors.Is(err, vm.ErrCodeStoreOutOfGas),
		stderrors.Is(err, vm.ErrGasUintOverflow), stderrors.Is(err, vm.ErrDepth):
		res.Status = StatusExhausted
	case stderrors.As(err, &invalidOp), stderrors.Is(err, vm.ErrInvalidJump),
		stderrors.As(err, &underflow), stderrors.As(err, &overflow),
		stderrors.Is(err, vm.ErrWriteProtection):
		res.Status = StatusAborted
	default:
		res.Status = StatusFailed
	}
	return res
}

// RevertReason decodes revert data: a Solidity-style Error(string), raw
// UTF-8 text, or hex for anything else.
func RevertReason(data []byte) string {
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	if utf8.Valid(data) {
		return string(data)
	}
	return common.Bytes2Hex(data)
}

func (e *EVMEngine) onOpcode(log bool) func(uint64, byte, uint64, uint64, tracing.OpContext, []byte, int, error) {
	l := Logger()
	return func(pc uint64, op byte, gas, cost uint64, scope tracing.OpContext, _ []byte, depth int, err error) {
		stack := scope.StackData()
		if e.onStep != nil {
			e.onStep(Step{
				PC:    pc,
				Op:    vm.OpCode(op),
				Gas:   gas,
				Cost:  cost,
				Depth: depth,
				Stack: append([]uint256.Int(nil), stack...),
			})
		}
		if !log {
			return
		}
		fields := []zap.Field{
			zap.Uint64("pc", pc),
			zap.Stringer("op", vm.OpCode(op)),
			zap.Uint64("gas", gas),
			zap.Int("depth", depth),
		}
		if n := len(stack); n > 0 {
			fields = append(fields, zap.String("top", stack[n-1].Hex()))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		l.Debug("step", fields...)
	}
}
