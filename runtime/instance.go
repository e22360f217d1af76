package runtime

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wippyai/wasm2evm/compiler"
	"github.com/wippyai/wasm2evm/engine"
	"github.com/wippyai/wasm2evm/errors"
	"github.com/wippyai/wasm2evm/wasm"
)

// Unit is a deployed function.
type Unit struct {
	Compiled *compiler.Unit
	Name     string // first export name, empty if not exported
	Address  common.Address
	Index    uint32
}

// Signature returns the unit's WebAssembly signature.
func (u *Unit) Signature() wasm.FuncType {
	return *u.Compiled.Type
}

// Export describes one exported function.
type Export struct {
	Name      string
	Signature wasm.FuncType
	Address   common.Address
	Index     uint32
}

// Instance is an instantiated module: one deployed unit per defined
// function.
type Instance struct {
	runtime *Runtime
	module  *wasm.Module
	byIndex map[uint32]*Unit
	exports map[string]*Unit
	mu      sync.Mutex
}

// Module returns the decoded module.
func (i *Instance) Module() *wasm.Module {
	return i.module
}

// Invoke calls an exported function with args encoded as 32-byte words.
// The engine result is returned as is; traps show up as StatusReverted
// with the trap message as RevertReason.
func (i *Instance) Invoke(ctx context.Context, name string, args ...Value) (*engine.Result, error) {
	u, ok := i.exports[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseInvoke, "export", name)
	}
	sig := u.Compiled.Type
	if len(args) != len(sig.Params) {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Path(name).
			Detail("expected %d arguments, got %d", len(sig.Params), len(args)).
			Build()
	}
	for j, a := range args {
		if a.typ != sig.Params[j] {
			return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
				Path(name).
				Value(j).
				Detail("argument %d is %s, expected %s", j, a.typ, sig.Params[j]).
				Build()
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	res, err := i.runtime.engine.Call(ctx, u.Address, Calldata(args...))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseInvoke, errors.KindEngine, err, "call "+name)
	}
	Logger().Debug("invoked export",
		zap.String("func", name),
		zap.Stringer("status", res.Status),
		zap.Uint64("gas_used", res.GasUsed))
	return res, nil
}

// Exports lists the exported functions sorted by name.
func (i *Instance) Exports() []Export {
	out := make([]Export, 0, len(i.exports))
	for name, u := range i.exports {
		out = append(out, Export{
			Name:      name,
			Signature: u.Signature(),
			Address:   u.Address,
			Index:     u.Index,
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Unit returns the unit behind an export.
func (i *Instance) Unit(name string) (*Unit, bool) {
	u, ok := i.exports[name]
	return u, ok
}

// UnitAt returns the unit of a defined function by function index.
func (i *Instance) UnitAt(funcIdx uint32) (*Unit, bool) {
	u, ok := i.byIndex[funcIdx]
	return u, ok
}

// Unsupported returns the unsupported-operation reasons of every unit,
// prefixed by function, in index order.
func (i *Instance) Unsupported() []string {
	idxs := make([]uint32, 0, len(i.byIndex))
	for idx := range i.byIndex {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(a, b int) bool { return idxs[a] < idxs[b] })

	var out []string
	for _, idx := range idxs {
		for _, reason := range i.byIndex[idx].Compiled.Unsupported {
			out = append(out, errors.FuncPath(idx)+": "+reason)
		}
	}
	return out
}
