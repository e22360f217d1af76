package runtime

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wippyai/wasm2evm/compiler"
	"github.com/wippyai/wasm2evm/engine"
	"github.com/wippyai/wasm2evm/errors"
	"github.com/wippyai/wasm2evm/wasm"
)

// Runtime compiles modules and deploys them onto one EVM engine.
type Runtime struct {
	engine    *engine.EVMEngine
	reference *engine.WazeroEngine
	opts      options
}

// New creates a runtime. Without WithEngine it owns a fresh EVM engine.
func New(opts ...Option) (*Runtime, error) {
	o := options{}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	r := &Runtime{engine: o.engine, opts: o}
	if r.engine == nil {
		r.engine = engine.NewEVMEngineWithConfig(&engine.Config{
			GasLimit: o.gasLimit,
			Tracing:  o.tracing,
		})
	}
	if o.validate {
		r.reference = engine.NewWazeroEngine(context.Background())
	}
	return r, nil
}

// Engine returns the engine units are deployed on.
func (r *Runtime) Engine() *engine.EVMEngine {
	return r.engine
}

// Close releases the reference validator, if any.
func (r *Runtime) Close(ctx context.Context) error {
	if r.reference != nil {
		return r.reference.Close(ctx)
	}
	return nil
}

// Instantiate decodes a WebAssembly binary and instantiates it.
func (r *Runtime) Instantiate(ctx context.Context, data []byte) (*Instance, error) {
	if r.reference != nil {
		if err := r.reference.Validate(ctx, data); err != nil {
			return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, "reference validation")
		}
	}
	m, err := wasm.ParseModule(data)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "decode module")
	}
	return r.InstantiateModule(ctx, m)
}

// InstantiateModule compiles every defined function of m into its own unit
// and deploys the units in declaration order. Calls between units target
// addresses predicted from the engine's nonce, which deployment verifies.
func (r *Runtime) InstantiateModule(ctx context.Context, m *wasm.Module) (*Instance, error) {
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, "validate module")
	}

	imported := uint32(m.NumImportedFuncs())
	defined := uint32(len(m.Funcs))

	// Addresses are fixed before anything is deployed, so every unit can
	// call any other regardless of order.
	base := r.engine.Nonce()
	addrs := make([]common.Address, defined)
	for i := range addrs {
		addrs[i] = r.engine.PredictAddress(uint64(i))
	}
	resolver := compiler.CallResolverFunc(func(funcIdx uint32) (common.Address, bool) {
		if funcIdx < imported || funcIdx-imported >= defined {
			return common.Address{}, false
		}
		return addrs[funcIdx-imported], true
	})

	cfg := compiler.Config{Calls: resolver, Strict: r.opts.strict}
	units := make([]*compiler.Unit, defined)
	for i := uint32(0); i < defined; i++ {
		u, err := compiler.Compile(m, imported+i, cfg)
		if err != nil {
			return nil, err
		}
		units[i] = u
	}

	inst := &Instance{
		runtime: r,
		module:  m,
		byIndex: make(map[uint32]*Unit, defined),
		exports: make(map[string]*Unit),
	}
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := imported + uint32(i)
		path := errors.FuncPath(idx)
		if r.engine.Nonce() != base+uint64(i) {
			return nil, errors.Instantiation(path, errors.InvalidInput(errors.PhaseDeploy,
				"engine nonce moved during instantiation"))
		}
		addr, err := r.engine.Deploy(ctx, u.Deploy)
		if err != nil {
			return nil, errors.Deploy(path, err)
		}
		if addr != addrs[i] {
			return nil, errors.Instantiation(path, errors.InvalidInput(errors.PhaseDeploy,
				"unit deployed at "+addr.Hex()+", calls expect "+addrs[i].Hex()))
		}
		inst.byIndex[idx] = &Unit{Index: idx, Address: addr, Compiled: u}
		debugf("deployed %s at %s (%d bytes)", path, addr, len(u.Runtime))
	}

	for _, exp := range m.Exports {
		if exp.Kind != wasm.KindFunc {
			continue
		}
		u, ok := inst.byIndex[exp.Idx]
		if !ok {
			// Re-exported imports have no unit.
			continue
		}
		if u.Name == "" {
			u.Name = exp.Name
		}
		inst.exports[exp.Name] = u
	}

	Logger().Info("instantiated module",
		zap.Uint32("functions", defined),
		zap.Int("exports", len(inst.exports)),
		zap.Stringer("first", firstAddress(addrs)))
	return inst, nil
}

func firstAddress(addrs []common.Address) common.Address {
	if len(addrs) == 0 {
		return common.Address{}
	}
	return addrs[0]
}
