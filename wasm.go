package wasm2evm

import (
	"github.com/wippyai/wasm2evm/compiler"
	"github.com/wippyai/wasm2evm/errors"
	"github.com/wippyai/wasm2evm/wasm"
)

// Compile decodes a binary and compiles every defined function, in
// declaration order, without deploying anything. Calls compile only when
// cfg.Calls resolves their targets.
func Compile(data []byte, cfg compiler.Config) ([]*compiler.Unit, error) {
	m, err := wasm.ParseModule(data)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "decode module")
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, "validate module")
	}
	imported := uint32(m.NumImportedFuncs())
	units := make([]*compiler.Unit, len(m.Funcs))
	for i := range units {
		u, err := compiler.Compile(m, imported+uint32(i), cfg)
		if err != nil {
			return nil, err
		}
		units[i] = u
	}
	return units, nil
}
