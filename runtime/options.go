package runtime

import (
	"github.com/wippyai/wasm2evm/engine"
	"github.com/wippyai/wasm2evm/errors"
)

type options struct {
	engine   *engine.EVMEngine
	gasLimit uint64
	strict   bool
	validate bool
	tracing  bool
}

// Option configures a Runtime.
type Option func(*options) error

// WithEngine deploys onto e instead of a private engine. GasLimit and
// tracing options are ignored when an engine is supplied.
func WithEngine(e *engine.EVMEngine) Option {
	return func(o *options) error {
		if e == nil {
			return errors.InvalidInput(errors.PhaseLoad, "nil engine")
		}
		o.engine = e
		return nil
	}
}

// WithStrict fails instantiation on the first unsupported operation
// instead of compiling an abort marker.
func WithStrict(strict bool) Option {
	return func(o *options) error {
		o.strict = strict
		return nil
	}
}

// WithValidation checks binaries with the reference engine before
// compiling them.
func WithValidation(validate bool) Option {
	return func(o *options) error {
		o.validate = validate
		return nil
	}
}

// WithTracing logs every executed instruction at debug level.
func WithTracing(tracing bool) Option {
	return func(o *options) error {
		o.tracing = tracing
		return nil
	}
}

// WithGasLimit sets the gas available to each deployment and call.
func WithGasLimit(gas uint64) Option {
	return func(o *options) error {
		if gas == 0 {
			return errors.InvalidInput(errors.PhaseLoad, "gas limit must be positive")
		}
		o.gasLimit = gas
		return nil
	}
}
