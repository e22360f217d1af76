package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// WazeroEngine runs modules on wazero's interpreter. It is the reference
// the compiled units are checked against.
type WazeroEngine struct {
	runtime wazero.Runtime
}

// NewWazeroEngine creates a reference engine on wazero's interpreter with
// the WebAssembly 2.0 feature set.
func NewWazeroEngine(ctx context.Context) *WazeroEngine {
	cfg := wazero.NewRuntimeConfigInterpreter().WithCoreFeatures(api.CoreFeaturesV2)
	return &WazeroEngine{runtime: wazero.NewRuntimeWithConfig(ctx, cfg)}
}

// Validate compiles wasmBytes without instantiating it.
func (e *WazeroEngine) Validate(ctx context.Context, wasmBytes []byte) error {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return err
	}
	return compiled.Close(ctx)
}

// LoadModule compiles and instantiates wasmBytes anonymously.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile failed: %w", err)
	}
	instance, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, fmt.Errorf("instantiate failed: %w", err)
	}
	return &WazeroModule{compiled: compiled, instance: instance}, nil
}

// Close releases every module of the engine.
func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// WazeroModule is an instantiated reference module.
type WazeroModule struct {
	compiled wazero.CompiledModule
	instance api.Module
}

// Call invokes an export with raw WebAssembly values. A trap is returned as
// the error wazero reports.
func (m *WazeroModule) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := m.instance.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("export %q not found", name)
	}
	return fn.Call(ctx, args...)
}

// ResultTypes returns the result types of an export, or nil if it does not
// exist.
func (m *WazeroModule) ResultTypes(name string) []api.ValueType {
	def := m.compiled.ExportedFunctions()[name]
	if def == nil {
		return nil
	}
	return def.ResultTypes()
}

// Close releases the module.
func (m *WazeroModule) Close(ctx context.Context) error {
	return m.instance.Close(ctx)
}
