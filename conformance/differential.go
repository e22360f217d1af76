package conformance

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm2evm/compiler"
	"github.com/wippyai/wasm2evm/engine"
	"github.com/wippyai/wasm2evm/runtime"
	"github.com/wippyai/wasm2evm/wasm"
)

// Case is one invocation with raw WebAssembly argument values.
type Case struct {
	Func string
	Args []uint64
}

func (c Case) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = fmt.Sprint(a)
	}
	return c.Func + "(" + strings.Join(args, ", ") + ")"
}

// observation is what one engine did for a case.
type observation struct {
	values []uint64
	trap   string // trap message, empty on success
	other  string // failure that is neither a value nor a known trap
}

func (o observation) String() string {
	switch {
	case o.other != "":
		return o.other
	case o.trap != "":
		return "trap " + o.trap
	}
	return fmt.Sprint(o.values)
}

// Differential runs cases on wazero and on the compiled units of the same
// binary and compares them. Values must match exactly; traps must carry
// the same message.
func Differential(ctx context.Context, wasmBytes []byte, cases []Case, opts ...runtime.Option) (*Report, error) {
	ref := engine.NewWazeroEngine(ctx)
	defer ref.Close(ctx)
	refMod, err := ref.LoadModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	defer refMod.Close(ctx)

	rt, err := runtime.New(opts...)
	if err != nil {
		return nil, err
	}
	defer rt.Close(ctx)
	inst, err := rt.Instantiate(ctx, wasmBytes)
	if err != nil {
		return nil, err
	}

	report := &Report{Name: "differential"}
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := c.String()
		if t, ok := nonInteger(refMod.ResultTypes(c.Func)); ok {
			report.skip(0, name, "%s result", api.ValueTypeName(t))
			continue
		}
		want := observeReference(ctx, refMod, c)
		got, skip, err := observeUnits(ctx, inst, c)
		if err != nil {
			report.fail(0, name, "%v", err)
			continue
		}
		if skip != "" {
			report.skip(0, name, "%s", skip)
			continue
		}
		if want.other != "" {
			report.skip(0, name, "reference: %s", want.other)
			continue
		}
		if want.String() != got.String() {
			report.fail(0, name, "reference %s, compiled %s", want, got)
			continue
		}
		debugf("%s: %s", name, got)
		report.pass(0, name)
	}
	return report, nil
}

func nonInteger(types []api.ValueType) (api.ValueType, bool) {
	for _, t := range types {
		if t != api.ValueTypeI32 && t != api.ValueTypeI64 {
			return t, true
		}
	}
	return 0, false
}

func observeReference(ctx context.Context, mod *engine.WazeroModule, c Case) observation {
	vals, err := mod.Call(ctx, c.Func, c.Args...)
	if err == nil {
		for i, t := range mod.ResultTypes(c.Func) {
			if t == api.ValueTypeI32 {
				vals[i] = uint64(uint32(vals[i]))
			}
		}
		return observation{values: vals}
	}
	if msg := classifyTrap(err.Error()); msg != "" {
		return observation{trap: msg}
	}
	return observation{other: err.Error()}
}

func observeUnits(ctx context.Context, inst *runtime.Instance, c Case) (obs observation, skip string, err error) {
	u, ok := inst.Unit(c.Func)
	if !ok {
		return observation{}, "", fmt.Errorf("export %q has no unit", c.Func)
	}
	sig := u.Signature()
	if len(sig.Params) != len(c.Args) {
		return observation{}, "", fmt.Errorf("%s takes %d arguments", c.Func, len(sig.Params))
	}
	args := make([]runtime.Value, len(c.Args))
	for i, p := range sig.Params {
		switch p {
		case wasm.ValI32:
			args[i] = runtime.U32(uint32(c.Args[i]))
		case wasm.ValI64:
			args[i] = runtime.U64(c.Args[i])
		default:
			return observation{}, p.String() + " parameter", nil
		}
	}

	res, err := inst.Invoke(ctx, c.Func, args...)
	if err != nil {
		return observation{}, "", err
	}
	if reasons := unsupportedOutcome(inst, res); reasons != "" {
		return observation{}, "unsupported: " + reasons, nil
	}
	switch res.Status {
	case engine.StatusSuccess:
		obs.values = []uint64{}
		if len(sig.Results) == 1 {
			w := res.Uint256()
			if !w.IsUint64() || (sig.Results[0] == wasm.ValI32 && w.Uint64() > 0xFFFFFFFF) {
				return observation{other: "result word " + w.Hex() + " exceeds its width"}, "", nil
			}
			obs.values = append(obs.values, w.Uint64())
		}
		return obs, "", nil
	case engine.StatusReverted:
		if msg := classifyTrap(res.RevertReason); msg != "" {
			return observation{trap: msg}, "", nil
		}
	}
	return observation{other: res.String()}, "", nil
}

// classifyTrap maps an error or revert message to the trap message it
// carries, or "" if it names none.
func classifyTrap(msg string) string {
	for _, t := range compiler.TrapMessages() {
		if strings.Contains(msg, t) {
			return t
		}
	}
	return ""
}
