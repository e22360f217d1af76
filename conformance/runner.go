package conformance

import (
	"context"
	"strings"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/wippyai/wasm2evm/engine"
	"github.com/wippyai/wasm2evm/runtime"
)

// Runner executes scripts against compiled units.
type Runner struct {
	opts []runtime.Option
}

// NewRunner creates a runner whose runtimes are built with opts.
func NewRunner(opts ...runtime.Option) *Runner {
	return &Runner{opts: opts}
}

// Run executes every command of s. Each script gets its own runtime. A
// module that fails to instantiate fails its command, and commands
// addressed to it are skipped. The error is reserved for failures of the
// runner itself, such as cancellation.
func (r *Runner) Run(ctx context.Context, s *Script) (*Report, error) {
	rt, err := runtime.New(r.opts...)
	if err != nil {
		return nil, err
	}
	defer rt.Close(ctx)

	report := &Report{Name: s.SourceFilename}
	var (
		cur    *runtime.Instance
		curErr string
	)
	for i := range s.Commands {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		cmd := &s.Commands[i]
		switch cmd.Type {
		case CmdModule:
			cur, curErr = nil, ""
			data, err := s.moduleBytes(cmd)
			if err != nil {
				curErr = err.Error()
				report.fail(cmd.Line, cmd.Type, "%v", err)
				continue
			}
			inst, err := rt.Instantiate(ctx, data)
			if err != nil {
				curErr = err.Error()
				report.fail(cmd.Line, cmd.Type, "%v", err)
				continue
			}
			cur = inst
			report.pass(cmd.Line, cmd.Type)

		case CmdAssertReturn, CmdAssertTrap, CmdAssertExhaustion, CmdAction:
			if cmd.Action == nil && cmd.Filename != "" {
				report.skip(cmd.Line, cmd.Type, "module traps not supported")
				continue
			}
			if cmd.Action == nil {
				report.fail(cmd.Line, cmd.Type, "missing action")
				continue
			}
			if cur == nil {
				if curErr == "" {
					curErr = "no module"
				}
				report.skip(cmd.Line, cmd.Type, "module unavailable: %s", curErr)
				continue
			}
			r.runAction(ctx, report, cur, cmd)

		case CmdAssertMalformed, CmdAssertInvalid, CmdAssertUnlinkable,
			CmdAssertUninstant, CmdRegister:
			report.skip(cmd.Line, cmd.Type, "command not supported")

		default:
			report.skip(cmd.Line, cmd.Type, "unknown command")
		}
	}
	Logger().Info("script finished",
		zap.String("script", s.SourceFilename),
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

func (r *Runner) runAction(ctx context.Context, report *Report, inst *runtime.Instance, cmd *Command) {
	act := cmd.Action
	name := cmd.Type + " " + act.Field
	if act.Type != "invoke" {
		report.skip(cmd.Line, name, "%s actions not supported", act.Type)
		return
	}
	args, err := toValues(act.Args)
	if err != nil {
		report.skip(cmd.Line, name, "%v", err)
		return
	}
	res, err := inst.Invoke(ctx, act.Field, args...)
	if err != nil {
		report.fail(cmd.Line, name, "%v", err)
		return
	}
	if reasons := unsupportedOutcome(inst, res); reasons != "" {
		report.skip(cmd.Line, name, "unsupported: %s", reasons)
		return
	}

	switch cmd.Type {
	case CmdAssertTrap:
		if res.Status != engine.StatusReverted {
			report.fail(cmd.Line, name, "expected trap %q, got %s", cmd.Text, res)
			return
		}
		if !trapMatches(res.RevertReason, cmd.Text) {
			report.fail(cmd.Line, name, "expected trap %q, got %q", cmd.Text, res.RevertReason)
			return
		}
	case CmdAssertExhaustion:
		if res.Status != engine.StatusExhausted {
			report.fail(cmd.Line, name, "expected exhaustion, got %s", res)
			return
		}
	case CmdAssertReturn:
		if detail, ok := checkReturn(res, cmd.Expected); !ok {
			if detail == "" {
				report.skip(cmd.Line, name, "non-integer or multi-value result")
				return
			}
			report.fail(cmd.Line, name, "%s", detail)
			return
		}
	default:
		if res.Status != engine.StatusSuccess {
			report.fail(cmd.Line, name, "%s", res)
			return
		}
	}
	report.pass(cmd.Line, name)
}

func toValues(consts []Const) ([]runtime.Value, error) {
	vals := make([]runtime.Value, len(consts))
	for i, c := range consts {
		bits, err := c.Bits()
		if err != nil {
			return nil, err
		}
		if c.Type == "i32" {
			vals[i] = runtime.U32(uint32(bits))
		} else {
			vals[i] = runtime.U64(bits)
		}
	}
	return vals, nil
}

// checkReturn compares a result with the expected constants. An empty
// detail with ok=false means the expectation cannot be checked.
func checkReturn(res *engine.Result, expected []Const) (detail string, ok bool) {
	if res.Status != engine.StatusSuccess {
		return "expected return, got " + res.String(), false
	}
	switch len(expected) {
	case 0:
		if len(res.ReturnData) != 0 {
			return "expected no result, got " + res.String(), false
		}
		return "", true
	case 1:
	default:
		return "", false
	}
	want, err := expected[0].Bits()
	if err != nil {
		return "", false
	}
	if len(res.ReturnData) != 32 {
		return "expected one result word, got " + res.String(), false
	}
	if got := res.Uint256(); !got.Eq(uint256.NewInt(want)) {
		return "expected " + expected[0].Value + ", got " + got.Dec(), false
	}
	return "", true
}

// unsupportedOutcome returns the unsupported reasons of inst when res could
// have been caused by reaching one of them. Reaching a marker aborts the
// call, directly or through any chain of callers.
func unsupportedOutcome(inst *runtime.Instance, res *engine.Result) string {
	if res.Status != engine.StatusAborted {
		return ""
	}
	return strings.Join(inst.Unsupported(), "; ")
}

// trapMatches reports whether an engine revert reason names the trap the
// script expects.
func trapMatches(reason, text string) bool {
	if reason == "" {
		return false
	}
	return strings.Contains(text, reason) || strings.Contains(reason, text)
}
