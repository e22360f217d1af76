package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm2evm/assembler"
	"github.com/wippyai/wasm2evm/compiler"
	"github.com/wippyai/wasm2evm/conformance"
	"github.com/wippyai/wasm2evm/engine"
	"github.com/wippyai/wasm2evm/runtime"
	"github.com/wippyai/wasm2evm/wasm"
)

type options struct {
	wasmFile string
	funcName string
	args     string
	script   string
	gas      uint64
	list     bool
	disasm   bool
	strict   bool
	validate bool
	trace    bool
}

func main() {
	var (
		o           options
		interactive bool
		verbose     bool
	)
	flag.StringVar(&o.wasmFile, "wasm", "", "Path to module wasm file")
	flag.StringVar(&o.funcName, "func", "", "Exported function to call")
	flag.StringVar(&o.args, "args", "", "Comma-separated integer arguments")
	flag.StringVar(&o.script, "script", "", "Run a wast2json conformance script instead")
	flag.Uint64Var(&o.gas, "gas", engine.DefaultGasLimit, "Gas limit per deployment and call")
	flag.BoolVar(&o.list, "list", false, "List exported functions and exit")
	flag.BoolVar(&o.disasm, "disasm", false, "Print the compiled code of -func, or of every export")
	flag.BoolVar(&o.strict, "strict", false, "Reject unsupported operations at compile time")
	flag.BoolVar(&o.validate, "validate", true, "Validate the module with wazero before compiling")
	flag.BoolVar(&o.trace, "trace", false, "Log every executed instruction (implies -v)")
	flag.BoolVar(&interactive, "i", false, "Interactive mode with TUI")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if o.wasmFile == "" && o.script == "" {
		fmt.Fprintln(os.Stderr, "Usage: wasm2evm -wasm <file.wasm> [-func name] [-args 1,2]")
		fmt.Fprintln(os.Stderr, "       wasm2evm -wasm <file.wasm> -list | -disasm")
		fmt.Fprintln(os.Stderr, "       wasm2evm -wasm <file.wasm> -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       wasm2evm -script <file.json>")
		os.Exit(1)
	}

	if verbose || o.trace {
		if err := setupLogging(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(o); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(context.Background(), os.Stdout, o); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging() error {
	l, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	compiler.SetLogger(l)
	engine.SetLogger(l)
	runtime.SetLogger(l)
	conformance.SetLogger(l)
	return nil
}

func (o options) runtimeOptions() []runtime.Option {
	return []runtime.Option{
		runtime.WithStrict(o.strict),
		runtime.WithValidation(o.validate),
		runtime.WithTracing(o.trace),
		runtime.WithGasLimit(o.gas),
	}
}

func run(ctx context.Context, w io.Writer, o options) error {
	if o.script != "" {
		return runScript(ctx, w, o)
	}

	data, err := os.ReadFile(o.wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	rt, err := runtime.New(o.runtimeOptions()...)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	inst, err := rt.Instantiate(ctx, data)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}

	fmt.Fprintf(w, "Module: %s\n", o.wasmFile)
	fmt.Fprintf(w, "Functions: %d\n", len(inst.Module().Funcs))
	fmt.Fprintf(w, "\nExported functions:\n")
	exports := inst.Exports()
	for _, exp := range exports {
		u, _ := inst.Unit(exp.Name)
		note := ""
		if n := len(u.Compiled.Unsupported); n > 0 {
			note = fmt.Sprintf("  [%d unsupported]", n)
		}
		fmt.Fprintf(w, "  %s%s  %s  %d bytes%s\n",
			exp.Name, exp.Signature, exp.Address.Hex(), len(u.Compiled.Runtime), note)
	}
	if reasons := inst.Unsupported(); len(reasons) > 0 {
		fmt.Fprintf(w, "\nUnsupported operations:\n")
		for _, r := range reasons {
			fmt.Fprintf(w, "  %s\n", r)
		}
	}

	if o.list {
		return nil
	}

	if o.disasm {
		names := []string{o.funcName}
		if o.funcName == "" {
			names = names[:0]
			for _, exp := range exports {
				names = append(names, exp.Name)
			}
		}
		for _, name := range names {
			if err := printListing(w, inst, name); err != nil {
				return err
			}
		}
		return nil
	}

	funcName := o.funcName
	if funcName == "" {
		for _, name := range []string{"_start", "run", "main"} {
			if _, ok := inst.Unit(name); ok {
				funcName = name
				break
			}
		}
		if funcName == "" && len(exports) == 1 {
			funcName = exports[0].Name
		}
		if funcName == "" {
			fmt.Fprintf(w, "\nNo function specified and no common entry point found.\n")
			fmt.Fprintf(w, "Use -func to specify a function to call.\n")
			return nil
		}
	}

	u, ok := inst.Unit(funcName)
	if !ok {
		return fmt.Errorf("export %q not found", funcName)
	}
	args, err := parseArgs(o.args, u.Signature())
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nCalling %s(%s)...\n", funcName, o.args)
	res, err := inst.Invoke(ctx, funcName, args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}
	printResult(w, res, u.Signature())
	if res.Status != engine.StatusSuccess {
		return fmt.Errorf("call %s: %s", funcName, res.Status)
	}
	return nil
}

func printResult(w io.Writer, res *engine.Result, sig wasm.FuncType) {
	fmt.Fprintf(w, "Status: %s\n", res.Status)
	switch res.Status {
	case engine.StatusSuccess:
		if out := formatResult(res.U64(), sig); out != "" {
			fmt.Fprintf(w, "Result: %s\n", out)
		}
	case engine.StatusReverted:
		fmt.Fprintf(w, "Trap: %s\n", res.RevertReason)
	default:
		if res.Err != nil {
			fmt.Fprintf(w, "Error: %v\n", res.Err)
		}
	}
	fmt.Fprintf(w, "Gas used: %d\n", res.GasUsed)
}

func printListing(w io.Writer, inst *runtime.Instance, name string) error {
	u, ok := inst.Unit(name)
	if !ok {
		return fmt.Errorf("export %q not found", name)
	}
	prog := &assembler.Program{Labels: u.Compiled.Labels, Code: u.Compiled.Runtime}
	listing, err := prog.Listing()
	if err != nil {
		return fmt.Errorf("disassemble %s: %w", name, err)
	}

	fmt.Fprintf(w, "\n%s %s (%d bytes):\n", name, u.Signature(), len(u.Compiled.Runtime))
	color := term.IsTerminal(int(os.Stdout.Fd()))
	for _, line := range strings.Split(strings.TrimRight(listing, "\n"), "\n") {
		if color && strings.HasSuffix(line, ":") {
			line = labelStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func runScript(ctx context.Context, w io.Writer, o options) error {
	s, err := conformance.LoadScript(o.script)
	if err != nil {
		return err
	}
	report, err := conformance.NewRunner(o.runtimeOptions()...).Run(ctx, s)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, report)
	if !report.OK() {
		return fmt.Errorf("%d of %d commands failed", report.Failed, len(report.Results))
	}
	return nil
}

var labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
