package conformance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wippyai/wasm2evm/errors"
	"github.com/wippyai/wasm2evm/wasm"
)

// Command kinds produced by wast2json.
const (
	CmdModule           = "module"
	CmdAssertReturn     = "assert_return"
	CmdAssertTrap       = "assert_trap"
	CmdAction           = "action"
	CmdAssertMalformed  = "assert_malformed"
	CmdAssertInvalid    = "assert_invalid"
	CmdAssertUnlinkable = "assert_unlinkable"
	CmdAssertExhaustion = "assert_exhaustion"
	CmdAssertUninstant  = "assert_uninstantiable"
	CmdRegister         = "register"
)

// Script is a WebAssembly test suite script in wast2json form.
type Script struct {
	SourceFilename string    `json:"source_filename"`
	Commands       []Command `json:"commands"`

	// Dir resolves module filenames. LoadScript sets it to the script's
	// directory.
	Dir string `json:"-"`
}

// Command is one script command. Which fields are set depends on Type.
type Command struct {
	Action   *Action `json:"action,omitempty"`
	Type     string  `json:"type"`
	Filename string  `json:"filename,omitempty"`
	Text     string  `json:"text,omitempty"`
	Expected []Const `json:"expected,omitempty"`
	Line     int     `json:"line"`

	// Module holds an inline binary for programmatic scripts. It takes
	// precedence over Filename.
	Module []byte `json:"-"`
}

// Action is an invocation, or a global read for Type "get".
type Action struct {
	Type  string  `json:"type"`
	Field string  `json:"field"`
	Args  []Const `json:"args"`
}

// Const is a typed constant. Value holds the unsigned decimal bit pattern.
type Const struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// I32 and I64 build integer constants.
func I32(v uint32) Const { return Const{Type: "i32", Value: strconv.FormatUint(uint64(v), 10)} }
func I64(v uint64) Const { return Const{Type: "i64", Value: strconv.FormatUint(v, 10)} }

// ValType returns the WebAssembly type of the constant.
func (c Const) ValType() (wasm.ValType, bool) {
	switch c.Type {
	case "i32":
		return wasm.ValI32, true
	case "i64":
		return wasm.ValI64, true
	case "f32":
		return wasm.ValF32, true
	case "f64":
		return wasm.ValF64, true
	}
	return 0, false
}

// Bits parses an integer constant. Floats and NaN patterns are rejected.
func (c Const) Bits() (uint64, error) {
	var size int
	switch c.Type {
	case "i32":
		size = 32
	case "i64":
		size = 64
	default:
		return 0, errors.Unsupported(errors.PhaseLoad, c.Type+" constant")
	}
	v, err := strconv.ParseUint(c.Value, 10, size)
	if err != nil {
		return 0, errors.Load(fmt.Sprintf("%s constant %q", c.Type, c.Value), err)
	}
	return v, nil
}

// LoadScript reads a wast2json script.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read script", err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, err
	}
	s.Dir = filepath.Dir(path)
	return s, nil
}

// ParseScript decodes a wast2json script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Load("decode script", err)
	}
	return &s, nil
}

// moduleBytes returns the binary a module command refers to.
func (s *Script) moduleBytes(cmd *Command) ([]byte, error) {
	if cmd.Module != nil {
		return cmd.Module, nil
	}
	if cmd.Filename == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("line %d: module without filename", cmd.Line))
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, cmd.Filename))
	if err != nil {
		return nil, errors.Load("read module "+cmd.Filename, err)
	}
	return data, nil
}
