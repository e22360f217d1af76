package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/wasm2evm/runtime"
	"github.com/wippyai/wasm2evm/wasm"
)

// parseValue reads a decimal or 0x-prefixed argument. Negative values
// are taken as two's complement at the parameter's width.
func parseValue(s string, t wasm.ValType) (runtime.Value, error) {
	s = strings.TrimSpace(s)
	bits := 64
	if t == wasm.ValI32 {
		bits = 32
	} else if t != wasm.ValI64 {
		return runtime.Value{}, fmt.Errorf("%s parameters are not supported", t)
	}

	var (
		u   uint64
		err error
	)
	if strings.HasPrefix(s, "-") {
		var v int64
		v, err = strconv.ParseInt(s, 0, bits)
		u = uint64(v)
	} else {
		u, err = strconv.ParseUint(s, 0, bits)
	}
	if err != nil {
		return runtime.Value{}, fmt.Errorf("parse %s argument %q: %w", t, s, err)
	}
	if t == wasm.ValI32 {
		return runtime.U32(uint32(u)), nil
	}
	return runtime.U64(u), nil
}

// parseArgs splits a comma-separated argument list and types it by sig.
func parseArgs(list string, sig wasm.FuncType) ([]runtime.Value, error) {
	var fields []string
	if strings.TrimSpace(list) != "" {
		fields = strings.Split(list, ",")
	}
	if len(fields) != len(sig.Params) {
		return nil, fmt.Errorf("expected %d arguments for %s, got %d", len(sig.Params), sig, len(fields))
	}
	args := make([]runtime.Value, len(fields))
	for i, f := range fields {
		v, err := parseValue(f, sig.Params[i])
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// formatResult renders a result word at the width of sig's result, both
// unsigned and signed when they differ.
func formatResult(word uint64, sig wasm.FuncType) string {
	if len(sig.Results) != 1 {
		return ""
	}
	switch sig.Results[0] {
	case wasm.ValI32:
		u := uint32(word)
		if int32(u) < 0 {
			return fmt.Sprintf("%d (%d)", u, int32(u))
		}
		return strconv.FormatUint(uint64(u), 10)
	default:
		if int64(word) < 0 {
			return fmt.Sprintf("%d (%d)", word, int64(word))
		}
		return strconv.FormatUint(word, 10)
	}
}
