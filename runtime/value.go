package runtime

import (
	"github.com/holiman/uint256"

	"github.com/wippyai/wasm2evm/wasm"
)

// Value is one integer argument, stored as its bit pattern.
type Value struct {
	bits uint64
	typ  wasm.ValType
}

func I32(v int32) Value  { return Value{bits: uint64(uint32(v)), typ: wasm.ValI32} }
func U32(v uint32) Value { return Value{bits: uint64(v), typ: wasm.ValI32} }
func I64(v int64) Value  { return Value{bits: uint64(v), typ: wasm.ValI64} }
func U64(v uint64) Value { return Value{bits: v, typ: wasm.ValI64} }

// Type returns the value's WebAssembly type.
func (v Value) Type() wasm.ValType { return v.typ }

// Bits returns the value's two's-complement bit pattern.
func (v Value) Bits() uint64 { return v.bits }

// Word encodes v as a 32-byte big-endian calldata word.
func (v Value) Word() [32]byte {
	return uint256.NewInt(v.bits).Bytes32()
}

// Calldata concatenates the words of args.
func Calldata(args ...Value) []byte {
	out := make([]byte, 0, len(args)*32)
	for _, a := range args {
		w := a.Word()
		out = append(out, w[:]...)
	}
	return out
}
