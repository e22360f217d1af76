package compiler

import (
	"github.com/wippyai/wasm2evm/wasm"
)

// Handler translates one instruction into target ops.
//
// Handlers are stateless and can be shared across translations. All mutable
// state lives in the Context.
type Handler interface {
	Handle(ctx *Context, instr wasm.Instruction) error
}

// StackEffect describes the operand stack change of an instruction.
type StackEffect struct {
	Pops   int
	Pushes int
}

// StackEffecter is implemented by handlers with a static stack effect. The
// translator applies the effect after Handle returns; other handlers adjust
// the context's height themselves.
type StackEffecter interface {
	StackEffect() StackEffect
}

// Func is an adapter to use ordinary functions as Handlers.
type Func func(ctx *Context, instr wasm.Instruction) error

// Handle implements Handler.
func (f Func) Handle(ctx *Context, instr wasm.Instruction) error {
	return f(ctx, instr)
}

// Registry maps opcodes to their handlers.
type Registry struct {
	handlers [256]Handler
	names    [256]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a handler for a single opcode, replacing any previous one.
// The name is used in logs and error messages.
func (r *Registry) Register(opcode byte, h Handler, name string) {
	r.handlers[opcode] = h
	r.names[opcode] = name
}

// RegisterFunc registers a function as a handler for an opcode.
func (r *Registry) RegisterFunc(opcode byte, fn func(*Context, wasm.Instruction) error, name string) {
	r.Register(opcode, Func(fn), name)
}

// RegisterBulk registers the same handler for multiple opcodes.
func (r *Registry) RegisterBulk(opcodes []byte, h Handler, name string) {
	for _, op := range opcodes {
		r.handlers[op] = h
		r.names[op] = name
	}
}

// Get returns the handler for an opcode, or nil if not registered.
func (r *Registry) Get(opcode byte) Handler {
	return r.handlers[opcode]
}

// Has returns true if a handler is registered for the opcode.
func (r *Registry) Has(opcode byte) bool {
	return r.handlers[opcode] != nil
}

// Name returns the name of the handler for an opcode.
func (r *Registry) Name(opcode byte) string {
	return r.names[opcode]
}

// MissingHandlers returns the opcodes that have no registered handler.
func (r *Registry) MissingHandlers(opcodes []byte) []byte {
	var missing []byte
	for _, op := range opcodes {
		if r.handlers[op] == nil {
			missing = append(missing, op)
		}
	}
	return missing
}

// Clone returns a copy of r that can be extended without affecting r.
func (r *Registry) Clone() *Registry {
	c := *r
	return &c
}

// StructuralOpcodes are translated from the instruction tree rather than
// through the registry.
var StructuralOpcodes = []byte{wasm.OpBlock, wasm.OpLoop, wasm.OpIf, wasm.OpElse, wasm.OpEnd}

// IsStructural reports whether op opens or closes a block.
func IsStructural(op byte) bool {
	for _, s := range StructuralOpcodes {
		if s == op {
			return true
		}
	}
	return false
}
