package mir

import "fmt"

// Every cross-reference in the function is a dense, non-owning index
// handle into one of the function's arenas — never a pointer. This keeps
// the cyclic graphs that phi nodes create (a block's predecessor can be
// reached again through a later instruction) representable without
// reference-counting or unsafe aliasing. See DESIGN.md for the rationale.

// Value identifies the result of an instruction or a block parameter.
type Value int32

// InvalidValue is returned where "no value" needs to be distinguished
// from Value(0), which is a legitimate handle.
const InvalidValue Value = -1

func (v Value) String() string { return fmt.Sprintf("v%d", int32(v)) }

// Valid reports whether v refers to a real arena slot.
func (v Value) Valid() bool { return v >= 0 }

// Inst identifies an instruction (terminators included).
type Inst int32

const InvalidInst Inst = -1

func (i Inst) String() string { return fmt.Sprintf("inst%d", int32(i)) }
func (i Inst) Valid() bool    { return i >= 0 }

// Block identifies a basic block.
type Block int32

const InvalidBlock Block = -1

func (b Block) String() string { return fmt.Sprintf("block%d", int32(b)) }
func (b Block) Valid() bool    { return b >= 0 }

// FuncRef identifies an external callback slot (print, simparam, noise,
// limit, derivative pseudo-call, …). The core never calls through it
// directly; it only records that a `call` instruction targets it.
type FuncRef int32

const InvalidFuncRef FuncRef = -1

func (f FuncRef) String() string { return fmt.Sprintf("fn%d", int32(f)) }
