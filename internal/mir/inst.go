package mir

// Opcode enumerates the MIR's closed instruction set. The
// set is fixed and small on purpose: every pass in internal/mir/opt and
// internal/autodiff matches over it exhaustively rather than dispatching
// through open-ended polymorphism (see DESIGN.md "dispatch over
// instruction kinds").
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// Float arithmetic.
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFNeg

	// Unary transcendentals.
	OpExp
	OpLn
	OpLog10
	OpSqrt
	OpSin
	OpCos
	OpTan
	OpAsin
	OpAcos
	OpAtan
	OpSinh
	OpCosh
	OpTanh
	OpAsinh
	OpAcosh
	OpAtanh

	// Binary transcendentals.
	OpPow
	OpHypot
	OpAtan2

	// Integer arithmetic.
	OpIAdd
	OpISub
	OpIMul
	OpIDiv
	OpINeg

	// Integer comparisons.
	OpIEq
	OpINe
	OpILt
	OpILe
	OpIGt
	OpIGe

	// Float comparisons.
	OpFEq
	OpFNe
	OpFLt
	OpFLe
	OpFGt
	OpFGe

	// Constants (canonicalized into the preamble via the const pool).
	OpFConst
	OpIConst
	OpBConst
	OpSConst

	// Control/value plumbing.
	OpPhi
	OpCall
	OpOptBarrier

	// Terminators.
	OpBr
	OpJmp
	OpReturn
)

var binaryArithOps = map[Opcode]bool{
	OpFAdd: true, OpFSub: true, OpFMul: true, OpFDiv: true,
	OpPow: true, OpHypot: true, OpAtan2: true,
	OpIAdd: true, OpISub: true, OpIMul: true, OpIDiv: true,
	OpIEq: true, OpINe: true, OpILt: true, OpILe: true, OpIGt: true, OpIGe: true,
	OpFEq: true, OpFNe: true, OpFLt: true, OpFLe: true, OpFGt: true, OpFGe: true,
}

var unaryArithOps = map[Opcode]bool{
	OpFNeg: true, OpINeg: true,
	OpExp: true, OpLn: true, OpLog10: true, OpSqrt: true,
	OpSin: true, OpCos: true, OpTan: true,
	OpAsin: true, OpAcos: true, OpAtan: true,
	OpSinh: true, OpCosh: true, OpTanh: true,
	OpAsinh: true, OpAcosh: true, OpAtanh: true,
}

// IsTerminator reports whether the opcode ends a basic block.
func (op Opcode) IsTerminator() bool {
	return op == OpBr || op == OpJmp || op == OpReturn
}

// IsConst reports whether the opcode is a preamble-only constant.
func (op Opcode) IsConst() bool {
	return op == OpFConst || op == OpIConst || op == OpBConst || op == OpSConst
}

func (op Opcode) IsBinary() bool { return binaryArithOps[op] }
func (op Opcode) IsUnary() bool  { return unaryArithOps[op] }

// PhiEdge is one `[value, predecessor-block]` pair of a phi instruction.
// Order matters: it must match the owning block's predecessor order.
type PhiEdge struct {
	Pred  Block
	Value Value
}

// JmpArg binds a value to one of the jump target's block parameters.
type JmpArg struct {
	Value Value
}

// InstData is the payload of one instruction. Only the fields relevant to
// Op are meaningful; this keeps the tagged-union instruction shape as a
// single Go struct so every pass can switch on Op without a type
// assertion per opcode.
type InstData struct {
	Op Opcode

	// Generic operands, used by arithmetic/compare/call/optbarrier/return.
	Args []Value

	// OpPhi.
	Incoming []PhiEdge

	// OpCall.
	Callee FuncRef

	// OpBr.
	Cond  Value
	Then  Block
	Else  Block

	// OpJmp.
	Target   Block
	JmpArgs  []Value

	// Constants.
	FloatVal float64
	IntVal   int64
	BoolVal  bool
	StrVal   string
}

// Operands returns every Value read by this instruction, in a stable
// order, regardless of opcode.
func (d *InstData) Operands() []Value {
	switch d.Op {
	case OpPhi:
		ops := make([]Value, len(d.Incoming))
		for i, e := range d.Incoming {
			ops[i] = e.Value
		}
		return ops
	case OpBr:
		return []Value{d.Cond}
	case OpJmp:
		return append([]Value(nil), d.JmpArgs...)
	default:
		return append([]Value(nil), d.Args...)
	}
}

// ResultType infers the type of the (single) result this instruction
// produces, given the types of its operands. Constants and comparisons
// have a fixed type; any other opcode takes its first operand's type, or
// Float when it has none. A phi's or call's real type is not inferred
// here: callers that know it record it in the Function's value table.
func (d *InstData) ResultType(operandType func(Value) Type) Type {
	switch d.Op {
	case OpFConst:
		return Float
	case OpIConst:
		return Int
	case OpBConst:
		return Bool
	case OpSConst:
		return StringTy
	case OpIEq, OpINe, OpILt, OpILe, OpIGt, OpIGe,
		OpFEq, OpFNe, OpFLt, OpFLe, OpFGt, OpFGe:
		return Bool
	case OpIAdd, OpISub, OpIMul, OpIDiv, OpINeg:
		return Int
	default:
		if len(d.Args) > 0 {
			return operandType(d.Args[0])
		}
		return Float
	}
}
