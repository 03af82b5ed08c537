package mir

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders f in the canonical textual MIR format: ASCII, one
// instruction per line, values named vN, blocks blockN, floats in hex
// float notation. This is the "sideways" interface to the code emitter
// and the format internal/mirtext parses back.
func Print(f *Function) string {
	var b strings.Builder
	fmt.Fprintf(&b, "function %s {\n", f.Name)
	for _, block := range f.blockOrder {
		printBlock(&b, f, block)
	}
	b.WriteString("}\n")
	return b.String()
}

func printBlock(b *strings.Builder, f *Function, block Block) {
	params := f.BlockParams(block)
	if len(params) == 0 {
		fmt.Fprintf(b, "%s:\n", block)
	} else {
		names := make([]string, len(params))
		for i, p := range params {
			names[i] = fmt.Sprintf("%s: %s", p, f.ValueType(p))
		}
		fmt.Fprintf(b, "%s(%s):\n", block, strings.Join(names, ", "))
	}
	for _, inst := range f.IterInst(block) {
		b.WriteString("    ")
		b.WriteString(printInst(f, inst))
		b.WriteString("\n")
	}
}

func printInst(f *Function, inst Inst) string {
	d := f.InstKind(inst)
	results := f.InstResults(inst)
	lhs := ""
	if len(results) == 1 {
		lhs = fmt.Sprintf("%s = ", results[0])
	}

	switch d.Op {
	case OpFConst:
		return lhs + "fconst " + FormatFloatHex(d.FloatVal)
	case OpIConst:
		return lhs + fmt.Sprintf("iconst %d", d.IntVal)
	case OpBConst:
		return lhs + fmt.Sprintf("bconst %t", d.BoolVal)
	case OpSConst:
		return lhs + fmt.Sprintf("sconst %q", d.StrVal)
	case OpPhi:
		parts := make([]string, len(d.Incoming))
		for i, e := range d.Incoming {
			parts[i] = fmt.Sprintf("[%s, %s]", e.Value, e.Pred)
		}
		return lhs + "phi " + strings.Join(parts, ", ")
	case OpCall:
		return lhs + fmt.Sprintf("call %s(%s)", d.Callee, joinValues(d.Args))
	case OpOptBarrier:
		return lhs + fmt.Sprintf("optbarrier %s", d.Args[0])
	case OpBr:
		return fmt.Sprintf("br %s, %s, %s", d.Cond, d.Then, d.Else)
	case OpJmp:
		return fmt.Sprintf("jmp %s(%s)", d.Target, joinValues(d.JmpArgs))
	case OpReturn:
		if len(d.Args) == 0 {
			return "return"
		}
		return fmt.Sprintf("return %s", joinValues(d.Args))
	default:
		return lhs + printArith(d)
	}
}

func printArith(d InstData) string {
	name := opcodeName(d.Op)
	if d.Op.IsUnary() {
		return fmt.Sprintf("%s %s", name, d.Args[0])
	}
	return fmt.Sprintf("%s %s, %s", name, d.Args[0], d.Args[1])
}

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

var opcodeNames = map[Opcode]string{
	OpFAdd: "fadd", OpFSub: "fsub", OpFMul: "fmul", OpFDiv: "fdiv", OpFNeg: "fneg",
	OpExp: "exp", OpLn: "ln", OpLog10: "log", OpSqrt: "sqrt",
	OpSin: "sin", OpCos: "cos", OpTan: "tan",
	OpAsin: "asin", OpAcos: "acos", OpAtan: "atan",
	OpSinh: "sinh", OpCosh: "cosh", OpTanh: "tanh",
	OpAsinh: "asinh", OpAcosh: "acosh", OpAtanh: "atanh",
	OpPow: "pow", OpHypot: "hypot", OpAtan2: "atan2",
	OpIAdd: "iadd", OpISub: "isub", OpIMul: "imul", OpIDiv: "idiv", OpINeg: "ineg",
	OpIEq: "ieq", OpINe: "ine", OpILt: "ilt", OpILe: "ile", OpIGt: "igt", OpIGe: "ige",
	OpFEq: "feq", OpFNe: "fne", OpFLt: "flt", OpFLe: "fle", OpFGt: "fgt", OpFGe: "fge",
}

func opcodeName(op Opcode) string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return "?"
}

// FormatFloatHex renders v in canonical hex float notation with no '+'
// on the exponent (a negative exponent keeps its '-') and a fixed 13
// hex-digit mantissa, e.g.
// `0x1.0000000000000p0`.
func FormatFloatHex(v float64) string {
	s := strconv.FormatFloat(v, 'x', -1, 64)
	// strconv produces e.g. "0x1p+00" or "0x1.8p+01" or "-0x1p+00".
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	pIdx := strings.IndexByte(s, 'p')
	mantissa := s[:pIdx]
	exp := s[pIdx+1:]
	exp = strings.TrimPrefix(exp, "+")
	expVal, _ := strconv.Atoi(exp)
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0000000000000"
	} else {
		dotIdx := strings.IndexByte(mantissa, '.')
		frac := mantissa[dotIdx+1:]
		for len(frac) < 13 {
			frac += "0"
		}
		mantissa = mantissa[:dotIdx+1] + frac
	}
	out := fmt.Sprintf("%sp%d", mantissa, expVal)
	if neg {
		out = "-" + out
	}
	return out
}
