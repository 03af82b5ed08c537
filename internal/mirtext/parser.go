package mirtext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"

	"vamir/internal/mir"
)

// Parse reads src in the format mir.Print emits and rebuilds the
// functions it describes. Value, block, and callback numbering in the
// rebuilt functions need not match the original dump's — every
// cross-reference is re-resolved by name against a fresh arena — only
// the graph shape and instruction semantics are preserved.
func Parse(src string) ([]*mir.Function, error) {
	parser, err := participle.Build[File](
		participle.Lexer(mirLexer),
		participle.Elide("Whitespace", "Comment"),
		participle.UseLookahead(4),
	)
	if err != nil {
		return nil, fmt.Errorf("mirtext: building parser: %w", err)
	}
	file, err := parser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("mirtext: %w", err)
	}

	fns := make([]*mir.Function, 0, len(file.Functions))
	for _, astFn := range file.Functions {
		fn, err := buildFunc(astFn)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

// pendingPhi is a phi instruction whose Incoming list may reference a
// loop-carried value not yet defined when the phi itself was appended;
// it is patched once every instruction in the function has a value.
type pendingPhi struct {
	inst  mir.Inst
	edges []*PhiEdge
}

func buildFunc(astFn *Func) (*mir.Function, error) {
	fn := mir.NewFunction(astFn.Name)

	blocksByName := make(map[string]mir.Block, len(astFn.Blocks))
	for _, b := range astFn.Blocks {
		blocksByName[b.Name] = fn.AppendBlock()
	}

	vals := make(map[string]mir.Value)
	var pending []pendingPhi

	for _, b := range astFn.Blocks {
		block := blocksByName[b.Name]
		for _, p := range b.Params {
			typ, err := parseType(p.Type)
			if err != nil {
				return nil, err
			}
			vals[p.Name] = fn.MakeParam(block, typ)
		}
	}

	for _, b := range astFn.Blocks {
		block := blocksByName[b.Name]
		for _, inst := range b.Insts {
			if err := buildInst(fn, block, blocksByName, vals, inst, &pending); err != nil {
				return nil, err
			}
		}
	}

	for _, pp := range pending {
		incoming := make([]mir.PhiEdge, len(pp.edges))
		for i, e := range pp.edges {
			pred, ok := blocksByName[e.Pred]
			if !ok {
				return nil, fmt.Errorf("mirtext: phi edge references unknown block %q", e.Pred)
			}
			v, ok := vals[e.Value]
			if !ok {
				return nil, fmt.Errorf("mirtext: phi edge references unknown value %q", e.Value)
			}
			incoming[i] = mir.PhiEdge{Pred: pred, Value: v}
		}
		data := fn.InstKind(pp.inst)
		data.Incoming = incoming
		fn.SetInstData(pp.inst, data)
	}

	return fn, nil
}

func buildInst(fn *mir.Function, block mir.Block, blocksByName map[string]mir.Block, vals map[string]mir.Value, inst *Inst, pending *[]pendingPhi) error {
	switch {
	case inst.FConst != nil:
		f, err := strconv.ParseFloat(inst.FConst.Value, 64)
		if err != nil {
			return fmt.Errorf("mirtext: bad fconst literal %q: %w", inst.FConst.Value, err)
		}
		vals[inst.FConst.Result] = fn.FConst(f)
		return nil
	case inst.IConst != nil:
		n, err := strconv.ParseInt(inst.IConst.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("mirtext: bad iconst literal %q: %w", inst.IConst.Value, err)
		}
		vals[inst.IConst.Result] = fn.IConst(n)
		return nil
	case inst.BConst != nil:
		vals[inst.BConst.Result] = fn.BConst(inst.BConst.Value == "true")
		return nil
	case inst.SConst != nil:
		s, err := strconv.Unquote(inst.SConst.Value)
		if err != nil {
			return fmt.Errorf("mirtext: bad sconst literal %q: %w", inst.SConst.Value, err)
		}
		vals[inst.SConst.Result] = fn.SConst(s)
		return nil
	case inst.Phi != nil:
		typ := mir.Type(mir.Float)
		incoming := make([]mir.PhiEdge, 0, len(inst.Phi.Edges))
		resolved := true
		for _, e := range inst.Phi.Edges {
			pred, ok := blocksByName[e.Pred]
			if !ok {
				return fmt.Errorf("mirtext: phi edge references unknown block %q", e.Pred)
			}
			v, ok := vals[e.Value]
			if !ok {
				resolved = false
				continue
			}
			incoming = append(incoming, mir.PhiEdge{Pred: pred, Value: v})
		}
		if len(incoming) > 0 {
			typ = fn.ValueType(incoming[0].Value)
		}
		id, res := fn.AppendInstTyped(block, mir.InstData{Op: mir.OpPhi, Incoming: incoming}, typ)
		vals[inst.Phi.Result] = res[0]
		if !resolved {
			*pending = append(*pending, pendingPhi{inst: id, edges: inst.Phi.Edges})
		}
		return nil
	case inst.Call != nil:
		args, err := resolveAll(vals, inst.Call.Args)
		if err != nil {
			return err
		}
		callee, err := parseRef(inst.Call.Callee, "fn")
		if err != nil {
			return err
		}
		_, res := fn.AppendInstTyped(block, mir.InstData{Op: mir.OpCall, Callee: mir.FuncRef(callee), Args: args}, mir.Float)
		vals[inst.Call.Result] = res[0]
		return nil
	case inst.OptBar != nil:
		arg, err := resolve(vals, inst.OptBar.Arg)
		if err != nil {
			return err
		}
		_, res := fn.AppendInst(block, mir.InstData{Op: mir.OpOptBarrier, Args: []mir.Value{arg}})
		vals[inst.OptBar.Result] = res[0]
		return nil
	case inst.Br != nil:
		cond, err := resolve(vals, inst.Br.Cond)
		if err != nil {
			return err
		}
		then, ok := blocksByName[inst.Br.Then]
		if !ok {
			return fmt.Errorf("mirtext: br references unknown block %q", inst.Br.Then)
		}
		els, ok := blocksByName[inst.Br.Else]
		if !ok {
			return fmt.Errorf("mirtext: br references unknown block %q", inst.Br.Else)
		}
		fn.AppendInst(block, mir.InstData{Op: mir.OpBr, Cond: cond, Then: then, Else: els})
		return nil
	case inst.Jmp != nil:
		target, ok := blocksByName[inst.Jmp.Target]
		if !ok {
			return fmt.Errorf("mirtext: jmp references unknown block %q", inst.Jmp.Target)
		}
		args, err := resolveAll(vals, inst.Jmp.Args)
		if err != nil {
			return err
		}
		fn.AppendInst(block, mir.InstData{Op: mir.OpJmp, Target: target, JmpArgs: args})
		return nil
	case inst.Return != nil:
		args, err := resolveAll(vals, inst.Return.Args)
		if err != nil {
			return err
		}
		fn.AppendInst(block, mir.InstData{Op: mir.OpReturn, Args: args})
		return nil
	case inst.Arith != nil:
		op, ok := mnemonicToOp[inst.Arith.Op]
		if !ok {
			return fmt.Errorf("mirtext: unknown opcode mnemonic %q", inst.Arith.Op)
		}
		args, err := resolveAll(vals, inst.Arith.Args)
		if err != nil {
			return err
		}
		_, res := fn.AppendInst(block, mir.InstData{Op: op, Args: args})
		vals[inst.Arith.Result] = res[0]
		return nil
	default:
		return fmt.Errorf("mirtext: empty instruction alternative")
	}
}

func resolve(vals map[string]mir.Value, name string) (mir.Value, error) {
	v, ok := vals[name]
	if !ok {
		return mir.InvalidValue, fmt.Errorf("mirtext: reference to unknown value %q", name)
	}
	return v, nil
}

func resolveAll(vals map[string]mir.Value, names []string) ([]mir.Value, error) {
	out := make([]mir.Value, len(names))
	for i, n := range names {
		v, err := resolve(vals, n)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseRef(name, prefix string) (int32, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
	if err != nil {
		return 0, fmt.Errorf("mirtext: malformed reference %q: %w", name, err)
	}
	return int32(n), nil
}

func parseType(name string) (mir.Type, error) {
	switch name {
	case "f64":
		return mir.Float, nil
	case "i32":
		return mir.Int, nil
	case "i1":
		return mir.Bool, nil
	case "br":
		return mir.BranchPtr, nil
	case "str":
		return mir.StringTy, nil
	default:
		return nil, fmt.Errorf("mirtext: unknown type name %q", name)
	}
}

// mnemonicToOp inverts the fixed name table mir.Print uses for every
// binary/unary arithmetic, transcendental, and comparison opcode.
var mnemonicToOp = map[string]mir.Opcode{
	"fadd": mir.OpFAdd, "fsub": mir.OpFSub, "fmul": mir.OpFMul, "fdiv": mir.OpFDiv, "fneg": mir.OpFNeg,
	"exp": mir.OpExp, "ln": mir.OpLn, "log": mir.OpLog10, "sqrt": mir.OpSqrt,
	"sin": mir.OpSin, "cos": mir.OpCos, "tan": mir.OpTan,
	"asin": mir.OpAsin, "acos": mir.OpAcos, "atan": mir.OpAtan,
	"sinh": mir.OpSinh, "cosh": mir.OpCosh, "tanh": mir.OpTanh,
	"asinh": mir.OpAsinh, "acosh": mir.OpAcosh, "atanh": mir.OpAtanh,
	"pow": mir.OpPow, "hypot": mir.OpHypot, "atan2": mir.OpAtan2,
	"iadd": mir.OpIAdd, "isub": mir.OpISub, "imul": mir.OpIMul, "idiv": mir.OpIDiv, "ineg": mir.OpINeg,
	"ieq": mir.OpIEq, "ine": mir.OpINe, "ilt": mir.OpILt, "ile": mir.OpILe, "igt": mir.OpIGt, "ige": mir.OpIGe,
	"feq": mir.OpFEq, "fne": mir.OpFNe, "flt": mir.OpFLt, "fle": mir.OpFLe, "fgt": mir.OpFGt, "fge": mir.OpFGe,
}
