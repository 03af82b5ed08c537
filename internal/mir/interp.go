package mir

import "math"

// Interp is a tiny, non-optimizing interpreter used only by tests. It
// never runs as part of compilation itself — it exists so passes can be
// checked against a ground-truth evaluation. It evaluates every
// float/int/bool instruction plus phi,
// br, jmp and return, and treats OpCall as an escape hatch the caller
// resolves via callFn (defaulting to 0 for unmodeled callbacks, matching
// the AD pass's "derivative across arbitrary callbacks defaults to
// zero" rule applied at the value level too).
type Interp struct {
	fn     *Function
	values map[Value]any
	callFn func(callee FuncRef, args []any) any
}

// NewInterp creates an interpreter over fn with the given initial
// parameter bindings (typically the function's Params from a
// hirlower.HirInterner, or block-0 parameters in a standalone test function).
func NewInterp(fn *Function, params map[Value]float64) *Interp {
	values := make(map[Value]any, len(params))
	for v, x := range params {
		values[v] = x
	}
	return &Interp{fn: fn, values: values}
}

// WithCallFn installs a resolver for OpCall instructions.
func (ip *Interp) WithCallFn(f func(FuncRef, []any) any) *Interp {
	ip.callFn = f
	return ip
}

// Run executes the function starting at its entry block (the first
// block in layout order, which is also the constant pool's preamble
// block) and returns the operand values of the final
// `return`, plus every optbarrier observation in evaluation order.
func (ip *Interp) Run() (ret []float64, barriers []float64) {
	order := ip.fn.BlockOrder()
	if len(order) == 0 {
		return nil, nil
	}
	block := order[0]
	var prev Block = InvalidBlock
	for {
		for _, inst := range ip.fn.IterInst(block) {
			d := ip.fn.InstKind(inst)
			results := ip.fn.InstResults(inst)
			switch d.Op {
			case OpBr, OpJmp, OpReturn:
				// handled after the loop
			case OpPhi:
				for _, e := range d.Incoming {
					if e.Pred == prev {
						ip.values[results[0]] = ip.values[e.Value]
						break
					}
				}
			default:
				ip.values[results[0]] = ip.eval(d)
			}
		}
		term, ok := ip.fn.Terminator(block)
		if !ok {
			return nil, ip.barriers()
		}
		d := ip.fn.InstKind(term)
		switch d.Op {
		case OpReturn:
			out := make([]float64, len(d.Args))
			for i, a := range d.Args {
				out[i] = ip.asFloat(ip.values[a])
			}
			return out, ip.barriers()
		case OpBr:
			cond := ip.values[d.Cond].(bool)
			prev = block
			if cond {
				block = d.Then
			} else {
				block = d.Else
			}
		case OpJmp:
			for i, p := range ip.fn.BlockParams(d.Target) {
				ip.values[p] = ip.values[d.JmpArgs[i]]
			}
			prev = block
			block = d.Target
		}
	}
}

func (ip *Interp) barriers() []float64 {
	var out []float64
	for _, b := range ip.fn.BlockOrder() {
		for _, inst := range ip.fn.IterInst(b) {
			d := ip.fn.InstKind(inst)
			if d.Op == OpOptBarrier {
				out = append(out, ip.asFloat(ip.values[d.Args[0]]))
			}
		}
	}
	return out
}

func (ip *Interp) asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func (ip *Interp) operand(v Value) any {
	if val, ok := ip.values[v]; ok {
		return val
	}
	// Constants are defined in the preamble but may not have been
	// visited yet if it isn't the entry block in this Run (e.g. the
	// preamble is block0 and we start elsewhere); evaluate lazily.
	if inst, ok := ip.fn.ValueDef(v); ok {
		r := ip.eval(ip.fn.InstKind(inst))
		ip.values[v] = r
		return r
	}
	return float64(0)
}

func (ip *Interp) f(v Value) float64 { return ip.asFloat(ip.operand(v)) }

func (ip *Interp) eval(d InstData) any {
	switch d.Op {
	case OpFConst:
		return d.FloatVal
	case OpIConst:
		return d.IntVal
	case OpBConst:
		return d.BoolVal
	case OpSConst:
		return d.StrVal
	case OpFAdd:
		return ip.f(d.Args[0]) + ip.f(d.Args[1])
	case OpFSub:
		return ip.f(d.Args[0]) - ip.f(d.Args[1])
	case OpFMul:
		return ip.f(d.Args[0]) * ip.f(d.Args[1])
	case OpFDiv:
		return ip.f(d.Args[0]) / ip.f(d.Args[1])
	case OpFNeg:
		return -ip.f(d.Args[0])
	case OpExp:
		return math.Exp(ip.f(d.Args[0]))
	case OpLn:
		return math.Log(ip.f(d.Args[0]))
	case OpLog10:
		return math.Log10(ip.f(d.Args[0]))
	case OpSqrt:
		return math.Sqrt(ip.f(d.Args[0]))
	case OpSin:
		return math.Sin(ip.f(d.Args[0]))
	case OpCos:
		return math.Cos(ip.f(d.Args[0]))
	case OpTan:
		return math.Tan(ip.f(d.Args[0]))
	case OpAsin:
		return math.Asin(ip.f(d.Args[0]))
	case OpAcos:
		return math.Acos(ip.f(d.Args[0]))
	case OpAtan:
		return math.Atan(ip.f(d.Args[0]))
	case OpSinh:
		return math.Sinh(ip.f(d.Args[0]))
	case OpCosh:
		return math.Cosh(ip.f(d.Args[0]))
	case OpTanh:
		return math.Tanh(ip.f(d.Args[0]))
	case OpAsinh:
		return math.Asinh(ip.f(d.Args[0]))
	case OpAcosh:
		return math.Acosh(ip.f(d.Args[0]))
	case OpAtanh:
		return math.Atanh(ip.f(d.Args[0]))
	case OpPow:
		return math.Pow(ip.f(d.Args[0]), ip.f(d.Args[1]))
	case OpHypot:
		return math.Hypot(ip.f(d.Args[0]), ip.f(d.Args[1]))
	case OpAtan2:
		return math.Atan2(ip.f(d.Args[0]), ip.f(d.Args[1]))
	case OpIAdd:
		return ip.i(d.Args[0]) + ip.i(d.Args[1])
	case OpISub:
		return ip.i(d.Args[0]) - ip.i(d.Args[1])
	case OpIMul:
		return ip.i(d.Args[0]) * ip.i(d.Args[1])
	case OpIDiv:
		return ip.i(d.Args[0]) / ip.i(d.Args[1])
	case OpINeg:
		return -ip.i(d.Args[0])
	case OpIEq:
		return ip.i(d.Args[0]) == ip.i(d.Args[1])
	case OpINe:
		return ip.i(d.Args[0]) != ip.i(d.Args[1])
	case OpILt:
		return ip.i(d.Args[0]) < ip.i(d.Args[1])
	case OpILe:
		return ip.i(d.Args[0]) <= ip.i(d.Args[1])
	case OpIGt:
		return ip.i(d.Args[0]) > ip.i(d.Args[1])
	case OpIGe:
		return ip.i(d.Args[0]) >= ip.i(d.Args[1])
	case OpFEq:
		return ip.f(d.Args[0]) == ip.f(d.Args[1])
	case OpFNe:
		return ip.f(d.Args[0]) != ip.f(d.Args[1])
	case OpFLt:
		return ip.f(d.Args[0]) < ip.f(d.Args[1])
	case OpFLe:
		return ip.f(d.Args[0]) <= ip.f(d.Args[1])
	case OpFGt:
		return ip.f(d.Args[0]) > ip.f(d.Args[1])
	case OpFGe:
		return ip.f(d.Args[0]) >= ip.f(d.Args[1])
	case OpOptBarrier:
		return ip.operand(d.Args[0])
	case OpCall:
		args := make([]any, len(d.Args))
		for i, a := range d.Args {
			args[i] = ip.operand(a)
		}
		if ip.callFn != nil {
			return ip.callFn(d.Callee, args)
		}
		return float64(0)
	default:
		return float64(0)
	}
}

func (ip *Interp) i(v Value) int64 {
	switch x := ip.operand(v).(type) {
	case int64:
		return x
	case float64:
		return int64(x)
	default:
		return 0
	}
}
