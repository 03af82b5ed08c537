// Package autodiff implements forward-mode, source-level automatic
// differentiation over the compiler's MIR. A "ddx" call is a normal OpCall
// whose callee is registered as a derivative pseudo-function: its single
// argument is some MIR value, and the call's result must become that
// value's derivative with respect to a seeded set of base values.
// Differentiation is recursive and memoized, so a chain of nested ddx
// calls over the same value (second, third, ... order derivatives)
// resolves correctly: once a call is rewritten in place to the real
// arithmetic computing its derivative, any later call differentiating
// that result differentiates the rewritten expression, not the call.
package autodiff

import "vamir/internal/mir"

// invLn10 is 1/ln(10), used by the log10 derivative rule.
const invLn10 = 0x1.bcb7b1526e50ep-2

// Target names one registered ddx pseudo-function and the seed vector
// it differentiates with respect to: Seeds[v] is the value of dv/dx for
// every base value v the caller treats as an independent coordinate
// (usually a single entry mapping one free value to 1.0, but a node
// voltage built from several branch values can seed more than one).
type Target struct {
	Callee mir.FuncRef
	Seeds  map[mir.Value]float64
}

// Differentiate rewrites every OpCall to one of targets' callees, in
// place, with the chain-ruled derivative of its argument. It returns
// whether anything changed. Functions must be free of unresolved ddx
// calls before they reach the optimizer's Final stage.
func Differentiate(f *mir.Function, targets []Target) bool {
	changed := false
	for _, t := range targets {
		d := &differ{fn: f, seeds: t.Seeds, cache: make(map[mir.Value]mir.Value)}
		for _, b := range f.BlockOrder() {
			for _, inst := range f.IterInst(b) {
				data := f.InstKind(inst)
				if data.Op != mir.OpCall || data.Callee != t.Callee {
					continue
				}
				d.call = inst
				result := d.derivative(data.Args[0])
				f.SetInstData(inst, mir.InstData{Op: mir.OpFAdd, Args: []mir.Value{result, f.FConst(0)}})
				changed = true
			}
		}
	}
	return changed
}

// differ carries the memoization cache and seed vector for one target's
// pass over the function, plus the ddx call currently being resolved. A
// fresh differ is used per target since the same value can have a
// different derivative with respect to each one.
type differ struct {
	fn    *mir.Function
	seeds map[mir.Value]float64
	cache map[mir.Value]mir.Value
	call  mir.Inst
}

func (d *differ) derivative(v mir.Value) mir.Value {
	if r, ok := d.cache[v]; ok {
		return r
	}
	// Guard against revisiting v while it is already being computed
	// (a value can only be its own operand through a phi, which is
	// handled separately by inserting the new phi before recursing into
	// its incoming edges), so no cycle-breaking placeholder is needed
	// here beyond the memoization itself.
	r := d.compute(v)
	d.cache[v] = r
	return r
}

func (d *differ) compute(v mir.Value) mir.Value {
	if c, ok := d.seeds[v]; ok {
		return d.fn.FConst(c)
	}
	inst, ok := d.fn.ValueDef(v)
	if !ok {
		// A block parameter outside the seed set is an independent
		// coordinate: its derivative against this target is zero.
		return d.fn.FConst(0)
	}
	data := d.fn.InstKind(inst)
	if data.Op.IsConst() {
		return d.fn.FConst(0)
	}
	if data.Op == mir.OpPhi {
		return d.phiRule(v, inst, data)
	}
	if data.Op == mir.OpCall || data.Op == mir.OpOptBarrier {
		// Calls to ordinary (non-ddx) callbacks and opt-barriers are
		// opaque: without a registered derivative rule for the callee,
		// the safe default is that the observation carries no gradient.
		return d.fn.FConst(0)
	}
	// An instruction none of whose operands carries a gradient has none
	// itself: its derivative is the canonical zero, with no arithmetic.
	zero := d.fn.FConst(0)
	carries := false
	for _, a := range data.Args {
		if d.derivative(a) != zero {
			carries = true
		}
	}
	if !carries {
		return zero
	}
	block := d.fn.InstBlock(inst)
	return d.rule(block, data, v)
}

func (d *differ) phiRule(v mir.Value, inst mir.Inst, data mir.InstData) mir.Value {
	block := d.fn.InstBlock(inst)
	zero := d.fn.FConst(0)
	incoming := make([]mir.PhiEdge, len(data.Incoming))
	for i, e := range data.Incoming {
		incoming[i] = mir.PhiEdge{Pred: e.Pred, Value: zero}
	}
	phiData := mir.InstData{Op: mir.OpPhi, Incoming: incoming}
	var phi mir.Inst
	var res []mir.Value
	if at, ok := d.fn.FirstNonPhi(block); ok {
		phi, res = d.fn.InsertInstBefore(at, phiData, mir.Float)
	} else {
		phi, res = d.fn.AppendInst(block, phiData)
	}
	// The new phi is cached before its edges are visited, so an edge
	// that leads back to v (a loop) finds this phi instead of recursing.
	d.cache[v] = res[0]
	for i, e := range data.Incoming {
		incoming[i].Value = d.derivative(e.Value)
	}
	d.fn.SetInstData(phi, mir.InstData{Op: mir.OpPhi, Incoming: incoming})
	return res[0]
}

// rule applies the chain rule for the instruction that defines v,
// emitting whatever new arithmetic it needs in block: right before the
// ddx call being resolved when that call sits in block, otherwise before
// block's terminator, so every new value is available to the rewritten
// call and to anything block dominates.
func (d *differ) rule(block mir.Block, data mir.InstData, v mir.Value) mir.Value {
	switch data.Op {
	case mir.OpFAdd:
		a, b := d.derivative(data.Args[0]), d.derivative(data.Args[1])
		return d.bin(block, mir.OpFAdd, a, b)
	case mir.OpFSub:
		a, b := d.derivative(data.Args[0]), d.derivative(data.Args[1])
		return d.bin(block, mir.OpFSub, a, b)
	case mir.OpFMul:
		x, y := data.Args[0], data.Args[1]
		dx, dy := d.derivative(x), d.derivative(y)
		left := d.bin(block, mir.OpFMul, dx, y)
		right := d.bin(block, mir.OpFMul, x, dy)
		return d.bin(block, mir.OpFAdd, left, right)
	case mir.OpFDiv:
		x, y := data.Args[0], data.Args[1]
		dx, dy := d.derivative(x), d.derivative(y)
		num := d.bin(block, mir.OpFSub, d.bin(block, mir.OpFMul, dx, y), d.bin(block, mir.OpFMul, x, dy))
		den := d.bin(block, mir.OpFMul, y, y)
		return d.bin(block, mir.OpFDiv, num, den)
	case mir.OpFNeg:
		return d.un(block, mir.OpFNeg, d.derivative(data.Args[0]))
	case mir.OpExp:
		da := d.derivative(data.Args[0])
		return d.bin(block, mir.OpFMul, da, v)
	case mir.OpLn:
		da := d.derivative(data.Args[0])
		return d.bin(block, mir.OpFDiv, da, data.Args[0])
	case mir.OpLog10:
		da := d.derivative(data.Args[0])
		denom := d.bin(block, mir.OpFMul, data.Args[0], d.fn.FConst(1/invLn10))
		return d.bin(block, mir.OpFDiv, da, denom)
	case mir.OpSqrt:
		da := d.derivative(data.Args[0])
		two := d.bin(block, mir.OpFMul, d.fn.FConst(2), v)
		return d.bin(block, mir.OpFDiv, da, two)
	case mir.OpSin:
		da := d.derivative(data.Args[0])
		cosA := d.un(block, mir.OpCos, data.Args[0])
		return d.bin(block, mir.OpFMul, da, cosA)
	case mir.OpCos:
		da := d.derivative(data.Args[0])
		sinA := d.un(block, mir.OpSin, data.Args[0])
		neg := d.un(block, mir.OpFNeg, sinA)
		return d.bin(block, mir.OpFMul, da, neg)
	case mir.OpTan:
		da := d.derivative(data.Args[0])
		cosA := d.un(block, mir.OpCos, data.Args[0])
		cos2 := d.bin(block, mir.OpFMul, cosA, cosA)
		return d.bin(block, mir.OpFDiv, da, cos2)
	case mir.OpAsin:
		da := d.derivative(data.Args[0])
		sq := d.bin(block, mir.OpFMul, data.Args[0], data.Args[0])
		under := d.bin(block, mir.OpFSub, d.fn.FConst(1), sq)
		return d.bin(block, mir.OpFDiv, da, d.un(block, mir.OpSqrt, under))
	case mir.OpAcos:
		da := d.derivative(data.Args[0])
		sq := d.bin(block, mir.OpFMul, data.Args[0], data.Args[0])
		under := d.bin(block, mir.OpFSub, d.fn.FConst(1), sq)
		quot := d.bin(block, mir.OpFDiv, da, d.un(block, mir.OpSqrt, under))
		return d.un(block, mir.OpFNeg, quot)
	case mir.OpAtan:
		da := d.derivative(data.Args[0])
		sq := d.bin(block, mir.OpFMul, data.Args[0], data.Args[0])
		den := d.bin(block, mir.OpFAdd, d.fn.FConst(1), sq)
		return d.bin(block, mir.OpFDiv, da, den)
	case mir.OpSinh:
		da := d.derivative(data.Args[0])
		return d.bin(block, mir.OpFMul, da, d.un(block, mir.OpCosh, data.Args[0]))
	case mir.OpCosh:
		da := d.derivative(data.Args[0])
		return d.bin(block, mir.OpFMul, da, d.un(block, mir.OpSinh, data.Args[0]))
	case mir.OpTanh:
		da := d.derivative(data.Args[0])
		sq := d.bin(block, mir.OpFMul, v, v)
		rest := d.bin(block, mir.OpFSub, d.fn.FConst(1), sq)
		return d.bin(block, mir.OpFMul, da, rest)
	case mir.OpAsinh:
		da := d.derivative(data.Args[0])
		sq := d.bin(block, mir.OpFMul, data.Args[0], data.Args[0])
		under := d.bin(block, mir.OpFAdd, sq, d.fn.FConst(1))
		return d.bin(block, mir.OpFDiv, da, d.un(block, mir.OpSqrt, under))
	case mir.OpAcosh:
		da := d.derivative(data.Args[0])
		sq := d.bin(block, mir.OpFMul, data.Args[0], data.Args[0])
		under := d.bin(block, mir.OpFSub, sq, d.fn.FConst(1))
		return d.bin(block, mir.OpFDiv, da, d.un(block, mir.OpSqrt, under))
	case mir.OpAtanh:
		da := d.derivative(data.Args[0])
		sq := d.bin(block, mir.OpFMul, data.Args[0], data.Args[0])
		den := d.bin(block, mir.OpFSub, d.fn.FConst(1), sq)
		return d.bin(block, mir.OpFDiv, da, den)
	case mir.OpPow:
		a, b := data.Args[0], data.Args[1]
		da, db := d.derivative(a), d.derivative(b)
		lnA := d.un(block, mir.OpLn, a)
		term1 := d.bin(block, mir.OpFMul, db, lnA)
		ratio := d.bin(block, mir.OpFDiv, b, a)
		term2 := d.bin(block, mir.OpFMul, ratio, da)
		sum := d.bin(block, mir.OpFAdd, term1, term2)
		return d.bin(block, mir.OpFMul, v, sum)
	case mir.OpHypot:
		a, b := data.Args[0], data.Args[1]
		da, db := d.derivative(a), d.derivative(b)
		num := d.bin(block, mir.OpFAdd, d.bin(block, mir.OpFMul, a, da), d.bin(block, mir.OpFMul, b, db))
		return d.bin(block, mir.OpFDiv, num, v)
	case mir.OpAtan2:
		a, b := data.Args[0], data.Args[1]
		da, db := d.derivative(a), d.derivative(b)
		num := d.bin(block, mir.OpFSub, d.bin(block, mir.OpFMul, b, da), d.bin(block, mir.OpFMul, a, db))
		den := d.bin(block, mir.OpFAdd, d.bin(block, mir.OpFMul, a, a), d.bin(block, mir.OpFMul, b, b))
		return d.bin(block, mir.OpFDiv, num, den)
	default:
		// Integer and comparison opcodes carry no gradient.
		return d.fn.FConst(0)
	}
}

// insertPoint returns the instruction new arithmetic for block goes in
// front of: the ddx call being resolved when it sits in block, so that
// call's rewritten form comes after every value it reads, else block's
// terminator. ok is false when block has neither.
func (d *differ) insertPoint(block mir.Block) (mir.Inst, bool) {
	if d.fn.InstBlock(d.call) == block {
		return d.call, true
	}
	return d.fn.Terminator(block)
}

func (d *differ) bin(block mir.Block, op mir.Opcode, a, b mir.Value) mir.Value {
	term, ok := d.insertPoint(block)
	if !ok {
		_, res := d.fn.AppendInst(block, mir.InstData{Op: op, Args: []mir.Value{a, b}})
		return res[0]
	}
	_, res := d.fn.InsertInstBefore(term, mir.InstData{Op: op, Args: []mir.Value{a, b}}, nil)
	return res[0]
}

func (d *differ) un(block mir.Block, op mir.Opcode, a mir.Value) mir.Value {
	term, ok := d.insertPoint(block)
	if !ok {
		_, res := d.fn.AppendInst(block, mir.InstData{Op: op, Args: []mir.Value{a}})
		return res[0]
	}
	_, res := d.fn.InsertInstBefore(term, mir.InstData{Op: op, Args: []mir.Value{a}}, nil)
	return res[0]
}
