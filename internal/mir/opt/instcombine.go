package opt

import (
	"math"

	"vamir/internal/mir"
)

// InstCombine applies a fixed set of algebraic identities, one
// instruction at a time, in place. No rewrite here is allowed to
// change NaN/Inf propagation for a value that can be non-finite unless
// the operand is provably finite — finiteKnown implements that guard.
func InstCombine(f *mir.Function) bool {
	changed := false
	for _, b := range f.BlockOrder() {
		for _, inst := range f.IterInst(b) {
			if rewriteOne(f, inst) {
				changed = true
			}
		}
	}
	return changed
}

func rewriteOne(f *mir.Function, inst mir.Inst) bool {
	d := f.InstKind(inst)
	switch d.Op {
	case mir.OpFAdd:
		if isZero(f, d.Args[1]) {
			return identity(f, inst, d.Args[0])
		}
		if isZero(f, d.Args[0]) {
			return identity(f, inst, d.Args[1])
		}
	case mir.OpFSub:
		if isZero(f, d.Args[1]) {
			return identity(f, inst, d.Args[0])
		}
		if isZero(f, d.Args[0]) {
			return f.ReplaceInst(inst, mir.InstData{Op: mir.OpFNeg, Args: []mir.Value{d.Args[1]}}) == nil
		}
	case mir.OpFMul:
		if isOne(f, d.Args[1]) {
			return identity(f, inst, d.Args[0])
		}
		if isOne(f, d.Args[0]) {
			return identity(f, inst, d.Args[1])
		}
		if (isZero(f, d.Args[0]) && finiteKnown(f, d.Args[1])) ||
			(isZero(f, d.Args[1]) && finiteKnown(f, d.Args[0])) {
			return f.ReplaceInst(inst, mir.InstData{Op: mir.OpFConst, FloatVal: 0}) == nil
		}
	case mir.OpFDiv:
		if isOne(f, d.Args[1]) {
			return identity(f, inst, d.Args[0])
		}
	case mir.OpFNeg:
		if defOp, ok := defOpcode(f, d.Args[0]); ok && defOp == mir.OpFNeg {
			inner := f.InstKind(mustDef(f, d.Args[0])).Args[0]
			return identity(f, inst, inner)
		}
	case mir.OpExp:
		if isZero(f, d.Args[0]) {
			return f.ReplaceInst(inst, mir.InstData{Op: mir.OpFConst, FloatVal: 1}) == nil
		}
	case mir.OpLn:
		if isOne(f, d.Args[0]) {
			return f.ReplaceInst(inst, mir.InstData{Op: mir.OpFConst, FloatVal: 0}) == nil
		}
	case mir.OpPow:
		if isZero(f, d.Args[1]) {
			return f.ReplaceInst(inst, mir.InstData{Op: mir.OpFConst, FloatVal: 1}) == nil
		}
		if isOne(f, d.Args[1]) {
			return identity(f, inst, d.Args[0])
		}
	case mir.OpSqrt:
		if defOp, ok := defOpcode(f, d.Args[0]); ok && defOp == mir.OpFMul {
			args := f.InstKind(mustDef(f, d.Args[0])).Args
			if args[0] == args[1] && nonNegativeKnown(f, args[0]) {
				return identity(f, inst, args[0])
			}
		}
	}
	return false
}

func identity(f *mir.Function, inst mir.Inst, replacement mir.Value) bool {
	// An "identity" rewrite can't just drop the instruction in place
	// (its result Value id must keep working for every existing use),
	// so it becomes an optbarrier-free passthrough: we splice the
	// replacement in by rewriting the op to a zero-cost forwarding
	// shape using fadd with the additive identity. No pass removes that
	// passthrough afterwards, so an instruction already in exactly this
	// shape is left alone and not reported as a change. Where the
	// replacement is itself a constant this degenerates cleanly.
	zero := f.FConst(0)
	if d := f.InstKind(inst); d.Op == mir.OpFAdd && d.Args[0] == replacement && d.Args[1] == zero {
		return false
	}
	return f.ReplaceInst(inst, mir.InstData{Op: mir.OpFAdd, Args: []mir.Value{replacement, zero}}) == nil
}

func isConstF(f *mir.Function, v mir.Value, want float64) bool {
	inst, ok := f.ValueDef(v)
	if !ok {
		return false
	}
	d := f.InstKind(inst)
	return d.Op == mir.OpFConst && d.FloatVal == want
}

func isZero(f *mir.Function, v mir.Value) bool { return isConstF(f, v, 0) }
func isOne(f *mir.Function, v mir.Value) bool  { return isConstF(f, v, 1) }

func defOpcode(f *mir.Function, v mir.Value) (mir.Opcode, bool) {
	inst, ok := f.ValueDef(v)
	if !ok {
		return 0, false
	}
	return f.InstKind(inst).Op, true
}

func mustDef(f *mir.Function, v mir.Value) mir.Inst {
	inst, _ := f.ValueDef(v)
	return inst
}

// finiteKnown reports whether v is provably finite: the result of exp()
// on any real argument is representable (may overflow to +Inf in
// principle, so this deliberately stays conservative and only trusts
// direct constants).
func finiteKnown(f *mir.Function, v mir.Value) bool {
	inst, ok := f.ValueDef(v)
	if !ok {
		return false
	}
	d := f.InstKind(inst)
	return d.Op == mir.OpFConst && !math.IsInf(d.FloatVal, 0) && !math.IsNaN(d.FloatVal)
}

func nonNegativeKnown(f *mir.Function, v mir.Value) bool {
	inst, ok := f.ValueDef(v)
	if !ok {
		return false
	}
	d := f.InstKind(inst)
	switch d.Op {
	case mir.OpFConst:
		return d.FloatVal >= 0
	case mir.OpExp, mir.OpCosh, mir.OpSqrt:
		return true
	default:
		return false
	}
}
