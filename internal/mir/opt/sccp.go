package opt

import (
	"math"

	"vamir/internal/mir"
)

type latticeState uint8

const (
	latticeUndef latticeState = iota
	latticeConst
	latticeOverdefined
)

type latticeValue struct {
	state latticeState
	f     float64
	i     int64
	b     bool
}

// SparseConditionalConstantPropagation folds every value whose operands
// are all provably constant. A branch whose condition folds to a
// constant limits which blocks count as reachable, and values in the
// others are not folded; the branch itself stays conditional, so no
// block or edge is removed. It mutates f in place and returns whether
// anything changed. Lattice order is
// `undef < constant < overdefined`.
func SparseConditionalConstantPropagation(f *mir.Function, cfg *mir.CFG) bool {
	values := make(map[mir.Value]latticeValue)
	reachable := make(map[mir.Block]bool)
	entry := cfg.Entry()
	if !entry.Valid() {
		return false
	}
	reachable[entry] = true

	changed := true
	for changed {
		changed = false
		for _, b := range cfg.ReversePostorder() {
			if !reachable[b] {
				continue
			}
			for _, inst := range f.IterInst(b) {
				d := f.InstKind(inst)
				if d.Op == mir.OpPhi {
					merged, ok := mergePhi(f, d, reachable, values)
					if ok {
						if setLattice(values, f.InstResult(inst), merged) {
							changed = true
						}
					}
					continue
				}
				if d.Op.IsTerminator() {
					continue
				}
				res := f.InstResult(inst)
				if !res.Valid() {
					continue
				}
				lv, ok := evalConst(f, d, values)
				if ok {
					if setLattice(values, res, lv) {
						changed = true
					}
				} else {
					if setLattice(values, res, latticeValue{state: latticeOverdefined}) {
						changed = true
					}
				}
			}
			term, ok := f.Terminator(b)
			if !ok {
				continue
			}
			d := f.InstKind(term)
			switch d.Op {
			case mir.OpBr:
				lv := values[d.Cond]
				if lv.state == latticeConst {
					target := d.Else
					if lv.b {
						target = d.Then
					}
					if !reachable[target] {
						reachable[target] = true
						changed = true
					}
				} else {
					if !reachable[d.Then] {
						reachable[d.Then] = true
						changed = true
					}
					if !reachable[d.Else] {
						reachable[d.Else] = true
						changed = true
					}
				}
			case mir.OpJmp:
				if !reachable[d.Target] {
					reachable[d.Target] = true
					changed = true
				}
			}
		}
	}

	return applySCCP(f, cfg, values, reachable)
}

func mergePhi(f *mir.Function, d mir.InstData, reachable map[mir.Block]bool, values map[mir.Value]latticeValue) (latticeValue, bool) {
	var merged latticeValue
	seen := false
	for _, e := range d.Incoming {
		if !reachable[e.Pred] {
			continue
		}
		lv := values[e.Value]
		if !seen {
			merged = lv
			seen = true
			continue
		}
		merged = joinLattice(merged, lv)
	}
	return merged, seen
}

func joinLattice(a, b latticeValue) latticeValue {
	if a.state == latticeUndef {
		return b
	}
	if b.state == latticeUndef {
		return a
	}
	if a.state == latticeConst && b.state == latticeConst && sameConst(a, b) {
		return a
	}
	return latticeValue{state: latticeOverdefined}
}

func sameConst(a, b latticeValue) bool {
	return a.f == b.f && a.i == b.i && a.b == b.b
}

func setLattice(values map[mir.Value]latticeValue, v mir.Value, lv latticeValue) bool {
	old, ok := values[v]
	if ok && old.state == lv.state && sameConst(old, lv) {
		return false
	}
	// Lattice values only move forward: undef -> const -> overdefined.
	if ok && old.state == latticeOverdefined {
		return false
	}
	values[v] = lv
	return true
}

func evalConst(f *mir.Function, d mir.InstData, values map[mir.Value]latticeValue) (latticeValue, bool) {
	getConst := func(v mir.Value) (latticeValue, bool) {
		if inst, ok := f.ValueDef(v); ok {
			if kd := f.InstKind(inst); kd.Op.IsConst() {
				return constLattice(kd), true
			}
		}
		lv, ok := values[v]
		if ok && lv.state == latticeConst {
			return lv, true
		}
		return latticeValue{}, false
	}

	switch d.Op {
	case mir.OpFConst, mir.OpIConst, mir.OpBConst:
		return constLattice(d), true
	case mir.OpFAdd, mir.OpFSub, mir.OpFMul, mir.OpFDiv:
		a, ok1 := getConst(d.Args[0])
		b, ok2 := getConst(d.Args[1])
		if !ok1 || !ok2 {
			return latticeValue{}, false
		}
		return latticeValue{state: latticeConst, f: foldF(d.Op, a.f, b.f)}, true
	case mir.OpFNeg:
		a, ok := getConst(d.Args[0])
		if !ok {
			return latticeValue{}, false
		}
		return latticeValue{state: latticeConst, f: -a.f}, true
	case mir.OpFEq, mir.OpFNe, mir.OpFLt, mir.OpFLe, mir.OpFGt, mir.OpFGe:
		a, ok1 := getConst(d.Args[0])
		b, ok2 := getConst(d.Args[1])
		if !ok1 || !ok2 {
			return latticeValue{}, false
		}
		return latticeValue{state: latticeConst, b: foldCmpF(d.Op, a.f, b.f)}, true
	case mir.OpExp, mir.OpLn, mir.OpSqrt, mir.OpSin, mir.OpCos:
		a, ok := getConst(d.Args[0])
		if !ok {
			return latticeValue{}, false
		}
		return latticeValue{state: latticeConst, f: foldUnary(d.Op, a.f)}, true
	default:
		return latticeValue{}, false
	}
}

func constLattice(d mir.InstData) latticeValue {
	switch d.Op {
	case mir.OpFConst:
		return latticeValue{state: latticeConst, f: d.FloatVal}
	case mir.OpIConst:
		return latticeValue{state: latticeConst, i: d.IntVal}
	case mir.OpBConst:
		return latticeValue{state: latticeConst, b: d.BoolVal}
	default:
		return latticeValue{state: latticeOverdefined}
	}
}

func foldF(op mir.Opcode, a, b float64) float64 {
	switch op {
	case mir.OpFAdd:
		return a + b
	case mir.OpFSub:
		return a - b
	case mir.OpFMul:
		return a * b
	case mir.OpFDiv:
		return a / b
	}
	return 0
}

func foldCmpF(op mir.Opcode, a, b float64) bool {
	switch op {
	case mir.OpFEq:
		return a == b
	case mir.OpFNe:
		return a != b
	case mir.OpFLt:
		return a < b
	case mir.OpFLe:
		return a <= b
	case mir.OpFGt:
		return a > b
	case mir.OpFGe:
		return a >= b
	}
	return false
}

func foldUnary(op mir.Opcode, a float64) float64 {
	switch op {
	case mir.OpExp:
		return math.Exp(a)
	case mir.OpLn:
		return math.Log(a)
	case mir.OpSqrt:
		return math.Sqrt(a)
	case mir.OpSin:
		return math.Sin(a)
	case mir.OpCos:
		return math.Cos(a)
	}
	return 0
}

// applySCCP rewrites, in every block SCCP found reachable, each value it
// proved constant into a constant instruction in place. It rewrites no
// terminator, so a block SCCP found unreachable keeps its incoming edge
// and stays in the CFG.
func applySCCP(f *mir.Function, cfg *mir.CFG, values map[mir.Value]latticeValue, reachable map[mir.Block]bool) bool {
	changed := false
	for _, b := range cfg.Blocks() {
		if !reachable[b] {
			continue
		}
		for _, inst := range f.IterInst(b) {
			d := f.InstKind(inst)
			if d.Op.IsConst() || d.Op == mir.OpPhi || d.Op.IsTerminator() {
				continue
			}
			res := f.InstResult(inst)
			if !res.Valid() {
				continue
			}
			lv, ok := values[res]
			if !ok || lv.state != latticeConst {
				continue
			}
			if d.Op.IsConst() {
				continue
			}
			// Turn the instruction itself into the folded constant,
			// in place, so its existing Value id (and every use of it)
			// stays valid. This leaves a non-preamble constant behind;
			// a later GVN/DCE pass canonicalizes or removes it. Doing
			// the canonicalization here too would require CFG-wide
			// dominance bookkeeping SCCP has no reason to own.
			switch f.ValueType(res) {
			case mir.Bool:
				f.SetInstData(inst, mir.InstData{Op: mir.OpBConst, BoolVal: lv.b})
			case mir.Int:
				f.SetInstData(inst, mir.InstData{Op: mir.OpIConst, IntVal: lv.i})
			default:
				f.SetInstData(inst, mir.InstData{Op: mir.OpFConst, FloatVal: lv.f})
			}
			changed = true
		}
	}
	return changed
}
