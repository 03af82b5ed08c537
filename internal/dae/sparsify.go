package dae

import "vamir/internal/mir"

// Sparsify drops every Jacobian candidate whose Value has folded to the
// canonical constant zero, and fills in NumResistive/NumReactive from
// what survives. Call this after running the optimizer over fn —
// ddx-synthesized arithmetic only collapses to FConst(0) once
// InstCombine/GVN/SCCP have had a chance to simplify it.
func Sparsify(fn *mir.Function, sys *System) {
	zero := fn.FConst(0)
	kept := sys.Jacobian[:0]
	for _, e := range sys.Jacobian {
		if resolvesToZero(fn, e.Value, zero) {
			continue
		}
		kept = append(kept, e)
	}
	sys.Jacobian = kept

	sys.NumResistive = 0
	sys.NumReactive = 0
	for _, e := range sys.Jacobian {
		if sys.Residuals[e.Residual].Reactive {
			sys.NumReactive++
		} else {
			sys.NumResistive++
		}
	}
}

// resolvesToZero follows the identity-passthrough chain
// (OpFAdd{x, FConst(0)}) a rewritten ddx call leaves behind when the
// optimizer hasn't yet folded it away, so sparsify works even if the
// caller runs it before a pass that would have collapsed it outright.
func resolvesToZero(fn *mir.Function, v, zero mir.Value) bool {
	if v == zero {
		return true
	}
	inst, ok := fn.ValueDef(v)
	if !ok {
		return false
	}
	data := fn.InstKind(inst)
	if data.Op == mir.OpFConst && data.FloatVal == 0 {
		return true
	}
	if data.Op == mir.OpFAdd && len(data.Args) == 2 && data.Args[1] == zero {
		return resolvesToZero(fn, data.Args[0], zero)
	}
	return false
}
