package opt

import "vamir/internal/mir"

// Taint is forward op-dependence propagation: starting from a seed set
// of values (typically operating-point quantities — branch voltages,
// temperature, iteration-dependent op-vars), it marks every value whose
// computation transitively reads one of them. The init/eval split uses
// the result to decide which instructions must move to the per-iteration
// eval function versus the one-time init function.
type Taint struct {
	fn      *mir.Function
	tainted map[mir.Value]bool
}

// NewTaint seeds a taint set with an initial set of op-dependent values.
func NewTaint(fn *mir.Function, seeds []mir.Value) *Taint {
	t := &Taint{fn: fn, tainted: make(map[mir.Value]bool, len(seeds))}
	for _, v := range seeds {
		t.tainted[v] = true
	}
	return t
}

// Mark adds v to the taint set directly (used to seed block parameters
// that represent per-iteration quantities rather than instruction
// results).
func (t *Taint) Mark(v mir.Value) { t.tainted[v] = true }

// IsTainted reports whether v has been proven op-dependent so far.
func (t *Taint) IsTainted(v mir.Value) bool { return t.tainted[v] }

// Propagate runs taint to a fixed point over cfg's blocks in reverse
// postorder, repeating whole passes until nothing new is marked. A
// single reverse-postorder sweep is enough for an acyclic CFG; the
// repeat handles back edges, where a phi's loop-carried operand can only
// be marked after the loop body that defines it has itself been
// processed at least once.
func (t *Taint) Propagate(cfg *mir.CFG) {
	order := cfg.ReversePostorder()
	changed := true
	for changed {
		changed = false
		for _, b := range order {
			for _, inst := range t.fn.IterInst(b) {
				if t.stepInst(inst) {
					changed = true
				}
			}
		}
	}
}

func (t *Taint) stepInst(inst mir.Inst) bool {
	d := t.fn.InstKind(inst)
	res := t.fn.InstResult(inst)
	if !res.Valid() {
		return false
	}
	if t.tainted[res] {
		return false
	}
	if t.anyTainted(d) {
		t.tainted[res] = true
		return true
	}
	return false
}

func (t *Taint) anyTainted(d mir.InstData) bool {
	for _, a := range d.Args {
		if t.tainted[a] {
			return true
		}
	}
	for _, e := range d.Incoming {
		if t.tainted[e.Value] {
			return true
		}
	}
	if d.Op == mir.OpCall {
		// A callback's result is conservatively op-dependent whenever
		// any argument is, same rule as a plain arithmetic instruction.
		return false
	}
	return false
}

// TaintedInstructions returns, in layout order, every instruction whose
// result is tainted — the candidate set for eval-side placement.
func (t *Taint) TaintedInstructions(order []mir.Block) []mir.Inst {
	var out []mir.Inst
	for _, b := range order {
		for _, inst := range t.fn.IterInst(b) {
			res := t.fn.InstResult(inst)
			if res.Valid() && t.tainted[res] {
				out = append(out, inst)
			}
		}
	}
	return out
}
