package opt

import (
	"fmt"
	"strings"

	"vamir/internal/mir"
)

// GVN is dominator-tree-based global value numbering: an instruction is
// redundant if an earlier, dominating instruction computes the same
// opcode over the same (canonicalized) operands. It runs before the
// init/eval split so cache-slot candidates are already canonical.
type GVN struct {
	fn  *mir.Function
	dt  *mir.DomTree
	cfg *mir.CFG

	// leader maps a structural hash to the dominating Value that first
	// computed it; replacements records every redundant Value and what
	// it should be replaced with.
	leader       map[string][]leaderEntry
	replacements map[mir.Value]mir.Value
}

type leaderEntry struct {
	block mir.Block
	value mir.Value
}

// Init prepares gvn to run over fn; cfg/dt must already be up to date.
func (g *GVN) Init(fn *mir.Function, cfg *mir.CFG, dt *mir.DomTree) {
	g.fn = fn
	g.cfg = cfg
	g.dt = dt
	g.leader = make(map[string][]leaderEntry)
	g.replacements = make(map[mir.Value]mir.Value)
}

// Solve walks the dominator tree in reverse postorder (a valid
// topological walk of the tree) and records, for every pure instruction,
// the first dominating occurrence of its canonical form.
func (g *GVN) Solve() {
	for _, b := range g.dt.ReversePostorder() {
		for _, inst := range g.fn.IterInst(b) {
			d := g.fn.InstKind(inst)
			if !pure(d) {
				continue
			}
			res := g.fn.InstResult(inst)
			if !res.Valid() {
				continue
			}
			key := canonicalKey(g.fn, d, g.replacements)
			found := false
			for _, e := range g.leader[key] {
				if g.dt.Dominates(e.block, b) {
					g.replacements[res] = g.resolve(e.value)
					found = true
					break
				}
			}
			if !found {
				g.leader[key] = append(g.leader[key], leaderEntry{block: b, value: res})
			}
		}
	}
}

func (g *GVN) resolve(v mir.Value) mir.Value {
	for {
		nv, ok := g.replacements[v]
		if !ok {
			return v
		}
		v = nv
	}
}

// RemoveUnnecessaryInsts rewrites every use of a redundant value to its
// leader and deletes the now-dead defining instruction.
func (g *GVN) RemoveUnnecessaryInsts() bool {
	if len(g.replacements) == 0 {
		return false
	}
	for _, b := range g.fn.BlockOrder() {
		for _, inst := range g.fn.IterInst(b) {
			d := g.fn.InstKind(inst)
			changed := false
			remap := func(v mir.Value) mir.Value {
				if nv, ok := g.replacements[v]; ok {
					changed = true
					return g.resolve(nv)
				}
				return v
			}
			for i := range d.Args {
				d.Args[i] = remap(d.Args[i])
			}
			for i := range d.Incoming {
				d.Incoming[i].Value = remap(d.Incoming[i].Value)
			}
			if d.Op == mir.OpBr {
				d.Cond = remap(d.Cond)
			}
			for i := range d.JmpArgs {
				d.JmpArgs[i] = remap(d.JmpArgs[i])
			}
			if changed {
				g.fn.SetInstData(inst, d)
			}
		}
	}
	for v := range g.replacements {
		if inst, ok := g.fn.ValueDef(v); ok {
			g.fn.RemoveInst(inst)
		}
	}
	return true
}

// Replacement exposes the resolved leader for v, if GVN found one.
func (g *GVN) Replacement(v mir.Value) (mir.Value, bool) {
	nv, ok := g.replacements[v]
	if !ok {
		return v, false
	}
	return g.resolve(nv), true
}

func pure(d mir.InstData) bool {
	switch d.Op {
	case mir.OpPhi, mir.OpCall, mir.OpOptBarrier:
		return false
	default:
		return !d.Op.IsTerminator() && !d.Op.IsConst()
	}
}

var commutative = map[mir.Opcode]bool{
	mir.OpFAdd: true, mir.OpFMul: true,
	mir.OpIAdd: true, mir.OpIMul: true,
	mir.OpFEq: true, mir.OpFNe: true, mir.OpIEq: true, mir.OpINe: true,
}

func canonicalKey(fn *mir.Function, d mir.InstData, repl map[mir.Value]mir.Value) string {
	resolve := func(v mir.Value) mir.Value {
		for {
			nv, ok := repl[v]
			if !ok {
				return v
			}
			v = nv
		}
	}
	args := make([]mir.Value, len(d.Args))
	for i, a := range d.Args {
		args[i] = resolve(a)
	}
	if commutative[d.Op] && len(args) == 2 && args[1] < args[0] {
		args[0], args[1] = args[1], args[0]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d:", d.Op)
	for _, a := range args {
		fmt.Fprintf(&b, "%d,", a)
	}
	if d.Op == mir.OpFConst {
		fmt.Fprintf(&b, "f%v", d.FloatVal)
	}
	return b.String()
}
