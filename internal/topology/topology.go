// Package topology classifies branches by how their contributions
// depend on the function's unknowns, ahead of DAE extraction. Its only
// change to the function is requesting the canonical 0.0 from the
// constant pool, which adds that constant if it is missing; every result
// is derived by walking the
// contribution values the hirlower.HirInterner already recorded.
package topology

import (
	"vamir/internal/hir"
	"vamir/internal/hirlower"
	"vamir/internal/mir"
)

// BranchClass is the result of classifying one branch's contributions.
type BranchClass uint8

const (
	// Resistive: contributes only to the branch's resistive residual,
	// and that residual depends on at least one operating-point
	// voltage or current.
	Resistive BranchClass = iota
	// Reactive: contributes through the branch's reactive (ddt) place.
	Reactive
	// Source: the contribution is a function of parameters only — no
	// dependence on any node voltage or branch current.
	Source
	// Linear: the resistive contribution is an affine function of
	// exactly one unknown's backing value.
	Linear
)

func (c BranchClass) String() string {
	switch c {
	case Reactive:
		return "reactive"
	case Source:
		return "source"
	case Linear:
		return "linear"
	default:
		return "resistive"
	}
}

// NodeCollapse records that a branch contributes zero under every
// operating point reachable by this function, so its two endpoint
// nodes can be merged into one unknown by the consumer.
type NodeCollapse struct {
	Branch hir.BranchId
	Hi     hir.NodeId
	Lo     hir.NodeId
}

// Result is the full pre-DAE analysis of one function.
type Result struct {
	Class    map[hir.BranchId]BranchClass
	Collapse []NodeCollapse
}

// Analyze classifies every branch declared in module against the
// contributions recorded in interner.
func Analyze(fn *mir.Function, interner *hirlower.HirInterner, module *hir.ModuleInfo) *Result {
	dep := newDependence(fn)
	res := &Result{Class: make(map[hir.BranchId]BranchClass)}

	for i := range module.Branches {
		branch := hir.BranchId(i)
		res.Class[branch] = classify(fn, interner, dep, branch)
		if isZeroContribution(fn, interner, branch) {
			b := module.Branches[i]
			res.Collapse = append(res.Collapse, NodeCollapse{Branch: branch, Hi: b.Hi, Lo: b.Lo})
		}
	}
	return res
}

func classify(fn *mir.Function, interner *hirlower.HirInterner, dep *dependence, branch hir.BranchId) BranchClass {
	if _, ok := interner.PlaceValue(hirlower.PlaceKind{Tag: hirlower.PlaceContribute, Branch: branch, Reactive: true}); ok {
		return Reactive
	}
	resistive, ok := interner.PlaceValue(hirlower.PlaceKind{Tag: hirlower.PlaceContribute, Branch: branch, Reactive: false})
	if !ok {
		return Source
	}
	unknowns := dep.unknownsReached(resistive)
	switch len(unknowns) {
	case 0:
		return Source
	case 1:
		return Linear
	default:
		return Resistive
	}
}

// isZeroContribution reports whether both of a branch's places either
// were never written or were written with the canonical FConst(0)
// value — the structural signal that the branch can be collapsed.
func isZeroContribution(fn *mir.Function, interner *hirlower.HirInterner, branch hir.BranchId) bool {
	zero := fn.FConst(0)
	resistive, hasR := interner.PlaceValue(hirlower.PlaceKind{Tag: hirlower.PlaceContribute, Branch: branch, Reactive: false})
	reactive, hasC := interner.PlaceValue(hirlower.PlaceKind{Tag: hirlower.PlaceContribute, Branch: branch, Reactive: true})
	if !hasR && !hasC {
		return false
	}
	if hasR && resistive != zero {
		return false
	}
	if hasC && reactive != zero {
		return false
	}
	return true
}

// DependsOn reports whether residual's forward-computed value has
// candidate anywhere in its operand dependency graph — the structural
// sparsity test the DAE extractor uses to decide whether a (residual,
// unknown) pair needs a ddx call at all.
func DependsOn(fn *mir.Function, residual, candidate mir.Value) bool {
	return newDependence(fn).dependsOn(residual, candidate)
}

// dependence answers operand-reachability queries over one function.
// Queries are not memoized: each call walks the operand graph from its
// root again, and cache is never read or written.
type dependence struct {
	fn    *mir.Function
	cache map[mir.Value]map[mir.Value]bool
}

func newDependence(fn *mir.Function) *dependence {
	return &dependence{fn: fn, cache: make(map[mir.Value]map[mir.Value]bool)}
}

func (d *dependence) dependsOn(root, candidate mir.Value) bool {
	seen := make(map[mir.Value]bool)
	var walk func(v mir.Value) bool
	walk = func(v mir.Value) bool {
		if v == candidate {
			return true
		}
		if seen[v] {
			return false
		}
		seen[v] = true
		inst, ok := d.fn.ValueDef(v)
		if !ok {
			return false
		}
		for _, op := range d.fn.Operands(inst) {
			if walk(op) {
				return true
			}
		}
		return false
	}
	return walk(root)
}

// unknownsReached returns, for bookkeeping purposes during
// classification, how many distinct entry-block parameter values
// (reads of node voltages, branch currents, or op-dependent vars) the
// residual structurally depends on. It is a coarse proxy for "number of
// unknowns this residual's Jacobian row has nonzero entries for" —
// precise zero/nonzero is decided later by sparsify, after AD.
func (d *dependence) unknownsReached(residual mir.Value) []mir.Value {
	seen := make(map[mir.Value]bool)
	var out []mir.Value
	var walk func(v mir.Value)
	walk = func(v mir.Value) {
		if seen[v] {
			return
		}
		seen[v] = true
		if d.fn.IsBlockParam(v) {
			out = append(out, v)
			return
		}
		inst, ok := d.fn.ValueDef(v)
		if !ok {
			return
		}
		for _, op := range d.fn.Operands(inst) {
			walk(op)
		}
	}
	walk(residual)
	return out
}
