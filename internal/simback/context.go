// Package simback orchestrates one module's compile: lowering through
// hirlower, the fixed optimizer pipeline (internal/mir/opt), automatic
// differentiation, DAE extraction, topology analysis, and the
// init/eval split, producing the single CompiledModule value the
// driver consumes.
package simback

import (
	"vamir/internal/mir"
	"vamir/internal/mir/opt"
)

// OptimizationStage names where in the pipeline a Context's Optimize
// call is running, since which sub-passes apply changes between
// derivative lowering (ddx calls still present, phi-merging would
// obscure the chains autodiff just built) and the end of the pipeline
// (every optimization is safe).
type OptimizationStage uint8

const (
	// Initial: runs before any ddx pseudo-call is introduced, to
	// canonicalize the lowered function before DAE extraction reads it.
	Initial OptimizationStage = iota
	// PostDerivative: runs after autodiff has rewritten every ddx call
	// in place. Uses the no-phi-merge SimplifyCFG variant so derivative
	// chains built one instruction at a time stay easy to read in
	// tests and debug dumps.
	PostDerivative
	// Final: runs once, after the init/eval split, with every
	// optimization enabled, including aggressive DCE in place of DCE.
	Final
)

// Context drives repeated optimizer rounds over one function until a
// round makes no further change, recomputing the CFG and the dominator
// tree each round since every pass may have altered them.
type Context struct {
	Stage OptimizationStage
}

// Optimize runs fn through the pass set for c.Stage until fixed point.
func (c *Context) Optimize(fn *mir.Function) {
	for {
		cfg := mir.ComputeCFG(fn)
		changed := false

		changed = opt.SparseConditionalConstantPropagation(fn, cfg) || changed
		changed = opt.InstCombine(fn) || changed

		switch c.Stage {
		case Initial, Final:
			changed = opt.SimplifyCFG(fn, cfg) || changed
		case PostDerivative:
			changed = opt.SimplifyCFGNoPhiMerge(fn, cfg) || changed
		}

		cfg = mir.ComputeCFG(fn)
		dt := mir.ComputeDomTree(cfg)
		gvn := &opt.GVN{}
		gvn.Init(fn, cfg, dt)
		gvn.Solve()
		changed = gvn.RemoveUnnecessaryInsts() || changed

		if c.Stage == Final {
			cfg = mir.ComputeCFG(fn)
			dt = mir.ComputeDomTree(cfg)
			changed = opt.AggressiveDeadCodeElimination(fn, cfg, dt) || changed
		} else {
			changed = opt.DeadCodeElimination(fn) || changed
		}

		if !changed {
			return
		}
	}
}

// LoopOpDependence runs taint propagation to its loop-aware fixed
// point and returns the tainted set, as a standalone, separately
// testable step rather than folding it silently into Optimize — loop
// bodies need a second (or third) reverse-postorder sweep before a
// loop-carried phi's back-edge operand is itself marked, which
// opt.Taint.Propagate already loops internally until nothing changes.
func LoopOpDependence(fn *mir.Function, seeds []mir.Value) *opt.Taint {
	cfg := mir.ComputeCFG(fn)
	taint := opt.NewTaint(fn, seeds)
	taint.Propagate(cfg)
	return taint
}
