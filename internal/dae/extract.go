package dae

import (
	"fmt"

	"vamir/internal/autodiff"
	"vamir/internal/errors"
	"vamir/internal/hir"
	"vamir/internal/hirlower"
	"vamir/internal/mir"
	"vamir/internal/topology"
)

// Extract builds the unknown set, residual sums, and (unsparsified)
// Jacobian candidates for fn. Callers must run the optimizer over fn
// afterward and then call Sparsify before trusting Jacobian as final —
// ddx synthesizes algebraically valid but not yet simplified arithmetic,
// and some candidate entries will fold to a constant zero once the
// optimizer has run. It returns errors.MissingContribution if a
// declared branch never wrote either place, the "no silent drops"
// invariant the HIR frontend depends on to report a truly unconnected
// branch rather than have it vanish into a zero residual.
func Extract(fn *mir.Function, interner *hirlower.HirInterner, module *hir.ModuleInfo, topo *topology.Result) (*System, error) {
	sys := &System{}

	nodeUnknown := make(map[hir.NodeId]int)
	for i := range module.Nodes {
		nid := hir.NodeId(i)
		if nid == module.GroundNode {
			continue
		}
		nodeUnknown[nid] = len(sys.Unknowns)
		sys.Unknowns = append(sys.Unknowns, Unknown{Kind: KirchoffLaw, Node: nid})
	}
	branchUnknown := make(map[hir.BranchId]int)
	for i := range module.Branches {
		bid := hir.BranchId(i)
		branchUnknown[bid] = len(sys.Unknowns)
		sys.Unknowns = append(sys.Unknowns, Unknown{Kind: Current, Branch: bid})
	}

	resistiveSum := make(map[hir.NodeId]mir.Value)
	reactiveSum := make(map[hir.NodeId]mir.Value)
	for i := range module.Branches {
		b := module.Branches[i]
		bid := hir.BranchId(i)
		rv, rok := interner.PlaceValue(hirlower.PlaceKind{Tag: hirlower.PlaceContribute, Branch: bid, Reactive: false})
		zv, zok := interner.PlaceValue(hirlower.PlaceKind{Tag: hirlower.PlaceContribute, Branch: bid, Reactive: true})
		if !rok && !zok {
			ce := errors.MissingContribution(b.Name, errors.Position{})
			return nil, fmt.Errorf("[%s] %s", ce.Code, ce.Message)
		}
		if rok {
			addSigned(fn, resistiveSum, module, b.Hi, rv, +1)
			addSigned(fn, resistiveSum, module, b.Lo, rv, -1)
			sys.Residuals = append(sys.Residuals, Residual{Unknown: branchUnknown[bid], Reactive: false, Value: rv})
		}
		if zok {
			addSigned(fn, reactiveSum, module, b.Hi, zv, +1)
			addSigned(fn, reactiveSum, module, b.Lo, zv, -1)
		}
	}
	for i := range module.Nodes {
		nid := hir.NodeId(i)
		if nid == module.GroundNode {
			continue
		}
		if v, ok := resistiveSum[nid]; ok {
			sys.Residuals = append(sys.Residuals, Residual{Unknown: nodeUnknown[nid], Reactive: false, Value: v})
		}
		if v, ok := reactiveSum[nid]; ok {
			sys.Residuals = append(sys.Residuals, Residual{Unknown: nodeUnknown[nid], Reactive: true, Value: v})
		}
	}

	candidates := unknownCandidates(interner, nodeUnknown, branchUnknown)
	buildJacobian(fn, interner, sys, topo, candidates)
	sys.Noise = collectNoise(fn, interner)
	return sys, nil
}

func addSigned(fn *mir.Function, sums map[hir.NodeId]mir.Value, module *hir.ModuleInfo, node hir.NodeId, v mir.Value, sign int) {
	if node == module.GroundNode {
		return
	}
	accumulate(fn, sums, node, v, sign)
}

// unknownCandidate pairs an unknown's index with the Value that
// equations actually read when probing it — only unknowns with a
// backing read can appear as a nonzero Jacobian column, since a
// residual can only depend on values it structurally reads.
type unknownCandidate struct {
	unknown int
	backing mir.Value
}

func unknownCandidates(interner *hirlower.HirInterner, nodeUnknown map[hir.NodeId]int, branchUnknown map[hir.BranchId]int) []unknownCandidate {
	var out []unknownCandidate
	for node, idx := range nodeUnknown {
		if v, ok := interner.ParamValue(hirlower.ParamKind{Tag: hirlower.ParamNodeVoltage, Node: node}); ok {
			out = append(out, unknownCandidate{unknown: idx, backing: v})
		}
	}
	for branch, idx := range branchUnknown {
		if v, ok := interner.ParamValue(hirlower.ParamKind{Tag: hirlower.ParamBranchCurrent, Branch: branch}); ok {
			out = append(out, unknownCandidate{unknown: idx, backing: v})
		}
		if v, ok := interner.ParamValue(hirlower.ParamKind{Tag: hirlower.ParamBranchVoltage, Branch: branch}); ok {
			out = append(out, unknownCandidate{unknown: idx, backing: v})
		}
	}
	return out
}

// buildJacobian introduces one ddx pseudo-call per (residual, unknown)
// pair the topology sparsity test says can be nonzero, then
// differentiates all of them, one autodiff.Target per unknown so every
// residual probing that unknown shares its seed.
func buildJacobian(fn *mir.Function, interner *hirlower.HirInterner, sys *System, topo *topology.Result, candidates []unknownCandidate) {
	_ = topo
	for _, cand := range candidates {
		ref := interner.AllocFuncRef()
		var entries []int
		for ri, r := range sys.Residuals {
			if !topology.DependsOn(fn, r.Value, cand.backing) {
				continue
			}
			block := fn.ValueBlock(r.Value)
			callValue := emitAt(fn, block, mir.InstData{Op: mir.OpCall, Callee: ref, Args: []mir.Value{r.Value}})
			sys.Jacobian = append(sys.Jacobian, JacobianEntry{Residual: ri, Unknown: cand.unknown, Value: callValue, Limited: mir.InvalidValue})
			entries = append(entries, len(sys.Jacobian)-1)
		}
		if len(entries) == 0 {
			continue
		}
		target := autodiff.Target{Callee: ref, Seeds: map[mir.Value]float64{cand.backing: 1.0}}
		autodiff.Differentiate(fn, []autodiff.Target{target})
	}
}
