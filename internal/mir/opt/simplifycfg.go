package opt

import "vamir/internal/mir"

// SimplifyCFG removes unreachable blocks and merges a block into its
// unique predecessor when that predecessor falls straight through to it
// (no other successors, no other predecessors of the merged block). It
// folds no other empty block: an empty block with several predecessors
// stays, and so do the jumps into it. This is the phi-merging variant.
func SimplifyCFG(f *mir.Function, cfg *mir.CFG) bool {
	return simplifyCFG(f, cfg, true)
}

// SimplifyCFGNoPhiMerge is the same pass but never merges a block whose
// entry has phis into its predecessor — used between derivative
// lowering and final optimization so derivative chains created by the AD
// pass stay traceable per-block.
func SimplifyCFGNoPhiMerge(f *mir.Function, cfg *mir.CFG) bool {
	return simplifyCFG(f, cfg, false)
}

func simplifyCFG(f *mir.Function, cfg *mir.CFG, mergePhis bool) bool {
	changed := removeUnreachable(f, cfg)
	if mergeStraightLine(f, cfg, mergePhis) {
		changed = true
	}
	return changed
}

func removeUnreachable(f *mir.Function, cfg *mir.CFG) bool {
	reachable := make(map[mir.Block]bool)
	for _, b := range cfg.Postorder() {
		reachable[b] = true
	}
	var kept []mir.Block
	changed := false
	for _, b := range f.BlockOrder() {
		if reachable[b] {
			kept = append(kept, b)
		} else {
			changed = true
		}
	}
	if changed {
		f.SetBlockOrder(kept)
	}
	return changed
}

// mergeStraightLine folds `block A { ...; jmp B() }` into A when B has
// exactly one predecessor (A) and A has exactly one successor (B),
// splicing B's instructions (and, if mergePhis, resolving B's phis using
// the jump's arguments) directly after A's.
func mergeStraightLine(f *mir.Function, cfg *mir.CFG, mergePhis bool) bool {
	changed := false
	for _, a := range f.BlockOrder() {
		term, ok := f.Terminator(a)
		if !ok {
			continue
		}
		d := f.InstKind(term)
		if d.Op != mir.OpJmp {
			continue
		}
		b := d.Target
		if len(cfg.Preds(b)) != 1 || a == b {
			continue
		}
		params := f.BlockParams(b)
		if len(params) > 0 && !mergePhis {
			continue
		}
		spliceBlocks(f, a, b, d.JmpArgs)
		changed = true
	}
	return changed
}

// spliceBlocks rewrites every use of b's block parameters to the jump's
// matching argument (resolving b's implicit phi), removes a's jmp
// terminator, and relinks b's instruction list directly after a's so the
// merged block has a single, contiguous layout entry. b becomes
// unreachable and is pruned on the next removeUnreachable pass.
func spliceBlocks(f *mir.Function, a, b mir.Block, jmpArgs []mir.Value) {
	params := f.BlockParams(b)
	subst := make(map[mir.Value]mir.Value, len(params))
	for i, p := range params {
		subst[p] = jmpArgs[i]
	}
	f.RemoveInst(mustTerm(f, a))
	for _, inst := range f.IterInst(b) {
		d := f.InstKind(inst)
		rewriteOperandsInPlace(&d, subst)
		f.SetInstData(inst, d)
		f.MoveInstToEnd(a, inst)
	}
}

func mustTerm(f *mir.Function, b mir.Block) mir.Inst {
	t, _ := f.Terminator(b)
	return t
}

func rewriteOperandsInPlace(d *mir.InstData, subst map[mir.Value]mir.Value) {
	remap := func(v mir.Value) mir.Value {
		if nv, ok := subst[v]; ok {
			return nv
		}
		return v
	}
	for i := range d.Args {
		d.Args[i] = remap(d.Args[i])
	}
	if d.Op == mir.OpBr {
		d.Cond = remap(d.Cond)
	}
	for i := range d.JmpArgs {
		d.JmpArgs[i] = remap(d.JmpArgs[i])
	}
}
