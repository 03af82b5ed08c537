package opt

import "vamir/internal/mir"

// DeadCodeElimination walks back from f.OutputValues and every
// terminator, marking everything transitively needed to compute them,
// then deletes every instruction that was never marked. Branch
// instructions always survive this pass even when their condition is
// unused downstream — only AggressiveDeadCodeElimination is allowed to
// remove control flow.
func DeadCodeElimination(f *mir.Function) bool {
	live := markLive(f, nil)
	return sweep(f, live)
}

// AggressiveDeadCodeElimination uses the post-dominance frontier for
// control dependence: a branch that some live instruction is control
// dependent on is kept live with its condition, and a branch left
// unmarked is turned into a jump. Its liveness marking starts, like
// DeadCodeElimination's, from every terminator, so every branch is
// already live before that step: the pass removes the same instructions
// DeadCodeElimination does and never rewrites a branch.
func AggressiveDeadCodeElimination(f *mir.Function, cfg *mir.CFG, dt *mir.DomTree) bool {
	postFrontier := make(map[mir.Block][]mir.Block)
	dt.ComputePostDomFrontiers(postFrontier)

	controllers := make(map[mir.Block][]mir.Block) // block -> branch blocks it is control dependent on
	for branch, frontier := range postFrontier {
		for _, controlled := range frontier {
			controllers[controlled] = append(controllers[controlled], branch)
		}
	}

	live := markLive(f, nil)

	// Propagate: any block containing a live instruction keeps every
	// branch block it is control dependent on alive too, and that
	// branch's condition operand must be marked live in turn.
	changed := true
	for changed {
		changed = false
		for _, b := range cfg.Blocks() {
			if !blockHasLive(f, b, live) {
				continue
			}
			for _, branchBlock := range controllers[b] {
				term, ok := f.Terminator(branchBlock)
				if !ok {
					continue
				}
				if !live[term] {
					live[term] = true
					changed = true
				}
				d := f.InstKind(term)
				if d.Op == mir.OpBr && !valueLive(f, live, d.Cond) {
					markValue(f, live, d.Cond)
					changed = true
				}
			}
		}
	}

	removedInsts := sweep(f, live)

	// A branch whose terminator never got marked live can be turned
	// into an unconditional jump to whichever side still has a path to
	// a live block; conservatively keep the "then" side, matching the
	// convention that dead branches prefer falling through.
	removedBranches := false
	for _, b := range cfg.Blocks() {
		term, ok := f.Terminator(b)
		if !ok || live[term] {
			continue
		}
		d := f.InstKind(term)
		if d.Op != mir.OpBr {
			continue
		}
		f.SetInstData(term, mir.InstData{Op: mir.OpJmp, Target: d.Then, JmpArgs: nil})
		removedBranches = true
	}

	return removedInsts || removedBranches
}

func markLive(f *mir.Function, seed map[mir.Inst]bool) map[mir.Inst]bool {
	live := seed
	if live == nil {
		live = make(map[mir.Inst]bool)
	}
	visited := make(map[mir.Value]bool)

	var visitValue func(v mir.Value)
	visitValue = func(v mir.Value) {
		if visited[v] {
			return
		}
		visited[v] = true
		inst, ok := f.ValueDef(v)
		if !ok {
			return // block parameter: liveness flows from phi incoming values
		}
		markInst(f, live, visitValue, inst)
	}

	for _, b := range f.BlockOrder() {
		term, ok := f.Terminator(b)
		if !ok {
			continue
		}
		markInst(f, live, visitValue, term)
	}
	for _, v := range f.OutputValues {
		visitValue(v)
	}
	return live
}

func markInst(f *mir.Function, live map[mir.Inst]bool, visitValue func(mir.Value), inst mir.Inst) {
	if live[inst] {
		return
	}
	live[inst] = true
	d := f.InstKind(inst)
	for _, a := range d.Args {
		visitValue(a)
	}
	for _, e := range d.Incoming {
		visitValue(e.Value)
	}
	if d.Op == mir.OpBr {
		visitValue(d.Cond)
	}
	for _, a := range d.JmpArgs {
		visitValue(a)
	}
}

func markValue(f *mir.Function, live map[mir.Inst]bool, v mir.Value) {
	if inst, ok := f.ValueDef(v); ok {
		markInst(f, live, func(mir.Value) {}, inst)
	}
}

func valueLive(f *mir.Function, live map[mir.Inst]bool, v mir.Value) bool {
	inst, ok := f.ValueDef(v)
	if !ok {
		return true
	}
	return live[inst]
}

func blockHasLive(f *mir.Function, b mir.Block, live map[mir.Inst]bool) bool {
	for _, inst := range f.IterInst(b) {
		if live[inst] {
			return true
		}
	}
	return false
}

func sweep(f *mir.Function, live map[mir.Inst]bool) bool {
	changed := false
	for _, b := range f.BlockOrder() {
		for _, inst := range f.IterInst(b) {
			d := f.InstKind(inst)
			if d.Op.IsTerminator() || live[inst] {
				continue
			}
			f.RemoveInst(inst)
			changed = true
		}
	}
	return changed
}
