package mir

import "fmt"

// Validate checks the structural invariants every pass must preserve:
// every non-terminator instruction lives in exactly one block, each
// block ends in exactly one terminator, phi instructions only appear at
// block entry with incoming-pair counts matching predecessor counts, and
// every value is dominated by its definition. It returns the first
// violation found, or nil.
//
// Callers that only need a boolean can do `mir.Validate(f) == nil`.
func Validate(f *Function) error {
	cfg := ComputeCFG(f)
	dt := ComputeDomTree(cfg)

	for _, b := range f.blockOrder {
		if err := validateBlock(f, cfg, b); err != nil {
			return err
		}
	}
	for _, b := range f.blockOrder {
		if !cfg.Reachable(b) {
			continue
		}
		for _, inst := range f.IterInst(b) {
			if err := validateDominance(f, dt, inst); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateBlock(f *Function, cfg *CFG, b Block) error {
	insts := f.IterInst(b)
	nParams := len(f.blocks[b].params)
	_ = nParams

	sawTerm := false
	sawNonPhi := false
	for i, inst := range insts {
		d := f.InstKind(inst)
		isLast := i == len(insts)-1
		if d.Op.IsTerminator() {
			if !isLast {
				return fmt.Errorf("mir: %s has a terminator before its end", b)
			}
			sawTerm = true
		} else if isLast {
			return fmt.Errorf("mir: %s does not end in a terminator", b)
		}
		if d.Op == OpPhi {
			// Any number of phis may share a block entry (the autodiff
			// phi rule adds one derivative phi per differentiated value
			// next to the original), but every one of them must precede
			// every non-phi instruction.
			if sawNonPhi {
				return fmt.Errorf("mir: phi %s is not at entry of %s", inst, b)
			}
			preds := cfg.Preds(b)
			if cfg.Reachable(b) && len(d.Incoming) != len(preds) {
				return fmt.Errorf("mir: phi %s has %d incoming values, block %s has %d predecessors",
					inst, len(d.Incoming), b, len(preds))
			}
			for idx, e := range d.Incoming {
				if idx < len(preds) && e.Pred != preds[idx] {
					return fmt.Errorf("mir: phi %s incoming order does not match predecessor order of %s", inst, b)
				}
			}
		}
		if d.Op == OpJmp {
			target := d.Target
			if len(d.JmpArgs) != len(f.blocks[target].params) {
				return fmt.Errorf("mir: jmp to %s supplies %d args, expects %d", target, len(d.JmpArgs), len(f.blocks[target].params))
			}
		}
		if d.Op != OpPhi {
			sawNonPhi = true
		}
	}
	if !sawTerm && cfg.Reachable(b) {
		return fmt.Errorf("mir: %s has no terminator", b)
	}
	return nil
}

func validateDominance(f *Function, dt *DomTree, inst Inst) error {
	d := f.InstKind(inst)
	block := f.InstBlock(inst)
	if d.Op == OpPhi {
		// A phi reads each incoming value at the end of that edge's
		// predecessor, so the definition must dominate the predecessor.
		for _, e := range d.Incoming {
			if defBlock := f.ValueBlock(e.Value); defBlock != e.Pred && !dt.Dominates(defBlock, e.Pred) {
				return fmt.Errorf("mir: %s uses %s whose definition in %s does not dominate predecessor %s", inst, e.Value, defBlock, e.Pred)
			}
		}
		return nil
	}
	for _, operand := range d.Operands() {
		defBlock := f.ValueBlock(operand)
		if f.IsBlockParam(operand) {
			if !dt.Dominates(defBlock, block) && defBlock != block {
				return fmt.Errorf("mir: %s uses %s whose defining block %s does not dominate %s", inst, operand, defBlock, block)
			}
			continue
		}
		defInst, ok := f.ValueDef(operand)
		if !ok {
			continue
		}
		if defBlock == block {
			if !instBefore(f, defInst, inst) {
				return fmt.Errorf("mir: %s in %s uses %s defined later in the same block", inst, block, operand)
			}
			continue
		}
		if !dt.Dominates(defBlock, block) {
			return fmt.Errorf("mir: %s uses %s whose definition in %s does not dominate %s", inst, operand, defBlock, block)
		}
	}
	return nil
}

func instBefore(f *Function, a, b Inst) bool {
	block := f.InstBlock(a)
	for _, i := range f.IterInst(block) {
		if i == a {
			return true
		}
		if i == b {
			return false
		}
	}
	return false
}
