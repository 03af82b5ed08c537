package mir

// DomTree is the dominator tree of a CFG, computed with the iterative
// Cooper/Harvey/Kennedy algorithm ("A Simple, Fast Dominance Algorithm").
// It is a derived view, rebuilt by any pass that changes the CFG.
type DomTree struct {
	cfg      *CFG
	idom     map[Block]Block
	postorderIdx map[Block]int
	rpo      []Block

	// postDom mirrors idom but over the reversed CFG, for the
	// aggressive-DCE control-dependence computation.
	postDom      map[Block]Block
	postOrderIdx map[Block]int
}

// ComputeDomTree builds the dominator tree over cfg.
func ComputeDomTree(cfg *CFG) *DomTree {
	dt := &DomTree{cfg: cfg}
	dt.rpo = cfg.ReversePostorder()
	dt.postorderIdx = indexOf(postorderFromRPO(dt.rpo))
	dt.idom = computeIdom(dt.rpo, dt.postorderIdx, cfg.Preds, cfg.Entry())
	return dt
}

func postorderFromRPO(rpo []Block) []Block {
	po := make([]Block, len(rpo))
	for i, b := range rpo {
		po[len(rpo)-1-i] = b
	}
	return po
}

func indexOf(order []Block) map[Block]int {
	m := make(map[Block]int, len(order))
	for i, b := range order {
		m[b] = i
	}
	return m
}

// computeIdom is the textbook Cooper/Harvey/Kennedy fixed point: blocks
// are processed in reverse postorder (so a block's predecessors are
// likely already resolved), using postorder index as the "deeper in the
// tree" ordering for the intersect step.
func computeIdom(rpo []Block, poIdx map[Block]int, preds func(Block) []Block, entry Block) map[Block]Block {
	idom := make(map[Block]Block)
	idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == entry {
				continue
			}
			var newIdom Block = InvalidBlock
			for _, p := range preds(b) {
				if _, ok := idom[p]; !ok {
					continue
				}
				if !newIdom.Valid() {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p, idom, poIdx)
			}
			if !newIdom.Valid() {
				continue
			}
			if cur, ok := idom[b]; !ok || cur != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	delete(idom, entry) // entry has no strict dominator; keep map clean
	idom[entry] = entry
	return idom
}

func intersect(a, b Block, idom map[Block]Block, poIdx map[Block]int) Block {
	for a != b {
		for poIdx[a] < poIdx[b] {
			a = idom[a]
		}
		for poIdx[b] < poIdx[a] {
			b = idom[b]
		}
	}
	return a
}

// Idom returns b's immediate dominator.
func (dt *DomTree) Idom(b Block) Block { return dt.idom[b] }

// Dominates reports whether a dominates b (a block dominates itself).
func (dt *DomTree) Dominates(a, b Block) bool {
	if !dt.cfg.Reachable(b) {
		return false
	}
	for cur := b; ; {
		if cur == a {
			return true
		}
		next := dt.idom[cur]
		if next == cur {
			return cur == a
		}
		cur = next
	}
}

// CommonAncestor returns the nearest block that dominates both a and b.
func (dt *DomTree) CommonAncestor(a, b Block) Block {
	return intersect(a, b, dt.idom, dt.postorderIdx)
}

// ComputeDomFrontiers fills out[b] with the dominance frontier of every
// block: the set of blocks where b's dominance "stops", i.e. phi
// placement candidates.
func (dt *DomTree) ComputeDomFrontiers(out map[Block][]Block) {
	for _, b := range dt.rpo {
		preds := dt.cfg.Preds(b)
		if len(preds) < 2 {
			continue
		}
		for _, p := range preds {
			runner := p
			for runner != dt.idom[b] {
				out[runner] = appendUnique(out[runner], b)
				runner = dt.idom[runner]
			}
		}
	}
}

// ComputePostDomFrontiers computes dominance frontiers over the reverse
// CFG (successors become predecessors); used as the control-dependence
// relation by aggressive DCE.
func (dt *DomTree) ComputePostDomFrontiers(out map[Block][]Block) {
	exits := exitBlocks(dt.cfg)
	rpred := func(b Block) []Block { return dt.cfg.Succs(b) }
	rsucc := func(b Block) []Block { return dt.cfg.Preds(b) }

	po := reversePostorderFrom(exits, rpred)
	poIdx := indexOf(reverseOf(po))
	pidom := computeIdomMulti(po, poIdx, rpred, exits)

	for _, b := range po {
		preds := rsucc(b)
		if len(preds) < 2 {
			continue
		}
		for _, p := range preds {
			if _, ok := pidom[p]; !ok {
				continue
			}
			runner := p
			for runner != pidom[b] {
				out[runner] = appendUnique(out[runner], b)
				nxt, ok := pidom[runner]
				if !ok || nxt == runner {
					break
				}
				runner = nxt
			}
		}
	}
	dt.postDom = pidom
}

func exitBlocks(cfg *CFG) []Block {
	var exits []Block
	for _, b := range cfg.order {
		if len(cfg.Succs(b)) == 0 && cfg.Reachable(b) {
			exits = append(exits, b)
		}
	}
	return exits
}

func reversePostorderFrom(roots []Block, preds func(Block) []Block) []Block {
	visited := make(map[Block]bool)
	var order []Block
	var visit func(Block)
	visit = func(b Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, p := range preds(b) {
			visit(p)
		}
		order = append(order, b)
	}
	for _, r := range roots {
		visit(r)
	}
	rev := make([]Block, len(order))
	for i, b := range order {
		rev[len(order)-1-i] = b
	}
	return rev
}

func reverseOf(order []Block) []Block {
	out := make([]Block, len(order))
	for i, b := range order {
		out[len(order)-1-i] = b
	}
	return out
}

func computeIdomMulti(rpo []Block, poIdx map[Block]int, preds func(Block) []Block, roots []Block) map[Block]Block {
	idom := make(map[Block]Block)
	rootSet := make(map[Block]bool, len(roots))
	for _, r := range roots {
		rootSet[r] = true
		idom[r] = r
	}
	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if rootSet[b] {
				continue
			}
			var newIdom Block = InvalidBlock
			for _, p := range preds(b) {
				if _, ok := idom[p]; !ok {
					continue
				}
				if !newIdom.Valid() {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p, idom, poIdx)
			}
			if !newIdom.Valid() {
				continue
			}
			if cur, ok := idom[b]; !ok || cur != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return idom
}

func appendUnique(s []Block, b Block) []Block {
	for _, x := range s {
		if x == b {
			return s
		}
	}
	return append(s, b)
}

// ReversePostorder is the traversal order the dominator tree was built
// from; exposed so passes can linearize without recomputing it.
func (dt *DomTree) ReversePostorder() []Block { return dt.rpo }
