package mir

// CFG is the control-flow graph derived from a function's terminators.
// It is not stored inside Function: every CFG-changing pass must rebuild
// it, the same way a dominator tree is a derived view rebuilt on demand.
type CFG struct {
	preds map[Block][]Block
	succs map[Block][]Block
	order []Block // blocks that existed when this CFG was built
}

// ComputeCFG builds the predecessor/successor maps in one sweep over
// every block's terminator.
func ComputeCFG(f *Function) *CFG {
	cfg := &CFG{
		preds: make(map[Block][]Block),
		succs: make(map[Block][]Block),
		order: append([]Block(nil), f.blockOrder...),
	}
	for _, b := range f.blockOrder {
		cfg.preds[b] = nil
		cfg.succs[b] = nil
	}
	for _, b := range f.blockOrder {
		term, ok := f.Terminator(b)
		if !ok {
			continue
		}
		data := f.InstKind(term)
		for _, s := range data.Successors() {
			cfg.succs[b] = append(cfg.succs[b], s)
			cfg.preds[s] = append(cfg.preds[s], b)
		}
	}
	return cfg
}

func (c *CFG) Preds(b Block) []Block { return c.preds[b] }
func (c *CFG) Succs(b Block) []Block { return c.succs[b] }

// Entry is the layout's first block, the unique function entry point.
func (c *CFG) Entry() Block {
	if len(c.order) == 0 {
		return InvalidBlock
	}
	return c.order[0]
}

// Postorder returns a DFS postorder over every block reachable from the
// entry block. Reverse postorder (reverse this slice) is the natural
// linearization every forward dataflow pass in internal/mir/opt uses.
func (c *CFG) Postorder() []Block {
	visited := make(map[Block]bool)
	var order []Block
	var visit func(Block)
	visit = func(b Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range c.succs[b] {
			visit(s)
		}
		order = append(order, b)
	}
	if e := c.Entry(); e.Valid() {
		visit(e)
	}
	return order
}

// ReversePostorder is the natural linearization for forward dataflow.
func (c *CFG) ReversePostorder() []Block {
	po := c.Postorder()
	rpo := make([]Block, len(po))
	for i, b := range po {
		rpo[len(po)-1-i] = b
	}
	return rpo
}

// Reachable reports whether block b was visited from the entry in the
// CFG this was computed from.
func (c *CFG) Reachable(b Block) bool {
	for _, x := range c.Postorder() {
		if x == b {
			return true
		}
	}
	return false
}

// Blocks returns every block known to this CFG (including unreachable
// ones), in the layout order at computation time.
func (c *CFG) Blocks() []Block { return c.order }
