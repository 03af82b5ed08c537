package mir

import "fmt"

type valueData struct {
	typ Type
	// def is the instruction that produces this value. For block
	// parameters (phi inputs), def is InvalidInst and block/paramIdx
	// locate it instead.
	def      Inst
	block    Block
	isParam  bool
	paramIdx int
}

type blockData struct {
	params []Value
	head   Inst
	tail   Inst
}

type instData struct {
	data    InstData
	results []Value
	block   Block
	prev    Inst
	next    Inst
}

// Function is the MIR unit: arenas of values/instructions/blocks, a
// layout (block order + per-block instruction order), and a constant
// pool. Functions exclusively own their arenas; every cross reference is
// a dense index handle into one of them.
type Function struct {
	Name string

	values []valueData
	insts  []instData
	blocks []blockData

	constPool *ConstPool

	blockOrder []Block

	// OutputValues names every value that must survive optimization
	// (DAE residuals/derivatives, cache-slot writes, interpreter
	// observation points). Dead-code elimination walks back from here.
	OutputValues []Value
}

// NewFunction creates an empty function with its constant pool.
func NewFunction(name string) *Function {
	f := &Function{Name: name}
	f.constPool = newConstPool(f)
	return f
}

// AppendBlock creates a new, empty basic block at the end of the current
// layout order and returns its handle.
func (f *Function) AppendBlock() Block {
	id := Block(len(f.blocks))
	f.blocks = append(f.blocks, blockData{head: InvalidInst, tail: InvalidInst})
	f.blockOrder = append(f.blockOrder, id)
	return id
}

// MakeParam adds a block parameter (a phi's destination-side value) of
// type typ to block and returns the fresh Value. Callers are responsible
// for extending every predecessor's jump with a matching argument so the
// phi's incoming list stays aligned to predecessor order.
func (f *Function) MakeParam(block Block, typ Type) Value {
	idx := len(f.blocks[block].params)
	val := f.newValue(typ)
	vd := f.values[val]
	vd.isParam = true
	vd.block = block
	vd.paramIdx = idx
	vd.def = InvalidInst
	f.values[val] = vd
	f.blocks[block].params = append(f.blocks[block].params, val)
	return val
}

// BlockParams returns the parameter values of block, in declaration
// order; these are exactly the values a predecessor's jmp arguments (or
// a phi's incoming list) must line up with positionally.
func (f *Function) BlockParams(block Block) []Value {
	return f.blocks[block].params
}

func (f *Function) newValue(typ Type) Value {
	id := Value(len(f.values))
	f.values = append(f.values, valueData{typ: typ})
	return id
}

// numResults returns how many result values an instruction of this shape
// produces; every MIR opcode here yields at most one value.
func numResults(d InstData) int {
	if d.Op.IsTerminator() {
		return 0
	}
	switch d.Op {
	case OpPhi:
		return 1
	default:
		return 1
	}
}

// AppendInst appends an instruction to the end of block and returns its
// handle plus the fresh result values it defines (typed per instruction
// kind via InstData.ResultType, except where the caller must supply the
// type explicitly — phi and call — via AppendInstTyped).
func (f *Function) AppendInst(block Block, data InstData) (Inst, []Value) {
	return f.AppendInstTyped(block, data, nil)
}

// AppendInstTyped is AppendInst but lets the caller override the result
// type (required for OpPhi, whose type can't be inferred from an empty
// incoming list, and OpCall, whose type is the callback's declared
// return type).
func (f *Function) AppendInstTyped(block Block, data InstData, resultType Type) (Inst, []Value) {
	inst := f.allocInst(data)
	f.results(inst, data, resultType)
	f.linkAtTail(block, inst)
	return inst, f.insts[inst].results
}

func (f *Function) allocInst(data InstData) Inst {
	id := Inst(len(f.insts))
	f.insts = append(f.insts, instData{data: data, prev: InvalidInst, next: InvalidInst})
	return id
}

func (f *Function) results(inst Inst, data InstData, resultType Type) {
	n := numResults(data)
	results := make([]Value, 0, n)
	if n == 1 {
		var typ Type
		if resultType != nil {
			typ = resultType
		} else {
			typ = data.ResultType(f.ValueType)
		}
		val := f.newValue(typ)
		vd := f.values[val]
		vd.def = inst
		vd.block = f.insts[inst].block
		f.values[val] = vd
		results = append(results, val)
	}
	id := &f.insts[inst]
	id.results = results
}

func (f *Function) linkAtTail(block Block, inst Inst) {
	bd := &f.blocks[block]
	id := &f.insts[inst]
	id.block = block
	for _, r := range id.results {
		vd := f.values[r]
		vd.block = block
		f.values[r] = vd
	}
	if bd.tail.Valid() {
		f.insts[bd.tail].next = inst
		id.prev = bd.tail
	} else {
		bd.head = inst
	}
	bd.tail = inst
}

// InsertInstBefore inserts a freshly built instruction immediately before
// `before` in the same block (used by the AD pass to materialize
// derivative chains next to the value they differentiate).
func (f *Function) InsertInstBefore(before Inst, data InstData, resultType Type) (Inst, []Value) {
	block := f.insts[before].block
	inst := f.allocInst(data)
	f.results(inst, data, resultType)
	id := &f.insts[inst]
	id.block = block
	for _, r := range id.results {
		vd := f.values[r]
		vd.block = block
		f.values[r] = vd
	}
	prev := f.insts[before].prev
	id.prev = prev
	id.next = before
	f.insts[before].prev = inst
	if prev.Valid() {
		f.insts[prev].next = inst
	} else {
		f.blocks[block].head = inst
	}
	return inst, id.results
}

// MoveInstToEnd unlinks inst from its current block and relinks it at
// the tail of dest, retargeting its result values' owning block. Used by
// CFG simplification to splice a merged block's body into its
// predecessor.
func (f *Function) MoveInstToEnd(dest Block, inst Inst) {
	f.RemoveInst(inst)
	id := &f.insts[inst]
	id.prev = InvalidInst
	id.next = InvalidInst
	f.linkAtTail(dest, inst)
}

// ReplaceInst mutates inst in place. The number and types of result
// values must match what was there before; this keeps every existing
// use of the old results valid without renumbering.
func (f *Function) ReplaceInst(inst Inst, data InstData) error {
	old := f.insts[inst]
	newN := numResults(data)
	if newN != len(old.results) {
		return fmt.Errorf("mir: ReplaceInst changed result arity of %s (%d -> %d)", inst, len(old.results), newN)
	}
	if newN == 1 {
		newTyp := data.ResultType(f.ValueType)
		oldTyp := f.values[old.results[0]].typ
		if !SameKind(newTyp, oldTyp) {
			return fmt.Errorf("mir: ReplaceInst changed result type of %s (%s -> %s)", inst, oldTyp, newTyp)
		}
	}
	f.insts[inst].data = data
	return nil
}

// RemoveInst unlinks inst from its block's instruction list. The
// instruction's arena slot is retained (indices stay dense) but it is no
// longer reachable from any block, so it is dead for every subsequent
// pass.
func (f *Function) RemoveInst(inst Inst) {
	id := f.insts[inst]
	block := id.block
	bd := &f.blocks[block]
	if id.prev.Valid() {
		f.insts[id.prev].next = id.next
	} else {
		bd.head = id.next
	}
	if id.next.Valid() {
		f.insts[id.next].prev = id.prev
	} else {
		bd.tail = id.prev
	}
}

// InstKind returns the instruction's data (opcode + operands).
func (f *Function) InstKind(inst Inst) InstData { return f.insts[inst].data }

// SetInstData replaces an instruction's payload without the arity/type
// checks ReplaceInst performs; used internally by passes that already
// proved the replacement is safe (e.g. operand rewriting after GVN).
func (f *Function) SetInstData(inst Inst, data InstData) { f.insts[inst].data = data }

// InstResults returns the (at most one) value an instruction defines.
func (f *Function) InstResults(inst Inst) []Value { return f.insts[inst].results }

// InstResult is a convenience accessor for the common single-result case.
func (f *Function) InstResult(inst Inst) Value {
	r := f.insts[inst].results
	if len(r) == 0 {
		return InvalidValue
	}
	return r[0]
}

// InstBlock returns the block an instruction currently lives in.
func (f *Function) InstBlock(inst Inst) Block { return f.insts[inst].block }

// Operands returns the values read by inst.
func (f *Function) Operands(inst Inst) []Value {
	d := f.insts[inst].data
	return d.Operands()
}

// ValueDef returns the instruction that defines val, or InvalidInst if
// val is a block parameter (phi input) rather than an instruction result.
func (f *Function) ValueDef(val Value) (Inst, bool) {
	vd := f.values[val]
	if vd.isParam {
		return InvalidInst, false
	}
	return vd.def, true
}

// ValueBlock returns the block a value is (or would be, for a constant)
// defined in.
func (f *Function) ValueBlock(val Value) Block { return f.values[val].block }

// ValueType returns the domain a value belongs to.
func (f *Function) ValueType(val Value) Type { return f.values[val].typ }

// IsBlockParam reports whether val is a block parameter rather than an
// instruction result.
func (f *Function) IsBlockParam(val Value) bool { return f.values[val].isParam }

// NumValues returns the dense upper bound on Value handles (some may be
// dead, i.e. unreferenced, without being renumbered out — DCE physically
// removes their defining instruction but value numbering stays dense by
// convention of never reusing old handles within one compile).
func (f *Function) NumValues() int { return len(f.values) }

// NumInsts returns the dense upper bound on Inst handles.
func (f *Function) NumInsts() int { return len(f.insts) }

// NumBlocks returns the dense upper bound on Block handles.
func (f *Function) NumBlocks() int { return len(f.blocks) }

// BlockOrder returns the blocks in current layout order.
func (f *Function) BlockOrder() []Block { return f.blockOrder }

// SetBlockOrder replaces the layout's block order wholesale; used by
// simplify-cfg after removing unreachable blocks.
func (f *Function) SetBlockOrder(order []Block) { f.blockOrder = order }

// IterInst walks block's instructions (including its terminator) in
// layout order.
func (f *Function) IterInst(block Block) []Inst {
	var out []Inst
	for i := f.blocks[block].head; i.Valid(); i = f.insts[i].next {
		out = append(out, i)
	}
	return out
}

// FirstNonPhi returns the first instruction in block that is not a phi —
// the position a newly built phi must be inserted before to keep every
// phi at block entry. A well-formed block always has one (its
// terminator, at least).
func (f *Function) FirstNonPhi(block Block) (Inst, bool) {
	for i := f.blocks[block].head; i.Valid(); i = f.insts[i].next {
		if f.insts[i].data.Op != OpPhi {
			return i, true
		}
	}
	return InvalidInst, false
}

// Terminator returns the instruction that ends block, which must exist
// per the function's invariants once the function is well-formed.
func (f *Function) Terminator(block Block) (Inst, bool) {
	tail := f.blocks[block].tail
	if !tail.Valid() {
		return InvalidInst, false
	}
	if !f.insts[tail].data.Op.IsTerminator() {
		return InvalidInst, false
	}
	return tail, true
}

// Successors returns the blocks a terminator can transfer control to.
func (d *InstData) Successors() []Block {
	switch d.Op {
	case OpBr:
		return []Block{d.Then, d.Else}
	case OpJmp:
		return []Block{d.Target}
	default:
		return nil
	}
}

// ConstPool exposes the function's canonicalizing constant table.
func (f *Function) ConstPool() *ConstPool { return f.constPool }

// FConst returns (creating if needed) the canonical preamble value for a
// bit-identical float constant.
func (f *Function) FConst(v float64) Value { return f.constPool.Float(v) }

// IConst returns the canonical preamble value for an integer constant.
func (f *Function) IConst(v int64) Value { return f.constPool.Int(v) }

// BConst returns the canonical preamble value for a boolean constant.
func (f *Function) BConst(v bool) Value { return f.constPool.Bool(v) }

// SConst returns the canonical preamble value for a string constant.
func (f *Function) SConst(v string) Value { return f.constPool.Str(v) }
