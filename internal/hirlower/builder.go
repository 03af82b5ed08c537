package hirlower

import "vamir/internal/hir"
import "vamir/internal/mir"

// EquationFunc is supplied by the (out-of-scope) frontend: given a
// builder already positioned at the function's entry block, it drives
// the module body's computation through the builder's read/write/
// contribute/call surface and returns the block its last instruction
// landed in (so Build knows where to place the function's terminator).
type EquationFunc func(b *MirBuilder) mir.Block

// MirBuilder lowers one hir.ModuleInfo into a mir.Function plus the
// HirInterner describing how its values map back onto HIR concepts.
// Configure with WithEquations (required) and WithTaggedWrites
// (optional) before calling Build.
type MirBuilder struct {
	db        hir.DB
	module    *hir.ModuleInfo
	isOutput  func(PlaceKind) bool
	extraVars []hir.Var
	equations EquationFunc
	tagged    []PlaceKind

	fn       *mir.Function
	interner *HirInterner
	entry    mir.Block
	varVal   map[hir.VarId]mir.Value
}

// NewMirBuilder starts configuring a lowering of module. isOutput
// decides which write places must survive optimization (their final
// Value is added to the function's OutputValues); extraVars names
// synthetic op-vars the frontend needs beyond module.Vars (e.g. a
// hidden accumulator), addressed by VarId values >= len(module.Vars).
func NewMirBuilder(db hir.DB, module *hir.ModuleInfo, isOutput func(PlaceKind) bool, extraVars []hir.Var) *MirBuilder {
	return &MirBuilder{db: db, module: module, isOutput: isOutput, extraVars: extraVars}
}

// WithEquations sets the body-driving callback. Required before Build.
func (b *MirBuilder) WithEquations(fn EquationFunc) *MirBuilder {
	b.equations = fn
	return b
}

// WithTaggedWrites marks additional PlaceKinds whose value should be
// recorded even when isOutput doesn't already select them — used by
// callers that need to inspect an intermediate write (e.g. a test
// asserting on an op-var that never reaches a contribution).
func (b *MirBuilder) WithTaggedWrites(kinds ...PlaceKind) *MirBuilder {
	b.tagged = append(b.tagged, kinds...)
	return b
}

// Build runs the configured equation function and returns the finished
// function and its interner. literals is used to intern the module name;
// node, parameter, variable and branch names are not interned here.
func (b *MirBuilder) Build(literals *hir.Literals) (*mir.Function, *HirInterner) {
	literals.Intern(b.module.Name)
	b.fn = mir.NewFunction(b.module.Name)
	b.interner = newInterner()
	b.entry = b.fn.AppendBlock()
	b.varVal = make(map[hir.VarId]mir.Value)

	last := b.entry
	if b.equations != nil {
		last = b.equations(b)
	}
	if _, ok := b.fn.Terminator(last); !ok {
		b.fn.AppendInst(last, mir.InstData{Op: mir.OpReturn})
	}

	for _, kind := range b.tagged {
		if v, ok := b.interner.places[kind]; ok {
			b.fn.OutputValues = appendUnique(b.fn.OutputValues, v)
		}
	}
	for kind, v := range b.interner.places {
		if b.isOutput != nil && b.isOutput(kind) {
			b.fn.OutputValues = appendUnique(b.fn.OutputValues, v)
		}
	}
	return b.fn, b.interner
}

func appendUnique(vs []mir.Value, v mir.Value) []mir.Value {
	for _, existing := range vs {
		if existing == v {
			return vs
		}
	}
	return append(vs, v)
}

// Func exposes the function under construction for equation code that
// needs to emit control flow (new blocks, branches) beyond the
// straight-line read/write helpers below.
func (b *MirBuilder) Func() *mir.Function { return b.fn }

// Entry returns the function's single entry block.
func (b *MirBuilder) Entry() mir.Block { return b.entry }

// ReadParam returns the stable Value backing kind, creating it as a
// fresh entry-block parameter on first use. An entry-block parameter
// has no predecessor to supply it, which is exactly the shape of an
// externally-supplied read (a node voltage, a parameter, $temperature),
// so no synthetic "input" instruction kind is needed.
func (b *MirBuilder) ReadParam(kind ParamKind, typ mir.Type) mir.Value {
	if v, ok := b.interner.params[kind]; ok {
		return v
	}
	v := b.fn.MakeParam(b.entry, typ)
	b.interner.params[kind] = v
	return v
}

// ReadVar returns the current value of a var, materializing its
// declared default the first time it is read before any write — the
// var_init contract HIR→MIR lowering owes every uninitialized read.
func (b *MirBuilder) ReadVar(v hir.VarId, block mir.Block) mir.Value {
	if val, ok := b.varVal[v]; ok {
		return val
	}
	def := b.declaredVar(v)
	var val mir.Value
	switch def.Kind {
	case hir.Integer:
		val = b.fn.IConst(int64(def.Default))
	default:
		val = b.fn.FConst(def.Default)
	}
	b.varVal[v] = val
	b.interner.places[PlaceKind{Tag: PlaceVar, Var: v}] = val
	return val
}

// WriteVar records val as the current (and, if nothing reads the var
// again, final) value of v.
func (b *MirBuilder) WriteVar(v hir.VarId, val mir.Value) {
	b.varVal[v] = val
	b.interner.places[PlaceKind{Tag: PlaceVar, Var: v}] = val
}

// Contribute records val as the residual value contributed to branch's
// resistive or reactive place. A branch may be contributed to more than
// once in the source; like WriteVar, only the final value survives —
// accumulation across branches sharing a node happens later, in the DAE
// extractor, not here.
func (b *MirBuilder) Contribute(branch hir.BranchId, reactive bool, val mir.Value) {
	b.interner.places[PlaceKind{Tag: PlaceContribute, Branch: branch, Reactive: reactive}] = val
}

// ContributionValue returns the last value contributed to a branch's
// place, if any.
func (b *MirBuilder) ContributionValue(branch hir.BranchId, reactive bool) (mir.Value, bool) {
	v, ok := b.interner.places[PlaceKind{Tag: PlaceContribute, Branch: branch, Reactive: reactive}]
	return v, ok
}

// RegisterCallback allocates a fresh FuncRef for kind and records it in
// the interner, so later passes can ask "what does this FuncRef mean"
// without re-deriving it from call arguments.
func (b *MirBuilder) RegisterCallback(kind CallBackKind) mir.FuncRef {
	return b.interner.RegisterCallback(kind)
}

// EmitCall appends a call instruction targeting ref in block.
func (b *MirBuilder) EmitCall(block mir.Block, ref mir.FuncRef, args []mir.Value, resultType mir.Type) mir.Value {
	_, res := b.fn.AppendInstTyped(block, mir.InstData{Op: mir.OpCall, Callee: ref, Args: args}, resultType)
	return res[0]
}

func (b *MirBuilder) declaredVar(v hir.VarId) hir.Var {
	if int(v) < len(b.module.Vars) {
		return b.module.Vars[v]
	}
	return b.extraVars[int(v)-len(b.module.Vars)]
}
