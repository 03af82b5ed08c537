// Package initsplit partitions an optimized mir.Function into an init
// function (the operating-point-independent work) and an eval function
// (run on every Newton iteration), sharing state only through typed cache
// slots.
package initsplit

import (
	"sort"

	"vamir/internal/hir"
	"vamir/internal/hirlower"
	"vamir/internal/mir"
	"vamir/internal/mir/opt"
)

// SlotState names where a cache slot is in its lifecycle. Every slot
// this package creates is recorded as WrittenByInit when init's value for
// it exists and ends at ReadByEval (Split never leaves one at Created); the
// invariant initsplit enforces is that no slot is ever written from the
// eval side or read from the init side.
type SlotState uint8

const (
	Created SlotState = iota
	WrittenByInit
	ReadByEval
)

// CacheSlot is one Value handed from init to eval. EvalValue is a
// fresh entry-block parameter of the eval function standing in for the
// original (now init-only) Value.
type CacheSlot struct {
	Name       string
	Type       mir.Type
	InitValue  mir.Value // the value, in Init, that gets written to this slot
	EvalValue  mir.Value // the eval-function parameter reads resolve to
	State      SlotState
}

// Result is the outcome of partitioning one function with Split.
type Result struct {
	Init  *mir.Function
	Eval  *mir.Function
	Slots []CacheSlot
}

// opDependenceSources collects every Value that must seed the taint:
// noise-callback results and any parameter read tagged as op-dependent
// (a parameter whose value can only be known once the operating point
// is known — none of hirlower's ParamParameter reads are themselves
// op-dependent, but a node-voltage or branch-current read always is,
// since both vary with the operating point by definition).
func opDependenceSources(fn *mir.Function, interner *hirlower.HirInterner, module *hir.ModuleInfo) []mir.Value {
	var seeds []mir.Value
	for i := range module.Nodes {
		if v, ok := interner.ParamValue(hirlower.ParamKind{Tag: hirlower.ParamNodeVoltage, Node: hir.NodeId(i)}); ok {
			seeds = append(seeds, v)
		}
	}
	for i := range module.Branches {
		bid := hir.BranchId(i)
		if v, ok := interner.ParamValue(hirlower.ParamKind{Tag: hirlower.ParamBranchVoltage, Branch: bid}); ok {
			seeds = append(seeds, v)
		}
		if v, ok := interner.ParamValue(hirlower.ParamKind{Tag: hirlower.ParamBranchCurrent, Branch: bid}); ok {
			seeds = append(seeds, v)
		}
	}
	for _, tag := range []hirlower.CallBackTag{hirlower.CallbackWhiteNoise, hirlower.CallbackFlickerNoise, hirlower.CallbackNoiseTable} {
		for _, ref := range interner.CallBacksOfTag(tag) {
			for _, block := range fn.BlockOrder() {
				for _, inst := range fn.IterInst(block) {
					data := fn.InstKind(inst)
					if data.Op == mir.OpCall && data.Callee == ref {
						seeds = append(seeds, fn.InstResult(inst))
					}
				}
			}
		}
	}
	return seeds
}

// Split computes the operating-point-dependence taint over fn (§4.C's
// taint propagation, seeded per opDependenceSources), then partitions
// fn's instructions: every untainted instruction is a candidate for
// init, every tainted instruction stays in eval. Untainted operands of
// a tainted instruction become cache slots.
func Split(fn *mir.Function, interner *hirlower.HirInterner, module *hir.ModuleInfo) *Result {
	cfg := mir.ComputeCFG(fn)
	seeds := opDependenceSources(fn, interner, module)
	taint := opt.NewTaint(fn, seeds)
	taint.Propagate(cfg)

	init := mir.NewFunction(fn.Name + "_init")
	eval := mir.NewFunction(fn.Name + "_eval")
	initEntry := init.AppendBlock()
	evalEntry := eval.AppendBlock()

	initVal := make(map[mir.Value]mir.Value) // fn value -> init-function value
	evalVal := make(map[mir.Value]mir.Value) // fn value -> eval-function value
	slotForValue := make(map[mir.Value]int)  // fn value -> index into slots, once promoted
	var slots []CacheSlot

	// Every block parameter (an external read materialized by
	// hirlower.MirBuilder.ReadParam, or a phi destination) is cloned up
	// front into whichever side can see it: a tainted read only ever
	// makes sense inside eval, an untainted one only inside init. This
	// mirrors step 4's "replace live-outs with writes to the cache
	// slots" for the one case cache slots don't cover — a value with no
	// defining instruction at all.
	for _, b := range fn.BlockOrder() {
		for _, p := range fn.BlockParams(b) {
			typ := fn.ValueType(p)
			if taint.IsTainted(p) {
				evalVal[p] = eval.MakeParam(evalEntry, typ)
			} else {
				initVal[p] = init.MakeParam(initEntry, typ)
			}
		}
	}

	order := fn.BlockOrder()
	for _, b := range order {
		for _, inst := range fn.IterInst(b) {
			data := fn.InstKind(inst)
			tainted := taint.IsTainted(fn.InstResult(inst)) || dependsOnTainted(fn, taint, data)
			if !tainted {
				cloneInto(fn, init, inst, data, initVal)
				continue
			}
			ensureOperandSlots(fn, init, eval, evalEntry, data, taint, initVal, slotForValue, &slots)
			cloneIntoEval(fn, eval, inst, data, evalVal, slotForValue, &slots)
		}
	}
	if _, ok := eval.Terminator(evalEntry); !ok {
		eval.AppendInst(evalEntry, mir.InstData{Op: mir.OpReturn})
	}
	if _, ok := init.Terminator(initEntry); !ok {
		init.AppendInst(initEntry, mir.InstData{Op: mir.OpReturn})
	}

	for _, v := range fn.OutputValues {
		if taint.IsTainted(v) {
			if ev, ok := evalVal[v]; ok {
				eval.OutputValues = append(eval.OutputValues, ev)
			} else if idx, ok := slotForValue[v]; ok {
				eval.OutputValues = append(eval.OutputValues, slots[idx].EvalValue)
			}
			continue
		}
		if iv, ok := initVal[v]; ok {
			init.OutputValues = append(init.OutputValues, iv)
		}
	}

	// Init's slot writes are outputs of Init, so optimizing Init keeps
	// the instructions that produce them.
	for i := range slots {
		init.OutputValues = append(init.OutputValues, slots[i].InitValue)
		slots[i].State = ReadByEval
	}

	// Declaration order among slots is determined by the order their
	// backing values first appeared as an untainted operand above;
	// sorting here only fixes a stable, deterministic presentation
	// order (by name) for callers like layout that need one, without
	// disturbing the EvalValue/InitValue each slot already carries.
	sort.Slice(slots, func(i, j int) bool { return slots[i].Name < slots[j].Name })

	return &Result{Init: init, Eval: eval, Slots: slots}
}

func dependsOnTainted(fn *mir.Function, t *opt.Taint, data mir.InstData) bool {
	for _, op := range data.Operands() {
		if t.IsTainted(op) {
			return true
		}
	}
	return false
}

func cloneInto(fn, dst *mir.Function, inst mir.Inst, data mir.InstData, valMap map[mir.Value]mir.Value) {
	block := dst.BlockOrder()[0]
	remapped := remapOperands(data, valMap)
	newInst, res := dst.AppendInst(block, remapped)
	_ = newInst
	if len(res) == 1 {
		valMap[fn.InstResult(inst)] = res[0]
	}
}

func cloneIntoEval(fn, dst *mir.Function, inst mir.Inst, data mir.InstData, valMap map[mir.Value]mir.Value, slotForValue map[mir.Value]int, slots *[]CacheSlot) {
	block := dst.BlockOrder()[0]
	remapped := remapEvalOperands(data, valMap, slotForValue, *slots)
	_, res := dst.AppendInst(block, remapped)
	if len(res) == 1 {
		valMap[fn.InstResult(inst)] = res[0]
	}
}

// ensureOperandSlots promotes every untainted operand of a tainted
// instruction to a cache slot, writing it in init (if not already
// written) and reserving the eval-side parameter that will read it.
func ensureOperandSlots(fn, init, eval *mir.Function, evalEntry mir.Block, data mir.InstData, t *opt.Taint, initVal map[mir.Value]mir.Value, slotForValue map[mir.Value]int, slots *[]CacheSlot) {
	for _, op := range data.Operands() {
		if t.IsTainted(op) {
			continue
		}
		if _, done := slotForValue[op]; done {
			continue
		}
		iv, ok := initVal[op]
		if !ok {
			// A constant or block param never cloned because nothing
			// untainted referenced it yet; clone it now, in init.
			iv = cloneValueOnDemand(fn, init, op, initVal)
		}
		typ := fn.ValueType(op)
		ev := eval.MakeParam(evalEntry, typ)
		idx := len(*slots)
		name := op.String()
		*slots = append(*slots, CacheSlot{Name: name, Type: typ, InitValue: iv, EvalValue: ev, State: WrittenByInit})
		slotForValue[op] = idx
	}
}

func cloneValueOnDemand(fn, dst *mir.Function, v mir.Value, valMap map[mir.Value]mir.Value) mir.Value {
	if iv, ok := valMap[v]; ok {
		return iv
	}
	inst, ok := fn.ValueDef(v)
	if !ok {
		// Block parameter with no definition reachable from init's
		// partial clone (e.g. an op-dependent read never written into
		// init) — this is a programming error in the split, not a
		// user-visible one; the caller's taint seeding should prevent
		// reaching this via an untainted operand.
		panic("initsplit: value has no definition reachable for init clone")
	}
	data := fn.InstKind(inst)
	remapped := remapOperands(data, valMap)
	block := dst.BlockOrder()[0]
	_, res := dst.AppendInst(block, remapped)
	valMap[v] = res[0]
	return res[0]
}

func remapOperands(data mir.InstData, valMap map[mir.Value]mir.Value) mir.InstData {
	out := data
	switch data.Op {
	case mir.OpPhi:
		out.Incoming = append([]mir.PhiEdge(nil), data.Incoming...)
		for i, e := range out.Incoming {
			out.Incoming[i].Value = remapValue(e.Value, valMap)
		}
	case mir.OpBr:
		out.Cond = remapValue(data.Cond, valMap)
	case mir.OpJmp:
		out.JmpArgs = remapSlice(data.JmpArgs, valMap)
	default:
		out.Args = remapSlice(data.Args, valMap)
	}
	return out
}

// remapEvalOperands is remapOperands but an untainted operand that was
// promoted to a cache slot resolves through the eval function's
// corresponding slot-read parameter instead of the (nonexistent, in
// eval) init-side value.
func remapEvalOperands(data mir.InstData, valMap map[mir.Value]mir.Value, slotForValue map[mir.Value]int, slots []CacheSlot) mir.InstData {
	resolve := func(v mir.Value) mir.Value {
		if idx, ok := slotForValue[v]; ok {
			return slots[idx].EvalValue
		}
		return remapValue(v, valMap)
	}
	out := data
	switch data.Op {
	case mir.OpPhi:
		out.Incoming = append([]mir.PhiEdge(nil), data.Incoming...)
		for i, e := range out.Incoming {
			out.Incoming[i].Value = resolve(e.Value)
		}
	case mir.OpBr:
		out.Cond = resolve(data.Cond)
	case mir.OpJmp:
		out.JmpArgs = make([]mir.Value, len(data.JmpArgs))
		for i, v := range data.JmpArgs {
			out.JmpArgs[i] = resolve(v)
		}
	default:
		out.Args = make([]mir.Value, len(data.Args))
		for i, v := range data.Args {
			out.Args[i] = resolve(v)
		}
	}
	return out
}

func remapValue(v mir.Value, valMap map[mir.Value]mir.Value) mir.Value {
	if r, ok := valMap[v]; ok {
		return r
	}
	return v
}

func remapSlice(vs []mir.Value, valMap map[mir.Value]mir.Value) []mir.Value {
	out := make([]mir.Value, len(vs))
	for i, v := range vs {
		out[i] = remapValue(v, valMap)
	}
	return out
}
