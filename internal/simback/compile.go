package simback

import (
	"vamir/internal/dae"
	"vamir/internal/hir"
	"vamir/internal/hirlower"
	"vamir/internal/initsplit"
	"vamir/internal/mir"
	"vamir/internal/topology"
)

// CompiledModule is the sole value CompileModule hands back to the
// driver: the lowered function's two halves (Init/Eval) plus the
// metadata needed to generate code or run the test interpreter against
// them. Field names mirror the original's CompiledModule so the
// grounding in DESIGN.md stays traceable field-for-field.
type CompiledModule struct {
	Info     *hir.ModuleInfo
	DAE      *dae.System
	Eval     *mir.Function
	Interner *hirlower.HirInterner
	Init     *mir.Function

	ModelParamSetupFn  *mir.Function
	ModelParamInterner *hirlower.HirInterner

	NodeCollapse []topology.NodeCollapse
	Topology     *topology.Result
	Slots        []initsplit.CacheSlot
}

// CompileModule runs the full pipeline: lower, optimize, differentiate
// the DAE's Jacobian, optimize again, split into init/eval, and build
// the model-parameter setup function as its own tiny compile.
func CompileModule(info *hir.ModuleInfo, db hir.DB, equations hirlower.EquationFunc, isOutput func(hirlower.PlaceKind) bool, literals *hir.Literals) (*CompiledModule, error) {
	builder := hirlower.NewMirBuilder(db, info, isOutput, nil).WithEquations(equations)
	fn, interner := builder.Build(literals)

	(&Context{Stage: Initial}).Optimize(fn)

	topo := topology.Analyze(fn, interner, info)
	system, err := dae.Extract(fn, interner, info, topo)
	if err != nil {
		return nil, err
	}

	(&Context{Stage: PostDerivative}).Optimize(fn)
	dae.Sparsify(fn, system)

	split := initsplit.Split(fn, interner, info)
	(&Context{Stage: Final}).Optimize(split.Eval)
	(&Context{Stage: Final}).Optimize(split.Init)

	if err := mir.Validate(split.Eval); err != nil {
		return nil, err
	}
	if err := mir.Validate(split.Init); err != nil {
		return nil, err
	}

	modelFn, modelInterner := buildModelParamSetup(info, literals)

	var collapse []topology.NodeCollapse
	collapse = append(collapse, topo.Collapse...)

	return &CompiledModule{
		Info:               info,
		DAE:                system,
		Eval:               split.Eval,
		Interner:           interner,
		Init:               split.Init,
		ModelParamSetupFn:  modelFn,
		ModelParamInterner: modelInterner,
		NodeCollapse:       collapse,
		Topology:           topo,
		Slots:              split.Slots,
	}, nil
}

// buildModelParamSetup lowers the model-scoped parameter preprocessing
// (each parameter's default; no range checks are emitted) as its own
// tiny function,
// distinct from instance parameter init — this is run once per model,
// not once per instance, so sharing it with Init would force every
// instance to redo work every model shares.
func buildModelParamSetup(info *hir.ModuleInfo, literals *hir.Literals) (*mir.Function, *hirlower.HirInterner) {
	fn := mir.NewFunction(info.Name + "_model_param_setup")
	entry := fn.AppendBlock()
	interner := &hirlower.HirInterner{}
	for _, p := range info.Params {
		if p.IsInstance {
			continue
		}
		literals.Intern(p.Name)
		val := fn.FConst(p.Default)
		fn.OutputValues = append(fn.OutputValues, val)
	}
	fn.AppendInst(entry, mir.InstData{Op: mir.OpReturn})
	return fn, interner
}
