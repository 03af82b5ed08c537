package simback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vamir/internal/hir"
	"vamir/internal/hirlower"
	"vamir/internal/mir"
)

type stubDB struct{ module *hir.ModuleInfo }

func (d stubDB) NodeName(n hir.NodeId) string          { return d.module.Nodes[n].Name }
func (d stubDB) ParamName(p hir.ParamId) string        { return d.module.Params[p].Name }
func (d stubDB) ParamType(p hir.ParamId) hir.ValueKind { return d.module.Params[p].Kind }
func (d stubDB) VarName(v hir.VarId) string            { return d.module.Vars[v].Name }
func (d stubDB) VarType(v hir.VarId) hir.ValueKind     { return d.module.Vars[v].Kind }
func (d stubDB) BranchName(b hir.BranchId) string      { return d.module.Branches[b].Name }

// resistorModule mirrors the dae and topology packages' own test
// fixture: a linear two-node resistor, `I(a,b) <+ (V(a)-V(b))/r;`.
func resistorModule() *hir.ModuleInfo {
	return &hir.ModuleInfo{
		Name:       "resistor",
		Nodes:      []hir.Node{{Name: "a", IsPort: true}, {Name: "b", IsPort: true}, {Name: "gnd", IsPort: true}},
		Params:     []hir.Param{{Name: "r", Kind: hir.Real, IsInstance: true, Default: 1000}},
		Branches:   []hir.Branch{{Name: "br_ab", Hi: 0, Lo: 1}},
		GroundNode: 2,
	}
}

func resistorEquations(b *hirlower.MirBuilder) mir.Block {
	entry := b.Entry()
	fn := b.Func()
	vA := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamNodeVoltage, Node: 0}, mir.Float)
	vB := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamNodeVoltage, Node: 1}, mir.Float)
	r := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamParameter, Param: 0}, mir.Float)
	_, diff := fn.AppendInst(entry, mir.InstData{Op: mir.OpFSub, Args: []mir.Value{vA, vB}})
	_, current := fn.AppendInst(entry, mir.InstData{Op: mir.OpFDiv, Args: []mir.Value{diff[0], r}})
	b.Contribute(0, false, current[0])
	return entry
}

func TestCompileModuleProducesValidatedInitAndEvalHalves(t *testing.T) {
	module := resistorModule()
	db := stubDB{module: module}
	isOutput := func(k hirlower.PlaceKind) bool { return k.Tag == hirlower.PlaceContribute }

	compiled, err := CompileModule(module, db, resistorEquations, isOutput, hir.NewLiterals())
	require.NoError(t, err)

	require.NoError(t, mir.Validate(compiled.Init))
	require.NoError(t, mir.Validate(compiled.Eval))

	assert.NotEmpty(t, compiled.DAE.Unknowns)
	assert.NotEmpty(t, compiled.DAE.Residuals)
	assert.NotNil(t, compiled.Topology)
	assert.NotEmpty(t, compiled.Eval.OutputValues)
	assert.NotNil(t, compiled.ModelParamSetupFn)
	assert.NotNil(t, compiled.ModelParamInterner)
}

func TestCompileModuleBuildsModelParamSetupFromModelScopedDefaults(t *testing.T) {
	module := resistorModule()
	module.Params = append(module.Params, hir.Param{Name: "tnom", Kind: hir.Real, IsInstance: false, Default: 27})
	db := stubDB{module: module}
	isOutput := func(k hirlower.PlaceKind) bool { return k.Tag == hirlower.PlaceContribute }

	compiled, err := CompileModule(module, db, resistorEquations, isOutput, hir.NewLiterals())
	require.NoError(t, err)

	require.NoError(t, mir.Validate(compiled.ModelParamSetupFn))
	assert.Len(t, compiled.ModelParamSetupFn.OutputValues, 1)
}

func TestLoopOpDependenceMarksSeededValueTainted(t *testing.T) {
	fn := mir.NewFunction("probe")
	entry := fn.AppendBlock()
	p := fn.MakeParam(entry, mir.Float)
	_, res := fn.AppendInst(entry, mir.InstData{Op: mir.OpFNeg, Args: []mir.Value{p}})
	fn.AppendInst(entry, mir.InstData{Op: mir.OpReturn})

	taint := LoopOpDependence(fn, []mir.Value{p})
	assert.True(t, taint.IsTainted(p))
	assert.True(t, taint.IsTainted(res[0]))
}
