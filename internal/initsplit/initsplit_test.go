package initsplit

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

// buildTempDependentResistor lowers a resistor whose resistance is first
// scaled by a parameter-only temperature-coefficient expression (pure
// parameter preprocessing, init-eligible) before being divided into the
// voltage difference (operating-point dependent, eval-only).
func buildTempDependentResistor(t *testing.T) (*mir.Function, *hirlower.HirInterner, *hir.ModuleInfo) {
	t.Helper()
	module := &hir.ModuleInfo{
		Name:  "resistor",
		Nodes: []hir.Node{{Name: "a", IsPort: true}, {Name: "b", IsPort: true}},
		Params: []hir.Param{
			{Name: "r", Kind: hir.Real, IsInstance: true, Default: 1000},
			{Name: "tc1", Kind: hir.Real, IsInstance: true, Default: 0.01},
		},
		Branches: []hir.Branch{{Name: "br_ab", Hi: 0, Lo: 1}},
	}
	db := stubDB{module: module}
	isOutput := func(k hirlower.PlaceKind) bool { return k.Tag == hirlower.PlaceContribute }
	b := hirlower.NewMirBuilder(db, module, isOutput, nil).WithEquations(func(b *hirlower.MirBuilder) mir.Block {
		entry := b.Entry()
		fn := b.Func()
		r := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamParameter, Param: 0}, mir.Float)
		tc1 := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamParameter, Param: 1}, mir.Float)
		_, scale := fn.AppendInst(entry, mir.InstData{Op: mir.OpFAdd, Args: []mir.Value{fn.FConst(1), tc1}})
		_, rEff := fn.AppendInst(entry, mir.InstData{Op: mir.OpFMul, Args: []mir.Value{r, scale[0]}})

		vA := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamNodeVoltage, Node: 0}, mir.Float)
		vB := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamNodeVoltage, Node: 1}, mir.Float)
		_, diff := fn.AppendInst(entry, mir.InstData{Op: mir.OpFSub, Args: []mir.Value{vA, vB}})
		_, current := fn.AppendInst(entry, mir.InstData{Op: mir.OpFDiv, Args: []mir.Value{diff[0], rEff[0]}})
		b.Contribute(0, false, current[0])
		return entry
	})
	fn, interner := b.Build(hir.NewLiterals())
	return fn, interner, module
}

func TestSplitSeparatesParameterPreprocessingFromOperatingPointCode(t *testing.T) {
	fn, interner, module := buildTempDependentResistor(t)
	require.NoError(t, mir.Validate(fn))

	split := Split(fn, interner, module)
	require.NoError(t, mir.Validate(split.Init))
	require.NoError(t, mir.Validate(split.Eval))

	assert.NotEmpty(t, split.Slots, "the effective-resistance value should become a cache slot")
	assert.NotEmpty(t, split.Eval.OutputValues)
	assert.Len(t, split.Init.OutputValues, len(split.Slots), "init's only outputs are its cache-slot writes")

	for _, slot := range split.Slots {
		assert.Equal(t, ReadByEval, slot.State)
	}
}
