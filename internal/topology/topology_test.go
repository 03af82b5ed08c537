package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"

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

func buildResistiveFunction(t *testing.T) (*mir.Function, *hirlower.HirInterner, *hir.ModuleInfo) {
	t.Helper()
	module := &hir.ModuleInfo{
		Name:     "resistor",
		Nodes:    []hir.Node{{Name: "a", IsPort: true}, {Name: "b", IsPort: true}},
		Params:   []hir.Param{{Name: "r", Kind: hir.Real, Default: 1000}},
		Branches: []hir.Branch{{Name: "br_ab", Hi: 0, Lo: 1}},
	}
	db := stubDB{module: module}
	b := hirlower.NewMirBuilder(db, module, nil, nil).WithEquations(func(b *hirlower.MirBuilder) mir.Block {
		entry := b.Entry()
		fn := b.Func()
		vA := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamNodeVoltage, Node: 0}, mir.Float)
		vB := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamNodeVoltage, Node: 1}, mir.Float)
		r := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamParameter, Param: 0}, mir.Float)
		_, diff := fn.AppendInst(entry, mir.InstData{Op: mir.OpFSub, Args: []mir.Value{vA, vB}})
		_, current := fn.AppendInst(entry, mir.InstData{Op: mir.OpFDiv, Args: []mir.Value{diff[0], r}})
		b.Contribute(0, false, current[0])
		return entry
	})
	fn, interner := b.Build(hir.NewLiterals())
	return fn, interner, module
}

func TestAnalyzeClassifiesTwoNodeBranchAsResistive(t *testing.T) {
	fn, interner, module := buildResistiveFunction(t)
	result := Analyze(fn, interner, module)
	assert.Equal(t, Resistive, result.Class[0])
	assert.Empty(t, result.Collapse)
}

func TestAnalyzeClassifiesParameterOnlyContributionAsSource(t *testing.T) {
	module := &hir.ModuleInfo{
		Name:     "current_source",
		Nodes:    []hir.Node{{Name: "a"}, {Name: "b"}},
		Params:   []hir.Param{{Name: "i0", Kind: hir.Real, Default: 1e-3}},
		Branches: []hir.Branch{{Name: "br_ab", Hi: 0, Lo: 1}},
	}
	db := stubDB{module: module}
	b := hirlower.NewMirBuilder(db, module, nil, nil).WithEquations(func(b *hirlower.MirBuilder) mir.Block {
		i0 := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamParameter, Param: 0}, mir.Float)
		b.Contribute(0, false, i0)
		return b.Entry()
	})
	fn, interner := b.Build(hir.NewLiterals())

	result := Analyze(fn, interner, module)
	assert.Equal(t, Source, result.Class[0])
}

func TestAnalyzeCollapsesZeroContributionBranch(t *testing.T) {
	module := &hir.ModuleInfo{
		Name:     "open_branch",
		Nodes:    []hir.Node{{Name: "a"}, {Name: "b"}},
		Branches: []hir.Branch{{Name: "br_ab", Hi: 0, Lo: 1}},
	}
	db := stubDB{module: module}
	b := hirlower.NewMirBuilder(db, module, nil, nil).WithEquations(func(b *hirlower.MirBuilder) mir.Block {
		zero := b.Func().FConst(0)
		b.Contribute(0, false, zero)
		return b.Entry()
	})
	fn, interner := b.Build(hir.NewLiterals())

	result := Analyze(fn, interner, module)
	assert.Len(t, result.Collapse, 1)
	assert.Equal(t, hir.BranchId(0), result.Collapse[0].Branch)
}

func TestDependsOnWalksTransitiveOperands(t *testing.T) {
	fn, interner, _ := buildResistiveFunction(t)
	residual, ok := interner.PlaceValue(hirlower.PlaceKind{Tag: hirlower.PlaceContribute, Branch: 0, Reactive: false})
	assert.True(t, ok)
	vA, _ := interner.ParamValue(hirlower.ParamKind{Tag: hirlower.ParamNodeVoltage, Node: 0})
	assert.True(t, DependsOn(fn, residual, vA))
}
