package dae

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vamir/internal/hir"
	"vamir/internal/hirlower"
	"vamir/internal/mir"
	"vamir/internal/mir/opt"
	"vamir/internal/topology"
)

// runOptRound applies one round of the fixed optimizer pass set, the
// way internal/simback's context sequences it, until nothing changes —
// enough to fold ddx-synthesized arithmetic down to its simplest form
// for sparsify to recognize a constant zero.
func runOptRound(fn *mir.Function) {
	for {
		cfg := mir.ComputeCFG(fn)
		changed := false
		changed = opt.SparseConditionalConstantPropagation(fn, cfg) || changed
		changed = opt.InstCombine(fn) || changed
		changed = opt.DeadCodeElimination(fn) || changed
		if !changed {
			return
		}
	}
}

type stubDB struct{ module *hir.ModuleInfo }

func (d stubDB) NodeName(n hir.NodeId) string          { return d.module.Nodes[n].Name }
func (d stubDB) ParamName(p hir.ParamId) string        { return d.module.Params[p].Name }
func (d stubDB) ParamType(p hir.ParamId) hir.ValueKind { return d.module.Params[p].Kind }
func (d stubDB) VarName(v hir.VarId) string            { return d.module.Vars[v].Name }
func (d stubDB) VarType(v hir.VarId) hir.ValueKind     { return d.module.Vars[v].Kind }
func (d stubDB) BranchName(b hir.BranchId) string      { return d.module.Branches[b].Name }

// buildResistor lowers `I(a,b) <+ (V(a)-V(b))/r;` — a linear two-node
// resistor — the way a real frontend's with_equations callback would.
func buildResistor(t *testing.T) (*mir.Function, *hirlower.HirInterner, *hir.ModuleInfo) {
	t.Helper()
	module := &hir.ModuleInfo{
		Name:       "resistor",
		Nodes:      []hir.Node{{Name: "a", IsPort: true}, {Name: "b", IsPort: true}, {Name: "gnd", IsPort: true}},
		Params:     []hir.Param{{Name: "r", Kind: hir.Real, IsInstance: true, Default: 1000}},
		Branches:   []hir.Branch{{Name: "br_ab", Hi: 0, Lo: 1}},
		GroundNode: 2,
	}
	db := stubDB{module: module}
	isOutput := func(k hirlower.PlaceKind) bool { return k.Tag == hirlower.PlaceContribute }
	b := hirlower.NewMirBuilder(db, module, isOutput, nil).WithEquations(func(b *hirlower.MirBuilder) mir.Block {
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

func TestExtractBuildsResistiveResidualAndJacobian(t *testing.T) {
	fn, interner, module := buildResistor(t)
	topo := topology.Analyze(fn, interner, module)

	sys, err := Extract(fn, interner, module, topo)
	require.NoError(t, err)
	require.NoError(t, mir.Validate(fn))

	assert.Len(t, sys.Unknowns, len(module.Nodes)-1+len(module.Branches))
	assert.NotEmpty(t, sys.Residuals)
	assert.NotEmpty(t, sys.Jacobian)

	runOptRound(fn)
	require.NoError(t, mir.Validate(fn))

	Sparsify(fn, sys)
	assert.Equal(t, len(sys.Jacobian), sys.NumResistive+sys.NumReactive)
	assert.Greater(t, sys.NumResistive, 0)
}

// buildUncontributedBranch declares a branch that no equation ever
// writes to — the "no silent drops" case Extract must reject rather
// than silently treat as an always-zero residual.
func buildUncontributedBranch(t *testing.T) (*mir.Function, *hirlower.HirInterner, *hir.ModuleInfo) {
	t.Helper()
	module := &hir.ModuleInfo{
		Name:       "dangling",
		Nodes:      []hir.Node{{Name: "a", IsPort: true}, {Name: "gnd", IsPort: true}},
		Branches:   []hir.Branch{{Name: "br_unused", Hi: 0, Lo: 1}},
		GroundNode: 1,
	}
	db := stubDB{module: module}
	isOutput := func(k hirlower.PlaceKind) bool { return k.Tag == hirlower.PlaceContribute }
	b := hirlower.NewMirBuilder(db, module, isOutput, nil).WithEquations(func(b *hirlower.MirBuilder) mir.Block {
		return b.Entry()
	})
	fn, interner := b.Build(hir.NewLiterals())
	return fn, interner, module
}

func TestExtractRejectsBranchWithNoContribution(t *testing.T) {
	fn, interner, module := buildUncontributedBranch(t)
	topo := topology.Analyze(fn, interner, module)

	_, err := Extract(fn, interner, module, topo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E0300")
}
