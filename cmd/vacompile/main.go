// vacompile is a minimal demo driver: it lowers a couple of hand-built
// module descriptions through simback.CompileModule and prints the
// resulting init/eval MIR, standing in for the real frontend that would
// otherwise parse a Verilog-A source file into the same hir.ModuleInfo
// shape before handing it to the same pipeline.
package main

import (
	"fmt"
	"os"

	"vamir/internal/hir"
	"vamir/internal/hirlower"
	"vamir/internal/mir"
	"vamir/internal/simback"
)

type moduleDB struct{ module *hir.ModuleInfo }

func (d moduleDB) NodeName(n hir.NodeId) string          { return d.module.Nodes[n].Name }
func (d moduleDB) ParamName(p hir.ParamId) string        { return d.module.Params[p].Name }
func (d moduleDB) ParamType(p hir.ParamId) hir.ValueKind { return d.module.Params[p].Kind }
func (d moduleDB) VarName(v hir.VarId) string            { return d.module.Vars[v].Name }
func (d moduleDB) VarType(v hir.VarId) hir.ValueKind     { return d.module.Vars[v].Kind }
func (d moduleDB) BranchName(b hir.BranchId) string      { return d.module.Branches[b].Name }

func isContribution(k hirlower.PlaceKind) bool { return k.Tag == hirlower.PlaceContribute }

// resistorModule is `I(a,b) <+ (V(a)-V(b))/r;` — a linear two-terminal
// resistor.
func resistorModule() (*hir.ModuleInfo, hirlower.EquationFunc) {
	module := &hir.ModuleInfo{
		Name:       "resistor",
		Nodes:      []hir.Node{{Name: "a", IsPort: true}, {Name: "b", IsPort: true}, {Name: "gnd", IsPort: true}},
		Params:     []hir.Param{{Name: "r", Kind: hir.Real, IsInstance: true, Default: 1000}},
		Branches:   []hir.Branch{{Name: "br_ab", Hi: 0, Lo: 1}},
		GroundNode: 2,
	}
	equations := func(b *hirlower.MirBuilder) mir.Block {
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
	return module, equations
}

// diodeModule is `I(a,c) <+ is*(exp(V(a,c)/vt) - 1);` — the classic
// exponential junction, exercising OpExp and the autodiff chain rule
// through a non-polynomial residual.
func diodeModule() (*hir.ModuleInfo, hirlower.EquationFunc) {
	module := &hir.ModuleInfo{
		Name: "diode",
		Nodes: []hir.Node{
			{Name: "a", IsPort: true}, {Name: "c", IsPort: true}, {Name: "gnd", IsPort: true},
		},
		Params: []hir.Param{
			{Name: "is", Kind: hir.Real, IsInstance: true, Default: 1e-14},
			{Name: "vt", Kind: hir.Real, IsInstance: false, Default: 0.02585},
		},
		Branches:   []hir.Branch{{Name: "br_ac", Hi: 0, Lo: 1}},
		GroundNode: 2,
	}
	equations := func(b *hirlower.MirBuilder) mir.Block {
		entry := b.Entry()
		fn := b.Func()
		vA := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamNodeVoltage, Node: 0}, mir.Float)
		vC := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamNodeVoltage, Node: 1}, mir.Float)
		is := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamParameter, Param: 0}, mir.Float)
		vt := b.ReadParam(hirlower.ParamKind{Tag: hirlower.ParamParameter, Param: 1}, mir.Float)
		_, vac := fn.AppendInst(entry, mir.InstData{Op: mir.OpFSub, Args: []mir.Value{vA, vC}})
		_, ratio := fn.AppendInst(entry, mir.InstData{Op: mir.OpFDiv, Args: []mir.Value{vac[0], vt}})
		_, ex := fn.AppendInst(entry, mir.InstData{Op: mir.OpExp, Args: []mir.Value{ratio[0]}})
		_, shifted := fn.AppendInst(entry, mir.InstData{Op: mir.OpFSub, Args: []mir.Value{ex[0], fn.FConst(1)}})
		_, current := fn.AppendInst(entry, mir.InstData{Op: mir.OpFMul, Args: []mir.Value{is, shifted[0]}})
		b.Contribute(0, false, current[0])
		return entry
	}
	return module, equations
}

func main() {
	demos := []struct {
		build func() (*hir.ModuleInfo, hirlower.EquationFunc)
	}{
		{resistorModule},
		{diodeModule},
	}

	for _, d := range demos {
		module, equations := d.build()
		compiled, err := simback.CompileModule(module, moduleDB{module}, equations, isContribution, hir.NewLiterals())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: compile failed: %v\n", module.Name, err)
			os.Exit(1)
		}
		printReport(compiled)
	}
}

func printReport(compiled *simback.CompiledModule) {
	fmt.Printf("=== %s ===\n", compiled.Info.Name)
	fmt.Printf("unknowns: %d  residuals: %d  jacobian entries: %d (resistive %d, reactive %d)\n",
		len(compiled.DAE.Unknowns), len(compiled.DAE.Residuals), len(compiled.DAE.Jacobian),
		compiled.DAE.NumResistive, compiled.DAE.NumReactive)
	fmt.Printf("cache slots: %d\n", len(compiled.Slots))
	for _, nc := range compiled.NodeCollapse {
		fmt.Printf("collapse candidate: branch %d (%d <-> %d)\n", nc.Branch, nc.Hi, nc.Lo)
	}
	fmt.Println("--- init ---")
	fmt.Print(mir.Print(compiled.Init))
	fmt.Println("--- eval ---")
	fmt.Print(mir.Print(compiled.Eval))
	fmt.Println()
}
