package mirtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vamir/internal/mir"
)

func buildStraightLine(t *testing.T) *mir.Function {
	t.Helper()
	f := mir.NewFunction("straight_line")
	entry := f.AppendBlock()
	x := f.MakeParam(entry, mir.Float)
	_, sum := f.AppendInst(entry, mir.InstData{Op: mir.OpFAdd, Args: []mir.Value{x, f.FConst(1)}})
	f.AppendInst(entry, mir.InstData{Op: mir.OpReturn, Args: []mir.Value{sum[0]}})
	return f
}

func buildBranchy(t *testing.T) *mir.Function {
	t.Helper()
	f := mir.NewFunction("branchy")
	entry := f.AppendBlock()
	b1 := f.AppendBlock()
	b2 := f.AppendBlock()
	merge := f.AppendBlock()
	cond := f.MakeParam(entry, mir.Bool)
	f.AppendInst(entry, mir.InstData{Op: mir.OpBr, Cond: cond, Then: b1, Else: b2})
	v1 := f.FConst(1)
	v2 := f.FConst(2)
	f.AppendInst(b1, mir.InstData{Op: mir.OpJmp, Target: merge})
	f.AppendInst(b2, mir.InstData{Op: mir.OpJmp, Target: merge})
	_, phi := f.AppendInstTyped(merge, mir.InstData{Op: mir.OpPhi, Incoming: []mir.PhiEdge{
		{Pred: b1, Value: v1},
		{Pred: b2, Value: v2},
	}}, mir.Float)
	f.AppendInst(merge, mir.InstData{Op: mir.OpReturn, Args: []mir.Value{phi[0]}})
	return f
}

func TestParseRoundTripsStraightLineFunction(t *testing.T) {
	original := buildStraightLine(t)
	text := mir.Print(original)

	fns, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, fns, 1)

	reparsed := fns[0]
	assert.Equal(t, original.Name, reparsed.Name)
	require.NoError(t, mir.Validate(reparsed))
	assert.Equal(t, text, mir.Print(reparsed))
}

func TestParseRoundTripsBranchingFunctionWithPhi(t *testing.T) {
	original := buildBranchy(t)
	text := mir.Print(original)

	fns, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, fns, 1)

	reparsed := fns[0]
	require.NoError(t, mir.Validate(reparsed))
	assert.Equal(t, text, mir.Print(reparsed))
}

func TestParseRejectsUnknownOpcodeMnemonic(t *testing.T) {
	_, err := Parse("function bad {\nblock0:\n    v0 = bogus v1\n}\n")
	assert.Error(t, err)
}
