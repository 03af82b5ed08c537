package mir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildStraightLine(t *testing.T) (*Function, Value, Value) {
	t.Helper()
	f := NewFunction("straight_line")
	entry := f.AppendBlock()
	x := f.MakeParam(entry, Float)
	_, sum := f.AppendInst(entry, InstData{Op: OpFAdd, Args: []Value{x, f.FConst(1)}})
	f.AppendInst(entry, InstData{Op: OpReturn, Args: []Value{sum[0]}})
	return f, x, sum[0]
}

func TestAppendInstAndValidate(t *testing.T) {
	f, _, _ := buildStraightLine(t)
	require.NoError(t, Validate(f))
}

func TestReplaceInstRejectsArityChange(t *testing.T) {
	f, x, _ := buildStraightLine(t)
	entry := f.blockOrder[0]
	insts := f.IterInst(entry)
	addInst := insts[1]
	err := f.ReplaceInst(addInst, InstData{Op: OpReturn, Args: []Value{x}})
	assert.Error(t, err)
}

func TestConstPoolCanonicalizesBitIdenticalFloats(t *testing.T) {
	f := NewFunction("consts")
	a := f.FConst(0.0)
	b := f.FConst(0.0)
	assert.Equal(t, a, b)
	c := f.FConst(math.Copysign(0, -1))
	assert.NotEqual(t, a, c, "0.0 and -0.0 differ bit-for-bit and must be distinct")
}

func TestPhiRequiresMatchingPredecessorOrder(t *testing.T) {
	f := NewFunction("phi_order")
	entry := f.AppendBlock()
	b1 := f.AppendBlock()
	b2 := f.AppendBlock()
	merge := f.AppendBlock()
	p := f.MakeParam(entry, Bool)

	f.AppendInst(entry, InstData{Op: OpBr, Cond: p, Then: b1, Else: b2})
	v1 := f.FConst(1)
	v2 := f.FConst(2)
	f.AppendInst(b1, InstData{Op: OpJmp, Target: merge, JmpArgs: nil})
	f.AppendInst(b2, InstData{Op: OpJmp, Target: merge, JmpArgs: nil})

	_, phiRes := f.AppendInst(merge, InstData{Op: OpPhi, Incoming: []PhiEdge{
		{Pred: b1, Value: v1},
		{Pred: b2, Value: v2},
	}})
	f.AppendInst(merge, InstData{Op: OpReturn, Args: []Value{phiRes[0]}})

	require.NoError(t, Validate(f))
}

func TestFormatFloatHexMatchesCanonicalForm(t *testing.T) {
	assert.Equal(t, "0x1.0000000000000p0", FormatFloatHex(1.0))
	assert.Equal(t, "0x0.0000000000000p0", FormatFloatHex(0.0))
}

func TestInterpEvaluatesStraightLine(t *testing.T) {
	f, x, _ := buildStraightLine(t)
	ip := NewInterp(f, map[Value]float64{x: 41})
	ret, _ := ip.Run()
	require.Len(t, ret, 1)
	assert.InDelta(t, 42.0, ret[0], 1e-12)
}

func TestDomTreeOnDiamond(t *testing.T) {
	f := NewFunction("diamond")
	entry := f.AppendBlock()
	b1 := f.AppendBlock()
	b2 := f.AppendBlock()
	merge := f.AppendBlock()
	cond := f.BConst(true)
	f.AppendInst(entry, InstData{Op: OpBr, Cond: cond, Then: b1, Else: b2})
	f.AppendInst(b1, InstData{Op: OpJmp, Target: merge})
	f.AppendInst(b2, InstData{Op: OpJmp, Target: merge})
	f.AppendInst(merge, InstData{Op: OpReturn})

	cfg := ComputeCFG(f)
	dt := ComputeDomTree(cfg)
	assert.True(t, dt.Dominates(entry, merge))
	assert.False(t, dt.Dominates(b1, merge))
	assert.Equal(t, entry, dt.Idom(merge))
}
