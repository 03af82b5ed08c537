package autodiff

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vamir/internal/mir"
)

// buildUnary builds a one-instruction function `y = op(x)` over a
// constant x and wraps y in a ddx pseudo-call; the caller seeds x and
// differentiates. No optimizer pass runs in these tests: autodiff's own
// output is a closed-form expression tree over constants, which
// foldConst evaluates directly.
func buildUnary(t *testing.T, op mir.Opcode, x float64) (*mir.Function, mir.FuncRef, mir.Value) {
	t.Helper()
	f := mir.NewFunction("probe")
	entry := f.AppendBlock()
	xv := f.FConst(x)
	_, y := f.AppendInst(entry, mir.InstData{Op: op, Args: []mir.Value{xv}})
	ddx := mir.FuncRef(0)
	_, d := f.AppendInst(entry, mir.InstData{Op: mir.OpCall, Callee: ddx, Args: []mir.Value{y[0]}})
	f.AppendInst(entry, mir.InstData{Op: mir.OpReturn, Args: []mir.Value{d[0]}})
	return f, ddx, xv
}

func buildBinary(t *testing.T, op mir.Opcode, a, b float64) (*mir.Function, mir.FuncRef, mir.Value, mir.Value) {
	t.Helper()
	f := mir.NewFunction("probe")
	entry := f.AppendBlock()
	av, bv := f.FConst(a), f.FConst(b)
	_, y := f.AppendInst(entry, mir.InstData{Op: op, Args: []mir.Value{av, bv}})
	ddx := mir.FuncRef(0)
	_, d := f.AppendInst(entry, mir.InstData{Op: mir.OpCall, Callee: ddx, Args: []mir.Value{y[0]}})
	f.AppendInst(entry, mir.InstData{Op: mir.OpReturn, Args: []mir.Value{d[0]}})
	return f, ddx, av, bv
}

// foldConst evaluates a (by-construction acyclic, all-float) value tree
// down to a number, the way a constant-folding pass would, so tests can
// assert on the numeric derivative rather than on IR shape.
func foldConst(t *testing.T, f *mir.Function, v mir.Value) float64 {
	t.Helper()
	inst, ok := f.ValueDef(v)
	if !ok {
		t.Fatalf("value %v has no definition", v)
	}
	data := f.InstKind(inst)
	switch data.Op {
	case mir.OpFConst:
		return data.FloatVal
	case mir.OpFAdd:
		return foldConst(t, f, data.Args[0]) + foldConst(t, f, data.Args[1])
	case mir.OpFSub:
		return foldConst(t, f, data.Args[0]) - foldConst(t, f, data.Args[1])
	case mir.OpFMul:
		return foldConst(t, f, data.Args[0]) * foldConst(t, f, data.Args[1])
	case mir.OpFDiv:
		return foldConst(t, f, data.Args[0]) / foldConst(t, f, data.Args[1])
	case mir.OpFNeg:
		return -foldConst(t, f, data.Args[0])
	case mir.OpExp:
		return math.Exp(foldConst(t, f, data.Args[0]))
	case mir.OpLn:
		return math.Log(foldConst(t, f, data.Args[0]))
	case mir.OpLog10:
		return math.Log10(foldConst(t, f, data.Args[0]))
	case mir.OpSqrt:
		return math.Sqrt(foldConst(t, f, data.Args[0]))
	case mir.OpSin:
		return math.Sin(foldConst(t, f, data.Args[0]))
	case mir.OpCos:
		return math.Cos(foldConst(t, f, data.Args[0]))
	case mir.OpTan:
		return math.Tan(foldConst(t, f, data.Args[0]))
	case mir.OpSinh:
		return math.Sinh(foldConst(t, f, data.Args[0]))
	case mir.OpCosh:
		return math.Cosh(foldConst(t, f, data.Args[0]))
	case mir.OpTanh:
		return math.Tanh(foldConst(t, f, data.Args[0]))
	case mir.OpAsin:
		return math.Asin(foldConst(t, f, data.Args[0]))
	case mir.OpAcos:
		return math.Acos(foldConst(t, f, data.Args[0]))
	case mir.OpAtan:
		return math.Atan(foldConst(t, f, data.Args[0]))
	case mir.OpPow:
		return math.Pow(foldConst(t, f, data.Args[0]), foldConst(t, f, data.Args[1]))
	default:
		t.Fatalf("foldConst: unhandled opcode %v", data.Op)
		return 0
	}
}

func differentiate(f *mir.Function, ddx mir.FuncRef, seed mir.Value) {
	Differentiate(f, []Target{{Callee: ddx, Seeds: map[mir.Value]float64{seed: 1.0}}})
}

func resultOf(t *testing.T, f *mir.Function) mir.Value {
	t.Helper()
	entry := f.BlockOrder()[0]
	term, ok := f.Terminator(entry)
	require.True(t, ok)
	return f.InstKind(term).Args[0]
}

func TestDifferentiateLnOfSinTimesExp(t *testing.T) {
	// d/dx ln(sin(x) * exp(x)) = cot(x) + 1, evaluated at x = 0.6.
	x := 0.6
	f := mir.NewFunction("probe")
	entry := f.AppendBlock()
	xv := f.FConst(x)
	_, s := f.AppendInst(entry, mir.InstData{Op: mir.OpSin, Args: []mir.Value{xv}})
	_, e := f.AppendInst(entry, mir.InstData{Op: mir.OpExp, Args: []mir.Value{xv}})
	_, prod := f.AppendInst(entry, mir.InstData{Op: mir.OpFMul, Args: []mir.Value{s[0], e[0]}})
	_, y := f.AppendInst(entry, mir.InstData{Op: mir.OpLn, Args: []mir.Value{prod[0]}})
	ddx := mir.FuncRef(0)
	_, d := f.AppendInst(entry, mir.InstData{Op: mir.OpCall, Callee: ddx, Args: []mir.Value{y[0]}})
	f.AppendInst(entry, mir.InstData{Op: mir.OpReturn, Args: []mir.Value{d[0]}})

	differentiate(f, ddx, xv)
	require.NoError(t, mir.Validate(f))

	got := foldConst(t, f, resultOf(t, f))
	want := 1/math.Tan(x) + 1
	assert.InDelta(t, want, got, 1e-9)
}

func TestDifferentiateLnOfSinhTimesExp(t *testing.T) {
	x := 0.6
	f := mir.NewFunction("probe")
	entry := f.AppendBlock()
	xv := f.FConst(x)
	_, s := f.AppendInst(entry, mir.InstData{Op: mir.OpSinh, Args: []mir.Value{xv}})
	_, e := f.AppendInst(entry, mir.InstData{Op: mir.OpExp, Args: []mir.Value{xv}})
	_, prod := f.AppendInst(entry, mir.InstData{Op: mir.OpFMul, Args: []mir.Value{s[0], e[0]}})
	_, y := f.AppendInst(entry, mir.InstData{Op: mir.OpLn, Args: []mir.Value{prod[0]}})
	ddx := mir.FuncRef(0)
	_, d := f.AppendInst(entry, mir.InstData{Op: mir.OpCall, Callee: ddx, Args: []mir.Value{y[0]}})
	f.AppendInst(entry, mir.InstData{Op: mir.OpReturn, Args: []mir.Value{d[0]}})

	differentiate(f, ddx, xv)
	require.NoError(t, mir.Validate(f))

	got := foldConst(t, f, resultOf(t, f))
	want := math.Cosh(x)/math.Sinh(x) + 1
	assert.InDelta(t, want, got, 1e-9)
}

func TestDifferentiateAsin(t *testing.T) {
	f, ddx, xv := buildUnary(t, mir.OpAsin, 0.4)
	differentiate(f, ddx, xv)
	require.NoError(t, mir.Validate(f))
	got := foldConst(t, f, resultOf(t, f))
	assert.InDelta(t, 1/math.Sqrt(1-0.4*0.4), got, 1e-9)
}

func TestDifferentiateAcos(t *testing.T) {
	f, ddx, xv := buildUnary(t, mir.OpAcos, 0.4)
	differentiate(f, ddx, xv)
	require.NoError(t, mir.Validate(f))
	got := foldConst(t, f, resultOf(t, f))
	assert.InDelta(t, -1/math.Sqrt(1-0.4*0.4), got, 1e-9)
}

func TestDifferentiateAcosh(t *testing.T) {
	f, ddx, xv := buildUnary(t, mir.OpAcosh, 1.5)
	differentiate(f, ddx, xv)
	require.NoError(t, mir.Validate(f))
	got := foldConst(t, f, resultOf(t, f))
	assert.InDelta(t, 1/math.Sqrt(1.5*1.5-1), got, 1e-9)
}

func TestDifferentiateTan(t *testing.T) {
	f, ddx, xv := buildUnary(t, mir.OpTan, 0.3)
	differentiate(f, ddx, xv)
	require.NoError(t, mir.Validate(f))
	got := foldConst(t, f, resultOf(t, f))
	want := 1 / (math.Cos(0.3) * math.Cos(0.3))
	assert.InDelta(t, want, got, 1e-9)
}

func TestDifferentiateTanh(t *testing.T) {
	f, ddx, xv := buildUnary(t, mir.OpTanh, 0.3)
	differentiate(f, ddx, xv)
	require.NoError(t, mir.Validate(f))
	got := foldConst(t, f, resultOf(t, f))
	want := 1 - math.Tanh(0.3)*math.Tanh(0.3)
	assert.InDelta(t, want, got, 1e-9)
}

func TestDifferentiateAtan(t *testing.T) {
	f, ddx, xv := buildUnary(t, mir.OpAtan, 0.7)
	differentiate(f, ddx, xv)
	require.NoError(t, mir.Validate(f))
	got := foldConst(t, f, resultOf(t, f))
	assert.InDelta(t, 1/(1+0.7*0.7), got, 1e-9)
}

func TestDifferentiateAtanh(t *testing.T) {
	f, ddx, xv := buildUnary(t, mir.OpAtanh, 0.5)
	differentiate(f, ddx, xv)
	require.NoError(t, mir.Validate(f))
	got := foldConst(t, f, resultOf(t, f))
	assert.InDelta(t, 1/(1-0.5*0.5), got, 1e-9)
}

func TestDifferentiatePowOfXToX(t *testing.T) {
	// d/dx x^x = x^x * (ln(x) + 1), seeded so both operands of Pow are
	// the same base value x — exercises the product/quotient terms in
	// the OpPow rule simultaneously.
	x := 2.0
	f := mir.NewFunction("probe")
	entry := f.AppendBlock()
	xv := f.FConst(x)
	_, y := f.AppendInst(entry, mir.InstData{Op: mir.OpPow, Args: []mir.Value{xv, xv}})
	ddx := mir.FuncRef(0)
	_, d := f.AppendInst(entry, mir.InstData{Op: mir.OpCall, Callee: ddx, Args: []mir.Value{y[0]}})
	f.AppendInst(entry, mir.InstData{Op: mir.OpReturn, Args: []mir.Value{d[0]}})

	differentiate(f, ddx, xv)
	require.NoError(t, mir.Validate(f))

	got := foldConst(t, f, resultOf(t, f))
	want := math.Pow(x, x) * (math.Log(x) + 1)
	assert.InDelta(t, want, got, 1e-9)
}

func TestDifferentiateLog10(t *testing.T) {
	f, ddx, xv := buildUnary(t, mir.OpLog10, 5.0)
	differentiate(f, ddx, xv)
	require.NoError(t, mir.Validate(f))
	got := foldConst(t, f, resultOf(t, f))
	assert.InDelta(t, 1/(5.0*math.Ln10), got, 1e-9)
}

func TestDifferentiatePhiOverExpV10AndExpV11(t *testing.T) {
	// A branch-conditional expression: phi(exp(v10), exp(v11)) seeded at
	// v10 — only the true edge carries nonzero gradient, the false edge
	// (a function of the independent v11) must fold to zero.
	f := mir.NewFunction("probe")
	entry := f.AppendBlock()
	b1 := f.AppendBlock()
	b2 := f.AppendBlock()
	merge := f.AppendBlock()

	cond := f.MakeParam(entry, mir.Bool)
	v10 := f.MakeParam(entry, mir.Float)
	v11 := f.MakeParam(entry, mir.Float)
	f.AppendInst(entry, mir.InstData{Op: mir.OpBr, Cond: cond, Then: b1, Else: b2})

	_, e10 := f.AppendInst(b1, mir.InstData{Op: mir.OpExp, Args: []mir.Value{v10}})
	f.AppendInst(b1, mir.InstData{Op: mir.OpJmp, Target: merge})
	_, e11 := f.AppendInst(b2, mir.InstData{Op: mir.OpExp, Args: []mir.Value{v11}})
	f.AppendInst(b2, mir.InstData{Op: mir.OpJmp, Target: merge})

	_, phi := f.AppendInst(merge, mir.InstData{Op: mir.OpPhi, Incoming: []mir.PhiEdge{
		{Pred: b1, Value: e10[0]},
		{Pred: b2, Value: e11[0]},
	}})
	ddx := mir.FuncRef(0)
	_, d := f.AppendInst(merge, mir.InstData{Op: mir.OpCall, Callee: ddx, Args: []mir.Value{phi[0]}})
	f.AppendInst(merge, mir.InstData{Op: mir.OpReturn, Args: []mir.Value{d[0]}})

	Differentiate(f, []Target{{Callee: ddx, Seeds: map[mir.Value]float64{v10: 1.0}}})
	require.NoError(t, mir.Validate(f))

	// The ddx call in merge is now fadd(derivative, 0); its first
	// operand is the derivative phi.
	callInst, ok := f.ValueDef(d[0])
	require.True(t, ok)
	dInst, _ := f.ValueDef(f.InstKind(callInst).Args[0])
	dPhi := f.InstKind(dInst)
	require.Equal(t, mir.OpPhi, dPhi.Op)

	// b2's edge depends only on the independent v11, so its derivative
	// w.r.t. v10 must fold to the literal zero.
	falseEdgeInst, ok := f.ValueDef(dPhi.Incoming[1].Value)
	require.True(t, ok)
	falseEdgeData := f.InstKind(falseEdgeInst)
	assert.Equal(t, mir.OpFConst, falseEdgeData.Op)
	assert.Equal(t, 0.0, falseEdgeData.FloatVal)

	// b1's edge is exp(v10)'s chain-ruled derivative, da * exp(v10) with
	// da folding to the seed value 1 — neither operand is the v10
	// parameter itself, so the result is a real OpFMul, not a constant.
	trueEdgeInst, ok := f.ValueDef(dPhi.Incoming[0].Value)
	require.True(t, ok)
	assert.Equal(t, mir.OpFMul, f.InstKind(trueEdgeInst).Op)
}
