// Package hirlower builds a mir.Function from a hir.ModuleInfo. The
// frontend that owns the actual Verilog-A body is out of scope; instead
// the caller supplies an EquationFunc that drives a MirBuilder through
// its read/write/contribute surface, and the builder takes care of
// value caching, var_init defaults, and recording which FuncRef stands
// for which callback so later passes (autodiff, the DAE extractor) can
// find them again.
package hirlower

import "vamir/internal/hir"

// ParamTag is the kind of read a ParamKind names.
type ParamTag uint8

const (
	ParamNodeVoltage ParamTag = iota
	ParamBranchVoltage
	ParamBranchCurrent
	ParamParameter
	ParamVarRead
	ParamTemperature
	ParamTime
)

// ParamKind identifies one stable read site: a node voltage probe, a
// branch voltage/current probe, a parameter value, an op-var read, or
// one of the two implicit environment reads ($temperature, $abstime).
// Only the fields relevant to Tag are meaningful, mirroring
// mir.InstData's tagged-union convention.
type ParamKind struct {
	Tag    ParamTag
	Node   hir.NodeId
	Branch hir.BranchId
	Param  hir.ParamId
	Var    hir.VarId
}

// PlaceTag is the kind of write a PlaceKind names.
type PlaceTag uint8

const (
	PlaceContribute PlaceTag = iota
	PlaceVar
)

// PlaceKind identifies one stable write site: a branch contribution
// (resistive or reactive) or an assignment to a user-observable op-var.
type PlaceKind struct {
	Tag      PlaceTag
	Branch   hir.BranchId
	Reactive bool
	Var      hir.VarId
}

// CallBackTag is the kind of external callback a FuncRef stands for.
type CallBackTag uint8

const (
	CallbackDdx CallBackTag = iota
	CallbackWhiteNoise
	CallbackFlickerNoise
	CallbackNoiseTable
	CallbackLimit
)

// CallBackKind is the payload attached to a registered FuncRef. The
// core never calls through a FuncRef; it only uses this to decide how
// to differentiate (CallbackDdx) or how to classify a residual's
// sources (the three noise tags) once the function has been optimized
// and the original call sites may have moved or been duplicated by GVN.
type CallBackKind struct {
	Tag     CallBackTag
	Unknown int    // which DAE unknown this ddx differentiates against, for CallbackDdx
	Table   string // NoiseTable's declared name, for CallbackNoiseTable
}
