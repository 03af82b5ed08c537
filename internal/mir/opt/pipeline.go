// Package opt implements the MIR's fixed optimization pipeline: SCCP,
// inst-combine, CFG simplification (with and without phi merging), GVN,
// two DCE variants, and taint propagation. The pipeline is not a
// general-purpose optimizer — the pass set and the three stages
// (Initial, PostDerivative, Final) that run them are fixed; see
// internal/simback/context.go for the stage sequencing.
package opt

import "vamir/internal/mir"

// Pass is a single optimization transformation over a function. The
// pipeline itself lives in internal/simback (it interleaves passes with
// CFG/dom-tree recomputation, which only the owning Context can drive),
// so this type exists mainly to give every pass a uniform shape for
// logging/testing.
type Pass interface {
	Name() string
	Apply(f *mir.Function, cfg *mir.CFG) bool
}
