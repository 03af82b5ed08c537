// Package dae extracts the differential-algebraic equation system (the
// node-voltage and branch-current unknowns, their residual equations,
// and the Jacobian of residuals with respect to unknowns) from an
// optimized mir.Function plus the hirlower.HirInterner that function
// was built with.
package dae

import "vamir/internal/hir"
import "vamir/internal/mir"
import "vamir/internal/hirlower"

// UnknownKind is the closed set of unknowns a DAE system solves for.
type UnknownKind uint8

const (
	// KirchoffLaw is a node-voltage unknown: one per electrical node,
	// its residual is the sum of every branch current touching it.
	KirchoffLaw UnknownKind = iota
	// Current is a branch-current unknown, present for every declared
	// branch so behavioral current sources can be expressed directly.
	Current
	// Implicit is an equation the frontend declares that isn't tied to
	// a node or branch (a Verilog-A `@(initial_model)`-style auxiliary
	// equation). Extract never creates one, and System has no method
	// that adds one.
	Implicit
)

// Unknown is one row/column of the DAE system.
type Unknown struct {
	Kind   UnknownKind
	Node   hir.NodeId
	Branch hir.BranchId
	Index  int // for Implicit
}

// Residual is one resistive or reactive equation, naming which unknown
// it belongs to.
type Residual struct {
	Unknown  int
	Reactive bool
	Value    mir.Value
}

// JacobianEntry is one (residual, unknown) partial derivative. Limited
// is an alternate RHS for simulator-side limiting (InvalidValue if the
// residual declared none).
type JacobianEntry struct {
	Residual int
	Unknown  int
	Value    mir.Value
	Limited  mir.Value
}

// NoiseSource is one white/flicker/table noise contribution collected
// from a registered callback invocation.
type NoiseSource struct {
	Tag    hirlower.CallBackTag
	Factor mir.Value
	Args   []mir.Value
}

// System is the full extracted DAE, indexed by position in Unknowns and
// Residuals (JacobianEntry.Residual/.Unknown index into those slices).
type System struct {
	Unknowns  []Unknown
	Residuals []Residual
	Jacobian  []JacobianEntry
	Noise     []NoiseSource

	NumResistive int
	NumReactive  int
}

// accumulate folds contribution into sums[node] with the given sign,
// synthesizing an FAdd the first time a second contributor appears so
// that every node's residual is one Value regardless of how many
// branches touch it.
func accumulate(fn *mir.Function, sums map[hir.NodeId]mir.Value, node hir.NodeId, contribution mir.Value, sign int) {
	signed := contribution
	if sign < 0 {
		block := fn.ValueBlock(contribution)
		signed = emitAt(fn, block, mir.InstData{Op: mir.OpFNeg, Args: []mir.Value{contribution}})
	}
	existing, ok := sums[node]
	if !ok {
		sums[node] = signed
		return
	}
	block := fn.ValueBlock(signed)
	sums[node] = emitAt(fn, block, mir.InstData{Op: mir.OpFAdd, Args: []mir.Value{existing, signed}})
}

// emitAt appends a new instruction to block, inserting before its
// terminator if it already has one — the same placement rule
// internal/autodiff uses so every synthesized sum stays dominance-safe.
func emitAt(fn *mir.Function, block mir.Block, data mir.InstData) mir.Value {
	if term, ok := fn.Terminator(block); ok {
		_, res := fn.InsertInstBefore(term, data, nil)
		return res[0]
	}
	_, res := fn.AppendInst(block, data)
	return res[0]
}
