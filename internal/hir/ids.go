// Package hir is the stand-in for the out-of-scope HIR frontend's
// public surface: the data the core needs in order to lower a Verilog-A
// module description into MIR. It never parses source itself — a real
// frontend builds a ModuleInfo and hands it, plus a DB implementation,
// to hirlower.NewMirBuilder, whose Build method lowers it.
package hir

import "fmt"

// NodeId identifies an electrical node (a port or an internal node) by
// its declaration-order position in ModuleInfo.Nodes.
type NodeId int32

func (n NodeId) String() string { return fmt.Sprintf("node%d", int32(n)) }

// ParamId identifies a module parameter by its declaration-order
// position in ModuleInfo.Params.
type ParamId int32

func (p ParamId) String() string { return fmt.Sprintf("param%d", int32(p)) }

// BranchId identifies a branch (an ordered pair of nodes contributions
// flow between) by its declaration-order position in ModuleInfo.Branches.
type BranchId int32

func (b BranchId) String() string { return fmt.Sprintf("branch%d", int32(b)) }

// VarId identifies a user-declared op-var (an intermediate variable the
// module body assigns and later reads, as opposed to a contribution).
type VarId int32

func (v VarId) String() string { return fmt.Sprintf("var%d", int32(v)) }
