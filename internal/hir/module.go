package hir

// ValueKind is the small, closed set of scalar domains a HIR variable,
// parameter, or node voltage can carry. hirlower maps these onto
// mir.Type when it builds a Value.
type ValueKind uint8

const (
	Real ValueKind = iota
	Integer
)

func (k ValueKind) String() string {
	if k == Integer {
		return "integer"
	}
	return "real"
}

// Node is a port or internal electrical node. The ground node, when the
// module has one, is listed in Nodes like any other node, and
// ModuleInfo.GroundNode names its NodeId.
type Node struct {
	Name     string
	IsPort   bool
	Discrete bool // digital/wreal node; contributes no DAE unknown directly
}

// Param is a module parameter. IsInstance distinguishes a per-instance
// override from a model-scoped (shared) one; see layout.go for how this
// flag drives record layout.
type Param struct {
	Name       string
	Kind       ValueKind
	IsInstance bool
	Default    float64
	HasMin     bool
	Min        float64
	HasMax     bool
	Max        float64
}

// Var is a user-declared intermediate (an "op-var" in Verilog-A terms):
// assigned in the module body, possibly read before any assignment (in
// which case hirlower materializes its declared zero value).
type Var struct {
	Name    string
	Kind    ValueKind
	Default float64
}

// Branch connects two nodes (Lo may equal GroundNode) and is the unit
// the DAE extractor and topology analysis both key their results on.
type Branch struct {
	Name string
	Hi   NodeId
	Lo   NodeId
}

// ModuleInfo is the entire input the core needs from the HIR frontend:
// no executable body, only declarations. The actual computation (how a
// contribution's residual is built from these declarations) arrives
// through hirlower's with_equations callback, since the body is
// expressed using the frontend's own AST, which the core never sees.
type ModuleInfo struct {
	Name     string
	Nodes    []Node
	Params   []Param
	Vars     []Var
	Branches []Branch

	// GroundNode is the NodeId, in Nodes, of the reference (ground) node,
	// or -1 when the module has none.
	GroundNode NodeId
}

// DB is the opaque handle spec.md's external interface promises: the
// core never inspects its concrete type, only calls the accessors it
// needs while lowering. A real frontend backs this with its own
// arena-indexed symbol tables; hirlower's tests back it with a trivial
// slice-based implementation (testDB in hirlower/builder_test.go).
type DB interface {
	NodeName(NodeId) string
	ParamName(ParamId) string
	ParamType(ParamId) ValueKind
	VarName(VarId) string
	VarType(VarId) ValueKind
	BranchName(BranchId) string
}
