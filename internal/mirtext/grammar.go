package mirtext

// File is the top-level parse: one or more dumped functions, in the
// order mir.Print's caller concatenated them.
type File struct {
	Functions []*Func `@@*`
}

type Func struct {
	Name   string   `"function" @Ident "{"`
	Blocks []*Block `@@* "}"`
}

type Block struct {
	Name   string        `@Ident`
	Params []*BlockParam `[ "(" [ @@ { "," @@ } ] ")" ]`
	Insts  []*Inst       `":" @@*`
}

type BlockParam struct {
	Name string `@Ident`
	Type string `":" @Ident`
}

// Inst is tried in order; every alternative but ArithInst starts with
// a distinct literal mnemonic, so the PEG choice resolves without
// ambiguity. ArithInst, the generic binary/unary fallback, must stay
// last since nothing distinguishes its shape structurally from a
// result assignment to any other named op.
type Inst struct {
	FConst *FConstInst     `  @@`
	IConst *IConstInst     `| @@`
	BConst *BConstInst     `| @@`
	SConst *SConstInst     `| @@`
	Phi    *PhiInst        `| @@`
	Call   *CallInst       `| @@`
	OptBar *OptBarrierInst `| @@`
	Br     *BrInst         `| @@`
	Jmp    *JmpInst        `| @@`
	Return *ReturnInst     `| @@`
	Arith  *ArithInst      `| @@`
}

type FConstInst struct {
	Result string `@Ident "=" "fconst"`
	Value  string `@HexFloat`
}

type IConstInst struct {
	Result string `@Ident "=" "iconst"`
	Value  string `@Integer`
}

type BConstInst struct {
	Result string `@Ident "=" "bconst"`
	Value  string `@Ident`
}

type SConstInst struct {
	Result string `@Ident "=" "sconst"`
	Value  string `@String`
}

type PhiInst struct {
	Result string     `@Ident "=" "phi"`
	Edges  []*PhiEdge `@@ { "," @@ }`
}

type PhiEdge struct {
	Value string `"[" @Ident`
	Pred  string `"," @Ident "]"`
}

type CallInst struct {
	Result string   `@Ident "=" "call"`
	Callee string   `@Ident`
	Args   []string `"(" [ @Ident { "," @Ident } ] ")"`
}

type OptBarrierInst struct {
	Result string `@Ident "=" "optbarrier"`
	Arg    string `@Ident`
}

type BrInst struct {
	Cond string `"br" @Ident ","`
	Then string `@Ident ","`
	Else string `@Ident`
}

type JmpInst struct {
	Target string   `"jmp" @Ident`
	Args   []string `"(" [ @Ident { "," @Ident } ] ")"`
}

type ReturnInst struct {
	Args []string `"return" [ @Ident { "," @Ident } ]`
}

// ArithInst covers every remaining opcode printInst renders as
// `mnemonic arg` or `mnemonic arg, arg` — the fixed binary/unary
// arithmetic and comparison ops opcodeNames names.
type ArithInst struct {
	Result string   `@Ident "="`
	Op     string   `@Ident`
	Args   []string `@Ident { "," @Ident }`
}
