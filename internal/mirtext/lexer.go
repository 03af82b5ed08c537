// Package mirtext parses the canonical MIR text format mir.Print emits
// back into a *mir.Function, using a participle stateful lexer and a
// struct-tag grammar.
package mirtext

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// mirLexer tokenizes the dump format: "function name {", "blockN(vK:
// type, ...):", one instruction per line, hex float literals, quoted
// strings for sconst, and the fixed set of punctuation the printer
// emits.
var mirLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},
		{"HexFloat", `-?0x[0-9a-fA-F]+(\.[0-9a-fA-F]+)?p[+-]?[0-9]+`, nil},
		{"Integer", `-?[0-9]+`, nil},
		{"String", `"(\\.|[^"\\])*"`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Punctuation", `[{}()\[\]:,=]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
