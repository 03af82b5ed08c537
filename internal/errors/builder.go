package errors

import "fmt"

// CoreErrorBuilder provides a fluent interface for building a
// CompilerError the caller can format and return — used for recoverable
// failures the core itself detects (an unsupported construct, a
// callback kind with no declared rule). Invariant violations never go
// through this builder: they panic via Invariant, since they indicate a
// pass produced an inconsistent function rather than a user-facing
// condition.
type CoreErrorBuilder struct {
	err CompilerError
}

// NewCoreError starts building a recoverable compiler error.
func NewCoreError(code, message string, pos Position) *CoreErrorBuilder {
	return &CoreErrorBuilder{
		err: CompilerError{Level: Error, Code: code, Message: message, Position: pos, Length: 1},
	}
}

func (b *CoreErrorBuilder) WithNote(note string) *CoreErrorBuilder {
	b.err.Notes = append(b.err.Notes, note)
	return b
}

func (b *CoreErrorBuilder) WithHelp(help string) *CoreErrorBuilder {
	b.err.HelpText = help
	return b
}

func (b *CoreErrorBuilder) Build() CompilerError { return b.err }

// UnsupportedConstruct reports a branch classification, callback kind,
// or contribution shape the core recognizes but declines to lower.
func UnsupportedConstruct(what string, pos Position) CompilerError {
	return NewCoreError(ErrorUnsupportedConstruct, fmt.Sprintf("unsupported construct: %s", what), pos).
		WithHelp("this construct is recognized but has no lowering in the current core").
		Build()
}

// UnsupportedCallback reports a FuncRef whose CallBackKind has no
// registered derivative or evaluation rule.
func UnsupportedCallback(kind string, pos Position) CompilerError {
	return NewCoreError(ErrorUnsupportedCallback, fmt.Sprintf("callback kind %q has no declared rule", kind), pos).
		Build()
}

// MissingContribution reports a Place::Contribute that produced no DAE
// unknown, violating the "no silent drops" invariant.
func MissingContribution(branch string, pos Position) CompilerError {
	return NewCoreError(ErrorMissingContribution, fmt.Sprintf("contribution to %s produced no unknown", branch), pos).
		Build()
}

// Invariant panics with a formatted internal-error message. Every
// invariant violation is a programming error in a pass, never a
// user-visible failure, so it is never wrapped in a CompilerError or
// returned up the call stack.
func Invariant(format string, args ...any) {
	panic(fmt.Sprintf("[%s] invariant violation: %s", ErrorInvariantViolation, fmt.Sprintf(format, args...)))
}
