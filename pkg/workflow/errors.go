package workflow

import (
	"errors"
	"fmt"
	"go/token"

	"github.com/argot-dev/argot/pkg/console"
)

// ErrorKind classifies compile-time failures. Every kind aborts the whole
// compilation: no output document is ever written from a partially valid
// script, because the orchestrator would run it.
type ErrorKind string

const (
	// SignatureError reports a step or entry function whose parameter list
	// does not match what its marker requires.
	SignatureError ErrorKind = "SignatureError"

	// SlotContractError reports a mismatch between a step's declared
	// input/output slots and how they are bound or used.
	SlotContractError ErrorKind = "SlotContractError"

	// UnboundReferenceError reports a name that resolves to no prior step
	// output, workflow parameter, or mount-point locator.
	UnboundReferenceError ErrorKind = "UnboundReferenceError"

	// UnsupportedExpressionError reports a guard expression using operators
	// the target expression language cannot represent.
	UnsupportedExpressionError ErrorKind = "UnsupportedExpressionError"

	// UnsupportedConstructError reports dialect constructs outside the
	// compilable subset, recursion above all.
	UnsupportedConstructError ErrorKind = "UnsupportedConstructError"

	// UnsupportedAccessPatternError reports accessor usage the body
	// transformer cannot structurally match, such as aliasing an accessor
	// before indexing it.
	UnsupportedAccessPatternError ErrorKind = "UnsupportedAccessPatternError"

	// DuplicateDeclarationError reports two mount-point or parameter
	// declarations sharing one name.
	DuplicateDeclarationError ErrorKind = "DuplicateDeclarationError"
)

// CompileError is the error type for every validation failure in the
// pipeline. Its Error string follows the diagnostic contract
// `<ErrorKind>: <message> (<location>)`.
type CompileError struct {
	Kind    ErrorKind
	Message string
	Pos     token.Position
	Context []string
	Hint    string
}

func (e *CompileError) Error() string {
	if e.Pos.Filename == "" && e.Pos.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Pos)
}

// Format renders the error as a rich console diagnostic with source context.
func (e *CompileError) Format() string {
	return console.FormatError(console.CompilerError{
		Position: console.ErrorPosition{
			File:   e.Pos.Filename,
			Line:   e.Pos.Line,
			Column: e.Pos.Column,
		},
		Type:    "error",
		Message: fmt.Sprintf("%s: %s", e.Kind, e.Message),
		Context: e.Context,
		Hint:    e.Hint,
	})
}

// AsCompileError unwraps err into a *CompileError when it is one.
func AsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func compileErrorf(kind ErrorKind, pos token.Position, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
}
