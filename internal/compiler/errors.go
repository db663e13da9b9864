package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a structural error in CUE input. Pos is the offending
// value's position when CUE knows it.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos

	cause error
}

func (e *CompileError) Error() string {
	if !e.Pos.IsValid() {
		return e.Field + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Field, e.Message)
}

func (e *CompileError) Unwrap() error { return e.cause }

// ProgramError reports a program that compiled but failed validation.
type ProgramError struct {
	Errors []ValidationError
}

func (e *ProgramError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid program (%d errors): ", len(e.Errors))
	for i, ve := range e.Errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ve.Error())
	}
	return b.String()
}

// Codes lists the distinct validation codes in first-seen order.
func (e *ProgramError) Codes() []string {
	var codes []string
	seen := make(map[string]bool)
	for _, ve := range e.Errors {
		if !seen[ve.Code] {
			seen[ve.Code] = true
			codes = append(codes, ve.Code)
		}
	}
	return codes
}

// formatCUEError turns a CUE load or evaluation error into a CompileError
// on field "cue", positioned at the first reported error. Errors CUE
// cannot position are returned unchanged.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	list := errors.Errors(err)
	if len(list) == 0 {
		return err
	}

	first := list[0]
	positions := errors.Positions(first)
	if len(positions) == 0 {
		return err
	}

	msg := first.Error()
	if extra := len(list) - 1; extra > 0 {
		msg = fmt.Sprintf("%s (and %d more)", msg, extra)
	}
	return &CompileError{Field: "cue", Message: msg, Pos: positions[0], cause: err}
}
