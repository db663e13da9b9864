package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/ruleware/internal/compiler"
	"github.com/roach88/ruleware/internal/ir"
)

// Error code constants, unified across all CLI commands. Validation
// errors carry the compiler's own E2xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeLoadFailed  = "E004" // CUE load or syntax error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeBadInput    = "E008" // Malformed flag value (payload, state)
	ErrCodeCycle       = "E220" // Cycle warning promoted to an error by --strict

	// Structural errors in the CUE program
	ErrCodeInvalidRule    = "E101" // rules[...] has the wrong shape
	ErrCodeInvalidReducer = "E102" // reducers[...] has the wrong shape
)

// LoadError is a program that could not be compiled, with a CLI error code
// and the CUE position when known.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadProgram compiles the CUE file or package directory at path.
func LoadProgram(path string) (*ir.Program, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("program not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing program: %v", err)}
	}

	program, err := compiler.CompilePath(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return program, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeLoadFailed
	case strings.HasPrefix(field, "rules"):
		return ErrCodeInvalidRule
	case strings.HasPrefix(field, "reducers"):
		return ErrCodeInvalidReducer
	default:
		return ErrCodeGeneric
	}
}

// lineOf returns the line of a CUE position, or 0.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}
