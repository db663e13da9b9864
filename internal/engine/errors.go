package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRule is the sentinel matched by errors.Is for any
// *MalformedRuleError.
var ErrMalformedRule = errors.New("malformed rule")

// undefinedType stands in for a rule whose Type is missing.
const undefinedType = "<undefined>"

// MalformedRuleError reports the first rule that failed structural
// validation at registration.
type MalformedRuleError struct {
	// Index is the rule's position in the registered slice.
	Index int

	// Type is the rule's declared Type, empty when missing.
	Type string

	// Missing lists the absent properties: type, actionTypes, condition, reaction.
	Missing []string
}

// Error implements the error interface.
func (e *MalformedRuleError) Error() string {
	name := e.Type
	if name == "" {
		name = undefinedType
	}
	return fmt.Sprintf("rule %q (index %d) is missing %s", name, e.Index, strings.Join(e.Missing, ", "))
}

// Is makes errors.Is(err, ErrMalformedRule) succeed.
func (e *MalformedRuleError) Is(target error) bool {
	return target == ErrMalformedRule
}

// IsMalformedRule returns true if err is or wraps a *MalformedRuleError.
func IsMalformedRule(err error) bool {
	var me *MalformedRuleError
	return errors.As(err, &me)
}
