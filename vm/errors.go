package vm

import (
	"errors"
	"fmt"

	"github.com/wudi/mcfn/opcodes"
)

// Pre-defined VM error types for consistent error handling.
var (
	// Variable substitution errors.
	ErrVariableIndexOutOfRange = errors.New("variable index out of range")
	ErrInvalidVariableName     = errors.New("invalid variable name")

	// Selector errors.
	ErrSelectorRestricted = errors.New("only @e or @s selector is permitted")
	ErrSelectorEmpty      = errors.New("selector matched no entities")

	// Function call errors.
	ErrFunctionNotFound = errors.New("function not found")

	// Format errors.
	ErrInvalidRange = errors.New("invalid range specification")
	ErrInvalidNBT   = errors.New("invalid NBT filter")

	// Execution errors.
	ErrUnknownOpcode = errors.New("opcode not implemented")
)

// RuntimeError wraps an error with the branch and instruction it occurred
// in, the shape a diagnostic sink needs to report a runtime-fatal failure.
type RuntimeError struct {
	Type     error
	Message  string
	Function string
	BranchID int
	Opcode   opcodes.Opcode
}

func (e *RuntimeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("vm: %s (branch %d, %s:%s): %s", e.Type, e.BranchID, e.Function, e.Opcode, e.Message)
	}
	return fmt.Sprintf("vm: %s (branch %d, %s:%s)", e.Type, e.BranchID, e.Function, e.Opcode)
}

func (e *RuntimeError) Unwrap() error {
	return e.Type
}
