package runtime

import (
	"errors"
	"fmt"
)

// ProgramError is a stable (code, description) pair returned by the host or
// by a program. Builtin errors use the host code space; program specific
// errors are Custom and carry the program's own code.
type ProgramError struct {
	Code        uint32
	Custom      bool
	Description string
}

func (e *ProgramError) Error() string {
	if e.Custom {
		return fmt.Sprintf("custom program error 0x%x: %s", e.Code, e.Description)
	}
	return e.Description
}

// Is matches by code so that errors rebuilt from a code compare equal.
func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Custom == t.Custom
}

// NewCustomError declares a program specific error.
func NewCustomError(code uint32, description string) *ProgramError {
	return &ProgramError{Code: code, Custom: true, Description: description}
}

// builtin errors, numbered in declaration order
var (
	ErrInvalidArgument           = &ProgramError{Code: 1, Description: "invalid argument"}
	ErrInvalidInstructionData    = &ProgramError{Code: 2, Description: "invalid instruction data"}
	ErrInvalidAccountData        = &ProgramError{Code: 3, Description: "invalid account data"}
	ErrAccountDataTooSmall       = &ProgramError{Code: 4, Description: "account data too small"}
	ErrInsufficientFunds         = &ProgramError{Code: 5, Description: "insufficient funds"}
	ErrIncorrectProgramID        = &ProgramError{Code: 6, Description: "incorrect program id"}
	ErrMissingRequiredSignature  = &ProgramError{Code: 7, Description: "missing required signature"}
	ErrAccountAlreadyInitialized = &ProgramError{Code: 8, Description: "account already initialized"}
	ErrUninitializedAccount      = &ProgramError{Code: 9, Description: "uninitialized account"}
	ErrNotEnoughAccountKeys      = &ProgramError{Code: 10, Description: "not enough account keys"}
	ErrInvalidSeeds              = &ProgramError{Code: 11, Description: "invalid seeds"}
	ErrInvalidAccountOwner       = &ProgramError{Code: 12, Description: "invalid account owner"}
	ErrArithmeticOverflow        = &ProgramError{Code: 13, Description: "arithmetic overflow"}
	ErrReadonlyDataModified      = &ProgramError{Code: 14, Description: "instruction modified data of a read-only account"}
)

// AsProgramError extracts the program error carried by err, if any.
func AsProgramError(err error) (*ProgramError, bool) {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
