package fundraiser

import "fundraiser/pkg/solana/runtime"

// program errors - codes are part of the program's interface, never reorder
var (
	ErrInvalidAmount         = runtime.NewCustomError(0x0, "Invalid amount")
	ErrContributionTooShort  = runtime.NewCustomError(0x1, "Contribution too short")
	ErrContributionTooLong   = runtime.NewCustomError(0x2, "Contribution too long")
	ErrFundraiserExpired     = runtime.NewCustomError(0x3, "Fundraiser expired")
	ErrInvalidContributor    = runtime.NewCustomError(0x4, "Invalid contributor")
	ErrFundraiserGoalReached = runtime.NewCustomError(0x5, "Fundraiser goal reached")
	ErrTargetNotMet          = runtime.NewCustomError(0x6, "Target not met")
	ErrTargetMet             = runtime.NewCustomError(0x7, "Target met")
	ErrFundraiserNotEnded    = runtime.NewCustomError(0x8, "Fundraiser not ended")
	ErrInvalidContribution   = runtime.NewCustomError(0x9, "Invalid contribution")
)

var programErrors = []*runtime.ProgramError{
	ErrInvalidAmount,
	ErrContributionTooShort,
	ErrContributionTooLong,
	ErrFundraiserExpired,
	ErrInvalidContributor,
	ErrFundraiserGoalReached,
	ErrTargetNotMet,
	ErrTargetMet,
	ErrFundraiserNotEnded,
	ErrInvalidContribution,
}

// ErrorFromCode returns the program error declared under code.
func ErrorFromCode(code uint32) (*runtime.ProgramError, bool) {
	if int(code) >= len(programErrors) {
		return nil, false
	}
	return programErrors[code], true
}
