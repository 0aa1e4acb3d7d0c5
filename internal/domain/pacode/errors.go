package pacode

import "errors"

var (
	ErrPACodeNotFound     = errors.New("PA code not found")
	ErrNotPending         = errors.New("PA code is not pending review")
	ErrNotApproved        = errors.New("PA code is not approved for use")
	ErrPACodeExpired      = errors.New("PA code validity window has elapsed")
	ErrUsageLimitExceeded = errors.New("PA code usage limit exceeded")
	ErrAlreadyUsed        = errors.New("PA code has already been used and cannot be cancelled")
	ErrAlreadyCancelled   = errors.New("PA code is already cancelled")
	ErrInvalidPAType      = errors.New("invalid PA code type")
)
