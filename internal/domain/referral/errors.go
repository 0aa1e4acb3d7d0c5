package referral

import "errors"

var (
	ErrReferralNotFound    = errors.New("referral not found")
	ErrAlreadyReviewed     = errors.New("referral has already been reviewed")
	ErrUTNMismatch         = errors.New("presented UTN does not match the referral")
	ErrUTNAlreadyValidated = errors.New("referral UTN has already been validated")
	ErrInvalidSeverity     = errors.New("invalid referral severity")
)
