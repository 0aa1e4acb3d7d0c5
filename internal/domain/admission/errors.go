package admission

import "errors"

var (
	ErrAdmissionNotFound       = errors.New("admission not found")
	ErrNotEligible             = errors.New("referral does not permit admission")
	ErrActiveAdmissionExists   = errors.New("enrollee already has an active admission")
	ErrAlreadyDischarged       = errors.New("admission has already been discharged")
	ErrAdmissionNotActive      = errors.New("admission is not active")
	ErrReferralAlreadyAdmitted = errors.New("referral already has an admission")
)
