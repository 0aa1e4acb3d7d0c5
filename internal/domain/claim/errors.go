package claim

import "errors"

var (
	ErrClaimNotFound     = errors.New("claim not found")
	ErrLineNotFound      = errors.New("claim line not found")
	ErrDiagnosisNotFound = errors.New("claim diagnosis not found")

	ErrIncompleteClaim  = errors.New("claim has no billable lines")
	ErrIncompleteHeader = errors.New("claim header is incomplete")
	ErrCommentRequired  = errors.New("a non-empty comment is required for this action")

	ErrNotDraft            = errors.New("claim lines can only be changed while the claim is in draft")
	ErrDuplicateBundleLine = errors.New("claim already has a bundle line")
	ErrBundlePARequired    = errors.New("bundle lines require a PA code of type BUNDLE")
	ErrTopUpPARequired     = errors.New("FFS lines require a PA code of type FFS_TOP_UP")
	ErrSharedPA            = errors.New("FFS line cannot reuse the bundle line's PA code")

	ErrInvalidServiceType = errors.New("invalid service type")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
)
