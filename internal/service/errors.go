package service

import (
	"errors"
	"fmt"
	"strings"
)

var ErrForbidden = errors.New("forbidden: insufficient permissions")

// ValidationError: malformed or missing input. Caller fault, never retried.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// Machine-readable policy codes surfaced to the request layer. Never
// downgraded to warnings.
const (
	CodeDuplicateBundlePA   = "DUPLICATE_BUNDLE_PA"
	CodeDuplicateBundle     = "DUPLICATE_BUNDLE"
	CodeSharedPA            = "SHARED_PA_VIOLATION"
	CodeTypeMismatch        = "PA_TYPE_MISMATCH"
	CodeUsageLimit          = "PA_USAGE_LIMIT_EXCEEDED"
	CodeReferralNotApproved = "REFERRAL_NOT_APPROVED"
)

// PolicyViolation: the operation would break a scheme invariant.
type PolicyViolation struct {
	Code    string
	Message string
	Err     error
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("policy violation %s: %s", e.Code, e.Message)
}

func (e *PolicyViolation) Unwrap() error { return e.Err }

// NotEligibleError: a precondition on another aggregate does not hold.
type NotEligibleError struct {
	Reason string
	Err    error
}

func (e *NotEligibleError) Error() string {
	return "not eligible: " + e.Reason
}

func (e *NotEligibleError) Unwrap() error { return e.Err }

// AuditEntry is the access-log shape fed to the async audit worker.
// State transitions do not pass through here; they are written
// synchronously inside the aggregate transaction.
type AuditEntry struct {
	ActorID      string
	ActorRole    string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	Field        string
	OldValue     string
	NewValue     string
	Comment      string
}
