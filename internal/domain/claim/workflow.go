package claim

import (
	"fmt"
	"strings"
	"time"
)

// Review pipeline:
//
//	draft → submitted → doctor_review → [pharmacist_review] → claim_review
//	      → claim_reviewed → claim_confirmed → claim_approved → paid
//
// pharmacist_review is entered only when the claim carries a medication
// line. Each review stage may instead branch to its rejection terminal.
// Rollback never happens silently; the only way back is a rejection.
type ClaimStatus string

const (
	StatusDraft              ClaimStatus = "draft"
	StatusSubmitted          ClaimStatus = "submitted"
	StatusDoctorReview       ClaimStatus = "doctor_review"
	StatusDoctorRejected     ClaimStatus = "doctor_rejected"
	StatusPharmacistReview   ClaimStatus = "pharmacist_review"
	StatusPharmacistRejected ClaimStatus = "pharmacist_rejected"
	StatusClaimReview        ClaimStatus = "claim_review"
	StatusClaimReviewed      ClaimStatus = "claim_reviewed"
	StatusClaimConfirmed     ClaimStatus = "claim_confirmed"
	StatusClaimApproved      ClaimStatus = "claim_approved"
	StatusClaimRejected      ClaimStatus = "claim_rejected"
	StatusPaid               ClaimStatus = "paid"
)

func (s ClaimStatus) IsTerminal() bool {
	switch s {
	case StatusDoctorRejected, StatusPharmacistRejected, StatusClaimRejected, StatusPaid:
		return true
	}
	return false
}

type Action string

const (
	ActionSubmit            Action = "submit"
	ActionRouteDoctorReview Action = "route_doctor_review"
	ActionDoctorApprove     Action = "doctor_approve"
	ActionDoctorReject      Action = "doctor_reject"
	ActionPharmacistApprove Action = "pharmacist_approve"
	ActionPharmacistReject  Action = "pharmacist_reject"
	ActionReview            Action = "review"
	ActionConfirm           Action = "confirm"
	ActionApprove           Action = "approve"
	ActionRejectClaim       Action = "reject_claim"
	ActionAuthorizePayment  Action = "authorize_payment"
)

// transition is one row of the state machine table: the state the action is
// allowed in, the guard that must hold, and the resulting state.
type transition struct {
	from  ClaimStatus
	guard func(c *Claim, comment string) error
	next  func(c *Claim) ClaimStatus
}

func static(s ClaimStatus) func(*Claim) ClaimStatus {
	return func(*Claim) ClaimStatus { return s }
}

func requireComment(_ *Claim, comment string) error {
	if strings.TrimSpace(comment) == "" {
		return ErrCommentRequired
	}
	return nil
}

func guardSubmit(c *Claim, _ string) error {
	if len(c.Lines) == 0 {
		return ErrIncompleteClaim
	}
	if !c.HeaderComplete() {
		return ErrIncompleteHeader
	}
	return nil
}

func guardDoctorExit(c *Claim, comment string) error {
	if err := requireComment(c, comment); err != nil {
		return err
	}
	diagnoses, treatments := c.UnvalidatedDoctorItems()
	if diagnoses > 0 || treatments > 0 {
		return &UnvalidatedItemsError{Stage: "doctor_review", Diagnoses: diagnoses, Treatments: treatments}
	}
	return nil
}

func guardPharmacistExit(c *Claim, comment string) error {
	if err := requireComment(c, comment); err != nil {
		return err
	}
	if n := c.UnvalidatedMedicationLines(); n > 0 {
		return &UnvalidatedItemsError{Stage: "pharmacist_review", MedicationLines: n}
	}
	return nil
}

var transitionTable = map[Action][]transition{
	ActionSubmit: {
		{from: StatusDraft, guard: guardSubmit, next: static(StatusSubmitted)},
	},
	// System hand-off into the doctor's queue, applied with submission so
	// the queue entry itself is audited.
	ActionRouteDoctorReview: {
		{from: StatusSubmitted, next: static(StatusDoctorReview)},
	},
	ActionDoctorApprove: {
		{from: StatusDoctorReview, guard: guardDoctorExit, next: func(c *Claim) ClaimStatus {
			if c.HasMedicationLine() {
				return StatusPharmacistReview
			}
			return StatusClaimReview
		}},
	},
	ActionDoctorReject: {
		{from: StatusDoctorReview, guard: requireComment, next: static(StatusDoctorRejected)},
	},
	ActionPharmacistApprove: {
		{from: StatusPharmacistReview, guard: guardPharmacistExit, next: static(StatusClaimReview)},
	},
	ActionPharmacistReject: {
		{from: StatusPharmacistReview, guard: requireComment, next: static(StatusPharmacistRejected)},
	},
	ActionReview: {
		{from: StatusClaimReview, guard: requireComment, next: static(StatusClaimReviewed)},
	},
	ActionConfirm: {
		{from: StatusClaimReviewed, guard: requireComment, next: static(StatusClaimConfirmed)},
	},
	ActionApprove: {
		{from: StatusClaimConfirmed, guard: requireComment, next: static(StatusClaimApproved)},
	},
	ActionRejectClaim: {
		{from: StatusClaimReview, guard: requireComment, next: static(StatusClaimRejected)},
		{from: StatusClaimReviewed, guard: requireComment, next: static(StatusClaimRejected)},
		{from: StatusClaimConfirmed, guard: requireComment, next: static(StatusClaimRejected)},
	},
	ActionAuthorizePayment: {
		{from: StatusClaimApproved, next: static(StatusPaid)},
	},
}

// TransitionError reports the action, the status the claim is in, and the
// statuses the action is valid from.
type TransitionError struct {
	Action   Action
	Current  ClaimStatus
	Expected []ClaimStatus
}

func (e *TransitionError) Error() string {
	exp := make([]string, len(e.Expected))
	for i, s := range e.Expected {
		exp[i] = string(s)
	}
	return fmt.Sprintf("action %s not allowed in status %s (expected %s)",
		e.Action, e.Current, strings.Join(exp, " or "))
}

// UnvalidatedItemsError blocks a stage exit while items lack the stage
// owner's sign-off.
type UnvalidatedItemsError struct {
	Stage           string
	Diagnoses       int
	Treatments      int
	MedicationLines int
}

func (e *UnvalidatedItemsError) Error() string {
	if e.MedicationLines > 0 {
		return fmt.Sprintf("%s incomplete: %d medication line(s) not pharmacist-validated", e.Stage, e.MedicationLines)
	}
	return fmt.Sprintf("%s incomplete: %d diagnosis(es) and %d treatment line(s) not doctor-validated",
		e.Stage, e.Diagnoses, e.Treatments)
}

// AllowedActions lists the actions valid for the claim's current status.
func (c *Claim) AllowedActions() []Action {
	var out []Action
	for action, rows := range transitionTable {
		for _, t := range rows {
			if t.from == c.Status {
				out = append(out, action)
				break
			}
		}
	}
	return out
}

// Apply runs one action through the transition table, mutating Status on
// success and returning the prior status for the audit entry. Timestamps
// and payment totals owned by specific transitions are set here so callers
// cannot apply half a transition.
func (c *Claim) Apply(action Action, comment string) (ClaimStatus, error) {
	rows, ok := transitionTable[action]
	if !ok {
		return c.Status, fmt.Errorf("unknown workflow action %q", action)
	}

	var expected []ClaimStatus
	for _, t := range rows {
		expected = append(expected, t.from)
	}

	for _, t := range rows {
		if t.from != c.Status {
			continue
		}
		if t.guard != nil {
			if err := t.guard(c, comment); err != nil {
				return c.Status, err
			}
		}
		prior := c.Status
		c.Status = t.next(c)

		switch action {
		case ActionSubmit:
			now := time.Now()
			c.SubmittedAt = &now
		case ActionApprove:
			c.TotalApproved = c.ComputePayable()
		case ActionAuthorizePayment:
			now := time.Now()
			c.PaymentAuthorized = true
			c.TotalPaid = c.TotalApproved
			c.PaidAt = &now
		}
		return prior, nil
	}

	return c.Status, &TransitionError{Action: action, Current: c.Status, Expected: expected}
}
