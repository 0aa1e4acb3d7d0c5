package referral

import (
	"time"

	"github.com/google/uuid"
)

type ReferralStatus string

const (
	StatusPending  ReferralStatus = "pending"
	StatusApproved ReferralStatus = "approved"
	StatusDenied   ReferralStatus = "denied"
)

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

// Referral is created by the referring facility and reviewed exactly once.
// Approval together with UTN validation unlocks admission eligibility;
// the record is immutable thereafter.
type Referral struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	Code string `gorm:"column:code;type:varchar(30);uniqueIndex;not null"`
	// Unique transaction number confirmed at the receiving facility.
	UTN string `gorm:"column:utn;type:varchar(30);uniqueIndex;not null"`

	EnrolleeID           uuid.UUID `gorm:"column:enrollee_id;type:uuid;not null;index"`
	ReferringFacilityID  uuid.UUID `gorm:"column:referring_facility_id;type:uuid;not null;index"`
	ReceivingFacilityID  uuid.UUID `gorm:"column:receiving_facility_id;type:uuid;not null;index"`

	Status       ReferralStatus `gorm:"column:status;type:varchar(20);not null;default:'pending';index"`
	UTNValidated bool           `gorm:"column:utn_validated;default:false"`

	Severity Severity `gorm:"column:severity;type:varchar(20);not null"`

	// Either a bundle case is selected up front or the case record is billed
	// directly fee-for-service.
	BundleCode       string `gorm:"column:bundle_code;type:varchar(30);index"`
	CaseRecordCode   string `gorm:"column:case_record_code;type:varchar(30)"`
	PresentingICD10  string `gorm:"column:presenting_icd10;type:varchar(10)"`
	ClinicalSummary  string `gorm:"column:clinical_summary;type:text"`

	ReviewedBy *uuid.UUID `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt *time.Time `gorm:"column:reviewed_at"`
	DenyReason string     `gorm:"column:deny_reason;type:text"`

	UTNValidatedAt *time.Time `gorm:"column:utn_validated_at"`
	UTNValidatedBy *uuid.UUID `gorm:"column:utn_validated_by;type:uuid"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Referral) TableName() string {
	return "claims.referrals"
}

// Approve marks the referral approved. Referrals are reviewed once; any
// further review attempt is a conflict.
func (r *Referral) Approve(reviewer uuid.UUID) error {
	if r.Status != StatusPending {
		return ErrAlreadyReviewed
	}
	now := time.Now()
	r.Status = StatusApproved
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &now
	return nil
}

func (r *Referral) Deny(reviewer uuid.UUID, reason string) error {
	if r.Status != StatusPending {
		return ErrAlreadyReviewed
	}
	now := time.Now()
	r.Status = StatusDenied
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &now
	r.DenyReason = reason
	return nil
}

// ValidateUTN is performed at the receiving facility against the presented
// transaction number.
func (r *Referral) ValidateUTN(presented string, validator uuid.UUID) error {
	if r.UTNValidated {
		return ErrUTNAlreadyValidated
	}
	if presented != r.UTN {
		return ErrUTNMismatch
	}
	now := time.Now()
	r.UTNValidated = true
	r.UTNValidatedAt = &now
	r.UTNValidatedBy = &validator
	return nil
}

// AdmissionReady reports whether the referral unlocks admission creation.
func (r *Referral) AdmissionReady() bool {
	return r.Status == StatusApproved && r.UTNValidated
}

type CreateReferralCommand struct {
	EnrolleeID          uuid.UUID
	ReferringFacilityID uuid.UUID
	ReceivingFacilityID uuid.UUID
	Severity            Severity
	BundleCode          string
	CaseRecordCode      string
	PresentingICD10     string
	ClinicalSummary     string
	CreatedBy           uuid.UUID
}

type ListReferralsQuery struct {
	EnrolleeID          *uuid.UUID
	ReceivingFacilityID *uuid.UUID
	Status              *ReferralStatus
	Page                int
	PageSize            int
}

type PagedReferrals struct {
	Referrals  []*Referral
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}
