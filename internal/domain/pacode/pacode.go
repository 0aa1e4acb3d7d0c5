package pacode

import (
	"time"

	"github.com/google/uuid"
)

type PAType string

const (
	TypeBundle   PAType = "BUNDLE"
	TypeFFSTopUp PAType = "FFS_TOP_UP"
)

func (t PAType) IsValid() bool {
	return t == TypeBundle || t == TypeFFSTopUp
}

// State transition possibilities:
//
//	pending → approved → used
//	pending → rejected
//	pending|approved → cancelled (only while unused)
//	pending|approved → expired (validity window elapsed)
type PAStatus string

const (
	StatusPending   PAStatus = "pending"
	StatusApproved  PAStatus = "approved"
	StatusRejected  PAStatus = "rejected"
	StatusUsed      PAStatus = "used"
	StatusExpired   PAStatus = "expired"
	StatusCancelled PAStatus = "cancelled"
)

// PACode is a pre-authorization token permitting billing of specific
// services for one episode of care. Complication and follow-up codes chain
// to their parent through ParentPAID; children always reference an already
// persisted parent, so the chain is acyclic by construction.
type PACode struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	Code string `gorm:"column:code;type:varchar(30);uniqueIndex;not null"`
	Type PAType `gorm:"column:type;type:varchar(20);not null;index"`

	Status PAStatus `gorm:"column:status;type:varchar(20);not null;default:'pending';index"`

	ReferralID  uuid.UUID  `gorm:"column:referral_id;type:uuid;not null;index"`
	AdmissionID *uuid.UUID `gorm:"column:admission_id;type:uuid;index"`
	FacilityID  uuid.UUID  `gorm:"column:facility_id;type:uuid;not null;index"`

	// Complication/follow-up chains back-reference the principal PA.
	ParentPAID *uuid.UUID `gorm:"column:parent_pa_id;type:uuid;index"`
	Sequence   int        `gorm:"column:sequence;not null;default:1"`

	DiagnosisICD10 string `gorm:"column:diagnosis_icd10;type:varchar(10)"`

	ValidFrom  time.Time `gorm:"column:valid_from;not null"`
	ValidUntil time.Time `gorm:"column:valid_until;not null;index"`

	UsageCount int `gorm:"column:usage_count;not null;default:0"`
	MaxUsage   int `gorm:"column:max_usage;not null;default:1"`

	ReviewedBy   *uuid.UUID `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt   *time.Time `gorm:"column:reviewed_at"`
	RejectReason string     `gorm:"column:reject_reason;type:text"`

	// Set by the automation path when the code was generated from a new
	// complication diagnosis rather than issued by hand.
	AutoGenerated bool `gorm:"column:auto_generated;default:false"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (PACode) TableName() string {
	return "claims.pa_codes"
}

func (p *PACode) IsExpired() bool {
	return time.Now().After(p.ValidUntil)
}

// Usable reports whether the code can authorize one more billing event.
func (p *PACode) Usable() bool {
	return (p.Status == StatusApproved || p.Status == StatusUsed) &&
		p.UsageCount < p.MaxUsage &&
		!p.IsExpired()
}

func (p *PACode) RemainingUsage() int {
	if p.UsageCount >= p.MaxUsage {
		return 0
	}
	return p.MaxUsage - p.UsageCount
}

func (p *PACode) DaysToExpiry() int {
	d := int(time.Until(p.ValidUntil).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func (p *PACode) Approve(reviewer uuid.UUID) error {
	if p.Status != StatusPending {
		return ErrNotPending
	}
	if p.IsExpired() {
		return ErrPACodeExpired
	}
	now := time.Now()
	p.Status = StatusApproved
	p.ReviewedBy = &reviewer
	p.ReviewedAt = &now
	return nil
}

func (p *PACode) Reject(reviewer uuid.UUID, reason string) error {
	if p.Status != StatusPending {
		return ErrNotPending
	}
	now := time.Now()
	p.Status = StatusRejected
	p.ReviewedBy = &reviewer
	p.ReviewedAt = &now
	p.RejectReason = reason
	return nil
}

// Use consumes one usage. The status flips to used on the first
// consumption and the code stays consumable until the ceiling is hit.
func (p *PACode) Use() error {
	if p.Status != StatusApproved && p.Status != StatusUsed {
		return ErrNotApproved
	}
	if p.IsExpired() {
		return ErrPACodeExpired
	}
	if p.UsageCount >= p.MaxUsage {
		return ErrUsageLimitExceeded
	}
	p.UsageCount++
	p.Status = StatusUsed
	return nil
}

// Cancel withdraws an unused code. Used codes are immutable.
func (p *PACode) Cancel() error {
	switch p.Status {
	case StatusUsed:
		return ErrAlreadyUsed
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusRejected:
		return ErrNotPending
	}
	p.Status = StatusCancelled
	return nil
}

type GeneratePACommand struct {
	ReferralID     uuid.UUID
	AdmissionID    *uuid.UUID
	FacilityID     uuid.UUID
	Type           PAType
	DiagnosisICD10 string
	MaxUsage       int
	ValidityDays   int
	CreatedBy      uuid.UUID
}

// Verification is the pure read-out returned by verify; nothing about the
// code is mutated to produce it.
type Verification struct {
	Code           string   `json:"code"`
	Type           PAType   `json:"type"`
	Status         PAStatus `json:"status"`
	Valid          bool     `json:"valid"`
	RemainingUsage int      `json:"remaining_usage"`
	DaysToExpiry   int      `json:"days_to_expiry"`
}

func (p *PACode) Verification() *Verification {
	return &Verification{
		Code:           p.Code,
		Type:           p.Type,
		Status:         p.Status,
		Valid:          p.Usable(),
		RemainingUsage: p.RemainingUsage(),
		DaysToExpiry:   p.DaysToExpiry(),
	}
}
