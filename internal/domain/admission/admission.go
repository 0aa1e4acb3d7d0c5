package admission

import (
	"time"

	"github.com/google/uuid"
)

// Discharge is a one-way, single transition: active → discharged.
type AdmissionStatus string

const (
	StatusActive     AdmissionStatus = "active"
	StatusDischarged AdmissionStatus = "discharged"
)

type Admission struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	ReferralID uuid.UUID `gorm:"column:referral_id;type:uuid;not null;uniqueIndex"`
	EnrolleeID uuid.UUID `gorm:"column:enrollee_id;type:uuid;not null;index"`
	FacilityID uuid.UUID `gorm:"column:facility_id;type:uuid;not null;index"`

	Status AdmissionStatus `gorm:"column:status;type:varchar(20);not null;default:'active';index"`

	PrincipalDiagnosisICD10 string `gorm:"column:principal_diagnosis_icd10;type:varchar(10);not null"`
	Ward                    string `gorm:"column:ward;type:varchar(50)"`

	// Principal BUNDLE PA for the episode, once one is approved.
	PrincipalPAID *uuid.UUID `gorm:"column:principal_pa_id;type:uuid;index"`

	// Best-effort match against the bundle catalog by ICD-10 prefix.
	// Empty when no bundle covers the principal diagnosis.
	BundleCode string `gorm:"column:bundle_code;type:varchar(30);index"`

	AdmittedAt       time.Time  `gorm:"column:admitted_at;not null;index"`
	DischargedAt     *time.Time `gorm:"column:discharged_at"`
	WardDays         int        `gorm:"column:ward_days;default:0"`
	DischargeSummary string     `gorm:"column:discharge_summary;type:text"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Admission) TableName() string {
	return "claims.admissions"
}

func (a *Admission) IsActive() bool {
	return a.Status == StatusActive
}

func (a *Admission) Discharge(wardDays int, summary string) error {
	if a.Status == StatusDischarged {
		return ErrAlreadyDischarged
	}
	now := time.Now()
	a.Status = StatusDischarged
	a.DischargedAt = &now
	a.WardDays = wardDays
	a.DischargeSummary = summary
	return nil
}

type CreateAdmissionCommand struct {
	ReferralID              uuid.UUID
	PrincipalDiagnosisICD10 string
	Ward                    string
	AdmittedAt              time.Time
	CreatedBy               uuid.UUID
}

type DischargeCommand struct {
	WardDays         int
	DischargeSummary string
	DischargedBy     uuid.UUID
}

// Eligibility is the non-throwing pre-flight answer for canAdmit.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}
