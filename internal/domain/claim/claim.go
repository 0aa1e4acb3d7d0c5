package claim

import (
	"time"

	"github.com/google/uuid"
)

type TariffType string

const (
	TariffBundle TariffType = "BUNDLE"
	TariffFFS    TariffType = "FFS"
)

// ReportingType refines FFS lines for downstream reporting: a top-up rides
// on a bundled claim, a standalone FFS line does not.
type ReportingType string

const (
	ReportingBundle        ReportingType = "BUNDLE"
	ReportingFFSTopUp      ReportingType = "FFS_TOP_UP"
	ReportingFFSStandalone ReportingType = "FFS_STANDALONE"
)

type ServiceType string

const (
	ServiceMedication    ServiceType = "medication"
	ServiceConsultation  ServiceType = "consultation"
	ServiceProcedure     ServiceType = "procedure"
	ServiceInvestigation ServiceType = "investigation"
	ServiceBed           ServiceType = "bed"
	ServiceConsumable    ServiceType = "consumable"
)

func (s ServiceType) IsValid() bool {
	switch s {
	case ServiceMedication, ServiceConsultation, ServiceProcedure,
		ServiceInvestigation, ServiceBed, ServiceConsumable:
		return true
	}
	return false
}

type DiagnosisType string

const (
	DiagnosisPrimary      DiagnosisType = "primary"
	DiagnosisSecondary    DiagnosisType = "secondary"
	DiagnosisComplication DiagnosisType = "complication"
)

// ClaimLine is one billed item. At most one line per claim carries
// TariffBundle; every FFS line on a bundled claim must reference an
// FFS_TOP_UP PA distinct from the bundle line's PA.
type ClaimLine struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	ClaimID uuid.UUID `gorm:"column:claim_id;type:uuid;not null;index"`

	TariffType    TariffType    `gorm:"column:tariff_type;type:varchar(10);not null;index"`
	ReportingType ReportingType `gorm:"column:reporting_type;type:varchar(20);not null"`
	ServiceType   ServiceType   `gorm:"column:service_type;type:varchar(20);not null"`

	PACodeID *uuid.UUID `gorm:"column:pa_code_id;type:uuid;index"`

	TariffCode  string `gorm:"column:tariff_code;type:varchar(30);not null"`
	Description string `gorm:"column:description;type:varchar(255)"`
	ICD10Code   string `gorm:"column:icd10_code;type:varchar(10)"`

	Quantity  int   `gorm:"column:quantity;not null;default:1"`
	UnitPrice int64 `gorm:"column:unit_price;not null"` // kobo
	LineTotal int64 `gorm:"column:line_total;not null"` // kobo

	DoctorValidated     bool `gorm:"column:doctor_validated;default:false"`
	PharmacistValidated bool `gorm:"column:pharmacist_validated;default:false"`
}

func (ClaimLine) TableName() string {
	return "claims.claim_lines"
}

type ClaimDiagnosis struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	ClaimID uuid.UUID `gorm:"column:claim_id;type:uuid;not null;index"`

	ICD10Code string        `gorm:"column:icd10_code;type:varchar(10);not null"`
	Type      DiagnosisType `gorm:"column:type;type:varchar(20);not null"`

	DoctorValidated bool `gorm:"column:doctor_validated;default:false"`

	// Complication diagnoses link the auto-generated top-up PA.
	PACodeID *uuid.UUID `gorm:"column:pa_code_id;type:uuid;index"`
}

func (ClaimDiagnosis) TableName() string {
	return "claims.claim_diagnoses"
}

// Claim is the billing aggregate for one episode of care. Amounts are held
// in kobo and recomputed from line rows before any decision that depends on
// them; the stored columns are reporting copies, never guard inputs.
type Claim struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	AdmissionID uuid.UUID `gorm:"column:admission_id;type:uuid;not null;index"`
	ReferralID  uuid.UUID `gorm:"column:referral_id;type:uuid;not null;index"`
	FacilityID  uuid.UUID `gorm:"column:facility_id;type:uuid;not null;index"`
	EnrolleeID  uuid.UUID `gorm:"column:enrollee_id;type:uuid;not null;index"`

	Status ClaimStatus `gorm:"column:status;type:varchar(30);not null;default:'draft';index"`

	BundleAmount  int64 `gorm:"column:bundle_amount;not null;default:0"`
	FFSAmount     int64 `gorm:"column:ffs_amount;not null;default:0"`
	TotalClaimed  int64 `gorm:"column:total_claimed;not null;default:0"`
	TotalApproved int64 `gorm:"column:total_approved;not null;default:0"`
	TotalPaid     int64 `gorm:"column:total_paid;not null;default:0"`

	PaymentAuthorized bool       `gorm:"column:payment_authorized;default:false"`
	SubmittedAt       *time.Time `gorm:"column:submitted_at"`
	PaidAt            *time.Time `gorm:"column:paid_at"`

	Lines     []ClaimLine      `gorm:"foreignKey:ClaimID"`
	Diagnoses []ClaimDiagnosis `gorm:"foreignKey:ClaimID"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Claim) TableName() string {
	return "claims.claims"
}

// BundleLine returns the claim's bundle line, nil when none exists.
func (c *Claim) BundleLine() *ClaimLine {
	for i := range c.Lines {
		if c.Lines[i].TariffType == TariffBundle {
			return &c.Lines[i]
		}
	}
	return nil
}

func (c *Claim) FFSLines() []*ClaimLine {
	var out []*ClaimLine
	for i := range c.Lines {
		if c.Lines[i].TariffType == TariffFFS {
			out = append(out, &c.Lines[i])
		}
	}
	return out
}

func (c *Claim) HasMedicationLine() bool {
	for i := range c.Lines {
		if c.Lines[i].ServiceType == ServiceMedication {
			return true
		}
	}
	return false
}

// RecomputeTotals rebuilds the amount columns from line rows. Callers must
// re-read lines inside the active transaction first.
func (c *Claim) RecomputeTotals() {
	var bundle, ffs int64
	for i := range c.Lines {
		switch c.Lines[i].TariffType {
		case TariffBundle:
			bundle += c.Lines[i].LineTotal
		case TariffFFS:
			ffs += c.Lines[i].LineTotal
		}
	}
	c.BundleAmount = bundle
	c.FFSAmount = ffs
	c.TotalClaimed = bundle + ffs
}

// ComputePayable sums the line totals that survived review. Only lines the
// doctor validated (and, for medication, the pharmacist) count toward the
// payout.
func (c *Claim) ComputePayable() int64 {
	var total int64
	for i := range c.Lines {
		l := &c.Lines[i]
		if !l.DoctorValidated {
			continue
		}
		if l.ServiceType == ServiceMedication && !l.PharmacistValidated {
			continue
		}
		total += l.LineTotal
	}
	return total
}

// HeaderComplete reports whether the submission header references a real
// episode end to end.
func (c *Claim) HeaderComplete() bool {
	return c.AdmissionID != uuid.Nil &&
		c.ReferralID != uuid.Nil &&
		c.FacilityID != uuid.Nil &&
		c.EnrolleeID != uuid.Nil
}

// UnvalidatedDoctorItems counts diagnoses and treatment lines the doctor
// has not signed off.
func (c *Claim) UnvalidatedDoctorItems() (diagnoses, treatments int) {
	for i := range c.Diagnoses {
		if !c.Diagnoses[i].DoctorValidated {
			diagnoses++
		}
	}
	for i := range c.Lines {
		if !c.Lines[i].DoctorValidated {
			treatments++
		}
	}
	return diagnoses, treatments
}

// UnvalidatedMedicationLines counts medication lines the pharmacist has not
// signed off.
func (c *Claim) UnvalidatedMedicationLines() int {
	n := 0
	for i := range c.Lines {
		if c.Lines[i].ServiceType == ServiceMedication && !c.Lines[i].PharmacistValidated {
			n++
		}
	}
	return n
}

// Classification is the pure projection of counts and totals by tariff type.
type Classification struct {
	BundleLines   int   `json:"bundle_lines"`
	FFSLines      int   `json:"ffs_lines"`
	TopUpLines    int   `json:"top_up_lines"`
	StandaloneFFS int   `json:"standalone_ffs_lines"`
	BundleAmount  int64 `json:"bundle_amount"`
	FFSAmount     int64 `json:"ffs_amount"`
	TotalClaimed  int64 `json:"total_claimed"`
}

// Classify is idempotent and never mutates the claim.
func (c *Claim) Classify() *Classification {
	cls := &Classification{}
	for i := range c.Lines {
		l := &c.Lines[i]
		switch l.TariffType {
		case TariffBundle:
			cls.BundleLines++
			cls.BundleAmount += l.LineTotal
		case TariffFFS:
			cls.FFSLines++
			cls.FFSAmount += l.LineTotal
			if l.ReportingType == ReportingFFSTopUp {
				cls.TopUpLines++
			} else {
				cls.StandaloneFFS++
			}
		}
	}
	cls.TotalClaimed = cls.BundleAmount + cls.FFSAmount
	return cls
}

type CreateClaimCommand struct {
	AdmissionID uuid.UUID
	CreatedBy   uuid.UUID
}

type AddLineCommand struct {
	PACodeID    uuid.UUID
	ServiceType ServiceType
	TariffCode  string
	Description string
	ICD10Code   string
	Quantity    int
	AddedBy     uuid.UUID
}

type AddDiagnosisCommand struct {
	ICD10Code      string
	IsComplication bool
	AddedBy        uuid.UUID
}

type ListClaimsQuery struct {
	FacilityID *uuid.UUID
	EnrolleeID *uuid.UUID
	Status     *ClaimStatus
	Page       int
	PageSize   int
}

type PagedClaims struct {
	Claims     []*Claim
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}
