package claim

import (
	"context"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, c *Claim) error
	// GetByID loads the claim with its lines and diagnoses.
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	GetByAdmission(ctx context.Context, admissionID uuid.UUID) ([]*Claim, error)
	Update(ctx context.Context, c *Claim) error
	List(ctx context.Context, q *ListClaimsQuery) (*PagedClaims, error)

	AddLine(ctx context.Context, l *ClaimLine) error
	UpdateLine(ctx context.Context, l *ClaimLine) error
	AddDiagnosis(ctx context.Context, d *ClaimDiagnosis) error
	UpdateDiagnosis(ctx context.Context, d *ClaimDiagnosis) error

	// LinesByICD10 returns the claim's lines tagged with the given ICD-10
	// code; the automation path relinks these to a complication PA.
	LinesByICD10(ctx context.Context, claimID uuid.UUID, icd10 string) ([]*ClaimLine, error)

	// AppendAudit writes an audit entry in the same transaction as the
	// surrounding Atomic block, so a transition and its trail commit
	// together.
	AppendAudit(ctx context.Context, entry *domain.AuditLog) error

	// Atomic runs fn inside one transaction scoped to the claim aggregate.
	Atomic(ctx context.Context, fn func(Repository) error) error
}
