package postgres

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain"
	"github.com/santerahq/claimsgate/internal/domain/claim"
	"gorm.io/gorm"
)

type ClaimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

func (r *ClaimRepository) Create(ctx context.Context, c *claim.Claim) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ClaimRepository) GetByID(ctx context.Context, id uuid.UUID) (*claim.Claim, error) {
	var c claim.Claim
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Diagnoses").
		First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, claim.ErrClaimNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClaimRepository) GetByAdmission(ctx context.Context, admissionID uuid.UUID) ([]*claim.Claim, error) {
	var claims []*claim.Claim
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Diagnoses").
		Where("admission_id = ?", admissionID).
		Order("created_at ASC").
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Update persists the claim header only. Lines and diagnoses are written
// through their own methods so a header save never clobbers rows another
// transaction touched.
func (r *ClaimRepository) Update(ctx context.Context, c *claim.Claim) error {
	return r.db.WithContext(ctx).Omit("Lines", "Diagnoses").Save(c).Error
}

func (r *ClaimRepository) List(ctx context.Context, q *claim.ListClaimsQuery) (*claim.PagedClaims, error) {
	db := r.db.WithContext(ctx).Model(&claim.Claim{})

	if q.FacilityID != nil {
		db = db.Where("facility_id = ?", *q.FacilityID)
	}
	if q.EnrolleeID != nil {
		db = db.Where("enrollee_id = ?", *q.EnrolleeID)
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, err
	}

	var claims []*claim.Claim
	offset := (q.Page - 1) * q.PageSize
	err := db.Preload("Lines").Preload("Diagnoses").
		Order("created_at DESC").
		Offset(offset).Limit(q.PageSize).
		Find(&claims).Error
	if err != nil {
		return nil, err
	}

	return &claim.PagedClaims{
		Claims:     claims,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(q.PageSize))),
	}, nil
}

func (r *ClaimRepository) AddLine(ctx context.Context, l *claim.ClaimLine) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *ClaimRepository) UpdateLine(ctx context.Context, l *claim.ClaimLine) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *ClaimRepository) AddDiagnosis(ctx context.Context, d *claim.ClaimDiagnosis) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *ClaimRepository) UpdateDiagnosis(ctx context.Context, d *claim.ClaimDiagnosis) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *ClaimRepository) LinesByICD10(ctx context.Context, claimID uuid.UUID, icd10 string) ([]*claim.ClaimLine, error) {
	var lines []*claim.ClaimLine
	err := r.db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Where("icd10_code = ?", icd10).
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *ClaimRepository) AppendAudit(ctx context.Context, entry *domain.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *ClaimRepository) Atomic(ctx context.Context, fn func(claim.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ClaimRepository{db: tx})
	})
}
