package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain/admission"
	"gorm.io/gorm"
)

type AdmissionRepository struct {
	db *gorm.DB
}

func NewAdmissionRepository(db *gorm.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

func (r *AdmissionRepository) Create(ctx context.Context, a *admission.Admission) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AdmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*admission.Admission, error) {
	var a admission.Admission
	err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, admission.ErrAdmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AdmissionRepository) GetByReferral(ctx context.Context, referralID uuid.UUID) (*admission.Admission, error) {
	var a admission.Admission
	err := r.db.WithContext(ctx).First(&a, "referral_id = ?", referralID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, admission.ErrAdmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AdmissionRepository) Update(ctx context.Context, a *admission.Admission) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *AdmissionRepository) HasActiveForEnrollee(ctx context.Context, enrolleeID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&admission.Admission{}).
		Where("enrollee_id = ?", enrolleeID).
		Where("status = ?", admission.StatusActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *AdmissionRepository) Atomic(ctx context.Context, fn func(admission.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&AdmissionRepository{db: tx})
	})
}
