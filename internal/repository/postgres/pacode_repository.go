package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain/pacode"
	"gorm.io/gorm"
)

type PACodeRepository struct {
	db *gorm.DB
}

func NewPACodeRepository(db *gorm.DB) *PACodeRepository {
	return &PACodeRepository{db: db}
}

func (r *PACodeRepository) Create(ctx context.Context, p *pacode.PACode) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PACodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*pacode.PACode, error) {
	var p pacode.PACode
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pacode.ErrPACodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PACodeRepository) GetByCode(ctx context.Context, code string) (*pacode.PACode, error) {
	var p pacode.PACode
	err := r.db.WithContext(ctx).First(&p, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pacode.ErrPACodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PACodeRepository) Update(ctx context.Context, p *pacode.PACode) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PACodeRepository) HasApprovedBundle(ctx context.Context, referralID uuid.UUID, excludeID *uuid.UUID) (bool, error) {
	db := r.db.WithContext(ctx).Model(&pacode.PACode{}).
		Where("referral_id = ?", referralID).
		Where("type = ?", pacode.TypeBundle).
		Where("status IN ?", []pacode.PAStatus{pacode.StatusApproved, pacode.StatusUsed})
	if excludeID != nil {
		db = db.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PACodeRepository) MaxSequence(ctx context.Context, admissionID uuid.UUID) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&pacode.PACode{}).
		Where("admission_id = ?", admissionID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (r *PACodeRepository) ListByReferral(ctx context.Context, referralID uuid.UUID) ([]*pacode.PACode, error) {
	var codes []*pacode.PACode
	err := r.db.WithContext(ctx).
		Where("referral_id = ?", referralID).
		Order("sequence ASC, created_at ASC").
		Find(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *PACodeRepository) Atomic(ctx context.Context, fn func(pacode.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PACodeRepository{db: tx})
	})
}
