package postgres

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain/referral"
	"gorm.io/gorm"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) Create(ctx context.Context, ref *referral.Referral) error {
	return r.db.WithContext(ctx).Create(ref).Error
}

func (r *ReferralRepository) GetByID(ctx context.Context, id uuid.UUID) (*referral.Referral, error) {
	var ref referral.Referral
	err := r.db.WithContext(ctx).First(&ref, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, referral.ErrReferralNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *ReferralRepository) GetByCode(ctx context.Context, code string) (*referral.Referral, error) {
	var ref referral.Referral
	err := r.db.WithContext(ctx).First(&ref, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, referral.ErrReferralNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *ReferralRepository) GetByUTN(ctx context.Context, utn string) (*referral.Referral, error) {
	var ref referral.Referral
	err := r.db.WithContext(ctx).First(&ref, "utn = ?", utn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, referral.ErrReferralNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *ReferralRepository) Update(ctx context.Context, ref *referral.Referral) error {
	return r.db.WithContext(ctx).Save(ref).Error
}

func (r *ReferralRepository) List(ctx context.Context, q *referral.ListReferralsQuery) (*referral.PagedReferrals, error) {
	db := r.db.WithContext(ctx).Model(&referral.Referral{})

	if q.EnrolleeID != nil {
		db = db.Where("enrollee_id = ?", *q.EnrolleeID)
	}
	if q.ReceivingFacilityID != nil {
		db = db.Where("receiving_facility_id = ?", *q.ReceivingFacilityID)
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, err
	}

	var refs []*referral.Referral
	offset := (q.Page - 1) * q.PageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(q.PageSize).Find(&refs).Error; err != nil {
		return nil, err
	}

	return &referral.PagedReferrals{
		Referrals:  refs,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(q.PageSize))),
	}, nil
}

func (r *ReferralRepository) Atomic(ctx context.Context, fn func(referral.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ReferralRepository{db: tx})
	})
}
