package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/service"
	"gorm.io/gorm"
)

// Scheme reference data is synced into local registry tables by an
// out-of-band import job; the core only reads them.

var (
	ErrFacilityNotFound = errors.New("facility not found")
	ErrEnrolleeNotFound = errors.New("enrollee not found")
	ErrTariffNotFound   = errors.New("tariff not found")
)

type FacilityRow struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name   string    `gorm:"column:name;type:varchar(255);not null"`
	Level  string    `gorm:"column:level;type:varchar(20);not null"`
	Active bool      `gorm:"column:active;default:true;index"`
}

func (FacilityRow) TableName() string { return "registry.facilities" }

type EnrolleeRow struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name   string    `gorm:"column:name;type:varchar(255);not null"`
	Active bool      `gorm:"column:active;default:true;index"`
}

func (EnrolleeRow) TableName() string { return "registry.enrollees" }

type TariffRow struct {
	Code      string `gorm:"column:code;type:varchar(50);primaryKey"`
	UnitPrice int64  `gorm:"column:unit_price;not null"`
}

func (TariffRow) TableName() string { return "registry.tariffs" }

type BundleRow struct {
	Code        string `gorm:"column:code;type:varchar(50);primaryKey"`
	ICD10Prefix string `gorm:"column:icd10_prefix;type:varchar(10);not null;index"`
	Price       int64  `gorm:"column:price;not null"`
}

func (BundleRow) TableName() string { return "registry.bundles" }

// Registry serves the facility, enrollee, tariff, and bundle lookups from
// the local reference tables. The directory ports share a method name, so
// each is exposed through its own view type.
type Registry struct {
	db *gorm.DB
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

type FacilityDirectory struct{ db *gorm.DB }

func (r *Registry) Facilities() *FacilityDirectory { return &FacilityDirectory{db: r.db} }

func (d *FacilityDirectory) Lookup(ctx context.Context, id uuid.UUID) (*service.Facility, error) {
	var row FacilityRow
	err := d.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFacilityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &service.Facility{ID: row.ID, Name: row.Name, Level: row.Level, Active: row.Active}, nil
}

type EnrolleeDirectory struct{ db *gorm.DB }

func (r *Registry) Enrollees() *EnrolleeDirectory { return &EnrolleeDirectory{db: r.db} }

func (d *EnrolleeDirectory) Lookup(ctx context.Context, id uuid.UUID) (*service.Enrollee, error) {
	var row EnrolleeRow
	err := d.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEnrolleeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &service.Enrollee{ID: row.ID, Name: row.Name, Active: row.Active}, nil
}

type TariffCatalog struct{ db *gorm.DB }

func (r *Registry) Tariffs() *TariffCatalog { return &TariffCatalog{db: r.db} }

func (t *TariffCatalog) Lookup(ctx context.Context, code string) (*service.Tariff, error) {
	var row TariffRow
	err := t.db.WithContext(ctx).First(&row, "code = ?", strings.ToUpper(strings.TrimSpace(code))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTariffNotFound
	}
	if err != nil {
		return nil, err
	}
	return &service.Tariff{Code: row.Code, UnitPrice: row.UnitPrice}, nil
}

type BundleCatalog struct{ db *gorm.DB }

func (r *Registry) Bundles() *BundleCatalog { return &BundleCatalog{db: r.db} }

// MatchICD10 picks the bundle whose prefix is the longest match for the
// code; nil when nothing matches.
func (b *BundleCatalog) MatchICD10(ctx context.Context, icd10 string) (*service.Bundle, error) {
	var row BundleRow
	err := b.db.WithContext(ctx).
		Where("? LIKE icd10_prefix || '%'", strings.ToUpper(strings.TrimSpace(icd10))).
		Order("length(icd10_prefix) DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &service.Bundle{Code: row.Code, ICD10Prefix: row.ICD10Prefix, Price: row.Price}, nil
}
