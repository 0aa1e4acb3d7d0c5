package pacode

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *PACode) error
	GetByID(ctx context.Context, id uuid.UUID) (*PACode, error)
	GetByCode(ctx context.Context, code string) (*PACode, error)
	Update(ctx context.Context, p *PACode) error

	// HasApprovedBundle reports whether an approved (or already used) BUNDLE
	// PA exists for the referral episode.
	HasApprovedBundle(ctx context.Context, referralID uuid.UUID, excludeID *uuid.UUID) (bool, error)

	// MaxSequence returns the highest sequence issued for the admission, 0
	// when none exists.
	MaxSequence(ctx context.Context, admissionID uuid.UUID) (int, error)

	ListByReferral(ctx context.Context, referralID uuid.UUID) ([]*PACode, error)

	// Atomic runs fn inside one transaction scoped to the PA aggregate.
	Atomic(ctx context.Context, fn func(Repository) error) error
}
