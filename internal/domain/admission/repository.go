package admission

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Admission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admission, error)
	GetByReferral(ctx context.Context, referralID uuid.UUID) (*Admission, error)
	Update(ctx context.Context, a *Admission) error

	// HasActiveForEnrollee reports whether the enrollee has any active
	// admission, at any facility.
	HasActiveForEnrollee(ctx context.Context, enrolleeID uuid.UUID) (bool, error)

	// Atomic runs fn inside one transaction scoped to the admission aggregate.
	Atomic(ctx context.Context, fn func(Repository) error) error
}
