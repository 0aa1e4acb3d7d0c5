package referral

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Referral) error
	GetByID(ctx context.Context, id uuid.UUID) (*Referral, error)
	GetByCode(ctx context.Context, code string) (*Referral, error)
	GetByUTN(ctx context.Context, utn string) (*Referral, error)
	Update(ctx context.Context, r *Referral) error
	List(ctx context.Context, q *ListReferralsQuery) (*PagedReferrals, error)

	// Atomic runs fn inside one transaction scoped to the referral aggregate.
	Atomic(ctx context.Context, fn func(Repository) error) error
}
