package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain"
	"github.com/santerahq/claimsgate/internal/domain/claim"
	"github.com/santerahq/claimsgate/pkg/logger"
	"github.com/santerahq/claimsgate/pkg/metrics"
	"go.uber.org/zap"
)

// WorkflowService drives the claim review pipeline. Every transition is
// applied through the domain transition table inside one claim-scoped
// transaction, with its audit entry committed alongside. Totals feeding a
// guard are recomputed from freshly loaded line rows, never trusted from
// the stored columns.
type WorkflowService struct {
	repo     claim.Repository
	metrics  *metrics.Collector
	auditSvc *AuditService
	log      *zap.Logger
}

func NewWorkflowService(repo claim.Repository, collector *metrics.Collector, auditSvc *AuditService, log *zap.Logger) *WorkflowService {
	return &WorkflowService{repo: repo, metrics: collector, auditSvc: auditSvc, log: log}
}

var actionRoles = map[claim.Action][]domain.Role{
	claim.ActionSubmit:            {domain.RoleFacilityOfficer, domain.RoleAdmin},
	claim.ActionDoctorApprove:     {domain.RoleDoctor},
	claim.ActionDoctorReject:      {domain.RoleDoctor},
	claim.ActionPharmacistApprove: {domain.RolePharmacist},
	claim.ActionPharmacistReject:  {domain.RolePharmacist},
	claim.ActionReview:            {domain.RoleClaimsReviewer},
	claim.ActionConfirm:           {domain.RoleClaimsConfirmer},
	claim.ActionApprove:           {domain.RoleClaimsApprover},
	claim.ActionAuthorizePayment:  {domain.RoleClaimsApprover},
}

// Rejection at a claims-team stage belongs to that stage's owner.
var rejectStageRoles = map[claim.ClaimStatus]domain.Role{
	claim.StatusClaimReview:    domain.RoleClaimsReviewer,
	claim.StatusClaimReviewed:  domain.RoleClaimsConfirmer,
	claim.StatusClaimConfirmed: domain.RoleClaimsApprover,
}

func roleAllowed(action claim.Action, role domain.Role) bool {
	for _, r := range actionRoles[action] {
		if r == role {
			return true
		}
	}
	return false
}

// SubmitClaim runs the draft→submitted transition and the system hand-off
// into the doctor's queue, writing one audit entry per transition in the
// same transaction.
func (s *WorkflowService) SubmitClaim(ctx context.Context, claimID uuid.UUID, actor domain.Actor) (*claim.Claim, error) {
	if !roleAllowed(claim.ActionSubmit, actor.Role) {
		return nil, ErrForbidden
	}

	var out *claim.Claim
	err := s.repo.Atomic(ctx, func(repo claim.Repository) error {
		c, err := repo.GetByID(ctx, claimID)
		if err != nil {
			return err
		}
		c.RecomputeTotals()

		for _, step := range []struct {
			action  claim.Action
			comment string
		}{
			{claim.ActionSubmit, "claim submitted"},
			{claim.ActionRouteDoctorReview, "routed to doctor review"},
		} {
			prior, err := c.Apply(step.action, step.comment)
			if err != nil {
				return err
			}
			if err := repo.AppendAudit(ctx, transitionAudit(c, prior, actor, step.comment)); err != nil {
				return fmt.Errorf("writing audit entry: %w", err)
			}
		}

		if err := repo.Update(ctx, c); err != nil {
			return fmt.Errorf("updating claim: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ClaimsTotal.WithLabelValues(string(out.Status)).Inc()
	s.log.Info("claim submitted",
		logger.ClaimID(out.ID),
		zap.Int64("total_claimed", out.TotalClaimed),
	)

	return out, nil
}

func (s *WorkflowService) DoctorApprove(ctx context.Context, claimID uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
	return s.applyAction(ctx, claimID, claim.ActionDoctorApprove, comment, actor)
}

func (s *WorkflowService) DoctorReject(ctx context.Context, claimID uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
	return s.applyAction(ctx, claimID, claim.ActionDoctorReject, comment, actor)
}

func (s *WorkflowService) PharmacistApprove(ctx context.Context, claimID uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
	return s.applyAction(ctx, claimID, claim.ActionPharmacistApprove, comment, actor)
}

func (s *WorkflowService) PharmacistReject(ctx context.Context, claimID uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
	return s.applyAction(ctx, claimID, claim.ActionPharmacistReject, comment, actor)
}

func (s *WorkflowService) ReviewClaim(ctx context.Context, claimID uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
	return s.applyAction(ctx, claimID, claim.ActionReview, comment, actor)
}

func (s *WorkflowService) ConfirmClaim(ctx context.Context, claimID uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
	return s.applyAction(ctx, claimID, claim.ActionConfirm, comment, actor)
}

// ApproveClaim grants final approval, recomputing the approved total from
// line rows inside the transaction. When authorizePayment is set the claim
// moves straight on to paid and the approved total becomes the paid total.
func (s *WorkflowService) ApproveClaim(ctx context.Context, claimID uuid.UUID, comment string, authorizePayment bool, actor domain.Actor) (*claim.Claim, error) {
	if !roleAllowed(claim.ActionApprove, actor.Role) {
		return nil, ErrForbidden
	}

	var out *claim.Claim
	err := s.repo.Atomic(ctx, func(repo claim.Repository) error {
		c, err := repo.GetByID(ctx, claimID)
		if err != nil {
			return err
		}
		c.RecomputeTotals()

		prior, err := c.Apply(claim.ActionApprove, comment)
		if err != nil {
			return err
		}
		if err := repo.AppendAudit(ctx, transitionAudit(c, prior, actor, comment)); err != nil {
			return fmt.Errorf("writing audit entry: %w", err)
		}

		if authorizePayment {
			prior, err := c.Apply(claim.ActionAuthorizePayment, comment)
			if err != nil {
				return err
			}
			if err := repo.AppendAudit(ctx, transitionAudit(c, prior, actor, "payment authorized")); err != nil {
				return fmt.Errorf("writing audit entry: %w", err)
			}
		}

		if err := repo.Update(ctx, c); err != nil {
			return fmt.Errorf("updating claim: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ClaimsTotal.WithLabelValues(string(out.Status)).Inc()
	if out.Status == claim.StatusPaid {
		s.metrics.PaymentsAuthorizedTotal.Inc()
	}
	s.log.Info("claim approved",
		logger.ClaimID(out.ID),
		zap.Int64("total_approved", out.TotalApproved),
		zap.Bool("payment_authorized", out.PaymentAuthorized),
	)

	return out, nil
}

// RejectClaim terminates the pipeline at one of the claims-team stages.
func (s *WorkflowService) RejectClaim(ctx context.Context, claimID uuid.UUID, comment string, actor domain.Actor) (*claim.Claim, error) {
	var out *claim.Claim
	err := s.repo.Atomic(ctx, func(repo claim.Repository) error {
		c, err := repo.GetByID(ctx, claimID)
		if err != nil {
			return err
		}

		owner, ok := rejectStageRoles[c.Status]
		if !ok {
			return &claim.TransitionError{
				Action:   claim.ActionRejectClaim,
				Current:  c.Status,
				Expected: []claim.ClaimStatus{claim.StatusClaimReview, claim.StatusClaimReviewed, claim.StatusClaimConfirmed},
			}
		}
		if actor.Role != owner && actor.Role != domain.RoleAdmin {
			return ErrForbidden
		}

		prior, err := c.Apply(claim.ActionRejectClaim, comment)
		if err != nil {
			return err
		}
		if err := repo.AppendAudit(ctx, transitionAudit(c, prior, actor, comment)); err != nil {
			return fmt.Errorf("writing audit entry: %w", err)
		}
		if err := repo.Update(ctx, c); err != nil {
			return fmt.Errorf("updating claim: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ClaimsTotal.WithLabelValues(string(out.Status)).Inc()
	return out, nil
}

func (s *WorkflowService) applyAction(ctx context.Context, claimID uuid.UUID, action claim.Action, comment string, actor domain.Actor) (*claim.Claim, error) {
	if !roleAllowed(action, actor.Role) {
		return nil, ErrForbidden
	}

	var out *claim.Claim
	err := s.repo.Atomic(ctx, func(repo claim.Repository) error {
		c, err := repo.GetByID(ctx, claimID)
		if err != nil {
			return err
		}
		c.RecomputeTotals()

		prior, err := c.Apply(action, comment)
		if err != nil {
			return err
		}
		if err := repo.AppendAudit(ctx, transitionAudit(c, prior, actor, comment)); err != nil {
			return fmt.Errorf("writing audit entry: %w", err)
		}
		if err := repo.Update(ctx, c); err != nil {
			return fmt.Errorf("updating claim: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Status.IsTerminal() {
		s.metrics.ClaimsTotal.WithLabelValues(string(out.Status)).Inc()
	}
	s.log.Info("claim transition",
		logger.ClaimID(out.ID),
		zap.String("action", string(action)),
		zap.String("status", string(out.Status)),
	)

	return out, nil
}

func transitionAudit(c *claim.Claim, prior claim.ClaimStatus, actor domain.Actor, comment string) *domain.AuditLog {
	return &domain.AuditLog{
		ActorID:      actor.UserID,
		ActorRole:    actor.Role,
		IPAddress:    actor.IPAddress,
		Action:       domain.ActionStatusTransition,
		ResourceType: "claim",
		ResourceID:   c.ID.String(),
		Field:        "status",
		OldValue:     string(prior),
		NewValue:     string(c.Status),
		Comment:      comment,
	}
}
