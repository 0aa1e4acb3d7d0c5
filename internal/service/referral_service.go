package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain"
	"github.com/santerahq/claimsgate/internal/domain/referral"
	"github.com/santerahq/claimsgate/pkg/logger"
	"github.com/santerahq/claimsgate/pkg/metrics"
	"go.uber.org/zap"
)

type ReferralService struct {
	repo       referral.Repository
	facilities FacilityDirectory
	enrollees  EnrolleeDirectory
	metrics    *metrics.Collector
	auditSvc   *AuditService
	log        *zap.Logger
}

func NewReferralService(
	repo referral.Repository,
	facilities FacilityDirectory,
	enrollees EnrolleeDirectory,
	collector *metrics.Collector,
	auditSvc *AuditService,
	log *zap.Logger,
) *ReferralService {
	return &ReferralService{repo: repo, facilities: facilities, enrollees: enrollees, metrics: collector, auditSvc: auditSvc, log: log}
}

func (s *ReferralService) CreateReferral(ctx context.Context, cmd *referral.CreateReferralCommand, actor domain.Actor) (*referral.Referral, error) {
	if err := validateCreateReferral(cmd); err != nil {
		return nil, err
	}

	e, err := s.enrollees.Lookup(ctx, cmd.EnrolleeID)
	if err != nil {
		return nil, fmt.Errorf("looking up enrollee: %w", err)
	}
	if !e.Active {
		return nil, &NotEligibleError{Reason: "enrollee is not active"}
	}

	for _, fid := range []uuid.UUID{cmd.ReferringFacilityID, cmd.ReceivingFacilityID} {
		f, err := s.facilities.Lookup(ctx, fid)
		if err != nil {
			return nil, fmt.Errorf("looking up facility: %w", err)
		}
		if !f.Active {
			return nil, &NotEligibleError{Reason: "facility " + f.Name + " is not active"}
		}
	}

	r := &referral.Referral{
		Code:                newReferralCode(),
		UTN:                 newUTN(),
		EnrolleeID:          cmd.EnrolleeID,
		ReferringFacilityID: cmd.ReferringFacilityID,
		ReceivingFacilityID: cmd.ReceivingFacilityID,
		Status:              referral.StatusPending,
		Severity:            cmd.Severity,
		BundleCode:          cmd.BundleCode,
		CaseRecordCode:      cmd.CaseRecordCode,
		PresentingICD10:     strings.ToUpper(strings.TrimSpace(cmd.PresentingICD10)),
		ClinicalSummary:     cmd.ClinicalSummary,
		CreatedBy:           cmd.CreatedBy,
	}

	if err := s.repo.Create(ctx, r); err != nil {
		s.log.Error("failed to create referral", zap.Error(err))
		return nil, fmt.Errorf("creating referral: %w", err)
	}

	s.metrics.ReferralsTotal.WithLabelValues(string(referral.StatusPending)).Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "create", ResourceType: "referral", ResourceID: r.ID.String(),
		IPAddress: actor.IPAddress,
	})

	s.log.Info("referral created",
		logger.ReferralID(r.ID),
		zap.String("code", r.Code),
	)

	return r, nil
}

func (s *ReferralService) ApproveReferral(ctx context.Context, id uuid.UUID, actor domain.Actor) (*referral.Referral, error) {
	var out *referral.Referral
	err := s.repo.Atomic(ctx, func(repo referral.Repository) error {
		r, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := r.Approve(actor.UserID); err != nil {
			return err
		}
		if err := repo.Update(ctx, r); err != nil {
			return fmt.Errorf("updating referral: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReferralsTotal.WithLabelValues(string(referral.StatusApproved)).Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "update", ResourceType: "referral", ResourceID: id.String(),
		IPAddress: actor.IPAddress,
		Field:     "status", OldValue: string(referral.StatusPending), NewValue: string(referral.StatusApproved),
	})

	return out, nil
}

func (s *ReferralService) DenyReferral(ctx context.Context, id uuid.UUID, reason string, actor domain.Actor) (*referral.Referral, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Fields: []string{"reason is required"}}
	}

	var out *referral.Referral
	err := s.repo.Atomic(ctx, func(repo referral.Repository) error {
		r, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := r.Deny(actor.UserID, reason); err != nil {
			return err
		}
		if err := repo.Update(ctx, r); err != nil {
			return fmt.Errorf("updating referral: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReferralsTotal.WithLabelValues(string(referral.StatusDenied)).Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "update", ResourceType: "referral", ResourceID: id.String(),
		IPAddress: actor.IPAddress,
		Field:     "status", OldValue: string(referral.StatusPending), NewValue: string(referral.StatusDenied),
		Comment: reason,
	})

	return out, nil
}

// ValidateUTN confirms the transaction number presented at the receiving
// facility against the referral record.
func (s *ReferralService) ValidateUTN(ctx context.Context, id uuid.UUID, presented string, actor domain.Actor) (*referral.Referral, error) {
	if strings.TrimSpace(presented) == "" {
		return nil, &ValidationError{Fields: []string{"utn is required"}}
	}

	var out *referral.Referral
	err := s.repo.Atomic(ctx, func(repo referral.Repository) error {
		r, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := r.ValidateUTN(presented, actor.UserID); err != nil {
			return err
		}
		if err := repo.Update(ctx, r); err != nil {
			return fmt.Errorf("updating referral: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "update", ResourceType: "referral", ResourceID: id.String(),
		IPAddress: actor.IPAddress,
		Field:     "utn_validated", OldValue: "false", NewValue: "true",
	})

	return out, nil
}

func (s *ReferralService) GetReferral(ctx context.Context, id uuid.UUID, actor domain.Actor) (*referral.Referral, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "read", ResourceType: "referral", ResourceID: id.String(),
		IPAddress: actor.IPAddress,
	})

	return r, nil
}

func (s *ReferralService) ListReferrals(ctx context.Context, q *referral.ListReferralsQuery, actor domain.Actor) (*referral.PagedReferrals, error) {
	// Facility officers only see referrals addressed to their facility.
	if actor.Role == domain.RoleFacilityOfficer && actor.FacilityID != nil {
		q.ReceivingFacilityID = actor.FacilityID
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.repo.List(ctx, q)
}

func validateCreateReferral(cmd *referral.CreateReferralCommand) error {
	var errs []string

	if cmd.EnrolleeID == uuid.Nil {
		errs = append(errs, "enrollee_id is required")
	}
	if cmd.ReferringFacilityID == uuid.Nil {
		errs = append(errs, "referring_facility_id is required")
	}
	if cmd.ReceivingFacilityID == uuid.Nil {
		errs = append(errs, "receiving_facility_id is required")
	}
	if cmd.ReferringFacilityID != uuid.Nil && cmd.ReferringFacilityID == cmd.ReceivingFacilityID {
		errs = append(errs, "referring and receiving facility must differ")
	}
	if !cmd.Severity.IsValid() {
		errs = append(errs, "severity is invalid")
	}
	if strings.TrimSpace(cmd.PresentingICD10) == "" {
		errs = append(errs, "presenting_icd10 is required")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
