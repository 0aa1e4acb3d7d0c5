package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain"
	"github.com/santerahq/claimsgate/internal/domain/admission"
	"github.com/santerahq/claimsgate/internal/domain/referral"
	"github.com/santerahq/claimsgate/pkg/logger"
	"github.com/santerahq/claimsgate/pkg/metrics"
	"go.uber.org/zap"
)

type AdmissionService struct {
	repo         admission.Repository
	referralRepo referral.Repository
	bundles      BundleCatalog
	metrics      *metrics.Collector
	auditSvc     *AuditService
	log          *zap.Logger
}

func NewAdmissionService(
	repo admission.Repository,
	referralRepo referral.Repository,
	bundles BundleCatalog,
	collector *metrics.Collector,
	auditSvc *AuditService,
	log *zap.Logger,
) *AdmissionService {
	return &AdmissionService{repo: repo, referralRepo: referralRepo, bundles: bundles, metrics: collector, auditSvc: auditSvc, log: log}
}

// CreateAdmission opens the episode. The referral must be approved and
// UTN-validated, and the enrollee must not already be admitted anywhere.
// Bundle auto-match by ICD-10 prefix is best effort; no match is fine.
func (s *AdmissionService) CreateAdmission(ctx context.Context, cmd *admission.CreateAdmissionCommand, actor domain.Actor) (*admission.Admission, error) {
	if err := validateCreateAdmission(cmd); err != nil {
		return nil, err
	}

	r, err := s.referralRepo.GetByID(ctx, cmd.ReferralID)
	if err != nil {
		return nil, err
	}
	if !r.AdmissionReady() {
		return nil, &NotEligibleError{
			Reason: admissionBlockReason(r),
			Err:    admission.ErrNotEligible,
		}
	}

	var out *admission.Admission
	err = s.repo.Atomic(ctx, func(repo admission.Repository) error {
		if _, err := repo.GetByReferral(ctx, cmd.ReferralID); err == nil {
			return admission.ErrReferralAlreadyAdmitted
		} else if !errors.Is(err, admission.ErrAdmissionNotFound) {
			return err
		}

		active, err := repo.HasActiveForEnrollee(ctx, r.EnrolleeID)
		if err != nil {
			return fmt.Errorf("checking active admissions: %w", err)
		}
		if active {
			return admission.ErrActiveAdmissionExists
		}

		admittedAt := cmd.AdmittedAt
		if admittedAt.IsZero() {
			admittedAt = time.Now()
		}

		a := &admission.Admission{
			ReferralID:              r.ID,
			EnrolleeID:              r.EnrolleeID,
			FacilityID:              r.ReceivingFacilityID,
			Status:                  admission.StatusActive,
			PrincipalDiagnosisICD10: strings.ToUpper(strings.TrimSpace(cmd.PrincipalDiagnosisICD10)),
			Ward:                    cmd.Ward,
			AdmittedAt:              admittedAt,
			CreatedBy:               cmd.CreatedBy,
		}

		if b, err := s.bundles.MatchICD10(ctx, a.PrincipalDiagnosisICD10); err == nil && b != nil {
			a.BundleCode = b.Code
		}

		if err := repo.Create(ctx, a); err != nil {
			return fmt.Errorf("creating admission: %w", err)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AdmissionsTotal.WithLabelValues(string(admission.StatusActive)).Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "create", ResourceType: "admission", ResourceID: out.ID.String(),
		IPAddress: actor.IPAddress,
	})

	s.log.Info("admission created",
		logger.AdmissionID(out.ID),
		logger.ReferralID(r.ID),
		zap.String("bundle_code", out.BundleCode),
	)

	return out, nil
}

// DischargePatient performs the one-way discharge transition.
func (s *AdmissionService) DischargePatient(ctx context.Context, id uuid.UUID, cmd *admission.DischargeCommand, actor domain.Actor) (*admission.Admission, error) {
	if cmd.WardDays < 0 {
		return nil, &ValidationError{Fields: []string{"ward_days cannot be negative"}}
	}

	var out *admission.Admission
	err := s.repo.Atomic(ctx, func(repo admission.Repository) error {
		a, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := a.Discharge(cmd.WardDays, cmd.DischargeSummary); err != nil {
			return err
		}
		if err := repo.Update(ctx, a); err != nil {
			return fmt.Errorf("updating admission: %w", err)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AdmissionsTotal.WithLabelValues(string(admission.StatusDischarged)).Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "update", ResourceType: "admission", ResourceID: id.String(),
		IPAddress: actor.IPAddress,
		Field:     "status", OldValue: string(admission.StatusActive), NewValue: string(admission.StatusDischarged),
	})

	return out, nil
}

// CanAdmit answers the pre-flight eligibility question without throwing.
func (s *AdmissionService) CanAdmit(ctx context.Context, referralID uuid.UUID) (*admission.Eligibility, error) {
	r, err := s.referralRepo.GetByID(ctx, referralID)
	if err != nil {
		if errors.Is(err, referral.ErrReferralNotFound) {
			return &admission.Eligibility{Eligible: false, Reason: "referral not found"}, nil
		}
		return nil, err
	}

	if !r.AdmissionReady() {
		return &admission.Eligibility{Eligible: false, Reason: admissionBlockReason(r)}, nil
	}

	if _, err := s.repo.GetByReferral(ctx, referralID); err == nil {
		return &admission.Eligibility{Eligible: false, Reason: "referral already has an admission"}, nil
	} else if !errors.Is(err, admission.ErrAdmissionNotFound) {
		return nil, err
	}

	active, err := s.repo.HasActiveForEnrollee(ctx, r.EnrolleeID)
	if err != nil {
		return nil, err
	}
	if active {
		return &admission.Eligibility{Eligible: false, Reason: "enrollee already has an active admission"}, nil
	}

	return &admission.Eligibility{Eligible: true}, nil
}

func (s *AdmissionService) GetAdmission(ctx context.Context, id uuid.UUID, actor domain.Actor) (*admission.Admission, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "read", ResourceType: "admission", ResourceID: id.String(),
		IPAddress: actor.IPAddress,
	})

	return a, nil
}

func admissionBlockReason(r *referral.Referral) string {
	switch {
	case r.Status != referral.StatusApproved:
		return "referral is not approved"
	case !r.UTNValidated:
		return "referral UTN has not been validated"
	default:
		return ""
	}
}

func validateCreateAdmission(cmd *admission.CreateAdmissionCommand) error {
	var errs []string

	if cmd.ReferralID == uuid.Nil {
		errs = append(errs, "referral_id is required")
	}
	if strings.TrimSpace(cmd.PrincipalDiagnosisICD10) == "" {
		errs = append(errs, "principal_diagnosis_icd10 is required")
	}
	if !cmd.AdmittedAt.IsZero() && cmd.AdmittedAt.After(time.Now()) {
		errs = append(errs, "admitted_at cannot be in the future")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
