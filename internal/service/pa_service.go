package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/config"
	"github.com/santerahq/claimsgate/internal/domain"
	"github.com/santerahq/claimsgate/internal/domain/admission"
	"github.com/santerahq/claimsgate/internal/domain/claim"
	"github.com/santerahq/claimsgate/internal/domain/pacode"
	"github.com/santerahq/claimsgate/internal/domain/referral"
	"github.com/santerahq/claimsgate/pkg/logger"
	"github.com/santerahq/claimsgate/pkg/metrics"
	"go.uber.org/zap"
)

type PAService struct {
	repo          pacode.Repository
	referralRepo  referral.Repository
	admissionRepo admission.Repository
	claimRepo     claim.Repository
	policy        config.PolicyConfig
	metrics       *metrics.Collector
	auditSvc      *AuditService
	log           *zap.Logger
}

func NewPAService(
	repo pacode.Repository,
	referralRepo referral.Repository,
	admissionRepo admission.Repository,
	claimRepo claim.Repository,
	policy config.PolicyConfig,
	collector *metrics.Collector,
	auditSvc *AuditService,
	log *zap.Logger,
) *PAService {
	return &PAService{
		repo:          repo,
		referralRepo:  referralRepo,
		admissionRepo: admissionRepo,
		claimRepo:     claimRepo,
		policy:        policy,
		metrics:       collector,
		auditSvc:      auditSvc,
		log:           log,
	}
}

// GeneratePACode issues a pending code against an approved referral. At
// most one approved BUNDLE PA may exist per episode; a second request is a
// policy violation, not a validation slip.
func (s *PAService) GeneratePACode(ctx context.Context, cmd *pacode.GeneratePACommand, actor domain.Actor) (*pacode.PACode, error) {
	if err := validateGeneratePA(cmd); err != nil {
		return nil, err
	}

	r, err := s.referralRepo.GetByID(ctx, cmd.ReferralID)
	if err != nil {
		return nil, err
	}
	if r.Status != referral.StatusApproved {
		return nil, &PolicyViolation{
			Code:    CodeReferralNotApproved,
			Message: "PA codes can only be issued against an approved referral",
		}
	}

	validityDays := cmd.ValidityDays
	if validityDays <= 0 {
		validityDays = s.policy.PAValidityDays
	}
	maxUsage := cmd.MaxUsage
	if maxUsage <= 0 {
		maxUsage = s.policy.PADefaultMaxUsage
	}

	var out *pacode.PACode
	err = s.repo.Atomic(ctx, func(repo pacode.Repository) error {
		if cmd.Type == pacode.TypeBundle {
			exists, err := repo.HasApprovedBundle(ctx, cmd.ReferralID, nil)
			if err != nil {
				return fmt.Errorf("checking bundle PA uniqueness: %w", err)
			}
			if exists {
				return &PolicyViolation{
					Code:    CodeDuplicateBundlePA,
					Message: "an approved BUNDLE PA already exists for this episode",
				}
			}
		}

		now := time.Now()
		p := &pacode.PACode{
			Code:           newPACodeValue(),
			Type:           cmd.Type,
			Status:         pacode.StatusPending,
			ReferralID:     cmd.ReferralID,
			AdmissionID:    cmd.AdmissionID,
			FacilityID:     cmd.FacilityID,
			DiagnosisICD10: strings.ToUpper(strings.TrimSpace(cmd.DiagnosisICD10)),
			ValidFrom:      now,
			ValidUntil:     now.AddDate(0, 0, validityDays),
			MaxUsage:       maxUsage,
			Sequence:       1,
			CreatedBy:      cmd.CreatedBy,
		}

		if cmd.AdmissionID != nil {
			seq, err := repo.MaxSequence(ctx, *cmd.AdmissionID)
			if err != nil {
				return fmt.Errorf("reading PA sequence: %w", err)
			}
			p.Sequence = seq + 1
		}

		if err := repo.Create(ctx, p); err != nil {
			return fmt.Errorf("creating PA code: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PACodesIssuedTotal.WithLabelValues(string(out.Type)).Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "create", ResourceType: "pa_code", ResourceID: out.ID.String(),
		IPAddress: actor.IPAddress,
	})

	s.log.Info("PA code generated",
		logger.PACodeID(out.ID),
		zap.String("type", string(out.Type)),
	)

	return out, nil
}

// ApprovePACode sets the terminal review status. Approving a BUNDLE code
// re-checks episode uniqueness inside the transaction: two pending bundle
// codes must not both make it through.
func (s *PAService) ApprovePACode(ctx context.Context, id uuid.UUID, actor domain.Actor) (*pacode.PACode, error) {
	var out *pacode.PACode
	err := s.repo.Atomic(ctx, func(repo pacode.Repository) error {
		p, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if p.Type == pacode.TypeBundle {
			exists, err := repo.HasApprovedBundle(ctx, p.ReferralID, &p.ID)
			if err != nil {
				return fmt.Errorf("checking bundle PA uniqueness: %w", err)
			}
			if exists {
				return &PolicyViolation{
					Code:    CodeDuplicateBundlePA,
					Message: "an approved BUNDLE PA already exists for this episode",
				}
			}
		}

		if err := p.Approve(actor.UserID); err != nil {
			return err
		}
		if err := repo.Update(ctx, p); err != nil {
			return fmt.Errorf("updating PA code: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	// An approved BUNDLE PA becomes the episode's principal PA.
	if out.Type == pacode.TypeBundle && out.AdmissionID != nil {
		if err := s.setPrincipalPA(ctx, *out.AdmissionID, out.ID); err != nil {
			s.log.Error("failed to set principal PA on admission", zap.Error(err))
		}
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "update", ResourceType: "pa_code", ResourceID: id.String(),
		IPAddress: actor.IPAddress,
		Field:     "status", OldValue: string(pacode.StatusPending), NewValue: string(pacode.StatusApproved),
	})

	return out, nil
}

func (s *PAService) setPrincipalPA(ctx context.Context, admissionID, paID uuid.UUID) error {
	return s.admissionRepo.Atomic(ctx, func(repo admission.Repository) error {
		a, err := repo.GetByID(ctx, admissionID)
		if err != nil {
			return err
		}
		if a.PrincipalPAID != nil {
			return nil
		}
		a.PrincipalPAID = &paID
		return repo.Update(ctx, a)
	})
}

func (s *PAService) RejectPACode(ctx context.Context, id uuid.UUID, reason string, actor domain.Actor) (*pacode.PACode, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Fields: []string{"reason is required"}}
	}

	var out *pacode.PACode
	err := s.repo.Atomic(ctx, func(repo pacode.Repository) error {
		p, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := p.Reject(actor.UserID, reason); err != nil {
			return err
		}
		if err := repo.Update(ctx, p); err != nil {
			return fmt.Errorf("updating PA code: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "update", ResourceType: "pa_code", ResourceID: id.String(),
		IPAddress: actor.IPAddress,
		Field:     "status", OldValue: string(pacode.StatusPending), NewValue: string(pacode.StatusRejected),
		Comment: reason,
	})

	return out, nil
}

// MarkPACodeUsed consumes one usage against a claim reference.
func (s *PAService) MarkPACodeUsed(ctx context.Context, id uuid.UUID, claimID uuid.UUID, actor domain.Actor) (*pacode.PACode, error) {
	var out *pacode.PACode
	err := s.repo.Atomic(ctx, func(repo pacode.Repository) error {
		p, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := p.Use(); err != nil {
			if err == pacode.ErrUsageLimitExceeded || err == pacode.ErrPACodeExpired {
				return &PolicyViolation{Code: CodeUsageLimit, Message: err.Error(), Err: err}
			}
			return err
		}
		if err := repo.Update(ctx, p); err != nil {
			return fmt.Errorf("updating PA code: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "update", ResourceType: "pa_code", ResourceID: id.String(),
		IPAddress: actor.IPAddress,
		Field:     "usage_count", NewValue: fmt.Sprintf("%d/%d", out.UsageCount, out.MaxUsage),
		Comment: "used by claim " + claimID.String(),
	})

	return out, nil
}

func (s *PAService) CancelPACode(ctx context.Context, id uuid.UUID, actor domain.Actor) (*pacode.PACode, error) {
	var out *pacode.PACode
	err := s.repo.Atomic(ctx, func(repo pacode.Repository) error {
		p, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := p.Cancel(); err != nil {
			return err
		}
		if err := repo.Update(ctx, p); err != nil {
			return fmt.Errorf("updating PA code: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "update", ResourceType: "pa_code", ResourceID: id.String(),
		IPAddress: actor.IPAddress,
		Field:     "status", NewValue: string(pacode.StatusCancelled),
	})

	return out, nil
}

// VerifyPACode is a pure read. codeOrUTN accepts either the PA code value
// or a referral UTN; the UTN form answers for the episode's bundle PA.
func (s *PAService) VerifyPACode(ctx context.Context, codeOrUTN string) (*pacode.Verification, error) {
	codeOrUTN = strings.TrimSpace(codeOrUTN)
	if codeOrUTN == "" {
		return nil, &ValidationError{Fields: []string{"code is required"}}
	}

	p, err := s.repo.GetByCode(ctx, codeOrUTN)
	if err == nil {
		return p.Verification(), nil
	}
	if !errors.Is(err, pacode.ErrPACodeNotFound) {
		return nil, err
	}

	r, err := s.referralRepo.GetByUTN(ctx, codeOrUTN)
	if err != nil {
		if errors.Is(err, referral.ErrReferralNotFound) {
			return nil, pacode.ErrPACodeNotFound
		}
		return nil, err
	}
	codes, err := s.repo.ListByReferral(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range codes {
		if p.Type == pacode.TypeBundle && (p.Status == pacode.StatusApproved || p.Status == pacode.StatusUsed) {
			return p.Verification(), nil
		}
	}
	return nil, pacode.ErrPACodeNotFound
}

// HandleNewDiagnosis records a diagnosis surfacing during admission.
// Complications trigger PA automation: a top-up PA is generated against
// the admission (sequence after the latest, chained to the principal PA)
// and treatment lines already tagged with the diagnosis are relinked to
// it, which keeps FFS lines off the bundle PA.
func (s *PAService) HandleNewDiagnosis(ctx context.Context, claimID uuid.UUID, cmd *claim.AddDiagnosisCommand, actor domain.Actor) (*claim.ClaimDiagnosis, *pacode.PACode, error) {
	icd10 := strings.ToUpper(strings.TrimSpace(cmd.ICD10Code))
	if icd10 == "" {
		return nil, nil, &ValidationError{Fields: []string{"icd10_code is required"}}
	}

	c, err := s.claimRepo.GetByID(ctx, claimID)
	if err != nil {
		return nil, nil, err
	}

	dtype := claim.DiagnosisSecondary
	if cmd.IsComplication {
		dtype = claim.DiagnosisComplication
	}

	d := &claim.ClaimDiagnosis{
		ClaimID:   c.ID,
		ICD10Code: icd10,
		Type:      dtype,
	}

	var newPA *pacode.PACode
	if cmd.IsComplication {
		a, err := s.admissionRepo.GetByID(ctx, c.AdmissionID)
		switch {
		case err == nil:
			newPA, err = s.generateComplicationPA(ctx, c, a, icd10, cmd.AddedBy)
			if err != nil {
				return nil, nil, err
			}
			d.PACodeID = &newPA.ID
		case errors.Is(err, admission.ErrAdmissionNotFound):
			// No episode record yet; the diagnosis is recorded without
			// automation.
		default:
			return nil, nil, fmt.Errorf("loading admission: %w", err)
		}
	}

	err = s.claimRepo.Atomic(ctx, func(repo claim.Repository) error {
		if err := repo.AddDiagnosis(ctx, d); err != nil {
			return fmt.Errorf("adding diagnosis: %w", err)
		}
		if newPA == nil {
			return nil
		}
		lines, err := repo.LinesByICD10(ctx, c.ID, icd10)
		if err != nil {
			return fmt.Errorf("loading lines for diagnosis: %w", err)
		}
		for _, l := range lines {
			if l.TariffType != claim.TariffFFS {
				continue
			}
			l.PACodeID = &newPA.ID
			l.ReportingType = claim.ReportingFFSTopUp
			if err := repo.UpdateLine(ctx, l); err != nil {
				return fmt.Errorf("relinking line %s: %w", l.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		// The auto PA lives in its own aggregate and has already
		// committed; the compensating cancel keeps the episode free of
		// approved codes no diagnosis references.
		if newPA != nil {
			s.voidAutoPA(ctx, newPA.ID)
		}
		return nil, nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "create", ResourceType: "claim_diagnosis", ResourceID: d.ID.String(),
		IPAddress: actor.IPAddress,
		NewValue:  icd10,
	})

	if newPA != nil {
		s.log.Info("complication PA auto-generated",
			logger.ClaimID(c.ID),
			logger.PACodeID(newPA.ID),
			zap.String("icd10", icd10),
		)
	}

	return d, newPA, nil
}

func (s *PAService) generateComplicationPA(ctx context.Context, c *claim.Claim, a *admission.Admission, icd10 string, createdBy uuid.UUID) (*pacode.PACode, error) {
	// Auto codes cover complication care inside the follow-up window,
	// not the standard PA validity period.
	validityDays := s.policy.FollowUpWindowDays
	if validityDays <= 0 {
		validityDays = s.policy.PAValidityDays
	}

	var out *pacode.PACode
	err := s.repo.Atomic(ctx, func(repo pacode.Repository) error {
		seq, err := repo.MaxSequence(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("reading PA sequence: %w", err)
		}

		now := time.Now()
		p := &pacode.PACode{
			Code:           newPACodeValue(),
			Type:           pacode.TypeFFSTopUp,
			Status:         pacode.StatusApproved,
			ReferralID:     c.ReferralID,
			AdmissionID:    &a.ID,
			FacilityID:     c.FacilityID,
			ParentPAID:     a.PrincipalPAID,
			Sequence:       seq + 1,
			DiagnosisICD10: icd10,
			ValidFrom:      now,
			ValidUntil:     now.AddDate(0, 0, validityDays),
			MaxUsage:       s.policy.PADefaultMaxUsage,
			AutoGenerated:  true,
			CreatedBy:      createdBy,
		}
		if err := repo.Create(ctx, p); err != nil {
			return fmt.Errorf("creating complication PA: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PACodesIssuedTotal.WithLabelValues(string(pacode.TypeFFSTopUp)).Inc()
	return out, nil
}

// voidAutoPA cancels an auto-generated PA whose diagnosis write did not
// commit. Best effort; a failed cancel is logged for manual follow-up.
func (s *PAService) voidAutoPA(ctx context.Context, id uuid.UUID) {
	err := s.repo.Atomic(ctx, func(repo pacode.Repository) error {
		p, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := p.Cancel(); err != nil {
			return err
		}
		return repo.Update(ctx, p)
	})
	if err != nil {
		s.log.Error("failed to void auto-generated PA", logger.PACodeID(id), zap.Error(err))
	}
}

func validateGeneratePA(cmd *pacode.GeneratePACommand) error {
	var errs []string

	if cmd.ReferralID == uuid.Nil {
		errs = append(errs, "referral_id is required")
	}
	if cmd.FacilityID == uuid.Nil {
		errs = append(errs, "facility_id is required")
	}
	if !cmd.Type.IsValid() {
		errs = append(errs, "type must be BUNDLE or FFS_TOP_UP")
	}
	if cmd.MaxUsage < 0 {
		errs = append(errs, "max_usage cannot be negative")
	}
	if cmd.ValidityDays < 0 {
		errs = append(errs, "validity_days cannot be negative")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
