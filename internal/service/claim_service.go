package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain"
	"github.com/santerahq/claimsgate/internal/domain/admission"
	"github.com/santerahq/claimsgate/internal/domain/claim"
	"github.com/santerahq/claimsgate/internal/domain/pacode"
	"github.com/santerahq/claimsgate/pkg/metrics"
	"go.uber.org/zap"
)

type ClaimService struct {
	repo          claim.Repository
	admissionRepo admission.Repository
	paRepo        pacode.Repository
	tariffs       TariffCatalog
	metrics       *metrics.Collector
	auditSvc      *AuditService
	log           *zap.Logger
}

func NewClaimService(
	repo claim.Repository,
	admissionRepo admission.Repository,
	paRepo pacode.Repository,
	tariffs TariffCatalog,
	collector *metrics.Collector,
	auditSvc *AuditService,
	log *zap.Logger,
) *ClaimService {
	return &ClaimService{
		repo:          repo,
		admissionRepo: admissionRepo,
		paRepo:        paRepo,
		tariffs:       tariffs,
		metrics:       collector,
		auditSvc:      auditSvc,
		log:           log,
	}
}

// CreateClaim opens a DRAFT claim against an active admission.
func (s *ClaimService) CreateClaim(ctx context.Context, cmd *claim.CreateClaimCommand, actor domain.Actor) (*claim.Claim, error) {
	if cmd.AdmissionID == uuid.Nil {
		return nil, &ValidationError{Fields: []string{"admission_id is required"}}
	}

	a, err := s.admissionRepo.GetByID(ctx, cmd.AdmissionID)
	if err != nil {
		return nil, err
	}

	c := &claim.Claim{
		AdmissionID: a.ID,
		ReferralID:  a.ReferralID,
		FacilityID:  a.FacilityID,
		EnrolleeID:  a.EnrolleeID,
		Status:      claim.StatusDraft,
		CreatedBy:   cmd.CreatedBy,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		s.log.Error("failed to create claim", zap.Error(err))
		return nil, fmt.Errorf("creating claim: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "create", ResourceType: "claim", ResourceID: c.ID.String(),
		IPAddress: actor.IPAddress,
	})

	return c, nil
}

// AddBundleLine attaches the single fixed-price bundle line. The PA must
// be of type BUNDLE and the claim must not already carry a bundle line;
// the line check re-reads the claim inside the transaction.
func (s *ClaimService) AddBundleLine(ctx context.Context, claimID, paCodeID uuid.UUID, cmd *claim.AddLineCommand, actor domain.Actor) (*claim.Claim, error) {
	if err := validateAddLine(cmd); err != nil {
		return nil, err
	}

	p, err := s.paRepo.GetByID(ctx, paCodeID)
	if err != nil {
		return nil, err
	}
	if p.Type != pacode.TypeBundle {
		return nil, &PolicyViolation{
			Code:    CodeTypeMismatch,
			Message: "bundle lines require a PA code of type BUNDLE",
			Err:     claim.ErrBundlePARequired,
		}
	}

	tariff, err := s.tariffs.Lookup(ctx, cmd.TariffCode)
	if err != nil {
		return nil, fmt.Errorf("looking up tariff %s: %w", cmd.TariffCode, err)
	}

	var out *claim.Claim
	err = s.repo.Atomic(ctx, func(repo claim.Repository) error {
		c, err := repo.GetByID(ctx, claimID)
		if err != nil {
			return err
		}
		if c.Status != claim.StatusDraft {
			return claim.ErrNotDraft
		}
		if c.BundleLine() != nil {
			return &PolicyViolation{
				Code:    CodeDuplicateBundle,
				Message: "claim already has a bundle line",
				Err:     claim.ErrDuplicateBundleLine,
			}
		}

		l := newLine(c.ID, claim.TariffBundle, claim.ReportingBundle, &p.ID, cmd, tariff.UnitPrice)
		if err := repo.AddLine(ctx, l); err != nil {
			return fmt.Errorf("adding bundle line: %w", err)
		}

		// FFS lines added before the bundle were tagged standalone; the
		// bundle's arrival makes them top-ups.
		for i := range c.Lines {
			ln := &c.Lines[i]
			if ln.TariffType != claim.TariffFFS || ln.ReportingType != claim.ReportingFFSStandalone {
				continue
			}
			ln.ReportingType = claim.ReportingFFSTopUp
			if err := repo.UpdateLine(ctx, ln); err != nil {
				return fmt.Errorf("retagging line %s: %w", ln.ID, err)
			}
		}

		c.Lines = append(c.Lines, *l)
		c.RecomputeTotals()
		if err := repo.Update(ctx, c); err != nil {
			return fmt.Errorf("updating claim totals: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "update", ResourceType: "claim", ResourceID: claimID.String(),
		IPAddress: actor.IPAddress,
		Field:     "lines", NewValue: "bundle line " + cmd.TariffCode,
	})

	return out, nil
}

// AddFFSLine attaches an itemized line. The PA must be FFS_TOP_UP and must
// differ from the bundle line's PA. The reporting type records whether the
// line tops up a bundle or stands alone.
func (s *ClaimService) AddFFSLine(ctx context.Context, claimID, paCodeID uuid.UUID, cmd *claim.AddLineCommand, actor domain.Actor) (*claim.Claim, error) {
	if err := validateAddLine(cmd); err != nil {
		return nil, err
	}

	p, err := s.paRepo.GetByID(ctx, paCodeID)
	if err != nil {
		return nil, err
	}
	if p.Type != pacode.TypeFFSTopUp {
		return nil, &PolicyViolation{
			Code:    CodeTypeMismatch,
			Message: "FFS lines require a PA code of type FFS_TOP_UP",
			Err:     claim.ErrTopUpPARequired,
		}
	}

	tariff, err := s.tariffs.Lookup(ctx, cmd.TariffCode)
	if err != nil {
		return nil, fmt.Errorf("looking up tariff %s: %w", cmd.TariffCode, err)
	}

	var out *claim.Claim
	err = s.repo.Atomic(ctx, func(repo claim.Repository) error {
		c, err := repo.GetByID(ctx, claimID)
		if err != nil {
			return err
		}
		if c.Status != claim.StatusDraft {
			return claim.ErrNotDraft
		}

		reporting := claim.ReportingFFSStandalone
		if bundle := c.BundleLine(); bundle != nil {
			if bundle.PACodeID != nil && *bundle.PACodeID == p.ID {
				return &PolicyViolation{
					Code:    CodeSharedPA,
					Message: "FFS line cannot reuse the bundle line's PA code",
					Err:     claim.ErrSharedPA,
				}
			}
			reporting = claim.ReportingFFSTopUp
		}

		l := newLine(c.ID, claim.TariffFFS, reporting, &p.ID, cmd, tariff.UnitPrice)
		if err := repo.AddLine(ctx, l); err != nil {
			return fmt.Errorf("adding FFS line: %w", err)
		}

		c.Lines = append(c.Lines, *l)
		c.RecomputeTotals()
		if err := repo.Update(ctx, c); err != nil {
			return fmt.Errorf("updating claim totals: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "update", ResourceType: "claim", ResourceID: claimID.String(),
		IPAddress: actor.IPAddress,
		Field:     "lines", NewValue: "FFS line " + cmd.TariffCode,
	})

	return out, nil
}

// ClassifyClaim is the pure projection by tariff type. No transaction.
func (s *ClaimService) ClassifyClaim(ctx context.Context, claimID uuid.UUID) (*claim.Classification, error) {
	c, err := s.repo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	return c.Classify(), nil
}

// RunComplianceChecks re-derives the alert battery from current line and
// PA state. Pure read; alerts are advisory and never persisted.
func (s *ClaimService) RunComplianceChecks(ctx context.Context, claimID uuid.UUID) ([]claim.ComplianceAlert, error) {
	c, err := s.repo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	paTypes := make(map[uuid.UUID]pacode.PAType)
	for i := range c.Lines {
		id := c.Lines[i].PACodeID
		if id == nil {
			continue
		}
		if _, seen := paTypes[*id]; seen {
			continue
		}
		p, err := s.paRepo.GetByID(ctx, *id)
		if err != nil {
			if errors.Is(err, pacode.ErrPACodeNotFound) {
				continue
			}
			return nil, err
		}
		paTypes[p.ID] = p.Type
	}

	alerts := claim.RunChecks(c, paTypes)
	for _, a := range alerts {
		s.metrics.ComplianceAlertsTotal.WithLabelValues(string(a.Code)).Inc()
	}
	return alerts, nil
}

// ValidateLine records a per-role sign-off on one line during the matching
// review stage.
func (s *ClaimService) ValidateLine(ctx context.Context, claimID, lineID uuid.UUID, actor domain.Actor) (*claim.ClaimLine, error) {
	var out *claim.ClaimLine
	err := s.repo.Atomic(ctx, func(repo claim.Repository) error {
		c, err := repo.GetByID(ctx, claimID)
		if err != nil {
			return err
		}

		var line *claim.ClaimLine
		for i := range c.Lines {
			if c.Lines[i].ID == lineID {
				line = &c.Lines[i]
				break
			}
		}
		if line == nil {
			return claim.ErrLineNotFound
		}

		switch actor.Role {
		case domain.RoleDoctor:
			if c.Status != claim.StatusDoctorReview {
				return &claim.TransitionError{Action: "validate_line", Current: c.Status, Expected: []claim.ClaimStatus{claim.StatusDoctorReview}}
			}
			line.DoctorValidated = true
		case domain.RolePharmacist:
			if c.Status != claim.StatusPharmacistReview {
				return &claim.TransitionError{Action: "validate_line", Current: c.Status, Expected: []claim.ClaimStatus{claim.StatusPharmacistReview}}
			}
			if line.ServiceType != claim.ServiceMedication {
				return &ValidationError{Fields: []string{"pharmacists only validate medication lines"}}
			}
			line.PharmacistValidated = true
		default:
			return ErrForbidden
		}

		if err := repo.UpdateLine(ctx, line); err != nil {
			return fmt.Errorf("updating line: %w", err)
		}
		out = line
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "update", ResourceType: "claim_line", ResourceID: lineID.String(),
		IPAddress: actor.IPAddress,
		Field:     string(actor.Role) + "_validated", OldValue: "false", NewValue: "true",
	})

	return out, nil
}

// ValidateDiagnosis records the doctor's sign-off on one diagnosis.
func (s *ClaimService) ValidateDiagnosis(ctx context.Context, claimID, diagnosisID uuid.UUID, actor domain.Actor) (*claim.ClaimDiagnosis, error) {
	if actor.Role != domain.RoleDoctor {
		return nil, ErrForbidden
	}

	var out *claim.ClaimDiagnosis
	err := s.repo.Atomic(ctx, func(repo claim.Repository) error {
		c, err := repo.GetByID(ctx, claimID)
		if err != nil {
			return err
		}
		if c.Status != claim.StatusDoctorReview {
			return &claim.TransitionError{Action: "validate_diagnosis", Current: c.Status, Expected: []claim.ClaimStatus{claim.StatusDoctorReview}}
		}

		var d *claim.ClaimDiagnosis
		for i := range c.Diagnoses {
			if c.Diagnoses[i].ID == diagnosisID {
				d = &c.Diagnoses[i]
				break
			}
		}
		if d == nil {
			return claim.ErrDiagnosisNotFound
		}

		d.DoctorValidated = true
		if err := repo.UpdateDiagnosis(ctx, d); err != nil {
			return fmt.Errorf("updating diagnosis: %w", err)
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "update", ResourceType: "claim_diagnosis", ResourceID: diagnosisID.String(),
		IPAddress: actor.IPAddress,
		Field:     "doctor_validated", OldValue: "false", NewValue: "true",
	})

	return out, nil
}

func (s *ClaimService) GetClaim(ctx context.Context, id uuid.UUID, actor domain.Actor) (*claim.Claim, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.Role == domain.RoleFacilityOfficer {
		if actor.FacilityID == nil || *actor.FacilityID != c.FacilityID {
			return nil, ErrForbidden
		}
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		ActorID: actor.UserID.String(), ActorRole: string(actor.Role),
		Action: "read", ResourceType: "claim", ResourceID: id.String(),
		IPAddress: actor.IPAddress,
	})

	return c, nil
}

func (s *ClaimService) ListClaims(ctx context.Context, q *claim.ListClaimsQuery, actor domain.Actor) (*claim.PagedClaims, error) {
	if actor.Role == domain.RoleFacilityOfficer && actor.FacilityID != nil {
		q.FacilityID = actor.FacilityID
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.repo.List(ctx, q)
}

func newLine(claimID uuid.UUID, tariffType claim.TariffType, reporting claim.ReportingType, paID *uuid.UUID, cmd *claim.AddLineCommand, unitPrice int64) *claim.ClaimLine {
	return &claim.ClaimLine{
		ClaimID:       claimID,
		TariffType:    tariffType,
		ReportingType: reporting,
		ServiceType:   cmd.ServiceType,
		PACodeID:      paID,
		TariffCode:    cmd.TariffCode,
		Description:   cmd.Description,
		ICD10Code:     strings.ToUpper(strings.TrimSpace(cmd.ICD10Code)),
		Quantity:      cmd.Quantity,
		UnitPrice:     unitPrice,
		LineTotal:     unitPrice * int64(cmd.Quantity),
	}
}

func validateAddLine(cmd *claim.AddLineCommand) error {
	var errs []string

	if !cmd.ServiceType.IsValid() {
		errs = append(errs, "service_type is invalid")
	}
	if strings.TrimSpace(cmd.TariffCode) == "" {
		errs = append(errs, "tariff_code is required")
	}
	if cmd.Quantity <= 0 {
		errs = append(errs, "quantity must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
