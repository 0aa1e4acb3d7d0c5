package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain"
	"github.com/santerahq/claimsgate/internal/domain/claim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type workflowTestEnv struct {
	svc  *WorkflowService
	repo *fakeClaimRepo
}

func newWorkflowTestEnv() *workflowTestEnv {
	repo := newFakeClaimRepo()
	return &workflowTestEnv{
		svc:  NewWorkflowService(repo, newTestCollector(), newTestAuditService(), zap.NewNop()),
		repo: repo,
	}
}

// seedClaim stores a claim with a complete header in the given status and
// attaches the lines, all directly through the repository.
func (env *workflowTestEnv) seedClaim(t *testing.T, status claim.ClaimStatus, lines ...claim.ClaimLine) *claim.Claim {
	t.Helper()
	ctx := context.Background()
	c := &claim.Claim{
		AdmissionID: uuid.New(),
		ReferralID:  uuid.New(),
		FacilityID:  uuid.New(),
		EnrolleeID:  uuid.New(),
		Status:      status,
		CreatedBy:   uuid.New(),
	}
	require.NoError(t, env.repo.Create(ctx, c))
	for i := range lines {
		lines[i].ClaimID = c.ID
		require.NoError(t, env.repo.AddLine(ctx, &lines[i]))
	}
	return c
}

func signedOffLine(serviceType claim.ServiceType, total int64) claim.ClaimLine {
	return claim.ClaimLine{
		TariffType:          claim.TariffFFS,
		ReportingType:       claim.ReportingFFSStandalone,
		ServiceType:         serviceType,
		TariffCode:          "NHIS-FFS-014",
		Quantity:            1,
		UnitPrice:           total,
		LineTotal:           total,
		DoctorValidated:     true,
		PharmacistValidated: true,
	}
}

func actorWith(role domain.Role) domain.Actor {
	return domain.Actor{UserID: uuid.New(), Role: role, IPAddress: "10.0.0.3"}
}

func TestSubmitClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("only facility officers submit", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusDraft, signedOffLine(claim.ServiceProcedure, 10_000))

		_, err := env.svc.SubmitClaim(ctx, c.ID, actorWith(domain.RoleDoctor))
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("lands in the doctor's queue with both steps audited", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusDraft,
			signedOffLine(claim.ServiceProcedure, 90_000),
			signedOffLine(claim.ServiceInvestigation, 10_000),
		)

		out, err := env.svc.SubmitClaim(ctx, c.ID, actorWith(domain.RoleFacilityOfficer))
		require.NoError(t, err)

		assert.Equal(t, claim.StatusDoctorReview, out.Status)
		assert.NotNil(t, out.SubmittedAt)
		assert.Equal(t, int64(100_000), out.TotalClaimed)

		trail := env.repo.auditTrail()
		require.Len(t, trail, 2)
		assert.Equal(t, string(claim.StatusDraft), trail[0].OldValue)
		assert.Equal(t, string(claim.StatusSubmitted), trail[0].NewValue)
		assert.Equal(t, string(claim.StatusSubmitted), trail[1].OldValue)
		assert.Equal(t, string(claim.StatusDoctorReview), trail[1].NewValue)
		assert.Equal(t, domain.ActionStatusTransition, trail[0].Action)
	})

	t.Run("empty claim cannot be submitted", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusDraft)

		_, err := env.svc.SubmitClaim(ctx, c.ID, actorWith(domain.RoleFacilityOfficer))
		assert.ErrorIs(t, err, claim.ErrIncompleteClaim)
		assert.Empty(t, env.repo.auditTrail())
	})

	t.Run("unknown claim", func(t *testing.T) {
		env := newWorkflowTestEnv()
		_, err := env.svc.SubmitClaim(ctx, uuid.New(), actorWith(domain.RoleFacilityOfficer))
		assert.ErrorIs(t, err, claim.ErrClaimNotFound)
	})
}

func TestDoctorStage(t *testing.T) {
	ctx := context.Background()

	t.Run("routes past the pharmacist when no medication is billed", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusDoctorReview, signedOffLine(claim.ServiceProcedure, 50_000))

		out, err := env.svc.DoctorApprove(ctx, c.ID, "clinically consistent", actorWith(domain.RoleDoctor))
		require.NoError(t, err)
		assert.Equal(t, claim.StatusClaimReview, out.Status)
	})

	t.Run("medication routes through the pharmacist", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusDoctorReview, signedOffLine(claim.ServiceMedication, 6_000))

		out, err := env.svc.DoctorApprove(ctx, c.ID, "clinically consistent", actorWith(domain.RoleDoctor))
		require.NoError(t, err)
		assert.Equal(t, claim.StatusPharmacistReview, out.Status)

		out, err = env.svc.PharmacistApprove(ctx, c.ID, "dosing verified", actorWith(domain.RolePharmacist))
		require.NoError(t, err)
		assert.Equal(t, claim.StatusClaimReview, out.Status)
	})

	t.Run("unvalidated items block the exit", func(t *testing.T) {
		env := newWorkflowTestEnv()
		l := signedOffLine(claim.ServiceProcedure, 50_000)
		l.DoctorValidated = false
		c := env.seedClaim(t, claim.StatusDoctorReview, l)

		_, err := env.svc.DoctorApprove(ctx, c.ID, "looks fine", actorWith(domain.RoleDoctor))
		var ue *claim.UnvalidatedItemsError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, 1, ue.Treatments)

		stored, err := env.repo.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, claim.StatusDoctorReview, stored.Status)
	})

	t.Run("rejection needs a comment", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusDoctorReview, signedOffLine(claim.ServiceProcedure, 50_000))

		_, err := env.svc.DoctorReject(ctx, c.ID, "  ", actorWith(domain.RoleDoctor))
		assert.ErrorIs(t, err, claim.ErrCommentRequired)

		out, err := env.svc.DoctorReject(ctx, c.ID, "services not rendered", actorWith(domain.RoleDoctor))
		require.NoError(t, err)
		assert.Equal(t, claim.StatusDoctorRejected, out.Status)
	})

	t.Run("only doctors act in this stage", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusDoctorReview, signedOffLine(claim.ServiceProcedure, 50_000))

		_, err := env.svc.DoctorApprove(ctx, c.ID, "ok", actorWith(domain.RolePharmacist))
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestClaimsTeamStages(t *testing.T) {
	ctx := context.Background()

	t.Run("review, confirm, approve, pay", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusClaimReview,
			signedOffLine(claim.ServiceProcedure, 90_000),
			signedOffLine(claim.ServiceMedication, 10_000),
		)

		out, err := env.svc.ReviewClaim(ctx, c.ID, "tariffs verified", actorWith(domain.RoleClaimsReviewer))
		require.NoError(t, err)
		assert.Equal(t, claim.StatusClaimReviewed, out.Status)

		out, err = env.svc.ConfirmClaim(ctx, c.ID, "confirmed", actorWith(domain.RoleClaimsConfirmer))
		require.NoError(t, err)
		assert.Equal(t, claim.StatusClaimConfirmed, out.Status)

		out, err = env.svc.ApproveClaim(ctx, c.ID, "approved for payment", true, actorWith(domain.RoleClaimsApprover))
		require.NoError(t, err)
		assert.Equal(t, claim.StatusPaid, out.Status)
		assert.True(t, out.PaymentAuthorized)
		assert.Equal(t, int64(100_000), out.TotalApproved)
		assert.Equal(t, int64(100_000), out.TotalPaid)
		assert.NotNil(t, out.PaidAt)
		assert.Len(t, env.repo.auditTrail(), 4)
	})

	t.Run("approval without payment stops short of paid", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusClaimConfirmed, signedOffLine(claim.ServiceProcedure, 70_000))

		out, err := env.svc.ApproveClaim(ctx, c.ID, "approved", false, actorWith(domain.RoleClaimsApprover))
		require.NoError(t, err)
		assert.Equal(t, claim.StatusClaimApproved, out.Status)
		assert.False(t, out.PaymentAuthorized)
		assert.Equal(t, int64(0), out.TotalPaid)
		assert.Nil(t, out.PaidAt)
	})

	t.Run("payout excludes lines that failed review", func(t *testing.T) {
		env := newWorkflowTestEnv()
		rejected := signedOffLine(claim.ServiceProcedure, 40_000)
		rejected.DoctorValidated = false
		noPharmSignOff := signedOffLine(claim.ServiceMedication, 20_000)
		noPharmSignOff.PharmacistValidated = false
		c := env.seedClaim(t, claim.StatusClaimConfirmed,
			signedOffLine(claim.ServiceProcedure, 30_000),
			rejected,
			noPharmSignOff,
		)

		out, err := env.svc.ApproveClaim(ctx, c.ID, "partial approval", false, actorWith(domain.RoleClaimsApprover))
		require.NoError(t, err)
		assert.Equal(t, int64(90_000), out.TotalClaimed)
		assert.Equal(t, int64(30_000), out.TotalApproved)
	})

	t.Run("stage roles do not cross over", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusClaimReview, signedOffLine(claim.ServiceProcedure, 10_000))

		_, err := env.svc.ReviewClaim(ctx, c.ID, "ok", actorWith(domain.RoleClaimsConfirmer))
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = env.svc.ConfirmClaim(ctx, c.ID, "ok", actorWith(domain.RoleClaimsReviewer))
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("out-of-order action", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusClaimReview, signedOffLine(claim.ServiceProcedure, 10_000))

		_, err := env.svc.ConfirmClaim(ctx, c.ID, "ok", actorWith(domain.RoleClaimsConfirmer))
		var te *claim.TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, claim.ActionConfirm, te.Action)
		assert.Equal(t, claim.StatusClaimReview, te.Current)
	})
}

func TestRejectClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("the stage owner rejects", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusClaimReviewed, signedOffLine(claim.ServiceProcedure, 10_000))

		_, err := env.svc.RejectClaim(ctx, c.ID, "tariff mismatch", actorWith(domain.RoleClaimsReviewer))
		assert.ErrorIs(t, err, ErrForbidden)

		out, err := env.svc.RejectClaim(ctx, c.ID, "tariff mismatch", actorWith(domain.RoleClaimsConfirmer))
		require.NoError(t, err)
		assert.Equal(t, claim.StatusClaimRejected, out.Status)
	})

	t.Run("admins reject at any stage", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusClaimConfirmed, signedOffLine(claim.ServiceProcedure, 10_000))

		out, err := env.svc.RejectClaim(ctx, c.ID, "flagged by audit", actorWith(domain.RoleAdmin))
		require.NoError(t, err)
		assert.Equal(t, claim.StatusClaimRejected, out.Status)
	})

	t.Run("rejection outside the claims-team stages", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusDraft, signedOffLine(claim.ServiceProcedure, 10_000))

		_, err := env.svc.RejectClaim(ctx, c.ID, "nope", actorWith(domain.RoleClaimsReviewer))
		var te *claim.TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, claim.StatusDraft, te.Current)
	})

	t.Run("rejection needs a comment", func(t *testing.T) {
		env := newWorkflowTestEnv()
		c := env.seedClaim(t, claim.StatusClaimReview, signedOffLine(claim.ServiceProcedure, 10_000))

		_, err := env.svc.RejectClaim(ctx, c.ID, "", actorWith(domain.RoleClaimsReviewer))
		assert.ErrorIs(t, err, claim.ErrCommentRequired)
	})
}
