package claim

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submittableClaim(lines ...ClaimLine) *Claim {
	return &Claim{
		AdmissionID: uuid.New(),
		ReferralID:  uuid.New(),
		FacilityID:  uuid.New(),
		EnrolleeID:  uuid.New(),
		Status:      StatusDraft,
		Lines:       lines,
	}
}

func validatedLine(serviceType ServiceType, total int64) ClaimLine {
	return ClaimLine{
		ID:                  uuid.New(),
		TariffType:          TariffFFS,
		ServiceType:         serviceType,
		LineTotal:           total,
		DoctorValidated:     true,
		PharmacistValidated: true,
	}
}

func TestApplySubmit(t *testing.T) {
	t.Run("submit requires at least one line", func(t *testing.T) {
		c := submittableClaim()

		_, err := c.Apply(ActionSubmit, "")

		assert.ErrorIs(t, err, ErrIncompleteClaim)
		assert.Equal(t, StatusDraft, c.Status)
	})

	t.Run("submit requires a complete header", func(t *testing.T) {
		c := submittableClaim(validatedLine(ServiceProcedure, 1_000))
		c.EnrolleeID = uuid.Nil

		_, err := c.Apply(ActionSubmit, "")

		assert.ErrorIs(t, err, ErrIncompleteHeader)
	})

	t.Run("submit stamps SubmittedAt and returns the prior status", func(t *testing.T) {
		c := submittableClaim(validatedLine(ServiceProcedure, 1_000))

		prior, err := c.Apply(ActionSubmit, "")

		require.NoError(t, err)
		assert.Equal(t, StatusDraft, prior)
		assert.Equal(t, StatusSubmitted, c.Status)
		require.NotNil(t, c.SubmittedAt)
	})
}

func TestApplyDoctorStage(t *testing.T) {
	t.Run("doctor approval blocked while items are unvalidated", func(t *testing.T) {
		c := submittableClaim(ClaimLine{ID: uuid.New(), TariffType: TariffFFS, ServiceType: ServiceProcedure})
		c.Status = StatusDoctorReview
		c.Diagnoses = []ClaimDiagnosis{{ID: uuid.New(), ICD10Code: "O72.1", Type: DiagnosisPrimary}}

		_, err := c.Apply(ActionDoctorApprove, "reviewed")

		var unval *UnvalidatedItemsError
		require.ErrorAs(t, err, &unval)
		assert.Equal(t, 1, unval.Diagnoses)
		assert.Equal(t, 1, unval.Treatments)
		assert.Equal(t, StatusDoctorReview, c.Status)
	})

	t.Run("claim with medication routes to pharmacist review", func(t *testing.T) {
		c := submittableClaim(validatedLine(ServiceMedication, 2_000))
		c.Status = StatusDoctorReview

		_, err := c.Apply(ActionDoctorApprove, "reviewed")

		require.NoError(t, err)
		assert.Equal(t, StatusPharmacistReview, c.Status)
	})

	t.Run("claim without medication skips pharmacist review", func(t *testing.T) {
		c := submittableClaim(validatedLine(ServiceProcedure, 2_000))
		c.Status = StatusDoctorReview

		_, err := c.Apply(ActionDoctorApprove, "reviewed")

		require.NoError(t, err)
		assert.Equal(t, StatusClaimReview, c.Status)
	})

	t.Run("rejection requires a comment", func(t *testing.T) {
		c := submittableClaim(validatedLine(ServiceProcedure, 2_000))
		c.Status = StatusDoctorReview

		_, err := c.Apply(ActionDoctorReject, "   ")

		assert.ErrorIs(t, err, ErrCommentRequired)

		_, err = c.Apply(ActionDoctorReject, "missing case notes")
		require.NoError(t, err)
		assert.Equal(t, StatusDoctorRejected, c.Status)
		assert.True(t, c.Status.IsTerminal())
	})
}

func TestApplyPharmacistStage(t *testing.T) {
	t.Run("exit blocked while medication lines lack pharmacist sign-off", func(t *testing.T) {
		line := validatedLine(ServiceMedication, 2_000)
		line.PharmacistValidated = false
		c := submittableClaim(line)
		c.Status = StatusPharmacistReview

		_, err := c.Apply(ActionPharmacistApprove, "checked")

		var unval *UnvalidatedItemsError
		require.ErrorAs(t, err, &unval)
		assert.Equal(t, 1, unval.MedicationLines)
	})

	t.Run("validated medication proceeds to claim review", func(t *testing.T) {
		c := submittableClaim(validatedLine(ServiceMedication, 2_000))
		c.Status = StatusPharmacistReview

		_, err := c.Apply(ActionPharmacistApprove, "checked")

		require.NoError(t, err)
		assert.Equal(t, StatusClaimReview, c.Status)
	})
}

func TestApplyClaimsTeamStages(t *testing.T) {
	t.Run("full pipeline through payment", func(t *testing.T) {
		c := submittableClaim(
			validatedLine(ServiceProcedure, 100_000),
			validatedLine(ServiceConsultation, 20_000),
		)
		c.Status = StatusClaimReview

		_, err := c.Apply(ActionReview, "ok")
		require.NoError(t, err)
		assert.Equal(t, StatusClaimReviewed, c.Status)

		_, err = c.Apply(ActionConfirm, "ok")
		require.NoError(t, err)
		assert.Equal(t, StatusClaimConfirmed, c.Status)

		_, err = c.Apply(ActionApprove, "ok")
		require.NoError(t, err)
		assert.Equal(t, StatusClaimApproved, c.Status)
		assert.Equal(t, int64(120_000), c.TotalApproved)

		_, err = c.Apply(ActionAuthorizePayment, "")
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, c.Status)
		assert.True(t, c.PaymentAuthorized)
		assert.Equal(t, int64(120_000), c.TotalPaid)
		require.NotNil(t, c.PaidAt)
		assert.True(t, c.Status.IsTerminal())
	})

	t.Run("approval excludes lines that failed validation", func(t *testing.T) {
		rejected := validatedLine(ServiceProcedure, 50_000)
		rejected.DoctorValidated = false
		unchecked := validatedLine(ServiceMedication, 10_000)
		unchecked.PharmacistValidated = false

		c := submittableClaim(validatedLine(ServiceBed, 30_000), rejected, unchecked)
		c.Status = StatusClaimConfirmed

		_, err := c.Apply(ActionApprove, "partial")

		require.NoError(t, err)
		assert.Equal(t, int64(30_000), c.TotalApproved)
	})

	t.Run("reject_claim works from every claims-team stage", func(t *testing.T) {
		for _, from := range []ClaimStatus{StatusClaimReview, StatusClaimReviewed, StatusClaimConfirmed} {
			c := submittableClaim(validatedLine(ServiceProcedure, 1_000))
			c.Status = from

			_, err := c.Apply(ActionRejectClaim, "tariff mismatch")

			require.NoError(t, err, "from %s", from)
			assert.Equal(t, StatusClaimRejected, c.Status)
		}
	})
}

func TestApplyInvalidTransitions(t *testing.T) {
	t.Run("action out of sequence returns a TransitionError", func(t *testing.T) {
		c := submittableClaim(validatedLine(ServiceProcedure, 1_000))
		c.Status = StatusDraft

		_, err := c.Apply(ActionApprove, "ok")

		var terr *TransitionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, ActionApprove, terr.Action)
		assert.Equal(t, StatusDraft, terr.Current)
		assert.Contains(t, terr.Expected, StatusClaimConfirmed)
	})

	t.Run("terminal states allow nothing", func(t *testing.T) {
		for _, terminal := range []ClaimStatus{StatusDoctorRejected, StatusPharmacistRejected, StatusClaimRejected, StatusPaid} {
			c := submittableClaim(validatedLine(ServiceProcedure, 1_000))
			c.Status = terminal

			assert.Empty(t, c.AllowedActions(), "status %s", terminal)
		}
	})

	t.Run("unknown action is rejected", func(t *testing.T) {
		c := submittableClaim()

		_, err := c.Apply(Action("escalate"), "")

		require.Error(t, err)
		var terr *TransitionError
		assert.False(t, errors.As(err, &terr))
	})
}

func TestRecomputeTotals(t *testing.T) {
	bundlePA := uuid.New()
	c := submittableClaim(
		ClaimLine{TariffType: TariffBundle, PACodeID: &bundlePA, LineTotal: 250_000},
		ClaimLine{TariffType: TariffFFS, LineTotal: 40_000},
		ClaimLine{TariffType: TariffFFS, LineTotal: 10_000},
	)

	c.RecomputeTotals()

	assert.Equal(t, int64(250_000), c.BundleAmount)
	assert.Equal(t, int64(50_000), c.FFSAmount)
	assert.Equal(t, int64(300_000), c.TotalClaimed)
}

func TestClassify(t *testing.T) {
	bundlePA, topUpPA := uuid.New(), uuid.New()
	c := submittableClaim(
		ClaimLine{TariffType: TariffBundle, ReportingType: ReportingBundle, PACodeID: &bundlePA, LineTotal: 250_000},
		ClaimLine{TariffType: TariffFFS, ReportingType: ReportingFFSTopUp, PACodeID: &topUpPA, LineTotal: 40_000},
		ClaimLine{TariffType: TariffFFS, ReportingType: ReportingFFSStandalone, LineTotal: 10_000},
	)

	cls := c.Classify()

	assert.Equal(t, 1, cls.BundleLines)
	assert.Equal(t, 2, cls.FFSLines)
	assert.Equal(t, 1, cls.TopUpLines)
	assert.Equal(t, 1, cls.StandaloneFFS)
	assert.Equal(t, int64(250_000), cls.BundleAmount)
	assert.Equal(t, int64(50_000), cls.FFSAmount)
	assert.Equal(t, int64(300_000), cls.TotalClaimed)

	// Idempotent and side-effect free.
	assert.Equal(t, cls, c.Classify())
	assert.Equal(t, int64(0), c.TotalClaimed)
}
