package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain"
	"github.com/santerahq/claimsgate/internal/domain/admission"
	"github.com/santerahq/claimsgate/internal/domain/referral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type admissionTestEnv struct {
	svc          *AdmissionService
	repo         *fakeAdmissionRepo
	referralRepo *fakeReferralRepo
}

func newAdmissionTestEnv() *admissionTestEnv {
	env := &admissionTestEnv{
		repo:         newFakeAdmissionRepo(),
		referralRepo: newFakeReferralRepo(),
	}
	bundles := &stubBundles{bundles: []Bundle{
		{Code: "NHIS-APP-01", ICD10Prefix: "K35", Price: 250_000},
		{Code: "NHIS-APP-02", ICD10Prefix: "K35.8", Price: 310_000},
		{Code: "NHIS-MAT-01", ICD10Prefix: "O82", Price: 420_000},
	}}
	env.svc = NewAdmissionService(env.repo, env.referralRepo, bundles, newTestCollector(), newTestAuditService(), zap.NewNop())
	return env
}

func (env *admissionTestEnv) seedReferral(t *testing.T, status referral.ReferralStatus, utnValidated bool) *referral.Referral {
	t.Helper()
	r := &referral.Referral{
		Code:                "REF-" + uuid.NewString()[:8],
		UTN:                 "UTN-" + uuid.NewString()[:8],
		EnrolleeID:          uuid.New(),
		ReferringFacilityID: uuid.New(),
		ReceivingFacilityID: uuid.New(),
		Status:              status,
		UTNValidated:        utnValidated,
		Severity:            referral.SeveritySevere,
		CreatedBy:           uuid.New(),
	}
	require.NoError(t, env.referralRepo.Create(context.Background(), r))
	return r
}

func officerActor() domain.Actor {
	return domain.Actor{UserID: uuid.New(), Role: domain.RoleFacilityOfficer, IPAddress: "10.0.0.9"}
}

func TestCreateAdmission(t *testing.T) {
	ctx := context.Background()

	t.Run("blocks an unapproved referral", func(t *testing.T) {
		env := newAdmissionTestEnv()
		r := env.seedReferral(t, referral.StatusPending, true)

		_, err := env.svc.CreateAdmission(ctx, &admission.CreateAdmissionCommand{
			ReferralID:              r.ID,
			PrincipalDiagnosisICD10: "K35.8",
			CreatedBy:               uuid.New(),
		}, officerActor())

		var ne *NotEligibleError
		require.ErrorAs(t, err, &ne)
		assert.Equal(t, "referral is not approved", ne.Reason)
		assert.ErrorIs(t, err, admission.ErrNotEligible)
	})

	t.Run("blocks an unvalidated UTN", func(t *testing.T) {
		env := newAdmissionTestEnv()
		r := env.seedReferral(t, referral.StatusApproved, false)

		_, err := env.svc.CreateAdmission(ctx, &admission.CreateAdmissionCommand{
			ReferralID:              r.ID,
			PrincipalDiagnosisICD10: "K35.8",
			CreatedBy:               uuid.New(),
		}, officerActor())

		var ne *NotEligibleError
		require.ErrorAs(t, err, &ne)
		assert.Equal(t, "referral UTN has not been validated", ne.Reason)
	})

	t.Run("opens the episode off the referral", func(t *testing.T) {
		env := newAdmissionTestEnv()
		r := env.seedReferral(t, referral.StatusApproved, true)

		a, err := env.svc.CreateAdmission(ctx, &admission.CreateAdmissionCommand{
			ReferralID:              r.ID,
			PrincipalDiagnosisICD10: " k35.80 ",
			Ward:                    "surgical",
			CreatedBy:               uuid.New(),
		}, officerActor())
		require.NoError(t, err)

		assert.Equal(t, admission.StatusActive, a.Status)
		assert.Equal(t, r.EnrolleeID, a.EnrolleeID)
		assert.Equal(t, r.ReceivingFacilityID, a.FacilityID)
		assert.Equal(t, "K35.80", a.PrincipalDiagnosisICD10)
		assert.False(t, a.AdmittedAt.IsZero())
		// Longest matching catalog prefix wins.
		assert.Equal(t, "NHIS-APP-02", a.BundleCode)
	})

	t.Run("no catalog match leaves the bundle code empty", func(t *testing.T) {
		env := newAdmissionTestEnv()
		r := env.seedReferral(t, referral.StatusApproved, true)

		a, err := env.svc.CreateAdmission(ctx, &admission.CreateAdmissionCommand{
			ReferralID:              r.ID,
			PrincipalDiagnosisICD10: "Z99.9",
			CreatedBy:               uuid.New(),
		}, officerActor())
		require.NoError(t, err)
		assert.Empty(t, a.BundleCode)
	})

	t.Run("one admission per referral", func(t *testing.T) {
		env := newAdmissionTestEnv()
		r := env.seedReferral(t, referral.StatusApproved, true)
		cmd := &admission.CreateAdmissionCommand{
			ReferralID:              r.ID,
			PrincipalDiagnosisICD10: "K35.8",
			CreatedBy:               uuid.New(),
		}

		_, err := env.svc.CreateAdmission(ctx, cmd, officerActor())
		require.NoError(t, err)

		_, err = env.svc.CreateAdmission(ctx, cmd, officerActor())
		assert.ErrorIs(t, err, admission.ErrReferralAlreadyAdmitted)
	})

	t.Run("one active admission per enrollee", func(t *testing.T) {
		env := newAdmissionTestEnv()
		first := env.seedReferral(t, referral.StatusApproved, true)
		second := env.seedReferral(t, referral.StatusApproved, true)
		second.EnrolleeID = first.EnrolleeID
		require.NoError(t, env.referralRepo.Update(ctx, second))

		_, err := env.svc.CreateAdmission(ctx, &admission.CreateAdmissionCommand{
			ReferralID:              first.ID,
			PrincipalDiagnosisICD10: "K35.8",
			CreatedBy:               uuid.New(),
		}, officerActor())
		require.NoError(t, err)

		_, err = env.svc.CreateAdmission(ctx, &admission.CreateAdmissionCommand{
			ReferralID:              second.ID,
			PrincipalDiagnosisICD10: "O82.1",
			CreatedBy:               uuid.New(),
		}, officerActor())
		assert.ErrorIs(t, err, admission.ErrActiveAdmissionExists)
	})

	t.Run("validates the command", func(t *testing.T) {
		env := newAdmissionTestEnv()
		_, err := env.svc.CreateAdmission(ctx, &admission.CreateAdmissionCommand{
			PrincipalDiagnosisICD10: "  ",
			AdmittedAt:              time.Now().Add(24 * time.Hour),
		}, officerActor())

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Len(t, ve.Fields, 3)
	})
}

func TestDischargePatient(t *testing.T) {
	ctx := context.Background()

	t.Run("one-way transition", func(t *testing.T) {
		env := newAdmissionTestEnv()
		r := env.seedReferral(t, referral.StatusApproved, true)
		a, err := env.svc.CreateAdmission(ctx, &admission.CreateAdmissionCommand{
			ReferralID:              r.ID,
			PrincipalDiagnosisICD10: "K35.8",
			CreatedBy:               uuid.New(),
		}, officerActor())
		require.NoError(t, err)

		out, err := env.svc.DischargePatient(ctx, a.ID, &admission.DischargeCommand{
			WardDays:         4,
			DischargeSummary: "appendectomy, uneventful recovery",
			DischargedBy:     uuid.New(),
		}, officerActor())
		require.NoError(t, err)
		assert.Equal(t, admission.StatusDischarged, out.Status)
		assert.Equal(t, 4, out.WardDays)
		assert.NotNil(t, out.DischargedAt)

		_, err = env.svc.DischargePatient(ctx, a.ID, &admission.DischargeCommand{WardDays: 1}, officerActor())
		assert.ErrorIs(t, err, admission.ErrAlreadyDischarged)
	})

	t.Run("negative ward days", func(t *testing.T) {
		env := newAdmissionTestEnv()
		_, err := env.svc.DischargePatient(ctx, uuid.New(), &admission.DischargeCommand{WardDays: -1}, officerActor())
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("unknown admission", func(t *testing.T) {
		env := newAdmissionTestEnv()
		_, err := env.svc.DischargePatient(ctx, uuid.New(), &admission.DischargeCommand{WardDays: 2}, officerActor())
		assert.ErrorIs(t, err, admission.ErrAdmissionNotFound)
	})
}

func TestCanAdmit(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown referral answers false without an error", func(t *testing.T) {
		env := newAdmissionTestEnv()
		e, err := env.svc.CanAdmit(ctx, uuid.New())
		require.NoError(t, err)
		assert.False(t, e.Eligible)
		assert.Equal(t, "referral not found", e.Reason)
	})

	t.Run("pending referral", func(t *testing.T) {
		env := newAdmissionTestEnv()
		r := env.seedReferral(t, referral.StatusPending, false)
		e, err := env.svc.CanAdmit(ctx, r.ID)
		require.NoError(t, err)
		assert.False(t, e.Eligible)
		assert.Equal(t, "referral is not approved", e.Reason)
	})

	t.Run("ready referral", func(t *testing.T) {
		env := newAdmissionTestEnv()
		r := env.seedReferral(t, referral.StatusApproved, true)
		e, err := env.svc.CanAdmit(ctx, r.ID)
		require.NoError(t, err)
		assert.True(t, e.Eligible)
		assert.Empty(t, e.Reason)
	})

	t.Run("already admitted referral", func(t *testing.T) {
		env := newAdmissionTestEnv()
		r := env.seedReferral(t, referral.StatusApproved, true)
		_, err := env.svc.CreateAdmission(ctx, &admission.CreateAdmissionCommand{
			ReferralID:              r.ID,
			PrincipalDiagnosisICD10: "K35.8",
			CreatedBy:               uuid.New(),
		}, officerActor())
		require.NoError(t, err)

		e, err := env.svc.CanAdmit(ctx, r.ID)
		require.NoError(t, err)
		assert.False(t, e.Eligible)
		assert.Equal(t, "referral already has an admission", e.Reason)
	})

	t.Run("enrollee admitted under another referral", func(t *testing.T) {
		env := newAdmissionTestEnv()
		first := env.seedReferral(t, referral.StatusApproved, true)
		second := env.seedReferral(t, referral.StatusApproved, true)
		second.EnrolleeID = first.EnrolleeID
		require.NoError(t, env.referralRepo.Update(ctx, second))

		_, err := env.svc.CreateAdmission(ctx, &admission.CreateAdmissionCommand{
			ReferralID:              first.ID,
			PrincipalDiagnosisICD10: "K35.8",
			CreatedBy:               uuid.New(),
		}, officerActor())
		require.NoError(t, err)

		e, err := env.svc.CanAdmit(ctx, second.ID)
		require.NoError(t, err)
		assert.False(t, e.Eligible)
		assert.Equal(t, "enrollee already has an active admission", e.Reason)
	})
}
