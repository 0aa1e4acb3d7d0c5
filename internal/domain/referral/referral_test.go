package referral

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingReferral() *Referral {
	return &Referral{
		ID:     uuid.New(),
		Code:   "REF-AB12CD",
		UTN:    "UTN-34EF56",
		Status: StatusPending,
	}
}

func TestReviewOnce(t *testing.T) {
	t.Run("approve is one-shot", func(t *testing.T) {
		r := pendingReferral()
		reviewer := uuid.New()

		require.NoError(t, r.Approve(reviewer))
		assert.Equal(t, StatusApproved, r.Status)

		assert.ErrorIs(t, r.Approve(reviewer), ErrAlreadyReviewed)
		assert.ErrorIs(t, r.Deny(reviewer, "late"), ErrAlreadyReviewed)
	})

	t.Run("deny records the reason and blocks re-review", func(t *testing.T) {
		r := pendingReferral()

		require.NoError(t, r.Deny(uuid.New(), "out of network"))

		assert.Equal(t, StatusDenied, r.Status)
		assert.Equal(t, "out of network", r.DenyReason)
		assert.ErrorIs(t, r.Approve(uuid.New()), ErrAlreadyReviewed)
	})
}

func TestValidateUTN(t *testing.T) {
	t.Run("matching UTN validates once", func(t *testing.T) {
		r := pendingReferral()
		validator := uuid.New()

		require.NoError(t, r.ValidateUTN("UTN-34EF56", validator))

		assert.True(t, r.UTNValidated)
		require.NotNil(t, r.UTNValidatedBy)
		assert.Equal(t, validator, *r.UTNValidatedBy)

		assert.ErrorIs(t, r.ValidateUTN("UTN-34EF56", validator), ErrUTNAlreadyValidated)
	})

	t.Run("wrong UTN leaves the referral untouched", func(t *testing.T) {
		r := pendingReferral()

		assert.ErrorIs(t, r.ValidateUTN("UTN-WRONG1", uuid.New()), ErrUTNMismatch)
		assert.False(t, r.UTNValidated)
	})
}

func TestAdmissionReady(t *testing.T) {
	r := pendingReferral()
	assert.False(t, r.AdmissionReady(), "pending and unvalidated")

	require.NoError(t, r.Approve(uuid.New()))
	assert.False(t, r.AdmissionReady(), "approved but UTN not validated")

	require.NoError(t, r.ValidateUTN(r.UTN, uuid.New()))
	assert.True(t, r.AdmissionReady())

	denied := pendingReferral()
	require.NoError(t, denied.ValidateUTN(denied.UTN, uuid.New()))
	require.NoError(t, denied.Deny(uuid.New(), "no bed space"))
	assert.False(t, denied.AdmissionReady(), "UTN validated but denied")
}
