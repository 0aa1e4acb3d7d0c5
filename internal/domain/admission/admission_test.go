package admission

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDischarge(t *testing.T) {
	t.Run("active admission discharges once", func(t *testing.T) {
		a := &Admission{
			ID:         uuid.New(),
			Status:     StatusActive,
			AdmittedAt: time.Now().Add(-72 * time.Hour),
		}

		require.NoError(t, a.Discharge(3, "uncomplicated delivery, mother and baby stable"))

		assert.Equal(t, StatusDischarged, a.Status)
		assert.False(t, a.IsActive())
		assert.Equal(t, 3, a.WardDays)
		require.NotNil(t, a.DischargedAt)
	})

	t.Run("discharge is one-way", func(t *testing.T) {
		a := &Admission{ID: uuid.New(), Status: StatusActive}
		require.NoError(t, a.Discharge(1, "stable"))

		firstAt := a.DischargedAt

		err := a.Discharge(5, "second attempt")
		assert.ErrorIs(t, err, ErrAlreadyDischarged)
		assert.Equal(t, 1, a.WardDays)
		assert.Equal(t, firstAt, a.DischargedAt)
	})
}
