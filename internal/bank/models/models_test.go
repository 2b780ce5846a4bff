package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNewDonor(t *testing.T) {
	valid := func() (string, string, string, int, string, id.BloodGroup) {
		return "Asha Rao", "+14155550123", "asha@example.com", 31, "F", id.BloodGroupAPositive
	}

	t.Run("accepts a valid donor", func(t *testing.T) {
		name, phone, email, age, gender, group := valid()
		donor, err := NewDonor(id.NewDonorID(), name, phone, email, age, gender, group, nil, now)
		require.NoError(t, err)
		assert.Equal(t, group, donor.BloodGroup)
		assert.Nil(t, donor.LastDonationDate)
		assert.Equal(t, now, donor.RegisteredAt)
	})

	t.Run("rejects age under 18", func(t *testing.T) {
		name, phone, email, _, gender, group := valid()
		_, err := NewDonor(id.NewDonorID(), name, phone, email, 17, gender, group, nil, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects malformed phone", func(t *testing.T) {
		name, _, email, age, gender, group := valid()
		_, err := NewDonor(id.NewDonorID(), name, "not-a-phone", email, age, gender, group, nil, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid blood group", func(t *testing.T) {
		name, phone, email, age, gender, _ := valid()
		_, err := NewDonor(id.NewDonorID(), name, phone, email, age, gender, id.BloodGroup("O+"), nil, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestBloodUnitStatusDerivation(t *testing.T) {
	donor, err := NewDonor(id.NewDonorID(), "Asha Rao", "+14155550123", "", 31, "F", id.BloodGroupOPositive, nil, now)
	require.NoError(t, err)

	unit, err := CollectUnit(id.NewUnitID(), donor, now, 42*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, donor.BloodGroup, unit.BloodGroup)

	t.Run("available before expiry", func(t *testing.T) {
		assert.Equal(t, UnitStatusAvailable, unit.EffectiveStatus(unit.ExpiresAt))
		assert.True(t, unit.IsAllocatable(now))
	})

	t.Run("reads expired past expiry without mutation", func(t *testing.T) {
		after := unit.ExpiresAt.Add(time.Second)
		assert.Equal(t, UnitStatusExpired, unit.EffectiveStatus(after))
		assert.Equal(t, UnitStatusAvailable, unit.Status)
		assert.False(t, unit.IsAllocatable(after))
	})

	t.Run("used is terminal", func(t *testing.T) {
		used := *unit
		require.NoError(t, used.CanAllocate(now))
		used.ApplyAllocation()
		assert.Equal(t, UnitStatusUsed, used.EffectiveStatus(now))
		assert.Error(t, used.CanAllocate(now))
	})
}

func TestBloodRequestTransitions(t *testing.T) {
	newPending := func(t *testing.T) *BloodRequest {
		req, err := NewBloodRequest(id.NewRequestID(), id.NewPatientID(), id.BloodGroupBNegative, 2, 5, now)
		require.NoError(t, err)
		return req
	}

	t.Run("pending can approve once", func(t *testing.T) {
		req := newPending(t)
		require.NoError(t, req.CanApprove())
		req.ApplyApproval(now)
		assert.Equal(t, RequestStatusApproved, req.Status)
		require.NotNil(t, req.DecidedAt)

		assert.Error(t, req.CanApprove())
		assert.Error(t, req.CanReject())
	})

	t.Run("pending can reject once", func(t *testing.T) {
		req := newPending(t)
		require.NoError(t, req.CanReject())
		req.ApplyRejection(now)
		assert.Equal(t, RequestStatusRejected, req.Status)

		assert.Error(t, req.CanApprove())
	})

	t.Run("units range is enforced", func(t *testing.T) {
		for _, units := range []int{0, -3, 6} {
			_, err := NewBloodRequest(id.NewRequestID(), id.NewPatientID(), id.BloodGroupBNegative, units, 5, now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		}
	})

	t.Run("nil patient is rejected", func(t *testing.T) {
		_, err := NewBloodRequest(id.NewRequestID(), id.PatientID{}, id.BloodGroupBNegative, 1, 5, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
