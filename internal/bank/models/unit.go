package models

import (
	"time"

	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
)

// UnitStatus is the lifecycle state of a physical blood unit.
type UnitStatus string

const (
	UnitStatusAvailable UnitStatus = "AVAILABLE"
	UnitStatusUsed      UnitStatus = "USED"
	UnitStatusExpired   UnitStatus = "EXPIRED"
)

// BloodUnit is one physical unit collected from a donor.
//
// Invariants:
//   - BloodGroup equals the owning donor's group, copied at collection time;
//     callers can never supply it directly
//   - Status transitions: AVAILABLE → USED (allocation) only. EXPIRED is a
//     derived read-time state, not a stored transition: an AVAILABLE unit past
//     ExpiresAt reads as EXPIRED without a mutation
//   - USED and EXPIRED are terminal
//   - Units are never physically deleted
//
// Two reads of the same unit straddling its expiry instant can disagree;
// acceptable for this domain, and what keeps the ledger free of sweeps.
type BloodUnit struct {
	ID          id.UnitID     `json:"id"`
	BloodGroup  id.BloodGroup `json:"blood_group"`
	DonorID     id.DonorID    `json:"donor_id"`
	CollectedAt time.Time     `json:"collected_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Status      UnitStatus    `json:"status"`
}

// EffectiveStatus derives the status visible at the given instant.
// Stored AVAILABLE past expiry reads as EXPIRED.
func (u *BloodUnit) EffectiveStatus(now time.Time) UnitStatus {
	if u.Status == UnitStatusAvailable && now.After(u.ExpiresAt) {
		return UnitStatusExpired
	}
	return u.Status
}

// IsAllocatable reports whether the unit can be flipped to USED at the given
// instant: stored AVAILABLE and not past expiry.
func (u *BloodUnit) IsAllocatable(now time.Time) bool {
	return u.EffectiveStatus(now) == UnitStatusAvailable
}

// CanAllocate checks the AVAILABLE → USED transition.
// Use with ApplyAllocation under the store's per-group lock.
func (u *BloodUnit) CanAllocate(now time.Time) error {
	if !u.IsAllocatable(now) {
		return dErrors.New(dErrors.CodeInvariantViolation, "unit is not available")
	}
	return nil
}

// ApplyAllocation transitions the unit to USED.
// Call CanAllocate first to validate the transition.
func (u *BloodUnit) ApplyAllocation() {
	u.Status = UnitStatusUsed
}

// CollectUnit constructs a unit from its donor, copying the donor's blood
// group. This is the one place group integrity is established; there is no
// way to set a unit's group independently.
func CollectUnit(unitID id.UnitID, donor *Donor, now time.Time, shelfLife time.Duration) (*BloodUnit, error) {
	if donor == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unit requires a donor")
	}
	if shelfLife <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "shelf life must be positive")
	}
	return &BloodUnit{
		ID:          unitID,
		BloodGroup:  donor.BloodGroup,
		DonorID:     donor.ID,
		CollectedAt: now,
		ExpiresAt:   now.Add(shelfLife),
		Status:      UnitStatusAvailable,
	}, nil
}
