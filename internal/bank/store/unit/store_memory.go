package unit

import (
	"context"
	"sort"
	"sync"
	"time"

	"bloodbank/internal/bank/models"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/sentinel"
)

// InMemory keeps the blood unit ledger in process memory.
//
// Reads derive effective status lazily against the caller's "now"; the store
// never mutates a unit to EXPIRED. AllocateFEFO is the one compound
// operation: it serializes per blood group so two concurrent allocations for
// the same group cannot both see the same units as available.
type InMemory struct {
	mu         sync.RWMutex
	units      map[id.UnitID]models.BloodUnit
	groupLocks map[id.BloodGroup]*sync.Mutex
}

func NewInMemory() *InMemory {
	locks := make(map[id.BloodGroup]*sync.Mutex, 8)
	for _, g := range id.BloodGroups() {
		locks[g] = &sync.Mutex{}
	}
	return &InMemory{
		units:      make(map[id.UnitID]models.BloodUnit),
		groupLocks: locks,
	}
}

func (s *InMemory) Create(_ context.Context, unit *models.BloodUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.units[unit.ID]; exists {
		return sentinel.ErrConflict
	}
	s.units[unit.ID] = *unit
	return nil
}

func (s *InMemory) FindByID(_ context.Context, unitID id.UnitID) (*models.BloodUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if unit, ok := s.units[unitID]; ok {
		return &unit, nil
	}
	return nil, sentinel.ErrNotFound
}

// List returns the whole ledger. Stored status is returned as-is; callers
// derive effective status with EffectiveStatus(now).
func (s *InMemory) List(_ context.Context) ([]*models.BloodUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	units := make([]*models.BloodUnit, 0, len(s.units))
	for _, unit := range s.units {
		u := unit
		units = append(units, &u)
	}
	return units, nil
}

// ListByDonor returns one donor's donation history, oldest collection first.
func (s *InMemory) ListByDonor(_ context.Context, donorID id.DonorID) ([]*models.BloodUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var units []*models.BloodUnit
	for _, unit := range s.units {
		if unit.DonorID == donorID {
			u := unit
			units = append(units, &u)
		}
	}
	sort.Slice(units, func(i, j int) bool {
		return units[i].CollectedAt.Before(units[j].CollectedAt)
	})
	return units, nil
}

// CountAvailable counts units of the group that are allocatable at the given
// instant (stored AVAILABLE and not past expiry).
func (s *InMemory) CountAvailable(_ context.Context, group id.BloodGroup, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, unit := range s.units {
		if unit.BloodGroup == group && unit.IsAllocatable(now) {
			count++
		}
	}
	return count, nil
}

// AllocateFEFO atomically selects n allocatable units of the group, earliest
// expiry first, and flips them all to USED. Either all n flip or nothing
// changes; with fewer than n allocatable units it returns
// sentinel.ErrInsufficientStock and the ledger is untouched.
//
// The per-group mutex is the serialization point: concurrent allocations for
// the same group run one at a time, so availability cannot be read stale
// between selection and flip.
func (s *InMemory) AllocateFEFO(_ context.Context, group id.BloodGroup, n int, now time.Time) ([]*models.BloodUnit, error) {
	groupLock, ok := s.groupLocks[group]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	groupLock.Lock()
	defer groupLock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []models.BloodUnit
	for _, unit := range s.units {
		if unit.BloodGroup == group && unit.IsAllocatable(now) {
			candidates = append(candidates, unit)
		}
	}
	if len(candidates) < n {
		return nil, sentinel.ErrInsufficientStock
	}

	// First-expire-first-out: burn the units closest to expiry. Ties break on
	// id so selection is deterministic, matching the Postgres ordering.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ExpiresAt.Equal(candidates[j].ExpiresAt) {
			return candidates[i].ID.String() < candidates[j].ID.String()
		}
		return candidates[i].ExpiresAt.Before(candidates[j].ExpiresAt)
	})

	allocated := make([]*models.BloodUnit, 0, n)
	for _, unit := range candidates[:n] {
		unit.ApplyAllocation()
		s.units[unit.ID] = unit
		u := unit
		allocated = append(allocated, &u)
	}
	return allocated, nil
}
