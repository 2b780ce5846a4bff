package service

import (
	"context"
	"time"

	"bloodbank/internal/audit"
	"bloodbank/internal/bank/models"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/requestcontext"
)

// LedgerService manages the blood unit ledger: collection, listing, and
// availability reads. Allocation lives in the Allocator.
type LedgerService struct {
	units  UnitStore
	donors DonorStore
	cfg    *serviceConfig
}

func NewLedgerService(units UnitStore, donors DonorStore, opts ...Option) *LedgerService {
	return &LedgerService{
		units:  units,
		donors: donors,
		cfg:    newServiceConfig(opts...),
	}
}

// CollectUnit records a new unit collected from a donor. The unit's blood
// group is copied from the donor here; callers never supply it. The donor's
// last donation date moves in the same transaction.
func (s *LedgerService) CollectUnit(ctx context.Context, donorID id.DonorID) (*models.BloodUnit, error) {
	if donorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "donor id is required")
	}
	now := requestcontext.Now(ctx)

	var unit *models.BloodUnit
	err := s.cfg.tx.RunInTx(ctx, func(txCtx context.Context) error {
		donor, err := s.donors.FindByID(txCtx, donorID)
		if err != nil {
			return wrapStoreErr(err, "donor not found")
		}

		u, err := models.CollectUnit(id.NewUnitID(), donor, now, s.cfg.shelfLife)
		if err != nil {
			return err
		}
		if err := s.units.Create(txCtx, u); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record unit")
		}

		donor.RecordDonation(now)
		if err := s.donors.Update(txCtx, donor); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update donor donation date")
		}
		unit = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAvailability(ctx, unit.BloodGroup)
	s.cfg.emit(ctx, audit.Event{
		Action:     audit.ActionUnitCollected,
		Actor:      requestcontext.Actor(ctx),
		Subject:    unit.ID.String(),
		BloodGroup: unit.BloodGroup.String(),
		RequestID:  requestcontext.RequestID(ctx),
	})
	if s.cfg.metrics != nil {
		s.cfg.metrics.IncrementUnitsCollected()
	}
	return unit, nil
}

// ListUnits returns the whole ledger with effective status derived against
// the request time: a stored-AVAILABLE unit past expiry reads as EXPIRED
// without any stored mutation.
func (s *LedgerService) ListUnits(ctx context.Context) ([]*models.BloodUnit, error) {
	units, err := s.units.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list units")
	}
	deriveStatuses(units, requestcontext.Now(ctx))
	return units, nil
}

// ListUnitsByDonor returns one donor's donation history.
func (s *LedgerService) ListUnitsByDonor(ctx context.Context, donorID id.DonorID) ([]*models.BloodUnit, error) {
	if donorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "donor id is required")
	}
	units, err := s.units.ListByDonor(ctx, donorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list donor units")
	}
	deriveStatuses(units, requestcontext.Now(ctx))
	return units, nil
}

// CountAvailable counts allocatable units of one group at the request time.
func (s *LedgerService) CountAvailable(ctx context.Context, group id.BloodGroup) (int, error) {
	if !group.IsValid() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid blood group")
	}
	count, err := s.units.CountAvailable(ctx, group, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count available units")
	}
	return count, nil
}

// Availability returns AVAILABLE counts for all eight groups, serving the
// stock dashboard. Counts come from the cache when warm; misses fall back to
// the ledger and repopulate. Cache failures degrade to ledger reads.
func (s *LedgerService) Availability(ctx context.Context) (map[id.BloodGroup]int, error) {
	now := requestcontext.Now(ctx)
	counts := make(map[id.BloodGroup]int, 8)

	for _, group := range id.BloodGroups() {
		if s.cfg.cache != nil {
			count, hit, err := s.cfg.cache.Get(ctx, group)
			if err != nil {
				s.cfg.logger.WarnContext(ctx, "availability cache read failed",
					"blood_group", group.String(),
					"error", err.Error(),
				)
			} else if hit {
				counts[group] = count
				continue
			}
		}

		count, err := s.units.CountAvailable(ctx, group, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute availability")
		}
		counts[group] = count

		if s.cfg.cache != nil {
			if err := s.cfg.cache.Set(ctx, group, count); err != nil {
				s.cfg.logger.WarnContext(ctx, "availability cache write failed",
					"blood_group", group.String(),
					"error", err.Error(),
				)
			}
		}
		if s.cfg.metrics != nil {
			s.cfg.metrics.SetAvailableUnits(group.String(), count)
		}
	}
	return counts, nil
}

func (s *LedgerService) invalidateAvailability(ctx context.Context, group id.BloodGroup) {
	if s.cfg.cache == nil {
		return
	}
	if err := s.cfg.cache.Invalidate(ctx, group); err != nil {
		s.cfg.logger.WarnContext(ctx, "availability cache invalidation failed",
			"blood_group", group.String(),
			"error", err.Error(),
		)
	}
}

func deriveStatuses(units []*models.BloodUnit, now time.Time) {
	for _, unit := range units {
		unit.Status = unit.EffectiveStatus(now)
	}
}
