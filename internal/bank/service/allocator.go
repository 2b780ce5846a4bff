package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bloodbank/internal/audit"
	"bloodbank/internal/bank/models"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/sentinel"
	"bloodbank/pkg/requestcontext"
)

const tracerName = "bloodbank/allocator"

// Allocator decides blood requests. Approval allocates matching units
// first-expire-first-out; the decision and the allocation commit together or
// not at all. Concurrent approvals of the same request resolve to exactly one
// winner because the request store's Execute holds its lock (mutex in memory,
// FOR UPDATE in Postgres) across validation and mutation.
type Allocator struct {
	requests RequestStore
	units    UnitStore
	cfg      *serviceConfig
}

func NewAllocator(requests RequestStore, units UnitStore, opts ...Option) *Allocator {
	return &Allocator{
		requests: requests,
		units:    units,
		cfg:      newServiceConfig(opts...),
	}
}

// ApproveRequest approves a PENDING request and allocates exactly
// UnitsRequired units of the exact requested group, soonest expiry first.
// No group substitution is performed. When stock is short, nothing is
// allocated and the request stays PENDING so it can be retried after
// restocking.
//
// Errors: CodeNotFound for an unknown request; CodeInvalidState when the
// request is already decided; CodeInsufficientStock when fewer allocatable
// units exist than required.
func (a *Allocator) ApproveRequest(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, []*models.BloodUnit, error) {
	if requestID.IsNil() {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, "request id is required")
	}
	now := requestcontext.Now(ctx)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "allocator.approve",
		trace.WithAttributes(attribute.String("request.id", requestID.String())))
	defer span.End()
	if a.cfg.metrics != nil {
		// Wall clock, not the context-pinned request time: the histogram
		// measures this call, not time since the request entered the server.
		start := time.Now()
		defer func() { a.cfg.metrics.ObserveApprove(start) }()
	}

	var (
		approved  *models.BloodRequest
		allocated []*models.BloodUnit
	)
	err := a.cfg.tx.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := a.requests.Execute(txCtx, requestID,
			func(r *models.BloodRequest) error {
				if err := r.CanApprove(); err != nil {
					return dErrors.New(dErrors.CodeInvalidState, "request is already decided")
				}
				units, err := a.units.AllocateFEFO(txCtx, r.RequestedGroup, r.UnitsRequired, now)
				if err != nil {
					if errors.Is(err, sentinel.ErrInsufficientStock) {
						a.recordAllocationFailure(ctx, r)
						return dErrors.Wrap(err, dErrors.CodeInsufficientStock, "not enough available units for the requested group")
					}
					return dErrors.Wrap(err, dErrors.CodeInternal, "allocation failed")
				}
				allocated = units
				return nil
			},
			func(r *models.BloodRequest) {
				r.ApplyApproval(now)
			},
		)
		if err != nil {
			return wrapStoreErr(err, "request not found")
		}
		approved = req
		return nil
	})
	if err != nil {
		span.SetAttributes(attribute.String("allocation.outcome", "failed"))
		return nil, nil, err
	}
	span.SetAttributes(
		attribute.String("allocation.outcome", "approved"),
		attribute.Int("allocation.units", len(allocated)),
	)

	a.invalidateAvailability(ctx, approved.RequestedGroup)
	a.cfg.emit(ctx, audit.Event{
		Action:     audit.ActionRequestApproved,
		Actor:      requestcontext.Actor(ctx),
		Subject:    approved.ID.String(),
		PatientID:  approved.PatientID.String(),
		BloodGroup: approved.RequestedGroup.String(),
		Units:      len(allocated),
		RequestID:  requestcontext.RequestID(ctx),
	})
	if a.cfg.metrics != nil {
		a.cfg.metrics.IncrementRequestsApproved()
	}
	return approved, allocated, nil
}

// RejectRequest rejects a PENDING request. No units are touched.
//
// Errors: CodeNotFound for an unknown request; CodeInvalidState when the
// request is already decided.
func (a *Allocator) RejectRequest(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error) {
	if requestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request id is required")
	}
	now := requestcontext.Now(ctx)

	var rejected *models.BloodRequest
	err := a.cfg.tx.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := a.requests.Execute(txCtx, requestID,
			func(r *models.BloodRequest) error {
				if err := r.CanReject(); err != nil {
					return dErrors.New(dErrors.CodeInvalidState, "request is already decided")
				}
				return nil
			},
			func(r *models.BloodRequest) {
				r.ApplyRejection(now)
			},
		)
		if err != nil {
			return wrapStoreErr(err, "request not found")
		}
		rejected = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.cfg.emit(ctx, audit.Event{
		Action:     audit.ActionRequestRejected,
		Actor:      requestcontext.Actor(ctx),
		Subject:    rejected.ID.String(),
		PatientID:  rejected.PatientID.String(),
		BloodGroup: rejected.RequestedGroup.String(),
		RequestID:  requestcontext.RequestID(ctx),
	})
	if a.cfg.metrics != nil {
		a.cfg.metrics.IncrementRequestsRejected()
	}
	return rejected, nil
}

func (a *Allocator) recordAllocationFailure(ctx context.Context, req *models.BloodRequest) {
	a.cfg.emit(ctx, audit.Event{
		Action:     audit.ActionAllocationFailed,
		Actor:      requestcontext.Actor(ctx),
		Subject:    req.ID.String(),
		PatientID:  req.PatientID.String(),
		BloodGroup: req.RequestedGroup.String(),
		Units:      req.UnitsRequired,
		Reason:     "insufficient stock",
		RequestID:  requestcontext.RequestID(ctx),
	})
	if a.cfg.metrics != nil {
		a.cfg.metrics.IncrementAllocationFailures(req.RequestedGroup.String())
	}
}

func (a *Allocator) invalidateAvailability(ctx context.Context, group id.BloodGroup) {
	if a.cfg.cache == nil {
		return
	}
	if err := a.cfg.cache.Invalidate(ctx, group); err != nil {
		a.cfg.logger.WarnContext(ctx, "availability cache invalidation failed",
			"blood_group", group.String(),
			"error", err.Error(),
		)
	}
}
