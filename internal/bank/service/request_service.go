package service

import (
	"context"

	"bloodbank/internal/audit"
	"bloodbank/internal/bank/models"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/requestcontext"
)

// RequestService manages the blood request queue. Requests enter PENDING and
// stay there until a staff decision; the Allocator owns the decisions.
type RequestService struct {
	requests RequestStore
	cfg      *serviceConfig
}

func NewRequestService(requests RequestStore, opts ...Option) *RequestService {
	return &RequestService{
		requests: requests,
		cfg:      newServiceConfig(opts...),
	}
}

// CreateRequestInput carries the fields needed to queue a blood request.
type CreateRequestInput struct {
	PatientID     id.PatientID
	Group         id.BloodGroup
	UnitsRequired int
}

// CreateRequest queues a new PENDING request. Creation never checks stock:
// a request for more units than exist is queued; the shortfall surfaces at
// approval time.
func (s *RequestService) CreateRequest(ctx context.Context, input CreateRequestInput) (*models.BloodRequest, error) {
	now := requestcontext.Now(ctx)

	req, err := models.NewBloodRequest(id.NewRequestID(), input.PatientID, input.Group, input.UnitsRequired, s.cfg.maxUnits, now)
	if err != nil {
		return nil, err
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create request")
	}

	s.cfg.emit(ctx, audit.Event{
		Action:     audit.ActionRequestCreated,
		Actor:      requestcontext.Actor(ctx),
		Subject:    req.ID.String(),
		PatientID:  req.PatientID.String(),
		BloodGroup: req.RequestedGroup.String(),
		Units:      req.UnitsRequired,
		RequestID:  requestcontext.RequestID(ctx),
	})
	if s.cfg.metrics != nil {
		s.cfg.metrics.IncrementRequestsCreated()
	}
	return req, nil
}

// GetRequest fetches a single request by id.
func (s *RequestService) GetRequest(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error) {
	if requestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request id is required")
	}
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapStoreErr(err, "request not found")
	}
	return req, nil
}

// ListRequestsByPatient returns one patient's request history.
func (s *RequestService) ListRequestsByPatient(ctx context.Context, patientID id.PatientID) ([]*models.BloodRequest, error) {
	if patientID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "patient id is required")
	}
	reqs, err := s.requests.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list patient requests")
	}
	return reqs, nil
}

// ListAllRequests returns the full queue, newest first, for staff review.
func (s *RequestService) ListAllRequests(ctx context.Context) ([]*models.BloodRequest, error) {
	reqs, err := s.requests.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return reqs, nil
}
