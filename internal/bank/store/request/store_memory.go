package request

import (
	"context"
	"sort"
	"sync"

	"bloodbank/internal/bank/models"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/sentinel"
)

// InMemory keeps blood requests in process memory.
//
// Execute is the decision point: it holds the store lock across validation
// and mutation so a request can be decided exactly once even under
// concurrent approve/reject calls.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.RequestID]models.BloodRequest
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[id.RequestID]models.BloodRequest)}
}

func (s *InMemory) Create(_ context.Context, req *models.BloodRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[req.ID] = *req
	return nil
}

func (s *InMemory) FindByID(_ context.Context, requestID id.RequestID) (*models.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if req, ok := s.requests[requestID]; ok {
		return &req, nil
	}
	return nil, sentinel.ErrNotFound
}

// ListByPatient returns one patient's requests, newest first.
func (s *InMemory) ListByPatient(_ context.Context, patientID id.PatientID) ([]*models.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var requests []*models.BloodRequest
	for _, req := range s.requests {
		if req.PatientID == patientID {
			r := req
			requests = append(requests, &r)
		}
	}
	sortNewestFirst(requests)
	return requests, nil
}

// ListAll returns every request, newest first (admin view).
func (s *InMemory) ListAll(_ context.Context) ([]*models.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	requests := make([]*models.BloodRequest, 0, len(s.requests))
	for _, req := range s.requests {
		r := req
		requests = append(requests, &r)
	}
	sortNewestFirst(requests)
	return requests, nil
}

// Execute loads the request, runs validate, and applies mutate, all under the
// store lock. Returns sentinel.ErrNotFound for unknown ids and whatever
// validate returns, in which case nothing is persisted.
//
// The allocator runs its unit selection inside validate: the lock held here
// guarantees the request cannot be decided twice, and a selection failure
// aborts before any request mutation.
func (s *InMemory) Execute(_ context.Context, requestID id.RequestID, validate func(*models.BloodRequest) error, mutate func(*models.BloodRequest)) (*models.BloodRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(&req); err != nil {
		return nil, err
	}
	mutate(&req)
	s.requests[requestID] = req
	return &req, nil
}

func sortNewestFirst(requests []*models.BloodRequest) {
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].RequestedAt.After(requests[j].RequestedAt)
	})
}
