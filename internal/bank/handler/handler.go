package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodbank/internal/bank/models"
	"bloodbank/internal/bank/service"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/httputil"
	"bloodbank/pkg/requestcontext"
)

// DonorService defines the donor registry operations the handler needs.
type DonorService interface {
	RegisterDonor(ctx context.Context, input service.RegisterDonorInput) (*models.Donor, error)
	GetDonor(ctx context.Context, donorID id.DonorID) (*models.Donor, error)
	GetDonorByPatient(ctx context.Context, patientID id.PatientID) (*models.Donor, error)
	ListDonors(ctx context.Context) ([]*models.Donor, error)
}

// LedgerService defines the unit ledger operations the handler needs.
type LedgerService interface {
	CollectUnit(ctx context.Context, donorID id.DonorID) (*models.BloodUnit, error)
	ListUnits(ctx context.Context) ([]*models.BloodUnit, error)
	ListUnitsByDonor(ctx context.Context, donorID id.DonorID) ([]*models.BloodUnit, error)
	Availability(ctx context.Context) (map[id.BloodGroup]int, error)
}

// RequestService defines the request queue operations the handler needs.
type RequestService interface {
	CreateRequest(ctx context.Context, input service.CreateRequestInput) (*models.BloodRequest, error)
	GetRequest(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error)
	ListRequestsByPatient(ctx context.Context, patientID id.PatientID) ([]*models.BloodRequest, error)
	ListAllRequests(ctx context.Context) ([]*models.BloodRequest, error)
}

// Allocator defines the decision operations the handler needs.
type Allocator interface {
	ApproveRequest(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, []*models.BloodUnit, error)
	RejectRequest(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error)
}

// Handler wires blood bank endpoints to their services.
type Handler struct {
	donors    DonorService
	ledger    LedgerService
	requests  RequestService
	allocator Allocator
	logger    *slog.Logger
}

// New constructs a bank handler with its dependencies.
func New(donors DonorService, ledger LedgerService, requests RequestService, allocator Allocator, logger *slog.Logger) *Handler {
	return &Handler{
		donors:    donors,
		ledger:    ledger,
		requests:  requests,
		allocator: allocator,
		logger:    logger,
	}
}

// Register mounts read endpoints on the router. Mutating endpoints live in
// RegisterStaff so the caller can wrap them with the staff auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/donors", h.HandleListDonors)
	r.Get("/donors/{id}", h.HandleGetDonor)
	r.Get("/donors/by-patient/{patientID}", h.HandleGetDonorByPatient)
	r.Get("/units", h.HandleListUnits)
	r.Get("/units/by-donor/{donorID}", h.HandleListUnitsByDonor)
	r.Get("/availability", h.HandleAvailability)
	r.Post("/requests", h.HandleCreateRequest)
	r.Get("/requests", h.HandleListRequests)
	r.Get("/requests/{id}", h.HandleGetRequest)
	r.Get("/requests/by-patient/{patientID}", h.HandleListRequestsByPatient)
}

// RegisterStaff mounts the staff-only mutating endpoints.
func (h *Handler) RegisterStaff(r chi.Router) {
	r.Post("/donors", h.HandleRegisterDonor)
	r.Post("/units", h.HandleCollectUnit)
	r.Put("/requests/{id}/approve", h.HandleApproveRequest)
	r.Put("/requests/{id}/reject", h.HandleRejectRequest)
}

// HandleRegisterDonor handles POST /donors requests.
func (h *Handler) HandleRegisterDonor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterDonorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	donor, err := h.donors.RegisterDonor(ctx, req.ToInput())
	if err != nil {
		h.logger.WarnContext(ctx, "donor registration failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "donor registered",
		"request_id", requestID,
		"donor_id", donor.ID,
		"blood_group", donor.BloodGroup,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromDonor(donor))
}

// HandleGetDonor handles GET /donors/{id} requests.
func (h *Handler) HandleGetDonor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	donorID, err := id.ParseDonorID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	donor, err := h.donors.GetDonor(ctx, donorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDonor(donor))
}

// HandleGetDonorByPatient handles GET /donors/by-patient/{patientID} requests.
func (h *Handler) HandleGetDonorByPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patientID, err := id.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	donor, err := h.donors.GetDonorByPatient(ctx, patientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDonor(donor))
}

// HandleListDonors handles GET /donors requests.
func (h *Handler) HandleListDonors(w http.ResponseWriter, r *http.Request) {
	donors, err := h.donors.ListDonors(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDonors(donors))
}

// HandleCollectUnit handles POST /units requests.
func (h *Handler) HandleCollectUnit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CollectUnitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	unit, err := h.ledger.CollectUnit(ctx, req.ParsedDonorID())
	if err != nil {
		h.logger.WarnContext(ctx, "unit collection failed",
			"request_id", requestID,
			"donor_id", req.DonorID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "unit collected",
		"request_id", requestID,
		"unit_id", unit.ID,
		"blood_group", unit.BloodGroup,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromUnit(unit))
}

// HandleListUnits handles GET /units requests.
func (h *Handler) HandleListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.ledger.ListUnits(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromUnits(units))
}

// HandleListUnitsByDonor handles GET /units/by-donor/{donorID} requests.
func (h *Handler) HandleListUnitsByDonor(w http.ResponseWriter, r *http.Request) {
	donorID, err := id.ParseDonorID(chi.URLParam(r, "donorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	units, err := h.ledger.ListUnitsByDonor(r.Context(), donorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromUnits(units))
}

// HandleAvailability handles GET /availability requests.
func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	counts, err := h.ledger.Availability(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAvailability(counts))
}

// HandleCreateRequest handles POST /requests requests.
func (h *Handler) HandleCreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRequestRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.requests.CreateRequest(ctx, req.ToInput())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "blood request created",
		"request_id", requestID,
		"blood_request_id", created.ID,
		"blood_group", created.RequestedGroup,
		"units_required", created.UnitsRequired,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromRequest(created))
}

// HandleGetRequest handles GET /requests/{id} requests.
func (h *Handler) HandleGetRequest(w http.ResponseWriter, r *http.Request) {
	reqID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.requests.GetRequest(r.Context(), reqID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequest(req))
}

// HandleListRequests handles GET /requests requests.
func (h *Handler) HandleListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requests.ListAllRequests(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequests(reqs))
}

// HandleListRequestsByPatient handles GET /requests/by-patient/{patientID} requests.
func (h *Handler) HandleListRequestsByPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := id.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reqs, err := h.requests.ListRequestsByPatient(r.Context(), patientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequests(reqs))
}

// HandleApproveRequest handles PUT /requests/{id}/approve requests.
func (h *Handler) HandleApproveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	reqID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	approved, allocated, err := h.allocator.ApproveRequest(ctx, reqID)
	if err != nil {
		// Insufficient stock and already-decided are expected outcomes, not
		// server faults; keep them at warn level.
		h.logger.WarnContext(ctx, "request approval failed",
			"request_id", requestID,
			"blood_request_id", reqID,
			"code", dErrors.CodeOf(err),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "blood request approved",
		"request_id", requestID,
		"blood_request_id", approved.ID,
		"blood_group", approved.RequestedGroup,
		"units_allocated", len(allocated),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, &ApprovalResponse{
		Request: FromRequest(approved),
		Units:   FromUnits(allocated),
	})
}

// HandleRejectRequest handles PUT /requests/{id}/reject requests.
func (h *Handler) HandleRejectRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reqID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rejected, err := h.allocator.RejectRequest(ctx, reqID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "blood request rejected",
		"request_id", requestID,
		"blood_request_id", rejected.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, FromRequest(rejected))
}
