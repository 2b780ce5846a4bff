// Package service orchestrates the blood bank domain: donor registry, unit
// ledger, request queue, and the inventory allocator. Stores are
// interface-driven so the in-memory and PostgreSQL implementations swap
// without rewiring business code.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bloodbank/internal/audit"
	bankmetrics "bloodbank/internal/bank/metrics"
	"bloodbank/internal/bank/models"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/sentinel"
)

// DonorStore persists the donor registry.
type DonorStore interface {
	CreateIfPatientAvailable(ctx context.Context, donor *models.Donor) error
	FindByID(ctx context.Context, donorID id.DonorID) (*models.Donor, error)
	FindByPatient(ctx context.Context, patientID id.PatientID) (*models.Donor, error)
	List(ctx context.Context) ([]*models.Donor, error)
	Update(ctx context.Context, donor *models.Donor) error
}

// UnitStore persists the blood unit ledger. CountAvailable and AllocateFEFO
// take the caller's "now" so availability and expiry derivation agree within
// one operation.
type UnitStore interface {
	Create(ctx context.Context, unit *models.BloodUnit) error
	FindByID(ctx context.Context, unitID id.UnitID) (*models.BloodUnit, error)
	List(ctx context.Context) ([]*models.BloodUnit, error)
	ListByDonor(ctx context.Context, donorID id.DonorID) ([]*models.BloodUnit, error)
	CountAvailable(ctx context.Context, group id.BloodGroup, now time.Time) (int, error)
	AllocateFEFO(ctx context.Context, group id.BloodGroup, n int, now time.Time) ([]*models.BloodUnit, error)
}

// RequestStore persists the blood request queue. Execute holds the store's
// lock (mutex or FOR UPDATE) across validation and mutation so a request is
// decided exactly once.
type RequestStore interface {
	Create(ctx context.Context, req *models.BloodRequest) error
	FindByID(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error)
	ListByPatient(ctx context.Context, patientID id.PatientID) ([]*models.BloodRequest, error)
	ListAll(ctx context.Context) ([]*models.BloodRequest, error)
	Execute(ctx context.Context, requestID id.RequestID, validate func(*models.BloodRequest) error, mutate func(*models.BloodRequest)) (*models.BloodRequest, error)
}

// AuditPublisher emits domain audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AvailabilityCache caches per-group AVAILABLE counts for dashboards.
type AvailabilityCache interface {
	Get(ctx context.Context, group id.BloodGroup) (int, bool, error)
	Set(ctx context.Context, group id.BloodGroup, count int) error
	Invalidate(ctx context.Context, groups ...id.BloodGroup) error
}

// StoreTx runs a function inside a storage transaction. The in-memory
// fallback is a passthrough: memory stores serialize internally.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type inMemoryStoreTx struct{}

func newInMemoryStoreTx() StoreTx { return inMemoryStoreTx{} }

func (inMemoryStoreTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

const (
	defaultShelfLifeDays  = 42
	defaultMaxUnitsPerReq = 5
	defaultShelfLife      = defaultShelfLifeDays * 24 * time.Hour
)

type serviceConfig struct {
	logger    *slog.Logger
	audit     AuditPublisher
	metrics   *bankmetrics.Metrics
	cache     AvailabilityCache
	tx        StoreTx
	shelfLife time.Duration
	maxUnits  int
}

// Option configures the blood bank services.
type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(c *serviceConfig) { c.audit = publisher }
}

func WithMetrics(m *bankmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func WithAvailabilityCache(cache AvailabilityCache) Option {
	return func(c *serviceConfig) { c.cache = cache }
}

func WithTx(tx StoreTx) Option {
	return func(c *serviceConfig) { c.tx = tx }
}

// WithShelfLife overrides the 42-day default unit shelf life.
func WithShelfLife(shelfLife time.Duration) Option {
	return func(c *serviceConfig) {
		if shelfLife > 0 {
			c.shelfLife = shelfLife
		}
	}
}

// WithMaxUnitsPerRequest overrides the per-request unit cap.
func WithMaxUnitsPerRequest(maxUnits int) Option {
	return func(c *serviceConfig) {
		if maxUnits > 0 {
			c.maxUnits = maxUnits
		}
	}
}

func newServiceConfig(opts ...Option) *serviceConfig {
	cfg := &serviceConfig{
		shelfLife: defaultShelfLife,
		maxUnits:  defaultMaxUnitsPerReq,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.tx == nil {
		cfg.tx = newInMemoryStoreTx()
	}
	return cfg
}

func (c *serviceConfig) emit(ctx context.Context, event audit.Event) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Emit(ctx, event); err != nil {
		c.logger.WarnContext(ctx, "failed to emit audit event",
			"action", string(event.Action),
			"error", err.Error(),
		)
	}
}

// wrapStoreErr translates sentinel store errors into coded domain errors.
// Coded errors pass through untouched so validate-callback failures keep
// their codes.
func wrapStoreErr(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "concurrent modification detected")
	case hasDomainCode(err):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "store operation failed")
	}
}

func hasDomainCode(err error) bool {
	var derr *dErrors.Error
	return errors.As(err, &derr)
}
