package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the blood bank module.
// Tracks registry/ledger/queue throughput and the allocator critical path.
type Metrics struct {
	DonorsRegistered   prometheus.Counter
	UnitsCollected     prometheus.Counter
	RequestsCreated    prometheus.Counter
	RequestsApproved   prometheus.Counter
	RequestsRejected   prometheus.Counter
	AllocationFailures *prometheus.CounterVec
	ApproveDuration    prometheus.Histogram
	AvailableUnits     *prometheus.GaugeVec
}

// New creates a Metrics instance with all blood bank metrics registered.
func New() *Metrics {
	return &Metrics{
		DonorsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_donors_registered_total",
			Help: "Total number of donors registered",
		}),
		UnitsCollected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_units_collected_total",
			Help: "Total number of blood units collected",
		}),
		RequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_requests_created_total",
			Help: "Total number of blood requests created",
		}),
		RequestsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_requests_approved_total",
			Help: "Total number of blood requests approved",
		}),
		RequestsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_requests_rejected_total",
			Help: "Total number of blood requests rejected",
		}),
		AllocationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_allocation_failures_total",
			Help: "Approvals failed for insufficient stock, by blood group",
		}, []string{"blood_group"}),
		ApproveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bloodbank_approve_duration_seconds",
			Help:    "Duration of ApproveRequest operations (allocator critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		AvailableUnits: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bloodbank_available_units",
			Help: "AVAILABLE units per blood group as of the last availability read",
		}, []string{"blood_group"}),
	}
}

// IncrementDonorsRegistered records a successful donor registration.
func (m *Metrics) IncrementDonorsRegistered() {
	m.DonorsRegistered.Inc()
}

// IncrementUnitsCollected records a successful unit collection.
func (m *Metrics) IncrementUnitsCollected() {
	m.UnitsCollected.Inc()
}

// IncrementRequestsCreated records a new blood request.
func (m *Metrics) IncrementRequestsCreated() {
	m.RequestsCreated.Inc()
}

// IncrementRequestsApproved records a successful approval.
func (m *Metrics) IncrementRequestsApproved() {
	m.RequestsApproved.Inc()
}

// IncrementRequestsRejected records a rejection.
func (m *Metrics) IncrementRequestsRejected() {
	m.RequestsRejected.Inc()
}

// IncrementAllocationFailures records an approval blocked on stock.
func (m *Metrics) IncrementAllocationFailures(group string) {
	m.AllocationFailures.WithLabelValues(group).Inc()
}

// ObserveApprove records the duration of an ApproveRequest operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveApprove(start time.Time) {
	m.ApproveDuration.Observe(time.Since(start).Seconds())
}

// SetAvailableUnits publishes the current AVAILABLE count for a group.
func (m *Metrics) SetAvailableUnits(group string, count int) {
	m.AvailableUnits.WithLabelValues(group).Set(float64(count))
}
