package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewAssignmentConflictsTotal returns a Prometheus counter for accept attempts that lost the assignment race
func NewAssignmentConflictsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignment_conflicts_total",
		Help: "Total number of accept attempts that lost the single-winner assignment race",
	})
}

// NewCaptureFailuresTotal returns a Prometheus counter for failed escrow capture attempts
func NewCaptureFailuresTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "escrow_capture_failures_total",
		Help: "Total number of failed escrow capture attempts",
	})
}

// NewPayoutFailuresTotal returns a Prometheus counter for failed courier payout attempts
func NewPayoutFailuresTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "escrow_payout_failures_total",
		Help: "Total number of failed courier payout attempts",
	})
}

// NewGatewayRetriesTotal returns a Prometheus counter for the number of retry attempts performed by gateways
func NewGatewayRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Total number of retry attempts performed by gateways",
	})
}
