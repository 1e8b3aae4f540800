package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	log "github.com/F5Networks/bigiq-license-ctlr/pkg/vlogger"
)

var LicenseAssignments = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bigiq_license_assignments_total",
		Help: "Total count of utility license assignments created on the BIG-IQ",
	},
	[]string{"offering"},
)

var LicenseRevocations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bigiq_license_revocations_total",
		Help: "Total count of utility license assignments revoked on the BIG-IQ",
	},
	[]string{"offering"},
)

var ReconcileErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bigiq_reconcile_errors_total",
		Help: "Total count of errors reconciling license assignment state",
	},
	[]string{},
)

var LicenseStatusPolls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bigiq_license_status_polls_total",
		Help: "Total count of member status polls waiting for LICENSED",
	},
	[]string{"offering"},
)

var ClientInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "bigiq_client_in_flight_requests",
		Help: "Current number of in-flight requests to the BIG-IQ",
	},
)

var ClientRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bigiq_client_requests_total",
		Help: "Total count of requests to the BIG-IQ by status code and method",
	},
	[]string{"code", "method"},
)

var ClientDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bigiq_client_request_duration_seconds",
		Help:    "Histogram of BIG-IQ request latencies",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method"},
)

func RegisterMetrics() {
	log.Debug("Registered BIG-IQ licensing metrics")
	prometheus.MustRegister(LicenseAssignments)
	prometheus.MustRegister(LicenseRevocations)
	prometheus.MustRegister(ReconcileErrors)
	prometheus.MustRegister(LicenseStatusPolls)
	prometheus.MustRegister(ClientInFlight)
	prometheus.MustRegister(ClientRequests)
	prometheus.MustRegister(ClientDuration)
}
