package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"time"

	log "github.com/F5Networks/bigiq-license-ctlr/pkg/vlogger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultTimeout = 60 * time.Second

// ClientConfig holds the settings used to build an HTTP client for
// talking to the BIG-IQ.
type ClientConfig struct {
	TrustedCerts  string
	SSLInsecure   bool
	Timeout       time.Duration
	EnableMetrics bool
	MetricsConfig *MetricsConfig
}

// MetricsConfig holds the Prometheus collectors used to instrument the
// client transport.
type MetricsConfig struct {
	InFlightGauge   prometheus.Gauge
	RequestsCounter *prometheus.CounterVec
	HistogramVec    prometheus.ObserverVec
}

// New creates an HTTP client for the given configuration. The TLS trust
// store is the system pool plus any PEM certificates supplied by the
// caller.
func New(config ClientConfig) *http.Client {
	// Get the SystemCertPool, continue with an empty pool on error
	rootCAs, _ := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}

	if config.TrustedCerts != "" {
		if ok := rootCAs.AppendCertsFromPEM([]byte(config.TrustedCerts)); !ok {
			log.Debug("[HTTP Client] No certs appended, using only system certs")
		}
	}

	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.SSLInsecure,
			RootCAs:            rootCAs,
		},
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	if config.EnableMetrics && config.MetricsConfig != nil {
		log.Debug("[HTTP Client] Creating HTTP client with metrics instrumentation")
		rt := promhttp.InstrumentRoundTripperInFlight(config.MetricsConfig.InFlightGauge,
			promhttp.InstrumentRoundTripperCounter(config.MetricsConfig.RequestsCounter,
				promhttp.InstrumentRoundTripperDuration(config.MetricsConfig.HistogramVec, tr),
			),
		)
		return &http.Client{
			Transport: rt,
			Timeout:   timeout,
		}
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}
}
