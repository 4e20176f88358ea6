package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HandshakesTotal counts verified handshakes by outcome.
	HandshakesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veloguard_handshakes_total",
		Help: "Forwarded handshakes verified, by result",
	}, []string{"result"}) // "success", "no_data", "incorrect_token"

	// DenialsLogged counts denials that were written to the log.
	DenialsLogged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veloguard_denials_logged_total",
		Help: "Denied handshakes that were logged",
	})

	// DenialsSuppressed counts denials dropped by the log rate limiter.
	DenialsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veloguard_denials_suppressed_total",
		Help: "Denied handshakes whose log line was suppressed by the rate limiter",
	})

	// ActiveTokens is the size of the current token set.
	ActiveTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veloguard_tokens",
		Help: "Number of tokens in the active set",
	})

	// ConnectedShims tracks authenticated shim connections.
	ConnectedShims = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veloguard_connected_shims",
		Help: "The number of currently connected host shims",
	})

	// Sessions tracks live player-connection sessions.
	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veloguard_sessions",
		Help: "Player connections awaiting login",
	})

	// ErrorsTotal tracks the total number of errors encountered.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veloguard_errors_total",
		Help: "The total number of errors encountered",
	}, []string{"type"}) // "auth", "protocol", "rate_limit", "internal"
)

// MetricsHandler returns the HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// IncError increments the error counter for the given type.
func IncError(errType string) {
	ErrorsTotal.WithLabelValues(errType).Inc()
}

// Recorder feeds listener outcomes into the Prometheus collectors.
type Recorder struct{}

func (Recorder) Handshake(result string) { HandshakesTotal.WithLabelValues(result).Inc() }
func (Recorder) DenialLogged()           { DenialsLogged.Inc() }
func (Recorder) DenialSuppressed()       { DenialsSuppressed.Inc() }
