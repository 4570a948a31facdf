package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// outcomes
const (
	Success = "success"
	Failure = "failure"
)

var (
	AuthEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maktab",
			Name:      "auth_events_total",
			Help:      "Authentication events by kind and outcome",
		},
		[]string{"event", "outcome"},
	)

	HTTPRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "maktab",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)
)

func init() {
	prometheus.MustRegister(AuthEvents, HTTPRequests)
}

func Handler() http.Handler { return promhttp.Handler() }

// ObserveAuth counts one auth event (login, refresh, logout, otp_send, otp_verify, set_password).
func ObserveAuth(event string, err error) {
	outcome := Success
	if err != nil {
		outcome = Failure
	}
	AuthEvents.WithLabelValues(event, outcome).Inc()
}

func ObserveRequest(method, route string, code int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Observe(d.Seconds())
}
