// Package metrics holds the Prometheus collectors exported by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Assessment outcomes.
const (
	OutcomeServer  = "server"
	OutcomeBrowser = "browser"
	OutcomeFailed  = "failed"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cv_editor_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cv_editor_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	Assessments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cv_editor_assessments_total",
			Help: "Total number of section assessments by section and outcome",
		},
		[]string{"section", "outcome"},
	)

	SectionSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cv_editor_section_saves_total",
			Help: "Total number of section saves by section and action",
		},
		[]string{"section", "action"},
	)

	QuotaExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cv_editor_ai_quota_exhausted_total",
			Help: "Total number of assessments redirected to browser execution because the daily quota was used up",
		},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cv_editor_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)
