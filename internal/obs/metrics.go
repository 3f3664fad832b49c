// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package obs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder is the production Recorder. It registers every metric
// against the given prometheus.Registerer so callers can plug in either
// prometheus.DefaultRegisterer or a private registry (tests, multi-instance
// processes).
type PrometheusRecorder struct {
	retrievalDuration prometheus.Histogram
	retrievalCandidates prometheus.Histogram
	retrievalExpanded   prometheus.Histogram
	retrievalResults    prometheus.Histogram
	retrievalErrors     prometheus.Counter

	conflictScanDuration prometheus.Histogram
	conflictsFound       prometheus.Counter
	conflictScanErrors   prometheus.Counter

	writebackDuration *prometheus.HistogramVec
	writebackErrors   prometheus.Counter

	busMessagesTotal   *prometheus.CounterVec
	busMessagesDropped prometheus.Counter

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpResponseSize  *prometheus.HistogramVec
}

// NewPrometheusRecorder builds and registers a PrometheusRecorder.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := prometheus.WrapRegistererWithPrefix("agentos_", reg)

	m := &PrometheusRecorder{
		retrievalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "retrieval_duration_seconds",
			Help:    "Duration of hybrid retrieval queries.",
			Buckets: prometheus.DefBuckets,
		}),
		retrievalCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "retrieval_vector_candidates",
			Help:    "Number of vector-stage candidates per retrieval query.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		retrievalExpanded: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "retrieval_graph_expanded",
			Help:    "Number of memories added by graph expansion per retrieval query.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		retrievalResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "retrieval_results",
			Help:    "Number of results returned per retrieval query.",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		}),
		retrievalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retrieval_errors_total",
			Help: "Retrieval queries that returned an error.",
		}),

		conflictScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "conflict_scan_duration_seconds",
			Help:    "Duration of a conflict-detection pass over one memory.",
			Buckets: prometheus.DefBuckets,
		}),
		conflictsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conflicts_found_total",
			Help: "Conflicts recorded across all scans.",
		}),
		conflictScanErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conflict_scan_errors_total",
			Help: "Conflict scans that returned an error.",
		}),

		writebackDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "writeback_duration_seconds",
			Help:    "Duration of write-back proposal processing, by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		writebackErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "writeback_errors_total",
			Help: "Write-back proposals that errored during commit.",
		}),

		busMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bus_messages_total",
			Help: "Messages sent on the agent message bus, by topic.",
		}, []string{"topic"}),
		busMessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bus_messages_dropped_total",
			Help: "Messages dropped to the dead-letter queue because a mailbox was full.",
		}),

		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Admin HTTP requests, by method/route/status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Admin HTTP request duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Admin HTTP response size.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"method", "route"}),
	}

	factory.MustRegister(
		m.retrievalDuration, m.retrievalCandidates, m.retrievalExpanded, m.retrievalResults, m.retrievalErrors,
		m.conflictScanDuration, m.conflictsFound, m.conflictScanErrors,
		m.writebackDuration, m.writebackErrors,
		m.busMessagesTotal, m.busMessagesDropped,
		m.httpRequestsTotal, m.httpDuration, m.httpResponseSize,
	)

	return m
}

func (m *PrometheusRecorder) RecordRetrieval(_ context.Context, duration time.Duration, vectorCandidates, graphExpanded, results int, err error) {
	m.retrievalDuration.Observe(duration.Seconds())
	m.retrievalCandidates.Observe(float64(vectorCandidates))
	m.retrievalExpanded.Observe(float64(graphExpanded))
	m.retrievalResults.Observe(float64(results))
	if err != nil {
		m.retrievalErrors.Inc()
	}
}

func (m *PrometheusRecorder) RecordConflictScan(_ context.Context, duration time.Duration, conflictsFound int, err error) {
	m.conflictScanDuration.Observe(duration.Seconds())
	if conflictsFound > 0 {
		m.conflictsFound.Add(float64(conflictsFound))
	}
	if err != nil {
		m.conflictScanErrors.Inc()
	}
}

func (m *PrometheusRecorder) RecordWriteback(_ context.Context, outcome string, duration time.Duration, err error) {
	m.writebackDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if err != nil {
		m.writebackErrors.Inc()
	}
}

func (m *PrometheusRecorder) RecordBusMessage(_ context.Context, topic string, delivered bool) {
	m.busMessagesTotal.WithLabelValues(topic).Inc()
	if !delivered {
		m.busMessagesDropped.Inc()
	}
}

func (m *PrometheusRecorder) RecordHTTPRequest(_ context.Context, method, routePattern string, statusCode int, duration time.Duration, responseSize int) {
	status := statusBucket(statusCode)
	m.httpRequestsTotal.WithLabelValues(method, routePattern, status).Inc()
	m.httpDuration.WithLabelValues(method, routePattern).Observe(duration.Seconds())
	if responseSize > 0 {
		m.httpResponseSize.WithLabelValues(method, routePattern).Observe(float64(responseSize))
	}
}

func statusBucket(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

var _ Recorder = (*PrometheusRecorder)(nil)
