// Package metrics exposes the Prometheus metrics of the Adform client.
// All metrics are defined in their respective packages (client, report,
// pagination, tokencache) via promauto and land in the default registry.
//
// This package provides documentation for all available metrics and the
// HTTP handlers that serve them.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the Adform client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// HealthHandler answers liveness probes.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// NewServer returns an HTTP server exposing /metrics and /health on addr.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", HealthHandler)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - adform_requests_total{endpoint, status} (Counter): API calls by route and HTTP status
//   - adform_request_duration_seconds{endpoint} (Histogram): Call duration, retries included
//   - adform_errors_total{class} (Counter): Errors by class (client, auth, server, rate_limit, network)
//   - adform_token_refreshes_total{source, result} (Counter): Bearer token acquisitions
//
// Retry Metrics (pkg/client):
//   - adform_retries_total{error_class} (Counter): Retry attempts by error class
//   - adform_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - adform_retry_exhausted_total{error_class} (Counter): Calls that exhausted max retries
//
// Report Metrics (pkg/report):
//   - adform_reports_submitted_total (Counter): Report definitions accepted
//   - adform_poll_reads_total{status} (Counter): Status reads by pending/succeeded/failed/unknown
//   - adform_report_wait_seconds{outcome} (Histogram): Time until a terminal status
//   - adform_rows_retrieved_total (Counter): Rows downloaded
//
// Pagination Metrics (pkg/pagination):
//   - adform_pages_fetched_total (Counter): Pages yielded
//   - adform_extraction_duration_seconds{outcome} (Histogram): Whole extraction duration
//
// Token Cache Metrics (pkg/tokencache):
//   - adform_token_cache_hits_total (Counter): Cache hits
//   - adform_token_cache_misses_total (Counter): Cache misses
//   - adform_token_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Quota pressure
//   rate(adform_errors_total{class="rate_limit"}[5m])
//
//   # Anomalous status reads
//   rate(adform_poll_reads_total{status="unknown"}[5m])
//
//   # P95 report processing time
//   histogram_quantile(0.95, rate(adform_report_wait_seconds_bucket[5m]))
//
//   # Rows per extraction
//   increase(adform_rows_retrieved_total[1h])
