package report

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the report protocol.
var (
	ReportsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adform_reports_submitted_total",
		Help: "Total number of report definitions accepted by the API",
	})

	PollReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adform_poll_reads_total",
		Help: "Total operation status reads by observed status",
	}, []string{"status"})

	ReportWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adform_report_wait_seconds",
		Help:    "Time from first poll to terminal status by outcome",
		Buckets: []float64{2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"outcome"})

	RowsRetrieved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adform_rows_retrieved_total",
		Help: "Total number of report rows retrieved",
	})
)
