package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/adform-stats-client/pkg/client"
	"github.com/Sternrassler/adform-stats-client/pkg/logging"
	"github.com/rs/zerolog"
)

const (
	// DefaultPollInterval is the wait before every status read.
	DefaultPollInterval = 2 * time.Second

	// DefaultAnomalyBudget bounds how long reads without a status are tolerated.
	DefaultAnomalyBudget = 60 * time.Second
)

// PollerConfig holds the polling cadence.
type PollerConfig struct {
	Interval time.Duration

	// AnomalyBudget is measured from the start of the poll loop.
	AnomalyBudget time.Duration
}

// DefaultPollerConfig returns a 2s interval with a 60s anomaly budget.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:      DefaultPollInterval,
		AnomalyBudget: DefaultAnomalyBudget,
	}
}

// Poller waits for report operations to finish.
type Poller struct {
	sender Sender
	config PollerConfig
	logger zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a Poller reading status through sender.
func NewPoller(sender Sender, config PollerConfig) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.AnomalyBudget <= 0 {
		config.AnomalyBudget = DefaultAnomalyBudget
	}

	return &Poller{
		sender: sender,
		config: config,
		logger: logging.NewLogger(logging.ComponentPoller),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// AwaitCompletion polls the operation until it reaches a terminal status.
//
// succeeded returns a nil error. failed returns client.ErrReportProcessingFailed.
// Reads without a status field are tolerated until AnomalyBudget has elapsed
// since the loop started; after that the next non-terminal read fails with
// client.ErrMalformedServerResponse. A pending operation is polled until ctx
// is done.
func (p *Poller) AwaitCompletion(ctx context.Context, id OperationID) (Status, error) {
	path := client.EndpointOperations + "/" + string(id)
	start := p.now()
	anomalous := false
	status := StatusPending

	for {
		if err := p.sleep(ctx, p.config.Interval); err != nil {
			return status, fmt.Errorf("await operation %s: %w", id, err)
		}

		resp, err := p.sender.Send(ctx, http.MethodGet, path, nil)
		if err != nil {
			return status, fmt.Errorf("poll operation %s: %w", id, err)
		}

		status = ParseStatus(resp.Body)
		PollReads.WithLabelValues(string(status)).Inc()
		elapsed := p.now().Sub(start)

		switch status {
		case StatusSucceeded:
			ReportWait.WithLabelValues("succeeded").Observe(elapsed.Seconds())
			p.logger.Debug().
				Str("operation_id", string(id)).
				Dur("elapsed", elapsed).
				Msg("Report operation succeeded")
			return status, nil

		case StatusFailed:
			ReportWait.WithLabelValues("failed").Observe(elapsed.Seconds())
			p.logger.Error().
				Str("operation_id", string(id)).
				Str("body", client.Snippet(resp.Body)).
				Msg("Report operation failed")
			return status, &client.APIError{
				Kind:        client.ErrReportProcessingFailed,
				Message:     "report failed to process, please try again later",
				OperationID: string(id),
			}

		case StatusUnknown:
			anomalous = true
			p.logger.Warn().
				Str("operation_id", string(id)).
				Dur("elapsed", elapsed).
				Str("body", client.Snippet(resp.Body)).
				Msg("Status read without status field")

		default:
			p.logger.Debug().
				Str("operation_id", string(id)).
				Dur("elapsed", elapsed).
				Msg("Report operation pending")
		}

		if anomalous && elapsed > p.config.AnomalyBudget {
			ReportWait.WithLabelValues("malformed").Observe(elapsed.Seconds())
			p.logger.Error().
				Str("operation_id", string(id)).
				Dur("elapsed", elapsed).
				Msg("Anomaly budget exhausted")
			return status, &client.APIError{
				Kind:        client.ErrMalformedServerResponse,
				Message:     fmt.Sprintf("status could not be parsed within %s", p.config.AnomalyBudget),
				OperationID: string(id),
				Body:        client.Snippet(resp.Body),
			}
		}
	}
}

// ParseStatus reads the status field of an operation resource.
// Statuses other than succeeded and failed (notStarted, running...) are pending.
func ParseStatus(body []byte) Status {
	var payload struct {
		Status any `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return StatusUnknown
	}

	s, ok := payload.Status.(string)
	if !ok {
		return StatusUnknown
	}

	switch Status(s) {
	case StatusSucceeded, StatusFailed:
		return Status(s)
	default:
		return StatusPending
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
