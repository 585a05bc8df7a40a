package report

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Sternrassler/adform-stats-client/pkg/client"
	"github.com/Sternrassler/adform-stats-client/pkg/logging"
	"github.com/rs/zerolog"
)

// Response headers carrying the handles of a submitted report.
const (
	HeaderOperationLocation = "Operation-Location"
	HeaderLocation          = "Location"
)

// Submitter posts report definitions.
type Submitter struct {
	sender Sender
	logger zerolog.Logger
}

// NewSubmitter creates a Submitter sending through sender.
func NewSubmitter(sender Sender) *Submitter {
	return &Submitter{
		sender: sender,
		logger: logging.NewLogger(logging.ComponentSubmitter),
	}
}

// Submit posts req and returns the handles of the created operation.
// A response lacking either handle header fails with
// client.ErrMalformedServerResponse.
func (s *Submitter) Submit(ctx context.Context, req Request) (Handles, error) {
	resp, err := s.sender.Send(ctx, http.MethodPost, client.EndpointStats, req)
	if err != nil {
		return Handles{}, fmt.Errorf("submit report: %w", err)
	}

	op, err := handleFrom(resp, HeaderOperationLocation)
	if err != nil {
		return Handles{}, err
	}
	loc, err := handleFrom(resp, HeaderLocation)
	if err != nil {
		return Handles{}, err
	}

	ReportsSubmitted.Inc()

	handles := Handles{Operation: OperationID(op), Location: LocationID(loc)}

	event := s.logger.Debug().
		Str("operation_id", op).
		Str("location_id", loc)
	if req.Paging != nil {
		event = event.Int("offset", req.Paging.Offset).Int("limit", req.Paging.Limit)
	}
	event.Msg("Report submitted")

	return handles, nil
}

// handleFrom extracts the final path segment of the named header.
func handleFrom(resp *client.Response, name string) (string, error) {
	value := strings.TrimSpace(resp.Header.Get(name))
	if value == "" {
		return "", &client.APIError{
			Kind:       client.ErrMalformedServerResponse,
			Message:    fmt.Sprintf("submission response has no %s header", name),
			StatusCode: resp.StatusCode,
			Body:       client.Snippet(resp.Body),
		}
	}

	segment := value[strings.LastIndex(value, "/")+1:]
	if segment == "" {
		return "", &client.APIError{
			Kind:       client.ErrMalformedServerResponse,
			Message:    fmt.Sprintf("%s header %q has no trailing handle", name, value),
			StatusCode: resp.StatusCode,
		}
	}

	return segment, nil
}
