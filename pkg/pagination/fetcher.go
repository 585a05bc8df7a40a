package pagination

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/Sternrassler/adform-stats-client/pkg/client"
	"github.com/Sternrassler/adform-stats-client/pkg/logging"
	"github.com/Sternrassler/adform-stats-client/pkg/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultPageLimit is the row limit requested for every page.
const DefaultPageLimit = 100000

var (
	adformPagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adform_pages_fetched_total",
		Help: "Total number of report pages yielded",
	})

	adformExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adform_extraction_duration_seconds",
		Help:    "Duration of a paginated extraction by outcome",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 900, 1800, 3600},
	}, []string{"outcome"})
)

// Submitter posts a report definition.
type Submitter interface {
	Submit(ctx context.Context, req report.Request) (report.Handles, error)
}

// Poller blocks until an operation is terminal.
type Poller interface {
	AwaitCompletion(ctx context.Context, id report.OperationID) (report.Status, error)
}

// Retriever downloads a finished report.
type Retriever interface {
	Retrieve(ctx context.Context, loc report.LocationID) (*report.Page, error)
}

// Config holds fetcher configuration.
type Config struct {
	// PageLimit is the paging limit sent with each submission.
	PageLimit int
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{PageLimit: DefaultPageLimit}
}

// Fetcher pages through a report one submission at a time.
type Fetcher struct {
	submitter Submitter
	poller    Poller
	retriever Retriever
	config    Config
	logger    zerolog.Logger
}

// NewFetcher creates a fetcher from the three protocol steps.
func NewFetcher(submitter Submitter, poller Poller, retriever Retriever, config Config) *Fetcher {
	if config.PageLimit <= 0 {
		config.PageLimit = DefaultPageLimit
	}

	return &Fetcher{
		submitter: submitter,
		poller:    poller,
		retriever: retriever,
		config:    config,
		logger:    logging.NewLogger(logging.ComponentFetcher),
	}
}

// NewClientFetcher wires the report protocol steps to a single sender.
func NewClientFetcher(sender report.Sender, pollConfig report.PollerConfig, config Config) *Fetcher {
	return NewFetcher(
		report.NewSubmitter(sender),
		report.NewPoller(sender, pollConfig),
		report.NewRetriever(sender),
		config,
	)
}

// FetchAll returns the pages of req in order, starting at offset 0.
//
// Iteration ends after the first page with zero rows, which is yielded too.
// Any failure is yielded once as (nil, err) and ends the sequence. Breaking
// out of the loop stops before the next submission.
func (f *Fetcher) FetchAll(ctx context.Context, req report.Request) iter.Seq2[*report.Page, error] {
	return func(yield func(*report.Page, error) bool) {
		start := time.Now()
		offset := 0
		pages := 0
		var headers []string

		fail := func(err error) {
			adformExtractionDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
			f.logger.Error().
				Err(err).
				Int("offset", offset).
				Int("pages", pages).
				Str("category", string(client.CategoryOf(err))).
				Msg("Extraction failed")
			yield(nil, err)
		}

		for {
			if err := ctx.Err(); err != nil {
				fail(fmt.Errorf("fetch page at offset %d: %w", offset, err))
				return
			}

			page, err := f.fetchPage(ctx, req, offset)
			if err != nil {
				fail(fmt.Errorf("fetch page at offset %d: %w", offset, err))
				return
			}

			if len(page.ColumnHeaders) > 0 {
				if headers == nil {
					headers = page.ColumnHeaders
				} else if !slices.Equal(headers, page.ColumnHeaders) {
					fail(&client.APIError{
						Kind:    client.ErrMalformedServerResponse,
						Message: fmt.Sprintf("column headers changed at offset %d: %v != %v", offset, page.ColumnHeaders, headers),
					})
					return
				}
			}

			pages++
			adformPagesFetchedTotal.Inc()

			f.logger.Info().
				Int("offset", offset).
				Int("rows", page.RowCount()).
				Int("page", pages).
				Msg("Report page fetched")

			if !yield(page, nil) {
				f.logger.Debug().
					Int("offset", offset).
					Msg("Consumer stopped extraction")
				return
			}

			if page.RowCount() == 0 {
				adformExtractionDuration.WithLabelValues("complete").Observe(time.Since(start).Seconds())
				f.logger.Info().
					Int("rows", offset).
					Int("pages", pages).
					Dur("duration", time.Since(start)).
					Msg("Extraction complete")
				return
			}

			offset += page.RowCount()
		}
	}
}

// fetchPage runs one submit, poll, retrieve round trip.
func (f *Fetcher) fetchPage(ctx context.Context, req report.Request, offset int) (*report.Page, error) {
	handles, err := f.submitter.Submit(ctx, req.WithPaging(offset, f.config.PageLimit))
	if err != nil {
		return nil, err
	}

	if _, err := f.poller.AwaitCompletion(ctx, handles.Operation); err != nil {
		return nil, err
	}

	page, err := f.retriever.Retrieve(ctx, handles.Location)
	if err != nil {
		return nil, err
	}

	page.Offset = offset
	return page, nil
}
