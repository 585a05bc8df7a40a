package report

import (
	"context"

	"github.com/Sternrassler/adform-stats-client/pkg/client"
)

// Sender issues authenticated API calls. *client.Client implements it.
type Sender interface {
	Send(ctx context.Context, method, path string, body any) (*client.Response, error)
}

// DateRange bounds a report by day, both ends inclusive, formatted YYYY-MM-DD.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ClientFilter restricts a report to a set of client ids.
type ClientFilter struct {
	IDs []int64 `json:"id"`
}

// Filter selects the rows of a report.
type Filter struct {
	Date   DateRange     `json:"date"`
	Client *ClientFilter `json:"client,omitempty"`
}

// Metric is a requested measure with optional qualifiers,
// e.g. {"metric": "impressions", "specs": {"adUniqueness": "campaignUnique"}}.
type Metric struct {
	Name  string            `json:"metric"`
	Specs map[string]string `json:"specs,omitempty"`
}

// Paging selects a window of result rows.
type Paging struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Request is a report definition as posted to the stats endpoint.
type Request struct {
	Dimensions []string `json:"dimensions"`
	Filter     Filter   `json:"filter"`
	Metrics    []Metric `json:"metrics"`
	Paging     *Paging  `json:"paging,omitempty"`
}

// WithPaging returns a copy of r requesting rows [offset, offset+limit).
func (r Request) WithPaging(offset, limit int) Request {
	r.Paging = &Paging{Offset: offset, Limit: limit}
	return r
}

// OperationID identifies the status resource of a submitted report.
type OperationID string

// LocationID identifies the result resource of a submitted report.
type LocationID string

// Handles are the two resources created by one submission.
type Handles struct {
	Operation OperationID
	Location  LocationID
}

// Status is the processing state of a report operation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"

	// StatusUnknown means the status read carried no usable status field.
	StatusUnknown Status = "unknown"
)

// Terminal reports whether polling can stop at s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Page is one window of report rows.
type Page struct {
	// Offset of the first row within the whole report.
	Offset int

	ColumnHeaders []string

	// Rows hold cell values as decoded from JSON; numbers are json.Number.
	Rows [][]any
}

// RowCount returns the number of rows in the page.
func (p *Page) RowCount() int {
	if p == nil {
		return 0
	}
	return len(p.Rows)
}
