package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Sternrassler/adform-stats-client/pkg/client"
)

// Retriever downloads finished reports.
type Retriever struct {
	sender Sender
}

// NewRetriever creates a Retriever fetching through sender.
func NewRetriever(sender Sender) *Retriever {
	return &Retriever{sender: sender}
}

type resultBody struct {
	ReportData *struct {
		ColumnHeaders []string `json:"columnHeaders"`
		Rows          [][]any  `json:"rows"`
	} `json:"reportData"`
}

// Retrieve fetches the report stored at loc. A body without reportData or
// without rows fails with client.ErrMalformedServerResponse. The returned
// page has Offset zero; callers paging through a report set it.
func (r *Retriever) Retrieve(ctx context.Context, loc LocationID) (*Page, error) {
	resp, err := r.sender.Send(ctx, http.MethodGet, client.EndpointStats+"/"+string(loc), nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve report %s: %w", loc, err)
	}

	var body resultBody
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, &client.APIError{
			Kind:       client.ErrMalformedServerResponse,
			Message:    fmt.Sprintf("decode report %s", loc),
			StatusCode: resp.StatusCode,
			Body:       client.Snippet(resp.Body),
			Err:        err,
		}
	}

	if body.ReportData == nil || body.ReportData.Rows == nil {
		return nil, &client.APIError{
			Kind:       client.ErrMalformedServerResponse,
			Message:    fmt.Sprintf("report %s has no reportData rows", loc),
			StatusCode: resp.StatusCode,
			Body:       client.Snippet(resp.Body),
		}
	}

	RowsRetrieved.Add(float64(len(body.ReportData.Rows)))

	return &Page{
		ColumnHeaders: body.ReportData.ColumnHeaders,
		Rows:          body.ReportData.Rows,
	}, nil
}
