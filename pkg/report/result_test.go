package report

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Sternrassler/adform-stats-client/internal/testutil"
	"github.com/Sternrassler/adform-stats-client/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieve_Page(t *testing.T) {
	mock := testutil.NewMockAdform()
	defer mock.Close()
	mock.SetPrefixResponse(testutil.ResultsPrefix, testutil.NewJSONResponse(`{
		"reportData": {
			"columnHeaders": ["date", "client", "impressions"],
			"rows": [["2024-01-01", "Acme", 1234567890123], ["2024-01-02", "Acme", 7]]
		}
	}`))

	page, err := NewRetriever(newTestClient(t, mock)).Retrieve(context.Background(), "loc-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "client", "impressions"}, page.ColumnHeaders)
	assert.Equal(t, 2, page.RowCount())
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, json.Number("1234567890123"), page.Rows[0][2])
	assert.Equal(t, testutil.ResultsPrefix+"loc-1", mock.Requests()[0].Path)
}

func TestRetrieve_EmptyRows(t *testing.T) {
	mock := testutil.NewMockAdform()
	defer mock.Close()
	mock.SetPrefixResponse(testutil.ResultsPrefix, testutil.NewJSONResponse(`{"reportData": {"columnHeaders": ["date"], "rows": []}}`))

	page, err := NewRetriever(newTestClient(t, mock)).Retrieve(context.Background(), "loc-1")
	require.NoError(t, err)
	assert.Equal(t, 0, page.RowCount())
	assert.NotNil(t, page.Rows)
}

func TestRetrieve_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no report data", `{"other": {}}`},
		{"null report data", `{"reportData": null}`},
		{"no rows", `{"reportData": {"columnHeaders": ["date"]}}`},
		{"null rows", `{"reportData": {"columnHeaders": ["date"], "rows": null}}`},
		{"not json", `<html>gateway</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAdform()
			defer mock.Close()
			mock.SetPrefixResponse(testutil.ResultsPrefix, testutil.NewJSONResponse(tt.body))

			_, err := NewRetriever(newTestClient(t, mock)).Retrieve(context.Background(), "loc-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, client.ErrMalformedServerResponse)
		})
	}
}

func TestRetrieve_NotFound(t *testing.T) {
	mock := testutil.NewMockAdform()
	defer mock.Close()
	mock.SetPrefixResponse(testutil.ResultsPrefix, testutil.MockResponse{StatusCode: http.StatusNotFound})

	_, err := NewRetriever(newTestClient(t, mock)).Retrieve(context.Background(), "loc-1")
	assert.ErrorIs(t, err, client.ErrClientRequestRejected)
}

func TestPage_RowCountNil(t *testing.T) {
	var page *Page
	assert.Equal(t, 0, page.RowCount())
}
