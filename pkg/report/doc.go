// Package report implements the three calls of the Adform asynchronous
// buyer-stats protocol: submitting a report definition, polling the
// resulting operation until it is terminal, and retrieving the finished
// report data.
//
// A submission returns two handles. The OperationID addresses the status
// resource, the LocationID addresses the result. They are distinct types so
// one can not be passed where the other is expected.
//
// Example usage:
//
//	c, _ := client.New(client.DefaultConfig(token))
//	handles, err := report.NewSubmitter(c).Submit(ctx, req)
//	if err != nil {
//		return err
//	}
//	if _, err := report.NewPoller(c, report.DefaultPollerConfig()).AwaitCompletion(ctx, handles.Operation); err != nil {
//		return err
//	}
//	page, err := report.NewRetriever(c).Retrieve(ctx, handles.Location)
//
// Most callers want pagination.Fetcher, which drives this sequence page by
// page.
package report
