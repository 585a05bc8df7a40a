// Package pagination drives the Adform report protocol across pages.
//
// The stats API caps a report at a fixed number of rows per submission, so
// large reports are fetched by resubmitting the same definition with an
// increasing paging offset. Each page is a full submit, poll, retrieve round
// trip, and exactly one report operation is live at a time.
//
// Example usage:
//
//	fetcher := pagination.NewClientFetcher(adformClient, report.DefaultPollerConfig(), pagination.DefaultConfig())
//	for page, err := range fetcher.FetchAll(ctx, req) {
//		if err != nil {
//			return err
//		}
//		writer.WritePage(page)
//	}
//
// The fetcher:
//   - Starts at offset 0 on every FetchAll call
//   - Advances the offset by the number of rows actually returned
//   - Treats only an empty page as the end, a short page is not terminal
//   - Yields the final empty page as well
//   - Stops submitting as soon as the consumer breaks out of the loop
package pagination
