// Package aggregator runs the venue extractors and turns their records into the feed.
//
// A run calls every configured extractor in order, one at a time. A failing extractor
// (error, timeout or panic) contributes no records and is reported; the other sources are
// unaffected. The collected records are then normalized, deduplicated and sorted, and the
// resulting event.Document is stamped with the completion time. Persisting the document is
// left to the caller.
package aggregator
