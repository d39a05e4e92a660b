// Package event provides the common event record and the aggregation pipeline stages.
//
// Extractors produce Raw records with explicit optional fields. The Normalizer maps them to
// Event values, Dedup removes repeats by the (title, source) key, and Sort orders the feed by
// the resolved sort date. French human dates are parsed by a pure function over an explicit
// month table, with no process-wide locale state.
package event
