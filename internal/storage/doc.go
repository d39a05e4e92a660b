// Package storage reads and writes the events.json feed.
//
// The feed is written in place, UTF-8, indented with two spaces, with non-ASCII characters
// and HTML-significant characters kept literal. A previous feed is read back to find the
// events that are new in the current run.
package storage
