// Package cli implements the command-line interface for poitiers-events.
//
// The root command (and its alias "run") scrapes every configured venue, writes the
// merged feed, and optionally records the run, exports metrics and announces new events.
// Auxiliary commands list the sources, show the run history and export the feed as an
// iCalendar agenda.
package cli
