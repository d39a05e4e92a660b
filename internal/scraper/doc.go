// Package scraper fetches and parses the event listings of the Poitiers venues.
//
// Each venue is one Extractor. Extractors are deliberately independent: when a site's markup
// changes, its extractor is rewritten without touching the others. The only shared code is the
// HTTP client setup (resty, with an explicit retry policy and tracing hooks) and a handful of
// HTML helpers for whitespace cleaning, URL resolution, inline background images and JSON-LD.
//
// Extractors return event.Raw records with nil fields for anything the page did not carry;
// normalization into event.Event happens in the event package.
package scraper
