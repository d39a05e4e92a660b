// Package notifier announces events that are new since the previous feed.
//
// Two channels exist: a dry run that prints the messages, and Twitter, authenticated with
// OAuth 1.0a user credentials. Messages are written in French and capped at 280 characters.
package notifier
