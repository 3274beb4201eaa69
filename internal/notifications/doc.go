// Package notifications delivers daemon events to an optional JSON webhook.
//
// The webhook client retries transient failures through go-retryablehttp and
// degrades to a no-op when no URL is configured, so callers depend only on
// the Service interface.
package notifications
