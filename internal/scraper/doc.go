// Package scraper provides the per-source adapters that extract raw event
// records from the public web pages of Wako city and its venues.
//
// Every adapter implements Adapter. Pages are obtained through a PageFetcher,
// either plain HTTP (HTTPFetcher) or a headless browser tab, and parsed with
// goquery. Adapters tolerate markup drift: records missing a required field
// are skipped, and a page that no longer has the expected structure yields
// ErrMarkupChanged rather than a panic.
package scraper
