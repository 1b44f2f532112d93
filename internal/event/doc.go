// Package event provides the record types that flow through the wako-events pipeline.
//
// RawEvent is what a source adapter extracts from a page; Event is the canonical,
// classified record written to the snapshot. The package also owns date
// normalization, the future/past split used by the listing views, and the
// change report that compares a fresh crawl against the previous snapshot.
package event
