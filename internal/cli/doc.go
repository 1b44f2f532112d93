// Package cli implements the command-line interface for wako-events.
//
// The cli package provides the Cobra-based CLI: crawl runs every source and
// replaces the snapshot; list, genres and show read it back; bookmark
// maintains the local bookmark file. It coordinates the scraper,
// pipeline, storage and presentation packages.
package cli
