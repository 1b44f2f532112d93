// Package storage persists the event snapshot as a JSON array.
//
// The snapshot is replaced atomically: it is written to a temporary file in
// the same directory, synced, and renamed over the previous file. Readers
// therefore see either the old snapshot or the new one, never a partial file.
package storage
