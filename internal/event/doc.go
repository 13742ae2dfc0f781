// Package event defines the activity event model shared by sources, the
// store, and the synchronizer.
//
// An Event is identified for deduplication by its Key, the triple
// (time, name, source). Keys are plain comparable structs so they can be
// used directly as map keys; no string encoding is involved.
//
// Times are epoch milliseconds throughout. Use FromTime and ToTime at the
// edges where time.Time values are needed.
package event
