// Package engine runs synchronization passes.
//
// A pass fans out one branch per configured source. Each branch resolves its
// start bound from the source's watermark, fetches, filters out events the
// store already holds, inserts the rest in one batch, advances the
// watermark to the latest fetched time, and finally reads back the source's
// stored window. The pass waits for every branch and merges the window
// reads into one time-ordered view.
//
// FAILURE ISOLATION:
//
// Branches never cancel each other. A failing source is reported on its
// SourceReport and the pass continues:
//   - fetch failure: watermark untouched, stored window still returned
//   - store write failure: stored window still returned
//   - watermark read failure: no fetch, stored window still returned
//   - other store read failures: the source contributes nothing this pass
//
// Only an unreachable store fails the pass as a whole (STORE_UNAVAILABLE).
//
// WATERMARKS:
//
// The watermark advances to the maximum time of the fetched set, not of the
// inserted subset, so a source that re-emits an overlapping window makes
// forward progress even when every event is a duplicate or of an unknown
// kind. It is never moved after a failed fetch or insert; the next pass
// retries from the same bound.
package engine
