// Package sink buffers normalized records per partition and flushes
// them as batch files.
//
// Each partition key owns an independent buffer with its own lock, so
// unrelated symbols never serialize on each other. A buffer flushes when
// it reaches the batch size or when its flush interval elapses,
// whichever comes first; flush atomically snapshots and clears the
// buffer, then hands the snapshot to the batch writer. Flushes of the
// same partition are strictly sequential; a write failure loses that
// snapshot, is logged, and never stops ingestion.
package sink
