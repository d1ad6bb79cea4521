// Package history keeps a SQLite record of every per-file outcome and cycle
// summary so operators can see what happened after the log has rotated.
//
// Store implements outcome.Observer and is attached to the tracker by the
// daemon. The pipeline never reads it back: whether a file needs work is
// decided by the output directory alone, so losing or deleting history.db
// changes nothing about processing.
package history
