// Package store persists dubbing requests and their queue jobs in SQLite.
//
// Videos carry the accumulated stage outputs (artifact keys, transcript and
// script JSON, the rendered output). Jobs are leased units of work: a worker
// claims the oldest runnable job with ClaimNextJob, which also reclaims jobs
// whose lease expired after a crash. All timestamps are stored as RFC3339
// strings in UTC.
package store
