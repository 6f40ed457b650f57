// Package worker runs the queue poll loop. It claims one job at a time from
// the store, drives the pipeline for the claimed video, and records the
// terminal outcome: done with a completed video, failed with the same error
// on job and video, or released back to pending when the failure was
// infrastructure rather than the job itself.
package worker
