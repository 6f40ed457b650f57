// Package blob stores pipeline artifacts in an object store. The S3 adapter
// works against any S3-compatible endpoint; the fs adapter keeps objects on
// local disk for development and tests.
package blob
