// Package finalizer produces the finished dubbed video: the assembled dub
// track is mixed against the isolated background stem, remuxed over the
// original video stream, and uploaded.
package finalizer
