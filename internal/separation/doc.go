// Package separation splits a dubbed video's original audio into vocal and
// background stems so the final mix can keep music and ambience under the
// synthesized voice track.
package separation
