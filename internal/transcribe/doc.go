// Package transcribe produces the timed transcript that drives the rest of
// the dubbing pipeline. Timestamps are absolute positions in the source
// audio; downstream stages rely on them to place synthesized speech.
package transcribe
