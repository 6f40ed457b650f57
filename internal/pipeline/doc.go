// Package pipeline sequences the dubbing stages for one video: download,
// audio extraction, vocal separation, transcription, translation, speech
// synthesis, track assembly, and finalization. Stage outputs are persisted
// on the video row as they complete so a crash leaves a diagnosable partial
// state, and local scratch space is always cleaned up.
package pipeline
