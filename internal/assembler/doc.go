// Package assembler turns a bag of synthesized speech segments into one
// continuous audio track aligned with the source video. The timeline is
// planned first as a pure sequence of silence and tempo-adjusted speech
// steps, then rendered with ffmpeg.
package assembler
