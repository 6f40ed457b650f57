// Package media wraps the ffmpeg and ffprobe binaries for the audio and
// video operations the pipeline needs: extraction, silence generation, tempo
// correction, concatenation, loudness normalization, mixing, and remuxing.
package media
