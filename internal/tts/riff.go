package tts

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	riffHeaderSize = 44
	minimumWAVSize = 1000
)

// ErrAudioTooSmall marks a synthesis response that passed HTTP but carries
// no usable audio, so callers can retry with a simplified request.
var ErrAudioTooSmall = errors.New("synthesized audio too small")

// ValidateWAV checks that data is a plausible RIFF/WAVE payload with actual
// audio in it. Azure returns a bare header, or a header plus a sliver of
// silence, for lines it failed to voice.
func ValidateWAV(data []byte) error {
	if len(data) <= riffHeaderSize {
		return fmt.Errorf("%w: header-only payload (%d bytes)", ErrAudioTooSmall, len(data))
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Contains(data[:12], []byte("WAVE")) {
		return fmt.Errorf("payload is not RIFF/WAVE audio")
	}
	if len(data) < minimumWAVSize {
		return fmt.Errorf("%w: %d bytes", ErrAudioTooSmall, len(data))
	}
	return nil
}
