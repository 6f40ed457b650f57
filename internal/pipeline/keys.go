package pipeline

import (
	"encoding/json"
	"fmt"
	"path"

	"redub/internal/store"
)

// artifactKey builds the object key for a per-video artifact under one of
// the storage area prefixes (extracted-audio, scripts, tts-audio,
// completed).
func artifactKey(area string, video *store.Video, name string) string {
	return path.Join(area, video.UserID, video.ID, name)
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(data), nil
}
