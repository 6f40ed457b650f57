package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const videoColumns = "id, user_id, title, source_language, target_language, voice, status, " +
	"input_key, input_duration_sec, input_format, " +
	"audio_original_key, audio_voice_key, audio_background_key, audio_tts_key, " +
	"detected_language, transcript_json, script_json, subtitles_json, " +
	"output_key, download_url, thumbnail_key, error_message, retry_count, created_at, updated_at"

// NewVideoParams describes a dubbing request to enqueue.
type NewVideoParams struct {
	UserID         string
	Title          string
	SourceLanguage string
	TargetLanguage string
	Voice          string
	InputKey       string
	DurationSec    float64
	Format         string
}

// CreateVideo inserts a video row in pending state and returns it.
func (s *Store) CreateVideo(ctx context.Context, params NewVideoParams) (*Video, error) {
	if strings.TrimSpace(params.UserID) == "" {
		return nil, errors.New("user id is required")
	}
	if strings.TrimSpace(params.InputKey) == "" {
		return nil, errors.New("input key is required")
	}
	if strings.TrimSpace(params.TargetLanguage) == "" {
		return nil, errors.New("target language is required")
	}

	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO videos (
            id, user_id, title, source_language, target_language, voice, status,
            input_key, input_duration_sec, input_format, retry_count, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		id,
		params.UserID,
		nullableString(params.Title),
		nullableString(params.SourceLanguage),
		params.TargetLanguage,
		nullableString(params.Voice),
		VideoPending,
		params.InputKey,
		params.DurationSec,
		nullableString(params.Format),
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}

	return s.GetVideo(ctx, id)
}

// GetVideo fetches a video by identifier. Returns nil when not found.
func (s *Store) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// ListVideos returns videos for a user ordered newest first. An empty userID
// lists all videos.
func (s *Store) ListVideos(ctx context.Context, userID string) ([]*Video, error) {
	var (
		rows *sql.Rows
		err  error
	)
	ctx = ensureContext(ctx)
	if userID == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE user_id = ? ORDER BY created_at DESC`, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// SetVideoStatus updates the lifecycle status, clearing any stale error
// message when the video leaves the failed state.
func (s *Store) SetVideoStatus(ctx context.Context, id string, status VideoStatus) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE videos SET status = ?, error_message = CASE WHEN ? = 'failed' THEN error_message ELSE NULL END, updated_at = ? WHERE id = ?`,
		status,
		status,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("set video status: %w", err)
	}
	return nil
}

// SetVideoError marks the video failed with a message.
func (s *Store) SetVideoError(ctx context.Context, id, message string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE videos SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		VideoFailed,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("set video error: %w", err)
	}
	return nil
}

// SaveTranscript persists the transcription result and detected language.
func (s *Store) SaveTranscript(ctx context.Context, id, detectedLanguage, transcriptJSON string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE videos SET detected_language = ?, transcript_json = ?, updated_at = ? WHERE id = ?`,
		nullableString(detectedLanguage),
		nullableString(transcriptJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// SaveScript persists the rewritten script and subtitle track JSON.
func (s *Store) SaveScript(ctx context.Context, id, scriptJSON, subtitlesJSON string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE videos SET script_json = ?, subtitles_json = ?, updated_at = ? WHERE id = ?`,
		nullableString(scriptJSON),
		nullableString(subtitlesJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("save script: %w", err)
	}
	return nil
}

// SaveAudioKeys persists every audio artifact key in a single statement so a
// crash cannot leave the row referencing only some of the uploads.
func (s *Store) SaveAudioKeys(ctx context.Context, id string, keys AudioKeys) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE videos SET audio_original_key = ?, audio_voice_key = ?, audio_background_key = ?, audio_tts_key = ?, updated_at = ? WHERE id = ?`,
		nullableString(keys.Original),
		nullableString(keys.Voice),
		nullableString(keys.Background),
		nullableString(keys.TTS),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("save audio keys: %w", err)
	}
	return nil
}

// SaveOutput records the rendered video artifact, its download URL, and the
// optional thumbnail, and marks the video completed.
func (s *Store) SaveOutput(ctx context.Context, id, outputKey, downloadURL, thumbnailKey string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE videos SET output_key = ?, download_url = ?, thumbnail_key = ?, status = ?, error_message = NULL, updated_at = ? WHERE id = ?`,
		nullableString(outputKey),
		nullableString(downloadURL),
		nullableString(thumbnailKey),
		VideoCompleted,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("save output: %w", err)
	}
	return nil
}

// RetryVideo requeues a failed video: bumps the retry counter, resets status
// to pending, and enqueues a fresh job in the same transaction. Fails when the
// video is not in the failed state or the retry budget is exhausted.
func (s *Store) RetryVideo(ctx context.Context, id string) (*Job, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin retry tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		status     string
		retryCount int
	)
	err = tx.QueryRowContext(ctx, `SELECT status, retry_count FROM videos WHERE id = ?`, id).Scan(&status, &retryCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read video for retry: %w", err)
	}
	if VideoStatus(status) != VideoFailed {
		return nil, fmt.Errorf("video %s is %s, only failed videos can be retried", id, status)
	}
	if retryCount >= MaxUserRetries {
		return nil, fmt.Errorf("video %s exhausted its %d retries", id, MaxUserRetries)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM jobs WHERE video_id = ? AND status = ?`, id, JobFailed,
	); err != nil {
		return nil, fmt.Errorf("clear failed jobs for retry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE videos SET status = ?, error_message = NULL, retry_count = retry_count + 1, updated_at = ? WHERE id = ?`,
		VideoPending, timestamp, id,
	); err != nil {
		return nil, fmt.Errorf("reset video for retry: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO jobs (video_id, type, status, attempts, max_attempts, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?, ?)`,
		id, JobTypeDub, JobPending, s.maxAttempts, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue retry job: %w", err)
	}
	jobID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit retry: %w", err)
	}
	return s.GetJob(ctx, jobID)
}

// DeleteVideo removes a video row; job rows cascade.
func (s *Store) DeleteVideo(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		id             string
		userID         string
		title          sql.NullString
		sourceLanguage sql.NullString
		targetLanguage string
		voice          sql.NullString
		statusStr      string
		inputKey       string
		inputDuration  float64
		inputFormat    sql.NullString
		audioOriginal  sql.NullString
		audioVoice     sql.NullString
		audioBg        sql.NullString
		audioTTS       sql.NullString
		detectedLang   sql.NullString
		transcript     sql.NullString
		script         sql.NullString
		subtitles      sql.NullString
		outputKey      sql.NullString
		downloadURL    sql.NullString
		thumbnailKey   sql.NullString
		errorMessage   sql.NullString
		retryCount     int
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&userID,
		&title,
		&sourceLanguage,
		&targetLanguage,
		&voice,
		&statusStr,
		&inputKey,
		&inputDuration,
		&inputFormat,
		&audioOriginal,
		&audioVoice,
		&audioBg,
		&audioTTS,
		&detectedLang,
		&transcript,
		&script,
		&subtitles,
		&outputKey,
		&downloadURL,
		&thumbnailKey,
		&errorMessage,
		&retryCount,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	video := &Video{
		ID:                 id,
		UserID:             userID,
		Title:              title.String,
		SourceLanguage:     sourceLanguage.String,
		TargetLanguage:     targetLanguage,
		Voice:              voice.String,
		Status:             VideoStatus(statusStr),
		InputKey:           inputKey,
		InputDurationSec:   inputDuration,
		InputFormat:        inputFormat.String,
		AudioOriginalKey:   audioOriginal.String,
		AudioVoiceKey:      audioVoice.String,
		AudioBackgroundKey: audioBg.String,
		AudioTTSKey:        audioTTS.String,
		DetectedLanguage:   detectedLang.String,
		TranscriptJSON:     transcript.String,
		ScriptJSON:         script.String,
		SubtitlesJSON:      subtitles.String,
		OutputKey:          outputKey.String,
		DownloadURL:        downloadURL.String,
		ThumbnailKey:       thumbnailKey.String,
		ErrorMessage:       errorMessage.String,
		RetryCount:         retryCount,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		video.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		video.UpdatedAt = updated
	}
	return video, nil
}
