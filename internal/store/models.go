package store

import (
	"strings"
	"time"
)

// VideoStatus represents the user-facing lifecycle of a dubbing request.
type VideoStatus string

const (
	VideoPending    VideoStatus = "pending"
	VideoProcessing VideoStatus = "processing"
	VideoCompleted  VideoStatus = "completed"
	VideoFailed     VideoStatus = "failed"
)

// JobStatus represents the lifecycle of a queue job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// JobTypeDub is the only job type currently scheduled.
const JobTypeDub = "dub"

// MaxUserRetries bounds how many times a failed video may be requeued.
const MaxUserRetries = 3

var allJobStatuses = []JobStatus{JobPending, JobRunning, JobDone, JobFailed}

var jobStatusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allJobStatuses))
	for _, status := range allJobStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := jobStatusSet[normalized]
	return normalized, ok
}

// AllJobStatuses returns the ordered list of known job statuses.
func AllJobStatuses() []JobStatus {
	cp := make([]JobStatus, len(allJobStatuses))
	copy(cp, allJobStatuses)
	return cp
}

// Video is a dubbing request persisted in SQLite. Stage outputs accumulate on
// the row as the pipeline advances: object store keys for audio artifacts,
// JSON blobs for the transcript and rewritten script, and finally the output
// video key and download URL.
type Video struct {
	ID             string
	UserID         string
	Title          string
	SourceLanguage string
	TargetLanguage string
	Voice          string
	Status         VideoStatus

	InputKey         string
	InputDurationSec float64
	InputFormat      string

	AudioOriginalKey   string
	AudioVoiceKey      string
	AudioBackgroundKey string
	AudioTTSKey        string

	DetectedLanguage string
	TranscriptJSON   string
	ScriptJSON       string
	SubtitlesJSON    string

	OutputKey    string
	DownloadURL  string
	ThumbnailKey string

	ErrorMessage string
	RetryCount   int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AudioKeys groups the stem and synthesis artifact keys persisted together
// after the audio stages complete.
type AudioKeys struct {
	Original   string
	Voice      string
	Background string
	TTS        string
}

// Job is a unit of work claimable by exactly one worker at a time.
type Job struct {
	ID           int64
	VideoID      string
	Type         string
	Status       JobStatus
	Attempts     int
	MaxAttempts  int
	LockedAt     *time.Time
	LockedBy     string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LockExpired reports whether the job's lease is older than timeout.
func (j *Job) LockExpired(now time.Time, timeout time.Duration) bool {
	if j.LockedAt == nil {
		return true
	}
	return j.LockedAt.Add(timeout).Before(now)
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total   int
	Pending int
	Running int
	Done    int
	Failed  int
}
