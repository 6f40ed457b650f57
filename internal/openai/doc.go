// Package openai is a minimal client for the two OpenAI endpoints the
// pipeline depends on: JSON-mode chat completions for script rewriting and
// verbose audio transcription. Transient failures (429, 5xx, timeouts) are
// retried with exponential backoff, honoring Retry-After when present.
package openai
