// Package translate rewrites a timed transcript into the target language.
// Segments are sent to the chat model in small batches, rewritten to fit
// their original durations, and tagged with a delivery emotion for
// expressive synthesis. Repeated lines are served from a bounded cache.
package translate
