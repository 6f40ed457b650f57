// Package logging wires slog with the handlers used across the daemon: a
// console handler for interactive runs and a JSON handler for log shipping.
// It also defines the canonical field names and context helpers that keep
// video, job, and stage identifiers attached to every record.
package logging
