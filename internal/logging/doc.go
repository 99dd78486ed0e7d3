// Package logging assembles structured slog loggers and formatting helpers used
// across StudAI services.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so stage code automatically tags log lines
// with job IDs, stages, and correlation IDs. NewNop returns a discard logger
// for tests and wiring code that cannot fail.
package logging
