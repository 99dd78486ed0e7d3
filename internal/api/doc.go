// Package api defines the wire-format types shared by the daemon's HTTP
// surface and the studai CLI, the converters from internal models to those
// types, and a small HTTP client for the CLI.
//
// # Key Types
//
// Job: transport view of a generation job (status, stage message, result,
// error). Result payloads are passed through unchanged so "video_url" stays
// null on degraded completions.
//
// DaemonStatus: workflow summary, registry backend, and dependency table.
//
// GenerateMessage: first frame a WebSocket client sends on /ws/generate.
//
// # Design Notes
//
// JSON keys are snake_case to match the job API consumed by the web front
// end. Timestamps use RFC3339 with milliseconds.
package api
