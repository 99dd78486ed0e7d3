// Package services defines shared utilities consumed by the pipeline stages
// and the external collaborator clients.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so every stage failure
//     reaches the orchestrator already classified (fatal, degrading,
//     configuration).
//
// Use these helpers when wiring new collaborators so failure handling and
// observability stay uniform across the pipeline.
package services
