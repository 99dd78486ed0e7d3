// Package stageexec runs one named pipeline stage with a uniform contract:
// stage-scoped logging, optional admission through a bounded worker pool,
// retry of transient failures, and classification of every error that
// leaves the stage.
package stageexec
