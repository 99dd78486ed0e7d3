// Package jobs defines the job record, its status state machine, and the
// Registry abstraction that holds live job state.
//
// The pipeline orchestrator is the only writer; API handlers and the CLI read
// snapshots. MemoryRegistry is the default in-process backend and
// RedisRegistry shares state between API replicas. Neither reloads jobs into
// the pipeline on restart. The Sweeper prunes terminal jobs after the
// retention window and hands them to an Archiver (the sqlite history store).
package jobs
