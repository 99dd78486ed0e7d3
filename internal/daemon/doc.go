// Package daemon coordinates the long-running studaid process.
//
// It wires configuration, the job registry, the workflow manager, the
// retention sweeper, and the HTTP/WebSocket job API into a single lifecycle
// with flock-based locking to prevent multiple instances. The daemon reports
// dependency health and owns the operator test notification.
//
// Keep orchestration logic here: individual pipeline stages live in their
// respective packages while the daemon focuses on startup, shutdown, and the
// transport surface.
package daemon
