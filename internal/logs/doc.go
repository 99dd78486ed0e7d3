// Package logs reads the daemon log file for `studai logs`.
//
// Tail returns the last N lines with the byte offset reached, and Follow
// polls from that offset until the context ends. Filter narrows lines to one
// job or a minimum level and understands both the JSON format and the
// multi-line console format written by internal/logging.
package logs
