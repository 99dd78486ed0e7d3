// Package main hosts the studai CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the studaid job API, reads the local history archive, runs
// preflight checks, and converts caption word timings offline. It centralizes
// configuration resolution and daemon address discovery so subcommands can
// focus on output instead of wiring.
//
// Keep this package lean: add functionality to the internal packages first,
// then surface it through dedicated commands or flags here.
package main
