// Package preflight provides readiness checks for the external services and
// filesystem paths studai depends on.
//
// These checks back "studai doctor" and the daemon's startup log. Each check
// returns a Result rather than an error so callers can render the whole table
// even when several collaborators are missing. Checks for disabled features
// report Passed with a "Disabled" detail.
package preflight
