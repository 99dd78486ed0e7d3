// Package notifications delivers job progress events to observers and
// operator alerts to ntfy.
//
// Progress events go to exactly one Destination per job: a webhook that
// receives JSON POSTs, or a duplex WebSocket channel. Delivery is best-effort;
// Notifier logs and swallows every failure so a broken observer never delays
// or aborts the pipeline. StartHeartbeat runs a scoped ticker that re-emits a
// "still working" event until its stop function is called.
//
// The ntfy Service is independent of job observers and mirrors job outcomes
// to an operator topic when one is configured.
package notifications
