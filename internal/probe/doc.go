// Package probe performs all outbound calls to other grid members: the
// liveness probe, the corroboration opinion query, silence broadcasts and
// the node's own uplink check.
//
// One Prober is built at startup and shared by the poll scheduler and
// corroboration rounds. Every request carries the node's identity in
// User-Agent and is bounded by the configured probe timeout, which is
// validated to be shorter than the poll interval.
package probe
