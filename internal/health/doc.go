// Package health implements the per-peer liveness state machine.
//
// Every watched peer owns a Record with one of three statuses:
//
//	alive --failed probe--> dying --quorum verdict--> dead
//	dying --ok probe--> alive
//	dead  --ok probe--> alive
//
// A single failed probe is enough to suspect a peer, but only a majority
// of corroborating peers can declare it dead; a single successful probe
// revives it from either state. There is no dead→dying edge and no
// alive→dead shortcut. Every status change yields exactly one
// TransitionEvent carrying a unique id.
//
// The Engine holds one lock per record, not a table-wide lock, so probes
// of different peers never serialize against each other. The record set
// is fixed at startup. Verdicts arriving from a corroboration round are
// epoch-checked so a verdict about a state the peer has since left is
// discarded.
package health
