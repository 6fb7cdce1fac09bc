// Package quorum turns one node's suspicion into a grid-level verdict.
//
// A corroboration round asks every grid member except the local node and
// the suspect for its opinion of the suspect. Members that cannot be
// reached, fail the shared-key check or answer under the wrong identity
// are excluded from both sides of the majority, so a partitioned or
// misconfigured voter weakens neither camp. The suspect is declared dead
// only when strictly more than half of the members that answered consider
// it dying or dead. A node that reaches no voters at all can never
// confirm a death.
package quorum
