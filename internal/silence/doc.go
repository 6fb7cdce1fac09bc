// Package silence mutes the grid's reaction to a peer that is expected
// to go away, typically for planned maintenance.
//
// A silenced peer is not probed at all: no transitions, no corroboration
// rounds, no announcements until the silence expires. Silences carry a
// random 64-bit id and spread to every member; the creating node keeps
// re-broadcasting each poll cycle until all members have acknowledged,
// and receivers deduplicate by id.
package silence
