// Package journal persists health transitions to disk so a node's audit
// trail survives restarts. The backing store is a LevelDB directory with
// big-endian sequence numbers as keys, which makes iteration order equal
// append order. The journal keeps a bounded number of recent entries and
// prunes oldest first.
package journal
