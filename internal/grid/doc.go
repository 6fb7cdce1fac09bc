// Package grid holds the immutable grid membership: this node's name and
// the set of peers it watches. Membership changes require a restart on
// every member.
package grid
