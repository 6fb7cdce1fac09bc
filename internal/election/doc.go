// Package election decides which grid member announces a transition.
package election
