// Package poller runs the probe loop that keeps a gridwatch node's view of
// the grid current.
//
// Each cycle the poller probes every non-silenced peer concurrently and
// folds the outcomes into the health engine. A peer that stops answering
// turns dying on the first miss; the poller then asks the rest of the grid
// for corroboration and only a strict majority of the answers turns the
// peer dead. One successful probe revives a peer from any state.
//
// Confirmed deaths and recoveries are announced by exactly one member: the
// lexicographically first of the nodes this node sees alive. Everyone runs
// the same election locally, so under a shared view exactly one node
// announces, and under a partitioned view a duplicate announcement beats a
// silent death.
//
// The poller also expires silences, pushes locally added silences to the
// rest of the grid, and skips entire cycles while its own uplink is down so
// a node cut off from the network does not condemn every peer at once.
package poller
