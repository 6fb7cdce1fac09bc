// Package announce delivers grid announcements when this node wins the
// notifier election.
//
// Delivery modes: telegram (Bot API), slack (incoming webhook), webhook
// (generic JSON POST) and log, which writes the announcement to the
// process log for air-gapped grids. Every transition event is delivered
// at most once: the event id is remembered before the attempt, and a
// failed delivery is reported but never retried.
package announce
