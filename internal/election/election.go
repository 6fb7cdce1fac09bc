package election

import "sort"

// Winner returns the notifier for the given alive-set: the
// lexicographically first name. Every member computes this locally from
// its own view with no coordination, so members whose views disagree
// during a partition may elect different notifiers; the duplicate
// announcements that can cause are accepted. Returns "" for an empty set.
func Winner(alive []string) string {
	if len(alive) == 0 {
		return ""
	}
	names := append([]string(nil), alive...)
	sort.Strings(names)
	return names[0]
}
