// Package assets stores tab screenshots.
//
// Each screenshot is an opaque image blob kept in its own file, named after
// the owning tab's id. Every operation is best-effort: failures are counted,
// logged through a throttled logger and otherwise swallowed, because a
// missing screenshot only means the tab shows a placeholder image.
//
// Writes go through a circuit breaker so a full disk costs one failed write
// per cooldown rather than one per snapshot. Reads are bounded by a timeout
// and reject blobs that do not sniff as images.
//
// Put, Delete and ClearExcluding share one mutex, so garbage collection can
// never delete a screenshot that is concurrently being written for a tab in
// the keep set.
package assets
