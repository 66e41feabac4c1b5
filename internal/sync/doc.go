// Package sync implements the playlist synchronization core: the sync
// lease, change detection, the per-run engine and the idle/staleness
// bookkeeping used to confirm removals.
package sync
