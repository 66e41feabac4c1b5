// Package coordinator schedules background playlist synchronization,
// polling hot playlists on a faster cadence than idle ones and driving
// the idle re-check batches between runs.
package coordinator
