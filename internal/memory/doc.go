// Package memory sizes the Go heap for containers and pauses bulk work under
// memory pressure.
//
// GOMAXPROCS follows the cgroup CPU quota but GOMEMLIMIT does not follow the
// memory limit. [ConfigureLimit] derives it from MEMORY_LIMIT (bytes, usually
// injected by the Kubernetes Downward API) and MEMORY_RATIO (default 0.85),
// leaving the rest for ffmpeg and libvips. An explicit GOMEMLIMIT wins.
//
// [Monitor] samples heap allocation against that limit. Above the critical
// mark it reports paused until usage falls back under the high mark;
// thumbnail backfills call [Monitor.Wait] before each file.
package memory
