package workers

import (
	"os"
	"runtime"
	"strconv"

	"media-lite/internal/logging"
)

// EnvOverride pins the worker count for every workload when set to a
// positive integer.
const EnvOverride = "MEDIA_LITE_WORKERS"

// Workload scales the per-CPU worker count.
type Workload float64

const (
	// CPUBound is one worker per CPU: image resizing.
	CPUBound Workload = 1.0
	// Mixed is one and a half workers per CPU: ffmpeg frame grabs mixed with
	// decode, resize and write.
	Mixed Workload = 1.5
)

// Override returns the worker count from EnvOverride, if one is set.
func Override() (int, bool) {
	raw := os.Getenv(EnvOverride)
	if raw == "" {
		return 0, false
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count < 1 {
		logging.Warn("Ignoring %s=%q: want a positive integer", EnvOverride, raw)
		return 0, false
	}
	return count, true
}

// Count returns the number of workers for w, capped at limit (0 means no
// cap). GOMAXPROCS follows the container CPU quota, so the result respects
// it where runtime.NumCPU would not.
func Count(w Workload, limit int) int {
	workers, ok := Override()
	if !ok {
		workers = int(float64(runtime.GOMAXPROCS(0)) * float64(w))
	}
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns the worker count for CPU-bound work.
func ForCPU(limit int) int {
	return Count(CPUBound, limit)
}

// ForMixed returns the worker count for mixed work.
func ForMixed(limit int) int {
	return Count(Mixed, limit)
}
