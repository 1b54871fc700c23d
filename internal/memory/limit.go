package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/ilyakaznacheev/cleanenv"

	"media-lite/internal/logging"
	"media-lite/internal/metrics"
)

// DefaultRatio is the share of the container limit given to the Go heap.
const DefaultRatio = 0.85

// LimitConfig is read from the environment by ConfigureLimit.
type LimitConfig struct {
	ContainerLimit int64   `env:"MEMORY_LIMIT"`
	Ratio          float64 `env:"MEMORY_RATIO" env-default:"0.85"`
}

// LimitResult reports what ConfigureLimit did.
type LimitResult struct {
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureLimit sets GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO unless
// GOMEMLIMIT is already set. Call it before significant allocations.
func ConfigureLimit() LimitResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := LimitResult{Source: "none"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result = LimitResult{Source: "GOMEMLIMIT", GoMemLimit: limit}
			metrics.GoMemLimit.Set(float64(limit))
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	var cfg LimitConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		logging.Warn("Ignoring memory settings: %v", err)
		return LimitResult{Source: "none"}
	}
	return applyLimit(cfg)
}

func applyLimit(cfg LimitConfig) LimitResult {
	if cfg.ContainerLimit <= 0 {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT left alone")
		return LimitResult{Source: "none"}
	}

	ratio := cfg.Ratio
	if ratio <= 0 || ratio > 1 {
		logging.Warn("MEMORY_RATIO %.2f out of range (0.0-1.0], using %.2f", ratio, DefaultRatio)
		ratio = DefaultRatio
	}

	limit := int64(float64(cfg.ContainerLimit) * ratio)
	debug.SetMemoryLimit(limit)
	metrics.GoMemLimit.Set(float64(limit))

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		formatBytes(limit), ratio*100, formatBytes(cfg.ContainerLimit))

	return LimitResult{
		Source:         "MEMORY_LIMIT",
		ContainerLimit: cfg.ContainerLimit,
		GoMemLimit:     limit,
		Ratio:          ratio,
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
