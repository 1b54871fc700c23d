package startup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"media-lite/internal/logging"
	"media-lite/internal/media"
	"media-lite/internal/transcoder"

	"github.com/gorilla/mux"
	"github.com/ilyakaznacheev/cleanenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// ConfigFileEnv names the optional YAML file read before the environment.
const ConfigFileEnv = "MEDIA_LITE_CONFIG"

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// DatabaseConfig selects the catalog store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DATABASE_DRIVER" env-default:"sqlite3"`
	URL    string `yaml:"url" env:"DATABASE_URL" env-default:"static/media.db"`
}

// ConverterConfig controls the container converter daemon.
type ConverterConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL" env-default:"5s"`
	SettleAge         time.Duration `yaml:"settle_age" env:"SETTLE_AGE" env-default:"10s"`
	LegacyExtension   string        `yaml:"legacy_extension" env:"LEGACY_EXTENSION" env-default:".mov"`
	TargetExtension   string        `yaml:"target_extension" env:"TARGET_EXTENSION" env-default:".mp4"`
	ReconcileSchedule string        `yaml:"reconcile_schedule" env:"RECONCILE_SCHEDULE" env-default:"@every 10m"`
	WatchEnabled      bool          `yaml:"watch_enabled" env:"WATCH_ENABLED" env-default:"true"`
	TempMaxAge        time.Duration `yaml:"temp_max_age" env:"TEMP_MAX_AGE" env-default:"1h"`
}

// ToolsConfig locates ffmpeg/ffprobe and bounds their runs.
type ToolsConfig struct {
	FFmpegPath       string        `yaml:"ffmpeg_path" env:"FFMPEG_PATH" env-default:"ffmpeg"`
	FFprobePath      string        `yaml:"ffprobe_path" env:"FFPROBE_PATH" env-default:"ffprobe"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout" env:"PROBE_TIMEOUT" env-default:"30s"`
	TranscodeTimeout time.Duration `yaml:"transcode_timeout" env:"TRANSCODE_TIMEOUT" env-default:"30m"`
	FrameTimeout     time.Duration `yaml:"frame_timeout" env:"FRAME_TIMEOUT" env-default:"60s"`
	KillGrace        time.Duration `yaml:"kill_grace" env:"KILL_GRACE" env-default:"5s"`
}

// Config holds all application configuration
type Config struct {
	VideoDir     string `yaml:"video_dir" env:"VIDEO_DIR" env-default:"static/videos"`
	ImageDir     string `yaml:"image_dir" env:"IMAGE_DIR" env-default:"static/images"`
	DocumentDir  string `yaml:"document_dir" env:"DOCUMENT_DIR" env-default:"static/documents"`
	ThumbnailDir string `yaml:"thumbnail_dir" env:"THUMBNAIL_DIR" env-default:"static/thumbnails"`

	Database  DatabaseConfig  `yaml:"database"`
	Converter ConverterConfig `yaml:"converter"`
	Tools     ToolsConfig     `yaml:"tools"`

	RotationPolicy string `yaml:"rotation_policy" env:"ROTATION_POLICY" env-default:"portrait"`
	MetricsEnabled bool   `yaml:"metrics_enabled" env:"METRICS_ENABLED" env-default:"true"`
	MetricsPort    string `yaml:"metrics_port" env:"METRICS_PORT" env-default:"9090"`
	LogLevel       string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// Policy is RotationPolicy parsed.
	Policy media.RotationPolicy `yaml:"-"`
}

// TranscoderConfig converts the tool settings for transcoder.NewFFmpeg.
func (c *Config) TranscoderConfig() transcoder.Config {
	return transcoder.Config{
		FFmpegPath:       c.Tools.FFmpegPath,
		FFprobePath:      c.Tools.FFprobePath,
		ProbeTimeout:     c.Tools.ProbeTimeout,
		TranscodeTimeout: c.Tools.TranscodeTimeout,
		FrameTimeout:     c.Tools.FrameTimeout,
		KillGrace:        c.Tools.KillGrace,
	}
}

// ReadConfig fills a Config from the optional YAML file named by
// MEDIA_LITE_CONFIG and then from the environment, and validates it.
// It has no side effects on disk.
func ReadConfig() (*Config, error) {
	cfg := &Config{}

	var err error
	if path := os.Getenv(ConfigFileEnv); path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	policy, err := media.ParseRotationPolicy(c.RotationPolicy)
	if err != nil {
		return err
	}
	c.Policy = policy

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q (want sqlite3 or postgres)", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL must not be empty")
	}

	c.Converter.LegacyExtension = normalizeExt(c.Converter.LegacyExtension)
	c.Converter.TargetExtension = normalizeExt(c.Converter.TargetExtension)
	if c.Converter.LegacyExtension == "" || c.Converter.TargetExtension == "" {
		return errors.New("LEGACY_EXTENSION and TARGET_EXTENSION must not be empty")
	}
	if c.Converter.LegacyExtension == c.Converter.TargetExtension {
		return fmt.Errorf("LEGACY_EXTENSION and TARGET_EXTENSION are both %q", c.Converter.LegacyExtension)
	}
	if c.Converter.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %v", c.Converter.PollInterval)
	}
	if c.Converter.SettleAge < 0 {
		return fmt.Errorf("SETTLE_AGE must not be negative, got %v", c.Converter.SettleAge)
	}
	return nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// LoadConfig reads configuration, logs it, and prepares the media directories.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	cfg, err := ReadConfig()
	if err != nil {
		return nil, err
	}

	// DEBUG=true set in the environment outranks a configured level.
	if !logging.IsDebugEnabled() {
		logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  VIDEO_DIR:           %s", cfg.VideoDir)
	logging.Info("  IMAGE_DIR:           %s", cfg.ImageDir)
	logging.Info("  DOCUMENT_DIR:        %s", cfg.DocumentDir)
	logging.Info("  THUMBNAIL_DIR:       %s", cfg.ThumbnailDir)
	logging.Info("  DATABASE_DRIVER:     %s", cfg.Database.Driver)
	logging.Info("  POLL_INTERVAL:       %v", cfg.Converter.PollInterval)
	logging.Info("  SETTLE_AGE:          %v", cfg.Converter.SettleAge)
	logging.Info("  LEGACY_EXTENSION:    %s", cfg.Converter.LegacyExtension)
	logging.Info("  TARGET_EXTENSION:    %s", cfg.Converter.TargetExtension)
	logging.Info("  RECONCILE_SCHEDULE:  %s", cfg.Converter.ReconcileSchedule)
	logging.Info("  WATCH_ENABLED:       %v", cfg.Converter.WatchEnabled)
	logging.Info("  ROTATION_POLICY:     %s", cfg.Policy)
	logging.Info("  TRANSCODE_TIMEOUT:   %v", cfg.Tools.TranscodeTimeout)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  METRICS_PORT:        %s", cfg.MetricsPort)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dirs := []struct {
		path *string
		name string
	}{
		{&cfg.VideoDir, "video"},
		{&cfg.ImageDir, "image"},
		{&cfg.DocumentDir, "document"},
		{&cfg.ThumbnailDir, "thumbnail"},
	}
	for _, d := range dirs {
		abs, err := filepath.Abs(*d.path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s directory path: %w", d.name, err)
		}
		*d.path = abs

		if err := ensureDirectory(abs, d.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", d.name, err)
		}
		if err := testWriteAccess(abs); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", d.name, err)
		}
		logging.Info("  [OK] %-9s %s", d.name, abs)
	}

	if cfg.Database.Driver == "sqlite3" {
		if err := ensureDirectory(filepath.Dir(cfg.Database.URL), "database"); err != nil {
			return nil, fmt.Errorf("database directory error: %w", err)
		}
	}

	return cfg, nil
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogTranscoderInit checks ffmpeg and ffprobe. Missing tools are never fatal;
// the pipeline degrades to placeholders and skipped conversions.
func LogTranscoderInit(tc transcoder.Transcoder, tools ToolsConfig) bool {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if err := tc.Available(); err != nil {
		logging.Warn("  %v", err)
		logging.Warn("  Normalization, conversion and video thumbnails will be skipped")
		return false
	}

	if err := checkFFmpeg(tools.FFmpegPath); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Video processing may not work correctly")
		return true
	}
	logging.Info("  [OK] FFmpeg is available")
	return true
}

// LogConverterInit logs converter daemon settings before it starts.
func LogConverterInit(dir string, cfg ConverterConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CONVERTER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Watching:       %s", dir)
	logging.Info("  Converting:     %s -> %s", cfg.LegacyExtension, cfg.TargetExtension)
	logging.Info("  Poll interval:  %v", cfg.PollInterval)
	if cfg.ReconcileSchedule == "" {
		logging.Info("  Reconcile:      DISABLED")
	} else {
		logging.Info("  Reconcile:      %s", cfg.ReconcileSchedule)
	}
	logging.Info("  Starting converter...")
}

// LogConverterStarted logs successful converter start
func LogConverterStarted() {
	logging.Info("  [OK] Converter started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the ops endpoints at debug level.
func LogHTTPRoutes(router *mux.Router) {
	if !logging.IsDebugEnabled() {
		return
	}

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })

	logging.Debug("  Registered routes (%d total):", len(routes))
	for _, route := range routes {
		logging.Debug("    %-6s %s", route.Method, route.Path)
	}
}

// ServerConfig holds configuration for the startup summary
type ServerConfig struct {
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the end of startup with ops endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DAEMON STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://0.0.0.0:%s/metrics", config.MetricsPort)
		logging.Info("  Health:          http://0.0.0.0:%s/healthz", config.MetricsPort)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(reason string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (%s)", reason)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
                    _ _            _ _ _
   _ __ ___   ___  __| (_) __ _     | (_) |_ ___
  | '_ ' _ \ / _ \/ _' | |/ _' |____| | | __/ _ \
  | | | | | |  __/ (_| | | (_| |____| | | ||  __/
  |_| |_| |_|\___|\__,_|_|\__,_|    |_|_|\__\___|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	if logging.IsDebugEnabled() {
		if entries, err := os.ReadDir(path); err == nil {
			logging.Debug("    Contents: %d entries (top level)", len(entries))
		}
	}

	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg(bin string) error {
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", bin)
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// #nosec G204 -- binary comes from configuration
	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	if first, _, _ := strings.Cut(string(output), "\n"); first != "" {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(first))
	}
	return nil
}
