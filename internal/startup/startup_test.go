package startup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-lite/internal/media"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestReadConfigDefaults(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")

	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.VideoDir != "static/videos" {
		t.Errorf("VideoDir = %q", cfg.VideoDir)
	}
	if cfg.Converter.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.Converter.PollInterval)
	}
	if cfg.Converter.LegacyExtension != ".mov" || cfg.Converter.TargetExtension != ".mp4" {
		t.Errorf("extensions = %q -> %q", cfg.Converter.LegacyExtension, cfg.Converter.TargetExtension)
	}
	if cfg.Policy != media.PolicyPortrait {
		t.Errorf("Policy = %q, want portrait", cfg.Policy)
	}
	if cfg.Tools.KillGrace != 5*time.Second {
		t.Errorf("KillGrace = %v", cfg.Tools.KillGrace)
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Driver = %q", cfg.Database.Driver)
	}
}

func TestReadConfigEnvironment(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("ROTATION_POLICY", "metadata")
	t.Setenv("LEGACY_EXTENSION", "AVI")
	t.Setenv("TRANSCODE_TIMEOUT", "2m")
	t.Setenv("WATCH_ENABLED", "false")

	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.Converter.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.Converter.PollInterval)
	}
	if cfg.Policy != media.PolicyMetadata {
		t.Errorf("Policy = %q, want metadata", cfg.Policy)
	}
	if cfg.Converter.LegacyExtension != ".avi" {
		t.Errorf("LegacyExtension = %q, want .avi", cfg.Converter.LegacyExtension)
	}
	if cfg.Converter.WatchEnabled {
		t.Error("WatchEnabled should be false")
	}
	if got := cfg.TranscoderConfig().TranscodeTimeout; got != 2*time.Minute {
		t.Errorf("TranscoderConfig().TranscodeTimeout = %v", got)
	}
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "media-lite.yaml")
	yaml := `
video_dir: /srv/videos
rotation_policy: metadata
converter:
  poll_interval: 1m
database:
  driver: postgres
  url: postgres://media@localhost/media
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("VIDEO_DIR", "/override/videos")

	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.VideoDir != "/override/videos" {
		t.Errorf("environment should override the file, VideoDir = %q", cfg.VideoDir)
	}
	if cfg.Converter.PollInterval != time.Minute {
		t.Errorf("PollInterval = %v, want 1m from file", cfg.Converter.PollInterval)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Driver = %q", cfg.Database.Driver)
	}
	if cfg.Policy != media.PolicyMetadata {
		t.Errorf("Policy = %q", cfg.Policy)
	}
	if cfg.ImageDir != "static/images" {
		t.Errorf("unset fields keep defaults, ImageDir = %q", cfg.ImageDir)
	}
}

func TestReadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad policy", map[string]string{"ROTATION_POLICY": "sideways"}, "rotation policy"},
		{"bad driver", map[string]string{"DATABASE_DRIVER": "mysql"}, "DATABASE_DRIVER"},
		{"same extensions", map[string]string{"LEGACY_EXTENSION": ".mp4"}, "both"},
		{"zero poll", map[string]string{"POLL_INTERVAL": "0s"}, "POLL_INTERVAL"},
		{"negative settle", map[string]string{"SETTLE_AGE": "-1s"}, "SETTLE_AGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ConfigFileEnv, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := ReadConfig()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ReadConfig() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfigCreatesDirectories(t *testing.T) {
	root := t.TempDir()
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("VIDEO_DIR", filepath.Join(root, "videos"))
	t.Setenv("IMAGE_DIR", filepath.Join(root, "images"))
	t.Setenv("DOCUMENT_DIR", filepath.Join(root, "documents"))
	t.Setenv("THUMBNAIL_DIR", filepath.Join(root, "thumbnails"))
	t.Setenv("DATABASE_URL", filepath.Join(root, "db", "media.db"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	for _, dir := range []string{cfg.VideoDir, cfg.ImageDir, cfg.DocumentDir, cfg.ThumbnailDir, filepath.Join(root, "db")} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
		if _, err := os.Stat(filepath.Join(dir, ".write-test")); !os.IsNotExist(err) {
			t.Errorf("write test file left behind in %s", dir)
		}
	}
}

func TestEnsureDirectoryRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureDirectory(path, "video"); err == nil {
		t.Error("expected error for a regular file")
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", nil).Methods("GET").Name("health")
	router.Handle("/metrics", nil)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("got %d routes, want 2", len(routes))
	}
	if routes[0] != (RouteInfo{Method: "GET", Path: "/healthz", Name: "health"}) {
		t.Errorf("routes[0] = %+v", routes[0])
	}
	if routes[1].Method != "*" {
		t.Errorf("route without methods should report *, got %q", routes[1].Method)
	}
}
