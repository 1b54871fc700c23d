// Package startup handles configuration loading and the sectioned
// startup/shutdown log output of the converter daemon and tools.
//
// # Configuration
//
// [ReadConfig] fills a [Config] with cleanenv. When MEDIA_LITE_CONFIG names a
// YAML file it is read first; environment variables always override it.
//
//   - VIDEO_DIR, IMAGE_DIR, DOCUMENT_DIR, THUMBNAIL_DIR: media roots (default: static/...)
//   - DATABASE_DRIVER: sqlite3 or postgres (default: sqlite3)
//   - DATABASE_URL: sqlite file path or postgres DSN (default: static/media.db)
//   - POLL_INTERVAL: converter scan interval (default: 5s)
//   - SETTLE_AGE: minimum age of a legacy file before conversion (default: 10s)
//   - LEGACY_EXTENSION, TARGET_EXTENSION: conversion pair (default: .mov, .mp4)
//   - RECONCILE_SCHEDULE: cron schedule for catalog reconciliation, empty disables (default: @every 10m)
//   - WATCH_ENABLED: wake the converter on fsnotify events (default: true)
//   - TEMP_MAX_AGE: age after which orphaned temp files are swept (default: 1h)
//   - ROTATION_POLICY: portrait or metadata (default: portrait)
//   - FFMPEG_PATH, FFPROBE_PATH, PROBE_TIMEOUT, TRANSCODE_TIMEOUT, FRAME_TIMEOUT, KILL_GRACE
//   - METRICS_ENABLED, METRICS_PORT: ops endpoint (default: true, 9090)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//
// [LoadConfig] additionally prints the banner, resolves every directory to an
// absolute path, creates it if missing and checks it is writable.
package startup
