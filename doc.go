// Package main runs the media-lite converter daemon.
//
// The daemon watches the video directory for clips in the legacy container
// (".mov" by default), re-encodes each one into the target container with
// rotation baked into the pixels, removes the original and renames the clip's
// category association in the catalog so the asset keeps its place.
//
// # Application Lifecycle
//
//  1. Configuration Loading: reads the optional YAML file named by
//     MEDIA_LITE_CONFIG, then the environment, and prepares the storage
//     directories
//  2. Database Initialization: opens the catalog (SQLite by default,
//     PostgreSQL via DATABASE_DRIVER) and applies embedded migrations
//  3. Component Initialization:
//     - Transcoder: ffmpeg/ffprobe with per-call timeouts; a missing binary is
//     reported, not fatal
//     - Thumbnail Generator: ensures the placeholder and initializes libvips
//     - Converter: sweeps orphaned temp files, scans, then polls, reacts to
//     directory events and runs the scheduled reconciliation
//  4. Ops Server: health, readiness, version, metrics and converter control
//     on METRICS_PORT
//  5. Graceful Shutdown: SIGINT/SIGTERM cancels the converter, kills any
//     running ffmpeg process group and drains the ops server
//
// # Ops Endpoints
//
//	GET  /healthz                  catalog, tools and converter state
//	GET  /livez                    liveness
//	GET  /readyz                   converter running and catalog reachable
//	GET  /version                  build information
//	GET  /metrics                  Prometheus metrics
//	GET  /api/converter            converter status and last scan
//	POST /api/converter/scan       request an early scan
//	POST /api/converter/reconcile  repair catalog rows left by failed renames
//
// Companion tools live under cmd/: thumbgen backfills thumbnails, fixrotation
// re-encodes clips by their rotation metadata, and ingest stores files through
// the same path as uploads.
package main
