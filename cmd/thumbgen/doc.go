/*
Thumbgen backfills thumbnails for stored videos and images.

It walks the configured video and image directories and renders a 320x240
letterboxed JPEG for every asset that has no thumbnail yet. Work runs on a
bounded worker pool sized by internal/workers.

Usage:

	thumbgen [-force] [-kind video|image|all] [-workers N]

Flags:

	-force    regenerate thumbnails that already exist
	-kind     restrict the pass to one kind (default all)
	-workers  parallel workers (default: 1.5 per CPU, or MEDIA_LITE_WORKERS)

Configuration is read from the same environment variables as the daemon
(VIDEO_DIR, IMAGE_DIR, THUMBNAIL_DIR, FFMPEG_PATH, ...). The exit status is 1
when any thumbnail failed.
*/
package main
