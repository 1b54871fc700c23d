package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	volumes := []string{"videos", "images", "documents", "thumbnails", "unknown"}
	fsOps := []string{"stat", "open", "readdir", "write"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"probe", "transcode", "extract_frame"} {
		tool := "ffmpeg"
		if op == "probe" {
			tool = "ffprobe"
		}
		ToolDuration.WithLabelValues(tool, op)
		for _, status := range []string{"success", "error", "timeout", "missing"} {
			ToolInvocationsTotal.WithLabelValues(tool, op, status)
		}
	}

	for _, result := range []string{"rotated", "unchanged", "probe_failed", "transcode_failed", "verify_failed", "replace_failed"} {
		NormalizeTotal.WithLabelValues(result)
	}

	for _, o := range []string{"landscape", "portrait", "square", "unknown"} {
		OrientationClassifications.WithLabelValues(o)
	}

	for _, t := range []string{"image", "video"} {
		ThumbnailGenerationDuration.WithLabelValues(t)
		for _, status := range []string{"success", "error", "error_decode", "error_encode", "error_tool"} {
			ThumbnailGenerationsTotal.WithLabelValues(t, status)
		}
	}

	for _, format := range []string{"jpeg", "png", "gif", "webp", "bmp", "tiff", "unknown"} {
		ThumbnailImageDecodeByFormat.WithLabelValues(format)
	}

	for _, result := range []string{"converted", "skipped_exists", "skipped_settling", "failed", "catalog_failed"} {
		ConverterFilesTotal.WithLabelValues(result)
	}
	for _, op := range []string{"create", "write", "rename", "remove", "chmod", "unknown"} {
		ConverterWatcherEvents.WithLabelValues(op)
	}
	for _, kind := range []string{"video", "image", "document"} {
		LibraryBytesStored.WithLabelValues(kind)
		for _, op := range []string{"store", "delete"} {
			for _, result := range []string{"success", "error"} {
				LibraryOperationsTotal.WithLabelValues(op, kind, result)
			}
		}
	}
	for _, src := range []string{"converter", "library", "reconcile"} {
		CatalogInconsistenciesTotal.WithLabelValues(src)
	}

	for _, component := range []string{"analyzer", "normalizer", "thumbnail", "converter", "library"} {
		for _, kind := range []string{"tool_missing", "tool_failure", "metadata_parse", "filesystem", "catalog_inconsistency"} {
			PipelineErrors.WithLabelValues(component, kind)
		}
	}
}
