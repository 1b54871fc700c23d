// Package metrics provides Prometheus instrumentation for media-lite.
//
// All collectors are registered with promauto at package init and are
// prefixed with "media_lite_".
//
// # Metric Categories
//
// ## External Tools
//
//   - ToolInvocationsTotal: ffmpeg/ffprobe runs by operation and status
//   - ToolDuration: histogram of tool run time
//   - ToolProcessesActive: gauge of running child processes
//
// ## Normalization and Thumbnails
//
//   - NormalizeTotal: normalization attempts by result
//   - NormalizeDuration: histogram of normalization time
//   - OrientationClassifications: analyzer results
//   - ThumbnailGenerationsTotal / ThumbnailGenerationDuration: by type and status
//   - ThumbnailPlaceholderServed: placeholder fallbacks
//
// ## Converter Daemon
//
//   - ConverterScansTotal, ConverterLastScanTimestamp, ConverterLastScanDuration
//   - ConverterFilesTotal: legacy files by outcome
//   - ConverterWatcherEvents: fsnotify events that woke the daemon
//   - CatalogInconsistenciesTotal: catalog updates that failed after the
//     file move was committed
//   - ReconcileRenamesTotal: associations repaired by the reconcile job
//
// ## Library, HTTP and Memory
//
//   - LibraryOperationsTotal / LibraryBytesStored: store and delete outcomes
//   - HTTPRequestsTotal / HTTPRequestDuration / HTTPRequestsInFlight: ops listener
//   - GoMemLimit, MemoryUsageRatio, MemoryPaused, MemoryPausesTotal: set by
//     the memory package
//
// ## Database and Filesystem
//
//   - DBQueryTotal / DBQueryDuration / DBConnectionsOpen
//   - Filesystem*: operation timings and ESTALE retry counters, recorded via
//     the filesystem.Observer implementation returned by NewFilesystemObserver
//
// # Usage
//
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//	metrics.InitializeMetrics()
//	router.Handle("/metrics", promhttp.Handler())
package metrics
