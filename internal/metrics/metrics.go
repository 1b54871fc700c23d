package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_db_queries_total",
			Help: "Total number of catalog database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_lite_db_query_duration_seconds",
			Help:    "Catalog database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_lite_db_connections_open",
			Help: "Number of open catalog database connections",
		},
	)
)

// External tool metrics
var (
	ToolInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_tool_invocations_total",
			Help: "Total number of ffmpeg/ffprobe invocations by operation and outcome",
		},
		[]string{"tool", "operation", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_lite_tool_duration_seconds",
			Help:    "Duration of ffmpeg/ffprobe invocations in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900, 1800},
		},
		[]string{"tool", "operation"},
	)

	ToolProcessesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_lite_tool_processes_active",
			Help: "Number of external tool processes currently running",
		},
	)
)

// Normalization metrics
var (
	NormalizeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_normalize_total",
			Help: "Total number of rotation normalization attempts by result",
		},
		[]string{"result"},
	)

	NormalizeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_lite_normalize_duration_seconds",
			Help:    "Duration of rotation normalization including re-encode",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 900, 1800},
		},
	)

	OrientationClassifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_orientation_classifications_total",
			Help: "Total number of orientation classifications by result",
		},
		[]string{"orientation"},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"type", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_lite_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	ThumbnailImageDecodeByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_thumbnail_image_decode_total",
			Help: "Images decoded for thumbnails by detected format",
		},
		[]string{"format"},
	)

	ThumbnailPlaceholderServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_lite_thumbnail_placeholder_served_total",
			Help: "Number of times the placeholder thumbnail was returned instead of a generated one",
		},
	)
)

// Converter daemon metrics
var (
	ConverterScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_lite_converter_scans_total",
			Help: "Total number of converter scan passes",
		},
	)

	ConverterLastScanTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_lite_converter_last_scan_timestamp_seconds",
			Help: "Unix timestamp of the last completed converter scan",
		},
	)

	ConverterLastScanDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_lite_converter_last_scan_duration_seconds",
			Help: "Duration of the last converter scan in seconds",
		},
	)

	ConverterFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_converter_files_total",
			Help: "Legacy files seen by the converter by outcome",
		},
		[]string{"result"},
	)

	ConverterIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_lite_converter_is_running",
			Help: "Whether a converter scan is currently running (1 = running, 0 = idle)",
		},
	)

	ConverterWatcherEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_converter_watcher_events_total",
			Help: "Filesystem events received by the converter watcher",
		},
		[]string{"op"},
	)

	ConverterWatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_lite_converter_watcher_errors_total",
			Help: "Errors reported by the converter directory watcher",
		},
	)

	CatalogInconsistenciesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_catalog_inconsistencies_total",
			Help: "Catalog updates that failed after the file system change was committed",
		},
		[]string{"source"},
	)

	ReconcileRenamesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_lite_reconcile_renames_total",
			Help: "Catalog associations repaired by the reconciliation job",
		},
	)
)

// Library metrics
var (
	LibraryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_library_operations_total",
			Help: "Stored and deleted assets by kind and result",
		},
		[]string{"operation", "kind", "result"},
	)

	LibraryBytesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_library_bytes_stored_total",
			Help: "Bytes written by uploads",
		},
		[]string{"kind"},
	)
)

// PipelineErrors counts boundary failures by taxonomy kind.
var PipelineErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "media_lite_pipeline_errors_total",
		Help: "Pipeline failures by component and error kind",
	},
	[]string{"component", "kind"},
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_lite_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_filesystem_retry_attempts_total",
			Help: "Retry attempts after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_lite_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_filesystem_stale_errors_total",
			Help: "ESTALE errors observed on network filesystems",
		},
		[]string{"operation", "volume"},
	)
)

// HTTP metrics for the ops listener
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_lite_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_lite_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_lite_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Memory metrics
var (
	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_lite_go_memlimit_bytes",
			Help: "Configured GOMEMLIMIT in bytes (0 if unset)",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_lite_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_lite_memory_paused",
			Help: "Whether thumbnail work is paused for memory pressure (1 = paused)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_lite_memory_pauses_total",
			Help: "Number of times work was paused for memory pressure",
		},
	)
)

// AppInfo exposes build metadata as labels.
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "media_lite_app_info",
		Help: "Application information",
	},
	[]string{"version", "go_version"},
)
