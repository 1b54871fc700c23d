package media

import (
	"errors"

	"media-lite/internal/metrics"
	"media-lite/internal/transcoder"
)

// ErrCatalogInconsistency marks a catalog update that failed after the
// matching file system change had already been committed.
var ErrCatalogInconsistency = errors.New("catalog out of sync with storage")

// Error kinds used in logs and metric labels.
const (
	KindToolMissing          = "tool_missing"
	KindToolFailure          = "tool_failure"
	KindMetadataParse        = "metadata_parse"
	KindFilesystem           = "filesystem"
	KindCatalogInconsistency = "catalog_inconsistency"
)

// ErrorKind classifies err into one of the pipeline error kinds. Anything not
// recognized is treated as a filesystem error.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, transcoder.ErrToolMissing):
		return KindToolMissing
	case errors.Is(err, transcoder.ErrToolFailure), errors.Is(err, transcoder.ErrTimeout):
		return KindToolFailure
	case errors.Is(err, transcoder.ErrMetadataParse), errors.Is(err, ErrUnsupportedRotation):
		return KindMetadataParse
	case errors.Is(err, ErrCatalogInconsistency):
		return KindCatalogInconsistency
	default:
		return KindFilesystem
	}
}

// RecordFailure counts err against component and returns its kind.
func RecordFailure(component string, err error) string {
	return recordFailure(component, err)
}

func recordFailure(component string, err error) string {
	kind := ErrorKind(err)
	metrics.PipelineErrors.WithLabelValues(component, kind).Inc()
	return kind
}
