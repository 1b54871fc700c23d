/*
Package filesystem wraps os.Stat, os.Open and os.ReadDir with retry logic for
NFS stale file handle (ESTALE) errors.

Media directories are often network mounts shared between the upload service
and the converter daemon; a rename on one host can leave the other holding a
stale handle for a short time.

# Usage

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	exists, err := filesystem.Exists(target, filesystem.DefaultRetryConfig())

Only ESTALE is retried. All other errors are returned on the first attempt.
Backoff doubles from InitialBackoff up to MaxBackoff.

# Metrics

Operations report through an Observer set with SetObserver. The metrics
package provides the Prometheus-backed implementation; with no observer set
recording is skipped. Volume labels come from a VolumeResolver mapping
configured directories to names such as "videos" or "thumbnails".
*/
package filesystem
