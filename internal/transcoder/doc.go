// Package transcoder wraps the external media tools (ffprobe and ffmpeg)
// behind the Transcoder interface.
//
// It provides:
//   - Probe: width, height and rotation of the first video stream
//   - Transcode: H.264/AAC re-encode with an optional rotation filter and
//     rotation metadata cleared
//   - ExtractFrame: a single JPEG frame at a given offset
//
// Each invocation runs under its own timeout. Tools are started in their own
// process group so a timed-out ffmpeg and any helpers it spawned receive
// SIGTERM, then SIGKILL after a grace period.
//
// Failures are classified with the sentinel errors ErrToolMissing,
// ErrToolFailure (via *ToolError), ErrTimeout and ErrMetadataParse.
//
// Tests that do not want to depend on ffmpeg use the fake in the
// transcodertest subpackage.
package transcoder
