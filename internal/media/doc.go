// Package media implements the ingestion pipeline for stored assets:
// orientation analysis, rotation normalization and thumbnail generation.
//
// The Analyzer classifies a video as landscape, portrait or square from its
// probed dimensions and rotation metadata.
//
// The Normalizer bakes rotation into pixels when the configured
// RotationPolicy asks for it. Output goes to a pending sibling file that is
// checked and atomically renamed over the original, so a failed run never
// changes the source.
//
// The ThumbnailGenerator produces 320x240 JPEG previews: videos from a frame
// three seconds in, images after applying EXIF orientation. Both are fitted
// without upscaling and centered on a white canvas. When generation fails
// callers serve the shared placeholder from EnsurePlaceholder.
package media
