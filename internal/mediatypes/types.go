package mediatypes

import (
	"path/filepath"
	"strings"
)

// Kind is the category of a stored asset.
type Kind string

const (
	// KindVideo represents a video asset.
	KindVideo Kind = "video"
	// KindImage represents an image asset.
	KindImage Kind = "image"
	// KindDocument represents a document asset. Documents get no thumbnail.
	KindDocument Kind = "document"
	// KindOther represents an unknown or unsupported file.
	KindOther Kind = "other"
)

// VideoExtensions maps file extensions to whether they are accepted video uploads.
var VideoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".avi": true,
	".mkv": true,
}

// ImageExtensions maps file extensions to whether they are accepted image uploads.
var ImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// DecodableImageExtensions lists image formats the thumbnail pipeline can
// decode in addition to the accepted upload formats.
var DecodableImageExtensions = map[string]bool{
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// DocumentExtensions maps file extensions to whether they are accepted document uploads.
var DocumentExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".doc":  true,
	".docx": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",

	".mp4": "video/mp4",
	".mkv": "video/x-matroska",
	".avi": "video/x-msvideo",
	".mov": "video/quicktime",

	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Ext returns the lowercase extension of name including the leading dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// GetKind returns the Kind for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
func GetKind(ext string) Kind {
	switch {
	case VideoExtensions[ext]:
		return KindVideo
	case ImageExtensions[ext], DecodableImageExtensions[ext]:
		return KindImage
	case DocumentExtensions[ext]:
		return KindDocument
	}
	return KindOther
}

// KindOf returns the Kind of a filename, matching its extension case-insensitively.
func KindOf(name string) Kind {
	return GetKind(Ext(name))
}

// IsValidVideo reports whether name carries an accepted video extension.
func IsValidVideo(name string) bool {
	return VideoExtensions[Ext(name)]
}

// IsValidImage reports whether name carries an accepted image extension.
func IsValidImage(name string) bool {
	return ImageExtensions[Ext(name)]
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// HasThumbnail reports whether assets of kind k get a generated preview.
func (k Kind) HasThumbnail() bool {
	return k == KindVideo || k == KindImage
}

// Valid reports whether k is one of the stored asset kinds.
func (k Kind) Valid() bool {
	return k == KindVideo || k == KindImage || k == KindDocument
}
