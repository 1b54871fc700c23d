package mediatypes

import "testing"

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		file string
		want Kind
	}{
		{"mp4", "clip.mp4", KindVideo},
		{"legacy mov uppercase", "CLIP.MOV", KindVideo},
		{"mkv", "a.b.mkv", KindVideo},
		{"jpeg", "photo.jpeg", KindImage},
		{"png uppercase", "PHOTO.PNG", KindImage},
		{"webp decodable", "x.webp", KindImage},
		{"pdf", "report.pdf", KindDocument},
		{"unknown", "archive.zip", KindOther},
		{"no extension", "README", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.file); got != tt.want {
				t.Errorf("KindOf(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}

func TestUploadValidation(t *testing.T) {
	if !IsValidVideo("a.MOV") {
		t.Error("expected .MOV to be a valid video upload")
	}
	if IsValidVideo("a.webm") {
		t.Error("expected .webm to be rejected")
	}
	if !IsValidImage("a.gif") {
		t.Error("expected .gif to be a valid image upload")
	}
	if IsValidImage("a.bmp") {
		t.Error("bmp is decodable but not an accepted upload")
	}
}

func TestGetMimeType(t *testing.T) {
	tests := map[string]string{
		".mp4":  "video/mp4",
		".mov":  "video/quicktime",
		".jpg":  "image/jpeg",
		".pdf":  "application/pdf",
		".xyz":  "application/octet-stream",
		"":      "application/octet-stream",
	}
	for ext, want := range tests {
		if got := GetMimeType(ext); got != want {
			t.Errorf("GetMimeType(%q) = %q, want %q", ext, got, want)
		}
	}
}

func TestKindPredicates(t *testing.T) {
	if !KindVideo.HasThumbnail() || !KindImage.HasThumbnail() {
		t.Error("videos and images should have thumbnails")
	}
	if KindDocument.HasThumbnail() {
		t.Error("documents should not have thumbnails")
	}
	if KindOther.Valid() {
		t.Error("KindOther is not a stored kind")
	}
}
