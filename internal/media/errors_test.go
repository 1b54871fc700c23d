package media

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"media-lite/internal/transcoder"
)

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing tool", fmt.Errorf("probe: %w", transcoder.ErrToolMissing), KindToolMissing},
		{"tool exit", &transcoder.ToolError{Tool: "ffmpeg", ExitCode: 1}, KindToolFailure},
		{"timeout", fmt.Errorf("x: %w", transcoder.ErrTimeout), KindToolFailure},
		{"bad json", fmt.Errorf("x: %w", transcoder.ErrMetadataParse), KindMetadataParse},
		{"odd rotation", fmt.Errorf("x: %w", ErrUnsupportedRotation), KindMetadataParse},
		{"catalog", fmt.Errorf("rename: %w", ErrCatalogInconsistency), KindCatalogInconsistency},
		{"permission", os.ErrPermission, KindFilesystem},
		{"other", errors.New("disk on fire"), KindFilesystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorKind(tt.err); got != tt.want {
				t.Errorf("ErrorKind() = %q, want %q", got, tt.want)
			}
		})
	}
}
