package media

import (
	"context"

	"media-lite/internal/logging"
	"media-lite/internal/metrics"
	"media-lite/internal/transcoder"
)

// Orientation is the displayed shape of a video.
type Orientation int

const (
	OrientationUnknown Orientation = iota
	OrientationLandscape
	OrientationPortrait
	OrientationSquare
)

func (o Orientation) String() string {
	switch o {
	case OrientationLandscape:
		return "landscape"
	case OrientationPortrait:
		return "portrait"
	case OrientationSquare:
		return "square"
	default:
		return "unknown"
	}
}

// quarterTurn reports whether rotation is an odd multiple of 90 degrees.
func quarterTurn(rotation int) bool {
	if rotation < 0 {
		rotation = -rotation
	}
	r := rotation % 360
	return r == 90 || r == 270
}

// EffectiveDimensions returns the width and height a player displays after
// honoring rotation metadata.
func EffectiveDimensions(p transcoder.ProbeResult) (width, height int) {
	if quarterTurn(p.Rotation) {
		return p.Height, p.Width
	}
	return p.Width, p.Height
}

// ClassifyDimensions classifies a probe result. Non-positive dimensions are
// unknown.
func ClassifyDimensions(p transcoder.ProbeResult) Orientation {
	w, h := EffectiveDimensions(p)
	switch {
	case w <= 0 || h <= 0:
		return OrientationUnknown
	case w > h:
		return OrientationLandscape
	case h > w:
		return OrientationPortrait
	default:
		return OrientationSquare
	}
}

// Analyzer classifies stored videos by probing them.
type Analyzer struct {
	tc transcoder.Transcoder
}

// NewAnalyzer creates an Analyzer backed by tc.
func NewAnalyzer(tc transcoder.Transcoder) *Analyzer {
	return &Analyzer{tc: tc}
}

// Classify never fails: any probe problem yields OrientationUnknown.
func (a *Analyzer) Classify(ctx context.Context, path string) Orientation {
	res, err := a.tc.Probe(ctx, path)
	if err != nil {
		kind := recordFailure("analyzer", err)
		logging.Debug("Orientation probe failed for %s (%s): %v", path, kind, err)
		metrics.OrientationClassifications.WithLabelValues(OrientationUnknown.String()).Inc()
		return OrientationUnknown
	}
	o := ClassifyDimensions(res)
	metrics.OrientationClassifications.WithLabelValues(o.String()).Inc()
	return o
}

// ClassifyOrLandscape is Classify with unknown mapped to landscape, which is
// what layout code assumes when nothing better is known.
func (a *Analyzer) ClassifyOrLandscape(ctx context.Context, path string) Orientation {
	if o := a.Classify(ctx, path); o != OrientationUnknown {
		return o
	}
	return OrientationLandscape
}
