package media

import (
	"errors"
	"fmt"
	"strings"

	"media-lite/internal/transcoder"
)

// ErrUnsupportedRotation is returned by the metadata policy for rotation
// values that are not a multiple of 90 degrees within ±270.
var ErrUnsupportedRotation = errors.New("unsupported rotation value")

// RotationPolicy decides whether a video needs its rotation baked into pixels.
// Both the upload normalizer and the converter daemon use the same policy.
type RotationPolicy string

const (
	// PolicyPortrait turns displayed-portrait videos 90 degrees clockwise and
	// leaves everything else alone. The decoder applies rotation metadata
	// first, so the filter acts on the displayed picture.
	PolicyPortrait RotationPolicy = "portrait"
	// PolicyMetadata maps the raw rotation value to a transpose on the
	// undecorated stream: 90/-270 counter-clockwise, -90/270 clockwise,
	// ±180 twice.
	PolicyMetadata RotationPolicy = "metadata"
)

// ParseRotationPolicy accepts "portrait" or "metadata" (case-insensitive).
// The empty string selects PolicyPortrait.
func ParseRotationPolicy(s string) (RotationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicyPortrait):
		return PolicyPortrait, nil
	case string(PolicyMetadata):
		return PolicyMetadata, nil
	}
	return "", fmt.Errorf("unknown rotation policy %q (want portrait or metadata)", s)
}

// Plan is the outcome of a policy decision.
type Plan struct {
	Transform    transcoder.Transform
	NoAutoRotate bool
}

// Needed reports whether the plan requires re-encoding pixels.
func (p Plan) Needed() bool {
	return p.Transform != transcoder.TransformNone
}

// Operation converts the plan into a transcode operation for format.
func (p Plan) Operation(format string) transcoder.Operation {
	return transcoder.Operation{
		Transform:    p.Transform,
		Format:       format,
		NoAutoRotate: p.NoAutoRotate,
	}
}

// Expect predicts the probe result of the re-encoded output.
func (p Plan) Expect(in transcoder.ProbeResult) transcoder.ProbeResult {
	out := in
	if !p.NoAutoRotate {
		out.Width, out.Height = EffectiveDimensions(in)
	}
	if p.Transform.SwapsDimensions() {
		out.Width, out.Height = out.Height, out.Width
	}
	out.Rotation = 0
	return out
}

// Plan decides the transform for a probed video.
func (rp RotationPolicy) Plan(res transcoder.ProbeResult) (Plan, error) {
	switch rp {
	case PolicyMetadata:
		return metadataPlan(res.Rotation)
	case PolicyPortrait, "":
		if ClassifyDimensions(res) == OrientationPortrait {
			return Plan{Transform: transcoder.TransformRotateCW}, nil
		}
		return Plan{}, nil
	}
	return Plan{}, fmt.Errorf("unknown rotation policy %q", string(rp))
}

func metadataPlan(rotation int) (Plan, error) {
	switch rotation {
	case 0:
		return Plan{}, nil
	case 90, -270:
		return Plan{Transform: transcoder.TransformRotateCCW, NoAutoRotate: true}, nil
	case -90, 270:
		return Plan{Transform: transcoder.TransformRotateCW, NoAutoRotate: true}, nil
	case 180, -180:
		return Plan{Transform: transcoder.TransformRotate180, NoAutoRotate: true}, nil
	}
	return Plan{}, fmt.Errorf("%w: %d", ErrUnsupportedRotation, rotation)
}
