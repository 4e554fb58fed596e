package recognition

import (
	"github.com/MrCodeEU/facelock/pkg/action"
	"github.com/MrCodeEU/facelock/pkg/camera"
	"github.com/MrCodeEU/facelock/pkg/geometry"
)

// BoxLandmarker synthesizes the eye and mouth landmark sets from the
// face box alone, using the same facial proportions as
// EstimateKeypoints. It keeps centroid-based movement detection
// working without a face-mesh backend; the synthesized openness is
// fixed (EAR 0.30, MAR 0.20), so blink and smile events require a
// mesh-capable Landmarker.
type BoxLandmarker struct{}

var _ action.Landmarker = BoxLandmarker{}

// Landmarks derives the landmark sets for the given face region.
// A degenerate region reads as no face found.
func (BoxLandmarker) Landmarks(_ camera.Frame, region geometry.Rect) (*action.Landmarks, error) {
	w := region.Width()
	h := region.Height()
	if w <= 0 || h <= 0 {
		return nil, nil
	}

	eyeSpan := 0.18 * w
	eyeY := region.Y1 + 0.40*h
	mouthY := region.Y1 + 0.80*h
	centerX := region.X1 + 0.50*w

	return &action.Landmarks{
		LeftEye:  synthEye(region.X1+0.30*w, eyeY, eyeSpan),
		RightEye: synthEye(region.X1+0.70*w, eyeY, eyeSpan),
		Mouth:    synthMouth(centerX, mouthY, 0.30*w),
	}, nil
}

// synthEye builds 6 eye points centered at (cx, cy) whose vertical
// opening is 30% of the horizontal span.
func synthEye(cx, cy, span float64) []geometry.Point {
	opening := 0.30 * span
	return []geometry.Point{
		{X: cx - span/2, Y: cy},
		{X: cx - 0.2*span, Y: cy - opening/2},
		{X: cx + 0.2*span, Y: cy - opening/2},
		{X: cx + span/2, Y: cy},
		{X: cx + 0.2*span, Y: cy + opening/2},
		{X: cx - 0.2*span, Y: cy + opening/2},
	}
}

// synthMouth builds 6 mouth points whose opening is 20% of the width.
func synthMouth(cx, cy, width float64) []geometry.Point {
	opening := 0.20 * width
	return []geometry.Point{
		{X: cx - width/2, Y: cy},
		{X: cx + width/2, Y: cy},
		{X: cx, Y: cy - opening/2},
		{X: cx, Y: cy + opening/2},
		{X: cx - width/4, Y: cy},
		{X: cx + width/4, Y: cy},
	}
}
