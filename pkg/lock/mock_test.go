package lock

import (
	"math"

	"github.com/MrCodeEU/facelock/pkg/action"
	"github.com/MrCodeEU/facelock/pkg/camera"
	"github.com/MrCodeEU/facelock/pkg/geometry"
	"github.com/MrCodeEU/facelock/pkg/recognition"
)

// fakeEmbedder tags each descriptor with the candidate's first
// keypoint so the matcher can tell candidates apart, and counts calls
// so tests can assert the spatial gate kept a candidate out of the
// expensive path.
type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ camera.Frame, kps [5]geometry.Point) (recognition.Descriptor, error) {
	f.calls++
	if f.err != nil {
		return recognition.Descriptor{}, f.err
	}
	var d recognition.Descriptor
	d[0] = float32(kps[0].X)
	d[1] = float32(kps[0].Y)
	return d, nil
}

// fakeMatcher returns the match registered for the descriptor's tag,
// falling back to a default for untagged descriptors.
type fakeMatcher struct {
	fallback recognition.IdentityMatch
	matches  map[float32]recognition.IdentityMatch
}

func (f *fakeMatcher) Match(d recognition.Descriptor) recognition.IdentityMatch {
	if m, ok := f.matches[d[0]]; ok {
		return m
	}
	return f.fallback
}

// matcherAccepting accepts every probe as the given identity.
func matcherAccepting(identity string, distance float64) *fakeMatcher {
	return &fakeMatcher{fallback: recognition.IdentityMatch{
		Identity: identity,
		Distance: distance,
		Accepted: true,
	}}
}

// matcherRejecting accepts nothing.
func matcherRejecting() *fakeMatcher {
	return &fakeMatcher{fallback: recognition.IdentityMatch{Distance: math.MaxFloat64}}
}

// scriptedLandmarker plays back one landmark set per call and reports
// a soft miss once the script runs out.
type scriptedLandmarker struct {
	script []*action.Landmarks
	err    error
}

func (f *scriptedLandmarker) Landmarks(camera.Frame, geometry.Rect) (*action.Landmarks, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.script) == 0 {
		return nil, nil
	}
	lm := f.script[0]
	f.script = f.script[1:]
	return lm, nil
}

// candAt builds a 100x100 candidate centered at (x, y), tagged for the
// fake embedder through its first keypoint.
func candAt(x, y float64) recognition.FaceCandidate {
	c := recognition.FaceCandidate{
		Box: geometry.Rect{X1: x - 50, Y1: y - 50, X2: x + 50, Y2: y + 50},
	}
	c.Keypoints[0] = geometry.Point{X: x, Y: y}
	return c
}

// eyePoints builds 6 eye landmarks producing exactly the given EAR.
func eyePoints(ear float64) []geometry.Point {
	return []geometry.Point{
		{X: 0, Y: 0},
		{X: 0.3, Y: -ear / 2},
		{X: 0.7, Y: -ear / 2},
		{X: 1, Y: 0},
		{X: 0.7, Y: ear / 2},
		{X: 0.3, Y: ear / 2},
	}
}

// mouthPoints builds 6 mouth landmarks producing exactly the given MAR.
func mouthPoints(mar float64) []geometry.Point {
	return []geometry.Point{
		{X: 0, Y: 0},
		{X: 1, Y: 0},
		{X: 0.5, Y: -mar / 2},
		{X: 0.5, Y: mar / 2},
		{X: 0.25, Y: 0},
		{X: 0.75, Y: 0},
	}
}

func landmarksWith(ear, mar float64) *action.Landmarks {
	return &action.Landmarks{
		LeftEye:  eyePoints(ear),
		RightEye: eyePoints(ear),
		Mouth:    mouthPoints(mar),
	}
}
