// Package recognition provides face detection, alignment, embedding
// and identity matching. Detection and embedding use dlib via go-face;
// matching is nearest-neighbour search over the enrolled gallery with
// a runtime-adjustable distance threshold.
package recognition

import (
	"errors"

	"github.com/Kagami/go-face"

	"github.com/MrCodeEU/facelock/pkg/geometry"
)

// Descriptor is a 128-dimensional face descriptor from dlib.
type Descriptor = face.Descriptor

// FaceCandidate is one detected face in a frame: a bounding box plus
// 5 ordered keypoints (left eye, right eye, nose tip, left mouth
// corner, right mouth corner). Candidates are frame-scoped; they carry
// no identity across frames.
type FaceCandidate struct {
	Box       geometry.Rect
	Keypoints [5]geometry.Point
}

// Centroid returns the center of the candidate's bounding box.
func (c FaceCandidate) Centroid() geometry.Point {
	return c.Box.Centroid()
}

// IdentityMatch is the result of matching one embedding against the
// enrolled gallery. Identity is empty when nothing was enrolled or the
// nearest neighbour is unknown; Accepted is true when Distance is
// below the matcher threshold.
type IdentityMatch struct {
	Identity string
	Distance float64
	Accepted bool
}

// ErrNoFaceDetected is returned when no face is found in the image.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrModelNotLoaded is returned when the dlib models are not loaded.
var ErrModelNotLoaded = errors.New("recognition models not loaded")
