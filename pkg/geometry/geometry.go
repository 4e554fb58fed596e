// Package geometry provides the facial geometry primitives used for
// action detection: eye and mouth aspect ratios and face centroids.
// All ratios are dimensionless, so they are independent of face scale
// and camera distance.
package geometry

import "math"

// epsilon guards the ratio denominators against degenerate detections
// where landmark points collapse onto each other.
const epsilon = 1e-6

// Point represents a 2D point in pixel coordinates.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned bounding box given by two corners.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// Centroid returns the center point of the rectangle.
func (r Rect) Centroid() Point {
	return Point{
		X: (r.X1 + r.X2) / 2.0,
		Y: (r.Y1 + r.Y2) / 2.0,
	}
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 { return r.X2 - r.X1 }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 { return r.Y2 - r.Y1 }

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// EyeAspectRatio calculates the Eye Aspect Ratio (EAR) from 6 eye
// landmarks ordered p0..p5: p0/p3 are the horizontal corners, p1/p5
// and p2/p4 are the vertical pairs. Low values indicate a closed eye.
func EyeAspectRatio(eye []Point) float64 {
	v1 := Distance(eye[1], eye[5])
	v2 := Distance(eye[2], eye[4])
	h := Distance(eye[0], eye[3])
	return (v1 + v2) / (2.0*h + epsilon)
}

// AverageEAR returns the mean EAR over the left and right eye.
func AverageEAR(left, right []Point) float64 {
	return (EyeAspectRatio(left) + EyeAspectRatio(right)) / 2.0
}

// MouthAspectRatio calculates the Mouth Aspect Ratio (MAR) from 6
// mouth landmarks: p0/p1 are the mouth corners, p2/p3 the vertical
// opening pair. High values indicate an open or smiling mouth.
func MouthAspectRatio(mouth []Point) float64 {
	v := Distance(mouth[2], mouth[3])
	h := Distance(mouth[0], mouth[1])
	return v / (h + epsilon)
}
