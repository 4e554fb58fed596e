package recognition

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/MrCodeEU/facelock/pkg/geometry"
)

func TestSimilarityTransform_Identity(t *testing.T) {
	// Mapping the template onto itself must be the identity transform.
	m := similarityTransform(arcfaceTemplate, arcfaceTemplate)

	want := [6]float64{1, 0, 0, 0, 1, 0}
	for i, v := range want {
		if math.Abs(m[i]-v) > 1e-9 {
			t.Errorf("m[%d] = %f, want %f", i, m[i], v)
		}
	}
}

func TestSimilarityTransform_TranslationAndScale(t *testing.T) {
	// Source points are the template shifted by (100, 50) and doubled.
	var src [5]geometry.Point
	for i, p := range arcfaceTemplate {
		src[i] = geometry.Point{X: p.X*2 + 100, Y: p.Y*2 + 50}
	}

	m := similarityTransform(src, arcfaceTemplate)

	// Check that each source point maps back onto the template.
	for i, p := range src {
		x := m[0]*p.X + m[1]*p.Y + m[2]
		y := m[3]*p.X + m[4]*p.Y + m[5]
		if math.Abs(x-arcfaceTemplate[i].X) > 1e-6 || math.Abs(y-arcfaceTemplate[i].Y) > 1e-6 {
			t.Errorf("point %d mapped to (%f, %f), want (%f, %f)",
				i, x, y, arcfaceTemplate[i].X, arcfaceTemplate[i].Y)
		}
	}
}

func TestSimilarityTransform_Degenerate(t *testing.T) {
	p := geometry.Point{X: 10, Y: 10}
	m := similarityTransform([5]geometry.Point{p, p, p, p, p}, arcfaceTemplate)

	// Coincident keypoints fall back to identity rather than NaN.
	for i, v := range m {
		if math.IsNaN(v) {
			t.Fatalf("m[%d] is NaN", i)
		}
	}
	if m[0] != 1 || m[4] != 1 {
		t.Errorf("expected identity fallback, got %v", m)
	}
}

func TestAlign5pt(t *testing.T) {
	// A solid-colored source: the warp must produce a crop of the
	// requested size filled from the source.
	src := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	kps := EstimateKeypoints(geometry.Rect{X1: 40, Y1: 40, X2: 160, Y2: 160})
	aligned := Align5pt(src, kps, AlignedSize)

	bounds := aligned.Bounds()
	if bounds.Dx() != AlignedSize || bounds.Dy() != AlignedSize {
		t.Fatalf("expected %dx%d crop, got %dx%d", AlignedSize, AlignedSize, bounds.Dx(), bounds.Dy())
	}

	// The crop center lands well inside the source, so it must carry
	// the source color.
	r, g, b, _ := aligned.At(AlignedSize/2, AlignedSize/2).RGBA()
	if r>>8 != 200 || g>>8 != 100 || b>>8 != 50 {
		t.Errorf("crop center = (%d, %d, %d), want (200, 100, 50)", r>>8, g>>8, b>>8)
	}
}

func TestEstimateKeypoints(t *testing.T) {
	box := geometry.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	kps := EstimateKeypoints(box)

	// Eyes level, left of right, nose between them, mouth below.
	if kps[0].Y != kps[1].Y {
		t.Error("eyes should be level")
	}
	if kps[0].X >= kps[1].X {
		t.Error("left eye should be left of right eye")
	}
	if kps[2].Y <= kps[0].Y || kps[2].Y >= kps[3].Y {
		t.Error("nose should sit between eyes and mouth")
	}
	for i, p := range kps {
		if p.X < box.X1 || p.X > box.X2 || p.Y < box.Y1 || p.Y > box.Y2 {
			t.Errorf("keypoint %d (%v) outside box", i, p)
		}
	}
}
