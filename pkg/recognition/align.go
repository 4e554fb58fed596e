package recognition

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/MrCodeEU/facelock/pkg/geometry"
)

// AlignedSize is the side length of the canonical aligned face crop.
const AlignedSize = 112

// arcfaceTemplate holds the canonical 5-point landmark positions in a
// 112x112 crop (left eye, right eye, nose tip, mouth corners).
var arcfaceTemplate = [5]geometry.Point{
	{X: 38.2946, Y: 51.6963},
	{X: 73.5318, Y: 51.5014},
	{X: 56.0252, Y: 71.7366},
	{X: 41.5493, Y: 92.3655},
	{X: 70.7299, Y: 92.2041},
}

// Align5pt warps the source image so that the given 5 face keypoints
// land on the canonical template, returning a size x size crop. The
// transform is the least-squares similarity (rotation, uniform scale,
// translation) from keypoints to template.
func Align5pt(src image.Image, keypoints [5]geometry.Point, size int) *image.RGBA {
	m := similarityTransform(keypoints, scaledTemplate(size))

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Transform(dst, m, src, src.Bounds(), draw.Src, nil)
	return dst
}

// scaledTemplate rescales the 112-based template to an arbitrary crop
// size.
func scaledTemplate(size int) [5]geometry.Point {
	s := float64(size) / float64(AlignedSize)
	var out [5]geometry.Point
	for i, p := range arcfaceTemplate {
		out[i] = geometry.Point{X: p.X * s, Y: p.Y * s}
	}
	return out
}

// similarityTransform solves for the 2D similarity mapping src points
// onto dst in the least-squares sense and returns it as an affine
// matrix in source-to-destination form.
func similarityTransform(src, dst [5]geometry.Point) f64.Aff3 {
	n := float64(len(src))

	var mx, my, nx, ny float64
	for i := range src {
		mx += src[i].X
		my += src[i].Y
		nx += dst[i].X
		ny += dst[i].Y
	}
	mx /= n
	my /= n
	nx /= n
	ny /= n

	// Centered cross terms: a encodes cos*scale, b encodes sin*scale.
	var num1, num2, den float64
	for i := range src {
		x := src[i].X - mx
		y := src[i].Y - my
		u := dst[i].X - nx
		v := dst[i].Y - ny
		num1 += x*u + y*v
		num2 += x*v - y*u
		den += x*x + y*y
	}

	if den == 0 {
		// Degenerate keypoints: fall back to identity.
		return f64.Aff3{1, 0, 0, 0, 1, 0}
	}

	a := num1 / den
	b := num2 / den
	tx := nx - (a*mx - b*my)
	ty := ny - (b*mx + a*my)

	return f64.Aff3{
		a, -b, tx,
		b, a, ty,
	}
}
