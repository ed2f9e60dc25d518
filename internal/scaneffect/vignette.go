package scaneffect

import (
	"image"
	"math"
)

// vignette darkens towards the corners: 1 - (r-0.5)/0.7 clamped to [0,1], where r
// is the distance from the center in coordinates normalized to [-1,1].
func vignette(img *image.RGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	xs := linspace(w)
	for y := 0; y < h; y++ {
		ny := linspace1(y, h)
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			r := math.Sqrt(xs[x]*xs[x] + ny*ny)
			m := 1 - clamp((r-0.5)/0.7, 0, 1)
			i := x * 4
			row[i] = clamp8(float64(row[i]) * m)
			row[i+1] = clamp8(float64(row[i+1]) * m)
			row[i+2] = clamp8(float64(row[i+2]) * m)
		}
	}
}

func linspace(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = linspace1(i, n)
	}
	return out
}

// linspace1 is the i-th of n evenly spaced points on [-1, 1].
func linspace1(i, n int) float64 {
	if n < 2 {
		return -1
	}
	return -1 + 2*float64(i)/float64(n-1)
}
