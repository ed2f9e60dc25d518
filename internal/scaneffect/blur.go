package scaneffect

import (
	"image"
	"math"
)

// gaussianBlur returns img convolved with a separable Gaussian of standard
// deviation sigma. Edges are clamped.
func gaussianBlur(img *image.RGBA, sigma float64) *image.RGBA {
	if sigma <= 0 {
		return img
	}
	k := kernel(sigma)
	w, h := img.Rect.Dx(), img.Rect.Dy()
	r := len(k) / 2

	// horizontal pass into a float buffer, vertical pass back to 8 bits
	tmp := make([]float64, w*h*3)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			var s0, s1, s2 float64
			for j, kv := range k {
				sx := clampInt(x+j-r, 0, w-1) * 4
				s0 += kv * float64(row[sx])
				s1 += kv * float64(row[sx+1])
				s2 += kv * float64(row[sx+2])
			}
			o := (y*w + x) * 3
			tmp[o], tmp[o+1], tmp[o+2] = s0, s1, s2
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			var s0, s1, s2 float64
			for j, kv := range k {
				o := (clampInt(y+j-r, 0, h-1)*w + x) * 3
				s0 += kv * tmp[o]
				s1 += kv * tmp[o+1]
				s2 += kv * tmp[o+2]
			}
			i := x * 4
			row[i], row[i+1], row[i+2], row[i+3] = clamp8(s0), clamp8(s1), clamp8(s2), 255
		}
	}
	return out
}

// kernel returns a normalized 1-D Gaussian covering three standard deviations.
func kernel(sigma float64) []float64 {
	r := int(math.Ceil(3 * sigma))
	if r < 1 {
		r = 1
	}
	k := make([]float64, 2*r+1)
	var sum float64
	for i := range k {
		d := float64(i - r)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
