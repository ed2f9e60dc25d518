package scaneffect

import (
	"image"
	"math/rand"
)

// addGrain adds luminance-correlated Gaussian noise: one draw per pixel, applied
// to all three channels.
func addGrain(img *image.RGBA, rng *rand.Rand, sigma float64) {
	pix := img.Pix
	for i := 0; i < len(pix); i += 4 {
		n := rng.NormFloat64() * sigma
		pix[i] = clamp8(float64(pix[i]) + n)
		pix[i+1] = clamp8(float64(pix[i+1]) + n)
		pix[i+2] = clamp8(float64(pix[i+2]) + n)
	}
}

// addPaperTexture subtracts a second, independent zero-mean noise field scaled by alpha.
func addPaperTexture(img *image.RGBA, rng *rand.Rand, sigma, alpha float64) {
	field := noiseField(rng, len(img.Pix)/4, sigma)
	pix := img.Pix
	for p, n := range field {
		i := p * 4
		d := n * alpha
		pix[i] = clamp8(float64(pix[i]) - d)
		pix[i+1] = clamp8(float64(pix[i+1]) - d)
		pix[i+2] = clamp8(float64(pix[i+2]) - d)
	}
}

// noiseField draws a single-channel N(0, sigma) map of n samples.
func noiseField(rng *rand.Rand, n int, sigma float64) []float64 {
	field := make([]float64, n)
	for i := range field {
		field[i] = rng.NormFloat64() * sigma
	}
	return field
}
