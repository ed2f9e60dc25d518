package scaneffect

import "image"

// adjustTone applies contrast then brightness the way a photo enhancer does:
// contrast blends each channel against the image's mean grey level, brightness
// blends against black.
func adjustTone(img *image.RGBA, contrast, brightness float64) {
	mean := meanLuma(img)
	pix := img.Pix
	for i := 0; i < len(pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := mean + contrast*(float64(pix[i+c])-mean)
			pix[i+c] = clamp8(clamp(v, 0, 255) * brightness)
		}
	}
}

// meanLuma returns the rounded mean ITU-R 601 luma of img.
func meanLuma(img *image.RGBA) float64 {
	pix := img.Pix
	n := len(pix) / 4
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < len(pix); i += 4 {
		sum += (299*float64(pix[i]) + 587*float64(pix[i+1]) + 114*float64(pix[i+2])) / 1000
	}
	return float64(int(sum/float64(n) + 0.5))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
