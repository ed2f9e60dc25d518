// Package scaneffect degrades a rendered page so it looks like a paper scan.
//
// The chain is fixed: tonal jitter, film grain, paper texture (80%), rotation plus
// perspective warp, vignette, blur (60%). Every draw comes from the *rand.Rand the
// caller passes in, so one seed reproduces one page and concurrent pages never
// share a generator.
package scaneffect

import (
	"image"
	"math/rand"
	"time"

	"golang.org/x/image/draw"
)

// Stage names, as reported to an Observer.
const (
	StageTone     = "tone"
	StageGrain    = "grain"
	StageTexture  = "texture"
	StageGeometry = "geometry"
	StageVignette = "vignette"
	StageBlur     = "blur"
)

const (
	contrastMin, contrastMax     = 0.9, 1.6
	brightnessMin, brightnessMax = 0.9, 1.15
	grainSigma                   = 6.0
	textureChance                = 0.8
	textureSigma                 = 8.0
	textureAlphaMin              = 0.08
	textureAlphaMax              = 0.20
	maxAngle                     = 2.5
	maxCornerShift               = 0.03
	blurChance                   = 0.6
	blurMin, blurMax             = 0.2, 0.9
)

// Params records the draws made for one page. It is informational; the pipeline
// draws everything itself, stage by stage.
type Params struct {
	Contrast     float64
	Brightness   float64
	Texture      bool
	TextureAlpha float64
	Angle        float64
	// Corners holds the fractional (dx, dy) shift of the top-left, top-right,
	// bottom-right and bottom-left corners.
	Corners    [4][2]float64
	Blur       bool
	BlurRadius float64
}

// Observer receives the duration of each stage that ran.
type Observer func(stage string, d time.Duration)

// Pipeline applies the scan effect chain. The zero value is ready to use.
type Pipeline struct {
	Observe Observer
}

// New returns a Pipeline reporting stage timings to obs (may be nil).
func New(obs Observer) *Pipeline {
	return &Pipeline{Observe: obs}
}

// Process returns a degraded copy of src. The result is at least as large as src on
// both axes; the rotated canvas is kept, not cropped back.
func (p *Pipeline) Process(src image.Image, rng *rand.Rand) (*image.RGBA, Params) {
	var prm Params
	img := toRGBA(src)

	p.timed(StageTone, func() {
		prm.Contrast = uniform(rng, contrastMin, contrastMax)
		prm.Brightness = uniform(rng, brightnessMin, brightnessMax)
		adjustTone(img, prm.Contrast, prm.Brightness)
	})

	p.timed(StageGrain, func() {
		addGrain(img, rng, grainSigma)
	})

	if rng.Float64() < textureChance {
		prm.Texture = true
		p.timed(StageTexture, func() {
			prm.TextureAlpha = uniform(rng, textureAlphaMin, textureAlphaMax)
			addPaperTexture(img, rng, textureSigma, prm.TextureAlpha)
		})
	}

	p.timed(StageGeometry, func() {
		prm.Angle = uniform(rng, -maxAngle, maxAngle)
		img = rotate(img, prm.Angle)
		for i := range prm.Corners {
			prm.Corners[i][0] = uniform(rng, -maxCornerShift, maxCornerShift)
			prm.Corners[i][1] = uniform(rng, -maxCornerShift, maxCornerShift)
		}
		img = warpPerspective(img, prm.Corners)
	})

	p.timed(StageVignette, func() {
		vignette(img)
	})

	if rng.Float64() < blurChance {
		prm.Blur = true
		p.timed(StageBlur, func() {
			prm.BlurRadius = uniform(rng, blurMin, blurMax)
			img = gaussianBlur(img, prm.BlurRadius)
		})
	}

	return img, prm
}

func (p *Pipeline) timed(stage string, fn func()) {
	if p == nil || p.Observe == nil {
		fn()
		return
	}
	start := time.Now()
	fn()
	p.Observe(stage, time.Since(start))
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// toRGBA copies src into a fresh opaque RGBA image anchored at the origin.
func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	fill(dst, 255)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// fill paints every pixel with grey level v, fully opaque.
func fill(img *image.RGBA, v uint8) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
