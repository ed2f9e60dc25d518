package scaneffect

import (
	"bytes"
	"image"
	"image/color"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPage draws a white page with a few dark "text" bars.
func testPage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(img, 255)
	for y := h / 5; y < h-h/5; y += 6 {
		for x := w / 8; x < w-w/8; x++ {
			img.SetRGBA(x, y, color.RGBA{20, 20, 20, 255})
			img.SetRGBA(x, y+1, color.RGBA{20, 20, 20, 255})
		}
	}
	return img
}

func assertOpaque(t *testing.T, img *image.RGBA) {
	t.Helper()
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			t.Fatalf("pixel %d has alpha %d", i/4, img.Pix[i])
		}
	}
}

func TestProcessDimensionsGrow(t *testing.T) {
	src := testPage(120, 160)
	for seed := int64(1); seed <= 10; seed++ {
		out, prm := New(nil).Process(src, rand.New(rand.NewSource(seed)))
		assert.GreaterOrEqual(t, out.Rect.Dx(), 120, "seed %d", seed)
		assert.GreaterOrEqual(t, out.Rect.Dy(), 160, "seed %d", seed)
		assert.Equal(t, image.Point{}, out.Rect.Min)
		assertOpaque(t, out)

		assert.GreaterOrEqual(t, prm.Contrast, contrastMin)
		assert.Less(t, prm.Contrast, contrastMax)
		assert.GreaterOrEqual(t, prm.Brightness, brightnessMin)
		assert.Less(t, prm.Brightness, brightnessMax)
		assert.GreaterOrEqual(t, prm.Angle, -maxAngle)
		assert.Less(t, prm.Angle, maxAngle)
		for _, c := range prm.Corners {
			assert.LessOrEqual(t, c[0], maxCornerShift)
			assert.GreaterOrEqual(t, c[1], -maxCornerShift)
		}
		if prm.Texture {
			assert.GreaterOrEqual(t, prm.TextureAlpha, textureAlphaMin)
			assert.Less(t, prm.TextureAlpha, textureAlphaMax)
		}
		if prm.Blur {
			assert.GreaterOrEqual(t, prm.BlurRadius, blurMin)
			assert.Less(t, prm.BlurRadius, blurMax)
		}
	}
}

func TestProcessDoesNotMutateInput(t *testing.T) {
	src := testPage(40, 50)
	before := append([]byte(nil), src.Pix...)
	New(nil).Process(src, rand.New(rand.NewSource(3)))
	assert.Equal(t, before, src.Pix)
}

func TestProcessReproducibleWithSeed(t *testing.T) {
	src := testPage(64, 80)
	a, pa := New(nil).Process(src, rand.New(rand.NewSource(42)))
	b, pb := New(nil).Process(src, rand.New(rand.NewSource(42)))
	assert.Equal(t, pa, pb)
	assert.True(t, bytes.Equal(a.Pix, b.Pix))
}

func TestProcessDiffersAcrossSeeds(t *testing.T) {
	src := testPage(64, 80)
	a, _ := New(nil).Process(src, rand.New(rand.NewSource(1)))
	b, _ := New(nil).Process(src, rand.New(rand.NewSource(2)))
	if a.Rect == b.Rect {
		assert.False(t, bytes.Equal(a.Pix, b.Pix))
	}
}

func TestProcessAcceptsNonRGBA(t *testing.T) {
	gray := image.NewGray(image.Rect(10, 10, 50, 70))
	for i := range gray.Pix {
		gray.Pix[i] = 200
	}
	out, _ := New(nil).Process(gray, rand.New(rand.NewSource(5)))
	assert.GreaterOrEqual(t, out.Rect.Dx(), 40)
	assert.GreaterOrEqual(t, out.Rect.Dy(), 60)
	assertOpaque(t, out)
}

func TestObserverSeesStagesInOrder(t *testing.T) {
	var stages []string
	p := New(func(stage string, d time.Duration) {
		stages = append(stages, stage)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	})

	_, prm := p.Process(testPage(30, 30), rand.New(rand.NewSource(9)))

	want := []string{StageTone, StageGrain}
	if prm.Texture {
		want = append(want, StageTexture)
	}
	want = append(want, StageGeometry, StageVignette)
	if prm.Blur {
		want = append(want, StageBlur)
	}
	assert.Equal(t, want, stages)
}

func TestCoinFlipRates(t *testing.T) {
	src := testPage(8, 8)
	rng := rand.New(rand.NewSource(11))
	var texture, blur int
	const n = 400
	for i := 0; i < n; i++ {
		_, prm := New(nil).Process(src, rng)
		if prm.Texture {
			texture++
		}
		if prm.Blur {
			blur++
		}
	}
	assert.InDelta(t, textureChance, float64(texture)/n, 0.08)
	assert.InDelta(t, blurChance, float64(blur)/n, 0.08)
}

func TestNilPipelineProcesses(t *testing.T) {
	var p *Pipeline
	require.NotPanics(t, func() {
		p.Process(testPage(10, 10), rand.New(rand.NewSource(1)))
	})
}
