package scaneffect

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// rotate turns img by deg degrees counter-clockwise about its center. The canvas
// grows to hold the rotated page and the uncovered area is white.
func rotate(img *image.RGBA, deg float64) *image.RGBA {
	sw, sh := img.Rect.Dx(), img.Rect.Dy()
	w, h := float64(sw), float64(sh)
	th := deg * math.Pi / 180
	cos, sin := math.Cos(th), math.Sin(th)

	nw := int(math.Ceil(math.Abs(w*cos) + math.Abs(h*sin) - 1e-6))
	nh := int(math.Ceil(math.Abs(w*sin) + math.Abs(h*cos) - 1e-6))
	nw, nh = max(nw, sw), max(nh, sh)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	fill(dst, 255)

	cx, cy := w/2, h/2
	ncx, ncy := float64(nw)/2, float64(nh)/2
	s2d := f64.Aff3{
		cos, sin, ncx - (cos*cx + sin*cy),
		-sin, cos, ncy - (-sin*cx + cos*cy),
	}
	draw.CatmullRom.Transform(dst, s2d, img, img.Bounds(), draw.Over, nil)
	return dst
}

// warpPerspective moves each corner of img by the given fraction of the width and
// height and resamples the page onto a canvas of the same size. Areas that map
// outside the source are white.
func warpPerspective(img *image.RGBA, corners [4][2]float64) *image.RGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w < 2 || h < 2 {
		return img
	}
	fw, fh := float64(w-1), float64(h-1)
	src := [4][2]float64{{0, 0}, {fw, 0}, {fw, fh}, {0, fh}}
	var dst [4][2]float64
	for i, c := range src {
		dst[i] = [2]float64{c[0] + corners[i][0]*float64(w), c[1] + corners[i][1]*float64(h)}
	}

	// maps output pixels back into the source
	m, ok := homography(dst, src)
	if !ok {
		return img
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := out.Pix[y*out.Stride:]
		fy := float64(y)
		for x := 0; x < w; x++ {
			fx := float64(x)
			d := m[6]*fx + m[7]*fy + 1
			u := (m[0]*fx + m[1]*fy + m[2]) / d
			v := (m[3]*fx + m[4]*fy + m[5]) / d
			r, g, b := bilinear(img, u, v)
			i := x * 4
			row[i], row[i+1], row[i+2], row[i+3] = clamp8(r), clamp8(g), clamp8(b), 255
		}
	}
	return out
}

// bilinear samples img at (u, v); neighbours outside the image count as white.
func bilinear(img *image.RGBA, u, v float64) (r, g, b float64) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if u <= -1 || v <= -1 || u >= float64(w) || v >= float64(h) {
		return 255, 255, 255
	}
	x0, y0 := int(math.Floor(u)), int(math.Floor(v))
	ax, ay := u-float64(x0), v-float64(y0)

	px := func(x, y int) (float64, float64, float64) {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 255, 255, 255
		}
		i := y*img.Stride + x*4
		return float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])
	}

	r00, g00, b00 := px(x0, y0)
	r10, g10, b10 := px(x0+1, y0)
	r01, g01, b01 := px(x0, y0+1)
	r11, g11, b11 := px(x0+1, y0+1)

	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }
	r = lerp(lerp(r00, r10, ax), lerp(r01, r11, ax), ay)
	g = lerp(lerp(g00, g10, ax), lerp(g01, g11, ax), ay)
	b = lerp(lerp(b00, b10, ax), lerp(b01, b11, ax), ay)
	return r, g, b
}

// homography solves for the projective transform taking from[i] to to[i].
// The result holds h0..h7 with h8 fixed at 1.
func homography(from, to [4][2]float64) ([8]float64, bool) {
	var a [8][9]float64
	for i := 0; i < 4; i++ {
		x, y := from[i][0], from[i][1]
		u, v := to[i][0], to[i][1]
		a[2*i] = [9]float64{x, y, 1, 0, 0, 0, -u * x, -u * y, u}
		a[2*i+1] = [9]float64{0, 0, 0, x, y, 1, -v * x, -v * y, v}
	}

	// Gaussian elimination with partial pivoting
	for col := 0; col < 8; col++ {
		piv := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[piv][col]) {
				piv = r
			}
		}
		if math.Abs(a[piv][col]) < 1e-12 {
			return [8]float64{}, false
		}
		a[col], a[piv] = a[piv], a[col]
		for r := 0; r < 8; r++ {
			if r == col {
				continue
			}
			f := a[r][col] / a[col][col]
			for c := col; c < 9; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	var m [8]float64
	for i := range m {
		m[i] = a[i][8] / a[i][i]
	}
	return m, true
}
