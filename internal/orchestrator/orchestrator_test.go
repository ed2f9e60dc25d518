package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/scanlike/internal/assembler"
	"github.com/local/scanlike/internal/imagerender"
	"github.com/local/scanlike/internal/pdfdoc"
	"github.com/local/scanlike/internal/scanerr"
	"github.com/local/scanlike/internal/storage"
)

// fakeRasterizer renders blank pages sized from the PDF media boxes, so tests
// need no MuPDF or poppler.
type fakeRasterizer struct {
	failPage int
}

func (*fakeRasterizer) Name() string { return "fake" }

func (r *fakeRasterizer) Open(_ context.Context, path string, dpi int) (imagerender.Source, error) {
	doc, err := pdfdoc.OpenFile(path)
	if err != nil {
		return nil, err
	}
	dims, err := doc.PageDims()
	if err != nil {
		return nil, err
	}
	return &fakeSource{dims: dims, dpi: dpi, failPage: r.failPage}, nil
}

type fakeSource struct {
	dims     []pdfdoc.Dim
	dpi      int
	failPage int
}

func (s *fakeSource) NumPage() int { return len(s.dims) }

func (s *fakeSource) Render(_ context.Context, page int) (image.Image, error) {
	if page == s.failPage {
		return nil, &scanerr.RasterizationError{Page: page, Err: errors.New("boom")}
	}
	d := s.dims[page-1]
	w := int(d.Width * float64(s.dpi) / 72)
	h := int(d.Height * float64(s.dpi) / 72)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := uint8(255)
			if y%10 == 0 {
				c = 20
			}
			img.SetRGBA(x, y, color.RGBA{c, c, c, 255})
		}
	}
	return img, nil
}

func (s *fakeSource) Close() error { return nil }

// writeInput creates a PDF with one page per width, each 100pt high.
func writeInput(t *testing.T, widths ...int) string {
	t.Helper()
	var imgs []image.Image
	for _, w := range widths {
		img := image.NewRGBA(image.Rect(0, 0, w, 100))
		for i := range img.Pix {
			img.Pix[i] = 255
		}
		imgs = append(imgs, img)
	}
	var buf bytes.Buffer
	require.NoError(t, assembler.Assemble(&buf, imgs, assembler.DefaultQuality))
	p := filepath.Join(t.TempDir(), "in.pdf")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
	return p
}

func pageDims(t *testing.T, path string) []pdfdoc.Dim {
	t.Helper()
	doc, err := pdfdoc.OpenFile(path)
	require.NoError(t, err)
	dims, err := doc.PageDims()
	require.NoError(t, err)
	return dims
}

type harness struct {
	orch *Orchestrator
	tmp  string
	out  string
}

func newHarness(t *testing.T, r imagerender.Rasterizer) harness {
	tmp := t.TempDir()
	return harness{
		orch: New(Dependencies{
			Storage:    storage.New(storage.Options{}),
			Rasterizer: r,
			Workers:    2,
			TempDir:    tmp,
		}),
		tmp: tmp,
		out: filepath.Join(t.TempDir(), "out", "result.pdf"),
	}
}

func (h harness) assertNoLeftovers(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "work directory must be removed")
}

func TestRunRemovalOnly(t *testing.T) {
	h := newHarness(t, &fakeRasterizer{})
	in := writeInput(t, 100, 120, 140)

	res, err := h.orch.Run(context.Background(), Request{Input: in, Output: h.out, Remove: "2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.PagesIn)
	assert.Equal(t, 2, res.PagesOut)
	assert.Equal(t, 1, res.Removed)
	assert.False(t, res.Scanned)

	dims := pageDims(t, h.out)
	require.Len(t, dims, 2)
	assert.Equal(t, 100.0, dims[0].Width)
	assert.Equal(t, 140.0, dims[1].Width)
	h.assertNoLeftovers(t)
}

func TestRunScanSinglePage(t *testing.T) {
	h := newHarness(t, &fakeRasterizer{})
	in := writeInput(t, 144)

	var last int
	res, err := h.orch.Run(context.Background(), Request{Input: in, Output: h.out, Scan: true, DPI: 150, Seed: 7}, func(p int, _ string) {
		last = p
	})
	require.NoError(t, err)
	assert.True(t, res.Scanned)
	assert.EqualValues(t, 7, res.Seed)
	assert.Equal(t, 100, last)

	// 144x100pt at 150dpi renders to 300x208px; one point per pixel in the output,
	// grown a little by the rotated canvas.
	dims := pageDims(t, h.out)
	require.Len(t, dims, 1)
	assert.GreaterOrEqual(t, dims[0].Width, 300.0)
	assert.LessOrEqual(t, dims[0].Width, 330.0)
	assert.GreaterOrEqual(t, dims[0].Height, 208.0)
	assert.LessOrEqual(t, dims[0].Height, 230.0)
	h.assertNoLeftovers(t)
}

func TestRunRemoveThenScanKeepsOrder(t *testing.T) {
	h := newHarness(t, &fakeRasterizer{})
	in := writeInput(t, 72, 96, 120, 144)

	res, err := h.orch.Run(context.Background(), Request{Input: in, Output: h.out, Remove: "1,3", Scan: true, DPI: 144}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.PagesOut)

	// 96pt and 144pt pages at 2x
	dims := pageDims(t, h.out)
	require.Len(t, dims, 2)
	assert.GreaterOrEqual(t, dims[0].Width, 192.0)
	assert.Less(t, dims[0].Width, 288.0)
	assert.GreaterOrEqual(t, dims[1].Width, 288.0)
}

func TestRunTwiceDiffers(t *testing.T) {
	h := newHarness(t, &fakeRasterizer{})
	in := writeInput(t, 100)

	var outs [][]byte
	for i := 1; i <= 2; i++ {
		out := filepath.Join(t.TempDir(), fmt.Sprintf("run%d.pdf", i))
		_, err := h.orch.Run(context.Background(), Request{Input: in, Output: out, Scan: true, DPI: 150, Seed: int64(i)}, nil)
		require.NoError(t, err)
		b, err := os.ReadFile(out)
		require.NoError(t, err)
		outs = append(outs, b)
	}
	assert.NotEqual(t, outs[0], outs[1])
}

func TestRunNoOperation(t *testing.T) {
	h := newHarness(t, &fakeRasterizer{})
	in := writeInput(t, 100)

	_, err := h.orch.Run(context.Background(), Request{Input: in, Output: h.out, Remove: "   "}, nil)
	assert.ErrorIs(t, err, ErrNoOperation)
	assert.NoFileExists(t, h.out)
	h.assertNoLeftovers(t)
}

func TestRunRasterizationFailureLeavesNothing(t *testing.T) {
	h := newHarness(t, &fakeRasterizer{failPage: 2})
	in := writeInput(t, 100, 100, 100)

	_, err := h.orch.Run(context.Background(), Request{Input: in, Output: h.out, Scan: true, DPI: 150}, nil)
	require.Error(t, err)
	assert.Equal(t, "rasterization", scanerr.Kind(err))
	assert.NoFileExists(t, h.out)
	assert.NoDirExists(t, filepath.Dir(h.out))
	h.assertNoLeftovers(t)
}

func TestRunMalformedRange(t *testing.T) {
	h := newHarness(t, &fakeRasterizer{})
	in := writeInput(t, 100, 100)

	_, err := h.orch.Run(context.Background(), Request{Input: in, Output: h.out, Remove: "1,x"}, nil)
	var mt *scanerr.MalformedTokenError
	require.ErrorAs(t, err, &mt)
	assert.Equal(t, "x", mt.Token)
	assert.NoFileExists(t, h.out)
}

func TestRunAllOutOfRangeCopiesInput(t *testing.T) {
	h := newHarness(t, &fakeRasterizer{})
	in := writeInput(t, 100, 100)

	res, err := h.orch.Run(context.Background(), Request{Input: in, Output: h.out, Remove: "5,9"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Dropped)
	assert.Equal(t, 0, res.Removed)

	want, _ := os.ReadFile(in)
	got, err := os.ReadFile(h.out)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunRemoveEverything(t *testing.T) {
	h := newHarness(t, &fakeRasterizer{})
	in := writeInput(t, 100, 100)

	res, err := h.orch.Run(context.Background(), Request{Input: in, Output: h.out, Remove: "1-2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, 0, res.PagesOut)

	b, err := os.ReadFile(h.out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))
	h.assertNoLeftovers(t)
}

func TestRunRemoveEverythingThenScan(t *testing.T) {
	h := newHarness(t, &fakeRasterizer{})
	in := writeInput(t, 100, 100)

	_, err := h.orch.Run(context.Background(), Request{Input: in, Output: h.out, Remove: "1-2", Scan: true}, nil)
	assert.ErrorIs(t, err, scanerr.ErrNoPages)
	assert.NoFileExists(t, h.out)
	h.assertNoLeftovers(t)
}

func TestRunRejectsDPI(t *testing.T) {
	h := newHarness(t, &fakeRasterizer{})
	in := writeInput(t, 100)

	_, err := h.orch.Run(context.Background(), Request{Input: in, Output: h.out, Scan: true, DPI: 600}, nil)
	assert.ErrorIs(t, err, ErrDPIRange)
}

func TestRunRejectsNonPDF(t *testing.T) {
	h := newHarness(t, &fakeRasterizer{})
	in := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(in, []byte("plain text"), 0o644))

	_, err := h.orch.Run(context.Background(), Request{Input: in, Output: h.out, Scan: true}, nil)
	assert.Equal(t, "input_read", scanerr.Kind(err))
	h.assertNoLeftovers(t)
}

func TestRunRejectsHTTPOutput(t *testing.T) {
	h := newHarness(t, &fakeRasterizer{})
	in := writeInput(t, 100)

	_, err := h.orch.Run(context.Background(), Request{Input: in, Output: "https://example.com/out.pdf", Remove: "1"}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedOutput)
	h.assertNoLeftovers(t)

	err = h.orch.deliver(context.Background(), in, "http://example.com/out.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedOutput)
}

func TestRequestMode(t *testing.T) {
	assert.Equal(t, "noop", Request{}.Mode())
	assert.Equal(t, "remove", Request{Remove: "1"}.Mode())
	assert.Equal(t, "scan", Request{Scan: true}.Mode())
	assert.Equal(t, "remove+scan", Request{Remove: "1", Scan: true}.Mode())
}
