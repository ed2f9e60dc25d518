package main

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/scanlike/internal/assembler"
	"github.com/local/scanlike/internal/orchestrator"
	"github.com/local/scanlike/internal/pdfdoc"
	"github.com/local/scanlike/internal/scanerr"
)

// execute runs the root command with flags reset to their defaults.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.Flags().VisitAll(reset)
	rootCmd.PersistentFlags().VisitAll(reset)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func inputPDF(t *testing.T, widths ...int) string {
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

func TestRemoveCommand(t *testing.T) {
	in := inputPDF(t, 100, 120, 140)
	out := filepath.Join(t.TempDir(), "out.pdf")

	stdout, err := execute(t, "--in", in, "--out", out, "-r", "1,3", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 of 3 pages")

	doc, err := pdfdoc.OpenFile(out)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.PageCount())
}

func TestNoOperationWritesNothing(t *testing.T) {
	in := inputPDF(t, 100)
	out := filepath.Join(t.TempDir(), "out.pdf")

	stdout, err := execute(t, "--in", in, "--out", out, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no operation specified")
	assert.NoFileExists(t, out)
}

func TestRejectsDPIOutOfRange(t *testing.T) {
	in := inputPDF(t, 100)
	out := filepath.Join(t.TempDir(), "out.pdf")

	_, err := execute(t, "--in", in, "--out", out, "--scan", "--dpi", "72", "--log-level", "error")
	assert.ErrorIs(t, err, orchestrator.ErrDPIRange)
	assert.NoFileExists(t, out)
}

func TestMalformedRangeFails(t *testing.T) {
	in := inputPDF(t, 100, 100)
	out := filepath.Join(t.TempDir(), "out.pdf")

	_, err := execute(t, "--in", in, "--out", out, "-r", "7-5", "--log-level", "error")
	require.Error(t, err)
	var tokErr *scanerr.MalformedTokenError
	assert.ErrorAs(t, err, &tokErr)
	assert.Equal(t, "7-5", tokErr.Token)
	assert.Contains(t, err.Error(), "check the --remove expression")
	assert.NoFileExists(t, out)
}
