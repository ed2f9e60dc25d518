package imagerender

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/scanlike/internal/scanerr"
)

func TestNewPicksBackend(t *testing.T) {
	assert.Equal(t, BackendFitz, New("").Name())
	assert.Equal(t, BackendFitz, New("  ").Name())
	assert.Equal(t, BackendPoppler, New("/opt/poppler/bin").Name())
}

func TestPageFilesNumericOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-10.png", "page-02.png", "page-1.png", "notes.txt", "page-x.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	files, err := pageFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"page-1.png", "page-02.png", "page-10.png"}, names)
}

func TestPopplerBinaryFromDirectory(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "pdftoppm")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	got, err := NewPoppler(dir).Binary()
	require.NoError(t, err)
	assert.Equal(t, bin, got)

	got, err = NewPoppler(bin).Binary()
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

func TestPopplerMissingBinary(t *testing.T) {
	p := NewPoppler(filepath.Join(t.TempDir(), "nope"))

	_, err := p.Open(context.Background(), "in.pdf", 150)
	require.Error(t, err)

	var re *scanerr.RasterizationError
	assert.True(t, errors.As(err, &re))
}

func TestFitzOpenMissingFile(t *testing.T) {
	_, err := NewFitz().Open(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), 150)
	require.Error(t, err)
	assert.Equal(t, "rasterization", scanerr.Kind(err))
}
