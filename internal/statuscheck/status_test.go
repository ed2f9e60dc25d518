package statuscheck

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/scanlike/internal/imagerender"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestSummaryEmbeddedRenderer(t *testing.T) {
	s := New(Options{Renderer: imagerender.NewFitz()}).Summary(context.Background())
	assert.True(t, s.Redis.OK)
	assert.True(t, s.Renderer.OK)
	assert.True(t, s.Ready())
}

func TestSummaryRedisDown(t *testing.T) {
	long := errors.New(strings.Repeat("x", 200))
	s := New(Options{Redis: pinger{err: long}, Renderer: imagerender.NewFitz()}).Summary(context.Background())
	assert.False(t, s.Redis.OK)
	assert.Len(t, s.Redis.Message, 120)
	assert.False(t, s.Ready())
}

func TestSummaryPoppler(t *testing.T) {
	dir := t.TempDir()
	s := New(Options{Renderer: imagerender.NewPoppler(filepath.Join(dir, "missing"))}).Summary(context.Background())
	assert.False(t, s.Renderer.OK)

	bin := filepath.Join(dir, "pdftoppm")
	require.NoError(t, os.WriteFile(bin, nil, 0o755))
	s = New(Options{Redis: pinger{}, Renderer: imagerender.NewPoppler(dir)}).Summary(context.Background())
	assert.True(t, s.Renderer.OK)
	assert.Contains(t, s.Renderer.Message, bin)
}
