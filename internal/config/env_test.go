package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"SCAN_DPI", "SCAN_QUALITY", "SCAN_WORKERS", "SCAN_SEED", "RENDERER_PATH", "REDIS_URL", "AXIOM_DATASET"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	assert.Equal(t, DefaultDPI, cfg.Scan.DPI)
	assert.Equal(t, 90, cfg.Scan.Quality)
	assert.Equal(t, runtime.NumCPU(), cfg.Scan.Workers)
	assert.Zero(t, cfg.Scan.Seed)
	assert.Empty(t, cfg.Scan.RendererPath)
	assert.Empty(t, cfg.Server.RedisURL)
	assert.Equal(t, "dev_scanlike", cfg.Axiom.Dataset)
	assert.Equal(t, time.Hour, cfg.Server.CleanupMaxAge)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SCAN_DPI", "150")
	t.Setenv("SCAN_WORKERS", "3")
	t.Setenv("SCAN_SEED", "42")
	t.Setenv("SCAN_QUALITY", "not-a-number")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("RENDERER_PATH", "/usr/bin")

	cfg := FromEnv()
	assert.Equal(t, 150, cfg.Scan.DPI)
	assert.Equal(t, 3, cfg.Scan.Workers)
	assert.EqualValues(t, 42, cfg.Scan.Seed)
	assert.Equal(t, 90, cfg.Scan.Quality)
	assert.True(t, cfg.Logging.Pretty)
	assert.Equal(t, "/usr/bin", cfg.Scan.RendererPath)
}
