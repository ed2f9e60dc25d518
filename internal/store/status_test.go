package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ StatusStore = (*MemoryStatus)(nil)
var _ StatusStore = (*RedisStatus)(nil)

func TestMemoryStatusRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStatus()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now()
	in := Status{
		Status:   StatusProcessing,
		Progress: 40,
		Message:  "rasterizing",
		Start:    &now,
		Metadata: map[string]interface{}{"pages": 3},
	}
	require.NoError(t, s.Set(ctx, "job-1", in))

	got, ok, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, got)
	assert.False(t, got.Done())

	in.Status = StatusSuccess
	in.Progress = 100
	require.NoError(t, s.Set(ctx, "job-1", in))
	got, _, _ = s.Get(ctx, "job-1")
	assert.True(t, got.Done())
	assert.Equal(t, 100, got.Progress)
	require.NoError(t, s.Close())
}

func TestRedisStatusKey(t *testing.T) {
	s := &RedisStatus{keyNS: "scanlike:job"}
	assert.Equal(t, "scanlike:job:abc:status", s.key("abc"))
}
