package statuscheck

import (
	"context"
	"errors"
	"time"

	"github.com/local/scanlike/internal/imagerender"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// Checker aggregates readiness checks for the collaborators serve mode depends on.
type Checker struct {
	redis    RedisPinger
	renderer imagerender.Rasterizer
}

// Options configures the Checker. Redis is optional; without it the in-memory
// status store is in use.
type Options struct {
	Redis    RedisPinger
	Renderer imagerender.Rasterizer
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Redis    Status `json:"redis"`
	Renderer Status `json:"renderer"`
}

// Ready reports whether every required subsystem is usable.
func (s Summary) Ready() bool { return s.Redis.OK && s.Renderer.OK }

func New(opts Options) *Checker {
	return &Checker{redis: opts.Redis, renderer: opts.Renderer}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Redis:    c.checkRedis(ctx),
		Renderer: c.checkRenderer(),
	}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: true, Message: "in-memory status store"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkRenderer() Status {
	switch r := c.renderer.(type) {
	case nil:
		return Status{OK: false, Message: "not configured"}
	case *imagerender.Poppler:
		bin, err := r.Binary()
		if err != nil {
			return Status{OK: false, Message: "pdftoppm not found"}
		}
		return Status{OK: true, Message: "poppler: " + bin}
	default:
		return Status{OK: true, Message: r.Name() + " (embedded)"}
	}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
