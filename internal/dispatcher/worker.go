// Package dispatcher fans page work out to a bounded set of workers and collects
// the results back in page order.
package dispatcher

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config sizes the pool.
type Config struct {
	// Workers is the number of concurrent workers; <= 0 means runtime.NumCPU().
	Workers int
	// Seed is the base seed for per-task random sources; 0 picks one from the clock.
	Seed int64
}

// Pool runs indexed tasks on Workers goroutines. Every worker owns its own
// *rand.Rand and reseeds it with Seed+index before each task, so a task's draws
// depend only on its index.
type Pool struct {
	workers int
	seed    int64
}

// TaskFunc processes the task with the given zero-based index.
type TaskFunc[T any] func(ctx context.Context, index int, rng *rand.Rand) (T, error)

// New returns a Pool for cfg.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Pool{workers: cfg.Workers, seed: cfg.Seed}
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Seed returns the base seed in use.
func (p *Pool) Seed() int64 { return p.seed }

// Run calls fn for every index in [0, n) and returns the results indexed by task,
// whatever order they complete in. The first error cancels the remaining tasks
// and is returned.
func Run[T any](ctx context.Context, p *Pool, n int, fn TaskFunc[T]) ([]T, error) {
	results := make([]T, n)
	if n == 0 {
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	workers := min(p.workers, n)
	for id := 0; id < workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id, jobs, func(idx int, rng *rand.Rand) {
				res, err := fn(ctx, idx, rng)
				if err != nil {
					fail(err)
					return
				}
				results[idx] = res
			})
		}(id)
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		// parent context cancelled before all tasks ran
		return nil, err
	}
	return results, nil
}

func (p *Pool) loop(ctx context.Context, id int, jobs <-chan int, run func(int, *rand.Rand)) {
	log.Debug().Int("worker", id).Msg("page worker started")
	rng := rand.New(rand.NewSource(p.seed + int64(id)))
	for idx := range jobs {
		if ctx.Err() != nil {
			continue
		}
		rng.Seed(p.seed + int64(idx))
		run(idx, rng)
	}
	log.Debug().Int("worker", id).Msg("page worker stopped")
}
