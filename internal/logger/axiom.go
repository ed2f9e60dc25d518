package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
)

const (
	shipBuffer    = 1000
	shipBatch     = 200
	shipTimeout   = 15 * time.Second
	shipMinLevel  = zerolog.InfoLevel
	defaultFlush  = 10 * time.Second
	datasetPrefix = "dev_"
)

// ingester is the part of *axiom.Client the shipper uses.
type ingester interface {
	IngestEvents(ctx context.Context, dataset string, events []axiom.Event, options ...ingest.Option) (*ingest.Status, error)
}

// shipper batches info-and-above log events and sends them to an Axiom dataset.
// Events are dropped, and counted, when the buffer is full.
type shipper struct {
	client  ingester
	dataset string
	events  chan axiom.Event
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Int64
	once    sync.Once
}

var _ zerolog.LevelWriter = (*shipper)(nil)

func newShipper(token, orgID, dataset string, flushEvery time.Duration) (*shipper, error) {
	opts := []axiom.Option{axiom.SetToken(token)}
	if orgID != "" {
		opts = append(opts, axiom.SetOrganizationID(orgID))
	}
	c, err := axiom.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	if dataset == "" {
		dataset = datasetPrefix + serviceName
	}
	return startShipper(c, dataset, flushEvery), nil
}

func startShipper(c ingester, dataset string, flushEvery time.Duration) *shipper {
	if flushEvery <= 0 {
		flushEvery = defaultFlush
	}
	s := &shipper{
		client:  c,
		dataset: dataset,
		events:  make(chan axiom.Event, shipBuffer),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run(flushEvery)
	return s
}

// Write is used for events without a level; they are shipped as info.
func (s *shipper) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.NoLevel, p)
}

func (s *shipper) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l != zerolog.NoLevel && l < shipMinLevel {
		return len(p), nil
	}
	ev := axiom.Event{}
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = axiom.Event{"message": string(p), "level": "info"}
	}
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}

	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
	return len(p), nil
}

func (s *shipper) run(flushEvery time.Duration) {
	defer s.wg.Done()
	t := time.NewTicker(flushEvery)
	defer t.Stop()

	batch := make([]axiom.Event, 0, shipBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), shipTimeout)
		if _, err := s.client.IngestEvents(ctx, s.dataset, batch); err != nil {
			fmt.Fprintf(os.Stderr, "axiom ingest of %d events failed: %v\n", len(batch), err)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case ev := <-s.events:
			batch = append(batch, ev)
			if len(batch) >= shipBatch {
				flush()
			}
		case <-t.C:
			flush()
		case <-s.done:
			// drain what is already buffered
			for {
				select {
				case ev := <-s.events:
					batch = append(batch, ev)
					if len(batch) >= shipBatch {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops the shipper after a final flush.
func (s *shipper) Close() {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		if n := s.dropped.Load(); n > 0 {
			fmt.Fprintf(os.Stderr, "axiom shipper dropped %d log events\n", n)
		}
	})
}
