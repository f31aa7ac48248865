// Package fetch provides a debounced, single-flight cache around one upstream
// endpoint. Callers always get the freshest snapshot the fetcher knows about;
// overlapping and rapid-fire refreshes never multiply network calls.
package fetch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/stormslide/internal/domain"
	"github.com/couchcryptid/stormslide/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultQuietWindow is how long a completed fetch satisfies further refreshes.
const DefaultQuietWindow = time.Second

// Func performs one upstream request.
type Func[T any] func(ctx context.Context) (T, error)

// Snapshot is one successfully fetched value. Seq increases with every
// request the fetcher starts, so a larger Seq is always a newer request.
type Snapshot[T any] struct {
	Value     T
	Seq       uint64
	FetchedAt time.Time
}

// Valid reports whether the snapshot holds fetched data.
func (s Snapshot[T]) Valid() bool { return s.Seq > 0 }

// Options tunes a Fetcher.
type Options struct {
	Quiet   time.Duration // zero means DefaultQuietWindow
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Fetcher owns the latest snapshot of one endpoint.
type Fetcher[T any] struct {
	name    string
	fn      Func[T]
	quiet   time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu          sync.Mutex
	inflight    *call[T]
	latest      Snapshot[T]
	lastErr     error
	completedAt time.Time
	seq         uint64
}

type call[T any] struct {
	done chan struct{}
	seq  uint64
	snap Snapshot[T]
	err  error
}

// New creates a Fetcher for the named endpoint.
func New[T any](name string, fn Func[T], opts Options) *Fetcher[T] {
	if opts.Quiet <= 0 {
		opts.Quiet = DefaultQuietWindow
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Fetcher[T]{
		name:    name,
		fn:      fn,
		quiet:   opts.Quiet,
		clock:   opts.Clock,
		logger:  opts.Logger.With("endpoint", name),
		metrics: opts.Metrics,
	}
}

// Name returns the endpoint name used in logs, metrics and errors.
func (f *Fetcher[T]) Name() string { return f.name }

// Refresh returns the freshest snapshot, fetching only when needed. A call
// made while a request is in flight waits for that request. A call made within
// the quiet window of the last completion returns the latest snapshot and the
// error of that completion without touching the network.
//
// On failure the previous snapshot is returned unchanged together with a
// *domain.TransportError.
func (f *Fetcher[T]) Refresh(ctx context.Context) (Snapshot[T], error) {
	return f.refresh(ctx, false)
}

// ForceRefresh is Refresh without the quiet window. It still joins a request
// that is already in flight.
func (f *Fetcher[T]) ForceRefresh(ctx context.Context) (Snapshot[T], error) {
	return f.refresh(ctx, true)
}

// Latest returns the current snapshot and the error of the last completed request.
func (f *Fetcher[T]) Latest() (Snapshot[T], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.lastErr
}

func (f *Fetcher[T]) refresh(ctx context.Context, force bool) (Snapshot[T], error) {
	f.mu.Lock()
	if c := f.inflight; c != nil {
		f.mu.Unlock()
		f.countDebounced()
		return wait(ctx, c)
	}
	if !force && !f.completedAt.IsZero() && f.clock.Since(f.completedAt) < f.quiet {
		snap, err := f.latest, f.lastErr
		f.mu.Unlock()
		f.countDebounced()
		return snap, err
	}

	f.seq++
	c := &call[T]{done: make(chan struct{}), seq: f.seq}
	f.inflight = c
	f.mu.Unlock()

	// The request outlives any single caller: others may have joined it.
	go f.run(context.WithoutCancel(ctx), c)
	return wait(ctx, c)
}

func wait[T any](ctx context.Context, c *call[T]) (Snapshot[T], error) {
	select {
	case <-c.done:
		return c.snap, c.err
	case <-ctx.Done():
		return Snapshot[T]{}, ctx.Err()
	}
}

func (f *Fetcher[T]) run(ctx context.Context, c *call[T]) {
	start := f.clock.Now()
	value, err := f.fn(ctx)
	now := f.clock.Now()

	if f.metrics != nil {
		f.metrics.FetchDuration.WithLabelValues(f.name).Observe(now.Sub(start).Seconds())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	defer close(c.done)

	if f.inflight == c {
		f.inflight = nil
	}
	f.completedAt = now

	if err != nil {
		var te *domain.TransportError
		if !errors.As(err, &te) {
			te = &domain.TransportError{Endpoint: f.name, Err: err}
		}
		f.lastErr = te
		c.snap, c.err = f.latest, te
		f.count("error")
		f.logger.Warn("fetch failed, keeping previous snapshot", "error", err, "seq", c.seq, "previous_seq", f.latest.Seq)
		return
	}

	f.count("success")
	if c.seq > f.latest.Seq {
		f.latest = Snapshot[T]{Value: value, Seq: c.seq, FetchedAt: now}
		f.lastErr = nil
	}
	c.snap = f.latest
	f.logger.Debug("fetch complete", "seq", c.seq, "duration", now.Sub(start))
}

func (f *Fetcher[T]) count(outcome string) {
	if f.metrics != nil {
		f.metrics.FetchRequests.WithLabelValues(f.name, outcome).Inc()
	}
}

func (f *Fetcher[T]) countDebounced() {
	if f.metrics != nil {
		f.metrics.FetchDebounced.WithLabelValues(f.name).Inc()
	}
}
