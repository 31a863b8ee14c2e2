// Package dbcstream implements the stream-of-streams data plane
// dataset streams are a lazy sequence of named byte
// streams, carried through a bounded worker pool with a semaphore
// stream gate, a single cancellation token, and a temporary-resource
// cleanup registry that unwinds in reverse order of acquisition.
package dbcstream

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// collector reports the number of inner streams currently admitted
// through a StreamGate, so an operator can see max_streams saturation
// without instrumenting every driver individually.
var collector = metrics.NewCollector("stream_gate")

// OutputStream is one inner byte stream: a named, lazily-produced
// sequence of CSV bytes belonging to a dataset stream.
type OutputStream struct {
	Name  string
	Bytes io.ReadCloser
}

// StreamProducer lazily yields the next OutputStream of a dataset, or
// (OutputStream{}, false, nil) when the sequence is exhausted. It is
// the primitive every driver's LocalData implementation returns;
// DatasetStream wraps it with the concurrency and cancellation rules
// the outer sequence needs: cancellation, backpressure, ordering.
type StreamProducer func(ctx context.Context) (OutputStream, bool, error)

// DatasetStream is a lazy sequence of OutputStreams: pulling it
// advances only when the downstream requests the next stream, and
// each inner stream is independently cancellable through the same
// context passed to Next.
type DatasetStream struct {
	next StreamProducer
	done bool
}

// NewDatasetStream wraps a producer function as a DatasetStream.
func NewDatasetStream(next StreamProducer) *DatasetStream {
	return &DatasetStream{next: next}
}

// Next pulls the next inner stream. Returns ok=false once the
// sequence is exhausted; subsequent calls after exhaustion keep
// returning ok=false rather than re-invoking the producer.
func (d *DatasetStream) Next(ctx context.Context) (OutputStream, bool, error) {
	if d.done {
		return OutputStream{}, false, nil
	}
	out, ok, err := d.next(ctx)
	if err != nil || !ok {
		d.done = true
	}
	return out, ok, err
}

// SliceDatasetStream builds a DatasetStream over a fixed, already
// materialized slice of streams; used by drivers whose data source
// (a local file, a small in-memory fixture) doesn't need lazy
// production, and by tests.
func SliceDatasetStream(streams []OutputStream) *DatasetStream {
	i := 0
	return NewDatasetStream(func(ctx context.Context) (OutputStream, bool, error) {
		if i >= len(streams) {
			return OutputStream{}, false, nil
		}
		s := streams[i]
		i++
		return s, true, nil
	})
}

// StreamGate is the semaphore that bounds the number of inner streams
// alive concurrently to max_streams.
type StreamGate struct {
	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

// unboundedStreams is the effective slot count for a gate constructed
// with a non-positive maxStreams, matching the CLI's "0 for unlimited"
// contract for --max-streams while still keeping the gate a genuine
// (if very large) semaphore rather than a no-op.
const unboundedStreams = 1 << 20

// NewStreamGate builds a gate admitting at most maxStreams concurrent
// inner streams. A non-positive maxStreams means unlimited.
func NewStreamGate(maxStreams int) *StreamGate {
	if maxStreams <= 0 {
		maxStreams = unboundedStreams
	}
	return &StreamGate{sem: semaphore.NewWeighted(int64(maxStreams))}
}

// Acquire blocks until a slot is free or ctx is cancelled.
func (g *StreamGate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return dbcerrors.Wrap(err, dbcerrors.KindCancelled, "waiting for stream gate")
	}
	n := g.inFlight.Add(1)
	collector.RecordGauge("streams_in_flight", float64(n))
	return nil
}

// Release frees the slot acquired by a prior Acquire.
func (g *StreamGate) Release() {
	n := g.inFlight.Add(-1)
	collector.RecordGauge("streams_in_flight", float64(n))
	g.sem.Release(1)
}

// WorkerPool is the process-wide bounded pool every driver task must
// be submitted through. It wraps golang.org/x/sync/errgroup so the
// first task error cancels every sibling task's context.
type WorkerPool struct {
	group *errgroup.Group
	ctx   context.Context
}

// NewWorkerPool derives a cancellable pool from parent. Cancelling
// the returned context (directly, or by the pool's Wait observing a
// task failure) is the single cancellation token threaded through the
// whole copy.
func NewWorkerPool(parent context.Context) (*WorkerPool, context.CancelFunc) {
	group, ctx := errgroup.WithContext(parent)
	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool{group: group, ctx: ctx}, cancel
}

// Context returns the pool's shared, cancellable context.
func (p *WorkerPool) Context() context.Context { return p.ctx }

// Go submits fn to the pool. If fn returns an error, the pool's
// context is cancelled and every other in-flight task observes it on
// their next suspension point.
func (p *WorkerPool) Go(fn func() error) { p.group.Go(fn) }

// Wait blocks until every submitted task has returned, propagating
// the first non-nil error. Cancellation-induced secondary errors on
// other tasks are not separately surfaced, matching the planner's
// "first error wins" propagation policy.
func (p *WorkerPool) Wait() error { return p.group.Wait() }

// GatedDatasetStream wraps produce with a background pump submitted
// through pool: production runs ahead of consumption, but no more than
// gate's max_streams inner streams may be acquired-and-unclosed at
// once, bounding the producer's memory high-water mark to
// max_streams*stream_buffer_bytes. A slot is admitted before produce
// is called for the next stream and released only when the consumer
// closes the OutputStream it was handed, not merely when it's handed
// off, matching the gate's admit-on-free-slot/release-on-completion
// contract.
func GatedDatasetStream(pool *WorkerPool, gate *StreamGate, produce StreamProducer) *DatasetStream {
	type item struct {
		stream OutputStream
		err    error
	}
	items := make(chan item)
	send := func(it item) bool {
		select {
		case items <- it:
			return true
		case <-pool.Context().Done():
			return false
		}
	}
	pool.Go(func() error {
		defer close(items)
		for {
			if err := gate.Acquire(pool.Context()); err != nil {
				send(item{err: err})
				return err
			}
			out, ok, err := produce(pool.Context())
			if err != nil {
				gate.Release()
				send(item{err: err})
				return err
			}
			if !ok {
				gate.Release()
				return nil
			}
			out.Bytes = &gateReleasingReader{ReadCloser: out.Bytes, release: gate.Release}
			if !send(item{stream: out}) {
				gate.Release()
				return pool.Context().Err()
			}
		}
	})
	return NewDatasetStream(func(ctx context.Context) (OutputStream, bool, error) {
		select {
		case it, open := <-items:
			if !open {
				return OutputStream{}, false, nil
			}
			if it.err != nil {
				return OutputStream{}, false, it.err
			}
			return it.stream, true, nil
		case <-ctx.Done():
			return OutputStream{}, false, dbcerrors.Wrap(ctx.Err(), dbcerrors.KindCancelled, "waiting for next inner stream")
		}
	})
}

// gateReleasingReader releases its StreamGate slot exactly once, when
// the wrapped stream is closed by whoever consumes it.
type gateReleasingReader struct {
	io.ReadCloser
	release  func()
	released sync.Once
}

func (g *gateReleasingReader) Close() error {
	err := g.ReadCloser.Close()
	g.released.Do(g.release)
	return err
}

// Cleanup is one registered teardown action for an externally
// allocated resource (a temp table, a blob prefix, a local temp
// file).
type Cleanup struct {
	Name string
	Run  func(ctx context.Context) error
}

// TempRegistry is the per-copy stack of cleanup actions guaranteeing
// every externally allocated temporary is released on every exit path
// (success, failure, or cancel), in reverse order of acquisition.
type TempRegistry struct {
	mu    sync.Mutex
	stack []Cleanup
}

// NewTempRegistry returns an empty registry.
func NewTempRegistry() *TempRegistry { return &TempRegistry{} }

// Register pushes a cleanup action, run in LIFO order by Cleanup.
func (r *TempRegistry) Register(c Cleanup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stack = append(r.stack, c)
}

// Len reports how many cleanup actions are still pending. It should
// be zero after every copy completes.
func (r *TempRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stack)
}

// Cleanup runs every registered action in reverse order of
// registration, continuing past individual failures so one broken
// teardown doesn't leak the rest; it returns the first error
// encountered, if any, after every action has run.
func (r *TempRegistry) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	stack := r.stack
	r.stack = nil
	r.mu.Unlock()

	var firstErr error
	for i := len(stack) - 1; i >= 0; i-- {
		if err := stack[i].Run(ctx); err != nil {
			wrapped := dbcerrors.Wrapf(err, dbcerrors.KindInternal, "cleaning up temporary %q", stack[i].Name)
			if firstErr == nil {
				firstErr = wrapped
			}
		}
	}
	return firstErr
}
