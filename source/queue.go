// SPDX-License-Identifier: EPL-2.0

package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/logger"
	"github.com/ik5/audrender/media"
)

// DefaultQueueCapacity is the number of parsed items buffered ahead of the
// renderer.
const DefaultQueueCapacity = 64

type itemKind int

const (
	itemFormat itemKind = iota
	itemSample
	itemEnd
	itemError
)

type item struct {
	kind   itemKind
	format *media.Format
	sample Sample
	err    error
}

// loadRun is one loader goroutine together with the channel it fills.
type loadRun struct {
	items  chan item
	cancel context.CancelFunc
	done   chan struct{}
}

type queueOutput struct {
	ctx   context.Context
	items chan<- item
}

func (o *queueOutput) Format(f *media.Format) error {
	return o.send(item{kind: itemFormat, format: f})
}

func (o *queueOutput) Sample(s Sample) error {
	return o.send(item{kind: itemSample, sample: s})
}

func (o *queueOutput) send(it item) error {
	select {
	case <-o.ctx.Done():
		return o.ctx.Err()
	case o.items <- it:
		return nil
	}
}

// Queue is a SampleStream fed by a Loader running on its own goroutine. All
// SampleStream methods must be called from a single goroutine.
type Queue struct {
	name     string
	load     Loader
	drm      *drm.SessionManager
	capacity int
	log      logger.Logger

	run     *loadRun
	pending *item
	err     error
	closed  bool
	started bool

	startUs    int64
	downstream *media.Format
	session    drm.Session
	samples    int
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithSessionManager sets the manager used for protected formats.
func WithSessionManager(m *drm.SessionManager) QueueOption {
	return func(q *Queue) { q.drm = m }
}

// WithCapacity sets how many items the loader may buffer ahead.
func WithCapacity(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithLogger sets the queue logger.
func WithLogger(l logger.Logger) QueueOption {
	return func(q *Queue) { q.log = l }
}

// NewQueue creates a stream named name around load. Loading starts on the first
// read or seek.
func NewQueue(name string, load Loader, opts ...QueueOption) *Queue {
	q := &Queue{
		name:     name,
		load:     load,
		capacity: DefaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.log = logger.OrNoop(q.log).WithComponent("source")
	return q
}

func (q *Queue) ReadData(holder *FormatHolder, buf *media.InputBuffer, formatRequired bool) ReadResult {
	if q.closed || q.err != nil {
		return ResultNothingRead
	}
	q.ensureStarted()

	for {
		it, ok := q.peek()

		if ok && it.kind == itemFormat {
			q.pending = nil
			if !formatRequired && it.format.Equal(q.downstream) {
				continue
			}
			if err := q.setFormat(it.format); err != nil {
				q.err = err
				return ResultNothingRead
			}
			q.fillHolder(holder)
			return ResultFormatRead
		}

		if formatRequired && q.downstream != nil {
			q.fillHolder(holder)
			return ResultFormatRead
		}

		if !ok {
			return ResultNothingRead
		}

		switch it.kind {
		case itemEnd:
			buf.Clear()
			buf.SetFlags(media.FlagEndOfStream)
			return ResultBufferRead

		case itemError:
			q.pending = nil
			if !errors.Is(it.err, context.Canceled) {
				q.err = &LoadError{Err: it.err}
			}
			return ResultNothingRead

		case itemSample:
			if formatRequired {
				return ResultNothingRead
			}
			s := it.sample
			buf.Clear()
			buf.TimeUs = s.TimeUs
			buf.SetFlags(s.Flags)
			if s.TimeUs < q.startUs {
				buf.AddFlag(media.FlagDecodeOnly)
			}
			if buf.IsFlagsOnly() {
				return ResultBufferRead
			}
			buf.CryptoInfo = s.CryptoInfo
			buf.Fill(s.Data)
			q.pending = nil
			q.samples++
			return ResultBufferRead
		}
	}
}

func (q *Queue) IsReady() bool {
	if q.closed || q.err != nil {
		return false
	}
	if q.pending != nil {
		return q.pending.kind != itemError
	}
	return q.run != nil && len(q.run.items) > 0
}

func (q *Queue) MaybeThrowError() error {
	return q.err
}

func (q *Queue) SeekTo(positionUs int64) error {
	if q.closed {
		return ErrClosed
	}
	q.log.Debug("Source seek to %dus", positionUs)

	q.stop()
	q.err = nil
	q.startUs = positionUs
	q.start()

	return nil
}

func (q *Queue) Close() error {
	if q.closed {
		return nil
	}
	q.closed = true
	q.stop()
	if q.session != nil {
		q.session.Release()
		q.session = nil
	}
	return nil
}

// Format returns the last format handed downstream.
func (q *Queue) Format() *media.Format {
	return q.downstream
}

func (q *Queue) ensureStarted() {
	if !q.started {
		q.start()
	}
}

func (q *Queue) start() {
	ctx, cancel := context.WithCancel(context.Background())
	run := &loadRun{
		items:  make(chan item, q.capacity),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	q.run = run
	q.started = true

	go func(startUs int64) {
		defer close(run.done)

		out := &queueOutput{ctx: ctx, items: run.items}
		err := q.load(ctx, startUs, out)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			_ = out.send(item{kind: itemError, err: err})
		default:
			_ = out.send(item{kind: itemEnd})
		}
	}(q.startUs)
}

func (q *Queue) stop() {
	q.pending = nil
	if q.run == nil {
		return
	}
	q.run.cancel()
	<-q.run.done
	q.run = nil
}

func (q *Queue) peek() (*item, bool) {
	if q.pending != nil {
		return q.pending, true
	}
	if q.run == nil {
		return nil, false
	}
	select {
	case it := <-q.run.items:
		q.pending = &it
		if it.kind == itemEnd {
			q.log.Debug("Source ended after %d samples", q.samples)
		}
		return q.pending, true
	default:
		return nil, false
	}
}

func (q *Queue) setFormat(f *media.Format) error {
	if f.DrmInitData.Equal(q.downstreamDrm()) && q.downstream != nil {
		q.downstream = f
		return nil
	}

	var next drm.Session
	if f.DrmInitData != nil {
		s, err := q.drm.AcquireSession(f.DrmInitData)
		if err != nil {
			return fmt.Errorf("acquire drm session for %s: %w", q.name, err)
		}
		next = s
	}
	if q.session != nil {
		q.session.Release()
	}
	q.session = next
	q.downstream = f
	q.log.Debug("Source track: %s", f)

	return nil
}

func (q *Queue) downstreamDrm() *media.DrmInitData {
	if q.downstream == nil {
		return nil
	}
	return q.downstream.DrmInitData
}

func (q *Queue) fillHolder(holder *FormatHolder) {
	holder.Format = q.downstream
	holder.DrmSession = q.session
}
