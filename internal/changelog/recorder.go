package changelog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Outcomes reported to Options.Observe.
const (
	OutcomeWritten = "written"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// Sink persists events_log entries.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// Options tunes a Recorder.
type Options struct {
	Buffer       int
	WriteTimeout time.Duration
	Logger       *slog.Logger
	Observe      func(outcome string)
	Now          func() time.Time
}

// Recorder accepts changes on the request path and writes them in the
// background. Recording never fails the caller: write errors and overflow are
// logged and counted.
type Recorder struct {
	sink    Sink
	opts    Options
	ch      chan Entry
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

// NewRecorder starts a Recorder writing to sink.
func NewRecorder(sink Sink, opts Options) *Recorder {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Recorder{
		sink: sink,
		opts: opts,
		ch:   make(chan Entry, opts.Buffer),
		done: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record renders c and queues it for writing. It does not block.
func (r *Recorder) Record(ctx context.Context, c Change) {
	if r == nil {
		return
	}
	entry := NewEntry(c, r.opts.Now())
	if r.closed.Load() {
		r.drop(entry, "recorder closed")
		return
	}
	select {
	case r.ch <- entry:
	case <-r.done:
		r.drop(entry, "recorder closed")
	default:
		r.drop(entry, "buffer full")
	}
}

// Dropped returns how many entries were discarded without being written.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting entries and waits for queued ones to be written.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.closed.Store(true)
		close(r.done)
	})
	r.wg.Wait()
	for {
		select {
		case entry := <-r.ch:
			r.drop(entry, "recorder closed")
		default:
			return
		}
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-r.done:
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.WriteTimeout)
	defer cancel()
	if err := r.sink.Write(ctx, entry); err != nil {
		r.opts.Logger.Error("change log write failed",
			slog.String("tbl", entry.Table),
			slog.Int64("fld", entry.RecordID),
			slog.Any("error", err))
		r.observe(OutcomeFailed)
		return
	}
	r.observe(OutcomeWritten)
}

func (r *Recorder) drop(entry Entry, reason string) {
	r.dropped.Add(1)
	r.opts.Logger.Warn("change log entry dropped",
		slog.String("reason", reason),
		slog.String("tbl", entry.Table),
		slog.Int64("fld", entry.RecordID))
	r.observe(OutcomeDropped)
}

func (r *Recorder) observe(outcome string) {
	if r.opts.Observe != nil {
		r.opts.Observe(outcome)
	}
}
