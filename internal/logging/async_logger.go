// Package logging provides an async, buffered channel logger that batches
// per-request entries and flushes them to a structured sink without
// blocking the request path.
package logging

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// LogEntry captures one completed chat-completion request for the async
// access log.
type LogEntry struct {
	RequestID    string
	Timestamp    time.Time
	Upstream     string
	Model        string
	StatusCode   int
	LatencyMS    int64
	InputTokens  int
	OutputTokens int
	ErrorMessage string
}

// DroppedCounter is implemented by whatever wants to observe dropped log
// entries, typically a Prometheus counter.
type DroppedCounter interface {
	Inc()
}

// AsyncLogger buffers LogEntry values on a channel and flushes them in
// batches to a slog.Logger, so request handling never blocks on logging.
type AsyncLogger struct {
	ch      chan *LogEntry
	sink    *slog.Logger
	wg      sync.WaitGroup
	done    chan struct{}
	dropped int64 // atomic counter
	onDrop  DroppedCounter
}

// NewAsyncLogger starts a background worker flushing entries to sink.
func NewAsyncLogger(sink *slog.Logger, bufferSize int, onDrop DroppedCounter) *AsyncLogger {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	al := &AsyncLogger{
		ch:     make(chan *LogEntry, bufferSize),
		sink:   sink,
		done:   make(chan struct{}),
		onDrop: onDrop,
	}
	al.wg.Add(1)
	go al.worker()
	return al
}

// Log enqueues entry, dropping it if the buffer is full.
func (al *AsyncLogger) Log(entry *LogEntry) {
	select {
	case al.ch <- entry:
	default:
		atomic.AddInt64(&al.dropped, 1)
		if al.onDrop != nil {
			al.onDrop.Inc()
		}
	}
}

// Dropped reports the total number of entries dropped due to a full buffer.
func (al *AsyncLogger) Dropped() int64 {
	return atomic.LoadInt64(&al.dropped)
}

// Close drains the buffer and stops the worker.
func (al *AsyncLogger) Close() {
	close(al.done)
	al.wg.Wait()
}

func (al *AsyncLogger) worker() {
	defer al.wg.Done()

	batch := make([]*LogEntry, 0, 100)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			al.emit(e)
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-al.ch:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-al.done:
			for {
				select {
				case entry := <-al.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (al *AsyncLogger) emit(e *LogEntry) {
	attrs := []any{
		"request_id", e.RequestID,
		"upstream", e.Upstream,
		"model", e.Model,
		"status_code", e.StatusCode,
		"latency_ms", e.LatencyMS,
		"input_tokens", e.InputTokens,
		"output_tokens", e.OutputTokens,
	}
	if e.ErrorMessage != "" {
		attrs = append(attrs, "error", e.ErrorMessage)
	}
	al.sink.Info("request", attrs...)
}
